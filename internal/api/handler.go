package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-relief-coordination/internal/allocation"
	"github.com/mr1hm/go-relief-coordination/internal/dispatch"
	"github.com/mr1hm/go-relief-coordination/internal/lifecycle"
	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/notify"
	"github.com/mr1hm/go-relief-coordination/internal/persistence"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

type Handler struct {
	store      *store.Store
	engine     *allocation.Engine
	dispatcher *dispatch.Dispatcher
	persist    persistence.Store
	localState persistence.LocalState
	sink       notify.Sink
}

func NewHandler(s *store.Store, e *allocation.Engine, d *dispatch.Dispatcher, p persistence.Store, ls persistence.LocalState, sink notify.Sink) *Handler {
	return &Handler{
		store:      s,
		engine:     e,
		dispatcher: d,
		persist:    p,
		localState: ls,
		sink:       sink,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.POST("/api/sos", h.createSOS)
	r.GET("/api/alerts", h.getAlerts)
	r.PATCH("/api/alerts/:id/status", h.updateAlertStatus)

	r.GET("/api/resources", h.getResources)
	r.POST("/api/resources/:id/allocate", h.allocateResource)
	r.GET("/api/volunteers", h.getVolunteers)
	r.POST("/api/volunteers/:id/assign", h.assignVolunteer)

	r.GET("/api/donations", h.getDonations)
	r.POST("/api/donations", h.createDonation)
	r.PATCH("/api/donations/:id/status", h.updateDonationStatus)

	r.GET("/api/disasters", h.getDisasters)
	r.GET("/api/disasters/:id/zone", h.getDisasterZone)
	r.GET("/api/active-disaster", h.getActiveDisaster)
	r.PUT("/api/active-disaster", h.setActiveDisaster)

	r.GET("/api/mode", h.getMode)
	r.PUT("/api/mode", h.setMode)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createSOSRequest struct {
	UserID      string   `json:"user_id" binding:"required"`
	Message     string   `json:"message"`
	MedicalInfo string   `json:"medical_info"`
	Priority    string   `json:"priority"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (h *Handler) createSOS(c *gin.Context) {
	var req createSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := dispatch.Payload{
		UserID:      req.UserID,
		Message:     req.Message,
		MedicalInfo: req.MedicalInfo,
		Priority:    models.AlertPriority(req.Priority),
	}
	if req.Latitude != nil && req.Longitude != nil {
		payload.Location = &models.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	alert, channel, err := h.dispatcher.SendAlert(c.Request.Context(), payload)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"alert":   alert,
		"channel": channel,
	})
}

func (h *Handler) getAlerts(c *gin.Context) {
	var alerts []models.SOSAlert
	if status := c.Query("status"); status != "" {
		alerts = h.store.AlertsByStatus(models.AlertStatus(status))
	} else {
		alerts = h.store.Alerts()
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

type updateStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	ResponderID string `json:"responder_id"`
}

func (h *Handler) updateAlertStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	alert, err := h.store.AdvanceAlert(id, models.AlertStatus(req.Status), req.ResponderID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	// Propagate to the backend; transport failures here have no fallback
	// path and are surfaced. Local state stays ahead until realtime sync
	// reconciles.
	if _, err := h.persist.UpdateAlertStatus(c.Request.Context(), id, alert.Status, alert.ResponderID); err != nil {
		slog.Warn("alert status propagation failed", "id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "status applied locally, backend update failed",
			"alert": alert,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

func (h *Handler) getResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"resources": h.store.Resources()})
}

type allocateRequest struct {
	AlertID string `json:"alert_id" binding:"required"`
}

func (h *Handler) allocateResource(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	resource, err := h.engine.AllocateResource(c.Request.Context(), id, req.AlertID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	if _, err := h.persist.UpdateResourceStatus(c.Request.Context(), id, resource.Status, resource.AssignedTo); err != nil {
		slog.Warn("resource status propagation failed", "id", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "allocation applied locally, backend update failed",
			"resource": resource,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"resource": resource})
}

func (h *Handler) getVolunteers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"volunteers": h.store.Volunteers()})
}

func (h *Handler) assignVolunteer(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	volunteer, err := h.engine.AssignVolunteer(c.Request.Context(), c.Param("id"), req.AlertID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"volunteer": volunteer})
}

func (h *Handler) getDonations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"donations": h.store.Donations()})
}

type createDonationRequest struct {
	DonorID  string  `json:"donor_id"`
	Amount   float64 `json:"amount" binding:"required"`
	Currency string  `json:"currency" binding:"required"`
}

func (h *Handler) createDonation(c *gin.Context) {
	var req createDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	donation, err := h.store.AddDonation(req.DonorID, req.Amount, req.Currency)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	notify.Emit(c.Request.Context(), h.sink, models.NotificationDonation,
		"donation received", models.PriorityLow, donation.ID)
	c.JSON(http.StatusCreated, gin.H{"donation": donation})
}

type donationStatusRequest struct {
	Status      string `json:"status" binding:"required"`
	AllocatedTo string `json:"allocated_to"`
}

func (h *Handler) updateDonationStatus(c *gin.Context) {
	var req donationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	donation, err := h.store.AdvanceDonation(c.Param("id"), models.DonationStatus(req.Status), req.AllocatedTo)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"donation": donation})
}

func (h *Handler) getDisasters(c *gin.Context) {
	fc := toGeoJSON(h.store.Disasters())
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getDisasterZone(c *gin.Context) {
	d, ok := h.store.Disaster(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "disaster not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"disaster":   d,
		"resources":  h.engine.ResourcesWithinZone(d),
		"volunteers": h.engine.VolunteersWithinZone(d),
	})
}

func (h *Handler) getActiveDisaster(c *gin.Context) {
	d, ok := h.store.ActiveDisaster()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"disaster": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"disaster": d})
}

type activeDisasterRequest struct {
	ID string `json:"id"`
}

func (h *Handler) setActiveDisaster(c *gin.Context) {
	var req activeDisasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetActiveDisaster(req.ID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if err := h.localState.SetSelectedDisaster(c.Request.Context(), req.ID); err != nil {
		slog.Warn("persisting selected disaster failed", "id", req.ID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"id": req.ID})
}

func (h *Handler) getMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fallback_enabled": h.dispatcher.FallbackMode(),
		"online":           h.dispatcher.Online(),
	})
}

type modeRequest struct {
	FallbackEnabled *bool `json:"fallback_enabled" binding:"required"`
}

func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dispatcher.SetFallbackMode(c.Request.Context(), *req.FallbackEnabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"fallback_enabled": *req.FallbackEnabled})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var invalid *lifecycle.InvalidTransitionError
	switch {
	case errors.As(err, &invalid),
		errors.Is(err, store.ErrResourceUnavailable),
		errors.Is(err, store.ErrVolunteerUnavailable),
		errors.Is(err, store.ErrInvalidDonationTransition):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidDonation):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
