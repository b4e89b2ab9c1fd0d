package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mr1hm/go-relief-coordination/internal/allocation"
	"github.com/mr1hm/go-relief-coordination/internal/api"
	"github.com/mr1hm/go-relief-coordination/internal/config"
	"github.com/mr1hm/go-relief-coordination/internal/dispatch"
	"github.com/mr1hm/go-relief-coordination/internal/logging"
	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/notify"
	"github.com/mr1hm/go-relief-coordination/internal/persistence"
	"github.com/mr1hm/go-relief-coordination/internal/realtime"
	"github.com/mr1hm/go-relief-coordination/internal/sensor"
	"github.com/mr1hm/go-relief-coordination/internal/store"
	coordsync "github.com/mr1hm/go-relief-coordination/internal/sync"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := persistence.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	home := models.Coordinate{
		Latitude:  cfg.Dispatch.DefaultLatitude,
		Longitude: cfg.Dispatch.DefaultLongitude,
	}

	coordStore := store.New()
	sink := notify.NewWebhook(cfg.Notify.WebhookURL)
	engine := allocation.NewEngine(coordStore, sink)

	// Hydrate the store with whatever the backend already knows about.
	disasters, err := db.ActiveDisasters(ctx)
	if err != nil {
		logging.Fatalf("Failed to load active disasters: %v", err)
	}
	for _, d := range disasters {
		coordStore.UpsertDisaster(d)
	}
	if selected, err := db.SelectedDisaster(ctx); err == nil && selected != "" {
		if err := coordStore.SetActiveDisaster(selected); err != nil {
			slog.Warn("persisted disaster selection is stale", "id", selected, "error", err)
		}
	}

	dispatcher := dispatch.New(dispatch.Config{
		Persist:    db,
		LocalState: db,
		Store:      coordStore,
		// Headless deployments have no device sensor; alerts raised without
		// an explicit location get the configured home coordinate.
		Locator:         sensor.Fixed(home),
		Sink:            sink,
		Home:            home,
		FallbackLatency: cfg.Dispatch.FallbackLatency,
		SignalInterval:  cfg.Dispatch.SignalInterval,
		SignalChance:    cfg.Dispatch.SignalChance,
	})
	if err := dispatcher.Restore(ctx); err != nil {
		logging.Fatalf("Failed to restore dispatch mode: %v", err)
	}
	dispatcher.OnModeChange(func(enabled bool) {
		slog.Info("fallback mode changed", "enabled", enabled)
	})

	// Surface simulated mesh broadcasts while the process runs. They are
	// intentionally never written to the store.
	stopListening := dispatcher.Listen(func(sig models.SOSAlert) {
		slog.Info("mesh signal received",
			"id", sig.ID,
			"lat", sig.Location.Latitude,
			"lon", sig.Location.Longitude)
	})

	// Realtime updates from the backend flow through the broadcaster into
	// the store via the sync manager.
	broadcaster := realtime.NewBroadcaster()
	syncMgr := coordsync.NewManager(coordStore, broadcaster)
	syncMgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(10)) // 10 req/s global limit

	handler := api.NewHandler(coordStore, engine, dispatcher, db, db, sink)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	stopListening()
	cancel()
	syncMgr.Stop()
	broadcaster.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
