// mesh-sim runs the fallback-signal listener standalone, printing synthetic
// nearby SOS broadcasts. Useful for demoing the dashboard without a backend.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mr1hm/go-relief-coordination/internal/config"
	"github.com/mr1hm/go-relief-coordination/internal/dispatch"
	"github.com/mr1hm/go-relief-coordination/internal/logging"
	"github.com/mr1hm/go-relief-coordination/internal/models"
	"github.com/mr1hm/go-relief-coordination/internal/sensor"
	"github.com/mr1hm/go-relief-coordination/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	home := models.Coordinate{
		Latitude:  cfg.Dispatch.DefaultLatitude,
		Longitude: cfg.Dispatch.DefaultLongitude,
	}

	dispatcher := dispatch.New(dispatch.Config{
		Store:          store.New(),
		Locator:        sensor.Fixed(home),
		Home:           home,
		SignalInterval: cfg.Dispatch.SignalInterval,
		SignalChance:   cfg.Dispatch.SignalChance,
	})

	slog.Info("mesh simulator listening",
		"interval", cfg.Dispatch.SignalInterval,
		"chance", cfg.Dispatch.SignalChance)

	stop := dispatcher.Listen(func(sig models.SOSAlert) {
		slog.Info("mesh signal",
			"id", sig.ID,
			"priority", sig.Priority,
			"lat", sig.Location.Latitude,
			"lon", sig.Location.Longitude,
			"message", sig.Message)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stop()
	slog.Info("mesh simulator stopped")
}
