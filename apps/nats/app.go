package nats

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

// App represents the NATS application module
type App struct{}

// Register initializes the NATS module
func (App) Register() error {
	return nil
}

// Router registers HTTP routes (none for NATS)
func (App) Router() error {
	return nil
}

// WhenReady connects to NATS after application is fully initialized.
// Check-in keeps working without NATS; events are then dropped.
func (App) WhenReady() error {
	if !settings.Get("NATS.ENABLED", true).Bool() {
		log.Notice("NATS is disabled, check-in events will not be published")
		return nil
	}

	config := loadConfig()
	if err := Connect(config); err != nil {
		log.Warning("NATS unavailable, check-in events will not be published: %v", err)
		return nil
	}

	log.Info("NATS app ready")
	return nil
}

func loadConfig() NATSConfig {
	reconnectWait, _ := settings.Get("NATS.RECONNECT_WAIT", "2s").Duration()
	pingInterval, _ := settings.Get("NATS.PING_INTERVAL", "20s").Duration()
	drainTimeout, _ := settings.Get("NATS.DRAIN_TIMEOUT", "10s").Duration()
	streamAge, _ := settings.Get("NATS.STREAM_MAX_AGE", "168h").Duration()

	return NATSConfig{
		URL:            settings.Get("NATS.URL", "nats://localhost:4222").String(),
		Name:           settings.Get("NATS.NAME", "checkin-service").String(),
		MaxReconnects:  settings.Get("NATS.MAX_RECONNECTS", 60).Int(),
		ReconnectWait:  reconnectWait,
		PingInterval:   pingInterval,
		MaxPingsOut:    settings.Get("NATS.MAX_PINGS_OUT", 2).Int(),
		AllowReconnect: settings.Get("NATS.ALLOW_RECONNECT", true).Bool(),
		DrainTimeout:   drainTimeout,
		Stream:         settings.Get("NATS.STREAM", "CHECKIN").String(),
		StreamAge:      streamAge,
	}
}

// Name returns the app name
func (App) Name() string {
	return "nats"
}

// Shutdown gracefully closes the NATS connection
func (App) Shutdown() error {
	drainTimeout, _ := settings.Get("NATS.DRAIN_TIMEOUT", "10s").Duration()
	return Close(drainTimeout)
}

var _ application.Application = (*App)(nil)
