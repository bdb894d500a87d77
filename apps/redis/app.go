package redis

import (
	"github.com/getevo/evo/v2/lib/application"
	"github.com/getevo/evo/v2/lib/log"
)

// App represents the Redis application module
type App struct{}

// Register connects to Redis so later apps can pick their preview and session stores
func (App) Register() error {
	return Initialize()
}

// Router registers HTTP routes (none for Redis)
func (App) Router() error {
	return nil
}

// WhenReady loads rate limit overrides once the database and NATS are up
func (App) WhenReady() error {
	LoadRateLimitSettings()
	SubscribeToRateLimitReload()
	log.Info("Redis app ready")
	return nil
}

// Name returns the app name
func (App) Name() string {
	return "redis"
}

// Shutdown gracefully closes the Redis connection
func (App) Shutdown() error {
	return Close()
}

var _ application.Application = (*App)(nil)
