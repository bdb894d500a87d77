package redis

import (
	"context"
	"strings"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/redis/go-redis/v9"
)

var (
	// Client is the universal Redis client that works with single nodes, clusters and sentinels
	Client redis.UniversalClient
	ctx    = context.Background()
)

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Addresses    []string      `json:"addresses"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	// MasterName switches the client to sentinel mode
	MasterName       string `json:"master_name"`
	SentinelPassword string `json:"sentinel_password"`
}

// Initialize creates the Redis universal client.
// Without REDIS.ADDRESS(ES) or with an unreachable server the check-in service
// falls back to in-process previews, snapshots and rate limits.
//
//	REDIS:
//	  ADDRESSES: "redis1:6379,redis2:6379,redis3:6379"
//	  MASTER_NAME: ""
//	  PASSWORD: ""
//	  DB: 0
func Initialize() error {
	config := loadConfig()

	if len(config.Addresses) == 0 {
		log.Notice("Redis not configured, previews and sessions stay in process memory")
		return nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:            config.Addresses,
		Password:         config.Password,
		DB:               config.DB,
		MaxRetries:       config.MaxRetries,
		DialTimeout:      config.DialTimeout,
		ReadTimeout:      config.ReadTimeout,
		WriteTimeout:     config.WriteTimeout,
		PoolSize:         config.PoolSize,
		MinIdleConns:     config.MinIdleConns,
		MasterName:       config.MasterName,
		SentinelPassword: config.SentinelPassword,
	})

	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(testCtx).Err(); err != nil {
		log.Warning("Redis connection failed: %v. Falling back to process memory.", err)
		_ = client.Close()
		return nil // Don't fail startup if Redis is unavailable
	}
	Client = client

	switch {
	case config.MasterName != "":
		log.Info("Redis Sentinel connected (master: %s)", config.MasterName)
	case len(config.Addresses) == 1:
		log.Info("Redis connected (single node: %s)", config.Addresses[0])
	default:
		log.Info("Redis Cluster connected (%d nodes)", len(config.Addresses))
	}
	return nil
}

// loadConfig reads Redis configuration from settings
func loadConfig() RedisConfig {
	config := RedisConfig{
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	config.Addresses = parseAddresses(settings.Get("REDIS.ADDRESSES").String())
	if len(config.Addresses) == 0 {
		config.Addresses = parseAddresses(settings.Get("REDIS.ADDRESS").String())
	}

	config.Password = settings.Get("REDIS.PASSWORD").String()
	config.DB = settings.Get("REDIS.DB").Int()

	if poolSize := settings.Get("REDIS.POOL_SIZE").Int(); poolSize > 0 {
		config.PoolSize = poolSize
	}
	if minIdle := settings.Get("REDIS.MIN_IDLE_CONNS").Int(); minIdle > 0 {
		config.MinIdleConns = minIdle
	}
	if maxRetries := settings.Get("REDIS.MAX_RETRIES").Int(); maxRetries > 0 {
		config.MaxRetries = maxRetries
	}

	config.MasterName = settings.Get("REDIS.MASTER_NAME").String()
	config.SentinelPassword = settings.Get("REDIS.SENTINEL_PASSWORD").String()

	return config
}

// parseAddresses splits a comma-separated address list, tolerating "[...]" wrappers
func parseAddresses(raw string) []string {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	var out []string
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.Trim(strings.TrimSpace(addr), `"'`)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// IsAvailable returns true if Redis client is connected
func IsAvailable() bool {
	return Client != nil
}

// Close gracefully closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}
