package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/gofiber/fiber/v2"
	"github.com/iesreza/checkin-backend/lib/response"
)

// RateLimitConfig holds the configuration for a rate limit rule
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Enabled     bool
}

// DefaultRateLimitConfig returns a default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 60,
		Window:      1 * time.Minute,
		Enabled:     true,
	}
}

var rateLimitCache sync.Map

// SetRateLimitConfig sets a rate limit configuration for a key
func SetRateLimitConfig(key string, config RateLimitConfig) {
	rateLimitCache.Store(key, config)
}

// GetRateLimitConfig gets a rate limit configuration for a key
func GetRateLimitConfig(key string) RateLimitConfig {
	if cached, ok := rateLimitCache.Load(key); ok {
		return cached.(RateLimitConfig)
	}
	return DefaultRateLimitConfig()
}

// LimitResult is the state of one client's counter after a hit
type LimitResult struct {
	Limit     int
	Remaining int
	Reset     time.Duration
	Exceeded  bool
}

// Hit counts one request of client against key.
// ok is false when Redis is unavailable or the rule is disabled, and the request should pass.
func Hit(key, client string) (result LimitResult, ok bool) {
	if !IsAvailable() {
		return result, false
	}
	config := GetRateLimitConfig(key)
	if !config.Enabled {
		return result, false
	}

	redisKey := fmt.Sprintf("rate_limit:%s:%s", key, client)

	hitCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	count, err := Client.Incr(hitCtx, redisKey).Result()
	if err != nil {
		log.Warning("[Redis:RateLimit] %s: %v", key, err)
		return result, false // Allow request on Redis error
	}
	if count == 1 {
		Client.Expire(hitCtx, redisKey, config.Window)
	}
	ttl, _ := Client.TTL(hitCtx, redisKey).Result()
	if ttl < 0 {
		ttl = config.Window
	}

	return LimitResult{
		Limit:     config.MaxRequests,
		Remaining: max(0, config.MaxRequests-int(count)),
		Reset:     ttl,
		Exceeded:  int(count) > config.MaxRequests,
	}, true
}

// clientID returns the first X-Forwarded-For hop, or the peer address
func clientID(ip, forwarded string) string {
	if forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	return ip
}

// Limit applies the rule of key to the client of req and sets the rate limit headers
func Limit(req *evo.Request, key string) error {
	result, ok := Hit(key, clientID(req.IP(), req.Header("X-Forwarded-For")))
	if !ok {
		return nil
	}
	req.SetHeader("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	req.SetHeader("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	req.SetHeader("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(result.Reset).Unix()))
	if result.Exceeded {
		req.SetHeader("Retry-After", fmt.Sprintf("%d", int(result.Reset.Seconds())))
		return response.ErrRateLimited
	}
	return nil
}

// EvoRateLimitMiddleware creates an evo-compatible rate limiting middleware
func EvoRateLimitMiddleware(key string) func(*evo.Request) error {
	return func(req *evo.Request) error {
		if err := Limit(req, key); err != nil {
			return err
		}
		return req.Next()
	}
}

// RateLimitMiddleware is the fiber counterpart of EvoRateLimitMiddleware for raw fiber routes
func RateLimitMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, ok := Hit(key, clientID(c.IP(), c.Get("X-Forwarded-For")))
		if !ok {
			return c.Next()
		}
		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(result.Reset).Unix()))
		if result.Exceeded {
			c.Set("Retry-After", fmt.Sprintf("%d", int(result.Reset.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       string(response.ErrRateLimited.Code),
				"message":     response.ErrRateLimited.Message,
				"retry_after": int(result.Reset.Seconds()),
			})
		}
		return c.Next()
	}
}
