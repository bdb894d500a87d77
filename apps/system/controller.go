package system

import (
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/go-playground/validator/v10"
	appnats "github.com/iesreza/checkin-backend/apps/nats"
	appredis "github.com/iesreza/checkin-backend/apps/redis"
	"github.com/iesreza/checkin-backend/lib/response"
)

var validate = validator.New()

type Controller struct {
}

func (c Controller) HealthHandler(request *evo.Request) any {
	return response.OK("ok")
}

func (c Controller) UptimeHandler(request *evo.Request) any {
	uptimeData := map[string]any{
		"uptime": int64(time.Since(StartupTime).Seconds()),
	}
	return response.OK(uptimeData)
}

// GetRateLimitSettings returns the effective limit of every check-in endpoint
func (c Controller) GetRateLimitSettings(request *evo.Request) any {
	endpoints := appredis.GetRateLimitSettings()
	return response.List(endpoints, len(endpoints))
}

// GetRedisStatus reports whether limits are enforced
func (c Controller) GetRedisStatus(request *evo.Request) any {
	return response.OK(map[string]any{
		"redis_available": appredis.IsAvailable(),
		"nats_connected":  appnats.IsConnected(),
	})
}

// UpdateRateLimitRequest is the body of UpdateRateLimitSetting
type UpdateRateLimitRequest struct {
	MaxRequests int  `json:"max_requests" validate:"required,min=1,max=100000"`
	WindowSecs  int  `json:"window_seconds" validate:"required,min=1,max=86400"`
	Enabled     bool `json:"enabled"`
}

// UpdateRateLimitSetting overrides the limit of one endpoint
func (c Controller) UpdateRateLimitSetting(request *evo.Request) any {
	key := request.Param("key").String()
	if _, ok := appredis.FindEndpoint(key); !ok {
		return response.NotFound("Unknown rate limit key")
	}

	var req UpdateRateLimitRequest
	if err := request.BodyParser(&req); err != nil {
		return response.Error(response.ErrInvalidInput)
	}
	if err := validate.Struct(req); err != nil {
		return response.Error(response.ErrInvalidInput.WithDetails(err.Error()))
	}

	if err := appredis.SaveRateLimitSetting(key, req.MaxRequests, req.WindowSecs, req.Enabled); err != nil {
		log.Error("[System:RateLimit] Failed to save %s: %v", key, err)
		return response.Error(response.ErrDatabaseError)
	}
	endpoint, _ := appredis.FindEndpoint(key)
	endpoint.MaxRequests, endpoint.WindowSecs, endpoint.Enabled = req.MaxRequests, req.WindowSecs, req.Enabled
	return response.OKWithMessage(endpoint, "Rate limit updated")
}
