package redis

import (
	"strconv"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/checkin-backend/apps/models"
	appnats "github.com/iesreza/checkin-backend/apps/nats"
	"github.com/nats-io/nats.go"
)

// Rate limit keys of the check-in API
const (
	LimitOpenSession = "checkin.open_session"
	LimitUpdate      = "checkin.update"
	LimitUpload      = "checkin.upload"
	LimitSubmit      = "checkin.submit"
	LimitPreview     = "checkin.preview"
)

const reloadSubject = "settings.rate_limit.reload"

// RateLimitEndpoint represents a rate-limitable endpoint
type RateLimitEndpoint struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxRequests int    `json:"max_requests"`
	WindowSecs  int    `json:"window_seconds"`
	Enabled     bool   `json:"enabled"`
}

// DefaultEndpoints lists the endpoints that can be rate limited
var DefaultEndpoints = []RateLimitEndpoint{
	{Key: LimitOpenSession, Name: "Open Session", Description: "Starting a check-in screen", MaxRequests: 10, WindowSecs: 60, Enabled: true},
	{Key: LimitUpdate, Name: "Update Field", Description: "Field edits, UI toggles and location changes", MaxRequests: 240, WindowSecs: 60, Enabled: true},
	{Key: LimitUpload, Name: "Upload Document", Description: "Selecting an image or document file", MaxRequests: 20, WindowSecs: 60, Enabled: true},
	{Key: LimitSubmit, Name: "Submit", Description: "Submitting a check-in screen", MaxRequests: 5, WindowSecs: 60, Enabled: true},
	{Key: LimitPreview, Name: "Preview", Description: "Fetching local image previews", MaxRequests: 120, WindowSecs: 60, Enabled: true},
}

// FindEndpoint returns the endpoint registered under key
func FindEndpoint(key string) (RateLimitEndpoint, bool) {
	for _, endpoint := range DefaultEndpoints {
		if endpoint.Key == key {
			return endpoint, true
		}
	}
	return RateLimitEndpoint{}, false
}

// LoadRateLimitSettings loads rate limit overrides from the database into cache
func LoadRateLimitSettings() {
	for _, endpoint := range DefaultEndpoints {
		config := RateLimitConfig{
			MaxRequests: endpoint.MaxRequests,
			Window:      time.Duration(endpoint.WindowSecs) * time.Second,
			Enabled:     endpoint.Enabled,
		}

		if val := models.GetSettingValue("rate_limit."+endpoint.Key+".max_requests", ""); val != "" {
			if intVal, err := strconv.Atoi(val); err == nil {
				config.MaxRequests = intVal
			}
		}
		if val := models.GetSettingValue("rate_limit."+endpoint.Key+".window_seconds", ""); val != "" {
			if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
				config.Window = time.Duration(intVal) * time.Second
			}
		}
		if val := models.GetSettingValue("rate_limit."+endpoint.Key+".enabled", ""); val != "" {
			config.Enabled = val == "true" || val == "1"
		}

		SetRateLimitConfig(endpoint.Key, config)
	}

	log.Info("Rate limit settings loaded")
}

// SaveRateLimitSetting stores a rate limit override and tells the other instances to reload
func SaveRateLimitSetting(key string, maxRequests int, windowSecs int, enabled bool) error {
	category := models.SettingCategoryRateLimit
	if err := models.SetSetting("rate_limit."+key+".max_requests", strconv.Itoa(maxRequests), "number", category, "Max Requests"); err != nil {
		return err
	}
	if err := models.SetSetting("rate_limit."+key+".window_seconds", strconv.Itoa(windowSecs), "number", category, "Window (seconds)"); err != nil {
		return err
	}
	if err := models.SetSetting("rate_limit."+key+".enabled", strconv.FormatBool(enabled), "boolean", category, "Enabled"); err != nil {
		return err
	}

	SetRateLimitConfig(key, RateLimitConfig{
		MaxRequests: maxRequests,
		Window:      time.Duration(windowSecs) * time.Second,
		Enabled:     enabled,
	})

	if err := appnats.Publish(reloadSubject, []byte("reload")); err != nil {
		log.Debug("[Redis:RateLimit] Reload not broadcast: %v", err)
	}
	return nil
}

// GetRateLimitSettings returns the effective rate limit of every endpoint
func GetRateLimitSettings() []RateLimitEndpoint {
	result := make([]RateLimitEndpoint, len(DefaultEndpoints))
	copy(result, DefaultEndpoints)

	for i, endpoint := range result {
		config := GetRateLimitConfig(endpoint.Key)
		result[i].MaxRequests = config.MaxRequests
		result[i].WindowSecs = int(config.Window.Seconds())
		result[i].Enabled = config.Enabled
	}
	return result
}

// SubscribeToRateLimitReload refreshes the cache when another instance saves a setting
func SubscribeToRateLimitReload() {
	_, err := appnats.Subscribe(reloadSubject, func(msg *nats.Msg) {
		log.Info("Received rate limit reload signal, refreshing cache...")
		LoadRateLimitSettings()
	})
	if err != nil {
		log.Warning("Failed to subscribe to rate limit reload: %v", err)
	}
}
