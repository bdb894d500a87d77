package checkin

import (
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
)

// Config holds the check-in service settings
type Config struct {
	SchemaURL      string
	SchemaToken    string
	SubmitURL      string
	SubmitToken    string
	TokenSecret    string
	SessionTTL     time.Duration
	PreviewTTL     time.Duration
	UploadTimeout  time.Duration
	UploadMode     string
	SweepSchedule  string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PublicBasePath string
}

const devTokenSecret = "checkin-dev-secret-change-me"

// LoadConfig reads CHECKIN.* settings
func LoadConfig() Config {
	sessionTTL, err := settings.Get("CHECKIN.SESSION_TTL", "2h").Duration()
	if err != nil || sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}
	previewTTL, err := settings.Get("CHECKIN.PREVIEW_TTL", "2h").Duration()
	if err != nil || previewTTL <= 0 {
		previewTTL = sessionTTL
	}
	uploadTimeout, err := settings.Get("CHECKIN.UPLOAD_TIMEOUT", "2m").Duration()
	if err != nil {
		uploadTimeout = 2 * time.Minute
	}
	initialBackoff, err := settings.Get("CHECKIN.SUBMIT_INITIAL_BACKOFF", "1s").Duration()
	if err != nil {
		initialBackoff = time.Second
	}
	maxBackoff, err := settings.Get("CHECKIN.SUBMIT_MAX_BACKOFF", "10s").Duration()
	if err != nil {
		maxBackoff = 10 * time.Second
	}

	config := Config{
		SchemaURL:      settings.Get("CHECKIN.SCHEMA_URL").String(),
		SchemaToken:    settings.Get("CHECKIN.SCHEMA_TOKEN").String(),
		SubmitURL:      settings.Get("CHECKIN.SUBMIT_URL").String(),
		SubmitToken:    settings.Get("CHECKIN.SUBMIT_TOKEN").String(),
		TokenSecret:    settings.Get("CHECKIN.TOKEN_SECRET").String(),
		SessionTTL:     sessionTTL,
		PreviewTTL:     previewTTL,
		UploadTimeout:  uploadTimeout,
		UploadMode:     settings.Get("S3.UPLOAD_MODE", "presign").String(),
		SweepSchedule:  settings.Get("CHECKIN.SWEEP_SCHEDULE", "0 */5 * * * *").String(),
		MaxRetries:     settings.Get("CHECKIN.SUBMIT_MAX_RETRIES", 2).Int(),
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
		PublicBasePath: settings.Get("APP.BASE_PATH", "").String(),
	}

	if config.TokenSecret == "" {
		log.Warning("CHECKIN.TOKEN_SECRET is not set, using a development secret")
		config.TokenSecret = devTokenSecret
	}
	return config
}
