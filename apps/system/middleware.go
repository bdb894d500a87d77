package system

import (
	"crypto/subtle"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/getevo/evo/v2/lib/settings"
	"github.com/iesreza/checkin-backend/lib/response"
)

var apiKey string

// InitAPIKey loads the admin API key from settings
func InitAPIKey() {
	apiKey = settings.Get("CHECKIN.ADMIN_API_KEY").String()
	if apiKey == "" {
		log.Warning("CHECKIN.ADMIN_API_KEY is not set, admin APIs are disabled")
	}
}

// providedKey extracts the key of an "APIKEY <key>" header
func providedKey(header string) string {
	if len(header) > 7 && header[:7] == "APIKEY " {
		return header[7:]
	}
	return ""
}

// APIKeyMiddleware guards admin endpoints.
// Expected header format: Authorization: APIKEY <key>
func APIKeyMiddleware(req *evo.Request) error {
	if apiKey == "" {
		req.WriteResponse(response.InternalError("Admin API key not configured"))
		return nil
	}

	key := providedKey(req.Header("Authorization"))
	if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
		req.WriteResponse(response.Unauthorized("Invalid or missing API key. Use header: Authorization: APIKEY <key>"))
		return nil
	}

	return req.Next()
}
