package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/getevo/evo/v2/lib/log"
)

// Forwarder delivers assembled payloads to the check-in submission API.
// Network errors and 5xx answers are retried with exponential backoff;
// 4xx answers are final.
type Forwarder struct {
	URL            string
	Token          string
	Client         *http.Client
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// SubmitError is a non-success answer of the submission API
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission api returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether resubmitting may succeed
func (e *SubmitError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NewForwarder creates a forwarder from config, nil when no submission URL is set
func NewForwarder(config Config) *Forwarder {
	if config.SubmitURL == "" {
		return nil
	}
	return &Forwarder{
		URL:            config.SubmitURL,
		Token:          config.SubmitToken,
		Client:         &http.Client{Timeout: 30 * time.Second},
		MaxRetries:     config.MaxRetries,
		InitialBackoff: config.InitialBackoff,
		MaxBackoff:     config.MaxBackoff,
	}
}

// Forward posts payload, retrying transient failures. It returns the number of attempts made.
func (f *Forwarder) Forward(ctx context.Context, sessionID string, payload any) (attempts int, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		attempts++
		err = f.send(ctx, sessionID, body)
		if err == nil {
			if attempt > 0 {
				log.Info("[Checkin:Forward] Session %s delivered on retry %d", sessionID, attempt)
			}
			return attempts, nil
		}

		var serr *SubmitError
		if errors.As(err, &serr) && !serr.Retryable() {
			return attempts, err
		}
		if attempt == f.MaxRetries {
			break
		}

		backoff := f.calculateBackoff(attempt)
		log.Warning("[Checkin:Forward] Session %s failed (attempt %d/%d): %v. Retrying in %v",
			sessionID, attempt+1, f.MaxRetries+1, err, backoff)

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return attempts, err
}

func (f *Forwarder) send(ctx context.Context, sessionID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Checkin-Service/1.0")
	req.Header.Set("X-Checkin-Session", sessionID)
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2000))
	return &SubmitError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

// calculateBackoff returns InitialBackoff * 2^attempt capped at MaxBackoff
func (f *Forwarder) calculateBackoff(attempt int) time.Duration {
	backoff := time.Duration(float64(f.InitialBackoff) * math.Pow(2, float64(attempt)))
	if f.MaxBackoff > 0 && backoff > f.MaxBackoff {
		backoff = f.MaxBackoff
	}
	return backoff
}
