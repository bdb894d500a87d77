package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix roots every check-in event subject
const SubjectPrefix = "checkin"

// Check-in event subjects
const (
	SubjectSessionOpened    = "checkin.session.opened"
	SubjectSessionClosed    = "checkin.session.closed"
	SubjectSubmitted        = "checkin.submitted"
	SubjectSubmissionFailed = "checkin.submission.failed"
	SubjectSubmissionRetry  = "checkin.submission.retry"
)

// Event is the envelope of every check-in event
type Event struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent wraps data for subject
func NewEvent(subject string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// PublishEvent publishes data on subject.
// Events go through JetStream when the event stream exists, deduplicated by event id.
func PublishEvent(subject string, data any) error {
	event := NewEvent(subject, data)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}

	mu.RLock()
	js, ready := JS, streamReady
	mu.RUnlock()

	if js != nil && ready && IsConnected() {
		if _, err := js.Publish(subject, body, nats.MsgId(event.ID)); err != nil {
			return fmt.Errorf("failed to publish %s event: %w", subject, err)
		}
		return nil
	}
	return Publish(subject, body)
}

// DecodeEvent parses an event envelope, decoding its data into v
func DecodeEvent(data []byte, v any) (Event, error) {
	var raw struct {
		Event
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, err
	}
	event := raw.Event
	if v != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, v); err != nil {
			return event, err
		}
	}
	event.Data = v
	return event, nil
}
