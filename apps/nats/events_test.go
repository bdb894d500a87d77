package nats

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPublishEventWithoutConnection(t *testing.T) {
	err := PublishEvent(SubjectSubmitted, map[string]string{"session": "abc"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishEvent() error = %v, want ErrNotConnected", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	type submitted struct {
		Session string `json:"session"`
		Screen  string `json:"screen"`
	}
	body, err := json.Marshal(NewEvent(SubjectSubmitted, submitted{Session: "abc", Screen: "detail"}))
	if err != nil {
		t.Fatal(err)
	}

	var data submitted
	event, err := DecodeEvent(body, &data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if event.Subject != SubjectSubmitted || event.ID == "" {
		t.Errorf("unexpected envelope %+v", event)
	}
	if data.Session != "abc" || data.Screen != "detail" {
		t.Errorf("data = %+v", data)
	}
}
