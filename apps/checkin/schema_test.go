package checkin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iesreza/checkin-backend/lib/formengine"
)

const detailSchema = `{
	"items": [
		{"name": "nationality", "label": "Nationality", "field_type": "Dropdown", "section": "Guest", "position": 2,
		 "context": {"options": {"IN": "India", "FR": "France"}}},
		{"name": "first_name", "label": "First Name", "field_type": "Text", "section": "Guest", "position": 1, "is_required": true}
	],
	"count": 2
}`

func TestDecodeSchema(t *testing.T) {
	attrs, err := DecodeSchema([]byte(detailSchema))
	if err != nil {
		t.Fatalf("DecodeSchema: %v", err)
	}
	if len(attrs) != 2 || attrs[0].Name != "first_name" || attrs[1].Name != "nationality" {
		t.Fatalf("attrs = %+v", attrs)
	}
	if keys := attrs[1].Context.Options.Keys(); len(keys) != 2 || keys[0] != "IN" {
		t.Errorf("options = %v", keys)
	}

	for _, body := range []string{`{"count": 0}`, `not json`, `{"items": [{"name": "x", "field_type": "Hologram"}]}`} {
		if _, err := DecodeSchema([]byte(body)); err == nil {
			t.Errorf("DecodeSchema(%s) succeeded", body)
		}
	}
}

func TestRemoteSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("entity_id") != "hotel-1" || r.URL.Query().Get("screen") != "detail" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer schema-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(detailSchema))
	}))
	defer srv.Close()

	attrs, err := NewRemoteSchema(srv.URL, "schema-token").Load(context.Background(), "hotel-1", formengine.ScreenDetail)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(attrs) != 2 {
		t.Errorf("len = %d", len(attrs))
	}

	if _, err := NewRemoteSchema(srv.URL, "wrong").Load(context.Background(), "hotel-1", formengine.ScreenDetail); err == nil {
		t.Error("non-200 answer must fail")
	}
}
