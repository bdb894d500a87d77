package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iesreza/checkin-backend/apps/models"
	"github.com/iesreza/checkin-backend/lib/formengine"
)

// SchemaSource supplies the attributes of one check-in screen
type SchemaSource interface {
	Load(ctx context.Context, entityID string, screen formengine.Screen) ([]formengine.Attribute, error)
}

// SchemaFunc adapts a function to SchemaSource
type SchemaFunc func(ctx context.Context, entityID string, screen formengine.Screen) ([]formengine.Attribute, error)

// Load implements SchemaSource
func (f SchemaFunc) Load(ctx context.Context, entityID string, screen formengine.Screen) ([]formengine.Attribute, error) {
	return f(ctx, entityID, screen)
}

// DBSchema reads attributes managed through the admin API
type DBSchema struct{}

// Load implements SchemaSource
func (DBSchema) Load(_ context.Context, entityID string, screen formengine.Screen) ([]formengine.Attribute, error) {
	return models.LoadCheckinAttributes(entityID, screen)
}

// RemoteSchema reads attributes from an external check-in attribute API
// answering GET <url>?entity_id=..&screen=.. with {items, count}
type RemoteSchema struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewRemoteSchema creates a remote schema source
func NewRemoteSchema(endpoint, token string) *RemoteSchema {
	return &RemoteSchema{
		URL:    endpoint,
		Token:  token,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Load implements SchemaSource
func (r *RemoteSchema) Load(ctx context.Context, entityID string, screen formengine.Screen) ([]formengine.Attribute, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid schema url: %w", err)
	}
	q := u.Query()
	q.Set("entity_id", entityID)
	q.Set("screen", string(screen))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schema api returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return DecodeSchema(body)
}

// DecodeSchema parses a {items, count} schema document
func DecodeSchema(body []byte) ([]formengine.Attribute, error) {
	var schema formengine.Schema
	if err := json.Unmarshal(body, &schema); err != nil {
		return nil, fmt.Errorf("malformed schema: %w", err)
	}
	if schema.Items == nil {
		return nil, fmt.Errorf("malformed schema: missing items")
	}
	return formengine.SortAttributes(schema.Items), nil
}
