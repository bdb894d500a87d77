package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "checkin:session:"

// SnapshotStore persists check-in session state as JSON with a sliding TTL
type SnapshotStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSnapshotStore creates a snapshot store on client
func NewSnapshotStore(client redis.UniversalClient, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SnapshotStore{client: client, ttl: ttl}
}

// Save stores v under id, refreshing its TTL
func (s *SnapshotStore) Save(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.client.Set(ctx, snapshotKeyPrefix+id, data, s.ttl).Err()
}

// Load decodes the snapshot of id into v; found is false when none is stored
func (s *SnapshotStore) Load(ctx context.Context, id string, v any) (found bool, err error) {
	data, err := s.client.Get(ctx, snapshotKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return true, nil
}

// Delete removes the snapshot of id
func (s *SnapshotStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, snapshotKeyPrefix+id).Err()
}
