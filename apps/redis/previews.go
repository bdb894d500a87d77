package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/iesreza/checkin-backend/lib/upload"
	"github.com/redis/go-redis/v9"
)

const previewKeyPrefix = "checkin:preview:"

// RedisPreviews keeps image previews in Redis so any instance can serve them.
// Entries expire after TTL even when a release is lost.
type RedisPreviews struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ upload.PreviewStore = (*RedisPreviews)(nil)

// NewRedisPreviews creates a preview store on client
func NewRedisPreviews(client redis.UniversalClient, ttl time.Duration) *RedisPreviews {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisPreviews{client: client, ttl: ttl}
}

// Acquire stores preview under a new reference
func (p *RedisPreviews) Acquire(ctx context.Context, preview upload.Preview) (string, error) {
	ref := uuid.NewString()
	key := previewKeyPrefix + ref
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "content_type", preview.ContentType, "data", preview.Data)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}
	return ref, nil
}

// Release deletes the preview behind ref
func (p *RedisPreviews) Release(ref string) {
	if ref == "" {
		return
	}
	releaseCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Del(releaseCtx, previewKeyPrefix+ref).Err(); err != nil {
		log.Warning("[Redis:Preview] Failed to release %s: %v", ref, err)
	}
}

// Get returns the preview behind ref
func (p *RedisPreviews) Get(ref string) (upload.Preview, bool) {
	getCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	values, err := p.client.HGetAll(getCtx, previewKeyPrefix+ref).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warning("[Redis:Preview] Failed to load %s: %v", ref, err)
		}
		return upload.Preview{}, false
	}
	data, ok := values["data"]
	if !ok {
		return upload.Preview{}, false
	}
	return upload.Preview{ContentType: values["content_type"], Data: []byte(data)}, true
}
