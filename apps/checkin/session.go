package checkin

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/google/uuid"
	"github.com/iesreza/checkin-backend/lib/formengine"
	"github.com/iesreza/checkin-backend/lib/upload"
)

// Session is one guest's check-in screen: its form store and upload pipeline
type Session struct {
	ID          string
	EntityID    string
	Screen      formengine.Screen
	CreatedAt   time.Time
	SchemaError string

	store    *formengine.Store
	pipeline *upload.Pipeline
	lastSeen atomic.Int64
	submitMu sync.Mutex
}

// Store returns the session's form store
func (s *Session) Store() *formengine.Store {
	return s.store
}

// Pipeline returns the session's upload pipeline
func (s *Session) Pipeline() *upload.Pipeline {
	return s.pipeline
}

// Touch marks the session as used now
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the last request on the session
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Attribute returns the attribute called name
func (s *Session) Attribute(name string) (formengine.Attribute, bool) {
	for _, attr := range s.store.Attributes() {
		if attr.Name == name {
			return attr, true
		}
	}
	return formengine.Attribute{}, false
}

// SnapshotPersister keeps session records outside the process
type SnapshotPersister interface {
	Save(ctx context.Context, id string, v any) error
	Load(ctx context.Context, id string, v any) (bool, error)
	Delete(ctx context.Context, id string) error
}

// sessionRecord is the persisted form of a session
type sessionRecord struct {
	ID          string                 `json:"id"`
	EntityID    string                 `json:"entity_id"`
	Screen      formengine.Screen      `json:"screen"`
	CreatedAt   time.Time              `json:"created_at"`
	SchemaError string                 `json:"schema_error,omitempty"`
	Attributes  []formengine.Attribute `json:"attributes"`
	State       formengine.Snapshot    `json:"state"`
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithPersister stores session snapshots through p
func WithPersister(p SnapshotPersister) RegistryOption {
	return func(r *Registry) {
		r.persister = p
	}
}

// WithUploadTimeout bounds each document upload
func WithUploadTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.uploadTimeout = d
	}
}

// WithUploadObserver receives every upload result of every session
func WithUploadObserver(fn func(*Session, upload.Result)) RegistryOption {
	return func(r *Registry) {
		r.observer = fn
	}
}

// Registry owns the live sessions of this instance
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	uploader      upload.Uploader
	previews      upload.PreviewStore
	persister     SnapshotPersister
	uploadTimeout time.Duration
	observer      func(*Session, upload.Result)
}

// NewRegistry creates a registry whose sessions upload through uploader and keep previews in previews
func NewRegistry(uploader upload.Uploader, previews upload.PreviewStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		uploader: uploader,
		previews: previews,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) newSession(id, entityID string, screen formengine.Screen, createdAt time.Time) *Session {
	sess := &Session{
		ID:        id,
		EntityID:  entityID,
		Screen:    screen,
		CreatedAt: createdAt,
	}
	var storeOpts []formengine.StoreOption
	if r.previews != nil {
		storeOpts = append(storeOpts, formengine.WithPreviewReleaser(r.previews.Release))
	}
	sess.store = formengine.NewStore(screen, storeOpts...)

	pipelineOpts := []upload.Option{
		upload.WithObserver(func(res upload.Result) {
			r.Persist(context.Background(), sess)
			if r.observer != nil {
				r.observer(sess, res)
			}
		}),
	}
	if r.uploadTimeout > 0 {
		pipelineOpts = append(pipelineOpts, upload.WithTimeout(r.uploadTimeout))
	}
	sess.pipeline = upload.NewPipeline(sess.store, r.uploader, r.previews, pipelineOpts...)
	sess.Touch()
	return sess
}

// Open creates a session for screen initialized with attrs
func (r *Registry) Open(ctx context.Context, entityID string, screen formengine.Screen, attrs []formengine.Attribute, schemaErr string) *Session {
	sess := r.newSession(uuid.NewString(), entityID, screen, time.Now())
	sess.SchemaError = schemaErr
	sess.store.Initialize(attrs)

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	r.Persist(ctx, sess)
	return sess
}

// Get returns the live session id, restoring it from its snapshot when this instance does not hold it
func (r *Registry) Get(ctx context.Context, id string) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		sess.Touch()
		return sess, true
	}
	if r.persister == nil {
		return nil, false
	}

	var record sessionRecord
	found, err := r.persister.Load(ctx, id, &record)
	if err != nil {
		log.Warning("[Checkin:Registry] Failed to load session %s: %v", id, err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	restored := r.newSession(record.ID, record.EntityID, record.Screen, record.CreatedAt)
	restored.SchemaError = record.SchemaError
	restored.store.Initialize(record.Attributes)
	restored.store.Restore(record.State)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[id]; ok {
		restored.pipeline.Close()
		return existing, true
	}
	r.sessions[id] = restored
	log.Debug("[Checkin:Registry] Restored session %s", id)
	return restored, true
}

// Persist saves the session snapshot when a persister is configured
func (r *Registry) Persist(ctx context.Context, sess *Session) {
	if r.persister == nil {
		return
	}
	record := sessionRecord{
		ID:          sess.ID,
		EntityID:    sess.EntityID,
		Screen:      sess.Screen,
		CreatedAt:   sess.CreatedAt,
		SchemaError: sess.SchemaError,
		Attributes:  sess.store.Attributes(),
		State:       sess.store.Snapshot(),
	}
	if err := r.persister.Save(ctx, sess.ID, record); err != nil {
		log.Warning("[Checkin:Registry] Failed to persist session %s: %v", sess.ID, err)
	}
}

// Close tears a session down: uploads stop, previews are released and the snapshot is deleted
func (r *Registry) Close(ctx context.Context, id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		sess.pipeline.Close()
		sess.store.Reset()
	}
	if r.persister != nil {
		if err := r.persister.Delete(ctx, id); err != nil {
			log.Warning("[Checkin:Registry] Failed to delete session %s: %v", id, err)
		}
	}
	return ok
}

// Sweep evicts sessions idle for longer than idle and returns their ids.
// Without a persister evicted sessions are torn down; with one they are only
// dropped from memory so another request can restore them until the snapshot expires.
func (r *Registry) Sweep(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	var evicted []*Session
	for id, sess := range r.sessions {
		if sess.LastSeen().Before(cutoff) {
			evicted = append(evicted, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(evicted))
	for _, sess := range evicted {
		sess.pipeline.Close()
		if r.persister == nil {
			sess.store.Reset()
		}
		ids = append(ids, sess.ID)
	}
	return ids
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops every upload without discarding state
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.pipeline.Close()
		r.Persist(context.Background(), sess)
	}
}
