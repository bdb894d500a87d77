package checkin

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/iesreza/checkin-backend/lib/formengine"
	"github.com/iesreza/checkin-backend/lib/upload"
)

// memoryPersister keeps JSON snapshots the way the redis snapshot store does
type memoryPersister struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{data: make(map[string][]byte)}
}

func (m *memoryPersister) Save(_ context.Context, id string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = b
	return nil
}

func (m *memoryPersister) Load(_ context.Context, id string, v any) (bool, error) {
	m.mu.Lock()
	b, ok := m.data[id]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, v)
}

func (m *memoryPersister) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func (m *memoryPersister) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[id]
	return ok
}

var failingUploader = upload.UploaderFunc(func(context.Context, upload.Request) (string, error) {
	return "", errNoStorage
})

func TestRegistryOpenGetClose(t *testing.T) {
	registry := NewRegistry(failingUploader, upload.NewMemoryPreviews())
	ctx := context.Background()

	sess := registry.Open(ctx, "hotel-1", formengine.ScreenDetail, testAttributes(), "")
	if got, ok := registry.Get(ctx, sess.ID); !ok || got != sess {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := sess.Attribute("first_name"); !ok {
		t.Error("attribute first_name missing")
	}
	if !registry.Close(ctx, sess.ID) {
		t.Error("Close of a live session returned false")
	}
	if _, ok := registry.Get(ctx, sess.ID); ok {
		t.Error("closed session still found")
	}
	if registry.Close(ctx, sess.ID) {
		t.Error("second Close returned true")
	}
}

func TestRegistryRestoresFromSnapshot(t *testing.T) {
	persister := newMemoryPersister()
	ctx := context.Background()

	first := NewRegistry(failingUploader, upload.NewMemoryPreviews(), WithPersister(persister))
	sess := first.Open(ctx, "hotel-1", formengine.ScreenDetail, testAttributes(), "")
	sess.Store().SetValue("first_name", "Jane", false)
	sess.Store().SetCountry("FR")
	first.Persist(ctx, sess)

	second := NewRegistry(failingUploader, upload.NewMemoryPreviews(), WithPersister(persister))
	restored, ok := second.Get(ctx, sess.ID)
	if !ok {
		t.Fatal("session not restored")
	}
	if restored == sess {
		t.Fatal("restored session must be a new instance")
	}
	snap := restored.Store().Snapshot()
	if snap.Values.Get("first_name") != "Jane" || snap.Country != "FR" {
		t.Errorf("restored state = %+v", snap)
	}
	if restored.EntityID != "hotel-1" || restored.Screen != formengine.ScreenDetail || !restored.Store().Valid() {
		t.Errorf("restored session = %+v valid=%v", restored, restored.Store().Valid())
	}

	second.Close(ctx, sess.ID)
	if persister.has(sess.ID) {
		t.Error("Close must delete the snapshot")
	}
}

func TestRegistrySweep(t *testing.T) {
	previews := upload.NewMemoryPreviews()
	registry := NewRegistry(failingUploader, previews)
	ctx := context.Background()
	sess := registry.Open(ctx, "hotel-1", formengine.ScreenDetail, testAttributes(), "")

	if evicted := registry.Sweep(time.Hour); len(evicted) != 0 {
		t.Errorf("fresh session evicted: %v", evicted)
	}
	evicted := registry.Sweep(-time.Second)
	if len(evicted) != 1 || evicted[0] != sess.ID {
		t.Fatalf("evicted = %v", evicted)
	}
	if registry.Len() != 0 {
		t.Errorf("len = %d", registry.Len())
	}
}

func TestRegistrySweepKeepsSnapshot(t *testing.T) {
	persister := newMemoryPersister()
	registry := NewRegistry(failingUploader, upload.NewMemoryPreviews(), WithPersister(persister))
	ctx := context.Background()
	sess := registry.Open(ctx, "hotel-1", formengine.ScreenDetail, testAttributes(), "")

	registry.Sweep(-time.Second)
	if !persister.has(sess.ID) {
		t.Fatal("sweep must leave the snapshot for restoration")
	}
	if _, ok := registry.Get(ctx, sess.ID); !ok {
		t.Error("swept session could not be restored")
	}
}

func TestSweeperSchedule(t *testing.T) {
	registry := NewRegistry(failingUploader, nil)
	if _, err := NewSweeper(registry, "not a schedule", time.Hour); err == nil {
		t.Error("invalid schedule accepted")
	}
	sweeper, err := NewSweeper(registry, "0 */5 * * * *", time.Hour)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	sweeper.Start()
	sweeper.Stop()
}
