package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type memoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]bool
}

func newMemoryMarkerStore() *memoryMarkerStore {
	return &memoryMarkerStore{markers: make(map[string]bool)}
}

func (s *memoryMarkerStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markers[key] {
		return false, nil
	}
	s.markers[key] = true
	return true, nil
}

func (s *memoryMarkerStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, key)
	return nil
}

func newTestService(markers markerStore, push func(ctx context.Context, payload []byte) error) *Service {
	return &Service{
		markers: markers,
		push:    push,
		log:     logrus.NewEntry(logrus.New()),
	}
}

func TestEnqueueSyncRejectsDuplicate(t *testing.T) {
	markers := newMemoryMarkerStore()
	svc := newTestService(markers, func(ctx context.Context, payload []byte) error { return nil })

	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", "user-1"); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	_, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", "user-1")
	if !errors.Is(err, ErrJobAlreadyQueued) {
		t.Fatalf("second enqueue error = %v, want ErrJobAlreadyQueued", err)
	}
	if err.Error() != "A sync job for this configuration is already in progress." {
		t.Errorf("rejection message = %q", err.Error())
	}
}

func TestEnqueueSyncAllowsDifferentConfigOrType(t *testing.T) {
	markers := newMemoryMarkerStore()
	svc := newTestService(markers, func(ctx context.Context, payload []byte) error { return nil })

	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Same config, different service type.
	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "drive", "manual", ""); err != nil {
		t.Errorf("drive enqueue for same config: %v", err)
	}
	// Different config, same type.
	if _, err := svc.EnqueueSync(context.Background(), "cfg-2", "gmail", "manual", ""); err != nil {
		t.Errorf("gmail enqueue for other config: %v", err)
	}
}

func TestEnqueueSyncReleasesMarkerOnPushFailure(t *testing.T) {
	markers := newMemoryMarkerStore()
	svc := newTestService(markers, func(ctx context.Context, payload []byte) error {
		return errors.New("redis down")
	})

	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", ""); err == nil {
		t.Fatal("expected push failure to surface")
	}

	// The marker must be free again so a later enqueue can succeed.
	svc.push = func(ctx context.Context, payload []byte) error { return nil }
	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", ""); err != nil {
		t.Fatalf("enqueue after failed push: %v", err)
	}
}

func TestEnqueueSyncAfterRelease(t *testing.T) {
	markers := newMemoryMarkerStore()
	svc := newTestService(markers, func(ctx context.Context, payload []byte) error { return nil })

	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Worker completion releases the marker.
	if err := markers.Release(context.Background(), markerKey("gmail_sync", "cfg-1")); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := svc.EnqueueSync(context.Background(), "cfg-1", "gmail", "manual", ""); err != nil {
		t.Fatalf("enqueue after release: %v", err)
	}
}
