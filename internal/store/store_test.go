package store_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

func setupTestStore(t *testing.T, opts ...store.Option) (*store.Store, func()) {
	t.Helper()
	return setupTestStoreWithEmitter(t, store.NewNoopEmitter(), opts...)
}

func setupTestStoreWithEmitter(t *testing.T, emitter store.EventEmitter, opts ...store.Option) (*store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil, emitter, opts...)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

// utcKeyer treats every timezone as UTC.
type utcKeyer struct{}

func (utcKeyer) ToUTC(_ string, day time.Weekday, hour int) domain.BucketKey {
	return domain.BucketKey{Day: day, Hour: hour}
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testProfile(userID, username string) *domain.Profile {
	return &domain.Profile{
		UserID:    userID,
		Username:  username,
		Name:      "Name " + userID,
		Avatar:    userID + ".png",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}
