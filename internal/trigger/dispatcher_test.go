package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
)

type call struct {
	kind   string
	userID string
	detail string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  error
}

func (r *recorder) add(c call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.fail
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) Propagate(_ context.Context, userID string, frag domain.Fragment) (int, error) {
	return 1, r.add(call{kind: "propagate", userID: userID, detail: frag.Name})
}

func (r *recorder) Replace(_ context.Context, _ *store.Batch, userID string, _ *domain.NudgePreferences, timezone string, _ time.Time) error {
	return r.add(call{kind: "replace", userID: userID, detail: timezone})
}

func (r *recorder) RemoveAll(_ context.Context, _ *store.Batch, userID string) error {
	return r.add(call{kind: "remove_buckets", userID: userID})
}

func (r *recorder) Remove(_ context.Context, userID string) error {
	return r.add(call{kind: "remove_channel", userID: userID})
}

func newBound(t *testing.T, cfg Config) (*Dispatcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	d := NewDispatcher(cfg, nil)
	d.Bind(Handlers{Propagator: rec, Memberships: rec, Channels: rec})
	return d, rec
}

func profile(name, tz string) *domain.Profile {
	return &domain.Profile{
		UserID:   "u1",
		Username: "ana",
		Name:     name,
		Timezone: tz,
		Nudge:    &domain.NudgePreferences{Occurrence: domain.OccurrenceDaily, TimesOfDay: []string{"09:00"}},
	}
}

func TestHandle_CreateSkipsPropagation(t *testing.T) {
	d, rec := newBound(t, DefaultConfig())

	err := d.Handle(context.Background(), store.ProfileChanged{After: profile("Ana", "Europe/Paris")})
	require.NoError(t, err)

	assert.Equal(t, []call{{kind: "replace", userID: "u1", detail: "Europe/Paris"}}, rec.Calls())
}

func TestHandle_FragmentChangePropagates(t *testing.T) {
	d, rec := newBound(t, DefaultConfig())

	before := profile("Ana", "Europe/Paris")
	after := profile("Ana B", "Europe/Paris")
	require.NoError(t, d.Handle(context.Background(), store.ProfileChanged{Before: before, After: after}))

	assert.Equal(t, []call{{kind: "propagate", userID: "u1", detail: "Ana B"}}, rec.Calls())
}

func TestHandle_TimezoneChangeReplacesBuckets(t *testing.T) {
	d, rec := newBound(t, DefaultConfig())

	before := profile("Ana", "Europe/Paris")
	after := profile("Ana", "Asia/Tokyo")
	require.NoError(t, d.Handle(context.Background(), store.ProfileChanged{Before: before, After: after}))

	assert.Equal(t, []call{{kind: "replace", userID: "u1", detail: "Asia/Tokyo"}}, rec.Calls())
}

func TestHandle_UnrelatedChangeDoesNothing(t *testing.T) {
	d, rec := newBound(t, DefaultConfig())

	p := profile("Ana", "Europe/Paris")
	require.NoError(t, d.Handle(context.Background(), store.ProfileChanged{Before: p, After: p}))

	assert.Empty(t, rec.Calls())
}

func TestHandle_DeleteCleansUp(t *testing.T) {
	d, rec := newBound(t, DefaultConfig())

	require.NoError(t, d.Handle(context.Background(), store.ProfileDeleted{Profile: profile("Ana", "")}))

	assert.Equal(t, []call{
		{kind: "remove_buckets", userID: "u1"},
		{kind: "remove_channel", userID: "u1"},
	}, rec.Calls())
}

func TestHandle_JoinsErrors(t *testing.T) {
	d, rec := newBound(t, DefaultConfig())
	rec.fail = errors.New("boom")

	err := d.Handle(context.Background(), store.ProfileDeleted{Profile: profile("Ana", "")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remove buckets: boom")
	assert.Contains(t, err.Error(), "remove channel: boom")
}

func TestHandle_UnboundIsNoop(t *testing.T) {
	d := NewDispatcher(DefaultConfig(), nil)
	assert.NoError(t, d.Handle(context.Background(), store.ProfileDeleted{Profile: profile("Ana", "")}))
	assert.NoError(t, d.Handle(context.Background(), "unknown"))
}

func TestDispatcher_EmitIsAsyncAndOrderedPerUser(t *testing.T) {
	d, rec := newBound(t, Config{Workers: 3, QueueSize: 16, Timeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	zones := []string{"Europe/Paris", "Asia/Tokyo", "America/New_York", "UTC"}
	prev := profile("Ana", "")
	for _, tz := range zones {
		next := profile("Ana", tz)
		d.Emit(store.ProfileChanged{Before: prev, After: next})
		prev = next
	}

	require.Eventually(t, func() bool { return len(rec.Calls()) == len(zones) }, 2*time.Second, 10*time.Millisecond)
	for i, c := range rec.Calls() {
		assert.Equal(t, zones[i], c.detail)
	}

	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_ShutdownDrainsAndRejects(t *testing.T) {
	d, rec := newBound(t, Config{Workers: 1, QueueSize: 8, Timeout: time.Second})

	// Queued before Start, handled once workers run.
	d.Emit(store.ProfileDeleted{Profile: profile("Ana", "")})
	d.Start(context.Background())
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, rec.Calls(), 2)

	d.Emit(store.ProfileDeleted{Profile: profile("Ana", "")})
	assert.Len(t, rec.Calls(), 2)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d, rec := newBound(t, Config{Workers: 1, QueueSize: 1, Timeout: time.Second})

	d.Emit(store.ProfileDeleted{Profile: profile("Ana", "")})
	d.Emit(store.ProfileDeleted{Profile: profile("Ana", "")})

	d.Start(context.Background())
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Len(t, rec.Calls(), 2)
}

func TestShardOfIsStable(t *testing.T) {
	for _, n := range []int{1, 2, 7} {
		s := shardOf("user-42", n)
		assert.Equal(t, s, shardOf("user-42", n))
		assert.Less(t, s, n)
	}
}
