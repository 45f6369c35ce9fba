package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
	"github.com/anjalik1505/town-functions-sub003/internal/nudge"
	"github.com/anjalik1505/town-functions-sub003/internal/store"
	"github.com/anjalik1505/town-functions-sub003/internal/validation"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store   *store.Store
	buckets *store.Buckets
	calc    *nudge.Calculator
	logger  *slog.Logger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calc := nudge.NewCalculator(logger)
	return &testEnv{
		store:   s,
		buckets: store.NewBuckets(s, calc),
		calc:    calc,
		logger:  logger,
	}
}

func (e *testEnv) profiles() *ProfileService {
	svc := NewProfileService(e.store, e.buckets, validation.New(), e.logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func (e *testEnv) friendships() *FriendshipService {
	svc := NewFriendshipService(e.store, e.logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func (e *testEnv) invitations() *InvitationService {
	svc := NewInvitationService(e.store, e.logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func (e *testEnv) groups() *GroupService {
	svc := NewGroupService(e.store, e.logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func (e *testEnv) createProfile(t *testing.T, userID, name string) *domain.Profile {
	t.Helper()
	p := &domain.Profile{
		UserID:    userID,
		Username:  userID,
		Name:      name,
		Avatar:    "https://cdn.example/" + userID + ".png",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, e.store.SaveProfile(context.Background(), nil, p))
	return p
}

// befriend writes both sides of a pair the way an accepted request does.
func (e *testEnv) befriend(t *testing.T, a, b *domain.Profile) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Update(ctx, func(batch *store.Batch) error {
		if _, err := e.store.UpsertFriend(ctx, batch, a.UserID, b.UserID, domain.FragmentPatch(b.Fragment()), testNow); err != nil {
			return err
		}
		_, err := e.store.UpsertFriend(ctx, batch, b.UserID, a.UserID, domain.FragmentPatch(a.Fragment()), testNow)
		return err
	}))
}

func (e *testEnv) createGroup(t *testing.T, groupID string, members ...*domain.Profile) {
	t.Helper()
	g := &domain.Group{
		ID:             groupID,
		Name:           groupID,
		CreatedBy:      members[0].UserID,
		MemberProfiles: map[string]domain.Fragment{},
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}
	for _, m := range members {
		g.Members = append(g.Members, m.UserID)
		g.MemberProfiles[m.UserID] = m.Fragment()
	}
	require.NoError(t, e.store.CreateGroup(context.Background(), nil, g))
}
