package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjalik1505/town-functions-sub003/internal/domain"
)

func newTestPropagator(e *testEnv, chunk int) *Propagator {
	cfg := DefaultPropagationConfig()
	cfg.ChunkSize = chunk
	cfg.PageSize = 2
	cfg.Backoff = time.Millisecond
	p := NewPropagator(e.store, cfg, e.logger)
	p.now = func() time.Time { return testNow.Add(time.Hour) }
	return p
}

func TestPropagate_UpdatesEveryEmbeddedLocation(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	u := e.createProfile(t, "user-u", "Una")
	f1 := e.createProfile(t, "friend-1", "Fay")
	f2 := e.createProfile(t, "friend-2", "Finn")
	other := e.createProfile(t, "other", "Otto")

	e.befriend(t, u, f1)
	e.befriend(t, u, f2)
	e.befriend(t, f1, other)
	e.createGroup(t, "grp-1", u, f1)
	e.createGroup(t, "grp-2", f2, u)
	e.createGroup(t, "grp-3", u, other)
	e.createGroup(t, "grp-unrelated", f1, other)

	inv, err := e.invitations().Create(ctx, u.UserID)
	require.NoError(t, err)

	frag := domain.Fragment{Username: "una.new", Name: "Una Renamed", Avatar: "https://cdn.example/new.png"}
	n, err := newTestPropagator(e, 500).Propagate(ctx, u.UserID, frag)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	for _, friendID := range []string{f1.UserID, f2.UserID} {
		row, err := e.store.GetFriend(ctx, friendID, u.UserID)
		require.NoError(t, err)
		assert.Equal(t, frag, row.Fragment())
		assert.Equal(t, testNow, row.CreatedAt, "merge must keep createdAt")
	}
	own, err := e.store.GetFriend(ctx, u.UserID, f1.UserID)
	require.NoError(t, err)
	assert.Equal(t, f1.Fragment(), own.Fragment())

	for _, gid := range []string{"grp-1", "grp-2", "grp-3"} {
		g, err := e.store.GetGroup(ctx, gid)
		require.NoError(t, err)
		assert.Equal(t, frag, g.MemberProfiles[u.UserID])
	}
	unrelated, err := e.store.GetGroup(ctx, "grp-unrelated")
	require.NoError(t, err)
	assert.Equal(t, f1.Fragment(), unrelated.MemberProfiles[f1.UserID])
	assert.Equal(t, other.Fragment(), unrelated.MemberProfiles[other.UserID])

	gotInv, err := e.store.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, frag, gotInv.Sender)

	untouched, err := e.store.GetFriend(ctx, f1.UserID, other.UserID)
	require.NoError(t, err)
	assert.Equal(t, other.Fragment(), untouched.Fragment())
}

func TestPropagate_Idempotent(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	u := e.createProfile(t, "user-u", "Una")
	f := e.createProfile(t, "friend", "Fay")
	e.befriend(t, u, f)
	e.createGroup(t, "grp-1", u, f)

	p := newTestPropagator(e, 500)
	frag := domain.Fragment{Username: "una", Name: "Una B", Avatar: ""}

	first, err := p.Propagate(ctx, u.UserID, frag)
	require.NoError(t, err)
	before, err := e.store.GetFriend(ctx, f.UserID, u.UserID)
	require.NoError(t, err)

	second, err := p.Propagate(ctx, u.UserID, frag)
	require.NoError(t, err)
	after, err := e.store.GetFriend(ctx, f.UserID, u.UserID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, after)
}

func TestPropagate_ChunksLargeFanOut(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	u := e.createProfile(t, "user-u", "Una")
	for i := range 7 {
		f := e.createProfile(t, fmt.Sprintf("friend-%d", i), "F")
		e.befriend(t, u, f)
	}

	frag := domain.Fragment{Username: "una", Name: "Chunked"}
	n, err := newTestPropagator(e, 3).Propagate(ctx, u.UserID, frag)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for i := range 7 {
		row, err := e.store.GetFriend(ctx, fmt.Sprintf("friend-%d", i), u.UserID)
		require.NoError(t, err)
		assert.Equal(t, "Chunked", row.Name)
	}
}

func TestPropagate_SkipsMissingMirror(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	u := e.createProfile(t, "user-u", "Una")
	f := e.createProfile(t, "friend", "Fay")
	_, err := e.store.UpsertFriend(ctx, nil, u.UserID, f.UserID, domain.FragmentPatch(f.Fragment()), testNow)
	require.NoError(t, err)

	n, err := newTestPropagator(e, 500).Propagate(ctx, u.UserID, domain.Fragment{Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = e.store.GetFriend(ctx, f.UserID, u.UserID)
	assert.Error(t, err, "propagation must not create a half pair")
}

func TestPropagate_PendingJoinRequestsOnly(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	u := e.createProfile(t, "user-u", "Una")
	sender := e.createProfile(t, "sender", "Sam")
	invitee := e.createProfile(t, "invitee", "Ivy")

	// u asks sender (u is requester) and invitee asks u (u is receiver).
	theirInv, err := e.invitations().Create(ctx, sender.UserID)
	require.NoError(t, err)
	outgoing, err := e.invitations().Join(ctx, u.UserID, theirInv.ID)
	require.NoError(t, err)

	myInv, err := e.invitations().Create(ctx, u.UserID)
	require.NoError(t, err)
	incoming, err := e.invitations().Join(ctx, invitee.UserID, myInv.ID)
	require.NoError(t, err)

	resolvedInv, err := e.invitations().Create(ctx, invitee.UserID)
	require.NoError(t, err)
	resolved, err := e.invitations().Join(ctx, u.UserID, resolvedInv.ID)
	require.NoError(t, err)
	_, err = e.friendships().Reject(ctx, invitee.UserID, resolved.ID)
	require.NoError(t, err)

	frag := domain.Fragment{Username: "una", Name: "Una Z"}
	n, err := newTestPropagator(e, 500).Propagate(ctx, u.UserID, frag)
	require.NoError(t, err)
	// 2 pending requests + 1 invitation sent by u.
	assert.Equal(t, 3, n)

	got, err := e.store.GetJoinRequest(ctx, outgoing.ID)
	require.NoError(t, err)
	assert.Equal(t, frag, got.Requester)
	assert.Equal(t, sender.Fragment(), got.Receiver)

	got, err = e.store.GetJoinRequest(ctx, incoming.ID)
	require.NoError(t, err)
	assert.Equal(t, frag, got.Receiver)

	got, err = e.store.GetJoinRequest(ctx, resolved.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Fragment(), got.Requester)
}

func TestPropagate_CancelledContextReportsEveryCategory(t *testing.T) {
	e := setupTestEnv(t)
	u := e.createProfile(t, "user-u", "Una")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := newTestPropagator(e, 500).Propagate(ctx, u.UserID, domain.Fragment{Name: "X"})
	require.Error(t, err)
	assert.Equal(t, 0, n)
	for _, c := range []string{"friends", "groups", "invitations", "join_requests"} {
		assert.Contains(t, err.Error(), c)
	}
}
