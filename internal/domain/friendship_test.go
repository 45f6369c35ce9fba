package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFriendshipPatch_Merge_NewRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accepter := "alice"
	patch := FragmentPatch(Fragment{Username: "bob", Name: "Bob", Avatar: "b.png"})
	patch.AccepterID = &accepter

	f := patch.Merge(nil, "alice", "bob", now)

	assert.Equal(t, "alice", f.UserID)
	assert.Equal(t, "bob", f.FriendID)
	assert.Equal(t, "Bob", f.Name)
	assert.Equal(t, "alice", f.AccepterID)
	assert.Equal(t, now, f.CreatedAt)
	assert.Equal(t, now, f.UpdatedAt)
}

func TestFriendshipPatch_Merge_PreservesCreationAndAccepter(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := created.Add(48 * time.Hour)
	existing := &Friendship{
		UserID: "alice", FriendID: "bob",
		Username: "bob", Name: "Bob", Avatar: "b.png",
		AccepterID: "alice", CreatedAt: created, UpdatedAt: created,
	}

	emoji := "🎉"
	other := "bob"
	merged := FriendshipPatch{LastUpdateEmoji: &emoji, LastUpdateAt: &later, AccepterID: &other}.
		Merge(existing, "alice", "bob", later)

	assert.Equal(t, created, merged.CreatedAt)
	assert.Equal(t, "alice", merged.AccepterID)
	assert.Equal(t, "Bob", merged.Name, "fields absent from the patch are kept")
	assert.Equal(t, "🎉", merged.LastUpdateEmoji)
	assert.Equal(t, later, merged.UpdatedAt)
	assert.Equal(t, created, existing.UpdatedAt, "existing record is not mutated")
}
