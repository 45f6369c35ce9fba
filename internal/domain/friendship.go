package domain

import "time"

// Friendship is one side of a friend pair: the summary of FriendID kept under
// UserID's friend list. Its mirror lives under FriendID.
type Friendship struct {
	UserID   string `json:"user_id"`
	FriendID string `json:"friend_id"`

	// Denormalized fragment of FriendID.
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`

	LastUpdateEmoji string     `json:"last_update_emoji,omitempty"`
	LastUpdateAt    *time.Time `json:"last_update_at,omitempty"`

	// AccepterID is the user who accepted the request that created the pair.
	// Set on first write only.
	AccepterID string `json:"accepter_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fragment returns the embedded snapshot of the friend.
func (f *Friendship) Fragment() Fragment {
	return Fragment{Username: f.Username, Name: f.Name, Avatar: f.Avatar}
}

// FriendshipPatch carries the fields a caller wants to change. Nil fields are
// left as stored.
type FriendshipPatch struct {
	Username        *string
	Name            *string
	Avatar          *string
	LastUpdateEmoji *string
	LastUpdateAt    *time.Time
	AccepterID      *string
}

// FragmentPatch builds a patch that overwrites the whole embedded fragment.
func FragmentPatch(f Fragment) FriendshipPatch {
	return FriendshipPatch{Username: &f.Username, Name: &f.Name, Avatar: &f.Avatar}
}

// Merge applies p onto existing (nil when absent) and returns the record to
// write. CreatedAt and AccepterID are only assigned when existing is nil.
func (p FriendshipPatch) Merge(existing *Friendship, ownerID, otherID string, now time.Time) *Friendship {
	var merged Friendship
	if existing != nil {
		merged = *existing
	} else {
		merged = Friendship{UserID: ownerID, FriendID: otherID, CreatedAt: now}
		if p.AccepterID != nil {
			merged.AccepterID = *p.AccepterID
		}
	}

	if p.Username != nil {
		merged.Username = *p.Username
	}
	if p.Name != nil {
		merged.Name = *p.Name
	}
	if p.Avatar != nil {
		merged.Avatar = *p.Avatar
	}
	if p.LastUpdateEmoji != nil {
		merged.LastUpdateEmoji = *p.LastUpdateEmoji
	}
	if p.LastUpdateAt != nil {
		at := *p.LastUpdateAt
		merged.LastUpdateAt = &at
	}
	merged.UpdatedAt = now
	return &merged
}
