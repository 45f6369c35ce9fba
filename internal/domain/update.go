package domain

import "time"

// Update is a status post. Author is a point-in-time snapshot and is not
// rewritten when the profile changes.
type Update struct {
	ID        string    `json:"id"`
	CreatedBy string    `json:"created_by"`
	Author    Fragment  `json:"author"`
	Content   string    `json:"content"`
	Emoji     string    `json:"emoji,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionType enumerates reaction kinds.
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionLaugh ReactionType = "laugh"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
)

// Valid reports whether t is a known reaction type.
func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad:
		return true
	default:
		return false
	}
}

// Reaction is one user's reaction of one type to one update.
type Reaction struct {
	UpdateID  string       `json:"update_id"`
	UserID    string       `json:"user_id"`
	Type      ReactionType `json:"type"`
	Author    Fragment     `json:"author"`
	CreatedAt time.Time    `json:"created_at"`
}
