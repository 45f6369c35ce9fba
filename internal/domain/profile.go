package domain

import "time"

// Profile is the source of truth for a user's public identity and nudge setup.
type Profile struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`

	// Timezone is an IANA name. Empty for accounts created before
	// bucketed nudges existed.
	Timezone string            `json:"timezone,omitempty"`
	Nudge    *NudgePreferences `json:"nudge,omitempty"`

	// LastNudgedAt is stamped by the legacy pass; bucketed users keep it on
	// their membership rows instead.
	LastNudgedAt *time.Time `json:"last_nudged_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fragment returns the denormalized snapshot of this profile.
func (p *Profile) Fragment() Fragment {
	return Fragment{Username: p.Username, Name: p.Name, Avatar: p.Avatar}
}

// IsMigrated reports whether the profile is served by the bucketed sweep.
// The legacy pass covers exactly the profiles for which this is false.
func (p *Profile) IsMigrated() bool {
	return p.Timezone != "" && p.Nudge != nil
}

// FragmentChanged reports whether embedded copies of the profile are stale.
func FragmentChanged(before, after *Profile) bool {
	if before == nil || after == nil {
		return after != nil
	}
	return before.Fragment() != after.Fragment()
}

// ScheduleChanged reports whether bucket memberships must be rebuilt.
func ScheduleChanged(before, after *Profile) bool {
	if before == nil || after == nil {
		return true
	}
	if before.Timezone != after.Timezone {
		return true
	}
	return !before.Nudge.Equal(after.Nudge)
}
