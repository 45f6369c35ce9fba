package domain

import "time"

// Group is a named set of users. Each member's fragment is embedded so the
// member list renders without profile reads.
type Group struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Icon           string              `json:"icon,omitempty"`
	CreatedBy      string              `json:"created_by"`
	Members        []string            `json:"members"`
	MemberProfiles map[string]Fragment `json:"member_profiles"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
