package domain

// Fragment is the profile snapshot embedded into friend summaries, group
// member entries, invitations and join requests. Copies are never referenced
// back to the profile; they are rewritten when the profile changes.
type Fragment struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// IsZero reports whether the fragment carries no data.
func (f Fragment) IsZero() bool {
	return f == Fragment{}
}
