// Package domain contains entity without logic, just meta-data
package domain

type UserID string

// User is a registered participant and its call state.
// Name, Avatar and Flag are opaque display strings supplied by the client.
type User struct {
	ID     UserID
	Name   string
	Avatar string
	Flag   string
	Busy   bool
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// A freshly registered user is never busy.
func NewUser(id UserID, name, avatar, flag string) User {
	return User{ID: id, Name: name, Avatar: avatar, Flag: flag}
}

// DisplayName is the name shown to chat peers.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return "User " + string(u.ID)
}

// Presence is a read-only view of a User for userlist snapshots (no transport fields).
type Presence struct {
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Flag   string `json:"flag"`
	Busy   bool   `json:"busy"`
}

func (u User) Presence() Presence {
	return Presence{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		Flag:   u.Flag,
		Busy:   u.Busy,
	}
}
