package model

import "time"

// Note is a named text record stored by the service.
// PasswordHash holds a bcrypt hash and is never serialized to clients.
type Note struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Content      string     `json:"content"`
	PasswordHash *string    `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// HasPassword reports whether reading the note requires a challenge.
func (n *Note) HasPassword() bool {
	return n.PasswordHash != nil && *n.PasswordHash != ""
}

// IsExpired reports whether the note's expiry lies strictly before now.
func (n *Note) IsExpired(now time.Time) bool {
	if n.ExpiresAt == nil {
		return false
	}
	return now.After(*n.ExpiresAt)
}

// NoteView is the client-facing projection of a Note.
// HasPassword is nil on the access path, where the flag is not reported.
type NoteView struct {
	Name        string     `json:"name"`
	Content     *string    `json:"content"`
	HasPassword *bool      `json:"hasPassword,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}
