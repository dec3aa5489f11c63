package domain

import (
	"time"
)

// User represents an authenticated identity. The dojo core trusts this record
// and only uses the ID for ownership checks.
type User struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role,omitempty"`
	IsActive     bool      `json:"is_active"`
	IsAuthorized bool      `json:"is_authorized"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
