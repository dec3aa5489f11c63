// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/okonev/careerdojo/internal/domain"
)

// Repository defines the interface for persisting users and dojo sessions.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns (nil, nil) when the
	// user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateSession persists a freshly initialized session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID. Returns (nil, nil) when the
	// session does not exist.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// UpdateSession persists only the field groups the session has marked
	// modified, then clears the dirty set.
	UpdateSession(ctx context.Context, session *domain.Session) error

	// ListCompletedSessions retrieves an owner's completed sessions that
	// carry a final report, most recently completed first.
	ListCompletedSessions(ctx context.Context, owner string) ([]*domain.Session, error)

	// StaleActiveSessions retrieves active sessions untouched for longer
	// than the TTL.
	StaleActiveSessions(ctx context.Context, ttl time.Duration) ([]*domain.Session, error)

	// AbandonSessions flips the listed sessions to abandoned status.
	AbandonSessions(ctx context.Context, ids []string) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
