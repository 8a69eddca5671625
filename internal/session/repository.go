package session

import (
	"context"
	"time"
)

// Repository stores session memberships.
type Repository interface {
	// AddMember adds a device to a session, creating the session if needed.
	// Adding an existing member is a no-op.
	AddMember(ctx context.Context, sessionCode, deviceToken string, joinedAt time.Time) error

	// SessionsForDevice returns the device's session codes, most recently
	// joined first.
	SessionsForDevice(ctx context.Context, deviceToken string) ([]string, error)

	// Members returns the members of a session, or ErrSessionNotFound.
	Members(ctx context.Context, sessionCode string) ([]Membership, error)

	// RemoveDevice removes the device from every session and returns how
	// many memberships were removed.
	RemoveDevice(ctx context.Context, deviceToken string) (int, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
