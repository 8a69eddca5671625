// Package session is the reference pairing backend: devices join sessions
// by code, and an alert from one member is pushed to every other member.
package session

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session code has no members.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDeviceNotFound is returned when a device belongs to no session.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNotMember is returned when the alert sender is not in the session.
	ErrNotMember = errors.New("sender is not a member of the session")

	// ErrInvalidInput is returned for empty codes or tokens.
	ErrInvalidInput = errors.New("invalid input")
)

// Membership links a device to a session.
type Membership struct {
	SessionCode string
	DeviceToken string
	JoinedAt    time.Time
}

// DeviceStatus is the answer to a device check.
type DeviceStatus struct {
	Connected bool
	// SessionCodes are ordered most recently joined first.
	SessionCodes []string
}

// AlertResult summarises one alert fan-out.
type AlertResult struct {
	SessionCode string
	Recipients  int
	Delivered   int
	Failed      int
}
