// Package device provides device registration for push notifications: the
// notification permission request, push token acquisition and the local
// device identifier.
package device

import "errors"

// Registration errors.
var (
	// ErrNoToken is returned when the push service has not issued a token.
	ErrNoToken = errors.New("no push token issued")
)

// Token is the opaque push-notification addressing handle of one installation.
type Token string

// String returns the token as a string.
func (t Token) String() string {
	return string(t)
}

// Last4 returns the last 4 characters of the token for logging.
func (t Token) Last4() string {
	if len(t) < 4 {
		return string(t)
	}
	return string(t[len(t)-4:])
}

// Platform represents a push notification platform.
type Platform string

const (
	PlatformFCM  Platform = "FCM"
	PlatformAPNS Platform = "APNS"
	PlatformDev  Platform = "DEV"
)

// Identity identifies this installation to the backend and the push service.
type Identity struct {
	// ID is the local device identifier.
	ID string

	// Token is the push token issued for this installation.
	Token Token

	// Platform is the push platform the token belongs to.
	Platform Platform
}
