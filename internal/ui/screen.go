// Package ui renders the pairing state to a terminal and turns typed
// commands into session operations.
package ui

import "github.com/konect/konect/internal/pairing"

// ScreenKind is the screen shown for a pairing state.
type ScreenKind int

const (
	// ScreenConnectForm asks for a session code.
	ScreenConnectForm ScreenKind = iota
	// ScreenSuccessAnimation plays once after connecting.
	ScreenSuccessAnimation
	// ScreenAlertControl offers the alert trigger.
	ScreenAlertControl
)

func (k ScreenKind) String() string {
	switch k {
	case ScreenConnectForm:
		return "connect_form"
	case ScreenSuccessAnimation:
		return "success_animation"
	case ScreenAlertControl:
		return "alert_control"
	default:
		return "unknown"
	}
}

// Screen picks the screen for s.
func Screen(s pairing.State) ScreenKind {
	switch {
	case !s.Registered:
		return ScreenConnectForm
	case !s.AnimationDone:
		return ScreenSuccessAnimation
	default:
		return ScreenAlertControl
	}
}

// LogoutVisible reports whether the logout control is shown.
func LogoutVisible(s pairing.State) bool {
	return s.Registered
}

// AlertVisible reports whether the alert control is shown.
func AlertVisible(s pairing.State) bool {
	return Screen(s) == ScreenAlertControl
}
