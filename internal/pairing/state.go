package pairing

import "github.com/konect/konect/internal/device"

// State is a snapshot of the pairing session as seen by this device.
type State struct {
	// Token is the device push token; empty until acquired.
	Token device.Token

	// SessionCode is the session this device belongs to.
	SessionCode string

	// Registered is true iff the last successful check or connect
	// reported an active pairing.
	Registered bool

	// Input is the text currently typed into the connect form.
	Input string

	// AnimationDone is set once the post-connect animation has played, or
	// immediately when a launch check finds an existing pairing.
	AnimationDone bool
}

// Status is the result of a connection check.
type Status struct {
	Connected    bool
	SessionCodes []string
}

// Confirmation is the text of a yes/no question put to the user.
type Confirmation struct {
	Title        string
	Message      string
	CancelLabel  string
	ConfirmLabel string
}

// DisconnectConfirmation is asked before a device leaves its session.
var DisconnectConfirmation = Confirmation{
	Title:        "Confirm Disconnect",
	Message:      "Are you sure you want to disconnect?",
	CancelLabel:  "Cancel",
	ConfirmLabel: "Disconnect",
}
