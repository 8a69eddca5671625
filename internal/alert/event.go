// Package alert sends alerts to the other devices of a session and turns
// inbound pushes into sound, vibration and a prompt on this device.
package alert

import (
	"time"

	"github.com/konect/konect/internal/push"
)

// Lifecycle is the app state in which a push reached the user.
type Lifecycle int

const (
	// LifecycleForeground: the push arrived while the app was active.
	LifecycleForeground Lifecycle = iota
	// LifecycleBackgroundTap: the user opened a delivered notification.
	LifecycleBackgroundTap
	// LifecycleColdStart: the app was launched from a notification.
	LifecycleColdStart
	// LifecycleBackground: the OS-level path with no UI running.
	LifecycleBackground
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleForeground:
		return "foreground"
	case LifecycleBackgroundTap:
		return "background_tap"
	case LifecycleColdStart:
		return "cold_start"
	case LifecycleBackground:
		return "background"
	default:
		return "unknown"
	}
}

type defaultText struct {
	title, body string
}

var defaults = map[Lifecycle]defaultText{
	LifecycleForeground:    {"New Notification", "You have a new message!"},
	LifecycleBackgroundTap: {"Opened Notification", "You tapped a notification!"},
	LifecycleColdStart:     {"App Opened from Notification", "You opened the app via a notification!"},
	LifecycleBackground:    {"Incoming Alert!", "You have a new important message!"},
}

// Event is an inbound push as seen by the in-app receiver.
type Event struct {
	Lifecycle  Lifecycle
	Title      string
	Body       string
	Data       map[string]string
	MessageID  string
	ReceivedAt time.Time
}

// NewEvent builds an event from a remote message. Missing title or body are
// left empty; Display substitutes the defaults.
func NewEvent(lifecycle Lifecycle, msg push.RemoteMessage) Event {
	ev := Event{
		Lifecycle:  lifecycle,
		Data:       msg.Data,
		MessageID:  msg.MessageID,
		ReceivedAt: time.Now(),
	}
	if msg.Notification != nil {
		ev.Title = msg.Notification.Title
		ev.Body = msg.Notification.Body
	}
	return ev
}

// Display returns the title and body to show, falling back to the
// lifecycle's default text for whichever is empty.
func (e Event) Display() (title, body string) {
	d := defaults[e.Lifecycle]
	title, body = e.Title, e.Body
	if title == "" {
		title = d.title
	}
	if body == "" {
		body = d.body
	}
	return title, body
}
