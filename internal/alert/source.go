package alert

import (
	"context"
	"sync"

	"github.com/konect/konect/internal/push"
)

// Source emits events from one lifecycle path.
type Source interface {
	// Subscribe registers fn for future events and returns a function that
	// removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// hub fans events out to subscribers.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

func (h *hub) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func(Event))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

func (h *hub) emit(ev Event) {
	h.mu.Lock()
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// ForegroundSource emits an event for each push received while the app runs.
type ForegroundSource struct {
	hub
}

// NewForegroundSource creates a foreground source.
func NewForegroundSource() *ForegroundSource {
	return &ForegroundSource{}
}

// Deliver is a push.Handler; pass it to a push subscriber.
func (s *ForegroundSource) Deliver(_ context.Context, msg push.RemoteMessage) {
	s.emit(NewEvent(LifecycleForeground, msg))
}

// BackgroundTapSource emits an event when the user opens a delivered
// notification.
type BackgroundTapSource struct {
	hub
}

// NewBackgroundTapSource creates a background-tap source.
func NewBackgroundTapSource() *BackgroundTapSource {
	return &BackgroundTapSource{}
}

// Open reports that the notification carrying msg was opened.
func (s *BackgroundTapSource) Open(msg push.RemoteMessage) {
	s.emit(NewEvent(LifecycleBackgroundTap, msg))
}

// ColdStartSource holds the notification the app was launched from, if
// any, and delivers it once to the first subscriber.
type ColdStartSource struct {
	mu      sync.Mutex
	pending *Event
}

// NewColdStartSource creates a source for the launch notification; a nil
// msg means the app was not launched from a notification.
func NewColdStartSource(msg *push.RemoteMessage) *ColdStartSource {
	s := &ColdStartSource{}
	if msg != nil {
		ev := NewEvent(LifecycleColdStart, *msg)
		s.pending = &ev
	}
	return s
}

// Subscribe delivers the launch event asynchronously if it has not been
// delivered yet.
func (s *ColdStartSource) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	ev := s.pending
	s.pending = nil
	s.mu.Unlock()

	if ev != nil {
		go fn(*ev)
	}
	return func() {}
}
