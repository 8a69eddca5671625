package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]map[string]time.Time
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		sessions: make(map[string]map[string]time.Time),
	}
}

// AddMember adds a device to a session.
func (r *InMemoryRepository) AddMember(_ context.Context, sessionCode, deviceToken string, joinedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.sessions[sessionCode]
	if !ok {
		members = make(map[string]time.Time)
		r.sessions[sessionCode] = members
	}
	if _, exists := members[deviceToken]; !exists {
		members[deviceToken] = joinedAt
	}
	return nil
}

// SessionsForDevice returns the device's session codes, newest first.
func (r *InMemoryRepository) SessionsForDevice(_ context.Context, deviceToken string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []Membership
	for code, members := range r.sessions {
		if joined, ok := members[deviceToken]; ok {
			found = append(found, Membership{SessionCode: code, JoinedAt: joined})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].JoinedAt.Equal(found[j].JoinedAt) {
			return found[i].SessionCode < found[j].SessionCode
		}
		return found[i].JoinedAt.After(found[j].JoinedAt)
	})

	codes := make([]string, len(found))
	for i, m := range found {
		codes[i] = m.SessionCode
	}
	return codes, nil
}

// Members returns the members of a session ordered by join time.
func (r *InMemoryRepository) Members(_ context.Context, sessionCode string) ([]Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.sessions[sessionCode]
	if !ok || len(members) == 0 {
		return nil, ErrSessionNotFound
	}

	result := make([]Membership, 0, len(members))
	for token, joined := range members {
		result = append(result, Membership{SessionCode: sessionCode, DeviceToken: token, JoinedAt: joined})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].JoinedAt.Equal(result[j].JoinedAt) {
			return result[i].DeviceToken < result[j].DeviceToken
		}
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

// RemoveDevice removes the device from every session. Empty sessions are
// dropped.
func (r *InMemoryRepository) RemoveDevice(_ context.Context, deviceToken string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for code, members := range r.sessions {
		if _, ok := members[deviceToken]; ok {
			delete(members, deviceToken)
			removed++
		}
		if len(members) == 0 {
			delete(r.sessions, code)
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(context.Context) error {
	return nil
}
