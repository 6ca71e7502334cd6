// Package orgcontext holds the active-organization selection shared by every org-scoped component.
package orgcontext

import (
	"sync"
)

// ChangeFunc is called after the selection changes. prev and next are "" for "no organization".
type ChangeFunc func(prev, next string)

// Store is the single source of truth for the selected organization id.
// Only the organization-switch action should call Set or Clear; everything else reads.
type Store struct {
	// writeMu serializes writers through their notifications.
	writeMu     sync.Mutex
	mu          sync.RWMutex
	orgID       string
	subscribers []ChangeFunc
}

// NewStore returns a store with initial selected. Pass "" for no selection.
func NewStore(initial string) *Store {
	return &Store{orgID: initial}
}

// Get returns the selected org id and true, or "", false when none is selected.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orgID, s.orgID != ""
}

// Set replaces the selection and notifies subscribers. Setting the current value is a no-op.
func (s *Store) Set(orgID string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	prev := s.orgID
	if prev == orgID {
		s.mu.Unlock()
		return
	}
	s.orgID = orgID
	subs := append([]ChangeFunc(nil), s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(prev, orgID)
	}
}

// Clear deselects the organization.
func (s *Store) Clear() { s.Set("") }

// Subscribe registers fn for change notifications. Callbacks run synchronously on the writer's goroutine
// in registration order, outside the store lock, so they may call Get. Writers are serialized until
// their callbacks return: notifications arrive in the order the values were stored, and a callback
// must not call Set or Clear.
func (s *Store) Subscribe(fn ChangeFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}
