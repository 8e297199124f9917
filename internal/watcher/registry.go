package watcher

import (
	"sync"
	"time"
)

// pathState tracks one watched path. Created on first observed event,
// never explicitly destroyed.
type pathState struct {
	inFlight        bool
	lastCompletedAt time.Time
}

// Registry is the lock-protected in-flight and last-completed bookkeeping
// shared between the watcher (admission) and the orchestrator (completion).
// Exactly one healing session may hold a path at a time.
type Registry struct {
	mu    sync.Mutex
	paths map[string]*pathState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{paths: make(map[string]*pathState)}
}

func (r *Registry) state(path string) *pathState {
	st, ok := r.paths[path]
	if !ok {
		st = &pathState{}
		r.paths[path] = st
	}
	return st
}

// Admit performs the in-flight and debounce checks and, for non-delete
// events, marks the path in-flight, all under one lock, so rapid repeated
// events can never admit two sessions for the same path.
//
// Deletes bypass the debounce window but still respect in-flight.
func (r *Registry) Admit(path string, window time.Duration, isDelete bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(path)
	if st.inFlight {
		return false
	}
	if !isDelete {
		if !st.lastCompletedAt.IsZero() && time.Since(st.lastCompletedAt) < window {
			return false
		}
		st.inFlight = true
	}
	return true
}

// Complete clears the in-flight marker and stamps the completion time.
// The orchestrator defers this on every exit path of a session, so a crash
// mid-session cannot permanently block a path.
func (r *Registry) Complete(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(path)
	st.inFlight = false
	st.lastCompletedAt = time.Now()
}

// InFlight reports whether a session currently holds the path.
func (r *Registry) InFlight(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state(path).inFlight
}
