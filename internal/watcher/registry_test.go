package watcher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryAdmitMarksInFlight(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Admit("/p/a.py", time.Minute, false))
	assert.True(t, r.InFlight("/p/a.py"))

	// Second admission for the same path is refused while in flight.
	assert.False(t, r.Admit("/p/a.py", time.Minute, false))
}

func TestRegistryDebounceWindow(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Admit("/p/a.py", time.Minute, false))
	r.Complete("/p/a.py")

	// lastCompletedAt was just stamped, so the window refuses re-entry.
	assert.False(t, r.Admit("/p/a.py", time.Minute, false))

	// A tiny window admits again.
	time.Sleep(5 * time.Millisecond)
	assert.True(t, r.Admit("/p/a.py", time.Millisecond, false))
}

func TestRegistryDeleteBypassesDebounceButNotInFlight(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Admit("/p/a.py", time.Minute, false))
	r.Complete("/p/a.py")

	// Inside the debounce window, a delete is still admitted.
	assert.True(t, r.Admit("/p/a.py", time.Minute, true))

	// Deletes don't claim the path; the in-flight rule still applies when
	// a session holds it.
	assert.True(t, r.Admit("/p/a.py", 0, false))
	assert.False(t, r.Admit("/p/a.py", time.Minute, true))
}

func TestRegistryCompleteReleases(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Admit("/p/a.py", 0, false))
	r.Complete("/p/a.py")
	assert.False(t, r.InFlight("/p/a.py"))
	assert.True(t, r.Admit("/p/a.py", 0, false))
}

func TestRegistryBurstAdmitsExactlyOne(t *testing.T) {
	// N concurrent events on one path within the window admit exactly one
	// session.
	r := NewRegistry()

	const n = 32
	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Admit("/p/burst.py", time.Minute, false) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted)
}

func TestRegistryIndependentPaths(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Admit("/p/a.py", time.Minute, false))
	assert.True(t, r.Admit("/p/b.py", time.Minute, false))
	assert.False(t, r.Admit("/p/a.py", time.Minute, false))
	assert.False(t, r.Admit("/p/b.py", time.Minute, false))
}
