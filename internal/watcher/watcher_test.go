package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()

	w, err := New(root, NewRegistry(), Options{
		OutputDir:   "tests",
		IgnoreDirs:  []string{".venv", "__pycache__"},
		IgnoreFiles: []string{"setup.py", "conftest.py"},
		Debounce:    time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	return w, root
}

func writeSource(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAdmitQualifiesPlainSource(t *testing.T) {
	w, root := newTestWatcher(t)
	path := writeSource(t, root, "app.py", "def add(a, b):\n    return a + b\n")

	change, ok := w.Admit(path, Modified)
	require.True(t, ok)
	assert.Equal(t, path, change.Path)
	assert.Equal(t, Modified, change.Kind)
	assert.Contains(t, change.SourceContent, "def add")

	// Admission claimed the path.
	assert.True(t, w.registry.InFlight(path))
}

func TestAdmitFilterChain(t *testing.T) {
	w, root := newTestWatcher(t)

	tests := []struct {
		name string
		rel  string
	}{
		{"under output dir", "tests/test_app.py"},
		{"editor backup suffix", "app.py~"},
		{"ignore-listed filename", "setup.py"},
		{"wrong extension", "notes.txt"},
		{"test file", "my_test_helper.py"},
		{"tmp file", "tmp_scratch.py"},
		{"log file", "debug.log"},
		{"pycache", "__pycache__/app.py"},
		{"ignored dir", ".venv/lib/thing.py"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSource(t, root, tt.rel, "x = 1\n")
			_, ok := w.Admit(path, Modified)
			assert.False(t, ok, "expected %s to be filtered", tt.rel)
			assert.False(t, w.registry.InFlight(path))
		})
	}
}

func TestAdmitRefusesInFlightPath(t *testing.T) {
	w, root := newTestWatcher(t)
	path := writeSource(t, root, "app.py", "x = 1\n")

	_, ok := w.Admit(path, Modified)
	require.True(t, ok)

	_, ok = w.Admit(path, Modified)
	assert.False(t, ok)

	// Even deletes respect in-flight.
	_, ok = w.Admit(path, Deleted)
	assert.False(t, ok)
}

func TestAdmitDebouncesBurst(t *testing.T) {
	// A burst of N modify events inside the window yields exactly one
	// qualified change.
	w, root := newTestWatcher(t)
	path := writeSource(t, root, "app.py", "x = 1\n")

	admitted := 0
	for i := 0; i < 10; i++ {
		if _, ok := w.Admit(path, Modified); ok {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)

	// After completion, the debounce window keeps refusing.
	w.registry.Complete(path)
	_, ok := w.Admit(path, Modified)
	assert.False(t, ok)
}

func TestAdmitDeleteBypassesDebounce(t *testing.T) {
	w, root := newTestWatcher(t)
	path := writeSource(t, root, "app.py", "x = 1\n")

	_, ok := w.Admit(path, Modified)
	require.True(t, ok)
	w.registry.Complete(path)

	// Still inside the window: modify refused, delete admitted.
	_, ok = w.Admit(path, Modified)
	assert.False(t, ok)

	change, ok := w.Admit(path, Deleted)
	require.True(t, ok)
	assert.Equal(t, Deleted, change.Kind)
	assert.Empty(t, change.SourceContent)
}

func TestAdmitDeleteThenCreateLaterEventWins(t *testing.T) {
	w, root := newTestWatcher(t)
	path := writeSource(t, root, "app.py", "x = 1\n")

	del, ok := w.Admit(path, Deleted)
	require.True(t, ok)
	assert.Equal(t, Deleted, del.Kind)

	// The following create supersedes the delete instead of queuing
	// behind it.
	created, ok := w.Admit(path, Created)
	require.True(t, ok)
	assert.Equal(t, Created, created.Kind)
	assert.True(t, w.registry.InFlight(path))
}

func TestAdmitVanishedFileReleasesSlot(t *testing.T) {
	w, root := newTestWatcher(t)
	path := filepath.Join(root, "ghost_file.py")

	_, ok := w.Admit(path, Modified)
	assert.False(t, ok)
	assert.False(t, w.registry.InFlight(path), "unreadable admission must release the path")
}

func TestConvertOp(t *testing.T) {
	tests := []struct {
		op        fsnotify.Op
		kind      ChangeKind
		qualifies bool
	}{
		{fsnotify.Create, Created, true},
		{fsnotify.Write, Modified, true},
		{fsnotify.Remove, Deleted, true},
		{fsnotify.Rename, Deleted, true},
		{fsnotify.Chmod, 0, false},
	}

	for _, tt := range tests {
		kind, ok := convertOp(tt.op)
		assert.Equal(t, tt.qualifies, ok, "op %v", tt.op)
		if ok {
			assert.Equal(t, tt.kind, kind, "op %v", tt.op)
		}
	}
}
