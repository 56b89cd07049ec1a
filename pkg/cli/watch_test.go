package cli

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRuns struct {
	mu   sync.Mutex
	runs [][]string
	ch   chan struct{}
}

func newRecordedRuns() *recordedRuns {
	return &recordedRuns{ch: make(chan struct{}, 10)}
}

func (r *recordedRuns) run(_ context.Context, files []string) error {
	r.mu.Lock()
	r.runs = append(r.runs, files)
	r.mu.Unlock()
	r.ch <- struct{}{}
	return errors.New("ignored")
}

func (r *recordedRuns) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no run was started")
	}
}

func TestFileWatcher_Paths(t *testing.T) {
	w, err := newFileWatcher([]string{hausB, hausA, filepath.Join("..", "cli", "testdata", "haus_a.yaml")}, time.Millisecond, quietLogger(), nil)
	require.NoError(t, err)

	absA, _ := filepath.Abs(hausA)
	absB, _ := filepath.Abs(hausB)
	assert.Equal(t, []string{absA, absB}, w.files())
	assert.Equal(t, []string{filepath.Dir(absA)}, w.dirs())
}

func TestFileWatcher_Loop(t *testing.T) {
	runs := newRecordedRuns()
	w, err := newFileWatcher([]string{hausA, hausB}, 20*time.Millisecond, quietLogger(), runs.run)
	require.NoError(t, err)

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.loop(ctx, events, errs) }()

	// a burst of changes becomes one run
	events <- fsnotify.Event{Name: hausA, Op: fsnotify.Write}
	events <- fsnotify.Event{Name: hausB, Op: fsnotify.Create}
	events <- fsnotify.Event{Name: hausA, Op: fsnotify.Write}
	runs.wait(t)

	// unrelated files and operations are ignored, watcher errors only logged
	events <- fsnotify.Event{Name: filepath.Join("testdata", "schema.yaml"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: hausA, Op: fsnotify.Chmod}
	errs <- errors.New("overflow")

	events <- fsnotify.Event{Name: hausB, Op: fsnotify.Write}
	runs.wait(t)

	cancel()
	require.NoError(t, <-done)

	absA, _ := filepath.Abs(hausA)
	absB, _ := filepath.Abs(hausB)
	runs.mu.Lock()
	defer runs.mu.Unlock()
	assert.Equal(t, [][]string{{absA, absB}, {absB}}, runs.runs)
}

func TestFileWatcher_ClosedEvents(t *testing.T) {
	w, err := newFileWatcher([]string{hausA}, time.Millisecond, quietLogger(), newRecordedRuns().run)
	require.NoError(t, err)

	events := make(chan fsnotify.Event)
	close(events)
	assert.NoError(t, w.loop(context.Background(), events, make(chan error)))
}
