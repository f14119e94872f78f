package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndStop(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NoError(t, w.Stop())
}

func TestWatchDirectory(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	defer w.Stop()

	assert.NoError(t, w.Watch(t.TempDir()))
}

func TestSettledFileIsReported(t *testing.T) {
	w, err := New(nil, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	tmpDir := t.TempDir()
	journalDir := filepath.Join(tmpDir, "eco")
	require.NoError(t, os.Mkdir(journalDir, 0o750))
	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	testFile := filepath.Join(journalDir, "batch.csv")
	require.NoError(t, os.WriteFile(testFile, []byte("title\nHello\n"), 0o600))

	select {
	case event := <-w.Events():
		assert.Equal(t, testFile, event.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestStopReleasesBlockedDebounceTimers(t *testing.T) {
	baseline := runtime.NumGoroutine()

	w, err := New(nil, Options{Debounce: time.Millisecond})
	require.NoError(t, err)

	// More settled files than the events channel can buffer, with nobody
	// draining: the overflow timers block on the send until Stop.
	for i := 0; i < 24; i++ {
		w.handle(fsnotify.Event{Op: fsnotify.Create, Name: fmt.Sprintf("/inbox/eco/batch-%d.csv", i)})
	}
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Stop())

	// Every timer goroutine must exit once Stop closes the watcher, including
	// the ones blocked on the full events channel.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%d goroutines still running after Stop", runtime.NumGoroutine()-baseline)
}

func TestNonImportExtensionIgnored(t *testing.T) {
	w, err := New(nil, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	tmpDir := t.TempDir()
	require.NoError(t, w.Watch(tmpDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("hi"), 0o600))

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event for %s", event.Path)
	case <-time.After(300 * time.Millisecond):
	}
}
