package download

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	w.PollInterval = 20 * time.Millisecond
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWatcherDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.json"), []byte("{}"), 0644))

	w := newTestWatcher(t, dir)

	go func() {
		time.Sleep(50 * time.Millisecond)
		partial := filepath.Join(dir, "lobby.json.crdownload")
		os.WriteFile(partial, []byte(`{"lobby":`), 0644)
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(partial, []byte(`{"lobby": 3}`), 0644)
		os.Rename(partial, filepath.Join(dir, "lobby.json"))
	}()

	got, err := w.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lobby.json"), got)
}

func TestWatcherIgnoresExistingAndPartialFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.json"), []byte("{}"), 0644))

	w := newTestWatcher(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.json.crdownload"), []byte("{"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	_, err := w.Wait(context.Background(), 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
}

func TestWatcherWaitsOutPlaceholder(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	final := filepath.Join(dir, "lobby.json")
	partial := final + ".crdownload"
	require.NoError(t, os.WriteFile(final, nil, 0644))
	require.NoError(t, os.WriteFile(partial, []byte("{"), 0644))

	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		data := []byte("{")
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				data = append(data, ' ')
				os.WriteFile(partial, data, 0644)
			}
		}
	}()

	_, err := w.Wait(context.Background(), 200*time.Millisecond)
	close(stop)
	<-finished
	assert.ErrorIs(t, err, ErrDownloadTimeout, "placeholder must not count while the partial file grows")

	require.NoError(t, os.WriteFile(partial, []byte(`{"lobby": 3}`), 0644))
	require.NoError(t, os.Rename(partial, final))

	got, err := w.Wait(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, final, got)
}

func TestWatcherIgnoresEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lobby.json"), nil, 0644))

	_, err := w.Wait(context.Background(), 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrDownloadTimeout)
}

func TestWatcherContextCanceled(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsPartial(t *testing.T) {
	tests := map[string]bool{
		"lobby.json":             false,
		"lobby.json.crdownload":  true,
		"Lobby.JSON.CRDOWNLOAD":  true,
		"archive.zip.part":       true,
		".com.google.Chrome.abc": true,
		"report.tmp":             true,
		"page_content.html":      false,
	}
	for name, want := range tests {
		assert.Equal(t, want, isPartial(name), name)
	}
}
