package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrDownloadTimeout is returned when no finished file shows up in time.
var ErrDownloadTimeout = errors.New("download did not complete")

// DefaultPollInterval is how often the directory is rescanned between
// filesystem events. A file counts as finished once its size holds for one interval.
const DefaultPollInterval = 500 * time.Millisecond

// partialSuffixes mark files the browser is still writing.
var partialSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// Watcher detects a new finished file in a download directory by polling it.
// It cannot tell which download a file belongs to; Tracker can, and is
// preferred when the browser emits download events.
type Watcher struct {
	dir          string
	existing     map[string]struct{}
	fsw          *fsnotify.Watcher
	PollInterval time.Duration
}

// NewWatcher snapshots dir so that only files created afterwards are reported.
// Call it before the download is triggered.
func NewWatcher(dir string) (*Watcher, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("could not read download directory: %w", err)
	}

	existing := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		existing[e.Name()] = struct{}{}
	}

	w := &Watcher{dir: dir, existing: existing, PollInterval: DefaultPollInterval}

	// Polling still works if the platform refuses a watch.
	if fsw, err := fsnotify.NewWatcher(); err == nil {
		if err := fsw.Add(dir); err == nil {
			w.fsw = fsw
		} else {
			fsw.Close()
		}
	}
	return w, nil
}

// Wait blocks until a new finished file appears and returns its path.
func (w *Watcher) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.fsw != nil {
		events = w.fsw.Events
		fsErrors = w.fsw.Errors
	}

	seen := make(map[string]sample)
	for {
		if name, ok := w.scan(seen); ok {
			return filepath.Join(w.dir, name), nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("%w: no new file in %s after %v", ErrDownloadTimeout, w.dir, timeout)
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
			}
		}
	}
}

type sample struct {
	size  int64
	since time.Time
}

// scan records sizes of new finished files and reports one whose size has
// not changed for at least PollInterval. Nothing is reported while a new
// partial file exists, and empty files never qualify.
func (w *Watcher) scan(seen map[string]sample) (string, bool) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return "", false
	}

	var ready string
	for _, e := range entries {
		name := e.Name()
		if _, old := w.existing[name]; old || e.IsDir() {
			continue
		}
		if isPartial(name) {
			return "", false
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}

		prev, tracked := seen[name]
		if !tracked || prev.size != info.Size() {
			seen[name] = sample{size: info.Size(), since: time.Now()}
			continue
		}
		if ready == "" && time.Since(prev.since) >= w.PollInterval {
			ready = name
		}
	}
	return ready, ready != ""
}

// Close stops the filesystem watch.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}

func isPartial(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
