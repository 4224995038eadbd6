package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Tracker follows the browser's download events. The browser must save
// downloads under their GUID (browser.ConfigureDownloads does that); a
// completed file is renamed to its suggested filename.
type Tracker struct {
	dir    string
	logger *log.Logger

	mu      sync.Mutex
	current *Expected
}

// NewTracker subscribes to download events of the chromedp tab in ctx.
func NewTracker(ctx context.Context, dir string, logger *log.Logger) *Tracker {
	t := newTracker(dir, logger)
	chromedp.ListenTarget(ctx, t.handle)
	return t
}

func newTracker(dir string, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tracker{dir: dir, logger: logger}
}

type outcome struct {
	guid string
	name string
	err  error
}

// Expected is the download the next click is expected to start.
type Expected struct {
	tracker *Tracker
	guid    string
	name    string
	done    chan outcome
}

// Expect arms the tracker for the next download. Call it before the click.
// Downloads that begin while nothing is armed are ignored.
func (t *Tracker) Expect() (Awaiter, error) {
	e := &Expected{tracker: t, done: make(chan outcome, 1)}
	t.mu.Lock()
	t.current = e
	t.mu.Unlock()
	return e, nil
}

func (t *Tracker) handle(ev interface{}) {
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		t.logger.Printf("Download starting: %s", e.SuggestedFilename)
		t.mu.Lock()
		if t.current != nil && t.current.guid == "" {
			t.current.guid = e.GUID
			t.current.name = e.SuggestedFilename
		}
		t.mu.Unlock()

	case *browser.EventDownloadProgress:
		var res *outcome
		t.mu.Lock()
		cur := t.current
		if cur != nil && cur.guid == e.GUID {
			switch e.State {
			case browser.DownloadProgressStateCompleted:
				t.logger.Printf("✓ Browser reports download completed (%.0f bytes)", e.ReceivedBytes)
				res = &outcome{guid: cur.guid, name: cur.name}
			case browser.DownloadProgressStateCanceled:
				t.logger.Printf("⚠️ Browser reports download canceled")
				res = &outcome{err: fmt.Errorf("download %s was canceled", cur.name)}
			}
		}
		t.mu.Unlock()
		if res != nil {
			select {
			case cur.done <- *res:
			default:
			}
		}
	}
}

// Wait blocks until the browser reports the armed download as completed,
// then moves the file to its suggested name and returns the new path.
func (e *Expected) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("%w: browser reported no finished download after %v", ErrDownloadTimeout, timeout)
	case out := <-e.done:
		if out.err != nil {
			return "", out.err
		}
		return e.tracker.finalize(out.guid, out.name)
	}
}

// Close disarms the tracker if this download is still the armed one.
func (e *Expected) Close() error {
	e.tracker.mu.Lock()
	if e.tracker.current == e {
		e.tracker.current = nil
	}
	e.tracker.mu.Unlock()
	return nil
}

func (t *Tracker) finalize(guid, suggested string) (string, error) {
	src := filepath.Join(t.dir, guid)
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("downloaded file missing: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("downloaded file %s is empty", suggested)
	}

	name := safeFilename(suggested)
	if name == "" {
		return src, nil
	}
	dst := filepath.Join(t.dir, name)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("could not rename download to %s: %w", name, err)
	}
	return dst, nil
}

// safeFilename strips any directory part the page may have put in the name.
func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
