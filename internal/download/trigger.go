// Package download presses a page's download button and waits for the file to land.
package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cantalupo555/lobby-downloader/internal/page"
)

// SnapshotSuffix ends the name of a saved page HTML inside the download directory.
const SnapshotSuffix = "page_content.html"

// Driver is the browser surface a Trigger needs. *page.Session implements it.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context, timeout time.Duration) error
	Find(ctx context.Context, selector string, timeout time.Duration) (page.Element, error)
	ScrollIntoView(ctx context.Context, el page.Element) error
	WaitInteractable(ctx context.Context, el page.Element, timeout time.Duration) error
	Click(ctx context.Context, el page.Element) error
	ScriptClick(ctx context.Context, el page.Element) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Awaiter waits for the download started by the click.
type Awaiter interface {
	Wait(ctx context.Context, timeout time.Duration) (string, error)
	Close() error
}

// State is the stage a Trigger has reached.
type State int

const (
	StateInit State = iota
	StateNavigated
	StateLocated
	StateActivated
	StateAwaited
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateNavigated:
		return "navigated"
	case StateLocated:
		return "located"
	case StateActivated:
		return "activated"
	case StateAwaited:
		return "awaited"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Activation records which click reached the button.
type Activation string

const (
	ActivationNative Activation = "native"
	ActivationScript Activation = "script"
)

// Options configures a Trigger.
type Options struct {
	// URL is the page Run opens. RunAll takes its pages as an argument.
	URL          string
	Selector     string
	DownloadDir  string
	SaveSnapshot bool

	ReadyTimeout    time.Duration
	LocateTimeout   time.Duration
	ClickTimeout    time.Duration
	DownloadTimeout time.Duration
	// Pause is the wait between two pages in RunAll.
	Pause time.Duration

	Logger *log.Logger
	// NewAwaiter is called right before each click. Defaults to NewWatcher(DownloadDir).
	NewAwaiter func() (Awaiter, error)
}

// Result describes the outcome for one page.
type Result struct {
	URL        string
	Activation Activation
	File       string
	Snapshot   string
	// Reached is the last stage completed for this page.
	Reached State
	// Err is the failure that ended this page, nil on success.
	Err error
	// Errors are failures the run recovered from, such as a native click
	// that was replaced by the script click.
	Errors []string
}

// OK reports whether the page's file was downloaded.
func (r Result) OK() bool {
	return r.Err == nil && r.File != ""
}

// Trigger runs the open, locate, click and await sequence, once per page,
// in a single browser session.
type Trigger struct {
	driver Driver
	opts   Options
	logger *log.Logger
	state  State
	ran    bool
}

// New creates a Trigger that owns driver and closes it when Run returns.
func New(driver Driver, opts Options) *Trigger {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.NewAwaiter == nil {
		dir := opts.DownloadDir
		opts.NewAwaiter = func() (Awaiter, error) { return NewWatcher(dir) }
	}
	return &Trigger{driver: driver, opts: opts, logger: logger}
}

// State returns the stage reached so far.
func (t *Trigger) State() State {
	return t.state
}

// Run performs the whole sequence for Options.URL. The driver is closed
// exactly once on every path.
func (t *Trigger) Run(ctx context.Context) (Result, error) {
	results, err := t.RunAll(ctx, []string{t.opts.URL})
	if len(results) == 0 {
		return Result{URL: t.opts.URL}, err
	}
	if err == nil {
		err = results[0].Err
	}
	return results[0], err
}

// RunAll performs the sequence for each page in order. A failing page is
// recorded in its Result and the next page is still processed. The returned
// error is only set when the run as a whole could not go on, for example on
// cancellation. The driver is closed exactly once, after the last page.
func (t *Trigger) RunAll(ctx context.Context, urls []string) ([]Result, error) {
	if t.ran {
		return nil, fmt.Errorf("trigger already ran (state %s)", t.state)
	}
	t.ran = true
	defer func() {
		if cerr := t.driver.Close(); cerr != nil {
			t.logger.Printf("⚠️ Warning: could not close browser: %v", cerr)
		}
		t.state = StateClosed
		t.logger.Println("✓ Browser closed")
	}()

	results := make([]Result, 0, len(urls))
	for i, url := range urls {
		if i > 0 && t.opts.Pause > 0 {
			t.logger.Printf("Pausing %v before the next lobby...", t.opts.Pause)
			select {
			case <-ctx.Done():
			case <-time.After(t.opts.Pause):
			}
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		t.logger.Printf("[%d/%d] %s", i+1, len(urls), url)
		res := t.lobby(ctx, url)
		results = append(results, res)
		if res.Err != nil {
			t.logger.Printf("❌ Lobby failed: %v", res.Err)
		}
	}
	return results, ctx.Err()
}

// lobby runs the sequence for one page.
func (t *Trigger) lobby(ctx context.Context, url string) (res Result) {
	res.URL = url
	t.state = StateInit
	defer func() { res.Reached = t.state }()

	navCtx, cancel := context.WithTimeout(ctx, t.opts.ReadyTimeout)
	err := t.driver.Navigate(navCtx, url)
	cancel()
	if err != nil {
		res.Err = fmt.Errorf("page did not load within %v: %w", t.opts.ReadyTimeout, err)
		return res
	}
	if err := t.driver.WaitReady(ctx, t.opts.ReadyTimeout); err != nil {
		res.Err = err
		return res
	}
	t.state = StateNavigated

	if t.opts.SaveSnapshot {
		path, err := t.saveSnapshot(ctx, url)
		if err != nil {
			t.logger.Printf("⚠️ Warning: could not save page snapshot: %v", err)
			res.Errors = append(res.Errors, err.Error())
		} else {
			res.Snapshot = path
			t.logger.Printf("✓ Page content saved to: %s", path)
		}
	}

	t.logger.Printf("Looking for %s...", t.opts.Selector)
	el, err := t.driver.Find(ctx, t.opts.Selector, t.opts.LocateTimeout)
	if err != nil {
		res.Err = err
		return res
	}
	t.state = StateLocated
	t.logger.Println("✓ Button found")

	if err := t.driver.ScrollIntoView(ctx, el); err != nil {
		res.Err = err
		return res
	}

	awaiter, err := t.opts.NewAwaiter()
	if err != nil {
		res.Err = err
		return res
	}
	defer awaiter.Close()

	if err := t.activate(ctx, el, &res); err != nil {
		res.Err = err
		return res
	}
	t.state = StateActivated

	t.logger.Println("Waiting for file download...")
	file, err := awaiter.Wait(ctx, t.opts.DownloadTimeout)
	if err != nil {
		res.Err = err
		return res
	}
	res.File = file
	t.state = StateAwaited
	t.logger.Printf("✓ File downloaded to: %s", file)
	return res
}

// activate clicks natively and falls back to a script click on any error.
// The native failure is kept in res.Errors when the fallback succeeds.
func (t *Trigger) activate(ctx context.Context, el page.Element, res *Result) error {
	t.logger.Println("Waiting for button to become clickable...")

	clickErr := t.driver.WaitInteractable(ctx, el, t.opts.ClickTimeout)
	if clickErr == nil {
		clickErr = t.driver.Click(ctx, el)
	}
	if clickErr == nil {
		t.logger.Println("✓ Button pressed!")
		res.Activation = ActivationNative
		return nil
	}

	t.logger.Printf("Error clicking button: %v", clickErr)
	res.Errors = append(res.Errors, clickErr.Error())
	if err := t.driver.ScriptClick(ctx, el); err != nil {
		return fmt.Errorf("script click after %v: %w", clickErr, err)
	}
	t.logger.Println("✓ Button pressed via JavaScript!")
	res.Activation = ActivationScript
	return nil
}

func (t *Trigger) saveSnapshot(ctx context.Context, url string) (string, error) {
	html, err := t.driver.HTML(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(t.opts.DownloadDir, SnapshotName(url))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("could not write %s: %w", path, err)
	}
	return path, nil
}

// SnapshotName derives the snapshot file name from the page's path, so
// ".../lobbies/3/19882b" is saved as "lobbies_3_19882b_page_content.html".
func SnapshotName(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}

	parts := strings.Split(url, "/")
	var keep []string
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" && p != "." && p != ".." {
			keep = append(keep, p)
		}
	}
	if len(keep) == 0 {
		return SnapshotSuffix
	}
	return strings.Join(keep, "_") + "_" + SnapshotSuffix
}
