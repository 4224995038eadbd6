// Package browser starts and tears down the headless Chrome session used for a run.
package browser

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// Config holds browser configuration options.
type Config struct {
	ExecPath     string
	DownloadDir  string
	Headless     bool
	WindowWidth  int
	WindowHeight int
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}

// Context owns the allocator and tab contexts of one browser session.
type Context struct {
	Ctx context.Context

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	closeOnce   sync.Once
}

// New launches a browser with the given configuration.
// The download directory is created if needed and must be writable.
func New(cfg Config) (*Context, error) {
	if err := ensureWritableDir(cfg.DownloadDir); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))

	// Start the browser now so launch failures surface here and not on first use.
	if err := chromedp.Run(ctx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	return &Context{
		Ctx:         ctx,
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
	}, nil
}

// Close shuts the browser down. Calls after the first are no-ops.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if c.tabCancel != nil {
			c.tabCancel()
		}
		if c.allocCancel != nil {
			c.allocCancel()
		}
	})
}

// ConfigureDownloads makes the browser save downloads to downloadDir without
// prompting and emit download progress events. Files are saved under their
// download GUID; download.Tracker renames them once the browser reports them
// complete.
func ConfigureDownloads(ctx context.Context, downloadDir string) error {
	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	); err != nil {
		return fmt.Errorf("could not set download behavior: %w", err)
	}
	log.Printf("✓ Downloads will be saved to: %s", downloadDir)
	return nil
}

func ensureWritableDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("download directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create download directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("download directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}
