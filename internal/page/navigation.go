package page

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ReadyCheckInterval is how often document.readyState is polled.
const ReadyCheckInterval = 250 * time.Millisecond

// Navigate loads url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Printf("Opening %s...", url)
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("could not open %s: %w", url, err)
	}
	return nil
}

// WaitReady polls until the document has finished loading or timeout elapses.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.After(timeout)
	check := time.NewTicker(ReadyCheckInterval)
	defer check.Stop()

	for {
		var state string
		if err := s.run(ctx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return fmt.Errorf("could not read document state: %w", err)
		}
		if state == "complete" {
			s.logger.Println("✓ Page loaded")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("page not ready after %v (readyState=%q)", timeout, state)
		case <-check.C:
		}
	}
}
