// Package page drives a single browser tab: navigation, element lookup and clicks.
package page

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/cantalupo555/lobby-downloader/internal/browser"
)

// ErrNotFound is returned when no element matches a selector.
var ErrNotFound = errors.New("element not found")

// Element is a handle to one DOM node found in a Session.
// It is only valid inside the session that produced it.
type Element struct {
	Selector string
	node     *cdp.Node
}

// Session is the tab of a running browser.
type Session struct {
	bc     *browser.Context
	logger *log.Logger
}

// NewSession wraps a browser context. The session takes ownership of it.
func NewSession(bc *browser.Context, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{bc: bc, logger: logger}
}

// Ctx returns the chromedp context of the tab.
func (s *Session) Ctx() context.Context {
	return s.bc.Ctx
}

// run executes actions in the tab, cancelling them when ctx is done.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, cancel := context.WithCancel(s.bc.Ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tabCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// HTML returns the outer HTML of the loaded document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("could not read page HTML: %w", err)
	}
	return html, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.bc.Close()
	return nil
}
