package page

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	scrollIntoViewJS = `function() { this.scrollIntoView({block: "center"}); }`
	clickJS          = `function() { this.click(); }`
)

// Find returns the first element matching selector, waiting up to timeout for
// it to appear. The error wraps ErrNotFound when nothing matched in time.
func (s *Session) Find(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	findCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var nodes []*cdp.Node
	err := s.run(findCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery))
	switch {
	case ctx.Err() != nil:
		return Element{}, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return Element{}, fmt.Errorf("%w: %s (waited %v)", ErrNotFound, selector, timeout)
	case err != nil:
		return Element{}, fmt.Errorf("could not query %s: %w", selector, err)
	case len(nodes) == 0:
		return Element{}, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}

	return Element{Selector: selector, node: nodes[0]}, nil
}

// ScrollIntoView scrolls the element to the middle of the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, el Element) error {
	if err := s.callOn(ctx, el, scrollIntoViewJS); err != nil {
		return fmt.Errorf("could not scroll to %s: %w", el.Selector, err)
	}
	return nil
}

// WaitInteractable waits up to timeout for the element to be visible and enabled.
func (s *Session) WaitInteractable(ctx context.Context, el Element, timeout time.Duration) error {
	if el.node == nil {
		return fmt.Errorf("element %s has no node", el.Selector)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ids := []cdp.NodeID{el.node.NodeID}
	if err := s.run(waitCtx,
		chromedp.WaitVisible(ids, chromedp.ByNodeID),
		chromedp.WaitEnabled(ids, chromedp.ByNodeID),
	); err != nil {
		return fmt.Errorf("%s not clickable after %v: %w", el.Selector, timeout, err)
	}
	return nil
}

// Click dispatches a native mouse click on the element's center.
func (s *Session) Click(ctx context.Context, el Element) error {
	if el.node == nil {
		return fmt.Errorf("element %s has no node", el.Selector)
	}
	if err := s.run(ctx, chromedp.MouseClickNode(el.node)); err != nil {
		return fmt.Errorf("click on %s failed: %w", el.Selector, err)
	}
	return nil
}

// ScriptClick calls element.click() in the page, skipping visibility checks.
func (s *Session) ScriptClick(ctx context.Context, el Element) error {
	if err := s.callOn(ctx, el, clickJS); err != nil {
		return fmt.Errorf("script click on %s failed: %w", el.Selector, err)
	}
	return nil
}

// callOn runs fn with this bound to the element's DOM node.
func (s *Session) callOn(ctx context.Context, el Element, fn string) error {
	if el.node == nil {
		return fmt.Errorf("element %s has no node", el.Selector)
	}

	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(el.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		_, exception, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithUserGesture(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		return nil
	}))
}
