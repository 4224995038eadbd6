package browser

import (
	"context"
	"errors"
	"strings"
)

// closedPatterns are error fragments chromedp and the CDP transport produce
// once the browser process or tab is gone.
var closedPatterns = []string{
	"websocket: close",
	"target closed",
	"browser: not connected",
	"session closed",
	"page closed",
	"connection refused",
	"broken pipe",
	"invalid context",
}

// IsBrowserClosed reports whether err indicates the browser went away
// underneath the run, as opposed to a page-level failure.
func IsBrowserClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range closedPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
