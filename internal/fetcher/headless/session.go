// Package headless drives a scripted headless browser session that reveals
// the priority-1 ranking table and captures the rendered markup.
package headless

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
)

// Element is a handle to a DOM node found by Session.WaitForElement.
type Element struct {
	Selector string
	NodeID   cdp.NodeID
}

// Session is the browser control surface the Driver depends on.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitForElement(ctx context.Context, selector string, bound time.Duration) (Element, error)
	ScrollIntoView(ctx context.Context, el Element) error
	ExecuteScript(ctx context.Context, function string, el Element) error
	Markup(ctx context.Context) (string, error)
	Close() error
}

// Launcher starts isolated browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
