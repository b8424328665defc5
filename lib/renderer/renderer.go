package renderer

import (
	"context"
	"time"
)

// Element is an opaque handle to a rendered DOM node. The HTML snapshot
// is what field extraction runs against, so the sync core never touches
// the live page tree.
type Element interface {
	HTML() string
}

// Renderer drives a single browser session. Every method is a blocking
// suspension point and must respect context cancellation; WaitForElement
// is additionally bounded by its own timeout.
//
// Exactly one goroutine may use a Renderer at a time.
type Renderer interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// WaitForElement blocks until an element matching the selector becomes
	// visible, returning (nil, nil) when the budget elapses without a match.
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	Elements(ctx context.Context, selector string) ([]Element, error)
	Click(ctx context.Context, el Element) error
	TypeInto(ctx context.Context, el Element, text string) error
	Quit(ctx context.Context) error
}

// Factory provisions a Renderer for the duration of one sync run.
// Driver discovery, anti-automation flags and profile selection all live
// behind this.
type Factory func(ctx context.Context) (Renderer, error)
