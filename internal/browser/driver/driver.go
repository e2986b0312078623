// Package driver defines the capabilities pagegate needs from a browser
// automation backend. The readiness helpers depend only on these interfaces;
// chromedp, playwright and the static HTML backend each implement them.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoSuchElement is returned by a lookup that matched nothing.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement is returned when an element handle no longer refers to a node in the document.
	ErrStaleElement = errors.New("stale element reference")
	// ErrUnsupported is returned by backends that cannot provide a capability.
	ErrUnsupported = errors.New("operation not supported by backend")
)

// NotFound wraps ErrNoSuchElement with the query that failed.
func NotFound(xpath string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchElement, xpath)
}

// Element is a borrowed handle to a node in the current document.
type Element interface {
	// ID identifies the element for logging. It carries no identity guarantees.
	ID() string
	Displayed(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Selected(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// Locator finds elements by XPath.
type Locator interface {
	// FindElements runs a single query against the current document and returns
	// every match, possibly none. Backends with an implicit wait configured keep
	// retrying until at least one element matches or the implicit wait elapses.
	FindElements(ctx context.Context, xpath string) ([]Element, error)
}

// Actor performs interactions that are not element methods.
type Actor interface {
	// ScrollIntoView scrolls the page so el is inside the viewport.
	ScrollIntoView(ctx context.Context, el Element) error
	// MoveTo moves the pointer over el without clicking.
	MoveTo(ctx context.Context, el Element) error
}

// Navigator drives the current page.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	ClosePage(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

// WindowManager enumerates and switches between top level windows (tabs).
type WindowManager interface {
	WindowHandle(ctx context.Context) (string, error)
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
}

// Screenshotter captures the current viewport as PNG bytes.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Driver is the full capability set of one browser session.
type Driver interface {
	Locator
	Actor
	Navigator
	WindowManager
	Screenshotter

	// SetImplicitWait sets how long FindElements keeps retrying an empty result.
	// Zero disables implicit waiting.
	SetImplicitWait(ctx context.Context, d time.Duration) error
	// Close ends the session and releases the browser.
	Close() error
}
