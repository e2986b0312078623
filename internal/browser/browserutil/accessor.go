// Package browserutil gates element access on readiness conditions and builds
// ordered composite actions (scroll, wait, click, type) on top of any
// driver.Driver. Every wait is a specialisation of wait.Until with its own
// predicate and budget; nothing here keeps state between calls.
package browserutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
	"github.com/xkilldash9x/pagegate/internal/config"
)

// Accessor resolves locators against a driver once a readiness condition holds.
type Accessor struct {
	drv    driver.Driver
	cfg    config.WaitConfig
	logger *zap.Logger
}

// New builds an Accessor. Unset durations in cfg fall back to the package
// defaults; a nil logger discards output.
func New(drv driver.Driver, cfg config.WaitConfig, logger *zap.Logger) *Accessor {
	defaults := config.NewDefaultConfig().Wait
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.URLTimeout <= 0 {
		cfg.URLTimeout = defaults.URLTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.ImplicitTimeout < 0 {
		cfg.ImplicitTimeout = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor{drv: drv, cfg: cfg, logger: logger.Named("browserutil")}
}

// Driver returns the underlying driver.
func (a *Accessor) Driver() driver.Driver { return a.drv }

func (a *Accessor) opts(condition string, timeout time.Duration) wait.Options {
	return wait.Options{Condition: condition, Timeout: timeout, Interval: a.cfg.PollInterval}
}

// first performs one lookup and reports the first match, if any.
func (a *Accessor) first(ctx context.Context, loc Locator) (driver.Element, bool, error) {
	els, err := a.drv.FindElements(ctx, loc.Query())
	if err != nil || len(els) == 0 {
		return nil, false, err
	}
	return els[0], true, nil
}

// GetElement blocks until an element matching loc is present and returns the
// first match, or fails with a *wait.TimeoutError after the configured timeout.
func (a *Accessor) GetElement(ctx context.Context, loc Locator) (driver.Element, error) {
	return wait.Until(ctx, a.opts("presence of "+loc.Query(), a.cfg.Timeout), func(ctx context.Context) (driver.Element, bool, error) {
		return a.first(ctx, loc)
	})
}

// GetElements blocks until at least one element matches loc and returns the
// full match set seen on that poll.
func (a *Accessor) GetElements(ctx context.Context, loc Locator) ([]driver.Element, error) {
	return wait.Until(ctx, a.opts("presence of all "+loc.Query(), a.cfg.Timeout), func(ctx context.Context) ([]driver.Element, bool, error) {
		els, err := a.drv.FindElements(ctx, loc.Query())
		return els, err == nil && len(els) > 0, err
	})
}

// FindElement performs a single lookup without polling. It fails immediately
// with driver.ErrNoSuchElement when nothing matches.
func (a *Accessor) FindElement(ctx context.Context, loc Locator) (driver.Element, error) {
	el, ok, err := a.first(ctx, loc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, driver.NotFound(loc.Query())
	}
	return el, nil
}

// FindElements performs a single lookup; the result may be empty.
func (a *Accessor) FindElements(ctx context.Context, loc Locator) ([]driver.Element, error) {
	return a.drv.FindElements(ctx, loc.Query())
}

// visible waits for the first element matching loc to be displayed.
func (a *Accessor) visible(ctx context.Context, loc Locator) (driver.Element, error) {
	return wait.Until(ctx, a.opts("visibility of "+loc.Query(), a.cfg.Timeout), func(ctx context.Context) (driver.Element, bool, error) {
		el, ok, err := a.first(ctx, loc)
		if !ok || err != nil {
			return nil, false, err
		}
		shown, err := el.Displayed(ctx)
		return el, err == nil && shown, err
	})
}

// ElementDisplayed waits for the element located by loc to become visible and
// then reports whether it is displayed.
func (a *Accessor) ElementDisplayed(ctx context.Context, loc Locator) (bool, error) {
	el, err := a.visible(ctx, loc)
	if err != nil {
		return false, err
	}
	return el.Displayed(ctx)
}

// IsDisplayed is ElementDisplayed for an element already held.
func (a *Accessor) IsDisplayed(ctx context.Context, el driver.Element) (bool, error) {
	if _, err := a.WaitUntilVisible(ctx, el); err != nil {
		return false, err
	}
	return el.Displayed(ctx)
}

// ElementSelected waits for the located element to be visible, not selected,
// and then returns its selection state. Use WaitUntilSelected to block on the
// selection itself.
func (a *Accessor) ElementSelected(ctx context.Context, loc Locator) (bool, error) {
	el, err := a.visible(ctx, loc)
	if err != nil {
		return false, err
	}
	return el.Selected(ctx)
}

// WaitUntilSelected blocks until the located element reports itself selected.
func (a *Accessor) WaitUntilSelected(ctx context.Context, loc Locator) (bool, error) {
	return wait.Until(ctx, a.opts("selection of "+loc.Query(), a.cfg.Timeout), func(ctx context.Context) (bool, bool, error) {
		el, ok, err := a.first(ctx, loc)
		if !ok || err != nil {
			return false, false, err
		}
		sel, err := el.Selected(ctx)
		return sel, err == nil && sel, err
	})
}

// WaitUntilVisible blocks until el is displayed and returns it.
func (a *Accessor) WaitUntilVisible(ctx context.Context, el driver.Element) (driver.Element, error) {
	return wait.Until(ctx, a.opts("visibility of element "+el.ID(), a.cfg.Timeout), func(ctx context.Context) (driver.Element, bool, error) {
		shown, err := el.Displayed(ctx)
		return el, err == nil && shown, err
	})
}

// WaitUntilAllVisible blocks until every element in els is displayed.
func (a *Accessor) WaitUntilAllVisible(ctx context.Context, els []driver.Element) ([]driver.Element, error) {
	return wait.Until(ctx, a.opts(fmt.Sprintf("visibility of %d elements", len(els)), a.cfg.Timeout), func(ctx context.Context) ([]driver.Element, bool, error) {
		for _, el := range els {
			shown, err := el.Displayed(ctx)
			if err != nil || !shown {
				return nil, false, err
			}
		}
		return els, true, nil
	})
}

// WaitUntilClickable blocks until el is both displayed and enabled and returns
// it unchanged. Every click goes through here.
func (a *Accessor) WaitUntilClickable(ctx context.Context, el driver.Element) (driver.Element, error) {
	return wait.Until(ctx, a.opts("clickability of element "+el.ID(), a.cfg.Timeout), func(ctx context.Context) (driver.Element, bool, error) {
		shown, err := el.Displayed(ctx)
		if err != nil || !shown {
			return nil, false, err
		}
		enabled, err := el.Enabled(ctx)
		return el, err == nil && enabled, err
	})
}

// WaitUntilTextEquals blocks until the text of el equals text exactly.
func (a *Accessor) WaitUntilTextEquals(ctx context.Context, el driver.Element, text string) (bool, error) {
	return a.waitText(ctx, el, fmt.Sprintf("text of %s to equal %q", el.ID(), text), func(got string) bool {
		return got == text
	})
}

// WaitUntilTextContains blocks until the text of el contains text.
func (a *Accessor) WaitUntilTextContains(ctx context.Context, el driver.Element, text string) (bool, error) {
	return a.waitText(ctx, el, fmt.Sprintf("text of %s to contain %q", el.ID(), text), func(got string) bool {
		return strings.Contains(got, text)
	})
}

func (a *Accessor) waitText(ctx context.Context, el driver.Element, condition string, match func(string) bool) (bool, error) {
	return wait.Until(ctx, a.opts(condition, a.cfg.Timeout), func(ctx context.Context) (bool, bool, error) {
		got, err := el.Text(ctx)
		ok := err == nil && match(got)
		return ok, ok, err
	})
}

// WaitUntilURLEquals blocks until the current URL equals url. It uses the
// longer URL timeout.
func (a *Accessor) WaitUntilURLEquals(ctx context.Context, url string) error {
	return wait.For(ctx, a.opts(fmt.Sprintf("url to be %q", url), a.cfg.URLTimeout), func(ctx context.Context) (bool, error) {
		got, err := a.drv.CurrentURL(ctx)
		return err == nil && got == url, err
	})
}

// WaitUntilTitleContains blocks until the page title contains s.
func (a *Accessor) WaitUntilTitleContains(ctx context.Context, s string) error {
	return wait.For(ctx, a.opts(fmt.Sprintf("title to contain %q", s), a.cfg.Timeout), func(ctx context.Context) (bool, error) {
		got, err := a.drv.Title(ctx)
		return err == nil && strings.Contains(got, s), err
	})
}

// WaitUntilAttributeContains resolves loc (waiting for presence) and then
// blocks until attribute attr of the element contains value.
func (a *Accessor) WaitUntilAttributeContains(ctx context.Context, loc Locator, attr, value string) (bool, error) {
	el, err := a.GetElement(ctx, loc)
	if err != nil {
		return false, err
	}
	return wait.Until(ctx, a.opts(fmt.Sprintf("attribute %s of %s to contain %q", attr, loc.Query(), value), a.cfg.Timeout),
		func(ctx context.Context) (bool, bool, error) {
			got, err := el.Attribute(ctx, attr)
			ok := err == nil && strings.Contains(got, value)
			return ok, ok, err
		})
}

// ElementText waits for el to be visible and returns its text.
func (a *Accessor) ElementText(ctx context.Context, el driver.Element) (string, error) {
	if _, err := a.WaitUntilVisible(ctx, el); err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// Texts returns the trimmed text of every element, in order.
func (a *Accessor) Texts(ctx context.Context, els []driver.Element) ([]string, error) {
	out := make([]string, 0, len(els))
	for _, el := range els {
		t, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading text of %s: %w", el.ID(), err)
		}
		out = append(out, strings.TrimSpace(t))
	}
	return out, nil
}

// ImplicitWaitOn makes every backend lookup retry for the implicit timeout.
func (a *Accessor) ImplicitWaitOn(ctx context.Context) error {
	return a.drv.SetImplicitWait(ctx, a.cfg.ImplicitTimeout)
}

// ImplicitWaitOff disables backend retrying.
func (a *Accessor) ImplicitWaitOff(ctx context.Context) error {
	return a.drv.SetImplicitWait(ctx, 0)
}

// Sleep pauses for d unless ctx ends first.
func (a *Accessor) Sleep(ctx context.Context, d time.Duration) error {
	return wait.Sleep(ctx, d)
}
