package browserutil

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

// Click scrolls el into view, waits until it is clickable and clicks it. The
// order is fixed: an element that is off screen or disabled is never clicked.
// name only labels the log entry.
func (a *Accessor) Click(ctx context.Context, el driver.Element, name string) error {
	if err := a.drv.ScrollIntoView(ctx, el); err != nil {
		return fmt.Errorf("scrolling %s into view: %w", label(el, name), err)
	}
	if _, err := a.WaitUntilClickable(ctx, el); err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("clicking %s: %w", label(el, name), err)
	}
	a.logger.Info("Clicked element.", zap.String("name", name), zap.String("element", el.ID()))
	return nil
}

// ClickLocator waits for the element located by loc to be present and then
// clicks it as Click does.
func (a *Accessor) ClickLocator(ctx context.Context, loc Locator) error {
	el, err := a.GetElement(ctx, loc)
	if err != nil {
		return err
	}
	return a.Click(ctx, el, loc.Query())
}

// ClickAndType resolves loc, clicks the element and sends text to it.
func (a *Accessor) ClickAndType(ctx context.Context, loc Locator, text string) error {
	el, err := a.GetElement(ctx, loc)
	if err != nil {
		return err
	}
	if err := a.Click(ctx, el, loc.Query()); err != nil {
		return err
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("typing into %s: %w", loc.Query(), err)
	}
	a.logger.Info("Typed into element.", zap.String("locator", loc.Query()), zap.String("element", el.ID()))
	return nil
}

// ClickAndTypeElement is ClickAndType for an element already held.
func (a *Accessor) ClickAndTypeElement(ctx context.Context, el driver.Element, text, name string) error {
	if err := a.Click(ctx, el, name); err != nil {
		return err
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("typing into %s: %w", label(el, name), err)
	}
	a.logger.Info("Typed into element.", zap.String("name", name), zap.String("element", el.ID()))
	return nil
}

// ScrollTo scrolls el into the viewport.
func (a *Accessor) ScrollTo(ctx context.Context, el driver.Element, name string) error {
	if err := a.drv.ScrollIntoView(ctx, el); err != nil {
		return fmt.Errorf("scrolling %s into view: %w", label(el, name), err)
	}
	a.logger.Info("Scrolled to element.", zap.String("name", name), zap.String("element", el.ID()))
	return nil
}

// ScrollToLocator resolves loc and scrolls the element into the viewport.
func (a *Accessor) ScrollToLocator(ctx context.Context, loc Locator) error {
	el, err := a.GetElement(ctx, loc)
	if err != nil {
		return err
	}
	return a.ScrollTo(ctx, el, loc.Query())
}

// ScrollAndClick scrolls the located element into view before clicking it,
// for elements the readiness waits alone do not bring on screen.
func (a *Accessor) ScrollAndClick(ctx context.Context, loc Locator) error {
	el, err := a.GetElement(ctx, loc)
	if err != nil {
		return err
	}
	if err := a.ScrollTo(ctx, el, loc.Query()); err != nil {
		return err
	}
	return a.Click(ctx, el, loc.Query())
}

// Hover resolves loc and moves the pointer over the element without clicking.
func (a *Accessor) Hover(ctx context.Context, loc Locator) error {
	el, err := a.GetElement(ctx, loc)
	if err != nil {
		return err
	}
	if err := a.drv.MoveTo(ctx, el); err != nil {
		return fmt.Errorf("hovering over %s: %w", loc.Query(), err)
	}
	a.logger.Info("Hovered over element.", zap.String("locator", loc.Query()), zap.String("element", el.ID()))
	return nil
}

func label(el driver.Element, name string) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return "element " + el.ID()
}
