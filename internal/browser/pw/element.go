package pw

import (
	"context"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

type element struct {
	id  string
	loc playwright.Locator
}

var _ driver.Element = (*element)(nil)

func own(ctx context.Context, el driver.Element) (*element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := el.(*element)
	if !ok {
		return nil, fmt.Errorf("element %s does not belong to a playwright session", el.ID())
	}
	return e, nil
}

// mapErr reports a locator that no longer resolves as a stale element.
func mapErr(err error) error {
	if err != nil && errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", driver.ErrStaleElement, err)
	}
	return err
}

func (e *element) ID() string { return e.id }

func (e *element) Displayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.loc.IsVisible()
	return ok, mapErr(err)
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.loc.IsEnabled()
	return ok, mapErr(err)
}

func (e *element) Selected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, err := e.loc.Evaluate("el => !!(el.checked || el.selected)", nil)
	if err != nil {
		return false, mapErr(err)
	}
	sel, _ := v.(bool)
	return sel, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.loc.InnerText()
	return s, mapErr(err)
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := e.loc.GetAttribute(name)
	return s, mapErr(err)
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(e.loc.Click())
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapErr(e.loc.PressSequentially(text))
}
