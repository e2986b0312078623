package browserutil

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

// ToggleOutcome classifies the result of Toggle.
type ToggleOutcome int

const (
	// ToggleFailed means the element could not be toggled; ToggleResult.Err says why.
	ToggleFailed ToggleOutcome = iota
	// ToggleAlreadySelected means the element was selected and was left alone.
	ToggleAlreadySelected
	// ToggleChanged means the element was clicked.
	ToggleChanged
)

func (o ToggleOutcome) String() string {
	switch o {
	case ToggleAlreadySelected:
		return "already_selected"
	case ToggleChanged:
		return "changed"
	default:
		return "failed"
	}
}

// ToggleResult is what Toggle returns instead of an error.
type ToggleResult struct {
	Outcome ToggleOutcome
	Err     error
}

// OK reports whether the element ended up selected by Toggle's account.
func (r ToggleResult) OK() bool { return r.Outcome != ToggleFailed }

// Toggle selects a checkbox or radio button: it scrolls el into view, waits
// until it is clickable and clicks only when it is not selected yet. Failures
// never propagate, including panics raised by the driver; they are reported
// as ToggleFailed with the cause in Err.
func (a *Accessor) Toggle(ctx context.Context, el driver.Element, name string) (res ToggleResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ToggleResult{Outcome: ToggleFailed, Err: fmt.Errorf("toggling %s: panic: %v", label(el, name), r)}
		}
		if res.Outcome == ToggleFailed {
			a.logger.Warn("Could not toggle element.", zap.String("name", name), zap.Error(res.Err))
		}
	}()

	fail := func(err error) ToggleResult {
		return ToggleResult{Outcome: ToggleFailed, Err: err}
	}

	if err := a.drv.ScrollIntoView(ctx, el); err != nil {
		return fail(fmt.Errorf("scrolling %s into view: %w", label(el, name), err))
	}
	if _, err := a.WaitUntilClickable(ctx, el); err != nil {
		return fail(err)
	}
	selected, err := el.Selected(ctx)
	if err != nil {
		return fail(fmt.Errorf("reading selection of %s: %w", label(el, name), err))
	}
	if selected {
		a.logger.Info("Element already selected.", zap.String("name", name), zap.String("element", el.ID()))
		return ToggleResult{Outcome: ToggleAlreadySelected}
	}
	if err := el.Click(ctx); err != nil {
		return fail(fmt.Errorf("clicking %s: %w", label(el, name), err))
	}
	a.logger.Info("Toggled element.", zap.String("name", name), zap.String("element", el.ID()))
	return ToggleResult{Outcome: ToggleChanged}
}
