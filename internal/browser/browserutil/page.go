package browserutil

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Navigate loads url in the current window.
func (a *Accessor) Navigate(ctx context.Context, url string) error {
	a.logger.Info("Navigating.", zap.String("url", url))
	if err := a.drv.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// NavigateBack goes one entry back in history.
func (a *Accessor) NavigateBack(ctx context.Context) error {
	if err := a.drv.Back(ctx); err != nil {
		return fmt.Errorf("navigating back: %w", err)
	}
	return nil
}

// Title returns the title of the current page.
func (a *Accessor) Title(ctx context.Context) (string, error) {
	return a.drv.Title(ctx)
}

// CurrentURL returns the URL of the current page.
func (a *Accessor) CurrentURL(ctx context.Context) (string, error) {
	return a.drv.CurrentURL(ctx)
}

// ClosePage closes the current window.
func (a *Accessor) ClosePage(ctx context.Context) error {
	if err := a.drv.ClosePage(ctx); err != nil {
		return fmt.Errorf("closing page: %w", err)
	}
	return nil
}
