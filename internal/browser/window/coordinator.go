// Package window implements the parent/child window pattern used by flows
// that open a popup or a new tab. The parent handle lives in a Session value
// owned by the caller; nothing is shared between coordinators.
package window

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

// ErrNoParent is returned by SwitchToParent when the session never recorded one.
var ErrNoParent = errors.New("no parent window recorded")

// Session holds the recorded parent window. Recording again overwrites it;
// nested parent/child stacks are not supported.
type Session struct {
	ID     string
	Parent string
	// Child is the handle SwitchToChild last focused, empty when none.
	Child string
}

// Coordinator switches a driver between a parent window and its child.
type Coordinator struct {
	drv    driver.WindowManager
	nav    driver.Navigator
	logger *zap.Logger
}

// New returns a coordinator for drv.
func New(drv driver.Driver, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{drv: drv, nav: drv, logger: logger.Named("window")}
}

// RecordParent stores the focused window as the parent of a new session.
func (c *Coordinator) RecordParent(ctx context.Context) (*Session, error) {
	handle, err := c.drv.WindowHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading current window: %w", err)
	}
	s := &Session{ID: uuid.NewString(), Parent: handle}
	c.logger.Debug("Recorded parent window.", zap.String("session", s.ID), zap.String("handle", handle))
	return s, nil
}

// RecordParentInto overwrites the parent of an existing session.
func (c *Coordinator) RecordParentInto(ctx context.Context, s *Session) error {
	handle, err := c.drv.WindowHandle(ctx)
	if err != nil {
		return fmt.Errorf("reading current window: %w", err)
	}
	s.Parent = handle
	s.Child = ""
	return nil
}

// SwitchToChild switches to every open window that is not the parent, so the
// last one in the driver's enumeration order ends up focused. That order is
// not guaranteed to be stable when several children are open. With only the
// parent open nothing is switched and the returned handle is empty.
func (c *Coordinator) SwitchToChild(ctx context.Context, s *Session) (string, error) {
	handles, err := c.drv.WindowHandles(ctx)
	if err != nil {
		return "", fmt.Errorf("listing windows: %w", err)
	}
	child := ""
	for _, h := range handles {
		if h == s.Parent {
			continue
		}
		if err := c.drv.SwitchToWindow(ctx, h); err != nil {
			return "", fmt.Errorf("switching to window %s: %w", h, err)
		}
		child = h
	}
	s.Child = child
	if child == "" {
		c.logger.Debug("No child window open.", zap.String("session", s.ID))
	} else {
		c.logger.Info("Switched to child window.", zap.String("session", s.ID), zap.String("handle", child))
	}
	return child, nil
}

// SwitchToParent focuses the recorded parent again.
func (c *Coordinator) SwitchToParent(ctx context.Context, s *Session) error {
	if s == nil || s.Parent == "" {
		return ErrNoParent
	}
	if err := c.drv.SwitchToWindow(ctx, s.Parent); err != nil {
		return fmt.Errorf("switching to parent window %s: %w", s.Parent, err)
	}
	c.logger.Info("Switched to parent window.", zap.String("session", s.ID), zap.String("handle", s.Parent))
	return nil
}

// OpenChild records the focused window as parent and switches to the child.
func (c *Coordinator) OpenChild(ctx context.Context) (*Session, error) {
	s, err := c.RecordParent(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.SwitchToChild(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// ChildTitle opens the child window and returns its title. The session is
// returned so the caller can switch back.
func (c *Coordinator) ChildTitle(ctx context.Context) (string, *Session, error) {
	s, err := c.OpenChild(ctx)
	if err != nil {
		return "", s, err
	}
	title, err := c.nav.Title(ctx)
	return title, s, err
}

// ChildURL opens the child window and returns its URL.
func (c *Coordinator) ChildURL(ctx context.Context) (string, *Session, error) {
	s, err := c.OpenChild(ctx)
	if err != nil {
		return "", s, err
	}
	url, err := c.nav.CurrentURL(ctx)
	return url, s, err
}

// CloseChild closes the focused child window and returns to the parent.
func (c *Coordinator) CloseChild(ctx context.Context, s *Session) error {
	if s == nil || s.Parent == "" {
		return ErrNoParent
	}
	if s.Child != "" {
		if err := c.nav.ClosePage(ctx); err != nil {
			return fmt.Errorf("closing child window %s: %w", s.Child, err)
		}
		s.Child = ""
	}
	return c.SwitchToParent(ctx, s)
}
