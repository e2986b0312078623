// Package cdp implements driver.Driver on top of chromedp. Every window is a
// page target; the driver keeps one chromedp context per attached target and
// runs each action on the focused one, bounded by the caller's context.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
	"github.com/xkilldash9x/pagegate/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("chromedp session closed")

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Driver is a driver.Driver backed by a single Chrome instance.
type Driver struct {
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	primary  target.ID
	current  target.ID
	tabs     map[target.ID]tab
	implicit time.Duration
	poll     time.Duration
	closed   bool
}

var _ driver.Driver = (*Driver)(nil)

// New launches Chrome, or attaches to cfg.RemoteURL when set, and waits for
// the first tab to be ready. The browser is not tied to ctx; call Close.
func New(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cdp")

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		logger.Info("Attaching to remote browser.", zap.String("url", cfg.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(Detach(ctx), cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(Detach(ctx), ExecAllocatorOptions(cfg)...)
	}

	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	launchTimeout := cfg.LaunchTimeout
	if launchTimeout <= 0 {
		launchTimeout = config.NewDefaultConfig().Browser.LaunchTimeout
	}

	// The first Run allocates the browser and must use the browser context
	// itself; a derived context would tear the browser down when it ends.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()
	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %v", launchTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	id := chromedp.FromContext(browserCtx).Target.TargetID
	d := &Driver{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		primary:       id,
		current:       id,
		tabs:          map[target.ID]tab{id: {ctx: browserCtx, cancel: browserCancel}},
		poll:          waitCfg.PollInterval,
	}
	logger.Info("Browser session started.", zap.String("target", string(id)))
	return d, nil
}

func (d *Driver) focused() (target.ID, context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", nil, ErrClosed
	}
	t, ok := d.tabs[d.current]
	if !ok {
		return "", nil, fmt.Errorf("window %s is no longer attached", d.current)
	}
	return d.current, t.ctx, nil
}

func (d *Driver) tabContext(id target.ID) (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	t, ok := d.tabs[id]
	if !ok {
		return nil, fmt.Errorf("%w: window %s was closed", driver.ErrStaleElement, id)
	}
	return t.ctx, nil
}

// runOn executes actions on the tab id, canceled when either ctx or the tab ends.
func (d *Driver) runOn(ctx context.Context, id target.ID, actions ...chromedp.Action) error {
	tabCtx, err := d.tabContext(id)
	if err != nil {
		return err
	}
	runCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	id, _, err := d.focused()
	if err != nil {
		return err
	}
	return d.runOn(ctx, id, actions...)
}

func (d *Driver) FindElements(ctx context.Context, xpath string) ([]driver.Element, error) {
	d.mu.Lock()
	implicit, poll := d.implicit, d.poll
	d.mu.Unlock()

	if implicit <= 0 {
		return d.query(ctx, xpath)
	}
	els, err := wait.Until(ctx, wait.Options{Condition: "implicit " + xpath, Timeout: implicit, Interval: poll, Ignore: []error{}},
		func(ctx context.Context) ([]driver.Element, bool, error) {
			els, err := d.query(ctx, xpath)
			return els, len(els) > 0, err
		})
	if wait.IsTimeout(err) {
		return nil, nil
	}
	return els, err
}

func (d *Driver) query(ctx context.Context, xpath string) ([]driver.Element, error) {
	id, _, err := d.focused()
	if err != nil {
		return nil, err
	}
	var nodes []*cdpproto.Node
	if err := d.runOn(ctx, id, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("querying %s: %w", xpath, err)
	}
	out := make([]driver.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{d: d, tab: id, node: n})
	}
	return out, nil
}

func (d *Driver) ScrollIntoView(ctx context.Context, el driver.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	return e.scrollIntoView(ctx)
}

func (d *Driver) MoveTo(ctx context.Context, el driver.Element) error {
	e, err := d.own(el)
	if err != nil {
		return err
	}
	return e.hover(ctx)
}

func (d *Driver) own(el driver.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.d != d {
		return nil, fmt.Errorf("element %s does not belong to this chromedp session", el.ID())
	}
	return e, nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, chromedp.Navigate(url))
}

func (d *Driver) Back(ctx context.Context) error {
	return d.run(ctx, chromedp.NavigateBack())
}

// ClosePage closes the focused window. Focus is left on the closed handle
// until SwitchToWindow is called.
func (d *Driver) ClosePage(ctx context.Context) error {
	id, _, err := d.focused()
	if err != nil {
		return err
	}
	if err := d.runOn(ctx, id, page.Close()); err != nil {
		return err
	}
	d.mu.Lock()
	t := d.tabs[id]
	delete(d.tabs, id)
	d.mu.Unlock()
	if id != d.primary && t.cancel != nil {
		t.cancel()
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, chromedp.Location(&url))
	return url, err
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, chromedp.Title(&title))
	return title, err
}

func (d *Driver) WindowHandle(ctx context.Context) (string, error) {
	id, _, err := d.focused()
	return string(id), err
}

func (d *Driver) pages(ctx context.Context) ([]*target.Info, error) {
	if _, _, err := d.focused(); errors.Is(err, ErrClosed) {
		return nil, err
	}
	runCtx, cancel := CombineContext(d.browserCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(runCtx)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if info.Type == "page" {
			out = append(out, info)
		}
	}
	return out, nil
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	infos, err := d.pages(ctx)
	if err != nil {
		return nil, err
	}
	handles := make([]string, len(infos))
	for i, info := range infos {
		handles[i] = string(info.TargetID)
	}
	return handles, nil
}

// SwitchToWindow focuses handle, attaching to the target the first time it is seen.
func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	id := target.ID(handle)

	d.mu.Lock()
	_, attached := d.tabs[id]
	if attached {
		d.current = id
	}
	d.mu.Unlock()
	if attached {
		return nil
	}

	infos, err := d.pages(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, info := range infos {
		if info.TargetID == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no such window: %s", handle)
	}

	tabCtx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return fmt.Errorf("attaching to window %s: %w", handle, err)
	}

	d.mu.Lock()
	d.tabs[id] = tab{ctx: tabCtx, cancel: cancel}
	d.current = id
	d.mu.Unlock()
	d.logger.Debug("Attached to window.", zap.String("target", handle))
	return nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) SetImplicitWait(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dur < 0 {
		dur = 0
	}
	d.implicit = dur
	return nil
}

// Close detaches every tab and shuts the browser down.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	tabs := d.tabs
	d.tabs = nil
	d.mu.Unlock()

	for id, t := range tabs {
		if id != d.primary && t.cancel != nil {
			t.cancel()
		}
	}
	d.browserCancel()
	d.allocCancel()
	d.logger.Info("Browser session closed.")
	return nil
}
