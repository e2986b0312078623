// Package pw implements driver.Driver with playwright-go. Windows are the
// pages of a single browser context and are addressed by generated handles.
package pw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
	"github.com/xkilldash9x/pagegate/internal/config"
)

const installTimeout = 5 * time.Minute

// actionTimeout bounds a single playwright call so a vanished element fails
// fast instead of waiting on playwright's own 30s default.
const actionTimeout = 2 * time.Second

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("playwright session closed")

type window struct {
	handle string
	page   playwright.Page
}

// Driver is a driver.Driver over one playwright browser context.
type Driver struct {
	logger  *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext

	mu       sync.Mutex
	windows  []window
	current  string
	implicit time.Duration
	poll     time.Duration
	closed   bool
}

var _ driver.Driver = (*Driver)(nil)

// Install downloads the chromium build playwright drives.
func Install(ctx context.Context, logger *zap.Logger) error {
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("installing playwright browsers: %w", err)
		}
		logger.Info("Playwright browsers installed.")
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("waiting for playwright installation: %w", installCtx.Err())
	}
}

// LaunchOptions maps the browser configuration onto playwright's launch options.
func LaunchOptions(cfg config.BrowserConfig) playwright.BrowserTypeLaunchOptions {
	args := []string{"--disable-dev-shm-usage"}
	if cfg.NoSandbox {
		args = append(args, "--no-sandbox")
	}
	if cfg.DisableGPU {
		args = append(args, "--disable-gpu")
	}
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     append(args, cfg.Args...),
	}
	if cfg.LaunchTimeout > 0 {
		opts.Timeout = playwright.Float(float64(cfg.LaunchTimeout.Milliseconds()))
	}
	if cfg.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}
	return opts
}

// New starts the playwright driver, launches chromium and opens one page.
func New(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("playwright")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright driver: %w", err)
	}
	browser, err := pw.Chromium.Launch(LaunchOptions(cfg))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: cfg.WindowWidth, Height: cfg.WindowHeight}
	}
	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	bctx.SetDefaultTimeout(float64(actionTimeout.Milliseconds()))

	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	d := &Driver{
		logger:  logger,
		pw:      pw,
		browser: browser,
		bctx:    bctx,
		poll:    waitCfg.PollInterval,
	}
	d.current = d.track(page)
	logger.Info("Browser session started.", zap.String("browser_version", browser.Version()))
	return d, nil
}

// track returns the handle of p, assigning one on first sight. Callers hold no lock.
func (d *Driver) track(p playwright.Page) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.windows {
		if w.page == p {
			return w.handle
		}
	}
	h := uuid.NewString()
	d.windows = append(d.windows, window{handle: h, page: p})
	return h
}

func (d *Driver) page(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	for _, w := range d.windows {
		if w.handle == d.current {
			return w.page, nil
		}
	}
	return nil, fmt.Errorf("window %s is closed", d.current)
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
	p, err := d.page(ctx)
	if err != nil {
		return nil, err
	}
	locs, err := p.Locator("xpath=" + xpath).All()
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", xpath, err)
	}
	out := make([]driver.Element, len(locs))
	for i, l := range locs {
		out[i] = &element{id: fmt.Sprintf("%s >> nth=%d", xpath, i), loc: l}
	}
	return out, nil
}

func (d *Driver) ScrollIntoView(ctx context.Context, el driver.Element) error {
	e, err := own(ctx, el)
	if err != nil {
		return err
	}
	return mapErr(e.loc.ScrollIntoViewIfNeeded())
}

func (d *Driver) MoveTo(ctx context.Context, el driver.Element) error {
	e, err := own(ctx, el)
	if err != nil {
		return err
	}
	return mapErr(e.loc.Hover())
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	p, err := d.page(ctx)
	if err != nil {
		return err
	}
	_, err = p.Goto(url)
	return err
}

func (d *Driver) Back(ctx context.Context) error {
	p, err := d.page(ctx)
	if err != nil {
		return err
	}
	_, err = p.GoBack()
	return err
}

// ClosePage closes the focused page; focus stays on its handle until a switch.
func (d *Driver) ClosePage(ctx context.Context) error {
	p, err := d.page(ctx)
	if err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.windows {
		if w.page == p {
			d.windows = append(d.windows[:i], d.windows[i+1:]...)
			break
		}
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	p, err := d.page(ctx)
	if err != nil {
		return "", err
	}
	return p.URL(), nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	p, err := d.page(ctx)
	if err != nil {
		return "", err
	}
	return p.Title()
}

func (d *Driver) WindowHandle(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrClosed
	}
	return d.current, nil
}

// WindowHandles lists open pages in the order the browser context reports them,
// picking up pages opened by the site (popups, target=_blank).
func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	pages := d.bctx.Pages()
	handles := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.IsClosed() {
			continue
		}
		handles = append(handles, d.track(p))
	}
	return handles, nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	if _, err := d.WindowHandles(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range d.windows {
		if w.handle == handle {
			d.current = handle
			return w.page.BringToFront()
		}
	}
	return fmt.Errorf("no such window: %s", handle)
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	p, err := d.page(ctx)
	if err != nil {
		return nil, err
	}
	return p.Screenshot()
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

// Close shuts down the browser and the playwright driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var errs []error
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing browser: %w", err))
	}
	if err := d.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
	}
	d.logger.Info("Browser session closed.")
	return errors.Join(errs...)
}
