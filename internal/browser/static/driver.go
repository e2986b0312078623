// Package static implements driver.Driver over a parsed HTML document. It
// runs locators without a browser: useful for checking XPath expressions
// against a saved page and for exercising flows in tests. Scripts never run,
// so visibility is judged from markup alone.
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
	"github.com/xkilldash9x/pagegate/internal/config"
)

// MainWindow is the only window handle.
const MainWindow = "main"

// ErrDisabled is returned when clicking or typing into a disabled control.
var ErrDisabled = errors.New("element is disabled")

type page struct {
	url string
	doc *html.Node
}

// Driver is a driver.Driver over documents loaded from an afero filesystem.
type Driver struct {
	fs     afero.Fs
	logger *zap.Logger

	mu       sync.Mutex
	cur      page
	history  []page
	gen      uint64
	implicit time.Duration
	poll     time.Duration
	closed   bool
}

var _ driver.Driver = (*Driver)(nil)

// New loads the document at path (a file path or file:// URL) from fs.
func New(fs afero.Fs, path string, waitCfg config.WaitConfig, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	d := &Driver{fs: fs, logger: logger.Named("static"), poll: waitCfg.PollInterval}
	p, err := d.load(path)
	if err != nil {
		return nil, err
	}
	d.cur = p
	return d, nil
}

// Parse builds a driver over an in-memory document reported at location.
func Parse(src, location string, logger *zap.Logger) (*Driver, error) {
	doc, err := htmlquery.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		fs:     afero.NewMemMapFs(),
		logger: logger.Named("static"),
		cur:    page{url: location, doc: doc},
	}, nil
}

func (d *Driver) load(location string) (page, error) {
	path := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		if u.Scheme != "file" {
			return page{}, fmt.Errorf("%w: cannot fetch %s URLs", driver.ErrUnsupported, u.Scheme)
		}
		path = u.Path
	}
	data, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return page{}, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := htmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return page{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if !strings.HasPrefix(location, "file://") {
		location = "file://" + path
	}
	return page{url: location, doc: doc}, nil
}

func (d *Driver) snapshot(ctx context.Context) (*html.Node, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, 0, errors.New("page closed")
	}
	return d.cur.doc, d.gen, nil
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
	doc, gen, err := d.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(doc, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", xpath, err)
	}
	out := make([]driver.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		out = append(out, &element{d: d, node: n, gen: gen})
	}
	return out, nil
}

func (d *Driver) own(ctx context.Context, el driver.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e.d != d {
		return nil, fmt.Errorf("element %s does not belong to this document", el.ID())
	}
	return e, e.live(ctx)
}

// ScrollIntoView has nothing to scroll; it only checks el is still attached.
func (d *Driver) ScrollIntoView(ctx context.Context, el driver.Element) error {
	_, err := d.own(ctx, el)
	return err
}

func (d *Driver) MoveTo(ctx context.Context, el driver.Element) error {
	_, err := d.own(ctx, el)
	return err
}

// Navigate loads a local document. Remote URLs return driver.ErrUnsupported.
func (d *Driver) Navigate(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.load(location)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, d.cur)
	d.cur = p
	d.gen++
	d.closed = false
	return nil
}

func (d *Driver) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return nil
	}
	d.cur = d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	d.gen++
	return nil
}

func (d *Driver) ClosePage(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.gen++
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if _, _, err := d.snapshot(ctx); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cur.url, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	doc, _, err := d.snapshot(ctx)
	if err != nil {
		return "", err
	}
	n := htmlquery.FindOne(doc, "//head/title")
	if n == nil {
		return "", nil
	}
	return strings.TrimSpace(htmlquery.InnerText(n)), nil
}

func (d *Driver) WindowHandle(ctx context.Context) (string, error) { return MainWindow, nil }

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	return []string{MainWindow}, nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	if handle != MainWindow {
		return fmt.Errorf("no such window: %s", handle)
	}
	return nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("%w: static documents are not rendered", driver.ErrUnsupported)
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

func (d *Driver) Close() error { return nil }

// HTML renders the current document, including changes made by clicks and typing.
func (d *Driver) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.cur.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
