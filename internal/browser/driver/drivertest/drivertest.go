// Package drivertest provides an in-memory driver.Driver for tests. Elements
// are registered against exact XPath strings, may be scheduled to appear after
// a delay, and every call made through the driver or its elements is appended
// to a trace so ordering can be asserted.
package drivertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
)

// Call is one entry of the trace.
type Call struct {
	Method string
	// Target is the element ID, XPath, URL or window handle the call addressed.
	Target string
}

func (c Call) String() string {
	if c.Target == "" {
		return c.Method
	}
	return c.Method + "(" + c.Target + ")"
}

type registration struct {
	xpath    string
	appearAt time.Time
	el       *Element
}

// Driver is a fake driver.Driver. The zero value is not usable; call New.
type Driver struct {
	mu sync.Mutex

	regs     []registration
	calls    []Call
	handles  []string
	current  string
	urls     map[string]string
	titles   map[string]string
	implicit time.Duration
	shot     []byte
	closed   bool

	findErr       error
	scrollErr     error
	switchErr     error
	screenshotErr error
}

var _ driver.Driver = (*Driver)(nil)

// New returns a driver with a single window named "main".
func New() *Driver {
	return &Driver{
		handles: []string{"main"},
		current: "main",
		urls:    map[string]string{},
		titles:  map[string]string{},
		shot:    []byte("\x89PNG\r\n\x1a\n"),
	}
}

// Add registers el as a match for xpath, present immediately.
func (d *Driver) Add(xpath string, el *Element) *Element {
	return d.AddAfter(xpath, 0, el)
}

// AddAfter registers el as a match for xpath once delay has passed.
func (d *Driver) AddAfter(xpath string, delay time.Duration, el *Element) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	el.owner = d
	d.regs = append(d.regs, registration{xpath: xpath, appearAt: time.Now().Add(delay), el: el})
	return el
}

// Remove detaches every element registered for xpath. Removed elements report
// driver.ErrStaleElement from then on.
func (d *Driver) Remove(xpath string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.regs[:0]
	for _, r := range d.regs {
		if r.xpath == xpath {
			r.el.stale = true
			continue
		}
		kept = append(kept, r)
	}
	d.regs = kept
}

// SetWindows replaces the window list and focuses current.
func (d *Driver) SetWindows(current string, handles ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles = append([]string(nil), handles...)
	d.current = current
}

// SetURL sets the URL reported while window handle is focused.
func (d *Driver) SetURL(handle, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls[handle] = url
}

// SetTitle sets the title reported while window handle is focused.
func (d *Driver) SetTitle(handle, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles[handle] = title
}

// FailFind makes every FindElements call return err.
func (d *Driver) FailFind(err error) { d.setErr(&d.findErr, err) }

// FailScroll makes ScrollIntoView return err.
func (d *Driver) FailScroll(err error) { d.setErr(&d.scrollErr, err) }

// FailSwitch makes SwitchToWindow return err.
func (d *Driver) FailSwitch(err error) { d.setErr(&d.switchErr, err) }

// FailScreenshot makes Screenshot return err.
func (d *Driver) FailScreenshot(err error) { d.setErr(&d.screenshotErr, err) }

func (d *Driver) setErr(dst *error, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*dst = err
}

// SetScreenshot sets the bytes returned by Screenshot.
func (d *Driver) SetScreenshot(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shot = b
}

// Calls returns a copy of the trace.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Methods returns the method names of the trace, in order.
func (d *Driver) Methods() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Method
	}
	return out
}

// Count returns how many times method was called.
func (d *Driver) Count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears the trace.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Current returns the focused window handle.
func (d *Driver) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// ImplicitWait returns the implicit wait last set.
func (d *Driver) ImplicitWait() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.implicit
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) record(method, target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: method, Target: target})
}

func (d *Driver) lookup(xpath string) ([]driver.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: "FindElements", Target: xpath})
	if d.findErr != nil {
		return nil, d.findErr
	}
	now := time.Now()
	var out []driver.Element
	for _, r := range d.regs {
		if r.xpath == xpath && !now.Before(r.appearAt) {
			out = append(out, r.el)
		}
	}
	return out, nil
}

func (d *Driver) FindElements(ctx context.Context, xpath string) ([]driver.Element, error) {
	d.mu.Lock()
	implicit := d.implicit
	d.mu.Unlock()

	if implicit <= 0 {
		return d.lookup(xpath)
	}
	els, err := wait.Until(ctx, wait.Options{Condition: "implicit " + xpath, Timeout: implicit, Interval: 10 * time.Millisecond, Ignore: []error{}},
		func(ctx context.Context) ([]driver.Element, bool, error) {
			els, err := d.lookup(xpath)
			return els, len(els) > 0, err
		})
	if err != nil && wait.IsTimeout(err) {
		return nil, nil
	}
	return els, err
}

func (d *Driver) ScrollIntoView(ctx context.Context, el driver.Element) error {
	d.record("ScrollIntoView", el.ID())
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollErr
}

func (d *Driver) MoveTo(ctx context.Context, el driver.Element) error {
	d.record("MoveTo", el.ID())
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.record("Navigate", url)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls[d.current] = url
	return nil
}

func (d *Driver) Back(ctx context.Context) error {
	d.record("Back", "")
	return nil
}

// ClosePage closes the focused window. Focus stays on the closed handle until
// the caller switches, as with a real browser.
func (d *Driver) ClosePage(ctx context.Context) error {
	d.record("ClosePage", d.Current())
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, h := range d.handles {
		if h == d.current {
			d.handles = append(d.handles[:i], d.handles[i+1:]...)
			break
		}
	}
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.record("CurrentURL", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[d.current], nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	d.record("Title", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.titles[d.current], nil
}

func (d *Driver) WindowHandle(ctx context.Context) (string, error) {
	d.record("WindowHandle", "")
	return d.Current(), nil
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	d.record("WindowHandles", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.handles...), nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	d.record("SwitchToWindow", handle)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.switchErr != nil {
		return d.switchErr
	}
	for _, h := range d.handles {
		if h == handle {
			d.current = handle
			return nil
		}
	}
	return fmt.Errorf("no such window: %s", handle)
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.record("Screenshot", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.screenshotErr != nil {
		return nil, d.screenshotErr
	}
	return append([]byte(nil), d.shot...), nil
}

func (d *Driver) SetImplicitWait(ctx context.Context, dur time.Duration) error {
	d.record("SetImplicitWait", dur.String())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.implicit = dur
	return nil
}

func (d *Driver) Close() error {
	d.record("Close", "")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Element is a fake driver.Element. Its state is guarded by the owning
// driver's mutex once registered.
type Element struct {
	id    string
	owner *Driver
	stale bool

	displayed bool
	enabled   bool
	selected  bool
	checkable bool
	text      string
	attrs     map[string]string
	typed     strings.Builder

	clickErr   error
	clickPanic any
}

var _ driver.Element = (*Element)(nil)

// NewElement returns a visible, enabled, unselected element.
func NewElement(id string) *Element {
	return &Element{id: id, displayed: true, enabled: true, attrs: map[string]string{}}
}

// Hidden marks the element as not displayed.
func (e *Element) Hidden() *Element { e.displayed = false; return e }

// Disabled marks the element as not enabled.
func (e *Element) Disabled() *Element { e.enabled = false; return e }

// Checkbox makes clicks flip the selected state.
func (e *Element) Checkbox(selected bool) *Element {
	e.checkable = true
	e.selected = selected
	return e
}

// WithText sets the element text.
func (e *Element) WithText(text string) *Element { e.text = text; return e }

// WithAttr sets an attribute.
func (e *Element) WithAttr(name, value string) *Element { e.attrs[name] = value; return e }

// FailClick makes Click return err.
func (e *Element) FailClick(err error) *Element { e.clickErr = err; return e }

// PanicOnClick makes Click panic with v.
func (e *Element) PanicOnClick(v any) *Element { e.clickPanic = v; return e }

// Update mutates the element under the driver lock, for changes scheduled
// while a wait is polling.
func (e *Element) Update(fn func(e *Element)) {
	e.lock()
	defer e.unlock()
	fn(e)
}

// SetDisplayed sets visibility. Like the other setters it is meant to be
// called inside Update.
func (e *Element) SetDisplayed(v bool) { e.displayed = v }

func (e *Element) SetEnabled(v bool) { e.enabled = v }

func (e *Element) SetSelected(v bool) { e.selected = v }

func (e *Element) SetText(v string) { e.text = v }

func (e *Element) SetAttr(name, value string) { e.attrs[name] = value }

func (e *Element) lock() {
	if e.owner != nil {
		e.owner.mu.Lock()
	}
}

func (e *Element) unlock() {
	if e.owner != nil {
		e.owner.mu.Unlock()
	}
}

// Typed returns everything sent with SendKeys.
func (e *Element) Typed() string {
	e.lock()
	defer e.unlock()
	return e.typed.String()
}

// IsSelected reads the selected flag without recording a call.
func (e *Element) IsSelected() bool {
	e.lock()
	defer e.unlock()
	return e.selected
}

func (e *Element) ID() string { return e.id }

func (e *Element) enter(method string) error {
	if e.owner != nil {
		e.owner.record(method, e.id)
	}
	e.lock()
	defer e.unlock()
	if e.stale {
		return fmt.Errorf("%w: %s", driver.ErrStaleElement, e.id)
	}
	return nil
}

func (e *Element) Displayed(ctx context.Context) (bool, error) {
	if err := e.enter("Displayed"); err != nil {
		return false, err
	}
	e.lock()
	defer e.unlock()
	return e.displayed, nil
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	if err := e.enter("Enabled"); err != nil {
		return false, err
	}
	e.lock()
	defer e.unlock()
	return e.enabled, nil
}

func (e *Element) Selected(ctx context.Context) (bool, error) {
	if err := e.enter("Selected"); err != nil {
		return false, err
	}
	e.lock()
	defer e.unlock()
	return e.selected, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.enter("Text"); err != nil {
		return "", err
	}
	e.lock()
	defer e.unlock()
	return e.text, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, error) {
	if err := e.enter("Attribute"); err != nil {
		return "", err
	}
	e.lock()
	defer e.unlock()
	return e.attrs[name], nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.enter("Click"); err != nil {
		return err
	}
	e.lock()
	clickErr, clickPanic := e.clickErr, e.clickPanic
	if clickErr == nil && clickPanic == nil && e.checkable {
		e.selected = !e.selected
	}
	e.unlock()

	if clickPanic != nil {
		panic(clickPanic)
	}
	return clickErr
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := e.enter("SendKeys"); err != nil {
		return err
	}
	e.lock()
	defer e.unlock()
	e.typed.WriteString(text)
	return nil
}
