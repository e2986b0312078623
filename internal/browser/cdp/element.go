package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

// Page functions evaluated with the element bound to this.
const (
	jsDisplayed = `function() {
	if (!this.isConnected) return false;
	const s = window.getComputedStyle(this);
	if (s.display === 'none' || s.visibility === 'hidden' || s.opacity === '0') return false;
	const r = this.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
}`
	jsEnabled  = `function() { return !this.disabled; }`
	jsSelected = `function() { return !!(this.checked || this.selected); }`
	jsText     = `function() { return (this.innerText !== undefined ? this.innerText : this.textContent) || ''; }`
	jsAttrTmpl = `function() { const v = this.getAttribute(%s); return v === null ? '' : v; }`
)

type element struct {
	d    *Driver
	tab  target.ID
	node *cdpproto.Node
}

var _ driver.Element = (*element)(nil)

func (e *element) ID() string {
	return fmt.Sprintf("%s[node=%d]", strings.ToLower(e.node.NodeName), e.node.NodeID)
}

func (e *element) run(ctx context.Context, fn func(ctx context.Context) error) error {
	err := e.d.runOn(ctx, e.tab, chromedp.ActionFunc(fn))
	return staleOr(err)
}

// call evaluates fn on the node and decodes the returned value into out.
func (e *element) call(ctx context.Context, fn string, out interface{}) error {
	return e.run(ctx, func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("page function threw: %s", exc.Text)
		}
		if len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(res.Value), out)
	})
}

func (e *element) boolCall(ctx context.Context, fn string) (bool, error) {
	var v bool
	err := e.call(ctx, fn, &v)
	return v, err
}

func (e *element) Displayed(ctx context.Context) (bool, error) { return e.boolCall(ctx, jsDisplayed) }

func (e *element) Enabled(ctx context.Context) (bool, error) { return e.boolCall(ctx, jsEnabled) }

func (e *element) Selected(ctx context.Context) (bool, error) { return e.boolCall(ctx, jsSelected) }

func (e *element) Text(ctx context.Context) (string, error) {
	var s string
	err := e.call(ctx, jsText, &s)
	return s, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var s string
	err := e.call(ctx, fmt.Sprintf(jsAttrTmpl, jsonEncode(name)), &s)
	return s, err
}

func (e *element) Click(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context) error {
		return chromedp.MouseClickNode(e.node).Do(ctx)
	})
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return staleOr(e.d.runOn(ctx, e.tab,
		chromedp.SendKeys([]cdpproto.NodeID{e.node.NodeID}, text, chromedp.ByNodeID)))
}

func (e *element) scrollIntoView(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context) error {
		return dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx)
	})
}

func (e *element) hover(ctx context.Context) error {
	return e.run(ctx, func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		x, y, err := center(box.Content)
		if err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	})
}

// center returns the midpoint of a four point quad.
func center(q dom.Quad) (float64, float64, error) {
	if len(q) != 8 {
		return 0, 0, fmt.Errorf("unexpected quad with %d coordinates", len(q))
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4, nil
}

// staleOr maps protocol errors about vanished nodes to driver.ErrStaleElement.
func staleOr(err error) error {
	if err == nil || errors.Is(err, driver.ErrStaleElement) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "node with given id") || strings.Contains(msg, "node is detached") {
		return fmt.Errorf("%w: %v", driver.ErrStaleElement, err)
	}
	return err
}

func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
