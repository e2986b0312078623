package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

type element struct {
	d    *Driver
	node *html.Node
	gen  uint64
}

var _ driver.Element = (*element)(nil)

// ID is the unique XPath of the node.
func (e *element) ID() string { return nodePath(e.node) }

// live fails with driver.ErrStaleElement once the document has been replaced.
func (e *element) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	if e.d.gen != e.gen || e.d.closed {
		return fmt.Errorf("%w: %s", driver.ErrStaleElement, nodePath(e.node))
	}
	return nil
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if !strings.EqualFold(a.Key, name) {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}

// styleHides reports whether an inline style hides the node.
func styleHides(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		switch {
		case prop == "display" && val == "none":
			return true
		case prop == "visibility" && (val == "hidden" || val == "collapse"):
			return true
		case prop == "opacity" && (val == "0" || val == "0.0"):
			return true
		}
	}
	return false
}

var neverRendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "noscript": true, "title": true, "meta": true, "link": true,
}

func displayed(n *html.Node) bool {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, "input") && strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return false
	}
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if neverRendered[strings.ToLower(cur.Data)] || hasAttr(cur, "hidden") || styleHides(htmlquery.SelectAttr(cur, "style")) {
			return false
		}
	}
	return true
}

func enabled(n *html.Node) bool {
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if hasAttr(cur, "disabled") && (cur == n || strings.EqualFold(cur.Data, "fieldset")) {
			return false
		}
	}
	return true
}

func (e *element) read(ctx context.Context, fn func(n *html.Node)) error {
	if err := e.live(ctx); err != nil {
		return err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	fn(e.node)
	return nil
}

func (e *element) Displayed(ctx context.Context) (bool, error) {
	var v bool
	err := e.read(ctx, func(n *html.Node) { v = displayed(n) })
	return v, err
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	var v bool
	err := e.read(ctx, func(n *html.Node) { v = enabled(n) })
	return v, err
}

func (e *element) Selected(ctx context.Context) (bool, error) {
	var v bool
	err := e.read(ctx, func(n *html.Node) { v = hasAttr(n, "checked") || hasAttr(n, "selected") })
	return v, err
}

func (e *element) Text(ctx context.Context) (string, error) {
	var v string
	err := e.read(ctx, func(n *html.Node) { v = htmlquery.InnerText(n) })
	return v, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var v string
	err := e.read(ctx, func(n *html.Node) { v = htmlquery.SelectAttr(n, name) })
	return v, err
}

// Click applies the form state change a browser would make for checkboxes,
// radio buttons and options. Other elements are left as they are.
func (e *element) Click(ctx context.Context) error {
	var err error
	rerr := e.read(ctx, func(n *html.Node) {
		if !enabled(n) {
			err = fmt.Errorf("clicking %s: %w", nodePath(n), ErrDisabled)
			return
		}
		tag := strings.ToLower(n.Data)
		kind := strings.ToLower(htmlquery.SelectAttr(n, "type"))
		switch {
		case tag == "input" && kind == "checkbox":
			if hasAttr(n, "checked") {
				removeAttr(n, "checked")
			} else {
				setAttr(n, "checked", "")
			}
		case tag == "input" && kind == "radio":
			clearRadioGroup(n)
			setAttr(n, "checked", "")
		case tag == "option":
			if sel := enclosing(n, "select"); sel != nil && !hasAttr(sel, "multiple") {
				for _, o := range htmlquery.Find(sel, ".//option") {
					removeAttr(o, "selected")
				}
			}
			setAttr(n, "selected", "")
		}
	})
	if rerr != nil {
		return rerr
	}
	return err
}

func enclosing(n *html.Node, tag string) *html.Node {
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			return cur
		}
	}
	return nil
}

func clearRadioGroup(n *html.Node) {
	name := htmlquery.SelectAttr(n, "name")
	if name == "" {
		return
	}
	root := enclosing(n, "form")
	if root == nil {
		root = n
		for root.Parent != nil {
			root = root.Parent
		}
	}
	for _, r := range htmlquery.Find(root, ".//input[@type='radio'][@name="+quoteXPath(name)+"]") {
		removeAttr(r, "checked")
	}
}

// SendKeys appends text to the value of an input or the content of a textarea.
func (e *element) SendKeys(ctx context.Context, text string) error {
	var err error
	rerr := e.read(ctx, func(n *html.Node) {
		if !enabled(n) {
			err = fmt.Errorf("typing into %s: %w", nodePath(n), ErrDisabled)
			return
		}
		switch strings.ToLower(n.Data) {
		case "input":
			setAttr(n, "value", htmlquery.SelectAttr(n, "value")+text)
		case "textarea":
			n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		default:
			err = fmt.Errorf("typing into %s: element is not editable", nodePath(n))
		}
	})
	if rerr != nil {
		return rerr
	}
	return err
}
