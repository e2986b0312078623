package static

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// nodePath returns an XPath that selects exactly n. The walk stops at the
// nearest ancestor carrying an id, which then anchors the path.
func nodePath(n *html.Node) string {
	if n == nil {
		return ""
	}
	var steps []string
	anchored := false
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(cur.Data)
		if id := htmlquery.SelectAttr(cur, "id"); id != "" {
			steps = append(steps, "//*[@id="+quoteXPath(id)+"]")
			anchored = true
			break
		}
		steps = append(steps, fmt.Sprintf("%s[%d]", tag, siblingIndex(cur, tag)))
	}
	if len(steps) == 0 {
		return "/"
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	p := strings.Join(steps, "/")
	if !anchored {
		p = "/" + p
	}
	return p
}

// siblingIndex is the 1-based position of n among preceding siblings with the same tag.
func siblingIndex(n *html.Node, tag string) int {
	idx := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			idx++
		}
	}
	return idx
}

// quoteXPath renders s as an XPath 1.0 string literal. Values holding both
// quote characters are split with concat().
func quoteXPath(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
