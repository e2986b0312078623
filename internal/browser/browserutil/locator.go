package browserutil

import "fmt"

// Locator is an XPath query, either literal or a template with one
// substitution value. The zero value is an empty query.
type Locator struct {
	expr      string
	value     string
	templated bool
}

// XPath returns a literal locator.
func XPath(expr string) Locator {
	return Locator{expr: expr}
}

// XPathf returns a templated locator. The template must contain exactly one
// verb, which value is rendered into (usually %s).
func XPathf(template, value string) Locator {
	return Locator{expr: template, value: value, templated: true}
}

// Query renders the XPath sent to the driver.
func (l Locator) Query() string {
	if !l.templated {
		return l.expr
	}
	return fmt.Sprintf(l.expr, l.value)
}

// Templated reports whether the locator carries a substitution value.
func (l Locator) Templated() bool { return l.templated }

func (l Locator) String() string { return l.Query() }
