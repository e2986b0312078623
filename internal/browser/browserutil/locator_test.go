package browserutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLocator(t *testing.T) {
	lit := XPath("//div[@id='a']")
	assert.False(t, lit.Templated())
	assert.Equal(t, "//div[@id='a']", lit.Query())
	assert.Equal(t, lit.Query(), lit.String())

	tpl := XPathf("//a[contains(., '%s')]", "Log in")
	assert.True(t, tpl.Templated())
	assert.Equal(t, "//a[contains(., 'Log in')]", tpl.Query())

	assert.Empty(t, Locator{}.Query())
}

func TestLocator_TemplateRendersValueOnce(t *testing.T) {
	noVerb := rapid.StringMatching(`[a-z/\[\]@=' ]{0,20}`)
	rapid.Check(t, func(t *rapid.T) {
		prefix := noVerb.Draw(t, "prefix")
		suffix := noVerb.Draw(t, "suffix")
		value := rapid.String().Draw(t, "value")

		got := XPathf(prefix+"%s"+suffix, value).Query()
		if want := prefix + value + suffix; got != want {
			t.Fatalf("Query() = %q, want %q", got, want)
		}
		if !strings.HasPrefix(got, prefix) {
			t.Fatalf("prefix lost in %q", got)
		}
	})
}
