package static

import (
	"context"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/config"
)

const loginPage = `<!DOCTYPE html>
<html>
<head><title> Sign in </title><script>var x = 1;</script></head>
<body>
	<div id="header"><h1>Welcome</h1></div>
	<form id="login">
		<input name="email" type="email" value="">
		<input name="token" type="hidden" value="abc">
		<input name="remember" type="checkbox" checked>
		<input name="terms" type="checkbox">
		<input name="plan" type="radio" value="free" checked>
		<input name="plan" type="radio" value="pro">
		<select name="lang"><option selected>en</option><option>fr</option></select>
		<textarea name="notes">hi</textarea>
		<fieldset disabled><input name="locked"></fieldset>
		<button id="submit" type="submit">Sign in</button>
		<button id="later" disabled>Later</button>
	</form>
	<div style="display: none"><p class="msg">Hidden</p></div>
	<p class="msg" hidden>Also hidden</p>
	<p class="msg">Shown</p>
</body>
</html>`

func parse(t *testing.T) *Driver {
	t.Helper()
	d, err := Parse(loginPage, "file:///site/login.html", zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func one(t *testing.T, d *Driver, xpath string) driver.Element {
	t.Helper()
	els, err := d.FindElements(context.Background(), xpath)
	require.NoError(t, err)
	require.Len(t, els, 1, xpath)
	return els[0]
}

func TestFindElements(t *testing.T) {
	d := parse(t)
	ctx := context.Background()

	els, err := d.FindElements(ctx, "//p[@class='msg']")
	require.NoError(t, err)
	assert.Len(t, els, 3)

	els, err = d.FindElements(ctx, "//blink")
	require.NoError(t, err)
	assert.Empty(t, els)

	// Text nodes are not elements.
	els, err = d.FindElements(ctx, "//h1/text()")
	require.NoError(t, err)
	assert.Empty(t, els)

	_, err = d.FindElements(ctx, "//p[")
	assert.Error(t, err)
}

func TestElementState(t *testing.T) {
	d := parse(t)
	ctx := context.Background()

	tests := []struct {
		xpath     string
		displayed bool
		enabled   bool
		selected  bool
	}{
		{"//input[@name='email']", true, true, false},
		{"//input[@name='token']", false, true, false},
		{"//input[@name='remember']", true, true, true},
		{"//input[@name='locked']", true, false, false},
		{"//button[@id='later']", true, false, false},
		{"//div[@style]/p", false, true, false},
		{"//p[@hidden]", false, true, false},
		{"//option[1]", true, true, true},
		{"//head/title", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.xpath, func(t *testing.T) {
			el := one(t, d, tt.xpath)
			shown, err := el.Displayed(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.displayed, shown, "displayed")
			en, err := el.Enabled(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, en, "enabled")
			sel, err := el.Selected(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.selected, sel, "selected")
		})
	}
}

func TestTextAndAttribute(t *testing.T) {
	d := parse(t)
	ctx := context.Background()

	text, err := one(t, d, "//button[@id='submit']").Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sign in", text)

	v, err := one(t, d, "//input[@name='token']").Attribute(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	title, err := d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sign in", title)

	url, err := d.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file:///site/login.html", url)
}

func TestClick(t *testing.T) {
	d := parse(t)
	ctx := context.Background()

	terms := one(t, d, "//input[@name='terms']")
	require.NoError(t, terms.Click(ctx))
	sel, _ := terms.Selected(ctx)
	assert.True(t, sel)
	require.NoError(t, terms.Click(ctx))
	sel, _ = terms.Selected(ctx)
	assert.False(t, sel)

	pro := one(t, d, "//input[@value='pro']")
	require.NoError(t, pro.Click(ctx))
	sel, _ = pro.Selected(ctx)
	assert.True(t, sel)
	sel, _ = one(t, d, "//input[@value='free']").Selected(ctx)
	assert.False(t, sel, "radio group keeps a single selection")

	fr := one(t, d, "//option[2]")
	require.NoError(t, fr.Click(ctx))
	sel, _ = one(t, d, "//option[1]").Selected(ctx)
	assert.False(t, sel)

	err := one(t, d, "//button[@id='later']").Click(ctx)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSendKeys(t *testing.T) {
	d := parse(t)
	ctx := context.Background()

	email := one(t, d, "//input[@name='email']")
	require.NoError(t, email.SendKeys(ctx, "ada@"))
	require.NoError(t, email.SendKeys(ctx, "example.test"))
	v, _ := email.Attribute(ctx, "value")
	assert.Equal(t, "ada@example.test", v)

	notes := one(t, d, "//textarea")
	require.NoError(t, notes.SendKeys(ctx, " there"))
	text, _ := notes.Text(ctx)
	assert.Equal(t, "hi there", text)

	assert.ErrorIs(t, one(t, d, "//input[@name='locked']").SendKeys(ctx, "x"), ErrDisabled)
	assert.Error(t, one(t, d, "//h1").SendKeys(ctx, "x"))

	out, err := d.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, `value="ada@example.test"`)
}

func TestNavigateAndStaleness(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/login.html", []byte(loginPage), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/site/home.html", []byte(`<html><head><title>Home</title></head><body><p>hi</p></body></html>`), 0o644))

	d, err := New(fs, "/site/login.html", config.WaitConfig{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	url, err := d.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file:///site/login.html", url)

	h1 := one(t, d, "//h1")
	require.NoError(t, d.Navigate(ctx, "file:///site/home.html"))

	title, err := d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Home", title)

	_, err = h1.Text(ctx)
	assert.ErrorIs(t, err, driver.ErrStaleElement)
	assert.ErrorIs(t, d.ScrollIntoView(ctx, h1), driver.ErrStaleElement)

	require.NoError(t, d.Back(ctx))
	title, err = d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Sign in", title)

	assert.ErrorIs(t, d.Navigate(ctx, "https://example.test/"), driver.ErrUnsupported)
	assert.Error(t, d.Navigate(ctx, "/site/missing.html"))

	_, err = New(fs, "/nope.html", config.WaitConfig{}, nil)
	assert.Error(t, err)
}

func TestWindowsAndScreenshot(t *testing.T) {
	d := parse(t)
	ctx := context.Background()

	handles, err := d.WindowHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{MainWindow}, handles)
	h, err := d.WindowHandle(ctx)
	require.NoError(t, err)
	assert.Equal(t, MainWindow, h)
	assert.NoError(t, d.SwitchToWindow(ctx, MainWindow))
	assert.Error(t, d.SwitchToWindow(ctx, "popup"))

	_, err = d.Screenshot(ctx)
	assert.ErrorIs(t, err, driver.ErrUnsupported)

	require.NoError(t, d.ClosePage(ctx))
	_, err = d.FindElements(ctx, "//p")
	assert.Error(t, err)
	assert.NoError(t, d.Close())
}

func TestNodePath(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`
	<html><body>
		<div id="header"><h1>Welcome</h1></div>
		<div class="content"><p>P1</p><p>P2</p>
			<ul><li>Item 1</li><li>Item 2</li><li id="special">Item 3</li></ul>
		</div>
		<div class="content"><p>P3</p></div>
		<span id="it's">quote</span>
	</body></html>`))
	require.NoError(t, err)

	tests := []struct {
		target string
		want   string
	}{
		{"//body", "/html[1]/body[1]"},
		{"//div[@id='header']", `//*[@id='header']`},
		{"//h1", `//*[@id='header']/h1[1]`},
		{"(//p)[2]", "/html[1]/body[1]/div[2]/p[2]"},
		{"(//div[@class='content'])[2]/p", "/html[1]/body[1]/div[3]/p[1]"},
		{"//ul/li[2]", "/html[1]/body[1]/div[2]/ul[1]/li[2]"},
		{"//li[@id='special']", `//*[@id='special']`},
		{"//span", `//*[@id="it's"]`},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			n := htmlquery.FindOne(doc, tt.target)
			require.NotNil(t, n)
			got := nodePath(n)
			assert.Equal(t, tt.want, got)
			assert.Same(t, n, htmlquery.FindOne(doc, got), "path must select the original node")
		})
	}
	assert.Empty(t, nodePath(nil))
}

func TestQuoteXPath(t *testing.T) {
	assert.Equal(t, "'plain'", quoteXPath("plain"))
	assert.Equal(t, `"it's"`, quoteXPath("it's"))
	assert.Equal(t, `concat('say "hi" it', "'", 's')`, quoteXPath(`say "hi" it's`))
}

func TestImplicitWait(t *testing.T) {
	d := parse(t)
	ctx := context.Background()
	require.NoError(t, d.SetImplicitWait(ctx, 0))
	els, err := d.FindElements(ctx, "//h1")
	require.NoError(t, err)
	assert.Len(t, els, 1)
}
