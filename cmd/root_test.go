// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
)

const formPage = `<html><head><title>Form</title></head><body>
<form>
	<input id="email" name="email" value="">
	<input id="terms" type="checkbox">
	<input id="news" type="checkbox" checked>
	<button id="submit">Send</button>
	<button id="later" disabled>Later</button>
</form>
</body></html>`

const fastConfig = `
wait:
  timeout: 150ms
  url_timeout: 150ms
  poll_interval: 10ms
logger:
  level: error
`

// run executes a fresh command tree against an in-memory filesystem.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/site/form.html", []byte(formPage), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/etc/pagegate.yaml", []byte(fastConfig), 0o644))

	root := newRootCommand(newApp(fs))
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", "/etc/pagegate.yaml"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pagegate dev\n", out)

	out, err = run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestRandStr(t *testing.T) {
	out, err := run(t, "randstr", "16")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[b-zA-W]{16}$`), strings.TrimSpace(out))

	out, err = run(t, "randstr", "--codes", "4")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{8,12}$`), strings.TrimSpace(out))

	_, err = run(t, "randstr", "many")
	assert.Error(t, err)
}

func TestWait(t *testing.T) {
	out, err := run(t, "wait", "--html", "/site/form.html", "--xpath", "//button[@id='%s']", "--value", "submit")
	require.NoError(t, err)
	assert.Equal(t, "present //*[@id='submit']\n", out)

	out, err = run(t, "wait", "--html", "/site/form.html", "--xpath", "//input[@id='news']", "--state", "selected")
	require.NoError(t, err)
	assert.Equal(t, "selected //*[@id='news']\n", out)

	_, err = run(t, "wait", "--html", "/site/form.html", "--xpath", "//button[@id='later']", "--state", "clickable")
	assert.ErrorIs(t, err, wait.ErrTimeout)

	_, err = run(t, "wait", "--html", "/site/form.html", "--xpath", "//a", "--state", "gone")
	assert.ErrorContains(t, err, `unknown state "gone"`)
}

func TestClick(t *testing.T) {
	out, err := run(t, "click", "--html", "/site/form.html", "--xpath", "//button[@id='submit']")
	require.NoError(t, err)
	assert.Equal(t, "clicked\n", out)

	out, err = run(t, "click", "--html", "/site/form.html", "--xpath", "//input[@id='terms']", "--toggle")
	require.NoError(t, err)
	assert.Equal(t, "changed\n", out)

	out, err = run(t, "click", "--html", "/site/form.html", "--xpath", "//input[@id='news']", "--toggle")
	require.NoError(t, err)
	assert.Equal(t, "already_selected\n", out)

	out, err = run(t, "click", "--html", "/site/form.html", "--xpath", "//button[@id='later']", "--toggle")
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Equal(t, "failed\n", out)
}

func TestType(t *testing.T) {
	out, err := run(t, "type", "--html", "/site/form.html", "--xpath", "//input[@name='email']", "--text", "ada@example.test")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.test\n", out)
}

func TestScreenshotUnsupportedOnStatic(t *testing.T) {
	_, err := run(t, "screenshot", "--html", "/site/form.html", "--name", "form")
	assert.ErrorIs(t, err, driver.ErrUnsupported)
}

func TestPopupWithoutChild(t *testing.T) {
	out, err := run(t, "popup", "--html", "/site/form.html", "--xpath", "//button[@id='submit']")
	require.NoError(t, err)
	assert.Equal(t, "no child window opened\n", out)
}

func TestNavigateArgument(t *testing.T) {
	out, err := run(t, "wait", "--html", "/site/form.html", "file:///site/form.html", "--xpath", "//title", "--state", "present")
	require.NoError(t, err)
	assert.Contains(t, out, "present")
}

func TestInvalidBackend(t *testing.T) {
	_, err := run(t, "--backend", "selenium", "click", "--xpath", "//a")
	assert.ErrorContains(t, err, "selenium")
}

func TestStaticBackendNeedsHTML(t *testing.T) {
	_, err := run(t, "--backend", "static", "click", "--xpath", "//a")
	assert.ErrorContains(t, err, "html_file")
}
