package browserutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/driver/drivertest"
	"github.com/xkilldash9x/pagegate/internal/browser/wait"
	"github.com/xkilldash9x/pagegate/internal/config"
)

// Budgets are scaled down from the production 5s/8s/500ms so the suite stays fast.
const (
	testTimeout    = 200 * time.Millisecond
	testURLTimeout = 320 * time.Millisecond
	testInterval   = 10 * time.Millisecond
	slack          = 60 * time.Millisecond
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() config.WaitConfig {
	return config.WaitConfig{
		Timeout:         testTimeout,
		URLTimeout:      testURLTimeout,
		PollInterval:    testInterval,
		ImplicitTimeout: 100 * time.Millisecond,
	}
}

func setup(t *testing.T) (*Accessor, *drivertest.Driver) {
	t.Helper()
	drv := drivertest.New()
	return New(drv, testConfig(), zaptest.NewLogger(t)), drv
}

// actions keeps only the state-changing calls of a trace.
func actions(calls []drivertest.Call) []string {
	var out []string
	for _, c := range calls {
		switch c.Method {
		case "ScrollIntoView", "Click", "SendKeys", "MoveTo":
			out = append(out, c.String())
		}
	}
	return out
}

func TestNew_AppliesDefaults(t *testing.T) {
	a := New(drivertest.New(), config.WaitConfig{ImplicitTimeout: -time.Second}, nil)
	def := config.NewDefaultConfig().Wait
	assert.Equal(t, def.Timeout, a.cfg.Timeout)
	assert.Equal(t, def.URLTimeout, a.cfg.URLTimeout)
	assert.Equal(t, def.PollInterval, a.cfg.PollInterval)
	assert.Zero(t, a.cfg.ImplicitTimeout)
	assert.NotNil(t, a.Driver())
}

func TestGetElement(t *testing.T) {
	t.Run("TimesOutNotBeforeBudget", func(t *testing.T) {
		a, _ := setup(t)

		start := time.Now()
		el, err := a.GetElement(context.Background(), XPath("//div[@id='missing']"))
		elapsed := time.Since(start)

		assert.Nil(t, el)
		require.ErrorIs(t, err, wait.ErrTimeout)
		assert.GreaterOrEqual(t, elapsed, testTimeout)
		assert.Less(t, elapsed, testTimeout+testInterval+slack)
	})

	t.Run("ReturnsOnceElementAppears", func(t *testing.T) {
		// Element appears at 2/5 of the budget.
		a, drv := setup(t)
		appear := testTimeout * 2 / 5
		want := drv.AddAfter("//button[@id='submit']", appear, drivertest.NewElement("submit"))

		start := time.Now()
		el, err := a.GetElement(context.Background(), XPath("//button[@id='submit']"))
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Same(t, want, el)
		assert.GreaterOrEqual(t, elapsed, appear)
		assert.Less(t, elapsed, testTimeout)
	})

	t.Run("AbortsOnBackendFailure", func(t *testing.T) {
		a, drv := setup(t)
		boom := errors.New("target crashed")
		drv.FailFind(boom)

		_, err := a.GetElement(context.Background(), XPath("//a"))
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, drv.Count("FindElements"))
	})

	t.Run("TemplatedLocator", func(t *testing.T) {
		a, drv := setup(t)
		want := drv.Add("//a[text()='Sign in']", drivertest.NewElement("signin"))

		el, err := a.GetElement(context.Background(), XPathf("//a[text()='%s']", "Sign in"))
		require.NoError(t, err)
		assert.Same(t, want, el)
	})
}

func TestGetElements(t *testing.T) {
	a, drv := setup(t)
	drv.Add("//li", drivertest.NewElement("li-1"))
	drv.Add("//li", drivertest.NewElement("li-2"))
	drv.AddAfter("//li", time.Hour, drivertest.NewElement("li-late"))

	els, err := a.GetElements(context.Background(), XPath("//li"))
	require.NoError(t, err)
	ids := make([]string, len(els))
	for i, el := range els {
		ids[i] = el.ID()
	}
	if diff := cmp.Diff([]string{"li-1", "li-2"}, ids); diff != "" {
		t.Errorf("GetElements mismatch (-want +got):\n%s", diff)
	}
}

func TestFindElement_NeverPolls(t *testing.T) {
	a, drv := setup(t)

	start := time.Now()
	_, err := a.FindElement(context.Background(), XPath("//div[@id='missing']"))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, driver.ErrNoSuchElement)
	assert.NotErrorIs(t, err, wait.ErrTimeout)
	assert.Less(t, elapsed, testInterval)
	assert.Equal(t, 1, drv.Count("FindElements"))

	drv.Add("//p", drivertest.NewElement("p"))
	el, err := a.FindElement(context.Background(), XPath("//p"))
	require.NoError(t, err)
	assert.Equal(t, "p", el.ID())

	els, err := a.FindElements(context.Background(), XPath("//none"))
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestElementDisplayed(t *testing.T) {
	a, drv := setup(t)
	el := drv.Add("//dialog", drivertest.NewElement("dialog").Hidden())
	timer := time.AfterFunc(50*time.Millisecond, func() {
		el.Update(func(e *drivertest.Element) { e.SetDisplayed(true) })
	})
	defer timer.Stop()

	shown, err := a.ElementDisplayed(context.Background(), XPath("//dialog"))
	require.NoError(t, err)
	assert.True(t, shown)

	shown, err = a.IsDisplayed(context.Background(), el)
	require.NoError(t, err)
	assert.True(t, shown)
}

func TestElementDisplayed_HiddenTimesOut(t *testing.T) {
	a, drv := setup(t)
	el := drv.Add("//dialog", drivertest.NewElement("dialog").Hidden())

	shown, err := a.ElementDisplayed(context.Background(), XPath("//dialog"))
	assert.False(t, shown)
	assert.ErrorIs(t, err, wait.ErrTimeout)

	_, err = a.IsDisplayed(context.Background(), el)
	assert.ErrorIs(t, err, wait.ErrTimeout)
}

func TestSelectedAsymmetry(t *testing.T) {
	a, drv := setup(t)
	drv.Add("//input[@name='terms']", drivertest.NewElement("terms").Checkbox(false))
	drv.Add("//input[@name='news']", drivertest.NewElement("news").Checkbox(true))

	t.Run("ElementSelectedGatesOnVisibility", func(t *testing.T) {
		start := time.Now()
		sel, err := a.ElementSelected(context.Background(), XPath("//input[@name='terms']"))
		require.NoError(t, err)
		assert.False(t, sel)
		assert.Less(t, time.Since(start), testTimeout)
	})

	t.Run("WaitUntilSelectedGatesOnSelection", func(t *testing.T) {
		_, err := a.WaitUntilSelected(context.Background(), XPathf("//input[@name='%s']", "terms"))
		assert.ErrorIs(t, err, wait.ErrTimeout)

		sel, err := a.WaitUntilSelected(context.Background(), XPathf("//input[@name='%s']", "news"))
		require.NoError(t, err)
		assert.True(t, sel)
	})
}

func TestWaitUntilClickable(t *testing.T) {
	a, drv := setup(t)
	el := drv.Add("//button", drivertest.NewElement("btn").Disabled())
	timer := time.AfterFunc(40*time.Millisecond, func() {
		el.Update(func(e *drivertest.Element) { e.SetEnabled(true) })
	})
	defer timer.Stop()

	got, err := a.WaitUntilClickable(context.Background(), el)
	require.NoError(t, err)
	assert.Same(t, el, got)
}

func TestWaitUntilAllVisible(t *testing.T) {
	a, drv := setup(t)
	one := drv.Add("//li", drivertest.NewElement("one"))
	two := drv.Add("//li", drivertest.NewElement("two").Hidden())

	_, err := a.WaitUntilAllVisible(context.Background(), []driver.Element{one, two})
	require.ErrorIs(t, err, wait.ErrTimeout)

	two.Update(func(e *drivertest.Element) { e.SetDisplayed(true) })
	els, err := a.WaitUntilAllVisible(context.Background(), []driver.Element{one, two})
	require.NoError(t, err)
	assert.Len(t, els, 2)
}

func TestTextWaits(t *testing.T) {
	a, drv := setup(t)
	el := drv.Add("//h1", drivertest.NewElement("h1").WithText("Loading"))
	timer := time.AfterFunc(30*time.Millisecond, func() {
		el.Update(func(e *drivertest.Element) { e.SetText("Welcome back, Ada") })
	})
	defer timer.Stop()

	ok, err := a.WaitUntilTextContains(context.Background(), el, "Welcome")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.WaitUntilTextEquals(context.Background(), el, "Welcome back, Ada")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.WaitUntilTextEquals(context.Background(), el, "Welcome")
	assert.False(t, ok)
	assert.ErrorIs(t, err, wait.ErrTimeout)

	text, err := a.ElementText(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, "Welcome back, Ada", text)
}

func TestWaitUntilURLEquals_UsesURLTimeout(t *testing.T) {
	a, drv := setup(t)
	drv.SetURL("main", "https://example.test/login")

	require.NoError(t, a.WaitUntilURLEquals(context.Background(), "https://example.test/login"))

	start := time.Now()
	err := a.WaitUntilURLEquals(context.Background(), "https://example.test/home")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, wait.ErrTimeout)
	var te *wait.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, testURLTimeout, te.Timeout)
	assert.GreaterOrEqual(t, elapsed, testURLTimeout)
}

func TestWaitUntilTitleContains(t *testing.T) {
	a, drv := setup(t)
	drv.SetTitle("main", "Inbox (3) - Mail")

	require.NoError(t, a.WaitUntilTitleContains(context.Background(), "Inbox"))
	assert.ErrorIs(t, a.WaitUntilTitleContains(context.Background(), "Drafts"), wait.ErrTimeout)
}

func TestWaitUntilAttributeContains(t *testing.T) {
	a, drv := setup(t)
	el := drv.Add("//div[@id='toast']", drivertest.NewElement("toast").WithAttr("class", "toast"))
	timer := time.AfterFunc(30*time.Millisecond, func() {
		el.Update(func(e *drivertest.Element) { e.SetAttr("class", "toast toast--visible") })
	})
	defer timer.Stop()

	ok, err := a.WaitUntilAttributeContains(context.Background(), XPath("//div[@id='toast']"), "class", "visible")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = a.WaitUntilAttributeContains(context.Background(), XPath("//div[@id='none']"), "class", "visible")
	assert.ErrorIs(t, err, wait.ErrTimeout)
}

func TestTexts(t *testing.T) {
	a, drv := setup(t)
	one := drv.Add("//td", drivertest.NewElement("td1").WithText("  alpha\n"))
	two := drv.Add("//td", drivertest.NewElement("td2").WithText("beta "))

	got, err := a.Texts(context.Background(), []driver.Element{one, two})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got)

	drv.Remove("//td")
	_, err = a.Texts(context.Background(), []driver.Element{one})
	assert.ErrorIs(t, err, driver.ErrStaleElement)
}

func TestImplicitWait(t *testing.T) {
	a, drv := setup(t)
	ctx := context.Background()

	require.NoError(t, a.ImplicitWaitOn(ctx))
	assert.Equal(t, 100*time.Millisecond, drv.ImplicitWait())

	drv.AddAfter("//span", 30*time.Millisecond, drivertest.NewElement("span"))
	// With implicit waiting the single lookup of FindElement retries on the backend.
	el, err := a.FindElement(ctx, XPath("//span"))
	require.NoError(t, err)
	assert.Equal(t, "span", el.ID())

	require.NoError(t, a.ImplicitWaitOff(ctx))
	assert.Zero(t, drv.ImplicitWait())
}

func TestSleep(t *testing.T) {
	a, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Sleep(ctx, time.Minute), context.Canceled)
}

func TestContextCancellationStopsWait(t *testing.T) {
	a, _ := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := a.GetElement(ctx, XPath("//never"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
