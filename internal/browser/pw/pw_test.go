package pw

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/driver/drivertest"
	"github.com/xkilldash9x/pagegate/internal/config"
)

func TestLaunchOptions(t *testing.T) {
	cfg := config.NewDefaultConfig().Browser
	cfg.Args = []string{"--mute-audio"}
	cfg.ExecutablePath = "/opt/chromium/chrome"

	opts := LaunchOptions(cfg)
	require.NotNil(t, opts.Headless)
	assert.True(t, *opts.Headless)
	assert.Equal(t, []string{"--disable-dev-shm-usage", "--no-sandbox", "--disable-gpu", "--mute-audio"}, opts.Args)
	require.NotNil(t, opts.Timeout)
	assert.Equal(t, float64(60000), *opts.Timeout)
	require.NotNil(t, opts.ExecutablePath)
	assert.Equal(t, "/opt/chromium/chrome", *opts.ExecutablePath)

	bare := LaunchOptions(config.BrowserConfig{})
	assert.False(t, *bare.Headless)
	assert.Equal(t, []string{"--disable-dev-shm-usage"}, bare.Args)
	assert.Nil(t, bare.Timeout)
	assert.Nil(t, bare.ExecutablePath)
}

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))

	timeout := fmt.Errorf("locator.click: %w", playwright.ErrTimeout)
	assert.ErrorIs(t, mapErr(timeout), driver.ErrStaleElement)

	other := errors.New("target closed")
	assert.Same(t, other, mapErr(other))
}

func TestOwn(t *testing.T) {
	_, err := own(context.Background(), drivertest.NewElement("x"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = own(ctx, &element{id: "y"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClosedDriver(t *testing.T) {
	d := &Driver{closed: true}
	ctx := context.Background()

	_, err := d.FindElements(ctx, "//a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.WindowHandle(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.WindowHandles(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.SwitchToWindow(ctx, "x"), ErrClosed)
	assert.NoError(t, d.Close())

	require.NoError(t, d.SetImplicitWait(ctx, -time.Second))
	assert.Zero(t, d.implicit)
}
