// Package backend builds the driver.Driver selected by configuration.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/cdp"
	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/browser/pw"
	"github.com/xkilldash9x/pagegate/internal/browser/static"
	"github.com/xkilldash9x/pagegate/internal/config"
)

// Constructor opens a driver for one backend.
type Constructor func(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (driver.Driver, error)

// Factory maps backend names to constructors.
type Factory struct {
	constructors map[string]Constructor
}

// NewFactory returns a factory knowing the chromedp, playwright and static
// backends. The static backend reads documents from fs.
func NewFactory(fs afero.Fs) *Factory {
	return &Factory{constructors: map[string]Constructor{
		config.BackendChromedp: func(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (driver.Driver, error) {
			return cdp.New(ctx, cfg, waitCfg, logger)
		},
		config.BackendPlaywright: func(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (driver.Driver, error) {
			return pw.New(ctx, cfg, waitCfg, logger)
		},
		config.BackendStatic: func(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (driver.Driver, error) {
			return static.New(fs, cfg.HTMLFile, waitCfg, logger)
		},
	}}
}

// Register adds or replaces the constructor for name.
func (f *Factory) Register(name string, c Constructor) {
	f.constructors[strings.ToLower(name)] = c
}

// New opens the backend named by cfg.Backend.
func (f *Factory) New(ctx context.Context, cfg config.BrowserConfig, waitCfg config.WaitConfig, logger *zap.Logger) (driver.Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := strings.ToLower(cfg.Backend)
	if name == "" {
		name = config.BackendChromedp
	}
	c, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Backend)
	}
	logger.Debug("Opening browser backend.", zap.String("backend", name))
	drv, err := c(ctx, cfg, waitCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", name, err)
	}
	return drv, nil
}
