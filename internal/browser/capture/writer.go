// Package capture writes browser screenshots to disk.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/config"
)

// ErrWrite marks failures to persist a screenshot.
var ErrWrite = errors.New("screenshot write failed")

// Writer captures the viewport of a driver and stores it as PNG.
type Writer struct {
	shots    driver.Screenshotter
	fs       afero.Fs
	dir      string
	namedDir string
	layout   string
	now      func() time.Time
	logger   *zap.Logger
}

// Option customises a Writer.
type Option func(*Writer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// New builds a Writer storing files on fs. Directories may start with "~".
func New(shots driver.Screenshotter, cfg config.ScreenshotConfig, fs afero.Fs, logger *zap.Logger, opts ...Option) (*Writer, error) {
	dir, err := homedir.Expand(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("expanding screenshot dir %q: %w", cfg.Dir, err)
	}
	namedDir, err := homedir.Expand(cfg.NamedDir)
	if err != nil {
		return nil, fmt.Errorf("expanding named screenshot dir %q: %w", cfg.NamedDir, err)
	}
	layout := cfg.TimestampLayout
	if layout == "" {
		layout = config.NewDefaultConfig().Screenshot.TimestampLayout
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		shots:    shots,
		fs:       fs,
		dir:      dir,
		namedDir: namedDir,
		layout:   layout,
		now:      time.Now,
		logger:   logger.Named("capture"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Capture writes <dir>/<name><timestamp>.png and returns the path. The
// timestamp has second resolution, so two captures with the same name in
// the same second overwrite each other.
func (w *Writer) Capture(ctx context.Context, name string) (string, error) {
	path := filepath.Join(w.dir, name+w.now().Format(w.layout)+".png")
	return path, w.write(ctx, path)
}

// CaptureNamed writes <named_dir>/<name>.PNG and returns the path.
func (w *Writer) CaptureNamed(ctx context.Context, name string) (string, error) {
	path := filepath.Join(w.namedDir, name+".PNG")
	return path, w.write(ctx, path)
}

func (w *Writer) write(ctx context.Context, path string) error {
	data, err := w.shots.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := afero.WriteFile(w.fs, path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	w.logger.Info("Saved screenshot.", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}
