// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported browser backends.
const (
	BackendChromedp   = "chromedp"
	BackendPlaywright = "playwright"
	BackendStatic     = "static"
)

// Config holds the entire application configuration.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Wait       WaitConfig       `mapstructure:"wait" yaml:"wait"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot" yaml:"screenshot"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects and tunes the automation backend.
type BrowserConfig struct {
	Backend        string   `mapstructure:"backend" yaml:"backend"`
	Headless       bool     `mapstructure:"headless" yaml:"headless"`
	DisableGPU     bool     `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	NoSandbox      bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	Args           []string `mapstructure:"args" yaml:"args"`
	ExecutablePath string   `mapstructure:"executable_path" yaml:"executable_path"`
	// RemoteURL attaches to an already running browser (devtools websocket URL)
	// instead of launching one. Only the chromedp backend honours it.
	RemoteURL    string `mapstructure:"remote_url" yaml:"remote_url"`
	WindowWidth  int    `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int    `mapstructure:"window_height" yaml:"window_height"`
	// HTMLFile is the document served by the static backend.
	HTMLFile      string        `mapstructure:"html_file" yaml:"html_file"`
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// WaitConfig is the timeout policy shared by every readiness wait.
type WaitConfig struct {
	// Timeout bounds presence, visibility, clickability, text, title and attribute waits.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// URLTimeout bounds URL equality waits.
	URLTimeout   time.Duration `mapstructure:"url_timeout" yaml:"url_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// ImplicitTimeout is applied by the backend to every lookup while implicit waiting is on.
	ImplicitTimeout time.Duration `mapstructure:"implicit_timeout" yaml:"implicit_timeout"`
}

// ScreenshotConfig controls where captures land on disk.
type ScreenshotConfig struct {
	Dir             string `mapstructure:"dir" yaml:"dir"`
	NamedDir        string `mapstructure:"named_dir" yaml:"named_dir"`
	TimestampLayout string `mapstructure:"timestamp_layout" yaml:"timestamp_layout"`
}

// NewDefaultConfig creates a configuration populated with every default value.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagegate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Browser --
	v.SetDefault("browser.backend", BackendChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 768)
	v.SetDefault("browser.launch_timeout", "60s")

	// -- Wait --
	v.SetDefault("wait.timeout", "5s")
	v.SetDefault("wait.url_timeout", "8s")
	v.SetDefault("wait.poll_interval", "500ms")
	v.SetDefault("wait.implicit_timeout", "5s")

	// -- Screenshot --
	v.SetDefault("screenshot.dir", "test-output/Screenshots")
	v.SetDefault("screenshot.named_dir", "screenshots")
	v.SetDefault("screenshot.timestamp_layout", "20060102150405")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Backend) {
	case BackendChromedp, BackendPlaywright:
	case BackendStatic:
		if c.Browser.HTMLFile == "" {
			return fmt.Errorf("browser.html_file is required for the static backend")
		}
	default:
		return fmt.Errorf("browser.backend %q is not supported (chromedp, playwright, static)", c.Browser.Backend)
	}
	if err := c.Wait.Validate(); err != nil {
		return fmt.Errorf("wait configuration invalid: %w", err)
	}
	if c.Screenshot.TimestampLayout == "" {
		return fmt.Errorf("screenshot.timestamp_layout must not be empty")
	}
	return nil
}

// Validate checks the wait timeouts.
func (w *WaitConfig) Validate() error {
	if w.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if w.URLTimeout <= 0 {
		return fmt.Errorf("url_timeout must be a positive duration")
	}
	if w.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if w.PollInterval > w.Timeout {
		return fmt.Errorf("poll_interval (%v) must not exceed timeout (%v)", w.PollInterval, w.Timeout)
	}
	if w.ImplicitTimeout < 0 {
		return fmt.Errorf("implicit_timeout must not be negative")
	}
	return nil
}
