// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pagegate/internal/browser/backend"
	"github.com/xkilldash9x/pagegate/internal/browser/browserutil"
	"github.com/xkilldash9x/pagegate/internal/browser/driver"
	"github.com/xkilldash9x/pagegate/internal/config"
	"github.com/xkilldash9x/pagegate/internal/observability"
)

// app is the state shared by one command tree.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	fs      afero.Fs
	factory *backend.Factory
	logger  *zap.Logger
}

func newApp(fs afero.Fs) *app {
	return &app{v: viper.New(), fs: fs, factory: backend.NewFactory(fs), logger: zap.NewNop()}
}

// NewRootCommand builds a fresh command tree. Each call has its own viper
// instance so flags never leak between executions.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp(afero.NewOsFs()))
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pagegate",
		Short:         "pagegate drives a browser through readiness-gated element helpers.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initializeConfig(cmd); err != nil {
				return err
			}
			observability.Initialize(a.cfg.Logger, zapcore.AddSync(cmd.ErrOrStderr()))
			a.logger = observability.GetLogger()
			a.logger.Debug("Starting pagegate", zap.String("version", Version), zap.String("backend", a.cfg.Browser.Backend))
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./pagegate.yaml)")
	flags.String("backend", "", "browser backend: chromedp, playwright or static")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("html", "", "HTML file served by the static backend")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newWaitCommand(a),
		newClickCommand(a),
		newTypeCommand(a),
		newScreenshotCommand(a),
		newPopupCommand(a),
		newRandStrCommand(),
		newVersionCommand(),
	)
	return root
}

// initializeConfig reads the config file and environment, then applies flags.
func (a *app) initializeConfig(cmd *cobra.Command) error {
	v := a.v
	config.SetDefaults(v)
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pagegate")
		v.SetConfigType("yaml")
	}
	v.SetFs(a.fs)
	v.SetEnvPrefix("PAGEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	flags := cmd.Flags()
	for key, name := range map[string]string{
		"browser.backend":   "backend",
		"browser.headless":  "headless",
		"browser.html_file": "html",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	if html := v.GetString("browser.html_file"); html != "" && !flags.Changed("backend") && !v.InConfig("browser.backend") {
		v.Set("browser.backend", config.BackendStatic)
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// open starts the configured backend and loads url when one is given.
func (a *app) open(ctx context.Context, url string) (*browserutil.Accessor, func(), error) {
	drv, err := a.factory.New(ctx, a.cfg.Browser, a.cfg.Wait, a.logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := drv.Close(); err != nil {
			a.logger.Warn("Closing browser failed.", zap.Error(err))
		}
	}
	acc := browserutil.New(drv, a.cfg.Wait, a.logger)
	if url != "" {
		if err := acc.Navigate(ctx, url); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return acc, closeFn, nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	logger := observability.Component("cli")
	if errors.Is(err, context.Canceled) {
		logger.Info("Command canceled.")
	} else {
		logger.Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

func urlArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func locatorFrom(xpath, value string) browserutil.Locator {
	if value != "" {
		return browserutil.XPathf(xpath, value)
	}
	return browserutil.XPath(xpath)
}

func describe(el driver.Element) string {
	if el == nil {
		return ""
	}
	return el.ID()
}
