package cdp

import (
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/pagegate/internal/config"
)

type flag struct {
	name  string
	value interface{}
}

// flags lists the command line switches derived from cfg, on top of the
// chromedp defaults.
func flags(cfg config.BrowserConfig) []flag {
	out := []flag{{"disable-dev-shm-usage", true}}
	if cfg.NoSandbox {
		out = append(out, flag{"no-sandbox", true})
	}
	// The defaults already include headless; only the opt-out needs a flag.
	if !cfg.Headless {
		out = append(out, flag{"headless", false})
	}
	if cfg.DisableGPU {
		out = append(out, flag{"disable-gpu", true})
	}
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			out = append(out, flag{key, true})
			continue
		}
		out = append(out, flag{key, value})
	}
	return out
}

// ExecAllocatorOptions builds the options used to launch a local Chrome.
func ExecAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range flags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecutablePath))
	}
	return opts
}
