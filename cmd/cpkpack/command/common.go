// Package command implements the cpkpack subcommands.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkilian/cpkpack/internal/config"
)

// configOptions are shared by the commands that need a configuration.
type configOptions struct {
	Config  string `long:"config" short:"c" description:"configuration file (YAML or JSON)"`
	DataDir string `long:"data-dir" description:"base directory for the catalog and local storage"`
	Verbose bool   `long:"verbose" short:"v" description:"log at debug level"`
}

// loadConfig applies, in increasing priority, defaults or the config file,
// CPKPACK_* environment variables and command line flags.
func (o *configOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if o.Config != "" {
		cfg, err = config.LoadFromFile(o.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var stdout io.Writer = os.Stdout
