package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/globalmem/cmd/globalmem/internal/config"
	"github.com/haivivi/globalmem/pkg/cli"
	"github.com/haivivi/globalmem/pkg/devnode"
)

var (
	// Global flags
	verbose      bool
	formatOutput string
	queryExpr    string
	serverURL    string

	// Global configuration (loaded at init time)
	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "globalmem",
	Short: "Shared memory device with blocking reads",
	Long: `globalmem - a shared memory buffer exposed as a character device.

Every minor of the device aliases one fixed-size buffer. Writes copy bytes
at an offset and wake all blocked readers. Reads wait for a write first:
in latched mode (default) any write since load releases them, in
unconditional mode only a write after the read started does.

'globalmem serve' loads the device and exposes it over a websocket; the
other commands talk to a running server.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/globalmem/config.yaml
  Linux:   ~/.config/globalmem/config.yaml
  Windows: %AppData%/globalmem/config.yaml

Examples:
  # Load the device and serve it
  globalmem serve

  # In another terminal
  globalmem read 0 5 &
  globalmem write 0 hello
  globalmem dump 0 64
  globalmem stat -o table
  globalmem dmesg

  # Try the wait protocol without a server
  globalmem demo --wait-mode unconditional`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "format", "o", "", "output format (yaml, json, table, raw)")
	rootCmd.PersistentFlags().StringVarP(&queryExpr, "query", "q", "", "jq expression applied to the output")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default from config)")
}

// configLoadErr stores the error from config.Load() for deferred reporting.
var configLoadErr error

func initConfig() {
	cfg, err := config.Load()
	if err != nil {
		configLoadErr = err
		globalConfig = nil
		return
	}
	configLoadErr = nil
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// output prints result in the --format / --query selection.
func output(result any) error {
	format, err := cli.ParseOutputFormat(formatOutput)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		Query:  queryExpr,
		Styles: cli.NewStyles(cli.DefaultTheme),
	})
}

// outputTabular prints table when --format is table and result otherwise.
func outputTabular(result any, table cli.Table) error {
	if formatOutput == string(cli.FormatTable) && queryExpr == "" {
		return output(table)
	}
	return output(result)
}

// newLogHandler returns a text handler on stderr at the configured level.
// --verbose forces debug.
func newLogHandler(cfg *config.Config) slog.Handler {
	level, err := cfg.LogLevel()
	if err != nil || verbose {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

// quietLogHandler drops everything unless --verbose is set.
func quietLogHandler() slog.Handler {
	if verbose {
		return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.NewTextHandler(io.Discard, nil)
}

// connect dials --server, or the configured server.
func connect(ctx context.Context) (*devnode.Client, error) {
	url := serverURL
	if url == "" {
		cfg, err := GetConfig()
		if err != nil {
			return nil, err
		}
		url = cfg.URL()
	}
	cli.PrintVerbose(verbose, "connecting to %s", url)

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return devnode.Dial(dialCtx, url)
}
