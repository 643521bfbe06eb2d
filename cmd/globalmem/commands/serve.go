package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/globalmem/cmd/globalmem/internal/config"
	"github.com/haivivi/globalmem/pkg/devnode"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

var (
	flagServeAddr     string
	flagServePath     string
	flagServeCapacity int
	flagServeWaitMode string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the device and serve it over a websocket",
	Long: `Load the device and serve it over a websocket until interrupted.

Flags override the config file. On SIGINT or SIGTERM the device is
unloaded, so blocked readers get a "closed" error, and then every session
is closed.

Examples:
  globalmem serve
  globalmem serve --addr :9000 --wait-mode unconditional`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&flagServePath, "path", "", "websocket path (default from config)")
	serveCmd.Flags().IntVar(&flagServeCapacity, "capacity", 0, "buffer size in bytes (default from config)")
	serveCmd.Flags().StringVar(&flagServeWaitMode, "wait-mode", "", "reader wait protocol: latched or unconditional")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Serving %s on ws://%s%s\n", cfg.Device.Name, ln.Addr(), cfg.Server.Path)
	return serve(ctx, ln, cfg, newLogHandler(cfg))
}

// applyServeFlags copies the serve flags that were given into cfg.
func applyServeFlags(cfg *config.Config) error {
	overrides := []struct{ key, value string }{
		{"server.addr", flagServeAddr},
		{"server.path", flagServePath},
		{"device.wait_mode", flagServeWaitMode},
	}
	if flagServeCapacity != 0 {
		overrides = append(overrides, struct{ key, value string }{"device.capacity", fmt.Sprint(flagServeCapacity)})
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if err := cfg.Set(o.key, o.value); err != nil {
			return err
		}
	}
	return nil
}

// serve loads the module and serves it on ln until ctx ends. On the way
// out the module is unloaded first, so blocked readers are answered with
// ErrClosed, then every session is closed.
func serve(ctx context.Context, ln net.Listener, cfg *config.Config, handler slog.Handler) error {
	logger := slog.New(handler)

	mc, err := cfg.ModuleConfig()
	if err != nil {
		ln.Close()
		return err
	}
	mc.Handler = handler
	mod, err := globalmem.Init(mc)
	if err != nil {
		ln.Close()
		return err
	}

	srv := devnode.NewServer(mod, &devnode.ServerOptions{Logger: logger})
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, srv)
	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()
	logger.Info("globalmem: serving", "device", mod.Name(), "addr", ln.Addr().String(), "path", cfg.Server.Path)

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("globalmem: shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server: %w", err)
		}
	}

	mod.Exit()
	// Sessions are hijacked connections; Shutdown does not wait for them.
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("globalmem: shutdown", "error", err)
	}
	return serveErr
}
