package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/globalmem/cmd/globalmem/internal/config"
	"github.com/haivivi/globalmem/pkg/devnode"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

type serveEnv struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// startServe runs serve on a loopback listener until the test ends or
// cancel is called.
func startServe(t *testing.T, cfg *config.Config) *serveEnv {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	env := &serveEnv{
		url:    "ws://" + ln.Addr().String() + cfg.Server.Path,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		env.err = serve(ctx, ln, cfg, slog.NewTextHandler(io.Discard, nil))
		close(env.done)
	}()
	t.Cleanup(func() {
		cancel()
		env.wait(t)
	})
	return env
}

func (e *serveEnv) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-e.done:
		return e.err
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
		return nil
	}
}

func setServeFlags(t *testing.T, waitMode string, capacity int, path string) {
	t.Helper()
	flagServeWaitMode, flagServeCapacity, flagServePath = waitMode, capacity, path
	t.Cleanup(func() {
		flagServeAddr, flagServePath, flagServeCapacity, flagServeWaitMode = "", "", 0, ""
	})
}

func TestApplyServeFlags(t *testing.T) {
	setServeFlags(t, "unconditional", 64, "/dev")

	cfg := config.Default()
	if err := applyServeFlags(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Device.WaitMode != "unconditional" || cfg.Device.Capacity != 64 || cfg.Server.Path != "/dev" {
		t.Errorf("device=%+v server=%+v", cfg.Device, cfg.Server)
	}
	if cfg.Server.Addr != config.DefaultAddr {
		t.Errorf("addr=%q, want unchanged default", cfg.Server.Addr)
	}

	flagServeWaitMode = "sometimes"
	if err := applyServeFlags(config.Default()); err == nil {
		t.Error("bad wait mode accepted")
	}
}

func TestServeFlagsReachStat(t *testing.T) {
	setupTestEnv(t)
	setServeFlags(t, "unconditional", 64, "")

	cfg := config.Default()
	if err := applyServeFlags(cfg); err != nil {
		t.Fatal(err)
	}
	env := startServe(t, cfg)

	stdout, stderr, code := runCmd(t, "--server", env.url, "stat", "-o", "json")
	if code != 0 {
		t.Fatalf("stat exit %d: %s", code, stderr)
	}
	for _, want := range []string{`"capacity": 64`, `"wait_mode": "unconditional"`} {
		if !strings.Contains(stdout, want) {
			t.Errorf("missing %s in:\n%s", want, stdout)
		}
	}
}

func TestServeShutdownWakesReaders(t *testing.T) {
	env := startServe(t, config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := devnode.Dial(ctx, env.url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	f, err := c.Open(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := f.Read(ctx, 0, make([]byte, 1))
		readErr <- err
	}()
	for {
		st, err := c.Stat(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.Waiters == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	env.cancel()
	select {
	case err := <-readErr:
		if !errors.Is(err, globalmem.ErrClosed) {
			t.Errorf("read err=%v, want globalmem.ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocked read not woken by shutdown")
	}
	if err := env.wait(t); err != nil {
		t.Errorf("serve err=%v", err)
	}
	if _, err := devnode.Dial(ctx, env.url); err == nil {
		t.Error("dial after shutdown succeeded")
	}
}

func TestServeBadConfig(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Device.WaitMode = "sometimes"
	if err := serve(context.Background(), ln, cfg, slog.NewTextHandler(io.Discard, nil)); err == nil {
		t.Fatal("serve accepted a bad wait mode")
	}
}
