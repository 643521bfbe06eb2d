package commands

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/globalmem/pkg/devnode"
	"github.com/haivivi/globalmem/pkg/globalmem"
)

// setupTestEnv points the config at a fresh temp dir.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GLOBALMEM_CONFIG_DIR", dir)
	return dir
}

// startServer loads a module, serves it, and returns the websocket URL.
func startServer(t *testing.T, cfg globalmem.ModuleConfig) (*globalmem.Module, string) {
	t.Helper()
	cfg.Handler = slog.NewTextHandler(io.Discard, nil)
	mod, err := globalmem.Init(cfg)
	if err != nil {
		t.Fatal(err)
	}
	srv := devnode.NewServer(mod, &devnode.ServerOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		mod.Exit()
	})
	return mod, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	verbose = false
	formatOutput = ""
	queryExpr = ""
	serverURL = ""

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
