package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/globalmem/pkg/globalmem"
)

var (
	flagDemoWaitMode string
	flagDemoCapacity int
	flagDemoTimeout  time.Duration
)

type demoScenario struct {
	name string
	desc string
	run  func(ctx context.Context, w io.Writer, m *globalmem.Module) error
}

var demoScenarios = []demoScenario{
	{"hello", "a blocked reader is released by a write on another minor", demoHello},
	{"reread", "a read after an earlier write, showing the wait mode", demoReread},
	{"truncate", "a write running past the end is cut at the end", demoTruncate},
	{"range", "out-of-range offsets fail at once, without waiting", demoRange},
}

var demoCmd = &cobra.Command{
	Use:   "demo [scenario...]",
	Short: "Run the read/write scenarios in process",
	Long: `Load a private device in process and run scenarios against it.

Scenarios:
  hello     a blocked reader is released by a write on another minor
  reread    a read after an earlier write, showing the wait mode
  truncate  a write running past the end is cut at the end
  range     out-of-range offsets fail at once, without waiting

With no arguments every scenario runs. Each gets a freshly loaded device.

Examples:
  globalmem demo
  globalmem demo reread --wait-mode unconditional`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&flagDemoWaitMode, "wait-mode", "latched", "reader wait protocol: latched or unconditional")
	demoCmd.Flags().IntVar(&flagDemoCapacity, "capacity", globalmem.DefaultCapacity, "buffer size in bytes")
	demoCmd.Flags().DurationVar(&flagDemoTimeout, "timeout", 200*time.Millisecond, "how long a read may wait before it is interrupted")

	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	mode, err := globalmem.ParseWaitMode(flagDemoWaitMode)
	if err != nil {
		return err
	}

	scenarios := demoScenarios
	if len(args) > 0 {
		scenarios = nil
		for _, name := range args {
			i := slices.IndexFunc(demoScenarios, func(s demoScenario) bool { return s.name == name })
			if i < 0 {
				var names []string
				for _, s := range demoScenarios {
					names = append(names, s.name)
				}
				return fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(names, ", "))
			}
			scenarios = append(scenarios, demoScenarios[i])
		}
	}

	w := os.Stdout
	for _, s := range scenarios {
		m, err := globalmem.Init(globalmem.ModuleConfig{
			Name:     "demo",
			Capacity: flagDemoCapacity,
			WaitMode: mode,
			Handler:  quietLogHandler(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "== %s (%s): %s\n", s.name, mode, s.desc)
		err = s.run(cmd.Context(), w, m)
		m.Exit()
		if err != nil {
			return fmt.Errorf("scenario %s: %w", s.name, err)
		}
	}
	return nil
}

func demoHello(ctx context.Context, w io.Writer, m *globalmem.Module) error {
	reader, err := m.Open(ctx, 1)
	if err != nil {
		return err
	}
	defer reader.Close()
	writer, err := m.Open(ctx, 0)
	if err != nil {
		return err
	}
	defer writer.Close()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p := make([]byte, 5)
		n, err := reader.Read(ctx, 0, p)
		done <- result{p[:n], err}
	}()

	if err := waitForWaiters(ctx, m, 1); err != nil {
		return err
	}
	fmt.Fprintln(w, "minor 1: read 5 bytes at 0, waiting")

	n, err := writer.Write(ctx, 0, []byte("hello"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "minor 0: wrote %d bytes at 0\n", n)

	r := <-done
	if r.err != nil {
		return r.err
	}
	fmt.Fprintf(w, "minor 1: read %q\n", r.data)
	return nil
}

func demoReread(ctx context.Context, w io.Writer, m *globalmem.Module) error {
	f, err := m.Open(ctx, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(ctx, 0, []byte("again")); err != nil {
		return err
	}
	fmt.Fprintln(w, "minor 0: wrote \"again\" at 0")

	readCtx, cancel := context.WithTimeout(ctx, flagDemoTimeout)
	defer cancel()
	p := make([]byte, 5)
	n, err := f.Read(readCtx, 0, p)
	switch {
	case err == nil:
		fmt.Fprintf(w, "minor 0: read %q without waiting\n", p[:n])
	case errors.Is(err, globalmem.ErrInterrupted):
		fmt.Fprintf(w, "minor 0: read still waiting after %s, interrupted\n", flagDemoTimeout)
	default:
		return err
	}
	return nil
}

func demoTruncate(ctx context.Context, w io.Writer, m *globalmem.Module) error {
	f, err := m.Open(ctx, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	capacity := m.Stat().Capacity
	offset := int64(capacity - 1)
	n, err := f.Write(ctx, offset, []byte("xyz"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "minor 0: wrote %d of 3 bytes at %d (capacity %d)\n", n, offset, capacity)
	return nil
}

func demoRange(ctx context.Context, w io.Writer, m *globalmem.Module) error {
	f, err := m.Open(ctx, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	capacity := int64(m.Stat().Capacity)
	if _, err := f.Write(ctx, capacity, []byte("x")); !errors.Is(err, globalmem.ErrOffsetOutOfRange) {
		return fmt.Errorf("write at %d: got %v", capacity, err)
	}
	fmt.Fprintf(w, "minor 0: write at %d: %v\n", capacity, globalmem.ErrOffsetOutOfRange)

	p := make([]byte, 1)
	if _, err := f.Read(ctx, -1, p); !errors.Is(err, globalmem.ErrOffsetOutOfRange) {
		return fmt.Errorf("read at -1: got %v", err)
	}
	fmt.Fprintf(w, "minor 0: read at -1: %v\n", globalmem.ErrOffsetOutOfRange)
	fmt.Fprintf(w, "writes counted: %d\n", m.Stat().Writes)
	return nil
}

func waitForWaiters(ctx context.Context, m *globalmem.Module, n int) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for m.Stat().Waiters < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
