package globalmem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/haivivi/globalmem/pkg/chrdev"
)

func testModule(t *testing.T, cfg ModuleConfig) *Module {
	t.Helper()
	if cfg.Handler == nil {
		cfg.Handler = slog.NewTextHandler(io.Discard, nil)
	}
	m, err := Init(cfg)
	if err != nil {
		t.Fatalf("init with error: %v", err)
	}
	t.Cleanup(func() { m.Exit() })
	return m
}

func TestModuleInitDefaults(t *testing.T) {
	m := testModule(t, ModuleConfig{})

	if m.Name() != "globalmem" {
		t.Errorf("name=%q", m.Name())
	}
	if got := m.Registration().Minors(); !slices.Equal(got, []int{0, 1}) {
		t.Errorf("minors=%v, want [0 1]", got)
	}
	if c := m.Stat().Capacity; c != DefaultCapacity {
		t.Errorf("capacity=%d", c)
	}
}

func TestModuleMinorsShareMemory(t *testing.T) {
	m := testModule(t, ModuleConfig{})
	ctx := context.Background()

	w, err := m.Open(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	r, err := m.Open(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := w.Write(ctx, 7, []byte("shared")); err != nil {
		t.Fatal(err)
	}
	p := make([]byte, 6)
	n, err := r.Read(ctx, 7, p)
	if err != nil {
		t.Fatalf("read with error: %v", err)
	}
	if string(p[:n]) != "shared" {
		t.Errorf("minor 1 read %q", p[:n])
	}
}

func TestModuleRegisterSubset(t *testing.T) {
	m := testModule(t, ModuleConfig{Minors: 2, Register: 1})

	if got := m.Registration().Minors(); !slices.Equal(got, []int{0}) {
		t.Errorf("minors=%v, want [0]", got)
	}
	if _, err := m.Open(context.Background(), 1); !errors.Is(err, chrdev.ErrNoDevice) {
		t.Errorf("open minor 1 err=%v, want ErrNoDevice", err)
	}
}

func TestModuleOpenCloseCycles(t *testing.T) {
	m := testModule(t, ModuleConfig{})
	ctx := context.Background()

	f, err := m.Open(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	f.Write(ctx, 0, []byte("persist"))
	f.Close()

	if _, err := f.Write(ctx, 0, []byte("x")); !errors.Is(err, chrdev.ErrFileClosed) {
		t.Errorf("write on closed file err=%v", err)
	}
	if _, err := f.Read(ctx, 0, make([]byte, 1)); !errors.Is(err, chrdev.ErrFileClosed) {
		t.Errorf("read on closed file err=%v", err)
	}

	g, err := m.Open(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	p := make([]byte, 7)
	if _, err := g.Read(ctx, 0, p); err != nil || string(p) != "persist" {
		t.Errorf("reopened read=(%q, %v)", p, err)
	}
	if f.(*File).ID() == g.(*File).ID() {
		t.Error("files share an id")
	}
}

func TestModuleExitWakesReaders(t *testing.T) {
	m, err := Init(ModuleConfig{Handler: slog.NewTextHandler(io.Discard, nil)})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	f, err := m.Open(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.Read(ctx, 0, make([]byte, 4))
		done <- err
	}()
	waitForWaiters(t, m.Memory().Signal(), 1)

	if err := m.Exit(); err != nil {
		t.Fatal(err)
	}
	if err := expectDone(t, done); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v, want ErrClosed", err)
	}
	if _, err := m.Open(ctx, 0); !errors.Is(err, chrdev.ErrNoDevice) {
		t.Errorf("open after exit err=%v", err)
	}
}

func TestModuleKernelLog(t *testing.T) {
	m := testModule(t, ModuleConfig{Name: "gm"})
	f, err := m.Open(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Read(ctx, 0, make([]byte, 1)); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("read err=%v, want ErrInterrupted", err)
	}
	f.Close()

	lines := strings.Join(m.KernelLog().Lines(), "\n")
	for _, want := range []string{"globalmem: init", "globalmem: open device", "globalmem: wait read", "minor=1", "module=gm"} {
		if !strings.Contains(lines, want) {
			t.Errorf("kernel log missing %q:\n%s", want, lines)
		}
	}
}
