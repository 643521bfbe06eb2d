package globalmem

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haivivi/globalmem/pkg/chrdev"
)

// DefaultMinors is the number of minors reserved by default.
const DefaultMinors = 2

// ModuleConfig configures Init.
type ModuleConfig struct {
	// Name is the registration name. Default is "globalmem".
	Name string

	// Capacity is the buffer size. Default is DefaultCapacity.
	Capacity int

	// Minors is the number of minors to reserve. Default is DefaultMinors.
	Minors int

	// Register is how many of the reserved minors get the device.
	// Zero registers all of them.
	Register int

	// WaitMode selects the reader wait protocol.
	WaitMode WaitMode

	// KernelLogSize is the number of kernel log lines kept. Default 256.
	KernelLogSize int

	// Handler receives log records in addition to the kernel log. A nil
	// handler uses slog.Default().Handler().
	Handler slog.Handler
}

// Module ties a Memory to a chrdev.Registration. It is the unit that is
// initialized at startup and torn down at exit.
type Module struct {
	name   string
	mem    *Memory
	reg    *chrdev.Registration
	klog   *chrdev.KernelLog
	logger *slog.Logger
}

// Init creates the Memory, reserves the minors and registers the device on
// them.
func Init(cfg ModuleConfig) (*Module, error) {
	if cfg.Name == "" {
		cfg.Name = "globalmem"
	}
	if cfg.Minors <= 0 {
		cfg.Minors = DefaultMinors
	}
	if cfg.Register <= 0 || cfg.Register > cfg.Minors {
		cfg.Register = cfg.Minors
	}
	if cfg.KernelLogSize <= 0 {
		cfg.KernelLogSize = 256
	}
	if cfg.Handler == nil {
		cfg.Handler = slog.Default().Handler()
	}

	klog := chrdev.NewKernelLog(cfg.KernelLogSize)
	logger := slog.New(klog.Handler(cfg.Handler)).With("module", cfg.Name)
	mem := New(&Options{Capacity: cfg.Capacity, WaitMode: cfg.WaitMode})
	logger.Info("globalmem: init", "capacity", mem.Buffer().Cap(), "minors", cfg.Minors, "wait", cfg.WaitMode)

	reg := chrdev.NewRegistration(cfg.Name, 0, cfg.Minors, logger)
	dev := NewDevice(mem, logger)
	for range cfg.Register {
		if _, err := reg.Register(dev); err != nil {
			mem.Close()
			return nil, fmt.Errorf("globalmem: register %s: %w", cfg.Name, err)
		}
	}

	return &Module{
		name:   cfg.Name,
		mem:    mem,
		reg:    reg,
		klog:   klog,
		logger: logger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Memory returns the shared memory.
func (m *Module) Memory() *Memory {
	return m.mem
}

// Registration returns the minor registration.
func (m *Module) Registration() *chrdev.Registration {
	return m.reg
}

// KernelLog returns the module's kernel log.
func (m *Module) KernelLog() *chrdev.KernelLog {
	return m.klog
}

// Logger returns the module logger.
func (m *Module) Logger() *slog.Logger {
	return m.logger
}

// Open opens minor through the registration.
func (m *Module) Open(ctx context.Context, minor int) (chrdev.File, error) {
	return m.reg.Open(ctx, minor)
}

// Peek copies buffer contents at offset without waiting for a write.
func (m *Module) Peek(offset int64, p []byte) (int, error) {
	return m.mem.Buffer().Read(offset, p)
}

// Stat returns the memory stat.
func (m *Module) Stat() Stat {
	return m.mem.Stat()
}

// Exit unregisters the device and closes the memory. Blocked readers wake
// with ErrClosed.
func (m *Module) Exit() error {
	m.logger.Info("globalmem: exit")
	m.reg.Unregister()
	return m.mem.Close()
}
