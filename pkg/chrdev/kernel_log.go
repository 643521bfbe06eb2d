package chrdev

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/globalmem/pkg/buffer"
)

// Entry is one line in a KernelLog.
type Entry struct {
	Seq   uint64    `json:"seq" yaml:"seq" msgpack:"seq"`
	Time  time.Time `json:"time" yaml:"time" msgpack:"time"`
	Level string    `json:"level" yaml:"level" msgpack:"level"`
	Text  string    `json:"text" yaml:"text" msgpack:"text"`
}

// String formats the entry as "[seq] LEVEL text".
func (e Entry) String() string {
	return fmt.Sprintf("[%6d] %-5s %s", e.Seq, e.Level, e.Text)
}

// KernelLog is a fixed-size ring of log entries. When full, the oldest
// entry is overwritten. Sequence numbers keep counting across overwrites.
type KernelLog struct {
	mu   sync.Mutex
	ring *buffer.RingBuffer[Entry]
	now  func() time.Time
}

// NewKernelLog creates a KernelLog that keeps the last size entries.
func NewKernelLog(size int) *KernelLog {
	return &KernelLog{
		ring: buffer.RingN[Entry](size),
		now:  time.Now,
	}
}

// Add appends a line at the given level.
func (kl *KernelLog) Add(level slog.Level, text string) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	kl.ring.Add(kl.stamp(1, level, text))
}

// stamp builds the entry that will be the i-th (from 1) added after the
// current ones. kl.mu must be held.
func (kl *KernelLog) stamp(i int, level slog.Level, text string) Entry {
	return Entry{
		Seq:   uint64(kl.ring.Total()) + uint64(i),
		Time:  kl.now(),
		Level: level.String(),
		Text:  text,
	}
}

// Write implements io.Writer. Each line of p becomes an Info entry.
func (kl *KernelLog) Write(p []byte) (int, error) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	var entries []Entry
	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		entries = append(entries, kl.stamp(len(entries)+1, slog.LevelInfo, line))
	}
	if _, err := kl.ring.Write(entries); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Entries returns a copy of the retained entries, oldest first.
func (kl *KernelLog) Entries() []Entry {
	return kl.ring.Bytes()
}

// Lines returns the retained entries formatted with Entry.String.
func (kl *KernelLog) Lines() []string {
	entries := kl.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}

// Len returns the number of retained entries.
func (kl *KernelLog) Len() int {
	return kl.ring.Len()
}

// Handler returns a slog.Handler that records Info and above in kl and
// forwards every record to next. next may be nil.
func (kl *KernelLog) Handler(next slog.Handler) slog.Handler {
	return &kernelLogHandler{klog: kl, next: next}
}

type kernelLogHandler struct {
	klog   *KernelLog
	next   slog.Handler
	prefix string
	attrs  []string
}

func (h *kernelLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelInfo {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *kernelLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelInfo {
		var sb strings.Builder
		sb.WriteString(r.Message)
		for _, a := range h.attrs {
			sb.WriteByte(' ')
			sb.WriteString(a)
		}
		r.Attrs(func(a slog.Attr) bool {
			sb.WriteByte(' ')
			sb.WriteString(h.format(a))
			return true
		})
		h.klog.Add(r.Level, sb.String())
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *kernelLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, h.format(a))
	}
	if h.next != nil {
		nh.next = h.next.WithAttrs(attrs)
	}
	return &nh
}

func (h *kernelLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	if h.next != nil {
		nh.next = h.next.WithGroup(name)
	}
	return &nh
}

func (h *kernelLogHandler) format(a slog.Attr) string {
	return h.prefix + a.Key + "=" + a.Value.Resolve().String()
}
