package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Tracer provides emission tracing for debugging
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// New creates a tracer. Filters are glob patterns matched against
// "Owner.method" (for example "demo/*.run*"); no filters traces
// everything.
func New(enabled bool, filters []string, writer io.Writer) *Tracer {
	if writer == nil {
		writer = os.Stderr
	}
	return &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// IsEnabled returns whether tracing is enabled
func (t *Tracer) IsEnabled() bool {
	return t != nil && t.enabled
}

// matchesFilter checks if a method name matches any of the filter patterns
func (t *Tracer) matchesFilter(name string) bool {
	if len(t.filters) == 0 {
		return true // No filters = trace everything
	}

	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func (t *Tracer) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, format, args...)
}

// Method logs the start of a method and returns the tracer for its
// body, or nil when the method is filtered out
func (t *Tracer) Method(owner, name string, desc types.MethodDesc) *MethodTrace {
	if !t.IsEnabled() {
		return nil
	}
	full := owner + "." + name
	if !t.matchesFilter(full) {
		return nil
	}
	t.printf("[TRACE] METHOD %s%s\n", full, desc)
	return &MethodTrace{t: t, name: full}
}

// MethodTrace traces one method body. A nil *MethodTrace discards
// everything.
type MethodTrace struct {
	t    *Tracer
	name string
}

// Item logs an item as it is appended to a block
func (m *MethodTrace) Item(depth int, kind string, typ types.Type, bound bool) {
	if m == nil {
		return
	}
	binding := "unbound"
	if bound {
		binding = "bound"
	}
	t := "void"
	if !typ.IsVoid() {
		t = typ.String()
	}
	m.t.printf("[TRACE] ITEM %*s%s : %s (%s)\n", 2*depth, "", kind, t, binding)
}

// Instruction logs an emitted instruction with the state after it
func (m *MethodTrace) Instruction(offset int, text string, state stackmap.State) {
	if m == nil {
		return
	}
	m.t.printf("[TRACE]   %5d: %-48s %s\n", offset, text, state)
}

// Frame logs a recorded stack map frame
func (m *MethodTrace) Frame(f stackmap.Frame) {
	if m == nil {
		return
	}
	st := stackmap.State{Locals: f.Locals, Stack: f.Stack}
	m.t.printf("[TRACE] FRAME %s @%d %s\n", m.name, f.Offset, st)
}

// Done logs the size of the finished body
func (m *MethodTrace) Done(codeLen, maxStack, maxLocals int) {
	if m == nil {
		return
	}
	m.t.printf("[TRACE] END %s code=%d stack=%d locals=%d\n", m.name, codeLen, maxStack, maxLocals)
}

// Error logs a failed generation
func (m *MethodTrace) Error(err error) {
	if m == nil {
		return
	}
	m.t.printf("[TRACE] ERROR %s %v\n", m.name, err)
}
