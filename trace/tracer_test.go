package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

func TestFilter(t *testing.T) {
	var buf bytes.Buffer
	tr := New(true, []string{"demo/*.run*"}, &buf)
	desc := types.NewMethodDesc(types.Void)
	if m := tr.Method("demo/A", "compute", desc); m != nil {
		t.Error("filtered method should not be traced")
	}
	m := tr.Method("demo/A", "runAll", desc)
	if m == nil {
		t.Fatal("matching method not traced")
	}
	m.Instruction(0, "iconst_0", stackmap.State{Stack: []stackmap.VType{stackmap.IntType}})
	m.Done(1, 1, 0)
	out := buf.String()
	for _, want := range []string{"[TRACE] METHOD demo/A.runAll()V", "iconst_0", "stack=[int]", "[TRACE] END demo/A.runAll"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestDisabledAndNil(t *testing.T) {
	var buf bytes.Buffer
	tr := New(false, nil, &buf)
	m := tr.Method("demo/A", "f", types.NewMethodDesc(types.Int))
	// a nil trace discards everything
	m.Item(0, "const", types.Int, false)
	m.Frame(stackmap.Frame{})
	m.Error(nil)
	var none *Tracer
	if none.IsEnabled() {
		t.Error("nil tracer reports enabled")
	}
	if buf.Len() != 0 {
		t.Errorf("disabled tracer wrote %q", buf.String())
	}
}
