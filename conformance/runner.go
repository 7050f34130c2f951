package conformance

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/codegen"
	"github.com/quarkusio/gizmo-sub001/trace"
	"github.com/quarkusio/gizmo-sub001/types"
	"github.com/quarkusio/gizmo-sub001/verify"
	"github.com/quarkusio/gizmo-sub001/vm"
)

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
	Class      *codegen.Class // nil when generation failed
	Body       *codegen.Body
}

// Disassemble writes the listing of the generated method
func (tr *TestResult) Disassemble(w io.Writer) error {
	if tr.Body == nil {
		return fmt.Errorf("%s: no generated method", tr.Test.Test.Name)
	}
	return bytecode.Disassemble(w, tr.Body.Code, tr.Class.File().Pool)
}

// Runner generates, verifies and executes conformance tests
type Runner struct {
	// Tracer is handed to every generated class
	Tracer *trace.Tracer
	// DebugNops marks every block with a nop
	DebugNops bool
	// Major is the class-file version; codegen.DefaultMajor when zero
	Major uint16
	// TickLimit bounds each run; the VM default when zero
	TickLimit int64
}

// NewRunner creates a new test runner
func NewRunner() *Runner {
	return &Runner{}
}

// Config returns the generation settings of the runner
func (r *Runner) Config() codegen.Config {
	return codegen.Config{Tracer: r.Tracer, DebugNops: r.DebugNops, Major: r.Major}
}

// Run executes a single test case
func (r *Runner) Run(test LoadedTest) TestResult {
	// Check if test should be skipped
	if skipped, reason := test.Test.IsSkipped(); skipped {
		return TestResult{
			Test:       test,
			Skipped:    true,
			SkipReason: reason,
		}
	}

	c, body, err := Generate(test, r.Config())
	if test.Test.ExpectError != "" {
		passed, err := checkGenerateError(test.Test.ExpectError, err)
		return TestResult{Test: test, Passed: passed, Error: err}
	}
	if err != nil {
		return TestResult{
			Test:  test,
			Error: fmt.Errorf("generate: %w", err),
		}
	}

	result := TestResult{Test: test, Class: c, Body: body}
	h := test.Suite.TypeHierarchy()
	if err := verify.Class(c.File(), h); err != nil {
		result.Error = fmt.Errorf("verify: %w", err)
		return result
	}
	if err := checkOpcodes(test.Test, body); err != nil {
		result.Error = err
		return result
	}

	for i, run := range test.Test.Runs {
		if err := r.execute(c, h, test, run); err != nil {
			result.Error = fmt.Errorf("run %d: %w", i+1, err)
			return result
		}
	}
	result.Passed = true
	return result
}

// RunAll executes all loaded tests
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, test := range tests {
		results[i] = r.Run(test)
	}
	return results
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}

func checkGenerateError(want string, err error) (bool, error) {
	if err == nil {
		return false, fmt.Errorf("expected %s error, generation succeeded", want)
	}
	var gerr *codegen.Error
	if !errors.As(err, &gerr) {
		return false, fmt.Errorf("expected %s error, got %v", want, err)
	}
	if gerr.Kind.String() != want {
		return false, fmt.Errorf("expected %s error, got %v", want, err)
	}
	return true, nil
}

func checkOpcodes(test TestCase, body *codegen.Body) error {
	if len(test.Emits) == 0 && len(test.NotEmits) == 0 {
		return nil
	}
	insns, err := bytecode.Decode(body.Bytes)
	if err != nil {
		return err
	}
	emitted := make(map[string]bool)
	for _, ins := range insns {
		emitted[ins.Op.String()] = true
	}
	for _, op := range test.Emits {
		if !emitted[strings.ToLower(op)] {
			return fmt.Errorf("expected %s in the method body", op)
		}
	}
	for _, op := range test.NotEmits {
		if emitted[strings.ToLower(op)] {
			return fmt.Errorf("unexpected %s in the method body", op)
		}
	}
	return nil
}

func (r *Runner) execute(c *codegen.Class, h types.Hierarchy, test LoadedTest, run Run) error {
	desc := types.MustMethodDesc(test.Test.Method.Desc)
	machine := vm.NewVM(c.File(), h)
	if r.TickLimit > 0 {
		machine.TickLimit = r.TickLimit
	}

	var args []vm.Value
	if test.Test.Method.Instance {
		args = append(args, &vm.Object{Class: c.Name(), Fields: map[string]vm.Value{}})
	}
	if len(run.Args) != len(desc.Params) {
		return fmt.Errorf("%d arguments for %s", len(run.Args), desc)
	}
	for i, a := range run.Args {
		v, err := toValue(machine, desc.Params[i], a)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		args = append(args, v)
	}

	got, err := machine.Run(MethodName, desc.String(), args...)
	if err := checkExpectation(machine, desc.Return, run.Expect, got, err); err != nil {
		return err
	}
	if run.Expect.Probes != nil {
		if diff := cmp.Diff(run.Expect.Probes, machine.Probes, cmpopts.EquateEmpty()); diff != "" {
			return fmt.Errorf("probes (-want +got):\n%s", diff)
		}
	}
	return nil
}

// checkExpectation checks if the result matches the expected outcome
func checkExpectation(machine *vm.VM, ret types.Type, expect Expectation, got vm.Value, err error) error {
	// Check for expected exception
	if expect.Thrown != "" {
		var thrown *vm.Thrown
		if !errors.As(err, &thrown) {
			return fmt.Errorf("expected %s thrown, got %v, %v", expect.Thrown, got, err)
		}
		if thrown.Obj.Class != expect.Thrown {
			return fmt.Errorf("expected %s thrown, got %s", expect.Thrown, thrown.Obj.Class)
		}
		if expect.Message != "" && thrown.Obj.Native != expect.Message {
			return fmt.Errorf("expected message %q, got %v", expect.Message, thrown.Obj.Native)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("unexpected error: %w", err)
	}

	if expect.Null {
		if got != nil {
			return fmt.Errorf("expected null, got %v", got)
		}
		return nil
	}
	if expect.Value == nil {
		return nil
	}

	// Boxed results compare by payload
	if o, ok := got.(*vm.Object); ok && o != nil {
		if prim, ok := unboxed[o.Class]; ok {
			ret, got = prim, o.Native
		}
	}
	want, err := toValue(machine, ret, expect.Value)
	if err != nil {
		return fmt.Errorf("failed to convert expected value: %w", err)
	}
	if !sameValue(want, got) {
		return fmt.Errorf("expected %v, got %v", want, got)
	}
	return nil
}

var unboxed = map[string]types.Type{
	"java/lang/Boolean":   types.Boolean,
	"java/lang/Byte":      types.Byte,
	"java/lang/Short":     types.Short,
	"java/lang/Character": types.Char,
	"java/lang/Integer":   types.Int,
	"java/lang/Long":      types.Long,
	"java/lang/Float":     types.Float,
	"java/lang/Double":    types.Double,
}

func sameValue(want, got vm.Value) bool {
	switch w := want.(type) {
	case float32:
		g, ok := got.(float32)
		return ok && (w == g || math.IsNaN(float64(w)) && math.IsNaN(float64(g)))
	case float64:
		g, ok := got.(float64)
		return ok && (w == g || math.IsNaN(w) && math.IsNaN(g))
	case *vm.Object:
		if s, ok := vm.GoString(w); ok {
			gs, ok := vm.GoString(got)
			return ok && s == gs
		}
	}
	return want == got
}

// toValue converts a YAML value to a VM value of type t
func toValue(machine *vm.VM, t types.Type, v interface{}) (vm.Value, error) {
	switch t {
	case types.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%v is not a boolean", v)
		}
		if b {
			return int32(1), nil
		}
		return int32(0), nil
	case types.Byte, types.Short, types.Int:
		n, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("%v is not an int", v)
		}
		return int32(n), nil
	case types.Char:
		switch c := v.(type) {
		case string:
			return int32([]rune(c)[0]), nil
		case int:
			return int32(uint16(c)), nil
		}
		return nil, fmt.Errorf("%v is not a char", v)
	case types.Long:
		n, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("%v is not a long", v)
		}
		return int64(n), nil
	case types.Float, types.Double:
		var f float64
		switch x := v.(type) {
		case int:
			f = float64(x)
		case float64:
			f = x
		case string:
			if !strings.EqualFold(x, "nan") {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			f = math.NaN()
		default:
			return nil, fmt.Errorf("%v is not a number", v)
		}
		if t == types.Float {
			return float32(f), nil
		}
		return f, nil
	}

	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return machine.NewString(x), nil
	case map[string]interface{}:
		if name, ok := x["enum"].(string); ok {
			ord, _ := x["ordinal"].(int)
			return machine.Enum(t.InternalName(), name, ord), nil
		}
		if name, ok := x["class"].(string); ok {
			return machine.ClassObject(parseTypeName(name)), nil
		}
		if name, ok := x["object"].(string); ok {
			return &vm.Object{Class: name, Fields: map[string]vm.Value{}}, nil
		}
		if elem, ok := x["array"].(string); ok {
			et := parseTypeName(elem)
			items, _ := x["items"].([]interface{})
			arr := &vm.Array{Elem: et, Data: make([]vm.Value, len(items))}
			for i, item := range items {
				iv, err := toValue(machine, et, item)
				if err != nil {
					return nil, err
				}
				arr.Data[i] = iv
			}
			return arr, nil
		}
		if b, ok := x["box"].(string); ok {
			bt := parseTypeName(b)
			p, err := toValue(machine, bt, x["value"])
			if err != nil {
				return nil, err
			}
			return machine.Box(bt, p), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %v to %s", v, t)
}

// parseTypeName accepts Java primitive names, internal class names and
// either followed by [] for arrays
func parseTypeName(name string) types.Type {
	if strings.HasSuffix(name, "[]") {
		return types.ArrayOf(parseTypeName(strings.TrimSuffix(name, "[]")))
	}
	if t, ok := primitiveNames[name]; ok {
		return t
	}
	return types.Class(name)
}
