package vm

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/codegen"
	"github.com/quarkusio/gizmo-sub001/types"
)

// build generates a static method "f" with descriptor desc in a fresh class
func build(t *testing.T, desc string, body func(*codegen.Block)) *VM {
	t.Helper()
	c := codegen.NewClass("test/T", "", codegen.Config{})
	if _, err := c.Method(codegen.Method{Name: "f", Desc: types.MustMethodDesc(desc), Static: true}, body); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return NewVM(c.File(), c.Hierarchy())
}

func TestArithmetic(t *testing.T) {
	vm := build(t, "(II)I", func(b *codegen.Block) {
		x, y := b.Param("arg0"), b.Param("arg1")
		b.ReturnValue(b.Add(b.Mul(x, y), b.Rem(x, y)))
	})
	tests := []struct {
		x, y int32
		want int32
	}{
		{7, 3, 22},
		{-7, 3, -22},
		{math.MaxInt32, 2, -1},
	}
	for _, tt := range tests {
		got, err := vm.Run("f", "(II)I", tt.x, tt.y)
		if err != nil {
			t.Fatalf("f(%d, %d): %v", tt.x, tt.y, err)
		}
		if got != tt.want {
			t.Errorf("f(%d, %d) = %v, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDivideByZeroThrows(t *testing.T) {
	vm := build(t, "(II)I", func(b *codegen.Block) {
		b.ReturnValue(b.Div(b.Param("arg0"), b.Param("arg1")))
	})
	_, err := vm.Run("f", "(II)I", int32(1), int32(0))
	var thrown *Thrown
	if !errors.As(err, &thrown) {
		t.Fatalf("got %v, want a thrown exception", err)
	}
	if thrown.Obj.Class != "java/lang/ArithmeticException" {
		t.Errorf("thrown %s, want ArithmeticException", thrown.Obj.Class)
	}
}

func TestCatchBySuperclass(t *testing.T) {
	vm := build(t, "(I)I", func(b *codegen.Block) {
		b.Try(func(tr *codegen.Try) {
			tr.Body(func(body *codegen.Block) {
				body.If(body.Gt(body.Param("arg0"), codegen.Int(0)), func(th *codegen.Block) {
					th.ThrowNew(types.Class("java/lang/IllegalStateException"), "boom")
				})
			})
			tr.Catch("e", func(cb *codegen.Block, e *codegen.LocalVar) {
				cb.ReturnValue(codegen.Int(1))
			}, types.Class("java/lang/RuntimeException"))
		})
		b.ReturnValue(codegen.Int(0))
	})
	for arg, want := range map[int32]int32{0: 0, 5: 1} {
		got, err := vm.Run("f", "(I)I", arg)
		if err != nil {
			t.Fatalf("f(%d): %v", arg, err)
		}
		if got != want {
			t.Errorf("f(%d) = %v, want %d", arg, got, want)
		}
	}
}

func TestUncaughtCarriesMessage(t *testing.T) {
	vm := build(t, "()V", func(b *codegen.Block) {
		b.ThrowNew(types.Class("java/lang/IllegalArgumentException"), "bad input")
	})
	_, err := vm.Run("f", "()V")
	if err == nil || err.Error() != "exception java.lang.IllegalArgumentException: bad input" {
		t.Errorf("got %v", err)
	}
}

func TestProbes(t *testing.T) {
	vm := build(t, "()V", func(b *codegen.Block) {
		b.ForRange("i", codegen.Int(0), codegen.Int(3), func(lb *codegen.Block, i *codegen.LocalVar) {
			lb.InvokeStatic(ProbeHit, codegen.Str("loop"))
		})
		b.InvokeStatic(ProbeHit, codegen.Str("end"))
	})
	if _, err := vm.Run("f", "()V"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]int{"loop": 3, "end": 1}, vm.Probes); diff != "" {
		t.Errorf("probes (-want +got):\n%s", diff)
	}
}

func TestTickLimit(t *testing.T) {
	vm := build(t, "()V", func(b *codegen.Block) {
		b.Loop(func(l *codegen.Block) {
			l.Nop()
		})
	})
	vm.TickLimit = 1000
	if _, err := vm.Run("f", "()V"); err == nil {
		t.Error("infinite loop finished")
	}
}

func TestArrays(t *testing.T) {
	vm := build(t, "(I)I", func(b *codegen.Block) {
		arr := b.Local("a", b.NewArray(types.Int, codegen.Int(2)))
		b.ArraySet(arr, codegen.Int(0), codegen.Int(100))
		b.ReturnValue(b.ArrayGet(arr, b.Param("arg0")))
	})
	got, err := vm.Run("f", "(I)I", int32(0))
	if err != nil || got != int32(100) {
		t.Errorf("f(0) = %v, %v", got, err)
	}
	_, err = vm.Run("f", "(I)I", int32(2))
	var thrown *Thrown
	if !errors.As(err, &thrown) || thrown.Obj.Class != "java/lang/ArrayIndexOutOfBoundsException" {
		t.Errorf("f(2) = %v, want ArrayIndexOutOfBoundsException", err)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		in   Value
		want Value
	}{
		{bytecode.D2I, math.NaN(), int32(0)},
		{bytecode.D2I, 1e20, int32(math.MaxInt32)},
		{bytecode.D2I, -1e20, int32(math.MinInt32)},
		{bytecode.F2L, float32(-2.7), int64(-2)},
		{bytecode.I2B, int32(200), int32(-56)},
		{bytecode.I2C, int32(-1), int32(65535)},
		{bytecode.L2I, int64(1<<32 + 5), int32(5)},
	}
	for _, tt := range tests {
		if got := convert(tt.op, tt.in); got != tt.want {
			t.Errorf("%s %v = %v, want %v", tt.op, tt.in, got, tt.want)
		}
	}
}

func TestShiftMasksDistance(t *testing.T) {
	if got := shift(0, int32(1), 33); got != int32(2) {
		t.Errorf("1 << 33 = %v, want 2", got)
	}
	if got := shift(2, int64(-1), 63); got != int64(1) {
		t.Errorf("-1L >>> 63 = %v, want 1", got)
	}
}

func TestBoxCache(t *testing.T) {
	vm := NewVM(nil, nil)
	if vm.Box(types.Int, int32(5)) != vm.Box(types.Int, int32(5)) {
		t.Error("small Integer not cached")
	}
	if vm.Box(types.Int, int32(500)) == vm.Box(types.Int, int32(500)) {
		t.Error("large Integer cached")
	}
	if vm.String("a") != vm.String("a") {
		t.Error("string literals not interned")
	}
}
