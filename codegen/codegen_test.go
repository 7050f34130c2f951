package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
	"github.com/quarkusio/gizmo-sub001/verify"
	"github.com/quarkusio/gizmo-sub001/vm"
)

var (
	iseType = types.Class("java/lang/IllegalStateException")
	iseCtor = types.NewMethodRef("java/lang/IllegalStateException", "<init>", "(Ljava/lang/String;)V")
	probe   = types.NewMethodRef("gizmo/Probe", "hit", "(Ljava/lang/String;)V")
)

// static generates the static method "f" in class c and verifies the class
func static(t *testing.T, c *Class, desc string, body func(*Block)) *Body {
	t.Helper()
	out, err := c.Method(Method{Name: "f", Desc: types.MustMethodDesc(desc), Static: true}, body)
	if err != nil {
		t.Fatalf("generate f%s: %v", desc, err)
	}
	if err := verify.Class(c.File(), c.Hierarchy()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return out
}

// newVM runs the class c in a fresh machine
func newVM(c *Class) *vm.VM {
	return vm.NewVM(c.File(), c.Hierarchy())
}

// generateErr generates f and returns the failure
func generateErr(desc string, body func(*Block)) error {
	c := NewClass("test/T", "", Config{})
	_, err := c.Method(Method{Name: "f", Desc: types.MustMethodDesc(desc), Static: true}, body)
	return err
}

func opcodes(t *testing.T, code []byte) []bytecode.Opcode {
	t.Helper()
	insns, err := bytecode.Decode(code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ops := make([]bytecode.Opcode, len(insns))
	for i, ins := range insns {
		ops[i] = ins.Op
	}
	return ops
}

func TestOperandOrder(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(II)I", func(b *Block) {
		b.ReturnValue(b.Sub(b.Param("arg0"), b.Param("arg1")))
	})
	got, err := newVM(c).Run("f", "(II)I", int32(10), int32(3))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(7) {
		t.Errorf("f(10, 3) = %v, want 7", got)
	}
}

func TestDeterministic(t *testing.T) {
	body := func(b *Block) {
		x := b.Param("arg0")
		sum := b.LocalOf("sum", types.Long, Long(0))
		b.ForRange("i", Int(0), x, func(lb *Block, i *LocalVar) {
			lb.If(lb.Eq(lb.Rem(i, Int(3)), Int(0)), func(t *Block) { t.Break(lb) })
			lb.Set(sum, lb.Add(sum, i))
		})
		b.ReturnValue(b.Cast(sum, types.Int))
	}
	var codes [2]*Body
	for i := range codes {
		codes[i] = static(t, NewClass("test/T", "", Config{}), "(I)I", body)
	}
	if diff := cmp.Diff(codes[0].Bytes, codes[1].Bytes); diff != "" {
		t.Errorf("code differs between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(codes[0].Frames, codes[1].Frames); diff != "" {
		t.Errorf("frames differ between runs (-first +second):\n%s", diff)
	}
}

func TestComparisonBecomesBranch(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	out := static(t, c, "(II)I", func(b *Block) {
		b.If(b.Lt(b.Param("arg0"), b.Param("arg1")), func(t *Block) { t.ReturnValue(Int(1)) })
		b.ReturnValue(Int(0))
	})
	want := []bytecode.Opcode{
		bytecode.ILOAD_0, bytecode.ILOAD_0 + 1, bytecode.IF_ICMPGE,
		bytecode.ICONST_1, bytecode.IRETURN,
		bytecode.ICONST_0, bytecode.IRETURN,
	}
	if diff := cmp.Diff(want, opcodes(t, out.Bytes)); diff != "" {
		t.Errorf("opcodes (-want +got):\n%s", diff)
	}
}

func TestFloatComparisonWithNaN(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(DD)Z", func(b *Block) {
		b.ReturnValue(b.Le(b.Param("arg0"), b.Param("arg1")))
	})
	machine := newVM(c)
	tests := []struct {
		x, y float64
		want int32
	}{
		{1, 2, 1},
		{2, 1, 0},
		{nan(), 1, 0},
		{1, nan(), 0},
	}
	for _, tt := range tests {
		got, err := machine.Run("f", "(DD)Z", tt.x, tt.y)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%v <= %v = %v, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestConditionalExpression(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(I)Ljava/lang/Object;", func(b *Block) {
		x := b.Param("arg0")
		v := b.Cond(types.Object, b.Gt(x, Int(0)),
			func(t *Block) { t.Yield(Str("positive")) },
			func(e *Block) { e.Yield(e.Box(Int(0))) })
		b.ReturnValue(v)
	})
	machine := newVM(c)
	got, err := machine.Run("f", "(I)Ljava/lang/Object;", int32(4))
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := vm.GoString(got); s != "positive" {
		t.Errorf("f(4) = %v", got)
	}
	got, err = machine.Run("f", "(I)Ljava/lang/Object;", int32(-1))
	if err != nil {
		t.Fatal(err)
	}
	if o, ok := got.(*vm.Object); !ok || o.Class != "java/lang/Integer" || o.Native != int32(0) {
		t.Errorf("f(-1) = %v", got)
	}
}

func TestLogicalAndShortCircuits(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(II)Z", func(b *Block) {
		x, y := b.Param("arg0"), b.Param("arg1")
		b.ReturnValue(b.LogicalAnd(b.Ne(y, Int(0)), func(r *Block) Expr {
			return r.Gt(r.Div(x, y), Int(1))
		}))
	})
	machine := newVM(c)
	for _, tt := range []struct{ x, y, want int32 }{{10, 2, 1}, {1, 2, 0}, {5, 0, 0}} {
		got, err := machine.Run("f", "(II)Z", tt.x, tt.y)
		if err != nil {
			t.Fatalf("f(%d, %d): %v", tt.x, tt.y, err)
		}
		if got != tt.want {
			t.Errorf("f(%d, %d) = %v, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestAllocationFloatsToConstructor(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	out := static(t, c, "(Ljava/lang/String;I)Ljava/lang/Object;", func(b *Block) {
		msg := b.Param("arg0")
		b.InvokeStatic(probe, Str("before"))
		b.ReturnValue(b.New(iseCtor, msg))
	})
	ops := opcodes(t, out.Bytes)
	newAt, initAt := -1, -1
	for i, op := range ops {
		switch op {
		case bytecode.NEW:
			newAt = i
		case bytecode.INVOKESPECIAL:
			initAt = i
		}
	}
	want := []bytecode.Opcode{bytecode.NEW, bytecode.DUP, bytecode.ALOAD_0, bytecode.INVOKESPECIAL}
	if newAt < 0 || initAt < newAt {
		t.Fatalf("no new/invokespecial pair in %v", ops)
	}
	if diff := cmp.Diff(want, ops[newAt:initAt+1]); diff != "" {
		t.Errorf("allocation sequence (-want +got):\n%s", diff)
	}
}

func TestUnusedResultIsPopped(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	out := static(t, c, "()V", func(b *Block) {
		b.New(iseCtor, Str("x"))
		b.Add(Long(1), Long(2))
	})
	want := []bytecode.Opcode{
		bytecode.NEW, bytecode.DUP, bytecode.LDC, bytecode.INVOKESPECIAL, bytecode.POP,
		bytecode.LCONST_1, bytecode.LDC2_W, bytecode.LADD, bytecode.POP2,
		bytecode.RETURN,
	}
	if diff := cmp.Diff(want, opcodes(t, out.Bytes)); diff != "" {
		t.Errorf("opcodes (-want +got):\n%s", diff)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	tests := []struct {
		typ   types.Type
		value vm.Value
	}{
		{types.Boolean, int32(1)},
		{types.Byte, int32(-5)},
		{types.Char, int32('A')},
		{types.Short, int32(-300)},
		{types.Int, int32(123456)},
		{types.Long, int64(1) << 40},
		{types.Float, float32(1.5)},
		{types.Double, 2.25},
	}
	for _, tt := range tests {
		c := NewClass("test/T", "", Config{})
		desc := "(" + string(tt.typ) + ")" + string(tt.typ)
		static(t, c, desc, func(b *Block) {
			b.ReturnValue(b.Unbox(b.Box(b.Param("arg0"))))
		})
		got, err := newVM(c).Run("f", desc, tt.value)
		if err != nil {
			t.Errorf("%s: %v", tt.typ, err)
			continue
		}
		if got != tt.value {
			t.Errorf("unbox(box(%v)) as %s = %v", tt.value, tt.typ, got)
		}
	}
}

func TestWidenThenNarrow(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(I)I", func(b *Block) {
		wide := b.Convert(b.Param("arg0"), types.Long)
		asDouble := b.Convert(b.Cast(wide, types.Int), types.Double)
		b.ReturnValue(b.Cast(asDouble, types.Int))
	})
	machine := newVM(c)
	for _, v := range []int32{0, -1, 1 << 30, -1 << 31} {
		got, err := machine.Run("f", "(I)I", v)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Errorf("f(%d) = %v", v, got)
		}
	}
}

func TestBoxToSupertype(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(J)Ljava/lang/Number;", func(b *Block) {
		b.ReturnValue(b.Param("arg0"))
	})
	got, err := newVM(c).Run("f", "(J)Ljava/lang/Number;", int64(9))
	if err != nil {
		t.Fatal(err)
	}
	if o, ok := got.(*vm.Object); !ok || o.Class != "java/lang/Long" {
		t.Errorf("f(9) = %v, want a Long", got)
	}
}

func TestUnboxFromSupertype(t *testing.T) {
	for _, desc := range []string{"(Ljava/lang/Object;)I", "(Ljava/lang/Number;)I", "(Ljava/lang/Comparable;)I"} {
		c := NewClass("test/T", "", Config{})
		static(t, c, desc, func(b *Block) {
			b.ReturnValue(b.Param("arg0"))
		})
		machine := newVM(c)
		got, err := machine.Run("f", desc, machine.Box(types.Int, int32(7)))
		if err != nil {
			t.Fatalf("%s: %v", desc, err)
		}
		if got != int32(7) {
			t.Errorf("%s: f(7) = %v", desc, got)
		}
	}
}

func TestUnrelatedReferenceToPrimitive(t *testing.T) {
	for _, desc := range []string{"()I", "(Ljava/lang/String;)J", "([I)I", "(Ljava/lang/Runnable;)D"} {
		err := generateErr(desc, func(b *Block) {
			if strings.HasPrefix(desc, "()") {
				b.ReturnValue(Str("x"))
				return
			}
			b.ReturnValue(b.Param("arg0"))
		})
		var gerr *Error
		if !errors.As(err, &gerr) || gerr.Kind != TypeMismatch {
			t.Errorf("%s: got %v, want a type mismatch", desc, err)
			continue
		}
		if !strings.Contains(err.Error(), "cannot convert") {
			t.Errorf("%s: message %q does not name the conversion", desc, err)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		desc string
		body func(*Block)
		want ErrorKind
	}{
		{"return string from int method", "()I", func(b *Block) {
			b.ReturnValue(Str("x"))
		}, TypeMismatch},
		{"compare string with int", "()V", func(b *Block) {
			b.Lt(Str("x"), Int(1))
		}, TypeMismatch},
		{"append after return", "()V", func(b *Block) {
			b.Return()
			b.Nop()
		}, InvalidState},
		{"two finally blocks", "()V", func(b *Block) {
			b.Try(func(tr *Try) {
				tr.Body(func(*Block) {})
				tr.Finally(func(*Block) {})
				tr.Finally(func(*Block) {})
			})
		}, InvalidState},
		{"local redeclares parameter", "(I)V", func(b *Block) {
			b.Local("arg0", Int(1))
		}, InvalidState},
		{"missing return", "()I", func(b *Block) {}, InvalidState},
		{"append to parent while nested", "()V", func(b *Block) {
			b.Block(func(*Block) { b.Nop() })
		}, InvalidState},
		{"switch on double", "(D)V", func(b *Block) {
			b.Switch(b.Param("arg0"), func(s *Switch) {})
		}, Unsupported},
		{"value read away from its position", "()Ljava/lang/Object;", func(b *Block) {
			e := b.New(iseCtor, Str("a"))
			b.InvokeStatic(probe, Str("between"))
			b.ReturnValue(e)
		}, Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := generateErr(tt.desc, tt.body)
			var gerr *Error
			if !errors.As(err, &gerr) {
				t.Fatalf("got %v, want a codegen error", err)
			}
			if gerr.Kind != tt.want {
				t.Errorf("kind %s, want %s (%v)", gerr.Kind, tt.want, err)
			}
		})
	}
}

func TestStackMapErrorMessage(t *testing.T) {
	err := asError(&stackmap.Error{Offset: 16, Msg: "stack height mismatch at join: 1 vs 0"})
	want := "codegen: internal error: stack map: offset 16: stack height mismatch at join: 1 vs 0"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err, want)
	}
	var se *stackmap.Error
	if !errors.As(err, &se) || se.Offset != 16 {
		t.Errorf("stack map error not wrapped: %v", err)
	}
}

func TestFailedMethodIsNotAdded(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	_, err := c.Method(Method{Name: "f", Desc: types.MustMethodDesc("()I")}, func(b *Block) {
		b.ReturnValue(Str("x"))
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(c.File().Methods) != 0 {
		t.Errorf("class has %d methods after a failure", len(c.File().Methods))
	}
}

func TestInstanceFieldsAndConstructor(t *testing.T) {
	c := NewClass("test/Counter", "", Config{})
	count, err := c.Field(0, "count", types.Int)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.DefaultConstructor(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Method(Method{Name: "bump", Desc: types.MustMethodDesc("(I)I")}, func(b *Block) {
		this := b.This()
		b.SetField(this, count, b.Add(b.GetField(this, count), b.Param("arg0")))
		b.ReturnValue(b.GetField(this, count))
	}); err != nil {
		t.Fatal(err)
	}
	if err := verify.Class(c.File(), c.Hierarchy()); err != nil {
		t.Fatal(err)
	}
	machine := newVM(c)
	obj := &vm.Object{Class: "test/Counter", Fields: map[string]vm.Value{}}
	if _, err := machine.Run("<init>", "()V", obj); err != nil {
		t.Fatal(err)
	}
	machine.Run("bump", "(I)I", obj, int32(2))
	got, err := machine.Run("bump", "(I)I", obj, int32(3))
	if err != nil || got != int32(5) {
		t.Errorf("bump = %v, %v; want 5", got, err)
	}
}
