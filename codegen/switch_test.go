package codegen

import (
	"testing"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/types"
	"github.com/quarkusio/gizmo-sub001/vm"
)

func TestSelectTable(t *testing.T) {
	tests := []struct {
		keys []int32
		want bool
	}{
		{nil, false},
		{[]int32{1, 1000}, false},
		{[]int32{0, 1, 2, 3, 4, 6, 7, 8, 9}, true},
		{[]int32{0, 1, 2, 3, 4, 7, 8, 9}, false},
		{[]int32{5}, true},
		{[]int32{-2147483648, 2147483647}, false},
	}
	for _, tt := range tests {
		if got := SelectTable(tt.keys); got != tt.want {
			t.Errorf("SelectTable(%v) = %v, want %v", tt.keys, got, tt.want)
		}
	}
}

// dispatchOp returns the switch instruction of code
func dispatchOp(t *testing.T, code []byte) bytecode.Opcode {
	t.Helper()
	for _, op := range opcodes(t, code) {
		if op == bytecode.TABLESWITCH || op == bytecode.LOOKUPSWITCH {
			return op
		}
	}
	t.Fatal("no switch instruction")
	return 0
}

// caseIndex builds a switch expression returning the position of the case
// matching the discriminant, -1 for the default
func caseIndex(keys ...interface{}) func(*Block) {
	return func(b *Block) {
		b.ReturnValue(b.SwitchExpr(types.Int, b.Param("arg0"), func(s *Switch) {
			for i, k := range keys {
				i := i
				s.Case(func(c *Block) { c.Yield(Int(i)) }, k)
			}
			s.Default(func(d *Block) { d.Yield(Int(-1)) })
		}))
	}
}

func TestIntSwitch(t *testing.T) {
	tests := []struct {
		name string
		keys []interface{}
		op   bytecode.Opcode
	}{
		{"dense", []interface{}{0, 1, 2, 3}, bytecode.TABLESWITCH},
		{"sparse", []interface{}{1, 1000, -5}, bytecode.LOOKUPSWITCH},
		{"dense with gap", []interface{}{10, 11, 12, 13, 14, 15, 16, 17, 19}, bytecode.TABLESWITCH},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClass("test/T", "", Config{})
			out := static(t, c, "(I)I", caseIndex(tt.keys...))
			if op := dispatchOp(t, out.Bytes); op != tt.op {
				t.Errorf("dispatch with %s, want %s", op, tt.op)
			}
			machine := newVM(c)
			for i, k := range tt.keys {
				got, err := machine.Run("f", "(I)I", int32(k.(int)))
				if err != nil {
					t.Fatal(err)
				}
				if got != int32(i) {
					t.Errorf("f(%v) = %v, want %d", k, got, i)
				}
			}
			got, err := machine.Run("f", "(I)I", int32(18))
			if err != nil {
				t.Fatal(err)
			}
			if got != int32(-1) {
				t.Errorf("unmatched probe selected case %v", got)
			}
		})
	}
}

func TestStringSwitchCollisions(t *testing.T) {
	if types.StringHashCode("Aa") != types.StringHashCode("BB") {
		t.Fatal("test keys must collide")
	}
	c := NewClass("test/T", "", Config{})
	static(t, c, "(Ljava/lang/String;)I", caseIndex("Aa", "BB", "C"))
	machine := newVM(c)
	for probe, want := range map[string]int32{"Aa": 0, "BB": 1, "C": 2, "D": -1, "": -1} {
		got, err := machine.Run("f", "(Ljava/lang/String;)I", machine.NewString(probe))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("f(%q) = %v, want %d", probe, got, want)
		}
	}
}

func TestLongSwitch(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(J)I", caseIndex(int64(1)<<40, int64(7), int64(-1)))
	machine := newVM(c)
	for probe, want := range map[int64]int32{1 << 40: 0, 7: 1, -1: 2, 1<<40 + 1: -1, 1<<32 + 7: -1} {
		got, err := machine.Run("f", "(J)I", probe)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("f(%d) = %v, want %d", probe, got, want)
		}
	}
}

func TestClassSwitch(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(Ljava/lang/Class;)I", caseIndex(types.String, types.Object))
	machine := newVM(c)
	tests := []struct {
		probe types.Type
		want  int32
	}{
		{types.String, 0},
		{types.Object, 1},
		{types.Number, -1},
	}
	for _, tt := range tests {
		got, err := machine.Run("f", "(Ljava/lang/Class;)I", machine.ClassObject(tt.probe))
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("f(%s) = %v, want %d", tt.probe, got, tt.want)
		}
	}
}

var colorHierarchy = types.JDK.With(map[string]types.ClassInfo{
	"test/Color": {Super: "java/lang/Enum"},
})

func TestEnumSwitch(t *testing.T) {
	tests := []struct {
		name string
		keys []interface{}
		op   bytecode.Opcode
	}{
		{"by ordinal", []interface{}{EnumConst{"RED", 0}, EnumConst{"GREEN", 1}}, bytecode.TABLESWITCH},
		{"by name", []interface{}{"RED", "GREEN"}, bytecode.LOOKUPSWITCH},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClass("test/T", "", Config{Hierarchy: colorHierarchy})
			out := static(t, c, "(Ltest/Color;)I", caseIndex(tt.keys...))
			if op := dispatchOp(t, out.Bytes); op != tt.op {
				t.Errorf("dispatch with %s, want %s", op, tt.op)
			}
			machine := newVM(c)
			colors := []*vm.Object{
				machine.Enum("test/Color", "RED", 0),
				machine.Enum("test/Color", "GREEN", 1),
				machine.Enum("test/Color", "BLUE", 2),
			}
			for i, want := range []int32{0, 1, -1} {
				got, err := machine.Run("f", "(Ltest/Color;)I", colors[i])
				if err != nil {
					t.Fatal(err)
				}
				if got != want {
					t.Errorf("f(%v) = %v, want %d", colors[i], got, want)
				}
			}
		})
	}
}

func TestSwitchStatementFallsOut(t *testing.T) {
	c := NewClass("test/T", "", Config{})
	static(t, c, "(I)V", func(b *Block) {
		b.Switch(b.Param("arg0"), func(s *Switch) {
			s.Case(func(c *Block) { c.InvokeStatic(probe, Str("one")) }, 1)
			s.Case(func(c *Block) {
				c.InvokeStatic(probe, Str("two"))
				c.Break(s.Block())
			}, 2, 3)
		})
		b.InvokeStatic(probe, Str("after"))
	})
	machine := newVM(c)
	for _, v := range []int32{1, 2, 3, 4} {
		if _, err := machine.Run("f", "(I)V", v); err != nil {
			t.Fatal(err)
		}
	}
	want := map[string]int{"one": 1, "two": 2, "after": 4}
	for k, n := range want {
		if machine.Probes[k] != n {
			t.Errorf("probe %q hit %d times, want %d", k, machine.Probes[k], n)
		}
	}
}

func TestSwitchConstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		desc string
		body func(*Block)
		want ErrorKind
	}{
		{"expression switch without default", "(I)I", func(b *Block) {
			b.ReturnValue(b.SwitchExpr(types.Int, b.Param("arg0"), func(s *Switch) {
				for i := 0; i < 4; i++ {
					i := i
					s.Case(func(c *Block) { c.Yield(Int(10 * i)) }, i)
				}
			}))
		}, InvalidState},
		{"duplicate int case", "(I)V", func(b *Block) {
			b.Switch(b.Param("arg0"), func(s *Switch) {
				s.Case(nil, 1, 2)
				s.Case(nil, 2)
			})
		}, InvalidState},
		{"duplicate string case", "(Ljava/lang/String;)V", func(b *Block) {
			b.Switch(b.Param("arg0"), func(s *Switch) {
				s.Case(nil, "a")
				s.Case(nil, "a")
			})
		}, InvalidState},
		{"two defaults", "(I)V", func(b *Block) {
			b.Switch(b.Param("arg0"), func(s *Switch) {
				s.Default(nil)
				s.Default(nil)
			})
		}, InvalidState},
		{"string key for int switch", "(I)V", func(b *Block) {
			b.Switch(b.Param("arg0"), func(s *Switch) {
				s.Case(nil, "a")
			})
		}, TypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := generateErr(tt.desc, tt.body)
			gerr, ok := err.(*Error)
			if !ok {
				t.Fatalf("got %v, want a codegen error", err)
			}
			if gerr.Kind != tt.want {
				t.Errorf("kind %s, want %s (%v)", gerr.Kind, tt.want, err)
			}
		})
	}
}
