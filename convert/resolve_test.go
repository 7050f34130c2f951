package convert

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/types"
)

var (
	integerT = types.Class("java/lang/Integer")
	longT    = types.Class("java/lang/Long")
	charT    = types.Class("java/lang/Character")
)

func TestResolveKinds(t *testing.T) {
	tests := []struct {
		from, to types.Type
		kind     Kind
	}{
		{types.Int, types.Int, Identity},
		{types.String, types.String, Identity},
		{types.Int, integerT, Box},
		{types.Int, types.Number, Box},
		{types.Int, types.Object, Box},
		{types.Char, types.Comparable, Box},
		{integerT, types.Int, Unbox},
		{types.Int, types.Long, Widen},
		{types.Char, types.Double, Widen},
		{types.Byte, types.Short, Widen},
		{integerT, types.Long, UnboxWiden},
		{charT, types.Int, UnboxWiden},
		{types.Int, longT, WidenBox},
		{types.Float, types.Class("java/lang/Double"), WidenBox},
		{types.Int, types.Short, SameCategory},
		{types.Boolean, types.Int, SameCategory},
		{integerT, types.Number, SameCategory},
		{types.String, types.Object, SameCategory},
	}
	for _, tt := range tests {
		c, err := Resolve(tt.from, tt.to)
		if err != nil {
			t.Errorf("Resolve(%s, %s): %v", tt.from, tt.to, err)
			continue
		}
		if c.Kind != tt.kind {
			t.Errorf("Resolve(%s, %s) = %s, want %s", tt.from, tt.to, c.Kind, tt.kind)
		}
	}
}

func TestResolveSteps(t *testing.T) {
	c, err := Resolve(integerT, types.Double)
	if err != nil {
		t.Fatal(err)
	}
	want := []Step{
		{Op: StepUnbox, From: integerT, To: types.Int},
		{Op: StepWiden, From: types.Int, To: types.Double},
	}
	if diff := cmp.Diff(want, c.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	c, err = Resolve(types.Short, longT)
	if err != nil {
		t.Fatal(err)
	}
	want = []Step{
		{Op: StepWiden, From: types.Short, To: types.Long},
		{Op: StepBox, From: types.Long, To: longT},
	}
	if diff := cmp.Diff(want, c.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMismatch(t *testing.T) {
	for _, pair := range [][2]types.Type{
		{types.String, types.Int},
		{types.Long, types.Int},
		{types.Double, types.Float},
		{types.Object, types.Boolean},
		{types.Int, types.Void},
		{types.Boolean, integerT},
	} {
		_, err := Resolve(pair[0], pair[1])
		var mm *MismatchError
		if !errors.As(err, &mm) {
			t.Errorf("Resolve(%s, %s) should be a mismatch, got %v", pair[0], pair[1], err)
			continue
		}
		if mm.From != pair[0] || mm.To != pair[1] {
			t.Errorf("mismatch names %s -> %s, want %s -> %s", mm.From, mm.To, pair[0], pair[1])
		}
	}
}

func TestIsNoop(t *testing.T) {
	tests := []struct {
		from, to types.Type
		noop     bool
	}{
		{types.Byte, types.Int, true},
		{types.Int, types.Long, false},
		{types.Int, integerT, false},
		{integerT, types.Object, true},
	}
	for _, tt := range tests {
		c, err := Resolve(tt.from, tt.to)
		if err != nil {
			t.Fatal(err)
		}
		if c.IsNoop() != tt.noop {
			t.Errorf("%s -> %s noop = %v, want %v", tt.from, tt.to, c.IsNoop(), tt.noop)
		}
	}
}

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b types.Type
		want types.Type
		ok   bool
	}{
		{types.Int, types.Int, types.Int, true},
		{types.Byte, types.Char, types.Int, true},
		{types.Int, types.Long, types.Long, true},
		{integerT, types.Long, types.Long, true},
		{types.Long, types.Float, types.Float, true},
		{types.Float, types.Double, types.Double, true},
		{types.Boolean, types.Boolean, types.Boolean, true},
		{types.Boolean, types.Int, "", false},
		{types.String, types.Int, "", false},
	}
	for _, tt := range tests {
		got, ok := Promote(tt.a, tt.b)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Promote(%s, %s) = %s, %v; want %s, %v", tt.a, tt.b, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBoxMethods(t *testing.T) {
	box := BoxMethod(types.Char)
	if box.String() != "java/lang/Character.valueOf:(C)Ljava/lang/Character;" {
		t.Errorf("unexpected box method %s", box)
	}
	unbox := UnboxMethod(types.Long)
	if unbox.String() != "java/lang/Long.longValue:()J" {
		t.Errorf("unexpected unbox method %s", unbox)
	}
}
