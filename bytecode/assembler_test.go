package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

func newAsm(params ...stackmap.VType) *Assembler {
	return New("test/T", classfile.NewPool(), nil, nil, params)
}

func opcodes(t *testing.T, code []byte) []Opcode {
	t.Helper()
	insns, err := Decode(code)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ops := make([]Opcode, len(insns))
	for i, ins := range insns {
		ops[i] = ins.Op
	}
	return ops
}

func TestConstForms(t *testing.T) {
	tests := []struct {
		value interface{}
		want  Opcode
	}{
		{int32(-1), ICONST_M1},
		{int32(5), ICONST_5},
		{int32(100), BIPUSH},
		{int32(-129), SIPUSH},
		{int32(70000), LDC},
		{true, ICONST_1},
		{int64(1), LCONST_1},
		{int64(2), LDC2_W},
		{float32(2), FCONST_2},
		{float32(0.5), LDC},
		{1.0, DCONST_1},
		{"s", LDC},
		{nil, ACONST_NULL},
		{types.String, LDC},
	}
	for _, tt := range tests {
		a := newAsm()
		a.Const(tt.value)
		ops := opcodes(t, a.code)
		if len(ops) != 1 || ops[0] != tt.want {
			t.Errorf("Const(%v) = %v, want %s", tt.value, ops, tt.want)
		}
	}
}

func TestNegativeZeroUsesLdc(t *testing.T) {
	negZero := float32(0)
	negZero = -negZero
	b := newAsm()
	b.Const(negZero)
	if ops := opcodes(t, b.code); ops[0] != LDC {
		t.Errorf("-0.0f emitted %s, want ldc", ops[0])
	}
}

func TestLoadStoreForms(t *testing.T) {
	a := newAsm(stackmap.IntType, stackmap.LongType)
	a.Load(types.Int, 0)
	a.Store(types.Int, 3)
	a.Load(types.Long, 1)
	a.Store(types.Long, 300)
	a.Op(RETURN)
	want := []Opcode{ILOAD_0, ISTORE_0 + 3, ILOAD_0 + 4 + 1, WIDE}
	got := opcodes(t, a.code)
	if diff := cmp.Diff(append(want, RETURN), fixWide(got)); diff != "" {
		t.Errorf("opcodes mismatch (-want +got):\n%s", diff)
	}
	if a.frames.MaxLocals() != 302 {
		t.Errorf("max locals %d, want 302", a.frames.MaxLocals())
	}
}

// fixWide maps decoded wide instructions back to the WIDE prefix
func fixWide(ops []Opcode) []Opcode {
	out := make([]Opcode, len(ops))
	copy(out, ops)
	for i, op := range out {
		if op == LSTORE {
			out[i] = WIDE
		}
	}
	return out
}

func TestBranchFixupAndFrame(t *testing.T) {
	// static int f(int x) { return x != 0 ? 1 : 0; }
	a := newAsm(stackmap.IntType)
	zero := a.NewLabel()
	a.Load(types.Int, 0)
	a.Jump(IFEQ, zero)
	a.Const(int32(1))
	a.Return(types.Int)
	a.Bind(zero)
	a.Const(int32(0))
	a.Return(types.Int)

	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x1a, 0x99, 0x00, 0x05, 0x04, 0xac, 0x03, 0xac}
	if !bytes.Equal(code.Bytes, want) {
		t.Errorf("code % x, want % x", code.Bytes, want)
	}
	wantFrames := []stackmap.Frame{{Offset: 6, Locals: []stackmap.VType{stackmap.IntType}}}
	if diff := cmp.Diff(wantFrames, code.Frames); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if code.MaxStack != 1 || code.MaxLocals != 1 {
		t.Errorf("max stack/locals %d/%d, want 1/1", code.MaxStack, code.MaxLocals)
	}
}

func TestGotoToNextIsElided(t *testing.T) {
	a := newAsm()
	next := a.NewLabel()
	a.Goto(next)
	a.Bind(next)
	a.Op(RETURN)
	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Opcode{RETURN}, opcodes(t, code.Bytes)); diff != "" {
		t.Errorf("opcodes mismatch (-want +got):\n%s", diff)
	}
}

func TestGotoKeptWhenLabelAnchored(t *testing.T) {
	a := newAsm()
	other, next := a.NewLabel(), a.NewLabel()
	a.Goto(next)
	a.Bind(other)
	a.Bind(next)
	a.Op(RETURN)
	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]Opcode{GOTO, RETURN}, opcodes(t, code.Bytes)); diff != "" {
		t.Errorf("opcodes mismatch (-want +got):\n%s", diff)
	}
}

func TestSwitchDecode(t *testing.T) {
	a := newAsm(stackmap.IntType)
	dflt := a.NewLabel()
	cases := []Label{a.NewLabel(), a.NewLabel(), a.NewLabel()}
	a.Load(types.Int, 0)
	a.TableSwitch(10, dflt, cases)
	for i, l := range cases {
		a.Bind(l)
		a.Const(int32(i))
		a.Return(types.Int)
	}
	a.Bind(dflt)
	a.Load(types.Int, 0)
	a.LookupSwitch(dflt, []int32{-5, 1000}, []Label{cases[0], cases[2]})

	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}
	insns, err := Decode(code.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	ts := insns[1]
	if ts.Op != TABLESWITCH || ts.Size != 1+2+12+12 {
		t.Fatalf("tableswitch decoded as %s size %d", ts.Op, ts.Size)
	}
	if diff := cmp.Diff([]int32{10, 11, 12}, ts.Keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	off0, _ := a.LabelOffset(cases[0])
	if ts.Targets[0] != off0 {
		t.Errorf("first target %d, want %d", ts.Targets[0], off0)
	}
	ls := insns[len(insns)-1]
	if ls.Op != LOOKUPSWITCH || len(ls.Keys) != 2 || ls.Keys[1] != 1000 {
		t.Errorf("lookupswitch decoded as %+v", ls)
	}
	if dOff, _ := a.LabelOffset(dflt); ls.Default != dOff {
		t.Errorf("lookupswitch default %d, want %d", ls.Default, dOff)
	}
}

func TestUnboundLabel(t *testing.T) {
	a := newAsm()
	l := a.NewLabel()
	a.Goto(l)
	if _, err := a.Finish(); err == nil || !strings.Contains(err.Error(), "unbound") {
		t.Errorf("expected unbound label error, got %v", err)
	}
}

func TestBranchOverflow(t *testing.T) {
	a := newAsm()
	far := a.NewLabel()
	a.Const(int32(0))
	a.Jump(IFEQ, far)
	for i := 0; i < 40000; i++ {
		a.Nop()
	}
	a.Op(RETURN)
	a.Bind(far)
	a.Op(RETURN)
	_, err := a.Finish()
	var le *classfile.LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected LimitError, got %v", err)
	}
}

func TestCastSequences(t *testing.T) {
	tests := []struct {
		from, to types.Type
		want     []Opcode
	}{
		{types.Int, types.Long, []Opcode{I2L}},
		{types.Long, types.Byte, []Opcode{L2I, I2B}},
		{types.Int, types.Char, []Opcode{I2C}},
		{types.Byte, types.Int, nil},
		{types.Double, types.Float, []Opcode{D2F}},
	}
	for _, tt := range tests {
		a := newAsm(stackmap.Of(tt.from))
		a.Load(tt.from, 0)
		start := len(a.code)
		a.Cast(tt.from, tt.to)
		var got []Opcode
		if len(a.code) > start {
			got = opcodes(t, a.code[start:])
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Cast(%s, %s) mismatch (-want +got):\n%s", tt.from, tt.to, diff)
		}
	}
}

func TestConstructorInitializesReceiver(t *testing.T) {
	a := newAsm()
	a.New("java/lang/Object")
	a.Op(DUP)
	a.Invoke(INVOKESPECIAL, types.NewMethodRef("java/lang/Object", "<init>", "()V"))
	if got := a.frames.Peek(); got != stackmap.ObjectType("java/lang/Object") {
		t.Errorf("after <init> top of stack is %s", got)
	}
}

func TestDisassemble(t *testing.T) {
	a := newAsm(stackmap.IntType)
	zero := a.NewLabel()
	a.Load(types.Int, 0)
	a.Jump(IFEQ, zero)
	a.Const("yes")
	a.Return(types.String)
	a.Bind(zero)
	a.Const("no")
	a.Return(types.String)
	code, err := a.Finish()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Disassemble(&buf, code, a.Pool()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ifeq 7", `// "yes"`, "// frame locals=[int]", "areturn"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}
}
