package verify

import (
	"errors"
	"strings"
	"testing"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

// method wraps hand-assembled code in a static method of test/V
func method(desc string, maxStack, maxLocals int, code []bytecode.Opcode, frames ...stackmap.Frame) (*classfile.Class, *classfile.Method) {
	bytes := make([]byte, len(code))
	for i, op := range code {
		bytes[i] = byte(op)
	}
	m := &classfile.Method{
		Access: classfile.AccStatic,
		Name:   "f",
		Desc:   types.MustMethodDesc(desc),
		Code: &classfile.Code{
			MaxStack:  maxStack,
			MaxLocals: maxLocals,
			Bytes:     bytes,
			Frames:    frames,
		},
	}
	c := &classfile.Class{
		Name:    "test/V",
		Super:   "java/lang/Object",
		Pool:    classfile.NewPool(),
		Methods: []*classfile.Method{m},
	}
	return c, m
}

func TestValidMethod(t *testing.T) {
	c, m := method("(II)I", 2, 2, []bytecode.Opcode{
		bytecode.ILOAD_0, bytecode.ILOAD_0 + 1, bytecode.IADD, bytecode.IRETURN,
	})
	if err := Method(c, m, nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := Class(c, types.JDK); err != nil {
		t.Fatalf("unexpected class error %v", err)
	}
}

func TestFindings(t *testing.T) {
	tests := []struct {
		name      string
		desc      string
		maxStack  int
		maxLocals int
		code      []bytecode.Opcode
		want      string
	}{
		{
			name: "stack over max_stack", desc: "(II)I", maxStack: 1, maxLocals: 2,
			code: []bytecode.Opcode{bytecode.ILOAD_0, bytecode.ILOAD_0 + 1, bytecode.IADD, bytecode.IRETURN},
			want: "exceeds max_stack",
		},
		{
			name: "wrong return kind", desc: "(I)I", maxStack: 1, maxLocals: 1,
			code: []bytecode.Opcode{bytecode.ILOAD_0, bytecode.IRETURN + 1},
			want: "in a method returning",
		},
		{
			name: "falls off the end", desc: "(I)V", maxStack: 1, maxLocals: 1,
			code: []bytecode.Opcode{bytecode.ILOAD_0, bytecode.POP},
			want: "falls off the end",
		},
		{
			name: "underflow", desc: "()V", maxStack: 1, maxLocals: 0,
			code: []bytecode.Opcode{bytecode.POP, bytecode.RETURN},
			want: "underflow",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := method(tt.desc, tt.maxStack, tt.maxLocals, tt.code)
			err := Method(c, m, nil)
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if verr.Method != "test/V.f"+tt.desc {
				t.Errorf("method %q", verr.Method)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
			var f *Finding
			if !errors.As(err, &f) {
				t.Errorf("findings are not unwrapped: %v", err)
			}
		})
	}
}

func TestBranchNeedsFrame(t *testing.T) {
	// 0 iload_0; 1 ifeq +5; 4 iconst_0; 5 ireturn; 6 iconst_1; 7 ireturn
	code := []bytecode.Opcode{
		bytecode.ILOAD_0, bytecode.IFEQ, 0, 5,
		bytecode.ICONST_0, bytecode.IRETURN,
		bytecode.ICONST_1, bytecode.IRETURN,
	}
	c, m := method("(I)I", 1, 1, code)
	err := Method(c, m, nil)
	if err == nil || !strings.Contains(err.Error(), "branch target 6 has no stack map frame") {
		t.Fatalf("unexpected error %v", err)
	}

	c, m = method("(I)I", 1, 1, code, stackmap.Frame{Offset: 6, Locals: []stackmap.VType{stackmap.IntType}})
	if err := Method(c, m, nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	c, m = method("(I)I", 1, 1, code, stackmap.Frame{Offset: 6, Locals: []stackmap.VType{stackmap.FloatType}})
	if err := Method(c, m, nil); err == nil {
		t.Fatal("frame with the wrong local type accepted")
	}
}

func TestFrameInsideInstruction(t *testing.T) {
	c, m := method("(I)I", 1, 1, []bytecode.Opcode{
		bytecode.ILOAD_0, bytecode.IFEQ, 0, 5,
		bytecode.ICONST_0, bytecode.IRETURN,
		bytecode.ICONST_1, bytecode.IRETURN,
	}, stackmap.Frame{Offset: 2, Locals: []stackmap.VType{stackmap.IntType}})
	err := Method(c, m, nil)
	if err == nil || !strings.Contains(err.Error(), "inside an instruction") {
		t.Fatalf("unexpected error %v", err)
	}
}
