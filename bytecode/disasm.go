package bytecode

import (
	"fmt"
	"io"
	"strings"

	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/stackmap"
)

// Format renders one instruction in a javap-like form
func Format(ins Instruction, pool *classfile.Pool) string {
	var b strings.Builder
	if ins.Wide {
		b.WriteString("wide ")
	}
	b.WriteString(ins.Op.String())
	op := ins.Op
	switch {
	case op == TABLESWITCH || op == LOOKUPSWITCH:
		b.WriteString(" {")
		for i, k := range ins.Keys {
			fmt.Fprintf(&b, " %d: %d;", k, ins.Targets[i])
		}
		fmt.Fprintf(&b, " default: %d }", ins.Default)
	case op.IsBranch() || op == GOTO_W:
		fmt.Fprintf(&b, " %d", ins.Target)
	case op == BIPUSH || op == SIPUSH:
		fmt.Fprintf(&b, " %d", ins.Value)
	case op == IINC:
		fmt.Fprintf(&b, " %d, %d", ins.Index, ins.Value)
	case op == NEWARRAY:
		fmt.Fprintf(&b, " %s", newarrayNames[ins.Index])
	case op >= ILOAD && op <= ALOAD, op >= ISTORE && op <= ASTORE:
		fmt.Fprintf(&b, " %d", ins.Index)
	case operandSizes[op] >= 2 || op == LDC:
		fmt.Fprintf(&b, " #%d", ins.Index)
		if pool != nil {
			fmt.Fprintf(&b, " // %s", pool.Describe(uint16(ins.Index)))
		}
	}
	return b.String()
}

var newarrayNames = map[int]string{
	T_BOOLEAN: "boolean",
	T_CHAR:    "char",
	T_FLOAT:   "float",
	T_DOUBLE:  "double",
	T_BYTE:    "byte",
	T_SHORT:   "short",
	T_INT:     "int",
	T_LONG:    "long",
}

// Disassemble writes a listing of code: one line per instruction, frame
// markers before instructions that carry a stack map frame, then the
// exception table.
func Disassemble(w io.Writer, code *classfile.Code, pool *classfile.Pool) error {
	insns, err := Decode(code.Bytes)
	if err != nil {
		return err
	}
	frames := make(map[int]stackmap.Frame, len(code.Frames))
	for _, f := range code.Frames {
		frames[f.Offset] = f
	}
	fmt.Fprintf(w, "  stack=%d, locals=%d\n", code.MaxStack, code.MaxLocals)
	for _, ins := range insns {
		if f, ok := frames[ins.Offset]; ok {
			st := stackmap.State{Locals: f.Locals, Stack: f.Stack}
			fmt.Fprintf(w, "        // frame %s\n", st)
		}
		fmt.Fprintf(w, "  %5d: %s\n", ins.Offset, Format(ins, pool))
	}
	if len(code.Exceptions) > 0 {
		fmt.Fprintln(w, "  exceptions:")
		for _, e := range code.Exceptions {
			ct := e.CatchType
			if ct == "" {
				ct = "any"
			}
			fmt.Fprintf(w, "    %5d %5d %5d  %s\n", e.Start, e.End, e.Handler, ct)
		}
	}
	return nil
}
