package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one decoded instruction
type Instruction struct {
	Offset  int
	Op      Opcode
	Size    int
	Index   int     // constant pool index, local slot or newarray type code
	Value   int     // bipush/sipush operand, iinc delta, dimensions
	Target  int     // absolute branch target
	Default int     // switch default target
	Keys    []int32 // switch keys
	Targets []int   // switch targets, parallel to Keys
	Wide    bool
}

// DecodeError reports malformed code
type DecodeError struct {
	Offset int
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: offset %d: %s", e.Offset, e.Msg)
}

// Decode splits code into instructions
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(code); {
		ins, err := DecodeAt(code, pc)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
		pc += ins.Size
	}
	return out, nil
}

// DecodeAt decodes the instruction starting at pc
func DecodeAt(code []byte, pc int) (Instruction, error) {
	ins := Instruction{Offset: pc, Op: Opcode(code[pc])}
	fail := func(msg string) (Instruction, error) {
		return Instruction{}, &DecodeError{Offset: pc, Msg: msg}
	}
	need := func(n int) bool { return pc+n <= len(code) }
	be := binary.BigEndian
	op := ins.Op

	if opNames[op] == "" {
		return fail(fmt.Sprintf("unknown opcode %#02x", byte(op)))
	}
	switch op {
	case TABLESWITCH, LOOKUPSWITCH:
		p := pc + 1
		for p%4 != 0 {
			p++
		}
		if !need(p - pc + 8) {
			return fail("truncated switch")
		}
		ins.Default = pc + int(int32(be.Uint32(code[p:])))
		if op == TABLESWITCH {
			low := int32(be.Uint32(code[p+4:]))
			if !need(p - pc + 12) {
				return fail("truncated switch")
			}
			high := int32(be.Uint32(code[p+8:]))
			if high < low {
				return fail("tableswitch high below low")
			}
			n := int(high-low) + 1
			p += 12
			if !need(p - pc + 4*n) {
				return fail("truncated switch")
			}
			for i := 0; i < n; i++ {
				ins.Keys = append(ins.Keys, low+int32(i))
				ins.Targets = append(ins.Targets, pc+int(int32(be.Uint32(code[p+4*i:]))))
			}
			ins.Size = p + 4*n - pc
			return ins, nil
		}
		n := int(int32(be.Uint32(code[p+4:])))
		p += 8
		if n < 0 || !need(p-pc+8*n) {
			return fail("truncated switch")
		}
		for i := 0; i < n; i++ {
			ins.Keys = append(ins.Keys, int32(be.Uint32(code[p+8*i:])))
			ins.Targets = append(ins.Targets, pc+int(int32(be.Uint32(code[p+8*i+4:]))))
		}
		ins.Size = p + 8*n - pc
		return ins, nil
	case WIDE:
		if !need(4) {
			return fail("truncated wide")
		}
		ins.Wide = true
		ins.Op = Opcode(code[pc+1])
		ins.Index = int(be.Uint16(code[pc+2:]))
		ins.Size = 4
		if ins.Op == IINC {
			if !need(6) {
				return fail("truncated wide iinc")
			}
			ins.Value = int(int16(be.Uint16(code[pc+4:])))
			ins.Size = 6
		}
		return ins, nil
	}

	n := operandSizes[op]
	ins.Size = 1 + n
	if !need(ins.Size) {
		return fail(fmt.Sprintf("truncated %s", op))
	}
	switch {
	case op.IsBranch():
		ins.Target = pc + int(int16(be.Uint16(code[pc+1:])))
	case op == GOTO_W || op == JSR_W:
		ins.Target = pc + int(int32(be.Uint32(code[pc+1:])))
	case op == BIPUSH:
		ins.Value = int(int8(code[pc+1]))
	case op == SIPUSH:
		ins.Value = int(int16(be.Uint16(code[pc+1:])))
	case op == IINC:
		ins.Index = int(code[pc+1])
		ins.Value = int(int8(code[pc+2]))
	case op == MULTIANEWARRAY:
		ins.Index = int(be.Uint16(code[pc+1:]))
		ins.Value = int(code[pc+3])
	case n == 1:
		ins.Index = int(code[pc+1])
	case n >= 2:
		ins.Index = int(be.Uint16(code[pc+1:]))
	}
	// short local forms carry the slot in the opcode
	switch {
	case op >= ILOAD_0 && op <= ALOAD_0+3:
		ins.Index = int(op-ILOAD_0) % 4
	case op >= ISTORE_0 && op <= ASTORE_0+3:
		ins.Index = int(op-ISTORE_0) % 4
	}
	return ins, nil
}

// LoadStoreKind returns the base opcode (ILOAD..ALOAD or ISTORE..ASTORE)
// for any load or store form, or false for other instructions
func LoadStoreKind(op Opcode) (Opcode, bool) {
	switch {
	case op >= ILOAD && op <= ALOAD, op >= ISTORE && op <= ASTORE:
		return op, true
	case op >= ILOAD_0 && op <= ALOAD_0+3:
		return ILOAD + (op-ILOAD_0)/4, true
	case op >= ISTORE_0 && op <= ASTORE_0+3:
		return ISTORE + (op-ISTORE_0)/4, true
	}
	return 0, false
}
