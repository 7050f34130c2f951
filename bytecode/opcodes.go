package bytecode

import "fmt"

// Opcode is a JVM instruction opcode
type Opcode byte

// Constants
const (
	NOP         Opcode = 0x00 // no-op
	ACONST_NULL Opcode = 0x01 // push null
	ICONST_M1   Opcode = 0x02 // push int -1
	ICONST_0    Opcode = 0x03
	ICONST_1    Opcode = 0x04
	ICONST_2    Opcode = 0x05
	ICONST_3    Opcode = 0x06
	ICONST_4    Opcode = 0x07
	ICONST_5    Opcode = 0x08
	LCONST_0    Opcode = 0x09
	LCONST_1    Opcode = 0x0a
	FCONST_0    Opcode = 0x0b
	FCONST_1    Opcode = 0x0c
	FCONST_2    Opcode = 0x0d
	DCONST_0    Opcode = 0x0e
	DCONST_1    Opcode = 0x0f
	BIPUSH      Opcode = 0x10 // push sign-extended byte [value]
	SIPUSH      Opcode = 0x11 // push sign-extended short [value]
	LDC         Opcode = 0x12 // push constant [u1 index]
	LDC_W       Opcode = 0x13 // push constant [u2 index]
	LDC2_W      Opcode = 0x14 // push long/double constant [u2 index]
)

// Loads
const (
	ILOAD   Opcode = 0x15 // push local [index]
	LLOAD   Opcode = 0x16
	FLOAD   Opcode = 0x17
	DLOAD   Opcode = 0x18
	ALOAD   Opcode = 0x19
	ILOAD_0 Opcode = 0x1a // iload_0..3, lload_0..3, fload_0..3, dload_0..3, aload_0..3 follow
	ALOAD_0 Opcode = 0x2a
	IALOAD  Opcode = 0x2e // pop index, array; push element
	LALOAD  Opcode = 0x2f
	FALOAD  Opcode = 0x30
	DALOAD  Opcode = 0x31
	AALOAD  Opcode = 0x32
	BALOAD  Opcode = 0x33
	CALOAD  Opcode = 0x34
	SALOAD  Opcode = 0x35
)

// Stores
const (
	ISTORE   Opcode = 0x36 // pop into local [index]
	LSTORE   Opcode = 0x37
	FSTORE   Opcode = 0x38
	DSTORE   Opcode = 0x39
	ASTORE   Opcode = 0x3a
	ISTORE_0 Opcode = 0x3b // istore_0..3 ... astore_0..3 follow
	ASTORE_0 Opcode = 0x4b
	IASTORE  Opcode = 0x4f // pop value, index, array
	LASTORE  Opcode = 0x50
	FASTORE  Opcode = 0x51
	DASTORE  Opcode = 0x52
	AASTORE  Opcode = 0x53
	BASTORE  Opcode = 0x54
	CASTORE  Opcode = 0x55
	SASTORE  Opcode = 0x56
)

// Stack
const (
	POP     Opcode = 0x57 // discard one slot
	POP2    Opcode = 0x58 // discard two slots
	DUP     Opcode = 0x59
	DUP_X1  Opcode = 0x5a
	DUP_X2  Opcode = 0x5b
	DUP2    Opcode = 0x5c
	DUP2_X1 Opcode = 0x5d
	DUP2_X2 Opcode = 0x5e
	SWAP    Opcode = 0x5f
)

// Arithmetic (each group is ordered int, long, float, double)
const (
	IADD  Opcode = 0x60 // pop b, a; push a + b
	ISUB  Opcode = 0x64
	IMUL  Opcode = 0x68
	IDIV  Opcode = 0x6c
	IREM  Opcode = 0x70
	INEG  Opcode = 0x74 // pop a; push -a
	ISHL  Opcode = 0x78 // int, long only
	ISHR  Opcode = 0x7a
	IUSHR Opcode = 0x7c
	IAND  Opcode = 0x7e
	IOR   Opcode = 0x80
	IXOR  Opcode = 0x82
	IINC  Opcode = 0x84 // local += const [index, const]

	LADD  = IADD + 1
	LSUB  = ISUB + 1
	LMUL  = IMUL + 1
	LDIV  = IDIV + 1
	LREM  = IREM + 1
	DREM  = IREM + 3
	LNEG  = INEG + 1
	DNEG  = INEG + 3
	LSHL  = ISHL + 1
	LSHR  = ISHR + 1
	LUSHR = IUSHR + 1
	LAND  = IAND + 1
	LOR   = IOR + 1
	LXOR  = IXOR + 1
)

// Conversions
const (
	I2L Opcode = 0x85
	I2F Opcode = 0x86
	I2D Opcode = 0x87
	L2I Opcode = 0x88
	L2F Opcode = 0x89
	L2D Opcode = 0x8a
	F2I Opcode = 0x8b
	F2L Opcode = 0x8c
	F2D Opcode = 0x8d
	D2I Opcode = 0x8e
	D2L Opcode = 0x8f
	D2F Opcode = 0x90
	I2B Opcode = 0x91
	I2C Opcode = 0x92
	I2S Opcode = 0x93
)

// Comparisons
const (
	LCMP  Opcode = 0x94 // pop b, a; push sign(a - b)
	FCMPL Opcode = 0x95 // NaN pushes -1
	FCMPG Opcode = 0x96 // NaN pushes 1
	DCMPL Opcode = 0x97
	DCMPG Opcode = 0x98
)

// Control Flow
const (
	IFEQ         Opcode = 0x99 // pop a; branch if a == 0 [s2 offset]
	IFNE         Opcode = 0x9a
	IFLT         Opcode = 0x9b
	IFGE         Opcode = 0x9c
	IFGT         Opcode = 0x9d
	IFLE         Opcode = 0x9e
	IF_ICMPEQ    Opcode = 0x9f // pop b, a; branch if a == b [s2 offset]
	IF_ICMPNE    Opcode = 0xa0
	IF_ICMPLT    Opcode = 0xa1
	IF_ICMPGE    Opcode = 0xa2
	IF_ICMPGT    Opcode = 0xa3
	IF_ICMPLE    Opcode = 0xa4
	IF_ACMPEQ    Opcode = 0xa5
	IF_ACMPNE    Opcode = 0xa6
	GOTO         Opcode = 0xa7 // [s2 offset]
	JSR          Opcode = 0xa8 // never emitted
	RET          Opcode = 0xa9 // never emitted
	TABLESWITCH  Opcode = 0xaa // pop key [pad, default, low, high, offsets...]
	LOOKUPSWITCH Opcode = 0xab // pop key [pad, default, npairs, pairs...]
	IRETURN      Opcode = 0xac
	LRETURN      Opcode = 0xad
	FRETURN      Opcode = 0xae
	DRETURN      Opcode = 0xaf
	ARETURN      Opcode = 0xb0
	RETURN       Opcode = 0xb1
)

// References
const (
	GETSTATIC       Opcode = 0xb2 // [u2 field]
	PUTSTATIC       Opcode = 0xb3
	GETFIELD        Opcode = 0xb4
	PUTFIELD        Opcode = 0xb5
	INVOKEVIRTUAL   Opcode = 0xb6 // [u2 method]
	INVOKESPECIAL   Opcode = 0xb7
	INVOKESTATIC    Opcode = 0xb8
	INVOKEINTERFACE Opcode = 0xb9 // [u2 method, count, 0]
	INVOKEDYNAMIC   Opcode = 0xba // never emitted
	NEW             Opcode = 0xbb // push uninitialized [u2 class]
	NEWARRAY        Opcode = 0xbc // pop length; push primitive array [atype]
	ANEWARRAY       Opcode = 0xbd // pop length; push reference array [u2 class]
	ARRAYLENGTH     Opcode = 0xbe
	ATHROW          Opcode = 0xbf
	CHECKCAST       Opcode = 0xc0 // [u2 class]
	INSTANCEOF      Opcode = 0xc1 // [u2 class]
	MONITORENTER    Opcode = 0xc2
	MONITOREXIT     Opcode = 0xc3
	WIDE            Opcode = 0xc4 // prefix: 16-bit local index
	MULTIANEWARRAY  Opcode = 0xc5
	IFNULL          Opcode = 0xc6
	IFNONNULL       Opcode = 0xc7
	GOTO_W          Opcode = 0xc8 // never emitted
	JSR_W           Opcode = 0xc9 // never emitted
)

// newarray element type codes
const (
	T_BOOLEAN = 4
	T_CHAR    = 5
	T_FLOAT   = 6
	T_DOUBLE  = 7
	T_BYTE    = 8
	T_SHORT   = 9
	T_INT     = 10
	T_LONG    = 11
)

var opNames = func() [256]string {
	var n [256]string
	names := []string{
		"nop", "aconst_null", "iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4", "iconst_5",
		"lconst_0", "lconst_1", "fconst_0", "fconst_1", "fconst_2", "dconst_0", "dconst_1",
		"bipush", "sipush", "ldc", "ldc_w", "ldc2_w",
		"iload", "lload", "fload", "dload", "aload",
		"iload_0", "iload_1", "iload_2", "iload_3", "lload_0", "lload_1", "lload_2", "lload_3",
		"fload_0", "fload_1", "fload_2", "fload_3", "dload_0", "dload_1", "dload_2", "dload_3",
		"aload_0", "aload_1", "aload_2", "aload_3",
		"iaload", "laload", "faload", "daload", "aaload", "baload", "caload", "saload",
		"istore", "lstore", "fstore", "dstore", "astore",
		"istore_0", "istore_1", "istore_2", "istore_3", "lstore_0", "lstore_1", "lstore_2", "lstore_3",
		"fstore_0", "fstore_1", "fstore_2", "fstore_3", "dstore_0", "dstore_1", "dstore_2", "dstore_3",
		"astore_0", "astore_1", "astore_2", "astore_3",
		"iastore", "lastore", "fastore", "dastore", "aastore", "bastore", "castore", "sastore",
		"pop", "pop2", "dup", "dup_x1", "dup_x2", "dup2", "dup2_x1", "dup2_x2", "swap",
		"iadd", "ladd", "fadd", "dadd", "isub", "lsub", "fsub", "dsub",
		"imul", "lmul", "fmul", "dmul", "idiv", "ldiv", "fdiv", "ddiv",
		"irem", "lrem", "frem", "drem", "ineg", "lneg", "fneg", "dneg",
		"ishl", "lshl", "ishr", "lshr", "iushr", "lushr", "iand", "land", "ior", "lor", "ixor", "lxor",
		"iinc",
		"i2l", "i2f", "i2d", "l2i", "l2f", "l2d", "f2i", "f2l", "f2d", "d2i", "d2l", "d2f", "i2b", "i2c", "i2s",
		"lcmp", "fcmpl", "fcmpg", "dcmpl", "dcmpg",
		"ifeq", "ifne", "iflt", "ifge", "ifgt", "ifle",
		"if_icmpeq", "if_icmpne", "if_icmplt", "if_icmpge", "if_icmpgt", "if_icmple", "if_acmpeq", "if_acmpne",
		"goto", "jsr", "ret", "tableswitch", "lookupswitch",
		"ireturn", "lreturn", "freturn", "dreturn", "areturn", "return",
		"getstatic", "putstatic", "getfield", "putfield",
		"invokevirtual", "invokespecial", "invokestatic", "invokeinterface", "invokedynamic",
		"new", "newarray", "anewarray", "arraylength", "athrow", "checkcast", "instanceof",
		"monitorenter", "monitorexit", "wide", "multianewarray", "ifnull", "ifnonnull", "goto_w", "jsr_w",
	}
	copy(n[:], names)
	return n
}()

// String returns the mnemonic of the opcode
func (op Opcode) String() string {
	if name := opNames[op]; name != "" {
		return name
	}
	return fmt.Sprintf("op_%#02x", byte(op))
}

// IsBranch reports whether op takes a 16-bit branch offset
func (op Opcode) IsBranch() bool {
	return (op >= IFEQ && op <= JSR) || op == IFNULL || op == IFNONNULL
}

// IsConditional reports whether op is a conditional branch
func (op Opcode) IsConditional() bool {
	return (op >= IFEQ && op <= IF_ACMPNE) || op == IFNULL || op == IFNONNULL
}

// FallsThrough reports whether execution may continue with the next
// instruction
func (op Opcode) FallsThrough() bool {
	switch op {
	case GOTO, GOTO_W, TABLESWITCH, LOOKUPSWITCH, ATHROW, RET,
		IRETURN, LRETURN, FRETURN, DRETURN, ARETURN, RETURN:
		return false
	}
	return true
}

// Negate returns the conditional branch with the opposite condition
func (op Opcode) Negate() Opcode {
	switch op {
	case IFNULL:
		return IFNONNULL
	case IFNONNULL:
		return IFNULL
	}
	if op >= IFEQ && op <= IF_ACMPNE {
		// conditions come in complementary pairs: eq/ne, lt/ge, gt/le
		return IFEQ + (op - IFEQ) ^ 1
	}
	panic(fmt.Sprintf("%s is not a conditional branch", op))
}

// operandSizes gives the fixed operand length; -1 marks variable-length
// instructions (tableswitch, lookupswitch, wide)
var operandSizes = func() [256]int {
	var n [256]int
	for _, op := range []Opcode{BIPUSH, LDC, ILOAD, LLOAD, FLOAD, DLOAD, ALOAD,
		ISTORE, LSTORE, FSTORE, DSTORE, ASTORE, RET, NEWARRAY} {
		n[op] = 1
	}
	for _, op := range []Opcode{SIPUSH, LDC_W, LDC2_W, IINC, GOTO, JSR,
		GETSTATIC, PUTSTATIC, GETFIELD, PUTFIELD, INVOKEVIRTUAL, INVOKESPECIAL,
		INVOKESTATIC, NEW, ANEWARRAY, CHECKCAST, INSTANCEOF, IFNULL, IFNONNULL} {
		n[op] = 2
	}
	for op := IFEQ; op <= IF_ACMPNE; op++ {
		n[op] = 2
	}
	n[MULTIANEWARRAY] = 3
	n[INVOKEINTERFACE] = 4
	n[INVOKEDYNAMIC] = 4
	n[GOTO_W] = 4
	n[JSR_W] = 4
	n[TABLESWITCH] = -1
	n[LOOKUPSWITCH] = -1
	n[WIDE] = -1
	return n
}()
