// Package bytecode emits JVM instructions into a method body. The
// Assembler owns the code array, forward label fixups and the exception
// table, and drives a stackmap.Builder so every emitted instruction is
// tracked against the operand stack and local variables.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Label names a code position that may not be known yet. The zero Label
// is never allocated.
type Label int

// Labels allocates label identities. One pool is shared by every method
// of a class, so a label is unique within the class.
type Labels struct {
	next Label
}

// New allocates a label
func (p *Labels) New() Label {
	p.next++
	return p.next
}

// Tracer observes each instruction after it is emitted
type Tracer interface {
	Instruction(offset int, text string, state stackmap.State)
}

type fixup struct {
	pos   int // offset of the operand
	base  int // offset of the instruction
	label Label
	wide  bool // 4-byte operand (switches)
}

type handler struct {
	start, end, target Label
	catchType          string
}

type localVar struct {
	name       string
	typ        types.Type
	slot       int
	start, end Label
}

// lastGoto remembers an unconditional branch that may turn out to jump to
// the very next instruction
type lastGoto struct {
	offset int
	label  Label
	state  stackmap.State
}

// Assembler builds the Code attribute of one method
type Assembler struct {
	owner    string
	pool     *classfile.Pool
	code     []byte
	frames   *stackmap.Builder
	initial  []stackmap.VType
	labels   *Labels
	offsets  map[Label]int
	fixups   []fixup
	handlers []handler
	locals   []localVar
	lines    []classfile.LineNumber
	tracer   Tracer
	anchor   int // highest offset something refers to
	pending  *lastGoto
}

// New starts a method of class owner whose initial locals are params
func New(owner string, pool *classfile.Pool, labels *Labels, h types.Hierarchy, params []stackmap.VType) *Assembler {
	if labels == nil {
		labels = &Labels{}
	}
	return &Assembler{
		owner:   owner,
		pool:    pool,
		frames:  stackmap.NewBuilder(h, params),
		initial: stackmap.Expand(params),
		labels:  labels,
		offsets: make(map[Label]int),
	}
}

// SetTracer installs an instruction observer
func (a *Assembler) SetTracer(t Tracer) {
	a.tracer = t
}

// Pool returns the constant pool instructions refer to
func (a *Assembler) Pool() *classfile.Pool {
	return a.pool
}

// Frames exposes the stack map builder
func (a *Assembler) Frames() *stackmap.Builder {
	return a.frames
}

// Offset returns the offset of the next instruction
func (a *Assembler) Offset() int {
	return len(a.code)
}

// Reachable reports whether the next instruction can be reached
func (a *Assembler) Reachable() bool {
	return a.frames.Reachable()
}

// NewLabel allocates an unbound label
func (a *Assembler) NewLabel() Label {
	return a.labels.New()
}

// IsBound reports whether l has been placed
func (a *Assembler) IsBound(l Label) bool {
	_, ok := a.offsets[l]
	return ok
}

// LabelOffset returns the offset of a bound label
func (a *Assembler) LabelOffset(l Label) (int, bool) {
	off, ok := a.offsets[l]
	return off, ok
}

// Bind places l at the current offset and merges every branch recorded
// against it. A goto immediately preceding the label and targeting it is
// removed.
func (a *Assembler) Bind(l Label) {
	if a.IsBound(l) {
		panic(fmt.Sprintf("label L%d bound twice", l))
	}
	if g := a.pending; g != nil && g.label == l && g.offset+3 == len(a.code) && a.anchor <= g.offset {
		a.code = a.code[:g.offset]
		a.fixups = a.fixups[:len(a.fixups)-1]
		a.frames.Restore(g.state)
	}
	a.pending = nil
	a.offsets[l] = len(a.code)
	a.anchor = len(a.code)
	a.frames.Bind(int(l), len(a.code))
}

// begin starts an instruction at the current offset
func (a *Assembler) begin(op Opcode) int {
	a.pending = nil
	off := len(a.code)
	a.frames.At(off)
	a.code = append(a.code, byte(op))
	return off
}

func (a *Assembler) u1(b int) {
	a.code = append(a.code, byte(b))
}

func (a *Assembler) u2(v int) {
	a.code = append(a.code, byte(v>>8), byte(v))
}

func (a *Assembler) u4(v int32) {
	a.code = binary.BigEndian.AppendUint32(a.code, uint32(v))
}

// end reports an emitted instruction to the tracer
func (a *Assembler) end(off int) {
	if a.tracer == nil {
		return
	}
	ins, err := DecodeAt(a.code, off)
	text := ""
	if err != nil {
		text = err.Error()
	} else {
		text = Format(ins, a.pool)
	}
	a.tracer.Instruction(off, text, a.frames.Save())
}

// Nop emits nop
func (a *Assembler) Nop() {
	off := a.begin(NOP)
	a.end(off)
}

// Null pushes the null reference
func (a *Assembler) Null() {
	off := a.begin(ACONST_NULL)
	a.frames.Push(stackmap.NullType)
	a.end(off)
}

// Const pushes a constant. Supported values are bool, int, int32, int64,
// float32, float64, string, nil and types.Type (a class literal).
func (a *Assembler) Const(v interface{}) {
	switch v := v.(type) {
	case nil:
		a.Null()
	case bool:
		if v {
			a.intConst(1)
		} else {
			a.intConst(0)
		}
	case int:
		a.intConst(int32(v))
	case int32:
		a.intConst(v)
	case int64:
		if v == 0 || v == 1 {
			off := a.begin(LCONST_0 + Opcode(v))
			a.frames.Push(stackmap.LongType)
			a.end(off)
			return
		}
		a.ldc2(a.pool.Long(v), stackmap.LongType)
	case float32:
		if (v == 0 && !math.Signbit(float64(v))) || v == 1 || v == 2 {
			off := a.begin(FCONST_0 + Opcode(v))
			a.frames.Push(stackmap.FloatType)
			a.end(off)
			return
		}
		a.ldc(a.pool.Float(v), stackmap.FloatType)
	case float64:
		if (v == 0 && !math.Signbit(v)) || v == 1 {
			off := a.begin(DCONST_0 + Opcode(v))
			a.frames.Push(stackmap.DoubleType)
			a.end(off)
			return
		}
		a.ldc2(a.pool.Double(v), stackmap.DoubleType)
	case string:
		a.ldc(a.pool.String(v), stackmap.ObjectType("java/lang/String"))
	case types.Type:
		a.ldc(a.pool.Class(v.InternalName()), stackmap.ObjectType("java/lang/Class"))
	default:
		panic(fmt.Sprintf("unsupported constant %T", v))
	}
}

func (a *Assembler) intConst(v int32) {
	var off int
	switch {
	case v >= -1 && v <= 5:
		off = a.begin(ICONST_0 + Opcode(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		off = a.begin(BIPUSH)
		a.u1(int(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		off = a.begin(SIPUSH)
		a.u2(int(v))
	default:
		a.ldc(a.pool.Integer(v), stackmap.IntType)
		return
	}
	a.frames.Push(stackmap.IntType)
	a.end(off)
}

func (a *Assembler) ldc(idx uint16, v stackmap.VType) {
	var off int
	if idx <= math.MaxUint8 {
		off = a.begin(LDC)
		a.u1(int(idx))
	} else {
		off = a.begin(LDC_W)
		a.u2(int(idx))
	}
	a.frames.Push(v)
	a.end(off)
}

func (a *Assembler) ldc2(idx uint16, v stackmap.VType) {
	off := a.begin(LDC2_W)
	a.u2(int(idx))
	a.frames.Push(v)
	a.end(off)
}

// catOffset is the opcode distance between the int form of a typed
// instruction and the form for t's category
func catOffset(t types.Type) Opcode {
	switch t.Category() {
	case types.CatInt:
		return 0
	case types.CatLong:
		return 1
	case types.CatFloat:
		return 2
	case types.CatDouble:
		return 3
	case types.CatReference:
		return 4
	}
	panic(fmt.Sprintf("no instruction form for %s", t))
}

// Load pushes a local variable of type t
func (a *Assembler) Load(t types.Type, slot int) {
	off := a.local(ILOAD, ILOAD_0, catOffset(t), slot)
	a.frames.Push(a.frames.Load(slot))
	a.end(off)
}

// Store pops a value of type t into a local variable. The local takes the
// declared type t rather than the type of the value, except for
// uninitialized references which keep their verifier identity.
func (a *Assembler) Store(t types.Type, slot int) {
	off := a.local(ISTORE, ISTORE_0, catOffset(t), slot)
	v := a.frames.Pop()
	if t.IsReference() && v.Tag != stackmap.Uninitialized && v.Tag != stackmap.UninitializedThis {
		v = stackmap.Of(t)
	}
	a.frames.Store(slot, v)
	a.end(off)
}

func (a *Assembler) local(long, short, cat Opcode, slot int) int {
	switch {
	case slot < 4:
		return a.begin(short + cat*4 + Opcode(slot))
	case slot <= math.MaxUint8:
		off := a.begin(long + cat)
		a.u1(slot)
		return off
	default:
		off := a.begin(WIDE)
		a.u1(int(long + cat))
		a.u2(slot)
		return off
	}
}

// Inc adds delta to an int local
func (a *Assembler) Inc(slot int, delta int) {
	a.frames.Load(slot)
	var off int
	if slot <= math.MaxUint8 && delta >= math.MinInt8 && delta <= math.MaxInt8 {
		off = a.begin(IINC)
		a.u1(slot)
		a.u1(delta)
	} else {
		off = a.begin(WIDE)
		a.u1(int(IINC))
		a.u2(slot)
		a.u2(delta)
	}
	a.end(off)
}

// Typed emits the form of a typed instruction family for t: base is the
// int form (IADD, IRETURN, IALOAD...)
func (a *Assembler) Typed(base Opcode, t types.Type) {
	a.Op(base + catOffset(t))
}

// Return emits the return instruction for t
func (a *Assembler) Return(t types.Type) {
	if t.IsVoid() {
		a.Op(RETURN)
		return
	}
	a.Typed(IRETURN, t)
}

// ArrayLoad emits the element load for arrays of elem
func (a *Assembler) ArrayLoad(elem types.Type) {
	a.Op(arrayOp(IALOAD, elem))
}

// ArrayStore emits the element store for arrays of elem
func (a *Assembler) ArrayStore(elem types.Type) {
	a.Op(arrayOp(IASTORE, elem))
}

func arrayOp(base Opcode, elem types.Type) Opcode {
	switch elem.Kind() {
	case types.KindBoolean, types.KindByte:
		return base + 5
	case types.KindChar:
		return base + 6
	case types.KindShort:
		return base + 7
	}
	return base + catOffset(elem)
}

// Op emits an instruction without operands
func (a *Assembler) Op(op Opcode) {
	if operandSizes[op] != 0 {
		panic(fmt.Sprintf("%s takes operands", op))
	}
	off := a.begin(op)
	a.effect(op)
	a.end(off)
}

// effect applies the stack effect of an operand-less instruction
func (a *Assembler) effect(op Opcode) {
	f := a.frames
	switch {
	case op == NOP:
	case op == ACONST_NULL:
		f.Push(stackmap.NullType)
	case op >= ICONST_M1 && op <= ICONST_5:
		f.Push(stackmap.IntType)
	case op == LCONST_0 || op == LCONST_1:
		f.Push(stackmap.LongType)
	case op >= FCONST_0 && op <= FCONST_2:
		f.Push(stackmap.FloatType)
	case op == DCONST_0 || op == DCONST_1:
		f.Push(stackmap.DoubleType)
	case op >= IALOAD && op <= SALOAD:
		f.Pop()
		arr := f.Pop()
		f.Push(elemVType(op, arr))
	case op >= IASTORE && op <= SASTORE:
		f.PopN(3)
	case op == POP:
		f.PopSlots(1)
	case op == POP2:
		f.PopSlots(2)
	case op == DUP:
		v := f.PopSlots(1)
		f.PushSlots(v)
		f.PushSlots(v)
	case op == DUP_X1:
		v1, v2 := f.PopSlots(1), f.PopSlots(1)
		f.PushSlots(v1)
		f.PushSlots(v2)
		f.PushSlots(v1)
	case op == DUP_X2:
		v1, v2 := f.PopSlots(1), f.PopSlots(2)
		f.PushSlots(v1)
		f.PushSlots(v2)
		f.PushSlots(v1)
	case op == DUP2:
		v := f.PopSlots(2)
		f.PushSlots(v)
		f.PushSlots(v)
	case op == DUP2_X1:
		v1, v2 := f.PopSlots(2), f.PopSlots(1)
		f.PushSlots(v1)
		f.PushSlots(v2)
		f.PushSlots(v1)
	case op == DUP2_X2:
		v1, v2 := f.PopSlots(2), f.PopSlots(2)
		f.PushSlots(v1)
		f.PushSlots(v2)
		f.PushSlots(v1)
	case op == SWAP:
		v1, v2 := f.PopSlots(1), f.PopSlots(1)
		f.PushSlots(v1)
		f.PushSlots(v2)
	case op >= IADD && op <= DREM:
		f.PopN(2)
		f.Push(catVType(int(op-IADD) % 4))
	case op >= INEG && op <= DNEG:
		f.Pop()
		f.Push(catVType(int(op - INEG)))
	case op >= ISHL && op <= LUSHR:
		f.PopN(2)
		f.Push(catVType(int(op-ISHL) % 2))
	case op >= IAND && op <= LXOR:
		f.PopN(2)
		f.Push(catVType(int(op-IAND) % 2))
	case op >= I2L && op <= I2S:
		f.Pop()
		f.Push(conversionResult[op-I2L])
	case op >= LCMP && op <= DCMPG:
		f.PopN(2)
		f.Push(stackmap.IntType)
	case op >= IRETURN && op <= ARETURN:
		f.Pop()
		f.Kill()
	case op == RETURN:
		f.Kill()
	case op == ARRAYLENGTH:
		f.Pop()
		f.Push(stackmap.IntType)
	case op == ATHROW:
		f.Pop()
		f.Kill()
	case op == MONITORENTER || op == MONITOREXIT:
		f.Pop()
	default:
		panic(fmt.Sprintf("%s is not supported", op))
	}
}

func catVType(i int) stackmap.VType {
	return [...]stackmap.VType{stackmap.IntType, stackmap.LongType, stackmap.FloatType, stackmap.DoubleType}[i]
}

var conversionResult = [...]stackmap.VType{
	stackmap.LongType, stackmap.FloatType, stackmap.DoubleType, // i2l i2f i2d
	stackmap.IntType, stackmap.FloatType, stackmap.DoubleType, // l2i l2f l2d
	stackmap.IntType, stackmap.LongType, stackmap.DoubleType, // f2i f2l f2d
	stackmap.IntType, stackmap.LongType, stackmap.FloatType, // d2i d2l d2f
	stackmap.IntType, stackmap.IntType, stackmap.IntType, // i2b i2c i2s
}

func elemVType(op Opcode, arr stackmap.VType) stackmap.VType {
	switch op {
	case LALOAD:
		return stackmap.LongType
	case FALOAD:
		return stackmap.FloatType
	case DALOAD:
		return stackmap.DoubleType
	case AALOAD:
		if arr.Tag == stackmap.Object && len(arr.Class) > 1 && arr.Class[0] == '[' {
			return stackmap.Of(types.Type(arr.Class[1:]))
		}
		return stackmap.ObjectType("java/lang/Object")
	}
	return stackmap.IntType
}

// Cast converts the primitive on top of the stack from one type to
// another, narrowing when needed. Reference types are not handled here.
func (a *Assembler) Cast(from, to types.Type) {
	if from == to || to == types.Boolean || from == types.Boolean {
		return
	}
	fc, tc := from.Category(), to.Category()
	if fc != tc {
		a.Op(crossCategory[[2]types.Category{fc, tc}])
	}
	if tc != types.CatInt || convert.IsWidening(from, to) {
		return
	}
	switch to {
	case types.Byte:
		a.Op(I2B)
	case types.Char:
		a.Op(I2C)
	case types.Short:
		a.Op(I2S)
	}
}

var crossCategory = map[[2]types.Category]Opcode{
	{types.CatInt, types.CatLong}:     I2L,
	{types.CatInt, types.CatFloat}:    I2F,
	{types.CatInt, types.CatDouble}:   I2D,
	{types.CatLong, types.CatInt}:     L2I,
	{types.CatLong, types.CatFloat}:   L2F,
	{types.CatLong, types.CatDouble}:  L2D,
	{types.CatFloat, types.CatInt}:    F2I,
	{types.CatFloat, types.CatLong}:   F2L,
	{types.CatFloat, types.CatDouble}: F2D,
	{types.CatDouble, types.CatInt}:   D2I,
	{types.CatDouble, types.CatLong}:  D2L,
	{types.CatDouble, types.CatFloat}: D2F,
}

// Jump emits a branch to l. GOTO ends the reachable region.
func (a *Assembler) Jump(op Opcode, l Label) {
	if !op.IsBranch() || op == JSR {
		panic(fmt.Sprintf("%s is not a branch", op))
	}
	saved := a.frames.Save()
	off := a.begin(op)
	switch {
	case op >= IFEQ && op <= IFLE, op == IFNULL, op == IFNONNULL:
		a.frames.Pop()
	case op >= IF_ICMPEQ && op <= IF_ACMPNE:
		a.frames.PopN(2)
	}
	a.fixups = append(a.fixups, fixup{pos: len(a.code), base: off, label: l})
	a.u2(0)
	a.frames.Jump(int(l))
	if op == GOTO {
		a.frames.Kill()
	}
	a.end(off)
	if op == GOTO && !a.IsBound(l) {
		a.pending = &lastGoto{offset: off, label: l, state: saved}
	}
}

// Goto emits an unconditional branch
func (a *Assembler) Goto(l Label) {
	a.Jump(GOTO, l)
}

func (a *Assembler) switchPrologue(op Opcode) int {
	off := a.begin(op)
	for len(a.code)%4 != 0 {
		a.u1(0)
	}
	a.frames.Pop()
	return off
}

func (a *Assembler) switchTarget(off int, l Label) {
	a.fixups = append(a.fixups, fixup{pos: len(a.code), base: off, label: l, wide: true})
	a.u4(0)
}

func (a *Assembler) switchEpilogue(off int, targets []Label) {
	seen := make(map[Label]bool)
	for _, l := range targets {
		if !seen[l] {
			seen[l] = true
			a.frames.Jump(int(l))
		}
	}
	a.frames.Kill()
	a.end(off)
}

// TableSwitch pops an int and jumps to targets[key-low], or dflt when
// the key is outside low..low+len(targets)-1
func (a *Assembler) TableSwitch(low int32, dflt Label, targets []Label) {
	off := a.switchPrologue(TABLESWITCH)
	a.switchTarget(off, dflt)
	a.u4(low)
	a.u4(low + int32(len(targets)) - 1)
	for _, l := range targets {
		a.switchTarget(off, l)
	}
	a.switchEpilogue(off, append([]Label{dflt}, targets...))
}

// LookupSwitch pops an int and jumps to the target paired with it. Keys
// must be sorted ascending.
func (a *Assembler) LookupSwitch(dflt Label, keys []int32, targets []Label) {
	off := a.switchPrologue(LOOKUPSWITCH)
	a.switchTarget(off, dflt)
	a.u4(int32(len(keys)))
	for i, k := range keys {
		a.u4(k)
		a.switchTarget(off, targets[i])
	}
	a.switchEpilogue(off, append([]Label{dflt}, targets...))
}

// Invoke emits a method invocation. A constructor call initializes the
// receiver everywhere it is held.
func (a *Assembler) Invoke(op Opcode, m types.MethodRef) {
	off := a.begin(op)
	a.u2(int(a.pool.Method(m)))
	if op == INVOKEINTERFACE {
		a.u1(m.Desc.ArgSlots() + 1)
		a.u1(0)
	}
	a.frames.PopN(len(m.Desc.Params))
	if op != INVOKESTATIC {
		recv := a.frames.Pop()
		if m.IsConstructor() {
			switch recv.Tag {
			case stackmap.UninitializedThis:
				a.frames.InitObject(recv, a.owner)
			case stackmap.Uninitialized:
				a.frames.InitObject(recv, m.Owner)
			}
		}
	}
	a.frames.PushType(m.Desc.Return)
	a.end(off)
}

// Field emits a field access
func (a *Assembler) Field(op Opcode, f types.FieldRef) {
	off := a.begin(op)
	a.u2(int(a.pool.Field(f)))
	switch op {
	case GETSTATIC:
		a.frames.PushType(f.Type)
	case PUTSTATIC:
		a.frames.Pop()
	case GETFIELD:
		a.frames.Pop()
		a.frames.PushType(f.Type)
	case PUTFIELD:
		a.frames.PopN(2)
	default:
		panic(fmt.Sprintf("%s is not a field instruction", op))
	}
	a.end(off)
}

// New allocates an uninitialized instance of class
func (a *Assembler) New(class string) {
	off := a.begin(NEW)
	a.u2(int(a.pool.Class(class)))
	a.frames.Push(stackmap.UninitializedAt(off))
	a.end(off)
}

// NewArray pops a length and pushes a new array of elem
func (a *Assembler) NewArray(elem types.Type) {
	var off int
	if elem.IsPrimitive() {
		off = a.begin(NEWARRAY)
		a.u1(arrayTypeCodes[elem])
	} else {
		off = a.begin(ANEWARRAY)
		a.u2(int(a.pool.Class(elem.InternalName())))
	}
	a.frames.Pop()
	a.frames.Push(stackmap.Of(types.ArrayOf(elem)))
	a.end(off)
}

var arrayTypeCodes = map[types.Type]int{
	types.Boolean: T_BOOLEAN,
	types.Char:    T_CHAR,
	types.Float:   T_FLOAT,
	types.Double:  T_DOUBLE,
	types.Byte:    T_BYTE,
	types.Short:   T_SHORT,
	types.Int:     T_INT,
	types.Long:    T_LONG,
}

// CheckCast narrows the reference on top of the stack to t
func (a *Assembler) CheckCast(t types.Type) {
	off := a.begin(CHECKCAST)
	a.u2(int(a.pool.Class(t.InternalName())))
	a.frames.Pop()
	a.frames.Push(stackmap.Of(t))
	a.end(off)
}

// InstanceOf replaces the reference on top of the stack with an int
func (a *Assembler) InstanceOf(t types.Type) {
	off := a.begin(INSTANCEOF)
	a.u2(int(a.pool.Class(t.InternalName())))
	a.frames.Pop()
	a.frames.Push(stackmap.IntType)
	a.end(off)
}

// Handler registers an exception table entry covering [start, end).
// An empty catchType catches everything.
func (a *Assembler) Handler(start, end, target Label, catchType string) {
	a.handlers = append(a.handlers, handler{start: start, end: end, target: target, catchType: catchType})
}

// Line records that code from the current offset comes from source line n
func (a *Assembler) Line(n int) {
	off := len(a.code)
	a.anchor = off
	if k := len(a.lines); k > 0 {
		last := &a.lines[k-1]
		if last.Line == n {
			return
		}
		if last.Start == off {
			last.Line = n
			return
		}
	}
	a.lines = append(a.lines, classfile.LineNumber{Start: off, Line: n})
}

// LocalVar records a named local for the LocalVariableTable
func (a *Assembler) LocalVar(name string, t types.Type, slot int, start, end Label) {
	a.locals = append(a.locals, localVar{name: name, typ: t, slot: slot, start: start, end: end})
}

// Finish resolves labels and returns the Code attribute
func (a *Assembler) Finish() (*classfile.Code, error) {
	if a.frames.Reachable() {
		return nil, fmt.Errorf("control reaches the end of the code at offset %d", len(a.code))
	}
	for _, f := range a.fixups {
		target, ok := a.offsets[f.label]
		if !ok {
			return nil, fmt.Errorf("branch at offset %d to unbound label L%d", f.base, f.label)
		}
		rel := target - f.base
		if f.wide {
			binary.BigEndian.PutUint32(a.code[f.pos:], uint32(int32(rel)))
			continue
		}
		if rel < math.MinInt16 || rel > math.MaxInt16 {
			return nil, &classfile.LimitError{What: "branch offset", Size: rel, Max: math.MaxInt16}
		}
		binary.BigEndian.PutUint16(a.code[f.pos:], uint16(int16(rel)))
	}

	code := &classfile.Code{
		MaxStack:  a.frames.MaxStack(),
		MaxLocals: a.frames.MaxLocals(),
		Bytes:     a.code,
		Initial:   a.initial,
		Frames:    a.frames.Frames(),
		Lines:     a.lines,
	}
	for _, fr := range code.Frames {
		if fr.Offset >= len(a.code) {
			return nil, fmt.Errorf("control reaches the end of the code at offset %d", fr.Offset)
		}
	}
	for _, h := range a.handlers {
		start, ok1 := a.offsets[h.start]
		end, ok2 := a.offsets[h.end]
		target, ok3 := a.offsets[h.target]
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("exception handler with unbound label")
		}
		if start == end {
			continue
		}
		code.Exceptions = append(code.Exceptions, classfile.ExceptionEntry{
			Start: start, End: end, Handler: target, CatchType: h.catchType,
		})
	}
	for _, lv := range a.locals {
		start, ok1 := a.offsets[lv.start]
		end, ok2 := a.offsets[lv.end]
		if !ok1 || !ok2 || start == end {
			continue
		}
		code.Locals = append(code.Locals, classfile.LocalVar{
			Start: start, Length: end - start, Name: lv.name, Type: lv.typ, Slot: lv.slot,
		})
	}
	return code, nil
}
