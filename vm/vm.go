// Package vm executes generated methods. It interprets the JVM
// instructions the code generator emits, calls methods of the same class
// through real frames and everything else through a registry of Go
// natives.
package vm

import (
	"fmt"
	"math"
	"strings"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Thrown is a Java exception propagating as a Go error
type Thrown struct {
	Obj *Object
}

func (t *Thrown) Error() string {
	name := strings.ReplaceAll(t.Obj.Class, "/", ".")
	if msg, ok := t.Obj.Native.(string); ok {
		return fmt.Sprintf("exception %s: %s", name, msg)
	}
	return "exception " + name
}

// VM runs the methods of one class
type VM struct {
	Class     *classfile.Class
	Hierarchy types.Hierarchy
	Natives   *Natives
	Stack     []Value       // Operand stack
	SP        int           // Stack pointer
	Frames    []*StackFrame // Call stack
	Statics   map[string]Value
	Probes    map[string]int // hits recorded by Probe.hit
	TickLimit int64          // Maximum instructions per Run
	Ticks     int64

	strings  map[string]*Object
	classes  map[types.Type]*Object
	enums    map[string]*Object
	boxes    map[string]*Object
	monitors map[*Object]int
	decoded  map[*classfile.Code]map[int]bytecode.Instruction
	result   Value
}

// StackFrame is one method activation
type StackFrame struct {
	Method      *classfile.Method
	Code        *classfile.Code
	PC          int // next instruction
	Current     int // instruction being executed
	BasePointer int // stack height when the frame was entered
	Locals      []Value
}

// NewVM creates a VM for class c. h defaults to types.JDK.
func NewVM(c *classfile.Class, h types.Hierarchy) *VM {
	if h == nil {
		h = types.JDK
	}
	return &VM{
		Class:     c,
		Hierarchy: h,
		Natives:   NewNatives(),
		Stack:     make([]Value, 0, 64),
		Frames:    make([]*StackFrame, 0, 8),
		Statics:   make(map[string]Value),
		Probes:    make(map[string]int),
		TickLimit: 1000000,
		strings:   make(map[string]*Object),
		classes:   make(map[types.Type]*Object),
		enums:     make(map[string]*Object),
		boxes:     make(map[string]*Object),
		monitors:  make(map[*Object]int),
		decoded:   make(map[*classfile.Code]map[int]bytecode.Instruction),
	}
}

// Run invokes method name with descriptor desc. Instance methods take
// the receiver as the first argument. A Java exception escaping the
// method is returned as a *Thrown.
func (vm *VM) Run(name, desc string, args ...Value) (Value, error) {
	m := vm.Class.FindMethod(name, desc)
	if m == nil || m.Code == nil {
		return nil, fmt.Errorf("vm: no method %s.%s%s", vm.Class.Name, name, desc)
	}
	want := len(m.Desc.Params)
	if !m.IsStatic() {
		want++
	}
	if len(args) != want {
		return nil, fmt.Errorf("vm: %s%s takes %d arguments, got %d", name, desc, want, len(args))
	}
	vm.SP = 0
	vm.Frames = vm.Frames[:0]
	vm.Ticks = 0
	vm.result = nil
	vm.enter(m, args)

	// Execute until done
	for len(vm.Frames) > 0 {
		if err := vm.Step(); err != nil {
			if !vm.HandleError(err) {
				vm.Frames = vm.Frames[:0]
				return nil, err
			}
		}
		if vm.Ticks >= vm.TickLimit {
			vm.Frames = vm.Frames[:0]
			return nil, fmt.Errorf("vm: tick limit %d exceeded", vm.TickLimit)
		}
	}
	return vm.result, nil
}

// enter pushes a frame for m with args laid out in local slots
func (vm *VM) enter(m *classfile.Method, args []Value) {
	frame := &StackFrame{
		Method:      m,
		Code:        m.Code,
		BasePointer: vm.SP,
		Locals:      make([]Value, m.Code.MaxLocals),
	}
	slot := 0
	for _, a := range args {
		frame.Locals[slot] = a
		slot++
		if isWide(a) {
			slot++
		}
	}
	vm.Frames = append(vm.Frames, frame)
}

// CurrentFrame returns the current stack frame
func (vm *VM) CurrentFrame() *StackFrame {
	if len(vm.Frames) == 0 {
		return nil
	}
	return vm.Frames[len(vm.Frames)-1]
}

// Push pushes a value onto the stack
func (vm *VM) Push(v Value) {
	if vm.SP >= len(vm.Stack) {
		vm.Stack = append(vm.Stack, v)
	} else {
		vm.Stack[vm.SP] = v
	}
	vm.SP++
}

// Pop pops a value from the stack
func (vm *VM) Pop() Value {
	if vm.SP == 0 {
		panic("stack underflow")
	}
	vm.SP--
	return vm.Stack[vm.SP]
}

// Peek peeks at a value on the stack (0 = top)
func (vm *VM) Peek(offset int) Value {
	if vm.SP-1-offset < 0 {
		panic("stack underflow")
	}
	return vm.Stack[vm.SP-1-offset]
}

// PopN pops N values from the stack
func (vm *VM) PopN(n int) []Value {
	if vm.SP < n {
		panic("stack underflow")
	}
	values := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		values[i] = vm.Pop()
	}
	return values
}

// Return leaves the current frame, handing value to the caller
func (vm *VM) Return(value Value, hasValue bool) {
	if len(vm.Frames) == 0 {
		return
	}
	frame := vm.Frames[len(vm.Frames)-1]
	vm.SP = frame.BasePointer
	vm.Frames = vm.Frames[:len(vm.Frames)-1]
	if len(vm.Frames) == 0 {
		vm.result = value
		return
	}
	if hasValue {
		vm.Push(value)
	}
}

// Throw returns a new exception of class with a message as an error
func (vm *VM) Throw(class, format string, args ...interface{}) error {
	return &Thrown{Obj: &Object{Class: class, Native: fmt.Sprintf(format, args...)}}
}

// HandleError transfers control to the innermost handler catching err,
// unwinding frames as needed. It reports false when nothing catches it.
func (vm *VM) HandleError(err error) bool {
	thrown, ok := err.(*Thrown)
	if !ok {
		return false
	}
	for len(vm.Frames) > 0 {
		frame := vm.CurrentFrame()
		for _, e := range frame.Code.Exceptions {
			if frame.Current < e.Start || frame.Current >= e.End {
				continue
			}
			if e.CatchType != "" && !vm.instanceOf(thrown.Obj, e.CatchType) {
				continue
			}
			vm.SP = frame.BasePointer
			vm.Push(thrown.Obj)
			frame.PC = e.Handler
			return true
		}
		vm.SP = frame.BasePointer
		vm.Frames = vm.Frames[:len(vm.Frames)-1]
	}
	return false
}

// fetch decodes the instruction at the frame's pc
func (vm *VM) fetch(f *StackFrame) (bytecode.Instruction, error) {
	cache, ok := vm.decoded[f.Code]
	if !ok {
		insns, err := bytecode.Decode(f.Code.Bytes)
		if err != nil {
			return bytecode.Instruction{}, err
		}
		cache = make(map[int]bytecode.Instruction, len(insns))
		for _, ins := range insns {
			cache[ins.Offset] = ins
		}
		vm.decoded[f.Code] = cache
	}
	ins, ok := cache[f.PC]
	if !ok {
		return ins, fmt.Errorf("vm: no instruction at offset %d", f.PC)
	}
	return ins, nil
}

// Step executes a single instruction
func (vm *VM) Step() error {
	frame := vm.CurrentFrame()
	if frame == nil {
		return fmt.Errorf("vm: no active frame")
	}
	if frame.PC >= len(frame.Code.Bytes) {
		return fmt.Errorf("vm: %s ran off the end of its code", frame.Method.Name)
	}
	ins, err := vm.fetch(frame)
	if err != nil {
		return err
	}
	frame.Current = frame.PC
	frame.PC += ins.Size
	vm.Ticks++
	return vm.Execute(ins)
}

// Execute applies one decoded instruction
func (vm *VM) Execute(ins bytecode.Instruction) error {
	frame := vm.CurrentFrame()
	op := ins.Op
	switch {
	case op == bytecode.NOP:
	case op == bytecode.ACONST_NULL:
		vm.Push(nil)
	case op >= bytecode.ICONST_M1 && op <= bytecode.ICONST_5:
		vm.Push(int32(op) - int32(bytecode.ICONST_0))
	case op == bytecode.LCONST_0 || op == bytecode.LCONST_1:
		vm.Push(int64(op - bytecode.LCONST_0))
	case op >= bytecode.FCONST_0 && op <= bytecode.FCONST_2:
		vm.Push(float32(op - bytecode.FCONST_0))
	case op == bytecode.DCONST_0 || op == bytecode.DCONST_1:
		vm.Push(float64(op - bytecode.DCONST_0))
	case op == bytecode.BIPUSH || op == bytecode.SIPUSH:
		vm.Push(int32(ins.Value))
	case op == bytecode.LDC || op == bytecode.LDC_W || op == bytecode.LDC2_W:
		v, _, err := vm.Class.Pool.ConstantAt(uint16(ins.Index))
		if err != nil {
			return err
		}
		switch c := v.(type) {
		case string:
			vm.Push(vm.String(c))
		case types.Type:
			vm.Push(vm.ClassObject(c))
		default:
			vm.Push(c)
		}
	case op == bytecode.IINC:
		frame.Locals[ins.Index] = frame.Locals[ins.Index].(int32) + int32(ins.Value)
	case isLoad(op):
		vm.Push(frame.Locals[ins.Index])
	case isStore(op):
		frame.Locals[ins.Index] = vm.Pop()
	case op >= bytecode.IALOAD && op <= bytecode.SALOAD:
		i := vm.Pop().(int32)
		arr, err := vm.array(vm.Pop(), i)
		if err != nil {
			return err
		}
		vm.Push(arr.Data[i])
	case op >= bytecode.IASTORE && op <= bytecode.SASTORE:
		v := vm.Pop()
		i := vm.Pop().(int32)
		arr, err := vm.array(vm.Pop(), i)
		if err != nil {
			return err
		}
		arr.Data[i] = narrow(arr.Elem, v)
	case op == bytecode.POP:
		vm.Pop()
	case op == bytecode.POP2:
		if !isWide(vm.Pop()) {
			vm.Pop()
		}
	case op == bytecode.DUP:
		vm.Push(vm.Peek(0))
	case op == bytecode.DUP_X1:
		v1, v2 := vm.Pop(), vm.Pop()
		vm.Push(v1)
		vm.Push(v2)
		vm.Push(v1)
	case op == bytecode.DUP2:
		if isWide(vm.Peek(0)) {
			vm.Push(vm.Peek(0))
		} else {
			v1, v2 := vm.Peek(0), vm.Peek(1)
			vm.Push(v2)
			vm.Push(v1)
		}
	case op == bytecode.SWAP:
		v1, v2 := vm.Pop(), vm.Pop()
		vm.Push(v1)
		vm.Push(v2)
	case op >= bytecode.IADD && op < bytecode.INEG:
		return vm.arith(int(op-bytecode.IADD) / 4)
	case op >= bytecode.INEG && op < bytecode.ISHL:
		vm.Push(negate(vm.Pop()))
	case op >= bytecode.ISHL && op < bytecode.IAND:
		n := vm.Pop().(int32)
		vm.Push(shift(int(op-bytecode.ISHL)/2, vm.Pop(), n))
	case op >= bytecode.IAND && op < bytecode.IINC:
		y, x := vm.Pop(), vm.Pop()
		vm.Push(logic(int(op-bytecode.IAND)/2, x, y))
	case op >= bytecode.I2L && op <= bytecode.I2S:
		vm.Push(convert(op, vm.Pop()))
	case op == bytecode.LCMP:
		y, x := vm.Pop().(int64), vm.Pop().(int64)
		vm.Push(compare(x < y, x > y))
	case op == bytecode.FCMPL || op == bytecode.FCMPG || op == bytecode.DCMPL || op == bytecode.DCMPG:
		y, x := toFloat64(vm.Pop()), toFloat64(vm.Pop())
		if math.IsNaN(x) || math.IsNaN(y) {
			if op == bytecode.FCMPG || op == bytecode.DCMPG {
				vm.Push(int32(1))
			} else {
				vm.Push(int32(-1))
			}
			break
		}
		vm.Push(compare(x < y, x > y))
	case op >= bytecode.IFEQ && op <= bytecode.IFLE:
		if test(int(op-bytecode.IFEQ), vm.Pop().(int32), 0) {
			frame.PC = ins.Target
		}
	case op >= bytecode.IF_ICMPEQ && op <= bytecode.IF_ICMPLE:
		y, x := vm.Pop().(int32), vm.Pop().(int32)
		if test(int(op-bytecode.IF_ICMPEQ), x, y) {
			frame.PC = ins.Target
		}
	case op == bytecode.IF_ACMPEQ || op == bytecode.IF_ACMPNE:
		y, x := vm.Pop(), vm.Pop()
		if (x == y) == (op == bytecode.IF_ACMPEQ) {
			frame.PC = ins.Target
		}
	case op == bytecode.IFNULL || op == bytecode.IFNONNULL:
		if (vm.Pop() == nil) == (op == bytecode.IFNULL) {
			frame.PC = ins.Target
		}
	case op == bytecode.GOTO || op == bytecode.GOTO_W:
		frame.PC = ins.Target
	case op == bytecode.TABLESWITCH || op == bytecode.LOOKUPSWITCH:
		key := vm.Pop().(int32)
		frame.PC = ins.Default
		for i, k := range ins.Keys {
			if k == key {
				frame.PC = ins.Targets[i]
				break
			}
		}
	case op >= bytecode.IRETURN && op <= bytecode.ARETURN:
		vm.Return(vm.Pop(), true)
	case op == bytecode.RETURN:
		vm.Return(nil, false)
	case op >= bytecode.GETSTATIC && op <= bytecode.PUTFIELD:
		return vm.field(op, ins)
	case op >= bytecode.INVOKEVIRTUAL && op <= bytecode.INVOKEINTERFACE:
		return vm.invoke(op, ins)
	case op == bytecode.NEW:
		name, err := vm.Class.Pool.ClassAt(uint16(ins.Index))
		if err != nil {
			return err
		}
		vm.Push(&Object{Class: name, Fields: make(map[string]Value)})
	case op == bytecode.NEWARRAY || op == bytecode.ANEWARRAY:
		var elem types.Type
		if op == bytecode.NEWARRAY {
			elem = newarrayTypes[ins.Index]
		} else {
			name, err := vm.Class.Pool.ClassAt(uint16(ins.Index))
			if err != nil {
				return err
			}
			elem = types.TypeFromInternalName(name)
		}
		n := vm.Pop().(int32)
		if n < 0 {
			return vm.Throw("java/lang/NegativeArraySizeException", "%d", n)
		}
		data := make([]Value, n)
		for i := range data {
			data[i] = zero(elem)
		}
		vm.Push(&Array{Elem: elem, Data: data})
	case op == bytecode.ARRAYLENGTH:
		v := vm.Pop()
		arr, ok := v.(*Array)
		if !ok || arr == nil {
			return vm.Throw("java/lang/NullPointerException", "arraylength of null")
		}
		vm.Push(int32(len(arr.Data)))
	case op == bytecode.ATHROW:
		obj, ok := vm.Pop().(*Object)
		if !ok || obj == nil {
			return vm.Throw("java/lang/NullPointerException", "throw null")
		}
		return &Thrown{Obj: obj}
	case op == bytecode.CHECKCAST:
		name, err := vm.Class.Pool.ClassAt(uint16(ins.Index))
		if err != nil {
			return err
		}
		if v := vm.Peek(0); v != nil && !vm.instanceOf(v, name) {
			return vm.Throw("java/lang/ClassCastException", "%s cannot be cast to %s", typeOf(v), name)
		}
	case op == bytecode.INSTANCEOF:
		name, err := vm.Class.Pool.ClassAt(uint16(ins.Index))
		if err != nil {
			return err
		}
		v := vm.Pop()
		vm.Push(boolInt(v != nil && vm.instanceOf(v, name)))
	case op == bytecode.MONITORENTER || op == bytecode.MONITOREXIT:
		obj, ok := vm.Pop().(*Object)
		if !ok || obj == nil {
			return vm.Throw("java/lang/NullPointerException", "monitor of null")
		}
		if op == bytecode.MONITORENTER {
			vm.monitors[obj]++
		} else {
			if vm.monitors[obj] == 0 {
				return vm.Throw("java/lang/IllegalMonitorStateException", "monitor not held")
			}
			vm.monitors[obj]--
		}
	default:
		return fmt.Errorf("vm: unsupported opcode %s", op)
	}
	return nil
}

// Held reports how many times the monitor of obj is currently entered
func (vm *VM) Held(obj *Object) int {
	return vm.monitors[obj]
}

func isLoad(op bytecode.Opcode) bool {
	base, ok := bytecode.LoadStoreKind(op)
	return ok && base <= bytecode.ALOAD
}

func isStore(op bytecode.Opcode) bool {
	base, ok := bytecode.LoadStoreKind(op)
	return ok && base >= bytecode.ISTORE
}

var newarrayTypes = map[int]types.Type{
	bytecode.T_BOOLEAN: types.Boolean,
	bytecode.T_CHAR:    types.Char,
	bytecode.T_FLOAT:   types.Float,
	bytecode.T_DOUBLE:  types.Double,
	bytecode.T_BYTE:    types.Byte,
	bytecode.T_SHORT:   types.Short,
	bytecode.T_INT:     types.Int,
	bytecode.T_LONG:    types.Long,
}

// array checks an array access
func (vm *VM) array(v Value, i int32) (*Array, error) {
	arr, ok := v.(*Array)
	if !ok || arr == nil {
		return nil, vm.Throw("java/lang/NullPointerException", "array is null")
	}
	if i < 0 || int(i) >= len(arr.Data) {
		return nil, vm.Throw("java/lang/ArrayIndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(arr.Data))
	}
	return arr, nil
}

// narrow truncates an int stored into a byte, char, short or boolean array
func narrow(elem types.Type, v Value) Value {
	i, ok := v.(int32)
	if !ok {
		return v
	}
	switch elem {
	case types.Boolean:
		return i & 1
	case types.Byte:
		return int32(int8(i))
	case types.Char:
		return int32(uint16(i))
	case types.Short:
		return int32(int16(i))
	}
	return v
}

func (vm *VM) field(op bytecode.Opcode, ins bytecode.Instruction) error {
	f, err := vm.Class.Pool.FieldAt(uint16(ins.Index))
	if err != nil {
		return err
	}
	key := f.Owner + "." + f.Name
	switch op {
	case bytecode.GETSTATIC:
		v, ok := vm.Statics[key]
		if !ok {
			v = zero(f.Type)
		}
		vm.Push(v)
	case bytecode.PUTSTATIC:
		vm.Statics[key] = vm.Pop()
	case bytecode.GETFIELD:
		obj, ok := vm.Pop().(*Object)
		if !ok || obj == nil {
			return vm.Throw("java/lang/NullPointerException", "getfield %s of null", f.Name)
		}
		v, ok := obj.Fields[f.Name]
		if !ok {
			v = zero(f.Type)
		}
		vm.Push(v)
	case bytecode.PUTFIELD:
		v := vm.Pop()
		obj, ok := vm.Pop().(*Object)
		if !ok || obj == nil {
			return vm.Throw("java/lang/NullPointerException", "putfield %s of null", f.Name)
		}
		if obj.Fields == nil {
			obj.Fields = make(map[string]Value)
		}
		obj.Fields[f.Name] = v
	}
	return nil
}

// invoke calls a method of the class through a new frame, or a native
func (vm *VM) invoke(op bytecode.Opcode, ins bytecode.Instruction) error {
	m, err := vm.Class.Pool.MethodAt(uint16(ins.Index))
	if err != nil {
		return err
	}
	args := vm.PopN(len(m.Desc.Params))
	start := m.Owner
	if op != bytecode.INVOKESTATIC {
		recv := vm.Pop()
		if recv == nil {
			return vm.Throw("java/lang/NullPointerException", "%s.%s on null", m.Owner, m.Name)
		}
		args = append([]Value{recv}, args...)
		if op != bytecode.INVOKESPECIAL {
			if o, ok := recv.(*Object); ok {
				start = o.Class
			}
		}
	}
	desc := m.Desc.String()
	for _, owner := range []string{start, m.Owner} {
		for cls := owner; cls != ""; {
			if cls == vm.Class.Name {
				if cm := vm.Class.FindMethod(m.Name, desc); cm != nil && cm.Code != nil {
					vm.enter(cm, args)
					return nil
				}
			}
			if fn, ok := vm.Natives.Lookup(cls, m.Name, desc); ok {
				res, err := fn(vm, args)
				if err != nil {
					return err
				}
				if !m.Desc.Return.IsVoid() {
					vm.Push(res)
				}
				return nil
			}
			super, ok := vm.Hierarchy.SuperClass(cls)
			if !ok && cls == vm.Class.Name {
				super, ok = vm.Class.Super, true
			}
			if !ok {
				break
			}
			cls = super
		}
	}
	return fmt.Errorf("vm: no implementation of %s", m)
}

func (vm *VM) arith(kind int) error {
	y, x := vm.Pop(), vm.Pop()
	switch a := x.(type) {
	case int32:
		b := y.(int32)
		if (kind == 3 || kind == 4) && b == 0 {
			return vm.Throw("java/lang/ArithmeticException", "/ by zero")
		}
		vm.Push([...]int32{a + b, a - b, a * b, safeDiv32(a, b), safeRem32(a, b)}[kind])
	case int64:
		b := y.(int64)
		if (kind == 3 || kind == 4) && b == 0 {
			return vm.Throw("java/lang/ArithmeticException", "/ by zero")
		}
		vm.Push([...]int64{a + b, a - b, a * b, safeDiv64(a, b), safeRem64(a, b)}[kind])
	case float32:
		b := y.(float32)
		vm.Push([...]float32{a + b, a - b, a * b, a / b, float32(math.Mod(float64(a), float64(b)))}[kind])
	case float64:
		b := y.(float64)
		vm.Push([...]float64{a + b, a - b, a * b, a / b, math.Mod(a, b)}[kind])
	default:
		return fmt.Errorf("vm: arithmetic on %T", x)
	}
	return nil
}

func safeDiv32(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a / b
}

func safeRem32(a, b int32) int32 {
	if b == 0 {
		return 0
	}
	return a % b
}

func safeDiv64(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func safeRem64(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return a % b
}

func negate(v Value) Value {
	switch x := v.(type) {
	case int32:
		return -x
	case int64:
		return -x
	case float32:
		return -x
	case float64:
		return -x
	}
	return v
}

func shift(kind int, v Value, n int32) Value {
	switch x := v.(type) {
	case int32:
		s := uint(n & 31)
		return [...]int32{x << s, x >> s, int32(uint32(x) >> s)}[kind]
	case int64:
		s := uint(n & 63)
		return [...]int64{x << s, x >> s, int64(uint64(x) >> s)}[kind]
	}
	return v
}

func logic(kind int, x, y Value) Value {
	switch a := x.(type) {
	case int32:
		b := y.(int32)
		return [...]int32{a & b, a | b, a ^ b}[kind]
	case int64:
		b := y.(int64)
		return [...]int64{a & b, a | b, a ^ b}[kind]
	}
	return x
}

func toFloat64(v Value) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

// convert applies a primitive conversion instruction with Java's
// saturating float-to-integer rules
func convert(op bytecode.Opcode, v Value) Value {
	switch op {
	case bytecode.I2L:
		return int64(v.(int32))
	case bytecode.I2F:
		return float32(v.(int32))
	case bytecode.I2D:
		return float64(v.(int32))
	case bytecode.L2I:
		return int32(v.(int64))
	case bytecode.L2F:
		return float32(v.(int64))
	case bytecode.L2D:
		return float64(v.(int64))
	case bytecode.F2I:
		return d2i(float64(v.(float32)))
	case bytecode.F2L:
		return d2l(float64(v.(float32)))
	case bytecode.F2D:
		return float64(v.(float32))
	case bytecode.D2I:
		return d2i(v.(float64))
	case bytecode.D2L:
		return d2l(v.(float64))
	case bytecode.D2F:
		return float32(v.(float64))
	case bytecode.I2B:
		return int32(int8(v.(int32)))
	case bytecode.I2C:
		return int32(uint16(v.(int32)))
	case bytecode.I2S:
		return int32(int16(v.(int32)))
	}
	return v
}

func d2i(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func d2l(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func compare(less, greater bool) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// test evaluates the condition of if<cond> family member k (eq, ne, lt,
// ge, gt, le)
func test(k int, x, y int32) bool {
	return [...]bool{x == y, x != y, x < y, x >= y, x > y, x <= y}[k]
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
