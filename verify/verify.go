// Package verify type-checks finished method bodies against their stack
// map frames, the way the JVM's split verifier does. It works on decoded
// bytes only, independently of how the code was generated.
package verify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Error collects every problem found in one method
type Error struct {
	Method string
	Errs   []error
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("verify %s: %s", e.Method, strings.Join(msgs, "; "))
}

// Unwrap returns the individual findings
func (e *Error) Unwrap() []error {
	return e.Errs
}

// Finding is one problem at a code offset
type Finding struct {
	Offset int
	Msg    string
}

func (f *Finding) Error() string {
	return fmt.Sprintf("offset %d: %s", f.Offset, f.Msg)
}

// Class verifies every method of c that has code
func Class(c *classfile.Class, h types.Hierarchy) error {
	var errs []error
	for _, m := range c.Methods {
		if err := Method(c, m, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var wide2 = stackmap.VType{Tag: stackmap.Wide2}

type state struct {
	locals []stackmap.VType
	stack  []stackmap.VType
}

type checker struct {
	h      types.Hierarchy
	class  *classfile.Class
	m      *classfile.Method
	code   *classfile.Code
	frames map[int]stackmap.Frame
	starts map[int]bool
	cur    state
	live   bool
	pc     int
	errs   []error
}

// errAbort stops checking the current instruction
type errAbort struct{}

// Method verifies one method. It returns nil or an *Error.
func Method(c *classfile.Class, m *classfile.Method, h types.Hierarchy) error {
	if m.Code == nil {
		return nil
	}
	if h == nil {
		h = types.JDK
	}
	name := c.Name + "." + m.Name + m.Desc.String()
	code := m.Code
	insns, err := bytecode.Decode(code.Bytes)
	if err != nil {
		return &Error{Method: name, Errs: []error{err}}
	}
	v := &checker{
		h:      h,
		class:  c,
		m:      m,
		code:   code,
		frames: make(map[int]stackmap.Frame),
		starts: make(map[int]bool),
		live:   true,
	}
	for _, ins := range insns {
		v.starts[ins.Offset] = true
	}
	for _, f := range code.Frames {
		if !v.starts[f.Offset] {
			v.report(f.Offset, "stack map frame inside an instruction")
			continue
		}
		if _, dup := v.frames[f.Offset]; dup {
			v.report(f.Offset, "two stack map frames")
		}
		v.frames[f.Offset] = f
	}
	initial := code.Initial
	if initial == nil {
		initial = classfile.InitialLocals(c.Name, m)
	}
	v.cur = state{locals: append([]stackmap.VType(nil), initial...)}
	v.checkHandlers()
	for _, ins := range insns {
		v.step(ins)
	}
	if v.live {
		v.report(len(code.Bytes), "control falls off the end of the code")
	}
	if len(v.errs) > 0 {
		return &Error{Method: name, Errs: v.errs}
	}
	return nil
}

func (v *checker) report(offset int, format string, args ...interface{}) {
	v.errs = append(v.errs, &Finding{Offset: offset, Msg: fmt.Sprintf(format, args...)})
}

func (v *checker) fail(format string, args ...interface{}) {
	v.report(v.pc, format, args...)
	panic(errAbort{})
}

func (v *checker) checkHandlers() {
	for _, e := range v.code.Exceptions {
		if e.Start >= e.End || !v.starts[e.Start] || (e.End != len(v.code.Bytes) && !v.starts[e.End]) {
			v.report(e.Start, "bad exception range [%d, %d)", e.Start, e.End)
		}
		f, ok := v.frames[e.Handler]
		if !ok {
			v.report(e.Handler, "exception handler without a stack map frame")
			continue
		}
		catch := "java/lang/Throwable"
		if e.CatchType != "" {
			catch = e.CatchType
		}
		if len(f.Stack) != 1 || !v.assignable(stackmap.ObjectType(catch), f.Stack[0]) {
			v.report(e.Handler, "handler frame stack %v cannot hold %s", f.Stack, catch)
		}
	}
}

// step checks one instruction
func (v *checker) step(ins bytecode.Instruction) {
	v.pc = ins.Offset
	if f, ok := v.frames[ins.Offset]; ok {
		if v.live {
			v.flowTo(ins.Offset)
		}
		v.cur = state{
			locals: append([]stackmap.VType(nil), f.Locals...),
			stack:  append([]stackmap.VType(nil), f.Stack...),
		}
		v.live = true
	} else if !v.live {
		v.report(ins.Offset, "unreachable %s without a stack map frame", ins.Op)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(errAbort); !ok {
				panic(r)
			}
			// the state is unknown until the next frame
			v.live = false
		}
	}()
	for _, e := range v.code.Exceptions {
		if ins.Offset >= e.Start && ins.Offset < e.End {
			v.checkLocals(e.Handler)
		}
	}
	v.exec(ins)
	if n := len(v.cur.stack); n > v.code.MaxStack {
		v.fail("stack height %d exceeds max_stack %d", n, v.code.MaxStack)
	}
}

// flowTo checks that the current state may branch to target
func (v *checker) flowTo(target int) {
	f, ok := v.frames[target]
	if !ok {
		if !v.starts[target] {
			v.fail("branch into the middle of an instruction at %d", target)
		}
		v.fail("branch target %d has no stack map frame", target)
	}
	if len(v.cur.stack) != len(f.Stack) {
		v.fail("stack height %d at %d, frame expects %d", len(v.cur.stack), target, len(f.Stack))
	}
	for i, want := range f.Stack {
		if !v.assignable(v.cur.stack[i], want) {
			v.fail("stack slot %d holds %s, frame at %d expects %s", i, v.cur.stack[i], target, want)
		}
	}
	v.checkLocalsAgainst(f, target)
}

func (v *checker) checkLocals(handler int) {
	if f, ok := v.frames[handler]; ok {
		v.checkLocalsAgainst(f, handler)
	}
}

func (v *checker) checkLocalsAgainst(f stackmap.Frame, target int) {
	for i, want := range f.Locals {
		have := stackmap.TopType
		if i < len(v.cur.locals) {
			have = v.cur.locals[i]
		}
		if !v.assignable(have, want) {
			v.fail("local %d holds %s, frame at %d expects %s", i, have, target, want)
		}
	}
}

func (v *checker) assignable(from, to stackmap.VType) bool {
	return stackmap.IsAssignable(v.h, from, to)
}

func (v *checker) push(t stackmap.VType) {
	v.cur.stack = append(v.cur.stack, t)
	if t.IsWide() {
		v.cur.stack = append(v.cur.stack, wide2)
	}
}

func (v *checker) pushType(t types.Type) {
	if !t.IsVoid() {
		v.push(stackmap.Of(t))
	}
}

// pop removes one value of any type
func (v *checker) pop() stackmap.VType {
	n := len(v.cur.stack)
	if n == 0 {
		v.fail("operand stack underflow")
	}
	top := v.cur.stack[n-1]
	if top.Tag == stackmap.Wide2 {
		if n < 2 {
			v.fail("operand stack underflow")
		}
		top = v.cur.stack[n-2]
		v.cur.stack = v.cur.stack[:n-2]
		return top
	}
	v.cur.stack = v.cur.stack[:n-1]
	return top
}

// popAs removes a value that must be assignable to want
func (v *checker) popAs(want stackmap.VType) stackmap.VType {
	got := v.pop()
	if !v.assignable(got, want) {
		v.fail("expected %s on the stack, found %s", want, got)
	}
	return got
}

func (v *checker) popType(t types.Type) {
	v.popAs(stackmap.Of(t))
}

func (v *checker) popRef() stackmap.VType {
	got := v.pop()
	if !got.IsReference() {
		v.fail("expected a reference on the stack, found %s", got)
	}
	return got
}

func (v *checker) popSlots(n int) []stackmap.VType {
	if len(v.cur.stack) < n {
		v.fail("operand stack underflow")
	}
	at := len(v.cur.stack) - n
	out := append([]stackmap.VType(nil), v.cur.stack[at:]...)
	v.cur.stack = v.cur.stack[:at]
	return out
}

func (v *checker) pushSlots(vs ...[]stackmap.VType) {
	for _, s := range vs {
		v.cur.stack = append(v.cur.stack, s...)
	}
}

func (v *checker) load(slot int, want stackmap.VType) {
	if slot >= v.code.MaxLocals {
		v.fail("local %d beyond max_locals %d", slot, v.code.MaxLocals)
	}
	if slot >= len(v.cur.locals) {
		v.fail("local %d is not set", slot)
	}
	got := v.cur.locals[slot]
	if want.Tag == stackmap.Object {
		if !got.IsReference() {
			v.fail("local %d holds %s, reference expected", slot, got)
		}
		v.push(got)
		return
	}
	if got != want {
		v.fail("local %d holds %s, %s expected", slot, got, want)
	}
	v.push(got)
}

func (v *checker) store(slot int, val stackmap.VType) {
	n := slot + val.Size()
	if n > v.code.MaxLocals {
		v.fail("local %d beyond max_locals %d", slot, v.code.MaxLocals)
	}
	for len(v.cur.locals) < n {
		v.cur.locals = append(v.cur.locals, stackmap.TopType)
	}
	// overwriting half of a wide value kills the other half
	if slot > 0 && v.cur.locals[slot-1].IsWide() {
		v.cur.locals[slot-1] = stackmap.TopType
	}
	if v.cur.locals[slot].IsWide() && slot+1 < len(v.cur.locals) {
		v.cur.locals[slot+1] = stackmap.TopType
	}
	v.cur.locals[slot] = val
	if val.IsWide() {
		v.cur.locals[slot+1] = wide2
	}
}

// catType is the verification type of the int/long/float/double/ref
// family member at index i
func catType(i int) stackmap.VType {
	switch i {
	case 0:
		return stackmap.IntType
	case 1:
		return stackmap.LongType
	case 2:
		return stackmap.FloatType
	case 3:
		return stackmap.DoubleType
	}
	return stackmap.ObjectType("java/lang/Object")
}

var convResults = [...]struct{ from, to stackmap.VType }{
	{stackmap.IntType, stackmap.LongType}, {stackmap.IntType, stackmap.FloatType}, {stackmap.IntType, stackmap.DoubleType},
	{stackmap.LongType, stackmap.IntType}, {stackmap.LongType, stackmap.FloatType}, {stackmap.LongType, stackmap.DoubleType},
	{stackmap.FloatType, stackmap.IntType}, {stackmap.FloatType, stackmap.LongType}, {stackmap.FloatType, stackmap.DoubleType},
	{stackmap.DoubleType, stackmap.IntType}, {stackmap.DoubleType, stackmap.LongType}, {stackmap.DoubleType, stackmap.FloatType},
	{stackmap.IntType, stackmap.IntType}, {stackmap.IntType, stackmap.IntType}, {stackmap.IntType, stackmap.IntType},
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

// exec applies the effect of one instruction
func (v *checker) exec(ins bytecode.Instruction) {
	op := ins.Op
	pool := v.class.Pool
	switch {
	case op == bytecode.NOP:
	case op == bytecode.ACONST_NULL:
		v.push(stackmap.NullType)
	case op >= bytecode.ICONST_M1 && op <= bytecode.ICONST_5, op == bytecode.BIPUSH, op == bytecode.SIPUSH:
		v.push(stackmap.IntType)
	case op == bytecode.LCONST_0 || op == bytecode.LCONST_1:
		v.push(stackmap.LongType)
	case op >= bytecode.FCONST_0 && op <= bytecode.FCONST_2:
		v.push(stackmap.FloatType)
	case op == bytecode.DCONST_0 || op == bytecode.DCONST_1:
		v.push(stackmap.DoubleType)
	case op == bytecode.LDC || op == bytecode.LDC_W || op == bytecode.LDC2_W:
		_, t, err := pool.ConstantAt(uint16(ins.Index))
		if err != nil {
			v.fail("%v", err)
		}
		if (op == bytecode.LDC2_W) != t.IsWide() {
			v.fail("%s cannot load %s", op, t)
		}
		v.pushType(t)
	case isLoadStore(op):
		base, _ := bytecode.LoadStoreKind(op)
		if base <= bytecode.ALOAD {
			v.load(ins.Index, catType(int(base-bytecode.ILOAD)))
			return
		}
		want := catType(int(base - bytecode.ISTORE))
		var val stackmap.VType
		if want.Tag == stackmap.Object {
			val = v.pop()
			if !val.IsReference() {
				v.fail("astore of %s", val)
			}
		} else {
			val = v.popAs(want)
		}
		v.store(ins.Index, val)
	case op >= bytecode.IALOAD && op <= bytecode.SALOAD:
		v.popAs(stackmap.IntType)
		arr := v.popRef()
		v.push(v.elemType(op-bytecode.IALOAD, arr))
	case op >= bytecode.IASTORE && op <= bytecode.SASTORE:
		k := op - bytecode.IASTORE
		if k == 4 {
			v.popRef()
		} else {
			v.popAs(v.elemStore(k))
		}
		v.popAs(stackmap.IntType)
		v.popRef()
	case op == bytecode.POP:
		v.category1(v.popSlots(1))
	case op == bytecode.POP2:
		v.popSlots(2)
	case op == bytecode.DUP:
		s := v.popSlots(1)
		v.category1(s)
		v.pushSlots(s, s)
	case op == bytecode.DUP_X1:
		s1, s2 := v.popSlots(1), v.popSlots(1)
		v.pushSlots(s1, s2, s1)
	case op == bytecode.DUP_X2:
		s1, s2 := v.popSlots(1), v.popSlots(2)
		v.pushSlots(s1, s2, s1)
	case op == bytecode.DUP2:
		s := v.popSlots(2)
		v.pushSlots(s, s)
	case op == bytecode.DUP2_X1:
		s1, s2 := v.popSlots(2), v.popSlots(1)
		v.pushSlots(s1, s2, s1)
	case op == bytecode.DUP2_X2:
		s1, s2 := v.popSlots(2), v.popSlots(2)
		v.pushSlots(s1, s2, s1)
	case op == bytecode.SWAP:
		s1, s2 := v.popSlots(1), v.popSlots(1)
		v.pushSlots(s1, s2)
	case op >= bytecode.IADD && op < bytecode.INEG:
		t := catType(int(op-bytecode.IADD) % 4)
		v.popAs(t)
		v.popAs(t)
		v.push(t)
	case op >= bytecode.INEG && op < bytecode.ISHL:
		t := catType(int(op - bytecode.INEG))
		v.popAs(t)
		v.push(t)
	case op >= bytecode.ISHL && op < bytecode.IAND:
		t := catType(int(op-bytecode.ISHL) % 2)
		v.popAs(stackmap.IntType)
		v.popAs(t)
		v.push(t)
	case op >= bytecode.IAND && op < bytecode.IINC:
		t := catType(int(op-bytecode.IAND) % 2)
		v.popAs(t)
		v.popAs(t)
		v.push(t)
	case op == bytecode.IINC:
		v.load(ins.Index, stackmap.IntType)
		v.pop()
	case op >= bytecode.I2L && op <= bytecode.I2S:
		c := convResults[op-bytecode.I2L]
		v.popAs(c.from)
		v.push(c.to)
	case op == bytecode.LCMP:
		v.popAs(stackmap.LongType)
		v.popAs(stackmap.LongType)
		v.push(stackmap.IntType)
	case op == bytecode.FCMPL || op == bytecode.FCMPG:
		v.popAs(stackmap.FloatType)
		v.popAs(stackmap.FloatType)
		v.push(stackmap.IntType)
	case op == bytecode.DCMPL || op == bytecode.DCMPG:
		v.popAs(stackmap.DoubleType)
		v.popAs(stackmap.DoubleType)
		v.push(stackmap.IntType)
	case op >= bytecode.IFEQ && op <= bytecode.IFLE:
		v.popAs(stackmap.IntType)
		v.flowTo(ins.Target)
	case op >= bytecode.IF_ICMPEQ && op <= bytecode.IF_ICMPLE:
		v.popAs(stackmap.IntType)
		v.popAs(stackmap.IntType)
		v.flowTo(ins.Target)
	case op == bytecode.IF_ACMPEQ || op == bytecode.IF_ACMPNE:
		v.popRef()
		v.popRef()
		v.flowTo(ins.Target)
	case op == bytecode.IFNULL || op == bytecode.IFNONNULL:
		v.popRef()
		v.flowTo(ins.Target)
	case op == bytecode.GOTO || op == bytecode.GOTO_W:
		v.flowTo(ins.Target)
		v.live = false
	case op == bytecode.TABLESWITCH || op == bytecode.LOOKUPSWITCH:
		v.popAs(stackmap.IntType)
		if op == bytecode.LOOKUPSWITCH {
			for i := 1; i < len(ins.Keys); i++ {
				if ins.Keys[i] <= ins.Keys[i-1] {
					v.fail("lookupswitch keys not sorted")
				}
			}
		}
		v.flowTo(ins.Default)
		for _, t := range ins.Targets {
			v.flowTo(t)
		}
		v.live = false
	case op >= bytecode.IRETURN && op <= bytecode.RETURN:
		v.ret(op)
	case op >= bytecode.GETSTATIC && op <= bytecode.PUTFIELD:
		f, err := pool.FieldAt(uint16(ins.Index))
		if err != nil {
			v.fail("%v", err)
		}
		switch op {
		case bytecode.GETSTATIC:
			v.pushType(f.Type)
		case bytecode.PUTSTATIC:
			v.popType(f.Type)
		case bytecode.GETFIELD:
			v.popAs(stackmap.ObjectType(f.Owner))
			v.pushType(f.Type)
		case bytecode.PUTFIELD:
			v.popType(f.Type)
			recv := v.pop()
			// a constructor may set its own fields before calling super
			if recv.Tag != stackmap.UninitializedThis || f.Owner != v.class.Name {
				if !v.assignable(recv, stackmap.ObjectType(f.Owner)) {
					v.fail("putfield %s on %s", f, recv)
				}
			}
		}
	case op >= bytecode.INVOKEVIRTUAL && op <= bytecode.INVOKEINTERFACE:
		v.invoke(op, ins)
	case op == bytecode.NEW:
		if _, err := pool.ClassAt(uint16(ins.Index)); err != nil {
			v.fail("%v", err)
		}
		v.push(stackmap.UninitializedAt(ins.Offset))
	case op == bytecode.NEWARRAY:
		elem, ok := newarrayTypes[ins.Index]
		if !ok {
			v.fail("bad newarray type %d", ins.Index)
		}
		v.popAs(stackmap.IntType)
		v.push(stackmap.Of(types.ArrayOf(elem)))
	case op == bytecode.ANEWARRAY:
		name, err := pool.ClassAt(uint16(ins.Index))
		if err != nil {
			v.fail("%v", err)
		}
		v.popAs(stackmap.IntType)
		v.push(stackmap.Of(types.ArrayOf(types.TypeFromInternalName(name))))
	case op == bytecode.ARRAYLENGTH:
		arr := v.popRef()
		if arr.Tag == stackmap.Object && !strings.HasPrefix(arr.Class, "[") {
			v.fail("arraylength of %s", arr)
		}
		v.push(stackmap.IntType)
	case op == bytecode.ATHROW:
		v.popAs(stackmap.ObjectType("java/lang/Throwable"))
		v.live = false
	case op == bytecode.CHECKCAST || op == bytecode.INSTANCEOF:
		name, err := pool.ClassAt(uint16(ins.Index))
		if err != nil {
			v.fail("%v", err)
		}
		v.popRef()
		if op == bytecode.CHECKCAST {
			v.push(stackmap.ObjectType(name))
		} else {
			v.push(stackmap.IntType)
		}
	case op == bytecode.MONITORENTER || op == bytecode.MONITOREXIT:
		v.popRef()
	default:
		v.fail("%s is not supported", op)
	}
}

func isLoadStore(op bytecode.Opcode) bool {
	_, ok := bytecode.LoadStoreKind(op)
	return ok
}

func (v *checker) category1(s []stackmap.VType) {
	if s[0].Tag == stackmap.Wide2 {
		v.fail("splitting a two-slot value")
	}
}

// elemType is the value an array load of kind k (iaload = 0) pushes
func (v *checker) elemType(k bytecode.Opcode, arr stackmap.VType) stackmap.VType {
	if arr.Tag == stackmap.Null {
		if k == 4 {
			return stackmap.NullType
		}
		return v.elemStore(k)
	}
	if arr.Tag != stackmap.Object || !strings.HasPrefix(arr.Class, "[") {
		v.fail("array load from %s", arr)
	}
	elem := types.TypeFromInternalName(arr.Class).Elem()
	got := stackmap.Of(elem)
	if want := v.elemStore(k); k != 4 && got != want {
		v.fail("array load of %s from %s", want, arr)
	}
	return got
}

func (v *checker) elemStore(k bytecode.Opcode) stackmap.VType {
	switch k {
	case 1:
		return stackmap.LongType
	case 2:
		return stackmap.FloatType
	case 3:
		return stackmap.DoubleType
	case 4:
		return stackmap.ObjectType("java/lang/Object")
	}
	return stackmap.IntType
}

func (v *checker) ret(op bytecode.Opcode) {
	want := v.m.Desc.Return
	if op == bytecode.RETURN {
		if !want.IsVoid() {
			v.fail("return without a value from a method returning %s", want)
		}
		if v.m.Name == "<init>" {
			for _, l := range v.cur.locals {
				if l.Tag == stackmap.UninitializedThis {
					v.fail("constructor returns before calling super")
				}
			}
		}
	} else {
		if want.IsVoid() {
			v.fail("%s in a void method", op)
		}
		if got := catType(int(op - bytecode.IRETURN)); got != stackmap.Of(want) && got.Tag != stackmap.Object {
			v.fail("%s in a method returning %s", op, want)
		}
		v.popType(want)
	}
	v.live = false
}

func (v *checker) invoke(op bytecode.Opcode, ins bytecode.Instruction) {
	m, err := v.class.Pool.MethodAt(uint16(ins.Index))
	if err != nil {
		v.fail("%v", err)
	}
	if (op == bytecode.INVOKEINTERFACE) != m.Interface && op != bytecode.INVOKESTATIC && op != bytecode.INVOKESPECIAL {
		v.fail("%s of %s", op, m)
	}
	for i := len(m.Desc.Params) - 1; i >= 0; i-- {
		v.popType(m.Desc.Params[i])
	}
	if op != bytecode.INVOKESTATIC {
		recv := v.pop()
		switch {
		case m.IsConstructor():
			if op != bytecode.INVOKESPECIAL {
				v.fail("%s of a constructor", op)
			}
			var init stackmap.VType
			switch recv.Tag {
			case stackmap.UninitializedThis:
				if m.Owner != v.class.Name && m.Owner != v.class.Super {
					v.fail("constructor %s called on this", m)
				}
				init = stackmap.ObjectType(v.class.Name)
			case stackmap.Uninitialized:
				init = stackmap.ObjectType(m.Owner)
			default:
				v.fail("constructor %s called on initialized %s", m, recv)
			}
			v.replace(recv, init)
		case recv.Tag == stackmap.Uninitialized || recv.Tag == stackmap.UninitializedThis:
			v.fail("%s called on an uninitialized object", m)
		case !m.Interface && !v.assignable(recv, stackmap.ObjectType(m.Owner)):
			v.fail("%s called on %s", m, recv)
		}
	}
	v.pushType(m.Desc.Return)
}

// replace initializes every copy of an uninitialized value
func (v *checker) replace(from, to stackmap.VType) {
	for i, x := range v.cur.stack {
		if x == from {
			v.cur.stack[i] = to
		}
	}
	for i, x := range v.cur.locals {
		if x == from {
			v.cur.locals[i] = to
		}
	}
}
