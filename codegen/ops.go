package codegen

import (
	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Arithmetic

func (b *Block) binary(op bytecode.Opcode, x, y Expr) Expr {
	b.checkActive()
	t, ok := convert.Promote(x.Type(), y.Type())
	if !ok {
		fail(TypeMismatch, "%s needs numeric operands, have %s and %s", op, x.Type(), y.Type())
	}
	bitwise := op == bytecode.IAND || op == bytecode.IOR || op == bytecode.IXOR
	switch {
	case t == types.Boolean && !bitwise:
		fail(TypeMismatch, "%s is not defined for boolean", op)
	case (t == types.Float || t == types.Double) && bitwise:
		fail(TypeMismatch, "%s is not defined for %s", op, t)
	}
	return b.add(&arithItem{item: item{typ: t, deps: []Expr{b.convert(x, t), b.convert(y, t)}}, op: op})
}

func (b *Block) shift(op bytecode.Opcode, x, n Expr) Expr {
	b.checkActive()
	t, ok := convert.UnaryPromote(x.Type())
	if !ok || t == types.Float || t == types.Double {
		fail(TypeMismatch, "%s needs an integral operand, have %s", op, x.Type())
	}
	nt, ok := convert.UnaryPromote(n.Type())
	if !ok || nt == types.Float || nt == types.Double {
		fail(TypeMismatch, "%s needs an integral shift distance, have %s", op, n.Type())
	}
	var dist Expr = b.convert(n, nt)
	if nt == types.Long {
		dist = b.Cast(dist, types.Int)
	}
	return b.add(&arithItem{item: item{typ: t, deps: []Expr{b.convert(x, t), dist}}, op: op})
}

// Add returns x + y
func (b *Block) Add(x, y Expr) Expr { return b.binary(bytecode.IADD, x, y) }

// Sub returns x - y
func (b *Block) Sub(x, y Expr) Expr { return b.binary(bytecode.ISUB, x, y) }

// Mul returns x * y
func (b *Block) Mul(x, y Expr) Expr { return b.binary(bytecode.IMUL, x, y) }

// Div returns x / y
func (b *Block) Div(x, y Expr) Expr { return b.binary(bytecode.IDIV, x, y) }

// Rem returns x % y
func (b *Block) Rem(x, y Expr) Expr { return b.binary(bytecode.IREM, x, y) }

// And returns x & y
func (b *Block) And(x, y Expr) Expr { return b.binary(bytecode.IAND, x, y) }

// Or returns x | y
func (b *Block) Or(x, y Expr) Expr { return b.binary(bytecode.IOR, x, y) }

// Xor returns x ^ y
func (b *Block) Xor(x, y Expr) Expr { return b.binary(bytecode.IXOR, x, y) }

// Shl returns x << n
func (b *Block) Shl(x, n Expr) Expr { return b.shift(bytecode.ISHL, x, n) }

// Shr returns x >> n
func (b *Block) Shr(x, n Expr) Expr { return b.shift(bytecode.ISHR, x, n) }

// Ushr returns x >>> n
func (b *Block) Ushr(x, n Expr) Expr { return b.shift(bytecode.IUSHR, x, n) }

// Neg returns -x
func (b *Block) Neg(x Expr) Expr {
	b.checkActive()
	t, ok := convert.UnaryPromote(x.Type())
	if !ok {
		fail(TypeMismatch, "negation needs a numeric operand, have %s", x.Type())
	}
	return b.add(&negItem{item: item{typ: t, deps: []Expr{b.convert(x, t)}}})
}

// Comparisons

func (b *Block) compare(op cmpOp, x, y Expr) Expr {
	b.checkActive()
	tx, ty := x.Type(), y.Type()
	if tx.IsReference() && ty.IsReference() {
		if op != opEq && op != opNe {
			_, okx := convert.Unboxed(tx)
			_, oky := convert.Unboxed(ty)
			if !okx || !oky {
				fail(TypeMismatch, "%s is not defined for %s and %s", op, tx, ty)
			}
		} else {
			return b.add(&relItem{item: item{typ: types.Boolean, deps: []Expr{x, y}}, op: op, operand: types.Object})
		}
	}
	t, ok := convert.Promote(tx, ty)
	if !ok {
		fail(TypeMismatch, "cannot compare %s and %s", tx, ty)
	}
	if t == types.Boolean && op != opEq && op != opNe {
		fail(TypeMismatch, "%s is not defined for boolean", op)
	}
	return b.add(&relItem{item: item{typ: types.Boolean, deps: []Expr{b.convert(x, t), b.convert(y, t)}}, op: op, operand: t})
}

// Eq returns x == y. Two references compare by identity.
func (b *Block) Eq(x, y Expr) Expr { return b.compare(opEq, x, y) }

// Ne returns x != y
func (b *Block) Ne(x, y Expr) Expr { return b.compare(opNe, x, y) }

// Lt returns x < y
func (b *Block) Lt(x, y Expr) Expr { return b.compare(opLt, x, y) }

// Le returns x <= y
func (b *Block) Le(x, y Expr) Expr { return b.compare(opLe, x, y) }

// Gt returns x > y
func (b *Block) Gt(x, y Expr) Expr { return b.compare(opGt, x, y) }

// Ge returns x >= y
func (b *Block) Ge(x, y Expr) Expr { return b.compare(opGe, x, y) }

func (b *Block) nullCheck(op cmpOp, x Expr) Expr {
	b.checkActive()
	if !x.Type().IsReference() {
		fail(TypeMismatch, "null check of primitive %s", x.Type())
	}
	return b.add(&relItem{item: item{typ: types.Boolean, deps: []Expr{x}}, op: op, operand: types.Object})
}

// IsNull returns x == null
func (b *Block) IsNull(x Expr) Expr { return b.nullCheck(opNull, x) }

// IsNotNull returns x != null
func (b *Block) IsNotNull(x Expr) Expr { return b.nullCheck(opNonNull, x) }

// Not returns !x
func (b *Block) Not(x Expr) Expr {
	b.checkActive()
	x = b.cond(x)
	if rel, ok := x.(*relItem); ok && b.isLast(rel) && rel.operand != types.Float && rel.operand != types.Double {
		// flip the comparison in place; NaN keeps float compares out
		rel.op = rel.op.negate()
		return rel
	}
	return b.add(&notItem{item: item{typ: types.Boolean, deps: []Expr{x}}})
}

// Invocation

func (b *Block) invoke(op bytecode.Opcode, m types.MethodRef, recv Expr, args []Expr) Expr {
	b.checkActive()
	if len(args) != len(m.Desc.Params) {
		fail(TypeMismatch, "%s expects %d arguments, have %d", m, len(m.Desc.Params), len(args))
	}
	var deps []Expr
	if recv != nil {
		if !recv.Type().IsReference() {
			fail(TypeMismatch, "receiver of %s has primitive type %s", m, recv.Type())
		}
		if m.IsConstructor() {
			deps = append(deps, recv)
		} else {
			deps = append(deps, b.convert(recv, ownerType(m.Owner)))
		}
	}
	for i, a := range args {
		deps = append(deps, b.convert(a, m.Desc.Params[i]))
	}
	return b.add(&invokeItem{item: item{typ: m.Desc.Return, deps: deps}, op: op, method: m})
}

func ownerType(owner string) types.Type {
	if len(owner) > 0 && owner[0] == '[' {
		return types.Type(owner)
	}
	return types.Class(owner)
}

// InvokeStatic calls a static method
func (b *Block) InvokeStatic(m types.MethodRef, args ...Expr) Expr {
	return b.invoke(bytecode.INVOKESTATIC, m, nil, args)
}

// InvokeVirtual calls an instance method of a class
func (b *Block) InvokeVirtual(m types.MethodRef, recv Expr, args ...Expr) Expr {
	return b.invoke(bytecode.INVOKEVIRTUAL, m, recv, args)
}

// InvokeInterface calls an interface method
func (b *Block) InvokeInterface(m types.MethodRef, recv Expr, args ...Expr) Expr {
	m.Interface = true
	return b.invoke(bytecode.INVOKEINTERFACE, m, recv, args)
}

// InvokeSpecial calls a constructor, private or super method without
// dynamic dispatch
func (b *Block) InvokeSpecial(m types.MethodRef, recv Expr, args ...Expr) Expr {
	return b.invoke(bytecode.INVOKESPECIAL, m, recv, args)
}

// New allocates an instance of the constructor's class and runs the
// constructor. The allocation floats to just before the arguments.
func (b *Block) New(ctor types.MethodRef, args ...Expr) Expr {
	b.checkActive()
	if !ctor.IsConstructor() {
		fail(InvalidState, "%s is not a constructor", ctor)
	}
	if len(args) != len(ctor.Desc.Params) {
		fail(TypeMismatch, "%s expects %d arguments, have %d", ctor, len(ctor.Desc.Params), len(args))
	}
	t := types.Class(ctor.Owner)
	deps := []Expr{&allocItem{item: item{typ: t}, class: ctor.Owner}}
	for i, a := range args {
		deps = append(deps, b.convert(a, ctor.Desc.Params[i]))
	}
	return b.add(&ctorItem{item: item{typ: t, deps: deps}, method: ctor})
}

// Fields

// GetField reads an instance field
func (b *Block) GetField(obj Expr, f types.FieldRef) Expr {
	b.checkActive()
	return b.add(&fieldGetItem{item: item{typ: f.Type, deps: []Expr{b.convert(obj, ownerType(f.Owner))}}, field: f})
}

// SetField writes an instance field
func (b *Block) SetField(obj Expr, f types.FieldRef, v Expr) {
	b.checkActive()
	var recv Expr = obj
	if !b.m.isReceiver(obj) {
		recv = b.convert(obj, ownerType(f.Owner))
	}
	b.add(&fieldPutItem{item: item{typ: types.Void, deps: []Expr{recv, b.convert(v, f.Type)}}, field: f})
}

// GetStatic reads a static field at the point of use
func (b *Block) GetStatic(f types.FieldRef) Expr {
	return &staticGetItem{item: item{typ: f.Type}, field: f}
}

// SetStatic writes a static field
func (b *Block) SetStatic(f types.FieldRef, v Expr) {
	b.checkActive()
	b.add(&fieldPutItem{item: item{typ: types.Void, deps: []Expr{b.convert(v, f.Type)}}, field: f, static: true})
}

// Arrays

// NewArray allocates an array of elem with the given length
func (b *Block) NewArray(elem types.Type, length Expr) Expr {
	b.checkActive()
	if elem.IsVoid() {
		fail(TypeMismatch, "array of void")
	}
	return b.add(&newArrayItem{item: item{typ: types.ArrayOf(elem), deps: []Expr{b.convert(length, types.Int)}}, elem: elem})
}

func (b *Block) elemOf(arr Expr) types.Type {
	if !arr.Type().IsArray() {
		fail(TypeMismatch, "%s is not an array", arr.Type())
	}
	return arr.Type().Elem()
}

// ArrayGet reads arr[i]
func (b *Block) ArrayGet(arr, i Expr) Expr {
	b.checkActive()
	elem := b.elemOf(arr)
	return b.add(&arrayGetItem{item: item{typ: elem, deps: []Expr{arr, b.convert(i, types.Int)}}, elem: elem})
}

// ArraySet writes arr[i] = v
func (b *Block) ArraySet(arr, i, v Expr) {
	b.checkActive()
	elem := b.elemOf(arr)
	b.add(&arraySetItem{item: item{typ: types.Void, deps: []Expr{arr, b.convert(i, types.Int), b.convert(v, elem)}}, elem: elem})
}

// ArrayLen returns arr.length
func (b *Block) ArrayLen(arr Expr) Expr {
	b.checkActive()
	b.elemOf(arr)
	return b.add(&arrayLenItem{item: item{typ: types.Int, deps: []Expr{arr}}})
}

// Monitors

// MonitorEnter locks obj
func (b *Block) MonitorEnter(obj Expr) {
	b.monitor(obj, true)
}

// MonitorExit unlocks obj
func (b *Block) MonitorExit(obj Expr) {
	b.monitor(obj, false)
}

func (b *Block) monitor(obj Expr, enter bool) {
	b.checkActive()
	if !obj.Type().IsReference() {
		fail(TypeMismatch, "monitor on primitive %s", obj.Type())
	}
	b.add(&monitorItem{item: item{typ: types.Void, deps: []Expr{obj}}, enter: enter})
}
