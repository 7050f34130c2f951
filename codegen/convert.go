package codegen

import (
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/types"
)

// convert returns v as a value of type to. Conversions are unbound: they
// are placed right after their operand when the result is used.
func (b *Block) convert(v Expr, to types.Type) Expr {
	if v == nil {
		fail(InvalidState, "missing value of type %s", to)
	}
	from := v.Type()
	if from == to {
		return v
	}
	if from.IsVoid() {
		fail(TypeMismatch, "%s has no value, %s expected", kindName(v), to)
	}
	if from.IsReference() && to.IsReference() {
		conv := &convItem{item: item{typ: to, deps: []Expr{v}}}
		conv.conv = convert.Conversion{Kind: convert.Identity, From: from, To: to}
		if !b.isNull(v) && !types.IsAssignable(b.m.hierarchy(), from, to) {
			conv.checkcast = to
		}
		return conv
	}
	if from.IsReference() && to.IsPrimitive() {
		if _, ok := convert.Unboxed(from); !ok {
			// Object -> int goes through the wrapper, so from must be
			// a supertype of it
			w, _ := convert.Boxed(to)
			if from.IsArray() || !types.IsSubclass(b.m.hierarchy(), w.InternalName(), from.InternalName()) {
				fail(TypeMismatch, "%v", &convert.MismatchError{From: from, To: to})
			}
			v = &convItem{item: item{typ: w, deps: []Expr{v}}, checkcast: w,
				conv: convert.Conversion{Kind: convert.Identity, From: from, To: w}}
			from = w
		}
	}
	c, err := convert.Resolve(from, to)
	if err != nil {
		fail(TypeMismatch, "%v", err)
	}
	if k, ok := v.(*constItem); ok && c.Kind == convert.Widen {
		return Const(to, widenConst(k.value, to))
	}
	return &convItem{item: item{typ: to, deps: []Expr{v}}, conv: c}
}

// widenConst converts a primitive constant at generation time
func widenConst(v interface{}, to types.Type) interface{} {
	var f float64
	var i int64
	switch x := v.(type) {
	case int32:
		i, f = int64(x), float64(x)
	case int64:
		i, f = x, float64(x)
	case float32:
		f = float64(x)
	default:
		return v
	}
	switch to.Category() {
	case types.CatInt:
		return int32(i)
	case types.CatLong:
		return i
	case types.CatFloat:
		if x, ok := v.(int32); ok {
			return float32(x)
		}
		return float32(i)
	case types.CatDouble:
		return f
	}
	return v
}

func (b *Block) isNull(v Expr) bool {
	c, ok := v.(*constItem)
	return ok && c.value == nil
}

// cond checks that v can drive a branch and returns it as a boolean
func (b *Block) cond(v Expr) Expr {
	switch v.Type() {
	case types.Boolean:
		return v
	case types.Class("java/lang/Boolean"):
		return b.convert(v, types.Boolean)
	}
	fail(TypeMismatch, "condition has type %s, boolean expected", v.Type())
	return nil
}

// Convert returns v converted to t by identity, boxing, unboxing,
// widening or a reference cast
func (b *Block) Convert(v Expr, t types.Type) Expr {
	return b.convert(v, t)
}

// Box returns the primitive v boxed in its wrapper
func (b *Block) Box(v Expr) Expr {
	w, ok := convert.Boxed(v.Type())
	if !ok {
		fail(TypeMismatch, "cannot box %s", v.Type())
	}
	return b.convert(v, w)
}

// Unbox returns the primitive held by wrapper v
func (b *Block) Unbox(v Expr) Expr {
	p, ok := convert.Unboxed(v.Type())
	if !ok {
		fail(TypeMismatch, "cannot unbox %s", v.Type())
	}
	return b.convert(v, p)
}

// Cast returns v converted to t, narrowing primitives and checking
// references as a Java cast would
func (b *Block) Cast(v Expr, t types.Type) Expr {
	from := v.Type()
	switch {
	case from.IsPrimitive() && t.IsPrimitive():
		if from == types.Boolean || t == types.Boolean {
			if from != t {
				fail(TypeMismatch, "cannot cast %s to %s", from, t)
			}
			return v
		}
		return &castItem{item: item{typ: t, deps: []Expr{v}}, from: from, to: t}
	case from.IsReference() && t.IsPrimitive():
		return b.convert(v, t)
	case from.IsPrimitive() && t.IsReference():
		w, _ := convert.Boxed(from)
		if w != t {
			if p, ok := convert.Unboxed(t); ok {
				v = b.Cast(v, p)
			}
		}
		return b.convert(v, t)
	}
	return b.convert(v, t)
}

// InstanceOf tests whether reference v is an instance of t
func (b *Block) InstanceOf(v Expr, t types.Type) Expr {
	b.checkActive()
	if !v.Type().IsReference() || !t.IsReference() {
		fail(TypeMismatch, "instanceof needs reference types, have %s and %s", v.Type(), t)
	}
	return b.add(&instanceOfItem{item: item{typ: types.Boolean, deps: []Expr{v}}, class: t})
}
