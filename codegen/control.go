package codegen

import (
	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/types"
)

// If runs then when cond holds
func (b *Block) If(cond Expr, then func(*Block)) {
	b.ifElse(types.Void, cond, false, then, nil)
}

// IfNot runs then when cond does not hold
func (b *Block) IfNot(cond Expr, then func(*Block)) {
	b.ifElse(types.Void, cond, true, then, nil)
}

// IfElse runs then when cond holds and els otherwise
func (b *Block) IfElse(cond Expr, then, els func(*Block)) {
	b.ifElse(types.Void, cond, false, then, els)
}

// Cond is the conditional expression cond ? then : els. Both branches
// must Yield a value convertible to t.
func (b *Block) Cond(t types.Type, cond Expr, then, els func(*Block)) Expr {
	if t.IsVoid() {
		fail(InvalidState, "conditional expression of type void")
	}
	return b.ifElse(t, cond, false, then, els)
}

func (b *Block) ifElse(t types.Type, cond Expr, negate bool, then, els func(*Block)) *ifItem {
	b.checkActive()
	cond = b.cond(cond)
	it := &ifItem{item: item{typ: t}, negate: negate}
	if rel, ok := cond.(*relItem); ok && b.isLast(rel) {
		it.rel = rel
	} else {
		it.deps = []Expr{cond}
	}
	it.then = b.newChild(t)
	b.run(it.then, then)
	if els != nil || !t.IsVoid() {
		it.els = b.newChild(t)
		b.run(it.els, els)
	}
	if it.rel == nil {
		b.add(it)
		return it
	}
	// the jump takes over the comparison's node and operands
	b.checkActive()
	rel := it.rel
	rel.consumed = true
	it.bound = true
	it.block = b
	it.site = callerSite()
	it.node = rel.node
	it.first = rel.first
	it.deps = rel.deps
	b.list.replace(rel.node, it)
	b.m.trace.Item(b.depth, kindName(it), t, true)
	b.afterAdd(it)
	return it
}

// LogicalAnd returns x && rhs, evaluating rhs only when x holds
func (b *Block) LogicalAnd(x Expr, rhs func(*Block) Expr) Expr {
	return b.Cond(types.Boolean, x,
		func(t *Block) { t.Yield(rhs(t)) },
		func(f *Block) { f.Yield(Bool(false)) })
}

// LogicalOr returns x || rhs, evaluating rhs only when x does not hold
func (b *Block) LogicalOr(x Expr, rhs func(*Block) Expr) Expr {
	return b.Cond(types.Boolean, x,
		func(t *Block) { t.Yield(Bool(true)) },
		func(f *Block) { f.Yield(rhs(f)) })
}

// Block runs body in a nested scope
func (b *Block) Block(body func(*Block)) {
	b.checkActive()
	c := b.newChild(types.Void)
	b.run(c, body)
	b.add(&blockItem{item: item{typ: types.Void}, blk: c})
}

// BlockExpr runs body in a nested scope that yields a value of type t
func (b *Block) BlockExpr(t types.Type, body func(*Block)) Expr {
	b.checkActive()
	if t.IsVoid() {
		fail(InvalidState, "block expression of type void")
	}
	c := b.newChild(t)
	b.run(c, body)
	return b.add(&blockItem{item: item{typ: t}, blk: c})
}

// Loop runs body repeatedly: falling out of the body starts it again.
// Break(loop) leaves the loop.
func (b *Block) Loop(body func(loop *Block)) {
	b.checkActive()
	c := b.newChild(types.Void)
	c.loop = true
	b.run(c, func(lb *Block) {
		body(lb)
		if lb.Active() {
			lb.Redo(lb)
		}
	})
	b.add(&loopItem{item: item{typ: types.Void}, blk: c})
}

// While runs body as long as cond, evaluated before each pass, holds.
// The body block's parent is the loop: Break(body) continues with the
// next pass and Break(body.Parent()) leaves the loop.
func (b *Block) While(cond func(*Block) Expr, body func(*Block)) {
	b.Loop(func(lb *Block) {
		lb.IfNot(cond(lb), func(x *Block) { x.Break(lb) })
		lb.Block(body)
	})
}

// DoWhile runs body, then repeats while cond holds
func (b *Block) DoWhile(body func(*Block), cond func(*Block) Expr) {
	b.Loop(func(lb *Block) {
		lb.Block(body)
		if lb.Active() {
			lb.IfNot(cond(lb), func(x *Block) { x.Break(lb) })
		}
	})
}

// ForRange runs body for each int from from (inclusive) to to
// (exclusive), evaluating to once. Break(body) continues with the next
// value.
func (b *Block) ForRange(name string, from, to Expr, body func(*Block, *LocalVar)) {
	b.Block(func(outer *Block) {
		i := outer.LocalOf(name, types.Int, from)
		limit := outer.LocalOf("", types.Int, to)
		outer.Loop(func(lb *Block) {
			lb.IfNot(lb.Lt(i, limit), func(x *Block) { x.Break(lb) })
			lb.Block(func(ib *Block) { body(ib, i) })
			if lb.Active() {
				lb.Inc(i, 1)
			}
		})
	})
}

// ForEachArray runs body for each element of arr
func (b *Block) ForEachArray(name string, arr Expr, body func(*Block, *LocalVar)) {
	if !arr.Type().IsArray() {
		fail(TypeMismatch, "%s is not an array", arr.Type())
	}
	b.Block(func(outer *Block) {
		a := outer.Local("", arr)
		n := outer.LocalOf("", types.Int, outer.ArrayLen(a))
		idx := outer.LocalOf("", types.Int, Int(0))
		outer.Loop(func(lb *Block) {
			lb.IfNot(lb.Lt(idx, n), func(x *Block) { x.Break(lb) })
			lb.Block(func(ib *Block) {
				v := ib.Local(name, ib.ArrayGet(a, idx))
				body(ib, v)
			})
			if lb.Active() {
				lb.Inc(idx, 1)
			}
		})
	})
}

// exitKind is how control leaves through a try/finally
type exitKind int

const (
	exitBreak exitKind = iota
	exitRedo
	exitReturn
)

var exitNames = [...]string{"break", "redo", "return"}

// Break jumps to the end of target, which must be b or enclose it
func (b *Block) Break(target *Block) {
	b.jump(target, exitBreak)
}

// Redo jumps to the start of target, which must be b or enclose it
func (b *Block) Redo(target *Block) {
	b.jump(target, exitRedo)
}

func (b *Block) jump(target *Block, kind exitKind) {
	b.checkActive()
	if target == nil || !target.encloses(b) {
		fail(InvalidState, "%s target is not this block or an enclosing one", exitNames[kind])
	}
	if kind == exitBreak && !target.outType.IsVoid() {
		fail(InvalidState, "break out of a block of type %s", target.outType)
	}
	label := b.exitLabel(target, kind)
	b.add(&jumpItem{item: item{typ: types.Void}, label: label, what: exitNames[kind]})
}

// exitLabel resolves where a jump leaving for target lands: the first
// try/finally crossed on the way intercepts it
func (b *Block) exitLabel(target *Block, kind exitKind) bytecode.Label {
	if b.detached {
		return 0
	}
	for x := b; x != target && x != nil; x = x.parent {
		if x.finally != nil {
			return x.finally.exit(exitKey{target: target, kind: kind})
		}
	}
	switch kind {
	case exitBreak:
		target.breakTarget = true
		return target.end
	case exitRedo:
		return target.start
	}
	return 0
}

// Return returns from a void method
func (b *Block) Return() {
	b.checkActive()
	if !b.m.desc.Return.IsVoid() {
		fail(InvalidState, "return without value from method returning %s", b.m.desc.Return)
	}
	if label := b.exitLabel(nil, exitReturn); label != 0 {
		b.add(&jumpItem{item: item{typ: types.Void}, label: label, what: "return"})
		return
	}
	b.add(&returnItem{item: item{typ: types.Void}})
}

// ReturnValue returns v converted to the method's return type
func (b *Block) ReturnValue(v Expr) {
	b.checkActive()
	ret := b.m.desc.Return
	if ret.IsVoid() {
		fail(InvalidState, "return with value from void method")
	}
	v = b.convert(v, ret)
	if label := b.exitLabel(nil, exitReturn); label != 0 {
		t := b.retTemp()
		b.add(&storeItem{item: item{typ: types.Void, deps: []Expr{v}}, local: t})
		b.add(&jumpItem{item: item{typ: types.Void}, label: label, what: "return"})
		return
	}
	b.add(&returnItem{item: item{typ: types.Void, deps: []Expr{v}}})
}

// retTemp returns the return-value slot of the innermost try/finally
// enclosing b
func (b *Block) retTemp() *LocalVar {
	for x := b; x != nil; x = x.parent {
		if x.finally != nil {
			return x.finally.retTemp
		}
	}
	fail(Internal, "return through finally without a try")
	return nil
}

// Throw throws the Throwable v
func (b *Block) Throw(v Expr) {
	b.checkActive()
	if !v.Type().IsReference() || !types.IsAssignable(b.m.hierarchy(), v.Type(), types.Throwable) {
		fail(TypeMismatch, "cannot throw %s", v.Type())
	}
	b.add(&throwItem{item: item{typ: types.Void, deps: []Expr{v}}})
}

// ThrowNew throws a new instance of the exception class t built with a
// message
func (b *Block) ThrowNew(t types.Type, msg string) {
	ctor := types.MethodRef{Owner: t.InternalName(), Name: "<init>", Desc: types.NewMethodDesc(types.Void, types.String)}
	b.Throw(b.New(ctor, Str(msg)))
}
