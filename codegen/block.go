package codegen

import (
	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/types"
)

type blockState int

const (
	stateActive    blockState = iota // accepting items
	stateNested                      // a nested block is being built
	stateExited                      // ended with a jump out of the block
	stateExitedAll                   // ended with return or throw
)

// Block is a lexical scope of a method body. Items are appended through
// its builder methods; a block accepts items only while it is the
// innermost one under construction.
type Block struct {
	m         *method
	parent    *Block
	list      *nodeList
	start     bytecode.Label
	end       bytecode.Label
	input     Expr
	outType   types.Type
	firstSlot int
	state     blockState
	closed    bool
	depth     int

	breakTarget bool // something jumps to end
	yielded     bool
	loop        bool
	finally     *Try // this block is the protected region of a try/finally
	detached    bool // built only to inspect it; never emitted
	locals      []*LocalVar
}

func (b *Block) newChild(out types.Type) *Block {
	if out == "" {
		out = types.Void
	}
	return &Block{
		m:         b.m,
		parent:    b,
		list:      newNodeList(),
		start:     b.m.labels.New(),
		end:       b.m.labels.New(),
		outType:   out,
		firstSlot: b.m.nextSlot,
		depth:     b.depth + 1,
		detached:  b.detached,
	}
}

// run builds c with fn while b waits in the nested state
func (b *Block) run(c *Block, fn func(*Block)) {
	b.state = stateNested
	if fn != nil {
		fn(c)
	}
	c.close()
	b.state = stateActive
}

// Parent returns the enclosing block, nil for the method body
func (b *Block) Parent() *Block {
	return b.parent
}

// Input returns the value the block starts with, nil for most blocks
func (b *Block) Input() Expr {
	return b.input
}

// Active reports whether items may still be appended to the block: it is
// the innermost block under construction and has not exited
func (b *Block) Active() bool {
	return !b.closed && b.state == stateActive && !b.yielded
}

// checkActive rejects an append to a block that cannot take one
func (b *Block) checkActive() {
	switch {
	case b.closed:
		fail(InvalidState, "block is already complete")
	case b.state == stateNested:
		fail(InvalidState, "block is waiting for a nested block")
	case b.state == stateExited || b.state == stateExitedAll:
		fail(InvalidState, "unreachable code: block already exited")
	case b.yielded:
		fail(InvalidState, "block already yielded its value")
	}
}

// fallsOut reports whether control can reach the end of the block by
// running off its last item
func (b *Block) fallsOut() bool {
	return b.state == stateActive || b.state == stateNested
}

// reachesEnd reports whether control can arrive at the block's end label
func (b *Block) reachesEnd() bool {
	return b.fallsOut() || b.breakTarget
}

// encloses reports whether b is x or one of x's ancestors
func (b *Block) encloses(x *Block) bool {
	for ; x != nil; x = x.parent {
		if x == b {
			return true
		}
	}
	return false
}

// add appends a bound item, placing its dependencies right before it
func (b *Block) add(e Expr) Expr {
	b.checkActive()
	it := e.base()
	it.bound = true
	it.block = b
	it.site = callerSite()
	it.node = b.list.insertBefore(tailNode, e)
	it.first = it.node
	for i := len(it.deps) - 1; i >= 0; i-- {
		it.first = b.process(it.deps[i], it.first)
	}
	b.m.trace.Item(b.depth, kindName(e), it.typ, true)
	b.afterAdd(e)
	return e
}

// afterAdd updates the block state once e is in place
func (b *Block) afterAdd(e Expr) {
	if fallsThrough(e) {
		return
	}
	switch e.(type) {
	case *returnItem, *throwItem:
		b.state = stateExitedAll
	default:
		b.state = stateExited
	}
}

// process places dependency e immediately before the node at and returns
// the leftmost node of e's subtree. A bound dependency must already be
// there; an unbound one is materialized on the spot.
func (b *Block) process(e Expr, at nodeID) nodeID {
	it := e.base()
	if it.bound {
		if it.consumed {
			fail(Internal, "item %s (created at %s) used twice", kindName(e), it.site)
		}
		if it.block != b || b.list.prev(at) != it.node {
			fail(Internal, "item %s not at expected location (created at %s)", kindName(e), it.site)
		}
		it.consumed = true
		return it.first
	}
	if l, ok := e.(*LocalVar); ok {
		b.checkScope(l)
	}
	id := b.list.insertBefore(at, e)
	first := id
	for i := len(it.deps) - 1; i >= 0; i-- {
		first = b.process(it.deps[i], first)
	}
	return first
}

// isLast reports whether e is the final, unconsumed item of the block
func (b *Block) isLast(e Expr) bool {
	it := e.base()
	return it.bound && !it.consumed && it.block == b && b.list.last() == it.node
}

// close finishes construction: unused values are discarded and the
// block's slots become available again
func (b *Block) close() {
	if b.closed {
		return
	}
	if !b.outType.IsVoid() && b.fallsOut() && !b.yielded {
		fail(InvalidState, "block of type %s ends without yielding a value", b.outType)
	}
	b.finalize()
	b.closed = true
	b.m.nextSlot = b.firstSlot
}

// finalize inserts a pop after every bound value nothing consumed
func (b *Block) finalize() {
	for id := b.list.last(); id != headNode; id = b.list.prev(id) {
		e := b.list.get(id)
		it := e.base()
		if !it.bound || it.consumed || it.typ.IsVoid() || it.block != b || it.node != id {
			continue
		}
		it.consumed = true
		b.list.insertAfter(id, &popItem{item: item{typ: types.Void, bound: true, block: b, consumed: true}, popped: it.typ})
	}
}

// fallsThrough reports whether control continues after e
func fallsThrough(e Expr) bool {
	switch x := e.(type) {
	case *jumpItem, *returnItem, *throwItem:
		return false
	case *ifItem:
		if x.els == nil {
			return true
		}
		return x.then.reachesEnd() || x.els.reachesEnd()
	case *blockItem:
		return x.blk.reachesEnd()
	case *loopItem:
		return x.blk.breakTarget
	case *switchItem:
		return x.sw.fallsThrough()
	case *tryCatchItem:
		if x.body.reachesEnd() {
			return true
		}
		for _, c := range x.catches {
			if c.blk.reachesEnd() {
				return true
			}
		}
		return false
	case *tryFinallyItem:
		return x.t.fallsThrough()
	}
	return true
}

// checkScope rejects a local used outside the block that declared it
func (b *Block) checkScope(l *LocalVar) {
	if l.owner == nil || l.owner.m != b.m {
		fail(InvalidState, "local %q belongs to another method", l.name)
	}
	if !l.owner.encloses(b) {
		fail(InvalidState, "local %q used outside its scope", l.name)
	}
}

// declare allocates a slot for a local of type t in b
func (b *Block) declare(name string, t types.Type) *LocalVar {
	if t.IsVoid() {
		fail(TypeMismatch, "local %q cannot be void", name)
	}
	if name != "" {
		for _, p := range b.m.params {
			if p.name == name {
				fail(InvalidState, "local %q redeclares a parameter", name)
			}
		}
		for _, l := range b.locals {
			if l.name == name {
				fail(InvalidState, "local %q already declared in this block", name)
			}
		}
	}
	l := &LocalVar{
		item:  item{typ: t},
		name:  name,
		slot:  b.m.nextSlot,
		owner: b,
	}
	if name != "" {
		l.start = b.m.labels.New()
	}
	b.m.nextSlot += t.Slots()
	if b.m.nextSlot > 0xffff {
		fail(Unsupported, "too many locals")
	}
	if b.m.nextSlot > b.m.maxSlot {
		b.m.maxSlot = b.m.nextSlot
	}
	b.locals = append(b.locals, l)
	return l
}

// Local declares a local variable initialized with v and typed as v
func (b *Block) Local(name string, v Expr) *LocalVar {
	return b.LocalOf(name, v.Type(), v)
}

// LocalOf declares a local variable of type t initialized with v
func (b *Block) LocalOf(name string, t types.Type, v Expr) *LocalVar {
	b.checkActive()
	v = b.convert(v, t)
	l := b.declare(name, t)
	b.add(&storeItem{item: item{typ: types.Void, deps: []Expr{v}}, local: l, declare: true})
	return l
}

// Set assigns v to l
func (b *Block) Set(l *LocalVar, v Expr) {
	b.checkActive()
	b.checkScope(l)
	v = b.convert(v, l.typ)
	b.add(&storeItem{item: item{typ: types.Void, deps: []Expr{v}}, local: l})
}

// Inc adds delta to a numeric local
func (b *Block) Inc(l *LocalVar, delta int) {
	b.checkActive()
	b.checkScope(l)
	if l.typ == types.Int && delta >= -32768 && delta <= 32767 {
		b.add(&incItem{item: item{typ: types.Void}, local: l, delta: delta})
		return
	}
	b.Set(l, b.Add(l, Int(delta)))
}

// This returns the receiver of an instance method
func (b *Block) This() *LocalVar {
	if b.m.static {
		fail(InvalidState, "static method %s has no receiver", b.m.name)
	}
	return b.m.params[0]
}

// Param returns the named parameter
func (b *Block) Param(name string) *LocalVar {
	for _, p := range b.m.params {
		if p.name == name && (b.m.static || p != b.m.params[0]) {
			return p
		}
	}
	fail(InvalidState, "method %s has no parameter %q", b.m.name, name)
	return nil
}

// Line attaches the following items to a source line
func (b *Block) Line(n int) {
	b.checkActive()
	// a marker with no code after it is superseded
	if id := b.list.last(); id != headNode {
		if _, ok := b.list.get(id).(*lineItem); ok {
			b.list.remove(id)
		}
	}
	b.add(&lineItem{item: item{typ: types.Void}, line: n})
}

// Nop emits a nop instruction
func (b *Block) Nop() {
	b.add(&nopItem{item: item{typ: types.Void}})
}

// Yield makes v the value of a block whose type is not void. Nothing may
// follow it.
func (b *Block) Yield(v Expr) {
	b.checkActive()
	if b.outType.IsVoid() {
		fail(InvalidState, "yield in a block without a value")
	}
	v = b.convert(v, b.outType)
	b.add(&yieldItem{item: item{typ: types.Void, deps: []Expr{v}}, out: b.outType})
	b.yielded = true
}
