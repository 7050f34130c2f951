package codegen

import (
	"strings"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

var autoCloseableClose = types.MethodRef{
	Owner:     "java/lang/AutoCloseable",
	Name:      "close",
	Desc:      types.NewMethodDesc(types.Void),
	Interface: true,
}

// Try describes a try statement: a body, catch clauses and an optional
// finally. The callbacks run when the enclosing Block.Try returns.
type Try struct {
	b        *Block
	body     func(*Block)
	catches  []catchClause
	finally  func(*Block)
	hasFinal bool

	prot         *Block // protected region
	retTemp      *LocalVar
	exits        []*exitCopy
	fall         *Block
	throw        *Block
	done         bytecode.Label
	cleanupFalls bool
}

type catchClause struct {
	name  string
	types []types.Type
	fn    func(*Block, *LocalVar)
}

type catchBlock struct {
	types []types.Type
	blk   *Block
}

// exitKey identifies one way out of a protected region
type exitKey struct {
	target *Block
	kind   exitKind
}

// exitCopy is the cleanup code run on one exit
type exitCopy struct {
	key   exitKey
	label bytecode.Label
	blk   *Block
}

// Body sets the protected code
func (t *Try) Body(body func(*Block)) {
	if t.body != nil {
		fail(InvalidState, "try has two bodies")
	}
	if body == nil {
		body = func(*Block) {}
	}
	t.body = body
}

// Catch adds a handler for the given Throwable types (Throwable when
// none are given). The caught exception is stored in a local named name.
func (t *Try) Catch(name string, body func(*Block, *LocalVar), exceptions ...types.Type) {
	if t.hasFinal {
		fail(InvalidState, "catch after finally")
	}
	if len(exceptions) == 0 {
		exceptions = []types.Type{types.Throwable}
	}
	for _, e := range exceptions {
		if !e.IsReference() || !types.IsAssignable(t.b.m.hierarchy(), e, types.Throwable) {
			fail(TypeMismatch, "cannot catch %s", e)
		}
	}
	t.catches = append(t.catches, catchClause{name: name, types: exceptions, fn: body})
}

// Finally sets the cleanup code run however control leaves the body
func (t *Try) Finally(cleanup func(*Block)) {
	if t.hasFinal {
		fail(InvalidState, "try has two finally blocks")
	}
	if cleanup == nil {
		cleanup = func(*Block) {}
	}
	t.hasFinal = true
	t.finally = cleanup
}

// Try builds a try statement described by fn
func (b *Block) Try(fn func(*Try)) {
	b.checkActive()
	t := &Try{b: b}
	b.state = stateNested
	fn(t)
	b.state = stateActive
	if t.body == nil {
		fail(InvalidState, "try without body")
	}
	switch {
	case t.hasFinal:
		b.add(b.tryFinally(t))
	case len(t.catches) > 0:
		b.add(b.tryCatch(t.body, t.catches))
	default:
		b.Block(t.body)
	}
}

func (b *Block) tryCatch(body func(*Block), catches []catchClause) *tryCatchItem {
	it := &tryCatchItem{item: item{typ: types.Void}}
	it.body = b.newChild(types.Void)
	b.run(it.body, body)
	h := b.m.hierarchy()
	for _, c := range catches {
		c := c
		common := c.types[0].InternalName()
		for _, e := range c.types[1:] {
			common = types.CommonSuperClass(h, common, e.InternalName())
		}
		ct := types.Class(common)
		blk := b.newChild(types.Void)
		in := &inputItem{item: item{typ: ct}}
		blk.input = in
		b.run(blk, func(cb *Block) {
			cb.add(in)
			l := cb.LocalOf(c.name, ct, in)
			if c.fn != nil {
				c.fn(cb, l)
			}
		})
		it.catches = append(it.catches, &catchBlock{types: c.types, blk: blk})
	}
	return it
}

// tryFinally builds the protected region and one cleanup copy per exit:
// fall-through, every break, redo or return target crossing the region,
// and the catch-all for exceptions
func (b *Block) tryFinally(t *Try) *tryFinallyItem {
	if ret := b.m.desc.Return; !ret.IsVoid() && !b.detached {
		t.retTemp = b.declare("", ret)
	}
	t.prot = b.newChild(types.Void)
	t.prot.finally = t
	b.run(t.prot, func(p *Block) {
		if len(t.catches) > 0 {
			p.add(p.tryCatch(t.body, t.catches))
			return
		}
		t.body(p)
	})

	// the template is built once to learn whether cleanup falls through
	tpl := b.newChild(types.Void)
	tpl.detached = true
	b.run(tpl, t.finally)
	t.cleanupFalls = tpl.reachesEnd()

	if t.prot.reachesEnd() {
		t.fall = b.newChild(types.Void)
		b.run(t.fall, t.finally)
	}
	for _, ex := range t.exits {
		ex := ex
		ex.blk = b.newChild(types.Void)
		ex.blk.start = ex.label
		b.run(ex.blk, func(c *Block) {
			c.Block(t.finally)
			if t.cleanupFalls && c.Active() {
				t.replay(c, ex.key)
			}
		})
	}
	t.throw = b.newChild(types.Void)
	in := &inputItem{item: item{typ: types.Throwable}}
	t.throw.input = in
	b.run(t.throw, func(c *Block) {
		c.add(in)
		exc := c.LocalOf("", types.Throwable, in)
		c.Block(t.finally)
		if t.cleanupFalls && c.Active() {
			c.Throw(exc)
		}
	})
	t.done = b.m.labels.New()
	return &tryFinallyItem{item: item{typ: types.Void}, t: t}
}

// exit returns the label of the cleanup copy for key, registering it on
// first use
func (t *Try) exit(key exitKey) bytecode.Label {
	for _, ex := range t.exits {
		if ex.key == key {
			return ex.label
		}
	}
	ex := &exitCopy{key: key, label: t.b.m.labels.New()}
	t.exits = append(t.exits, ex)
	return ex.label
}

// replay issues the original action of an exit from the try's enclosing
// scope, where an outer finally may intercept it in turn
func (t *Try) replay(c *Block, key exitKey) {
	switch key.kind {
	case exitBreak:
		c.Break(key.target)
	case exitRedo:
		c.Redo(key.target)
	case exitReturn:
		if t.retTemp != nil {
			c.ReturnValue(t.retTemp)
		} else {
			c.Return()
		}
	}
}

func (t *Try) fallsThrough() bool {
	return t.fall != nil && t.fall.reachesEnd()
}

// Synchronized runs body holding the monitor of obj, releasing it however
// body is left
func (b *Block) Synchronized(obj Expr, body func(*Block)) {
	if !obj.Type().IsReference() {
		fail(TypeMismatch, "synchronized on primitive %s", obj.Type())
	}
	b.Block(func(s *Block) {
		lock := s.Local("", obj)
		s.MonitorEnter(lock)
		s.Try(func(t *Try) {
			t.Body(body)
			t.Finally(func(f *Block) { f.MonitorExit(lock) })
		})
	})
}

// AutoClose stores resource in a local named name, runs body and closes
// the resource afterwards when it is not null
func (b *Block) AutoClose(name string, resource Expr, body func(*Block, *LocalVar)) {
	if !resource.Type().IsReference() {
		fail(TypeMismatch, "resource of primitive type %s", resource.Type())
	}
	b.Block(func(s *Block) {
		r := s.Local(name, resource)
		s.Try(func(t *Try) {
			t.Body(func(tb *Block) { body(tb, r) })
			t.Finally(func(f *Block) {
				f.If(f.IsNotNull(r), func(x *Block) { x.InvokeInterface(autoCloseableClose, r) })
			})
		})
	})
}

// spilled is an operand saved in a local across a try
type spilled struct {
	typ  types.Type
	v    stackmap.VType
	slot int
}

// spill moves the operands pending under a try into fresh locals above
// every declared slot, since a handler starts with an empty stack. The
// returned func reloads them once the try has ended.
func (g *gen) spill() (reload func()) {
	a := g.a
	f := a.Frames()
	base := g.spillTop
	var vals []spilled
	for _, v := range f.Save().Stack {
		switch v.Tag {
		case stackmap.Wide2:
			continue
		case stackmap.Uninitialized, stackmap.UninitializedThis:
			fail(Unsupported, "try inside the arguments of a constructor call")
		}
		vals = append(vals, spilled{typ: valueType(v), v: v, slot: g.spillTop})
		g.spillTop += v.Size()
	}
	if g.spillTop > 0xffff {
		fail(Unsupported, "too many locals")
	}
	for i := len(vals) - 1; i >= 0; i-- {
		a.Store(vals[i].typ, vals[i].slot)
		// keep the exact type, null included
		f.Store(vals[i].slot, vals[i].v)
	}
	return func() {
		if a.Reachable() {
			for _, s := range vals {
				a.Load(s.typ, s.slot)
			}
		}
		f.EndScope(base)
		g.spillTop = base
	}
}

// valueType is a field type that loads and stores v
func valueType(v stackmap.VType) types.Type {
	switch v.Tag {
	case stackmap.Integer:
		return types.Int
	case stackmap.Float:
		return types.Float
	case stackmap.Long:
		return types.Long
	case stackmap.Double:
		return types.Double
	case stackmap.Object:
		if strings.HasPrefix(v.Class, "[") {
			return types.Type(v.Class)
		}
		return types.Class(v.Class)
	}
	return types.Object
}

// tryCatchItem emits the body, then each handler
func (g *gen) tryCatchItem(it *tryCatchItem) {
	a := g.a
	reload := g.spill()
	locals := a.Frames().Locals()
	for _, c := range it.catches {
		for _, e := range c.types {
			a.Frames().AddIncoming(int(c.blk.start), stackmap.HandlerState(locals, e.InternalName()))
		}
	}
	g.block(it.body)
	end := a.NewLabel()
	if a.Reachable() {
		a.Goto(end)
	}
	for i, c := range it.catches {
		for _, e := range c.types {
			a.Handler(it.body.start, it.body.end, c.blk.start, e.InternalName())
		}
		g.block(c.blk)
		if a.Reachable() && i < len(it.catches)-1 {
			a.Goto(end)
		}
	}
	a.Bind(end)
	reload()
}

// tryFinallyItem emits the protected region, the fall-through copy, the
// exit copies and the catch-all copy
func (g *gen) tryFinallyItem(it *tryFinallyItem) {
	t := it.t
	a := g.a
	reload := g.spill()
	locals := a.Frames().Locals()
	a.Frames().AddIncoming(int(t.throw.start), stackmap.HandlerState(locals, "java/lang/Throwable"))
	g.block(t.prot)
	if t.fall != nil {
		g.block(t.fall)
		if a.Reachable() {
			a.Goto(t.done)
		}
	}
	for _, ex := range t.exits {
		g.block(ex.blk)
	}
	a.Handler(t.prot.start, t.prot.end, t.throw.start, "")
	g.block(t.throw)
	a.Bind(t.done)
	reload()
}
