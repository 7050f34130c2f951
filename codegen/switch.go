package codegen

import (
	"fmt"
	"math"
	"sort"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/types"
)

// EnumConst is an enum constant used as a case key. Ordinal is -1 when
// unknown; a switch whose keys all carry ordinals dispatches on
// ordinal(), otherwise on name().
type EnumConst struct {
	Name    string
	Ordinal int
}

func (e EnumConst) String() string { return e.Name }

type switchKind int

const (
	switchInt switchKind = iota
	switchString
	switchLong
	switchClass
	switchEnum
)

var (
	stringHashCode = types.MethodRef{Owner: "java/lang/String", Name: "hashCode", Desc: types.NewMethodDesc(types.Int)}
	stringEquals   = types.MethodRef{Owner: "java/lang/String", Name: "equals", Desc: types.NewMethodDesc(types.Boolean, types.Object)}
	classGetName   = types.MethodRef{Owner: "java/lang/Class", Name: "getName", Desc: types.NewMethodDesc(types.String)}
	enumName       = types.MethodRef{Owner: "java/lang/Enum", Name: "name", Desc: types.NewMethodDesc(types.String)}
	enumOrdinal    = types.MethodRef{Owner: "java/lang/Enum", Name: "ordinal", Desc: types.NewMethodDesc(types.Int)}
)

// Switch collects the cases of a switch under construction
type Switch struct {
	b      *Block
	blk    *Block
	kind   switchKind
	discr  Expr
	temp   *LocalVar
	out    types.Type
	cases  []*switchCase
	dflt   *Block
	seen   map[interface{}]bool
	byName bool
	closed bool
}

type switchCase struct {
	keys []interface{}
	blk  *Block
}

// Switch dispatches on discr to the case whose constants match it, or to
// the default. Cases do not fall through into each other.
func (b *Block) Switch(discr Expr, cases func(*Switch)) {
	b.buildSwitch(types.Void, discr, cases)
}

// SwitchExpr is a switch whose cases yield a value of type t. A default
// case is required.
func (b *Block) SwitchExpr(t types.Type, discr Expr, cases func(*Switch)) Expr {
	if t.IsVoid() {
		fail(InvalidState, "switch expression of type void")
	}
	return b.buildSwitch(t, discr, cases)
}

func (b *Block) buildSwitch(t types.Type, discr Expr, cases func(*Switch)) Expr {
	b.checkActive()
	s := &Switch{b: b, out: t, seen: make(map[interface{}]bool)}
	dt := discr.Type()
	unboxed := convert.UnboxedOrSelf(dt)
	switch {
	case unboxed == types.Int || unboxed == types.Short || unboxed == types.Char || unboxed == types.Byte:
		s.kind = switchInt
		s.discr = b.convert(discr, types.Int)
	case unboxed == types.Long:
		s.kind = switchLong
		s.temp = b.LocalOf("", types.Long, discr)
	case dt == types.String:
		s.kind = switchString
		s.temp = b.LocalOf("", dt, discr)
	case dt == types.JavaClass:
		s.kind = switchClass
		s.temp = b.LocalOf("", dt, discr)
	case dt.Kind() == types.KindReference && dt != types.Enum && types.IsSubclass(b.m.hierarchy(), dt.InternalName(), "java/lang/Enum"):
		s.kind = switchEnum
		s.temp = b.LocalOf("", dt, discr)
	default:
		fail(Unsupported, "switch on %s", dt)
	}

	s.blk = b.newChild(t)
	s.blk.state = stateNested
	b.state = stateNested
	cases(s)
	s.closed = true
	b.state = stateActive
	if !t.IsVoid() && s.dflt == nil {
		fail(InvalidState, "switch expression without default")
	}
	s.blk.closed = true
	b.m.nextSlot = s.blk.firstSlot

	var key Expr
	switch s.kind {
	case switchInt:
		key = s.discr
	case switchString:
		key = b.InvokeVirtual(stringHashCode, s.temp)
	case switchLong:
		key = b.Cast(b.Xor(s.temp, b.Ushr(s.temp, Int(32))), types.Int)
	case switchClass:
		key = b.InvokeVirtual(stringHashCode, b.InvokeVirtual(classGetName, s.temp))
	case switchEnum:
		if s.byName {
			key = b.InvokeVirtual(stringHashCode, b.InvokeVirtual(enumName, s.temp))
		} else {
			key = b.InvokeVirtual(enumOrdinal, s.temp)
		}
	}
	return b.add(&switchItem{item: item{typ: t, deps: []Expr{key}}, sw: s})
}

// Block returns the block enclosing the cases; Break(s.Block()) leaves
// the switch
func (s *Switch) Block() *Block {
	return s.blk
}

// Case adds a case matching any of keys. Keys are int (or int32, rune)
// for integral discriminants, int64 for long, string for String,
// types.Type for Class and EnumConst (or the constant name) for enums.
func (s *Switch) Case(body func(*Block), keys ...interface{}) {
	if s.closed {
		fail(InvalidState, "case added to a finished switch")
	}
	if len(keys) == 0 {
		fail(InvalidState, "case without constants")
	}
	c := &switchCase{}
	for _, k := range keys {
		nk := s.normalize(k)
		id := nk
		if e, ok := nk.(EnumConst); ok {
			id = e.Name
		}
		if s.seen[id] {
			fail(InvalidState, "duplicate case %v", k)
		}
		s.seen[id] = true
		c.keys = append(c.keys, nk)
	}
	c.blk = s.blk.newChild(s.out)
	if body != nil {
		body(c.blk)
	}
	c.blk.close()
	s.cases = append(s.cases, c)
}

// Default sets the body run when no case matches
func (s *Switch) Default(body func(*Block)) {
	if s.closed {
		fail(InvalidState, "default added to a finished switch")
	}
	if s.dflt != nil {
		fail(InvalidState, "switch has two defaults")
	}
	s.dflt = s.blk.newChild(s.out)
	if body != nil {
		body(s.dflt)
	}
	s.dflt.close()
}

// normalize checks a case key against the discriminant kind
func (s *Switch) normalize(k interface{}) interface{} {
	switch s.kind {
	case switchInt:
		var v int64
		switch x := k.(type) {
		case int:
			v = int64(x)
		case int32:
			v = int64(x)
		case int16:
			v = int64(x)
		case int8:
			v = int64(x)
		case uint16:
			v = int64(x)
		case uint8:
			v = int64(x)
		default:
			fail(TypeMismatch, "case %v (%T) for an int switch", k, k)
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			fail(TypeMismatch, "case %d out of int range", v)
		}
		return int32(v)
	case switchLong:
		switch x := k.(type) {
		case int:
			return int64(x)
		case int32:
			return int64(x)
		case int64:
			return x
		}
	case switchString:
		if x, ok := k.(string); ok {
			return x
		}
	case switchClass:
		if x, ok := k.(types.Type); ok && x.IsReference() {
			return x
		}
	case switchEnum:
		switch x := k.(type) {
		case EnumConst:
			if x.Ordinal < 0 {
				s.byName = true
			}
			return x
		case string:
			s.byName = true
			return EnumConst{Name: x, Ordinal: -1}
		}
	}
	fail(TypeMismatch, "case %v (%T) does not match the discriminant", k, k)
	return nil
}

func (s *Switch) fallsThrough() bool {
	if s.dflt == nil || s.blk.breakTarget || s.dflt.reachesEnd() {
		return true
	}
	for _, c := range s.cases {
		if c.blk.reachesEnd() {
			return true
		}
	}
	return false
}

// hashed reports whether dispatch goes through hash buckets
func (s *Switch) hashed() bool {
	return s.kind != switchInt && !(s.kind == switchEnum && !s.byName)
}

// hashOf returns the runtime hash the dispatch key of k has
func (s *Switch) hashOf(k interface{}) int32 {
	switch x := k.(type) {
	case int32:
		return x
	case int64:
		return types.LongHashCode(x)
	case string:
		return types.StringHashCode(x)
	case types.Type:
		return types.StringHashCode(types.ClassName(x))
	case EnumConst:
		if s.byName {
			return types.StringHashCode(x.Name)
		}
		return int32(x.Ordinal)
	}
	panic(fmt.Sprintf("codegen: no hash for %T", k))
}

// SelectTable reports whether a switch over keys should use tableswitch:
// the keys must fill at least 90% of the range they span
func SelectTable(keys []int32) bool {
	if len(keys) == 0 {
		return false
	}
	lo, hi := keys[0], keys[0]
	for _, k := range keys {
		if k < lo {
			lo = k
		}
		if k > hi {
			hi = k
		}
	}
	span := int64(hi) - int64(lo) + 1
	return 10*int64(len(keys)) >= 9*span
}

// dispatch emits tableswitch or lookupswitch over the int on the stack
func (g *gen) dispatch(keys []int32, targets []bytecode.Label, dflt bytecode.Label) {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return keys[idx[i]] < keys[idx[j]] })
	sk := make([]int32, len(keys))
	st := make([]bytecode.Label, len(keys))
	for i, j := range idx {
		sk[i], st[i] = keys[j], targets[j]
	}
	if !SelectTable(sk) {
		g.a.LookupSwitch(dflt, sk, st)
		return
	}
	lo, hi := sk[0], sk[len(sk)-1]
	table := make([]bytecode.Label, 0, int(hi-lo)+1)
	for i, k := 0, int64(lo); k <= int64(hi); k++ {
		if sk[i] == int32(k) {
			table = append(table, st[i])
			i++
			continue
		}
		table = append(table, dflt)
	}
	g.a.TableSwitch(lo, dflt, table)
}

// switchItem emits the dispatch (the key is on the stack), the cases and
// the default
func (g *gen) switchItem(it *switchItem) {
	s := it.sw
	a := g.a
	a.Bind(s.blk.start)
	dflt := s.blk.end
	if s.dflt != nil {
		dflt = s.dflt.start
	}

	if !s.hashed() {
		var keys []int32
		var targets []bytecode.Label
		seen := make(map[int32]bool)
		for _, c := range s.cases {
			for _, k := range c.keys {
				h := s.hashOf(k)
				if seen[h] {
					fail(InvalidState, "duplicate case %v", k)
				}
				seen[h] = true
				keys = append(keys, h)
				targets = append(targets, c.blk.start)
			}
		}
		g.dispatch(keys, targets, dflt)
	} else {
		type entry struct {
			key interface{}
			blk *Block
		}
		buckets := make(map[int32][]entry)
		var hashes []int32
		for _, c := range s.cases {
			for _, k := range c.keys {
				h := s.hashOf(k)
				if _, ok := buckets[h]; !ok {
					hashes = append(hashes, h)
				}
				buckets[h] = append(buckets[h], entry{key: k, blk: c.blk})
			}
		}
		labels := make([]bytecode.Label, len(hashes))
		for i := range hashes {
			labels[i] = a.NewLabel()
		}
		g.dispatch(hashes, labels, dflt)
		for i, h := range hashes {
			a.Bind(labels[i])
			for _, e := range buckets[h] {
				g.keyEquals(s, e.key, e.blk.start)
			}
			a.Goto(dflt)
		}
	}

	for _, c := range s.cases {
		g.block(c.blk)
		if a.Reachable() {
			a.Goto(s.blk.end)
		}
	}
	if s.dflt != nil {
		g.block(s.dflt)
	}
	a.Bind(s.blk.end)
}

// keyEquals jumps to target when the stored discriminant equals key
func (g *gen) keyEquals(s *Switch, key interface{}, target bytecode.Label) {
	a := g.a
	a.Load(s.temp.typ, s.temp.slot)
	switch k := key.(type) {
	case string:
		a.Const(k)
		a.Invoke(bytecode.INVOKEVIRTUAL, stringEquals)
		a.Jump(bytecode.IFNE, target)
	case int64:
		a.Const(k)
		a.Op(bytecode.LCMP)
		a.Jump(bytecode.IFEQ, target)
	case types.Type:
		a.Const(k)
		a.Jump(bytecode.IF_ACMPEQ, target)
	case EnumConst:
		a.Invoke(bytecode.INVOKEVIRTUAL, enumName)
		a.Const(k.Name)
		a.Invoke(bytecode.INVOKEVIRTUAL, stringEquals)
		a.Jump(bytecode.IFNE, target)
	}
}
