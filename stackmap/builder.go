// Package stackmap is an abstract interpreter over verification types. It
// follows every instruction the assembler emits, tracks the operand stack
// and local variables, merges states where control flow joins and records
// one frame per merge point for the StackMapTable attribute.
package stackmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quarkusio/gizmo-sub001/types"
)

// Error is an internal consistency failure of the generated code:
// operand stack underflow, incompatible states at a join, or emission
// into unreachable code. Builder methods panic with *Error.
type Error struct {
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stack map: offset %d: %s", e.Offset, e.Msg)
}

// State is a snapshot of the abstract machine
type State struct {
	Stack     []VType
	Locals    []VType
	Reachable bool
}

func (s State) clone() State {
	return State{
		Stack:     append([]VType(nil), s.Stack...),
		Locals:    append([]VType(nil), s.Locals...),
		Reachable: s.Reachable,
	}
}

// String formats the state for traces
func (s State) String() string {
	return fmt.Sprintf("locals=[%s] stack=[%s]", join(Compact(s.Locals)), join(Compact(s.Stack)))
}

func join(vs []VType) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}

// Frame is the recorded state at one bytecode offset. Locals and Stack
// keep Wide2 sentinels; use Compact before encoding.
type Frame struct {
	Offset int
	Locals []VType
	Stack  []VType
}

// Builder tracks verification types during emission
type Builder struct {
	hierarchy types.Hierarchy
	cur       State
	pc        int
	incoming  map[int][]State
	bound     map[int]int
	pending   map[int]State
	frames    map[int]Frame
	maxStack  int
	maxLocals int
}

// NewBuilder starts a method whose parameters (including the receiver)
// occupy the given locals. Wide parameters are expanded automatically.
func NewBuilder(h types.Hierarchy, params []VType) *Builder {
	if h == nil {
		h = types.JDK
	}
	locals := Expand(params)
	return &Builder{
		hierarchy: h,
		cur:       State{Locals: locals, Reachable: true},
		incoming:  make(map[int][]State),
		bound:     make(map[int]int),
		pending:   make(map[int]State),
		frames:    make(map[int]Frame),
		maxLocals: len(locals),
	}
}

func (b *Builder) fail(format string, args ...interface{}) {
	panic(&Error{Offset: b.pc, Msg: fmt.Sprintf(format, args...)})
}

// At records the offset of the instruction about to be interpreted
func (b *Builder) At(offset int) {
	b.pc = offset
	if !b.cur.Reachable {
		b.fail("instruction emitted in unreachable code")
	}
}

// Reachable reports whether the current point can be reached
func (b *Builder) Reachable() bool {
	return b.cur.Reachable
}

// Kill marks the current point unreachable (after goto, return, athrow
// and switches)
func (b *Builder) Kill() {
	b.cur.Reachable = false
	b.cur.Stack = b.cur.Stack[:0]
}

// Save returns a copy of the current state
func (b *Builder) Save() State {
	return b.cur.clone()
}

// Restore replaces the current state with a saved one
func (b *Builder) Restore(s State) {
	b.cur = s.clone()
}

// Depth returns the current stack height in slots
func (b *Builder) Depth() int {
	return len(b.cur.Stack)
}

// Push pushes a value
func (b *Builder) Push(v VType) {
	b.cur.Stack = append(b.cur.Stack, v)
	if v.IsWide() {
		b.cur.Stack = append(b.cur.Stack, wideSecond)
	}
	if len(b.cur.Stack) > b.maxStack {
		b.maxStack = len(b.cur.Stack)
	}
}

// PushType pushes the verification type of t; void pushes nothing
func (b *Builder) PushType(t types.Type) {
	if t.IsVoid() {
		return
	}
	b.Push(Of(t))
}

// Pop pops one value (one or two slots)
func (b *Builder) Pop() VType {
	n := len(b.cur.Stack)
	if n == 0 {
		b.fail("operand stack underflow")
	}
	top := b.cur.Stack[n-1]
	if top.Tag == Wide2 {
		if n < 2 {
			b.fail("operand stack underflow")
		}
		v := b.cur.Stack[n-2]
		b.cur.Stack = b.cur.Stack[:n-2]
		return v
	}
	b.cur.Stack = b.cur.Stack[:n-1]
	return top
}

// PopSlots pops exactly n slots regardless of value boundaries (pop2 and
// the dup family operate on raw slots)
func (b *Builder) PopSlots(n int) []VType {
	if len(b.cur.Stack) < n {
		b.fail("operand stack underflow")
	}
	at := len(b.cur.Stack) - n
	out := append([]VType(nil), b.cur.Stack[at:]...)
	b.cur.Stack = b.cur.Stack[:at]
	return out
}

// PushSlots pushes raw slots previously obtained from PopSlots
func (b *Builder) PushSlots(vs []VType) {
	b.cur.Stack = append(b.cur.Stack, vs...)
	if len(b.cur.Stack) > b.maxStack {
		b.maxStack = len(b.cur.Stack)
	}
}

// PopN pops n values and returns them in push order
func (b *Builder) PopN(n int) []VType {
	out := make([]VType, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = b.Pop()
	}
	return out
}

// Peek returns the top value without popping it
func (b *Builder) Peek() VType {
	v := b.Pop()
	b.Push(v)
	return v
}

// Retype replaces the top value with a wider declared type of the same size
func (b *Builder) Retype(v VType) {
	old := b.Pop()
	if old.Size() != v.Size() {
		b.fail("retype changes value size: %s to %s", old, v)
	}
	b.Push(v)
}

// Store writes v to a local slot
func (b *Builder) Store(slot int, v VType) {
	need := slot + v.Size()
	for len(b.cur.Locals) < need {
		b.cur.Locals = append(b.cur.Locals, TopType)
	}
	locals := b.cur.Locals
	// overwriting the second half of a wide value kills the first half
	if locals[slot].Tag == Wide2 && slot > 0 {
		locals[slot-1] = TopType
	}
	// overwriting the first half of a wide value kills the second half
	if locals[slot].IsWide() && slot+1 < len(locals) && !v.IsWide() {
		locals[slot+1] = TopType
	}
	locals[slot] = v
	if v.IsWide() {
		if slot+2 < len(locals) && locals[slot+1].IsWide() {
			locals[slot+2] = TopType
		}
		locals[slot+1] = wideSecond
	}
	if len(locals) > b.maxLocals {
		b.maxLocals = len(locals)
	}
}

// Load returns the type held by a local slot
func (b *Builder) Load(slot int) VType {
	if slot >= len(b.cur.Locals) || b.cur.Locals[slot].Tag == Top || b.cur.Locals[slot].Tag == Wide2 {
		b.fail("load of unset local %d", slot)
	}
	return b.cur.Locals[slot]
}

// Locals returns a copy of the current locals
func (b *Builder) Locals() []VType {
	return append([]VType(nil), b.cur.Locals...)
}

// EndScope forgets every local at or above slot
func (b *Builder) EndScope(slot int) {
	if slot < len(b.cur.Locals) {
		b.cur.Locals = b.cur.Locals[:slot]
	}
}

// Forget clears the locals in [from, to). Locals at or above to stay
// live; when there are none the slice is cut at from.
func (b *Builder) Forget(from, to int) {
	if to >= len(b.cur.Locals) {
		b.EndScope(from)
		return
	}
	for i := from; i < to; i++ {
		b.cur.Locals[i] = TopType
	}
}

// InitObject replaces every occurrence of an uninitialized type with the
// initialized class after its constructor ran
func (b *Builder) InitObject(uninit VType, class string) {
	obj := ObjectType(class)
	for i, v := range b.cur.Stack {
		if v == uninit {
			b.cur.Stack[i] = obj
		}
	}
	for i, v := range b.cur.Locals {
		if v == uninit {
			b.cur.Locals[i] = obj
		}
	}
}

// Jump records a branch from the current point to label
func (b *Builder) Jump(label int) {
	if !b.cur.Reachable {
		b.fail("branch from unreachable code")
	}
	if offset, ok := b.bound[label]; ok {
		b.checkBackward(label, offset)
		return
	}
	b.incoming[label] = append(b.incoming[label], b.cur.clone())
}

// AddIncoming records an edge into label with an explicit state, as for
// exception handlers whose entry state is not the current one
func (b *Builder) AddIncoming(label int, s State) {
	s = s.clone()
	s.Reachable = true
	b.incoming[label] = append(b.incoming[label], s)
}

// HandlerState returns the entry state of an exception handler covering
// code that started with the given locals
func HandlerState(locals []VType, catchType string) State {
	return State{
		Locals:    append([]VType(nil), locals...),
		Stack:     []VType{ObjectType(catchType)},
		Reachable: true,
	}
}

// IsBound reports whether label has been bound
func (b *Builder) IsBound(label int) bool {
	_, ok := b.bound[label]
	return ok
}

// HasIncoming reports whether any recorded branch targets label
func (b *Builder) HasIncoming(label int) bool {
	return len(b.incoming[label]) > 0
}

// Bind places label at offset, merging every recorded branch into it
func (b *Builder) Bind(label, offset int) {
	b.pc = offset
	if _, ok := b.bound[label]; ok {
		b.fail("label L%d bound twice", label)
	}
	b.bound[label] = offset
	states := b.incoming[label]
	delete(b.incoming, label)

	if len(states) == 0 {
		if b.cur.Reachable {
			// fall-through only; a frame is needed if a backward branch arrives later
			if _, ok := b.frames[offset]; !ok {
				b.pending[label] = b.cur.clone()
			}
		}
		return
	}
	if b.cur.Reachable {
		states = append(states, b.cur)
	}
	if f, ok := b.frames[offset]; ok {
		states = append(states, State{Locals: f.Locals, Stack: f.Stack, Reachable: true})
	}
	merged := b.merge(states)
	b.frames[offset] = Frame{Offset: offset, Locals: merged.Locals, Stack: merged.Stack}
	b.cur = merged.clone()
}

// checkBackward validates a branch to an already bound label
func (b *Builder) checkBackward(label, offset int) {
	f, ok := b.frames[offset]
	if !ok {
		s, ok := b.pending[label]
		if !ok {
			b.fail("branch to L%d at %d which has no recorded state", label, offset)
		}
		f = Frame{Offset: offset, Locals: s.Locals, Stack: s.Stack}
		b.frames[offset] = f
		delete(b.pending, label)
	}
	if err := b.assignable(b.cur, f); err != "" {
		b.fail("backward branch to offset %d: %s", offset, err)
	}
}

// assignable reports why s cannot flow into frame f ("" if it can)
func (b *Builder) assignable(s State, f Frame) string {
	if len(s.Stack) != len(f.Stack) {
		return fmt.Sprintf("stack height %d, frame expects %d", len(s.Stack), len(f.Stack))
	}
	for i := range f.Stack {
		if !b.isAssignable(s.Stack[i], f.Stack[i]) {
			return fmt.Sprintf("stack slot %d holds %s, frame expects %s", i, s.Stack[i], f.Stack[i])
		}
	}
	for i, want := range f.Locals {
		have := TopType
		if i < len(s.Locals) {
			have = s.Locals[i]
		}
		if !b.isAssignable(have, want) {
			return fmt.Sprintf("local %d holds %s, frame expects %s", i, have, want)
		}
	}
	return ""
}

// IsAssignable reports whether a value of type from may flow where to is
// expected
func (b *Builder) isAssignable(from, to VType) bool {
	return IsAssignable(b.hierarchy, from, to)
}

// IsAssignable implements the verifier's assignability over verification
// types
func IsAssignable(h types.Hierarchy, from, to VType) bool {
	if from == to || to.Tag == Top {
		return true
	}
	if to.Tag == Object {
		switch from.Tag {
		case Null:
			return true
		case Object:
			return types.IsAssignable(h, types.TypeFromInternalName(from.Class), types.TypeFromInternalName(to.Class))
		}
	}
	return false
}

func (b *Builder) merge(states []State) State {
	out := states[0].clone()
	out.Reachable = true
	for _, s := range states[1:] {
		if len(s.Stack) != len(out.Stack) {
			b.fail("stack height mismatch at join: %d vs %d", len(out.Stack), len(s.Stack))
		}
		for i := range out.Stack {
			m, ok := b.mergeType(out.Stack[i], s.Stack[i])
			if !ok {
				b.fail("incompatible stack types at join: %s vs %s", out.Stack[i], s.Stack[i])
			}
			out.Stack[i] = m
		}
		n := len(out.Locals)
		if len(s.Locals) > n {
			n = len(s.Locals)
		}
		locals := make([]VType, n)
		for i := range locals {
			a, c := TopType, TopType
			if i < len(out.Locals) {
				a = out.Locals[i]
			}
			if i < len(s.Locals) {
				c = s.Locals[i]
			}
			m, ok := b.mergeType(a, c)
			if !ok {
				m = TopType
			}
			locals[i] = m
		}
		out.Locals = locals
	}
	// a second half whose first half did not survive is dead
	for i, v := range out.Locals {
		if v.Tag == Wide2 && (i == 0 || !out.Locals[i-1].IsWide()) {
			out.Locals[i] = TopType
		}
		if v.IsWide() && (i+1 >= len(out.Locals) || out.Locals[i+1].Tag != Wide2) {
			out.Locals[i] = TopType
		}
	}
	for len(out.Locals) > 0 && out.Locals[len(out.Locals)-1].Tag == Top {
		out.Locals = out.Locals[:len(out.Locals)-1]
	}
	return out
}

func (b *Builder) mergeType(a, c VType) (VType, bool) {
	if a == c {
		return a, true
	}
	switch {
	case a.Tag == Null && c.Tag == Object:
		return c, true
	case a.Tag == Object && c.Tag == Null:
		return a, true
	case a.Tag == Object && c.Tag == Object:
		return b.mergeObjects(a.Class, c.Class), true
	}
	return TopType, false
}

func (b *Builder) mergeObjects(x, y string) VType {
	tx, ty := types.TypeFromInternalName(x), types.TypeFromInternalName(y)
	if types.IsAssignable(b.hierarchy, tx, ty) && !b.hierarchy.IsInterface(y) {
		return ObjectType(y)
	}
	if types.IsAssignable(b.hierarchy, ty, tx) && !b.hierarchy.IsInterface(x) {
		return ObjectType(x)
	}
	if tx.IsArray() || ty.IsArray() {
		return ObjectType("java/lang/Object")
	}
	return ObjectType(types.CommonSuperClass(b.hierarchy, x, y))
}

// Frames returns the recorded frames ordered by offset
func (b *Builder) Frames() []Frame {
	out := make([]Frame, 0, len(b.frames))
	for _, f := range b.frames {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// FrameAt returns the frame recorded at offset, if any
func (b *Builder) FrameAt(offset int) (Frame, bool) {
	f, ok := b.frames[offset]
	return f, ok
}

// Unresolved returns labels that were branched to but never bound
func (b *Builder) Unresolved() []int {
	var out []int
	for l, s := range b.incoming {
		if len(s) > 0 {
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// MaxStack returns the maximum stack height in slots
func (b *Builder) MaxStack() int {
	return b.maxStack
}

// MaxLocals returns the number of local slots used
func (b *Builder) MaxLocals() int {
	return b.maxLocals
}
