// Package convert decides how a value of one type is turned into another:
// identity, boxing, unboxing, primitive widening and their compositions.
// All functions are pure and safe for concurrent use.
package convert

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/types"
)

// Kind classifies a resolved conversion
type Kind int

const (
	Identity     Kind = iota
	Box               // primitive to its wrapper or a wrapper supertype
	Unbox             // wrapper to its primitive
	Widen             // primitive widening
	UnboxWiden        // wrapper to a primitive wider than the wrapped one
	WidenBox          // primitive widened, then boxed
	SameCategory      // no instructions; both types share a storage category
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case Identity:
		return "identity"
	case Box:
		return "box"
	case Unbox:
		return "unbox"
	case Widen:
		return "widen"
	case UnboxWiden:
		return "unbox-widen"
	case WidenBox:
		return "widen-box"
	case SameCategory:
		return "same-category"
	default:
		return "unknown"
	}
}

// StepOp is one primitive action of a conversion
type StepOp int

const (
	StepWiden StepOp = iota // primitive widening (may emit nothing within the int category)
	StepBox                 // invokestatic Wrapper.valueOf
	StepUnbox               // invokevirtual Wrapper.xxxValue
)

// Step converts From to To
type Step struct {
	Op   StepOp
	From types.Type
	To   types.Type
}

// Conversion is the result of Resolve
type Conversion struct {
	Kind  Kind
	From  types.Type
	To    types.Type
	Steps []Step
}

// IsNoop reports whether the conversion emits no instructions
func (c Conversion) IsNoop() bool {
	for _, s := range c.Steps {
		if s.Op != StepWiden || s.From.Category() != s.To.Category() {
			return false
		}
	}
	return true
}

// MismatchError reports two types with no conversion between them
type MismatchError struct {
	From types.Type
	To   types.Type
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
}

// Resolve finds the conversion from one type to another. It tries, in
// order: identity, boxing (possibly to a wrapper supertype), unboxing,
// widening, unbox-then-widen and widen-then-box. Failing all, two types of
// the same storage category convert without instructions; anything else is
// a *MismatchError.
func Resolve(from, to types.Type) (Conversion, error) {
	c := Conversion{From: from, To: to}
	if from == to {
		c.Kind = Identity
		return c, nil
	}
	if from.IsVoid() || to.IsVoid() {
		return c, &MismatchError{From: from, To: to}
	}

	// Boxing, including box-then-reference-widen
	if from.IsPrimitive() && to.IsReference() && boxesTo(from, to) {
		c.Kind = Box
		c.Steps = []Step{{Op: StepBox, From: from, To: wrappers[from]}}
		return c, nil
	}

	// Unboxing
	if from.IsReference() && to.IsPrimitive() {
		if p, ok := primitives[from]; ok && p == to {
			c.Kind = Unbox
			c.Steps = []Step{{Op: StepUnbox, From: from, To: p}}
			return c, nil
		}
	}

	// Widening
	if from.IsPrimitive() && to.IsPrimitive() && IsWidening(from, to) {
		c.Kind = Widen
		c.Steps = []Step{{Op: StepWiden, From: from, To: to}}
		return c, nil
	}

	// Unbox, then widen
	if from.IsReference() && to.IsPrimitive() {
		if p, ok := primitives[from]; ok && IsWidening(p, to) {
			c.Kind = UnboxWiden
			c.Steps = []Step{
				{Op: StepUnbox, From: from, To: p},
				{Op: StepWiden, From: p, To: to},
			}
			return c, nil
		}
	}

	// Widen, then box
	if from.IsPrimitive() && to.IsReference() {
		for _, w := range widenings[from] {
			if wrappers[w] == to {
				c.Kind = WidenBox
				c.Steps = []Step{
					{Op: StepWiden, From: from, To: w},
					{Op: StepBox, From: w, To: to},
				}
				return c, nil
			}
		}
	}

	if from.Category() == to.Category() {
		c.Kind = SameCategory
		return c, nil
	}
	return c, &MismatchError{From: from, To: to}
}

// UnboxedOrSelf returns the primitive wrapped by t, or t itself
func UnboxedOrSelf(t types.Type) types.Type {
	if p, ok := primitives[t]; ok {
		return p
	}
	return t
}

// UnaryPromote applies unary numeric promotion (JLS 5.6) after unboxing.
// ok is false for non-numeric types.
func UnaryPromote(t types.Type) (types.Type, bool) {
	switch UnboxedOrSelf(t) {
	case types.Byte, types.Short, types.Char, types.Int:
		return types.Int, true
	case types.Long:
		return types.Long, true
	case types.Float:
		return types.Float, true
	case types.Double:
		return types.Double, true
	default:
		return "", false
	}
}

// Promote applies binary numeric promotion (JLS 5.6) after unboxing both
// operands. Two booleans promote to boolean so logical bitwise operators
// can share the path. ok is false when either operand is not numeric.
func Promote(a, b types.Type) (types.Type, bool) {
	ua, ub := UnboxedOrSelf(a), UnboxedOrSelf(b)
	if ua == types.Boolean && ub == types.Boolean {
		return types.Boolean, true
	}
	pa, ok := UnaryPromote(ua)
	if !ok {
		return "", false
	}
	pb, ok := UnaryPromote(ub)
	if !ok {
		return "", false
	}
	switch {
	case pa == types.Double || pb == types.Double:
		return types.Double, true
	case pa == types.Float || pb == types.Float:
		return types.Float, true
	case pa == types.Long || pb == types.Long:
		return types.Long, true
	default:
		return types.Int, true
	}
}
