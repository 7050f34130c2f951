package codegen

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Expr is a value or statement of a method body. Every builder returns
// one; an Expr must be consumed at most once. The set of implementations
// is closed.
type Expr interface {
	Type() types.Type
	base() *item
}

// item holds what every Expr shares. A bound item sits in the list of
// the block it was created in, with its dependencies placed immediately
// before it; an unbound item is placed at the point of use.
type item struct {
	typ      types.Type
	bound    bool
	deps     []Expr
	block    *Block
	node     nodeID // position of a bound item
	first    nodeID // leftmost node of the item and its dependencies
	consumed bool
	site     string
}

// Type returns the value type, types.Void for statements
func (it *item) Type() types.Type { return it.typ }

func (it *item) base() *item { return it }

// Unbound values

type constItem struct {
	item
	value interface{}
}

// LocalVar is a local variable slot. Reading a LocalVar as an Expr loads
// its current value at the point of use.
type LocalVar struct {
	item
	name  string
	slot  int
	owner *Block
	start bytecode.Label
	param bool
}

// Name returns the declared name, "" for compiler temporaries
func (l *LocalVar) Name() string { return l.name }

// Slot returns the local variable index
func (l *LocalVar) Slot() int { return l.slot }

type staticGetItem struct {
	item
	field types.FieldRef
}

// allocItem pushes a new uninitialized instance twice (new, dup); the
// constructor call consumes one copy
type allocItem struct {
	item
	class string
}

type convItem struct {
	item
	conv      convert.Conversion
	checkcast types.Type
}

// Bound values

// inputItem is the value a block starts with (a caught exception)
type inputItem struct {
	item
}

type arithItem struct {
	item
	op bytecode.Opcode // int form
}

type negItem struct {
	item
}

// cmpOp is a relational operator
type cmpOp int

const (
	opEq cmpOp = iota
	opNe
	opLt
	opGe
	opGt
	opLe
	opNull
	opNonNull
)

var cmpNames = [...]string{"==", "!=", "<", ">=", ">", "<=", "== null", "!= null"}

func (o cmpOp) String() string { return cmpNames[o] }

// negate returns the operator testing the opposite condition
func (o cmpOp) negate() cmpOp { return o ^ 1 }

type relItem struct {
	item
	op      cmpOp
	operand types.Type // promoted operand type
}

type notItem struct {
	item
}

type castItem struct {
	item
	from, to types.Type
}

type instanceOfItem struct {
	item
	class types.Type
}

type invokeItem struct {
	item
	op     bytecode.Opcode
	method types.MethodRef
}

// ctorItem calls a constructor on a fresh allocation and leaves the
// initialized instance
type ctorItem struct {
	item
	method types.MethodRef
}

type fieldGetItem struct {
	item
	field types.FieldRef
}

type fieldPutItem struct {
	item
	field  types.FieldRef
	static bool
}

type storeItem struct {
	item
	local   *LocalVar
	declare bool
}

type incItem struct {
	item
	local *LocalVar
	delta int
}

type newArrayItem struct {
	item
	elem types.Type
}

type arrayGetItem struct {
	item
	elem types.Type
}

type arraySetItem struct {
	item
	elem types.Type
}

type arrayLenItem struct {
	item
}

type monitorItem struct {
	item
	enter bool
}

type popItem struct {
	item
	popped types.Type
}

type yieldItem struct {
	item
	out types.Type
}

type returnItem struct {
	item
}

type throwItem struct {
	item
}

// jumpItem leaves the current block for a label resolved when the jump
// was built: an enclosing block's start or end, or a cleanup copy
type jumpItem struct {
	item
	label bytecode.Label
	what  string
}

type lineItem struct {
	item
	line int
}

type nopItem struct {
	item
}

// Control items

type ifItem struct {
	item
	rel       *relItem // condition fused into the branch
	negate    bool
	then, els *Block
}

type blockItem struct {
	item
	blk *Block
}

type loopItem struct {
	item
	blk *Block
}

type switchItem struct {
	item
	sw *Switch
}

type tryCatchItem struct {
	item
	body    *Block
	catches []*catchBlock
}

type tryFinallyItem struct {
	item
	t *Try
}

// kindName names an item for traces and error messages
func kindName(e Expr) string {
	switch x := e.(type) {
	case *constItem:
		return fmt.Sprintf("const %v", x.value)
	case *LocalVar:
		if x.name == "" {
			return fmt.Sprintf("local #%d", x.slot)
		}
		return "local " + x.name
	case *staticGetItem:
		return "getstatic " + x.field.Name
	case *allocItem:
		return "new " + x.class
	case *convItem:
		return "convert " + x.conv.Kind.String()
	case *inputItem:
		return "input"
	case *arithItem:
		return x.op.String()
	case *negItem:
		return "neg"
	case *relItem:
		return "cmp " + x.op.String()
	case *notItem:
		return "not"
	case *castItem:
		return "cast"
	case *instanceOfItem:
		return "instanceof"
	case *invokeItem:
		return "invoke " + x.method.Name
	case *ctorItem:
		return "construct " + x.method.Owner
	case *fieldGetItem:
		return "getfield " + x.field.Name
	case *fieldPutItem:
		return "putfield " + x.field.Name
	case *storeItem:
		return "store " + x.local.name
	case *incItem:
		return "inc " + x.local.name
	case *newArrayItem:
		return "newarray"
	case *arrayGetItem:
		return "aload"
	case *arraySetItem:
		return "astore"
	case *arrayLenItem:
		return "arraylength"
	case *monitorItem:
		if x.enter {
			return "monitorenter"
		}
		return "monitorexit"
	case *popItem:
		return "pop"
	case *yieldItem:
		return "yield"
	case *returnItem:
		return "return"
	case *throwItem:
		return "throw"
	case *jumpItem:
		return x.what
	case *lineItem:
		return fmt.Sprintf("line %d", x.line)
	case *nopItem:
		return "nop"
	case *ifItem:
		return "if"
	case *blockItem:
		return "block"
	case *loopItem:
		return "loop"
	case *switchItem:
		return "switch"
	case *tryCatchItem:
		return "try-catch"
	case *tryFinallyItem:
		return "try-finally"
	}
	return fmt.Sprintf("%T", e)
}

// Constants. Constants are unbound and may be used once each.

// Int returns an int constant
func Int(v int) Expr { return Const(types.Int, int32(v)) }

// Long returns a long constant
func Long(v int64) Expr { return Const(types.Long, v) }

// Float returns a float constant
func Float(v float32) Expr { return Const(types.Float, v) }

// Double returns a double constant
func Double(v float64) Expr { return Const(types.Double, v) }

// Bool returns a boolean constant
func Bool(v bool) Expr { return Const(types.Boolean, v) }

// Char returns a char constant
func Char(c rune) Expr { return Const(types.Char, int32(uint16(c))) }

// Str returns a String constant
func Str(s string) Expr { return Const(types.String, s) }

// Null returns the null reference typed as t
func Null(t types.Type) Expr {
	if !t.IsReference() {
		fail(TypeMismatch, "null cannot have primitive type %s", t)
	}
	return Const(t, nil)
}

// ClassOf returns the java.lang.Class literal for t
func ClassOf(t types.Type) Expr { return Const(types.JavaClass, t) }

// Const returns a constant of type t. v must be int32 for the int
// category, int64, float32, float64, bool, string, a types.Type (class
// literal) or nil.
func Const(t types.Type, v interface{}) Expr {
	switch v.(type) {
	case int32, int64, float32, float64, bool, string, types.Type, nil:
	default:
		fail(TypeMismatch, "unsupported constant %v (%T)", v, v)
	}
	return &constItem{item: item{typ: t}, value: v}
}
