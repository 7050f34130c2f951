package codegen

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

// gen lowers a finished block tree into instructions
type gen struct {
	a    *bytecode.Assembler
	m    *method
	nops bool
	// spillTop is the next free slot for operands saved across a try
	spillTop int
}

// block emits b between its start and end labels
func (g *gen) block(b *Block) {
	a := g.a
	if b.detached {
		fail(Internal, "detached block emitted")
	}
	a.Bind(b.start)
	if g.nops && a.Reachable() {
		a.Nop()
	}
	b.list.each(func(_ nodeID, e Expr) {
		g.emit(e)
	})
	a.Frames().Forget(b.firstSlot, g.m.maxSlot)
	a.Bind(b.end)
	for _, l := range b.locals {
		if l.name != "" && a.IsBound(l.start) {
			a.LocalVar(l.name, l.typ, l.slot, l.start, b.end)
		}
	}
}

func (g *gen) emit(e Expr) {
	a := g.a
	switch x := e.(type) {
	case *constItem:
		a.Const(x.value)
	case *LocalVar:
		a.Load(x.typ, x.slot)
	case *staticGetItem:
		a.Field(bytecode.GETSTATIC, x.field)
	case *allocItem:
		a.New(x.class)
		a.Op(bytecode.DUP)
	case *convItem:
		g.conversion(x)
	case *inputItem:
		// already on the stack
	case *arithItem:
		a.Typed(x.op, x.typ)
	case *negItem:
		a.Typed(bytecode.INEG, x.typ)
	case *relItem:
		t, end := a.NewLabel(), a.NewLabel()
		g.cmpJump(x, true, t)
		a.Const(int32(0))
		a.Goto(end)
		a.Bind(t)
		a.Const(int32(1))
		a.Bind(end)
	case *notItem:
		a.Const(int32(1))
		a.Op(bytecode.IXOR)
	case *castItem:
		a.Cast(x.from, x.to)
	case *instanceOfItem:
		a.InstanceOf(x.class)
	case *invokeItem:
		a.Invoke(x.op, x.method)
	case *ctorItem:
		a.Invoke(bytecode.INVOKESPECIAL, x.method)
	case *fieldGetItem:
		a.Field(bytecode.GETFIELD, x.field)
	case *fieldPutItem:
		if x.static {
			a.Field(bytecode.PUTSTATIC, x.field)
		} else {
			a.Field(bytecode.PUTFIELD, x.field)
		}
	case *storeItem:
		a.Store(x.local.typ, x.local.slot)
		if x.declare && x.local.name != "" {
			a.Bind(x.local.start)
		}
	case *incItem:
		a.Inc(x.local.slot, x.delta)
	case *newArrayItem:
		a.NewArray(x.elem)
	case *arrayGetItem:
		a.ArrayLoad(x.elem)
	case *arraySetItem:
		a.ArrayStore(x.elem)
	case *arrayLenItem:
		a.Op(bytecode.ARRAYLENGTH)
	case *monitorItem:
		if x.enter {
			a.Op(bytecode.MONITORENTER)
		} else {
			a.Op(bytecode.MONITOREXIT)
		}
	case *popItem:
		if x.popped.Slots() == 2 {
			a.Op(bytecode.POP2)
		} else {
			a.Op(bytecode.POP)
		}
	case *yieldItem:
		if x.out.IsReference() {
			a.Frames().Retype(stackmap.Of(x.out))
		}
	case *returnItem:
		a.Return(g.m.desc.Return)
	case *throwItem:
		a.Op(bytecode.ATHROW)
	case *jumpItem:
		a.Goto(x.label)
	case *lineItem:
		a.Line(x.line)
	case *nopItem:
		a.Nop()
	case *ifItem:
		g.ifItem(x)
	case *blockItem:
		g.block(x.blk)
	case *loopItem:
		g.block(x.blk)
	case *switchItem:
		g.switchItem(x)
	case *tryCatchItem:
		g.tryCatchItem(x)
	case *tryFinallyItem:
		g.tryFinallyItem(x)
	default:
		fail(Internal, "cannot emit %T", e)
	}
}

func (g *gen) conversion(x *convItem) {
	a := g.a
	if x.checkcast != "" {
		a.CheckCast(x.checkcast)
	}
	for _, s := range x.conv.Steps {
		switch s.Op {
		case convert.StepWiden:
			a.Cast(s.From, s.To)
		case convert.StepBox:
			a.Invoke(bytecode.INVOKESTATIC, convert.BoxMethod(s.From))
		case convert.StepUnbox:
			a.Invoke(bytecode.INVOKEVIRTUAL, convert.UnboxMethod(s.To))
		}
	}
}

// cmpJump consumes the operands of rel and jumps to target when rel's
// outcome equals holds
func (g *gen) cmpJump(rel *relItem, holds bool, target bytecode.Label) {
	a := g.a
	op := rel.op
	if !holds {
		op = op.negate()
	}
	switch {
	case op == opNull:
		a.Jump(bytecode.IFNULL, target)
	case op == opNonNull:
		a.Jump(bytecode.IFNONNULL, target)
	case rel.operand.IsReference():
		a.Jump(bytecode.IF_ACMPEQ+bytecode.Opcode(op), target)
	default:
		switch rel.operand.Category() {
		case types.CatInt:
			a.Jump(bytecode.IF_ICMPEQ+bytecode.Opcode(op), target)
			return
		case types.CatLong:
			a.Op(bytecode.LCMP)
		case types.CatFloat:
			// NaN must make < and <= false, hence the g variant for them
			if rel.op == opLt || rel.op == opLe {
				a.Op(bytecode.FCMPG)
			} else {
				a.Op(bytecode.FCMPL)
			}
		case types.CatDouble:
			if rel.op == opLt || rel.op == opLe {
				a.Op(bytecode.DCMPG)
			} else {
				a.Op(bytecode.DCMPL)
			}
		default:
			panic(fmt.Sprintf("codegen: comparison of %s", rel.operand))
		}
		a.Jump(bytecode.IFEQ+bytecode.Opcode(op), target)
	}
}

// condJump jumps to target when the if's condition (after its own
// negation) equals holds
func (g *gen) condJump(it *ifItem, holds bool, target bytecode.Label) {
	if it.negate {
		holds = !holds
	}
	if it.rel != nil {
		g.cmpJump(it.rel, holds, target)
		return
	}
	if holds {
		g.a.Jump(bytecode.IFNE, target)
	} else {
		g.a.Jump(bytecode.IFEQ, target)
	}
}

func (g *gen) ifItem(it *ifItem) {
	a := g.a
	if it.els == nil && !g.nops {
		if j := singleJump(it.then); j != nil {
			// if (c) break: branch straight to the jump's target
			g.condJump(it, true, j.label)
			a.Bind(it.then.start)
			a.Bind(it.then.end)
			return
		}
	}
	if it.els == nil {
		g.condJump(it, false, it.then.end)
		g.block(it.then)
		return
	}
	g.condJump(it, false, it.els.start)
	g.block(it.then)
	if a.Reachable() {
		a.Goto(it.els.end)
	}
	g.block(it.els)
}

// singleJump returns the jump when it is all b holds
func singleJump(b *Block) *jumpItem {
	if b.list.len() != 1 {
		return nil
	}
	j, _ := b.list.get(b.list.last()).(*jumpItem)
	return j
}
