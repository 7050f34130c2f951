package stackmap

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/types"
)

func expectPanic(t *testing.T, fn func()) *Error {
	t.Helper()
	var got *Error
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok || !errors.As(err, &got) {
				panic(r)
			}
		}()
		fn()
	}()
	if got == nil {
		t.Fatal("expected *Error panic")
	}
	return got
}

func TestPushPopWide(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.At(0)
	b.Push(IntType)
	b.Push(LongType)
	if b.Depth() != 3 {
		t.Fatalf("depth %d, want 3", b.Depth())
	}
	if v := b.Pop(); v != LongType {
		t.Errorf("popped %s, want long", v)
	}
	if v := b.Pop(); v != IntType {
		t.Errorf("popped %s, want int", v)
	}
	if b.MaxStack() != 3 {
		t.Errorf("max stack %d, want 3", b.MaxStack())
	}
}

func TestUnderflow(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.At(7)
	err := expectPanic(t, func() { b.Pop() })
	if err.Offset != 7 {
		t.Errorf("underflow reported at %d, want 7", err.Offset)
	}
}

func TestStoreOverWide(t *testing.T) {
	b := NewBuilder(nil, []VType{IntType})
	b.Store(1, DoubleType)
	if b.MaxLocals() != 3 {
		t.Fatalf("max locals %d, want 3", b.MaxLocals())
	}
	// clobber the second half of the double
	b.Store(2, IntType)
	want := []VType{IntType, TopType, IntType}
	if diff := cmp.Diff(want, b.Locals()); diff != "" {
		t.Errorf("locals mismatch (-want +got):\n%s", diff)
	}
}

func TestForgetKeepsHigherLocals(t *testing.T) {
	b := NewBuilder(nil, []VType{IntType})
	b.Store(1, FloatType)
	b.Store(2, LongType)
	b.Forget(1, 2)
	want := []VType{IntType, TopType, LongType, wideSecond}
	if diff := cmp.Diff(want, b.Locals()); diff != "" {
		t.Errorf("locals mismatch (-want +got):\n%s", diff)
	}
	b.Forget(1, 4)
	if diff := cmp.Diff([]VType{IntType}, b.Locals()); diff != "" {
		t.Errorf("locals mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeLocalsAndDedup(t *testing.T) {
	b := NewBuilder(nil, []VType{IntType})
	const join = 1

	b.At(0)
	b.Store(1, ObjectType("java/lang/Integer"))
	b.Jump(join)

	b.Store(1, ObjectType("java/lang/Long"))
	b.Store(2, IntType)
	b.Jump(join)
	b.Kill()

	b.Bind(join, 10)
	// a second label at the same offset must not add a frame
	b.Bind(2, 10)

	frames := b.Frames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	want := []VType{IntType, ObjectType("java/lang/Number")}
	if diff := cmp.Diff(want, frames[0].Locals); diff != "" {
		t.Errorf("merged locals mismatch (-want +got):\n%s", diff)
	}
}

func TestStackHeightMismatch(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.At(0)
	b.Push(IntType)
	b.Jump(1)
	b.Pop()
	expectPanic(t, func() { b.Bind(1, 4) })
}

func TestLoopHeadFrame(t *testing.T) {
	b := NewBuilder(nil, []VType{IntType})
	b.At(0)
	b.Bind(1, 0) // loop head, reached by fall-through only
	if len(b.Frames()) != 0 {
		t.Fatal("fall-through label should not record a frame")
	}
	b.At(0)
	b.Store(1, IntType)
	b.At(3)
	b.Jump(1) // backward branch materializes the head frame
	b.Kill()

	f, ok := b.FrameAt(0)
	if !ok {
		t.Fatal("missing loop head frame")
	}
	if diff := cmp.Diff([]VType{IntType}, f.Locals); diff != "" {
		t.Errorf("head locals mismatch (-want +got):\n%s", diff)
	}
}

func TestBackwardBranchIncompatible(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.At(0)
	b.Bind(1, 0)
	b.Push(IntType)
	expectPanic(t, func() { b.Jump(1) })
}

func TestInitObject(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.At(0)
	u := UninitializedAt(0)
	b.Push(u)
	b.Push(u)
	b.Pop()
	b.InitObject(u, "java/lang/Object")
	if v := b.Peek(); v != ObjectType("java/lang/Object") {
		t.Errorf("after init top is %s", v)
	}
}

func TestHandlerState(t *testing.T) {
	b := NewBuilder(nil, []VType{ObjectType("java/lang/String")})
	b.At(0)
	b.AddIncoming(5, HandlerState(b.Locals(), "java/lang/Throwable"))
	b.Push(IntType)
	b.Kill()
	b.Bind(5, 9)
	f, ok := b.FrameAt(9)
	if !ok {
		t.Fatal("missing handler frame")
	}
	want := Frame{
		Offset: 9,
		Locals: []VType{ObjectType("java/lang/String")},
		Stack:  []VType{ObjectType("java/lang/Throwable")},
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("handler frame mismatch (-want +got):\n%s", diff)
	}
}

func TestUnreachableEmission(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.At(0)
	b.Kill()
	expectPanic(t, func() { b.At(1) })
}

func TestCompactExpand(t *testing.T) {
	in := []VType{IntType, LongType, ObjectType("java/lang/String"), DoubleType}
	ex := Expand(in)
	if len(ex) != 6 {
		t.Fatalf("expanded length %d, want 6", len(ex))
	}
	if diff := cmp.Diff(in, Compact(ex)); diff != "" {
		t.Errorf("compact mismatch (-want +got):\n%s", diff)
	}
	if got := Of(types.Char); got != IntType {
		t.Errorf("char maps to %s", got)
	}
}
