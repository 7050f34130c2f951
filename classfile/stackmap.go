package classfile

import (
	"bytes"
	"encoding/binary"

	"github.com/quarkusio/gizmo-sub001/stackmap"
)

// Frame type ranges of the StackMapTable attribute
const (
	sameFrameMax         = 63
	sameLocals1StackItem = 64
	sameLocals1Extended  = 247
	chopFrame            = 248 // 248..250
	sameFrameExtended    = 251
	appendFrame          = 252 // 252..254
	fullFrame            = 255
)

// EncodeStackMapTable writes the attribute body (without name and length)
// for frames sorted by offset, choosing the most compact frame form
// relative to the previous frame. initial holds the implicit frame
// derived from the method descriptor.
func EncodeStackMapTable(pool *Pool, initial []stackmap.VType, frames []stackmap.Frame) []byte {
	var buf bytes.Buffer
	be := binary.BigEndian
	binary.Write(&buf, be, uint16(len(frames)))

	prev := stackmap.Compact(initial)
	prevOffset := -1
	for _, f := range frames {
		delta := f.Offset - prevOffset - 1
		locals := stackmap.Compact(f.Locals)
		stack := stackmap.Compact(f.Stack)

		switch {
		case len(stack) == 0 && sameTypes(locals, prev):
			if delta <= sameFrameMax {
				buf.WriteByte(byte(delta))
			} else {
				buf.WriteByte(sameFrameExtended)
				binary.Write(&buf, be, uint16(delta))
			}
		case len(stack) == 1 && sameTypes(locals, prev):
			if delta <= sameFrameMax {
				buf.WriteByte(byte(sameLocals1StackItem + delta))
			} else {
				buf.WriteByte(sameLocals1Extended)
				binary.Write(&buf, be, uint16(delta))
			}
			writeVType(&buf, pool, stack[0])
		case len(stack) == 0 && len(locals) < len(prev) && len(prev)-len(locals) <= 3 &&
			sameTypes(locals, prev[:len(locals)]):
			buf.WriteByte(byte(sameFrameExtended - (len(prev) - len(locals))))
			binary.Write(&buf, be, uint16(delta))
		case len(stack) == 0 && len(locals) > len(prev) && len(locals)-len(prev) <= 3 &&
			sameTypes(locals[:len(prev)], prev):
			buf.WriteByte(byte(sameFrameExtended + (len(locals) - len(prev))))
			binary.Write(&buf, be, uint16(delta))
			for _, v := range locals[len(prev):] {
				writeVType(&buf, pool, v)
			}
		default:
			buf.WriteByte(fullFrame)
			binary.Write(&buf, be, uint16(delta))
			binary.Write(&buf, be, uint16(len(locals)))
			for _, v := range locals {
				writeVType(&buf, pool, v)
			}
			binary.Write(&buf, be, uint16(len(stack)))
			for _, v := range stack {
				writeVType(&buf, pool, v)
			}
		}
		prev = locals
		prevOffset = f.Offset
	}
	return buf.Bytes()
}

func sameTypes(a, b []stackmap.VType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeVType(buf *bytes.Buffer, pool *Pool, v stackmap.VType) {
	buf.WriteByte(byte(v.Tag))
	switch v.Tag {
	case stackmap.Object:
		binary.Write(buf, binary.BigEndian, pool.Class(v.Class))
	case stackmap.Uninitialized:
		binary.Write(buf, binary.BigEndian, uint16(v.Offset))
	}
}

// DecodeStackMapTable is the inverse of EncodeStackMapTable. Returned
// frames use the expanded (Wide2) representation.
func DecodeStackMapTable(pool *Pool, initial []stackmap.VType, data []byte) ([]stackmap.Frame, error) {
	r := &reader{data: data}
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	prev := stackmap.Compact(initial)
	offset := -1
	frames := make([]stackmap.Frame, 0, n)
	for i := 0; i < int(n); i++ {
		kind, err := r.u1()
		if err != nil {
			return nil, err
		}
		var delta int
		locals := prev
		var stack []stackmap.VType
		switch {
		case kind <= sameFrameMax:
			delta = int(kind)
		case kind < sameLocals1Extended && kind >= sameLocals1StackItem:
			delta = int(kind - sameLocals1StackItem)
			v, err := r.vtype(pool)
			if err != nil {
				return nil, err
			}
			stack = []stackmap.VType{v}
		case kind == sameLocals1Extended:
			d, err := r.u2()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			v, err := r.vtype(pool)
			if err != nil {
				return nil, err
			}
			stack = []stackmap.VType{v}
		case kind >= chopFrame && kind < sameFrameExtended:
			d, err := r.u2()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			k := sameFrameExtended - int(kind)
			if k > len(prev) {
				return nil, errorf("chop frame removes %d of %d locals", k, len(prev))
			}
			locals = prev[:len(prev)-k]
		case kind == sameFrameExtended:
			d, err := r.u2()
			if err != nil {
				return nil, err
			}
			delta = int(d)
		case kind > sameFrameExtended && kind < fullFrame:
			d, err := r.u2()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			locals = append([]stackmap.VType(nil), prev...)
			for j := 0; j < int(kind)-sameFrameExtended; j++ {
				v, err := r.vtype(pool)
				if err != nil {
					return nil, err
				}
				locals = append(locals, v)
			}
		case kind == fullFrame:
			d, err := r.u2()
			if err != nil {
				return nil, err
			}
			delta = int(d)
			if locals, err = r.vtypes(pool); err != nil {
				return nil, err
			}
			if stack, err = r.vtypes(pool); err != nil {
				return nil, err
			}
		default:
			return nil, errorf("reserved frame type %d", kind)
		}
		offset += delta + 1
		frames = append(frames, stackmap.Frame{
			Offset: offset,
			Locals: stackmap.Expand(locals),
			Stack:  stackmap.Expand(stack),
		})
		prev = locals
	}
	return frames, nil
}
