package classfile

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

func errorf(format string, args ...interface{}) error {
	return fmt.Errorf("classfile: "+format, args...)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return errorf("unexpected end of data at %d (need %d bytes)", r.pos, n)
	}
	return nil
}

func (r *reader) u1() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u2() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u4() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) vtype(pool *Pool) (stackmap.VType, error) {
	tag, err := r.u1()
	if err != nil {
		return stackmap.VType{}, err
	}
	v := stackmap.VType{Tag: stackmap.Tag(tag)}
	switch v.Tag {
	case stackmap.Object:
		idx, err := r.u2()
		if err != nil {
			return v, err
		}
		if v.Class, err = pool.ClassAt(idx); err != nil {
			return v, err
		}
	case stackmap.Uninitialized:
		off, err := r.u2()
		if err != nil {
			return v, err
		}
		v.Offset = int(off)
	default:
		if v.Tag > stackmap.Uninitialized {
			return v, errorf("invalid verification type tag %d", tag)
		}
	}
	return v, nil
}

func (r *reader) vtypes(pool *Pool) ([]stackmap.VType, error) {
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]stackmap.VType, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := r.vtype(pool)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Decode parses a class file. Attributes other than Code,
// StackMapTable, LineNumberTable and LocalVariableTable are skipped.
func Decode(data []byte) (*Class, error) {
	r := &reader{data: data}
	magic, err := r.u4()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, errorf("bad magic %#x", magic)
	}
	c := &Class{}
	if c.Minor, err = r.u2(); err != nil {
		return nil, err
	}
	if c.Major, err = r.u2(); err != nil {
		return nil, err
	}
	if c.Pool, err = decodePool(r); err != nil {
		return nil, fmt.Errorf("constant pool: %w", err)
	}
	if c.Access, err = r.u2(); err != nil {
		return nil, err
	}
	this, err := r.u2()
	if err != nil {
		return nil, err
	}
	if c.Name, err = c.Pool.ClassAt(this); err != nil {
		return nil, err
	}
	super, err := r.u2()
	if err != nil {
		return nil, err
	}
	if super != 0 {
		if c.Super, err = c.Pool.ClassAt(super); err != nil {
			return nil, err
		}
	}
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := c.Pool.ClassAt(idx)
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	if n, err = r.u2(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		var f Field
		access, name, desc, err := decodeMember(r, c.Pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		f.Access, f.Name = access, name
		if f.Type, err = types.ParseType(desc); err != nil {
			return nil, err
		}
		if err := skipAttributes(r); err != nil {
			return nil, err
		}
		c.Fields = append(c.Fields, f)
	}

	if n, err = r.u2(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		m, err := decodeMethod(r, c)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		c.Methods = append(c.Methods, m)
	}
	if err := skipAttributes(r); err != nil {
		return nil, err
	}
	return c, nil
}

func decodePool(r *reader) (*Pool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	p := NewPool()
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, err
		}
		e := Entry{Tag: tag}
		switch tag {
		case TagUtf8:
			n, err := r.u2()
			if err != nil {
				return nil, err
			}
			b, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			if e.Utf8, err = decodeModifiedUTF8(b); err != nil {
				return nil, err
			}
		case TagInteger:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.Int = int32(v)
		case TagFloat:
			v, err := r.u4()
			if err != nil {
				return nil, err
			}
			e.Float = math.Float32frombits(v)
		case TagLong, TagDouble:
			hi, err := r.u4()
			if err != nil {
				return nil, err
			}
			lo, err := r.u4()
			if err != nil {
				return nil, err
			}
			bits := uint64(hi)<<32 | uint64(lo)
			if tag == TagLong {
				e.Long = int64(bits)
			} else {
				e.Double = math.Float64frombits(bits)
			}
		case TagClass, TagString:
			if e.Ref1, err = r.u2(); err != nil {
				return nil, err
			}
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
			if e.Ref1, err = r.u2(); err != nil {
				return nil, err
			}
			if e.Ref2, err = r.u2(); err != nil {
				return nil, err
			}
		default:
			return nil, errorf("unsupported constant pool tag %d at index %d", tag, i)
		}
		p.entries = append(p.entries, e)
		if tag == TagLong || tag == TagDouble {
			p.entries = append(p.entries, Entry{})
			i++
		}
	}
	return p, nil
}

func decodeMember(r *reader, pool *Pool) (uint16, string, string, error) {
	access, err := r.u2()
	if err != nil {
		return 0, "", "", err
	}
	ni, err := r.u2()
	if err != nil {
		return 0, "", "", err
	}
	di, err := r.u2()
	if err != nil {
		return 0, "", "", err
	}
	name, err := pool.Utf8At(ni)
	if err != nil {
		return 0, "", "", err
	}
	desc, err := pool.Utf8At(di)
	if err != nil {
		return 0, "", "", err
	}
	return access, name, desc, nil
}

func skipAttributes(r *reader) error {
	n, err := r.u2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if _, err := r.u2(); err != nil {
			return err
		}
		size, err := r.u4()
		if err != nil {
			return err
		}
		if _, err := r.bytes(int(size)); err != nil {
			return err
		}
	}
	return nil
}

func decodeMethod(r *reader, c *Class) (*Method, error) {
	access, name, desc, err := decodeMember(r, c.Pool)
	if err != nil {
		return nil, err
	}
	m := &Method{Access: access, Name: name}
	if m.Desc, err = types.ParseMethodDesc(desc); err != nil {
		return nil, err
	}
	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		ni, err := r.u2()
		if err != nil {
			return nil, err
		}
		size, err := r.u4()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(size))
		if err != nil {
			return nil, err
		}
		attr, err := c.Pool.Utf8At(ni)
		if err != nil {
			return nil, err
		}
		if attr == "Code" {
			if m.Code, err = decodeCode(data, c, m); err != nil {
				return nil, fmt.Errorf("%s%s: %w", name, desc, err)
			}
		}
	}
	return m, nil
}

// InitialLocals returns the implicit first frame of a method: the
// receiver (uninitializedThis inside constructors) followed by the
// parameters.
func InitialLocals(owner string, m *Method) []stackmap.VType {
	var locals []stackmap.VType
	if !m.IsStatic() {
		if m.Name == "<init>" && owner != "java/lang/Object" {
			locals = append(locals, stackmap.ThisUninit)
		} else {
			locals = append(locals, stackmap.ObjectType(owner))
		}
	}
	for _, p := range m.Desc.Params {
		locals = append(locals, stackmap.Of(p))
	}
	return stackmap.Expand(locals)
}

func decodeCode(data []byte, c *Class, m *Method) (*Code, error) {
	r := &reader{data: data}
	code := &Code{Initial: InitialLocals(c.Name, m)}
	ms, err := r.u2()
	if err != nil {
		return nil, err
	}
	ml, err := r.u2()
	if err != nil {
		return nil, err
	}
	code.MaxStack, code.MaxLocals = int(ms), int(ml)
	size, err := r.u4()
	if err != nil {
		return nil, err
	}
	b, err := r.bytes(int(size))
	if err != nil {
		return nil, err
	}
	code.Bytes = append([]byte(nil), b...)

	n, err := r.u2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		var e ExceptionEntry
		var vals [4]uint16
		for j := range vals {
			if vals[j], err = r.u2(); err != nil {
				return nil, err
			}
		}
		e.Start, e.End, e.Handler = int(vals[0]), int(vals[1]), int(vals[2])
		if vals[3] != 0 {
			if e.CatchType, err = c.Pool.ClassAt(vals[3]); err != nil {
				return nil, err
			}
		}
		code.Exceptions = append(code.Exceptions, e)
	}

	if n, err = r.u2(); err != nil {
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		ni, err := r.u2()
		if err != nil {
			return nil, err
		}
		asize, err := r.u4()
		if err != nil {
			return nil, err
		}
		adata, err := r.bytes(int(asize))
		if err != nil {
			return nil, err
		}
		name, err := c.Pool.Utf8At(ni)
		if err != nil {
			return nil, err
		}
		ar := &reader{data: adata}
		switch name {
		case "StackMapTable":
			if code.Frames, err = DecodeStackMapTable(c.Pool, code.Initial, adata); err != nil {
				return nil, fmt.Errorf("StackMapTable: %w", err)
			}
		case "LineNumberTable":
			cnt, err := ar.u2()
			if err != nil {
				return nil, err
			}
			for j := 0; j < int(cnt); j++ {
				start, err := ar.u2()
				if err != nil {
					return nil, err
				}
				line, err := ar.u2()
				if err != nil {
					return nil, err
				}
				code.Lines = append(code.Lines, LineNumber{Start: int(start), Line: int(line)})
			}
		case "LocalVariableTable":
			cnt, err := ar.u2()
			if err != nil {
				return nil, err
			}
			for j := 0; j < int(cnt); j++ {
				var vals [5]uint16
				for k := range vals {
					if vals[k], err = ar.u2(); err != nil {
						return nil, err
					}
				}
				lname, err := c.Pool.Utf8At(vals[2])
				if err != nil {
					return nil, err
				}
				ldesc, err := c.Pool.Utf8At(vals[3])
				if err != nil {
					return nil, err
				}
				code.Locals = append(code.Locals, LocalVar{
					Start:  int(vals[0]),
					Length: int(vals[1]),
					Name:   lname,
					Type:   types.Type(ldesc),
					Slot:   int(vals[4]),
				})
			}
		}
	}
	return code, nil
}
