package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"

	"github.com/quarkusio/gizmo-sub001/types"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
)

// Entry is one constant pool entry. Which fields are set depends on Tag.
type Entry struct {
	Tag    uint8
	Utf8   string
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Ref1   uint16 // class, string, name (NameAndType), class (member refs)
	Ref2   uint16 // descriptor (NameAndType), name-and-type (member refs)
}

// Pool is a constant pool with deduplication. Index 0 is unused and long
// and double entries take two indexes, as in the class file.
type Pool struct {
	entries []Entry
	index   map[string]uint16
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{
		entries: make([]Entry, 1, 64),
		index:   make(map[string]uint16),
	}
}

// Len returns constant_pool_count (number of indexes including 0)
func (p *Pool) Len() int {
	return len(p.entries)
}

func (p *Pool) add(key string, e Entry) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := len(p.entries)
	if idx+1 > math.MaxUint16 || (e.Tag == TagLong || e.Tag == TagDouble) && idx+2 > math.MaxUint16 {
		panic(&LimitError{What: "constant pool", Size: idx + 1, Max: math.MaxUint16 - 1})
	}
	p.entries = append(p.entries, e)
	if e.Tag == TagLong || e.Tag == TagDouble {
		p.entries = append(p.entries, Entry{})
	}
	p.index[key] = uint16(idx)
	return uint16(idx)
}

// Utf8 adds a CONSTANT_Utf8
func (p *Pool) Utf8(s string) uint16 {
	return p.add("u:"+s, Entry{Tag: TagUtf8, Utf8: s})
}

// Class adds a CONSTANT_Class for an internal name
func (p *Pool) Class(internalName string) uint16 {
	name := p.Utf8(internalName)
	return p.add("c:"+internalName, Entry{Tag: TagClass, Ref1: name})
}

// String adds a CONSTANT_String
func (p *Pool) String(s string) uint16 {
	utf := p.Utf8(s)
	return p.add("s:"+s, Entry{Tag: TagString, Ref1: utf})
}

// Integer adds a CONSTANT_Integer
func (p *Pool) Integer(v int32) uint16 {
	return p.add("i:"+strconv.FormatInt(int64(v), 10), Entry{Tag: TagInteger, Int: v})
}

// Float adds a CONSTANT_Float (keyed by bit pattern so NaN and -0 dedupe correctly)
func (p *Pool) Float(v float32) uint16 {
	return p.add("f:"+strconv.FormatUint(uint64(math.Float32bits(v)), 16), Entry{Tag: TagFloat, Float: v})
}

// Long adds a CONSTANT_Long
func (p *Pool) Long(v int64) uint16 {
	return p.add("j:"+strconv.FormatInt(v, 10), Entry{Tag: TagLong, Long: v})
}

// Double adds a CONSTANT_Double
func (p *Pool) Double(v float64) uint16 {
	return p.add("d:"+strconv.FormatUint(math.Float64bits(v), 16), Entry{Tag: TagDouble, Double: v})
}

// NameAndType adds a CONSTANT_NameAndType
func (p *Pool) NameAndType(name, desc string) uint16 {
	n := p.Utf8(name)
	d := p.Utf8(desc)
	return p.add("nt:"+name+":"+desc, Entry{Tag: TagNameAndType, Ref1: n, Ref2: d})
}

// Field adds a CONSTANT_Fieldref
func (p *Pool) Field(f types.FieldRef) uint16 {
	c := p.Class(f.Owner)
	nt := p.NameAndType(f.Name, string(f.Type))
	return p.add("fr:"+f.String(), Entry{Tag: TagFieldref, Ref1: c, Ref2: nt})
}

// Method adds a CONSTANT_Methodref or CONSTANT_InterfaceMethodref
func (p *Pool) Method(m types.MethodRef) uint16 {
	c := p.Class(m.Owner)
	nt := p.NameAndType(m.Name, m.Desc.String())
	if m.Interface {
		return p.add("im:"+m.String(), Entry{Tag: TagInterfaceMethodref, Ref1: c, Ref2: nt})
	}
	return p.add("m:"+m.String(), Entry{Tag: TagMethodref, Ref1: c, Ref2: nt})
}

// Entry returns the entry at idx
func (p *Pool) Entry(idx uint16) (Entry, error) {
	if idx == 0 || int(idx) >= len(p.entries) || p.entries[idx].Tag == 0 {
		return Entry{}, fmt.Errorf("invalid constant pool index %d", idx)
	}
	return p.entries[idx], nil
}

func (p *Pool) expect(idx uint16, tag uint8) (Entry, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return e, err
	}
	if e.Tag != tag {
		return e, fmt.Errorf("constant pool index %d has tag %d, want %d", idx, e.Tag, tag)
	}
	return e, nil
}

// Utf8At returns the string of a CONSTANT_Utf8
func (p *Pool) Utf8At(idx uint16) (string, error) {
	e, err := p.expect(idx, TagUtf8)
	return e.Utf8, err
}

// ClassAt returns the internal name of a CONSTANT_Class
func (p *Pool) ClassAt(idx uint16) (string, error) {
	e, err := p.expect(idx, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8At(e.Ref1)
}

func (p *Pool) nameAndTypeAt(idx uint16) (string, string, error) {
	e, err := p.expect(idx, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := p.Utf8At(e.Ref1)
	if err != nil {
		return "", "", err
	}
	desc, err := p.Utf8At(e.Ref2)
	return name, desc, err
}

// MethodAt resolves a method or interface method reference
func (p *Pool) MethodAt(idx uint16) (types.MethodRef, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return types.MethodRef{}, err
	}
	if e.Tag != TagMethodref && e.Tag != TagInterfaceMethodref {
		return types.MethodRef{}, fmt.Errorf("constant pool index %d is not a method reference", idx)
	}
	owner, err := p.ClassAt(e.Ref1)
	if err != nil {
		return types.MethodRef{}, err
	}
	name, desc, err := p.nameAndTypeAt(e.Ref2)
	if err != nil {
		return types.MethodRef{}, err
	}
	md, err := types.ParseMethodDesc(desc)
	if err != nil {
		return types.MethodRef{}, err
	}
	return types.MethodRef{Owner: owner, Name: name, Desc: md, Interface: e.Tag == TagInterfaceMethodref}, nil
}

// FieldAt resolves a field reference
func (p *Pool) FieldAt(idx uint16) (types.FieldRef, error) {
	e, err := p.expect(idx, TagFieldref)
	if err != nil {
		return types.FieldRef{}, err
	}
	owner, err := p.ClassAt(e.Ref1)
	if err != nil {
		return types.FieldRef{}, err
	}
	name, desc, err := p.nameAndTypeAt(e.Ref2)
	if err != nil {
		return types.FieldRef{}, err
	}
	t, err := types.ParseType(desc)
	if err != nil {
		return types.FieldRef{}, err
	}
	return types.FieldRef{Owner: owner, Name: name, Type: t}, nil
}

// ConstantAt resolves a loadable constant (ldc/ldc_w/ldc2_w) to its Go
// value and type: int32, float32, int64, float64, string, or types.Type
// for class literals.
func (p *Pool) ConstantAt(idx uint16) (interface{}, types.Type, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return nil, "", err
	}
	switch e.Tag {
	case TagInteger:
		return e.Int, types.Int, nil
	case TagFloat:
		return e.Float, types.Float, nil
	case TagLong:
		return e.Long, types.Long, nil
	case TagDouble:
		return e.Double, types.Double, nil
	case TagString:
		s, err := p.Utf8At(e.Ref1)
		return s, types.String, err
	case TagClass:
		name, err := p.Utf8At(e.Ref1)
		return types.TypeFromInternalName(name), types.JavaClass, err
	default:
		return nil, "", fmt.Errorf("constant pool index %d is not loadable", idx)
	}
}

// Describe formats an entry for disassembly
func (p *Pool) Describe(idx uint16) string {
	e, err := p.Entry(idx)
	if err != nil {
		return fmt.Sprintf("#%d?", idx)
	}
	switch e.Tag {
	case TagMethodref, TagInterfaceMethodref:
		if m, err := p.MethodAt(idx); err == nil {
			return m.String()
		}
	case TagFieldref:
		if f, err := p.FieldAt(idx); err == nil {
			return f.String()
		}
	case TagClass:
		if name, err := p.ClassAt(idx); err == nil {
			return "class " + name
		}
	case TagString:
		if s, err := p.Utf8At(e.Ref1); err == nil {
			return strconv.Quote(s)
		}
	case TagInteger:
		return strconv.FormatInt(int64(e.Int), 10)
	case TagLong:
		return strconv.FormatInt(e.Long, 10) + "L"
	case TagFloat:
		return strconv.FormatFloat(float64(e.Float), 'g', -1, 32) + "f"
	case TagDouble:
		return strconv.FormatFloat(e.Double, 'g', -1, 64) + "d"
	case TagUtf8:
		return e.Utf8
	}
	return fmt.Sprintf("#%d", idx)
}

// encode writes constant_pool_count and the entries
func (p *Pool) encode(buf *bytes.Buffer) {
	binary.Write(buf, binary.BigEndian, uint16(len(p.entries)))
	for i := 1; i < len(p.entries); i++ {
		e := p.entries[i]
		if e.Tag == 0 {
			continue // second half of a long or double
		}
		buf.WriteByte(e.Tag)
		switch e.Tag {
		case TagUtf8:
			b := modifiedUTF8(e.Utf8)
			binary.Write(buf, binary.BigEndian, uint16(len(b)))
			buf.Write(b)
		case TagInteger:
			binary.Write(buf, binary.BigEndian, e.Int)
		case TagFloat:
			binary.Write(buf, binary.BigEndian, math.Float32bits(e.Float))
		case TagLong:
			binary.Write(buf, binary.BigEndian, e.Long)
		case TagDouble:
			binary.Write(buf, binary.BigEndian, math.Float64bits(e.Double))
		case TagClass, TagString:
			binary.Write(buf, binary.BigEndian, e.Ref1)
		default:
			binary.Write(buf, binary.BigEndian, e.Ref1)
			binary.Write(buf, binary.BigEndian, e.Ref2)
		}
	}
}

// modifiedUTF8 encodes s the way class files store strings: NUL as two
// bytes and supplementary characters as surrogate pairs.
func modifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			out = append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return out
}

// decodeModifiedUTF8 is the inverse of modifiedUTF8
func decodeModifiedUTF8(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("malformed modified UTF-8 at byte %d", i)
		}
	}
	return string(utf16.Decode(units)), nil
}
