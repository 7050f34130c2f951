// Package classfile holds the in-memory form of generated classes and
// writes (and reads back) the JVM class-file format.
package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

// Magic is the class-file magic number
const Magic = 0xCAFEBABE

// Access flags
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccSynthetic    = 0x1000
)

// MinMajor is the first class-file version whose verifier requires
// StackMapTable frames (Java 6)
const MinMajor = 50

// MajorFor returns the class-file major version of a Java feature release
// (8 -> 52, 17 -> 61)
func MajorFor(release int) (uint16, error) {
	major := 44 + release
	if release < 6 {
		return 0, fmt.Errorf("release %d predates stack map frames (need 6 or later)", release)
	}
	if major > math.MaxUint16 {
		return 0, fmt.Errorf("release %d out of range", release)
	}
	return uint16(major), nil
}

// LimitError reports a structure exceeding a class-file limit
type LimitError struct {
	What string
	Size int
	Max  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s too large: %d (max %d)", e.What, e.Size, e.Max)
}

// ExceptionEntry is one exception_table row. CatchType "" catches everything.
type ExceptionEntry struct {
	Start     int
	End       int
	Handler   int
	CatchType string
}

// LocalVar is one LocalVariableTable row
type LocalVar struct {
	Start  int
	Length int
	Name   string
	Type   types.Type
	Slot   int
}

// LineNumber maps a code offset to a source line
type LineNumber struct {
	Start int
	Line  int
}

// Code is a Code attribute
type Code struct {
	MaxStack   int
	MaxLocals  int
	Bytes      []byte
	Exceptions []ExceptionEntry
	// Initial holds the implicit first frame's locals (receiver and parameters)
	Initial []stackmap.VType
	Frames  []stackmap.Frame
	Locals  []LocalVar
	Lines   []LineNumber
}

// Method is a method_info
type Method struct {
	Access uint16
	Name   string
	Desc   types.MethodDesc
	Code   *Code
}

// IsStatic reports whether the method has ACC_STATIC
func (m *Method) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// Field is a field_info
type Field struct {
	Access uint16
	Name   string
	Type   types.Type
}

// Class is a whole class file
type Class struct {
	Major      uint16
	Minor      uint16
	Access     uint16
	Name       string
	Super      string
	Interfaces []string
	Pool       *Pool
	Fields     []Field
	Methods    []*Method
}

// FindMethod returns the method with the given name and descriptor
func (c *Class) FindMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc.String() == desc {
			return m
		}
	}
	return nil
}

// Encode writes the class file to w
func (c *Class) Encode(w io.Writer) error {
	data, err := c.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Bytes returns the encoded class file. Constant pool entries for names
// and attributes are added to c.Pool as needed.
func (c *Class) Bytes() (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if le, ok := r.(*LimitError); ok {
				err = le
				return
			}
			panic(r)
		}
	}()

	// Resolve every pool index before writing the pool itself
	var body bytes.Buffer
	be := binary.BigEndian
	binary.Write(&body, be, c.Access)
	binary.Write(&body, be, c.Pool.Class(c.Name))
	if c.Super == "" {
		binary.Write(&body, be, uint16(0))
	} else {
		binary.Write(&body, be, c.Pool.Class(c.Super))
	}
	binary.Write(&body, be, uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		binary.Write(&body, be, c.Pool.Class(i))
	}

	binary.Write(&body, be, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		binary.Write(&body, be, f.Access)
		binary.Write(&body, be, c.Pool.Utf8(f.Name))
		binary.Write(&body, be, c.Pool.Utf8(string(f.Type)))
		binary.Write(&body, be, uint16(0))
	}

	binary.Write(&body, be, uint16(len(c.Methods)))
	for _, m := range c.Methods {
		if err := c.encodeMethod(&body, m); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
	}
	binary.Write(&body, be, uint16(0)) // class attributes

	var out bytes.Buffer
	binary.Write(&out, be, uint32(Magic))
	binary.Write(&out, be, c.Minor)
	binary.Write(&out, be, c.Major)
	c.Pool.encode(&out)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func (c *Class) encodeMethod(buf *bytes.Buffer, m *Method) error {
	be := binary.BigEndian
	binary.Write(buf, be, m.Access)
	binary.Write(buf, be, c.Pool.Utf8(m.Name))
	binary.Write(buf, be, c.Pool.Utf8(m.Desc.String()))
	if m.Code == nil {
		binary.Write(buf, be, uint16(0))
		return nil
	}
	code, err := c.encodeCode(m.Code)
	if err != nil {
		return err
	}
	binary.Write(buf, be, uint16(1))
	writeAttribute(buf, c.Pool.Utf8("Code"), code)
	return nil
}

func (c *Class) encodeCode(code *Code) ([]byte, error) {
	if len(code.Bytes) == 0 || len(code.Bytes) > math.MaxUint16 {
		return nil, &LimitError{What: "code", Size: len(code.Bytes), Max: math.MaxUint16}
	}
	if code.MaxStack > math.MaxUint16 {
		return nil, &LimitError{What: "max stack", Size: code.MaxStack, Max: math.MaxUint16}
	}
	if code.MaxLocals > math.MaxUint16 {
		return nil, &LimitError{What: "max locals", Size: code.MaxLocals, Max: math.MaxUint16}
	}

	be := binary.BigEndian
	var buf bytes.Buffer
	binary.Write(&buf, be, uint16(code.MaxStack))
	binary.Write(&buf, be, uint16(code.MaxLocals))
	binary.Write(&buf, be, uint32(len(code.Bytes)))
	buf.Write(code.Bytes)

	binary.Write(&buf, be, uint16(len(code.Exceptions)))
	for _, e := range code.Exceptions {
		binary.Write(&buf, be, uint16(e.Start))
		binary.Write(&buf, be, uint16(e.End))
		binary.Write(&buf, be, uint16(e.Handler))
		if e.CatchType == "" {
			binary.Write(&buf, be, uint16(0))
		} else {
			binary.Write(&buf, be, c.Pool.Class(e.CatchType))
		}
	}

	var attrs []attribute
	if len(code.Frames) > 0 {
		attrs = append(attrs, attribute{"StackMapTable", EncodeStackMapTable(c.Pool, code.Initial, code.Frames)})
	}
	if len(code.Lines) > 0 {
		var lb bytes.Buffer
		binary.Write(&lb, be, uint16(len(code.Lines)))
		for _, l := range code.Lines {
			binary.Write(&lb, be, uint16(l.Start))
			binary.Write(&lb, be, uint16(l.Line))
		}
		attrs = append(attrs, attribute{"LineNumberTable", lb.Bytes()})
	}
	if len(code.Locals) > 0 {
		var lb bytes.Buffer
		binary.Write(&lb, be, uint16(len(code.Locals)))
		for _, l := range code.Locals {
			binary.Write(&lb, be, uint16(l.Start))
			binary.Write(&lb, be, uint16(l.Length))
			binary.Write(&lb, be, c.Pool.Utf8(l.Name))
			binary.Write(&lb, be, c.Pool.Utf8(string(l.Type)))
			binary.Write(&lb, be, uint16(l.Slot))
		}
		attrs = append(attrs, attribute{"LocalVariableTable", lb.Bytes()})
	}
	binary.Write(&buf, be, uint16(len(attrs)))
	for _, a := range attrs {
		writeAttribute(&buf, c.Pool.Utf8(a.name), a.data)
	}
	return buf.Bytes(), nil
}

type attribute struct {
	name string
	data []byte
}

func writeAttribute(buf *bytes.Buffer, name uint16, data []byte) {
	binary.Write(buf, binary.BigEndian, name)
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}
