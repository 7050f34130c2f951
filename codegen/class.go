// Package codegen builds verifiable JVM method bodies from trees of
// expressions and structured blocks.
//
// A body is described through callbacks: Class.Method hands the root
// Block to a function, whose builder calls create items (values and
// statements) and nested blocks. When the callback returns, the item
// lists are lowered into instructions by a bytecode.Assembler, which
// tracks stack map frames as it goes.
package codegen

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/convert"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/trace"
	"github.com/quarkusio/gizmo-sub001/types"
)

// DefaultMajor is the class-file version written when Config.Major is
// zero (Java 17)
const DefaultMajor = 61

// Config controls generation for one class
type Config struct {
	// Hierarchy answers subtype questions; types.JDK when nil
	Hierarchy types.Hierarchy
	// Tracer logs items, instructions and frames when enabled
	Tracer *trace.Tracer
	// DebugNops emits a nop at the start of every reachable block
	DebugNops bool
	// Major is the class-file major version
	Major uint16
}

// Method is the shape of a method to generate
type Method struct {
	Owner  string // defaults to the class; must match it when set
	Name   string
	Desc   types.MethodDesc
	Static bool
	Access uint16 // ACC_PUBLIC when zero
	Params []string
}

// Body is a generated method body
type Body struct {
	*classfile.Code
	Method *classfile.Method
}

// Class collects the methods of one generated class
type Class struct {
	cfg    Config
	file   *classfile.Class
	h      types.Hierarchy
	labels bytecode.Labels
	fields map[string]types.Type
}

// NewClass starts a class with the given internal name and superclass
// ("" for java/lang/Object)
func NewClass(name, super string, cfg Config) *Class {
	if super == "" {
		super = "java/lang/Object"
	}
	if cfg.Hierarchy == nil {
		cfg.Hierarchy = types.JDK
	}
	if cfg.Major == 0 {
		cfg.Major = DefaultMajor
	}
	c := &Class{
		cfg: cfg,
		file: &classfile.Class{
			Major:  cfg.Major,
			Access: classfile.AccPublic | classfile.AccSuper,
			Name:   name,
			Super:  super,
			Pool:   classfile.NewPool(),
		},
		fields: make(map[string]types.Type),
	}
	c.h = &classHierarchy{Hierarchy: cfg.Hierarchy, c: c.file}
	return c
}

// classHierarchy adds the class being generated to a base hierarchy
type classHierarchy struct {
	types.Hierarchy
	c *classfile.Class
}

func (h *classHierarchy) SuperClass(name string) (string, bool) {
	if name == h.c.Name {
		return h.c.Super, true
	}
	return h.Hierarchy.SuperClass(name)
}

func (h *classHierarchy) Interfaces(name string) []string {
	if name == h.c.Name {
		return h.c.Interfaces
	}
	return h.Hierarchy.Interfaces(name)
}

// Name returns the internal name of the class
func (c *Class) Name() string {
	return c.file.Name
}

// Type returns the class as a reference type
func (c *Class) Type() types.Type {
	return types.Class(c.file.Name)
}

// Hierarchy returns the hierarchy used for the class, which knows the
// class itself
func (c *Class) Hierarchy() types.Hierarchy {
	return c.h
}

// Implement adds interfaces to the class
func (c *Class) Implement(ifaces ...string) {
	c.file.Interfaces = append(c.file.Interfaces, ifaces...)
}

// Field declares a field and returns a reference to it
func (c *Class) Field(access uint16, name string, t types.Type) (types.FieldRef, error) {
	if _, ok := c.fields[name]; ok {
		return types.FieldRef{}, &Error{Kind: InvalidState, Method: c.file.Name, Msg: fmt.Sprintf("field %q declared twice", name)}
	}
	c.fields[name] = t
	c.file.Fields = append(c.file.Fields, classfile.Field{Access: access, Name: name, Type: t})
	return types.FieldRef{Owner: c.file.Name, Name: name, Type: t}, nil
}

// File returns the class file built so far
func (c *Class) File() *classfile.Class {
	return c.file
}

// Bytes encodes the class file
func (c *Class) Bytes() ([]byte, error) {
	return c.file.Bytes()
}

// DefaultConstructor adds a public no-argument constructor calling the
// superclass constructor
func (c *Class) DefaultConstructor() (*Body, error) {
	return c.Method(Method{Name: "<init>", Desc: types.NewMethodDesc(types.Void)}, func(b *Block) {
		super := types.MethodRef{Owner: c.file.Super, Name: "<init>", Desc: types.NewMethodDesc(types.Void)}
		b.InvokeSpecial(super, b.This())
	})
}

// Method generates a method body. body receives the root block; the
// method is added to the class only when generation succeeds.
func (c *Class) Method(shape Method, body func(*Block)) (out *Body, err error) {
	full := c.file.Name + "." + shape.Name
	if shape.Owner != "" && shape.Owner != c.file.Name {
		return nil, &Error{Kind: InvalidState, Method: full, Msg: fmt.Sprintf("method owner %s is not the class", shape.Owner)}
	}
	if c.file.FindMethod(shape.Name, shape.Desc.String()) != nil {
		return nil, &Error{Kind: InvalidState, Method: full, Msg: "method generated twice"}
	}
	var m *method
	defer func() {
		if r := recover(); r != nil {
			err = asError(r)
			if e, ok := err.(*Error); ok && e.Method == "" {
				e.Method = full + shape.Desc.String()
			}
			if m != nil {
				m.trace.Error(err)
			}
			out = nil
		}
	}()

	m = newMethod(c, shape)
	root := m.root
	body(root)
	if root.fallsOut() && !root.closed && root.state == stateActive {
		if !shape.Desc.Return.IsVoid() {
			fail(InvalidState, "missing return")
		}
		root.Return()
	}
	root.close()

	code, err := m.emit()
	if err != nil {
		return nil, err
	}
	access := shape.Access
	if access == 0 {
		access = classfile.AccPublic
	}
	if shape.Static {
		access |= classfile.AccStatic
	}
	cm := &classfile.Method{Access: access, Name: shape.Name, Desc: shape.Desc, Code: code}
	c.file.Methods = append(c.file.Methods, cm)
	return &Body{Code: code, Method: cm}, nil
}

// asError turns a recovered panic into an error, re-panicking for
// anything that is not a generation failure
func asError(r interface{}) error {
	switch e := r.(type) {
	case *Error:
		return e
	case *stackmap.Error:
		return &Error{Kind: Internal, Err: e}
	case *convert.MismatchError:
		return &Error{Kind: TypeMismatch, Err: e}
	case *classfile.LimitError:
		return &Error{Kind: Unsupported, Err: e}
	}
	panic(r)
}
