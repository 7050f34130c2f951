package codegen

import (
	"errors"
	"fmt"

	"github.com/quarkusio/gizmo-sub001/bytecode"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/trace"
	"github.com/quarkusio/gizmo-sub001/types"
)

// method is the generation state of one method body
type method struct {
	class    *Class
	name     string
	desc     types.MethodDesc
	static   bool
	ctor     bool
	labels   *bytecode.Labels
	nextSlot int
	maxSlot  int // first slot above every local ever declared
	params   []*LocalVar
	root     *Block
	trace    *trace.MethodTrace
}

func newMethod(c *Class, shape Method) *method {
	m := &method{
		class:  c,
		name:   shape.Name,
		desc:   shape.Desc,
		static: shape.Static,
		ctor:   shape.Name == "<init>",
		labels: &c.labels,
		trace:  c.cfg.Tracer.Method(c.file.Name, shape.Name, shape.Desc),
	}
	root := &Block{
		m:       m,
		list:    newNodeList(),
		start:   m.labels.New(),
		end:     m.labels.New(),
		outType: types.Void,
	}
	m.root = root
	if m.ctor && m.static {
		panic(&Error{Kind: InvalidState, Msg: "constructor cannot be static"})
	}
	if !m.static {
		m.param("this", c.Type())
	}
	if len(shape.Params) > len(shape.Desc.Params) {
		panic(&Error{Kind: InvalidState, Msg: fmt.Sprintf("%d parameter names for %d parameters", len(shape.Params), len(shape.Desc.Params))})
	}
	for i, t := range shape.Desc.Params {
		name := fmt.Sprintf("arg%d", i)
		if i < len(shape.Params) && shape.Params[i] != "" {
			name = shape.Params[i]
		}
		m.param(name, t)
	}
	root.firstSlot = m.nextSlot
	return m
}

func (m *method) param(name string, t types.Type) {
	for _, p := range m.params {
		if p.name == name {
			panic(&Error{Kind: InvalidState, Msg: fmt.Sprintf("duplicate parameter %q", name)})
		}
	}
	l := &LocalVar{
		item:  item{typ: t},
		name:  name,
		slot:  m.nextSlot,
		owner: m.root,
		start: m.root.start,
		param: true,
	}
	m.nextSlot += t.Slots()
	m.maxSlot = m.nextSlot
	m.params = append(m.params, l)
}

func (m *method) hierarchy() types.Hierarchy {
	return m.class.h
}

// isReceiver reports whether e is the receiver of an instance method
func (m *method) isReceiver(e Expr) bool {
	return !m.static && e == Expr(m.params[0])
}

// initialLocals is the implicit first frame
func (m *method) initialLocals() []stackmap.VType {
	var locals []stackmap.VType
	for i, p := range m.params {
		if i == 0 && !m.static && m.ctor && m.class.file.Name != "java/lang/Object" {
			locals = append(locals, stackmap.ThisUninit)
			continue
		}
		locals = append(locals, stackmap.Of(p.typ))
	}
	return locals
}

// emit lowers the finished block tree
func (m *method) emit() (*classfile.Code, error) {
	a := bytecode.New(m.class.file.Name, m.class.file.Pool, m.labels, m.class.h, m.initialLocals())
	if m.trace != nil {
		a.SetTracer(m.trace)
	}
	g := &gen{a: a, m: m, nops: m.class.cfg.DebugNops, spillTop: m.maxSlot}
	g.block(m.root)
	if a.Reachable() {
		// reached through a break out of the method body
		if !m.desc.Return.IsVoid() {
			fail(InvalidState, "missing return")
		}
		a.Return(types.Void)
	}
	for _, p := range m.params {
		a.LocalVar(p.name, p.typ, p.slot, m.root.start, m.root.end)
	}
	code, err := a.Finish()
	if err != nil {
		var le *classfile.LimitError
		if errors.As(err, &le) {
			return nil, &Error{Kind: Unsupported, Method: m.class.file.Name + "." + m.name + m.desc.String(), Err: err}
		}
		return nil, &Error{Kind: Internal, Method: m.class.file.Name + "." + m.name + m.desc.String(), Err: err}
	}
	for _, f := range code.Frames {
		m.trace.Frame(f)
	}
	m.trace.Done(len(code.Bytes), code.MaxStack, code.MaxLocals)
	return code, nil
}
