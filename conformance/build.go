package conformance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/quarkusio/gizmo-sub001/codegen"
	"github.com/quarkusio/gizmo-sub001/types"
	"github.com/quarkusio/gizmo-sub001/vm"
)

// MethodName is the name every test method is generated under
const MethodName = "test"

// SuiteError reports a malformed statement or expression in a suite
type SuiteError struct {
	Msg string
}

func (e *SuiteError) Error() string {
	return "suite: " + e.Msg
}

func bad(format string, args ...interface{}) {
	panic(&SuiteError{Msg: fmt.Sprintf(format, args...)})
}

// scope maps the names a suite uses to locals and labelled blocks
type scope struct {
	parent *scope
	vars   map[string]*codegen.LocalVar
	labels map[string]*codegen.Block
}

func (s *scope) child() *scope {
	return &scope{parent: s, vars: map[string]*codegen.LocalVar{}, labels: map[string]*codegen.Block{}}
}

func (s *scope) local(name string) *codegen.LocalVar {
	for ; s != nil; s = s.parent {
		if l, ok := s.vars[name]; ok {
			return l
		}
	}
	bad("unknown variable %q", name)
	return nil
}

func (s *scope) label(name string) *codegen.Block {
	for ; s != nil; s = s.parent {
		if b, ok := s.labels[name]; ok {
			return b
		}
	}
	bad("unknown label %q", name)
	return nil
}

// TypeHierarchy returns the JDK hierarchy extended with the suite's classes
func (s *TestSuite) TypeHierarchy() types.StaticHierarchy {
	extra := make(map[string]types.ClassInfo, len(s.Hierarchy))
	for name, d := range s.Hierarchy {
		extra[name] = types.ClassInfo{Super: d.Super, Interfaces: d.Interfaces, Interface: d.Interface}
	}
	return types.JDK.With(extra)
}

// Generate builds the class holding the method of test
func Generate(test LoadedTest, cfg codegen.Config) (c *codegen.Class, out *codegen.Body, err error) {
	if cfg.Hierarchy == nil {
		cfg.Hierarchy = test.Suite.TypeHierarchy()
	}
	desc, err := types.ParseMethodDesc(test.Test.Method.Desc)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SuiteError)
			if !ok {
				panic(r)
			}
			c, out, err = nil, nil, se
		}
	}()

	c = codegen.NewClass(test.Suite.Class, "", cfg)
	shape := codegen.Method{
		Name:   MethodName,
		Desc:   desc,
		Static: !test.Test.Method.Instance,
		Params: test.Test.Method.Params,
	}
	out, err = c.Method(shape, func(b *codegen.Block) {
		s := (&scope{}).child()
		for i := range desc.Params {
			name := fmt.Sprintf("arg%d", i)
			if i < len(shape.Params) && shape.Params[i] != "" {
				name = shape.Params[i]
			}
			s.vars[name] = b.Param(name)
		}
		statements(b, s, test.Test.Body)
	})
	if err != nil {
		return nil, nil, err
	}
	return c, out, nil
}

// entry splits a single-key map into its key and value
func entry(v interface{}) (string, interface{}) {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) != 1 {
		bad("expected a single-key map, got %v", v)
	}
	for k, x := range m {
		return k, x
	}
	return "", nil
}

func fields(v interface{}) map[string]interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		bad("expected a map, got %v", v)
	}
	return m
}

func list(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	l, ok := v.([]interface{})
	if !ok {
		bad("expected a list, got %v", v)
	}
	return l
}

func str(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		bad("expected a string, got %v", v)
	}
	return s
}

func integer(v interface{}) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case uint64:
		return int64(x)
	}
	bad("expected an integer, got %v", v)
	return 0
}

func number(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		if strings.EqualFold(x, "nan") {
			return math.NaN()
		}
	}
	bad("expected a number, got %v", v)
	return 0
}

var primitiveNames = map[string]types.Type{
	"void":    types.Void,
	"boolean": types.Boolean,
	"byte":    types.Byte,
	"short":   types.Short,
	"char":    types.Char,
	"int":     types.Int,
	"long":    types.Long,
	"float":   types.Float,
	"double":  types.Double,
}

func typeNamed(v interface{}) types.Type {
	return parseTypeName(str(v))
}

func typeList(v interface{}) []types.Type {
	var ts []types.Type
	for _, x := range list(v) {
		ts = append(ts, typeNamed(x))
	}
	return ts
}

func statements(b *codegen.Block, s *scope, stmts []interface{}) {
	for _, st := range stmts {
		statement(b, s, st)
	}
}

// body returns a callback running stmts in a nested scope
func body(s *scope, stmts interface{}) func(*codegen.Block) {
	if stmts == nil {
		return nil
	}
	return func(b *codegen.Block) {
		statements(b, s.child(), list(stmts))
	}
}

func statement(b *codegen.Block, s *scope, st interface{}) {
	key, v := entry(st)
	switch key {
	case "return":
		if v == nil {
			b.Return()
		} else {
			b.ReturnValue(expr(b, s, v))
		}
	case "local":
		f := fields(v)
		name := str(f["name"])
		if t, ok := f["type"]; ok {
			s.vars[name] = b.LocalOf(name, typeNamed(t), expr(b, s, f["value"]))
		} else {
			s.vars[name] = b.Local(name, expr(b, s, f["value"]))
		}
	case "set":
		f := fields(v)
		b.Set(s.local(str(f["name"])), expr(b, s, f["value"]))
	case "inc":
		f := fields(v)
		by := int64(1)
		if x, ok := f["by"]; ok {
			by = integer(x)
		}
		b.Inc(s.local(str(f["name"])), int(by))
	case "if":
		f := fields(v)
		cond := expr(b, s, f["cond"])
		if els, ok := f["else"]; ok {
			b.IfElse(cond, body(s, f["then"]), body(s, els))
		} else {
			b.If(cond, body(s, f["then"]))
		}
	case "while":
		f := fields(v)
		cs := s.child()
		b.While(func(c *codegen.Block) codegen.Expr {
			if l, ok := f["label"]; ok {
				cs.labels[str(l)] = c
			}
			return expr(c, cs, f["cond"])
		}, body(cs, f["body"]))
	case "do":
		f := fields(v)
		b.DoWhile(body(s, f["body"]), func(c *codegen.Block) codegen.Expr {
			return expr(c, s, f["cond"])
		})
	case "for":
		f := fields(v)
		name := str(f["var"])
		from, to := expr(b, s, f["from"]), expr(b, s, f["to"])
		b.ForRange(name, from, to, func(c *codegen.Block, i *codegen.LocalVar) {
			cs := s.child()
			cs.vars[name] = i
			statements(c, cs, list(f["body"]))
		})
	case "loop", "block":
		f := fields(v)
		run := func(c *codegen.Block) {
			cs := s.child()
			if l, ok := f["label"]; ok {
				cs.labels[str(l)] = c
			}
			statements(c, cs, list(f["body"]))
		}
		if key == "loop" {
			b.Loop(run)
		} else {
			b.Block(run)
		}
	case "break":
		b.Break(s.label(str(v)))
	case "redo":
		b.Redo(s.label(str(v)))
	case "switch":
		f := fields(v)
		b.Switch(expr(b, s, f["on"]), func(sw *codegen.Switch) {
			cs := s.child()
			if l, ok := f["label"]; ok {
				cs.labels[str(l)] = sw.Block()
			}
			cases(sw, cs, f)
		})
	case "try":
		try(b, s, fields(v))
	case "throw":
		f, ok := v.(map[string]interface{})
		if ok && f["new"] != nil {
			msg, _ := f["message"].(string)
			b.ThrowNew(typeNamed(f["new"]), msg)
		} else {
			b.Throw(expr(b, s, v))
		}
	case "probe":
		b.InvokeStatic(vm.ProbeHit, codegen.Str(str(v)))
	case "sync":
		f := fields(v)
		b.Synchronized(expr(b, s, f["on"]), body(s, f["body"]))
	case "autoclose":
		f := fields(v)
		name := str(f["name"])
		b.AutoClose(name, expr(b, s, f["resource"]), func(c *codegen.Block, r *codegen.LocalVar) {
			cs := s.child()
			cs.vars[name] = r
			statements(c, cs, list(f["body"]))
		})
	case "aset":
		args := list(v)
		if len(args) != 3 {
			bad("aset takes array, index and value")
		}
		b.ArraySet(expr(b, s, args[0]), expr(b, s, args[1]), expr(b, s, args[2]))
	case "expr":
		expr(b, s, v)
	case "yield":
		b.Yield(expr(b, s, v))
	case "line":
		b.Line(int(integer(v)))
	case "nop":
		b.Nop()
	default:
		bad("unknown statement %q", key)
	}
}

func cases(sw *codegen.Switch, s *scope, f map[string]interface{}) {
	for _, c := range list(f["cases"]) {
		cf := fields(c)
		var keys []interface{}
		for _, k := range list(cf["keys"]) {
			keys = append(keys, caseKey(k))
		}
		sw.Case(caseBody(s, cf), keys...)
	}
	if d, ok := f["default"]; ok {
		sw.Default(caseBody(s, fields(d)))
	}
}

// caseBody runs a case's statements, or yields its value
func caseBody(s *scope, f map[string]interface{}) func(*codegen.Block) {
	if v, ok := f["value"]; ok {
		return func(c *codegen.Block) { c.Yield(expr(c, s, v)) }
	}
	return body(s, f["body"])
}

func caseKey(k interface{}) interface{} {
	m, ok := k.(map[string]interface{})
	if !ok {
		return k
	}
	if e, ok := m["enum"]; ok {
		ord := int64(-1)
		if o, ok := m["ordinal"]; ok {
			ord = integer(o)
		}
		return codegen.EnumConst{Name: str(e), Ordinal: int(ord)}
	}
	key, v := entry(k)
	switch key {
	case "long":
		return integer(v)
	case "class":
		return typeNamed(v)
	case "char":
		return rune(str(v)[0])
	}
	bad("unknown case key %v", k)
	return nil
}

func try(b *codegen.Block, s *scope, f map[string]interface{}) {
	b.Try(func(tr *codegen.Try) {
		tr.Body(body(s, f["body"]))
		for _, c := range list(f["catch"]) {
			cf := fields(c)
			name := str(cf["name"])
			stmts := list(cf["body"])
			tr.Catch(name, func(cb *codegen.Block, e *codegen.LocalVar) {
				cs := s.child()
				cs.vars[name] = e
				statements(cb, cs, stmts)
			}, typeList(cf["types"])...)
		}
		if fin, ok := f["finally"]; ok {
			tr.Finally(body(s, fin))
		}
	})
}

func pair(b *codegen.Block, s *scope, v interface{}) (codegen.Expr, codegen.Expr) {
	args := list(v)
	if len(args) != 2 {
		bad("expected two operands, got %v", v)
	}
	return expr(b, s, args[0]), expr(b, s, args[1])
}

func args(b *codegen.Block, s *scope, v interface{}) []codegen.Expr {
	var out []codegen.Expr
	for _, a := range list(v) {
		out = append(out, expr(b, s, a))
	}
	return out
}

var binaries = map[string]func(*codegen.Block, codegen.Expr, codegen.Expr) codegen.Expr{
	"add":  (*codegen.Block).Add,
	"sub":  (*codegen.Block).Sub,
	"mul":  (*codegen.Block).Mul,
	"div":  (*codegen.Block).Div,
	"rem":  (*codegen.Block).Rem,
	"and":  (*codegen.Block).And,
	"or":   (*codegen.Block).Or,
	"xor":  (*codegen.Block).Xor,
	"shl":  (*codegen.Block).Shl,
	"shr":  (*codegen.Block).Shr,
	"ushr": (*codegen.Block).Ushr,
	"eq":   (*codegen.Block).Eq,
	"ne":   (*codegen.Block).Ne,
	"lt":   (*codegen.Block).Lt,
	"le":   (*codegen.Block).Le,
	"gt":   (*codegen.Block).Gt,
	"ge":   (*codegen.Block).Ge,
}

var unaries = map[string]func(*codegen.Block, codegen.Expr) codegen.Expr{
	"not":     (*codegen.Block).Not,
	"neg":     (*codegen.Block).Neg,
	"isnull":  (*codegen.Block).IsNull,
	"notnull": (*codegen.Block).IsNotNull,
	"box":     (*codegen.Block).Box,
	"unbox":   (*codegen.Block).Unbox,
	"alen":    (*codegen.Block).ArrayLen,
}

func expr(b *codegen.Block, s *scope, v interface{}) codegen.Expr {
	switch x := v.(type) {
	case int:
		return codegen.Int(x)
	case string:
		return codegen.Str(x)
	case bool:
		return codegen.Bool(x)
	case float64:
		return codegen.Double(x)
	case nil:
		bad("missing expression")
	}
	key, arg := entry(v)
	if op, ok := binaries[key]; ok {
		x, y := pair(b, s, arg)
		return op(b, x, y)
	}
	if op, ok := unaries[key]; ok {
		return op(b, expr(b, s, arg))
	}
	switch key {
	case "int":
		return codegen.Int(int(integer(arg)))
	case "long":
		return codegen.Long(integer(arg))
	case "float":
		return codegen.Float(float32(number(arg)))
	case "double":
		return codegen.Double(number(arg))
	case "str":
		return codegen.Str(str(arg))
	case "bool":
		bv, ok := arg.(bool)
		if !ok {
			bad("expected a boolean, got %v", arg)
		}
		return codegen.Bool(bv)
	case "char":
		return codegen.Char([]rune(str(arg))[0])
	case "null":
		return codegen.Null(typeNamed(arg))
	case "class":
		return codegen.ClassOf(typeNamed(arg))
	case "param":
		return b.Param(str(arg))
	case "var":
		return s.local(str(arg))
	case "this":
		return b.This()
	case "cast", "convert", "instanceof":
		f := fields(arg)
		t, val := typeNamed(f["to"]), expr(b, s, f["value"])
		switch key {
		case "cast":
			return b.Cast(val, t)
		case "convert":
			return b.Convert(val, t)
		}
		return b.InstanceOf(val, t)
	case "cond":
		f := fields(arg)
		cond := expr(b, s, f["if"])
		return b.Cond(typeNamed(f["type"]), cond,
			func(c *codegen.Block) { c.Yield(expr(c, s, f["then"])) },
			func(c *codegen.Block) { c.Yield(expr(c, s, f["else"])) })
	case "andthen", "orelse":
		x, rest := pair0(arg)
		lhs := expr(b, s, x)
		rhs := func(c *codegen.Block) codegen.Expr { return expr(c, s, rest) }
		if key == "andthen" {
			return b.LogicalAnd(lhs, rhs)
		}
		return b.LogicalOr(lhs, rhs)
	case "switch":
		f := fields(arg)
		return b.SwitchExpr(typeNamed(f["type"]), expr(b, s, f["on"]), func(sw *codegen.Switch) {
			cases(sw, s.child(), f)
		})
	case "block":
		f := fields(arg)
		return b.BlockExpr(typeNamed(f["type"]), body(s, f["body"]))
	case "new":
		f := fields(arg)
		desc := "()V"
		if d, ok := f["desc"]; ok {
			desc = str(d)
		}
		return b.New(types.NewMethodRef(str(f["class"]), "<init>", desc), args(b, s, f["args"])...)
	case "newarray":
		f := fields(arg)
		return b.NewArray(typeNamed(f["type"]), expr(b, s, f["length"]))
	case "aget":
		arr, i := pair(b, s, arg)
		return b.ArrayGet(arr, i)
	case "invoke":
		return invoke(b, s, fields(arg))
	case "probes":
		return b.InvokeStatic(types.NewMethodRef(vm.ProbeClass, "count", "(Ljava/lang/String;)I"), codegen.Str(str(arg)))
	}
	bad("unknown expression %q (known: %s)", key, knownExprs())
	return nil
}

// pair0 returns the two unevaluated operands of a short-circuit operator
func pair0(v interface{}) (interface{}, interface{}) {
	l := list(v)
	if len(l) != 2 {
		bad("expected two operands, got %v", v)
	}
	return l[0], l[1]
}

func invoke(b *codegen.Block, s *scope, f map[string]interface{}) codegen.Expr {
	m := types.NewMethodRef(str(f["owner"]), str(f["name"]), str(f["desc"]))
	kind := "static"
	if k, ok := f["kind"]; ok {
		kind = str(k)
	}
	if kind == "static" {
		return b.InvokeStatic(m, args(b, s, f["args"])...)
	}
	recv := expr(b, s, f["recv"])
	rest := args(b, s, f["args"])
	switch kind {
	case "virtual":
		return b.InvokeVirtual(m, recv, rest...)
	case "interface":
		return b.InvokeInterface(m, recv, rest...)
	case "special":
		return b.InvokeSpecial(m, recv, rest...)
	}
	bad("unknown invoke kind %q", kind)
	return nil
}

func knownExprs() string {
	var names []string
	for k := range binaries {
		names = append(names, k)
	}
	for k := range unaries {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
