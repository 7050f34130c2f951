package vm

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/types"
)

// Value is a JVM value: int32 (also boolean, byte, char, short), int64,
// float32, float64, *Object, *Array or nil for the null reference
type Value interface{}

// Object is a heap instance. Native holds the payload of library
// objects: the Go string of a String, the types.Type of a Class, the
// primitive of a wrapper, an EnumValue, or the message of a Throwable.
type Object struct {
	Class  string
	Fields map[string]Value
	Native interface{}
}

// EnumValue is the payload of an enum constant
type EnumValue struct {
	Name    string
	Ordinal int32
}

// Array is a heap array
type Array struct {
	Elem types.Type
	Data []Value
}

func (o *Object) String() string {
	switch n := o.Native.(type) {
	case string:
		if o.Class == "java/lang/String" {
			return fmt.Sprintf("%q", n)
		}
		return fmt.Sprintf("%s(%s)", o.Class, n)
	case EnumValue:
		return o.Class + "." + n.Name
	case nil:
		return o.Class + "@"
	default:
		return fmt.Sprintf("%s(%v)", o.Class, n)
	}
}

// zero returns the default value of a field or array element of type t
func zero(t types.Type) Value {
	switch t.Category() {
	case types.CatInt:
		return int32(0)
	case types.CatLong:
		return int64(0)
	case types.CatFloat:
		return float32(0)
	case types.CatDouble:
		return float64(0)
	}
	return nil
}

// isWide reports whether v takes two slots
func isWide(v Value) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

// String returns the interned String object for s
func (vm *VM) String(s string) *Object {
	if o, ok := vm.strings[s]; ok {
		return o
	}
	o := &Object{Class: "java/lang/String", Native: s}
	vm.strings[s] = o
	return o
}

// NewString returns a String object distinct from every other, as new
// String(s) would
func (vm *VM) NewString(s string) *Object {
	return &Object{Class: "java/lang/String", Native: s}
}

// ClassObject returns the unique Class object for t
func (vm *VM) ClassObject(t types.Type) *Object {
	if o, ok := vm.classes[t]; ok {
		return o
	}
	o := &Object{Class: "java/lang/Class", Native: t}
	vm.classes[t] = o
	return o
}

// Enum returns the constant name of the enum class, creating it with
// ordinal on first use
func (vm *VM) Enum(class, name string, ordinal int) *Object {
	key := class + "." + name
	if o, ok := vm.enums[key]; ok {
		return o
	}
	o := &Object{Class: class, Native: EnumValue{Name: name, Ordinal: int32(ordinal)}}
	vm.enums[key] = o
	return o
}

// Box wraps a primitive in its wrapper object
func (vm *VM) Box(t types.Type, v Value) *Object {
	w, ok := wrapperOf[t]
	if !ok {
		panic(fmt.Sprintf("vm: no wrapper for %s", t))
	}
	if t != types.Float && t != types.Double {
		if cached := vm.boxCache(t, v); cached != nil {
			return cached
		}
	}
	return &Object{Class: w, Native: v}
}

// boxCache returns the shared instance for small boxed values, like
// Integer.valueOf does for -128..127
func (vm *VM) boxCache(t types.Type, v Value) *Object {
	var n int64
	switch x := v.(type) {
	case int32:
		n = int64(x)
	case int64:
		n = x
	default:
		return nil
	}
	if t == types.Char && (n < 0 || n > 127) || n < -128 || n > 127 {
		return nil
	}
	key := fmt.Sprintf("%s%d", t, n)
	if o, ok := vm.boxes[key]; ok {
		return o
	}
	o := &Object{Class: wrapperOf[t], Native: v}
	vm.boxes[key] = o
	return o
}

var wrapperOf = map[types.Type]string{
	types.Boolean: "java/lang/Boolean",
	types.Byte:    "java/lang/Byte",
	types.Char:    "java/lang/Character",
	types.Short:   "java/lang/Short",
	types.Int:     "java/lang/Integer",
	types.Long:    "java/lang/Long",
	types.Float:   "java/lang/Float",
	types.Double:  "java/lang/Double",
}

// GoString returns the contents of a String object
func GoString(v Value) (string, bool) {
	o, ok := v.(*Object)
	if !ok || o == nil || o.Class != "java/lang/String" {
		return "", false
	}
	s, ok := o.Native.(string)
	return s, ok
}

// typeOf returns the runtime type of a reference
func typeOf(v Value) types.Type {
	switch x := v.(type) {
	case *Object:
		return types.Class(x.Class)
	case *Array:
		return types.ArrayOf(x.Elem)
	}
	return ""
}

// instanceOf reports whether the non-null reference v is an instance of
// the class or array type named by internal name
func (vm *VM) instanceOf(v Value, name string) bool {
	return types.IsAssignable(vm.Hierarchy, typeOf(v), types.TypeFromInternalName(name))
}
