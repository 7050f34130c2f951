package vm

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/types"
)

// ProbeClass is the class whose static hit(String) method counts calls
// into VM.Probes. Tests use it to observe which paths generated code took.
const ProbeClass = "gizmo/Probe"

// ProbeHit is the method recording a probe hit
var ProbeHit = types.NewMethodRef(ProbeClass, "hit", "(Ljava/lang/String;)V")

// NativeFunc implements a method outside the executed class. For
// instance methods args[0] is the receiver.
type NativeFunc func(vm *VM, args []Value) (Value, error)

// Natives maps "owner.name+desc" to implementations
type Natives struct {
	funcs map[string]NativeFunc
}

// NewNatives returns a registry holding the library methods generated
// code relies on
func NewNatives() *Natives {
	n := &Natives{funcs: make(map[string]NativeFunc)}
	n.registerLang()
	n.registerWrappers()
	return n
}

func nativeKey(owner, name, desc string) string {
	return owner + "." + name + desc
}

// Register adds or replaces an implementation
func (n *Natives) Register(owner, name, desc string, fn NativeFunc) {
	n.funcs[nativeKey(owner, name, desc)] = fn
}

// Lookup finds the implementation of a method
func (n *Natives) Lookup(owner, name, desc string) (NativeFunc, bool) {
	fn, ok := n.funcs[nativeKey(owner, name, desc)]
	return fn, ok
}

func (n *Natives) registerLang() {
	n.Register("java/lang/Object", "<init>", "()V", func(vm *VM, args []Value) (Value, error) {
		return nil, nil
	})
	n.Register("java/lang/Object", "equals", "(Ljava/lang/Object;)Z", func(vm *VM, args []Value) (Value, error) {
		return boolInt(args[0] == args[1]), nil
	})
	n.Register("java/lang/Object", "getClass", "()Ljava/lang/Class;", func(vm *VM, args []Value) (Value, error) {
		return vm.ClassObject(typeOf(args[0])), nil
	})

	n.Register("java/lang/String", "hashCode", "()I", func(vm *VM, args []Value) (Value, error) {
		s, _ := GoString(args[0])
		return types.StringHashCode(s), nil
	})
	n.Register("java/lang/String", "equals", "(Ljava/lang/Object;)Z", func(vm *VM, args []Value) (Value, error) {
		a, _ := GoString(args[0])
		b, ok := GoString(args[1])
		return boolInt(ok && a == b), nil
	})
	n.Register("java/lang/String", "length", "()I", func(vm *VM, args []Value) (Value, error) {
		s, _ := GoString(args[0])
		return int32(len([]rune(s))), nil
	})
	n.Register("java/lang/String", "concat", "(Ljava/lang/String;)Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		a, _ := GoString(args[0])
		b, _ := GoString(args[1])
		return vm.NewString(a + b), nil
	})

	n.Register("java/lang/Enum", "name", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		e, err := enumOf(vm, args[0])
		if err != nil {
			return nil, err
		}
		return vm.String(e.Name), nil
	})
	n.Register("java/lang/Enum", "ordinal", "()I", func(vm *VM, args []Value) (Value, error) {
		e, err := enumOf(vm, args[0])
		if err != nil {
			return nil, err
		}
		return e.Ordinal, nil
	})

	n.Register("java/lang/Class", "getName", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		t, _ := args[0].(*Object).Native.(types.Type)
		return vm.String(types.ClassName(t)), nil
	})

	n.Register("java/lang/Throwable", "<init>", "()V", func(vm *VM, args []Value) (Value, error) {
		return nil, nil
	})
	n.Register("java/lang/Throwable", "<init>", "(Ljava/lang/String;)V", func(vm *VM, args []Value) (Value, error) {
		if s, ok := GoString(args[1]); ok {
			args[0].(*Object).Native = s
		}
		return nil, nil
	})
	n.Register("java/lang/Throwable", "getMessage", "()Ljava/lang/String;", func(vm *VM, args []Value) (Value, error) {
		if s, ok := args[0].(*Object).Native.(string); ok {
			return vm.String(s), nil
		}
		return nil, nil
	})

	n.Register(ProbeClass, "hit", "(Ljava/lang/String;)V", func(vm *VM, args []Value) (Value, error) {
		s, _ := GoString(args[0])
		vm.Probes[s]++
		return nil, nil
	})
	n.Register(ProbeClass, "count", "(Ljava/lang/String;)I", func(vm *VM, args []Value) (Value, error) {
		s, _ := GoString(args[0])
		return int32(vm.Probes[s]), nil
	})
}

func enumOf(vm *VM, v Value) (EnumValue, error) {
	o, _ := v.(*Object)
	if o != nil {
		if e, ok := o.Native.(EnumValue); ok {
			return e, nil
		}
	}
	return EnumValue{}, fmt.Errorf("vm: %v is not an enum constant", v)
}

// registerWrappers adds valueOf, xxxValue and equals for every wrapper
// class
func (n *Natives) registerWrappers() {
	for prim, class := range wrapperOf {
		prim, class := prim, class
		n.Register(class, "valueOf", "("+string(prim)+")L"+class+";", func(vm *VM, args []Value) (Value, error) {
			return vm.Box(prim, args[0]), nil
		})
		n.Register(class, "equals", "(Ljava/lang/Object;)Z", func(vm *VM, args []Value) (Value, error) {
			o, ok := args[1].(*Object)
			return boolInt(ok && o != nil && o.Class == class && o.Native == args[0].(*Object).Native), nil
		})
	}
	// Number subclasses answer every numeric xxxValue
	numeric := []types.Type{types.Byte, types.Short, types.Int, types.Long, types.Float, types.Double}
	for _, w := range numeric {
		for _, to := range numeric {
			to := to
			name := types.ClassName(to) + "Value"
			n.Register(wrapperOf[w], name, "()"+string(to), func(vm *VM, args []Value) (Value, error) {
				return numericAs(args[0].(*Object).Native, to), nil
			})
		}
	}
	n.Register("java/lang/Boolean", "booleanValue", "()Z", func(vm *VM, args []Value) (Value, error) {
		return args[0].(*Object).Native, nil
	})
	n.Register("java/lang/Character", "charValue", "()C", func(vm *VM, args []Value) (Value, error) {
		return args[0].(*Object).Native, nil
	})
}

// numericAs converts a wrapper payload the way Number.xxxValue does
func numericAs(v Value, to types.Type) Value {
	var i int64
	var f float64
	isFloat := false
	switch x := v.(type) {
	case int32:
		i = int64(x)
	case int64:
		i = x
	case float32:
		f, isFloat = float64(x), true
	case float64:
		f, isFloat = x, true
	}
	switch to {
	case types.Float:
		if isFloat {
			return float32(f)
		}
		return float32(i)
	case types.Double:
		if isFloat {
			return f
		}
		return float64(i)
	}
	if isFloat {
		if to == types.Long {
			return d2l(f)
		}
		i = int64(d2i(f))
	}
	switch to {
	case types.Byte:
		return int32(int8(i))
	case types.Short:
		return int32(int16(i))
	case types.Long:
		return i
	}
	return int32(i)
}
