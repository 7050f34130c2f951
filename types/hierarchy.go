package types

// Hierarchy answers subtype questions about classes by internal name.
// Generated code may mention classes the hierarchy does not know; callers
// treat missing information conservatively.
type Hierarchy interface {
	// SuperClass returns the direct superclass of name. ok is false when
	// the class is unknown; java/lang/Object has super "".
	SuperClass(name string) (super string, ok bool)
	// Interfaces returns the interfaces directly implemented by name
	Interfaces(name string) []string
	// IsInterface reports whether name is a known interface
	IsInterface(name string) bool
}

// ClassInfo describes one class of a StaticHierarchy
type ClassInfo struct {
	Super      string
	Interfaces []string
	Interface  bool
}

// StaticHierarchy is a Hierarchy backed by a fixed table
type StaticHierarchy map[string]ClassInfo

// SuperClass implements Hierarchy
func (h StaticHierarchy) SuperClass(name string) (string, bool) {
	if name == "java/lang/Object" {
		return "", true
	}
	info, ok := h[name]
	if !ok {
		return "", false
	}
	if info.Super == "" {
		return "java/lang/Object", true
	}
	return info.Super, true
}

// Interfaces implements Hierarchy
func (h StaticHierarchy) Interfaces(name string) []string {
	return h[name].Interfaces
}

// IsInterface implements Hierarchy
func (h StaticHierarchy) IsInterface(name string) bool {
	return h[name].Interface
}

// With returns a copy of h extended with the given classes
func (h StaticHierarchy) With(classes map[string]ClassInfo) StaticHierarchy {
	out := make(StaticHierarchy, len(h)+len(classes))
	for k, v := range h {
		out[k] = v
	}
	for k, v := range classes {
		out[k] = v
	}
	return out
}

func iface(supers ...string) ClassInfo {
	return ClassInfo{Interface: true, Interfaces: supers}
}

func class(super string, ifaces ...string) ClassInfo {
	return ClassInfo{Super: super, Interfaces: ifaces}
}

const (
	serializable = "java/io/Serializable"
	comparable   = "java/lang/Comparable"
	constable    = "java/lang/constant/Constable"
	constantDesc = "java/lang/constant/ConstantDesc"
	charSequence = "java/lang/CharSequence"
)

// JDK covers the java.lang classes generated code commonly touches
var JDK = StaticHierarchy{
	"java/lang/Object":        {},
	"java/io/Serializable":    iface(),
	"java/lang/Comparable":    iface(),
	"java/lang/CharSequence":  iface(),
	"java/lang/Cloneable":     iface(),
	"java/lang/Runnable":      iface(),
	"java/lang/Iterable":      iface(),
	"java/lang/AutoCloseable": iface(),
	"java/io/Closeable":       iface("java/lang/AutoCloseable"),
	constable:                 iface(),
	constantDesc:              iface(),

	"java/lang/String":        class("", serializable, comparable, charSequence, constable, constantDesc),
	"java/lang/StringBuilder": class("", serializable, charSequence),
	"java/lang/Class":         class("", serializable, constable),
	"java/lang/Enum":          class("", comparable, serializable, constable),
	"java/lang/Number":        class("", serializable),
	"java/lang/Boolean":       class("", serializable, comparable, constable),
	"java/lang/Character":     class("", serializable, comparable, constable),
	"java/lang/Byte":          class("java/lang/Number", comparable, constable),
	"java/lang/Short":         class("java/lang/Number", comparable, constable),
	"java/lang/Integer":       class("java/lang/Number", comparable, constable, constantDesc),
	"java/lang/Long":          class("java/lang/Number", comparable, constable, constantDesc),
	"java/lang/Float":         class("java/lang/Number", comparable, constable, constantDesc),
	"java/lang/Double":        class("java/lang/Number", comparable, constable, constantDesc),

	"java/lang/Throwable":                      class("", serializable),
	"java/lang/Exception":                      class("java/lang/Throwable"),
	"java/lang/Error":                          class("java/lang/Throwable"),
	"java/lang/AssertionError":                 class("java/lang/Error"),
	"java/lang/RuntimeException":               class("java/lang/Exception"),
	"java/lang/IllegalStateException":          class("java/lang/RuntimeException"),
	"java/lang/IllegalArgumentException":       class("java/lang/RuntimeException"),
	"java/lang/NullPointerException":           class("java/lang/RuntimeException"),
	"java/lang/ArithmeticException":            class("java/lang/RuntimeException"),
	"java/lang/ClassCastException":             class("java/lang/RuntimeException"),
	"java/lang/UnsupportedOperationException":  class("java/lang/RuntimeException"),
	"java/lang/IndexOutOfBoundsException":      class("java/lang/RuntimeException"),
	"java/lang/ArrayIndexOutOfBoundsException": class("java/lang/IndexOutOfBoundsException"),
	"java/lang/NegativeArraySizeException":     class("java/lang/RuntimeException"),
	"java/lang/IllegalMonitorStateException":   class("java/lang/RuntimeException"),
	"java/lang/MatchException":                 class("java/lang/RuntimeException"),
}

// IsSubclass reports whether sub equals super or inherits from it through
// superclasses or interfaces. Unknown classes are not subclasses of
// anything but java/lang/Object and themselves.
func IsSubclass(h Hierarchy, sub, super string) bool {
	if sub == super || super == "java/lang/Object" {
		return true
	}
	seen := map[string]bool{}
	var walk func(name string) bool
	walk = func(name string) bool {
		if name == "" || seen[name] {
			return false
		}
		seen[name] = true
		if name == super {
			return true
		}
		for _, i := range h.Interfaces(name) {
			if walk(i) {
				return true
			}
		}
		s, ok := h.SuperClass(name)
		if !ok {
			return false
		}
		return walk(s)
	}
	return walk(sub)
}

// IsAssignable reports whether a value of type from may be stored where
// to is expected, following the verifier's rules: interfaces accept any
// reference, arrays are covariant for reference elements.
func IsAssignable(h Hierarchy, from, to Type) bool {
	if from == to {
		return true
	}
	if !from.IsReference() || !to.IsReference() {
		return false
	}
	if to == Object {
		return true
	}
	if to.IsArray() {
		if !from.IsArray() {
			return false
		}
		fe, te := from.Elem(), to.Elem()
		if fe.IsPrimitive() || te.IsPrimitive() {
			return fe == te
		}
		return IsAssignable(h, fe, te)
	}
	name := to.InternalName()
	if from.IsArray() {
		return name == "java/lang/Cloneable" || name == serializable
	}
	if h.IsInterface(name) {
		return true
	}
	return IsSubclass(h, from.InternalName(), name)
}

// CommonSuperClass returns the nearest common superclass of a and b,
// falling back to java/lang/Object for interfaces and unknown classes.
func CommonSuperClass(h Hierarchy, a, b string) string {
	if a == b {
		return a
	}
	if h.IsInterface(a) || h.IsInterface(b) {
		return "java/lang/Object"
	}
	chain := map[string]bool{}
	for name := a; name != ""; {
		chain[name] = true
		s, ok := h.SuperClass(name)
		if !ok {
			break
		}
		name = s
	}
	for name := b; name != ""; {
		if chain[name] {
			return name
		}
		s, ok := h.SuperClass(name)
		if !ok {
			break
		}
		name = s
	}
	return "java/lang/Object"
}
