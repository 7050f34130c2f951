package types

import (
	"fmt"
	"strings"
)

// Type is a JVM field descriptor ("I", "J", "Ljava/lang/String;", "[I").
// Types are comparable and usable as map keys.
type Type string

// Primitive types
const (
	Void    Type = "V"
	Boolean Type = "Z"
	Byte    Type = "B"
	Char    Type = "C"
	Short   Type = "S"
	Int     Type = "I"
	Long    Type = "J"
	Float   Type = "F"
	Double  Type = "D"
)

// Well-known reference types
var (
	Object     = Class("java/lang/Object")
	String     = Class("java/lang/String")
	Throwable  = Class("java/lang/Throwable")
	JavaClass  = Class("java/lang/Class")
	Enum       = Class("java/lang/Enum")
	Number     = Class("java/lang/Number")
	Comparable = Class("java/lang/Comparable")
)

// Class returns the reference type for an internal class name
// ("java/lang/String"). Dotted names are accepted and normalized.
func Class(internalName string) Type {
	return Type("L" + strings.ReplaceAll(internalName, ".", "/") + ";")
}

// ArrayOf returns the array type with the given element type
func ArrayOf(elem Type) Type {
	return "[" + elem
}

// Kind returns the kind of the type
func (t Type) Kind() Kind {
	if len(t) == 0 {
		return KindVoid
	}
	switch t[0] {
	case 'V':
		return KindVoid
	case 'Z':
		return KindBoolean
	case 'B':
		return KindByte
	case 'C':
		return KindChar
	case 'S':
		return KindShort
	case 'I':
		return KindInt
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case '[':
		return KindArray
	default:
		return KindReference
	}
}

// Category returns the storage category of the type
func (t Type) Category() Category {
	switch t.Kind() {
	case KindVoid:
		return CatVoid
	case KindBoolean, KindByte, KindChar, KindShort, KindInt:
		return CatInt
	case KindLong:
		return CatLong
	case KindFloat:
		return CatFloat
	case KindDouble:
		return CatDouble
	default:
		return CatReference
	}
}

// Slots returns the number of slots a value of this type occupies
func (t Type) Slots() int {
	return t.Category().Slots()
}

// IsVoid reports whether t is void
func (t Type) IsVoid() bool { return t.Kind() == KindVoid }

// IsPrimitive reports whether t is a non-void primitive type
func (t Type) IsPrimitive() bool {
	k := t.Kind()
	return k != KindVoid && k != KindReference && k != KindArray
}

// IsReference reports whether t is a class, interface or array type
func (t Type) IsReference() bool {
	k := t.Kind()
	return k == KindReference || k == KindArray
}

// IsArray reports whether t is an array type
func (t Type) IsArray() bool { return t.Kind() == KindArray }

// IsWide reports whether t takes two slots
func (t Type) IsWide() bool { return t.Slots() == 2 }

// InternalName returns the name used in CONSTANT_Class entries:
// "java/lang/String" for classes, the full descriptor for arrays.
func (t Type) InternalName() string {
	switch t.Kind() {
	case KindReference:
		return string(t[1 : len(t)-1])
	case KindArray:
		return string(t)
	default:
		return ""
	}
}

// Elem returns the element type of an array type
func (t Type) Elem() Type {
	if !t.IsArray() {
		return ""
	}
	return t[1:]
}

// Descriptor returns the raw descriptor string
func (t Type) Descriptor() string {
	return string(t)
}

// String returns the Java source form of the type ("int", "java.lang.String", "int[]")
func (t Type) String() string {
	switch t.Kind() {
	case KindReference:
		return strings.ReplaceAll(t.InternalName(), "/", ".")
	case KindArray:
		return t.Elem().String() + "[]"
	default:
		return t.Kind().String()
	}
}

// TypeFromInternalName converts a CONSTANT_Class name back to a type
func TypeFromInternalName(name string) Type {
	if strings.HasPrefix(name, "[") {
		return Type(name)
	}
	return Class(name)
}

// ParseType accepts a descriptor ("I", "Ljava/lang/String;", "[J") or a
// Java source name ("int", "java.lang.String", "long[]", "String").
// Unqualified capitalized names resolve against java.lang.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty type")
	}
	if strings.HasSuffix(s, "[]") {
		elem, err := ParseType(s[:len(s)-2])
		if err != nil {
			return "", err
		}
		return ArrayOf(elem), nil
	}
	switch s {
	case "void":
		return Void, nil
	case "boolean":
		return Boolean, nil
	case "byte":
		return Byte, nil
	case "char":
		return Char, nil
	case "short":
		return Short, nil
	case "int":
		return Int, nil
	case "long":
		return Long, nil
	case "float":
		return Float, nil
	case "double":
		return Double, nil
	}
	t, n, err := parseDescriptor(s)
	if err == nil && n == len(s) {
		return t, nil
	}
	// descriptor-shaped input is not reread as a class name
	if err != nil && (strings.HasPrefix(s, "[") || strings.HasPrefix(s, "L") && strings.Contains(s, "/")) {
		return "", fmt.Errorf("invalid type %q: %w", s, err)
	}
	if strings.ContainsAny(s, ";[()") {
		return "", fmt.Errorf("invalid type %q", s)
	}
	if !strings.ContainsAny(s, "./") {
		s = "java/lang/" + s
	}
	return Class(s), nil
}

// parseDescriptor parses one field descriptor at the start of s and
// returns it with the number of bytes consumed.
func parseDescriptor(s string) (Type, int, error) {
	if s == "" {
		return "", 0, fmt.Errorf("unexpected end of descriptor")
	}
	switch s[0] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D', 'V':
		return Type(s[:1]), 1, nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 2 {
			return "", 0, fmt.Errorf("unterminated class descriptor %q", s)
		}
		return Type(s[:end+1]), end + 1, nil
	case '[':
		elem, n, err := parseDescriptor(s[1:])
		if err != nil {
			return "", 0, err
		}
		if elem == Void {
			return "", 0, fmt.Errorf("array of void in %q", s)
		}
		return ArrayOf(elem), n + 1, nil
	default:
		return "", 0, fmt.Errorf("invalid descriptor character %q in %q", s[0], s)
	}
}
