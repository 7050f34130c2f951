package types

// Kind classifies a JVM type descriptor
type Kind int

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindReference
	KindArray
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindReference:
		return "reference"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Category is the storage category of a value on the operand stack or in
// a local slot. Values of the same category share load/store/return
// instructions.
type Category int

const (
	CatVoid Category = iota
	CatInt           // boolean, byte, char, short, int
	CatLong
	CatFloat
	CatDouble
	CatReference // classes, interfaces, arrays, null
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case CatVoid:
		return "void"
	case CatInt:
		return "int"
	case CatLong:
		return "long"
	case CatFloat:
		return "float"
	case CatDouble:
		return "double"
	case CatReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Slots returns the number of stack/local slots a category occupies
func (c Category) Slots() int {
	switch c {
	case CatVoid:
		return 0
	case CatLong, CatDouble:
		return 2
	default:
		return 1
	}
}
