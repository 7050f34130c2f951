package stackmap

import (
	"fmt"

	"github.com/quarkusio/gizmo-sub001/types"
)

// Tag is a verification type tag. Values up to Uninitialized match the
// verification_type_info tags of the StackMapTable attribute.
type Tag uint8

const (
	Top Tag = iota
	Integer
	Float
	Double
	Long
	Null
	UninitializedThis
	Object
	Uninitialized
	Wide2 // second slot of a long or double; encoded as nothing
)

// VType is a verification type
type VType struct {
	Tag    Tag
	Class  string // internal name for Object
	Offset int    // offset of the new instruction for Uninitialized
}

// Common verification types
var (
	TopType    = VType{Tag: Top}
	IntType    = VType{Tag: Integer}
	FloatType  = VType{Tag: Float}
	LongType   = VType{Tag: Long}
	DoubleType = VType{Tag: Double}
	NullType   = VType{Tag: Null}
	ThisUninit = VType{Tag: UninitializedThis}
	wideSecond = VType{Tag: Wide2}
)

// ObjectType returns the verification type of a class or array
func ObjectType(internalName string) VType {
	return VType{Tag: Object, Class: internalName}
}

// UninitializedAt returns the type pushed by the new instruction at offset
func UninitializedAt(offset int) VType {
	return VType{Tag: Uninitialized, Offset: offset}
}

// Of maps a field type to its verification type
func Of(t types.Type) VType {
	switch t.Category() {
	case types.CatInt:
		return IntType
	case types.CatLong:
		return LongType
	case types.CatFloat:
		return FloatType
	case types.CatDouble:
		return DoubleType
	case types.CatReference:
		return ObjectType(t.InternalName())
	default:
		return TopType
	}
}

// IsWide reports whether v occupies two slots
func (v VType) IsWide() bool {
	return v.Tag == Long || v.Tag == Double
}

// Size returns the number of slots v occupies
func (v VType) Size() int {
	if v.IsWide() {
		return 2
	}
	return 1
}

// IsReference reports whether v may be used where a reference is expected
func (v VType) IsReference() bool {
	switch v.Tag {
	case Null, Object, Uninitialized, UninitializedThis:
		return true
	}
	return false
}

// String returns a compact form used by traces and the disassembler
func (v VType) String() string {
	switch v.Tag {
	case Top:
		return "top"
	case Integer:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case Long:
		return "long"
	case Null:
		return "null"
	case UninitializedThis:
		return "uninitializedThis"
	case Object:
		return v.Class
	case Uninitialized:
		return fmt.Sprintf("uninitialized(%d)", v.Offset)
	case Wide2:
		return "-"
	default:
		return "?"
	}
}

// Compact drops the Wide2 sentinels and trailing Tops, giving the list as
// it is written to a StackMapTable entry.
func Compact(vs []VType) []VType {
	out := make([]VType, 0, len(vs))
	for _, v := range vs {
		if v.Tag != Wide2 {
			out = append(out, v)
		}
	}
	for len(out) > 0 && out[len(out)-1].Tag == Top {
		out = out[:len(out)-1]
	}
	return out
}

// Expand is the inverse of Compact
func Expand(vs []VType) []VType {
	if len(vs) == 0 {
		return nil
	}
	out := make([]VType, 0, len(vs))
	for _, v := range vs {
		out = append(out, v)
		if v.IsWide() {
			out = append(out, wideSecond)
		}
	}
	return out
}
