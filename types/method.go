package types

import (
	"fmt"
	"strings"
)

// MethodDesc is a parsed method descriptor
type MethodDesc struct {
	Params []Type
	Return Type
}

// NewMethodDesc builds a descriptor from a return type and parameter types
func NewMethodDesc(ret Type, params ...Type) MethodDesc {
	return MethodDesc{Params: params, Return: ret}
}

// String returns the descriptor form "(IJ)V"
func (d MethodDesc) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range d.Params {
		sb.WriteString(string(p))
	}
	sb.WriteByte(')')
	if d.Return == "" {
		sb.WriteString(string(Void))
	} else {
		sb.WriteString(string(d.Return))
	}
	return sb.String()
}

// ArgSlots returns the number of local slots the parameters occupy
// (excluding any receiver)
func (d MethodDesc) ArgSlots() int {
	n := 0
	for _, p := range d.Params {
		n += p.Slots()
	}
	return n
}

// ParseMethodDesc parses "(Ljava/lang/String;I)V"
func ParseMethodDesc(s string) (MethodDesc, error) {
	if !strings.HasPrefix(s, "(") {
		return MethodDesc{}, fmt.Errorf("method descriptor %q must start with '('", s)
	}
	var d MethodDesc
	rest := s[1:]
	for {
		if rest == "" {
			return MethodDesc{}, fmt.Errorf("unterminated method descriptor %q", s)
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		t, n, err := parseDescriptor(rest)
		if err != nil {
			return MethodDesc{}, fmt.Errorf("method descriptor %q: %w", s, err)
		}
		if t == Void {
			return MethodDesc{}, fmt.Errorf("void parameter in %q", s)
		}
		d.Params = append(d.Params, t)
		rest = rest[n:]
	}
	ret, n, err := parseDescriptor(rest)
	if err != nil {
		return MethodDesc{}, fmt.Errorf("method descriptor %q: %w", s, err)
	}
	if n != len(rest) {
		return MethodDesc{}, fmt.Errorf("trailing characters in method descriptor %q", s)
	}
	d.Return = ret
	return d, nil
}

// MustMethodDesc is like ParseMethodDesc but panics on error. It is meant
// for descriptors written as literals.
func MustMethodDesc(s string) MethodDesc {
	d, err := ParseMethodDesc(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MethodRef names a method to invoke
type MethodRef struct {
	Owner     string // internal name of the declaring class
	Name      string
	Desc      MethodDesc
	Interface bool // owner is an interface
}

// NewMethodRef is a convenience constructor taking a descriptor string
func NewMethodRef(owner, name, desc string) MethodRef {
	return MethodRef{Owner: owner, Name: name, Desc: MustMethodDesc(desc)}
}

// IsConstructor reports whether the method is an instance initializer
func (m MethodRef) IsConstructor() bool {
	return m.Name == "<init>"
}

// String returns "owner.name:desc"
func (m MethodRef) String() string {
	return m.Owner + "." + m.Name + ":" + m.Desc.String()
}

// FieldRef names a field to read or write
type FieldRef struct {
	Owner string
	Name  string
	Type  Type
}

// String returns "owner.name:desc"
func (f FieldRef) String() string {
	return f.Owner + "." + f.Name + ":" + string(f.Type)
}
