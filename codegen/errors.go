package codegen

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrorKind classifies a generation failure
type ErrorKind int

const (
	// TypeMismatch: a value cannot be converted to the type required
	TypeMismatch ErrorKind = iota + 1
	// InvalidState: the API was used in the wrong order or place
	InvalidState
	// Unsupported: a construct the generator cannot express
	Unsupported
	// Internal: an invariant of the generator itself was broken
	Internal
)

// String returns the string representation of the kind
func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "type mismatch"
	case InvalidState:
		return "invalid state"
	case Unsupported:
		return "unsupported"
	case Internal:
		return "internal error"
	default:
		return "unknown"
	}
}

// Error is returned by Class.Method when a body cannot be generated
type Error struct {
	Kind   ErrorKind
	Method string // owner.name, filled in when the error leaves Class.Method
	Msg    string
	Err    error // underlying error, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("codegen: ")
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fail aborts generation of the current method. Builders run deep inside
// user callbacks, so failures unwind with panic and are recovered by
// Class.Method.
func fail(kind ErrorKind, format string, args ...interface{}) {
	panic(&Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// callerSite returns file:line of the first caller outside this package's
// non-test sources, used to point at where an item was created
func callerSite() string {
	pcs := make([]uintptr, 24)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		inPkg := strings.Contains(f.Function, "/codegen.") && !strings.HasSuffix(f.File, "_test.go")
		if !inPkg && f.File != "" {
			return fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		}
		if !more {
			return "?"
		}
	}
}
