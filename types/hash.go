package types

import "unicode/utf16"

// StringHashCode returns java.lang.String.hashCode of s: the polynomial
// hash over its UTF-16 code units
func StringHashCode(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	return h
}

// LongHashCode returns java.lang.Long.hashCode of v
func LongHashCode(v int64) int32 {
	return int32(v ^ int64(uint64(v)>>32))
}

// ClassName returns what java.lang.Class.getName reports for t:
// "java.lang.String" for classes, "[I" or "[Ljava.lang.String;" for
// arrays and the keyword for primitives
func ClassName(t Type) string {
	switch t.Kind() {
	case KindReference:
		return t.String()
	case KindArray:
		b := []byte(t)
		for i, c := range b {
			if c == '/' {
				b[i] = '.'
			}
		}
		return string(b)
	}
	return t.Kind().String()
}
