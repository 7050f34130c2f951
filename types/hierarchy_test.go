package types

import "testing"

func TestIsSubclass(t *testing.T) {
	tests := []struct {
		sub, super string
		want       bool
	}{
		{"java/lang/Integer", "java/lang/Number", true},
		{"java/lang/Integer", "java/lang/Comparable", true},
		{"java/lang/Integer", "java/io/Serializable", true},
		{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/RuntimeException", true},
		{"java/lang/RuntimeException", "java/lang/Error", false},
		{"java/lang/String", "java/lang/Number", false},
		{"test/Unknown", "java/lang/Object", true},
		{"test/Unknown", "java/lang/Throwable", false},
	}
	for _, tt := range tests {
		if got := IsSubclass(JDK, tt.sub, tt.super); got != tt.want {
			t.Errorf("IsSubclass(%s, %s) = %v, want %v", tt.sub, tt.super, got, tt.want)
		}
	}
}

func TestIsAssignable(t *testing.T) {
	integer := Class("java/lang/Integer")
	tests := []struct {
		from, to Type
		want     bool
	}{
		{Int, Int, true},
		{Int, Long, false},
		{integer, Number, true},
		{integer, Object, true},
		{String, Comparable, true},
		{ArrayOf(String), ArrayOf(Object), true},
		{ArrayOf(Int), ArrayOf(Long), false},
		{ArrayOf(Int), Object, true},
		{ArrayOf(Int), Class("java/lang/Cloneable"), true},
		{Number, integer, false},
	}
	for _, tt := range tests {
		if got := IsAssignable(JDK, tt.from, tt.to); got != tt.want {
			t.Errorf("IsAssignable(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCommonSuperClass(t *testing.T) {
	h := JDK.With(map[string]ClassInfo{
		"test/A": {Super: "java/lang/RuntimeException"},
		"test/B": {Super: "java/lang/IllegalStateException"},
	})
	tests := []struct {
		a, b, want string
	}{
		{"java/lang/Integer", "java/lang/Long", "java/lang/Number"},
		{"test/A", "test/B", "java/lang/RuntimeException"},
		{"java/lang/String", "java/lang/Integer", "java/lang/Object"},
		{"java/lang/Comparable", "java/lang/Integer", "java/lang/Object"},
		{"test/A", "test/A", "test/A"},
		{"test/Unknown", "test/A", "java/lang/Object"},
	}
	for _, tt := range tests {
		if got := CommonSuperClass(h, tt.a, tt.b); got != tt.want {
			t.Errorf("CommonSuperClass(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}
