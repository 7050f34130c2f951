package classfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/stackmap"
	"github.com/quarkusio/gizmo-sub001/types"
)

func TestPoolDeduplication(t *testing.T) {
	p := NewPool()
	a := p.String("hello")
	b := p.String("hello")
	if a != b {
		t.Errorf("same string got indexes %d and %d", a, b)
	}
	l := p.Long(42)
	next := p.Integer(1)
	if next != l+2 {
		t.Errorf("long should take two indexes: long at %d, next at %d", l, next)
	}
	m1 := p.Method(types.NewMethodRef("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;"))
	m2 := p.Method(types.NewMethodRef("java/lang/Integer", "valueOf", "(I)Ljava/lang/Integer;"))
	if m1 != m2 {
		t.Errorf("method refs not deduplicated: %d vs %d", m1, m2)
	}
	ref, err := p.MethodAt(m1)
	if err != nil {
		t.Fatal(err)
	}
	if ref.String() != "java/lang/Integer.valueOf:(I)Ljava/lang/Integer;" {
		t.Errorf("resolved %s", ref)
	}
}

func TestConstantAt(t *testing.T) {
	p := NewPool()
	tests := []struct {
		idx  uint16
		want interface{}
		typ  types.Type
	}{
		{p.Integer(-7), int32(-7), types.Int},
		{p.Float(1.5), float32(1.5), types.Float},
		{p.Long(1 << 40), int64(1 << 40), types.Long},
		{p.Double(2.25), 2.25, types.Double},
		{p.String("x"), "x", types.String},
		{p.Class("java/lang/String"), types.String, types.JavaClass},
	}
	for _, tt := range tests {
		v, typ, err := p.ConstantAt(tt.idx)
		if err != nil {
			t.Errorf("ConstantAt(%d): %v", tt.idx, err)
			continue
		}
		if v != tt.want || typ != tt.typ {
			t.Errorf("ConstantAt(%d) = %v (%s), want %v (%s)", tt.idx, v, typ, tt.want, tt.typ)
		}
	}
	if _, _, err := p.ConstantAt(p.Utf8("raw")); err == nil {
		t.Error("Utf8 entries are not loadable")
	}
}

func TestModifiedUTF8(t *testing.T) {
	for _, s := range []string{"", "plain", "nul\x00byte", "é", "😀"} {
		enc := modifiedUTF8(s)
		if bytes.IndexByte(enc, 0) >= 0 {
			t.Errorf("%q encodes a raw NUL", s)
		}
		dec, err := decodeModifiedUTF8(enc)
		if err != nil {
			t.Errorf("%q: %v", s, err)
			continue
		}
		if dec != s {
			t.Errorf("round trip %q -> %q", s, dec)
		}
	}
	if got := len(modifiedUTF8("😀")); got != 6 {
		t.Errorf("supplementary character takes %d bytes, want 6", got)
	}
}

func TestMajorFor(t *testing.T) {
	tests := []struct {
		release int
		want    uint16
	}{
		{6, 50},
		{8, 52},
		{17, 61},
		{21, 65},
	}
	for _, tt := range tests {
		got, err := MajorFor(tt.release)
		if err != nil || got != tt.want {
			t.Errorf("MajorFor(%d) = %d, %v; want %d", tt.release, got, err, tt.want)
		}
	}
	if _, err := MajorFor(5); err == nil {
		t.Error("release 5 should be rejected")
	}
}

// sample returns a class with one method:
//
//	static int f(int x) { return x != 0 ? 1 : 0; }
func sample() *Class {
	m := &Method{
		Access: AccPublic | AccStatic,
		Name:   "f",
		Desc:   types.MustMethodDesc("(I)I"),
	}
	m.Code = &Code{
		MaxStack:  1,
		MaxLocals: 1,
		Bytes:     []byte{0x1a, 0x99, 0x00, 0x05, 0x04, 0xac, 0x03, 0xac},
		Initial:   []stackmap.VType{stackmap.IntType},
		Frames: []stackmap.Frame{
			{Offset: 6, Locals: []stackmap.VType{stackmap.IntType}},
		},
		Lines: []LineNumber{{Start: 0, Line: 3}},
		Locals: []LocalVar{
			{Start: 0, Length: 8, Name: "x", Type: types.Int, Slot: 0},
		},
	}
	return &Class{
		Major:   61,
		Access:  AccPublic | AccSuper,
		Name:    "test/Sample",
		Super:   "java/lang/Object",
		Pool:    NewPool(),
		Fields:  []Field{{Access: AccStatic, Name: "count", Type: types.Int}},
		Methods: []*Method{m},
	}
}

func TestEncodeDecode(t *testing.T) {
	c := sample()
	data, err := c.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("encoding is not deterministic")
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "test/Sample" || got.Super != "java/lang/Object" || got.Major != 61 {
		t.Errorf("header mismatch: %s extends %s, major %d", got.Name, got.Super, got.Major)
	}
	if len(got.Fields) != 1 || got.Fields[0].Name != "count" {
		t.Errorf("fields mismatch: %+v", got.Fields)
	}
	m := got.FindMethod("f", "(I)I")
	if m == nil || m.Code == nil {
		t.Fatal("method f not decoded")
	}
	want := c.Methods[0].Code
	if diff := cmp.Diff(want, m.Code); diff != "" {
		t.Errorf("code mismatch (-want +got):\n%s", diff)
	}
}

func TestStackMapForms(t *testing.T) {
	p := NewPool()
	str := stackmap.ObjectType("java/lang/String")
	initial := []stackmap.VType{stackmap.IntType}
	frames := []stackmap.Frame{
		{Offset: 3, Locals: []stackmap.VType{stackmap.IntType}},                                                                                  // same
		{Offset: 5, Locals: []stackmap.VType{stackmap.IntType}, Stack: []stackmap.VType{str}},                                                    // same_locals_1
		{Offset: 9, Locals: stackmap.Expand([]stackmap.VType{stackmap.IntType, stackmap.LongType, str})},                                         // append 2
		{Offset: 200, Locals: []stackmap.VType{stackmap.IntType}},                                                                                // chop 2, extended delta
		{Offset: 204, Locals: []stackmap.VType{stackmap.IntType}, Stack: stackmap.Expand([]stackmap.VType{stackmap.LongType, stackmap.IntType})}, // full
	}
	data := EncodeStackMapTable(p, initial, frames)
	if data[2] != 3 {
		t.Errorf("first frame byte %d, want same_frame 3", data[2])
	}
	if data[3] != 64+1 {
		t.Errorf("second frame byte %d, want same_locals_1_stack_item 65", data[3])
	}

	decoded, err := DecodeStackMapTable(p, initial, data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(frames, decoded); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestCodeLimit(t *testing.T) {
	c := sample()
	c.Methods[0].Code.Bytes = make([]byte, 70000)
	_, err := c.Bytes()
	var le *LimitError
	if !errors.As(err, &le) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if le.What != "code" {
		t.Errorf("limit on %s, want code", le.What)
	}
}
