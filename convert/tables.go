package convert

import "github.com/quarkusio/gizmo-sub001/types"

// wrappers maps each primitive to its wrapper class
var wrappers = map[types.Type]types.Type{
	types.Boolean: types.Class("java/lang/Boolean"),
	types.Byte:    types.Class("java/lang/Byte"),
	types.Char:    types.Class("java/lang/Character"),
	types.Short:   types.Class("java/lang/Short"),
	types.Int:     types.Class("java/lang/Integer"),
	types.Long:    types.Class("java/lang/Long"),
	types.Float:   types.Class("java/lang/Float"),
	types.Double:  types.Class("java/lang/Double"),
}

// primitives is the inverse of wrappers
var primitives = func() map[types.Type]types.Type {
	m := make(map[types.Type]types.Type, len(wrappers))
	for p, w := range wrappers {
		m[w] = p
	}
	return m
}()

// wrapperSupers lists the reference supertypes of every wrapper that a
// boxed value may be widened to without a cast.
var wrapperSupers = map[types.Type][]types.Type{
	types.Boolean: {types.Object, serializable, types.Comparable, constable},
	types.Char:    {types.Object, serializable, types.Comparable, constable},
	types.Byte:    {types.Object, serializable, types.Comparable, constable, types.Number},
	types.Short:   {types.Object, serializable, types.Comparable, constable, types.Number},
	types.Int:     {types.Object, serializable, types.Comparable, constable, constantDesc, types.Number},
	types.Long:    {types.Object, serializable, types.Comparable, constable, constantDesc, types.Number},
	types.Float:   {types.Object, serializable, types.Comparable, constable, constantDesc, types.Number},
	types.Double:  {types.Object, serializable, types.Comparable, constable, constantDesc, types.Number},
}

var (
	serializable = types.Class("java/io/Serializable")
	constable    = types.Class("java/lang/constant/Constable")
	constantDesc = types.Class("java/lang/constant/ConstantDesc")
)

// widenings lists, for each primitive, the primitives it widens to
// without a cast (JLS 5.1.2)
var widenings = map[types.Type][]types.Type{
	types.Byte:  {types.Short, types.Int, types.Long, types.Float, types.Double},
	types.Short: {types.Int, types.Long, types.Float, types.Double},
	types.Char:  {types.Int, types.Long, types.Float, types.Double},
	types.Int:   {types.Long, types.Float, types.Double},
	types.Long:  {types.Float, types.Double},
	types.Float: {types.Double},
}

// unboxMethods names the xxxValue accessor per primitive
var unboxMethods = map[types.Type]string{
	types.Boolean: "booleanValue",
	types.Byte:    "byteValue",
	types.Char:    "charValue",
	types.Short:   "shortValue",
	types.Int:     "intValue",
	types.Long:    "longValue",
	types.Float:   "floatValue",
	types.Double:  "doubleValue",
}

// Boxed returns the wrapper class of a primitive type
func Boxed(p types.Type) (types.Type, bool) {
	w, ok := wrappers[p]
	return w, ok
}

// Unboxed returns the primitive type wrapped by a wrapper class
func Unboxed(w types.Type) (types.Type, bool) {
	p, ok := primitives[w]
	return p, ok
}

// IsWidening reports whether from widens to to as a primitive conversion
func IsWidening(from, to types.Type) bool {
	for _, t := range widenings[from] {
		if t == to {
			return true
		}
	}
	return false
}

// BoxMethod returns the static valueOf method that boxes p
func BoxMethod(p types.Type) types.MethodRef {
	w := wrappers[p]
	return types.MethodRef{
		Owner: w.InternalName(),
		Name:  "valueOf",
		Desc:  types.NewMethodDesc(w, p),
	}
}

// UnboxMethod returns the accessor that unboxes a wrapper to p
func UnboxMethod(p types.Type) types.MethodRef {
	w := wrappers[p]
	return types.MethodRef{
		Owner: w.InternalName(),
		Name:  unboxMethods[p],
		Desc:  types.NewMethodDesc(p),
	}
}

func boxesTo(p, ref types.Type) bool {
	if wrappers[p] == ref {
		return true
	}
	for _, s := range wrapperSupers[p] {
		if s == ref {
			return true
		}
	}
	return false
}
