// Package object implements the tagged value representation and the
// arena-backed heap with mark-and-sweep collection.
//
// Rather than the base-class-plus-virtual-methods hierarchy of the
// original implementation (Variable/Function/NativeFunction/Array deriving
// from a common object with virtual Clone/ToString/TypeString), ax
// represents every heap value as one Object struct carrying a Kind tag and
// the fields relevant to that kind (SPEC_FULL.md design notes). Ownership
// is similarly flattened: instead of raw pointer-to-pointer fields and an
// unused refcount, every heap value lives in a Heap arena keyed by a
// stable integer ID; stack slots and frame locals hold IDs, never
// pointers, so mark-and-sweep walks IDs instead of chasing pointers.
package object

// Kind discriminates the value variants of spec.md §3's object model.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
	KindStruct
	KindFunction
	KindNative
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStruct:
		return "structure"
	case KindFunction:
		return "function"
	case KindNative:
		return "native"
	default:
		return "unknown"
	}
}

// Flag bits carried by every Object, per spec.md §3.
type Flag uint8

const (
	FlagTemporary Flag = 1 << iota
	FlagConst
	FlagMarked
)

// ID is a stable arena index into a Heap. IDs start at 0 and freed slots
// are reused; null values are ordinary allocated objects, not a reserved ID.
type ID int

// Field is one (name, reference) pair in an object's ordered field list.
type Field struct {
	Name string
	Ref  ID
}

// Object is the single heap value representation for every Kind.
type Object struct {
	Kind  Kind
	Flags Flag

	// RefCount is bookkeeping only, kept for fidelity with the spec's data
	// model; the authoritative collector is the Heap's mark-sweep pass,
	// not reference counting.
	RefCount int

	Fields []Field

	Int    int64
	Float  float64
	Str    string

	FuncAddr    uint64
	FuncNArgs   int
	FuncVariadic bool

	Native NativeFunc

	NativeData interface{} // opaque pointer to host-side data (native values)
}

func (o *Object) HasFlag(f Flag) bool  { return o.Flags&f != 0 }
func (o *Object) SetFlag(f Flag)       { o.Flags |= f }
func (o *Object) ClearFlag(f Flag)     { o.Flags &^= f }

func (o *Object) Field(name string) (ID, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Ref, true
		}
	}
	return 0, false
}

func (o *Object) SetField(name string, ref ID) {
	for i, f := range o.Fields {
		if f.Name == name {
			o.Fields[i].Ref = ref
			return
		}
	}
	o.Fields = append(o.Fields, Field{Name: name, Ref: ref})
}

// NativeFunc is the one bindable native function signature (spec.md §6's
// "Open Questions": the variadic form is the one actually used by
// invoke_object/invoke_native, so ax never carries the commented
// templated arity-specific variants).
type NativeFunc func(h Host, args []ID) (ID, error)

// Host is the minimal surface native functions need from the VM: creating
// values and reaching the heap. Kept as an interface here (rather than
// importing package vm) to avoid an import cycle — package vm implements
// Host.
type Host interface {
	Heap() *Heap
	NewInt(v int64) ID
	NewFloat(v float64) ID
	NewString(v string) ID
	NewNull() ID
}
