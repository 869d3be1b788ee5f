package object

// NewNull allocates a fresh null object, flagged temporary (its lifetime
// ends at the next pop unless stored).
func (h *Heap) NewNull() ID {
	return h.Alloc(&Object{Kind: KindNull, Flags: FlagTemporary})
}

func (h *Heap) NewInt(v int64) ID {
	return h.Alloc(&Object{Kind: KindInt, Int: v, Flags: FlagTemporary})
}

func (h *Heap) NewFloat(v float64) ID {
	return h.Alloc(&Object{Kind: KindFloat, Float: v, Flags: FlagTemporary})
}

func (h *Heap) NewString(v string) ID {
	return h.Alloc(&Object{Kind: KindString, Str: v, Flags: FlagTemporary})
}

func (h *Heap) NewStruct() ID {
	return h.Alloc(&Object{Kind: KindStruct, Flags: FlagTemporary})
}

func (h *Heap) NewFunction(addr uint64, nargs int, variadic bool) ID {
	return h.Alloc(&Object{Kind: KindFunction, FuncAddr: addr, FuncNArgs: nargs, FuncVariadic: variadic, Flags: FlagTemporary})
}

func (h *Heap) NewNative(fn NativeFunc) ID {
	return h.Alloc(&Object{Kind: KindNative, Native: fn, Flags: FlagTemporary})
}
