package object

import "testing"

func TestHeapAllocReusesFreedSlots(t *testing.T) {
	h := NewHeap()
	a := h.Alloc(&Object{Kind: KindInt, Int: 1})
	b := h.Alloc(&Object{Kind: KindInt, Int: 2})

	if freed := h.Collect(Roots{b}); freed != 1 {
		t.Fatalf("Collect freed = %d, want 1", freed)
	}
	if h.Get(a) != nil {
		t.Errorf("unreferenced object a survived collection")
	}
	if h.Get(b) == nil {
		t.Errorf("rooted object b was collected")
	}

	c := h.Alloc(&Object{Kind: KindInt, Int: 3})
	if c != a {
		t.Errorf("Alloc did not reuse freed slot %d, got %d", a, c)
	}
}

func TestHeapCollectMarksFieldsTransitively(t *testing.T) {
	h := NewHeap()
	leaf := h.Alloc(&Object{Kind: KindInt, Int: 9})
	root := h.Alloc(&Object{Kind: KindStruct})
	h.Get(root).SetField("x", leaf)

	h.Collect(Roots{root})

	if h.Get(leaf) == nil {
		t.Errorf("field reachable from a root was collected")
	}
	if h.Get(root) == nil {
		t.Errorf("root was collected")
	}
}

func TestHeapCloneCopiesFieldsNotFlags(t *testing.T) {
	h := NewHeap()
	src := h.Alloc(&Object{Kind: KindStruct, Flags: FlagMarked})
	h.Get(src).SetField("y", 42)

	dup := h.Clone(src)
	if dup == src {
		t.Fatalf("Clone returned the same ID")
	}
	if h.Get(dup).HasFlag(FlagMarked) {
		t.Errorf("Clone carried over the mark bit")
	}
	ref, ok := h.Get(dup).Field("y")
	if !ok || ref != 42 {
		t.Errorf("Clone did not copy fields: got %v, %v", ref, ok)
	}

	h.Get(dup).SetField("y", 7)
	if ref, _ := h.Get(src).Field("y"); ref != 42 {
		t.Errorf("mutating the clone's field list mutated the source's")
	}
}

func TestHeapShouldCollectTracksThreshold(t *testing.T) {
	h := NewHeap()
	if h.ShouldCollect() {
		t.Fatalf("empty heap should not suggest collection")
	}
	for i := 0; i < defaultMinThreshold+1; i++ {
		h.Alloc(&Object{Kind: KindNull})
	}
	if !h.ShouldCollect() {
		t.Errorf("heap past minThreshold should suggest collection")
	}
}
