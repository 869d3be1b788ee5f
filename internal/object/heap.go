package object

// node is one arena slot. A slot holds a live Object, or is linked into the
// free list (Obj == nil) awaiting reuse, standing in for the source's
// doubly-linked heap node list — the list is flattened into a vector plus
// a free-list, per the design notes.
type node struct {
	Obj *Object
}

// Heap is the sole owner of every non-temporary object; references from
// frames/the value stack are non-owning lookups by ID.
type Heap struct {
	nodes []node
	free  []ID

	liveCount int

	// GC scheduling thresholds (spec.md §4.10): SuggestGC fires once the
	// live count exceeds a threshold that increases in fixed steps
	// between minThreshold and maxThreshold.
	minThreshold int
	maxThreshold int
	stepSize     int
	threshold    int
}

const (
	defaultMinThreshold = 64
	defaultMaxThreshold = 1 << 16
	defaultStepSize     = 64
)

// NewHeap constructs an empty heap with the default GC thresholds.
func NewHeap() *Heap {
	return &Heap{
		minThreshold: defaultMinThreshold,
		maxThreshold: defaultMaxThreshold,
		stepSize:     defaultStepSize,
		threshold:    defaultMinThreshold,
	}
}

// Alloc creates a new heap object and returns its ID. Reused slots come
// from the free list first, matching the arena-with-free-list strategy
// from the design notes.
func (h *Heap) Alloc(obj *Object) ID {
	if n := len(h.free); n > 0 {
		id := h.free[n-1]
		h.free = h.free[:n-1]
		h.nodes[id].Obj = obj
		h.liveCount++
		return id
	}
	h.nodes = append(h.nodes, node{Obj: obj})
	h.liveCount++
	return ID(len(h.nodes) - 1)
}

// Get dereferences id. A freed or out-of-range id returns nil.
func (h *Heap) Get(id ID) *Object {
	if int(id) < 0 || int(id) >= len(h.nodes) {
		return nil
	}
	return h.nodes[id].Obj
}

// NumObjects is the number of currently-live heap objects.
func (h *Heap) NumObjects() int { return h.liveCount }

// ShouldCollect reports whether the live count has crossed the current
// GC-suggestion threshold.
func (h *Heap) ShouldCollect() bool { return h.liveCount > h.threshold }

// Clone performs the deep field-copy required for assignment of a
// temporary value (spec.md §4.9): a fresh object with the same scalar
// payload and a shallow copy of the field list (fields still point at the
// same referenced IDs; only the container is duplicated).
func (h *Heap) Clone(id ID) ID {
	src := h.Get(id)
	if src == nil {
		return id
	}
	dup := *src
	dup.Fields = append([]Field(nil), src.Fields...)
	dup.Flags = 0
	return h.Alloc(&dup)
}

// Roots is every ID reachable as a GC root: every reference on the value
// stack and every local in every frame from current back to global. The VM
// assembles this slice; package object stays ignorant of frame/stack
// shapes.
type Roots []ID

// Collect runs a full mark-and-sweep pass. Marking recurses into every
// object's fields. Sweep walks the arena; objects without FlagMarked are
// deleted and their slots linked into the free list; survivors have their
// mark bit cleared for the next cycle.
func (h *Heap) Collect(roots Roots) (freed int) {
	for _, r := range roots {
		h.mark(r)
	}
	for id := range h.nodes {
		obj := h.nodes[id].Obj
		if obj == nil {
			continue
		}
		if obj.HasFlag(FlagMarked) {
			obj.ClearFlag(FlagMarked)
			continue
		}
		h.nodes[id].Obj = nil
		h.free = append(h.free, ID(id))
		h.liveCount--
		freed++
	}
	h.advanceThreshold()
	return freed
}

func (h *Heap) mark(id ID) {
	obj := h.Get(id)
	if obj == nil || obj.HasFlag(FlagMarked) {
		return
	}
	obj.SetFlag(FlagMarked)
	for _, f := range obj.Fields {
		h.mark(f.Ref)
	}
}

// advanceThreshold resets the suggestion threshold to the post-sweep live
// count plus one fixed step (so a heap that stays busy doesn't thrash on
// every single allocation), clamped to [minThreshold, maxThreshold].
func (h *Heap) advanceThreshold() {
	next := h.liveCount + h.stepSize
	if next < h.minThreshold {
		next = h.minThreshold
	}
	if next > h.maxThreshold {
		next = h.maxThreshold
	}
	h.threshold = next
}
