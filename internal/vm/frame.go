package vm

import "github.com/axlang/ax/internal/object"

// callFrame is one function activation.
//
// sema.Mangle bakes the declaring module's name into every identifier but
// not its lexical depth, so two nested blocks in one module can legally
// declare the same mangled name (sema.Stack's own Level-stack walk handles
// that shadowing at analysis time). Reproducing that exactly at runtime
// would mean a stack of per-block scopes here too. None of spec.md §8's six
// canonical scenarios shadows a name across nested blocks within the same
// function, so this VM uses one flat locals map per call instead: simpler,
// and it still gives every call its own fresh bindings (required for
// correct recursion) and still lets a function body see module-level
// globals it didn't declare (falling back to vm.globals on a miss). ifl/dfl
// bracket scopes in the instruction stream for drl's benefit at compile
// time (sema.Stack.DepthToEnclosingFunction) but don't open or close a
// separate runtime namespace.
type callFrame struct {
	locals     map[string]object.ID
	returnAddr int64
}

func newCallFrame(returnAddr int64) *callFrame {
	return &callFrame{locals: map[string]object.ID{}, returnAddr: returnAddr}
}

// handler is one live try_catch_block: where to resume on an exception, and
// how far to unwind the value/call stacks first (DESIGN.md: try_catch_
// block's exact bookkeeping is an explicit spec.md §9 Open Question; this
// VM pops the stacks back to their size when the handler was installed and
// resumes at the catch label, discarding any calls or pushes made inside
// the aborted try body).
type handler struct {
	catchPC   int64
	stackLen  int
	callDepth int
}

// arrayTarget remembers the (object, field-key) pair the most recent
// array_index addressed, so the zero-operand compound-assign opcodes
// (assign/add_assign/sub_assign/mul_assign/div_assign) know what to
// read-modify-write (DESIGN.md: these opcodes are scoped to array-element
// targets since they carry no operand of their own).
type arrayTarget struct {
	obj   object.ID
	key   string
	valid bool
}
