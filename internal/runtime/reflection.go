package runtime

import "github.com/axlang/ax/internal/object"

// addReflection wires Reflection.typeof(1), the binding the parser's
// `typeof expr` sugar lowers to directly (codegen.genExpr never emits a
// ModuleAccess for it; the parser already produced a FunctionCall named
// "Reflection_typeof").
func addReflection(reg map[string]object.NativeFunc) {
	reg["Reflection_typeof"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("Reflection.typeof", 1, len(args))
		}
		o := h.Heap().Get(args[0])
		if o == nil {
			return h.NewString("null"), nil
		}
		return h.NewString(o.Kind.String()), nil
	}
}
