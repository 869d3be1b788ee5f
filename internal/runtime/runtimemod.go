package runtime

import "github.com/axlang/ax/internal/object"

// addRuntime wires Runtime.loadlib(1)/loadfunc(2)/invoke(>=1 variadic).
// spec.md §1 lists platform-specific dynamic-library loading as explicitly
// excluded from this specification ("treated as external collaborators"),
// and the sandboxed runtime this package serves has no mechanism for
// loading arbitrary host shared libraries in the first place. The bindings
// exist (scripts that reference them resolve rather than failing to link)
// but any actual call reports UnsupportedFeature.
func addRuntime(reg map[string]object.NativeFunc) {
	unsupported := func(name string) object.NativeFunc {
		return func(h object.Host, args []object.ID) (object.ID, error) {
			return 0, unsupportedError(name + " requires host dynamic-library loading, not available in this runtime")
		}
	}
	reg["Runtime_loadlib"] = unsupported("Runtime.loadlib")
	reg["Runtime_loadfunc"] = unsupported("Runtime.loadfunc")
	reg["Runtime_invoke"] = unsupported("Runtime.invoke")
}
