// Package runtime implements spec.md §6's bindable native functions: the
// Console, FileIO, Convert, Reflection, Runtime and Clock modules the VM's
// invoke_native dispatches into by fully-qualified name
// (sema.Mangle(moduleName, funcName), e.g. "Console_println").
//
// Every binding uses the variadic NativeFunc shape (object.NativeFunc):
// spec.md §9's Open Questions note the source keeps two versions of the
// native-function signature around (a variadic one and a family of unused
// templated arity-specific ones) and says to keep only the one actually
// exercised by invoke_object/invoke_native.
package runtime

import (
	"fmt"
	"io"

	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/object"
)

// arityError reports a fixed-arity native call invoked with the wrong
// number of arguments, reusing the analyzer's own ErrorType so a runtime
// arity mismatch (an invoke_native the analyzer couldn't check) reads the
// same way a compile-time one would.
func arityError(name string, want, got int) error {
	return &diag.Diagnostic{
		Kind:     diag.InvalidNumberOfArguments,
		Severity: diag.Fatal,
		Loc:      diag.Location{File: "<runtime>"},
		Detail:   fmt.Sprintf("%s expects %d argument(s), got %d", name, want, got),
	}
}

func typeError(detail string) error {
	return &diag.Diagnostic{Kind: diag.InvalidType, Severity: diag.Fatal, Loc: diag.Location{File: "<runtime>"}, Detail: detail}
}

func unsupportedError(detail string) error {
	return &diag.Diagnostic{Kind: diag.UnsupportedFeature, Severity: diag.Fatal, Loc: diag.Location{File: "<runtime>"}, Detail: detail}
}

// Registry builds the full fully-qualified-name -> implementation table for
// one VM run. stdout/stdin back Console's and FileIO's blocking I/O (the
// only native calls the VM's single-threaded loop ever blocks on, per
// spec.md §5).
func Registry(stdout io.Writer, stdin io.Reader) map[string]object.NativeFunc {
	reg := map[string]object.NativeFunc{}
	addConsole(reg, stdout, stdin)
	addFileIO(reg)
	addConvert(reg)
	addReflection(reg)
	addRuntime(reg)
	addClock(reg)
	return reg
}

// displayString renders a value the same way the VM's own Print opcode
// does: plain text, no quoting. Native functions need their own copy since
// object.Host doesn't expose the VM's internal helper (no import cycle
// wanted between vm and runtime).
func displayString(h object.Host, id object.ID) string {
	o := h.Heap().Get(id)
	if o == nil {
		return "null"
	}
	switch o.Kind {
	case object.KindNull:
		return "null"
	case object.KindInt:
		return formatInt(o.Int)
	case object.KindFloat:
		return formatFloat(o.Float)
	case object.KindString:
		return o.Str
	case object.KindStruct:
		return "structure"
	case object.KindFunction:
		return "function"
	case object.KindNative:
		return "native"
	default:
		return "unknown"
	}
}
