package runtime

import (
	"bufio"
	"io"

	"github.com/axlang/ax/internal/object"
)

// addConsole wires Console.system(1)/println(variadic)/readln(0), the
// module every script reaches by dot-access without an explicit import
// (sema.NativeModules).
func addConsole(reg map[string]object.NativeFunc, stdout io.Writer, stdin io.Reader) {
	reader := bufio.NewReader(stdin)

	reg["Console_println"] = func(h object.Host, args []object.ID) (object.ID, error) {
		for i, a := range args {
			if i > 0 {
				io.WriteString(stdout, " ")
			}
			io.WriteString(stdout, displayString(h, a))
		}
		io.WriteString(stdout, "\n")
		return h.NewNull(), nil
	}

	reg["Console_system"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("Console.system", 1, len(args))
		}
		// Shelling out from a sandboxed script interpreter is exactly the
		// kind of unrestricted host access this runtime never grants;
		// report the call rather than exec it.
		return 0, typeError("Console.system is not available in this runtime")
	}

	reg["Console_readln"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 0 {
			return 0, arityError("Console.readln", 0, len(args))
		}
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return h.NewNull(), nil
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		return h.NewString(line), nil
	}
}
