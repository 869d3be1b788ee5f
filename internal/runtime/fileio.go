package runtime

import (
	"os"

	"github.com/axlang/ax/internal/object"
)

// addFileIO wires FileIO.open(2)/write(2)/read(2)/close(1). A handle is a
// struct object whose NativeData field holds the *os.File — the object
// model's one escape hatch for host-side data the tagged-value union has no
// field for (internal/object's design notes).
func addFileIO(reg map[string]object.NativeFunc) {
	reg["FileIO_open"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 2 {
			return 0, arityError("FileIO.open", 2, len(args))
		}
		path := stringArg(h, args[0])
		mode := stringArg(h, args[1])

		var flag int
		switch mode {
		case "r":
			flag = os.O_RDONLY
		case "w":
			flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		case "a":
			flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		default:
			return 0, typeError("FileIO.open: unknown mode '" + mode + "'")
		}
		f, err := os.OpenFile(path, flag, 0o644)
		if err != nil {
			return h.NewNull(), nil
		}
		id := h.Heap().NewStruct()
		h.Heap().Get(id).NativeData = f
		return id, nil
	}

	reg["FileIO_write"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 2 {
			return 0, arityError("FileIO.write", 2, len(args))
		}
		f, ok := fileArg(h, args[0])
		if !ok {
			return 0, typeError("FileIO.write: not an open file handle")
		}
		n, err := f.WriteString(stringArg(h, args[1]))
		if err != nil {
			return h.NewInt(-1), nil
		}
		return h.NewInt(int64(n)), nil
	}

	reg["FileIO_read"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 2 {
			return 0, arityError("FileIO.read", 2, len(args))
		}
		f, ok := fileArg(h, args[0])
		if !ok {
			return 0, typeError("FileIO.read: not an open file handle")
		}
		count := intArg(h, args[1])
		buf := make([]byte, count)
		n, err := f.Read(buf)
		if err != nil && n == 0 {
			return h.NewString(""), nil
		}
		return h.NewString(string(buf[:n])), nil
	}

	reg["FileIO_close"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("FileIO.close", 1, len(args))
		}
		f, ok := fileArg(h, args[0])
		if !ok {
			return h.NewNull(), nil
		}
		f.Close()
		return h.NewNull(), nil
	}
}

func stringArg(h object.Host, id object.ID) string {
	o := h.Heap().Get(id)
	if o == nil || o.Kind != object.KindString {
		return ""
	}
	return o.Str
}

func intArg(h object.Host, id object.ID) int64 {
	o := h.Heap().Get(id)
	if o == nil || o.Kind != object.KindInt {
		return 0
	}
	return o.Int
}

func fileArg(h object.Host, id object.ID) (*os.File, bool) {
	o := h.Heap().Get(id)
	if o == nil || o.Kind != object.KindStruct {
		return nil, false
	}
	f, ok := o.NativeData.(*os.File)
	return f, ok
}
