package runtime

import (
	"bytes"
	"strings"
	"testing"

	"github.com/axlang/ax/internal/bytecode"
	"github.com/axlang/ax/internal/object"
	"github.com/axlang/ax/internal/vm"
)

// newHost builds a *vm.VM purely for its object.Host implementation (Heap/
// NewInt/NewFloat/NewString/NewNull) - no bytecode of its own ever runs.
func newHost(stdout *bytes.Buffer, stdin string) object.Host {
	return vm.New(bytecode.NewMemoryStream(nil), nil, stdout, strings.NewReader(stdin))
}

func TestConsolePrintlnJoinsWithSpaces(t *testing.T) {
	var stdout bytes.Buffer
	h := newHost(&stdout, "")
	reg := Registry(&stdout, strings.NewReader(""))

	a := h.NewString("hello")
	b := h.NewInt(42)
	if _, err := reg["Console_println"](h, []object.ID{a, b}); err != nil {
		t.Fatalf("Console_println: %v", err)
	}
	if got := stdout.String(); got != "hello 42\n" {
		t.Errorf("stdout = %q, want %q", got, "hello 42\n")
	}
}

func TestConsoleSystemRejected(t *testing.T) {
	var stdout bytes.Buffer
	h := newHost(&stdout, "")
	reg := Registry(&stdout, strings.NewReader(""))

	if _, err := reg["Console_system"](h, []object.ID{h.NewString("ls")}); err == nil {
		t.Fatal("expected Console.system to be rejected")
	}
}

func TestConvertRoundTrip(t *testing.T) {
	var stdout bytes.Buffer
	h := newHost(&stdout, "")
	reg := Registry(&stdout, strings.NewReader(""))

	s, err := reg["Convert_toString"](h, []object.ID{h.NewInt(7)})
	if err != nil {
		t.Fatalf("Convert_toString: %v", err)
	}
	if got := h.Heap().Get(s).Str; got != "7" {
		t.Errorf("Convert_toString(7) = %q, want %q", got, "7")
	}

	i, err := reg["Convert_toInt"](h, []object.ID{h.NewString("12")})
	if err != nil {
		t.Fatalf("Convert_toInt: %v", err)
	}
	if got := h.Heap().Get(i).Int; got != 12 {
		t.Errorf("Convert_toInt(\"12\") = %d, want 12", got)
	}
}

func TestReflectionTypeof(t *testing.T) {
	var stdout bytes.Buffer
	h := newHost(&stdout, "")
	reg := Registry(&stdout, strings.NewReader(""))

	id, err := reg["Reflection_typeof"](h, []object.ID{h.NewInt(1)})
	if err != nil {
		t.Fatalf("Reflection_typeof: %v", err)
	}
	if got := h.Heap().Get(id).Str; got != object.KindInt.String() {
		t.Errorf("typeof(1) = %q, want %q", got, object.KindInt.String())
	}
}

func TestRuntimeLoadlibUnsupported(t *testing.T) {
	var stdout bytes.Buffer
	h := newHost(&stdout, "")
	reg := Registry(&stdout, strings.NewReader(""))

	if _, err := reg["Runtime_loadlib"](h, []object.ID{h.NewString("libm.so")}); err == nil {
		t.Fatal("expected Runtime.loadlib to be unsupported")
	}
}

func TestClockStartStop(t *testing.T) {
	var stdout bytes.Buffer
	h := newHost(&stdout, "")
	reg := Registry(&stdout, strings.NewReader(""))

	if _, err := reg["Clock_start"](h, nil); err != nil {
		t.Fatalf("Clock_start: %v", err)
	}
	id, err := reg["Clock_stop"](h, nil)
	if err != nil {
		t.Fatalf("Clock_stop: %v", err)
	}
	if got := h.Heap().Get(id).Float; got < 0 {
		t.Errorf("Clock_stop elapsed = %v, want >= 0", got)
	}
}
