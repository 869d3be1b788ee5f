package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/axlang/ax/internal/bytecode"
	"github.com/axlang/ax/internal/object"
)

// assemble emits s, serializes it, and hands back a freshly validated
// ByteStream ready for a VM - the same path internal/compiler takes from
// codegen.Generate's *bytecode.Stream through to vm.New.
func assemble(t *testing.T, s *bytecode.Stream) bytecode.ByteStream {
	t.Helper()
	data, err := bytecode.EmitToBytes(s)
	if err != nil {
		t.Fatalf("EmitToBytes: %v", err)
	}
	bs, err := bytecode.NewValidatedStream(data)
	if err != nil {
		t.Fatalf("NewValidatedStream: %v", err)
	}
	return bs
}

func TestPrintArithmetic(t *testing.T) {
	s := &bytecode.Stream{}
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(3))
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(4))
	s.Emit(bytecode.OpMul)
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(2))
	s.Emit(bytecode.OpAdd)
	s.Emit(bytecode.OpPrint, bytecode.U32(1))

	var stdout bytes.Buffer
	m := New(assemble(t, s), nil, &stdout, strings.NewReader(""))
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stdout.String(); got != "14\n" {
		t.Errorf("stdout = %q, want %q", got, "14\n")
	}
}

// TestPrintMultipleArgsPreservesSourceOrder is a regression test for the
// fill-loop direction in execPrint: genPrint pushes arguments in reverse
// (bottom-to-top push order 11,",",10,",",0 for this case) so that
// sequential LIFO pops already yield them in left-to-right source order;
// execPrint must fill its output slice forward, not re-reverse it.
func TestPrintMultipleArgsPreservesSourceOrder(t *testing.T) {
	s := &bytecode.Stream{}
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(11))
	s.Emit(bytecode.OpLoadString, bytecode.Str(","))
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(10))
	s.Emit(bytecode.OpLoadString, bytecode.Str(","))
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(0))
	s.Emit(bytecode.OpPrint, bytecode.U32(5))

	var stdout bytes.Buffer
	m := New(assemble(t, s), nil, &stdout, strings.NewReader(""))
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stdout.String(); got != "0,10,11\n" {
		t.Errorf("stdout = %q, want %q", got, "0,10,11\n")
	}
}

func TestGlobalAssignAndLoad(t *testing.T) {
	s := &bytecode.Stream{}
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(41))
	s.Emit(bytecode.OpStoreAsLocal, bytecode.Str("x"))
	s.Emit(bytecode.OpLoadLocal, bytecode.Str("x"))
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(1))
	s.Emit(bytecode.OpAdd)
	s.Emit(bytecode.OpPrint, bytecode.U32(1))

	var stdout bytes.Buffer
	m := New(assemble(t, s), nil, &stdout, strings.NewReader(""))
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stdout.String(); got != "42\n" {
		t.Errorf("stdout = %q, want %q", got, "42\n")
	}
}

func TestTryCatchRecoversAndResumes(t *testing.T) {
	s := &bytecode.Stream{}
	catchLbl := s.NewLabel()
	endLbl := s.NewLabel()

	s.Emit(bytecode.OpTryCatchBlock, bytecode.U32(catchLbl))
	s.Emit(bytecode.OpLoadNull)
	s.Emit(bytecode.OpStoreAsLocal, bytecode.Str("a"))
	s.Emit(bytecode.OpLoadLocal, bytecode.Str("a"))
	s.Emit(bytecode.OpLoadInteger, bytecode.I64(1))
	s.Emit(bytecode.OpNewMember, bytecode.Str("x")) // a.x = 1 on a null a -> runtime error
	s.Emit(bytecode.OpJump, bytecode.U32(endLbl))

	s.PlaceLabel(catchLbl)
	s.Emit(bytecode.OpLoadNull)
	s.Emit(bytecode.OpStoreAsLocal, bytecode.Str("e"))
	s.Emit(bytecode.OpLoadString, bytecode.Str("caught"))
	s.Emit(bytecode.OpPrint, bytecode.U32(1))

	s.PlaceLabel(endLbl)

	var stdout bytes.Buffer
	m := New(assemble(t, s), nil, &stdout, strings.NewReader(""))
	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := stdout.String(); got != "caught\n" {
		t.Errorf("stdout = %q, want %q", got, "caught\n")
	}
}

func TestHostAllocationHelpers(t *testing.T) {
	s := &bytecode.Stream{}
	s.Emit(bytecode.OpLoadNull)
	s.Emit(bytecode.OpPop)

	m := New(assemble(t, s), nil, &bytes.Buffer{}, strings.NewReader(""))
	id := m.NewInt(7)
	if o := m.Heap().Get(id); o == nil || o.Kind != object.KindInt || o.Int != 7 {
		t.Fatalf("NewInt did not allocate a matching object: %+v", o)
	}
}
