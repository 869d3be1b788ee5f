package bytecode

import (
	"bytes"
	"testing"
)

func TestEmitWritesHeaderAndRejectsBadMagic(t *testing.T) {
	s := &Stream{}
	s.Emit(OpLoadInteger, I64(5))

	data, err := EmitToBytes(s)
	if err != nil {
		t.Fatalf("EmitToBytes: %v", err)
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		t.Fatalf("missing magic number")
	}

	corrupt := append([]byte(nil), data...)
	corrupt[0] ^= 0xFF
	if _, err := NewValidatedStream(corrupt); err == nil {
		t.Errorf("expected an error for a corrupted magic number")
	}
}

func TestEmitLabelPrologueOffsetsAccountForHeader(t *testing.T) {
	s := &Stream{}
	lbl := s.NewLabel()
	s.Emit(OpJump, U32(lbl))
	s.PlaceLabel(lbl)
	s.Emit(OpLoadNull)

	data, err := EmitToBytes(s)
	if err != nil {
		t.Fatalf("EmitToBytes: %v", err)
	}

	bs, err := NewValidatedStream(data)
	if err != nil {
		t.Fatalf("NewValidatedStream: %v", err)
	}

	op, err := ReadU8(bs)
	if err != nil || Opcode(op) != OpStoreAddress {
		t.Fatalf("expected a store_address prologue record, got opcode %d err %v", op, err)
	}
	id, err := ReadU32(bs)
	if err != nil || id != lbl {
		t.Fatalf("store_address id = %d, want %d (err %v)", id, lbl, err)
	}
	offset, err := ReadU64(bs)
	if err != nil {
		t.Fatalf("ReadU64: %v", err)
	}

	headerSize := int64(len(Magic) + VersionLength + storeAddressRecordSize)
	jumpInstrSize := int64(Instruction{Op: OpJump, Operands: []Operand{U32(lbl)}}.EncodedSize())
	wantOffset := headerSize + jumpInstrSize
	if int64(offset) != wantOffset {
		t.Errorf("store_address offset = %d, want %d", offset, wantOffset)
	}
}

func TestStringOperandRoundTrip(t *testing.T) {
	s := &Stream{}
	s.Emit(OpLoadString, Str("hello"))

	data, err := EmitToBytes(s)
	if err != nil {
		t.Fatalf("EmitToBytes: %v", err)
	}
	bs, err := NewValidatedStream(data)
	if err != nil {
		t.Fatalf("NewValidatedStream: %v", err)
	}

	op, err := ReadU8(bs)
	if err != nil || Opcode(op) != OpLoadString {
		t.Fatalf("expected load_string opcode, got %d err %v", op, err)
	}
	got, err := ReadString(bs)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "hello" {
		t.Errorf("round-tripped string = %q, want %q", got, "hello")
	}
}
