package bytecode

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Magic is the fixed ASCII file signature written at the start of every
// bytecode file.
var Magic = [4]byte{'A', 'X', 'B', 'C'}

// VersionLength is the fixed length, in bytes, of the version string field
// that follows the magic number.
const VersionLength = 16

// Version is the current bytecode format version, NUL-padded to
// VersionLength on write.
const Version = "ax-1.0"

// storeAddressRecordSize is the encoded size of one store_address
// instruction in the prologue: opcode byte + u32 id + u64 offset.
const storeAddressRecordSize = 1 + 4 + 8

// Emit serializes a Stream to w: the magic number, the version string, a
// prologue of store_address records (one per label, offset already
// adjusted to be relative to the whole file), and the instruction body.
func Emit(w io.Writer, s *Stream) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return err
	}
	var versionBuf [VersionLength]byte
	copy(versionBuf[:], Version)
	if _, err := w.Write(versionBuf[:]); err != nil {
		return err
	}

	prologueSize := len(s.Labels) * storeAddressRecordSize
	headerSize := len(Magic) + VersionLength + prologueSize

	for _, lbl := range s.Labels {
		if err := writeInstruction(w, Instruction{
			Op:       OpStoreAddress,
			Operands: []Operand{U32(lbl.ID), U64(lbl.Offset + uint64(headerSize))},
		}); err != nil {
			return err
		}
	}

	for _, ins := range s.Instructions {
		if err := writeInstruction(w, ins); err != nil {
			return err
		}
	}
	return nil
}

// EmitToBytes is a convenience wrapper returning the serialized bytes.
func EmitToBytes(s *Stream) ([]byte, error) {
	var buf bytes.Buffer
	if err := Emit(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInstruction(w io.Writer, ins Instruction) error {
	if _, err := w.Write([]byte{byte(ins.Op)}); err != nil {
		return err
	}
	for _, o := range ins.Operands {
		if err := writeOperand(w, o); err != nil {
			return err
		}
	}
	return nil
}

func writeOperand(w io.Writer, o Operand) error {
	switch o.Kind {
	case OperandU8:
		_, err := w.Write([]byte{o.U8})
		return err
	case OperandU32:
		return binary.Write(w, binary.LittleEndian, o.U32)
	case OperandU64:
		return binary.Write(w, binary.LittleEndian, o.U64)
	case OperandI32:
		return binary.Write(w, binary.LittleEndian, o.I32)
	case OperandI64:
		return binary.Write(w, binary.LittleEndian, o.I64)
	case OperandF64:
		return binary.Write(w, binary.LittleEndian, o.F64)
	case OperandString:
		b := append([]byte(o.Str), 0)
		if err := binary.Write(w, binary.LittleEndian, int32(len(b))); err != nil {
			return err
		}
		_, err := w.Write(b)
		return err
	}
	return nil
}
