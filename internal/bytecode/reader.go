package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Stream reader abstraction: uniform random-access reading over either a
// file or an in-memory buffer, matching spec.md §4.7. Reading past Max is
// the caller's responsibility to prevent; the VM's main loop terminates at
// Position >= Max.
type ByteStream interface {
	Position() int64
	Max() int64
	Seek(pos int64)
	Skip(n int64)
	Eof() bool
	ReadBytes(n int) ([]byte, error)
}

type buffer struct {
	data []byte
	pos  int64
}

func (b *buffer) Position() int64 { return b.pos }
func (b *buffer) Max() int64      { return int64(len(b.data)) }
func (b *buffer) Seek(pos int64)  { b.pos = pos }
func (b *buffer) Skip(n int64)    { b.pos += n }
func (b *buffer) Eof() bool       { return b.pos >= int64(len(b.data)) }

func (b *buffer) ReadBytes(n int) ([]byte, error) {
	if b.pos+int64(n) > int64(len(b.data)) {
		return nil, io.ErrUnexpectedEOF
	}
	out := b.data[b.pos : b.pos+int64(n)]
	b.pos += int64(n)
	return out, nil
}

// NewMemoryStream wraps an in-memory bytecode buffer that has already had
// its magic/version header validated (or was produced in-process and needs
// no validation).
func NewMemoryStream(data []byte) ByteStream {
	return &buffer{data: data}
}

// NewFileStream reads the whole file into memory, validates the magic
// number and version, and returns a stream positioned just past the
// header, ready to read the label prologue.
func NewFileStream(path string) (ByteStream, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewValidatedStream(data)
}

// NewValidatedStream validates the header of an in-memory bytecode image
// and returns a stream positioned just past it.
func NewValidatedStream(data []byte) (ByteStream, error) {
	if len(data) < len(Magic)+VersionLength {
		return nil, fmt.Errorf("bytecode: truncated header")
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, fmt.Errorf("bytecode: bad magic number")
	}
	var wantVersion [VersionLength]byte
	copy(wantVersion[:], Version)
	if !bytes.Equal(data[len(Magic):len(Magic)+VersionLength], wantVersion[:]) {
		return nil, fmt.Errorf("bytecode: unsupported version")
	}
	b := &buffer{data: data, pos: int64(len(Magic) + VersionLength)}
	return b, nil
}

// ReadU8/ReadU32/ReadU64/ReadI32/ReadI64/ReadF64/ReadString are decode
// helpers shared by the VM's fetch-decode loop.

func ReadU8(s ByteStream) (uint8, error) {
	b, err := s.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadU32(s ByteStream) (uint32, error) {
	b, err := s.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadU64(s ByteStream) (uint64, error) {
	b, err := s.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func ReadI32(s ByteStream) (int32, error) {
	v, err := ReadU32(s)
	return int32(v), err
}

func ReadI64(s ByteStream) (int64, error) {
	v, err := ReadU64(s)
	return int64(v), err
}

func ReadF64(s ByteStream) (float64, error) {
	b, err := s.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func ReadString(s ByteStream) (string, error) {
	length, err := ReadI32(s)
	if err != nil {
		return "", err
	}
	if length <= 0 {
		return "", nil
	}
	b, err := s.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	// Drop the trailing NUL included in the length.
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b), nil
}

// SkipOperand advances past one operand of the given kind without
// interpreting it, used when an instruction's side effects are gated off
// by read-level but its operand bytes must still be consumed.
func SkipOperand(s ByteStream, kind OperandKind) error {
	switch kind {
	case OperandU8:
		_, err := ReadU8(s)
		return err
	case OperandU32, OperandI32:
		_, err := ReadU32(s)
		return err
	case OperandU64, OperandI64, OperandF64:
		_, err := ReadU64(s)
		return err
	case OperandString:
		_, err := ReadString(s)
		return err
	}
	return nil
}
