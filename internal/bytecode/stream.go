package bytecode

// Operand is a single encoded instruction argument. Exactly one field is
// meaningful, selected by Kind.
type Operand struct {
	Kind OperandKind
	U8   uint8
	U32  uint32
	U64  uint64
	I32  int32
	I64  int64
	F64  float64
	Str  string
}

func U8(v uint8) Operand     { return Operand{Kind: OperandU8, U8: v} }
func U32(v uint32) Operand   { return Operand{Kind: OperandU32, U32: v} }
func U64(v uint64) Operand   { return Operand{Kind: OperandU64, U64: v} }
func I32(v int32) Operand    { return Operand{Kind: OperandI32, I32: v} }
func I64(v int64) Operand    { return Operand{Kind: OperandI64, I64: v} }
func F64(v float64) Operand  { return Operand{Kind: OperandF64, F64: v} }
func Str(v string) Operand   { return Operand{Kind: OperandString, Str: v} }

// Instruction is one opcode plus its operands, prior to serialization.
type Instruction struct {
	Op       Opcode
	Operands []Operand
}

// EncodedSize returns the number of bytes Instruction occupies once
// serialized, used to compute label offsets during code generation.
func (ins Instruction) EncodedSize() int {
	size := 1 // opcode byte
	for _, o := range ins.Operands {
		switch o.Kind {
		case OperandU8:
			size++
		case OperandU32, OperandI32:
			size += 4
		case OperandU64, OperandI64, OperandF64:
			size += 8
		case OperandString:
			size += 4 + len(o.Str) + 1 // i32 length (incl. NUL) + bytes + NUL
		}
	}
	return size
}

// Label is a named offset into the instruction stream, resolved at
// file-prologue time via a store_address record.
type Label struct {
	ID     uint32
	Offset uint64 // offset into the instruction body, not the final file
}

// Stream is the ordered instruction sequence produced by the code
// generator, plus every label it registered.
type Stream struct {
	Instructions []Instruction
	Labels       []Label

	nextLabel uint32
	size      int // running encoded size, used to assign label offsets
}

// NewLabel allocates a fresh label id without placing it yet.
func (s *Stream) NewLabel() uint32 {
	id := s.nextLabel
	s.nextLabel++
	return id
}

// PlaceLabel records id's offset as the stream's current encoded size (the
// position the *next* emitted instruction will occupy). It emits no
// instruction; Emit later writes one store_address record per label into
// the file's prologue.
func (s *Stream) PlaceLabel(id uint32) {
	s.Labels = append(s.Labels, Label{ID: id, Offset: uint64(s.size)})
}

// Emit appends an instruction and advances the running size counter.
func (s *Stream) Emit(op Opcode, operands ...Operand) {
	ins := Instruction{Op: op, Operands: operands}
	s.Instructions = append(s.Instructions, ins)
	s.size += ins.EncodedSize()
}

// Size returns the current encoded size of the instruction body.
func (s *Stream) Size() int { return s.size }
