package bytecode

import (
	"fmt"
)

// MaxConstants is the largest constant pool a chunk can address: the
// OpConst operand is a single byte.
const MaxConstants = 256

// SourceLocation maps a bytecode offset to the byte span of the source
// expression that produced the instruction.
type SourceLocation struct {
	BytecodeOffset int // Offset of the opcode in the code section
	Start          int // Source byte offset, inclusive
	End            int // Source byte offset, exclusive
}

// Chunk is the compiled form of one expression: an opcode stream plus the
// constant pool it indexes. Chunks are written once by the code generator and
// are read-only afterwards; the VM never mutates them.
type Chunk struct {
	// Code section
	Code []byte

	// Constant pool - values referenced by OpConst
	Constants []Value

	// Debug information, optional
	SourceMap []SourceLocation

	maxConstants int
}

// NewChunk creates a new empty chunk that accepts up to MaxConstants constants.
func NewChunk() *Chunk {
	return NewChunkWithLimit(MaxConstants)
}

// NewChunkWithLimit creates a chunk whose constant pool holds at most limit
// entries. Limits outside 1..MaxConstants are clamped to MaxConstants.
func NewChunkWithLimit(limit int) *Chunk {
	if limit <= 0 || limit > MaxConstants {
		limit = MaxConstants
	}
	return &Chunk{
		Code:         make([]byte, 0, 64),
		Constants:    make([]Value, 0, 8),
		maxConstants: limit,
	}
}

// ConstantLimit returns the capacity of the constant pool.
func (c *Chunk) ConstantLimit() int {
	if c.maxConstants <= 0 {
		return MaxConstants
	}
	return c.maxConstants
}

// AddConstant appends a value to the pool and returns its index, which is the
// pool length before insertion. The pool is append-only; equal values get
// distinct slots. Returns ErrConstantPoolFull once the limit is reached.
func (c *Chunk) AddConstant(value Value) (byte, error) {
	if len(c.Constants) >= c.ConstantLimit() {
		return 0, fmt.Errorf("%w: limit is %d constants", ErrConstantPoolFull, c.ConstantLimit())
	}
	idx := len(c.Constants)
	c.Constants = append(c.Constants, value)
	return byte(idx), nil
}

// Constant returns the constant at the given index.
func (c *Chunk) Constant(index int) (Value, bool) {
	if index < 0 || index >= len(c.Constants) {
		return Value{}, false
	}
	return c.Constants[index], true
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitConstant adds value to the pool and emits an OpConst instruction for it.
func (c *Chunk) EmitConstant(value Value) (int, error) {
	idx, err := c.AddConstant(value)
	if err != nil {
		return 0, err
	}
	return c.EmitWithOperand(OpConst, idx), nil
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// AddSourceLocation records the source span for the instruction at offset.
func (c *Chunk) AddSourceLocation(offset, start, end int) {
	c.SourceMap = append(c.SourceMap, SourceLocation{
		BytecodeOffset: offset,
		Start:          start,
		End:            end,
	})
}

// SpanAt returns the source span recorded for the instruction at offset.
func (c *Chunk) SpanAt(offset int) (start, end int, ok bool) {
	for i := len(c.SourceMap) - 1; i >= 0; i-- {
		if c.SourceMap[i].BytecodeOffset == offset {
			return c.SourceMap[i].Start, c.SourceMap[i].End, true
		}
	}
	return 0, 0, false
}
