// Package bytecode provides the instruction set, the Chunk container and the
// stack-based virtual machine that executes compiled ul expressions.
//
// # Architecture Overview
//
//   - Opcodes: single-byte instructions grouped by category (constants,
//     arithmetic, comparison, logical, return). Only OpConst carries an
//     operand: a one-byte index into the constant pool.
//
//   - Value: a tagged int32 / float32 / bool. There are no heap values.
//
//   - Chunk: the code stream, its constant pool (at most 256 entries) and an
//     optional source map from instruction offsets to source spans. Chunks
//     are in-memory only; there is no serialized bytecode format. Fingerprint
//     hashes the canonical CBOR encoding of code and constants.
//
//   - VM: fetch-decode-execute loop over a fixed-capacity operand stack.
//     Every program either returns a single Value or faults with a
//     *RuntimeError. Both operand tags are checked before every binary
//     operation, so hand-built chunks cannot trigger undefined behaviour.
package bytecode
