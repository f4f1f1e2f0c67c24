package bytecode

import (
	"errors"
	"fmt"
)

var (
	ErrConstantPoolFull = errors.New("bytecode: constant pool full")
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrTypeMismatch     = errors.New("operand type mismatch")
	ErrStackOverflow    = errors.New("stack overflow")
	ErrStackUnderflow   = errors.New("stack underflow")
	ErrBadConstant      = errors.New("constant index out of range")
	ErrTruncated        = errors.New("truncated instruction")
	ErrDivisionByZero   = errors.New("integer division by zero")
	ErrMissingReturn    = errors.New("code ended without RETURN")
)

// RuntimeError is returned by the VM when execution faults.
type RuntimeError struct {
	Op     Opcode // Opcode being executed
	Offset int    // Offset of that opcode in the code section
	Err    error  // One of the Err* sentinels, possibly wrapped
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error at %04X (%s): %v", e.Offset, e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
