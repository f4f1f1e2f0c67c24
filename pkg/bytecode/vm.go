package bytecode

import (
	"fmt"
	"io"

	"github.com/tliron/commonlog"
)

// DefaultStackDepth is the operand stack capacity used by NewVM.
const DefaultStackDepth = 256

var vmLog = commonlog.GetLogger("ul.vm")

// State is the execution state of a VM.
type State int

const (
	StateRunning  State = iota // executing, or not yet started
	StateReturned              // RETURN executed
	StateFaulted               // stopped with a RuntimeError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateReturned:
		return "returned"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// VM executes bytecode chunks. A VM runs one chunk at a time and is reset at
// the start of every Execute, so no state leaks between runs. A VM must not be
// used from more than one goroutine at once; independent programs should use
// independent VMs.
type VM struct {
	chunk *Chunk  // Current bytecode chunk
	ip    int     // Instruction pointer
	stack []Value // Value stack, fixed capacity
	sp    int     // Stack pointer
	state State

	// Trace, when set, receives one line per executed instruction.
	Trace io.Writer
}

// NewVM creates a new VM with DefaultStackDepth stack slots.
func NewVM() *VM {
	return NewVMWithDepth(DefaultStackDepth)
}

// NewVMWithDepth creates a new VM with the given stack capacity.
func NewVMWithDepth(depth int) *VM {
	if depth <= 0 {
		depth = DefaultStackDepth
	}
	return &VM{stack: make([]Value, depth)}
}

// State returns the state reached by the last Execute.
func (vm *VM) State() State {
	return vm.state
}

// StackCapacity returns the number of stack slots.
func (vm *VM) StackCapacity() int {
	return len(vm.stack)
}

// Execute runs a chunk to completion and returns the value popped by RETURN.
// Any fault stops execution immediately and is returned as a *RuntimeError.
func (vm *VM) Execute(chunk *Chunk) (Value, error) {
	vm.chunk = chunk
	vm.ip = 0
	vm.sp = 0
	vm.state = StateRunning
	for i := range vm.stack {
		vm.stack[i] = Value{}
	}

	result, err := vm.run()
	if err != nil {
		vm.state = StateFaulted
		vmLog.Debugf("fault: %v", err)
		return Value{}, err
	}
	vm.state = StateReturned
	return result, nil
}

// run is the main execution loop. There are no backward jumps, so it
// performs at most len(Code) fetches.
func (vm *VM) run() (Value, error) {
	code := vm.chunk.Code
	for {
		if vm.ip >= len(code) {
			return Value{}, &RuntimeError{Op: OpReturn, Offset: vm.ip, Err: ErrMissingReturn}
		}

		offset := vm.ip
		op := Opcode(code[vm.ip])
		vm.ip++

		if vm.Trace != nil {
			fmt.Fprintf(vm.Trace, "[%04x] %-12s sp=%d\n", offset, op, vm.sp)
		}

		fault := func(err error) (Value, error) {
			return Value{}, &RuntimeError{Op: op, Offset: offset, Err: err}
		}

		switch op {
		// ============ Constants ============
		case OpConst:
			if vm.ip >= len(code) {
				return fault(ErrTruncated)
			}
			idx := int(code[vm.ip])
			vm.ip++
			v, ok := vm.chunk.Constant(idx)
			if !ok {
				return fault(fmt.Errorf("%w: %d of %d", ErrBadConstant, idx, vm.chunk.ConstantCount()))
			}
			if err := vm.push(v); err != nil {
				return fault(err)
			}

		case OpConstTrue, OpConstFalse:
			if err := vm.push(BoolValue(op == OpConstTrue)); err != nil {
				return fault(err)
			}

		// ============ Unary ============
		case OpNeg:
			a, err := vm.pop()
			if err != nil {
				return fault(err)
			}
			switch a.Kind() {
			case KindInt:
				a = IntValue(-a.Int())
			case KindFloat:
				a = FloatValue(-a.Float())
			default:
				return fault(fmt.Errorf("%w: cannot negate %s", ErrTypeMismatch, a.Kind()))
			}
			vm.pushUnchecked(a)

		case OpNot:
			a, err := vm.pop()
			if err != nil {
				return fault(err)
			}
			if !a.IsBool() {
				return fault(fmt.Errorf("%w: cannot apply NOT to %s", ErrTypeMismatch, a.Kind()))
			}
			vm.pushUnchecked(BoolValue(!a.Bool()))

		// ============ Binary ============
		case OpAdd, OpSub, OpMul, OpDiv:
			a, b, err := vm.pop2()
			if err != nil {
				return fault(err)
			}
			r, err := arithmetic(op, a, b)
			if err != nil {
				return fault(err)
			}
			vm.pushUnchecked(r)

		case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
			a, b, err := vm.pop2()
			if err != nil {
				return fault(err)
			}
			r, err := compare(op, a, b)
			if err != nil {
				return fault(err)
			}
			vm.pushUnchecked(BoolValue(r))

		case OpAnd, OpOr:
			a, b, err := vm.pop2()
			if err != nil {
				return fault(err)
			}
			if !a.IsBool() || !b.IsBool() {
				return fault(mismatchError(op, a, b))
			}
			if op == OpAnd {
				vm.pushUnchecked(BoolValue(a.Bool() && b.Bool()))
			} else {
				vm.pushUnchecked(BoolValue(a.Bool() || b.Bool()))
			}

		// ============ Return ============
		case OpReturn:
			result, err := vm.pop()
			if err != nil {
				return fault(err)
			}
			return result, nil

		default:
			return fault(fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(op)))
		}
	}
}

// arithmetic applies an ADD/SUB/MUL/DIV opcode. Both operands must carry the
// same numeric tag. Integer arithmetic wraps on overflow.
func arithmetic(op Opcode, a, b Value) (Value, error) {
	if a.Kind() != b.Kind() || !a.Kind().IsNumeric() {
		return Value{}, mismatchError(op, a, b)
	}

	if a.IsInt() {
		x, y := a.Int(), b.Int()
		switch op {
		case OpAdd:
			return IntValue(x + y), nil
		case OpSub:
			return IntValue(x - y), nil
		case OpMul:
			return IntValue(x * y), nil
		default:
			if y == 0 {
				return Value{}, ErrDivisionByZero
			}
			return IntValue(x / y), nil
		}
	}

	x, y := a.Float(), b.Float()
	switch op {
	case OpAdd:
		return FloatValue(x + y), nil
	case OpSub:
		return FloatValue(x - y), nil
	case OpMul:
		return FloatValue(x * y), nil
	default:
		return FloatValue(x / y), nil
	}
}

// compare applies a comparison opcode. Ordering is defined on int and float;
// equality also on bool.
func compare(op Opcode, a, b Value) (bool, error) {
	if a.Kind() != b.Kind() {
		return false, mismatchError(op, a, b)
	}

	switch op {
	case OpEq:
		return a.Equal(b), nil
	case OpNe:
		return !a.Equal(b), nil
	}

	var c int
	switch a.Kind() {
	case KindInt:
		c = cmpOrdered(a.Int(), b.Int())
	case KindFloat:
		x, y := a.Float(), b.Float()
		if x != x || y != y {
			// NaN is unordered: every ordering comparison is false.
			return false, nil
		}
		c = cmpOrdered(x, y)
	default:
		return false, mismatchError(op, a, b)
	}

	switch op {
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func mismatchError(op Opcode, a, b Value) error {
	return fmt.Errorf("%w: cannot apply %s to %s and %s", ErrTypeMismatch, op, a.Kind(), b.Kind())
}

func cmpOrdered[T int32 | float32](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// ============ Stack helpers ============

func (vm *VM) push(v Value) error {
	if vm.sp >= len(vm.stack) {
		return fmt.Errorf("%w: capacity %d", ErrStackOverflow, len(vm.stack))
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

// pushUnchecked is used after a pop, when a free slot is guaranteed.
func (vm *VM) pushUnchecked(v Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() (Value, error) {
	if vm.sp == 0 {
		return Value{}, ErrStackUnderflow
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// pop2 pops the right operand b, then the left operand a.
func (vm *VM) pop2() (a, b Value, err error) {
	if vm.sp < 2 {
		return Value{}, Value{}, ErrStackUnderflow
	}
	b = vm.stack[vm.sp-1]
	a = vm.stack[vm.sp-2]
	vm.sp -= 2
	return a, b, nil
}
