package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind is the tag of a Value.
type ValueKind uint8

const (
	KindInt   ValueKind = 1 // 32-bit signed integer
	KindFloat ValueKind = 2 // 32-bit IEEE 754 float
	KindBool  ValueKind = 3 // boolean
)

// String returns the lower-case type name used in diagnostics.
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// IsNumeric reports whether arithmetic is defined on the kind.
func (k ValueKind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Value is a tagged int32 / float32 / bool. The zero Value has no tag and is
// never produced by the compiler or the VM.
type Value struct {
	kind ValueKind
	bits uint32 // int32, float32 bits, or 0/1
}

// IntValue returns an int-tagged value.
func IntValue(i int32) Value {
	return Value{kind: KindInt, bits: uint32(i)}
}

// FloatValue returns a float-tagged value.
func FloatValue(f float32) Value {
	return Value{kind: KindFloat, bits: math.Float32bits(f)}
}

// BoolValue returns a bool-tagged value.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// Kind returns the value's tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsInt returns true if v holds an int.
func (v Value) IsInt() bool { return v.kind == KindInt }

// IsFloat returns true if v holds a float.
func (v Value) IsFloat() bool { return v.kind == KindFloat }

// IsBool returns true if v holds a bool.
func (v Value) IsBool() bool { return v.kind == KindBool }

// Int returns the int payload. The result is meaningless for other kinds.
func (v Value) Int() int32 { return int32(v.bits) }

// Float returns the float payload. The result is meaningless for other kinds.
func (v Value) Float() float32 { return math.Float32frombits(v.bits) }

// Bool returns the bool payload. The result is meaningless for other kinds.
func (v Value) Bool() bool { return v.bits != 0 }

// Equal reports whether two values have the same tag and payload.
// Floats compare by IEEE equality, so NaN is not equal to itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindFloat {
		return v.Float() == o.Float()
	}
	return v.bits == o.bits
}

// String formats the payload without the tag.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.Int()), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return "<invalid>"
	}
}

// Describe formats the value followed by its tag, e.g. "5 (int)".
func (v Value) Describe() string {
	return fmt.Sprintf("%s (%s)", v.String(), v.kind)
}
