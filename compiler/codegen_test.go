package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/ul/pkg/bytecode"
)

func generate(t *testing.T, input string, opts Options) (*bytecode.Chunk, error) {
	t.Helper()
	tree := mustParse(t, input)
	if _, err := Analyze([]byte(input), tree); err != nil {
		t.Fatalf("Analyze(%q) error: %v", input, err)
	}
	return Generate([]byte(input), tree, opts)
}

func code(ops ...interface{}) []byte {
	var out []byte
	for _, op := range ops {
		switch v := op.(type) {
		case bytecode.Opcode:
			out = append(out, byte(v))
		case int:
			out = append(out, byte(v))
		}
	}
	return out
}

func TestGenerateAddition(t *testing.T) {
	chunk, err := generate(t, "2 + 3", Options{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	wantConsts := []bytecode.Value{bytecode.IntValue(2), bytecode.IntValue(3)}
	if len(chunk.Constants) != len(wantConsts) {
		t.Fatalf("constants = %v, want %v", chunk.Constants, wantConsts)
	}
	for i := range wantConsts {
		if !chunk.Constants[i].Equal(wantConsts[i]) {
			t.Errorf("constant[%d] = %s, want %s", i, chunk.Constants[i].Describe(), wantConsts[i].Describe())
		}
	}

	want := code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpAdd, bytecode.OpReturn)
	if !bytes.Equal(chunk.Code, want) {
		t.Errorf("code = % X, want % X", chunk.Code, want)
	}
}

func TestGeneratePostOrder(t *testing.T) {
	tests := []struct {
		input string
		want  []byte
	}{
		{"-5", code(bytecode.OpConst, 0, bytecode.OpNeg, bytecode.OpReturn)},
		{"!true", code(bytecode.OpConstTrue, bytecode.OpNot, bytecode.OpReturn)},
		{"false", code(bytecode.OpConstFalse, bytecode.OpReturn)},
		{"2 + 3 * 4", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpConst, 2,
			bytecode.OpMul, bytecode.OpAdd, bytecode.OpReturn)},
		{"10 - 3 - 2", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpSub,
			bytecode.OpConst, 2, bytecode.OpSub, bytecode.OpReturn)},
		{"1 >= 2", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpGe, bytecode.OpReturn)},
		{"1 <= 2", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpLe, bytecode.OpReturn)},
		{"1 > 2", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpGt, bytecode.OpReturn)},
		{"1 < 2", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpLt, bytecode.OpReturn)},
		{"true == false", code(bytecode.OpConstTrue, bytecode.OpConstFalse, bytecode.OpEq, bytecode.OpReturn)},
		{"true != false", code(bytecode.OpConstTrue, bytecode.OpConstFalse, bytecode.OpNe, bytecode.OpReturn)},
		{"true && false || true", code(bytecode.OpConstTrue, bytecode.OpConstFalse, bytecode.OpAnd,
			bytecode.OpConstTrue, bytecode.OpOr, bytecode.OpReturn)},
		{"8 / 2", code(bytecode.OpConst, 0, bytecode.OpConst, 1, bytecode.OpDiv, bytecode.OpReturn)},
	}

	for _, tc := range tests {
		chunk, err := generate(t, tc.input, Options{})
		if err != nil {
			t.Errorf("Generate(%q) error: %v", tc.input, err)
			continue
		}
		if !bytes.Equal(chunk.Code, tc.want) {
			t.Errorf("Generate(%q) code = % X, want % X", tc.input, chunk.Code, tc.want)
		}
	}
}

func TestGenerateBooleansUseNoConstants(t *testing.T) {
	chunk, err := generate(t, "true && !false", Options{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if chunk.ConstantCount() != 0 {
		t.Errorf("ConstantCount() = %d, want 0", chunk.ConstantCount())
	}
}

func TestGenerateEqualLiteralsGetDistinctSlots(t *testing.T) {
	chunk, err := generate(t, "1 + 1", Options{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if chunk.ConstantCount() != 2 {
		t.Errorf("ConstantCount() = %d, want 2", chunk.ConstantCount())
	}
}

func TestGenerateSourceMap(t *testing.T) {
	src := "1 + 2 / 0"
	chunk, err := generate(t, src, Options{})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	// CONST 0, CONST 1, CONST 2, DIV at 6, ADD at 7
	start, end, ok := chunk.SpanAt(6)
	if !ok || start != 4 || end != 9 {
		t.Errorf("SpanAt(DIV) = %d..%d %v, want 4..9", start, end, ok)
	}
	start, end, ok = chunk.SpanAt(7)
	if !ok || start != 0 || end != 9 {
		t.Errorf("SpanAt(ADD) = %d..%d %v, want 0..9", start, end, ok)
	}
	if _, _, ok := chunk.SpanAt(0); ok {
		t.Errorf("SpanAt(CONST) found a span, want none")
	}
}

func sumOfLiterals(n int) string {
	terms := make([]string, n)
	for i := range terms {
		terms[i] = fmt.Sprint(i)
	}
	return strings.Join(terms, " + ")
}

func TestGenerateConstantPoolLimit(t *testing.T) {
	if _, err := generate(t, sumOfLiterals(256), Options{}); err != nil {
		t.Fatalf("256 constants: unexpected error %v", err)
	}

	src := sumOfLiterals(257)
	_, err := generate(t, src, Options{})
	var d *Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("257 constants: error = %v, want *Diagnostic", err)
	}
	if d.Kind != CapacityError {
		t.Errorf("Kind = %v, want %v", d.Kind, CapacityError)
	}
	if !errors.Is(err, bytecode.ErrConstantPoolFull) {
		t.Errorf("error does not wrap ErrConstantPoolFull")
	}
	if got := src[d.Spans[0].Start:d.Spans[0].End]; got != "256" {
		t.Errorf("diagnostic points at %q, want the 257th literal", got)
	}
}

func TestGenerateConfiguredLimits(t *testing.T) {
	_, err := generate(t, "1 + 2 + 3", Options{MaxConstants: 2})
	var d *Diagnostic
	if !errors.As(err, &d) || d.Kind != CapacityError {
		t.Errorf("MaxConstants=2: error = %v, want CapacityError", err)
	}

	// 1 + 2 is 6 bytes of code.
	if _, err := generate(t, "1 + 2", Options{MaxCodeSize: 6}); err != nil {
		t.Errorf("MaxCodeSize=6: unexpected error %v", err)
	}
	_, err = generate(t, "1 + 2", Options{MaxCodeSize: 5})
	if !errors.As(err, &d) || d.Kind != CapacityError {
		t.Errorf("MaxCodeSize=5: error = %v, want CapacityError", err)
	}
}
