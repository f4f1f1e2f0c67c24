package compiler

import (
	"testing"
)

var fuzzSeeds = []string{
	// Literals
	`42`, `0`, `3.14`, `2.`, `true`, `false`,
	// Operators
	`2 + 3`, `2 + 3 * 4`, `(2 + 3) * 4`, `10 - 3 - 2`, `-5`, `!true`, `--5`,
	`3 > 2`, `1 <= 2 == true`, `1 != 2`, `true && false || true`,
	// Unused tokens
	`<< >> += -= *= /= : ; , { } [ ]`, `let x = 1`, `fn`, `"str"`,
	// Errors
	`2 + 3.5`, `(1 + 2`, `1 2`, `"unterminated`, `@#$`, `&`, `|`,
	`2147483648`, `-true`, `!1`, `1 / 0`,
	// Comments and whitespace
	"1 // one\n+ 2", "\t\r\n",
	// Non-ASCII
	"é + 1", "\xff\xfe",
}

// FuzzScanner ensures the scanner never panics, always ends with exactly one
// EOF token, and produces in-bounds, ordered spans.
func FuzzScanner(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		src := []byte(input)
		tokens, diags := Scan(src)
		if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
			t.Fatalf("token stream does not end with EOF: %v", tokens)
		}
		prev := 0
		for i, tok := range tokens {
			if tok.Type == TokenEOF && i != len(tokens)-1 {
				t.Fatalf("EOF at %d of %d", i, len(tokens))
			}
			if tok.Span.Start < prev || tok.Span.End < tok.Span.Start || tok.Span.End > len(src) {
				t.Fatalf("bad span %v after offset %d (len %d)", tok.Span, prev, len(src))
			}
			prev = tok.Span.End
		}
		for _, d := range diags {
			if d.Kind != LexError {
				t.Fatalf("scanner produced %v", d.Kind)
			}
			_ = d.Render()
		}
	})
}

// FuzzCompile ensures the whole pipeline never panics and that every
// successful compilation runs to a value of the analyzed type or fails with
// a runtime error.
func FuzzCompile(f *testing.F) {
	for _, s := range fuzzSeeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		prog, err := Compile([]byte(input), Options{})
		if err != nil {
			if d, ok := err.(*Diagnostic); ok {
				_ = d.Render()
				return
			}
			t.Fatalf("Compile returned %T, want *Diagnostic", err)
		}
		_ = prog.Chunk.Disassemble()
		v, err := prog.Run(Options{})
		if err != nil {
			return
		}
		if v.Kind() != prog.Type {
			t.Fatalf("result %s does not match static type %s", v.Describe(), prog.Type)
		}
	})
}
