package integration_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/ul/compiler"
	"github.com/chazu/ul/manifest"
	"github.com/chazu/ul/pkg/codegen"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

const examplesDir = "../../examples"

// example is one program from the examples directory. Its header comments
// state the outcome: "// expect: 5 (int)" or "// error: type error".
type example struct {
	name    string
	source  []byte
	expect  string
	errKind string
}

func loadExamples(t *testing.T) []example {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(examplesDir, "*.ul"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatalf("no examples found in %s", examplesDir)
	}

	var out []example
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		ex := example{name: filepath.Base(path), source: src}
		for _, line := range strings.Split(string(src), "\n") {
			if v, ok := strings.CutPrefix(line, "// expect: "); ok {
				ex.expect = v
			}
			if v, ok := strings.CutPrefix(line, "// error: "); ok {
				ex.errKind = v
			}
		}
		if ex.expect == "" && ex.errKind == "" {
			t.Fatalf("%s has no expect or error header", ex.name)
		}
		out = append(out, ex)
	}
	return out
}

func exampleOptions(t *testing.T) compiler.Options {
	t.Helper()
	m, err := manifest.Load(examplesDir)
	if err != nil {
		t.Fatalf("load examples config: %v", err)
	}
	return m.Options()
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestExamples(t *testing.T) {
	opts := exampleOptions(t)
	for _, ex := range loadExamples(t) {
		t.Run(ex.name, func(t *testing.T) {
			v, err := compiler.Interpret(ex.source, opts)
			if ex.errKind != "" {
				var d *compiler.Diagnostic
				if !errors.As(err, &d) {
					t.Fatalf("Interpret = %v, %v; want a %s", v, err, ex.errKind)
				}
				if d.Kind.String() != ex.errKind {
					t.Errorf("error kind = %s, want %s\n%s", d.Kind, ex.errKind, d.Render())
				}
				return
			}
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if got := v.Describe(); got != ex.expect {
				t.Errorf("result = %s, want %s", got, ex.expect)
			}
		})
	}
}

func TestExamplesCompileDeterministically(t *testing.T) {
	opts := exampleOptions(t)
	for _, ex := range loadExamples(t) {
		a, errA := compiler.Compile(ex.source, opts)
		b, errB := compiler.Compile(ex.source, opts)
		if (errA == nil) != (errB == nil) {
			t.Errorf("%s: compile results differ: %v / %v", ex.name, errA, errB)
			continue
		}
		if errA != nil {
			continue
		}
		fa, err := a.Chunk.Fingerprint()
		if err != nil {
			t.Fatal(err)
		}
		fb, err := b.Chunk.Fingerprint()
		if err != nil {
			t.Fatal(err)
		}
		if fa != fb {
			t.Errorf("%s: fingerprints differ: %s / %s", ex.name, fa, fb)
		}
	}
}

func TestExamplesTranslateToGo(t *testing.T) {
	opts := exampleOptions(t)
	for _, ex := range loadExamples(t) {
		prog, err := compiler.Compile(ex.source, opts)
		if err != nil {
			continue
		}
		res, err := codegen.GenerateGo(prog.Chunk, codegen.Options{
			Main:       true,
			Source:     string(ex.source),
			StackDepth: opts.StackDepth,
			Validate:   true,
		})
		if err != nil {
			t.Errorf("%s: GenerateGo: %v", ex.name, err)
			continue
		}
		if res.ResultType != prog.Type {
			t.Errorf("%s: Go result type = %s, want %s", ex.name, res.ResultType, prog.Type)
		}
	}
}
