// Package codegen translates compiled ul chunks into Go source.
//
// Each stack slot becomes a typed local, so the generated function performs
// the same int32 / float32 / bool operations as the VM without dispatch.
package codegen

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/ul/pkg/bytecode"
)

// Options controls Go generation.
type Options struct {
	Package  string // package clause; default "main"
	FuncName string // generated function; default "Eval"

	// Main adds a func main that prints the result like the ul driver.
	// Only valid with Package "main".
	Main bool

	// Source is the expression text, quoted in the function's doc comment.
	Source string

	// StackDepth rejects chunks that would overflow a VM stack of this
	// size. Zero disables the check.
	StackDepth int

	// Validate type-checks the generated code with go/types before
	// returning it.
	Validate bool
}

// Result contains the generated code.
type Result struct {
	Code       string
	ResultType bytecode.ValueKind
}

// slot is one value on the symbolic stack.
type slot struct {
	name string
	kind bytecode.ValueKind
}

type generator struct {
	chunk *bytecode.Chunk
	opts  Options
	stack []slot
	next  int
	body  []jen.Code
}

var binaryOps = map[bytecode.Opcode]string{
	bytecode.OpAdd: "+",
	bytecode.OpSub: "-",
	bytecode.OpMul: "*",
	bytecode.OpDiv: "/",
	bytecode.OpEq:  "==",
	bytecode.OpNe:  "!=",
	bytecode.OpLt:  "<",
	bytecode.OpLe:  "<=",
	bytecode.OpGt:  ">",
	bytecode.OpGe:  ">=",
	bytecode.OpAnd: "&&",
	bytecode.OpOr:  "||",
}

// GenerateGo translates chunk into a Go source file. The chunk is checked the
// way the VM would execute it; anything the VM would fault on for every run
// (bad operand types, unknown opcodes, a missing RETURN) is returned as a
// *bytecode.RuntimeError instead of generated. Integer division by zero is
// checked in the generated code and reported through its error result.
func GenerateGo(chunk *bytecode.Chunk, opts Options) (*Result, error) {
	if opts.Package == "" {
		opts.Package = "main"
	}
	if opts.FuncName == "" {
		opts.FuncName = "Eval"
	}
	if opts.Main && opts.Package != "main" {
		return nil, fmt.Errorf("codegen: func main requires package main, not %q", opts.Package)
	}

	g := &generator{chunk: chunk, opts: opts}
	kind, err := g.translate()
	if err != nil {
		return nil, err
	}

	f := jen.NewFile(opts.Package)
	f.HeaderComment("Code generated by ul. DO NOT EDIT.")

	if src := strings.Join(strings.Fields(opts.Source), " "); src != "" {
		f.Comment(fmt.Sprintf("%s evaluates %s", opts.FuncName, src))
	}
	f.Func().Id(opts.FuncName).Params().Params(
		jen.Id("result").Add(goType(kind)),
		jen.Err().Error(),
	).Block(g.body...)

	if opts.Main {
		generateMain(f, opts.FuncName, kind)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("codegen: render: %w", err)
	}
	code := buf.String()

	if opts.Validate {
		filename := strings.ToLower(opts.FuncName) + ".go"
		if errs := NewCodeValidator(filename).Validate(code); len(errs) > 0 {
			return nil, fmt.Errorf("codegen: generated code does not type-check:\n%s",
				FormatValidationErrors(errs, filename))
		}
	}

	return &Result{Code: code, ResultType: kind}, nil
}

func generateMain(f *jen.File, funcName string, kind bytecode.ValueKind) {
	f.Func().Id("main").Params().Block(
		jen.List(jen.Id("v"), jen.Err()).Op(":=").Id(funcName).Call(),
		jen.If(jen.Err().Op("!=").Nil()).Block(
			jen.Qual("fmt", "Fprintf").Call(jen.Qual("os", "Stderr"), jen.Lit("Error: %v\n"), jen.Err()),
			jen.Qual("os", "Exit").Call(jen.Lit(1)),
		),
		jen.Qual("fmt", "Printf").Call(jen.Lit("%v ("+kind.String()+")\n"), jen.Id("v")),
	)
}

// translate walks the code once, mirroring the VM's dispatch loop, and
// returns the type of the value reaching RETURN.
func (g *generator) translate() (bytecode.ValueKind, error) {
	code := g.chunk.Code
	for ip := 0; ip < len(code); {
		offset := ip
		op := bytecode.Opcode(code[ip])
		ip++

		fault := func(err error) (bytecode.ValueKind, error) {
			return 0, &bytecode.RuntimeError{Op: op, Offset: offset, Err: err}
		}

		switch op {
		case bytecode.OpConst:
			if ip >= len(code) {
				return fault(bytecode.ErrTruncated)
			}
			idx := int(code[ip])
			ip++
			v, ok := g.chunk.Constant(idx)
			if !ok {
				return fault(fmt.Errorf("%w: %d of %d", bytecode.ErrBadConstant, idx, g.chunk.ConstantCount()))
			}
			if err := g.push(v.Kind(), constExpr(v)); err != nil {
				return fault(err)
			}

		case bytecode.OpConstTrue, bytecode.OpConstFalse:
			if err := g.push(bytecode.KindBool, jen.Lit(op == bytecode.OpConstTrue)); err != nil {
				return fault(err)
			}

		case bytecode.OpNeg:
			a, err := g.pop()
			if err != nil {
				return fault(err)
			}
			if !a.kind.IsNumeric() {
				return fault(fmt.Errorf("%w: cannot negate %s", bytecode.ErrTypeMismatch, a.kind))
			}
			g.push(a.kind, jen.Op("-").Id(a.name))

		case bytecode.OpNot:
			a, err := g.pop()
			if err != nil {
				return fault(err)
			}
			if a.kind != bytecode.KindBool {
				return fault(fmt.Errorf("%w: cannot apply NOT to %s", bytecode.ErrTypeMismatch, a.kind))
			}
			g.push(bytecode.KindBool, jen.Op("!").Id(a.name))

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe,
			bytecode.OpAnd, bytecode.OpOr:
			a, b, err := g.pop2()
			if err != nil {
				return fault(err)
			}
			if !operandsFit(op, a.kind, b.kind) {
				return fault(fmt.Errorf("%w: cannot apply %s to %s and %s", bytecode.ErrTypeMismatch, op, a.kind, b.kind))
			}
			if op == bytecode.OpDiv && a.kind == bytecode.KindInt {
				g.body = append(g.body, jen.If(jen.Id(b.name).Op("==").Lit(0)).Block(
					jen.Return(jen.Id("result"), jen.Qual("errors", "New").Call(jen.Lit(bytecode.ErrDivisionByZero.Error()))),
				))
			}
			kind := a.kind
			if op != bytecode.OpAdd && op != bytecode.OpSub && op != bytecode.OpMul && op != bytecode.OpDiv {
				kind = bytecode.KindBool
			}
			g.push(kind, jen.Id(a.name).Op(binaryOps[op]).Id(b.name))

		case bytecode.OpReturn:
			a, err := g.pop()
			if err != nil {
				return fault(err)
			}
			// Values left under the result are never read.
			for _, s := range g.stack {
				g.body = append(g.body, jen.Id("_").Op("=").Id(s.name))
			}
			g.body = append(g.body, jen.Return(jen.Id(a.name), jen.Nil()))
			return a.kind, nil

		default:
			return fault(fmt.Errorf("%w 0x%02X", bytecode.ErrUnknownOpcode, byte(op)))
		}
	}
	return 0, &bytecode.RuntimeError{Op: bytecode.OpReturn, Offset: len(code), Err: bytecode.ErrMissingReturn}
}

// operandsFit applies the VM's operand rules: identical tags, numeric for
// arithmetic and ordering, bool for AND / OR.
func operandsFit(op bytecode.Opcode, a, b bytecode.ValueKind) bool {
	if a != b {
		return false
	}
	switch op {
	case bytecode.OpEq, bytecode.OpNe:
		return true
	case bytecode.OpAnd, bytecode.OpOr:
		return a == bytecode.KindBool
	default:
		return a.IsNumeric()
	}
}

// push declares a new local holding expr.
func (g *generator) push(kind bytecode.ValueKind, expr jen.Code) error {
	if g.opts.StackDepth > 0 && len(g.stack) >= g.opts.StackDepth {
		return fmt.Errorf("%w: capacity %d", bytecode.ErrStackOverflow, g.opts.StackDepth)
	}
	name := fmt.Sprintf("s%d", g.next)
	g.next++
	g.body = append(g.body, jen.Id(name).Op(":=").Add(expr))
	g.stack = append(g.stack, slot{name: name, kind: kind})
	return nil
}

func (g *generator) pop() (slot, error) {
	if len(g.stack) == 0 {
		return slot{}, bytecode.ErrStackUnderflow
	}
	s := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	return s, nil
}

// pop2 pops the right operand b, then the left operand a.
func (g *generator) pop2() (a, b slot, err error) {
	if len(g.stack) < 2 {
		return slot{}, slot{}, bytecode.ErrStackUnderflow
	}
	b = g.stack[len(g.stack)-1]
	a = g.stack[len(g.stack)-2]
	g.stack = g.stack[:len(g.stack)-2]
	return a, b, nil
}

func constExpr(v bytecode.Value) *jen.Statement {
	switch v.Kind() {
	case bytecode.KindInt:
		return jen.Lit(v.Int())
	case bytecode.KindFloat:
		f := v.Float()
		if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
			return jen.Qual("math", "Float32frombits").Call(jen.Lit(math.Float32bits(f)))
		}
		return jen.Lit(f)
	default:
		return jen.Lit(v.Bool())
	}
}

func goType(kind bytecode.ValueKind) *jen.Statement {
	switch kind {
	case bytecode.KindInt:
		return jen.Int32()
	case bytecode.KindFloat:
		return jen.Float32()
	default:
		return jen.Bool()
	}
}
