// Package compiler turns ul source text into bytecode chunks: Scan, Parse,
// Analyze and Generate are the pipeline stages, and Compile runs them in order.
package compiler

import (
	"errors"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/ul/pkg/bytecode"
)

var compilerLog = commonlog.GetLogger("ul.compiler")

// Options configures compilation and execution. The zero value uses the
// default limits.
type Options struct {
	MaxConstants int       // constant pool capacity, 1..256; 0 means 256
	MaxCodeSize  int       // bytes of code per chunk; 0 means unbounded
	StackDepth   int       // VM stack slots; 0 means bytecode.DefaultStackDepth
	Trace        io.Writer // VM instruction trace, if set
}

// Program is a compiled expression.
type Program struct {
	Source []byte
	Chunk  *bytecode.Chunk
	Type   bytecode.ValueKind // static type of the result

	// Warnings holds recoverable lexical diagnostics.
	Warnings []*Diagnostic
}

// Compile runs the scanner, parser, analyzer and code generator over source.
// Any parse, type or capacity error aborts compilation and is returned as a
// *Diagnostic.
func Compile(source []byte, opts Options) (*Program, error) {
	tokens, warnings := Scan(source)

	tree, err := NewParser(source, tokens).Parse()
	if err != nil {
		return nil, err
	}

	typ, err := Analyze(source, tree)
	if err != nil {
		return nil, err
	}

	chunk, err := Generate(source, tree, opts)
	if err != nil {
		return nil, err
	}

	compilerLog.Debugf("compiled %d tokens, %d nodes -> %d bytes, %d constants (%s)",
		len(tokens), tree.Len(), chunk.CodeLen(), chunk.ConstantCount(), typ)

	return &Program{
		Source:   source,
		Chunk:    chunk,
		Type:     typ,
		Warnings: warnings,
	}, nil
}

// Run executes the program on a fresh VM. A runtime fault is returned as a
// RuntimeFault *Diagnostic wrapping the *bytecode.RuntimeError, pointing at
// the operator that failed when the chunk's source map covers it.
func (p *Program) Run(opts Options) (bytecode.Value, error) {
	vm := bytecode.NewVMWithDepth(opts.StackDepth)
	vm.Trace = opts.Trace
	return p.RunOn(vm)
}

// RunOn executes the program on an existing VM, so one VM can serve a
// sequence of programs. Errors are reported as in Run.
func (p *Program) RunOn(vm *bytecode.VM) (bytecode.Value, error) {
	v, err := vm.Execute(p.Chunk)
	if err != nil {
		return bytecode.Value{}, p.runtimeDiagnostic(err)
	}
	return v, nil
}

func (p *Program) runtimeDiagnostic(err error) error {
	var rerr *bytecode.RuntimeError
	if !errors.As(err, &rerr) {
		return err
	}
	var d *Diagnostic
	if start, end, ok := p.Chunk.SpanAt(rerr.Offset); ok {
		d = newDiagnostic(RuntimeFault, p.Source, rerr.Err.Error(), Span{Start: start, End: end})
	} else {
		d = newDiagnostic(RuntimeFault, p.Source, rerr.Error())
	}
	d.Err = err
	return d
}

// Interpret compiles source and runs it.
func Interpret(source []byte, opts Options) (bytecode.Value, error) {
	prog, err := Compile(source, opts)
	if err != nil {
		return bytecode.Value{}, err
	}
	return prog.Run(opts)
}
