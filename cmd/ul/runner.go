package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chazu/ul/compiler"
	"github.com/chazu/ul/pkg/bytecode"
	"github.com/chazu/ul/pkg/codegen"
)

// runner compiles and runs sources with one set of driver options.
type runner struct {
	out    io.Writer // results, listings and generated code
	errOut io.Writer // diagnostics, trace and verbose summaries

	opts        compiler.Options
	disassemble bool
	trace       bool
	verbose     bool
	emitGo      bool
}

// run compiles src and either prints generated Go or executes it. Every
// failure has already been reported on errOut when an error is returned.
func (r *runner) run(name string, src []byte) error {
	prog, err := r.compile(name, src)
	if err != nil {
		return err
	}

	if r.emitGo {
		res, err := codegen.GenerateGo(prog.Chunk, codegen.Options{
			Main:       true,
			Source:     string(src),
			StackDepth: r.opts.StackDepth,
		})
		if err != nil {
			fmt.Fprintf(r.errOut, "Error: %v\n", err)
			return err
		}
		fmt.Fprint(r.out, res.Code)
		return nil
	}

	opts := r.opts
	if r.trace {
		opts.Trace = r.errOut
	}
	v, err := prog.Run(opts)
	if err != nil {
		r.report(err)
		return err
	}
	fmt.Fprintln(r.out, v.Describe())
	return nil
}

// compile runs the compiler and prints warnings, errors, the verbose summary
// and the listing as configured.
func (r *runner) compile(name string, src []byte) (*compiler.Program, error) {
	prog, err := compiler.Compile(src, r.opts)
	if err != nil {
		_, warnings := compiler.Scan(src)
		for _, w := range warnings {
			r.report(w)
		}
		r.report(err)
		return nil, err
	}
	for _, w := range prog.Warnings {
		r.report(w)
	}

	if r.verbose {
		if fp, err := prog.Chunk.Fingerprint(); err == nil {
			fmt.Fprintf(r.errOut, "%s: %s, %d bytes, %d constants, fingerprint %s\n",
				name, prog.Type, prog.Chunk.CodeLen(), prog.Chunk.ConstantCount(), fp)
		}
	}
	if r.disassemble {
		fmt.Fprintln(r.out, prog.Chunk.DisassembleWithName(name))
	}
	return prog, nil
}

// runOn is run for the REPL: the program executes on a VM that outlives it.
func (r *runner) runOn(vm *bytecode.VM, src []byte) {
	prog, err := r.compile("repl", src)
	if err != nil {
		return
	}
	if r.trace {
		vm.Trace = r.errOut
	} else {
		vm.Trace = nil
	}
	v, err := prog.RunOn(vm)
	if err != nil {
		r.report(err)
		return
	}
	fmt.Fprintln(r.out, v.Describe())
}

// report prints a diagnostic with its source excerpt, or any other error on
// one line.
func (r *runner) report(err error) {
	var d *compiler.Diagnostic
	if errors.As(err, &d) {
		fmt.Fprint(r.errOut, d.Render())
		return
	}
	fmt.Fprintf(r.errOut, "Error: %v\n", err)
}
