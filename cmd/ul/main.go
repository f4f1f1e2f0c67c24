// ul CLI - compiles and evaluates ul expressions
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/ul/manifest"
	"github.com/chazu/ul/server"

	_ "github.com/tliron/commonlog/simple"
)

var cmdLog = commonlog.GetLogger("ul.cmd")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ul", flag.ContinueOnError)
	fs.SetOutput(stderr)

	expr := fs.String("e", "", "Evaluate the given expression")
	interactive := fs.Bool("i", false, "Start interactive REPL")
	disassemble := fs.Bool("d", false, "Print the bytecode listing before running")
	trace := fs.Bool("trace", false, "Trace VM instructions to stderr")
	emitGo := fs.Bool("emit-go", false, "Print the expression compiled to a Go program instead of running it")
	lspMode := fs.Bool("lsp", false, "Start language server on stdio")
	configPath := fs.String("config", "", "Path to ul.toml (default: search upward from the working directory)")
	verbose := fs.Bool("v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ul [options] [file]\n\n")
		fmt.Fprintf(stderr, "Compiles a ul expression to bytecode and runs it.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  ul calc.ul              # Run the expression in calc.ul\n")
		fmt.Fprintf(stderr, "  ul -e '2 + 3'           # Prints 5 (int)\n")
		fmt.Fprintf(stderr, "  ul -d -e '1.5 * 2.0'    # Disassemble, then run\n")
		fmt.Fprintf(stderr, "  ul -emit-go calc.ul     # Print an equivalent Go program\n")
		fmt.Fprintf(stderr, "  ul -i                   # Start REPL\n")
		fmt.Fprintf(stderr, "  ul -lsp                 # Serve editors over stdio\n")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	m, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 1 {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)
	if m.Dir != "" {
		cmdLog.Infof("using %s in %s", manifest.FileName, m.Dir)
	}

	r := &runner{
		out:         stdout,
		errOut:      stderr,
		opts:        m.Options(),
		disassemble: *disassemble || m.Output.Disassemble,
		trace:       *trace || m.Output.Trace,
		verbose:     *verbose,
		emitGo:      *emitGo,
	}

	if *lspMode {
		if err := server.NewLSP(r.opts).Run(); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}

	paths := fs.Args()
	if len(paths) > 1 {
		fmt.Fprintf(stderr, "Error: expected at most one file, got %d\n", len(paths))
		return 2
	}
	if *expr != "" && len(paths) > 0 {
		fmt.Fprintf(stderr, "Error: -e and a file are mutually exclusive\n")
		return 2
	}

	switch {
	case *expr != "":
		if r.run("-e", []byte(*expr)) != nil {
			return 1
		}
	case len(paths) == 1:
		src, err := readSource(paths[0], stdin)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if r.run(paths[0], src) != nil {
			return 1
		}
	}

	// Start REPL if requested or if no input was given
	if *interactive || (*expr == "" && len(paths) == 0) {
		if err := runREPL(r); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// loadConfig reads the file named by -config, or searches upward from the
// working directory. Without either, the defaults apply.
func loadConfig(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

// readSource reads a source file; "-" reads standard input.
func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
