package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/ul/compiler"
	"github.com/chazu/ul/pkg/bytecode"
)

const (
	historyFile = ".ul_history"
	promptMain  = "ul> "
	promptCont  = "... "
)

// runREPL starts an interactive read-eval-print loop. Every expression runs
// on the same VM.
func runREPL(r *runner) error {
	fmt.Fprintln(r.out, "ul REPL (type :quit to exit, :help for commands)")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completeLine)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	vm := bytecode.NewVMWithDepth(r.opts.StackDepth)
	for {
		src, err := readExpression(ln)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(src)
		if input == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if strings.HasPrefix(input, ":") {
			if quit := handleREPLCommand(r, input); quit {
				return nil
			}
			continue
		}
		r.runOn(vm, []byte(src))
	}
}

// readExpression reads lines until they form a complete expression.
func readExpression(ln *liner.State) (string, error) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if !incomplete(b.String()) {
			return b.String(), nil
		}
	}
}

// incomplete reports whether more input could finish src: an open
// parenthesis is unmatched, or the last token is an operator.
func incomplete(src string) bool {
	tokens, _ := compiler.Scan([]byte(src))
	depth := 0
	last := compiler.TokenEOF
	for _, tok := range tokens {
		switch tok.Type {
		case compiler.TokenLParen:
			depth++
		case compiler.TokenRParen:
			depth--
		case compiler.TokenEOF:
			continue
		}
		last = tok.Type
	}
	if depth > 0 {
		return true
	}
	switch last {
	case compiler.TokenPlus, compiler.TokenMinus, compiler.TokenStar, compiler.TokenSlash,
		compiler.TokenBang, compiler.TokenLess, compiler.TokenGreater,
		compiler.TokenLessEqual, compiler.TokenGreaterEqual,
		compiler.TokenEqualEqual, compiler.TokenBangEqual,
		compiler.TokenAmpAmp, compiler.TokenPipePipe:
		return true
	}
	return false
}

// completeLine offers the literal keywords for the word before the cursor.
func completeLine(line string) []string {
	i := strings.LastIndexFunc(line, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	head, word := line[:i+1], line[i+1:]
	if word == "" {
		return nil
	}
	var out []string
	for _, kw := range []string{"true", "false"} {
		if strings.HasPrefix(kw, word) {
			out = append(out, head+kw)
		}
	}
	return out
}

// handleREPLCommand handles REPL meta-commands. It returns true to quit.
func handleREPLCommand(r *runner, cmd string) bool {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :dis              Toggle bytecode listings")
		fmt.Fprintln(r.out, "  :trace            Toggle the VM instruction trace")
		fmt.Fprintln(r.out, "  :limits           Show compiler and VM limits")
		fmt.Fprintln(r.out, "  :quit, :q         Exit REPL")
	case ":dis":
		r.disassemble = !r.disassemble
		fmt.Fprintf(r.out, "Disassembly %s\n", onOff(r.disassemble))
	case ":trace":
		r.trace = !r.trace
		fmt.Fprintf(r.out, "Trace %s\n", onOff(r.trace))
	case ":limits":
		fmt.Fprintf(r.out, "max constants %d, max code %d, stack depth %d\n",
			r.opts.MaxConstants, r.opts.MaxCodeSize, r.opts.StackDepth)
	case ":quit", ":q":
		return true
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
