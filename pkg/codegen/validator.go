// In-memory Go code validation using go/parser and go/types.

package codegen

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// ValidationError represents a Go validation error with position info
type ValidationError struct {
	Line     int
	Column   int
	Function string // Function containing the error
	Message  string
}

// CodeValidator validates generated Go source code in-memory
type CodeValidator struct {
	fset     *token.FileSet
	filename string
}

// NewCodeValidator creates a validator for the given filename (used in error messages)
func NewCodeValidator(filename string) *CodeValidator {
	return &CodeValidator{
		filename: filename,
	}
}

// Validate parses and type-checks Go source code, returning any errors
func (cv *CodeValidator) Validate(source string) []ValidationError {
	cv.fset = token.NewFileSet()

	file, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors)
	if err != nil {
		return []ValidationError{{Line: 1, Column: 1, Message: err.Error()}}
	}

	funcMap := cv.buildFunctionMap(file)

	var typeCheckErrors []ValidationError
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			typeErr, ok := err.(types.Error)
			if !ok {
				return
			}
			pos := cv.fset.Position(typeErr.Pos)
			fn := funcMap[pos.Line]
			if fn == "" {
				fn = "<package>"
			}
			typeCheckErrors = append(typeCheckErrors, ValidationError{
				Line:     pos.Line,
				Column:   pos.Column,
				Function: fn,
				Message:  typeErr.Msg,
			})
		},
	}

	_, _ = conf.Check(file.Name.Name, cv.fset, []*ast.File{file}, nil)

	return typeCheckErrors
}

// buildFunctionMap maps every line inside a function declaration to the
// function's name.
func (cv *CodeValidator) buildFunctionMap(file *ast.File) map[int]string {
	funcMap := make(map[int]string)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		start := cv.fset.Position(fn.Pos()).Line
		end := cv.fset.Position(fn.End()).Line
		for line := start; line <= end; line++ {
			funcMap[line] = fn.Name.Name
		}
	}
	return funcMap
}

// FormatValidationErrors returns a human-readable error report
func FormatValidationErrors(errors []ValidationError, filename string) string {
	if len(errors) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, err := range errors {
		sb.WriteString("  ")
		sb.WriteString(filename)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(err.Line))
		sb.WriteString(": ")
		if err.Function != "" && err.Function != "<package>" {
			sb.WriteString(err.Function)
			sb.WriteString(": ")
		}
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}

	return sb.String()
}
