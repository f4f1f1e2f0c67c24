package compiler

import (
	"fmt"
	"strings"
)

// Span is a half-open byte range [Start, End) into the source buffer.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Cover returns the smallest span containing both s and o.
func (s Span) Cover(o Span) Span {
	return Span{Start: min(s.Start, o.Start), End: max(s.End, o.End)}
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// ErrorKind classifies a Diagnostic.
type ErrorKind int

const (
	LexError      ErrorKind = iota // bad character or unterminated string; recoverable
	ParseError                     // malformed expression
	TypeError                      // operand types do not fit the operator
	CapacityError                  // chunk limits exceeded
	RuntimeFault                   // VM fault mapped back to source
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case ParseError:
		return "parse error"
	case TypeError:
		return "type error"
	case CapacityError:
		return "capacity error"
	case RuntimeFault:
		return "runtime error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Diagnostic is a compile or runtime error tied to one or two source spans.
// It implements error; Render produces the multi-line report with the
// offending source line underlined.
type Diagnostic struct {
	Kind    ErrorKind
	Message string
	Spans   []Span
	Line    int // 1-based line of the first span
	Column  int // 1-based byte column of the first span

	// Err is the underlying cause, if any (for example a *bytecode.RuntimeError).
	Err error

	source []byte
}

func newDiagnostic(kind ErrorKind, source []byte, msg string, spans ...Span) *Diagnostic {
	d := &Diagnostic{
		Kind:    kind,
		Message: msg,
		Spans:   spans,
		source:  source,
		Line:    1,
		Column:  1,
	}
	if len(spans) > 0 {
		d.Line, d.Column = LineColumn(source, spans[0].Start)
	}
	return d
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// Span returns the span covering every span of the diagnostic.
func (d *Diagnostic) Span() Span {
	if len(d.Spans) == 0 {
		return Span{}
	}
	s := d.Spans[0]
	for _, o := range d.Spans[1:] {
		s = s.Cover(o)
	}
	return s
}

// Render returns the diagnostic as a report:
//
//	type error: cannot apply '+' to int and float
//	 --> line 1, column 1
//	  |
//	1 | 2 + 3.5
//	  | ^---^^^
//
// Bytes inside a span are marked with '^'; the gap between two spans is
// marked with '-'. Spans are clipped at the end of the first line.
func (d *Diagnostic) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", d.Kind, d.Message)
	if len(d.Spans) == 0 || d.source == nil {
		return sb.String()
	}

	lineStart, lineEnd := lineBounds(d.source, d.Spans[0].Start)
	gutter := fmt.Sprintf("%d", d.Line)
	pad := strings.Repeat(" ", len(gutter))

	fmt.Fprintf(&sb, "%s--> line %d, column %d\n", pad, d.Line, d.Column)
	fmt.Fprintf(&sb, "%s |\n", pad)
	fmt.Fprintf(&sb, "%s | %s\n", gutter, d.source[lineStart:lineEnd])
	fmt.Fprintf(&sb, "%s | %s\n", pad, d.underline(lineStart, lineEnd))
	return sb.String()
}

func (d *Diagnostic) underline(lineStart, lineEnd int) string {
	cover := d.Span()
	var sb strings.Builder
	marked := false
	for i := lineStart; i < lineEnd; i++ {
		switch {
		case d.inSpan(i):
			sb.WriteByte('^')
			marked = true
		case cover.Contains(i) && marked:
			sb.WriteByte('-')
		case i < cover.Start && d.source[i] == '\t':
			sb.WriteByte('\t')
		case i < cover.Start:
			sb.WriteByte(' ')
		}
	}
	if !marked {
		// Empty span or a span at end of line: point just past the text.
		sb.WriteByte('^')
	}
	return strings.TrimRight(sb.String(), "-")
}

func (d *Diagnostic) inSpan(i int) bool {
	for _, s := range d.Spans {
		if s.Contains(i) {
			return true
		}
	}
	return false
}

// LineColumn converts a byte offset into a 1-based line and byte column.
func LineColumn(source []byte, offset int) (line, column int) {
	offset = max(0, min(offset, len(source)))
	line = 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, offset - lineStart + 1
}

// lineBounds returns the start and end (exclusive, without the newline) of
// the line containing offset.
func lineBounds(source []byte, offset int) (int, int) {
	offset = max(0, min(offset, len(source)))
	start := offset
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(source) && source[end] != '\n' {
		end++
	}
	if end > start && source[end-1] == '\r' {
		end--
	}
	return start, end
}
