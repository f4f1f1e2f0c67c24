package compiler

import (
	"fmt"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: tokenizer for ul source
// ---------------------------------------------------------------------------

// Scanner produces tokens on demand from a source buffer. Lexical errors do
// not stop scanning: the offending input is skipped and a LexError
// diagnostic is recorded.
type Scanner struct {
	source  []byte
	start   int // start of the token being scanned
	current int // next byte to read
	diags   []*Diagnostic
}

// NewScanner creates a scanner over source.
func NewScanner(source []byte) *Scanner {
	return &Scanner{source: source}
}

// Diagnostics returns the lexical errors recorded so far.
func (s *Scanner) Diagnostics() []*Diagnostic {
	return s.diags
}

// Scan tokenizes the whole source. The returned slice always ends with a
// single TokenEOF.
func Scan(source []byte) ([]Token, []*Diagnostic) {
	s := NewScanner(source)
	var tokens []Token
	for {
		tok := s.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, s.diags
		}
	}
}

// NextToken returns the next token. At end of input it returns TokenEOF with
// an empty span at len(source), and keeps doing so on further calls.
func (s *Scanner) NextToken() Token {
	for {
		s.skipWhitespaceAndComments()
		s.start = s.current
		if s.atEnd() {
			return s.make(TokenEOF)
		}

		ch := s.advance()
		switch {
		case isDigit(ch):
			return s.readNumber()
		case isLetter(ch) || ch == '_':
			return s.readIdentifierOrKeyword()
		case ch == '"':
			if tok, ok := s.readString(); ok {
				return tok
			}
			continue
		}

		if tok, ok := s.readOperator(ch); ok {
			return tok
		}
		s.unexpectedCharacter()
	}
}

func (s *Scanner) readOperator(ch byte) (Token, bool) {
	switch ch {
	case '(':
		return s.make(TokenLParen), true
	case ')':
		return s.make(TokenRParen), true
	case '{':
		return s.make(TokenLBrace), true
	case '}':
		return s.make(TokenRBrace), true
	case '[':
		return s.make(TokenLBracket), true
	case ']':
		return s.make(TokenRBracket), true
	case ':':
		return s.make(TokenColon), true
	case ';':
		return s.make(TokenSemicolon), true
	case '.':
		return s.make(TokenDot), true
	case ',':
		return s.make(TokenComma), true
	case '+':
		return s.either('=', TokenPlusEqual, TokenPlus), true
	case '-':
		return s.either('=', TokenMinusEqual, TokenMinus), true
	case '*':
		return s.either('=', TokenStarEqual, TokenStar), true
	case '/':
		return s.either('=', TokenSlashEqual, TokenSlash), true
	case '!':
		return s.either('=', TokenBangEqual, TokenBang), true
	case '=':
		return s.either('=', TokenEqualEqual, TokenEqual), true
	case '<':
		if s.match('<') {
			return s.make(TokenLessLess), true
		}
		return s.either('=', TokenLessEqual, TokenLess), true
	case '>':
		if s.match('>') {
			return s.make(TokenGreaterGreater), true
		}
		return s.either('=', TokenGreaterEqual, TokenGreater), true
	case '&':
		if s.match('&') {
			return s.make(TokenAmpAmp), true
		}
	case '|':
		if s.match('|') {
			return s.make(TokenPipePipe), true
		}
	}
	return Token{}, false
}

// skipWhitespaceAndComments skips blanks and // line comments.
func (s *Scanner) skipWhitespaceAndComments() {
	for !s.atEnd() {
		switch s.peek() {
		case ' ', '\t', '\r', '\n':
			s.current++
		case '/':
			if s.peekNext() != '/' {
				return
			}
			for !s.atEnd() && s.peek() != '\n' {
				s.current++
			}
		default:
			return
		}
	}
}

// readNumber reads an integer or float literal. A '.' only continues the
// literal when a digit follows it, so "1." scans as an integer and a dot.
func (s *Scanner) readNumber() Token {
	for isDigit(s.peek()) {
		s.current++
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.current++ // consume .
		for isDigit(s.peek()) {
			s.current++
		}
		return s.make(TokenFloat)
	}
	return s.make(TokenInteger)
}

// readIdentifierOrKeyword reads an identifier, or a reserved word on an exact
// match.
func (s *Scanner) readIdentifierOrKeyword() Token {
	for c := s.peek(); isLetter(c) || isDigit(c) || c == '_'; c = s.peek() {
		s.current++
	}
	if typ, ok := reservedWords[string(s.source[s.start:s.current])]; ok {
		return s.make(typ)
	}
	return s.make(TokenIdentifier)
}

// readString reads a double-quoted string; the opening quote is consumed.
// Strings may span lines and have no escapes. An unterminated string
// consumes the rest of the input and produces no token.
func (s *Scanner) readString() (Token, bool) {
	for !s.atEnd() && s.peek() != '"' {
		s.current++
	}
	if s.atEnd() {
		s.errorAt(Span{Start: s.start, End: s.start + 1}, "unterminated string")
		return Token{}, false
	}
	s.current++ // closing quote
	return s.make(TokenString), true
}

// unexpectedCharacter records a diagnostic for the character starting at
// s.start and skips all of its bytes.
func (s *Scanner) unexpectedCharacter() {
	r, size := utf8.DecodeRune(s.source[s.start:])
	s.current = s.start + size
	var desc string
	if r == utf8.RuneError && size == 1 {
		desc = fmt.Sprintf("byte 0x%02X", s.source[s.start])
	} else {
		desc = fmt.Sprintf("%q", r)
	}
	s.errorAt(Span{Start: s.start, End: s.current}, "unexpected character "+desc)
}

func (s *Scanner) errorAt(span Span, msg string) {
	s.diags = append(s.diags, newDiagnostic(LexError, s.source, msg, span))
}

// ---------------------------------------------------------------------------
// Byte-level helpers
// ---------------------------------------------------------------------------

func (s *Scanner) make(typ TokenType) Token {
	return Token{Type: typ, Span: Span{Start: s.start, End: s.current}}
}

// either consumes next and returns yes when it follows, otherwise no.
func (s *Scanner) either(next byte, yes, no TokenType) Token {
	if s.match(next) {
		return s.make(yes)
	}
	return s.make(no)
}

func (s *Scanner) match(c byte) bool {
	if s.atEnd() || s.source[s.current] != c {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	return c
}

func (s *Scanner) atEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
