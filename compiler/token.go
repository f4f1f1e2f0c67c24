package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the ul scanner
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenInteger    // 42
	TokenFloat      // 3.14
	TokenString     // "hello"
	TokenIdentifier // foo

	// Operators
	TokenPlus           // +
	TokenMinus          // -
	TokenStar           // *
	TokenSlash          // /
	TokenBang           // !
	TokenEqual          // =
	TokenLess           // <
	TokenGreater        // >
	TokenLessLess       // <<
	TokenGreaterGreater // >>
	TokenEqualEqual     // ==
	TokenBangEqual      // !=
	TokenLessEqual      // <=
	TokenGreaterEqual   // >=
	TokenPlusEqual      // +=
	TokenMinusEqual     // -=
	TokenStarEqual      // *=
	TokenSlashEqual     // /=
	TokenAmpAmp         // &&
	TokenPipePipe       // ||

	// Delimiters
	TokenColon     // :
	TokenSemicolon // ;
	TokenDot       // .
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]

	// Keywords
	TokenLet
	TokenConst
	TokenStruct
	TokenFn
	TokenIf
	TokenElse
	TokenFor
	TokenWhile
	TokenU8
	TokenU16
	TokenU32
	TokenU64
	TokenI8
	TokenI16
	TokenI32
	TokenI64
	TokenF32
	TokenF64
	TokenBool
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "end of input",
	TokenInteger:        "integer",
	TokenFloat:          "float",
	TokenString:         "string",
	TokenIdentifier:     "identifier",
	TokenPlus:           "'+'",
	TokenMinus:          "'-'",
	TokenStar:           "'*'",
	TokenSlash:          "'/'",
	TokenBang:           "'!'",
	TokenEqual:          "'='",
	TokenLess:           "'<'",
	TokenGreater:        "'>'",
	TokenLessLess:       "'<<'",
	TokenGreaterGreater: "'>>'",
	TokenEqualEqual:     "'=='",
	TokenBangEqual:      "'!='",
	TokenLessEqual:      "'<='",
	TokenGreaterEqual:   "'>='",
	TokenPlusEqual:      "'+='",
	TokenMinusEqual:     "'-='",
	TokenStarEqual:      "'*='",
	TokenSlashEqual:     "'/='",
	TokenAmpAmp:         "'&&'",
	TokenPipePipe:       "'||'",
	TokenColon:          "':'",
	TokenSemicolon:      "';'",
	TokenDot:            "'.'",
	TokenComma:          "','",
	TokenLParen:         "'('",
	TokenRParen:         "')'",
	TokenLBrace:         "'{'",
	TokenRBrace:         "'}'",
	TokenLBracket:       "'['",
	TokenRBracket:       "']'",
	TokenLet:            "'let'",
	TokenConst:          "'const'",
	TokenStruct:         "'struct'",
	TokenFn:             "'fn'",
	TokenIf:             "'if'",
	TokenElse:           "'else'",
	TokenFor:            "'for'",
	TokenWhile:          "'while'",
	TokenU8:             "'u8'",
	TokenU16:            "'u16'",
	TokenU32:            "'u32'",
	TokenU64:            "'u64'",
	TokenI8:             "'i8'",
	TokenI16:            "'i16'",
	TokenI32:            "'i32'",
	TokenI64:            "'i64'",
	TokenF32:            "'f32'",
	TokenF64:            "'f64'",
	TokenBool:           "'bool'",
	TokenTrue:           "'true'",
	TokenFalse:          "'false'",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token is a lexical token. It does not own its text: Span indexes the
// source buffer the token was scanned from.
type Token struct {
	Type TokenType
	Span Span
}

// Text returns the token's source text.
func (t Token) Text(source []byte) string {
	return string(source[t.Span.Start:t.Span.End])
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d..%d", t.Type, t.Span.Start, t.Span.End)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":    TokenLet,
	"const":  TokenConst,
	"struct": TokenStruct,
	"fn":     TokenFn,
	"if":     TokenIf,
	"else":   TokenElse,
	"for":    TokenFor,
	"while":  TokenWhile,
	"u8":     TokenU8,
	"u16":    TokenU16,
	"u32":    TokenU32,
	"u64":    TokenU64,
	"i8":     TokenI8,
	"i16":    TokenI16,
	"i32":    TokenI32,
	"i64":    TokenI64,
	"f32":    TokenF32,
	"f64":    TokenF64,
	"bool":   TokenBool,
	"true":   TokenTrue,
	"false":  TokenFalse,
}

// Keywords returns the reserved words, for editor completion.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	return words
}
