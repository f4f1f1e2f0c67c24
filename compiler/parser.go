package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chazu/ul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with one function per precedence level
// ---------------------------------------------------------------------------

// maxNesting bounds parenthesis and unary-operator nesting.
const maxNesting = 1000

// Parser builds a Tree from a token sequence. The first error aborts the
// parse; no partial tree is returned.
type Parser struct {
	source  []byte
	tokens  []Token
	current int
	depth   int
	tree    *Tree
}

// NewParser creates a parser over tokens scanned from source. tokens must end
// with TokenEOF, as returned by Scan.
func NewParser(source []byte, tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		end := len(source)
		tokens = append(tokens[:len(tokens):len(tokens)], Token{Type: TokenEOF, Span: Span{Start: end, End: end}})
	}
	return &Parser{
		source: source,
		tokens: tokens,
		tree:   &Tree{Nodes: make([]Node, 0, len(tokens)), Root: NoNode},
	}
}

// Parse scans and parses source. Lexical diagnostics are returned even when
// parsing succeeds.
func Parse(source []byte) (*Tree, []*Diagnostic, error) {
	tokens, lexDiags := Scan(source)
	tree, err := NewParser(source, tokens).Parse()
	return tree, lexDiags, err
}

// Parse parses a single expression followed by end of input.
func (p *Parser) Parse() (*Tree, error) {
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if !p.curTokenIs(TokenEOF) {
		return nil, p.errorf(p.curToken().Span, "expected end of expression, found %s", p.describe(p.curToken()))
	}
	p.tree.Root = root
	return p.tree, nil
}

// ---------------------------------------------------------------------------
// Token cursor
// ---------------------------------------------------------------------------

func (p *Parser) curToken() Token {
	return p.tokens[p.current]
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken().Type == t
}

// nextToken advances past the current token. The cursor never moves past EOF.
func (p *Parser) nextToken() Token {
	tok := p.curToken()
	if tok.Type != TokenEOF {
		p.current++
	}
	return tok
}

func (p *Parser) errorf(span Span, format string, args ...interface{}) *Diagnostic {
	return newDiagnostic(ParseError, p.source, fmt.Sprintf(format, args...), span)
}

func (p *Parser) describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return tok.Type.String()
	case TokenInteger, TokenFloat, TokenString, TokenIdentifier:
		return fmt.Sprintf("%s %s", tok.Type, tok.Text(p.source))
	default:
		return tok.Type.String()
	}
}

// ---------------------------------------------------------------------------
// Precedence levels, lowest first
// ---------------------------------------------------------------------------

var (
	orOps         = map[TokenType]NodeKind{TokenPipePipe: NodeOr}
	andOps        = map[TokenType]NodeKind{TokenAmpAmp: NodeAnd}
	equalityOps   = map[TokenType]NodeKind{TokenEqualEqual: NodeEqual, TokenBangEqual: NodeNotEqual}
	comparisonOps = map[TokenType]NodeKind{
		TokenGreater:      NodeGreater,
		TokenLess:         NodeLess,
		TokenGreaterEqual: NodeGreaterEqual,
		TokenLessEqual:    NodeLessEqual,
	}
	termOps   = map[TokenType]NodeKind{TokenPlus: NodeAdd, TokenMinus: NodeSub}
	factorOps = map[TokenType]NodeKind{TokenStar: NodeMul, TokenSlash: NodeDiv}
)

func (p *Parser) parseExpression() (NodeID, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (NodeID, error) {
	return p.parseBinary(p.parseAnd, orOps)
}

func (p *Parser) parseAnd() (NodeID, error) {
	return p.parseBinary(p.parseEquality, andOps)
}

func (p *Parser) parseEquality() (NodeID, error) {
	return p.parseBinary(p.parseComparison, equalityOps)
}

func (p *Parser) parseComparison() (NodeID, error) {
	return p.parseBinary(p.parseTerm, comparisonOps)
}

func (p *Parser) parseTerm() (NodeID, error) {
	return p.parseBinary(p.parseFactor, termOps)
}

func (p *Parser) parseFactor() (NodeID, error) {
	return p.parseBinary(p.parseUnary, factorOps)
}

// parseBinary parses operand (op operand)* and folds to the left, so
// "10 - 3 - 2" becomes ((10 - 3) - 2).
func (p *Parser) parseBinary(operand func() (NodeID, error), ops map[TokenType]NodeKind) (NodeID, error) {
	left, err := operand()
	if err != nil {
		return NoNode, err
	}
	for {
		kind, ok := ops[p.curToken().Type]
		if !ok {
			return left, nil
		}
		op := p.nextToken()
		right, err := operand()
		if err != nil {
			return NoNode, err
		}
		left = p.tree.binary(kind, op.Span, left, right)
	}
}

func (p *Parser) parseUnary() (NodeID, error) {
	var kind NodeKind
	switch p.curToken().Type {
	case TokenMinus:
		kind = NodeNegate
	case TokenBang:
		kind = NodeNot
	default:
		return p.parsePrimary()
	}

	op := p.nextToken()
	if err := p.enter(op.Span); err != nil {
		return NoNode, err
	}
	defer p.leave()

	operand, err := p.parseUnary()
	if err != nil {
		return NoNode, err
	}
	return p.tree.unary(kind, op.Span, operand), nil
}

func (p *Parser) parsePrimary() (NodeID, error) {
	tok := p.curToken()
	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		n, err := strconv.ParseInt(tok.Text(p.source), 10, 32)
		if err != nil {
			return NoNode, p.errorf(tok.Span, "integer literal out of range: %s", tok.Text(p.source))
		}
		return p.tree.leaf(NodeInt, bytecode.IntValue(int32(n)), tok.Span), nil

	case TokenFloat:
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Text(p.source), 32)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return NoNode, p.errorf(tok.Span, "malformed float literal: %s", tok.Text(p.source))
		}
		if err != nil && f != 0 {
			return NoNode, p.errorf(tok.Span, "float literal out of range: %s", tok.Text(p.source))
		}
		return p.tree.leaf(NodeFloat, bytecode.FloatValue(float32(f)), tok.Span), nil

	case TokenTrue, TokenFalse:
		p.nextToken()
		return p.tree.leaf(NodeBool, bytecode.BoolValue(tok.Type == TokenTrue), tok.Span), nil

	case TokenLParen:
		return p.parseGroup()

	default:
		return NoNode, p.errorf(tok.Span, "expected expression, found %s", p.describe(tok))
	}
}

// parseGroup parses "(" expression ")". A missing ")" is reported at the
// opening parenthesis.
func (p *Parser) parseGroup() (NodeID, error) {
	open := p.nextToken()
	if err := p.enter(open.Span); err != nil {
		return NoNode, err
	}
	defer p.leave()

	inner, err := p.parseExpression()
	if err != nil {
		return NoNode, err
	}
	if !p.curTokenIs(TokenRParen) {
		return NoNode, p.errorf(open.Span, "expected ')' to close this '(', found %s", p.describe(p.curToken()))
	}
	p.nextToken()
	return inner, nil
}

func (p *Parser) enter(at Span) error {
	p.depth++
	if p.depth > maxNesting {
		return p.errorf(at, "expression nested too deeply (limit %d)", maxNesting)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}
