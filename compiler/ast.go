package compiler

import (
	"fmt"

	"github.com/chazu/ul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Syntax tree: nodes live in a single arena and refer to each other by index
// ---------------------------------------------------------------------------

// NodeID indexes Tree.Nodes.
type NodeID int32

// NoNode marks an absent child.
const NoNode NodeID = -1

// NodeKind is the operator tag of a node.
type NodeKind uint8

const (
	// Leaves
	NodeInt NodeKind = iota
	NodeFloat
	NodeBool

	// Unary
	NodeNegate
	NodeNot

	// Binary
	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodeGreater
	NodeLess
	NodeGreaterEqual
	NodeLessEqual
	NodeEqual
	NodeNotEqual
	NodeAnd
	NodeOr

	nodeKindCount
)

// Arity is the number of children a node kind takes.
type Arity int

const (
	Leaf   Arity = 0
	Unary  Arity = 1
	Binary Arity = 2
)

// Operand classes decide what the analyzer accepts.
type operandClass uint8

const (
	operandNone    operandClass = iota // literal
	operandNumeric                     // int or float, both sides equal
	operandAny                         // any tag, both sides equal
	operandBool                        // bool only
)

// nodeInfo describes a node kind: its arity, its source symbol, the opcode
// that implements it and the operand class it requires.
type nodeInfo struct {
	name    string
	symbol  string
	arity   Arity
	opcode  bytecode.Opcode
	operand operandClass
	yields  bytecode.ValueKind // 0 means "same as the operands"
}

var nodeInfoTable = [nodeKindCount]nodeInfo{
	NodeInt:          {"Int", "", Leaf, bytecode.OpConst, operandNone, bytecode.KindInt},
	NodeFloat:        {"Float", "", Leaf, bytecode.OpConst, operandNone, bytecode.KindFloat},
	NodeBool:         {"Bool", "", Leaf, bytecode.OpConstTrue, operandNone, bytecode.KindBool},
	NodeNegate:       {"Negate", "-", Unary, bytecode.OpNeg, operandNumeric, 0},
	NodeNot:          {"Not", "!", Unary, bytecode.OpNot, operandBool, bytecode.KindBool},
	NodeAdd:          {"Add", "+", Binary, bytecode.OpAdd, operandNumeric, 0},
	NodeSub:          {"Sub", "-", Binary, bytecode.OpSub, operandNumeric, 0},
	NodeMul:          {"Mul", "*", Binary, bytecode.OpMul, operandNumeric, 0},
	NodeDiv:          {"Div", "/", Binary, bytecode.OpDiv, operandNumeric, 0},
	NodeGreater:      {"Greater", ">", Binary, bytecode.OpGt, operandNumeric, bytecode.KindBool},
	NodeLess:         {"Less", "<", Binary, bytecode.OpLt, operandNumeric, bytecode.KindBool},
	NodeGreaterEqual: {"GreaterEqual", ">=", Binary, bytecode.OpGe, operandNumeric, bytecode.KindBool},
	NodeLessEqual:    {"LessEqual", "<=", Binary, bytecode.OpLe, operandNumeric, bytecode.KindBool},
	NodeEqual:        {"Equal", "==", Binary, bytecode.OpEq, operandAny, bytecode.KindBool},
	NodeNotEqual:     {"NotEqual", "!=", Binary, bytecode.OpNe, operandAny, bytecode.KindBool},
	NodeAnd:          {"And", "&&", Binary, bytecode.OpAnd, operandBool, bytecode.KindBool},
	NodeOr:           {"Or", "||", Binary, bytecode.OpOr, operandBool, bytecode.KindBool},
}

func (k NodeKind) info() nodeInfo {
	if k >= nodeKindCount {
		return nodeInfo{name: fmt.Sprintf("NodeKind(%d)", k)}
	}
	return nodeInfoTable[k]
}

func (k NodeKind) String() string { return k.info().name }

// Symbol returns the operator as written in source, or "" for literals.
func (k NodeKind) Symbol() string { return k.info().symbol }

// Arity returns how many children the kind takes.
func (k NodeKind) Arity() Arity { return k.info().arity }

// Opcode returns the instruction that implements the kind.
func (k NodeKind) Opcode() bytecode.Opcode { return k.info().opcode }

// Node is one syntax tree node. Left is set for unary and binary nodes,
// Right only for binary nodes. Value is set only for leaves.
type Node struct {
	Kind  NodeKind
	Left  NodeID
	Right NodeID
	Value bytecode.Value
	Span  Span // covers the whole expression
	OpPos Span // the operator token, or the literal itself
}

// Tree is a syntax tree stored as an arena. Children are always created
// before their parents, so Nodes is in post order and Root is the last node.
type Tree struct {
	Nodes []Node
	Root  NodeID
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

func (t *Tree) add(n Node) NodeID {
	t.Nodes = append(t.Nodes, n)
	return NodeID(len(t.Nodes) - 1)
}

func (t *Tree) leaf(kind NodeKind, v bytecode.Value, span Span) NodeID {
	return t.add(Node{Kind: kind, Left: NoNode, Right: NoNode, Value: v, Span: span, OpPos: span})
}

func (t *Tree) unary(kind NodeKind, op Span, operand NodeID) NodeID {
	return t.add(Node{
		Kind:  kind,
		Left:  operand,
		Right: NoNode,
		Span:  op.Cover(t.Nodes[operand].Span),
		OpPos: op,
	})
}

func (t *Tree) binary(kind NodeKind, op Span, left, right NodeID) NodeID {
	return t.add(Node{
		Kind:  kind,
		Left:  left,
		Right: right,
		Span:  t.Nodes[left].Span.Cover(t.Nodes[right].Span),
		OpPos: op,
	})
}

// String renders the tree as a fully parenthesized expression, e.g.
// "((10 - 3) - 2)".
func (t *Tree) String() string {
	if len(t.Nodes) == 0 {
		return ""
	}
	return t.format(t.Root)
}

func (t *Tree) format(id NodeID) string {
	n := t.Node(id)
	switch n.Kind.Arity() {
	case Leaf:
		return n.Value.String()
	case Unary:
		return fmt.Sprintf("(%s%s)", n.Kind.Symbol(), t.format(n.Left))
	default:
		return fmt.Sprintf("(%s %s %s)", t.format(n.Left), n.Kind.Symbol(), t.format(n.Right))
	}
}
