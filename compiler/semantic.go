package compiler

import (
	"fmt"

	"github.com/chazu/ul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Analyzer: operand type checking
// ---------------------------------------------------------------------------

// Analyzer checks that every operator receives operands it accepts. It reads
// the tree and never modifies it.
type Analyzer struct {
	source []byte
	tree   *Tree
	kinds  []bytecode.ValueKind // static type per node, filled in post order
}

// NewAnalyzer creates an analyzer for a parsed tree.
func NewAnalyzer(source []byte, tree *Tree) *Analyzer {
	return &Analyzer{
		source: source,
		tree:   tree,
		kinds:  make([]bytecode.ValueKind, tree.Len()),
	}
}

// Analyze type checks the tree and returns the static type of the root. The
// first violation is returned as a TypeError diagnostic.
func Analyze(source []byte, tree *Tree) (bytecode.ValueKind, error) {
	return NewAnalyzer(source, tree).Analyze()
}

// Analyze type checks the tree. Because the arena is in post order, a single
// forward sweep visits every child before its parent.
func (a *Analyzer) Analyze() (bytecode.ValueKind, error) {
	if a.tree.Len() == 0 || a.tree.Root == NoNode {
		return 0, newDiagnostic(TypeError, a.source, "empty expression")
	}
	for i := range a.tree.Nodes {
		kind, err := a.check(NodeID(i))
		if err != nil {
			return 0, err
		}
		a.kinds[i] = kind
	}
	return a.kinds[a.tree.Root], nil
}

// TypeOf returns the static type computed for a node by Analyze.
func (a *Analyzer) TypeOf(id NodeID) bytecode.ValueKind {
	return a.kinds[id]
}

func (a *Analyzer) check(id NodeID) (bytecode.ValueKind, error) {
	n := a.tree.Node(id)
	info := n.Kind.info()

	switch info.arity {
	case Leaf:
		return n.Value.Kind(), nil

	case Unary:
		operand := a.kinds[n.Left]
		if !accepts(info.operand, operand) {
			return 0, a.errorAt(fmt.Sprintf("operator '%s' expects %s, found %s",
				info.symbol, classNames[info.operand], operand), a.tree.Node(n.Left).Span)
		}
		return resultKind(info, operand), nil

	default:
		left, right := a.kinds[n.Left], a.kinds[n.Right]
		lspan, rspan := a.tree.Node(n.Left).Span, a.tree.Node(n.Right).Span
		if left != right {
			return 0, a.errorAt(fmt.Sprintf("type mismatch: cannot apply '%s' to %s and %s",
				info.symbol, describeOperand(left, "left"), describeOperand(right, "right")), lspan, rspan)
		}
		if !accepts(info.operand, left) {
			return 0, a.errorAt(fmt.Sprintf("operator '%s' expects %s operands, found %s",
				info.symbol, classNames[info.operand], left), lspan, rspan)
		}
		return resultKind(info, left), nil
	}
}

var classNames = map[operandClass]string{
	operandNumeric: "int or float",
	operandAny:     "int, float or bool",
	operandBool:    "bool",
}

func accepts(class operandClass, kind bytecode.ValueKind) bool {
	switch class {
	case operandNumeric:
		return kind.IsNumeric()
	case operandBool:
		return kind == bytecode.KindBool
	case operandAny:
		return true
	default:
		return false
	}
}

func resultKind(info nodeInfo, operand bytecode.ValueKind) bytecode.ValueKind {
	if info.yields != 0 {
		return info.yields
	}
	return operand
}

func describeOperand(kind bytecode.ValueKind, side string) string {
	return fmt.Sprintf("%s operand of type %s", side, kind)
}

func (a *Analyzer) errorAt(msg string, spans ...Span) *Diagnostic {
	return newDiagnostic(TypeError, a.source, msg, spans...)
}
