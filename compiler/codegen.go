package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/ul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// CodeGenerator: tree to bytecode
// ---------------------------------------------------------------------------

// CodeGenerator emits bytecode for an analyzed tree into a fresh Chunk.
type CodeGenerator struct {
	source  []byte
	tree    *Tree
	chunk   *bytecode.Chunk
	maxCode int
}

// NewCodeGenerator creates a code generator honouring the chunk limits in opts.
func NewCodeGenerator(source []byte, tree *Tree, opts Options) *CodeGenerator {
	return &CodeGenerator{
		source:  source,
		tree:    tree,
		chunk:   bytecode.NewChunkWithLimit(opts.MaxConstants),
		maxCode: opts.MaxCodeSize,
	}
}

// Generate emits bytecode for tree. The tree must have passed Analyze.
func Generate(source []byte, tree *Tree, opts Options) (*bytecode.Chunk, error) {
	return NewCodeGenerator(source, tree, opts).Generate()
}

// Generate emits the whole tree followed by RETURN.
func (g *CodeGenerator) Generate() (*bytecode.Chunk, error) {
	if g.tree.Len() == 0 || g.tree.Root == NoNode {
		return nil, newDiagnostic(CapacityError, g.source, "nothing to compile")
	}
	if err := g.emit(g.tree.Root); err != nil {
		return nil, err
	}
	g.chunk.Emit(bytecode.OpReturn)

	if g.maxCode > 0 && g.chunk.CodeLen() > g.maxCode {
		root := g.tree.Node(g.tree.Root)
		return nil, newDiagnostic(CapacityError, g.source,
			fmt.Sprintf("program too large: %d bytes of code exceeds the limit of %d", g.chunk.CodeLen(), g.maxCode),
			root.Span)
	}
	return g.chunk, nil
}

// emit generates code in post order: left child, right child, then the
// node's own instruction.
func (g *CodeGenerator) emit(id NodeID) error {
	n := g.tree.Node(id)

	switch n.Kind.Arity() {
	case Leaf:
		return g.emitLiteral(n)
	case Unary:
		if err := g.emit(n.Left); err != nil {
			return err
		}
	default:
		if err := g.emit(n.Left); err != nil {
			return err
		}
		if err := g.emit(n.Right); err != nil {
			return err
		}
	}

	offset := g.chunk.Emit(n.Kind.Opcode())
	g.chunk.AddSourceLocation(offset, n.Span.Start, n.Span.End)
	return nil
}

func (g *CodeGenerator) emitLiteral(n *Node) error {
	if n.Kind == NodeBool {
		if n.Value.Bool() {
			g.chunk.Emit(bytecode.OpConstTrue)
		} else {
			g.chunk.Emit(bytecode.OpConstFalse)
		}
		return nil
	}

	if _, err := g.chunk.EmitConstant(n.Value); err != nil {
		if errors.Is(err, bytecode.ErrConstantPoolFull) {
			d := newDiagnostic(CapacityError, g.source,
				fmt.Sprintf("too many constants: a chunk holds at most %d", g.chunk.ConstantLimit()),
				n.Span)
			d.Err = err
			return d
		}
		return err
	}
	return nil
}
