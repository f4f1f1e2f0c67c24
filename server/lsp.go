// Package server implements a Language Server for ul expression files.
package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/ul/compiler"
	"github.com/chazu/ul/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "ul-lsp"

var serverLog = commonlog.GetLogger("ul.server")

// literalKeywords are the reserved words that may appear in an expression.
var literalKeywords = []string{"true", "false"}

// LspServer compiles open documents on every change and runs them on a
// shared VM owned by a VMWorker.
type LspServer struct {
	worker *VMWorker
	opts   compiler.Options

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server using the given compiler limits.
func NewLSP(opts compiler.Options) *LspServer {
	opts.Trace = nil
	s := &LspServer{
		worker:  NewVMWorker(bytecode.NewVMWithDepth(opts.StackDepth)),
		opts:    opts,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	defer s.worker.Stop()
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	serverLog.Info("ul LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(extractPrefix(text, params.Position)), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hover(text, params.Position), nil
}

// complete returns the literal keywords starting with prefix.
func complete(prefix string) []protocol.CompletionItem {
	if prefix == "" {
		return nil
	}
	var items []protocol.CompletionItem
	for _, word := range literalKeywords {
		if !strings.HasPrefix(word, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		detail := "bool literal"
		label := word
		items = append(items, protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &label,
		})
	}
	return items
}

// hover describes the innermost subexpression under the cursor: its text and
// static type, followed by the value and chunk fingerprint of the whole
// document when it compiles and runs.
func (s *LspServer) hover(text string, pos protocol.Position) *protocol.Hover {
	source := []byte(text)
	tree, _, err := compiler.Parse(source)
	if err != nil {
		return nil
	}
	analyzer := compiler.NewAnalyzer(source, tree)
	if _, err := analyzer.Analyze(); err != nil {
		return nil
	}

	id := innermostNode(tree, offsetAt(text, pos))
	if id == compiler.NoNode {
		return nil
	}
	node := tree.Node(id)

	var b strings.Builder
	fmt.Fprintf(&b, "`%s` : **%s**", strings.TrimSpace(text[node.Span.Start:node.Span.End]), analyzer.TypeOf(id))

	res := s.check(text)
	if res.ran {
		fmt.Fprintf(&b, "\n\n---\n\nResult: `%s`", res.value.Describe())
	}
	if res.prog != nil {
		chunk := res.prog.Chunk
		if fp, err := chunk.Fingerprint(); err == nil {
			fmt.Fprintf(&b, "\n\nChunk `%s`: %d bytes, %d constants", fp, chunk.CodeLen(), chunk.ConstantCount())
		}
	}

	rng := rangeOf(text, node.Span)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &rng,
	}
}

// innermostNode returns the smallest node whose span contains offset.
func innermostNode(tree *compiler.Tree, offset int) compiler.NodeID {
	best := compiler.NoNode
	for i := range tree.Nodes {
		span := tree.Nodes[i].Span
		if !span.Contains(offset) {
			continue
		}
		if best == compiler.NoNode || span.Len() < tree.Node(best).Span.Len() {
			best = compiler.NodeID(i)
		}
	}
	return best
}

// --- Diagnostics ---

// checkResult is the outcome of compiling and running one document.
type checkResult struct {
	prog  *compiler.Program
	value bytecode.Value
	ran   bool
	diags []*compiler.Diagnostic
}

// check compiles text and, if that succeeds, runs it on the worker's VM.
// Lexical warnings are reported even when compilation fails.
func (s *LspServer) check(text string) checkResult {
	source := []byte(text)
	var res checkResult

	prog, err := compiler.Compile(source, s.opts)
	if err != nil {
		_, res.diags = compiler.Scan(source)
		res.diags = append(res.diags, asDiagnostic(err))
		return res
	}
	res.prog = prog
	res.diags = prog.Warnings

	out, err := s.worker.Do(func(vm *bytecode.VM) any {
		v, err := prog.RunOn(vm)
		if err != nil {
			return err
		}
		return v
	})
	if err != nil {
		serverLog.Errorf("vm worker: %v", err)
		return res
	}
	switch out := out.(type) {
	case bytecode.Value:
		res.value = out
		res.ran = true
	case error:
		res.diags = append(res.diags, asDiagnostic(out))
	}
	return res
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	res := s.check(text)
	serverLog.Debugf("%s: %d diagnostics", uri, len(res.diags))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toProtocol(text, res.diags),
	})
}

// asDiagnostic unwraps err into a *compiler.Diagnostic. Errors from outside
// the compiler are reported as runtime faults without a span.
func asDiagnostic(err error) *compiler.Diagnostic {
	var d *compiler.Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return &compiler.Diagnostic{Kind: compiler.RuntimeFault, Message: err.Error(), Err: err}
}

// toProtocol converts compiler diagnostics into LSP diagnostics. The result
// is never nil, so publishing it clears stale markers.
func toProtocol(text string, diags []*compiler.Diagnostic) []protocol.Diagnostic {
	source := lspName
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Kind == compiler.LexError {
			severity = protocol.DiagnosticSeverityWarning
		}
		code := d.Kind.String()
		out = append(out, protocol.Diagnostic{
			Range:    rangeOf(text, d.Span()),
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: code},
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Position conversion ---

func rangeOf(text string, span compiler.Span) protocol.Range {
	return protocol.Range{
		Start: positionAt(text, span.Start),
		End:   positionAt(text, span.End),
	}
}

// positionAt converts a byte offset into a zero-based LSP position whose
// character is counted in UTF-16 code units.
func positionAt(text string, offset int) protocol.Position {
	offset = max(0, min(offset, len(text)))
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	line := strings.Count(text[:lineStart], "\n")

	char := 0
	for _, r := range text[lineStart:offset] {
		char += utf16.RuneLen(r)
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)}
}

// offsetAt is the inverse of positionAt. Positions past the end of a line
// clamp to the line's end.
func offsetAt(text string, pos protocol.Position) int {
	lineStart := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(text[lineStart:], '\n')
		if i < 0 {
			return len(text)
		}
		lineStart += i + 1
	}

	lineEnd := len(text)
	if i := strings.IndexByte(text[lineStart:], '\n'); i >= 0 {
		lineEnd = lineStart + i
	}

	units := 0
	for i, r := range text[lineStart:lineEnd] {
		if units >= int(pos.Character) {
			return lineStart + i
		}
		units += utf16.RuneLen(r)
	}
	return lineEnd
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	col := offsetAt(text, pos)
	lineStart := strings.LastIndexByte(text[:col], '\n') + 1

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > lineStart {
		ch := rune(text[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	return text[start:col]
}

func boolPtr(b bool) *bool {
	return &b
}
