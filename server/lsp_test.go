package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/ul/compiler"
	"github.com/chazu/ul/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Position conversion
// ---------------------------------------------------------------------------

func TestPositionAt(t *testing.T) {
	tests := []struct {
		text   string
		offset int
		line   protocol.UInteger
		char   protocol.UInteger
	}{
		{"1 + 2", 0, 0, 0},
		{"1 + 2", 4, 0, 4},
		{"1 + 2", 5, 0, 5},
		{"1 +\n  2", 6, 1, 2},
		{"1 +\r\n2", 5, 1, 0},
		// é is two bytes and one UTF-16 unit; 𝔸 is four bytes and two units.
		{"\"é\" + 1", 5, 0, 4},
		{"\"𝔸\" + 1", 7, 0, 5},
		{"1 + 2", 99, 0, 5},
		{"1 + 2", -3, 0, 0},
	}

	for _, tt := range tests {
		pos := positionAt(tt.text, tt.offset)
		if pos.Line != tt.line || pos.Character != tt.char {
			t.Errorf("positionAt(%q, %d) = %d:%d, want %d:%d",
				tt.text, tt.offset, pos.Line, pos.Character, tt.line, tt.char)
		}
	}
}

func TestOffsetAt(t *testing.T) {
	tests := []struct {
		text string
		line protocol.UInteger
		char protocol.UInteger
		want int
	}{
		{"1 + 2", 0, 0, 0},
		{"1 + 2", 0, 4, 4},
		{"1 +\n  2", 1, 2, 6},
		{"1 +\n  2", 0, 50, 3}, // clamps to the end of the line
		{"1 +\n  2", 7, 0, 7},  // past the last line
		{"\"𝔸\" + 1", 0, 5, 7},
	}

	for _, tt := range tests {
		got := offsetAt(tt.text, protocol.Position{Line: tt.line, Character: tt.char})
		if got != tt.want {
			t.Errorf("offsetAt(%q, %d:%d) = %d, want %d", tt.text, tt.line, tt.char, got, tt.want)
		}
	}
}

func TestPositionRoundTrip(t *testing.T) {
	text := "(1.5 +\n 2.0) * \"ü\"\n// done"
	for offset := 0; offset <= len(text); offset++ {
		// Skip offsets inside a multibyte rune.
		if offset < len(text) && text[offset]&0xC0 == 0x80 {
			continue
		}
		if got := offsetAt(text, positionAt(text, offset)); got != offset {
			t.Errorf("offsetAt(positionAt(%d)) = %d", offset, got)
		}
	}
}

func TestRangeOf(t *testing.T) {
	rng := rangeOf("true &&\n 1", compiler.Span{Start: 0, End: 10})
	if rng.Start.Line != 0 || rng.Start.Character != 0 || rng.End.Line != 1 || rng.End.Character != 2 {
		t.Errorf("rangeOf = %+v, want 0:0..1:2", rng)
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line protocol.UInteger
		char protocol.UInteger
		want string
	}{
		{"1 == tr", 0, 7, "tr"},
		{"fal", 0, 3, "fal"},
		{"", 0, 0, ""},
		{"hello", 0, 0, ""},
		{"1 +\nfa", 1, 2, "fa"},
		{"1 +\nfa", 1, 0, ""},
		{"(tr", 0, 3, "tr"},
		{"x_1", 0, 3, "x_1"},
	}

	for _, tt := range tests {
		got := extractPrefix(tt.text, protocol.Position{Line: tt.line, Character: tt.char})
		if got != tt.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tt.text, tt.line, tt.char, got, tt.want)
		}
	}
}

func TestComplete(t *testing.T) {
	items := complete("t")
	if len(items) != 1 || items[0].Label != "true" {
		t.Fatalf("complete(t) = %v, want [true]", items)
	}
	if items[0].Kind == nil || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Error("true completion should have Kind=Keyword")
	}

	if items := complete("fa"); len(items) != 1 || items[0].Label != "false" {
		t.Errorf("complete(fa) = %v, want [false]", items)
	}
	if items := complete("x"); len(items) != 0 {
		t.Errorf("complete(x) = %v, want none", items)
	}
	if items := complete(""); items != nil {
		t.Errorf("complete(\"\") = %v, want nil", items)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestCheckSuccess(t *testing.T) {
	res := newTestLSP(compiler.Options{}).check("1 + 2")
	if !res.ran {
		t.Fatalf("check did not run: %v", res.diags)
	}
	if !res.value.Equal(bytecode.IntValue(3)) {
		t.Errorf("value = %s, want 3 (int)", res.value.Describe())
	}
	if len(res.diags) != 0 {
		t.Errorf("diags = %v, want none", res.diags)
	}
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		text  string
		kinds []compiler.ErrorKind
		span  compiler.Span // span of the last diagnostic
	}{
		{"2 + 3.5", []compiler.ErrorKind{compiler.TypeError}, compiler.Span{Start: 0, End: 7}},
		{"1 + 4 / 0", []compiler.ErrorKind{compiler.RuntimeFault}, compiler.Span{Start: 4, End: 9}},
		{"1 $ 2", []compiler.ErrorKind{compiler.LexError, compiler.ParseError}, compiler.Span{Start: 4, End: 5}},
		{"1 + 2 $", []compiler.ErrorKind{compiler.LexError}, compiler.Span{Start: 6, End: 7}},
		{"(1 + 2", []compiler.ErrorKind{compiler.ParseError}, compiler.Span{Start: 0, End: 1}},
	}

	for _, tt := range tests {
		res := newTestLSP(compiler.Options{}).check(tt.text)
		if len(res.diags) != len(tt.kinds) {
			t.Errorf("check(%q) = %v, want %d diagnostics", tt.text, res.diags, len(tt.kinds))
			continue
		}
		for i, d := range res.diags {
			if d.Kind != tt.kinds[i] {
				t.Errorf("check(%q) diag %d kind = %v, want %v", tt.text, i, d.Kind, tt.kinds[i])
			}
		}
		if got := res.diags[len(res.diags)-1].Span(); got != tt.span {
			t.Errorf("check(%q) span = %v, want %v", tt.text, got, tt.span)
		}
	}
}

func TestCheckHonorsLimits(t *testing.T) {
	res := newTestLSP(compiler.Options{MaxConstants: 1}).check("1 + 2")
	if res.ran || len(res.diags) != 1 || res.diags[0].Kind != compiler.CapacityError {
		t.Errorf("check with one constant slot = %+v, want a capacity error", res)
	}
}

func TestToProtocol(t *testing.T) {
	text := "true &&\n 1 $"
	res := newTestLSP(compiler.Options{}).check(text)
	diags := toProtocol(text, res.diags)
	if len(diags) != 2 {
		t.Fatalf("toProtocol = %v, want 2 diagnostics", diags)
	}

	warn, typeErr := diags[0], diags[1]
	if warn.Severity == nil || *warn.Severity != protocol.DiagnosticSeverityWarning {
		t.Error("lex diagnostic should be a warning")
	}
	if warn.Range.Start.Line != 1 || warn.Range.Start.Character != 3 {
		t.Errorf("warning range = %+v, want start 1:3", warn.Range)
	}

	if typeErr.Severity == nil || *typeErr.Severity != protocol.DiagnosticSeverityError {
		t.Error("type diagnostic should be an error")
	}
	if typeErr.Range.Start.Line != 0 || typeErr.Range.Start.Character != 0 ||
		typeErr.Range.End.Line != 1 || typeErr.Range.End.Character != 2 {
		t.Errorf("type error range = %+v, want 0:0..1:2", typeErr.Range)
	}
	if typeErr.Code == nil || typeErr.Code.Value != "type error" {
		t.Errorf("type error code = %v, want \"type error\"", typeErr.Code)
	}
	if typeErr.Source == nil || *typeErr.Source != lspName {
		t.Errorf("source = %v, want %s", typeErr.Source, lspName)
	}
}

func TestToProtocolEmpty(t *testing.T) {
	diags := toProtocol("1", nil)
	if diags == nil || len(diags) != 0 {
		t.Errorf("toProtocol(nil) = %#v, want an empty non-nil slice", diags)
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover kind = %v, want markdown", mc.Kind)
	}
	return mc.Value
}

func TestHoverSubexpression(t *testing.T) {
	lsp := newTestLSP(compiler.Options{})
	h := lsp.hover("1 + 2 * 3", protocol.Position{Line: 0, Character: 6})
	if h == nil {
		t.Fatal("hover on '*' should return a result")
	}
	text := hoverText(t, h)
	for _, want := range []string{"`2 * 3` : **int**", "Result: `7 (int)`", "Chunk `", "9 bytes, 3 constants"} {
		if !strings.Contains(text, want) {
			t.Errorf("hover missing %q:\n%s", want, text)
		}
	}
	if h.Range == nil || h.Range.Start.Character != 4 || h.Range.End.Character != 9 {
		t.Errorf("hover range = %+v, want 0:4..0:9", h.Range)
	}
}

func TestHoverLiteral(t *testing.T) {
	lsp := newTestLSP(compiler.Options{})
	h := lsp.hover("1.5 < 2.0", protocol.Position{Line: 0, Character: 1})
	if h == nil {
		t.Fatal("hover on a literal should return a result")
	}
	text := hoverText(t, h)
	if !strings.Contains(text, "`1.5` : **float**") || !strings.Contains(text, "Result: `true (bool)`") {
		t.Errorf("unexpected hover:\n%s", text)
	}
}

func TestHoverRuntimeFault(t *testing.T) {
	lsp := newTestLSP(compiler.Options{})
	h := lsp.hover("4 / 0", protocol.Position{Line: 0, Character: 0})
	if h == nil {
		t.Fatal("hover should describe a program that faults")
	}
	text := hoverText(t, h)
	if strings.Contains(text, "Result:") {
		t.Errorf("faulting program should have no result:\n%s", text)
	}
	if !strings.Contains(text, "Chunk `") {
		t.Errorf("hover missing chunk summary:\n%s", text)
	}
}

func TestHoverNothing(t *testing.T) {
	lsp := newTestLSP(compiler.Options{})
	tests := []struct {
		text string
		char protocol.UInteger
	}{
		{"2 + 3.5", 0},
		{"(1 + ", 1},
		{"1", 5},
		{"", 0},
	}
	for _, tt := range tests {
		if h := lsp.hover(tt.text, protocol.Position{Line: 0, Character: tt.char}); h != nil {
			t.Errorf("hover(%q, %d) = %v, want nil", tt.text, tt.char, h)
		}
	}
}

func TestInnermostNode(t *testing.T) {
	source := []byte("-(1 + 2)")
	tree, _, err := compiler.Parse(source)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		offset int
		want   compiler.NodeKind
	}{
		{0, compiler.NodeNegate},
		{2, compiler.NodeInt},
		{4, compiler.NodeAdd},
		{6, compiler.NodeInt},
		{1, compiler.NodeNegate},
	}
	for _, tt := range tests {
		id := innermostNode(tree, tt.offset)
		if id == compiler.NoNode {
			t.Errorf("innermostNode(%d) = NoNode, want %v", tt.offset, tt.want)
			continue
		}
		if got := tree.Node(id).Kind; got != tt.want {
			t.Errorf("innermostNode(%d) = %v, want %v", tt.offset, got, tt.want)
		}
	}
	// The closing paren is outside every node's span.
	if id := innermostNode(tree, 7); id != compiler.NoNode {
		t.Errorf("innermostNode(7) = %d, want NoNode", id)
	}
}

// ---------------------------------------------------------------------------
// Document store
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := newTestLSP(compiler.Options{})

	// Simulate didOpen
	lsp.mu.Lock()
	lsp.docs["file:///test.ul"] = "1 + 2"
	lsp.mu.Unlock()

	text, ok := lsp.document("file:///test.ul")
	if !ok {
		t.Error("document should be stored after open")
	}
	if text != "1 + 2" {
		t.Errorf("document text = %q, want %q", text, "1 + 2")
	}

	// Simulate didClose
	lsp.mu.Lock()
	delete(lsp.docs, "file:///test.ul")
	lsp.mu.Unlock()

	if _, ok := lsp.document("file:///test.ul"); ok {
		t.Error("document should be removed after close")
	}
}

func TestNewLSP(t *testing.T) {
	lsp := NewLSP(compiler.Options{StackDepth: 4})
	defer lsp.worker.Stop()

	if lsp.server == nil {
		t.Fatal("NewLSP should create a glsp server")
	}
	if lsp.handler.TextDocumentHover == nil || lsp.handler.TextDocumentCompletion == nil {
		t.Error("hover and completion handlers should be registered")
	}

	out, err := lsp.worker.Do(func(vm *bytecode.VM) any { return vm.StackCapacity() })
	if err != nil {
		t.Fatal(err)
	}
	if out.(int) != 4 {
		t.Errorf("worker VM stack capacity = %v, want 4", out)
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
}
