package pegtree

import (
	"testing"

	"github.com/ritamzico/wdlast/internal/ast"
)

func parseAndLower(t *testing.T, text string) *ast.Document {
	t.Helper()
	root, comments, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	doc, err := Lower(root, comments, ast.SourceUnknown())
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	return doc
}

func TestIntegerLiteralRadixRoundTrip(t *testing.T) {
	tests := []struct {
		lexeme string
		kind   ast.IntegerKind
	}{
		{"42", ast.IntDecimal},
		{"0x2a", ast.IntHex},
		{"052", ast.IntOctal},
	}
	for _, tt := range tests {
		text := "version 1.1\nworkflow W { Int x = " + tt.lexeme + " }"
		doc := parseAndLower(t, text)
		expr := findDeclaration(t, doc, "x").Expression.Element
		if expr.Int == nil {
			t.Fatalf("%s: want an Int expression, got %+v", tt.lexeme, expr)
		}
		if expr.Int.Kind != tt.kind {
			t.Errorf("%s: kind = %v, want %v", tt.lexeme, expr.Int.Kind, tt.kind)
		}
		if got := expr.Int.String(); got != tt.lexeme {
			t.Errorf("%s: round-trip String() = %q", tt.lexeme, got)
		}
	}
}

func TestFloatLiteralKindRoundTrip(t *testing.T) {
	text := "version 1.1\nworkflow W { Float x = 3.5\nFloat y = 1.5e3 }"
	doc := parseAndLower(t, text)

	x := findDeclaration(t, doc, "x").Expression.Element
	if x.Float == nil || x.Float.Kind != ast.FloatDecimal {
		t.Errorf("x = %+v, want FloatDecimal", x)
	}

	y := findDeclaration(t, doc, "y").Expression.Element
	if y.Float == nil || y.Float.Kind != ast.FloatScientific {
		t.Errorf("y = %+v, want FloatScientific", y)
	}
}

func TestBinaryOperatorRoundTrip(t *testing.T) {
	ops := []string{"+", "-", "*", "/", "%", ">", "<", ">=", "<=", "==", "!=", "&&", "||"}
	for _, op := range ops {
		text := "version 1.1\nworkflow W { Boolean x = a " + op + " b }"
		doc := parseAndLower(t, text)
		expr := findDeclaration(t, doc, "x").Expression.Element
		if expr.Binary == nil {
			t.Fatalf("%s: want a Binary expression, got %+v", op, expr)
		}
		if got := expr.Binary.Operator.String(); got != op {
			t.Errorf("%s: operator round-trip = %q", op, got)
		}
		if expr.Binary.Left == nil || expr.Binary.Right == nil {
			t.Fatalf("%s: binary expression must have exactly two operands", op)
		}
	}
}

func TestBinaryExpressionOperandSpanUnion(t *testing.T) {
	text := "version 1.1\nworkflow W { Boolean x = a + b }"
	doc := parseAndLower(t, text)
	expr := findDeclaration(t, doc, "x").Expression
	bin := expr.Element.Binary
	if bin == nil {
		t.Fatal("want a Binary expression")
	}
	want := ast.Union(bin.Left.Span, bin.Right.Span)
	if expr.Span != want {
		t.Errorf("binary span = %s, want union of operand spans %s", expr.Span, want)
	}
}

func TestSpanInvariantsHoldThroughoutDocument(t *testing.T) {
	text := `version 1.1
# leading comment
import "local.wdl"
struct S { Int a }
task T {
  input { Int x = 1 }
  command <<< echo ~{x} >>>
  runtime { docker: "ubuntu" }
}
workflow W {
  call T
  scatter (i in [1, 2, 3]) {
    call T as U
  }
}`
	doc := parseAndLower(t, text)
	walkAnchorSpans(t, doc)
}

// walkAnchorSpans checks that the version anchor and every top-level body
// element anchor have a well-formed span (start offset before end offset).
// Nested anchors are not visited.
func walkAnchorSpans(t *testing.T, doc *ast.Document) {
	t.Helper()
	if doc.Version.Span.Start.Offset >= doc.Version.Span.End.Offset {
		t.Errorf("version span not well-formed: %s", doc.Version.Span)
	}
	for _, el := range doc.Body {
		if el.Span.Start.Offset >= el.Span.End.Offset {
			t.Errorf("document element span not well-formed: %s", el.Span)
		}
	}
}

func TestCommentCollection(t *testing.T) {
	text := `version 1.1
# first comment
task T {
  # second comment
  command <<< echo hi >>>
}`
	doc := parseAndLower(t, text)
	if got := doc.Comments.Len(); got != 2 {
		t.Fatalf("want 2 comments, got %d", got)
	}
	values := doc.Comments.Values()
	if len(values) != 2 || values[0].Span.Start.Line >= values[1].Span.Start.Line {
		t.Errorf("want comments in ascending line order, got %+v", values)
	}
}

func TestCommentRepeatedLineRejected(t *testing.T) {
	// Two comment tokens cannot land on the same line in valid WDL source;
	// this exercises the Comments.TryInsert failure path directly, since
	// the grammar itself cannot produce two Comment tokens on one line.
	c := ast.NewComments()
	line := 3
	if err := c.TryInsert(line, ast.NewAnchor("a", ast.Span{Start: ast.NewPosition(line, 0, 0), End: ast.NewPosition(line, 1, 1)})); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := c.TryInsert(line, ast.NewAnchor("b", ast.Span{Start: ast.NewPosition(line, 0, 0), End: ast.NewPosition(line, 1, 1)}))
	if err == nil {
		t.Fatal("want an error inserting a second comment on the same line")
	}
	modelErr, ok := err.(ast.Error)
	if !ok || modelErr.Kind != ast.ErrCommentRepeatedLine {
		t.Fatalf("err = %v, want ErrCommentRepeatedLine", err)
	}
}

func TestCallInputsWithoutInputKeywordPrefix(t *testing.T) {
	// The "input:" keyword is optional; a call body may bind inputs
	// directly ("{ x = 1 }") with no leading keyword at all.
	text := `version 1.1
workflow W {
  call T { x = 1, y = 2 }
}
task T {
  input { Int x
          Int y }
  command <<< echo hi >>>
}`
	doc := parseAndLower(t, text)
	var wf *ast.Workflow
	for _, el := range doc.Body {
		if el.Element.Workflow != nil {
			wf = el.Element.Workflow
		}
	}
	var call *ast.Call
	for _, el := range wf.Body {
		if c := el.Element.Call; c != nil {
			call = c
		}
	}
	if call == nil || call.Inputs == nil {
		t.Fatalf("want a call with an input block, got %+v", call)
	}
	if len(*call.Inputs) != 2 {
		t.Fatalf("want 2 call inputs, got %d", len(*call.Inputs))
	}
	first := (*call.Inputs)[0].Element
	if first.Name.Element != "x" || first.Expression == nil {
		t.Errorf("first input = %+v, want name x with a bound expression", first)
	}
}

func TestMetaValueSignedNumbers(t *testing.T) {
	text := `version 1.1
task T {
  command <<< echo hi >>>
  meta {
    negInt: -1
    posInt: +1
    negFloat: -1.5
  }
}`
	doc := parseAndLower(t, text)
	task := doc.Body[0].Element.Task
	var meta *ast.Meta
	for _, el := range task.Body {
		if el.Element.Meta != nil {
			meta = el.Element.Meta
		}
	}
	if meta == nil {
		t.Fatal("want a Meta task element")
	}
	values := make(map[string]ast.MetaValue)
	for _, attr := range meta.Attributes {
		values[attr.Element.Name.Element] = attr.Element.Value.Element
	}

	negInt := values["negInt"]
	if negInt.Int == nil || negInt.Int.Value != -1 {
		t.Errorf("negInt = %+v, want Int(-1)", negInt)
	}
	posInt := values["posInt"]
	if posInt.Int == nil || posInt.Int.Value != 1 {
		t.Errorf("posInt = %+v, want Int(1)", posInt)
	}
	negFloat := values["negFloat"]
	if negFloat.Float == nil || negFloat.Float.Value != -1.5 {
		t.Errorf("negFloat = %+v, want Float(-1.5)", negFloat)
	}
}

func findDeclaration(t *testing.T, doc *ast.Document, name string) *ast.BoundDeclaration {
	t.Helper()
	for _, el := range doc.Body {
		wf := el.Element.Workflow
		if wf == nil {
			continue
		}
		for _, bodyEl := range wf.Body {
			if d := bodyEl.Element.Declaration; d != nil && d.Name.Element == name {
				return d
			}
		}
	}
	t.Fatalf("no declaration named %q found", name)
	return nil
}
