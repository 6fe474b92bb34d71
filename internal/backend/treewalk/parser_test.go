package treewalk

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
	}
}

func TestArrayLiteralWithTrailingComma(t *testing.T) {
	text := "version 1.1\nworkflow W { Array[Int] x = [1, 2, 3,] }"
	doc := parseAndLower(t, text)
	expr := findDeclaration(t, doc, "x").Expression.Element
	if expr.Array == nil {
		t.Fatalf("want an Array expression, got %+v", expr)
	}
	if len(expr.Array.Elements) != 3 {
		t.Errorf("want 3 elements, got %d", len(expr.Array.Elements))
	}
}

func TestInputDeclarationsWithoutSeparators(t *testing.T) {
	// WDL input sections also permit declarations with no separating comma;
	// parseBlock's NextDelim state treats "no delimiter, not at close" as
	// another item rather than an error.
	text := `version 1.1
task T {
  input {
    Int x
    Int y
  }
  command <<< echo hi >>>
}`
	doc := parseAndLower(t, text)
	task := doc.Body[0].Element.Task
	var input *ast.Input
	for _, el := range task.Body {
		if el.Element.Input != nil {
			input = el.Element.Input
		}
	}
	if input == nil {
		t.Fatal("want an Input task element")
	}
	if len(input.Declarations) != 2 {
		t.Fatalf("want 2 declarations, got %d", len(input.Declarations))
	}
}

func TestCallInputNoBracesVsEmptyBraces(t *testing.T) {
	text := `version 1.1
workflow W {
  call T
  call T as U {}
}
task T { command <<< echo hi >>> }`
	doc := parseAndLower(t, text)
	var wf *ast.Workflow
	for _, el := range doc.Body {
		if el.Element.Workflow != nil {
			wf = el.Element.Workflow
		}
	}
	var calls []*ast.Call
	for _, el := range wf.Body {
		if c := el.Element.Call; c != nil {
			calls = append(calls, c)
		}
	}
	if len(calls) != 2 {
		t.Fatalf("want 2 calls, got %d", len(calls))
	}
	if calls[0].Inputs != nil {
		t.Error("call T: want Inputs == nil")
	}
	if calls[1].Inputs == nil || len(*calls[1].Inputs) != 0 {
		t.Errorf("call T as U {}: want a non-nil empty Inputs slice, got %v", calls[1].Inputs)
	}
}

func TestCallInputUnboundForm(t *testing.T) {
	// "call T { input: x }" names an input without binding it.
	text := `version 1.1
workflow W {
  call T { input: x }
}
task T {
  input { Int x }
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
	if call == nil || call.Inputs == nil || len(*call.Inputs) != 1 {
		t.Fatalf("want 1 call input, got %+v", call)
	}
	input := (*call.Inputs)[0].Element
	if input.Name.Element != "x" {
		t.Errorf("input name = %q, want x", input.Name.Element)
	}
	if input.Expression != nil {
		t.Errorf("want a nil Expression for an unbound call input, got %+v", input.Expression)
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

func TestScatterBodyRestrictedToNestedElements(t *testing.T) {
	text := `version 1.1
workflow W {
  scatter (i in [1, 2, 3]) {
    Int doubled = i * 2
    call T
  }
}
task T { command <<< echo hi >>> }`
	doc := parseAndLower(t, text)
	var wf *ast.Workflow
	for _, el := range doc.Body {
		if el.Element.Workflow != nil {
			wf = el.Element.Workflow
		}
	}
	var scatter *ast.Scatter
	for _, el := range wf.Body {
		if s := el.Element.Scatter; s != nil {
			scatter = s
		}
	}
	if scatter == nil {
		t.Fatal("want a Scatter workflow element")
	}
	if scatter.Name.Element != "i" {
		t.Errorf("scatter variable = %q, want i", scatter.Name.Element)
	}
	if len(scatter.Body) != 2 {
		t.Fatalf("want 2 nested body elements, got %d", len(scatter.Body))
	}
	if scatter.Body[0].Element.Declaration == nil {
		t.Error("want the first nested element to be a Declaration")
	}
	if scatter.Body[1].Element.Call == nil {
		t.Error("want the second nested element to be a Call")
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
