package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ritamzico/wdlast/internal/ast"
)

// ignoreVolatile drops the fields that are expected to differ between two
// otherwise-equal documents: Span (coordinate base / trailing-whitespace
// quirks are backend-specific), Source (tagged per call site), and Comments
// (holds an unexported map, and isn't the concern of these comparisons).
var ignoreVolatile = cmp.FilterPath(func(p cmp.Path) bool {
	sf, ok := p.Last().(cmp.StructField)
	if !ok {
		return false
	}
	switch sf.Name() {
	case "Span", "Source", "Comments":
		return true
	}
	return false
}, cmp.Ignore())

func parseBoth(t *testing.T, text string) (pegtree, treewalk *ast.Document) {
	t.Helper()
	pegtree, err := ParseText(text, ast.SourceUnknown(), WithBackend(BackendPegtree))
	if err != nil {
		t.Fatalf("pegtree backend: %v", err)
	}
	treewalk, err = ParseText(text, ast.SourceUnknown(), WithBackend(BackendTreewalk))
	if err != nil {
		t.Fatalf("treewalk backend: %v", err)
	}
	return pegtree, treewalk
}

func TestBackendEquivalence(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "minimal task",
			text: "version 1.1\ntask T { command <<< echo hi >>> }",
		},
		{
			name: "implicit namespace import",
			text: "version 1.1\nimport \"local.wdl\"\ntask T { command <<< echo hi >>> }",
		},
		{
			name: "explicit namespace and alias",
			text: "version 1.1\nimport \"https://example.com/remote.wdl\" as remote alias Baz as Blorf\ntask T { command <<< echo hi >>> }",
		},
		{
			name: "call no braces vs empty braces",
			text: `version 1.1
workflow W {
  call T
  call T as U {}
}
task T { command <<< echo hi >>> }`,
		},
		{
			name: "ternary of defined",
			text: `version 1.1
workflow W {
  input { File? ex }
  Array[File] x = if defined(ex) then select_all(select_first([ex]).a) else []
}`,
		},
		{
			name: "call inputs bound without the input keyword prefix",
			text: `version 1.1
workflow W {
  call T { x = 1 }
}
task T {
  input { Int x }
  command <<< echo hi >>>
}`,
		},
		{
			name: "sign-prefixed meta numbers",
			text: `version 1.1
task T {
  command <<< echo hi >>>
  meta {
    negInt: -1
    posFloat: +1.5
  }
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pegDoc, treeDoc := parseBoth(t, tt.text)
			if diff := cmp.Diff(pegDoc, treeDoc, ignoreVolatile); diff != "" {
				t.Errorf("backends disagree (-pegtree +treewalk):\n%s", diff)
			}
		})
	}
}

func TestScenarioMinimalTask(t *testing.T) {
	doc, err := ParseText("version 1.1\ntask T { command <<< echo hi >>> }", ast.SourceUnknown())
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if len(doc.Body) != 1 {
		t.Fatalf("want 1 document element, got %d", len(doc.Body))
	}
	task := doc.Body[0].Element.Task
	if task == nil {
		t.Fatal("want a Task document element")
	}
	if task.Name.Element != "T" {
		t.Errorf("task name = %q, want %q", task.Name.Element, "T")
	}
	if len(task.Body) != 1 {
		t.Fatalf("want 1 task body element, got %d", len(task.Body))
	}
	cmd := task.Body[0].Element.Command
	if cmd == nil {
		t.Fatal("want a Command task element")
	}
	if len(cmd.Parts) != 1 || cmd.Parts[0].Element.Content == nil {
		t.Fatalf("want a single Content part, got %#v", cmd.Parts)
	}
	if got := *cmd.Parts[0].Element.Content; got != " echo hi " {
		t.Errorf("command content = %q, want %q", got, " echo hi ")
	}
}

func TestScenarioImplicitNamespace(t *testing.T) {
	doc, err := ParseText("version 1.1\nimport \"local.wdl\"\ntask T { command <<< echo hi >>> }", ast.SourceUnknown())
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	imp := doc.Body[0].Element.Import
	if imp == nil {
		t.Fatal("want an Import document element")
	}
	if imp.Namespace.Explicit != nil {
		t.Fatal("want an implicit namespace, got an explicit one")
	}
	if imp.Namespace.Implicit == nil || *imp.Namespace.Implicit != "local" {
		t.Errorf("implicit namespace = %v, want \"local\"", imp.Namespace.Implicit)
	}
	if len(imp.Aliases) != 0 {
		t.Errorf("want no aliases, got %d", len(imp.Aliases))
	}
}

func TestScenarioExplicitNamespaceAndAlias(t *testing.T) {
	text := "version 1.1\nimport \"https://example.com/remote.wdl\" as remote alias Baz as Blorf\ntask T { command <<< echo hi >>> }"
	doc, err := ParseText(text, ast.SourceUnknown())
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	imp := doc.Body[0].Element.Import
	if imp == nil {
		t.Fatal("want an Import document element")
	}
	if imp.Namespace.Explicit == nil || imp.Namespace.Explicit.Element != "remote" {
		t.Errorf("explicit namespace = %v, want \"remote\"", imp.Namespace.Explicit)
	}
	if len(imp.Aliases) != 1 {
		t.Fatalf("want 1 alias, got %d", len(imp.Aliases))
	}
	alias := imp.Aliases[0].Element
	if alias.From.Element != "Baz" || alias.To.Element != "Blorf" {
		t.Errorf("alias = %+v, want {From:Baz To:Blorf}", alias)
	}
}

func TestScenarioNonEmptyArrayOfOptionalFiles(t *testing.T) {
	text := "version 1.1\nstruct S { Array[File?]+ a }"
	doc, err := ParseText(text, ast.SourceUnknown())
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	st := doc.Body[0].Element.Struct
	if st == nil {
		t.Fatal("want a Struct document element")
	}
	if len(st.Fields) != 1 {
		t.Fatalf("want 1 struct field, got %d", len(st.Fields))
	}
	typ := st.Fields[0].Element.Type.Element
	if typ.Array == nil {
		t.Fatal("want an Array type")
	}
	if !typ.Array.NonEmpty {
		t.Error("want NonEmpty = true")
	}
	item := typ.Array.Item.Element
	if item.Optional == nil {
		t.Fatal("want the array item type to be Optional")
	}
	inner := item.Optional.Element
	if inner.Primitive == nil || *inner.Primitive != ast.File {
		t.Errorf("optional inner type = %+v, want File", inner)
	}
}

func TestScenarioTernaryOfDefined(t *testing.T) {
	text := `version 1.1
workflow W {
  input { File? ex }
  Array[File] x = if defined(ex) then select_all(select_first([ex]).a) else []
}`
	doc, err := ParseText(text, ast.SourceUnknown())
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	wf := doc.Body[0].Element.Workflow
	if wf == nil {
		t.Fatal("want a Workflow document element")
	}
	var decl *ast.BoundDeclaration
	for _, el := range wf.Body {
		if d := el.Element.Declaration; d != nil && d.Name.Element == "x" {
			decl = d
		}
	}
	if decl == nil {
		t.Fatal("want a declaration of x")
	}
	ternary := decl.Expression.Element.Ternary
	if ternary == nil {
		t.Fatal("want a Ternary expression")
	}
	cond := ternary.Condition.Element
	if cond.Apply == nil || cond.Apply.Name.Element != "defined" {
		t.Errorf("condition = %+v, want Apply of defined", cond)
	}
	trueBranch := ternary.TrueBranch.Element
	if trueBranch.Apply == nil || trueBranch.Apply.Name.Element != "select_all" {
		t.Errorf("true branch = %+v, want Apply of select_all", trueBranch)
	}
	falseBranch := ternary.FalseBranch.Element
	if falseBranch.Array == nil || len(falseBranch.Array.Elements) != 0 {
		t.Errorf("false branch = %+v, want an empty Array", falseBranch)
	}
}

func TestScenarioCallInputsBlockDistinction(t *testing.T) {
	text := `version 1.1
workflow W {
  call T
  call T as U {}
}
task T { command <<< echo hi >>> }`
	doc, err := ParseText(text, ast.SourceUnknown())
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	var wf *ast.Workflow
	for _, el := range doc.Body {
		if el.Element.Workflow != nil {
			wf = el.Element.Workflow
		}
	}
	if wf == nil {
		t.Fatal("want a Workflow document element")
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

	bareCall := calls[0]
	if bareCall.HasInputBlock() {
		t.Error("call T: want no input block")
	}
	if bareCall.Inputs != nil {
		t.Error("call T: Inputs should be nil, not an empty slice")
	}

	aliasedCall := calls[1]
	if !aliasedCall.HasInputBlock() {
		t.Error("call T as U {}: want an (empty) input block")
	}
	if aliasedCall.Inputs == nil {
		t.Fatal("call T as U {}: Inputs should be a non-nil empty slice")
	}
	if len(*aliasedCall.Inputs) != 0 {
		t.Errorf("call T as U {}: want 0 inputs, got %d", len(*aliasedCall.Inputs))
	}
	if aliasedCall.Alias == nil || aliasedCall.Alias.Element != "U" {
		t.Errorf("call alias = %v, want \"U\"", aliasedCall.Alias)
	}
}

func TestValidationDocumentWithTwoWorkflowsRejected(t *testing.T) {
	text := "version 1.1\nworkflow A {}\nworkflow B {}"
	_, err := ParseText(text, ast.SourceUnknown())
	assertModelError(t, err, ast.ErrDocumentMultipleWorkflows)
}

func TestValidationDocumentWithOnlyImportsRejected(t *testing.T) {
	text := "version 1.1\nimport \"local.wdl\""
	_, err := ParseText(text, ast.SourceUnknown())
	assertModelError(t, err, ast.ErrDocumentIncomplete)
}

func TestValidationTaskWithoutCommandRejected(t *testing.T) {
	text := "version 1.1\ntask T { input { Int x } }"
	_, err := ParseText(text, ast.SourceUnknown())
	assertModelError(t, err, ast.ErrTaskMissingCommand)
}

func TestValidationTaskWithTwoInputsRejected(t *testing.T) {
	text := `version 1.1
task T {
  input { Int x }
  input { Int y }
  command <<< echo hi >>>
}`
	_, err := ParseText(text, ast.SourceUnknown())
	assertModelError(t, err, ast.ErrTaskRepeatedElement)
}

func assertModelError(t *testing.T, err error, want ast.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("want an error of kind %s, got nil", want)
	}
	var modelErr ast.Error
	var unwrapped error = err
	for unwrapped != nil {
		if me, ok := unwrapped.(ast.Error); ok {
			modelErr = me
			break
		}
		u, ok := unwrapped.(interface{ Unwrap() error })
		if !ok {
			break
		}
		unwrapped = u.Unwrap()
	}
	if modelErr.Kind != want {
		t.Fatalf("error kind = %s, want %s (err: %v)", modelErr.Kind, want, err)
	}
}

func TestParseFileWrapsIOErrors(t *testing.T) {
	_, err := ParseFile("/nonexistent/path/does-not-exist.wdl")
	if err == nil {
		t.Fatal("want an error for a nonexistent path")
	}
	if !strings.Contains(err.Error(), "does-not-exist.wdl") {
		t.Errorf("error = %q, want it to mention the path", err.Error())
	}
}

func TestBackendString(t *testing.T) {
	if got := BackendPegtree.String(); got != "pegtree" {
		t.Errorf("BackendPegtree.String() = %q, want %q", got, "pegtree")
	}
	if got := BackendTreewalk.String(); got != "treewalk" {
		t.Errorf("BackendTreewalk.String() = %q, want %q", got, "treewalk")
	}
}
