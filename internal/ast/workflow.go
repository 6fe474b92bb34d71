package ast

// QualifiedName is a dot-separated name path, e.g. a call target `ns.task`,
// kept as per-segment anchors rather than a flattened string so each
// segment retains its own span.
type QualifiedName struct {
	Parts []Anchor[string]
}

// CallInput is one `name` or `name = expression` entry of a call body.
// Expression is nil when the source named an input without binding it
// (`call T { input: x }`), per spec.md's open question on that form.
type CallInput struct {
	Name       Anchor[string]
	Expression *Anchor[Expression]
}

// Call is a `call target [as alias] [{ ... }]` workflow element.
//
// Inputs distinguishes three states: nil means the call site wrote no
// `{ ... }` block at all; a non-nil empty slice means an empty block
// `{ }` was written. These must stay distinguishable (spec.md §3/§8
// scenario 6), so Inputs is a slice pointer rather than a bare slice.
type Call struct {
	Target Anchor[QualifiedName]
	Alias  *Anchor[string]
	Inputs *[]Anchor[CallInput]
}

// HasInputBlock reports whether the call site wrote any `{ ... }` block,
// empty or not.
func (c *Call) HasInputBlock() bool {
	return c.Inputs != nil
}

// InputList returns the call's inputs, or nil if no block was written.
func (c *Call) InputList() []Anchor[CallInput] {
	if c.Inputs == nil {
		return nil
	}
	return *c.Inputs
}

// Scatter is a `scatter (name in expression) { ... }` workflow element.
type Scatter struct {
	Name       Anchor[string]
	Expression Anchor[Expression]
	Body       []Anchor[WorkflowBodyElement]
}

// Conditional is an `if (expression) { ... }` workflow element.
type Conditional struct {
	Expression Anchor[Expression]
	Body       []Anchor[WorkflowBodyElement]
}

// WorkflowBodyElement is an element nested inside a Scatter or Conditional
// body: only declarations, calls, scatters, and conditionals are legal
// there (never input/output/meta), enforced by this narrower sum type.
type WorkflowBodyElement struct {
	Declaration *BoundDeclaration
	Call        *Call
	Scatter     *Scatter
	Conditional *Conditional
}

// WorkflowElement is one element of a Workflow body.
type WorkflowElement struct {
	Input         *Input
	Output        *Output
	Declaration   *BoundDeclaration
	Call          *Call
	Scatter       *Scatter
	Conditional   *Conditional
	Meta          *Meta
	ParameterMeta *Meta
}

// Workflow is a `workflow name { ... }` definition.
type Workflow struct {
	Name Anchor[string]
	Body []Anchor[WorkflowElement]
}
