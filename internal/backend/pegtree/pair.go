// Package pegtree implements concrete-syntax backend A: a hand-written
// PEG-style recursive-descent parser producing a homogeneous tree of named
// rule nodes (Pair), mirroring the shape a generated pest parser would
// hand back to calling code. Lowering that shape into the shared AST is a
// separate pass (see lower.go), the same two-step structure
// original_source/src/parsers/pest uses.
package pegtree

import "github.com/ritamzico/wdlast/internal/ast"

// Pair is one node of backend A's concrete syntax tree: a named
// production (Rule) spanning a range of source, with either a literal
// token Value (leaf pairs) or nested Children (interior pairs), never
// both.
type Pair struct {
	Rule     string
	Span     ast.Span
	Value    string
	Children []*Pair
}

func leaf(rule, value string, span ast.Span) *Pair {
	return &Pair{Rule: rule, Value: value, Span: span}
}

func node(rule string, span ast.Span, children ...*Pair) *Pair {
	return &Pair{Rule: rule, Span: span, Children: children}
}

// innerSpan recomputes a node's span as the union of its first and last
// child's span rather than the span the grammar captured for the node
// itself. backend A's unary/binary/access productions capture trailing
// whitespace before the next token is known, so their naive span always
// overshoots; this repairs it to the tight span of the actual operand
// tokens, per the same fix original_source/src/parsers/pest applies.
func innerSpan(children []*Pair) ast.Span {
	anchors := make([]ast.Anchor[int], len(children))
	for i, c := range children {
		anchors[i] = ast.NewAnchor(i, c.Span)
	}
	span, ok := ast.InnerSpan(anchors)
	if !ok {
		return ast.Span{}
	}
	return span
}
