// Package treewalk implements concrete-syntax backend B: an incremental,
// field-labeled tree parser in the style an incremental tree-sitter-based
// parser would hand back to calling code — every interior node carries
// the grammar field name its parent assigned it (e.g. "name", "body",
// "target"), not just a bare child-index position, which is how
// original_source/src/parsers/tree_sitter's node walker disambiguates
// children instead of relying on position alone.
//
// Lowering this shape into the shared AST is a separate pass (lower.go),
// mirroring backend A's two-step structure even though the concrete tree
// itself looks nothing alike.
package treewalk

import "github.com/ritamzico/wdlast/internal/ast"

// Node is one node of backend B's concrete syntax tree.
type Node struct {
	Kind     string
	Field    string
	Span     ast.Span
	Value    string
	Children []*Node
}

// Child returns the first child with the given field name, or nil.
func (n *Node) Child(field string) *Node {
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// Fields returns every child with the given field name, in order.
func (n *Node) Fields(field string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

func leaf(kind, field, value string, span ast.Span) *Node {
	return &Node{Kind: kind, Field: field, Value: value, Span: span}
}

func branch(kind, field string, span ast.Span, children ...*Node) *Node {
	return &Node{Kind: kind, Field: field, Span: span, Children: children}
}

// innerSpan mirrors pegtree's trailing-whitespace repair: it recomputes a
// node's span as the union of its first and last child's span rather
// than the span captured while the production was still consuming
// trailing whitespace.
func innerSpan(children []*Node) ast.Span {
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
