package ast

// UnboundDeclaration is `Type name` with no initializer — legal only in an
// Input section or a Struct field list.
type UnboundDeclaration struct {
	Type Anchor[Type]
	Name Anchor[string]
}

// BoundDeclaration is `Type name = expression`.
type BoundDeclaration struct {
	Type       Anchor[Type]
	Name       Anchor[string]
	Expression Anchor[Expression]
}

// InputDeclaration is either a BoundDeclaration or an UnboundDeclaration;
// exactly one field is set.
type InputDeclaration struct {
	Bound   *BoundDeclaration
	Unbound *UnboundDeclaration
}
