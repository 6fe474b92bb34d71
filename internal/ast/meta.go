package ast

// MetaStringPart is one constituent of a MetaString: unlike a full
// StringLiteral, meta strings never carry interpolated placeholders.
type MetaStringPart struct {
	Content *string
	Escape  *string
}

// MetaString is a string literal appearing inside a Meta or ParameterMeta
// section.
type MetaString struct {
	Parts []Anchor[MetaStringPart]
}

// MetaArray is a `[...]` value inside a Meta section.
type MetaArray struct {
	Elements []Anchor[MetaValue]
}

// MetaObjectField is one `name: value` field of a MetaObject.
type MetaObjectField struct {
	Name  Anchor[string]
	Value Anchor[MetaValue]
}

// MetaObject is a `{...}` value inside a Meta section.
type MetaObject struct {
	Fields []Anchor[MetaObjectField]
}

// MetaValue is the value type restricted to Meta/ParameterMeta sections.
// Exactly one variant field is set. Null is carried explicitly (see
// spec.md's open question on optional booleans/null across WDL minor
// versions: this module always accepts and carries it).
type MetaValue struct {
	Null    bool
	Boolean *bool
	Int     *Integer
	Float   *Float
	String  *MetaString
	Array   *MetaArray
	Object  *MetaObject
}

// MetaAttribute is one `name: value` entry of a Meta section.
type MetaAttribute struct {
	Name  Anchor[string]
	Value Anchor[MetaValue]
}

// Meta is a `meta { ... }` or `parameter_meta { ... }` section; both
// sections share this shape (see ast.TaskElement.Meta/ParameterMeta).
type Meta struct {
	Attributes []Anchor[MetaAttribute]
}
