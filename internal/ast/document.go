package ast

import (
	"strings"
)

// VersionIdentifier is the WDL language version a document declares.
type VersionIdentifier int

const (
	V1_0 VersionIdentifier = iota
	V1_1
)

// ParseVersionIdentifier accepts only "1.0" and "1.1"; anything else
// reports ErrVersion.
func ParseVersionIdentifier(lexeme string) (VersionIdentifier, error) {
	switch lexeme {
	case "1.0":
		return V1_0, nil
	case "1.1":
		return V1_1, nil
	default:
		return 0, InvalidVersion(lexeme)
	}
}

func (v VersionIdentifier) String() string {
	if v == V1_1 {
		return "1.1"
	}
	return "1.0"
}

// Version is a document's `version 1.x` declaration.
type Version struct {
	Identifier Anchor[VersionIdentifier]
}

// Namespace identifies an imported document, either explicitly aliased
// (`import "..." as ns`) or implicitly derived from its URI.
type Namespace struct {
	Explicit *Anchor[string]
	Implicit *string
}

// NamespaceFromURI derives an implicit namespace from an import URI: the
// final '/'-delimited segment with any ".wdl" suffix stripped. If there is
// no '/' in the URI, the whole string is used (again stripping ".wdl"). If
// the resulting name is empty, ok is false.
func NamespaceFromURI(uri string) (ns Namespace, ok bool) {
	s := uri
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ".wdl")
	if s == "" {
		return Namespace{}, false
	}
	return Namespace{Implicit: &s}, true
}

// Alias is one `alias From as To` entry of an import.
type Alias struct {
	From Anchor[string]
	To   Anchor[string]
}

// Import is an `import "uri" [as namespace] [alias ... as ...]*` element.
type Import struct {
	URI       Anchor[string]
	Namespace Namespace
	Aliases   []Anchor[Alias]
}

// Struct is a `struct Name { ... }` definition; its fields are unbound
// declarations (a struct field has no initializer).
type Struct struct {
	Name   Anchor[string]
	Fields []Anchor[UnboundDeclaration]
}

// DocumentElement is one top-level element of a Document body.
type DocumentElement struct {
	Import   *Import
	Struct   *Struct
	Task     *Task
	Workflow *Workflow
}

// Document is a fully parsed, validated WDL source file.
type Document struct {
	Source   DocumentSource
	Version  Anchor[Version]
	Body     []Anchor[DocumentElement]
	Comments *Comments
}

// ElementIter calls fn for every top-level element in source order.
func (d *Document) ElementIter(fn func(*DocumentElement)) {
	for i := range d.Body {
		fn(&d.Body[i].Element)
	}
}

// GetPrimaryElement returns the document's Workflow if it has one, else its
// sole Task if it has exactly one, else nil.
func (d *Document) GetPrimaryElement() *DocumentElement {
	var tasks []*DocumentElement
	for i := range d.Body {
		el := &d.Body[i].Element
		if el.Workflow != nil {
			return el
		}
		if el.Task != nil {
			tasks = append(tasks, el)
		}
	}
	if len(tasks) == 1 {
		return tasks[0]
	}
	return nil
}
