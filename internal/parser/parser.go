// Package parser is the facade over the two concrete-syntax backends: it
// picks a backend, runs it, lowers the result into internal/ast, and wraps
// any failure with the document's source for diagnostics. Most callers
// never need to know pegtree and treewalk exist.
package parser

import (
	"fmt"
	"os"

	"github.com/ritamzico/wdlast/internal/ast"
	"github.com/ritamzico/wdlast/internal/backend/pegtree"
	"github.com/ritamzico/wdlast/internal/backend/treewalk"
)

// Backend selects which concrete-syntax parser produces the tree that gets
// lowered into internal/ast. Both implement the full grammar; they exist
// side by side to exercise two different parse-tree shapes (a homogeneous
// named-rule tree vs. a field-labeled incremental-style tree) over the same
// language, not because one supersedes the other.
type Backend int

const (
	// BackendPegtree drives the pest-style, one-function-per-rule parser.
	BackendPegtree Backend = iota
	// BackendTreewalk drives the field-labeled, tree-sitter-style parser.
	BackendTreewalk
)

func (b Backend) String() string {
	switch b {
	case BackendTreewalk:
		return "treewalk"
	default:
		return "pegtree"
	}
}

// Option configures ParseText/ParseFile.
type Option func(*config)

type config struct {
	backend Backend
}

// WithBackend selects the concrete-syntax backend. The default is
// BackendPegtree.
func WithBackend(b Backend) Option {
	return func(c *config) { c.backend = b }
}

// ParseText parses WDL source text into a validated ast.Document, tagging
// any errors with source for diagnostics.
func ParseText(text string, source ast.DocumentSource, opts ...Option) (*ast.Document, error) {
	cfg := config{backend: BackendPegtree}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch cfg.backend {
	case BackendTreewalk:
		root, comments, err := treewalk.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		doc, err := treewalk.Lower(root, comments, source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		return doc, nil
	default:
		root, comments, err := pegtree.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		doc, err := pegtree.Lower(root, comments, source)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		return doc, nil
	}
}

// ParseFile reads path and parses it as a WDL document.
func ParseFile(path string, opts ...Option) (*ast.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return ParseText(string(data), ast.SourceFile(path), opts...)
}
