// Package lex implements the lexical layer shared by both concrete-syntax
// backends (internal/backend/pegtree and internal/backend/treewalk). Both
// backends tokenize WDL source the same way; only the shape of the tree
// they build on top of the token stream differs.
//
// WDL string and command bodies contain placeholders (~{...}, ${...})
// whose content is itself an expression, so they cannot be described by a
// flat regex-rule lexer the way the rest of the grammar can. Stream
// therefore exposes two modes: structural token-at-a-time scanning via
// Next/Peek (backed by participle's simple lexer, the same mechanism the
// teacher's DSL grammar uses), and raw interpolated-content scanning via
// ScanInterpolated for everything between a string/command delimiter pair.
// After a raw scan, ResetAt reseeds the structural lexer past the
// consumed bytes so the two modes compose without ever double-scanning
// source text.
package lex

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ritamzico/wdlast/internal/ast"
)

// Kind classifies a structural token. Keywords and primitive type names
// are not distinguished from ordinary identifiers at this layer; grammars
// compare Token.Value against the literal they expect, the same way
// pegtree/treewalk productions are written against fixed lexemes.
type Kind int

const (
	EOF Kind = iota
	Ident
	Int
	Float
	Punct
	Comment
)

// Token is one lexical unit, already rebased onto the owning document's
// coordinate space via a LineIndex.
type Token struct {
	Kind  Kind
	Value string
	Span  ast.Span
}

var wdlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "FloatDec", Pattern: `\d+\.\d+([eE][+-]?\d+)?`},
	{Name: "FloatSci", Pattern: `\d+[eE][+-]?\d+`},
	{Name: "HexInt", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "OctInt", Pattern: `0[0-7]+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Punct", Pattern: `<=|>=|==|!=|&&|\|\||[-+*/%(){}\[\],.:?=<>!~$"']`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

func kindOf(symbolic string) Kind {
	switch symbolic {
	case "FloatDec", "FloatSci":
		return Float
	case "HexInt", "OctInt", "Int":
		return Int
	case "Ident":
		return Ident
	case "Comment":
		return Comment
	default:
		return Punct
	}
}

// Stream is a resettable structural tokenizer over one document's source
// text. The zero value is not usable; construct with NewStream.
type Stream struct {
	text  string
	lines *LineIndex
	names map[lexer.TokenType]string

	base   int // byte offset the current sub-lexer was seeded at
	pos    int // byte offset just past the last consumed token
	cur    lexer.Lexer
	peeked *Token
}

// NewStream builds a Stream over the whole document, positioned at the
// start of text.
func NewStream(text string) (*Stream, error) {
	s := &Stream{
		text:  text,
		lines: NewLineIndex(text),
		names: symbolNames(),
	}
	if err := s.ResetAt(0); err != nil {
		return nil, err
	}
	return s, nil
}

func symbolNames() map[lexer.TokenType]string {
	names := make(map[lexer.TokenType]string)
	for name, tt := range wdlLexer.Symbols() {
		names[tt] = name
	}
	return names
}

// ResetAt reseeds the structural lexer to start scanning at byte offset
// in the original document text, discarding any peeked token. Both
// backends call this after consuming a string/command body via
// ScanInterpolated, to resume structural tokenizing past it.
func (s *Stream) ResetAt(offset int) error {
	lx, err := wdlLexer.Lex("", strings.NewReader(s.text[offset:]))
	if err != nil {
		return err
	}
	s.base = offset
	s.pos = offset
	s.cur = lx
	s.peeked = nil
	return nil
}

// Offset returns the byte offset Next will resume reading from.
func (s *Stream) Offset() int {
	if s.peeked != nil {
		return s.peeked.Span.Start.Offset
	}
	return s.pos
}

func (s *Stream) rawNext() (Token, error) {
	for {
		tok, err := s.cur.Next()
		if err != nil {
			return Token{}, err
		}
		if tok.EOF() {
			off := s.base + tok.Pos.Offset
			p := s.lines.Position(off)
			return Token{Kind: EOF, Span: spanOrPoint(p, p)}, nil
		}
		name := s.names[tok.Type]
		if name == "Whitespace" {
			continue
		}
		start := s.lines.Position(s.base + tok.Pos.Offset)
		end := s.lines.Position(s.base + tok.Pos.Offset + len(tok.Value))
		return Token{Kind: kindOf(name), Value: tok.Value, Span: spanOrPoint(start, end)}, nil
	}
}

func spanOrPoint(start, end ast.Position) ast.Span {
	if start.Less(end) {
		return ast.NewSpan(start, end)
	}
	return ast.NewSpan(start, ast.NewPosition(start.Line, start.Column+1, start.Offset+1))
}

// Peek returns the next structural token without consuming it.
func (s *Stream) Peek() (Token, error) {
	if s.peeked == nil {
		tok, err := s.rawNext()
		if err != nil {
			return Token{}, err
		}
		s.peeked = &tok
	}
	return *s.peeked, nil
}

// Next consumes and returns the next structural token.
func (s *Stream) Next() (Token, error) {
	if s.peeked != nil {
		tok := *s.peeked
		s.peeked = nil
		s.pos = tok.Span.End.Offset
		return tok, nil
	}
	tok, err := s.rawNext()
	if err != nil {
		return Token{}, err
	}
	s.pos = tok.Span.End.Offset
	return tok, nil
}

// Text returns the full document source text.
func (s *Stream) Text() string { return s.text }

// Lines returns the shared LineIndex for this document.
func (s *Stream) Lines() *LineIndex { return s.lines }
