package pegtree

import (
	"fmt"

	"github.com/ritamzico/wdlast/internal/ast"
	"github.com/ritamzico/wdlast/internal/lex"
)

// Parser drives a lex.Stream through hand-written recursive-descent
// productions, one function per grammar rule, in the style pest's
// generated parsers expose (a function per rule, building a parse tree
// node as it goes).
type Parser struct {
	s        *lex.Stream
	comments *ast.Comments
}

// Parse parses text into backend A's concrete syntax tree plus the
// accumulated line comments found along the way.
func Parse(text string) (*Pair, *ast.Comments, error) {
	s, err := lex.NewStream(text)
	if err != nil {
		return nil, nil, err
	}
	p := &Parser{s: s, comments: ast.NewComments()}
	root, err := p.document()
	if err != nil {
		return nil, nil, err
	}
	return root, p.comments, nil
}

// drainComments consumes any Comment tokens sitting at the front of the
// stream, recording each into p.comments keyed by its line, then returns
// the next non-comment token without consuming it. This is the side-drain
// mechanism: comments never appear in the Pair tree itself, only in the
// side channel, since no production in the grammar expects one.
func (p *Parser) drainComments() (lex.Token, error) {
	for {
		tok, err := p.s.Peek()
		if err != nil {
			return lex.Token{}, err
		}
		if tok.Kind != lex.Comment {
			return tok, nil
		}
		if _, err := p.s.Next(); err != nil {
			return lex.Token{}, err
		}
		text := tok.Value
		if len(text) > 0 && text[0] == '#' {
			text = text[1:]
		}
		anchor := ast.NewAnchor(text, tok.Span)
		if err := p.comments.TryInsert(tok.Span.Start.Line, anchor); err != nil {
			return lex.Token{}, err
		}
	}
}

func (p *Parser) peek() (lex.Token, error) { return p.drainComments() }

func (p *Parser) next() (lex.Token, error) {
	if _, err := p.drainComments(); err != nil {
		return lex.Token{}, err
	}
	return p.s.Next()
}

func (p *Parser) expectPunct(value string) (lex.Token, error) {
	tok, err := p.next()
	if err != nil {
		return lex.Token{}, err
	}
	if tok.Kind != lex.Punct || tok.Value != value {
		return lex.Token{}, ast.Grammarf("expected %q, found %q at %s", value, tok.Value, tok.Span.Start)
	}
	return tok, nil
}

func (p *Parser) expectKeyword(word string) (lex.Token, error) {
	tok, err := p.next()
	if err != nil {
		return lex.Token{}, err
	}
	if tok.Kind != lex.Ident || tok.Value != word {
		return lex.Token{}, ast.Grammarf("expected keyword %q, found %q at %s", word, tok.Value, tok.Span.Start)
	}
	return tok, nil
}

func (p *Parser) expectIdent() (lex.Token, error) {
	tok, err := p.next()
	if err != nil {
		return lex.Token{}, err
	}
	if tok.Kind != lex.Ident {
		return lex.Token{}, ast.Grammarf("expected identifier, found %q at %s", tok.Value, tok.Span.Start)
	}
	return tok, nil
}

func (p *Parser) at(kind lex.Kind, value string) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	return tok.Kind == kind && tok.Value == value, nil
}

func (p *Parser) atEOF() (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	return tok.Kind == lex.EOF, nil
}

// mark/reset provide the only backtracking the grammar needs (a couple of
// two-token lookaheads); Stream.ResetAt rebuilds the sub-lexer from a
// byte offset, so rewinding is just reseeding from a saved offset.
func (p *Parser) mark() (int, error) {
	if _, err := p.drainComments(); err != nil {
		return 0, err
	}
	return p.s.Offset(), nil
}

func (p *Parser) reset(mark int) error { return p.s.ResetAt(mark) }

// ---- document ----

func (p *Parser) document() (*Pair, error) {
	verTok, err := p.expectKeyword("version")
	if err != nil {
		return nil, err
	}
	idTok, err := p.next()
	if err != nil {
		return nil, err
	}
	if idTok.Kind != lex.Float && idTok.Kind != lex.Int {
		return nil, ast.Grammarf("expected version identifier, found %q at %s", idTok.Value, idTok.Span.Start)
	}
	version := node("version", ast.NewSpan(verTok.Span.Start, idTok.Span.End), leaf("version_identifier", idTok.Value, idTok.Span))

	var elements []*Pair
	for {
		eof, err := p.atEOF()
		if err != nil {
			return nil, err
		}
		if eof {
			break
		}
		el, err := p.documentElement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	endPos, err := p.peek()
	if err != nil {
		return nil, err
	}
	span := ast.NewSpan(version.Span.Start, endPos.Span.Start)
	children := append([]*Pair{version}, elements...)
	return node("document", span, children...), nil
}

func (p *Parser) documentElement() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lex.Ident && tok.Value == "import":
		return p.importDecl()
	case tok.Kind == lex.Ident && tok.Value == "struct":
		return p.structDecl()
	case tok.Kind == lex.Ident && tok.Value == "task":
		return p.taskDecl()
	case tok.Kind == lex.Ident && tok.Value == "workflow":
		return p.workflowDecl()
	default:
		return nil, ast.Grammarf("expected import/struct/task/workflow, found %q at %s", tok.Value, tok.Span.Start)
	}
}

func (p *Parser) importDecl() (*Pair, error) {
	startTok, err := p.expectKeyword("import")
	if err != nil {
		return nil, err
	}
	uri, err := p.quotedLiteral("uri", false)
	if err != nil {
		return nil, err
	}
	var children = []*Pair{uri}
	var endSpan = uri.Span
	if as, _ := p.at(lex.Ident, "as"); as {
		asTok, _ := p.next()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		alias := leaf("namespace", nameTok.Value, nameTok.Span)
		_ = asTok
		children = append(children, alias)
		endSpan = nameTok.Span
	}
	for {
		isAlias, err := p.at(lex.Ident, "alias")
		if err != nil {
			return nil, err
		}
		if !isAlias {
			break
		}
		if _, err := p.next(); err != nil {
			return nil, err
		}
		from, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKeyword("as"); err != nil {
			return nil, err
		}
		to, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		aliasPair := node("alias", ast.NewSpan(from.Span.Start, to.Span.End),
			leaf("ident", from.Value, from.Span), leaf("ident", to.Value, to.Span))
		children = append(children, aliasPair)
		endSpan = to.Span
	}
	return node("import", ast.NewSpan(startTok.Span.Start, endSpan.End), children...), nil
}

func (p *Parser) structDecl() (*Pair, error) {
	startTok, err := p.expectKeyword("struct")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		typ, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		field, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		fieldPair := node("unbound_declaration", ast.NewSpan(typ.Span.Start, field.Span.End),
			typ, leaf("ident", field.Value, field.Span))
		fields = append(fields, fieldPair)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	children := append([]*Pair{leaf("ident", nameTok.Value, nameTok.Span)}, fields...)
	return node("struct", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), children...), nil
}

// ---- task ----

func (p *Parser) taskDecl() (*Pair, error) {
	startTok, err := p.expectKeyword("task")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var elements []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		el, err := p.taskElement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	children := append([]*Pair{leaf("ident", nameTok.Value, nameTok.Span)}, elements...)
	return node("task", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), children...), nil
}

func (p *Parser) taskElement() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == lex.Ident {
		switch tok.Value {
		case "input":
			return p.inputSection()
		case "output":
			return p.outputSection()
		case "command":
			return p.commandSection()
		case "runtime":
			return p.runtimeSection()
		case "meta":
			return p.metaSection("meta")
		case "parameter_meta":
			return p.metaSection("parameter_meta")
		}
	}
	return p.boundDeclaration()
}

func (p *Parser) inputSection() (*Pair, error) {
	startTok, err := p.expectKeyword("input")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var decls []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		d, err := p.inputDeclaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return node("input", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), decls...), nil
}

func (p *Parser) inputDeclaration() (*Pair, error) {
	typ, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	hasEq, err := p.at(lex.Punct, "=")
	if err != nil {
		return nil, err
	}
	if !hasEq {
		return node("unbound_declaration", ast.NewSpan(typ.Span.Start, name.Span.End),
			typ, leaf("ident", name.Value, name.Span)), nil
	}
	if _, err := p.next(); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	return node("bound_declaration", ast.NewSpan(typ.Span.Start, expr.Span.End),
		typ, leaf("ident", name.Value, name.Span), expr), nil
}

func (p *Parser) outputSection() (*Pair, error) {
	startTok, err := p.expectKeyword("output")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var decls []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		d, err := p.boundDeclaration()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return node("output", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), decls...), nil
}

func (p *Parser) boundDeclaration() (*Pair, error) {
	typ, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	return node("bound_declaration", ast.NewSpan(typ.Span.Start, expr.Span.End),
		typ, leaf("ident", name.Value, name.Span), expr), nil
}

func (p *Parser) commandSection() (*Pair, error) {
	startTok, err := p.expectKeyword("command")
	if err != nil {
		return nil, err
	}
	heredoc, err := p.at(lex.Punct, "<")
	if err != nil {
		return nil, err
	}
	var closer lex.Closer
	if heredoc {
		if _, err := p.consumeHeredocOpen(); err != nil {
			return nil, err
		}
		closer = lex.HeredocCloser()
	} else {
		if _, err := p.expectPunct("{"); err != nil {
			return nil, err
		}
		closer = lex.BraceCloser()
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), closer, true)
	if err != nil {
		return nil, err
	}
	partPairs, err := p.lowerRawParts(parts)
	if err != nil {
		return nil, err
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	endPos := p.s.Lines().Position(endOffset)
	return node("command", ast.NewSpan(startTok.Span.Start, endPos), partPairs...), nil
}

// consumeHeredocOpen reads the three '<' punctuation tokens that make up
// "<<<" (the lexer tokenizes each angle bracket separately since it has no
// dedicated heredoc-open rule).
func (p *Parser) consumeHeredocOpen() (lex.Token, error) {
	var last lex.Token
	for i := 0; i < 3; i++ {
		tok, err := p.expectPunct("<")
		if err != nil {
			return lex.Token{}, err
		}
		last = tok
	}
	return last, nil
}

// lowerRawParts turns lex.RawPart values into Pair nodes. Placeholder
// parts have their inner expression text reparsed in place: the shared
// Stream is temporarily reset to the placeholder's inner offset (it
// already carries the whole document's text and LineIndex, so positions
// stay correct) and restored by the caller afterward, since
// ScanInterpolated itself never touches Stream's token cursor.
func (p *Parser) lowerRawParts(parts []lex.RawPart) ([]*Pair, error) {
	pairs := make([]*Pair, len(parts))
	for i, part := range parts {
		switch part.Kind {
		case lex.PartContent:
			pairs[i] = leaf("content", part.Text, part.Span)
		case lex.PartEscape:
			pairs[i] = leaf("escape", part.Text, part.Span)
		case lex.PartPlaceholder:
			if err := p.s.ResetAt(part.InnerStart); err != nil {
				return nil, err
			}
			expr, err := p.expression()
			if err != nil {
				return nil, fmt.Errorf("placeholder expression: %w", err)
			}
			pairs[i] = node("placeholder", part.Span, expr)
		}
	}
	return pairs, nil
}

func (p *Parser) runtimeSection() (*Pair, error) {
	startTok, err := p.expectKeyword("runtime")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var attrs []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, node("runtime_attribute", ast.NewSpan(name.Span.Start, expr.Span.End),
			leaf("ident", name.Value, name.Span), expr))
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return node("runtime", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), attrs...), nil
}

func (p *Parser) metaSection(keyword string) (*Pair, error) {
	startTok, err := p.expectKeyword(keyword)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var attrs []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		attr, err := p.metaAttribute()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return node(keyword, ast.NewSpan(startTok.Span.Start, closeTok.Span.End), attrs...), nil
}

func (p *Parser) metaAttribute() (*Pair, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	val, err := p.metaValue()
	if err != nil {
		return nil, err
	}
	return node("meta_attribute", ast.NewSpan(name.Span.Start, val.Span.End),
		leaf("ident", name.Value, name.Span), val), nil
}

func (p *Parser) metaValue() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lex.Punct && (tok.Value == "-" || tok.Value == "+"):
		return p.metaNumber()
	case tok.Kind == lex.Ident && tok.Value == "null":
		p.next()
		return leaf("meta_null", "", tok.Span), nil
	case tok.Kind == lex.Ident && (tok.Value == "true" || tok.Value == "false"):
		p.next()
		return leaf("meta_bool", tok.Value, tok.Span), nil
	case tok.Kind == lex.Int:
		p.next()
		return leaf("meta_int", tok.Value, tok.Span), nil
	case tok.Kind == lex.Float:
		p.next()
		return leaf("meta_float", tok.Value, tok.Span), nil
	case tok.Kind == lex.Punct && tok.Value == `"`:
		return p.metaString()
	case tok.Kind == lex.Punct && tok.Value == "[":
		return p.metaArray()
	case tok.Kind == lex.Punct && tok.Value == "{":
		return p.metaObject()
	default:
		return nil, ast.Grammarf("expected meta value, found %q at %s", tok.Value, tok.Span.Start)
	}
}

// metaNumber parses a sign-prefixed Int/Float meta literal: spec.md §4.5
// describes backend A's meta_number production as having an optional
// pos/neg child whose sign the lowering applies via Negate(). The sign
// token is kept on the wrapper Pair's Value and the bare numeric leaf is
// its sole child.
func (p *Parser) metaNumber() (*Pair, error) {
	signTok, err := p.next()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	var inner *Pair
	switch tok.Kind {
	case lex.Int:
		p.next()
		inner = leaf("meta_int", tok.Value, tok.Span)
	case lex.Float:
		p.next()
		inner = leaf("meta_float", tok.Value, tok.Span)
	default:
		return nil, ast.Grammarf("expected a numeric meta value after sign %q, found %q at %s", signTok.Value, tok.Value, tok.Span.Start)
	}
	return &Pair{Rule: "meta_number", Value: signTok.Value, Span: ast.NewSpan(signTok.Span.Start, inner.Span.End), Children: []*Pair{inner}}, nil
}

func (p *Parser) metaString() (*Pair, error) {
	openTok, err := p.expectPunct(`"`)
	if err != nil {
		return nil, err
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), lex.QuoteCloser('"'), false)
	if err != nil {
		return nil, err
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	var children []*Pair
	for _, part := range parts {
		switch part.Kind {
		case lex.PartContent:
			children = append(children, leaf("content", part.Text, part.Span))
		case lex.PartEscape:
			children = append(children, leaf("escape", part.Text, part.Span))
		default:
			return nil, ast.Grammarf("meta strings cannot contain placeholders, at %s", part.Span.Start)
		}
	}
	endPos := p.s.Lines().Position(endOffset)
	return node("meta_string", ast.NewSpan(openTok.Span.Start, endPos), children...), nil
}

func (p *Parser) metaArray() (*Pair, error) {
	openTok, err := p.expectPunct("[")
	if err != nil {
		return nil, err
	}
	var elems []*Pair
	for {
		closing, err := p.at(lex.Punct, "]")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		v, err := p.metaValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		comma, err := p.at(lex.Punct, ",")
		if err != nil {
			return nil, err
		}
		if comma {
			p.next()
		}
	}
	closeTok, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	return node("meta_array", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), elems...), nil
}

func (p *Parser) metaObject() (*Pair, error) {
	openTok, err := p.expectPunct("{")
	if err != nil {
		return nil, err
	}
	var fields []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		f, err := p.metaAttribute()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		comma, err := p.at(lex.Punct, ",")
		if err != nil {
			return nil, err
		}
		if comma {
			p.next()
		}
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return node("meta_object", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), fields...), nil
}

// ---- workflow ----

func (p *Parser) workflowDecl() (*Pair, error) {
	startTok, err := p.expectKeyword("workflow")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var elements []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		el, err := p.workflowElement()
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	children := append([]*Pair{leaf("ident", nameTok.Value, nameTok.Span)}, elements...)
	return node("workflow", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), children...), nil
}

func (p *Parser) workflowElement() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == lex.Ident {
		switch tok.Value {
		case "input":
			return p.inputSection()
		case "output":
			return p.outputSection()
		case "meta":
			return p.metaSection("meta")
		case "parameter_meta":
			return p.metaSection("parameter_meta")
		case "call":
			return p.call()
		case "scatter":
			return p.scatter()
		case "if":
			return p.conditional()
		}
	}
	return p.boundDeclaration()
}

func (p *Parser) workflowBodyElement() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == lex.Ident {
		switch tok.Value {
		case "call":
			return p.call()
		case "scatter":
			return p.scatter()
		case "if":
			return p.conditional()
		}
	}
	return p.boundDeclaration()
}

func (p *Parser) call() (*Pair, error) {
	startTok, err := p.expectKeyword("call")
	if err != nil {
		return nil, err
	}
	qn, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	children := []*Pair{qn}
	endSpan := qn.Span
	if as, _ := p.at(lex.Ident, "as"); as {
		p.next()
		alias, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		aliasPair := leaf("alias", alias.Value, alias.Span)
		children = append(children, aliasPair)
		endSpan = alias.Span
	}
	hasBrace, err := p.at(lex.Punct, "{")
	if err != nil {
		return nil, err
	}
	if hasBrace {
		openTok, _ := p.next()
		var inputs []*Pair
		hasInputKw, err := p.at(lex.Ident, "input")
		if err != nil {
			return nil, err
		}
		if hasInputKw {
			p.next()
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
		}
		for {
			closing, err := p.at(lex.Punct, "}")
			if err != nil {
				return nil, err
			}
			if closing {
				break
			}
			ci, err := p.callInput()
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, ci)
			comma, err := p.at(lex.Punct, ",")
			if err != nil {
				return nil, err
			}
			if comma {
				p.next()
			}
		}
		closeTok, err := p.expectPunct("}")
		if err != nil {
			return nil, err
		}
		_ = openTok
		inputsBlock := node("call_inputs", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), inputs...)
		children = append(children, inputsBlock)
		endSpan = closeTok.Span
	}
	return node("call", ast.NewSpan(startTok.Span.Start, endSpan.End), children...), nil
}

func (p *Parser) callInput() (*Pair, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	hasEq, err := p.at(lex.Punct, "=")
	if err != nil {
		return nil, err
	}
	if !hasEq {
		return leaf("call_input", name.Value, name.Span), nil
	}
	p.next()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	return node("call_input_bound", ast.NewSpan(name.Span.Start, expr.Span.End),
		leaf("ident", name.Value, name.Span), expr), nil
}

func (p *Parser) qualifiedName() (*Pair, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	parts := []*Pair{leaf("ident", first.Value, first.Span)}
	end := first.Span
	for {
		dot, err := p.at(lex.Punct, ".")
		if err != nil {
			return nil, err
		}
		if !dot {
			break
		}
		p.next()
		part, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, leaf("ident", part.Value, part.Span))
		end = part.Span
	}
	return node("qualified_name", ast.NewSpan(first.Span.Start, end.End), parts...), nil
}

func (p *Parser) scatter() (*Pair, error) {
	startTok, err := p.expectKeyword("scatter")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var body []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		el, err := p.workflowBodyElement()
		if err != nil {
			return nil, err
		}
		body = append(body, el)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	children := append([]*Pair{leaf("ident", name.Value, name.Span), expr}, body...)
	return node("scatter", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), children...), nil
}

func (p *Parser) conditional() (*Pair, error) {
	startTok, err := p.expectKeyword("if")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var body []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		el, err := p.workflowBodyElement()
		if err != nil {
			return nil, err
		}
		body = append(body, el)
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	children := append([]*Pair{expr}, body...)
	return node("conditional", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), children...), nil
}

// ---- types ----

func (p *Parser) typeExpr() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	var base *Pair
	switch {
	case tok.Kind == lex.Ident && isPrimitive(tok.Value):
		p.next()
		base = leaf("primitive_type", tok.Value, tok.Span)
	case tok.Kind == lex.Ident && tok.Value == "Array":
		base, err = p.arrayType()
	case tok.Kind == lex.Ident && tok.Value == "Map":
		base, err = p.mapType()
	case tok.Kind == lex.Ident && tok.Value == "Pair":
		base, err = p.pairType()
	case tok.Kind == lex.Ident:
		p.next()
		base = leaf("user_type", tok.Value, tok.Span)
	default:
		return nil, ast.Grammarf("expected type, found %q at %s", tok.Value, tok.Span.Start)
	}
	if err != nil {
		return nil, err
	}
	optional, err := p.at(lex.Punct, "?")
	if err != nil {
		return nil, err
	}
	if optional {
		qTok, _ := p.next()
		return node("optional_type", ast.NewSpan(base.Span.Start, qTok.Span.End), base), nil
	}
	return base, nil
}

func isPrimitive(name string) bool {
	switch name {
	case "Int", "Float", "Boolean", "String", "File", "Object":
		return true
	}
	return false
}

func (p *Parser) arrayType() (*Pair, error) {
	startTok, err := p.expectKeyword("Array")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("["); err != nil {
		return nil, err
	}
	item, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	closeTok, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	endSpan := closeTok.Span
	nonEmpty := false
	if plus, _ := p.at(lex.Punct, "+"); plus {
		plusTok, _ := p.next()
		nonEmpty = true
		endSpan = plusTok.Span
	}
	kind := "array_type"
	if nonEmpty {
		kind = "array_type_nonempty"
	}
	return node(kind, ast.NewSpan(startTok.Span.Start, endSpan.End), item), nil
}

func (p *Parser) mapType() (*Pair, error) {
	startTok, err := p.expectKeyword("Map")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("["); err != nil {
		return nil, err
	}
	key, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(","); err != nil {
		return nil, err
	}
	value, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	closeTok, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	return node("map_type", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), key, value), nil
}

func (p *Parser) pairType() (*Pair, error) {
	startTok, err := p.expectKeyword("Pair")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("["); err != nil {
		return nil, err
	}
	left, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(","); err != nil {
		return nil, err
	}
	right, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	closeTok, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	return node("pair_type", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), left, right), nil
}

// ---- expressions ----
// Precedence, loosest to tightest: ternary > disjunction > conjunction >
// equality > comparison > math1(+ -) > math2(* / %) > unary > access > leaf.

func (p *Parser) expression() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == lex.Ident && tok.Value == "if" {
		return p.ternary()
	}
	return p.disjunction()
}

func (p *Parser) ternary() (*Pair, error) {
	startTok, err := p.expectKeyword("if")
	if err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	trueBranch, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	falseBranch, err := p.expression()
	if err != nil {
		return nil, err
	}
	return node("ternary", ast.NewSpan(startTok.Span.Start, falseBranch.Span.End), cond, trueBranch, falseBranch), nil
}

func (p *Parser) binaryLevel(rule string, ops []string, next func() (*Pair, error)) (*Pair, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		matched := ""
		if tok.Kind == lex.Punct {
			for _, op := range ops {
				if tok.Value == op {
					matched = op
					break
				}
			}
		}
		if matched == "" {
			return left, nil
		}
		p.next()
		right, err := next()
		if err != nil {
			return nil, err
		}
		children := []*Pair{left, leaf("operator", matched, tok.Span), right}
		left = node(rule, innerSpan([]*Pair{left, right}), children...)
	}
}

func (p *Parser) disjunction() (*Pair, error) {
	return p.binaryLevel("binary", []string{"||"}, p.conjunction)
}
func (p *Parser) conjunction() (*Pair, error) {
	return p.binaryLevel("binary", []string{"&&"}, p.equality)
}
func (p *Parser) equality() (*Pair, error) {
	return p.binaryLevel("binary", []string{"==", "!="}, p.comparison)
}
func (p *Parser) comparison() (*Pair, error) {
	return p.binaryLevel("binary", []string{"<=", ">=", "<", ">"}, p.math1)
}
func (p *Parser) math1() (*Pair, error) {
	return p.binaryLevel("binary", []string{"+", "-"}, p.math2)
}
func (p *Parser) math2() (*Pair, error) {
	return p.binaryLevel("binary", []string{"*", "/", "%"}, p.unary)
}

func (p *Parser) unary() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == lex.Punct && (tok.Value == "-" || tok.Value == "!" || tok.Value == "+") {
		p.next()
		operand, err := p.access()
		if err != nil {
			return nil, err
		}
		children := []*Pair{leaf("operator", tok.Value, tok.Span), operand}
		return node("unary", innerSpan(children), children...), nil
	}
	return p.access()
}

func (p *Parser) access() (*Pair, error) {
	base, err := p.leaf()
	if err != nil {
		return nil, err
	}
	var ops []*Pair
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lex.Punct && tok.Value == "[" {
			p.next()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			closeTok, err := p.expectPunct("]")
			if err != nil {
				return nil, err
			}
			ops = append(ops, node("index_access", ast.NewSpan(tok.Span.Start, closeTok.Span.End), idx))
			continue
		}
		if tok.Kind == lex.Punct && tok.Value == "." {
			p.next()
			field, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ops = append(ops, leaf("field_access", field.Value, ast.NewSpan(tok.Span.Start, field.Span.End)))
			continue
		}
		break
	}
	if len(ops) == 0 {
		return base, nil
	}
	children := append([]*Pair{base}, ops...)
	return node("access", innerSpan(children), children...), nil
}

func (p *Parser) leaf() (*Pair, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lex.Ident && tok.Value == "None":
		p.next()
		return leaf("none", "", tok.Span), nil
	case tok.Kind == lex.Ident && tok.Value == "true":
		p.next()
		return leaf("bool", "true", tok.Span), nil
	case tok.Kind == lex.Ident && tok.Value == "false":
		p.next()
		return leaf("bool", "false", tok.Span), nil
	case tok.Kind == lex.Int:
		p.next()
		return leaf("int", tok.Value, tok.Span), nil
	case tok.Kind == lex.Float:
		p.next()
		return leaf("float", tok.Value, tok.Span), nil
	case tok.Kind == lex.Punct && tok.Value == `"`:
		return p.stringLiteral()
	case tok.Kind == lex.Punct && tok.Value == "[":
		return p.arrayLiteral()
	case tok.Kind == lex.Punct && tok.Value == "{":
		return p.mapLiteral()
	case tok.Kind == lex.Punct && tok.Value == "(":
		return p.groupOrPair()
	case tok.Kind == lex.Ident:
		return p.identOrApplyOrObject()
	default:
		return nil, ast.Grammarf("expected expression, found %q at %s", tok.Value, tok.Span.Start)
	}
}

func (p *Parser) identOrApplyOrObject() (*Pair, error) {
	idTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if open, _ := p.at(lex.Punct, "("); open {
		p.next()
		var args []*Pair
		for {
			closing, err := p.at(lex.Punct, ")")
			if err != nil {
				return nil, err
			}
			if closing {
				break
			}
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			comma, err := p.at(lex.Punct, ",")
			if err != nil {
				return nil, err
			}
			if comma {
				p.next()
			}
		}
		closeTok, err := p.expectPunct(")")
		if err != nil {
			return nil, err
		}
		children := append([]*Pair{leaf("ident", idTok.Value, idTok.Span)}, args...)
		return node("apply", ast.NewSpan(idTok.Span.Start, closeTok.Span.End), children...), nil
	}
	if open, _ := p.at(lex.Punct, "{"); open {
		p.next()
		var fields []*Pair
		for {
			closing, err := p.at(lex.Punct, "}")
			if err != nil {
				return nil, err
			}
			if closing {
				break
			}
			fname, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			fexpr, err := p.expression()
			if err != nil {
				return nil, err
			}
			fields = append(fields, node("object_field", ast.NewSpan(fname.Span.Start, fexpr.Span.End),
				leaf("ident", fname.Value, fname.Span), fexpr))
			comma, err := p.at(lex.Punct, ",")
			if err != nil {
				return nil, err
			}
			if comma {
				p.next()
			}
		}
		closeTok, err := p.expectPunct("}")
		if err != nil {
			return nil, err
		}
		children := append([]*Pair{leaf("ident", idTok.Value, idTok.Span)}, fields...)
		return node("object", ast.NewSpan(idTok.Span.Start, closeTok.Span.End), children...), nil
	}
	return leaf("identifier", idTok.Value, idTok.Span), nil
}

func (p *Parser) groupOrPair() (*Pair, error) {
	openTok, err := p.expectPunct("(")
	if err != nil {
		return nil, err
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	comma, err := p.at(lex.Punct, ",")
	if err != nil {
		return nil, err
	}
	if comma {
		p.next()
		second, err := p.expression()
		if err != nil {
			return nil, err
		}
		closeTok, err := p.expectPunct(")")
		if err != nil {
			return nil, err
		}
		return node("pair_literal", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), first, second), nil
	}
	closeTok, err := p.expectPunct(")")
	if err != nil {
		return nil, err
	}
	return node("group", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), first), nil
}

func (p *Parser) arrayLiteral() (*Pair, error) {
	openTok, err := p.expectPunct("[")
	if err != nil {
		return nil, err
	}
	var elems []*Pair
	for {
		closing, err := p.at(lex.Punct, "]")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		comma, err := p.at(lex.Punct, ",")
		if err != nil {
			return nil, err
		}
		if comma {
			p.next()
		}
	}
	closeTok, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	return node("array_literal", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), elems...), nil
}

func (p *Parser) mapLiteral() (*Pair, error) {
	openTok, err := p.expectPunct("{")
	if err != nil {
		return nil, err
	}
	var entries []*Pair
	for {
		closing, err := p.at(lex.Punct, "}")
		if err != nil {
			return nil, err
		}
		if closing {
			break
		}
		key, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		entries = append(entries, node("map_entry", ast.NewSpan(key.Span.Start, value.Span.End), key, value))
		comma, err := p.at(lex.Punct, ",")
		if err != nil {
			return nil, err
		}
		if comma {
			p.next()
		}
	}
	closeTok, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return node("map_literal", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), entries...), nil
}

func (p *Parser) stringLiteral() (*Pair, error) {
	openTok, err := p.expectPunct(`"`)
	if err != nil {
		return nil, err
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), lex.QuoteCloser('"'), true)
	if err != nil {
		return nil, err
	}
	partPairs, err := p.lowerRawParts(parts)
	if err != nil {
		return nil, err
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	endPos := p.s.Lines().Position(endOffset)
	return node("string", ast.NewSpan(openTok.Span.Start, endPos), partPairs...), nil
}

func (p *Parser) quotedLiteral(rule string, allowPlaceholders bool) (*Pair, error) {
	openTok, err := p.expectPunct(`"`)
	if err != nil {
		return nil, err
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), lex.QuoteCloser('"'), allowPlaceholders)
	if err != nil {
		return nil, err
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	var text string
	for _, part := range parts {
		if part.Kind == lex.PartPlaceholder {
			return nil, ast.Grammarf("%s cannot contain placeholders, at %s", rule, part.Span.Start)
		}
		text += part.Text
	}
	endPos := p.s.Lines().Position(endOffset)
	return leaf(rule, text, ast.NewSpan(openTok.Span.Start, endPos)), nil
}
