package treewalk

import (
	"fmt"

	"github.com/ritamzico/wdlast/internal/ast"
	"github.com/ritamzico/wdlast/internal/lex"
)

// Parser drives a lex.Stream incrementally, building a field-labeled Node
// tree one production at a time. Unlike pegtree it never tags a node
// with a bare "rule name" alone — every child is additionally tagged
// with the field its parent assigned it, and repeated-element lists are
// driven through the shared parseBlock state machine (cursor.go) rather
// than ad hoc loops, matching how an incremental parser exposes a single
// uniform traversal primitive over every block it builds.
type Parser struct {
	s        *lex.Stream
	comments *ast.Comments
}

// Parse parses text into backend B's concrete syntax tree plus the
// accumulated line comments found along the way.
func Parse(text string) (*Node, *ast.Comments, error) {
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
		if err := p.comments.TryInsert(tok.Span.Start.Line, ast.NewAnchor(text, tok.Span)); err != nil {
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

func (p *Parser) at(value string) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	return tok.Value == value && tok.Kind != lex.EOF, nil
}

func (p *Parser) atIdent(value string) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	return tok.Kind == lex.Ident && tok.Value == value, nil
}

func (p *Parser) atEOF() (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	return tok.Kind == lex.EOF, nil
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

// ---- document ----

func (p *Parser) document() (*Node, error) {
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
	version := branch("version", "version", ast.NewSpan(verTok.Span.Start, idTok.Span.End),
		leaf("version_identifier", "identifier", idTok.Value, idTok.Span))

	children := []*Node{version}
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
		children = append(children, el)
	}
	endTok, err := p.peek()
	if err != nil {
		return nil, err
	}
	return branch("document", "", ast.NewSpan(version.Span.Start, endTok.Span.Start), children...), nil
}

func (p *Parser) documentElement() (*Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != lex.Ident {
		return nil, ast.Grammarf("expected import/struct/task/workflow, found %q at %s", tok.Value, tok.Span.Start)
	}
	switch tok.Value {
	case "import":
		return p.importDecl()
	case "struct":
		return p.structDecl()
	case "task":
		return p.taskDecl()
	case "workflow":
		return p.workflowDecl()
	default:
		return nil, ast.Grammarf("expected import/struct/task/workflow, found %q at %s", tok.Value, tok.Span.Start)
	}
}

func (p *Parser) importDecl() (*Node, error) {
	startTok, err := p.expectKeyword("import")
	if err != nil {
		return nil, err
	}
	uri, err := p.quotedLiteral("uri", "uri", false)
	if err != nil {
		return nil, err
	}
	children := []*Node{uri}
	endSpan := uri.Span
	if as, _ := p.atIdent("as"); as {
		p.next()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		children = append(children, leaf("namespace", "namespace", nameTok.Value, nameTok.Span))
		endSpan = nameTok.Span
	}
	for {
		isAlias, err := p.atIdent("alias")
		if err != nil {
			return nil, err
		}
		if !isAlias {
			break
		}
		p.next()
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
		aliasNode := branch("alias", "alias", ast.NewSpan(from.Span.Start, to.Span.End),
			leaf("ident", "from", from.Value, from.Span),
			leaf("ident", "to", to.Value, to.Span))
		children = append(children, aliasNode)
		endSpan = to.Span
	}
	return branch("import", "", ast.NewSpan(startTok.Span.Start, endSpan.End), children...), nil
}

func (p *Parser) structDecl() (*Node, error) {
	startTok, err := p.expectKeyword("struct")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	fields, bodySpan, err := p.parseBlock("{", "}", func() (*Node, error) {
		typ, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		field, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return branch("unbound_declaration", "field", ast.NewSpan(typ.Span.Start, field.Span.End),
			typ, leaf("ident", "name", field.Value, field.Span)), nil
	})
	if err != nil {
		return nil, err
	}
	children := append([]*Node{leaf("ident", "name", nameTok.Value, nameTok.Span)}, fields...)
	return branch("struct", "", ast.NewSpan(startTok.Span.Start, bodySpan.End), children...), nil
}

// ---- task ----

func (p *Parser) taskDecl() (*Node, error) {
	startTok, err := p.expectKeyword("task")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	elements, bodySpan, err := p.parseBlock("{", "}", p.taskElement)
	if err != nil {
		return nil, err
	}
	children := append([]*Node{leaf("ident", "name", nameTok.Value, nameTok.Span)}, elements...)
	return branch("task", "", ast.NewSpan(startTok.Span.Start, bodySpan.End), children...), nil
}

func (p *Parser) taskElement() (*Node, error) {
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

func (p *Parser) inputSection() (*Node, error) {
	startTok, err := p.expectKeyword("input")
	if err != nil {
		return nil, err
	}
	decls, bodySpan, err := p.parseBlock("{", "}", p.inputDeclaration)
	if err != nil {
		return nil, err
	}
	return branch("input", "input", ast.NewSpan(startTok.Span.Start, bodySpan.End), decls...), nil
}

func (p *Parser) inputDeclaration() (*Node, error) {
	typ, err := p.typeExpr()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	hasEq, err := p.at("=")
	if err != nil {
		return nil, err
	}
	if !hasEq {
		return branch("unbound_declaration", "declaration", ast.NewSpan(typ.Span.Start, name.Span.End),
			typ, leaf("ident", "name", name.Value, name.Span)), nil
	}
	p.next()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	return branch("bound_declaration", "declaration", ast.NewSpan(typ.Span.Start, expr.Span.End),
		typ, leaf("ident", "name", name.Value, name.Span), tag(expr, "expression")), nil
}

func (p *Parser) outputSection() (*Node, error) {
	startTok, err := p.expectKeyword("output")
	if err != nil {
		return nil, err
	}
	decls, bodySpan, err := p.parseBlock("{", "}", p.boundDeclaration)
	if err != nil {
		return nil, err
	}
	return branch("output", "output", ast.NewSpan(startTok.Span.Start, bodySpan.End), decls...), nil
}

func (p *Parser) boundDeclaration() (*Node, error) {
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
	return branch("bound_declaration", "declaration", ast.NewSpan(typ.Span.Start, expr.Span.End),
		typ, leaf("ident", "name", name.Value, name.Span), tag(expr, "expression")), nil
}

func tag(n *Node, field string) *Node {
	cp := *n
	cp.Field = field
	return &cp
}

func (p *Parser) commandSection() (*Node, error) {
	startTok, err := p.expectKeyword("command")
	if err != nil {
		return nil, err
	}
	heredoc, err := p.at("<")
	if err != nil {
		return nil, err
	}
	var closer lex.Closer
	if heredoc {
		for i := 0; i < 3; i++ {
			if _, err := p.expectPunct("<"); err != nil {
				return nil, err
			}
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
	partNodes, err := p.lowerRawParts(parts)
	if err != nil {
		return nil, err
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	endPos := p.s.Lines().Position(endOffset)
	return branch("command", "command", ast.NewSpan(startTok.Span.Start, endPos), partNodes...), nil
}

func (p *Parser) lowerRawParts(parts []lex.RawPart) ([]*Node, error) {
	nodes := make([]*Node, len(parts))
	for i, part := range parts {
		switch part.Kind {
		case lex.PartContent:
			nodes[i] = leaf("content", "part", part.Text, part.Span)
		case lex.PartEscape:
			nodes[i] = leaf("escape", "part", part.Text, part.Span)
		case lex.PartPlaceholder:
			if err := p.s.ResetAt(part.InnerStart); err != nil {
				return nil, err
			}
			expr, err := p.expression()
			if err != nil {
				return nil, fmt.Errorf("placeholder expression: %w", err)
			}
			nodes[i] = branch("placeholder", "part", part.Span, tag(expr, "expression"))
		}
	}
	return nodes, nil
}

func (p *Parser) runtimeSection() (*Node, error) {
	startTok, err := p.expectKeyword("runtime")
	if err != nil {
		return nil, err
	}
	attrs, bodySpan, err := p.parseBlock("{", "}", func() (*Node, error) {
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
		return branch("runtime_attribute", "attribute", ast.NewSpan(name.Span.Start, expr.Span.End),
			leaf("ident", "name", name.Value, name.Span), tag(expr, "expression")), nil
	})
	if err != nil {
		return nil, err
	}
	return branch("runtime", "runtime", ast.NewSpan(startTok.Span.Start, bodySpan.End), attrs...), nil
}

func (p *Parser) metaSection(keyword string) (*Node, error) {
	startTok, err := p.expectKeyword(keyword)
	if err != nil {
		return nil, err
	}
	attrs, bodySpan, err := p.parseBlock("{", "}", p.metaAttribute)
	if err != nil {
		return nil, err
	}
	return branch(keyword, keyword, ast.NewSpan(startTok.Span.Start, bodySpan.End), attrs...), nil
}

func (p *Parser) metaAttribute() (*Node, error) {
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
	return branch("meta_attribute", "attribute", ast.NewSpan(name.Span.Start, val.Span.End),
		leaf("ident", "name", name.Value, name.Span), tag(val, "value")), nil
}

func (p *Parser) metaValue() (*Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lex.Punct && (tok.Value == "-" || tok.Value == "+"):
		return p.metaNumber()
	case tok.Kind == lex.Ident && tok.Value == "null":
		p.next()
		return leaf("meta_null", "", "", tok.Span), nil
	case tok.Kind == lex.Ident && (tok.Value == "true" || tok.Value == "false"):
		p.next()
		return leaf("meta_bool", "", tok.Value, tok.Span), nil
	case tok.Kind == lex.Int:
		p.next()
		return leaf("meta_int", "", tok.Value, tok.Span), nil
	case tok.Kind == lex.Float:
		p.next()
		return leaf("meta_float", "", tok.Value, tok.Span), nil
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
// describes an optional pos/neg child whose sign the lowering applies via
// Negate(). The sign token is kept on the wrapper Node's Value and the
// bare numeric leaf is its sole child.
func (p *Parser) metaNumber() (*Node, error) {
	signTok, err := p.next()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	var inner *Node
	switch tok.Kind {
	case lex.Int:
		p.next()
		inner = leaf("meta_int", "", tok.Value, tok.Span)
	case lex.Float:
		p.next()
		inner = leaf("meta_float", "", tok.Value, tok.Span)
	default:
		return nil, ast.Grammarf("expected a numeric meta value after sign %q, found %q at %s", signTok.Value, tok.Value, tok.Span.Start)
	}
	return &Node{Kind: "meta_number", Value: signTok.Value, Span: ast.NewSpan(signTok.Span.Start, inner.Span.End), Children: []*Node{inner}}, nil
}

func (p *Parser) metaString() (*Node, error) {
	openTok, err := p.expectPunct(`"`)
	if err != nil {
		return nil, err
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), lex.QuoteCloser('"'), false)
	if err != nil {
		return nil, err
	}
	var children []*Node
	for _, part := range parts {
		switch part.Kind {
		case lex.PartContent:
			children = append(children, leaf("content", "part", part.Text, part.Span))
		case lex.PartEscape:
			children = append(children, leaf("escape", "part", part.Text, part.Span))
		default:
			return nil, ast.Grammarf("meta strings cannot contain placeholders, at %s", part.Span.Start)
		}
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	endPos := p.s.Lines().Position(endOffset)
	return branch("meta_string", "", ast.NewSpan(openTok.Span.Start, endPos), children...), nil
}

func (p *Parser) metaArray() (*Node, error) {
	elems, span, err := p.parseBlock("[", "]", p.metaValue)
	if err != nil {
		return nil, err
	}
	return branch("meta_array", "", span, elems...), nil
}

func (p *Parser) metaObject() (*Node, error) {
	fields, span, err := p.parseBlock("{", "}", p.metaAttribute)
	if err != nil {
		return nil, err
	}
	return branch("meta_object", "", span, fields...), nil
}

// ---- workflow ----

func (p *Parser) workflowDecl() (*Node, error) {
	startTok, err := p.expectKeyword("workflow")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	elements, bodySpan, err := p.parseBlock("{", "}", p.workflowElement)
	if err != nil {
		return nil, err
	}
	children := append([]*Node{leaf("ident", "name", nameTok.Value, nameTok.Span)}, elements...)
	return branch("workflow", "", ast.NewSpan(startTok.Span.Start, bodySpan.End), children...), nil
}

func (p *Parser) workflowElement() (*Node, error) {
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

func (p *Parser) workflowBodyElement() (*Node, error) {
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

func (p *Parser) call() (*Node, error) {
	startTok, err := p.expectKeyword("call")
	if err != nil {
		return nil, err
	}
	qn, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	children := []*Node{tag(qn, "target")}
	endSpan := qn.Span
	if as, _ := p.atIdent("as"); as {
		p.next()
		alias, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		children = append(children, leaf("alias", "alias", alias.Value, alias.Span))
		endSpan = alias.Span
	}
	hasBrace, err := p.at("{")
	if err != nil {
		return nil, err
	}
	if hasBrace {
		openTok, _ := p.next()
		var inputs []*Node
		hasInputKw, err := p.atIdent("input")
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
			closing, err := p.at("}")
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
			comma, err := p.at(",")
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
		inputsBlock := branch("call_inputs", "inputs", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), inputs...)
		children = append(children, inputsBlock)
		endSpan = closeTok.Span
	}
	return branch("call", "", ast.NewSpan(startTok.Span.Start, endSpan.End), children...), nil
}

func (p *Parser) callInput() (*Node, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	hasEq, err := p.at("=")
	if err != nil {
		return nil, err
	}
	if !hasEq {
		return leaf("call_input", "input", name.Value, name.Span), nil
	}
	p.next()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	return branch("call_input_bound", "input", ast.NewSpan(name.Span.Start, expr.Span.End),
		leaf("ident", "name", name.Value, name.Span), tag(expr, "expression")), nil
}

func (p *Parser) qualifiedName() (*Node, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	parts := []*Node{leaf("ident", "part", first.Value, first.Span)}
	end := first.Span
	for {
		dot, err := p.at(".")
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
		parts = append(parts, leaf("ident", "part", part.Value, part.Span))
		end = part.Span
	}
	return branch("qualified_name", "", ast.NewSpan(first.Span.Start, end.End), parts...), nil
}

func (p *Parser) scatter() (*Node, error) {
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
	body, bodySpan, err := p.parseBlock("{", "}", p.workflowBodyElement)
	if err != nil {
		return nil, err
	}
	children := append([]*Node{leaf("ident", "name", name.Value, name.Span), tag(expr, "expression")}, body...)
	return branch("scatter", "", ast.NewSpan(startTok.Span.Start, bodySpan.End), children...), nil
}

func (p *Parser) conditional() (*Node, error) {
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
	body, bodySpan, err := p.parseBlock("{", "}", p.workflowBodyElement)
	if err != nil {
		return nil, err
	}
	children := append([]*Node{tag(expr, "expression")}, body...)
	return branch("conditional", "", ast.NewSpan(startTok.Span.Start, bodySpan.End), children...), nil
}

// ---- types ----

func (p *Parser) typeExpr() (*Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	var base *Node
	switch {
	case tok.Kind == lex.Ident && isPrimitive(tok.Value):
		p.next()
		base = leaf("primitive_type", "type", tok.Value, tok.Span)
	case tok.Kind == lex.Ident && tok.Value == "Array":
		base, err = p.arrayType()
	case tok.Kind == lex.Ident && tok.Value == "Map":
		base, err = p.mapType()
	case tok.Kind == lex.Ident && tok.Value == "Pair":
		base, err = p.pairType()
	case tok.Kind == lex.Ident:
		p.next()
		base = leaf("user_type", "type", tok.Value, tok.Span)
	default:
		return nil, ast.Grammarf("expected type, found %q at %s", tok.Value, tok.Span.Start)
	}
	if err != nil {
		return nil, err
	}
	optional, err := p.at("?")
	if err != nil {
		return nil, err
	}
	if optional {
		qTok, _ := p.next()
		return branch("optional_type", "type", ast.NewSpan(base.Span.Start, qTok.Span.End), tag(base, "inner")), nil
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

func (p *Parser) arrayType() (*Node, error) {
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
	if plus, _ := p.at("+"); plus {
		plusTok, _ := p.next()
		nonEmpty = true
		endSpan = plusTok.Span
	}
	kind := "array_type"
	if nonEmpty {
		kind = "array_type_nonempty"
	}
	return branch(kind, "type", ast.NewSpan(startTok.Span.Start, endSpan.End), tag(item, "item")), nil
}

func (p *Parser) mapType() (*Node, error) {
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
	return branch("map_type", "type", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), tag(key, "key"), tag(value, "value")), nil
}

func (p *Parser) pairType() (*Node, error) {
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
	return branch("pair_type", "type", ast.NewSpan(startTok.Span.Start, closeTok.Span.End), tag(left, "left"), tag(right, "right")), nil
}

// ---- expressions ----

func (p *Parser) expression() (*Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == lex.Ident && tok.Value == "if" {
		return p.ternary()
	}
	return p.disjunction()
}

func (p *Parser) ternary() (*Node, error) {
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
	return branch("ternary", "", ast.NewSpan(startTok.Span.Start, falseBranch.Span.End),
		tag(cond, "condition"), tag(trueBranch, "true_branch"), tag(falseBranch, "false_branch")), nil
}

func (p *Parser) binaryLevel(ops []string, next func() (*Node, error)) (*Node, error) {
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
		children := []*Node{tag(left, "left"), leaf("operator", "operator", matched, tok.Span), tag(right, "right")}
		left = branch("binary", "", innerSpan([]*Node{left, right}), children...)
	}
}

func (p *Parser) disjunction() (*Node, error) { return p.binaryLevel([]string{"||"}, p.conjunction) }
func (p *Parser) conjunction() (*Node, error) { return p.binaryLevel([]string{"&&"}, p.equality) }
func (p *Parser) equality() (*Node, error) {
	return p.binaryLevel([]string{"==", "!="}, p.comparison)
}
func (p *Parser) comparison() (*Node, error) {
	return p.binaryLevel([]string{"<=", ">=", "<", ">"}, p.math1)
}
func (p *Parser) math1() (*Node, error) { return p.binaryLevel([]string{"+", "-"}, p.math2) }
func (p *Parser) math2() (*Node, error) { return p.binaryLevel([]string{"*", "/", "%"}, p.unary) }

func (p *Parser) unary() (*Node, error) {
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
		children := []*Node{leaf("operator", "operator", tok.Value, tok.Span), tag(operand, "operand")}
		return branch("unary", "", innerSpan(children), children...), nil
	}
	return p.access()
}

func (p *Parser) access() (*Node, error) {
	base, err := p.leaf()
	if err != nil {
		return nil, err
	}
	var ops []*Node
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
			ops = append(ops, branch("index_access", "access", ast.NewSpan(tok.Span.Start, closeTok.Span.End), tag(idx, "index")))
			continue
		}
		if tok.Kind == lex.Punct && tok.Value == "." {
			p.next()
			field, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ops = append(ops, leaf("field_access", "access", field.Value, ast.NewSpan(tok.Span.Start, field.Span.End)))
			continue
		}
		break
	}
	if len(ops) == 0 {
		return base, nil
	}
	children := append([]*Node{tag(base, "collection")}, ops...)
	return branch("access", "", innerSpan(children), children...), nil
}

func (p *Parser) leaf() (*Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == lex.Ident && tok.Value == "None":
		p.next()
		return leaf("none", "", "", tok.Span), nil
	case tok.Kind == lex.Ident && tok.Value == "true":
		p.next()
		return leaf("bool", "", "true", tok.Span), nil
	case tok.Kind == lex.Ident && tok.Value == "false":
		p.next()
		return leaf("bool", "", "false", tok.Span), nil
	case tok.Kind == lex.Int:
		p.next()
		return leaf("int", "", tok.Value, tok.Span), nil
	case tok.Kind == lex.Float:
		p.next()
		return leaf("float", "", tok.Value, tok.Span), nil
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

func (p *Parser) identOrApplyOrObject() (*Node, error) {
	idTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if open, _ := p.at("("); open {
		args, span, err := p.parseBlock("(", ")", p.expression)
		if err != nil {
			return nil, err
		}
		for i, a := range args {
			args[i] = tag(a, "argument")
		}
		children := append([]*Node{leaf("ident", "callee", idTok.Value, idTok.Span)}, args...)
		return branch("apply", "", ast.NewSpan(idTok.Span.Start, span.End), children...), nil
	}
	if open, _ := p.at("{"); open {
		fields, span, err := p.parseBlock("{", "}", func() (*Node, error) {
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
			return branch("object_field", "field", ast.NewSpan(fname.Span.Start, fexpr.Span.End),
				leaf("ident", "name", fname.Value, fname.Span), tag(fexpr, "expression")), nil
		})
		if err != nil {
			return nil, err
		}
		children := append([]*Node{leaf("ident", "type_name", idTok.Value, idTok.Span)}, fields...)
		return branch("object", "", ast.NewSpan(idTok.Span.Start, span.End), children...), nil
	}
	return leaf("identifier", "", idTok.Value, idTok.Span), nil
}

func (p *Parser) groupOrPair() (*Node, error) {
	openTok, err := p.expectPunct("(")
	if err != nil {
		return nil, err
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	comma, err := p.at(",")
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
		return branch("pair_literal", "", ast.NewSpan(openTok.Span.Start, closeTok.Span.End),
			tag(first, "left"), tag(second, "right")), nil
	}
	closeTok, err := p.expectPunct(")")
	if err != nil {
		return nil, err
	}
	return branch("group", "", ast.NewSpan(openTok.Span.Start, closeTok.Span.End), tag(first, "inner")), nil
}

func (p *Parser) arrayLiteral() (*Node, error) {
	elems, span, err := p.parseBlock("[", "]", p.expression)
	if err != nil {
		return nil, err
	}
	for i, e := range elems {
		elems[i] = tag(e, "element")
	}
	return branch("array_literal", "", span, elems...), nil
}

func (p *Parser) mapLiteral() (*Node, error) {
	entries, span, err := p.parseBlock("{", "}", func() (*Node, error) {
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
		return branch("map_entry", "entry", ast.NewSpan(key.Span.Start, value.Span.End),
			tag(key, "key"), tag(value, "value")), nil
	})
	if err != nil {
		return nil, err
	}
	return branch("map_literal", "", span, entries...), nil
}

func (p *Parser) stringLiteral() (*Node, error) {
	openTok, err := p.expectPunct(`"`)
	if err != nil {
		return nil, err
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), lex.QuoteCloser('"'), true)
	if err != nil {
		return nil, err
	}
	partNodes, err := p.lowerRawParts(parts)
	if err != nil {
		return nil, err
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	endPos := p.s.Lines().Position(endOffset)
	return branch("string", "", ast.NewSpan(openTok.Span.Start, endPos), partNodes...), nil
}

func (p *Parser) quotedLiteral(rule, field string, allowPlaceholders bool) (*Node, error) {
	openTok, err := p.expectPunct(`"`)
	if err != nil {
		return nil, err
	}
	parts, endOffset, err := lex.ScanInterpolated(p.s, p.s.Offset(), lex.QuoteCloser('"'), allowPlaceholders)
	if err != nil {
		return nil, err
	}
	var text string
	for _, part := range parts {
		if part.Kind == lex.PartPlaceholder {
			return nil, ast.Grammarf("%s cannot contain placeholders, at %s", rule, part.Span.Start)
		}
		text += part.Text
	}
	if err := p.s.ResetAt(endOffset); err != nil {
		return nil, err
	}
	endPos := p.s.Lines().Position(endOffset)
	return leaf(rule, field, text, ast.NewSpan(openTok.Span.Start, endPos)), nil
}
