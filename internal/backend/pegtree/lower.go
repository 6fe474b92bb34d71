package pegtree

import (
	"github.com/ritamzico/wdlast/internal/ast"
)

// Lower walks a Pair tree and builds the shared AST, applying the same
// structural validation every backend must run before handing a Document
// back to callers.
func Lower(root *Pair, comments *ast.Comments, source ast.DocumentSource) (*ast.Document, error) {
	if root.Rule != "document" {
		return nil, ast.Grammarf("expected document root, found %q", root.Rule)
	}
	version, err := lowerVersion(root.Children[0])
	if err != nil {
		return nil, err
	}
	body := make([]ast.Anchor[ast.DocumentElement], 0, len(root.Children)-1)
	for _, child := range root.Children[1:] {
		el, err := lowerDocumentElement(child)
		if err != nil {
			return nil, err
		}
		body = append(body, el)
	}
	doc := &ast.Document{
		Source:   source,
		Version:  version,
		Body:     body,
		Comments: comments,
	}
	if err := ast.ValidateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func lowerVersion(p *Pair) (ast.Anchor[ast.Version], error) {
	idPair := p.Children[0]
	id, err := ast.ParseVersionIdentifier(idPair.Value)
	if err != nil {
		return ast.Anchor[ast.Version]{}, err
	}
	v := ast.Version{Identifier: ast.NewAnchor(id, idPair.Span)}
	return ast.NewAnchor(v, p.Span), nil
}

func lowerDocumentElement(p *Pair) (ast.Anchor[ast.DocumentElement], error) {
	var el ast.DocumentElement
	switch p.Rule {
	case "import":
		imp, err := lowerImport(p)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Import = &imp
	case "struct":
		st, err := lowerStruct(p)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Struct = &st
	case "task":
		task, err := lowerTask(p)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Task = &task
	case "workflow":
		wf, err := lowerWorkflow(p)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Workflow = &wf
	default:
		return ast.Anchor[ast.DocumentElement]{}, ast.Grammarf("unexpected document element %q", p.Rule)
	}
	return ast.NewAnchor(el, p.Span), nil
}

func lowerImport(p *Pair) (ast.Import, error) {
	uriPair := p.Children[0]
	imp := ast.Import{URI: ast.NewAnchor(uriPair.Value, uriPair.Span)}
	rest := p.Children[1:]
	if len(rest) > 0 && rest[0].Rule == "namespace" {
		imp.Namespace = ast.Namespace{Explicit: ptr(ast.NewAnchor(rest[0].Value, rest[0].Span))}
		rest = rest[1:]
	} else if ns, ok := ast.NamespaceFromURI(uriPair.Value); ok {
		imp.Namespace = ns
	}
	for _, a := range rest {
		if a.Rule != "alias" {
			continue
		}
		from := a.Children[0]
		to := a.Children[1]
		imp.Aliases = append(imp.Aliases, ast.NewAnchor(ast.Alias{
			From: ast.NewAnchor(from.Value, from.Span),
			To:   ast.NewAnchor(to.Value, to.Span),
		}, a.Span))
	}
	return imp, nil
}

func lowerStruct(p *Pair) (ast.Struct, error) {
	name := p.Children[0]
	st := ast.Struct{Name: ast.NewAnchor(name.Value, name.Span)}
	for _, f := range p.Children[1:] {
		typ, err := lowerType(f.Children[0])
		if err != nil {
			return ast.Struct{}, err
		}
		field := f.Children[1]
		st.Fields = append(st.Fields, ast.NewAnchor(ast.UnboundDeclaration{
			Type: typ,
			Name: ast.NewAnchor(field.Value, field.Span),
		}, f.Span))
	}
	return st, nil
}

func lowerTask(p *Pair) (ast.Task, error) {
	name := p.Children[0]
	task := ast.Task{Name: ast.NewAnchor(name.Value, name.Span)}
	for _, c := range p.Children[1:] {
		el, err := lowerTaskElement(c)
		if err != nil {
			return ast.Task{}, err
		}
		task.Body = append(task.Body, el)
	}
	if err := ast.ValidateTask(&task); err != nil {
		return ast.Task{}, err
	}
	return task, nil
}

func lowerTaskElement(p *Pair) (ast.Anchor[ast.TaskElement], error) {
	var el ast.TaskElement
	switch p.Rule {
	case "input":
		in, err := lowerInput(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Input = &in
	case "output":
		out, err := lowerOutput(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Output = &out
	case "bound_declaration":
		decl, err := lowerBoundDeclaration(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Declaration = &decl
	case "command":
		cmd, err := lowerCommand(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Command = &cmd
	case "runtime":
		rt, err := lowerRuntime(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Runtime = &rt
	case "meta":
		m, err := lowerMeta(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Meta = &m
	case "parameter_meta":
		m, err := lowerMeta(p)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.ParameterMeta = &m
	default:
		return ast.Anchor[ast.TaskElement]{}, ast.Grammarf("unexpected task element %q", p.Rule)
	}
	return ast.NewAnchor(el, p.Span), nil
}

func lowerInput(p *Pair) (ast.Input, error) {
	in := ast.Input{}
	for _, c := range p.Children {
		var d ast.InputDeclaration
		switch c.Rule {
		case "bound_declaration":
			bd, err := lowerBoundDeclaration(c)
			if err != nil {
				return ast.Input{}, err
			}
			d.Bound = &bd
		case "unbound_declaration":
			ud, err := lowerUnboundDeclaration(c)
			if err != nil {
				return ast.Input{}, err
			}
			d.Unbound = &ud
		}
		in.Declarations = append(in.Declarations, ast.NewAnchor(d, c.Span))
	}
	return in, nil
}

func lowerOutput(p *Pair) (ast.Output, error) {
	out := ast.Output{}
	for _, c := range p.Children {
		bd, err := lowerBoundDeclaration(c)
		if err != nil {
			return ast.Output{}, err
		}
		out.Declarations = append(out.Declarations, ast.NewAnchor(bd, c.Span))
	}
	return out, nil
}

func lowerUnboundDeclaration(p *Pair) (ast.UnboundDeclaration, error) {
	typ, err := lowerType(p.Children[0])
	if err != nil {
		return ast.UnboundDeclaration{}, err
	}
	name := p.Children[1]
	return ast.UnboundDeclaration{Type: typ, Name: ast.NewAnchor(name.Value, name.Span)}, nil
}

func lowerBoundDeclaration(p *Pair) (ast.BoundDeclaration, error) {
	typ, err := lowerType(p.Children[0])
	if err != nil {
		return ast.BoundDeclaration{}, err
	}
	name := p.Children[1]
	expr, err := lowerExpression(p.Children[2])
	if err != nil {
		return ast.BoundDeclaration{}, err
	}
	return ast.BoundDeclaration{Type: typ, Name: ast.NewAnchor(name.Value, name.Span), Expression: expr}, nil
}

func lowerCommand(p *Pair) (ast.Command, error) {
	parts, err := lowerStringParts(p.Children)
	if err != nil {
		return ast.Command{}, err
	}
	return ast.Command{Parts: parts}, nil
}

func lowerRuntime(p *Pair) (ast.Runtime, error) {
	rt := ast.Runtime{}
	for _, c := range p.Children {
		name := c.Children[0]
		expr, err := lowerExpression(c.Children[1])
		if err != nil {
			return ast.Runtime{}, err
		}
		rt.Attributes = append(rt.Attributes, ast.NewAnchor(ast.RuntimeAttribute{
			Name:       ast.NewAnchor(name.Value, name.Span),
			Expression: expr,
		}, c.Span))
	}
	return rt, nil
}

func lowerMeta(p *Pair) (ast.Meta, error) {
	m := ast.Meta{}
	for _, c := range p.Children {
		attr, err := lowerMetaAttribute(c)
		if err != nil {
			return ast.Meta{}, err
		}
		m.Attributes = append(m.Attributes, ast.NewAnchor(attr, c.Span))
	}
	return m, nil
}

func lowerMetaAttribute(p *Pair) (ast.MetaAttribute, error) {
	name := p.Children[0]
	val, err := lowerMetaValue(p.Children[1])
	if err != nil {
		return ast.MetaAttribute{}, err
	}
	return ast.MetaAttribute{Name: ast.NewAnchor(name.Value, name.Span), Value: val}, nil
}

func lowerMetaValue(p *Pair) (ast.Anchor[ast.MetaValue], error) {
	var v ast.MetaValue
	switch p.Rule {
	case "meta_null":
		v.Null = true
	case "meta_bool":
		b := p.Value == "true"
		v.Boolean = &b
	case "meta_int":
		i, err := ast.ParseInteger(p.Value)
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v.Int = &i
	case "meta_float":
		f, err := ast.ParseFloat(p.Value)
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v.Float = &f
	case "meta_number":
		inner, err := lowerMetaValue(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v = inner.Element
		if p.Value == "-" {
			switch {
			case v.Int != nil:
				negated := v.Int.Negate()
				v.Int = &negated
			case v.Float != nil:
				negated := v.Float.Negate()
				v.Float = &negated
			}
		}
	case "meta_string":
		ms, err := lowerMetaString(p)
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v.String = &ms
	case "meta_array":
		arr := ast.MetaArray{}
		for _, c := range p.Children {
			el, err := lowerMetaValue(c)
			if err != nil {
				return ast.Anchor[ast.MetaValue]{}, err
			}
			arr.Elements = append(arr.Elements, el)
		}
		v.Array = &arr
	case "meta_object":
		obj := ast.MetaObject{}
		for _, c := range p.Children {
			f, err := lowerMetaAttribute(c)
			if err != nil {
				return ast.Anchor[ast.MetaValue]{}, err
			}
			obj.Fields = append(obj.Fields, ast.NewAnchor(ast.MetaObjectField{Name: f.Name, Value: f.Value}, c.Span))
		}
		v.Object = &obj
	default:
		return ast.Anchor[ast.MetaValue]{}, ast.Grammarf("unexpected meta value %q", p.Rule)
	}
	return ast.NewAnchor(v, p.Span), nil
}

func lowerMetaString(p *Pair) (ast.MetaString, error) {
	ms := ast.MetaString{}
	for _, c := range p.Children {
		var part ast.MetaStringPart
		switch c.Rule {
		case "content":
			s := c.Value
			part.Content = &s
		case "escape":
			s := c.Value
			part.Escape = &s
		}
		ms.Parts = append(ms.Parts, ast.NewAnchor(part, c.Span))
	}
	return ms, nil
}

// ---- workflow ----

func lowerWorkflow(p *Pair) (ast.Workflow, error) {
	name := p.Children[0]
	wf := ast.Workflow{Name: ast.NewAnchor(name.Value, name.Span)}
	for _, c := range p.Children[1:] {
		el, err := lowerWorkflowElement(c)
		if err != nil {
			return ast.Workflow{}, err
		}
		wf.Body = append(wf.Body, el)
	}
	if err := ast.ValidateWorkflow(&wf); err != nil {
		return ast.Workflow{}, err
	}
	return wf, nil
}

func lowerWorkflowElement(p *Pair) (ast.Anchor[ast.WorkflowElement], error) {
	var el ast.WorkflowElement
	switch p.Rule {
	case "input":
		in, err := lowerInput(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Input = &in
	case "output":
		out, err := lowerOutput(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Output = &out
	case "bound_declaration":
		decl, err := lowerBoundDeclaration(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Declaration = &decl
	case "meta":
		m, err := lowerMeta(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Meta = &m
	case "parameter_meta":
		m, err := lowerMeta(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.ParameterMeta = &m
	case "call":
		c, err := lowerCall(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Call = &c
	case "scatter":
		sc, err := lowerScatter(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Scatter = &sc
	case "conditional":
		cond, err := lowerConditional(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Conditional = &cond
	default:
		return ast.Anchor[ast.WorkflowElement]{}, ast.Grammarf("unexpected workflow element %q", p.Rule)
	}
	return ast.NewAnchor(el, p.Span), nil
}

func lowerWorkflowBodyElement(p *Pair) (ast.Anchor[ast.WorkflowBodyElement], error) {
	var el ast.WorkflowBodyElement
	switch p.Rule {
	case "bound_declaration":
		decl, err := lowerBoundDeclaration(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Declaration = &decl
	case "call":
		c, err := lowerCall(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Call = &c
	case "scatter":
		sc, err := lowerScatter(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Scatter = &sc
	case "conditional":
		cond, err := lowerConditional(p)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Conditional = &cond
	default:
		return ast.Anchor[ast.WorkflowBodyElement]{}, ast.Grammarf("unexpected workflow body element %q", p.Rule)
	}
	return ast.NewAnchor(el, p.Span), nil
}

func lowerCall(p *Pair) (ast.Call, error) {
	qn, err := lowerQualifiedName(p.Children[0])
	if err != nil {
		return ast.Call{}, err
	}
	call := ast.Call{Target: qn}
	rest := p.Children[1:]
	if len(rest) > 0 && rest[0].Rule == "alias" {
		call.Alias = ptr(ast.NewAnchor(rest[0].Value, rest[0].Span))
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0].Rule == "call_inputs" {
		inputs := make([]ast.Anchor[ast.CallInput], 0, len(rest[0].Children))
		for _, c := range rest[0].Children {
			ci, err := lowerCallInput(c)
			if err != nil {
				return ast.Call{}, err
			}
			inputs = append(inputs, ast.NewAnchor(ci, c.Span))
		}
		call.Inputs = &inputs
	}
	return call, nil
}

func lowerCallInput(p *Pair) (ast.CallInput, error) {
	if p.Rule == "call_input" {
		return ast.CallInput{Name: ast.NewAnchor(p.Value, p.Span)}, nil
	}
	name := p.Children[0]
	expr, err := lowerExpression(p.Children[1])
	if err != nil {
		return ast.CallInput{}, err
	}
	return ast.CallInput{Name: ast.NewAnchor(name.Value, name.Span), Expression: &expr}, nil
}

func lowerQualifiedName(p *Pair) (ast.Anchor[ast.QualifiedName], error) {
	qn := ast.QualifiedName{}
	for _, c := range p.Children {
		qn.Parts = append(qn.Parts, ast.NewAnchor(c.Value, c.Span))
	}
	return ast.NewAnchor(qn, p.Span), nil
}

func lowerScatter(p *Pair) (ast.Scatter, error) {
	name := p.Children[0]
	expr, err := lowerExpression(p.Children[1])
	if err != nil {
		return ast.Scatter{}, err
	}
	sc := ast.Scatter{Name: ast.NewAnchor(name.Value, name.Span), Expression: expr}
	for _, c := range p.Children[2:] {
		el, err := lowerWorkflowBodyElement(c)
		if err != nil {
			return ast.Scatter{}, err
		}
		sc.Body = append(sc.Body, el)
	}
	return sc, nil
}

func lowerConditional(p *Pair) (ast.Conditional, error) {
	expr, err := lowerExpression(p.Children[0])
	if err != nil {
		return ast.Conditional{}, err
	}
	cond := ast.Conditional{Expression: expr}
	for _, c := range p.Children[1:] {
		el, err := lowerWorkflowBodyElement(c)
		if err != nil {
			return ast.Conditional{}, err
		}
		cond.Body = append(cond.Body, el)
	}
	return cond, nil
}

// ---- types ----

func lowerType(p *Pair) (ast.Anchor[ast.Type], error) {
	var t ast.Type
	switch p.Rule {
	case "primitive_type":
		k, err := parsePrimitiveKind(p.Value)
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Primitive = &k
	case "user_type":
		name := p.Value
		t.User = &name
	case "array_type", "array_type_nonempty":
		item, err := lowerType(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Array = &ast.ArrayType{Item: &item, NonEmpty: p.Rule == "array_type_nonempty"}
	case "map_type":
		key, err := lowerType(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		val, err := lowerType(p.Children[1])
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Map = &ast.MapType{Key: &key, Value: &val}
	case "pair_type":
		left, err := lowerType(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		right, err := lowerType(p.Children[1])
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Pair = &ast.PairType{Left: &left, Right: &right}
	case "optional_type":
		inner, err := lowerType(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Optional = &inner
		return ast.NewAnchor(t, p.Span), nil
	default:
		return ast.Anchor[ast.Type]{}, ast.Grammarf("unexpected type node %q", p.Rule)
	}
	return ast.NewAnchor(t, p.Span), nil
}

func parsePrimitiveKind(name string) (ast.PrimitiveKind, error) {
	switch name {
	case "Boolean":
		return ast.Boolean, nil
	case "Int":
		return ast.Int, nil
	case "Float":
		return ast.FloatType, nil
	case "String":
		return ast.StringType, nil
	case "File":
		return ast.File, nil
	case "Object":
		return ast.ObjectType, nil
	default:
		return 0, ast.Grammarf("unknown primitive type %q", name)
	}
}

// ---- expressions ----

func lowerExpression(p *Pair) (ast.Anchor[ast.Expression], error) {
	var e ast.Expression
	switch p.Rule {
	case "none":
		e.None = true
	case "bool":
		b := p.Value == "true"
		e.Boolean = &b
	case "int":
		i, err := ast.ParseInteger(p.Value)
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Int = &i
	case "float":
		f, err := ast.ParseFloat(p.Value)
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Float = &f
	case "identifier":
		name := p.Value
		e.Identifier = &name
	case "string":
		parts, err := lowerStringParts(p.Children)
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.String = &ast.StringLiteral{Parts: parts}
	case "array_literal":
		arr := ast.ArrayLiteral{}
		for _, c := range p.Children {
			el, err := lowerExpression(c)
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			arr.Elements = append(arr.Elements, el)
		}
		e.Array = &arr
	case "map_literal":
		m := ast.MapLiteral{}
		for _, c := range p.Children {
			key, err := lowerExpression(c.Children[0])
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			val, err := lowerExpression(c.Children[1])
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			m.Entries = append(m.Entries, ast.NewAnchor(ast.MapEntry{Key: key, Value: val}, c.Span))
		}
		e.Map = &m
	case "pair_literal":
		left, err := lowerExpression(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		right, err := lowerExpression(p.Children[1])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Pair = &ast.PairLiteral{Left: &left, Right: &right}
	case "object":
		name := p.Children[0]
		obj := ast.ObjectLiteral{TypeName: ast.NewAnchor(name.Value, name.Span)}
		for _, c := range p.Children[1:] {
			fname := c.Children[0]
			fexpr, err := lowerExpression(c.Children[1])
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			obj.Fields = append(obj.Fields, ast.NewAnchor(ast.ObjectField{
				Name:       ast.NewAnchor(fname.Value, fname.Span),
				Expression: fexpr,
			}, c.Span))
		}
		e.Object = &obj
	case "unary":
		op, ok := ast.ParseUnaryOperator(p.Children[0].Value)
		if !ok {
			return ast.Anchor[ast.Expression]{}, ast.Grammarf("unknown unary operator %q", p.Children[0].Value)
		}
		operand, err := lowerExpression(p.Children[1])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Unary = &ast.Unary{Operator: op, Expression: &operand}
	case "binary":
		op, ok := ast.ParseBinaryOperator(p.Children[1].Value)
		if !ok {
			return ast.Anchor[ast.Expression]{}, ast.Grammarf("unknown binary operator %q", p.Children[1].Value)
		}
		left, err := lowerExpression(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		right, err := lowerExpression(p.Children[2])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Binary = &ast.Binary{Operator: op, Left: &left, Right: &right}
	case "apply":
		name := p.Children[0]
		apply := ast.Apply{Name: ast.NewAnchor(name.Value, name.Span)}
		for _, c := range p.Children[1:] {
			arg, err := lowerExpression(c)
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			apply.Arguments = append(apply.Arguments, arg)
		}
		e.Apply = &apply
	case "access":
		coll, err := lowerExpression(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		acc := ast.Access{Collection: &coll}
		for _, c := range p.Children[1:] {
			op, err := lowerAccessOperation(c)
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			acc.Accesses = append(acc.Accesses, ast.NewAnchor(op, c.Span))
		}
		e.Access = &acc
	case "ternary":
		cond, err := lowerExpression(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		tb, err := lowerExpression(p.Children[1])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		fb, err := lowerExpression(p.Children[2])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Ternary = &ast.Ternary{Condition: &cond, TrueBranch: &tb, FalseBranch: &fb}
	case "group":
		inner, err := lowerExpression(p.Children[0])
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Group = &inner
	default:
		return ast.Anchor[ast.Expression]{}, ast.Grammarf("unexpected expression node %q", p.Rule)
	}
	return ast.NewAnchor(e, p.Span), nil
}

func lowerAccessOperation(p *Pair) (ast.AccessOperation, error) {
	if p.Rule == "field_access" {
		name := p.Value
		return ast.AccessOperation{Field: &name}, nil
	}
	idx, err := lowerExpression(p.Children[0])
	if err != nil {
		return ast.AccessOperation{}, err
	}
	e := idx.Element
	return ast.AccessOperation{Index: &e}, nil
}

func lowerStringParts(children []*Pair) ([]ast.Anchor[ast.StringPart], error) {
	parts := make([]ast.Anchor[ast.StringPart], 0, len(children))
	for _, c := range children {
		var part ast.StringPart
		switch c.Rule {
		case "content":
			s := c.Value
			part.Content = &s
		case "escape":
			s := c.Value
			part.Escape = &s
		case "placeholder":
			expr, err := lowerExpression(c.Children[0])
			if err != nil {
				return nil, err
			}
			part.Placeholder = &expr.Element
		}
		parts = append(parts, ast.NewAnchor(part, c.Span))
	}
	return parts, nil
}

func ptr[T any](v T) *T { return &v }
