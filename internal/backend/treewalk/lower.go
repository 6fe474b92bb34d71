package treewalk

import (
	"github.com/ritamzico/wdlast/internal/ast"
)

// Lower walks a Node tree and builds the shared AST, applying the same
// structural validation every backend must run before handing a Document
// back to callers. Where pegtree's lowering indexes Children by position,
// this one looks children up by the Field label the parser assigned them,
// since Node's whole point is that position alone doesn't disambiguate.
func Lower(root *Node, comments *ast.Comments, source ast.DocumentSource) (*ast.Document, error) {
	if root.Kind != "document" {
		return nil, ast.Grammarf("expected document root, found %q", root.Kind)
	}
	version, err := lowerVersion(root.Child("version"))
	if err != nil {
		return nil, err
	}
	body := make([]ast.Anchor[ast.DocumentElement], 0, len(root.Children)-1)
	for _, child := range root.Children {
		if child.Field == "version" {
			continue
		}
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

func lowerVersion(n *Node) (ast.Anchor[ast.Version], error) {
	idNode := n.Child("identifier")
	id, err := ast.ParseVersionIdentifier(idNode.Value)
	if err != nil {
		return ast.Anchor[ast.Version]{}, err
	}
	v := ast.Version{Identifier: ast.NewAnchor(id, idNode.Span)}
	return ast.NewAnchor(v, n.Span), nil
}

func lowerDocumentElement(n *Node) (ast.Anchor[ast.DocumentElement], error) {
	var el ast.DocumentElement
	switch n.Kind {
	case "import":
		imp, err := lowerImport(n)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Import = &imp
	case "struct":
		st, err := lowerStruct(n)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Struct = &st
	case "task":
		task, err := lowerTask(n)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Task = &task
	case "workflow":
		wf, err := lowerWorkflow(n)
		if err != nil {
			return ast.Anchor[ast.DocumentElement]{}, err
		}
		el.Workflow = &wf
	default:
		return ast.Anchor[ast.DocumentElement]{}, ast.Grammarf("unexpected document element %q", n.Kind)
	}
	return ast.NewAnchor(el, n.Span), nil
}

func lowerImport(n *Node) (ast.Import, error) {
	uriNode := n.Child("uri")
	imp := ast.Import{URI: ast.NewAnchor(uriNode.Value, uriNode.Span)}
	if ns := n.Child("namespace"); ns != nil {
		imp.Namespace = ast.Namespace{Explicit: ptr(ast.NewAnchor(ns.Value, ns.Span))}
	} else if ns, ok := ast.NamespaceFromURI(uriNode.Value); ok {
		imp.Namespace = ns
	}
	for _, a := range n.Fields("alias") {
		from := a.Child("from")
		to := a.Child("to")
		imp.Aliases = append(imp.Aliases, ast.NewAnchor(ast.Alias{
			From: ast.NewAnchor(from.Value, from.Span),
			To:   ast.NewAnchor(to.Value, to.Span),
		}, a.Span))
	}
	return imp, nil
}

func lowerStruct(n *Node) (ast.Struct, error) {
	name := n.Child("name")
	st := ast.Struct{Name: ast.NewAnchor(name.Value, name.Span)}
	for _, f := range n.Fields("field") {
		typ, err := lowerType(f.Child("type"))
		if err != nil {
			return ast.Struct{}, err
		}
		fieldName := f.Child("name")
		st.Fields = append(st.Fields, ast.NewAnchor(ast.UnboundDeclaration{
			Type: typ,
			Name: ast.NewAnchor(fieldName.Value, fieldName.Span),
		}, f.Span))
	}
	return st, nil
}

func lowerTask(n *Node) (ast.Task, error) {
	name := n.Child("name")
	task := ast.Task{Name: ast.NewAnchor(name.Value, name.Span)}
	for _, c := range n.Children {
		if c.Field == "name" {
			continue
		}
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

func lowerTaskElement(n *Node) (ast.Anchor[ast.TaskElement], error) {
	var el ast.TaskElement
	switch n.Kind {
	case "input":
		in, err := lowerInput(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Input = &in
	case "output":
		out, err := lowerOutput(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Output = &out
	case "bound_declaration":
		decl, err := lowerBoundDeclaration(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Declaration = &decl
	case "command":
		cmd, err := lowerCommand(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Command = &cmd
	case "runtime":
		rt, err := lowerRuntime(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Runtime = &rt
	case "meta":
		m, err := lowerMeta(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.Meta = &m
	case "parameter_meta":
		m, err := lowerMeta(n)
		if err != nil {
			return ast.Anchor[ast.TaskElement]{}, err
		}
		el.ParameterMeta = &m
	default:
		return ast.Anchor[ast.TaskElement]{}, ast.Grammarf("unexpected task element %q", n.Kind)
	}
	return ast.NewAnchor(el, n.Span), nil
}

func lowerInput(n *Node) (ast.Input, error) {
	in := ast.Input{}
	for _, c := range n.Children {
		var d ast.InputDeclaration
		switch c.Kind {
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

func lowerOutput(n *Node) (ast.Output, error) {
	out := ast.Output{}
	for _, c := range n.Children {
		bd, err := lowerBoundDeclaration(c)
		if err != nil {
			return ast.Output{}, err
		}
		out.Declarations = append(out.Declarations, ast.NewAnchor(bd, c.Span))
	}
	return out, nil
}

func lowerUnboundDeclaration(n *Node) (ast.UnboundDeclaration, error) {
	typ, err := lowerType(n.Child("type"))
	if err != nil {
		return ast.UnboundDeclaration{}, err
	}
	name := n.Child("name")
	return ast.UnboundDeclaration{Type: typ, Name: ast.NewAnchor(name.Value, name.Span)}, nil
}

func lowerBoundDeclaration(n *Node) (ast.BoundDeclaration, error) {
	typ, err := lowerType(n.Child("type"))
	if err != nil {
		return ast.BoundDeclaration{}, err
	}
	name := n.Child("name")
	expr, err := lowerExpression(n.Child("expression"))
	if err != nil {
		return ast.BoundDeclaration{}, err
	}
	return ast.BoundDeclaration{Type: typ, Name: ast.NewAnchor(name.Value, name.Span), Expression: expr}, nil
}

func lowerCommand(n *Node) (ast.Command, error) {
	parts, err := lowerStringParts(n.Children)
	if err != nil {
		return ast.Command{}, err
	}
	return ast.Command{Parts: parts}, nil
}

func lowerRuntime(n *Node) (ast.Runtime, error) {
	rt := ast.Runtime{}
	for _, c := range n.Children {
		name := c.Child("name")
		expr, err := lowerExpression(c.Child("expression"))
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

func lowerMeta(n *Node) (ast.Meta, error) {
	m := ast.Meta{}
	for _, c := range n.Children {
		attr, err := lowerMetaAttribute(c)
		if err != nil {
			return ast.Meta{}, err
		}
		m.Attributes = append(m.Attributes, ast.NewAnchor(attr, c.Span))
	}
	return m, nil
}

func lowerMetaAttribute(n *Node) (ast.MetaAttribute, error) {
	name := n.Child("name")
	val, err := lowerMetaValue(n.Child("value"))
	if err != nil {
		return ast.MetaAttribute{}, err
	}
	return ast.MetaAttribute{Name: ast.NewAnchor(name.Value, name.Span), Value: val}, nil
}

func lowerMetaValue(n *Node) (ast.Anchor[ast.MetaValue], error) {
	var v ast.MetaValue
	switch n.Kind {
	case "meta_null":
		v.Null = true
	case "meta_bool":
		b := n.Value == "true"
		v.Boolean = &b
	case "meta_int":
		i, err := ast.ParseInteger(n.Value)
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v.Int = &i
	case "meta_float":
		f, err := ast.ParseFloat(n.Value)
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v.Float = &f
	case "meta_number":
		inner, err := lowerMetaValue(n.Children[0])
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v = inner.Element
		if n.Value == "-" {
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
		ms, err := lowerMetaString(n)
		if err != nil {
			return ast.Anchor[ast.MetaValue]{}, err
		}
		v.String = &ms
	case "meta_array":
		arr := ast.MetaArray{}
		for _, c := range n.Children {
			el, err := lowerMetaValue(c)
			if err != nil {
				return ast.Anchor[ast.MetaValue]{}, err
			}
			arr.Elements = append(arr.Elements, el)
		}
		v.Array = &arr
	case "meta_object":
		obj := ast.MetaObject{}
		for _, c := range n.Children {
			f, err := lowerMetaAttribute(c)
			if err != nil {
				return ast.Anchor[ast.MetaValue]{}, err
			}
			obj.Fields = append(obj.Fields, ast.NewAnchor(ast.MetaObjectField{Name: f.Name, Value: f.Value}, c.Span))
		}
		v.Object = &obj
	default:
		return ast.Anchor[ast.MetaValue]{}, ast.Grammarf("unexpected meta value %q", n.Kind)
	}
	return ast.NewAnchor(v, n.Span), nil
}

func lowerMetaString(n *Node) (ast.MetaString, error) {
	ms := ast.MetaString{}
	for _, c := range n.Children {
		var part ast.MetaStringPart
		switch c.Kind {
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

func lowerWorkflow(n *Node) (ast.Workflow, error) {
	name := n.Child("name")
	wf := ast.Workflow{Name: ast.NewAnchor(name.Value, name.Span)}
	for _, c := range n.Children {
		if c.Field == "name" {
			continue
		}
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

func lowerWorkflowElement(n *Node) (ast.Anchor[ast.WorkflowElement], error) {
	var el ast.WorkflowElement
	switch n.Kind {
	case "input":
		in, err := lowerInput(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Input = &in
	case "output":
		out, err := lowerOutput(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Output = &out
	case "bound_declaration":
		decl, err := lowerBoundDeclaration(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Declaration = &decl
	case "meta":
		m, err := lowerMeta(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Meta = &m
	case "parameter_meta":
		m, err := lowerMeta(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.ParameterMeta = &m
	case "call":
		c, err := lowerCall(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Call = &c
	case "scatter":
		sc, err := lowerScatter(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Scatter = &sc
	case "conditional":
		cond, err := lowerConditional(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowElement]{}, err
		}
		el.Conditional = &cond
	default:
		return ast.Anchor[ast.WorkflowElement]{}, ast.Grammarf("unexpected workflow element %q", n.Kind)
	}
	return ast.NewAnchor(el, n.Span), nil
}

func lowerWorkflowBodyElement(n *Node) (ast.Anchor[ast.WorkflowBodyElement], error) {
	var el ast.WorkflowBodyElement
	switch n.Kind {
	case "bound_declaration":
		decl, err := lowerBoundDeclaration(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Declaration = &decl
	case "call":
		c, err := lowerCall(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Call = &c
	case "scatter":
		sc, err := lowerScatter(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Scatter = &sc
	case "conditional":
		cond, err := lowerConditional(n)
		if err != nil {
			return ast.Anchor[ast.WorkflowBodyElement]{}, err
		}
		el.Conditional = &cond
	default:
		return ast.Anchor[ast.WorkflowBodyElement]{}, ast.Grammarf("unexpected workflow body element %q", n.Kind)
	}
	return ast.NewAnchor(el, n.Span), nil
}

func lowerCall(n *Node) (ast.Call, error) {
	qn, err := lowerQualifiedName(n.Child("target"))
	if err != nil {
		return ast.Call{}, err
	}
	call := ast.Call{Target: qn}
	if alias := n.Child("alias"); alias != nil {
		call.Alias = ptr(ast.NewAnchor(alias.Value, alias.Span))
	}
	if inputsNode := n.Child("inputs"); inputsNode != nil {
		inputs := make([]ast.Anchor[ast.CallInput], 0, len(inputsNode.Children))
		for _, c := range inputsNode.Children {
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

func lowerCallInput(n *Node) (ast.CallInput, error) {
	if n.Kind == "call_input" {
		return ast.CallInput{Name: ast.NewAnchor(n.Value, n.Span)}, nil
	}
	name := n.Child("name")
	expr, err := lowerExpression(n.Child("expression"))
	if err != nil {
		return ast.CallInput{}, err
	}
	return ast.CallInput{Name: ast.NewAnchor(name.Value, name.Span), Expression: &expr}, nil
}

func lowerQualifiedName(n *Node) (ast.Anchor[ast.QualifiedName], error) {
	qn := ast.QualifiedName{}
	for _, c := range n.Children {
		qn.Parts = append(qn.Parts, ast.NewAnchor(c.Value, c.Span))
	}
	return ast.NewAnchor(qn, n.Span), nil
}

func lowerScatter(n *Node) (ast.Scatter, error) {
	name := n.Child("name")
	expr, err := lowerExpression(n.Child("expression"))
	if err != nil {
		return ast.Scatter{}, err
	}
	sc := ast.Scatter{Name: ast.NewAnchor(name.Value, name.Span), Expression: expr}
	for _, c := range n.Children {
		if c.Field == "name" || c.Field == "expression" {
			continue
		}
		el, err := lowerWorkflowBodyElement(c)
		if err != nil {
			return ast.Scatter{}, err
		}
		sc.Body = append(sc.Body, el)
	}
	return sc, nil
}

func lowerConditional(n *Node) (ast.Conditional, error) {
	expr, err := lowerExpression(n.Child("expression"))
	if err != nil {
		return ast.Conditional{}, err
	}
	cond := ast.Conditional{Expression: expr}
	for _, c := range n.Children {
		if c.Field == "expression" {
			continue
		}
		el, err := lowerWorkflowBodyElement(c)
		if err != nil {
			return ast.Conditional{}, err
		}
		cond.Body = append(cond.Body, el)
	}
	return cond, nil
}

// ---- types ----

func lowerType(n *Node) (ast.Anchor[ast.Type], error) {
	var t ast.Type
	switch n.Kind {
	case "primitive_type":
		k, err := parsePrimitiveKind(n.Value)
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Primitive = &k
	case "user_type":
		name := n.Value
		t.User = &name
	case "array_type", "array_type_nonempty":
		item, err := lowerType(n.Child("item"))
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Array = &ast.ArrayType{Item: &item, NonEmpty: n.Kind == "array_type_nonempty"}
	case "map_type":
		key, err := lowerType(n.Child("key"))
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		val, err := lowerType(n.Child("value"))
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Map = &ast.MapType{Key: &key, Value: &val}
	case "pair_type":
		left, err := lowerType(n.Child("left"))
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		right, err := lowerType(n.Child("right"))
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Pair = &ast.PairType{Left: &left, Right: &right}
	case "optional_type":
		inner, err := lowerType(n.Child("inner"))
		if err != nil {
			return ast.Anchor[ast.Type]{}, err
		}
		t.Optional = &inner
		return ast.NewAnchor(t, n.Span), nil
	default:
		return ast.Anchor[ast.Type]{}, ast.Grammarf("unexpected type node %q", n.Kind)
	}
	return ast.NewAnchor(t, n.Span), nil
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

func lowerExpression(n *Node) (ast.Anchor[ast.Expression], error) {
	var e ast.Expression
	switch n.Kind {
	case "none":
		e.None = true
	case "bool":
		b := n.Value == "true"
		e.Boolean = &b
	case "int":
		i, err := ast.ParseInteger(n.Value)
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Int = &i
	case "float":
		f, err := ast.ParseFloat(n.Value)
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Float = &f
	case "identifier":
		name := n.Value
		e.Identifier = &name
	case "string":
		parts, err := lowerStringParts(n.Children)
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.String = &ast.StringLiteral{Parts: parts}
	case "array_literal":
		arr := ast.ArrayLiteral{}
		for _, c := range n.Children {
			el, err := lowerExpression(c)
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			arr.Elements = append(arr.Elements, el)
		}
		e.Array = &arr
	case "map_literal":
		m := ast.MapLiteral{}
		for _, c := range n.Children {
			key, err := lowerExpression(c.Child("key"))
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			val, err := lowerExpression(c.Child("value"))
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			m.Entries = append(m.Entries, ast.NewAnchor(ast.MapEntry{Key: key, Value: val}, c.Span))
		}
		e.Map = &m
	case "pair_literal":
		left, err := lowerExpression(n.Child("left"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		right, err := lowerExpression(n.Child("right"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Pair = &ast.PairLiteral{Left: &left, Right: &right}
	case "object":
		name := n.Child("type_name")
		obj := ast.ObjectLiteral{TypeName: ast.NewAnchor(name.Value, name.Span)}
		for _, c := range n.Fields("field") {
			fname := c.Child("name")
			fexpr, err := lowerExpression(c.Child("expression"))
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
		opNode := n.Child("operator")
		op, ok := ast.ParseUnaryOperator(opNode.Value)
		if !ok {
			return ast.Anchor[ast.Expression]{}, ast.Grammarf("unknown unary operator %q", opNode.Value)
		}
		operand, err := lowerExpression(n.Child("operand"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Unary = &ast.Unary{Operator: op, Expression: &operand}
	case "binary":
		opNode := n.Child("operator")
		op, ok := ast.ParseBinaryOperator(opNode.Value)
		if !ok {
			return ast.Anchor[ast.Expression]{}, ast.Grammarf("unknown binary operator %q", opNode.Value)
		}
		left, err := lowerExpression(n.Child("left"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		right, err := lowerExpression(n.Child("right"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Binary = &ast.Binary{Operator: op, Left: &left, Right: &right}
	case "apply":
		name := n.Child("callee")
		apply := ast.Apply{Name: ast.NewAnchor(name.Value, name.Span)}
		for _, c := range n.Fields("argument") {
			arg, err := lowerExpression(c)
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			apply.Arguments = append(apply.Arguments, arg)
		}
		e.Apply = &apply
	case "access":
		coll, err := lowerExpression(n.Child("collection"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		acc := ast.Access{Collection: &coll}
		for _, c := range n.Fields("access") {
			op, err := lowerAccessOperation(c)
			if err != nil {
				return ast.Anchor[ast.Expression]{}, err
			}
			acc.Accesses = append(acc.Accesses, ast.NewAnchor(op, c.Span))
		}
		e.Access = &acc
	case "ternary":
		cond, err := lowerExpression(n.Child("condition"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		tb, err := lowerExpression(n.Child("true_branch"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		fb, err := lowerExpression(n.Child("false_branch"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Ternary = &ast.Ternary{Condition: &cond, TrueBranch: &tb, FalseBranch: &fb}
	case "group":
		inner, err := lowerExpression(n.Child("inner"))
		if err != nil {
			return ast.Anchor[ast.Expression]{}, err
		}
		e.Group = &inner
	default:
		return ast.Anchor[ast.Expression]{}, ast.Grammarf("unexpected expression node %q", n.Kind)
	}
	return ast.NewAnchor(e, n.Span), nil
}

func lowerAccessOperation(n *Node) (ast.AccessOperation, error) {
	if n.Kind == "field_access" {
		name := n.Value
		return ast.AccessOperation{Field: &name}, nil
	}
	idx, err := lowerExpression(n.Child("index"))
	if err != nil {
		return ast.AccessOperation{}, err
	}
	e := idx.Element
	return ast.AccessOperation{Index: &e}, nil
}

func lowerStringParts(children []*Node) ([]ast.Anchor[ast.StringPart], error) {
	parts := make([]ast.Anchor[ast.StringPart], 0, len(children))
	for _, c := range children {
		var part ast.StringPart
		switch c.Kind {
		case "content":
			s := c.Value
			part.Content = &s
		case "escape":
			s := c.Value
			part.Escape = &s
		case "placeholder":
			expr, err := lowerExpression(c.Child("expression"))
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
