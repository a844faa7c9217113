package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/reflguard/internal/generic"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/typename"
)

// maxDepth bounds how many local bindings are followed for one value.
const maxDepth = 16

// memberBodyKinds are the nodes whose bodies own local variables.
var memberBodyKinds = map[string]bool{
	"method_declaration":              true,
	"constructor_declaration":         true,
	"destructor_declaration":          true,
	"operator_declaration":            true,
	"conversion_operator_declaration": true,
	"property_declaration":            true,
	"indexer_declaration":             true,
	"event_declaration":               true,
	"local_function_statement":        true,
}

// binding is what is known about a name at a use.
type binding struct {
	found bool
	// typeNode is the declared type, nil for var or unknown.
	typeNode *sitter.Node
	// value is the only expression ever assigned, when there is exactly one.
	value *sitter.Node
}

// bind looks id up among the locals and parameters of the enclosing member
// and then the fields of the enclosing type. A value is reported only for
// names assigned exactly once and never passed by reference.
func (x *extractor) bind(id *sitter.Node) binding {
	name := x.f.text(id)
	body := x.body(id)
	key := bindKey{body: keyOf(body), name: name}
	if b, ok := x.bindings[key]; ok {
		return b
	}
	b := x.bindLocal(body, name)
	if !b.found {
		b = x.bindField(id, name)
	}
	x.bindings[key] = b
	return b
}

type bindKey struct {
	body nodeKey
	name string
}

// body returns the member declaration enclosing n, or the compilation
// unit for top-level statements.
func (x *extractor) body(n *sitter.Node) *sitter.Node {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if memberBodyKinds[cur.Type()] {
			return cur
		}
		if typeDeclKinds[cur.Type()] {
			return cur
		}
	}
	return x.f.tree.RootNode()
}

func (x *extractor) bindLocal(body *sitter.Node, name string) binding {
	var b binding
	defs := 0
	byRef := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "variable_declarator":
			if x.f.nameOf(n) == name {
				b.found = true
				defs++
				b.value = declaratorValue(n)
				if decl := n.Parent(); decl != nil && decl.Type() == "variable_declaration" {
					b.typeNode = field(decl, "type")
				}
				if b.value == nil {
					defs--
				}
			}
		case "parameter":
			if x.f.nameOf(n) == name {
				b.found = true
				b.typeNode = field(n, "type")
				if b.typeNode == nil {
					b.typeNode = typeChild(n)
				}
				// A parameter's value comes from the caller.
				byRef = true
			}
		case "foreach_statement", "catch_declaration", "declaration_expression":
			if x.f.text(field(n, "left", "name")) == name {
				b.found = true
				b.typeNode = field(n, "type")
				byRef = true
			}
		case "assignment_expression":
			if left := unwrap(field(n, "left")); left != nil && left.Type() == "identifier" && x.f.text(left) == name {
				defs++
				op := operator(n)
				if o := field(n, "operator"); o != nil && o.IsNamed() {
					op = x.f.text(o)
				}
				if op == "=" {
					b.value = field(n, "right")
				} else {
					byRef = true
				}
			}
		case "prefix_unary_expression", "postfix_unary_expression":
			if op := operator(n); op == "++" || op == "--" {
				if t := unwrap(firstNamed(n)); t != nil && x.f.text(t) == name {
					byRef = true
				}
			}
		case "argument":
			if hasToken(n, "ref") || hasToken(n, "out") {
				if e := unwrap(lastNamed(n)); e != nil && x.f.text(e) == name {
					byRef = true
				}
			}
		}
		for _, c := range namedChildren(n) {
			if typeDeclKinds[c.Type()] || (typeDeclKinds[body.Type()] && memberBodyKinds[c.Type()]) {
				continue
			}
			walk(c)
		}
	}
	walk(body)
	if byRef || defs != 1 {
		b.value = nil
	}
	return b
}

func declaratorValue(n *sitter.Node) *sitter.Node {
	if eq := childOfType(n, "equals_value_clause"); eq != nil {
		return lastNamed(eq)
	}
	if hasToken(n, "=") {
		return lastNamed(n)
	}
	return nil
}

// bindField finds a field of an enclosing type. Only const and readonly
// fields carry their initializer as a value.
func (x *extractor) bindField(id *sitter.Node, name string) binding {
	for d := x.f.enclosingDecl(id); d != nil; d = d.parent {
		for _, fd := range childrenOfType(childOfType(d.node, "declaration_list"), "field_declaration") {
			decl := childOfType(fd, "variable_declaration")
			for _, v := range childrenOfType(decl, "variable_declarator") {
				if x.f.nameOf(v) != name {
					continue
				}
				b := binding{found: true, typeNode: field(decl, "type")}
				mods := modifiers(fd, x.f.Source)
				if mods["const"] || mods["readonly"] {
					b.value = declaratorValue(v)
				}
				return b
			}
		}
	}
	return binding{}
}

// valueOf follows identifiers to their single assigned value.
func (x *extractor) valueOf(n *sitter.Node, depth int) *sitter.Node {
	n = unwrap(n)
	for n != nil && n.Type() == "identifier" && depth < maxDepth {
		b := x.bind(n)
		if b.value == nil {
			return n
		}
		n = unwrap(b.value)
		depth++
	}
	return n
}

// staticType returns the declared or evident type of an expression.
func (x *extractor) staticType(n *sitter.Node, depth int) *model.Type {
	n = unwrap(n)
	if n == nil || depth > maxDepth {
		return nil
	}
	e := x.p.envAt(x.f, n)
	switch n.Type() {
	case "identifier":
		b := x.bind(n)
		if !b.found {
			return nil
		}
		if b.typeNode != nil && b.typeNode.Type() != "implicit_type" {
			return x.p.resolveType(b.typeNode, e)
		}
		if b.value != nil {
			return x.staticType(b.value, depth+1)
		}
	case "object_creation_expression", "cast_expression":
		return x.p.resolveType(field(n, "type"), e)
	case "typeof_expression":
		return model.Builtin(model.SystemTypeName)
	case "this_expression":
		if d := x.f.enclosingDecl(n); d != nil {
			return d.typ
		}
	case "array_creation_expression":
		return x.p.resolveType(field(n, "type"), e)
	default:
		if t := literalType(n, x.f); t != nil {
			return t
		}
	}
	return nil
}

// literalType returns the type of a literal expression.
func literalType(n *sitter.Node, f *File) *model.Type {
	switch n.Type() {
	case "string_literal", "verbatim_string_literal", "raw_string_literal", "interpolated_string_expression":
		return model.Builtin(model.StringName)
	case "character_literal":
		return model.Builtin(model.CharName)
	case "boolean_literal":
		return model.Builtin(model.BooleanName)
	case "integer_literal":
		s := strings.ToLower(f.text(n))
		switch {
		case strings.HasSuffix(s, "ul") || strings.HasSuffix(s, "lu"):
			return model.Builtin("System.UInt64")
		case strings.HasSuffix(s, "l"):
			return model.Builtin(model.Int64Name)
		case strings.HasSuffix(s, "u"):
			return model.Builtin("System.UInt32")
		}
		return model.Builtin(model.Int32Name)
	case "real_literal":
		s := strings.ToLower(f.text(n))
		switch {
		case strings.HasSuffix(s, "f"):
			return model.Builtin("System.Single")
		case strings.HasSuffix(s, "m"):
			return model.Builtin("System.Decimal")
		}
		return model.Builtin(model.DoubleName)
	}
	return nil
}

func isNull(n *sitter.Node) bool {
	n = unwrap(n)
	return n != nil && n.Type() == "null_literal"
}

// exact reports whether a value of static type t has exactly that runtime
// type, so a mismatch against a parameter is certain.
func (x *extractor) exact(t *model.Type) bool {
	if t == nil || t.Kind == model.TypeParameter || x.p.isExternal(t) {
		return false
	}
	return t.Sealed || model.IsValueType(t)
}

// argOf classifies one argument passed to a reflected member.
func (x *extractor) argOf(n *sitter.Node) invoke.Arg {
	n = unwrap(n)
	if n == nil {
		return invoke.Arg{Kind: invoke.Unknown}
	}
	switch compact(x.f.text(n)) {
	case "Missing.Value", "System.Reflection.Missing.Value", "Type.Missing", "System.Type.Missing":
		return invoke.Arg{Kind: invoke.Missing}
	}
	switch n.Type() {
	case "null_literal":
		return invoke.Arg{Kind: invoke.Null}
	case "object_creation_expression":
		if t := x.staticType(n, 0); t != nil && !x.p.isExternal(t) {
			return invoke.Of(t)
		}
		return invoke.Arg{Kind: invoke.Unknown}
	case "typeof_expression", "this_expression":
		return invoke.Of(x.staticType(n, 0))
	}
	if t := literalType(n, x.f); t != nil {
		return invoke.Of(t)
	}
	if t := x.staticType(n, 0); x.exact(t) {
		return invoke.Of(t)
	}
	return invoke.Arg{Kind: invoke.Unknown}
}

// argsOf classifies the argument array of Invoke or CreateInstance. empty
// reports an explicitly empty array.
func (x *extractor) argsOf(n *sitter.Node) (args []invoke.Arg, empty bool) {
	n = x.valueOf(n, 0)
	if n == nil || n.Type() == "null_literal" {
		return nil, false
	}
	elems, ok, isEmpty := x.elements(n, "object")
	if !ok {
		return []invoke.Arg{{Kind: invoke.Spread}}, false
	}
	arr := invoke.Arg{Kind: invoke.ArrayLiteral, Elements: make([]invoke.Arg, len(elems))}
	if n.Type() == "array_creation_expression" {
		if t := x.staticType(n, 0); t != nil && t.Kind == model.Array && !x.p.isExternal(t) {
			arr.Type = t
		}
	}
	for i, el := range elems {
		arr.Elements[i] = x.argOf(el)
	}
	return []invoke.Arg{arr}, isEmpty
}

// elements returns the element expressions of an array written in place.
// elem is the keyword of the expected element type, used to recognize
// Array.Empty<elem>().
func (x *extractor) elements(n *sitter.Node, elem string) (elems []*sitter.Node, ok, empty bool) {
	switch n.Type() {
	case "array_creation_expression":
		init := childOfType(n, "initializer_expression")
		if init == nil {
			if strings.Contains(strings.ReplaceAll(x.f.text(n), " ", ""), "[0]") {
				return nil, true, true
			}
			return nil, false, false
		}
		elems = namedChildren(init)
		return elems, true, len(elems) == 0
	case "implicit_array_creation_expression":
		elems = namedChildren(childOfType(n, "initializer_expression"))
		return elems, true, false
	case "collection_expression":
		for _, c := range namedChildren(n) {
			if c.Type() == "spread_element" {
				return nil, false, false
			}
			elems = append(elems, c)
		}
		return elems, true, len(elems) == 0
	case "invocation_expression":
		text := compact(x.f.text(n))
		for _, prefix := range []string{"Array.Empty<", "System.Array.Empty<"} {
			if strings.HasPrefix(text, prefix) && strings.HasSuffix(text, ">()") {
				arg := strings.TrimSuffix(strings.TrimPrefix(text, prefix), ">()")
				if arg == elem || arg == typeKeywordName(elem) || strings.HasSuffix(typeKeywordName(elem), "."+arg) {
					return nil, true, true
				}
			}
		}
	}
	return nil, false, false
}

func typeKeywordName(kw string) string {
	if name, ok := model.Keywords[kw]; ok {
		return name
	}
	return kw
}

// typeValue evaluates an expression that should produce a System.Type.
// It reports ok when the expression is Type-valued, with t nil when the
// type itself cannot be determined.
func (x *extractor) typeValue(n *sitter.Node, depth int) (t *model.Type, ok bool) {
	n = unwrap(n)
	if n == nil || depth > maxDepth {
		return nil, false
	}
	switch n.Type() {
	case "typeof_expression":
		tn := field(n, "type")
		if tn == nil {
			tn = firstNamed(n)
		}
		return x.p.resolveType(tn, x.p.envAt(x.f, n)), true
	case "identifier":
		b := x.bind(n)
		if !b.found {
			return nil, false
		}
		if b.value != nil {
			if t, ok := x.typeValue(b.value, depth+1); ok {
				return t, true
			}
		}
		if st := x.staticType(n, depth+1); st != nil && st.Is(model.SystemTypeName) {
			return nil, true
		}
		return nil, false
	case "member_access_expression":
		switch x.f.text(field(n, "name")) {
		case "PropertyType", "FieldType", "ReturnType", "BaseType", "DeclaringType",
			"ParameterType", "EventHandlerType", "ReflectedType", "UnderlyingSystemType":
			return nil, true
		}
	case "invocation_expression":
		return x.invokedType(n)
	}
	return nil, false
}

// invokedType evaluates calls that return a Type.
func (x *extractor) invokedType(n *sitter.Node) (*model.Type, bool) {
	fn := unwrap(field(n, "function"))
	if fn == nil {
		return nil, false
	}
	var recv *sitter.Node
	name := x.f.text(fn)
	if fn.Type() == "member_access_expression" {
		recv = field(fn, "expression")
		name = x.f.text(field(fn, "name"))
	}
	switch name {
	case "GetType":
		if recv != nil && (compact(x.f.text(recv)) == "Type" || compact(x.f.text(recv)) == "System.Type") {
			s := x.site(n)
			if s == nil {
				return nil, true
			}
			parsed, err := typename.Parse(s.TypeName)
			if err != nil {
				return nil, true
			}
			t, _ := parsed.Resolve(x.p.Catalog)
			return t, true
		}
		var st *model.Type
		if recv == nil {
			if d := x.f.enclosingDecl(n); d != nil {
				st = d.typ
			}
		} else {
			st = x.staticType(recv, 1)
		}
		if x.exact(st) {
			return st, true
		}
		return nil, true
	case "MakeGenericType":
		s := x.site(n)
		if s == nil || s.Type == nil || !s.Type.IsGenericDefinition() || len(s.GenericArgs) != len(s.Type.TypeParams) {
			return nil, true
		}
		args := make([]*model.Type, len(s.GenericArgs))
		for i, a := range s.GenericArgs {
			if a.Type == nil {
				return nil, true
			}
			args[i] = a.Type
		}
		return model.Construct(s.Type, args...), true
	case "GetNestedType", "MakeArrayType", "MakeByRefType", "MakePointerType",
		"GetGenericTypeDefinition", "GetElementType", "GetEnumUnderlyingType", "GetInterface":
		return nil, true
	}
	return nil, false
}

// typeArg evaluates one element of a Type[] argument.
func (x *extractor) typeArg(n *sitter.Node) generic.Arg {
	n = unwrap(n)
	a := generic.Arg{}
	if n != nil && n.Type() == "identifier" {
		a.Var = x.f.text(n)
	}
	if t, ok := x.typeValue(n, 0); ok && t != nil && !x.p.isExternal(t) {
		a.Type = t
	}
	return a
}

// typesOf evaluates a Type[] filter argument.
func (x *extractor) typesOf(n *sitter.Node) (types []*model.Type, ok, empty bool) {
	n = x.valueOf(n, 0)
	if n == nil {
		return nil, false, false
	}
	switch compact(x.f.text(n)) {
	case "Type.EmptyTypes", "System.Type.EmptyTypes":
		return []*model.Type{}, true, false
	}
	elems, ok, empty := x.elements(n, "Type")
	if !ok {
		return nil, false, false
	}
	types = make([]*model.Type, 0, len(elems))
	for _, el := range elems {
		t, isType := x.typeValue(el, 0)
		if !isType || t == nil || t.Kind == model.TypeParameter {
			return nil, false, false
		}
		types = append(types, t)
	}
	return types, true, empty
}

// pathCondition collects what type guards on the way to n establish about
// Type variables. Inner guards take precedence over outer ones.
func (x *extractor) pathCondition(n *sitter.Node) generic.PathCondition {
	var pc generic.PathCondition
	child := n
	for cur := n.Parent(); cur != nil; child, cur = cur, cur.Parent() {
		if memberBodyKinds[cur.Type()] || typeDeclKinds[cur.Type()] {
			break
		}
		switch cur.Type() {
		case "conditional_expression", "if_statement":
			cond := field(cur, "condition")
			switch {
			case within(child, field(cur, "consequence")):
				pc = x.facts(pc, cond, true)
			case within(child, field(cur, "alternative")):
				pc = x.facts(pc, cond, false)
			}
		case "block":
			for _, st := range namedChildren(cur) {
				if st.StartByte() >= child.StartByte() {
					break
				}
				if st.Type() == "if_statement" && field(st, "alternative") == nil && exits(field(st, "consequence")) {
					pc = x.facts(pc, field(st, "condition"), false)
				}
			}
		}
	}
	return pc
}

func (x *extractor) facts(pc generic.PathCondition, cond *sitter.Node, holds bool) generic.PathCondition {
	cond = unwrap(cond)
	if cond == nil {
		return pc
	}
	switch cond.Type() {
	case "prefix_unary_expression":
		if operator(cond) == "!" {
			return x.facts(pc, firstNamed(cond), !holds)
		}
	case "binary_expression":
		op := operator(cond)
		if (op == "&&" && holds) || (op == "||" && !holds) {
			pc = x.facts(pc, field(cond, "left"), holds)
			return x.facts(pc, field(cond, "right"), holds)
		}
	case "member_access_expression":
		v := unwrap(field(cond, "expression"))
		if v == nil || v.Type() != "identifier" {
			return pc
		}
		var f generic.Fact
		switch x.f.text(field(cond, "name")) {
		case "IsValueType":
			f = generic.IsValueType
			if !holds {
				f = f.Negate()
			}
		case "IsClass":
			// A type that is not a class may still be an interface.
			if !holds {
				return pc
			}
			f = generic.IsReferenceType
		default:
			return pc
		}
		name := x.f.text(v)
		if _, ok := pc[name]; !ok {
			pc = pc.With(name, f)
		}
	}
	return pc
}

// exits reports whether a statement always leaves the enclosing block.
func exits(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "return_statement", "throw_statement", "continue_statement", "break_statement":
		return true
	case "block":
		return exits(lastNamed(n))
	}
	return false
}
