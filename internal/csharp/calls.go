package csharp

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/reflguard/internal/analyze"
	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/generic"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/lang"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/resolve"
)

// extractor builds the call sites of one file. Sites are memoized by node
// so that a receiver shared by several calls is a single site.
type extractor struct {
	p        *Program
	f        *File
	sites    map[nodeKey]*analyze.CallSite
	bindings map[bindKey]binding
}

// argument is one entry of an argument list.
type argument struct {
	name string
	expr *sitter.Node
}

// CallSites extracts the reflection calls of f located by query, in source
// order. It is safe to call concurrently for different files.
func (p *Program) CallSites(f *File, query *sitter.Query) []*analyze.CallSite {
	if f.tree == nil {
		return nil
	}
	x := &extractor{
		p:        p,
		f:        f,
		sites:    make(map[nodeKey]*analyze.CallSite),
		bindings: make(map[bindKey]binding),
	}
	for _, m := range lang.Matches(query, f.tree.RootNode(), f.Source) {
		for _, c := range m.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "reference.call":
				x.site(c.Node)
			case "reference.binding":
				if inv := bindingInvocation(c.Node); inv != nil {
					x.site(inv)
				}
			}
		}
	}
	var out []*analyze.CallSite
	for _, s := range x.sites {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Column < out[j].Column
	})
	return out
}

// bindingInvocation returns the invocation whose callee is the member
// binding n, as in recv?.Invoke(...).
func bindingInvocation(n *sitter.Node) *sitter.Node {
	for cur, depth := n.Parent(), 0; cur != nil && depth < 2; cur, depth = cur.Parent(), depth+1 {
		if cur.Type() == "invocation_expression" {
			if fn := field(cur, "function"); fn != nil && within(n, fn) {
				return cur
			}
			return nil
		}
	}
	return nil
}

// site returns the call site for an invocation, or nil when the call is
// not a reflection call the engine checks.
func (x *extractor) site(n *sitter.Node) *analyze.CallSite {
	key := keyOf(n)
	if s, ok := x.sites[key]; ok {
		return s
	}
	// Claim the node first so cyclic bindings terminate.
	x.sites[key] = nil
	s := x.build(n)
	x.sites[key] = s
	return s
}

func (x *extractor) build(n *sitter.Node) *analyze.CallSite {
	fn := unwrap(field(n, "function"))
	if fn == nil {
		fn = firstNamed(n)
	}
	if fn == nil {
		return nil
	}
	var recv, name *sitter.Node
	switch fn.Type() {
	case "member_access_expression":
		recv, name = field(fn, "expression"), field(fn, "name")
	case "conditional_access_expression":
		recv = firstNamed(fn)
		if b := lastNamed(fn); b != nil && b.Type() == "member_binding_expression" {
			name = bindingName(b)
		}
	case "member_binding_expression":
		name = bindingName(fn)
		for c := n.Parent(); c != nil; c = c.Parent() {
			if c.Type() == "conditional_access_expression" {
				recv = firstNamed(c)
				break
			}
		}
	default:
		return nil
	}
	if name == nil || recv == nil {
		return nil
	}
	var typeArgs []*sitter.Node
	if name.Type() == "generic_name" {
		typeArgs = namedChildren(childOfType(name, "type_argument_list"))
		name = childOfType(name, "identifier")
		if name == nil {
			return nil
		}
	}

	s := x.newSite(n, name)
	args := x.arguments(field(n, "arguments"))
	if args == nil {
		args = x.arguments(childOfType(n, "argument_list"))
	}
	var ok bool
	switch method := x.f.text(name); method {
	case "GetMethod", "GetProperty", "GetField", "GetConstructor", "GetNestedType", "GetEvent":
		ok = x.lookup(s, analyze.CallKind(method), recv, args)
	case "GetGetMethod", "GetSetMethod", "GetAddMethod", "GetRemoveMethod":
		ok = x.accessor(s, method, recv, args)
	case "MakeGenericType":
		ok = x.makeGenericType(s, recv, args)
	case "MakeGenericMethod":
		ok = x.makeGenericMethod(s, recv, args)
	case "Invoke":
		ok = x.invoke(s, recv, args)
	case "CreateInstance":
		ok = x.createInstance(s, recv, args, typeArgs)
	case "GetType":
		ok = x.getType(s, recv, args)
	}
	if !ok {
		return nil
	}
	return s
}

func bindingName(b *sitter.Node) *sitter.Node {
	if name := field(b, "name"); name != nil {
		return name
	}
	return lastNamed(b)
}

func (x *extractor) newSite(n, name *sitter.Node) *analyze.CallSite {
	pos := name.StartPoint()
	s := &analyze.CallSite{
		File:   x.f.Path,
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
		Text:   lang.CollapseWhitespace(x.f.text(n)),
	}
	if d := x.f.enclosingDecl(n); d != nil {
		s.Caller = d.typ
	}
	return s
}

func (x *extractor) arguments(list *sitter.Node) []argument {
	if list == nil {
		return nil
	}
	out := []argument{}
	for _, a := range childrenOfType(list, "argument") {
		arg := argument{expr: lastNamed(a)}
		if nc := childOfType(a, "name_colon"); nc != nil {
			arg.name = x.f.text(firstNamed(nc))
		}
		out = append(out, arg)
	}
	return out
}

// modeled returns t when lookups on it can be decided: every member of it
// and of its non-trivial bases is known.
func (p *Program) modeled(t *model.Type) *model.Type {
	if t == nil || t.Kind == model.TypeParameter || !t.FullyVisible() || p.isExternal(t) {
		return nil
	}
	for _, b := range model.BaseChain(t) {
		if b.FullyVisible() || b.Is(model.ObjectName) || b.Is(model.ValueTypeName) {
			continue
		}
		return nil
	}
	return t
}

func (x *extractor) lookup(s *analyze.CallSite, kind analyze.CallKind, recv *sitter.Node, args []argument) bool {
	t, ok := x.typeValue(recv, 0)
	if !ok {
		return false
	}
	s.Kind = kind
	s.Type = x.p.modeled(t)
	rest := args
	if kind != analyze.GetConstructor && len(args) > 0 && (args[0].name == "" || args[0].name == "name") {
		s.Name = x.nameArg(args[0].expr)
		rest = args[1:]
	}
	for _, a := range rest {
		x.lookupArg(s, a)
	}
	return true
}

// nameArg evaluates the member-name argument of a lookup.
func (x *extractor) nameArg(n *sitter.Node) analyze.Name {
	n = x.valueOf(n, 0)
	if n == nil {
		return analyze.Name{}
	}
	if v, ok := stringValue(n, x.f.Source); ok {
		return analyze.Name{Text: v, Known: true}
	}
	if n.Type() != "invocation_expression" || x.f.text(field(n, "function")) != "nameof" {
		return analyze.Name{}
	}
	args := x.arguments(field(n, "arguments"))
	if args == nil {
		args = x.arguments(childOfType(n, "argument_list"))
	}
	if len(args) != 1 {
		return analyze.Name{}
	}
	ref := unwrap(args[0].expr)
	if ref == nil {
		return analyze.Name{}
	}
	nameof := &analyze.Nameof{Text: compact(x.f.text(n))}
	var member string
	switch ref.Type() {
	case "identifier":
		member = x.f.text(ref)
		if d := x.f.enclosingDecl(n); d != nil {
			nameof.Type = d.typ
		}
	case "member_access_expression":
		member = x.f.text(field(ref, "name"))
		qual := field(ref, "expression")
		nameof.Type = x.p.lookupType(qual, x.p.envAt(x.f, qual))
		if nameof.Type == nil {
			nameof.Type = x.staticType(qual, 0)
		}
	default:
		return analyze.Name{}
	}
	return analyze.Name{Text: member, Known: true, Nameof: nameof}
}

// argKind is the role an expression plays in a lookup's argument list.
type argKind int

const (
	argUnknown argKind = iota
	argIgnored
	argFlags
	argTypes
	argType
)

func (x *extractor) lookupArg(s *analyze.CallSite, a argument) {
	var kind argKind
	switch a.name {
	case "bindingAttr":
		kind = argFlags
	case "types":
		kind = argTypes
	case "returnType":
		kind = argType
	case "binder", "modifiers", "callConvention", "genericParameterCount":
		kind = argIgnored
	default:
		kind = x.classify(a.expr, 0)
	}
	switch kind {
	case argFlags:
		s.HasFlagsArg = true
		s.Flags = x.flagsExpr(a.expr)
	case argTypes:
		s.HasTypes = true
		types, ok, empty := x.typesOf(a.expr)
		s.Types, s.TypesUnknown, s.EmptyTypesArray = types, !ok, empty
	case argType:
		if t, ok := x.typeValue(a.expr, 0); ok && t != nil && !x.p.isExternal(t) {
			s.ReturnType = t
		}
	case argUnknown:
		s.HasFlagsArg = true
		s.Flags = flags.Expr{NonConstant: true}
		if !s.HasTypes {
			s.HasTypes, s.TypesUnknown = true, true
		}
	}
}

// classify decides from its shape what a lookup argument is.
func (x *extractor) classify(n *sitter.Node, depth int) argKind {
	n = unwrap(n)
	if n == nil || depth > maxDepth {
		return argUnknown
	}
	text := compact(x.f.text(n))
	switch n.Type() {
	case "null_literal", "integer_literal":
		return argIgnored
	case "binary_expression":
		if operator(n) == "|" {
			return argFlags
		}
	case "cast_expression":
		if isBindingFlags(compact(x.f.text(field(n, "type")))) {
			return argFlags
		}
	case "member_access_expression":
		if text == "Type.EmptyTypes" || text == "System.Type.EmptyTypes" {
			return argTypes
		}
		if isBindingFlags(compact(x.f.text(field(n, "expression")))) {
			return argFlags
		}
	case "typeof_expression":
		return argType
	case "array_creation_expression", "implicit_array_creation_expression", "collection_expression":
		return argTypes
	case "invocation_expression":
		if _, ok, _ := x.elements(n, "Type"); ok {
			return argTypes
		}
		if _, ok := x.typeValue(n, 0); ok {
			return argType
		}
	case "conditional_expression":
		if k := x.classify(field(n, "consequence"), depth+1); k != argUnknown {
			return k
		}
		return x.classify(field(n, "alternative"), depth+1)
	case "identifier":
		b := x.bind(n)
		if !b.found {
			if _, ok := flags.Lookup(text); ok && x.usingStaticFlags(n) {
				return argFlags
			}
			return argUnknown
		}
		if b.value != nil {
			if k := x.classify(b.value, depth+1); k != argUnknown {
				return k
			}
		}
		if t := x.staticType(n, depth+1); t != nil {
			switch {
			case isBindingFlags(t.Definition().Name):
				return argFlags
			case t.Is(model.SystemTypeName):
				return argType
			case t.Kind == model.Array && t.ElementType().Is(model.SystemTypeName):
				return argTypes
			}
		}
	}
	return argUnknown
}

func isBindingFlags(name string) bool {
	return name == flags.TypeName || name == "System.Reflection."+flags.TypeName || name == "Reflection."+flags.TypeName
}

func (x *extractor) usingStaticFlags(n *sitter.Node) bool {
	return x.f.scopeAt(n).usingStatic(flags.TypeName)
}

// flagsExpr collects the operands of a chain of ors, following locals
// assigned once. Anything else is non-constant.
func (x *extractor) flagsExpr(n *sitter.Node) flags.Expr {
	e := flags.Expr{UsingStatic: x.usingStaticFlags(n)}
	var walk func(n *sitter.Node, depth int) bool
	walk = func(n *sitter.Node, depth int) bool {
		n = unwrap(n)
		if n == nil || depth > maxDepth {
			return false
		}
		switch n.Type() {
		case "binary_expression":
			if operator(n) != "|" {
				return false
			}
			return walk(field(n, "left"), depth+1) && walk(field(n, "right"), depth+1)
		case "identifier":
			if b := x.bind(n); b.found {
				return b.value != nil && walk(b.value, depth+1)
			}
			e.Operands = append(e.Operands, x.f.text(n))
			return true
		case "member_access_expression", "qualified_name", "cast_expression", "integer_literal":
			e.Operands = append(e.Operands, compact(x.f.text(n)))
			return true
		}
		return false
	}
	if !walk(n, 0) {
		return flags.Expr{UsingStatic: e.UsingStatic, NonConstant: true}
	}
	return e
}

// memberSite returns the site that produced a MemberInfo-valued
// expression, following locals.
func (x *extractor) memberSite(n *sitter.Node) *analyze.CallSite {
	n = x.valueOf(n, 0)
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "invocation_expression":
		s := x.site(n)
		if s == nil || s.Kind == analyze.CreateInstance || s.Kind == analyze.GetType ||
			s.Kind == analyze.MakeGenericType || s.Kind == analyze.Invoke {
			return nil
		}
		return s
	case "member_access_expression":
		return x.accessorProperty(n)
	}
	return nil
}

var accessorProperties = map[string]resolve.Accessor{
	"GetMethod":    resolve.Getter,
	"SetMethod":    resolve.Setter,
	"AddMethod":    resolve.Adder,
	"RemoveMethod": resolve.Remover,
}

// accessorProperty builds the site for prop.GetMethod and the other
// accessor properties, which return non-public accessors too.
func (x *extractor) accessorProperty(n *sitter.Node) *analyze.CallSite {
	name := field(n, "name")
	acc, ok := accessorProperties[x.f.text(name)]
	if !ok {
		return nil
	}
	key := keyOf(n)
	if s, ok := x.sites[key]; ok {
		return s
	}
	x.sites[key] = nil
	recv := x.memberSite(field(n, "expression"))
	if recv == nil || (recv.Kind != analyze.GetProperty && recv.Kind != analyze.GetEvent) {
		return nil
	}
	s := x.newSite(n, name)
	s.Kind = analyze.Accessor
	s.Receiver = recv
	s.Accessor = acc
	s.AccessorNonPublic = true
	x.sites[key] = s
	return s
}

var accessorMethods = map[string]resolve.Accessor{
	"GetGetMethod":    resolve.Getter,
	"GetSetMethod":    resolve.Setter,
	"GetAddMethod":    resolve.Adder,
	"GetRemoveMethod": resolve.Remover,
}

func (x *extractor) accessor(s *analyze.CallSite, method string, recv *sitter.Node, args []argument) bool {
	r := x.memberSite(recv)
	if r == nil || (r.Kind != analyze.GetProperty && r.Kind != analyze.GetEvent) {
		return false
	}
	s.Kind = analyze.Accessor
	s.Receiver = r
	s.Accessor = accessorMethods[method]
	if len(args) > 0 {
		v := x.valueOf(args[0].expr, 0)
		s.AccessorNonPublic = v == nil || v.Type() != "boolean_literal" || x.f.text(v) == "true"
	}
	return true
}

// genericArgs evaluates the params Type[] of MakeGenericType and
// MakeGenericMethod. It reports false when the count is unknown.
func (x *extractor) genericArgs(args []argument) ([]generic.Arg, bool) {
	exprs := make([]*sitter.Node, len(args))
	for i, a := range args {
		exprs[i] = a.expr
	}
	if len(args) == 1 {
		v := x.valueOf(args[0].expr, 0)
		if elems, ok, _ := x.elements(v, "Type"); ok {
			exprs = elems
		} else if _, isType := x.typeValue(args[0].expr, 0); !isType {
			return nil, false
		}
	}
	out := make([]generic.Arg, len(exprs))
	for i, e := range exprs {
		out[i] = x.typeArg(e)
	}
	return out, true
}

func (x *extractor) makeGenericType(s *analyze.CallSite, recv *sitter.Node, args []argument) bool {
	t, ok := x.typeValue(recv, 0)
	if !ok {
		return false
	}
	s.Kind = analyze.MakeGenericType
	if t != nil && !x.p.isExternal(t) && t.Kind != model.TypeParameter {
		s.Type = t
	}
	ga, known := x.genericArgs(args)
	if !known {
		s.Type = nil
	}
	s.GenericArgs = ga
	s.Path = x.pathCondition(recv.Parent())
	return true
}

func (x *extractor) makeGenericMethod(s *analyze.CallSite, recv *sitter.Node, args []argument) bool {
	r := x.memberSite(recv)
	if r == nil {
		return false
	}
	s.Kind = analyze.MakeGenericMethod
	ga, known := x.genericArgs(args)
	if known {
		s.Receiver = r
	}
	s.GenericArgs = ga
	s.Path = x.pathCondition(recv.Parent())
	return true
}

func (x *extractor) invoke(s *analyze.CallSite, recv *sitter.Node, args []argument) bool {
	r := x.memberSite(recv)
	if r == nil {
		return false
	}
	s.Kind = analyze.Invoke
	s.Receiver = r
	switch {
	case r.Kind == analyze.GetConstructor && len(args) == 1:
		s.Args, s.EmptyArgsArray = x.argsOf(args[0].expr)
	case len(args) == 2:
		s.Target = x.target(args[0].expr)
		s.Args, s.EmptyArgsArray = x.argsOf(args[1].expr)
	case len(args) == 5:
		s.Target = x.target(args[0].expr)
		s.Args, s.EmptyArgsArray = x.argsOf(args[3].expr)
	default:
		return false
	}
	return true
}

// target classifies the instance argument of Invoke.
func (x *extractor) target(n *sitter.Node) analyze.Target {
	n = x.valueOf(n, 0)
	if n == nil {
		return analyze.TargetUnknown
	}
	switch n.Type() {
	case "null_literal", "default_expression":
		return analyze.TargetNull
	case "this_expression", "object_creation_expression":
		return analyze.TargetInstance
	case "identifier":
		return analyze.TargetUnknown
	}
	if x.f.text(n) == "default" {
		return analyze.TargetNull
	}
	if literalType(n, x.f) != nil {
		return analyze.TargetInstance
	}
	return analyze.TargetUnknown
}

func isActivator(n *sitter.Node, f *File) bool {
	switch compact(f.text(n)) {
	case "Activator", "System.Activator":
		return true
	}
	return false
}

// creatable returns t when CreateInstance on it can be decided.
func (x *extractor) creatable(t *model.Type) *model.Type {
	if t == nil || t.Kind == model.TypeParameter || x.p.isExternal(t) {
		return nil
	}
	return t
}

func (x *extractor) createInstance(s *analyze.CallSite, recv *sitter.Node, args []argument, typeArgs []*sitter.Node) bool {
	if !isActivator(recv, x.f) {
		return false
	}
	s.Kind = analyze.CreateInstance
	if len(typeArgs) == 1 {
		if len(args) != 0 {
			return false
		}
		s.Type = x.creatable(x.p.resolveType(typeArgs[0], x.p.envAt(x.f, typeArgs[0])))
		return true
	}
	if len(args) == 0 {
		return false
	}
	if v := x.valueOf(args[0].expr, 0); v != nil {
		if _, isString := stringValue(v, x.f.Source); isString {
			return false
		}
	}
	t, ok := x.typeValue(args[0].expr, 0)
	if !ok {
		return false
	}
	s.Type = x.creatable(t)
	rest := args[1:]
	switch {
	case len(rest) == 0:
	case len(rest) == 1 && x.isBool(rest[0].expr):
		v := x.valueOf(rest[0].expr, 0)
		s.NonPublic = v == nil || x.f.text(v) != "false"
	case len(rest) >= 4 && x.classify(rest[0].expr, 0) == argFlags:
		fv := flags.Parse(x.flagsExpr(rest[0].expr))
		s.NonPublic = !fv.IsKnown() || fv.Flags.Has(flags.NonPublic)
		s.Args, _ = x.argsOf(rest[2].expr)
	case len(rest) == 1:
		s.Args = x.paramsArgs(rest[0].expr)
	default:
		for _, a := range rest {
			s.Args = append(s.Args, x.argOf(a.expr))
		}
	}
	return true
}

func (x *extractor) isBool(n *sitter.Node) bool {
	t := x.staticType(n, 0)
	return t != nil && t.Is(model.BooleanName)
}

// paramsArgs classifies the only argument passed to a params object[]
// parameter: null and arrays are the argument list itself.
func (x *extractor) paramsArgs(n *sitter.Node) []invoke.Arg {
	v := x.valueOf(n, 0)
	if v == nil {
		return []invoke.Arg{{Kind: invoke.Unknown}}
	}
	if v.Type() == "null_literal" {
		return nil
	}
	if _, ok, _ := x.elements(v, "object"); ok {
		args, _ := x.argsOf(v)
		return args
	}
	if t := x.staticType(n, 0); t != nil && t.Kind == model.Array {
		return []invoke.Arg{{Kind: invoke.Spread}}
	}
	return []invoke.Arg{x.argOf(n)}
}

func (x *extractor) getType(s *analyze.CallSite, recv *sitter.Node, args []argument) bool {
	switch compact(x.f.text(recv)) {
	case "Type", "System.Type":
	default:
		return false
	}
	if len(args) == 0 {
		return false
	}
	v := x.valueOf(args[0].expr, 0)
	text, ok := stringValue(v, x.f.Source)
	if !ok {
		return false
	}
	s.Kind = analyze.GetType
	s.TypeName = text
	return true
}
