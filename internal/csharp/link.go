package csharp

import (
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/reflguard/internal/graph"
	"github.com/phobologic/reflguard/internal/lang"
	"github.com/phobologic/reflguard/internal/model"
)

// Program is a set of parsed files linked into one catalog. After Link it
// is read-only, apart from placeholder creation which is synchronized, so
// call sites of different files may be extracted concurrently.
type Program struct {
	Catalog *model.Catalog
	Files   []*File
	// Cycles lists the inheritance edges dropped because they closed a
	// cycle. Source derived from Target.
	Cycles []graph.Edge

	source map[string]*model.Type
	order  []*model.Type
	enums  map[*model.Type]*model.Type

	mu           sync.Mutex
	placeholders map[string]*model.Type
	external     map[*model.Type]bool
}

// Link builds model types for every declaration in files. Linking runs in
// three passes so that bases and signatures can reference any type
// declared anywhere in the program.
func Link(files []*File) *Program {
	p := &Program{
		Catalog:      model.NewCatalog(),
		Files:        files,
		source:       make(map[string]*model.Type),
		enums:        make(map[*model.Type]*model.Type),
		placeholders: make(map[string]*model.Type),
		external:     make(map[*model.Type]bool),
	}
	var decls []*TypeDecl
	for _, f := range files {
		decls = append(decls, f.decls...)
	}
	for _, d := range decls {
		p.declareType(d)
	}
	for _, d := range decls {
		p.linkHeader(d)
	}
	p.breakCycles()
	p.defaultBases()
	for _, d := range decls {
		p.linkMembers(d)
	}
	return p
}

// Types returns the types declared in source, in declaration order.
func (p *Program) Types() []*model.Type { return p.order }

// Namespaces returns the sorted namespaces that declare source types.
func (p *Program) Namespaces() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range p.order {
		ns := t.Namespace()
		if ns != "" && !seen[ns] {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Program) declareType(d *TypeDecl) {
	f := d.file
	mods := modifiers(d.node, f.Source)
	if t, ok := p.source[d.Name]; ok {
		// Another part of a partial type.
		d.typ = t
		if acc, ok := accessibility(mods); ok {
			t.Accessibility = acc
		}
		t.Abstract = t.Abstract || mods["abstract"]
		t.Sealed = t.Sealed || mods["sealed"] || mods["static"]
		t.Static = t.Static || mods["static"]
		return
	}

	t := model.NewType(d.Name, d.Kind)
	t.Accessibility = model.Internal
	if d.parent != nil {
		t.Accessibility = model.Private
		if d.parent.Kind == model.Interface {
			t.Accessibility = model.Public
		}
	}
	if acc, ok := accessibility(mods); ok {
		t.Accessibility = acc
	}
	t.Static = mods["static"]
	t.Abstract = mods["abstract"] || d.Kind == model.Interface
	t.Sealed = mods["sealed"] || mods["static"] ||
		d.Kind == model.Struct || d.Kind == model.Enum || d.Kind == model.Delegate
	if list := childOfType(d.node, "type_parameter_list"); list != nil {
		for i, tp := range childrenOfType(list, "type_parameter") {
			t.TypeParams = append(t.TypeParams, model.NewGenericParameter(f.nameOf(tp), i, false))
		}
	}
	if d.parent != nil {
		t.Declaring = d.parent.typ
		d.parent.typ.AddMember(model.NewNestedType(t))
	}
	d.typ = t
	p.source[d.Name] = t
	p.order = append(p.order, t)
	p.Catalog.Add(t)
}

func accessibility(mods map[string]bool) (model.Accessibility, bool) {
	switch {
	case mods["protected"] && mods["internal"]:
		return model.ProtectedInternal, true
	case mods["private"] && mods["protected"]:
		return model.PrivateProtected, true
	case mods["public"]:
		return model.Public, true
	case mods["protected"]:
		return model.Protected, true
	case mods["internal"]:
		return model.Internal, true
	case mods["private"]:
		return model.Private, true
	}
	return "", false
}

func (p *Program) linkHeader(d *TypeDecl) {
	t := d.typ
	e := env{file: d.file, scope: d.scope, decl: d}
	p.constraints(t.TypeParams, d.node, e)

	for _, b := range namedChildren(childOfType(d.node, "base_list")) {
		if b.Type() == "primary_constructor_base_type" {
			b = firstNamed(b)
		}
		if b == nil || !typeNodeKinds[b.Type()] {
			continue
		}
		bt := p.resolveType(b, e)
		switch {
		case bt == nil:
		case d.Kind == model.Enum:
			p.enums[t] = bt
		case bt.Kind == model.Interface:
			if !containsType(t.Interfaces, bt) {
				t.Interfaces = append(t.Interfaces, bt)
			}
		case d.Kind == model.Class && t.Base == nil:
			t.Base = bt
		}
	}
}

func containsType(list []*model.Type, t *model.Type) bool {
	for _, x := range list {
		if model.Identical(x, t) {
			return true
		}
	}
	return false
}

// breakCycles drops the base or interface edges that make a type its own
// ancestor, so base chains stay finite.
func (p *Program) breakCycles() {
	g := graph.New()
	for _, t := range p.order {
		g.AddNode(t.Name)
		for _, b := range append([]*model.Type{t.Base}, t.Interfaces...) {
			if b == nil {
				continue
			}
			if def := b.Definition(); p.source[def.Name] == def {
				g.AddEdge(t.Name, def.Name)
			}
		}
	}
	_, back := g.Order()
	for _, e := range back {
		t := p.source[e.Source]
		if t.Base != nil && t.Base.Definition().Name == e.Target {
			t.Base = nil
		}
		kept := t.Interfaces[:0]
		for _, i := range t.Interfaces {
			if i.Definition().Name != e.Target {
				kept = append(kept, i)
			}
		}
		t.Interfaces = kept
		p.Cycles = append(p.Cycles, e)
	}
}

// defaultBases fills in the implicit base class of types that name none.
func (p *Program) defaultBases() {
	for _, t := range p.order {
		if t.Base != nil {
			continue
		}
		switch t.Kind {
		case model.Class:
			t.Base = model.Builtin(model.ObjectName)
		case model.Struct:
			t.Base = model.Builtin(model.ValueTypeName)
		case model.Enum:
			t.Base = model.Builtin(model.EnumName)
		case model.Delegate:
			t.Base = model.Builtin(model.MulticastDelegateName)
		}
	}
}

// constraints applies the where clauses of node to params.
func (p *Program) constraints(params []*model.GenericParameter, node *sitter.Node, e env) {
	if len(params) == 0 {
		return
	}
	f := e.file
	for _, clause := range childrenOfType(node, "type_parameter_constraints_clause") {
		parts := namedChildren(clause)
		if len(parts) == 0 {
			continue
		}
		target := field(clause, "target")
		if target == nil {
			target = parts[0]
		}
		var gp *model.GenericParameter
		for _, c := range params {
			if c.Name == f.text(target) {
				gp = c
			}
		}
		if gp == nil {
			continue
		}
		for _, c := range parts {
			if keyOf(c) == keyOf(target) {
				continue
			}
			p.constraint(gp, c, e)
		}
	}
}

func (p *Program) constraint(gp *model.GenericParameter, c *sitter.Node, e env) {
	switch compact(e.file.text(c)) {
	case "class", "class?":
		gp.Flags |= model.ReferenceTypeConstraint
	case "struct":
		gp.Flags |= model.ValueTypeConstraint
	case "unmanaged":
		gp.Flags |= model.UnmanagedConstraint | model.ValueTypeConstraint
	case "new()":
		gp.Flags |= model.ConstructorConstraint
	case "notnull", "default":
	default:
		tn := c
		for tn != nil && !typeNodeKinds[tn.Type()] {
			tn = firstNamed(tn)
		}
		ct := p.resolveType(tn, e)
		// A constraint on a type outside the program cannot be checked.
		if ct != nil && !p.isExternal(ct) {
			gp.Constraints = append(gp.Constraints, ct)
		}
	}
}

func (p *Program) linkMembers(d *TypeDecl) {
	t := d.typ
	e := env{file: d.file, scope: d.scope, decl: d}
	switch d.Kind {
	case model.Enum:
		p.enumMembers(d, e)
		return
	case model.Delegate:
		p.delegateMembers(d, e)
		return
	}
	var positional []*model.Parameter
	if list := childOfType(d.node, "parameter_list"); list != nil {
		positional = p.parameters(list, e)
		t.AddMember(model.NewConstructor(model.Public, positional...))
	}
	def := model.Private
	if d.Kind == model.Interface {
		def = model.Public
	}
	for _, n := range namedChildren(childOfType(d.node, "declaration_list")) {
		switch n.Type() {
		case "method_declaration":
			p.method(d, n, e, def)
		case "constructor_declaration":
			mods := modifiers(n, d.file.Source)
			if mods["static"] {
				t.AddMember(model.NewStaticConstructor())
				continue
			}
			t.AddMember(model.NewConstructor(accessOr(mods, model.Private),
				p.parameters(childOfType(n, "parameter_list"), e)...))
		case "destructor_declaration":
			m := t.AddMember(model.NewMethod("Finalize", model.Protected, false, nil))
			m.Virtual, m.Override = true, true
		case "field_declaration":
			p.fields(d, n, e, def, false)
		case "event_field_declaration":
			p.fields(d, n, e, def, true)
		case "property_declaration":
			p.property(d, n, e, def)
		case "indexer_declaration":
			p.indexer(d, n, e, def)
		case "event_declaration":
			mods := modifiers(n, d.file.Source)
			name, acc := p.explicitName(d, n, mods, def)
			m := model.NewEvent(name, acc, mods["static"], p.resolveType(field(n, "type"), e))
			markVirtual(m, mods, d.Kind == model.Interface)
			t.AddMember(m)
		case "operator_declaration", "conversion_operator_declaration":
			p.operator(d, n, e)
		}
	}
	if d.node.Type() == "record_declaration" || d.node.Type() == "record_struct_declaration" {
		p.recordMembers(d, positional)
	}
}

func accessOr(mods map[string]bool, def model.Accessibility) model.Accessibility {
	if acc, ok := accessibility(mods); ok {
		return acc
	}
	return def
}

func markVirtual(m *model.Member, mods map[string]bool, iface bool) {
	m.Abstract = mods["abstract"] || (iface && !mods["static"])
	m.Virtual = m.Abstract || mods["virtual"] || mods["override"]
	m.Override = mods["override"]
}

// explicitName returns the metadata name and accessibility of a member,
// accounting for explicit interface implementations.
func (p *Program) explicitName(d *TypeDecl, n *sitter.Node, mods map[string]bool, def model.Accessibility) (string, model.Accessibility) {
	f := d.file
	name := f.text(field(n, "name"))
	if spec := childOfType(n, "explicit_interface_specifier"); spec != nil {
		return compact(f.text(firstNamed(spec))) + "." + name, model.Private
	}
	return name, accessOr(mods, def)
}

func (p *Program) method(d *TypeDecl, n *sitter.Node, e env, def model.Accessibility) {
	f := d.file
	mods := modifiers(n, f.Source)
	name, acc := p.explicitName(d, n, mods, def)
	if name == "" {
		return
	}
	var gps []*model.GenericParameter
	if list := childOfType(n, "type_parameter_list"); list != nil {
		for i, tp := range childrenOfType(list, "type_parameter") {
			gps = append(gps, model.NewGenericParameter(f.nameOf(tp), i, true))
		}
	}
	me := e
	me.method = gps
	p.constraints(gps, n, me)

	m := model.NewMethod(name, acc, mods["static"], p.returnType(n, me),
		p.parameters(childOfType(n, "parameter_list"), me)...)
	m.TypeParams = gps
	markVirtual(m, mods, d.Kind == model.Interface && childOfType(n, "block", "arrow_expression_clause") == nil)
	d.typ.AddMember(m)
	if len(gps) > 0 {
		f.methodParams[keyOf(n)] = gps
	}
}

// returnType resolves the declared return type, or nil for void.
func (p *Program) returnType(n *sitter.Node, e env) *model.Type {
	rt := field(n, "returns", "type")
	if rt == nil {
		rt = typeChild(n)
	}
	if rt == nil || (rt.Type() == "predefined_type" && e.file.text(rt) == "void") {
		return nil
	}
	return p.resolveType(rt, e)
}

// typeChild returns the first type-shaped child that is not the
// declaration's name.
func typeChild(n *sitter.Node) *sitter.Node {
	name := field(n, "name")
	for _, c := range namedChildren(n) {
		if name != nil && keyOf(c) == keyOf(name) {
			continue
		}
		if typeNodeKinds[c.Type()] {
			return c
		}
	}
	return nil
}

func (p *Program) parameters(list *sitter.Node, e env) []*model.Parameter {
	f := e.file
	var out []*model.Parameter
	for _, pn := range namedChildren(list) {
		if pn.Type() != "parameter" && pn.Type() != "parameter_array" {
			continue
		}
		prm := &model.Parameter{Name: f.nameOf(pn), IsParams: pn.Type() == "parameter_array"}
		for i := 0; i < int(pn.ChildCount()); i++ {
			c := pn.Child(i)
			tok := c.Type()
			if c.IsNamed() {
				tok = f.text(c)
			}
			switch tok {
			case "ref", "out", "in":
				prm.ByRef = true
			case "params":
				prm.IsParams = true
			}
		}
		tn := field(pn, "type")
		if tn == nil {
			tn = typeChild(pn)
		}
		prm.Type = p.resolveType(tn, e)
		if prm.Type == nil {
			prm.Type = model.Builtin(model.ObjectName)
		}
		if childOfType(pn, "equals_value_clause") != nil || hasToken(pn, "=") {
			prm.Optional, prm.HasDefault = true, true
		}
		out = append(out, prm)
	}
	return out
}

func (p *Program) fields(d *TypeDecl, n *sitter.Node, e env, def model.Accessibility, event bool) {
	f := d.file
	mods := modifiers(n, f.Source)
	acc := accessOr(mods, def)
	static := mods["static"] || mods["const"]
	decl := childOfType(n, "variable_declaration")
	tn := field(decl, "type")
	if tn == nil {
		tn = firstNamed(decl)
	}
	typ := p.resolveType(tn, e)
	for _, v := range childrenOfType(decl, "variable_declarator") {
		name := f.nameOf(v)
		if name == "" {
			continue
		}
		if event {
			m := model.NewEvent(name, acc, static, typ)
			markVirtual(m, mods, false)
			d.typ.AddMember(m)
			continue
		}
		d.typ.AddMember(model.NewField(name, acc, static, typ))
	}
}

// accessors reports the get and set accessors of a property or indexer and
// any accessibility they narrow to.
func accessors(n *sitter.Node, src []byte) (get, set bool, getAcc, setAcc model.Accessibility) {
	if childOfType(n, "arrow_expression_clause") != nil && childOfType(n, "accessor_list") == nil {
		return true, false, "", ""
	}
	for _, a := range childrenOfType(childOfType(n, "accessor_list"), "accessor_declaration") {
		acc, _ := accessibility(modifiers(a, src))
		kw := ""
		if name := field(a, "name"); name != nil {
			kw = string(src[name.StartByte():name.EndByte()])
		}
		switch {
		case kw == "get" || hasToken(a, "get"):
			get, getAcc = true, acc
		case kw == "set" || kw == "init" || hasToken(a, "set") || hasToken(a, "init"):
			set, setAcc = true, acc
		}
	}
	return get, set, getAcc, setAcc
}

func (p *Program) property(d *TypeDecl, n *sitter.Node, e env, def model.Accessibility) {
	mods := modifiers(n, d.file.Source)
	name, acc := p.explicitName(d, n, mods, def)
	get, set, getAcc, setAcc := accessors(n, d.file.Source)
	m := model.NewProperty(name, acc, mods["static"], p.resolveType(field(n, "type"), e), get, set)
	p.finishProperty(d, m, mods, getAcc, setAcc)
}

func (p *Program) indexer(d *TypeDecl, n *sitter.Node, e env, def model.Accessibility) {
	mods := modifiers(n, d.file.Source)
	acc := accessOr(mods, def)
	get, set, getAcc, setAcc := accessors(n, d.file.Source)
	params := p.parameters(childOfType(n, "bracketed_parameter_list"), e)
	m := model.NewIndexer(indexerName(n, d.file.Source), acc, p.resolveType(field(n, "type"), e), get, set, params...)
	p.finishProperty(d, m, mods, getAcc, setAcc)
}

// indexerName returns the name given by an [IndexerName("...")] attribute on
// the indexer declaration n, or the default name.
func indexerName(n *sitter.Node, src []byte) string {
	for _, list := range childrenOfType(n, "attribute_list") {
		for _, attr := range childrenOfType(list, "attribute") {
			name := field(attr, "name")
			if name == nil {
				name = firstNamed(attr)
			}
			if name == nil {
				continue
			}
			short := compact(lang.NodeText(name, src))
			if i := strings.LastIndexByte(short, '.'); i >= 0 {
				short = short[i+1:]
			}
			if short != "IndexerName" && short != "IndexerNameAttribute" {
				continue
			}
			args := childrenOfType(childOfType(attr, "attribute_argument_list"), "attribute_argument")
			if len(args) == 0 {
				continue
			}
			if v, ok := stringValue(unwrap(lastNamed(args[0])), src); ok && v != "" {
				return v
			}
		}
	}
	return model.DefaultIndexerName
}

func (p *Program) finishProperty(d *TypeDecl, m *model.Member, mods map[string]bool, getAcc, setAcc model.Accessibility) {
	iface := d.Kind == model.Interface
	markVirtual(m, mods, iface)
	for _, acc := range []struct {
		m   *model.Member
		acc model.Accessibility
	}{{m.Getter, getAcc}, {m.Setter, setAcc}} {
		if acc.m == nil {
			continue
		}
		if acc.acc != "" {
			acc.m.Accessibility = acc.acc
		}
		acc.m.Virtual, acc.m.Abstract, acc.m.Override = m.Virtual, m.Abstract, m.Override
	}
	d.typ.AddMember(m)
}

// operatorNames maps operator tokens to their metadata names; the second
// entry is used for the unary form where one exists.
var operatorNames = map[string][2]string{
	"+":     {"op_Addition", "op_UnaryPlus"},
	"-":     {"op_Subtraction", "op_UnaryNegation"},
	"*":     {"op_Multiply"},
	"/":     {"op_Division"},
	"%":     {"op_Modulus"},
	"&":     {"op_BitwiseAnd"},
	"|":     {"op_BitwiseOr"},
	"^":     {"op_ExclusiveOr"},
	"<<":    {"op_LeftShift"},
	">>":    {"op_RightShift"},
	"==":    {"op_Equality"},
	"!=":    {"op_Inequality"},
	"<":     {"op_LessThan"},
	">":     {"op_GreaterThan"},
	"<=":    {"op_LessThanOrEqual"},
	">=":    {"op_GreaterThanOrEqual"},
	"!":     {"", "op_LogicalNot"},
	"~":     {"", "op_OnesComplement"},
	"++":    {"", "op_Increment"},
	"--":    {"", "op_Decrement"},
	"true":  {"", "op_True"},
	"false": {"", "op_False"},
}

func (p *Program) operator(d *TypeDecl, n *sitter.Node, e env) {
	params := p.parameters(childOfType(n, "parameter_list"), e)
	var name string
	if n.Type() == "conversion_operator_declaration" {
		name = "op_Explicit"
		if hasToken(n, "implicit") {
			name = "op_Implicit"
		}
	} else {
		tok := ""
		if op := field(n, "operator"); op != nil {
			tok = op.Type()
		} else {
			for i := 0; i < int(n.ChildCount())-1; i++ {
				if n.Child(i).Type() == "operator" {
					tok = n.Child(i + 1).Type()
				}
			}
		}
		names, ok := operatorNames[tok]
		if !ok {
			return
		}
		name = names[0]
		if len(params) == 1 && names[1] != "" {
			name = names[1]
		}
		if name == "" {
			return
		}
	}
	d.typ.AddMember(model.NewMethod(name, model.Public, true, p.returnType(n, e), params...))
}

func (p *Program) enumMembers(d *TypeDecl, e env) {
	t := d.typ
	underlying := p.enums[t]
	if underlying == nil {
		underlying = model.Builtin(model.Int32Name)
	}
	t.AddMember(model.NewField("value__", model.Public, false, underlying))
	for _, m := range childrenOfType(childOfType(d.node, "enum_member_declaration_list"), "enum_member_declaration") {
		if name := e.file.nameOf(m); name != "" {
			t.AddMember(model.NewField(name, model.Public, true, t))
		}
	}
}

func (p *Program) delegateMembers(d *TypeDecl, e env) {
	t := d.typ
	t.AddMember(model.NewConstructor(model.Public,
		model.NewParameter("object", model.Builtin(model.ObjectName)),
		model.NewParameter("method", model.Builtin("System.IntPtr"))))
	params := p.parameters(childOfType(d.node, "parameter_list"), e)
	m := t.AddMember(model.NewMethod("Invoke", model.Public, false, p.returnType(d.node, e), params...))
	m.Virtual = true
}

// recordMembers adds the positional properties of a record that the body
// does not declare itself, and the copy constructor every record class
// gets unless it declares one.
func (p *Program) recordMembers(d *TypeDecl, positional []*model.Parameter) {
	t := d.typ
	declared := make(map[string]bool)
	hasCopy := false
	for _, m := range t.Members {
		declared[m.Name] = true
		if m.Kind == model.Constructor && !m.Static && len(m.Parameters) == 1 &&
			m.Parameters[0].Type != nil && m.Parameters[0].Type.Definition() == t {
			hasCopy = true
		}
	}
	for _, prm := range positional {
		if !declared[prm.Name] {
			t.AddMember(model.NewProperty(prm.Name, model.Public, false, prm.Type, true, true))
		}
	}
	if isRecordStruct(d.node) || hasCopy {
		return
	}
	acc := model.Protected
	if t.Sealed {
		acc = model.Private
	}
	t.AddMember(model.NewConstructor(acc, model.NewParameter("original", t)))
}

func isRecordStruct(n *sitter.Node) bool {
	return n.Type() == "record_struct_declaration" || hasToken(n, "struct")
}
