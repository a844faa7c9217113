package csharp

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/reflguard/internal/model"
)

// implicitUsings are the namespaces SDK-style projects import globally.
var implicitUsings = []string{"System", "System.Collections.Generic", "System.Reflection"}

// env is the context a type name is resolved in.
type env struct {
	file   *File
	scope  *scope
	decl   *TypeDecl
	method []*model.GenericParameter
}

func (p *Program) envAt(f *File, n *sitter.Node) env {
	e := env{file: f, scope: f.scopeAt(n), decl: f.enclosingDecl(n)}
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if gps, ok := f.methodParams[keyOf(cur)]; ok {
			e.method = append(e.method, gps...)
		}
		if typeDeclKinds[cur.Type()] {
			break
		}
	}
	return e
}

// segment is one dotted part of a type name, with its type arguments.
type segment struct {
	name string
	args []*sitter.Node
	// open counts the omitted arguments of an unbound name like Dictionary<,>.
	open int
}

func (s segment) arity() int {
	if s.open > 0 {
		return s.open
	}
	return len(s.args)
}

func (s segment) metadataName() string {
	if n := s.arity(); n > 0 {
		return fmt.Sprintf("%s`%d", s.name, n)
	}
	return s.name
}

// resolveType maps a type syntax node to a model type. Names that do not
// resolve become placeholders so that signatures stay complete.
func (p *Program) resolveType(n *sitter.Node, e env) *model.Type {
	return p.typeOf(n, e, false)
}

// lookupType is resolveType without placeholders: unknown names give nil.
// It is used where a node might name something other than a type.
func (p *Program) lookupType(n *sitter.Node, e env) *model.Type {
	return p.typeOf(n, e, true)
}

func (p *Program) typeOf(n *sitter.Node, e env, strict bool) *model.Type {
	if n == nil {
		return nil
	}
	f := e.file
	switch n.Type() {
	case "predefined_type":
		if name, ok := model.Keywords[f.text(n)]; ok {
			t, _ := p.Catalog.Lookup(name)
			return t
		}
		return nil
	case "implicit_type":
		return nil
	case "array_type":
		elem := p.typeOf(field(n, "type"), e, strict)
		if elem == nil {
			elem = p.typeOf(firstNamed(n), e, strict)
		}
		if elem == nil {
			return nil
		}
		rank := 1
		if spec := childOfType(n, "array_rank_specifier"); spec != nil {
			rank = strings.Count(f.text(spec), ",") + 1
		}
		return model.ArrayOf(elem, rank)
	case "nullable_type":
		inner := p.typeOf(firstNamed(n), e, strict)
		if inner != nil && model.IsNonNullableValueType(inner) {
			return model.Construct(model.Builtin(model.NullableName), inner)
		}
		return inner
	case "pointer_type":
		if inner := p.typeOf(firstNamed(n), e, strict); inner != nil {
			return model.PointerOf(inner)
		}
		return nil
	case "ref_type":
		return p.typeOf(lastNamed(n), e, strict)
	case "identifier", "generic_name", "qualified_name", "alias_qualified_name", "member_access_expression":
		segs := p.segments(n, f)
		if len(segs) == 0 {
			return nil
		}
		if t := p.named(segs, e, strict); t != nil {
			return t
		}
		if strict {
			return nil
		}
		return p.placeholder(segs, e)
	}
	return nil
}

// segments flattens a dotted name. Member access expressions are accepted
// so that type names written in expression position (nameof(A.B)) resolve.
func (p *Program) segments(n *sitter.Node, f *File) []segment {
	switch n.Type() {
	case "identifier":
		return []segment{{name: f.text(n)}}
	case "generic_name":
		s := segment{name: f.text(childOfType(n, "identifier"))}
		if list := childOfType(n, "type_argument_list"); list != nil {
			s.args = namedChildren(list)
			if len(s.args) == 0 {
				s.open = strings.Count(f.text(list), ",") + 1
			}
		}
		return []segment{s}
	case "qualified_name", "member_access_expression":
		parts := namedChildren(n)
		if len(parts) != 2 {
			return nil
		}
		left := p.segments(parts[0], f)
		right := p.segments(parts[1], f)
		if left == nil || right == nil {
			return nil
		}
		return append(left, right...)
	case "alias_qualified_name":
		// global::A.B and alias::A both name from the root here.
		return p.segments(lastNamed(n), f)
	}
	return nil
}

func (p *Program) named(segs []segment, e env, strict bool) *model.Type {
	def, used := p.first(segs, e)
	if def == nil {
		return nil
	}
	t, ok := p.instantiate(def, segs[used-1], e, strict)
	if !ok {
		return nil
	}
	for _, s := range segs[used:] {
		nested := nestedType(t, s.metadataName())
		if nested == nil {
			return nil
		}
		if t, ok = p.instantiate(nested, s, e, strict); !ok {
			return nil
		}
	}
	return t
}

// first resolves the leading segments to a type definition and reports how
// many segments it consumed.
func (p *Program) first(segs []segment, e env) (*model.Type, int) {
	if t := p.simple(segs[0], e); t != nil {
		return t, 1
	}
	for k := 1; k < len(segs); k++ {
		names := make([]string, k)
		for i, s := range segs[:k] {
			if s.arity() > 0 {
				return nil, 0
			}
			names[i] = s.name
		}
		if t := p.qualified(strings.Join(names, "."), segs[k].metadataName(), e); t != nil {
			return t, k + 1
		}
	}
	return nil, 0
}

// simple resolves an unqualified name the way C# does: type parameters,
// nested types of enclosing types, enclosing namespaces, aliases, usings.
func (p *Program) simple(s segment, e env) *model.Type {
	meta := s.metadataName()
	if s.arity() == 0 {
		for _, gp := range e.method {
			if gp.Name == s.name {
				return gp.Type()
			}
		}
		for d := e.decl; d != nil; d = d.parent {
			if d.typ == nil {
				continue
			}
			for _, gp := range d.typ.TypeParams {
				if gp.Name == s.name {
					return gp.Type()
				}
			}
		}
	}
	for d := e.decl; d != nil; d = d.parent {
		if d.typ == nil {
			continue
		}
		if t := nestedType(d.typ, meta); t != nil {
			return t
		}
	}
	for _, ns := range enclosingNamespaces(e.scope) {
		if t, ok := p.Catalog.Lookup(joinNamespace(ns, meta)); ok {
			return t
		}
	}
	for sc := e.scope; sc != nil; sc = sc.parent {
		if target, ok := sc.aliases[s.name]; ok && s.arity() == 0 {
			if t := p.lookupType(target, env{file: e.file, scope: sc.parent}); t != nil {
				return t
			}
		}
	}
	for sc := e.scope; sc != nil; sc = sc.parent {
		for _, u := range sc.usings {
			if t, ok := p.Catalog.Lookup(u + "." + meta); ok {
				return t
			}
		}
	}
	for _, u := range implicitUsings {
		if t, ok := p.Catalog.Lookup(u + "." + meta); ok {
			return t
		}
	}
	return nil
}

// qualified resolves ns.meta where ns may be relative to an enclosing
// namespace or start with a namespace alias.
func (p *Program) qualified(ns, meta string, e env) *model.Type {
	candidates := []string{ns}
	head, rest, _ := strings.Cut(ns, ".")
	for sc := e.scope; sc != nil; sc = sc.parent {
		if target, ok := sc.aliases[head]; ok {
			candidates = append(candidates, joinNamespace(compact(e.file.text(target)), rest))
		}
	}
	for _, outer := range enclosingNamespaces(e.scope) {
		if outer != "" {
			candidates = append(candidates, outer+"."+ns)
		}
	}
	for _, c := range candidates {
		c = strings.TrimSuffix(c, ".")
		if t, ok := p.Catalog.Lookup(c + "." + meta); ok {
			return t
		}
	}
	return nil
}

func (p *Program) instantiate(def *model.Type, s segment, e env, strict bool) (*model.Type, bool) {
	if len(s.args) == 0 {
		return def, true
	}
	if len(s.args) != len(def.TypeParams) {
		return nil, false
	}
	args := make([]*model.Type, len(s.args))
	for i, a := range s.args {
		if args[i] = p.typeOf(a, e, strict); args[i] == nil {
			return nil, false
		}
	}
	return model.Construct(def, args...), true
}

// nestedType finds a nested type declared on t or inherited from its bases.
func nestedType(t *model.Type, meta string) *model.Type {
	for _, level := range append([]*model.Type{t}, model.BaseChain(t)...) {
		for _, m := range level.Definition().DeclaredMembersOfKind(model.NestedType) {
			if m.Name == meta {
				return m.Nested
			}
		}
	}
	return nil
}

// enclosingNamespaces lists the namespace of sc and each of its parents,
// innermost first, ending with the global namespace.
func enclosingNamespaces(sc *scope) []string {
	var ns string
	for cur := sc; cur != nil; cur = cur.parent {
		if cur.namespace != "" {
			ns = cur.namespace
			break
		}
	}
	var out []string
	for ns != "" {
		out = append(out, ns)
		i := strings.LastIndexByte(ns, '.')
		if i < 0 {
			break
		}
		ns = ns[:i]
	}
	return append(out, "")
}

// placeholder stands in for a type the sources reference but do not
// declare, such as a type from a package. Placeholders are metadata-only
// and shared by simple name, so the same external type spelled two ways
// still compares identical.
func (p *Program) placeholder(segs []segment, e env) *model.Type {
	last := segs[len(segs)-1]
	key := last.metadataName()

	p.mu.Lock()
	def, ok := p.placeholders[key]
	if !ok {
		kind := model.Class
		if len(last.name) > 1 && last.name[0] == 'I' && last.name[1] >= 'A' && last.name[1] <= 'Z' {
			kind = model.Interface
		}
		def = model.NewType(key, kind)
		def.MetadataOnly = true
		if kind == model.Class {
			def.Base = model.Builtin(model.ObjectName)
		}
		for i := 0; i < last.arity(); i++ {
			def.TypeParams = append(def.TypeParams, model.NewGenericParameter(fmt.Sprintf("T%d", i+1), i, false))
		}
		p.placeholders[key] = def
		p.external[def] = true
	}
	p.mu.Unlock()

	if len(last.args) == 0 {
		return def
	}
	t, ok := p.instantiate(def, last, e, false)
	if !ok {
		return def
	}
	return t
}

// isExternal reports whether t is, or is built from, a placeholder.
func (p *Program) isExternal(t *model.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case model.Array, model.ByRef, model.Pointer:
		return p.isExternal(t.ElementType())
	}
	p.mu.Lock()
	ext := p.external[t.Definition()]
	p.mu.Unlock()
	if ext {
		return true
	}
	for _, a := range t.TypeArgs() {
		if p.isExternal(a) {
			return true
		}
	}
	return false
}
