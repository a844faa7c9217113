// Package csharp is the C# front end: it parses source files with
// tree-sitter, links their type declarations into the model and extracts
// the reflection call sites the analyzer checks.
package csharp

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/reflguard/internal/lang"
	"github.com/phobologic/reflguard/internal/model"
)

// File is a parsed source file. Its syntax tree stays open until Close
// because call sites are extracted after every file has been linked.
type File struct {
	Path   string
	Source []byte

	tree  *sitter.Tree
	root  *scope
	decls []*TypeDecl
	// declAt finds the declaration for a type declaration node.
	declAt map[nodeKey]*TypeDecl
	// methodParams holds the type parameters of generic methods.
	methodParams map[nodeKey][]*model.GenericParameter
}

// TypeDecl is one type declaration in a file. Partial declarations of the
// same type share the linked model.Type.
type TypeDecl struct {
	Name   string
	Kind   model.TypeKind
	node   *sitter.Node
	parent *TypeDecl
	scope  *scope
	file   *File
	typ    *model.Type
}

// Type returns the linked type, or nil before Link.
func (d *TypeDecl) Type() *model.Type { return d.typ }

// scope is the name-resolution context contributed by a compilation unit
// or namespace block.
type scope struct {
	parent    *scope
	namespace string
	usings    []string
	aliases   map[string]*sitter.Node
	statics   []string
}

func (s *scope) child(namespace string) *scope {
	return &scope{parent: s, namespace: namespace, aliases: make(map[string]*sitter.Node)}
}

// usingStatic reports whether `using static` brings the members of the
// named type into scope. name is matched on its last segments.
func (s *scope) usingStatic(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		for _, st := range cur.statics {
			if st == name || strings.HasSuffix(st, "."+name) {
				return true
			}
		}
	}
	return false
}

// Parse parses source and collects its type declarations. path is used
// for diagnostics and should be repo-relative.
func Parse(ctx context.Context, parser *sitter.Parser, source []byte, path string) (*File, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f := &File{
		Path:         path,
		Source:       source,
		tree:         tree,
		declAt:       make(map[nodeKey]*TypeDecl),
		methodParams: make(map[nodeKey][]*model.GenericParameter),
	}
	f.root = (&scope{}).child("")
	f.collect(tree.RootNode(), f.root, nil)
	return f, nil
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Decls returns the type declarations in source order, outer before nested.
func (f *File) Decls() []*TypeDecl { return f.decls }

func (f *File) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return lang.NodeText(n, f.Source)
}

// nameOf returns the declared name of a declaration node.
func (f *File) nameOf(n *sitter.Node) string {
	c := field(n, "name")
	if c == nil {
		c = childOfType(n, "identifier", "qualified_name")
	}
	return f.text(c)
}

func (f *File) collect(node *sitter.Node, sc *scope, parent *TypeDecl) {
	for _, c := range namedChildren(node) {
		switch c.Type() {
		case "using_directive":
			f.using(c, sc)
		case "namespace_declaration":
			name := compact(f.nameOf(c))
			nsc := sc.child(joinNamespace(sc.namespace, name))
			f.collect(childOfType(c, "declaration_list"), nsc, nil)
		case "file_scoped_namespace_declaration":
			name := compact(f.nameOf(c))
			// The rest of the compilation unit belongs to the namespace;
			// some grammar versions also nest it under this node.
			sc = sc.child(joinNamespace(sc.namespace, name))
			f.collect(c, sc, nil)
		case "declaration_list":
			f.collect(c, sc, parent)
		default:
			if typeDeclKinds[c.Type()] {
				d := f.declare(c, sc, parent)
				if body := childOfType(c, "declaration_list"); body != nil {
					f.collect(body, sc, d)
				}
			}
		}
	}
}

func (f *File) using(n *sitter.Node, sc *scope) {
	target := lastNamed(n)
	if target == nil {
		return
	}
	name := compact(f.text(target))
	switch {
	case hasToken(n, "static"):
		sc.statics = append(sc.statics, name)
	case hasToken(n, "="):
		alias := firstNamed(n)
		if alias != nil && alias.Type() == "name_equals" {
			alias = firstNamed(alias)
		}
		if alias != nil && keyOf(alias) != keyOf(target) {
			sc.aliases[f.text(alias)] = target
		}
	default:
		sc.usings = append(sc.usings, name)
	}
}

func (f *File) declare(n *sitter.Node, sc *scope, parent *TypeDecl) *TypeDecl {
	name := f.nameOf(n)
	if params := childOfType(n, "type_parameter_list"); params != nil {
		name += fmt.Sprintf("`%d", len(childrenOfType(params, "type_parameter")))
	}
	switch {
	case parent != nil:
		name = parent.Name + "+" + name
	case sc.namespace != "":
		name = sc.namespace + "." + name
	}
	d := &TypeDecl{Name: name, Kind: declKind(n), node: n, parent: parent, scope: sc, file: f}
	f.decls = append(f.decls, d)
	f.declAt[keyOf(n)] = d
	return d
}

func declKind(n *sitter.Node) model.TypeKind {
	switch n.Type() {
	case "struct_declaration", "record_struct_declaration":
		return model.Struct
	case "interface_declaration":
		return model.Interface
	case "enum_declaration":
		return model.Enum
	case "delegate_declaration":
		return model.Delegate
	case "record_declaration":
		if hasToken(n, "struct") {
			return model.Struct
		}
	}
	return model.Class
}

func joinNamespace(outer, inner string) string {
	if outer == "" {
		return inner
	}
	return outer + "." + inner
}

// enclosingDecl returns the innermost type declaration containing n.
func (f *File) enclosingDecl(n *sitter.Node) *TypeDecl {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		if typeDeclKinds[cur.Type()] {
			return f.declAt[keyOf(cur)]
		}
	}
	return nil
}

// scopeAt returns the scope in effect at n.
func (f *File) scopeAt(n *sitter.Node) *scope {
	if d := f.enclosingDecl(n); d != nil {
		return d.scope
	}
	return f.root
}
