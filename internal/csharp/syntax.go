package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/reflguard/internal/lang"
)

// nodeKey identifies a node within one file's tree.
type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{n.StartByte(), n.EndByte(), n.Type()}
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// childOfType returns the first named child with one of the given types.
func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range namedChildren(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func childrenOfType(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

// field returns the child for a grammar field, trying each name in turn.
// Field names have moved between grammar releases.
func field(n *sitter.Node, names ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for _, name := range names {
		if c := n.ChildByFieldName(name); c != nil {
			return c
		}
	}
	return nil
}

// hasToken reports whether n has an anonymous child spelled tok.
func hasToken(n *sitter.Node, tok string) bool {
	if n == nil {
		return false
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

// operator returns the first anonymous child of a binary or unary
// expression.
func operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Type()
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); !c.IsNamed() {
			return c.Type()
		}
	}
	return ""
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

func lastNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(int(n.NamedChildCount()) - 1)
}

// within reports whether n lies inside outer.
func within(n, outer *sitter.Node) bool {
	return outer != nil && n.StartByte() >= outer.StartByte() && n.EndByte() <= outer.EndByte()
}

// unwrap strips parentheses, null-forgiving operators and checked blocks.
func unwrap(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression", "checked_expression":
			n = firstNamed(n)
		case "postfix_unary_expression":
			if operator(n) != "!" {
				return n
			}
			n = firstNamed(n)
		default:
			return n
		}
	}
	return n
}

func modifiers(n *sitter.Node, src []byte) map[string]bool {
	out := make(map[string]bool)
	for _, c := range childrenOfType(n, "modifier") {
		out[lang.NodeText(c, src)] = true
	}
	return out
}

// compact removes whitespace and a leading global:: from a name as written.
func compact(s string) string {
	s = strings.Join(strings.Fields(s), "")
	return strings.TrimPrefix(s, "global::")
}

// stringValue decodes a regular or verbatim string literal.
func stringValue(n *sitter.Node, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	raw := lang.NodeText(n, src)
	switch n.Type() {
	case "verbatim_string_literal":
		if len(raw) < 3 || !strings.HasPrefix(raw, `@"`) {
			return "", false
		}
		return strings.ReplaceAll(raw[2:len(raw)-1], `""`, `"`), true
	case "string_literal":
		if len(raw) < 2 || raw[0] != '"' {
			return "", false
		}
		return unescape(raw[1 : len(raw)-1]), true
	}
	return "", false
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// typeNodeKinds are the grammar nodes that spell a type.
var typeNodeKinds = map[string]bool{
	"predefined_type":       true,
	"identifier":            true,
	"qualified_name":        true,
	"generic_name":          true,
	"alias_qualified_name":  true,
	"array_type":            true,
	"nullable_type":         true,
	"pointer_type":          true,
	"tuple_type":            true,
	"ref_type":              true,
	"implicit_type":         true,
	"function_pointer_type": true,
}

// typeDeclKinds are the grammar nodes that declare a type.
var typeDeclKinds = map[string]bool{
	"class_declaration":         true,
	"struct_declaration":        true,
	"interface_declaration":     true,
	"enum_declaration":          true,
	"record_declaration":        true,
	"record_struct_declaration": true,
	"delegate_declaration":      true,
}
