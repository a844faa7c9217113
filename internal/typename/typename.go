// Package typename parses the type-name strings accepted by Type.GetType:
// namespace-qualified metadata names with arity suffixes, bracketed generic
// argument lists, array/pointer/by-ref suffixes and assembly qualification.
//
// Argument text is taken verbatim up to its delimiter; nothing is trimmed,
// so "List`1[System.Int32 ]" has the argument "System.Int32 ".
package typename

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phobologic/reflguard/internal/model"
)

// MaxDepth bounds generic argument nesting.
const MaxDepth = 32

var (
	ErrEmpty         = errors.New("empty type name")
	ErrSyntax        = errors.New("malformed type name")
	ErrArityMismatch = errors.New("generic arity does not match argument count")
	ErrTooDeep       = errors.New("generic arguments nested too deeply")
)

// TypeName is a parsed type name.
type TypeName struct {
	// Name is the metadata name including `N suffixes and '+' separators.
	Name string
	Args []TypeName
	// Suffix holds array, pointer and by-ref modifiers in source order,
	// e.g. "[]", "[,]*" or "&".
	Suffix string
	// Assembly is the assembly qualification that was stripped, if any.
	Assembly string
}

// Arity returns the number of generic arguments the name declares, summed
// over declaring types for nested names.
func (n TypeName) Arity() int {
	a, _ := arity(n.Name)
	return a
}

// IsGeneric reports whether the name declares generic parameters.
func (n TypeName) IsGeneric() bool {
	return n.Arity() > 0
}

// IsOpen reports whether a generic name was given without arguments.
func (n TypeName) IsOpen() bool {
	return n.IsGeneric() && len(n.Args) == 0
}

// String renders the canonical form: assembly qualification dropped and
// every generic argument double-bracketed.
func (n TypeName) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n TypeName) write(b *strings.Builder) {
	b.WriteString(n.Name)
	if len(n.Args) > 0 {
		b.WriteByte('[')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			a.write(b)
			b.WriteByte(']')
		}
		b.WriteByte(']')
	}
	b.WriteString(n.Suffix)
}

// Equal reports whether n and o name the same type, ignoring assembly
// qualification.
func (n TypeName) Equal(o TypeName) bool {
	if n.Name != o.Name || n.Suffix != o.Suffix || len(n.Args) != len(o.Args) {
		return false
	}
	for i := range n.Args {
		if !n.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Parse parses text as Type.GetType would see it.
func Parse(text string) (TypeName, error) {
	if strings.TrimSpace(text) == "" {
		return TypeName{}, ErrEmpty
	}
	p := &parser{s: text}
	n, err := p.typeName(0, true, false)
	if err != nil {
		return TypeName{}, err
	}
	if p.pos != len(p.s) {
		return TypeName{}, p.errorf("unexpected %q", p.s[p.pos])
	}
	return n, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}

// typeName parses Name[args]suffix with an optional ", Assembly" tail.
// bracketed is set inside [...] where the assembly tail ends at ']'.
func (p *parser) typeName(depth int, qualified, bracketed bool) (TypeName, error) {
	if depth > MaxDepth {
		return TypeName{}, ErrTooDeep
	}
	start := p.pos
	for p.pos < len(p.s) && strings.IndexByte("[],&*", p.s[p.pos]) < 0 {
		p.pos++
	}
	name := p.s[start:p.pos]
	if strings.TrimSpace(name) == "" {
		return TypeName{}, p.errorf("missing type name")
	}
	want, err := arity(name)
	if err != nil {
		return TypeName{}, fmt.Errorf("%w: %q: %v", ErrSyntax, name, err)
	}
	n := TypeName{Name: name}

	if p.peek() == '[' && !p.arraySpecAhead() {
		args, err := p.args(depth)
		if err != nil {
			return TypeName{}, err
		}
		if len(args) != want {
			return TypeName{}, fmt.Errorf("%w: %s declares %d, found %d", ErrArityMismatch, name, want, len(args))
		}
		n.Args = args
	}

	suffix, err := p.suffix()
	if err != nil {
		return TypeName{}, err
	}
	n.Suffix = suffix

	if qualified && p.peek() == ',' {
		p.pos++
		end := len(p.s)
		if bracketed {
			if i := strings.IndexByte(p.s[p.pos:], ']'); i >= 0 {
				end = p.pos + i
			}
		}
		n.Assembly = strings.TrimSpace(p.s[p.pos:end])
		if n.Assembly == "" {
			return TypeName{}, p.errorf("missing assembly name")
		}
		p.pos = end
	}
	return n, nil
}

// args parses a bracketed generic argument list. Each argument is either a
// bare name or a [name, assembly] group.
func (p *parser) args(depth int) ([]TypeName, error) {
	p.pos++ // '['
	var out []TypeName
	for {
		p.skipSpaceBefore('[')
		var arg TypeName
		var err error
		if p.peek() == '[' {
			p.pos++
			arg, err = p.typeName(depth+1, true, true)
			if err != nil {
				return nil, err
			}
			if p.peek() != ']' {
				return nil, p.errorf("expected ']' after generic argument")
			}
			p.pos++
		} else {
			arg, err = p.typeName(depth+1, false, false)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, arg)
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ']' in generic argument list")
		}
	}
}

// skipSpaceBefore skips whitespace only when it precedes c, so bare
// arguments keep their text verbatim.
func (p *parser) skipSpaceBefore(c byte) {
	i := p.pos
	for i < len(p.s) && p.s[i] == ' ' {
		i++
	}
	if i < len(p.s) && p.s[i] == c {
		p.pos = i
	}
}

// arraySpecAhead reports whether the '[' at pos opens an array rank
// specifier ("[]", "[,,]" or "[*]") rather than an argument list.
func (p *parser) arraySpecAhead() bool {
	i := p.pos + 1
	if i < len(p.s) && p.s[i] == '*' {
		return i+1 < len(p.s) && p.s[i+1] == ']'
	}
	for i < len(p.s) && p.s[i] == ',' {
		i++
	}
	return i < len(p.s) && p.s[i] == ']'
}

func (p *parser) suffix() (string, error) {
	start := p.pos
	for {
		switch p.peek() {
		case '[':
			if !p.arraySpecAhead() {
				return "", p.errorf("unexpected '['")
			}
			end := strings.IndexByte(p.s[p.pos:], ']')
			p.pos += end + 1
		case '*':
			p.pos++
		case '&':
			p.pos++
			if p.peek() == '&' || p.peek() == '[' || p.peek() == '*' {
				return "", p.errorf("by-ref must be the last modifier")
			}
		default:
			return p.s[start:p.pos], nil
		}
	}
}

// arity sums the `N suffixes of every segment of a nested name.
func arity(name string) (int, error) {
	total := 0
	for i := 0; i < len(name); i++ {
		if name[i] != '`' {
			continue
		}
		j := i + 1
		n := 0
		for j < len(name) && name[j] >= '0' && name[j] <= '9' {
			n = n*10 + int(name[j]-'0')
			if n > 1<<16 {
				return 0, errors.New("arity out of range")
			}
			j++
		}
		if j == i+1 {
			return 0, errors.New("backtick without arity")
		}
		total += n
		i = j - 1
	}
	return total, nil
}

// Resolve maps the parsed name onto a type of u, constructing generic
// instantiations and applying suffixes. It reports false when any part of
// the name is unknown.
func (n TypeName) Resolve(u model.Universe) (*model.Type, bool) {
	def, ok := u.Lookup(n.Name)
	if !ok {
		return nil, false
	}
	t := def
	if len(n.Args) > 0 {
		if len(n.Args) != len(def.TypeParams) {
			return nil, false
		}
		args := make([]*model.Type, len(n.Args))
		for i, a := range n.Args {
			at, ok := a.Resolve(u)
			if !ok {
				return nil, false
			}
			args[i] = at
		}
		t = model.Construct(def, args...)
	}
	s := n.Suffix
	for len(s) > 0 {
		switch s[0] {
		case '[':
			end := strings.IndexByte(s, ']')
			t = model.ArrayOf(t, strings.Count(s[:end], ",")+1)
			s = s[end+1:]
		case '*':
			t = model.PointerOf(t)
			s = s[1:]
		case '&':
			t = model.ByRefOf(t)
			s = s[1:]
		}
	}
	return t, true
}
