package flags

import (
	"strconv"
	"strings"
)

// Provenance says how much is known about flags at a call site.
type Provenance string

const (
	// Absent means the call passed no flags argument.
	Absent Provenance = "absent"
	// Literal means the value was folded from constants.
	Literal Provenance = "literal"
	// Unknown means the value comes from a non-constant expression or a
	// token that is not a BindingFlags member.
	Unknown Provenance = "unknown"
)

// Value is a flags value paired with its provenance.
type Value struct {
	Flags      Flags
	Provenance Provenance
}

// Known returns a literal value.
func Known(f Flags) Value {
	return Value{Flags: f, Provenance: Literal}
}

// IsKnown reports whether the value was statically evaluated.
func (v Value) IsKnown() bool {
	return v.Provenance == Literal
}

// IsAbsent reports whether no flags were passed.
func (v Value) IsAbsent() bool {
	return v.Provenance == Absent || v.Provenance == ""
}

func (v Value) String() string {
	switch v.Provenance {
	case Literal:
		return v.Flags.String()
	case Unknown:
		return "<unknown>"
	}
	return "<none>"
}

// Expr is the symbolic form of a flags argument: the operands of a chain
// of bitwise ors, as written.
type Expr struct {
	Operands []string
	// UsingStatic is set when `using static System.Reflection.BindingFlags`
	// is in scope, so bare member names are valid.
	UsingStatic bool
	// NonConstant marks expressions that are not a chain of ors over
	// constants, e.g. a variable, a method call or a conditional.
	NonConstant bool
}

// Parse folds e into a value. Any operand that is not a BindingFlags member
// or an integer literal makes the result Unknown.
func Parse(e Expr) Value {
	if e.NonConstant {
		return Value{Provenance: Unknown}
	}
	if len(e.Operands) == 0 {
		return Value{Provenance: Absent}
	}
	var f Flags
	for _, op := range e.Operands {
		v, ok := parseOperand(op, e.UsingStatic)
		if !ok {
			return Value{Provenance: Unknown}
		}
		f |= v
	}
	return Known(f)
}

// Written returns the flag of each operand in source order, for checking
// the order they are written in. It reports false when any operand is not
// a constant.
func Written(e Expr) ([]Flags, bool) {
	if e.NonConstant {
		return nil, false
	}
	out := make([]Flags, len(e.Operands))
	for i, op := range e.Operands {
		v, ok := parseOperand(op, e.UsingStatic)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

var qualifiers = []string{
	"global::System.Reflection." + TypeName + ".",
	"System.Reflection." + TypeName + ".",
	"Reflection." + TypeName + ".",
	TypeName + ".",
}

func parseOperand(op string, usingStatic bool) (Flags, bool) {
	op = strings.TrimSpace(op)
	for strings.HasPrefix(op, "(") && strings.HasSuffix(op, ")") && balanced(op[1:len(op)-1]) {
		op = strings.TrimSpace(op[1 : len(op)-1])
	}
	// (BindingFlags)36
	for _, cast := range []string{"(" + TypeName + ")", "(System.Reflection." + TypeName + ")"} {
		if rest, ok := strings.CutPrefix(op, cast); ok {
			return parseNumber(strings.TrimSpace(rest))
		}
	}
	if f, ok := parseNumber(op); ok {
		return f, true
	}
	for _, q := range qualifiers {
		if name, ok := strings.CutPrefix(op, q); ok {
			return Lookup(name)
		}
	}
	if usingStatic {
		return Lookup(op)
	}
	return 0, false
}

func parseNumber(s string) (Flags, bool) {
	s = strings.TrimRight(s, "uUlL")
	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = rest, 16
	}
	s = strings.ReplaceAll(s, "_", "")
	n, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, false
	}
	return Flags(n), true
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
