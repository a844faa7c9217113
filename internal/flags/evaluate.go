package flags

import "github.com/phobologic/reflguard/internal/model"

// Minimal returns the narrowest flags that select m when looking it up on
// the type requested. The result always has one visibility bit and, except
// for nested types, one of Static or Instance. DeclaredOnly is added for
// members declared on the requested type itself, FlattenHierarchy for
// inherited static members. Constructors are never inherited, so they get
// neither.
func Minimal(m *model.Member, requested *model.Type) Flags {
	f := NonPublic
	if m.Accessibility.IsPublic() {
		f = Public
	}
	if m.Kind == model.NestedType {
		return f
	}
	if m.Static {
		f |= Static
	} else {
		f |= Instance
	}
	if m.Kind == model.Constructor {
		return f
	}
	if declaredOn(m, requested) {
		f |= DeclaredOnly
	} else if m.Static {
		f |= FlattenHierarchy
	}
	return f
}

// MinimalUnion merges the minimal flags of several members, used when the
// expected flags must cover a whole match set.
func MinimalUnion(members []*model.Member, requested *model.Type) Flags {
	var f Flags
	for _, m := range members {
		f |= Minimal(m, requested)
	}
	// DeclaredOnly only holds if every member is declared on the type.
	for _, m := range members {
		if !declaredOn(m, requested) {
			f &^= DeclaredOnly
			break
		}
	}
	return f
}

func declaredOn(m *model.Member, t *model.Type) bool {
	if m.DeclaringType == nil || t == nil {
		return false
	}
	return m.DeclaringType.Definition() == t.Definition()
}

// VerdictKind classifies supplied flags against the minimal flags.
type VerdictKind string

const (
	Correct   VerdictKind = "correct"
	TooNarrow VerdictKind = "too-narrow"
	Redundant VerdictKind = "redundant"
	Missing   VerdictKind = "missing"
	// Abstain means the supplied flags could not be evaluated, so no
	// claim is made about them.
	Abstain VerdictKind = "abstain"
)

// Verdict is the outcome of comparing flags. Expected is set for
// TooNarrow, Redundant and Missing.
type Verdict struct {
	Kind     VerdictKind
	Expected Flags
}

// OK reports whether the verdict needs no diagnostic.
func (v Verdict) OK() bool {
	return v.Kind == Correct || v.Kind == Abstain
}

// Compare classifies supplied against minimal. found reports whether the
// lookup with the supplied flags matched anything; unique reports whether it
// matched exactly one member.
//
// With no flags supplied the platform searches Public|Instance|Static, so
// the call is only reported Missing when the member is not a public
// instance member.
//
// A unique match is Redundant when the supplied flags carry a structural
// bit the member does not need: the second visibility bit, the second of
// Static and Instance, or FlattenHierarchy. DeclaredOnly is never counted;
// leaving it out widens nothing the match depends on.
func Compare(supplied Value, minimal Flags, found, unique bool) Verdict {
	switch {
	case supplied.Provenance == Unknown:
		return Verdict{Kind: Abstain}
	case supplied.IsAbsent():
		if minimal.Has(Public|Instance) && found {
			return Verdict{Kind: Correct}
		}
		return Verdict{Kind: Missing, Expected: minimal}
	case !found:
		return Verdict{Kind: TooNarrow, Expected: minimal}
	}
	extra := supplied.Flags.Structural() &^ minimal &^ DeclaredOnly
	if unique && extra != 0 {
		return Verdict{Kind: Redundant, Expected: minimal}
	}
	return Verdict{Kind: Correct}
}
