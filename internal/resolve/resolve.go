// Package resolve reproduces the member lookups of System.Type: it gathers
// candidates along the inheritance chain with hiding applied, filters them
// by name and binding flags, runs overload selection and classifies the
// outcome together with a verdict on the supplied flags.
package resolve

import (
	"strings"

	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/overload"
)

// CallKind is the reflection API a lookup models.
type CallKind string

const (
	GetMethod      CallKind = "GetMethod"
	GetProperty    CallKind = "GetProperty"
	GetField       CallKind = "GetField"
	GetConstructor CallKind = "GetConstructor"
	GetNestedType  CallKind = "GetNestedType"
	GetEvent       CallKind = "GetEvent"
)

// MemberKind returns the kind of member the call looks up.
func (k CallKind) MemberKind() model.MemberKind {
	switch k {
	case GetMethod:
		return model.Method
	case GetProperty:
		return model.Property
	case GetField:
		return model.Field
	case GetConstructor:
		return model.Constructor
	case GetNestedType:
		return model.NestedType
	case GetEvent:
		return model.Event
	}
	return ""
}

// DefaultLookup returns the flags the platform uses when none are passed.
func (k CallKind) DefaultLookup() flags.Flags {
	switch k {
	case GetConstructor:
		return flags.DefaultConstructorLookup
	case GetNestedType:
		return flags.DefaultNestedLookup
	}
	return flags.DefaultLookup
}

// Kind classifies a lookup.
type Kind string

const (
	NoMatch    Kind = "no-match"
	Single     Kind = "single"
	Ambiguous  Kind = "ambiguous"
	WrongTypes Kind = "wrong-types"
	// PotentiallyInvisible means nothing matched but the type has members
	// the analysis cannot see, so absence is not asserted.
	PotentiallyInvisible Kind = "potentially-invisible"
	// Indeterminate means the call site is not statically known well
	// enough to classify, e.g. a computed member name.
	Indeterminate Kind = "indeterminate"
)

// Query describes a member lookup at a call site.
type Query struct {
	Type *model.Type
	Call CallKind
	Name string
	// NameUnknown marks a member name that is not a constant.
	NameUnknown bool
	Flags       flags.Value
	// Types is the parameter-type filter. It applies when HasTypes is set,
	// so an empty filter (Type.EmptyTypes) differs from none.
	Types    []*model.Type
	HasTypes bool
	// TypesUnknown marks a filter whose elements are not all known.
	TypesUnknown bool
	// ReturnType filters properties by type, as GetProperty(name, type).
	ReturnType *model.Type
}

// MatchResult is the outcome of Resolve.
type MatchResult struct {
	Kind Kind
	// Members holds the match for Single, the tied members for Ambiguous
	// and the name matches for WrongTypes. For NoMatch it lists what a
	// lookup with every flag set would have found.
	Members []*model.Member
	// Verdict judges the supplied flags. It is Abstain when the flags
	// could not be evaluated or the outcome says nothing about them.
	Verdict flags.Verdict
	// Lookup is the flags the search ran with.
	Lookup flags.Flags
	// Reason explains a NoMatch outcome that is not a plain absence.
	Reason string
}

// Member returns the resolved member for Single, otherwise nil.
func (r MatchResult) Member() *model.Member {
	if r.Kind != Single || len(r.Members) == 0 {
		return nil
	}
	return r.Members[0]
}

// everything searches every member reachable through reflection.
const everything = flags.Public | flags.NonPublic | flags.Instance | flags.Static | flags.FlattenHierarchy

// Resolve runs the lookup q describes.
//
// With flags from a non-constant expression the search runs with every
// flag: absence and wrong parameter types are still reported because no
// flags value could change them, a unique member is still returned, but
// several members only yield Indeterminate since the real flags might have
// narrowed them to one.
func Resolve(q Query) MatchResult {
	if q.Type == nil || q.NameUnknown && q.Call != GetConstructor {
		return MatchResult{Kind: Indeterminate, Verdict: flags.Verdict{Kind: flags.Abstain}}
	}
	var lookup flags.Flags
	switch {
	case q.Flags.Provenance == flags.Unknown:
		lookup = everything
	case q.Flags.IsAbsent():
		lookup = q.Call.DefaultLookup()
	default:
		lookup = q.Flags.Flags.Effective()
	}

	r := search(q, lookup)
	r.Lookup = lookup
	r.Verdict = flags.Verdict{Kind: flags.Abstain}
	if q.Flags.Provenance == flags.Unknown {
		if r.Kind == Ambiguous {
			r.Kind = Indeterminate
		}
		return r
	}

	switch r.Kind {
	case Single:
		minimal := flags.Minimal(r.Members[0], q.Type)
		r.Verdict = flags.Compare(q.Flags, minimal, true, true)
	case Ambiguous:
		minimal := flags.MinimalUnion(r.Members, q.Type)
		r.Verdict = flags.Compare(q.Flags, minimal, true, false)
	case NoMatch:
		// Find out whether other flags would have found the member.
		wide := search(q, everything)
		if wide.Kind == Single || wide.Kind == Ambiguous {
			r.Verdict = flags.Compare(q.Flags, flags.MinimalUnion(wide.Members, q.Type), false, false)
			r.Members = wide.Members
		}
	}
	return r
}

func search(q Query, lookup flags.Flags) MatchResult {
	kind := q.Call.MemberKind()
	members, visible := Candidates(q.Type, kind, lookup)
	matched := members[:0:0]
	for _, m := range members {
		if q.Call == GetConstructor || nameMatches(m, q.Name, lookup.Has(flags.IgnoreCase)) {
			matched = append(matched, m)
		}
	}
	if q.ReturnType != nil {
		kept := matched[:0:0]
		for _, m := range matched {
			if model.Identical(m.Type, q.ReturnType) {
				kept = append(kept, m)
			}
		}
		matched = kept
	}

	if len(matched) == 0 {
		if lookup.Has(flags.NonPublic) && !visible {
			return MatchResult{Kind: PotentiallyInvisible}
		}
		return MatchResult{Kind: NoMatch}
	}

	if q.HasTypes && (kind == model.Method || kind == model.Constructor || kind == model.Property) {
		if q.TypesUnknown {
			return MatchResult{Kind: Indeterminate, Members: matched}
		}
		sel := overload.Select(matched, q.Types)
		switch sel.Kind {
		case overload.Single:
			return MatchResult{Kind: Single, Members: sel.Members}
		case overload.Ambiguous:
			return MatchResult{Kind: Ambiguous, Members: sel.Members}
		}
		return MatchResult{Kind: WrongTypes, Members: matched}
	}
	if len(matched) > 1 {
		return MatchResult{Kind: Ambiguous, Members: matched}
	}
	return MatchResult{Kind: Single, Members: matched}
}

func nameMatches(m *model.Member, name string, ignoreCase bool) bool {
	if ignoreCase {
		return strings.EqualFold(m.Name, name)
	}
	return m.Name == name
}

// Candidates returns the members of kind that a lookup with the given flags
// sees on t, walking base types unless DeclaredOnly is set. Members hidden
// by a more derived member with the same signature (same name for fields
// and events) are dropped. visible reports whether every member of t is
// known to the analysis.
func Candidates(t *model.Type, kind model.MemberKind, lookup flags.Flags) (members []*model.Member, visible bool) {
	levels := []*model.Type{t}
	inherits := kind != model.Constructor && kind != model.NestedType && t.Kind != model.Interface
	if inherits && !lookup.Has(flags.DeclaredOnly) {
		levels = append(levels, model.BaseChain(t)...)
	}
	hidden := make(map[string]bool)
	for depth, level := range levels {
		var here []string
		for _, m := range declared(level, kind) {
			if !selects(m, lookup, depth > 0) {
				continue
			}
			key := hideKey(m)
			if hidden[key] {
				continue
			}
			members = append(members, m)
			here = append(here, key)
		}
		// Overloads on one level do not hide each other.
		for _, k := range here {
			hidden[k] = true
		}
	}
	return members, t.FullyVisible()
}

func declared(t *model.Type, kind model.MemberKind) []*model.Member {
	switch kind {
	case model.Method:
		// Accessors are methods too: GetMethod("get_Name") finds them.
		out := t.DeclaredMembersOfKind(kind)
		for _, m := range t.DeclaredMembers() {
			for _, acc := range []*model.Member{m.Getter, m.Setter, m.Adder, m.Remover} {
				if acc != nil {
					out = append(out, acc)
				}
			}
		}
		return out
	case model.Constructor:
	default:
		return t.DeclaredMembersOfKind(kind)
	}
	out := model.InstanceConstructors(t)
	for _, m := range t.DeclaredMembersOfKind(kind) {
		if m.Static {
			out = append(out, m)
		}
	}
	return out
}

func selects(m *model.Member, lookup flags.Flags, inherited bool) bool {
	if m.Accessibility.IsPublic() {
		if !lookup.Has(flags.Public) {
			return false
		}
	} else if !lookup.Has(flags.NonPublic) {
		return false
	}
	if m.Kind == model.NestedType {
		return true
	}
	if m.Static {
		if !lookup.Has(flags.Static) {
			return false
		}
	} else if !lookup.Has(flags.Instance) {
		return false
	}
	if inherited {
		if m.Accessibility == model.Private {
			return false
		}
		if m.Static && !lookup.Has(flags.FlattenHierarchy) {
			return false
		}
	}
	return true
}

func hideKey(m *model.Member) string {
	switch m.Kind {
	case model.Field, model.Event:
		return m.Name
	}
	return m.Signature()
}
