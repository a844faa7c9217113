package resolve

import "github.com/phobologic/reflguard/internal/model"

// Accessor names a property or event accessor.
type Accessor string

const (
	Getter  Accessor = "get"
	Setter  Accessor = "set"
	Adder   Accessor = "add"
	Remover Accessor = "remove"
)

// AccessorOf returns the accessor method of a property or event member,
// or nil when it does not exist.
func AccessorOf(m *model.Member, acc Accessor) *model.Member {
	if m == nil {
		return nil
	}
	switch acc {
	case Getter:
		return m.Getter
	case Setter:
		return m.Setter
	case Adder:
		return m.Adder
	case Remover:
		return m.Remover
	}
	return nil
}

// Project maps a resolved property or event onto one of its accessors, as
// GetGetMethod, SetMethod or GetAddMethod do. Public-only projections such
// as GetGetMethod() yield NoMatch for non-public accessors. Outcomes other
// than Single pass through unchanged.
func Project(r MatchResult, acc Accessor, nonPublic bool) MatchResult {
	if r.Kind != Single {
		return r
	}
	owner := r.Members[0]
	m := AccessorOf(owner, acc)
	if m == nil {
		return MatchResult{Kind: NoMatch, Members: []*model.Member{owner}, Verdict: r.Verdict, Lookup: r.Lookup,
			Reason: owner.Name + " has no " + string(acc) + " accessor"}
	}
	if !nonPublic && !m.Accessibility.IsPublic() {
		return MatchResult{Kind: NoMatch, Members: []*model.Member{owner}, Verdict: r.Verdict, Lookup: r.Lookup,
			Reason: "the " + string(acc) + " accessor of " + owner.Name + " is not public"}
	}
	return MatchResult{Kind: Single, Members: []*model.Member{m}, Verdict: r.Verdict, Lookup: r.Lookup}
}
