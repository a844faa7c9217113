package resolve

import (
	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/overload"
)

// CreateInstance selects the constructor Activator.CreateInstance would
// call on t with args. nonPublic mirrors the nonPublic argument and the
// NonPublic flag of the overloads taking BindingFlags.
func CreateInstance(t *model.Type, args []invoke.Arg, nonPublic bool) MatchResult {
	abstain := flags.Verdict{Kind: flags.Abstain}
	if t == nil {
		return MatchResult{Kind: Indeterminate, Verdict: abstain}
	}
	switch {
	case t.Kind == model.Interface:
		return MatchResult{Kind: NoMatch, Verdict: abstain, Reason: t.String() + " is an interface"}
	case t.Abstract || t.Static:
		return MatchResult{Kind: NoMatch, Verdict: abstain, Reason: t.String() + " is abstract"}
	case t.IsGenericDefinition():
		return MatchResult{Kind: NoMatch, Verdict: abstain, Reason: t.String() + " is an open generic type"}
	}
	expanded, ok := invoke.Expand(args)
	if !ok {
		return MatchResult{Kind: Indeterminate, Verdict: abstain}
	}

	lookup := flags.Public | flags.Instance
	if nonPublic {
		lookup |= flags.NonPublic
	}
	ctors, visible := Candidates(t, model.Constructor, lookup)
	var matched []*model.Member
	for _, c := range ctors {
		if c.Static {
			continue
		}
		if invoke.Match(c.Parameters, expanded).Kind == invoke.OK {
			matched = append(matched, c)
		}
	}
	switch len(matched) {
	case 0:
		if nonPublic && !visible {
			return MatchResult{Kind: PotentiallyInvisible, Verdict: abstain, Lookup: lookup}
		}
		reason := "no constructor accepts the arguments"
		if len(expanded) == 0 {
			reason = "no parameterless constructor"
		}
		return MatchResult{Kind: NoMatch, Verdict: abstain, Lookup: lookup, Reason: reason}
	case 1:
		return MatchResult{Kind: Single, Members: matched, Verdict: abstain, Lookup: lookup}
	}
	if types, ok := argTypes(expanded); ok {
		if sel := overload.Select(matched, types); sel.Kind == overload.Single {
			return MatchResult{Kind: Single, Members: sel.Members, Verdict: abstain, Lookup: lookup}
		}
	}
	return MatchResult{Kind: Ambiguous, Members: matched, Verdict: abstain, Lookup: lookup}
}

// argTypes returns the static types of args when every one is known.
func argTypes(args []invoke.Arg) ([]*model.Type, bool) {
	out := make([]*model.Type, len(args))
	for i, a := range args {
		if a.Kind != invoke.Typed {
			return nil, false
		}
		out[i] = a.Type
	}
	return out, true
}
