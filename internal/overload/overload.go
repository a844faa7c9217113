// Package overload picks the overload a parameter-types filter selects,
// following the reflection binder: identity or implicit reference and
// boxing conversions only, most specific parameter list wins.
package overload

import "github.com/phobologic/reflguard/internal/model"

// Kind classifies the outcome of overload selection.
type Kind string

const (
	Single     Kind = "single"
	Ambiguous  Kind = "ambiguous"
	WrongTypes Kind = "wrong-types"
)

// Result is the outcome of Select. Members holds the chosen overload for
// Single and the tied candidates for Ambiguous.
type Result struct {
	Kind    Kind
	Members []*model.Member
}

// Member returns the selected overload, or nil unless Kind is Single.
func (r Result) Member() *model.Member {
	if r.Kind != Single {
		return nil
	}
	return r.Members[0]
}

// Select chooses among candidates using the supplied parameter types.
func Select(candidates []*model.Member, types []*model.Type) Result {
	var eligible []*model.Member
	for _, c := range candidates {
		if Applicable(c, types) {
			eligible = append(eligible, c)
		}
	}
	switch len(eligible) {
	case 0:
		return Result{Kind: WrongTypes}
	case 1:
		return Result{Kind: Single, Members: eligible}
	}

	var exact []*model.Member
	for _, c := range eligible {
		if exactMatch(c, types) {
			exact = append(exact, c)
		}
	}
	if len(exact) == 1 {
		return Result{Kind: Single, Members: exact}
	}

	var best []*model.Member
	for i, c := range eligible {
		dominated := false
		for j, o := range eligible {
			if i != j && moreSpecific(o, c) {
				dominated = true
				break
			}
		}
		if !dominated {
			best = append(best, c)
		}
	}
	if len(best) == 1 {
		return Result{Kind: Single, Members: best}
	}
	return Result{Kind: Ambiguous, Members: best}
}

// Applicable reports whether m accepts arguments of the given types.
func Applicable(m *model.Member, types []*model.Type) bool {
	if len(m.Parameters) != len(types) {
		return false
	}
	for i, p := range m.Parameters {
		if !accepts(p, types[i]) {
			return false
		}
	}
	return true
}

func accepts(p *model.Parameter, supplied *model.Type) bool {
	if supplied == nil {
		return false
	}
	if p.ByRef {
		return supplied.Kind == model.ByRef && model.Identical(p.Type, supplied.ElementType())
	}
	return model.IsAssignable(supplied, p.Type)
}

func exactMatch(m *model.Member, types []*model.Type) bool {
	for i, p := range m.Parameters {
		want := p.Type
		if p.ByRef {
			want = model.ByRefOf(p.Type)
		}
		if !model.Identical(want, types[i]) {
			return false
		}
	}
	return true
}

// moreSpecific reports whether every parameter of a converts to the
// matching parameter of b and at least one does so strictly.
func moreSpecific(a, b *model.Member) bool {
	strict := false
	for i := range a.Parameters {
		pa, pb := a.Parameters[i].Type, b.Parameters[i].Type
		if model.Identical(pa, pb) {
			continue
		}
		if !model.IsAssignable(pa, pb) {
			return false
		}
		if !model.IsAssignable(pb, pa) {
			strict = true
		}
	}
	return strict
}
