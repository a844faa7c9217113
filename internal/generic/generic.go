// Package generic validates the type arguments of MakeGenericType and
// MakeGenericMethod against the declaration's type parameters.
package generic

import (
	"fmt"

	"github.com/phobologic/reflguard/internal/model"
)

// Kind classifies a validation outcome.
type Kind string

const (
	OK                  Kind = "ok"
	ArityMismatch       Kind = "arity-mismatch"
	ConstraintViolation Kind = "constraint-violation"
)

// Reason names the violated constraint.
type Reason string

const (
	ReferenceTypeRequired Reason = "class"
	ValueTypeRequired     Reason = "struct"
	UnmanagedRequired     Reason = "unmanaged"
	TypeRequired          Reason = "type"
	ConstructorRequired   Reason = "new()"
)

// Result is the outcome of Validate. For ConstraintViolation, Index is the
// zero-based position of the offending argument.
type Result struct {
	Kind Kind

	Expected int
	Supplied int

	Index      int
	Param      string
	Reason     Reason
	Constraint *model.Type
	Argument   *model.Type
}

func (r Result) String() string {
	switch r.Kind {
	case ArityMismatch:
		return fmt.Sprintf("expected %d type arguments, got %d", r.Expected, r.Supplied)
	case ConstraintViolation:
		arg := "the argument"
		if r.Argument != nil {
			arg = r.Argument.String()
		}
		if r.Reason == TypeRequired {
			return fmt.Sprintf("%s does not satisfy %s : %s", arg, r.Param, r.Constraint)
		}
		return fmt.Sprintf("%s does not satisfy %s : %s", arg, r.Param, r.Reason)
	}
	return "ok"
}

// Fact is what a type guard established about a Type value on the
// current path.
type Fact string

const (
	IsValueType     Fact = "value-type"
	IsReferenceType Fact = "reference-type"
)

// PathCondition maps variable names to facts established by guards such
// as `t.IsValueType ? ... : ...` on the path to a call. The zero value is
// an empty condition.
type PathCondition map[string]Fact

// Negate returns the condition that holds in the other branch.
func (f Fact) Negate() Fact {
	if f == IsValueType {
		return IsReferenceType
	}
	return IsValueType
}

// With returns a copy of pc with name bound to f.
func (pc PathCondition) With(name string, f Fact) PathCondition {
	out := make(PathCondition, len(pc)+1)
	for k, v := range pc {
		out[k] = v
	}
	out[name] = f
	return out
}

// Arg is a supplied type argument. Type is nil when only the expression is
// known; Var then names the variable holding the Type for path conditions.
type Arg struct {
	Type *model.Type
	Var  string
}

// Validate checks args against params, stopping at the first violation.
// Arguments of unknown type are checked only against what path
// establishes about them.
func Validate(params []*model.GenericParameter, args []Arg, path PathCondition) Result {
	if len(params) != len(args) {
		return Result{Kind: ArityMismatch, Expected: len(params), Supplied: len(args)}
	}
	subst := make(model.Substitution, len(params))
	for i, p := range params {
		if args[i].Type != nil {
			subst[p] = args[i].Type
		}
	}
	for i, p := range params {
		violation := Result{Kind: ConstraintViolation, Index: i, Param: p.Name, Argument: args[i].Type}
		if args[i].Type == nil {
			if reason, ok := checkFact(p, path[args[i].Var]); !ok {
				violation.Reason = reason
				return violation
			}
			continue
		}
		reason, constraint, ok := check(p, args[i].Type, params, subst)
		if !ok {
			violation.Reason = reason
			violation.Constraint = constraint
			return violation
		}
	}
	return Result{Kind: OK}
}

func check(p *model.GenericParameter, arg *model.Type, params []*model.GenericParameter, subst model.Substitution) (Reason, *model.Type, bool) {
	if p.Flags.Has(model.ReferenceTypeConstraint) && !satisfiesClass(arg) {
		return ReferenceTypeRequired, nil, false
	}
	if p.Flags.Has(model.ValueTypeConstraint) && !model.IsNonNullableValueType(arg) {
		return ValueTypeRequired, nil, false
	}
	if p.Flags.Has(model.UnmanagedConstraint) && !(model.IsNonNullableValueType(arg) && model.IsUnmanaged(arg)) {
		return UnmanagedRequired, nil, false
	}
	for _, c := range Effective(p) {
		if mentionsUnbound(c, params, subst) {
			continue
		}
		target := model.Substitute(c, subst)
		if !model.IsAssignable(arg, target) {
			return TypeRequired, target, false
		}
	}
	if p.Flags.Has(model.ConstructorConstraint) && !model.HasParameterlessConstructor(arg) {
		return ConstructorRequired, nil, false
	}
	return "", nil, true
}

// satisfiesClass accepts reference types and type parameters that are not
// known to be value types.
func satisfiesClass(arg *model.Type) bool {
	if arg.Kind == model.TypeParameter {
		return !model.IsValueType(arg)
	}
	return model.IsReferenceType(arg)
}

func checkFact(p *model.GenericParameter, f Fact) (Reason, bool) {
	switch f {
	case IsValueType:
		if p.Flags.Has(model.ReferenceTypeConstraint) {
			return ReferenceTypeRequired, false
		}
	case IsReferenceType:
		if p.Flags.Has(model.ValueTypeConstraint) {
			return ValueTypeRequired, false
		}
		if p.Flags.Has(model.UnmanagedConstraint) {
			return UnmanagedRequired, false
		}
	}
	return "", true
}

// Effective returns the type constraints of p together with those inherited
// through parameter-to-parameter constraints (`where T2 : T1`). Cycles such
// as `where T1 : T2 where T2 : T1` contribute nothing further.
func Effective(p *model.GenericParameter) []*model.Type {
	var out []*model.Type
	visited := map[*model.GenericParameter]bool{p: true}
	queue := []*model.GenericParameter{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range cur.Constraints {
			out = append(out, c)
			if c.Kind != model.TypeParameter {
				continue
			}
			next := c.GenericParam()
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out
}

// mentionsUnbound reports whether t refers to a parameter of the
// declaration whose argument is unknown.
func mentionsUnbound(t *model.Type, params []*model.GenericParameter, subst model.Substitution) bool {
	switch t.Kind {
	case model.TypeParameter:
		gp := t.GenericParam()
		for _, p := range params {
			if p == gp {
				_, bound := subst[p]
				return !bound
			}
		}
		return false
	case model.Array, model.ByRef, model.Pointer:
		return mentionsUnbound(t.ElementType(), params, subst)
	}
	for _, a := range t.TypeArgs() {
		if mentionsUnbound(a, params, subst) {
			return true
		}
	}
	return false
}
