// Package invoke matches the arguments passed to MethodBase.Invoke or
// Activator.CreateInstance against a member's parameter list.
package invoke

import (
	"fmt"

	"github.com/phobologic/reflguard/internal/model"
)

// ArgKind says what is statically known about an argument.
type ArgKind string

const (
	// Typed arguments have a known static type.
	Typed ArgKind = "typed"
	// Null is the null literal.
	Null ArgKind = "null"
	// Missing is Type.Missing or System.Reflection.Missing.Value.
	Missing ArgKind = "missing"
	// Unknown arguments are skipped.
	Unknown ArgKind = "unknown"
	// ArrayLiteral is an array creation with its elements. Type is the
	// array type when it was written.
	ArrayLiteral ArgKind = "array"
	// Spread is an array-valued expression whose elements are unknown,
	// passed as the whole argument list.
	Spread ArgKind = "spread"
)

// Arg is one argument as written at the call site.
type Arg struct {
	Kind     ArgKind
	Type     *model.Type
	Elements []Arg
}

// Of returns a typed argument.
func Of(t *model.Type) Arg {
	if t == nil {
		return Arg{Kind: Unknown}
	}
	return Arg{Kind: Typed, Type: t}
}

func (a Arg) String() string {
	switch a.Kind {
	case Typed:
		return a.Type.String()
	case ArrayLiteral:
		elem := "object"
		if a.Type != nil && a.Type.ElementType() != nil {
			elem = a.Type.ElementType().String()
		}
		return fmt.Sprintf("%s[%d]", elem, len(a.Elements))
	}
	return string(a.Kind)
}

// Expand returns the positional arguments: a single array literal whose
// element type is a reference type is the argument array itself, since
// such an array converts to object[]. It reports false when the arguments
// cannot be known.
func Expand(args []Arg) ([]Arg, bool) {
	if len(args) != 1 {
		return args, true
	}
	switch args[0].Kind {
	case Spread:
		return nil, false
	case ArrayLiteral:
		if t := args[0].Type; t == nil || t.Kind == model.Array && t.Rank() == 1 && model.IsReferenceType(t.ElementType()) {
			return args[0].Elements, true
		}
	}
	return args, true
}

// Kind classifies the outcome of Match.
type Kind string

const (
	OK            Kind = "ok"
	Mismatch      Kind = "mismatch"
	Indeterminate Kind = "indeterminate"
)

// Reason says why an argument did not match.
type Reason string

const (
	CountMismatch   Reason = "count"
	TypeMismatch    Reason = "type"
	MissingMismatch Reason = "missing"
	NullMismatch    Reason = "null"
)

// Result is the outcome of Match. Index is the zero-based parameter or
// argument position of the first mismatch.
type Result struct {
	Kind   Kind
	Index  int
	Reason Reason
	// Expected and Supplied describe the mismatch for messages.
	Expected string
	Supplied string
}

// Match checks args against params and reports the first mismatch.
//
// The positional count must be exact: optional parameters still take an
// argument, usually Type.Missing. The one exception is an empty argument
// list for a member whose only parameter is optional. A params array
// accepts either the array itself or the remaining arguments one element
// at a time.
func Match(params []*model.Parameter, args []Arg) Result {
	args, ok := Expand(args)
	if !ok {
		return Result{Kind: Indeterminate}
	}
	fixed := len(params)
	if fixed > 0 && params[fixed-1].IsParams {
		fixed--
	}
	if len(args) == 0 && len(params) == 1 && fixed == 1 && params[0].Optional {
		return Result{Kind: OK}
	}
	if len(args) < fixed {
		return Result{
			Kind: Mismatch, Index: len(args), Reason: CountMismatch,
			Expected: fmt.Sprintf("%d arguments", fixed), Supplied: fmt.Sprintf("%d", len(args)),
		}
	}
	for i, p := range params[:fixed] {
		if r := matchOne(p, p.Type, i, args[i]); r.Kind != OK {
			return r
		}
	}
	if fixed < len(params) {
		return matchParams(params[fixed], fixed, args[fixed:])
	}
	if len(args) > fixed {
		return Result{
			Kind: Mismatch, Index: fixed, Reason: CountMismatch,
			Expected: fmt.Sprintf("%d arguments", fixed), Supplied: fmt.Sprintf("%d", len(args)),
		}
	}
	return Result{Kind: OK}
}

func matchParams(p *model.Parameter, at int, rest []Arg) Result {
	if len(rest) == 1 {
		a := rest[0]
		if a.Kind == Null || a.Kind == Unknown || a.Kind == Typed && model.IsAssignable(a.Type, p.Type) {
			return Result{Kind: OK}
		}
	}
	elem := p.Type.ElementType()
	for i, a := range rest {
		if r := matchOne(p, elem, at+i, a); r.Kind != OK {
			return r
		}
	}
	return Result{Kind: OK}
}

func matchOne(p *model.Parameter, want *model.Type, index int, a Arg) Result {
	mismatch := func(reason Reason) Result {
		return Result{Kind: Mismatch, Index: index, Reason: reason, Expected: want.String(), Supplied: a.String()}
	}
	switch a.Kind {
	case Null:
		if !model.AcceptsNull(want) {
			return mismatch(NullMismatch)
		}
	case Missing:
		if !p.Optional || !p.HasDefault || p.IsParams {
			return mismatch(MissingMismatch)
		}
	case Typed:
		if !model.IsAssignable(a.Type, want) {
			return mismatch(TypeMismatch)
		}
	case ArrayLiteral:
		if a.Type != nil && !model.IsAssignable(a.Type, want) {
			return mismatch(TypeMismatch)
		}
	}
	return Result{Kind: OK}
}
