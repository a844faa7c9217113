package analyze

import (
	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/generic"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/resolve"
)

// CallKind is the reflection API called at a site.
type CallKind string

const (
	GetMethod                  = CallKind(resolve.GetMethod)
	GetProperty                = CallKind(resolve.GetProperty)
	GetField                   = CallKind(resolve.GetField)
	GetConstructor             = CallKind(resolve.GetConstructor)
	GetNestedType              = CallKind(resolve.GetNestedType)
	GetEvent                   = CallKind(resolve.GetEvent)
	Accessor          CallKind = "Accessor"
	MakeGenericType   CallKind = "MakeGenericType"
	MakeGenericMethod CallKind = "MakeGenericMethod"
	Invoke            CallKind = "Invoke"
	CreateInstance    CallKind = "CreateInstance"
	GetType           CallKind = "GetType"
)

// IsLookup reports whether k is one of the Type.GetX member lookups.
func (k CallKind) IsLookup() bool {
	switch k {
	case GetMethod, GetProperty, GetField, GetConstructor, GetNestedType, GetEvent:
		return true
	}
	return false
}

// Name is the member-name argument of a lookup.
type Name struct {
	// Text is the literal, or the member named by nameof.
	Text string
	// Known is false for computed names.
	Known bool
	// Nameof is set when the name was written as nameof(...).
	Nameof *Nameof
}

// Nameof describes a nameof(...) expression.
type Nameof struct {
	// Type is the type the referenced member belongs to: the qualifier of
	// nameof(T.M), or the enclosing type for nameof(M). Nil when unresolved.
	Type *model.Type
	Text string
}

// Target describes the instance argument of MethodBase.Invoke.
type Target string

const (
	TargetNone     Target = ""
	TargetNull     Target = "null"
	TargetInstance Target = "instance"
	TargetUnknown  Target = "unknown"
)

// CallSite is a reflection call found in source, with everything the
// front end could establish about its arguments.
type CallSite struct {
	Kind   CallKind
	File   string
	Line   int
	Column int
	// Text is the call expression as written.
	Text string

	// Type is the type a lookup, MakeGenericType or CreateInstance runs on.
	// Nil when it cannot be determined statically.
	Type *model.Type

	Name Name

	Flags       flags.Expr
	HasFlagsArg bool

	Types        []*model.Type
	HasTypes     bool
	TypesUnknown bool
	// EmptyTypesArray marks a filter written as an empty Type[] creation.
	EmptyTypesArray bool
	ReturnType      *model.Type

	// Receiver is the site that produced the member this call operates on,
	// for Accessor, MakeGenericMethod and Invoke.
	Receiver *CallSite

	Accessor          resolve.Accessor
	AccessorNonPublic bool

	GenericArgs []generic.Arg
	Path        generic.PathCondition

	Args   []invoke.Arg
	Target Target
	// EmptyArgsArray marks an argument list written as an empty object[].
	EmptyArgsArray bool
	NonPublic      bool

	// TypeName is the literal passed to Type.GetType.
	TypeName string

	// Caller is the type whose code contains the call.
	Caller *model.Type
}

// FlagsValue folds the flags argument.
func (s *CallSite) FlagsValue() flags.Value {
	if !s.HasFlagsArg {
		return flags.Value{Provenance: flags.Absent}
	}
	return flags.Parse(s.Flags)
}

// Query returns the lookup the site performs.
func (s *CallSite) Query() resolve.Query {
	return resolve.Query{
		Type:         s.Type,
		Call:         resolve.CallKind(s.Kind),
		Name:         s.Name.Text,
		NameUnknown:  !s.Name.Known,
		Flags:        s.FlagsValue(),
		Types:        s.Types,
		HasTypes:     s.HasTypes,
		TypesUnknown: s.TypesUnknown,
		ReturnType:   s.ReturnType,
	}
}
