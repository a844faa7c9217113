// Package model defines the symbol model the reflection engine reasons over
// and the report structures produced from it.
//
// A Type is built once by a producer (the C# front end, the core-library
// catalog or a test) and is read-only afterwards. Constructed generic types
// are views over their definition: base types, interfaces and members are
// substituted on access, so constructing a type never recurses.
package model

import (
	"strconv"
	"strings"
)

// TypeKind is the declaration kind of a type.
type TypeKind string

const (
	Class         TypeKind = "class"
	Struct        TypeKind = "struct"
	Interface     TypeKind = "interface"
	Enum          TypeKind = "enum"
	Delegate      TypeKind = "delegate"
	TypeParameter TypeKind = "type-parameter"
	Array         TypeKind = "array"
	ByRef         TypeKind = "byref"
	Pointer       TypeKind = "pointer"
)

// Accessibility is the declared accessibility of a type or member.
type Accessibility string

const (
	Public            Accessibility = "public"
	Protected         Accessibility = "protected"
	Internal          Accessibility = "internal"
	ProtectedInternal Accessibility = "protected internal"
	PrivateProtected  Accessibility = "private protected"
	Private           Accessibility = "private"
)

// IsPublic reports whether reflection treats the accessibility as Public.
// Every other accessibility is NonPublic.
func (a Accessibility) IsPublic() bool {
	return a == Public
}

// MemberKind is the kind of a type member.
type MemberKind string

const (
	Method      MemberKind = "method"
	Constructor MemberKind = "constructor"
	Property    MemberKind = "property"
	Field       MemberKind = "field"
	Event       MemberKind = "event"
	NestedType  MemberKind = "nested-type"
)

// Constructor metadata names.
const (
	ConstructorName       = ".ctor"
	StaticConstructorName = ".cctor"
	DefaultIndexerName    = "Item"
)

// Type describes a type: its identity, inheritance and declared members.
type Type struct {
	// Name is the namespace-qualified metadata name, with a `N arity suffix
	// for generic definitions and '+' separating nested types.
	Name          string
	Kind          TypeKind
	Accessibility Accessibility
	Declaring     *Type
	Sealed        bool
	Abstract      bool
	Static        bool

	// MetadataOnly marks types whose non-public members cannot be
	// enumerated, e.g. types loaded from reference assemblies.
	MetadataOnly bool

	Base       *Type
	Interfaces []*Type
	Members    []*Member
	TypeParams []*GenericParameter

	definition *Type
	typeArgs   []*Type
	subst      Substitution
	elem       *Type
	rank       int
	param      *GenericParameter
}

// NewType returns a public, fully visible type definition.
func NewType(name string, kind TypeKind) *Type {
	return &Type{Name: name, Kind: kind, Accessibility: Public}
}

// AddMember appends m to the declared members and sets its declaring type.
// It is meant for producers building the model, not for consumers.
func (t *Type) AddMember(m *Member) *Member {
	m.DeclaringType = t
	if m.Getter != nil {
		m.Getter.DeclaringType = t
	}
	if m.Setter != nil {
		m.Setter.DeclaringType = t
	}
	if m.Adder != nil {
		m.Adder.DeclaringType = t
	}
	if m.Remover != nil {
		m.Remover.DeclaringType = t
	}
	t.Members = append(t.Members, m)
	return m
}

// FullyVisible reports whether every member of the type is known.
func (t *Type) FullyVisible() bool {
	return !t.Definition().MetadataOnly
}

// Definition returns the generic definition of a constructed type, or t.
func (t *Type) Definition() *Type {
	if t.definition != nil {
		return t.definition
	}
	return t
}

// IsConstructed reports whether t is a generic type with type arguments.
func (t *Type) IsConstructed() bool {
	return t.definition != nil
}

// IsGenericDefinition reports whether t declares type parameters and is not
// itself constructed.
func (t *Type) IsGenericDefinition() bool {
	return t.definition == nil && len(t.TypeParams) > 0
}

// TypeArgs returns the type arguments of a constructed type.
func (t *Type) TypeArgs() []*Type {
	return t.typeArgs
}

// ElementType returns the element type of an array, by-ref or pointer type.
func (t *Type) ElementType() *Type {
	return t.elem
}

// Rank returns the array rank, or 0 for non-array types.
func (t *Type) Rank() int {
	return t.rank
}

// GenericParam returns the parameter a TypeParameter type stands for.
func (t *Type) GenericParam() *GenericParameter {
	return t.param
}

// BaseType returns the direct base type, substituted for constructed types.
func (t *Type) BaseType() *Type {
	switch t.Kind {
	case Array:
		return corlib.mustLookup(ArrayName)
	case TypeParameter, ByRef, Pointer:
		return nil
	}
	def := t.Definition()
	if t.subst == nil || def.Base == nil {
		return def.Base
	}
	return Substitute(def.Base, t.subst)
}

// DirectInterfaces returns the interfaces t declares, substituted for
// constructed types.
func (t *Type) DirectInterfaces() []*Type {
	def := t.Definition()
	if t.subst == nil {
		return def.Interfaces
	}
	out := make([]*Type, len(def.Interfaces))
	for i, iface := range def.Interfaces {
		out[i] = Substitute(iface, t.subst)
	}
	return out
}

// DeclaredMembers returns the members declared directly on t. Members of a
// constructed type are substituted copies whose Definition is the member of
// the generic definition.
func (t *Type) DeclaredMembers() []*Member {
	def := t.Definition()
	if t.subst == nil {
		return def.Members
	}
	out := make([]*Member, len(def.Members))
	for i, m := range def.Members {
		out[i] = m.substitute(t, t.subst)
	}
	return out
}

// Members of the given kind declared directly on t.
func (t *Type) DeclaredMembersOfKind(kind MemberKind) []*Member {
	var out []*Member
	for _, m := range t.DeclaredMembers() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// IsNested reports whether t is declared inside another type.
func (t *Type) IsNested() bool {
	return t.Definition().Declaring != nil
}

// SimpleName returns the name without namespace, declaring types or arity.
func (t *Type) SimpleName() string {
	name := t.Definition().Name
	if i := strings.LastIndexAny(name, ".+"); i >= 0 {
		name = name[i+1:]
	}
	return stripArity(name)
}

// Namespace returns the namespace of the outermost declaring type.
func (t *Type) Namespace() string {
	outer := t.Definition()
	for outer.Declaring != nil {
		outer = outer.Declaring
	}
	if i := strings.LastIndex(outer.Name, "."); i >= 0 {
		return outer.Name[:i]
	}
	return ""
}

// String renders the type the way C# source spells it, with namespaces.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TypeParameter:
		return t.param.Name
	case Array:
		return t.elem.String() + "[" + strings.Repeat(",", t.rank-1) + "]"
	case ByRef:
		return t.elem.String() + "&"
	case Pointer:
		return t.elem.String() + "*"
	}
	name := stripArity(strings.ReplaceAll(t.Definition().Name, "+", "."))
	if t.definition != nil && t.definition.Name == NullableName && len(t.typeArgs) == 1 {
		return t.typeArgs[0].String() + "?"
	}
	var args []*Type
	switch {
	case t.definition != nil:
		args = t.typeArgs
	case len(t.TypeParams) > 0:
		args = make([]*Type, len(t.TypeParams))
		for i, p := range t.TypeParams {
			args[i] = p.Type()
		}
	}
	if len(args) == 0 {
		return name
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return name + "<" + strings.Join(parts, ", ") + ">"
}

// stripArity removes every `N arity suffix, including those of declaring
// types in nested names.
func stripArity(name string) string {
	if strings.IndexByte(name, '`') < 0 {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '`' {
			for i+1 < len(name) && name[i+1] >= '0' && name[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

// Member describes a method, constructor, property, field, event or nested
// type declared on a type.
type Member struct {
	Kind          MemberKind
	Name          string
	DeclaringType *Type
	Accessibility Accessibility
	Static        bool
	Virtual       bool
	Abstract      bool
	Override      bool

	// Type is the return, field, property or event handler type.
	Type       *Type
	Parameters []*Parameter
	TypeParams []*GenericParameter

	// Property accessors.
	Getter *Member
	Setter *Member
	// Event accessors.
	Adder   *Member
	Remover *Member

	// Nested is the type declared by a NestedType member.
	Nested *Type

	// Indexer marks properties declared with C# indexer syntax.
	Indexer bool

	original *Member
}

// Definition returns the member of the generic definition this member was
// substituted from, or m itself.
func (m *Member) Definition() *Member {
	if m.original != nil {
		return m.original
	}
	return m
}

// Same reports whether m and other are the same declared member.
func (m *Member) Same(other *Member) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Definition() == other.Definition()
}

// IsGenericMethodDefinition reports whether m is a generic method whose type
// parameters are still open.
func (m *Member) IsGenericMethodDefinition() bool {
	return m.Kind == Method && len(m.TypeParams) > 0
}

// ParamsIndex returns the index of the trailing params array parameter, or -1.
func (m *Member) ParamsIndex() int {
	n := len(m.Parameters)
	if n > 0 && m.Parameters[n-1].IsParams {
		return n - 1
	}
	return -1
}

// Signature renders the member as Name(ParamType, ...), which is also the
// hide-by-signature key.
func (m *Member) Signature() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if len(m.TypeParams) > 0 {
		b.WriteString("`")
		b.WriteString(strconv.Itoa(len(m.TypeParams)))
	}
	if m.Kind == Field || m.Kind == Event || m.Kind == NestedType {
		return b.String()
	}
	if m.Kind == Property && len(m.Parameters) == 0 {
		return b.String()
	}
	b.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Type.String())
		if p.ByRef {
			b.WriteByte('&')
		}
	}
	b.WriteByte(')')
	return b.String()
}

// String renders the member with its declaring type for messages.
func (m *Member) String() string {
	if m.DeclaringType == nil {
		return m.Signature()
	}
	return m.DeclaringType.String() + "." + m.Signature()
}

func (m *Member) substitute(owner *Type, s Substitution) *Member {
	if m == nil {
		return nil
	}
	c := *m
	c.DeclaringType = owner
	c.original = m.Definition()
	if m.Type != nil {
		c.Type = Substitute(m.Type, s)
	}
	if len(m.Parameters) > 0 {
		c.Parameters = make([]*Parameter, len(m.Parameters))
		for i, p := range m.Parameters {
			cp := *p
			cp.Type = Substitute(p.Type, s)
			c.Parameters[i] = &cp
		}
	}
	c.Getter = m.Getter.substitute(owner, s)
	c.Setter = m.Setter.substitute(owner, s)
	c.Adder = m.Adder.substitute(owner, s)
	c.Remover = m.Remover.substitute(owner, s)
	return &c
}

// InstantiateMethod returns the generic method m constructed with args, as
// MethodInfo.MakeGenericMethod does. It returns nil when the argument count
// does not match.
func InstantiateMethod(m *Member, args ...*Type) *Member {
	if !m.IsGenericMethodDefinition() || len(args) != len(m.TypeParams) {
		return nil
	}
	s := make(Substitution, len(args))
	for i, p := range m.TypeParams {
		s[p] = args[i]
	}
	c := m.substitute(m.DeclaringType, s)
	c.TypeParams = nil
	return c
}

// Parameter is a formal parameter of a method, constructor or indexer.
type Parameter struct {
	Name string
	Type *Type
	// Optional parameters may be omitted by callers.
	Optional bool
	// HasDefault is set when the declaration supplies a default value.
	HasDefault bool
	// IsParams marks a trailing params array.
	IsParams bool
	// ByRef marks ref, out and in parameters.
	ByRef bool
}

// ConstraintFlags are the special constraints of a generic parameter.
type ConstraintFlags uint8

const (
	ReferenceTypeConstraint ConstraintFlags = 1 << iota
	ValueTypeConstraint
	UnmanagedConstraint
	ConstructorConstraint
)

// Has reports whether all bits of c are set in f.
func (f ConstraintFlags) Has(c ConstraintFlags) bool {
	return f&c == c
}

// GenericParameter is a type parameter of a type or method declaration.
type GenericParameter struct {
	Name    string
	Ordinal int
	// OnMethod is set for method type parameters.
	OnMethod bool
	Flags    ConstraintFlags
	// Constraints are base-type and interface constraints. They may
	// reference other parameters of the same declaration.
	Constraints []*Type

	typ *Type
}

// NewGenericParameter returns a parameter with its TypeParameter type.
func NewGenericParameter(name string, ordinal int, onMethod bool) *GenericParameter {
	p := &GenericParameter{Name: name, Ordinal: ordinal, OnMethod: onMethod}
	p.typ = &Type{Name: name, Kind: TypeParameter, Accessibility: Public, param: p}
	return p
}

// Type returns the type that stands for p in signatures.
func (p *GenericParameter) Type() *Type {
	return p.typ
}

// Substitution maps generic parameters to type arguments.
type Substitution map[*GenericParameter]*Type

// Construct returns def closed over args. It does not validate arity or
// constraints; that is the generic validator's job.
func Construct(def *Type, args ...*Type) *Type {
	def = def.Definition()
	s := make(Substitution, len(def.TypeParams))
	for i, p := range def.TypeParams {
		if i < len(args) {
			s[p] = args[i]
		}
	}
	return &Type{
		Name:          def.Name,
		Kind:          def.Kind,
		Accessibility: def.Accessibility,
		Declaring:     def.Declaring,
		Sealed:        def.Sealed,
		Abstract:      def.Abstract,
		Static:        def.Static,
		MetadataOnly:  def.MetadataOnly,
		definition:    def,
		typeArgs:      args,
		subst:         s,
	}
}

// ArrayOf returns a single- or multi-dimensional array of elem.
func ArrayOf(elem *Type, rank int) *Type {
	if rank < 1 {
		rank = 1
	}
	return &Type{Name: elem.Name + "[]", Kind: Array, Accessibility: Public, elem: elem, rank: rank}
}

// ByRefOf returns the by-reference type of elem (ref, out, in).
func ByRefOf(elem *Type) *Type {
	return &Type{Name: elem.Name + "&", Kind: ByRef, Accessibility: Public, elem: elem}
}

// PointerOf returns the unmanaged pointer type of elem.
func PointerOf(elem *Type) *Type {
	return &Type{Name: elem.Name + "*", Kind: Pointer, Accessibility: Public, elem: elem}
}

// Substitute replaces generic parameters in t according to s.
func Substitute(t *Type, s Substitution) *Type {
	if t == nil || len(s) == 0 {
		return t
	}
	switch t.Kind {
	case TypeParameter:
		if r, ok := s[t.param]; ok && r != nil {
			return r
		}
		return t
	case Array:
		return ArrayOf(Substitute(t.elem, s), t.rank)
	case ByRef:
		return ByRefOf(Substitute(t.elem, s))
	case Pointer:
		return PointerOf(Substitute(t.elem, s))
	}
	if t.definition == nil {
		return t
	}
	args := make([]*Type, len(t.typeArgs))
	changed := false
	for i, a := range t.typeArgs {
		args[i] = Substitute(a, s)
		if args[i] != a {
			changed = true
		}
	}
	if !changed {
		return t
	}
	return Construct(t.definition, args...)
}
