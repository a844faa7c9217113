package model

// maxChainDepth bounds walks over base types and constraints so that a
// malformed model (cyclic bases) cannot loop forever.
const maxChainDepth = 64

// Identical reports whether a and b denote the same type.
func Identical(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TypeParameter:
		return a.param == b.param
	case Array:
		return a.rank == b.rank && Identical(a.elem, b.elem)
	case ByRef, Pointer:
		return Identical(a.elem, b.elem)
	}
	if a.IsConstructed() != b.IsConstructed() {
		return false
	}
	if a.Definition().Name != b.Definition().Name {
		return false
	}
	if !a.IsConstructed() {
		return true
	}
	if len(a.typeArgs) != len(b.typeArgs) {
		return false
	}
	for i := range a.typeArgs {
		if !Identical(a.typeArgs[i], b.typeArgs[i]) {
			return false
		}
	}
	return true
}

// Is reports whether t is the (non-constructed) type with the metadata name.
func (t *Type) Is(name string) bool {
	return t != nil && t.Kind != TypeParameter && t.Definition().Name == name
}

// IsNullableValueType reports whether t is Nullable<T>.
func IsNullableValueType(t *Type) bool {
	return t != nil && t.IsConstructed() && t.Definition().Name == NullableName
}

// IsReferenceType reports whether t is known to be a reference type. A type
// parameter counts when it carries a class constraint or a class-type
// constraint.
func IsReferenceType(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Class, Interface, Delegate, Array:
		return true
	case TypeParameter:
		return paramIsReference(t.param, map[*GenericParameter]bool{})
	}
	return false
}

func paramIsReference(p *GenericParameter, visited map[*GenericParameter]bool) bool {
	if visited[p] {
		return false
	}
	visited[p] = true
	if p.Flags.Has(ReferenceTypeConstraint) {
		return true
	}
	for _, c := range p.Constraints {
		switch c.Kind {
		case Class:
			if !c.Is(ObjectName) && !c.Is(ValueTypeName) && !c.Is(EnumName) {
				return true
			}
		case Array, Delegate:
			return true
		case TypeParameter:
			if paramIsReference(c.param, visited) {
				return true
			}
		}
	}
	return false
}

// IsValueType reports whether t is known to be a value type. Nullable<T>
// is a value type; use IsNonNullableValueType for the struct constraint.
func IsValueType(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Struct, Enum, Pointer:
		return true
	case TypeParameter:
		return t.param.Flags&(ValueTypeConstraint|UnmanagedConstraint) != 0
	}
	return false
}

// IsNonNullableValueType reports whether t satisfies the struct constraint.
func IsNonNullableValueType(t *Type) bool {
	return IsValueType(t) && !IsNullableValueType(t) && t.Kind != Pointer
}

// BaseChain returns the base types of t from the direct base upwards.
func BaseChain(t *Type) []*Type {
	var chain []*Type
	for b := t.BaseType(); b != nil && len(chain) < maxChainDepth; b = b.BaseType() {
		chain = append(chain, b)
	}
	return chain
}

// AllInterfaces returns every interface t implements, directly, through its
// base types or through other interfaces, without duplicates.
func AllInterfaces(t *Type) []*Type {
	var out []*Type
	seen := func(i *Type) bool {
		for _, o := range out {
			if Identical(o, i) {
				return true
			}
		}
		return false
	}
	var visit func(i *Type, depth int)
	visit = func(i *Type, depth int) {
		if depth > maxChainDepth || seen(i) {
			return
		}
		out = append(out, i)
		for _, sub := range i.DirectInterfaces() {
			visit(sub, depth+1)
		}
	}
	levels := append([]*Type{t}, BaseChain(t)...)
	for _, level := range levels {
		for _, i := range level.DirectInterfaces() {
			visit(i, 0)
		}
	}
	return out
}

// DerivesFrom reports whether base appears in the base chain of t.
func DerivesFrom(t, base *Type) bool {
	for _, b := range BaseChain(t) {
		if Identical(b, base) {
			return true
		}
	}
	return false
}

// ImplementsInterface reports whether t implements iface.
func ImplementsInterface(t, iface *Type) bool {
	if Identical(t, iface) {
		return true
	}
	for _, i := range AllInterfaces(t) {
		if Identical(i, iface) {
			return true
		}
	}
	return false
}

// IsAssignable reports whether a value of type from converts to type to by
// identity, implicit reference conversion or boxing. Numeric widening is
// deliberately absent: reflection binding does not apply it.
func IsAssignable(from, to *Type) bool {
	return isAssignable(from, to, 0)
}

func isAssignable(from, to *Type, depth int) bool {
	if from == nil || to == nil || depth > maxChainDepth {
		return false
	}
	if Identical(from, to) {
		return true
	}
	if from.Kind == ByRef || to.Kind == ByRef || from.Kind == Pointer || to.Kind == Pointer {
		return false
	}
	if to.Is(ObjectName) {
		return true
	}
	switch from.Kind {
	case TypeParameter:
		p := from.param
		if to.Is(ValueTypeName) && p.Flags&(ValueTypeConstraint|UnmanagedConstraint) != 0 {
			return true
		}
		for _, c := range p.Constraints {
			if isAssignable(c, to, depth+1) {
				return true
			}
		}
		return false
	case Array:
		if to.Kind == Array {
			return to.rank == from.rank && IsReferenceType(from.elem) && isAssignable(from.elem, to.elem, depth+1)
		}
		if DerivesFrom(from, to) || ImplementsInterface(from, to) {
			return true
		}
		// T[] implements the generic collection interfaces of T.
		if from.rank == 1 && to.Kind == Interface && to.IsConstructed() && len(to.typeArgs) == 1 {
			switch to.Definition().Name {
			case "System.Collections.Generic.IEnumerable`1",
				"System.Collections.Generic.ICollection`1",
				"System.Collections.Generic.IList`1",
				"System.Collections.Generic.IReadOnlyCollection`1",
				"System.Collections.Generic.IReadOnlyList`1":
				return Identical(from.elem, to.typeArgs[0]) ||
					IsReferenceType(from.elem) && isAssignable(from.elem, to.typeArgs[0], depth+1)
			}
		}
		return false
	}
	if IsNullableValueType(to) {
		return Identical(from, to.typeArgs[0])
	}
	if IsNullableValueType(from) {
		// Boxing a nullable boxes its underlying value.
		under := from.typeArgs[0]
		return to.Is(ValueTypeName) || to.Kind == Interface && ImplementsInterface(under, to)
	}
	if to.Kind == Interface {
		return ImplementsInterface(from, to)
	}
	return DerivesFrom(from, to)
}

// IsMoreSpecific reports whether a is strictly more specific than b: a
// converts to b but not the other way round.
func IsMoreSpecific(a, b *Type) bool {
	return IsAssignable(a, b) && !IsAssignable(b, a)
}

// AcceptsNull reports whether null is a valid value of t.
func AcceptsNull(t *Type) bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeParameter {
		return !IsValueType(t)
	}
	return IsReferenceType(t) || IsNullableValueType(t)
}

var primitiveNames = map[string]struct{}{
	BooleanName: {}, CharName: {}, "System.SByte": {}, "System.Byte": {},
	"System.Int16": {}, "System.UInt16": {}, Int32Name: {}, "System.UInt32": {},
	Int64Name: {}, "System.UInt64": {}, "System.Single": {}, DoubleName: {},
	"System.Decimal": {}, "System.IntPtr": {}, "System.UIntPtr": {},
}

// IsUnmanaged reports whether t satisfies the unmanaged constraint: a
// non-nullable value type whose instance fields are unmanaged, transitively.
// Metadata-only structs whose fields are unknown are assumed unmanaged.
func IsUnmanaged(t *Type) bool {
	return isUnmanaged(t, map[string]bool{})
}

func isUnmanaged(t *Type, visiting map[string]bool) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Enum, Pointer:
		return true
	case TypeParameter:
		return t.param.Flags.Has(UnmanagedConstraint)
	case Struct:
	default:
		return false
	}
	if IsNullableValueType(t) {
		return false
	}
	if _, ok := primitiveNames[t.Definition().Name]; ok {
		return true
	}
	key := t.String()
	if visiting[key] {
		// A struct cannot contain itself by value; treat the cycle as
		// contributing nothing.
		return true
	}
	visiting[key] = true
	defer delete(visiting, key)
	for _, m := range t.DeclaredMembers() {
		if m.Kind != Field || m.Static {
			continue
		}
		if !isUnmanaged(m.Type, visiting) {
			return false
		}
	}
	return true
}

// HasParameterlessConstructor reports whether new T() is possible for t:
// value types always qualify, classes need an accessible parameterless
// constructor (implicit when none is declared).
func HasParameterlessConstructor(t *Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case Struct, Enum:
		return true
	case TypeParameter:
		return t.param.Flags&(ConstructorConstraint|ValueTypeConstraint|UnmanagedConstraint) != 0
	case Class:
	default:
		return false
	}
	if t.Abstract || t.Static {
		return false
	}
	ctors := instanceConstructors(t)
	if len(ctors) == 0 {
		return true
	}
	for _, c := range ctors {
		if c.Accessibility.IsPublic() && len(c.Parameters) == 0 {
			return true
		}
	}
	return false
}

func instanceConstructors(t *Type) []*Member {
	var out []*Member
	for _, m := range t.DeclaredMembersOfKind(Constructor) {
		if !m.Static {
			out = append(out, m)
		}
	}
	return out
}

// InstanceConstructors returns the declared instance constructors of t. A
// class without declared constructors gets the implicit public one; structs
// always have the implicit parameterless one.
func InstanceConstructors(t *Type) []*Member {
	ctors := instanceConstructors(t)
	implicit := false
	switch t.Kind {
	case Class:
		implicit = len(ctors) == 0 && !t.Static && !t.MetadataOnly
	case Struct, Enum:
		implicit = true
		for _, c := range ctors {
			if len(c.Parameters) == 0 {
				implicit = false
			}
		}
	}
	if implicit {
		acc := Public
		if t.Abstract {
			acc = Protected
		}
		c := NewConstructor(acc)
		c.DeclaringType = t
		ctors = append([]*Member{c}, ctors...)
	}
	return ctors
}
