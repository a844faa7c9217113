package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtin(t *testing.T, name string) *Type {
	t.Helper()
	typ := Builtin(name)
	require.NotNil(t, typ, name)
	return typ
}

func TestTypeString(t *testing.T) {
	t.Parallel()
	intT := builtin(t, Int32Name)
	list := builtin(t, "System.Collections.Generic.List`1")
	nullable := builtin(t, NullableName)

	assert.Equal(t, "System.Int32", intT.String())
	assert.Equal(t, "System.Collections.Generic.List<T>", list.String())
	assert.Equal(t, "System.Collections.Generic.List<System.Int32>", Construct(list, intT).String())
	assert.Equal(t, "System.Int32?", Construct(nullable, intT).String())
	assert.Equal(t, "System.Int32[,]", ArrayOf(intT, 2).String())

	outer := NewType("N.Outer`1", Class)
	inner := NewType("N.Outer`1+Inner", Class)
	inner.Declaring = outer
	assert.Equal(t, "N.Outer.Inner", inner.String())
	assert.Equal(t, "Inner", inner.SimpleName())
	assert.Equal(t, "N", inner.Namespace())
	assert.True(t, inner.IsNested())
}

func TestConstructedMembersAreSubstituted(t *testing.T) {
	t.Parallel()
	intT := builtin(t, Int32Name)
	list := Construct(builtin(t, "System.Collections.Generic.List`1"), intT)

	adds := 0
	for _, m := range list.DeclaredMembersOfKind(Method) {
		if m.Name != "Add" {
			continue
		}
		adds++
		require.Len(t, m.Parameters, 1)
		assert.True(t, Identical(intT, m.Parameters[0].Type))
		assert.Same(t, list, m.DeclaringType)
		assert.NotSame(t, m, m.Definition())
	}
	assert.Equal(t, 1, adds)
}

func TestIdentical(t *testing.T) {
	t.Parallel()
	intT := builtin(t, Int32Name)
	str := builtin(t, StringName)
	list := builtin(t, "System.Collections.Generic.List`1")

	assert.True(t, Identical(Construct(list, intT), Construct(list, intT)))
	assert.False(t, Identical(Construct(list, intT), Construct(list, str)))
	assert.False(t, Identical(list, Construct(list, intT)))
	assert.True(t, Identical(ArrayOf(intT, 1), ArrayOf(intT, 1)))
	assert.False(t, Identical(ArrayOf(intT, 1), ArrayOf(intT, 2)))
}

func TestIsAssignable(t *testing.T) {
	t.Parallel()
	object := builtin(t, ObjectName)
	intT := builtin(t, Int32Name)
	longT := builtin(t, Int64Name)
	str := builtin(t, StringName)
	valueType := builtin(t, ValueTypeName)
	comparable := builtin(t, "System.IComparable")
	enumerable := builtin(t, "System.Collections.IEnumerable")
	enumerableT := builtin(t, "System.Collections.Generic.IEnumerable`1")
	nullable := builtin(t, NullableName)

	animal := NewType("Zoo.Animal", Class)
	animal.Base = object
	dog := NewType("Zoo.Dog", Class)
	dog.Base = animal

	tests := []struct {
		name     string
		from, to *Type
		want     bool
	}{
		{"identity", intT, intT, true},
		{"boxing to object", intT, object, true},
		{"boxing to ValueType", intT, valueType, true},
		{"boxing to interface", intT, comparable, true},
		{"no numeric widening", intT, longT, false},
		{"derived to base", dog, animal, true},
		{"base to derived", animal, dog, false},
		{"string to IEnumerable", str, enumerable, true},
		{"T to T?", intT, Construct(nullable, intT), true},
		{"T? to T", Construct(nullable, intT), intT, false},
		{"array covariance", ArrayOf(dog, 1), ArrayOf(animal, 1), true},
		{"no value array covariance", ArrayOf(intT, 1), ArrayOf(object, 1), false},
		{"array to IEnumerable<T>", ArrayOf(intT, 1), Construct(enumerableT, intT), true},
		{"array to Array", ArrayOf(intT, 1), builtin(t, ArrayName), true},
		{"string to IEnumerable<char>", str, Construct(enumerableT, builtin(t, CharName)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsAssignable(tt.from, tt.to))
		})
	}
}

func TestTypeParameterClassification(t *testing.T) {
	t.Parallel()
	enumerable := builtin(t, "System.Collections.IEnumerable")

	plain := NewGenericParameter("T", 0, false)
	class := NewGenericParameter("TClass", 1, false)
	class.Flags = ReferenceTypeConstraint
	viaBase := NewGenericParameter("TList", 2, false)
	viaBase.Constraints = []*Type{enumerable}
	viaParam := NewGenericParameter("TOther", 3, false)
	viaParam.Constraints = []*Type{class.Type()}
	strct := NewGenericParameter("TStruct", 4, false)
	strct.Flags = ValueTypeConstraint

	assert.False(t, IsReferenceType(plain.Type()))
	assert.True(t, IsReferenceType(class.Type()))
	assert.False(t, IsReferenceType(viaBase.Type()), "interface constraints admit structs")
	assert.True(t, IsReferenceType(viaParam.Type()))
	assert.True(t, IsValueType(strct.Type()))
	assert.True(t, AcceptsNull(plain.Type()))
	assert.False(t, AcceptsNull(strct.Type()))
	assert.True(t, IsAssignable(viaBase.Type(), enumerable))
}

func TestIsUnmanaged(t *testing.T) {
	t.Parallel()
	intT := builtin(t, Int32Name)
	str := builtin(t, StringName)
	valueType := builtin(t, ValueTypeName)

	point := NewType("Geo.Point", Struct)
	point.Base = valueType
	point.AddMember(NewField("X", Public, false, intT))
	point.AddMember(NewField("Y", Public, false, intT))

	line := NewType("Geo.Line", Struct)
	line.Base = valueType
	line.AddMember(NewField("A", Public, false, point))
	line.AddMember(NewField("B", Public, false, point))

	named := NewType("Geo.Named", Struct)
	named.Base = valueType
	named.AddMember(NewField("Name", Private, false, str))
	named.AddMember(NewField("Origin", Public, true, point))

	holder := NewType("Geo.Holder", Struct)
	holder.Base = valueType
	holder.AddMember(NewField("Inner", Public, false, named))

	assert.True(t, IsUnmanaged(intT))
	assert.True(t, IsUnmanaged(point))
	assert.True(t, IsUnmanaged(line))
	assert.False(t, IsUnmanaged(named))
	assert.False(t, IsUnmanaged(holder))
	assert.False(t, IsUnmanaged(str))
	assert.False(t, IsUnmanaged(Construct(builtin(t, NullableName), intT)))
}

func TestParameterlessConstructor(t *testing.T) {
	t.Parallel()
	object := builtin(t, ObjectName)
	intT := builtin(t, Int32Name)

	implicit := NewType("App.Implicit", Class)
	implicit.Base = object

	explicit := NewType("App.Explicit", Class)
	explicit.Base = object
	explicit.AddMember(NewConstructor(Public, NewParameter("x", intT)))

	both := NewType("App.Both", Class)
	both.Base = object
	both.AddMember(NewConstructor(Public, NewParameter("x", intT)))
	both.AddMember(NewConstructor(Public))

	abstract := NewType("App.Abstract", Class)
	abstract.Base = object
	abstract.Abstract = true

	assert.True(t, HasParameterlessConstructor(implicit))
	assert.False(t, HasParameterlessConstructor(explicit))
	assert.True(t, HasParameterlessConstructor(both))
	assert.False(t, HasParameterlessConstructor(abstract))
	assert.True(t, HasParameterlessConstructor(intT))
	assert.False(t, HasParameterlessConstructor(builtin(t, StringName)))

	ctors := InstanceConstructors(implicit)
	require.Len(t, ctors, 1)
	assert.Empty(t, ctors[0].Parameters)
	assert.Same(t, implicit, ctors[0].DeclaringType)
}

func TestSignature(t *testing.T) {
	t.Parallel()
	intT := builtin(t, Int32Name)
	str := builtin(t, StringName)

	m := NewMethod("Format", Public, true, str, NewParameter("x", intT), NewParamsParameter("rest", builtin(t, ObjectName)))
	assert.Equal(t, "Format(System.Int32, System.Object[])", m.Signature())
	assert.Equal(t, 1, m.ParamsIndex())

	p := NewProperty("Name", Public, false, str, true, true)
	assert.Equal(t, "Name", p.Signature())
	require.NotNil(t, p.Setter)
	assert.Equal(t, "set_Name(System.String)", p.Setter.Signature())
}

func TestReport(t *testing.T) {
	t.Parallel()
	r := &Report{Files: []FileReport{
		{Path: "a.cs", Diagnostics: []Diagnostic{{Rule: "RG001", Severity: SeverityWarning}}},
		{Path: "b.cs", Diagnostics: []Diagnostic{{Rule: "RG002", Severity: SeverityError}, {Rule: "RG008", Severity: SeverityInfo}}},
	}}
	assert.Equal(t, 3, r.Count())
	assert.True(t, r.HasSeverity(SeverityError))
	assert.True(t, SeverityError.Weight() > SeverityWarning.Weight())
	assert.False(t, Severity("fatal").Valid())
}
