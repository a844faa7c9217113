package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/model"
)

var (
	object = model.Builtin(model.ObjectName)
	intT   = model.Builtin(model.Int32Name)
	strT   = model.Builtin(model.StringName)
)

func class(name string, base *model.Type) *model.Type {
	t := model.NewType(name, model.Class)
	if base == nil {
		base = object
	}
	t.Base = base
	return t
}

func known(f flags.Flags) flags.Value { return flags.Known(f) }

func TestScenarioStaticMethod(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	m := c.AddMember(model.NewMethod("M", model.Public, true, intT, model.NewParameter("x", intT)))

	r := Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: known(flags.Public | flags.Instance)})
	assert.Equal(t, NoMatch, r.Kind)
	assert.Equal(t, flags.Verdict{Kind: flags.TooNarrow, Expected: flags.Public | flags.Static | flags.DeclaredOnly}, r.Verdict)

	r = Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: known(flags.Public | flags.Static)})
	require.Equal(t, Single, r.Kind)
	assert.Same(t, m, r.Member())
	assert.Equal(t, flags.Correct, r.Verdict.Kind)

	assert.Equal(t, flags.Public|flags.Static|flags.DeclaredOnly, flags.Minimal(m, c))
}

func TestScenarioOverloads(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	m0 := c.AddMember(model.NewMethod("M", model.Public, false, nil))
	m1 := c.AddMember(model.NewMethod("M", model.Public, false, intT, model.NewParameter("x", intT)))

	for _, f := range []flags.Value{{}, known(flags.Public | flags.Instance), known(flags.Public | flags.Instance | flags.DeclaredOnly)} {
		r := Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: f})
		require.Equal(t, Ambiguous, r.Kind, f.String())
		assert.Equal(t, []*model.Member{m0, m1}, r.Members)

		r = Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: f, HasTypes: true, Types: []*model.Type{intT}})
		require.Equal(t, Single, r.Kind)
		assert.Same(t, m1, r.Member())

		r = Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: f, HasTypes: true})
		require.Equal(t, Single, r.Kind, "empty types filter selects the parameterless overload")
		assert.Same(t, m0, r.Member())

		r = Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: f, HasTypes: true, Types: []*model.Type{strT}})
		assert.Equal(t, WrongTypes, r.Kind)
	}
}

func TestScenarioMissingOnSealedType(t *testing.T) {
	t.Parallel()
	c := class("App.Sealed", nil)
	c.Sealed = true
	c.AddMember(model.NewMethod("Present", model.Public, false, nil))

	r := Resolve(Query{Type: c, Call: GetMethod, Name: "MISSING"})
	assert.Equal(t, NoMatch, r.Kind)
	r = Resolve(Query{Type: c, Call: GetMethod, Name: "MISSING", Flags: known(flags.NonPublic | flags.Instance)})
	assert.Equal(t, NoMatch, r.Kind)
	assert.Equal(t, flags.Abstain, r.Verdict.Kind)
}

func TestPotentiallyInvisible(t *testing.T) {
	t.Parallel()
	ext := class("Vendor.Widget", nil)
	ext.MetadataOnly = true
	ext.AddMember(model.NewMethod("Draw", model.Public, false, nil))

	r := Resolve(Query{Type: ext, Call: GetMethod, Name: "secret", Flags: known(flags.NonPublic | flags.Instance)})
	assert.Equal(t, PotentiallyInvisible, r.Kind)

	r = Resolve(Query{Type: ext, Call: GetMethod, Name: "secret", Flags: known(flags.Public | flags.Instance)})
	assert.Equal(t, NoMatch, r.Kind, "public members of metadata types are fully known")
}

func TestInheritance(t *testing.T) {
	t.Parallel()
	base := class("App.Base", nil)
	baseRun := base.AddMember(model.NewMethod("Run", model.Public, false, nil))
	virt := base.AddMember(model.NewMethod("Step", model.Public, false, nil))
	virt.Virtual = true
	base.AddMember(model.NewField("secret", model.Private, false, intT))
	prot := base.AddMember(model.NewField("shared", model.Protected, false, intT))
	create := base.AddMember(model.NewMethod("Create", model.Public, true, base))

	derived := class("App.Derived", base)
	override := derived.AddMember(model.NewMethod("Step", model.Public, false, nil))
	override.Override = true

	t.Run("inherited instance member", func(t *testing.T) {
		t.Parallel()
		r := Resolve(Query{Type: derived, Call: GetMethod, Name: "Run", Flags: known(flags.Public | flags.Instance)})
		require.Equal(t, Single, r.Kind)
		assert.Same(t, baseRun, r.Member())
	})
	t.Run("DeclaredOnly excludes base members", func(t *testing.T) {
		t.Parallel()
		r := Resolve(Query{Type: derived, Call: GetMethod, Name: "Run", Flags: known(flags.Public | flags.Instance | flags.DeclaredOnly)})
		assert.Equal(t, NoMatch, r.Kind)
		assert.Equal(t, flags.Verdict{Kind: flags.TooNarrow, Expected: flags.Public | flags.Instance}, r.Verdict)
	})
	t.Run("override hides base", func(t *testing.T) {
		t.Parallel()
		r := Resolve(Query{Type: derived, Call: GetMethod, Name: "Step", Flags: known(flags.Public | flags.Instance)})
		require.Equal(t, Single, r.Kind)
		assert.Same(t, override, r.Member())
	})
	t.Run("private base members are not inherited", func(t *testing.T) {
		t.Parallel()
		r := Resolve(Query{Type: derived, Call: GetField, Name: "secret", Flags: known(flags.NonPublic | flags.Instance)})
		assert.Equal(t, NoMatch, r.Kind)
		r = Resolve(Query{Type: derived, Call: GetField, Name: "shared", Flags: known(flags.NonPublic | flags.Instance)})
		require.Equal(t, Single, r.Kind)
		assert.Same(t, prot, r.Member())
	})
	t.Run("base statics need FlattenHierarchy", func(t *testing.T) {
		t.Parallel()
		r := Resolve(Query{Type: derived, Call: GetMethod, Name: "Create", Flags: known(flags.Public | flags.Static)})
		assert.Equal(t, NoMatch, r.Kind)
		assert.Equal(t, flags.Verdict{Kind: flags.TooNarrow, Expected: flags.Public | flags.Static | flags.FlattenHierarchy}, r.Verdict)

		r = Resolve(Query{Type: derived, Call: GetMethod, Name: "Create", Flags: known(flags.Public | flags.Static | flags.FlattenHierarchy)})
		require.Equal(t, Single, r.Kind)
		assert.Same(t, create, r.Member())
		assert.Equal(t, flags.Correct, r.Verdict.Kind)
	})
	t.Run("object members are inherited", func(t *testing.T) {
		t.Parallel()
		r := Resolve(Query{Type: derived, Call: GetMethod, Name: "GetHashCode", Flags: known(flags.Public | flags.Instance)})
		require.Equal(t, Single, r.Kind)
		assert.Same(t, object, r.Member().DeclaringType)
	})
}

func TestIgnoreCase(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	m := c.AddMember(model.NewMethod("Run", model.Public, false, nil))

	r := Resolve(Query{Type: c, Call: GetMethod, Name: "run", Flags: known(flags.Public | flags.Instance)})
	assert.Equal(t, NoMatch, r.Kind)
	r = Resolve(Query{Type: c, Call: GetMethod, Name: "run", Flags: known(flags.Public | flags.Instance | flags.IgnoreCase)})
	require.Equal(t, Single, r.Kind)
	assert.Same(t, m, r.Member())
}

func TestVerdicts(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	c.AddMember(model.NewMethod("Pub", model.Public, false, nil))
	c.AddMember(model.NewMethod("priv", model.Private, false, nil))
	c.AddMember(model.NewMethod("Stat", model.Public, true, nil))

	tests := []struct {
		name    string
		member  string
		flags   flags.Value
		kind    Kind
		verdict flags.Verdict
	}{
		{"absent public instance", "Pub", flags.Value{}, Single, flags.Verdict{Kind: flags.Correct}},
		{"absent public static", "Stat", flags.Value{}, Single, flags.Verdict{Kind: flags.Missing, Expected: flags.Public | flags.Static | flags.DeclaredOnly}},
		{"absent private", "priv", flags.Value{}, NoMatch, flags.Verdict{Kind: flags.Missing, Expected: flags.NonPublic | flags.Instance | flags.DeclaredOnly}},
		{
			"redundant NonPublic", "Pub", known(flags.Public | flags.NonPublic | flags.Instance | flags.DeclaredOnly), Single,
			flags.Verdict{Kind: flags.Redundant, Expected: flags.Public | flags.Instance | flags.DeclaredOnly},
		},
		{
			"redundant NonPublic without DeclaredOnly", "Pub", known(flags.Public | flags.NonPublic | flags.Instance), Single,
			flags.Verdict{Kind: flags.Redundant, Expected: flags.Public | flags.Instance | flags.DeclaredOnly},
		},
		{
			"redundant Static", "Pub", known(flags.Public | flags.Static | flags.Instance), Single,
			flags.Verdict{Kind: flags.Redundant, Expected: flags.Public | flags.Instance | flags.DeclaredOnly},
		},
		{
			"redundant FlattenHierarchy", "Stat", known(flags.Public | flags.Static | flags.FlattenHierarchy), Single,
			flags.Verdict{Kind: flags.Redundant, Expected: flags.Public | flags.Static | flags.DeclaredOnly},
		},
		{"minimal without DeclaredOnly", "Pub", known(flags.Public | flags.Instance), Single, flags.Verdict{Kind: flags.Correct}},
		{"unknown flags", "Pub", flags.Value{Provenance: flags.Unknown}, Single, flags.Verdict{Kind: flags.Abstain}},
		{"unknown flags missing member", "Nope", flags.Value{Provenance: flags.Unknown}, NoMatch, flags.Verdict{Kind: flags.Abstain}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Resolve(Query{Type: c, Call: GetMethod, Name: tt.member, Flags: tt.flags})
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.verdict, r.Verdict)
		})
	}
}

func TestUnknownFlagsAmbiguityIsIndeterminate(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	c.AddMember(model.NewMethod("M", model.Public, false, nil))
	c.AddMember(model.NewMethod("M", model.Private, true, nil, model.NewParameter("x", intT)))

	r := Resolve(Query{Type: c, Call: GetMethod, Name: "M", Flags: flags.Value{Provenance: flags.Unknown}})
	assert.Equal(t, Indeterminate, r.Kind)
	r = Resolve(Query{Type: c, Call: GetMethod, NameUnknown: true})
	assert.Equal(t, Indeterminate, r.Kind)
}

func TestRoundTripAndMonotonicity(t *testing.T) {
	t.Parallel()
	base := class("App.Base", nil)
	base.AddMember(model.NewMethod("Inherited", model.Public, false, nil))
	base.AddMember(model.NewMethod("Factory", model.Public, true, nil))
	base.AddMember(model.NewProperty("Name", model.Protected, false, strT, true, true))
	derived := class("App.Derived", base)
	derived.AddMember(model.NewMethod("Own", model.Internal, false, nil))
	derived.AddMember(model.NewField("count", model.Private, true, intT))
	derived.AddMember(model.NewEvent("Changed", model.Public, false, model.Builtin("System.EventHandler")))
	nested := model.NewType("App.Derived+Node", model.Class)
	nested.Declaring = derived
	derived.AddMember(model.NewNestedType(nested))
	derived.AddMember(model.NewConstructor(model.Public, model.NewParameter("x", intT)))

	calls := map[model.MemberKind]CallKind{
		model.Method: GetMethod, model.Property: GetProperty, model.Field: GetField,
		model.Event: GetEvent, model.NestedType: GetNestedType, model.Constructor: GetConstructor,
	}
	var members []*model.Member
	members = append(members, derived.Members...)
	members = append(members, base.Members...)
	for _, m := range members {
		minimal := flags.Minimal(m, derived)
		q := Query{Type: derived, Call: calls[m.Kind], Name: m.Name, Flags: known(minimal)}
		r := Resolve(q)
		require.Equal(t, Single, r.Kind, m.String())
		assert.True(t, r.Member().Same(m), m.String())
		assert.Equal(t, flags.Correct, r.Verdict.Kind, m.String())

		// Adding a bit never loses the match, and a unique match turns
		// Redundant exactly when the bit was not needed.
		for _, extra := range []flags.Flags{flags.Public, flags.NonPublic, flags.Instance, flags.Static, flags.FlattenHierarchy} {
			wider := Resolve(Query{Type: derived, Call: q.Call, Name: m.Name, Flags: known(minimal | extra)})
			assert.NotEqual(t, NoMatch, wider.Kind, "%s + %s", m, extra)
			if wider.Kind != Single {
				continue
			}
			want := flags.Correct
			if !minimal.Has(extra) {
				want = flags.Redundant
			}
			assert.Equal(t, want, wider.Verdict.Kind, "%s + %s", m, extra)
		}
	}
}

func TestIndexers(t *testing.T) {
	t.Parallel()
	base := class("App.Grid", nil)
	base.AddMember(model.NewProperty(model.DefaultIndexerName, model.Public, false, intT, true, false))
	derived := class("App.Sheet", base)
	byInt := derived.AddMember(model.NewIndexer(model.DefaultIndexerName, model.Public, strT, true, true, model.NewParameter("i", intT)))

	r := Resolve(Query{Type: derived, Call: GetProperty, Name: "Item", Flags: known(flags.Public | flags.Instance)})
	assert.Equal(t, Ambiguous, r.Kind, "base property named Item competes with the indexer")

	r = Resolve(Query{Type: derived, Call: GetProperty, Name: "Item", Flags: known(flags.Public | flags.Instance), HasTypes: true, Types: []*model.Type{intT}})
	require.Equal(t, Single, r.Kind)
	assert.Same(t, byInt, r.Member())

	r = Resolve(Query{Type: derived, Call: GetProperty, Name: "Item", Flags: known(flags.Public | flags.Instance), ReturnType: strT})
	require.Equal(t, Single, r.Kind)
	assert.Same(t, byInt, r.Member())
}

func TestInterfaceMembersAreNotInherited(t *testing.T) {
	t.Parallel()
	parent := model.NewType("App.IParent", model.Interface)
	parent.AddMember(model.NewMethod("Parent", model.Public, false, nil))
	child := model.NewType("App.IChild", model.Interface)
	child.Interfaces = []*model.Type{parent}

	r := Resolve(Query{Type: child, Call: GetMethod, Name: "Parent"})
	assert.Equal(t, NoMatch, r.Kind)
}

func TestProject(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	readOnly := c.AddMember(model.NewProperty("Id", model.Public, false, intT, true, false))
	privSet := c.AddMember(model.NewProperty("Name", model.Public, false, strT, true, true))
	privSet.Setter.Accessibility = model.Private
	ev := c.AddMember(model.NewEvent("Changed", model.Public, false, model.Builtin("System.EventHandler")))

	resolve := func(call CallKind, name string) MatchResult {
		return Resolve(Query{Type: c, Call: call, Name: name, Flags: known(flags.Public | flags.Instance | flags.DeclaredOnly)})
	}

	r := Project(resolve(GetProperty, "Id"), Getter, false)
	require.Equal(t, Single, r.Kind)
	assert.Same(t, readOnly.Getter, r.Member())

	r = Project(resolve(GetProperty, "Id"), Setter, true)
	assert.Equal(t, NoMatch, r.Kind)
	assert.Contains(t, r.Reason, "no set accessor")

	r = Project(resolve(GetProperty, "Name"), Setter, false)
	assert.Equal(t, NoMatch, r.Kind)
	r = Project(resolve(GetProperty, "Name"), Setter, true)
	require.Equal(t, Single, r.Kind)
	assert.Same(t, privSet.Setter, r.Member())

	r = Project(resolve(GetEvent, "Changed"), Adder, false)
	require.Equal(t, Single, r.Kind)
	assert.Same(t, ev.Adder, r.Member())

	missing := resolve(GetProperty, "Nope")
	assert.Equal(t, missing, Project(missing, Getter, false))
}

func TestCreateInstance(t *testing.T) {
	t.Parallel()
	onlyInt := class("App.OnlyInt", nil)
	onlyInt.AddMember(model.NewConstructor(model.Public, model.NewParameter("x", intT)))

	implicit := class("App.Implicit", nil)

	private := class("App.Private", nil)
	private.AddMember(model.NewConstructor(model.Private))

	overloaded := class("App.Overloaded", nil)
	overloaded.AddMember(model.NewConstructor(model.Public, model.NewParameter("o", object)))
	byStr := overloaded.AddMember(model.NewConstructor(model.Public, model.NewParameter("s", strT)))

	abstract := class("App.Abstract", nil)
	abstract.Abstract = true

	point := model.NewType("App.Point", model.Struct)
	point.Base = model.Builtin(model.ValueTypeName)

	optionalTail := class("App.OptionalTail", nil)
	optionalTail.AddMember(model.NewConstructor(model.Public,
		model.NewParameter("a", intT), model.NewOptionalParameter("b", intT)))

	soleOptional := class("App.SoleOptional", nil)
	soleOptional.AddMember(model.NewConstructor(model.Public, model.NewOptionalParameter("x", intT)))

	pair := class("App.Pair", nil)
	pair.AddMember(model.NewConstructor(model.Public, model.NewParameter("a", strT), model.NewParameter("b", strT)))
	bundle := invoke.Arg{
		Kind:     invoke.ArrayLiteral,
		Type:     model.ArrayOf(strT, 1),
		Elements: []invoke.Arg{invoke.Of(strT), invoke.Of(strT)},
	}

	tests := []struct {
		name      string
		typ       *model.Type
		args      []invoke.Arg
		nonPublic bool
		want      Kind
	}{
		{"no default constructor", onlyInt, nil, false, NoMatch},
		{"matching constructor", onlyInt, []invoke.Arg{invoke.Of(intT)}, false, Single},
		{"implicit constructor", implicit, nil, false, Single},
		{"private constructor", private, nil, false, NoMatch},
		{"private constructor allowed", private, nil, true, Single},
		{"abstract", abstract, nil, false, NoMatch},
		{"struct default", point, nil, false, Single},
		{"most specific constructor", overloaded, []invoke.Arg{invoke.Of(strT)}, false, Single},
		{"null is ambiguous", overloaded, []invoke.Arg{{Kind: invoke.Null}}, false, Ambiguous},
		{"unknown argument array", onlyInt, []invoke.Arg{{Kind: invoke.Spread}}, false, Indeterminate},
		{"optional parameter omitted", optionalTail, []invoke.Arg{invoke.Of(intT)}, false, NoMatch},
		{"optional parameter missing", optionalTail, []invoke.Arg{invoke.Of(intT), {Kind: invoke.Missing}}, false, Single},
		{"sole optional parameter omitted", soleOptional, nil, false, Single},
		{"string array bundle", pair, []invoke.Arg{bundle}, false, Single},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := CreateInstance(tt.typ, tt.args, tt.nonPublic)
			assert.Equal(t, tt.want, r.Kind)
		})
	}

	r := CreateInstance(onlyInt, nil, false)
	assert.Equal(t, "no parameterless constructor", r.Reason)
	r = CreateInstance(overloaded, []invoke.Arg{invoke.Of(strT)}, false)
	assert.Same(t, byStr, r.Member())
}

func TestAccessorMethodsAreMethods(t *testing.T) {
	t.Parallel()
	c := class("App.C", nil)
	p := c.AddMember(model.NewProperty("Name", model.Public, false, strT, true, false))

	r := Resolve(Query{Type: c, Call: GetMethod, Name: "get_Name"})
	require.Equal(t, Single, r.Kind)
	assert.Same(t, p.Getter, r.Member())
	assert.Equal(t, NoMatch, Resolve(Query{Type: c, Call: GetMethod, Name: "set_Name"}).Kind)
}
