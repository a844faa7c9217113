package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/reflguard/internal/model"
)

func TestBitValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Flags(4), Instance)
	assert.Equal(t, Flags(8), Static)
	assert.Equal(t, Flags(16), Public)
	assert.Equal(t, Flags(32), NonPublic)
	assert.Equal(t, Flags(2), DeclaredOnly)
	assert.Equal(t, Flags(64), FlattenHierarchy)
	assert.Equal(t, Flags(512), CreateInstance)
	assert.Equal(t, Flags(33554432), DoNotWrapExceptions)
}

func TestFormat(t *testing.T) {
	t.Parallel()
	f := DeclaredOnly | Static | Public
	assert.Equal(t, "BindingFlags.Public | BindingFlags.Static | BindingFlags.DeclaredOnly", f.String())
	assert.Equal(t, "Public | Static | DeclaredOnly", f.Format(true))
	assert.Equal(t, "BindingFlags.Default", Default.String())
	assert.Equal(t, "BindingFlags.Public | (BindingFlags)128", (Public | 128).String())
}

func TestEffective(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Public|Instance, Default.Effective())
	assert.Equal(t, NonPublic|Instance, NonPublic.Effective())
	assert.Equal(t, Public|Static|DeclaredOnly, (Static | DeclaredOnly).Effective())
}

func TestParse(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		expr Expr
		want Value
	}{
		{"absent", Expr{}, Value{Provenance: Absent}},
		{
			"qualified",
			Expr{Operands: []string{"BindingFlags.Public", "BindingFlags.Static"}},
			Known(Public | Static),
		},
		{
			"fully qualified",
			Expr{Operands: []string{"System.Reflection.BindingFlags.NonPublic", "global::System.Reflection.BindingFlags.Instance"}},
			Known(NonPublic | Instance),
		},
		{
			"using static",
			Expr{Operands: []string{"Public", "Instance"}, UsingStatic: true},
			Known(Public | Instance),
		},
		{
			"bare name without using static",
			Expr{Operands: []string{"Public"}},
			Value{Provenance: Unknown},
		},
		{"numeric", Expr{Operands: []string{"(BindingFlags)36"}}, Known(NonPublic | Instance)},
		{"hex", Expr{Operands: []string{"0x14"}}, Known(Public | Instance)},
		{"parenthesized", Expr{Operands: []string{"(BindingFlags.Public)", "BindingFlags.Static"}}, Known(Public | Static)},
		{"unknown member", Expr{Operands: []string{"BindingFlags.Everything"}}, Value{Provenance: Unknown}},
		{"non-constant", Expr{Operands: []string{"flags"}, NonConstant: true}, Value{Provenance: Unknown}},
		{"default", Expr{Operands: []string{"BindingFlags.Default"}}, Known(Default)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Parse(tt.expr))
		})
	}
}

func TestCanonicalOrder(t *testing.T) {
	t.Parallel()
	ordered, ok := Written(Expr{Operands: []string{"BindingFlags.Public", "BindingFlags.Static", "BindingFlags.DeclaredOnly"}})
	require.True(t, ok)
	assert.True(t, InCanonicalOrder(ordered))

	swapped, ok := Written(Expr{Operands: []string{"BindingFlags.Static", "BindingFlags.Public"}})
	require.True(t, ok)
	assert.False(t, InCanonicalOrder(swapped))

	_, ok = Written(Expr{Operands: []string{"flags"}, NonConstant: true})
	assert.False(t, ok)
}

type fixture struct {
	base, derived      *model.Type
	instance, static   *model.Member
	private, inherited *model.Member
	baseStatic, ctor   *model.Member
	nested             *model.Member
}

func newFixture() fixture {
	object := model.Builtin(model.ObjectName)
	intT := model.Builtin(model.Int32Name)

	base := model.NewType("App.Base", model.Class)
	base.Base = object
	inherited := base.AddMember(model.NewMethod("Inherited", model.Public, false, nil))
	baseStatic := base.AddMember(model.NewMethod("Shared", model.Public, true, intT))

	derived := model.NewType("App.Derived", model.Class)
	derived.Base = base
	f := fixture{
		base:       base,
		derived:    derived,
		inherited:  inherited,
		baseStatic: baseStatic,
		instance:   derived.AddMember(model.NewMethod("Run", model.Public, false, nil)),
		static:     derived.AddMember(model.NewMethod("M", model.Public, true, intT, model.NewParameter("x", intT))),
		private:    derived.AddMember(model.NewField("count", model.Private, false, intT)),
		ctor:       derived.AddMember(model.NewConstructor(model.Internal)),
	}
	nested := model.NewType("App.Derived+Node", model.Class)
	nested.Declaring = derived
	nested.Accessibility = model.Private
	f.nested = derived.AddMember(model.NewNestedType(nested))
	return f
}

func TestMinimal(t *testing.T) {
	t.Parallel()
	f := newFixture()
	tests := []struct {
		name   string
		member *model.Member
		want   Flags
	}{
		{"public static declared", f.static, Public | Static | DeclaredOnly},
		{"public instance declared", f.instance, Public | Instance | DeclaredOnly},
		{"private field", f.private, NonPublic | Instance | DeclaredOnly},
		{"inherited instance", f.inherited, Public | Instance},
		{"inherited static", f.baseStatic, Public | Static | FlattenHierarchy},
		{"constructor", f.ctor, NonPublic | Instance},
		{"nested type", f.nested, NonPublic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Minimal(tt.member, f.derived))
		})
	}
}

func TestMinimalUnion(t *testing.T) {
	t.Parallel()
	f := newFixture()
	got := MinimalUnion([]*model.Member{f.instance, f.inherited}, f.derived)
	assert.Equal(t, Public|Instance, got)
	got = MinimalUnion([]*model.Member{f.instance, f.private}, f.derived)
	assert.Equal(t, Public|NonPublic|Instance|DeclaredOnly, got)
}

func TestCompare(t *testing.T) {
	t.Parallel()
	minimal := Public | Static | DeclaredOnly
	tests := []struct {
		name     string
		supplied Value
		minimal  Flags
		found    bool
		unique   bool
		want     Verdict
	}{
		{"exact", Known(minimal), minimal, true, true, Verdict{Kind: Correct}},
		{"subset that still matches", Known(Public | Static), minimal, true, true, Verdict{Kind: Correct}},
		{"no match", Known(Public | Instance), minimal, false, false, Verdict{Kind: TooNarrow, Expected: minimal}},
		{
			"extra bit",
			Known(Public | NonPublic | Static | DeclaredOnly), minimal, true, true,
			Verdict{Kind: Redundant, Expected: minimal},
		},
		{"extra bit without DeclaredOnly", Known(Public | Static | Instance), minimal, true, true, Verdict{Kind: Redundant, Expected: minimal}},
		{"extra FlattenHierarchy", Known(Public | Static | FlattenHierarchy), minimal, true, true, Verdict{Kind: Redundant, Expected: minimal}},
		{
			"extra visibility on instance member",
			Known(Public | NonPublic | Instance), Public | Instance | DeclaredOnly, true, true,
			Verdict{Kind: Redundant, Expected: Public | Instance | DeclaredOnly},
		},
		{"extra bit but ambiguous", Known(minimal | Instance), minimal, true, false, Verdict{Kind: Correct}},
		{"non-structural extra", Known(minimal | IgnoreCase), minimal, true, true, Verdict{Kind: Correct}},
		{"absent for static", Value{Provenance: Absent}, minimal, true, true, Verdict{Kind: Missing, Expected: minimal}},
		{"absent for public instance", Value{Provenance: Absent}, Public | Instance | DeclaredOnly, true, true, Verdict{Kind: Correct}},
		{"unknown", Value{Provenance: Unknown}, minimal, false, false, Verdict{Kind: Abstain}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Compare(tt.supplied, tt.minimal, tt.found, tt.unique))
		})
	}
}

func TestCompareIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture()
	for _, m := range []*model.Member{f.instance, f.static, f.private, f.inherited, f.baseStatic, f.ctor, f.nested} {
		minimal := Minimal(m, f.derived)
		assert.Equal(t, Verdict{Kind: Correct}, Compare(Known(minimal), minimal, true, true), m.String())
	}
}
