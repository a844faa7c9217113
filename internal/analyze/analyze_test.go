package analyze

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/generic"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/resolve"
)

var (
	object = model.Builtin(model.ObjectName)
	intT   = model.Builtin(model.Int32Name)
	strT   = model.Builtin(model.StringName)
)

type fixture struct {
	catalog *model.Catalog
	widget  *model.Type
	echo    *model.Member
}

func newFixture() fixture {
	w := model.NewType("App.Widget", model.Class)
	w.Base = object
	w.AddMember(model.NewMethod("Run", model.Public, false, nil, model.NewParameter("n", intT)))
	w.AddMember(model.NewMethod("Create", model.Public, true, w))
	w.AddMember(model.NewMethod("secret", model.Private, false, nil))
	w.AddMember(model.NewProperty("Name", model.Public, false, strT, true, false))

	tp := model.NewGenericParameter("T", 0, true)
	tp.Flags = model.ValueTypeConstraint
	echo := model.NewMethod("Echo", model.Public, false, nil, model.NewParameter("value", tp.Type()))
	echo.TypeParams = []*model.GenericParameter{tp}
	w.AddMember(echo)

	cat := model.NewCatalog()
	cat.Add(w)
	return fixture{catalog: cat, widget: w, echo: echo}
}

func (f fixture) analyzer() *Analyzer {
	return New(f.catalog, []string{"App"})
}

func (f fixture) lookup(name string, ops ...string) *CallSite {
	s := &CallSite{Kind: GetMethod, File: "Widget.cs", Line: 10, Column: 5, Type: f.widget, Name: Name{Text: name, Known: true}}
	if len(ops) > 0 {
		s.HasFlagsArg = true
		s.Flags = flags.Expr{Operands: ops}
	}
	return s
}

func ruleIDs(ds []model.Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Rule
	}
	return out
}

func only(t *testing.T, ds []model.Diagnostic, rule string) model.Diagnostic {
	t.Helper()
	var found []model.Diagnostic
	for _, d := range ds {
		if d.Rule == rule {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1, "diagnostics: %v", ruleIDs(ds))
	return found[0]
}

func TestLiteralNameSuggestsNameof(t *testing.T) {
	t.Parallel()
	f := newFixture()
	o := f.analyzer().Analyze(f.lookup("Run"))
	require.Equal(t, resolve.Single, o.Match.Kind)
	require.Len(t, o.Diagnostics, 1)
	d := o.Diagnostics[0]
	assert.Equal(t, RuleUseNameof, d.Rule)
	assert.Equal(t, "nameof(Widget.Run)", d.Fix)
	assert.Equal(t, model.SeverityInfo, d.Severity)
	assert.Equal(t, "Widget.cs", d.File)
	assert.Equal(t, 10, d.Line)
}

func TestNameofRelativeToCaller(t *testing.T) {
	t.Parallel()
	f := newFixture()
	s := f.lookup("secret", "BindingFlags.NonPublic", "BindingFlags.Instance")
	assert.NotContains(t, ruleIDs(f.analyzer().Analyze(s).Diagnostics), RuleUseNameof,
		"private members cannot be named from outside")

	s = f.lookup("secret", "BindingFlags.NonPublic", "BindingFlags.Instance")
	s.Caller = f.widget
	assert.Equal(t, "nameof(secret)", only(t, f.analyzer().Analyze(s).Diagnostics, RuleUseNameof).Fix)
}

func TestMissingMember(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ds := f.analyzer().Analyze(f.lookup("Nope")).Diagnostics
	d := only(t, ds, RuleNoMember)
	assert.Equal(t, model.SeverityError, d.Severity)
	assert.Contains(t, d.Message, "a method named 'Nope'")
}

func TestFlagsVerdicts(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		site func(fixture) *CallSite
		rule string
		fix  string
	}{
		{
			name: "too narrow",
			site: func(f fixture) *CallSite { return f.lookup("Create", "BindingFlags.Public", "BindingFlags.Instance") },
			rule: RuleFlagsTooNarrow,
			fix:  "BindingFlags.Public | BindingFlags.Static | BindingFlags.DeclaredOnly",
		},
		{
			name: "default lookup misses private member",
			site: func(f fixture) *CallSite { return f.lookup("secret") },
			rule: RuleFlagsTooNarrow,
			fix:  "BindingFlags.NonPublic | BindingFlags.Instance | BindingFlags.DeclaredOnly",
		},
		{
			name: "redundant",
			site: func(f fixture) *CallSite {
				return f.lookup("Run", "BindingFlags.Public", "BindingFlags.NonPublic", "BindingFlags.Instance", "BindingFlags.DeclaredOnly")
			},
			rule: RuleFlagsRedundant,
			fix:  "BindingFlags.Public | BindingFlags.Instance | BindingFlags.DeclaredOnly",
		},
		{
			name: "redundant keeps ignore case",
			site: func(f fixture) *CallSite {
				return f.lookup("run", "BindingFlags.Public", "BindingFlags.NonPublic", "BindingFlags.Instance", "BindingFlags.DeclaredOnly", "BindingFlags.IgnoreCase")
			},
			rule: RuleFlagsRedundant,
			fix:  "BindingFlags.Public | BindingFlags.Instance | BindingFlags.DeclaredOnly | BindingFlags.IgnoreCase",
		},
		{
			name: "missing for static member",
			site: func(f fixture) *CallSite { return f.lookup("Create") },
			rule: RuleFlagsMissing,
			fix:  "BindingFlags.Public | BindingFlags.Static | BindingFlags.DeclaredOnly",
		},
		{
			name: "canonical order",
			site: func(f fixture) *CallSite { return f.lookup("Create", "BindingFlags.Static", "BindingFlags.Public") },
			rule: RuleFlagsOrder,
			fix:  "BindingFlags.Public | BindingFlags.Static",
		},
		{
			name: "canonical order under using static",
			site: func(f fixture) *CallSite {
				s := f.lookup("Create", "Static", "Public")
				s.Flags.UsingStatic = true
				return s
			},
			rule: RuleFlagsOrder,
			fix:  "Public | Static",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			d := only(t, f.analyzer().Analyze(tt.site(f)).Diagnostics, tt.rule)
			assert.Equal(t, tt.fix, d.Fix)
		})
	}
}

func TestCorrectFlagsAreQuiet(t *testing.T) {
	t.Parallel()
	f := newFixture()
	s := f.lookup("Run", "BindingFlags.Public", "BindingFlags.Instance")
	s.Name.Nameof = &Nameof{Type: f.widget, Text: "nameof(Widget.Run)"}
	assert.Empty(t, f.analyzer().Analyze(s).Diagnostics)
}

func TestNameofOfAnotherType(t *testing.T) {
	t.Parallel()
	f := newFixture()
	other := model.NewType("App.Other", model.Class)
	other.Base = object
	s := f.lookup("Run")
	s.Name.Nameof = &Nameof{Type: other, Text: "nameof(Other.Run)"}
	d := only(t, f.analyzer().Analyze(s).Diagnostics, RuleNameofWrongType)
	assert.Equal(t, "nameof(Widget.Run)", d.Fix)
	assert.Contains(t, d.Message, "App.Other")
}

func TestEmptyTypesArray(t *testing.T) {
	t.Parallel()
	f := newFixture()
	s := f.lookup("Create")
	s.HasTypes = true
	s.EmptyTypesArray = true
	d := only(t, f.analyzer().Analyze(s).Diagnostics, RulePreferEmptyTypes)
	assert.Equal(t, "Type.EmptyTypes", d.Fix)
}

func TestAmbiguousAndWrongTypes(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.widget.AddMember(model.NewMethod("Run", model.Public, false, nil, model.NewParameter("s", strT)))

	only(t, f.analyzer().Analyze(f.lookup("Run")).Diagnostics, RuleAmbiguous)

	s := f.lookup("Run")
	s.HasTypes = true
	s.Types = []*model.Type{model.Builtin(model.DoubleName)}
	d := only(t, f.analyzer().Analyze(s).Diagnostics, RuleWrongTypes)
	assert.Contains(t, d.Message, "System.Double")
}

func TestAccessor(t *testing.T) {
	t.Parallel()
	f := newFixture()
	prop := &CallSite{Kind: GetProperty, Type: f.widget, Name: Name{Text: "Name", Known: true}}
	a := f.analyzer()

	get := a.Analyze(&CallSite{Kind: Accessor, Receiver: prop, Accessor: resolve.Getter})
	assert.Empty(t, get.Diagnostics)
	require.NotNil(t, get.Member)
	assert.Equal(t, "get_Name", get.Member.Name)

	set := a.Analyze(&CallSite{Kind: Accessor, Receiver: prop, Accessor: resolve.Setter})
	d := only(t, set.Diagnostics, RuleNoAccessor)
	assert.Equal(t, "Name has no set accessor", d.Message)
}

func TestInvoke(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		method string
		target Target
		args   []invoke.Arg
		empty  bool
		rules  []string
	}{
		{"instance with null target", "Run", TargetNull, []invoke.Arg{{Kind: invoke.ArrayLiteral, Elements: []invoke.Arg{invoke.Of(intT)}}}, false, []string{RuleInvokeNullTarget}},
		{"argument count", "Run", TargetInstance, []invoke.Arg{{Kind: invoke.ArrayLiteral}}, true, []string{RuleInvokeArgs}},
		{"argument type", "Run", TargetInstance, []invoke.Arg{{Kind: invoke.ArrayLiteral, Elements: []invoke.Arg{invoke.Of(strT)}}}, false, []string{RuleInvokeArgs}},
		{"null for value type", "Run", TargetInstance, []invoke.Arg{{Kind: invoke.ArrayLiteral, Elements: []invoke.Arg{{Kind: invoke.Null}}}}, false, []string{RuleInvokeArgs}},
		{"static with target", "Create", TargetInstance, nil, false, []string{RuleInvokeStaticTarget}},
		{"empty argument array", "Create", TargetNull, []invoke.Arg{{Kind: invoke.ArrayLiteral}}, true, []string{RulePreferNullArgs}},
		{"spread arguments", "Run", TargetUnknown, []invoke.Arg{{Kind: invoke.Spread}}, false, nil},
		{"correct", "Run", TargetInstance, []invoke.Arg{{Kind: invoke.ArrayLiteral, Elements: []invoke.Arg{invoke.Of(intT)}}}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			recv := f.lookup(tt.method)
			recv.Name.Nameof = &Nameof{Type: f.widget}
			site := &CallSite{Kind: Invoke, Receiver: recv, Target: tt.target, Args: tt.args, EmptyArgsArray: tt.empty}
			ds := f.analyzer().Analyze(site).Diagnostics
			if len(tt.rules) == 0 {
				assert.Empty(t, ds)
				return
			}
			assert.Equal(t, tt.rules, ruleIDs(ds))
		})
	}
}

func TestInvokeCountMessage(t *testing.T) {
	t.Parallel()
	f := newFixture()
	site := &CallSite{Kind: Invoke, Receiver: f.lookup("Run"), Target: TargetInstance}
	d := only(t, f.analyzer().Analyze(site).Diagnostics, RuleInvokeArgs)
	assert.Equal(t, "App.Widget.Run(System.Int32) expects 1 arguments, got 0", d.Message)
}

func TestGenericMethods(t *testing.T) {
	t.Parallel()
	f := newFixture()
	a := f.analyzer()
	recv := f.lookup("Echo")

	open := a.Analyze(&CallSite{Kind: Invoke, Receiver: recv, Target: TargetInstance})
	only(t, open.Diagnostics, RuleInvokeOpenGeneric)

	bad := a.Analyze(&CallSite{Kind: MakeGenericMethod, Receiver: recv, GenericArgs: []generic.Arg{{Type: strT}}})
	d := only(t, bad.Diagnostics, RuleGenericConstraint)
	assert.Contains(t, d.Message, "type argument 1")
	assert.Nil(t, bad.Member)

	arity := a.Analyze(&CallSite{Kind: MakeGenericMethod, Receiver: recv, GenericArgs: []generic.Arg{{Type: intT}, {Type: intT}}})
	only(t, arity.Diagnostics, RuleGenericArity)

	made := &CallSite{Kind: MakeGenericMethod, Receiver: recv, GenericArgs: []generic.Arg{{Type: intT}}}
	o := a.Analyze(made)
	assert.Empty(t, o.Diagnostics)
	require.NotNil(t, o.Member)
	assert.Same(t, intT, o.Member.Parameters[0].Type)
	assert.Same(t, f.echo, o.Member.Definition())

	inv := a.Analyze(&CallSite{Kind: Invoke, Receiver: made, Target: TargetInstance,
		Args: []invoke.Arg{{Kind: invoke.ArrayLiteral, Elements: []invoke.Arg{invoke.Of(strT)}}}})
	d = only(t, inv.Diagnostics, RuleInvokeArgs)
	assert.Contains(t, d.Message, "expected System.Int32")

	notGeneric := a.Analyze(&CallSite{Kind: MakeGenericMethod, Receiver: f.lookup("Run"), GenericArgs: []generic.Arg{{Type: intT}}})
	only(t, notGeneric.Diagnostics, RuleNotGeneric)
}

func TestMakeGenericType(t *testing.T) {
	t.Parallel()
	f := newFixture()
	a := f.analyzer()
	list := model.Builtin("System.Collections.Generic.List`1")
	require.NotNil(t, list)

	only(t, a.Analyze(&CallSite{Kind: MakeGenericType, Type: f.widget}).Diagnostics, RuleNotGeneric)
	only(t, a.Analyze(&CallSite{Kind: MakeGenericType, Type: list, GenericArgs: []generic.Arg{{Type: intT}, {Type: strT}}}).Diagnostics, RuleGenericArity)
	assert.Empty(t, a.Analyze(&CallSite{Kind: MakeGenericType, Type: list, GenericArgs: []generic.Arg{{Type: intT}}}).Diagnostics)
	assert.Empty(t, a.Analyze(&CallSite{Kind: MakeGenericType}).Diagnostics, "unknown type")
}

func TestCreateInstance(t *testing.T) {
	t.Parallel()
	f := newFixture()
	a := f.analyzer()

	assert.Empty(t, a.Analyze(&CallSite{Kind: CreateInstance, Type: f.widget}).Diagnostics, "implicit constructor")

	d := only(t, a.Analyze(&CallSite{Kind: CreateInstance, Type: f.widget, Args: []invoke.Arg{invoke.Of(intT)}}).Diagnostics, RuleNoConstructor)
	assert.Contains(t, d.Message, "no constructor accepts the arguments")

	abstract := model.NewType("App.Shape", model.Class)
	abstract.Base = object
	abstract.Abstract = true
	d = only(t, a.Analyze(&CallSite{Kind: CreateInstance, Type: abstract}).Diagnostics, RuleNoConstructor)
	assert.Contains(t, d.Message, "is abstract")
}

func TestGetType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rule string
	}{
		{"App.Widget", ""},
		{"App.Gadget", RuleTypeNameMissing},
		{"App.Gadget, App.Plugins", ""},
		{"System.Text.StringBuilder", ""},
		{"App.Widget[", RuleTypeNameMalformed},
		{"", RuleTypeNameMalformed},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.name), func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			ds := f.analyzer().Analyze(&CallSite{Kind: GetType, TypeName: tt.name}).Diagnostics
			if tt.rule == "" {
				assert.Empty(t, ds)
				return
			}
			only(t, ds, tt.rule)
		})
	}
}

func TestOutcomesAreMemoized(t *testing.T) {
	t.Parallel()
	f := newFixture()
	a := f.analyzer()
	recv := f.lookup("Run")
	inv := &CallSite{Kind: Invoke, Receiver: recv, Target: TargetInstance}

	ds := a.Diagnostics([]*CallSite{recv, inv})
	assert.Equal(t, []string{RuleUseNameof, RuleInvokeArgs}, ruleIDs(ds))
	assert.Same(t, a.Analyze(recv), a.Analyze(recv))
}

func TestRuleCatalog(t *testing.T) {
	t.Parallel()
	for i, r := range Rules {
		assert.Equal(t, fmt.Sprintf("RG%03d", i+1), r.ID)
		assert.True(t, r.Severity.Valid(), r.ID)
		assert.NotEmpty(t, r.Title, r.ID)
		got, ok := RuleByID(r.ID)
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
	_, ok := RuleByID("RG999")
	assert.False(t, ok)
}
