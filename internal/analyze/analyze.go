// Package analyze runs the reflection engine over call sites extracted from
// source and turns the outcomes into diagnostics.
package analyze

import (
	"fmt"
	"strings"

	"github.com/phobologic/reflguard/internal/flags"
	"github.com/phobologic/reflguard/internal/generic"
	"github.com/phobologic/reflguard/internal/invoke"
	"github.com/phobologic/reflguard/internal/model"
	"github.com/phobologic/reflguard/internal/resolve"
	"github.com/phobologic/reflguard/internal/typename"
)

// Outcome is what the engine established about one call site.
type Outcome struct {
	Site *CallSite
	// Match is set for lookups, accessors and CreateInstance.
	Match   resolve.MatchResult
	Generic generic.Result
	Invoke  invoke.Result
	// Member is the member the call evaluates to, when known. Chained
	// calls such as Invoke operate on the Member of their receiver.
	Member      *model.Member
	Diagnostics []model.Diagnostic
}

func (o *Outcome) report(rule, fix, format string, args ...any) {
	r, _ := RuleByID(rule)
	o.Diagnostics = append(o.Diagnostics, model.Diagnostic{
		Rule:     rule,
		Severity: r.Severity,
		Message:  fmt.Sprintf(format, args...),
		File:     o.Site.File,
		Line:     o.Site.Line,
		Column:   o.Site.Column,
		Fix:      fix,
	})
}

// Analyzer evaluates call sites against a universe of types. Outcomes are
// memoized per site, so an Analyzer must not be shared between goroutines.
type Analyzer struct {
	universe   model.Universe
	namespaces map[string]bool
	outcomes   map[*CallSite]*Outcome
}

// New returns an analyzer. sourceNamespaces lists the namespaces declared
// in the analyzed sources; Type.GetType names in those namespaces are
// expected to resolve.
func New(u model.Universe, sourceNamespaces []string) *Analyzer {
	ns := make(map[string]bool, len(sourceNamespaces))
	for _, n := range sourceNamespaces {
		ns[n] = true
	}
	return &Analyzer{universe: u, namespaces: ns, outcomes: make(map[*CallSite]*Outcome)}
}

// Diagnostics analyzes sites and returns their diagnostics in site order.
func (a *Analyzer) Diagnostics(sites []*CallSite) []model.Diagnostic {
	var out []model.Diagnostic
	for _, s := range sites {
		out = append(out, a.Analyze(s).Diagnostics...)
	}
	return out
}

// Analyze evaluates one call site, analyzing its receiver first.
func (a *Analyzer) Analyze(s *CallSite) *Outcome {
	if o, ok := a.outcomes[s]; ok {
		return o
	}
	o := &Outcome{Site: s}
	a.outcomes[s] = o
	switch {
	case s.Kind.IsLookup():
		a.lookup(o)
	case s.Kind == Accessor:
		a.accessor(o)
	case s.Kind == MakeGenericType:
		a.makeGenericType(o)
	case s.Kind == MakeGenericMethod:
		a.makeGenericMethod(o)
	case s.Kind == Invoke:
		a.invoke(o)
	case s.Kind == CreateInstance:
		a.createInstance(o)
	case s.Kind == GetType:
		a.getType(o)
	}
	return o
}

func (a *Analyzer) receiver(s *CallSite) *model.Member {
	if s.Receiver == nil {
		return nil
	}
	return a.Analyze(s.Receiver).Member
}

func (a *Analyzer) lookup(o *Outcome) {
	s := o.Site
	r := resolve.Resolve(s.Query())
	o.Match = r
	o.Member = r.Member()

	checkOrder(o)
	if s.HasTypes && s.EmptyTypesArray {
		o.report(RulePreferEmptyTypes, "Type.EmptyTypes", "use Type.EmptyTypes instead of an empty Type array")
	}

	what := describe(s)
	switch r.Kind {
	case resolve.NoMatch:
		if r.Verdict.Kind == flags.TooNarrow || r.Verdict.Kind == flags.Missing {
			o.report(RuleFlagsTooNarrow, flagsFix(s, r.Verdict.Expected),
				"%s on %s is not found with %s; it needs %s",
				what, s.Type, suppliedFlags(s, r.Lookup), r.Verdict.Expected.Format(s.Flags.UsingStatic))
			return
		}
		if r.Reason != "" {
			o.report(RuleNoMember, "", "%s", r.Reason)
			return
		}
		o.report(RuleNoMember, "", "%s does not have %s", s.Type, what)
	case resolve.Ambiguous:
		o.report(RuleAmbiguous, "", "more than one %s on %s matches: %s", kindName(s.Kind), s.Type, listMembers(r.Members))
	case resolve.WrongTypes:
		o.report(RuleWrongTypes, "", "no overload of %s on %s takes (%s)", what, s.Type, typeList(s.Types))
	case resolve.PotentiallyInvisible:
		o.report(RulePotentiallyHidden, "", "%s is not among the known members of %s; it may be non-public in metadata", what, s.Type)
	case resolve.Single:
		switch r.Verdict.Kind {
		case flags.Redundant:
			o.report(RuleFlagsRedundant, flagsFix(s, r.Verdict.Expected),
				"%s includes flags %s does not need; use %s",
				suppliedFlags(s, r.Lookup), o.Member, r.Verdict.Expected.Format(s.Flags.UsingStatic))
		case flags.Missing:
			o.report(RuleFlagsMissing, flagsFix(s, r.Verdict.Expected),
				"specify binding flags for %s: %s", o.Member, r.Verdict.Expected.Format(s.Flags.UsingStatic))
		}
		checkName(o)
	}
}

// checkOrder flags literal flag expressions not written in canonical order.
func checkOrder(o *Outcome) {
	s := o.Site
	if !s.HasFlagsArg {
		return
	}
	written, ok := flags.Written(s.Flags)
	if !ok || flags.InCanonicalOrder(written) {
		return
	}
	var all flags.Flags
	for _, f := range written {
		all |= f
	}
	fix := all.Format(s.Flags.UsingStatic)
	o.report(RuleFlagsOrder, fix, "write the binding flags as %s", fix)
}

// checkName suggests nameof for literal names and checks that nameof
// refers to a member of the looked-up type.
func checkName(o *Outcome) {
	s, m := o.Site, o.Member
	if s.Kind == GetConstructor || m == nil || s.Type == nil {
		return
	}
	if n := s.Name.Nameof; n != nil {
		if n.Type != nil && !sameOrBase(s.Type, n.Type) && !model.ImplementsInterface(s.Type, n.Type) {
			o.report(RuleNameofWrongType, nameofFix(s.Type, m, s.Caller),
				"%s refers to a member of %s, not of %s", n.Text, n.Type, s.Type)
		}
		return
	}
	if !s.Name.Known || !nameofable(m) || !accessible(s.Type, m, s.Caller) {
		return
	}
	fix := nameofFix(s.Type, m, s.Caller)
	o.report(RuleUseNameof, fix, "use %s instead of \"%s\"", fix, s.Name.Text)
}

func (a *Analyzer) accessor(o *Outcome) {
	s := o.Site
	if s.Receiver == nil {
		return
	}
	recv := a.Analyze(s.Receiver)
	if recv.Match.Kind != resolve.Single {
		return
	}
	r := resolve.Project(recv.Match, s.Accessor, s.AccessorNonPublic)
	o.Match = r
	o.Member = r.Member()
	if r.Kind == resolve.NoMatch {
		o.report(RuleNoAccessor, "", "%s", r.Reason)
	}
}

func (a *Analyzer) makeGenericType(o *Outcome) {
	s := o.Site
	t := s.Type
	if t == nil {
		return
	}
	if !t.IsGenericDefinition() {
		o.report(RuleNotGeneric, "", "%s is not a generic type definition", t)
		return
	}
	o.Generic = generic.Validate(t.TypeParams, s.GenericArgs, s.Path)
	reportGeneric(o, t.String())
}

func (a *Analyzer) makeGenericMethod(o *Outcome) {
	s := o.Site
	m := a.receiver(s)
	if m == nil {
		return
	}
	if !m.IsGenericMethodDefinition() {
		o.report(RuleNotGeneric, "", "%s is not a generic method definition", m)
		return
	}
	o.Generic = generic.Validate(m.TypeParams, s.GenericArgs, s.Path)
	reportGeneric(o, m.String())
	if o.Generic.Kind != generic.OK {
		return
	}
	args := make([]*model.Type, len(s.GenericArgs))
	for i, g := range s.GenericArgs {
		if g.Type == nil {
			return
		}
		args[i] = g.Type
	}
	o.Member = model.InstantiateMethod(m, args...)
}

func reportGeneric(o *Outcome, subject string) {
	switch o.Generic.Kind {
	case generic.ArityMismatch:
		o.report(RuleGenericArity, "", "%s: %s", subject, o.Generic)
	case generic.ConstraintViolation:
		o.report(RuleGenericConstraint, "", "%s: type argument %d: %s", subject, o.Generic.Index+1, o.Generic)
	}
}

func (a *Analyzer) invoke(o *Outcome) {
	s := o.Site
	m := a.receiver(s)
	if m == nil {
		return
	}
	if m.IsGenericMethodDefinition() {
		o.report(RuleInvokeOpenGeneric, "", "%s is a generic method definition; call MakeGenericMethod before Invoke", m)
		return
	}
	if m.Kind != model.Constructor {
		switch {
		case !m.Static && s.Target == TargetNull:
			o.report(RuleInvokeNullTarget, "", "%s is an instance member and needs a target", m)
		case m.Static && s.Target == TargetInstance:
			o.report(RuleInvokeStaticTarget, "null", "%s is static; pass null as the target", m)
		}
	}
	if s.EmptyArgsArray && len(m.Parameters) == 0 {
		o.report(RulePreferNullArgs, "null", "%s takes no arguments; pass null", m)
	}
	o.Invoke = invoke.Match(m.Parameters, s.Args)
	if o.Invoke.Kind != invoke.Mismatch {
		return
	}
	r := o.Invoke
	switch r.Reason {
	case invoke.CountMismatch:
		o.report(RuleInvokeArgs, "", "%s expects %s, got %s", m, r.Expected, r.Supplied)
	case invoke.NullMismatch:
		o.report(RuleInvokeArgs, "", "argument %d of %s cannot be null: parameter is %s", r.Index+1, m, r.Expected)
	case invoke.MissingMismatch:
		o.report(RuleInvokeArgs, "", "argument %d of %s is Missing.Value but the parameter has no default", r.Index+1, m)
	default:
		o.report(RuleInvokeArgs, "", "argument %d of %s: expected %s, got %s", r.Index+1, m, r.Expected, r.Supplied)
	}
}

func (a *Analyzer) createInstance(o *Outcome) {
	s := o.Site
	r := resolve.CreateInstance(s.Type, s.Args, s.NonPublic)
	o.Match = r
	o.Member = r.Member()
	switch r.Kind {
	case resolve.NoMatch:
		o.report(RuleNoConstructor, "", "cannot create %s: %s", s.Type, r.Reason)
	case resolve.Ambiguous:
		o.report(RuleAmbiguous, "", "more than one constructor of %s accepts the arguments: %s", s.Type, listMembers(r.Members))
	case resolve.PotentiallyInvisible:
		o.report(RulePotentiallyHidden, "", "no known constructor of %s accepts the arguments; it may be non-public in metadata", s.Type)
	}
}

func (a *Analyzer) getType(o *Outcome) {
	s := o.Site
	name, err := typename.Parse(s.TypeName)
	if err != nil {
		o.report(RuleTypeNameMalformed, "", "%q is not a valid type name: %v", s.TypeName, err)
		return
	}
	if name.Assembly != "" || a.universe == nil {
		return
	}
	if _, ok := a.universe.Lookup(name.Name); ok {
		return
	}
	if ns := namespaceOf(name.Name); a.namespaces[ns] {
		o.report(RuleTypeNameMissing, "", "no type named %s is declared in namespace %s", name.Name, ns)
	}
}

func namespaceOf(metadataName string) string {
	if i := strings.IndexByte(metadataName, '+'); i >= 0 {
		metadataName = metadataName[:i]
	}
	if i := strings.LastIndexByte(metadataName, '.'); i >= 0 {
		return metadataName[:i]
	}
	return ""
}

func kindName(k CallKind) string {
	switch k {
	case GetMethod:
		return "method"
	case GetProperty:
		return "property"
	case GetField:
		return "field"
	case GetConstructor:
		return "constructor"
	case GetNestedType:
		return "nested type"
	case GetEvent:
		return "event"
	}
	return "member"
}

func describe(s *CallSite) string {
	if s.Kind == GetConstructor {
		if s.HasTypes {
			return "a constructor (" + typeList(s.Types) + ")"
		}
		return "a constructor"
	}
	return fmt.Sprintf("a %s named '%s'", kindName(s.Kind), s.Name.Text)
}

func suppliedFlags(s *CallSite, lookup flags.Flags) string {
	if !s.HasFlagsArg {
		return "the default lookup (" + lookup.Format(s.Flags.UsingStatic) + ")"
	}
	return s.FlagsValue().Flags.Format(s.Flags.UsingStatic)
}

// flagsFix keeps the non-structural flags the call supplied, such as
// IgnoreCase.
func flagsFix(s *CallSite, expected flags.Flags) string {
	if v := s.FlagsValue(); v.IsKnown() {
		expected |= v.Flags &^ flags.Structural
	}
	return expected.Format(s.Flags.UsingStatic)
}

func typeList(ts []*model.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

const maxListed = 3

func listMembers(ms []*model.Member) string {
	parts := make([]string, 0, maxListed+1)
	for i, m := range ms {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("and %d more", len(ms)-maxListed))
			break
		}
		parts = append(parts, m.Signature())
	}
	return strings.Join(parts, ", ")
}

func sameOrBase(t, other *model.Type) bool {
	def := other.Definition()
	if t.Definition() == def {
		return true
	}
	for _, b := range model.BaseChain(t) {
		if b.Definition() == def {
			return true
		}
	}
	return false
}

// nameofable reports whether C# can name m with nameof.
func nameofable(m *model.Member) bool {
	if m.Indexer || m.Kind == model.Constructor {
		return false
	}
	if m.Kind == model.Method {
		for _, p := range []string{"get_", "set_", "add_", "remove_", "op_"} {
			if strings.HasPrefix(m.Name, p) {
				return false
			}
		}
	}
	return true
}

// accessible reports whether code in caller can name member m of t.
func accessible(t *model.Type, m *model.Member, caller *model.Type) bool {
	if t.IsConstructed() || t.IsGenericDefinition() {
		return false
	}
	for cur := t.Definition(); cur != nil; cur = cur.Declaring {
		if !reachable(cur.Accessibility, cur.Declaring, caller) {
			return false
		}
	}
	return reachable(m.Accessibility, m.DeclaringType, caller)
}

func reachable(acc model.Accessibility, owner, caller *model.Type) bool {
	switch acc {
	case model.Public, model.Internal, model.ProtectedInternal, "":
		return true
	}
	if caller == nil || owner == nil {
		return false
	}
	if encloses(owner, caller) {
		return true
	}
	if acc == model.Protected {
		return sameOrBase(caller, owner)
	}
	return false
}

func encloses(outer, inner *model.Type) bool {
	def := outer.Definition()
	for cur := inner.Definition(); cur != nil; cur = cur.Declaring {
		if cur == def {
			return true
		}
	}
	return false
}

// nameofFix renders nameof for m as seen from caller.
func nameofFix(t *model.Type, m *model.Member, caller *model.Type) string {
	name := m.Name
	if m.Kind == model.NestedType && m.Nested != nil {
		name = m.Nested.SimpleName()
	}
	if caller != nil && encloses(t, caller) && t.Definition() == caller.Definition() {
		return "nameof(" + name + ")"
	}
	return "nameof(" + sourceName(t) + "." + name + ")"
}

// sourceName spells a non-generic type as C# code outside its namespace
// would, with declaring types.
func sourceName(t *model.Type) string {
	var parts []string
	for cur := t.Definition(); cur != nil; cur = cur.Declaring {
		parts = append([]string{cur.SimpleName()}, parts...)
	}
	return strings.Join(parts, ".")
}
