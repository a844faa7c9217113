package analyze

import "github.com/phobologic/reflguard/internal/model"

// Rule describes one diagnostic the analyzer can raise.
type Rule struct {
	ID       string
	Title    string
	Severity model.Severity
}

// Rule identifiers.
const (
	RuleNoMember           = "RG001"
	RuleAmbiguous          = "RG002"
	RuleWrongTypes         = "RG003"
	RuleFlagsTooNarrow     = "RG004"
	RuleFlagsRedundant     = "RG005"
	RuleFlagsMissing       = "RG006"
	RuleFlagsOrder         = "RG007"
	RuleUseNameof          = "RG008"
	RuleNameofWrongType    = "RG009"
	RuleNoAccessor         = "RG010"
	RuleNoConstructor      = "RG011"
	RuleGenericArity       = "RG012"
	RuleGenericConstraint  = "RG013"
	RuleNotGeneric         = "RG014"
	RuleInvokeArgs         = "RG015"
	RuleInvokeOpenGeneric  = "RG016"
	RuleInvokeNullTarget   = "RG017"
	RuleInvokeStaticTarget = "RG018"
	RulePreferNullArgs     = "RG019"
	RulePreferEmptyTypes   = "RG020"
	RuleTypeNameMalformed  = "RG021"
	RuleTypeNameMissing    = "RG022"
	RulePotentiallyHidden  = "RG023"
)

// Rules is the rule catalog in ID order.
var Rules = []Rule{
	{RuleNoMember, "member does not exist", model.SeverityError},
	{RuleAmbiguous, "more than one member matches", model.SeverityError},
	{RuleWrongTypes, "no overload matches the parameter types", model.SeverityError},
	{RuleFlagsTooNarrow, "binding flags find no member", model.SeverityError},
	{RuleFlagsRedundant, "binding flags include unnecessary flags", model.SeverityWarning},
	{RuleFlagsMissing, "binding flags should be specified", model.SeverityWarning},
	{RuleFlagsOrder, "binding flags are not in canonical order", model.SeverityInfo},
	{RuleUseNameof, "use nameof for the member name", model.SeverityInfo},
	{RuleNameofWrongType, "nameof refers to a member of another type", model.SeverityWarning},
	{RuleNoAccessor, "accessor does not exist", model.SeverityError},
	{RuleNoConstructor, "no matching constructor", model.SeverityError},
	{RuleGenericArity, "wrong number of generic arguments", model.SeverityError},
	{RuleGenericConstraint, "generic argument violates a constraint", model.SeverityError},
	{RuleNotGeneric, "not a generic definition", model.SeverityError},
	{RuleInvokeArgs, "arguments do not match the parameters", model.SeverityError},
	{RuleInvokeOpenGeneric, "invoking a generic method definition", model.SeverityError},
	{RuleInvokeNullTarget, "instance member invoked with null target", model.SeverityError},
	{RuleInvokeStaticTarget, "static member invoked with a target instance", model.SeverityWarning},
	{RulePreferNullArgs, "pass null instead of an empty argument array", model.SeverityInfo},
	{RulePreferEmptyTypes, "use Type.EmptyTypes", model.SeverityInfo},
	{RuleTypeNameMalformed, "type name does not parse", model.SeverityError},
	{RuleTypeNameMissing, "type does not exist", model.SeverityWarning},
	{RulePotentiallyHidden, "member may exist but is not visible to the analysis", model.SeverityInfo},
}

var rulesByID = func() map[string]Rule {
	m := make(map[string]Rule, len(Rules))
	for _, r := range Rules {
		m[r.ID] = r
	}
	return m
}()

// RuleByID returns the rule with the given ID.
func RuleByID(id string) (Rule, bool) {
	r, ok := rulesByID[id]
	return r, ok
}
