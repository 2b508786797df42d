package provision

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/apmonboard/apmonboard/internal/controller"
)

// ScopeSpecificHealthRules is the policy scope discriminator that requires an
// explicit health-rule name list.
const ScopeSpecificHealthRules = "SPECIFIC_HEALTH_RULES"

// PolicyLinker creates (or confirms) a set of health rules and threads their
// authoritative names into a policy payload before posting it. The health
// rules are always created first: the policy's scope is meaningless without
// them.
type PolicyLinker struct {
	creator *Creator
	logger  zerolog.Logger
}

// NewPolicyLinker creates a new policy linker on top of a Creator.
func NewPolicyLinker(creator *Creator, logger zerolog.Logger) *PolicyLinker {
	return &PolicyLinker{creator: creator, logger: logger}
}

// BuildAndCreate runs the health-rule batch once, injects the deduplicated
// names of every successful rule into each policy's health-rule scope, and
// creates the policies. The rule outcomes and policy outcomes are returned
// separately; rule failures are reported, not merged into the policy results.
func (l *PolicyLinker) BuildAndCreate(ctx context.Context, appID int64, rulePayloads, policies []controller.Document) (ruleOutcomes, policyOutcomes []Outcome) {
	ruleOutcomes = l.creator.CreateBatch(ctx, appID, controller.KindHealthRules, rulePayloads)

	names := collectNames(ruleOutcomes)
	l.logger.Info().
		Strs("health_rules", names).
		Int64("app_id", appID).
		Msg("linking policies to health rules")

	policyOutcomes = make([]Outcome, 0, len(policies))
	for _, policy := range policies {
		l.injectScope(policy, names)
		policyOutcomes = append(policyOutcomes, l.creator.Create(ctx, appID, controller.KindPolicies, policy))
	}
	return ruleOutcomes, policyOutcomes
}

func (l *PolicyLinker) injectScope(policy controller.Document, names []string) {
	scope, ok := policy.Child("events", "healthRuleEvents", "healthRuleScope")
	if !ok {
		return
	}
	scopeType, _ := scope.Str("healthRuleScopeType")
	if scopeType != ScopeSpecificHealthRules {
		return
	}
	if len(names) == 0 {
		l.logger.Warn().
			Str("policy", policy.Name()).
			Msg("policy scopes specific health rules but none were created; submitting empty scope")
	}
	scope["healthRules"] = names
}

// collectNames gathers the names of successful outcomes in batch order,
// dropping duplicates while keeping the first occurrence. Template sets
// reused across tiers can legitimately repeat a name; the policy must not
// list it twice.
func collectNames(outcomes []Outcome) []string {
	names := make([]string, 0, len(outcomes))
	seen := make(map[string]bool, len(outcomes))
	for _, o := range outcomes {
		if !o.Success || o.Name == "" || seen[o.Name] {
			continue
		}
		seen[o.Name] = true
		names = append(names, o.Name)
	}
	return names
}
