package provision

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apmonboard/apmonboard/internal/controller"
)

func scopedPolicy(name string) controller.Document {
	return controller.Document{
		"name": name,
		"events": map[string]any{
			"healthRuleEvents": map[string]any{
				"healthRuleScope": map[string]any{
					"healthRuleScopeType": ScopeSpecificHealthRules,
				},
			},
		},
	}
}

func TestPolicyLinker_InjectsDeduplicatedRuleNames(t *testing.T) {
	var policySent controller.Document
	fake := &fakeController{
		createFn: func(kind controller.ResourceKind, payload controller.Document) (*controller.Response, error) {
			if kind == controller.KindPolicies {
				policySent = payload
			}
			return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
		},
	}
	linker := NewPolicyLinker(NewCreator(fake, zerolog.Nop()), zerolog.Nop())

	rules := []controller.Document{
		{"name": "A"},
		{"name": "B"},
		{"name": "A"},
		{"name": "C"},
	}
	ruleOutcomes, policyOutcomes := linker.BuildAndCreate(context.Background(), 42, rules, []controller.Document{scopedPolicy("standard-alerts")})

	require.Len(t, policyOutcomes, 1)
	assert.True(t, policyOutcomes[0].Success)
	require.Len(t, ruleOutcomes, 4)

	require.NotNil(t, policySent)
	scope, ok := policySent.Child("events", "healthRuleEvents", "healthRuleScope")
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B", "C"}, scope["healthRules"])
}

func TestPolicyLinker_OmitsFailedRulesFromScope(t *testing.T) {
	var policySent controller.Document
	fake := &fakeController{
		createFn: func(kind controller.ResourceKind, payload controller.Document) (*controller.Response, error) {
			if kind == controller.KindPolicies {
				policySent = payload
				return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
			}
			if payload.Name() == "B" {
				return &controller.Response{Status: 400, Body: []byte(`{"message":"invalid"}`)}, nil
			}
			return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
		},
	}
	linker := NewPolicyLinker(NewCreator(fake, zerolog.Nop()), zerolog.Nop())

	rules := []controller.Document{{"name": "A"}, {"name": "B"}}
	_, _ = linker.BuildAndCreate(context.Background(), 42, rules, []controller.Document{scopedPolicy("standard-alerts")})

	scope, ok := policySent.Child("events", "healthRuleEvents", "healthRuleScope")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, scope["healthRules"])
}

func TestPolicyLinker_EmptyScopeStillSubmitted(t *testing.T) {
	var policySent controller.Document
	fake := &fakeController{
		createFn: func(kind controller.ResourceKind, payload controller.Document) (*controller.Response, error) {
			if kind == controller.KindPolicies {
				policySent = payload
			}
			return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
		},
	}
	linker := NewPolicyLinker(NewCreator(fake, zerolog.Nop()), zerolog.Nop())

	ruleOutcomes, policyOutcomes := linker.BuildAndCreate(context.Background(), 42, nil, []controller.Document{scopedPolicy("standard-alerts")})

	require.Len(t, policyOutcomes, 1)
	assert.True(t, policyOutcomes[0].Success)
	assert.Empty(t, ruleOutcomes)
	require.NotNil(t, policySent)
	scope, ok := policySent.Child("events", "healthRuleEvents", "healthRuleScope")
	require.True(t, ok)
	assert.Equal(t, []string{}, scope["healthRules"])
}

func TestPolicyLinker_RulesCreatedOncePerBatch(t *testing.T) {
	ruleCreates := 0
	fake := &fakeController{
		createFn: func(kind controller.ResourceKind, _ controller.Document) (*controller.Response, error) {
			if kind == controller.KindHealthRules {
				ruleCreates++
			}
			return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
		},
	}
	linker := NewPolicyLinker(NewCreator(fake, zerolog.Nop()), zerolog.Nop())

	rules := []controller.Document{{"name": "A"}, {"name": "B"}}
	policies := []controller.Document{scopedPolicy("first"), scopedPolicy("second")}
	_, policyOutcomes := linker.BuildAndCreate(context.Background(), 42, rules, policies)

	require.Len(t, policyOutcomes, 2)
	assert.Equal(t, 2, ruleCreates, "a second policy must not re-create the rule batch")
}

func TestPolicyLinker_LeavesOtherScopeTypesAlone(t *testing.T) {
	var policySent controller.Document
	fake := &fakeController{
		createFn: func(kind controller.ResourceKind, payload controller.Document) (*controller.Response, error) {
			if kind == controller.KindPolicies {
				policySent = payload
			}
			return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
		},
	}
	linker := NewPolicyLinker(NewCreator(fake, zerolog.Nop()), zerolog.Nop())

	policy := controller.Document{
		"name": "all-rules",
		"events": map[string]any{
			"healthRuleEvents": map[string]any{
				"healthRuleScope": map[string]any{
					"healthRuleScopeType": "ALL_HEALTH_RULES",
				},
			},
		},
	}
	_, _ = linker.BuildAndCreate(context.Background(), 42, []controller.Document{{"name": "A"}}, []controller.Document{policy})

	scope, ok := policySent.Child("events", "healthRuleEvents", "healthRuleScope")
	require.True(t, ok)
	assert.NotContains(t, scope, "healthRules")
}
