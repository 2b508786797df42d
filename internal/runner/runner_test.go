package runner

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apmonboard/apmonboard/internal/audit"
	"github.com/apmonboard/apmonboard/internal/config"
	"github.com/apmonboard/apmonboard/internal/controller"
	"github.com/apmonboard/apmonboard/internal/notify"
	"github.com/apmonboard/apmonboard/internal/template"
)

type fakeController struct {
	appID    int64
	appErr   error
	tierType string
	tierErr  error

	tierCalls int

	created map[controller.ResourceKind][]controller.Document

	rules    []controller.RuleSummary
	ruleDocs map[int64]controller.Document
	putCalls int

	resources   map[controller.ResourceKind][]controller.ResourceSummary
	deleteOrder []controller.ResourceKind
}

func (f *fakeController) ApplicationID(context.Context, string) (int64, error) {
	if f.appErr != nil {
		return 0, f.appErr
	}
	return f.appID, nil
}

func (f *fakeController) TierType(context.Context, int64, string) (string, error) {
	f.tierCalls++
	if f.tierErr != nil {
		return "", f.tierErr
	}
	return f.tierType, nil
}

func (f *fakeController) CreateResource(_ context.Context, _ int64, kind controller.ResourceKind, payload controller.Document) (*controller.Response, error) {
	if f.created == nil {
		f.created = make(map[controller.ResourceKind][]controller.Document)
	}
	f.created[kind] = append(f.created[kind], payload)
	return &controller.Response{Status: 201, Body: []byte(`{}`)}, nil
}

func (f *fakeController) ListHealthRules(context.Context, int64) ([]controller.RuleSummary, error) {
	return f.rules, nil
}

func (f *fakeController) GetHealthRule(_ context.Context, _ int64, ruleID int64) (controller.Document, error) {
	doc, ok := f.ruleDocs[ruleID]
	if !ok {
		return nil, controller.ErrNotFound
	}
	return doc, nil
}

func (f *fakeController) PutHealthRule(context.Context, int64, int64, controller.Document) (*controller.Response, error) {
	f.putCalls++
	return &controller.Response{Status: 200, Body: []byte(`{}`)}, nil
}

func (f *fakeController) ListResources(_ context.Context, _ int64, kind controller.ResourceKind) ([]controller.ResourceSummary, error) {
	return f.resources[kind], nil
}

func (f *fakeController) DeleteResource(_ context.Context, _ int64, kind controller.ResourceKind, _ int64) (int, error) {
	f.deleteOrder = append(f.deleteOrder, kind)
	return 204, nil
}

type fakeNotifier struct {
	summaries []notify.RunSummary
}

func (f *fakeNotifier) Publish(_ context.Context, summary notify.RunSummary) error {
	f.summaries = append(f.summaries, summary)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Controller:         config.ControllerConfig{AccountName: "acme-prod", Environment: "prod"},
		SupportedTierTypes: []string{config.TierTypeJVM, config.TierTypeCLR},
		Templates: config.TemplateSets{
			BaseHealthRules:      []string{"cpu_busy.json"},
			JVMHealthRules:       []string{"cpu_busy.json", "jvm_heap_used.json"},
			CLRHealthRules:       []string{"cpu_busy.json", "clr_gen2_heap.json"},
			SyntheticHealthRules: []string{"synthetic_availability.json"},
			Actions:              []string{"email_action.json"},
			Policies:             []string{"standard_policy.json"},
			DatabaseHealthRules:  []string{"db_availability.json", "db_connection_drop.json"},
			DatabaseActions:      []string{"db_email_action.json"},
			DatabasePolicies:     []string{"database_policy.json"},
		},
	}
}

func newTestRunner(t *testing.T, fake *fakeController, notifier Notifier) (*Runner, *audit.InMemoryRepository) {
	t.Helper()
	renderer, err := template.NewRenderer()
	require.NoError(t, err)
	repo := audit.NewInMemoryRepository()
	return New(fake, testConfig(), renderer, repo, notifier, zerolog.Nop()), repo
}

func onboardRequest() OnboardRequest {
	return OnboardRequest{
		Application:  "checkout",
		Tier:         "checkout-api",
		BusinessName: "PAYMENTS",
		UserEmails:   []string{"ops@example.com"},
	}
}

func TestRunner_Onboard_JVMTier(t *testing.T) {
	fake := &fakeController{appID: 42, tierType: config.TierTypeJVM}
	r, repo := newTestRunner(t, fake, nil)

	report, err := r.Onboard(context.Background(), onboardRequest())
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Equal(t, 4, report.Succeeded)
	assert.Zero(t, report.Failed)

	assert.Len(t, fake.created[controller.KindHealthRules], 2)
	assert.Len(t, fake.created[controller.KindActions], 1)
	require.Len(t, fake.created[controller.KindPolicies], 1)

	policy := fake.created[controller.KindPolicies][0]
	scope, ok := policy.Child("events", "healthRuleEvents", "healthRuleScope")
	require.True(t, ok)
	assert.Equal(t, []string{"checkout - CPU Busy", "checkout - JVM Heap Used"}, scope["healthRules"])

	run, err := repo.LastRun(context.Background(), "checkout")
	require.NoError(t, err)
	assert.Equal(t, "onboard", run.Mode)
	assert.Equal(t, report.RunID, run.ID)
	assert.Len(t, repo.Entries(report.RunID), 4)
}

func TestRunner_Onboard_SyntheticSkipsTierLookup(t *testing.T) {
	fake := &fakeController{appID: 42}
	r, _ := newTestRunner(t, fake, nil)

	req := onboardRequest()
	req.Tier = ""
	req.Synthetic = true
	report, err := r.Onboard(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, fake.tierCalls)
	require.Len(t, fake.created[controller.KindHealthRules], 1)
	assert.Equal(t, "checkout - Synthetic Availability", fake.created[controller.KindHealthRules][0].Name())
	assert.Equal(t, 3, report.Succeeded)
}

func TestRunner_Onboard_UnknownApplicationIsFatal(t *testing.T) {
	fake := &fakeController{appErr: controller.ErrNotFound}
	r, _ := newTestRunner(t, fake, nil)

	_, err := r.Onboard(context.Background(), onboardRequest())
	require.ErrorIs(t, err, controller.ErrNotFound)
	assert.Empty(t, fake.created, "nothing may be provisioned without an application id")
}

func TestRunner_Onboard_MissingTierIsFatal(t *testing.T) {
	fake := &fakeController{appID: 42}
	r, _ := newTestRunner(t, fake, nil)

	req := onboardRequest()
	req.Tier = ""
	_, err := r.Onboard(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, fake.created)
}

func TestRunner_Onboard_UnsupportedTierIsSkipped(t *testing.T) {
	fake := &fakeController{appID: 42, tierType: "PHP Application Server"}
	r, _ := newTestRunner(t, fake, nil)

	report, err := r.Onboard(context.Background(), onboardRequest())
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Contains(t, report.SkipReason, "PHP Application Server")
	assert.Empty(t, fake.created)
}

func TestRunner_CreateHealthRules_BaseSetOnly(t *testing.T) {
	fake := &fakeController{appID: 42}
	r, _ := newTestRunner(t, fake, nil)

	report, err := r.CreateHealthRules(context.Background(), onboardRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Len(t, fake.created[controller.KindHealthRules], 1)
	assert.Empty(t, fake.created[controller.KindActions])
	assert.Empty(t, fake.created[controller.KindPolicies])
	assert.Zero(t, fake.tierCalls)
}

func TestRunner_UpdateThresholds_RuleNotFound(t *testing.T) {
	fake := &fakeController{appID: 42, rules: []controller.RuleSummary{{ID: 1, Name: "Other"}}}
	r, repo := newTestRunner(t, fake, nil)

	report, err := r.UpdateThresholds(context.Background(), ThresholdRequest{
		Application:   "checkout",
		RuleName:      "checkout - CPU Busy",
		CriticalValue: "95",
	})
	require.NoError(t, err, "a failed update is still a completed run")

	assert.Equal(t, 1, report.Failed)
	entries := repo.Entries(report.RunID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Health rule not found", entries[0].Message)
}

func TestRunner_Teardown_PoliciesRemovedFirst(t *testing.T) {
	fake := &fakeController{
		appID: 42,
		resources: map[controller.ResourceKind][]controller.ResourceSummary{
			controller.KindPolicies:    {{ID: 1, Name: "P"}},
			controller.KindActions:     {{ID: 2, Name: "A"}},
			controller.KindHealthRules: {{ID: 3, Name: "H"}},
		},
	}
	r, _ := newTestRunner(t, fake, nil)

	report, err := r.Teardown(context.Background(), TeardownRequest{
		Application: "checkout",
		HealthRules: []string{"H"},
		Actions:     []string{"A"},
		Policies:    []string{"P"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, []controller.ResourceKind{
		controller.KindPolicies,
		controller.KindActions,
		controller.KindHealthRules,
	}, fake.deleteOrder)
}

func TestRunner_PublishesRunSummary(t *testing.T) {
	fake := &fakeController{appID: 42, tierType: config.TierTypeJVM}
	notifier := &fakeNotifier{}
	r, _ := newTestRunner(t, fake, notifier)

	report, err := r.Onboard(context.Background(), onboardRequest())
	require.NoError(t, err)

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, report.RunID, notifier.summaries[0].RunID)
	assert.Equal(t, "onboard", notifier.summaries[0].Mode)
	assert.Equal(t, "acme-prod", notifier.summaries[0].Account)
}
