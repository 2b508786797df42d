// Package runner orchestrates provisioning runs against one application.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/apmonboard/apmonboard/internal/audit"
	"github.com/apmonboard/apmonboard/internal/config"
	"github.com/apmonboard/apmonboard/internal/controller"
	"github.com/apmonboard/apmonboard/internal/notify"
	"github.com/apmonboard/apmonboard/internal/provision"
	"github.com/apmonboard/apmonboard/internal/template"
)

// Controller is the controller surface the runner needs: everything the
// provisioning components use plus application and tier lookup.
type Controller interface {
	provision.Controller

	// ApplicationID resolves an application name to its controller id.
	ApplicationID(ctx context.Context, name string) (int64, error)

	// TierType returns the type of a named tier within an application.
	TierType(ctx context.Context, appID int64, tierName string) (string, error)
}

// Notifier publishes a run summary after a run finishes.
type Notifier interface {
	Publish(ctx context.Context, summary notify.RunSummary) error
}

// Runner drives full provisioning runs: template rendering, resource
// creation, threshold updates, and teardown, with run history recorded to
// the audit repository.
type Runner struct {
	client   Controller
	cfg      config.Config
	renderer *template.Renderer
	creator  *provision.Creator
	linker   *provision.PolicyLinker
	patcher  *provision.ThresholdPatcher
	resolver *provision.Resolver
	repo     audit.Repository
	notifier Notifier
	logger   zerolog.Logger
}

// New creates a runner. The notifier may be nil when run summaries are not
// published.
func New(client Controller, cfg config.Config, renderer *template.Renderer, repo audit.Repository, notifier Notifier, logger zerolog.Logger) *Runner {
	creator := provision.NewCreator(client, logger)
	return &Runner{
		client:   client,
		cfg:      cfg,
		renderer: renderer,
		creator:  creator,
		linker:   provision.NewPolicyLinker(creator, logger),
		patcher:  provision.NewThresholdPatcher(client, logger),
		resolver: provision.NewResolver(client, logger),
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// OnboardRequest describes a full onboarding run.
type OnboardRequest struct {
	Application  string
	Tier         string
	Synthetic    bool
	BusinessName string
	UserEmails   []string
}

// ThresholdRequest describes a threshold update for one health rule.
type ThresholdRequest struct {
	Application   string
	RuleName      string
	CriticalValue string
	WarningValue  string
}

// TeardownRequest names the resources to remove from an application.
type TeardownRequest struct {
	Application string
	HealthRules []string
	Actions     []string
	Policies    []string
}

// Report summarizes one run. Failed counts resources that could not be
// provisioned; the run itself still completed unless an error was returned
// alongside.
type Report struct {
	RunID       string
	Mode        string
	Application string
	Tier        string
	Skipped     bool
	SkipReason  string
	Succeeded   int
	Failed      int
	Entries     []audit.Entry
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Onboard provisions the full alerting set for an application: health rules
// for its tier kind, the shared actions, and the policies linking them. A
// tier type outside the supported list skips the run without error.
func (r *Runner) Onboard(ctx context.Context, req OnboardRequest) (Report, error) {
	report := r.newReport("onboard", req.Application, req.Tier)

	appID, err := r.client.ApplicationID(ctx, req.Application)
	if err != nil {
		return report, fmt.Errorf("resolving application %q: %w", req.Application, err)
	}

	tierType := ""
	if !req.Synthetic {
		if req.Tier == "" {
			return report, fmt.Errorf("tier is required for non-synthetic onboarding")
		}
		tierType, err = r.client.TierType(ctx, appID, req.Tier)
		if err != nil {
			return report, fmt.Errorf("resolving tier %q: %w", req.Tier, err)
		}
		if !r.cfg.TierSupported(tierType) {
			r.logger.Warn().
				Str("tier_type", tierType).
				Str("application", req.Application).
				Msg("skipping unsupported tier type")
			report.Skipped = true
			report.SkipReason = fmt.Sprintf("unsupported tier type %q", tierType)
			return r.finish(ctx, report), nil
		}
	}

	kind := config.ClassifyTier(tierType, req.Synthetic)
	params := r.params(req)

	actionDocs, err := r.renderer.RenderAll(r.cfg.Templates.Actions, params)
	if err != nil {
		return report, err
	}
	ruleDocs, err := r.renderer.RenderAll(r.cfg.Templates.TemplatesFor(kind), params)
	if err != nil {
		return report, err
	}
	policyDocs, err := r.renderer.RenderAll(r.cfg.Templates.Policies, params)
	if err != nil {
		return report, err
	}

	actionOutcomes := r.creator.CreateBatch(ctx, appID, controller.KindActions, actionDocs)
	ruleOutcomes, policyOutcomes := r.linker.BuildAndCreate(ctx, appID, ruleDocs, policyDocs)

	report.record(controller.KindActions, actionOutcomes)
	report.record(controller.KindHealthRules, ruleOutcomes)
	report.record(controller.KindPolicies, policyOutcomes)

	return r.finish(ctx, report), nil
}

// CreateHealthRules provisions the base health-rule set only, without
// actions or policies. The tier name is required; the tier type is not
// consulted.
func (r *Runner) CreateHealthRules(ctx context.Context, req OnboardRequest) (Report, error) {
	report := r.newReport("create-healthrules", req.Application, req.Tier)

	if req.Tier == "" {
		return report, fmt.Errorf("tier is required for health rule creation")
	}

	appID, err := r.client.ApplicationID(ctx, req.Application)
	if err != nil {
		return report, fmt.Errorf("resolving application %q: %w", req.Application, err)
	}

	ruleDocs, err := r.renderer.RenderAll(r.cfg.Templates.BaseHealthRules, r.params(req))
	if err != nil {
		return report, err
	}

	outcomes := r.creator.CreateBatch(ctx, appID, controller.KindHealthRules, ruleDocs)
	report.record(controller.KindHealthRules, outcomes)

	return r.finish(ctx, report), nil
}

// UpdateThresholds rewrites the critical and warning thresholds of one
// health rule.
func (r *Runner) UpdateThresholds(ctx context.Context, req ThresholdRequest) (Report, error) {
	report := r.newReport("update-thresholds", req.Application, "")

	appID, err := r.client.ApplicationID(ctx, req.Application)
	if err != nil {
		return report, fmt.Errorf("resolving application %q: %w", req.Application, err)
	}

	result := r.patcher.UpdateThresholds(ctx, appID, req.RuleName, req.CriticalValue, req.WarningValue)
	if result.Success {
		r.logger.Info().Str("rule", req.RuleName).Msg(result.Message)
		report.Succeeded++
	} else {
		r.logger.Warn().Str("rule", req.RuleName).Msg(result.Message)
		report.Failed++
	}
	report.Entries = append(report.Entries, audit.Entry{
		RunID:      report.RunID,
		Kind:       string(controller.KindHealthRules),
		Name:       req.RuleName,
		Success:    result.Success,
		Message:    result.Message,
		RecordedAt: time.Now().UTC(),
	})

	return r.finish(ctx, report), nil
}

// Teardown removes the named resources from an application, best-effort.
// Policies go first so no live policy is left pointing at deleted rules.
func (r *Runner) Teardown(ctx context.Context, req TeardownRequest) (Report, error) {
	report := r.newReport("teardown", req.Application, "")

	appID, err := r.client.ApplicationID(ctx, req.Application)
	if err != nil {
		return report, fmt.Errorf("resolving application %q: %w", req.Application, err)
	}

	sets := []struct {
		kind  controller.ResourceKind
		names []string
	}{
		{controller.KindPolicies, req.Policies},
		{controller.KindActions, req.Actions},
		{controller.KindHealthRules, req.HealthRules},
	}

	for _, set := range sets {
		if len(set.names) == 0 {
			continue
		}
		summary, err := r.resolver.DeleteByName(ctx, appID, set.kind, set.names)
		if err != nil {
			return report, fmt.Errorf("listing %s: %w", set.kind, err)
		}
		report.Succeeded += summary.Deleted
		report.Failed += summary.Failed
		report.Entries = append(report.Entries, audit.Entry{
			RunID:   report.RunID,
			Kind:    string(set.kind),
			Success: summary.Failed == 0,
			Message: fmt.Sprintf("requested %d, deleted %d, missing %d, failed %d",
				summary.Requested, summary.Deleted, summary.Missing, summary.Failed),
			RecordedAt: time.Now().UTC(),
		})
	}

	return r.finish(ctx, report), nil
}

func (r *Runner) params(req OnboardRequest) template.Params {
	return template.Params{
		Environment:     r.cfg.Controller.Environment,
		BusinessName:    req.BusinessName,
		ApplicationName: req.Application,
		TierName:        req.Tier,
		UserEmails:      req.UserEmails,
	}
}

func (r *Runner) newReport(mode, application, tier string) Report {
	return Report{
		RunID:       uuid.NewString(),
		Mode:        mode,
		Application: application,
		Tier:        tier,
		StartedAt:   time.Now().UTC(),
	}
}

// finish stamps the report, persists it, and publishes the summary. Audit
// and notification failures are logged, never surfaced: the provisioning
// work itself already happened.
func (r *Runner) finish(ctx context.Context, report Report) Report {
	report.FinishedAt = time.Now().UTC()

	run := audit.Run{
		ID:          report.RunID,
		Account:     r.cfg.Controller.AccountName,
		Application: report.Application,
		Tier:        report.Tier,
		Mode:        report.Mode,
		Succeeded:   report.Succeeded,
		Failed:      report.Failed,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}
	if err := r.repo.SaveRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Str("run_id", report.RunID).Msg("recording run failed")
	} else if err := r.repo.SaveEntries(ctx, report.Entries); err != nil {
		r.logger.Warn().Err(err).Str("run_id", report.RunID).Msg("recording run entries failed")
	}

	if r.notifier != nil {
		summary := notify.RunSummary{
			RunID:       report.RunID,
			Account:     run.Account,
			Application: report.Application,
			Tier:        report.Tier,
			Mode:        report.Mode,
			Succeeded:   report.Succeeded,
			Failed:      report.Failed,
			StartedAt:   report.StartedAt,
			FinishedAt:  report.FinishedAt,
		}
		if err := r.notifier.Publish(ctx, summary); err != nil {
			r.logger.Warn().Err(err).Str("run_id", report.RunID).Msg("publishing run summary failed")
		}
	}

	return report
}

func (rep *Report) record(kind controller.ResourceKind, outcomes []provision.Outcome) {
	for _, o := range outcomes {
		if o.Success {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
		rep.Entries = append(rep.Entries, audit.Entry{
			RunID:      rep.RunID,
			Kind:       string(kind),
			Name:       o.Name,
			Success:    o.Success,
			Status:     o.Status,
			Message:    o.Message,
			RecordedAt: time.Now().UTC(),
		})
	}
}
