package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/apmonboard/apmonboard/internal/controller"
	"github.com/apmonboard/apmonboard/internal/template"
)

// DatabaseRequest describes a database onboarding run. An empty Databases
// list provisions rules scoped to every database the collector monitors;
// named servers each get their own rule set scoped to that server alone.
type DatabaseRequest struct {
	Application  string
	BusinessName string
	DatabaseType string
	Databases    []string
	UserEmails   []string
}

// OnboardDatabases provisions the database-level alerting set: one health
// rule per template per target database (or one per template for the
// all-databases scope), the database notification action, and the policy
// linking them. Rule names are prefixed "BUSINESS | env | dbType", with the
// server name appended for single-database rules.
func (r *Runner) OnboardDatabases(ctx context.Context, req DatabaseRequest) (Report, error) {
	report := r.newReport("onboard-db", req.Application, "")

	if req.DatabaseType == "" {
		return report, fmt.Errorf("database type is required for database onboarding")
	}

	appID, err := r.client.ApplicationID(ctx, req.Application)
	if err != nil {
		return report, fmt.Errorf("resolving application %q: %w", req.Application, err)
	}

	base := fmt.Sprintf("%s | %s | %s", req.BusinessName, r.cfg.Controller.Environment, req.DatabaseType)
	shared := template.Params{
		Environment:     r.cfg.Controller.Environment,
		BusinessName:    req.BusinessName,
		ApplicationName: req.Application,
		UserEmails:      req.UserEmails,
		RuleBaseName:    base,
		DatabaseType:    req.DatabaseType,
	}

	servers := databaseServers(req.Databases)
	var ruleDocs []controller.Document
	if len(servers) == 0 {
		params := shared
		params.DatabaseScope = allDatabasesScope()
		ruleDocs, err = r.renderer.RenderAll(r.cfg.Templates.DatabaseHealthRules, params)
		if err != nil {
			return report, err
		}
	} else {
		for _, server := range servers {
			params := shared
			params.RuleBaseName = base + "-" + server
			params.DatabaseScope = specificDatabaseScope(server)
			docs, err := r.renderer.RenderAll(r.cfg.Templates.DatabaseHealthRules, params)
			if err != nil {
				return report, err
			}
			ruleDocs = append(ruleDocs, docs...)
		}
	}

	actionDocs, err := r.renderer.RenderAll(r.cfg.Templates.DatabaseActions, shared)
	if err != nil {
		return report, err
	}
	policyDocs, err := r.renderer.RenderAll(r.cfg.Templates.DatabasePolicies, shared)
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

// databaseServers trims the requested server names and drops blanks, so a
// trailing comma in the flag value does not produce an empty-named scope.
func databaseServers(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func allDatabasesScope() controller.Document {
	return controller.Document{"databaseScope": "ALL_DATABASES"}
}

func specificDatabaseScope(server string) controller.Document {
	return controller.Document{
		"databaseScope": "SPECIFIC_DATABASES",
		"databases": []controller.Document{{
			"serverName":          server,
			"collectorConfigName": server,
		}},
	}
}
