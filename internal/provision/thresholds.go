package provision

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/apmonboard/apmonboard/internal/controller"
)

// ThresholdPatcher edits the numeric comparison thresholds inside one health
// rule's evaluation criteria. The rule document is shared with schedule,
// scope, and enablement fields that must survive untouched, so the only safe
// write is a full fetch, an in-place mutation of the one targeted field, and
// a full replace. The document is fetched fresh on every update.
type ThresholdPatcher struct {
	client Controller
	logger zerolog.Logger
}

// NewThresholdPatcher creates a new threshold patcher.
func NewThresholdPatcher(client Controller, logger zerolog.Logger) *ThresholdPatcher {
	return &ThresholdPatcher{client: client, logger: logger}
}

// UpdateThresholds overwrites the compareValue of the critical and/or warning
// condition of the named health rule. Empty values mean "leave that severity
// alone". The update is refused outright when a severity carries more than
// one condition: with several conditions there is no way to know which
// threshold the caller meant, and a guess would silently rewrite the wrong
// one.
func (p *ThresholdPatcher) UpdateThresholds(ctx context.Context, appID int64, ruleName, criticalValue, warningValue string) UpdateResult {
	critical, err := parseThreshold(criticalValue)
	if err != nil {
		return UpdateResult{Success: false, Message: fmt.Sprintf("invalid critical value %q: not a number", criticalValue)}
	}
	warning, err := parseThreshold(warningValue)
	if err != nil {
		return UpdateResult{Success: false, Message: fmt.Sprintf("invalid warning value %q: not a number", warningValue)}
	}

	rules, err := p.client.ListHealthRules(ctx, appID)
	if err != nil {
		p.logger.Warn().Err(err).Str("rule", ruleName).Msg("listing health rules failed")
		return UpdateResult{Success: false, Message: err.Error()}
	}

	var ruleID int64
	found := false
	for _, rule := range rules {
		if rule.Name == ruleName {
			ruleID = rule.ID
			found = true
			break
		}
	}
	if !found {
		p.logger.Warn().Str("rule", ruleName).Int64("app_id", appID).Msg("health rule not found")
		return UpdateResult{Success: false, Message: "Health rule not found"}
	}

	doc, err := p.client.GetHealthRule(ctx, appID, ruleID)
	if err != nil {
		p.logger.Warn().Err(err).Str("rule", ruleName).Msg("fetching health rule failed")
		return UpdateResult{Success: false, Message: err.Error()}
	}

	criticalConds := doc.Seq("evalCriterias", "criticalCriteria", "conditions")
	warningConds := doc.Seq("evalCriterias", "warningCriteria", "conditions")

	if len(criticalConds) > 1 || len(warningConds) > 1 {
		msg := fmt.Sprintf("health rule %q has multiple conditions, threshold update skipped", ruleName)
		p.logger.Warn().Str("rule", ruleName).
			Int("critical_conditions", len(criticalConds)).
			Int("warning_conditions", len(warningConds)).
			Msg("ambiguous threshold ownership, update skipped")
		return UpdateResult{Success: false, Message: msg}
	}

	if critical != nil && len(criticalConds) == 1 {
		p.applyThreshold(criticalConds[0], "critical", ruleName, *critical)
	}

	if warning != nil {
		if len(warningConds) == 1 {
			p.applyThreshold(warningConds[0], "warning", ruleName, *warning)
		} else {
			p.logger.Info().Str("rule", ruleName).Msg("no warning criteria, skipping warning update")
		}
	}

	resp, err := p.client.PutHealthRule(ctx, appID, ruleID, doc)
	if err != nil {
		p.logger.Warn().Err(err).Str("rule", ruleName).Msg("replacing health rule failed")
		return UpdateResult{Success: false, Message: err.Error()}
	}
	if resp.Status < 200 || resp.Status >= 300 {
		msg := fmt.Sprintf("replace rejected with status %d: %s", resp.Status, resp.Message())
		p.logger.Warn().Str("rule", ruleName).Int("status", resp.Status).Msg("replace rejected")
		return UpdateResult{Success: false, Message: msg}
	}

	p.logger.Info().Str("rule", ruleName).Msg("thresholds updated")
	return UpdateResult{Success: true, Message: "Thresholds updated"}
}

// applyThreshold overwrites compareValue inside one condition's metric
// evaluation detail, when that field exists.
func (p *ThresholdPatcher) applyThreshold(condition any, severity, ruleName string, value float64) {
	cond, ok := controller.AsDocument(condition)
	if !ok {
		return
	}
	metric, ok := cond.Child("evalDetail", "metricEvalDetail")
	if !ok || !metric.Has("compareValue") {
		return
	}

	old := metric["compareValue"]
	metric["compareValue"] = value
	p.logger.Info().
		Str("rule", ruleName).
		Str("severity", severity).
		Interface("old", old).
		Float64("new", value).
		Msg("threshold overwritten")
}

// parseThreshold converts a caller-supplied threshold string to a float.
// Empty input means the severity was not requested. strconv is
// locale-independent: the decimal separator is always a point.
func parseThreshold(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
