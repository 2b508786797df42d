package provision

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/apmonboard/apmonboard/internal/controller"
)

// Resolver maps resource names to controller ids and drives name-addressed
// teardown. The controller's delete endpoints are id-only, so every removal
// starts with a list of the namespace.
type Resolver struct {
	client Controller
	logger zerolog.Logger
}

// NewResolver creates a new resolver.
func NewResolver(client Controller, logger zerolog.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// ResolveIDs maps names to ids within one alerting namespace. Names absent
// from the namespace are logged and skipped, not errors: teardown of a
// half-provisioned application is the common case, not the exception. Only a
// failure to fetch the listing itself is returned as an error. The returned
// slice preserves the order of the input names.
func (r *Resolver) ResolveIDs(ctx context.Context, appID int64, kind controller.ResourceKind, names []string) ([]int64, error) {
	existing, err := r.client.ListResources(ctx, appID, kind)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int64, len(existing))
	for _, res := range existing {
		byName[res.Name] = res.ID
	}

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			r.logger.Warn().
				Str("kind", string(kind)).
				Str("name", name).
				Int64("app_id", appID).
				Msg("resource not found, skipping")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteByName resolves the given names and deletes whatever resolved,
// best-effort. One failed delete does not stop the rest. A listing failure
// is returned as an error because nothing can be resolved without it.
func (r *Resolver) DeleteByName(ctx context.Context, appID int64, kind controller.ResourceKind, names []string) (DeleteSummary, error) {
	summary := DeleteSummary{Requested: len(names)}

	ids, err := r.ResolveIDs(ctx, appID, kind, names)
	if err != nil {
		return summary, err
	}
	summary.Missing = len(names) - len(ids)

	for _, id := range ids {
		status, err := r.client.DeleteResource(ctx, appID, kind, id)
		if err != nil {
			summary.Failed++
			r.logger.Warn().Err(err).
				Str("kind", string(kind)).
				Int64("id", id).
				Msg("delete failed")
			continue
		}
		if status < 200 || status >= 300 {
			summary.Failed++
			r.logger.Warn().
				Str("kind", string(kind)).
				Int64("id", id).
				Int("status", status).
				Msg("delete rejected")
			continue
		}
		summary.Deleted++
		r.logger.Info().
			Str("kind", string(kind)).
			Int64("id", id).
			Msg("resource deleted")
	}
	return summary, nil
}
