// Package provision implements the idempotent provisioning logic against the
// controller: conflict-tolerant resource creation, health-rule-to-policy
// linking, targeted threshold patching, and best-effort teardown.
package provision

import (
	"context"

	"github.com/apmonboard/apmonboard/internal/controller"
)

// Controller is the surface of the controller client the provisioning
// components depend on.
type Controller interface {
	// CreateResource posts a rendered payload to an alerting namespace.
	CreateResource(ctx context.Context, appID int64, kind controller.ResourceKind, payload controller.Document) (*controller.Response, error)

	// ListHealthRules fetches the health-rule collection for an application.
	ListHealthRules(ctx context.Context, appID int64) ([]controller.RuleSummary, error)

	// GetHealthRule fetches one health rule's full definition by id.
	GetHealthRule(ctx context.Context, appID, ruleID int64) (controller.Document, error)

	// PutHealthRule replaces one health rule's full definition.
	PutHealthRule(ctx context.Context, appID, ruleID int64, doc controller.Document) (*controller.Response, error)

	// ListResources fetches the collection for an alerting namespace.
	ListResources(ctx context.Context, appID int64, kind controller.ResourceKind) ([]controller.ResourceSummary, error)

	// DeleteResource removes one alerting resource by id.
	DeleteResource(ctx context.Context, appID int64, kind controller.ResourceKind, id int64) (int, error)
}

// Outcome is the result of one create call. Success covers both 201 Created
// and, for health rules only, 409 Conflict (the rule already exists, which is
// exactly the state provisioning wants). Failed outcomes carry the status and
// a message; they never carry an error value because a failed resource must
// not abort the rest of the batch.
type Outcome struct {
	Success bool
	Name    string
	Status  int
	Message string
	Data    controller.Document
}

// UpdateResult is the result of a threshold update.
type UpdateResult struct {
	Success bool
	Message string
}

// DeleteSummary aggregates a best-effort teardown pass.
type DeleteSummary struct {
	Requested int
	Deleted   int
	Missing   int
	Failed    int
}
