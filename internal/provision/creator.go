package provision

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/apmonboard/apmonboard/internal/controller"
)

// Creator creates alerting resources, folding "already exists" conflicts on
// health rules into success outcomes.
type Creator struct {
	client Controller
	logger zerolog.Logger
}

// NewCreator creates a new resource creator.
func NewCreator(client Controller, logger zerolog.Logger) *Creator {
	return &Creator{client: client, logger: logger}
}

// Create posts one payload to the given namespace and folds the response into
// an Outcome. Payloads without a name are rejected locally, before any
// network call; transport failures become failed outcomes, never errors.
func (c *Creator) Create(ctx context.Context, appID int64, kind controller.ResourceKind, payload controller.Document) Outcome {
	if payload == nil {
		c.logger.Error().Str("kind", string(kind)).Msg("payload is not a JSON document")
		return Outcome{Success: false, Message: "payload must be a JSON document"}
	}

	name := payload.Name()
	if name == "" {
		c.logger.Error().Str("kind", string(kind)).Msg("payload is missing a name")
		return Outcome{Success: false, Message: "payload is missing a name"}
	}

	resp, err := c.client.CreateResource(ctx, appID, kind, payload)
	if err != nil {
		// Retries are exhausted at this point; record the failure and let the
		// batch move on to the next resource.
		c.logger.Warn().Err(err).
			Str("kind", string(kind)).
			Str("name", name).
			Msg("create request failed")
		return Outcome{Success: false, Name: name, Message: err.Error()}
	}

	switch {
	case resp.Status == http.StatusConflict && kind == controller.KindHealthRules:
		// The rule already exists, which is the desired end state. Policies
		// and actions do not get this treatment.
		c.logger.Info().
			Str("name", name).
			Int64("app_id", appID).
			Msg("health rule already exists, treating as success")
		return Outcome{
			Success: true,
			Name:    name,
			Status:  resp.Status,
			Data:    controller.Document{"name": name},
		}

	case resp.Status == http.StatusCreated:
		data, ok := resp.Document()
		if !ok {
			// Some namespaces return an empty body on success.
			data = controller.Document{"name": name}
		}
		outcomeName := data.Name()
		if outcomeName == "" {
			outcomeName = name
		}
		c.logger.Info().
			Str("kind", string(kind)).
			Str("name", outcomeName).
			Int64("app_id", appID).
			Msg("resource created")
		return Outcome{Success: true, Name: outcomeName, Status: resp.Status, Data: data}

	default:
		msg := resp.Message()
		c.logger.Warn().
			Str("kind", string(kind)).
			Str("name", name).
			Int("status", resp.Status).
			Str("message", msg).
			Msg("resource creation failed")
		return Outcome{Success: false, Name: name, Status: resp.Status, Message: msg}
	}
}

// CreateBatch creates every payload in order and returns one outcome per
// payload, index-aligned with the input. A failed element does not stop the
// remaining elements.
func (c *Creator) CreateBatch(ctx context.Context, appID int64, kind controller.ResourceKind, payloads []controller.Document) []Outcome {
	outcomes := make([]Outcome, 0, len(payloads))
	for i, payload := range payloads {
		c.logger.Info().
			Str("kind", string(kind)).
			Int("index", i+1).
			Int("total", len(payloads)).
			Int64("app_id", appID).
			Msg("creating resource")

		outcome := c.Create(ctx, appID, kind, payload)
		if !outcome.Success {
			c.logger.Warn().
				Str("kind", string(kind)).
				Int("index", i+1).
				Str("message", outcome.Message).
				Msg("resource in batch failed")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
