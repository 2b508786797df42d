// Package notify publishes run summaries to Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// RunSummary is the message published after every provisioning run. Downstream
// consumers (chat notifiers, reporting) key off Mode and Failed.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Account     string    `json:"account"`
	Application string    `json:"application"`
	Tier        string    `json:"tier,omitempty"`
	Mode        string    `json:"mode"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Publisher publishes run summaries to a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

// PublisherConfig holds configuration for the publisher.
type PublisherConfig struct {
	ProjectID string
	Topic     string
	Logger    zerolog.Logger
}

// NewPublisher creates a new run-summary publisher.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.Topic),
		topic:     cfg.Topic,
		logger:    cfg.Logger,
	}, nil
}

// Publish sends one run summary and waits for server acknowledgement. A
// publish failure is returned but never retried here; the run itself already
// finished and the audit store holds the authoritative record.
func (p *Publisher) Publish(ctx context.Context, summary RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding run summary: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"mode":        summary.Mode,
			"application": summary.Application,
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing run summary: %w", err)
	}

	p.logger.Info().
		Str("topic", p.topic).
		Str("message_id", id).
		Str("run_id", summary.RunID).
		Msg("run summary published")
	return nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}
