package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/chideracloud/blue-green-deployment/internal/alerting"
)

type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	source string
}

func NewPublisher(natsURL, source string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure ALERTS stream exists
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "ALERTS",
		Subjects:  []string{"alerts.>"},
		Retention: jetstream.LimitsPolicy,
		MaxMsgs:   1000000,
		MaxBytes:  1024 * 1024 * 1024, // 1GB
		MaxAge:    7 * 24 * time.Hour, // 7 days
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		slog.Warn("failed to create ALERTS stream (may already exist)", "error", err)
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		source: source,
	}, nil
}

func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}

func (p *Publisher) newMetadata(eventID, entityID string) EventMetadata {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	return EventMetadata{
		EventID:   eventID,
		EntityID:  entityID,
		Timestamp: time.Now().Unix(),
		Source:    p.source,
	}
}

func (p *Publisher) publish(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = p.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.Debug("published event", "subject", subject)
	return nil
}

// PublishAlert mirrors a dispatched alert onto the ALERTS stream so other
// services can consume the watcher's findings.
func (p *Publisher) PublishAlert(ev alerting.Event, outcome string) error {
	subject := fmt.Sprintf("alerts.%s.%s", ev.Kind, ev.Pool)
	event := AlertDispatched{
		Metadata:   p.newMetadata(ev.ID, string(ev.Pool)),
		Kind:       string(ev.Kind),
		Pool:       string(ev.Pool),
		FromPool:   string(ev.From),
		ToPool:     string(ev.To),
		Rate:       ev.Rate,
		WindowSize: ev.WindowSize,
		Message:    ev.Text(),
		Outcome:    outcome,
	}
	if err := p.publish(subject, event); err != nil {
		slog.Error("failed to publish alert", "error", err, "kind", ev.Kind, "pool", ev.Pool)
		return err
	}
	slog.Info("published alert", "kind", ev.Kind, "pool", ev.Pool, "outcome", outcome)
	return nil
}
