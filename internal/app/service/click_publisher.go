package service

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/GeoLink/internal/app/model"
)

// EventPublisher ships click events out of the process.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ClickEvent) error
}

// ClickPublisher publishes click events to NATS JetStream.
type ClickPublisher struct {
	js nats.JetStreamContext
}

var _ EventPublisher = (*ClickPublisher)(nil)

// NewClickPublisher creates a new click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish sends event to the click stream. The message id is derived from the
// click id and event type so JetStream drops duplicates.
func (p *ClickPublisher) Publish(ctx context.Context, event model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data,
		nats.Context(ctx),
		nats.MsgId(event.Type+":"+event.ClickID),
	)
	return err
}
