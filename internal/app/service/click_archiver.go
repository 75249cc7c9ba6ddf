package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/GeoLink/internal/app/model"
	apprepository "github.com/sifan077/GeoLink/internal/app/repository"
	metrics "github.com/sifan077/GeoLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	archiveFetchBatch = 10
	archiveFetchWait  = 5 * time.Second
)

// ClickArchiver consumes click events from NATS JetStream and writes them to
// the click archive.
type ClickArchiver struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.ClickArchiveRepository

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClickArchiver creates a new click event archiver.
func NewClickArchiver(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.ClickArchiveRepository) *ClickArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickArchiver{js: js, logger: logger, repo: repo}
}

// EnsureStream creates the click stream if it does not exist yet. Publishers
// call it too so events are not dropped before the archiver starts.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.ClickStreamName,
		Subjects: []string{model.ClickStreamSubject},
		MaxBytes: model.ClickStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Start begins consuming click events.
func (a *ClickArchiver) Start() error {
	if err := EnsureStream(a.js); err != nil {
		return err
	}

	if _, err := a.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = a.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := a.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.consume(ctx, sub)
	return nil
}

// Stop halts consumption and waits for the in-flight batch to finish.
func (a *ClickArchiver) Stop() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
}

func (a *ClickArchiver) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(a.done)
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			a.logger.Debug("failed to unsubscribe archiver", zap.Error(err))
		}
	}()

	for {
		if ctx.Err() != nil {
			a.logger.Info("click archiver stopped")
			return
		}

		msgs, err := sub.Fetch(archiveFetchBatch, nats.MaxWait(archiveFetchWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			a.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range msgs {
			a.handle(ctx, msg)
		}
	}
}

func (a *ClickArchiver) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Malformed payloads never become valid; drop them.
		a.logger.Error("failed to unmarshal click event", zap.Error(err))
		metrics.ArchiveEvents.WithLabelValues("store", "error").Inc()
		_ = msg.Term()
		return
	}

	if err := a.Apply(ctx, event); err != nil {
		a.logger.Error("failed to archive click event",
			zap.String("type", event.Type),
			zap.String("click_id", event.ClickID),
			zap.Error(err))
		metrics.ArchiveEvents.WithLabelValues("store", "error").Inc()
		_ = msg.Nak()
		return
	}

	metrics.ArchiveEvents.WithLabelValues("store", "ok").Inc()
	a.logger.Debug("click event archived",
		zap.String("type", event.Type),
		zap.String("click_id", event.ClickID),
		zap.String("link_id", event.LinkID),
		zap.Time("timestamp", event.Timestamp),
	)
	_ = msg.Ack()
}

// Apply writes a single event to the archive. Unknown event types are ignored.
func (a *ClickArchiver) Apply(ctx context.Context, event model.ClickEvent) error {
	switch event.Type {
	case model.ClickEventRecorded:
		return a.repo.Save(ctx, archiveRow(event))
	case model.ClickEventDeleted:
		return a.repo.MarkDeleted(ctx, event.ClickID, event.Timestamp)
	default:
		a.logger.Warn("ignoring unknown click event type", zap.String("type", event.Type))
		return nil
	}
}

func archiveRow(event model.ClickEvent) *model.ClickArchive {
	return &model.ClickArchive{
		ClickID:        event.ClickID,
		LinkID:         event.LinkID,
		ShortCode:      event.ShortCode,
		Latitude:       event.Latitude,
		Longitude:      event.Longitude,
		AccuracyRadius: event.Accuracy,
		Country:        event.Country,
		City:           event.City,
		IPAddress:      event.IP,
		UserAgent:      event.UserAgent,
		ClickedAt:      event.Timestamp,
	}
}
