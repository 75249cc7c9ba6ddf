package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/repository"
	"github.com/sifan077/GeoLink/internal/infra/geoip"
	metrics "github.com/sifan077/GeoLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// ClickService records, queries and deletes clicks.
type ClickService interface {
	TrackShortCode(ctx context.Context, code string, input RecordClickInput) (*TrackedClick, error)
	RecordClick(ctx context.Context, linkID string, input RecordClickInput) (*model.Click, error)
	ListClicks(ctx context.Context, linkID string) ([]model.Click, error)
	GetClick(ctx context.Context, id string) (*model.Click, error)
	DeleteClick(ctx context.Context, id string) bool
}

// RecordClickInput is what the boundary knows about a visit. Country and city
// are resolved from IPAddress by the service.
type RecordClickInput struct {
	Latitude       float64
	Longitude      float64
	AccuracyRadius *float64
	UserAgent      string
	IPAddress      string
}

// TrackedClick pairs a stored click with the link it was recorded against.
type TrackedClick struct {
	Link  *model.Link
	Click *model.Click
}

// ClickDeps groups dependencies of the click service.
type ClickDeps struct {
	Store     repository.TrackingStore
	Locator   geoip.Locator
	Publisher EventPublisher
	Logger    *zap.Logger
}

type clickService struct {
	store     repository.TrackingStore
	locator   geoip.Locator
	publisher EventPublisher
	logger    *zap.Logger
}

// NewClickService wires a ClickService. A nil Locator resolves only local
// addresses; a nil Publisher disables event export.
func NewClickService(deps ClickDeps) ClickService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locator := deps.Locator
	if locator == nil {
		locator = geoip.Nop{}
	}
	return &clickService{
		store:     deps.Store,
		locator:   locator,
		publisher: deps.Publisher,
		logger:    logger,
	}
}

func (s *clickService) TrackShortCode(ctx context.Context, code string, input RecordClickInput) (*TrackedClick, error) {
	link, err := s.store.GetLinkByShortCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve short code: %w", err)
	}

	click, err := s.record(ctx, link, input)
	if err != nil {
		return nil, err
	}
	return &TrackedClick{Link: link, Click: click}, nil
}

func (s *clickService) RecordClick(ctx context.Context, linkID string, input RecordClickInput) (*model.Click, error) {
	link, err := s.store.GetLinkByID(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}
	return s.record(ctx, link, input)
}

func (s *clickService) record(ctx context.Context, link *model.Link, input RecordClickInput) (*model.Click, error) {
	// Lookup failures are absorbed by the locator; the click is stored either way.
	loc := s.locator.Lookup(ctx, input.IPAddress)

	click, err := s.store.AddClick(ctx, link.ID, model.ClickInput{
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		UserAgent:      input.UserAgent,
		IPAddress:      input.IPAddress,
		Country:        loc.Country,
		City:           loc.City,
		AccuracyRadius: input.AccuracyRadius,
	})
	if err != nil {
		return nil, fmt.Errorf("record click: %w", err)
	}

	precise := click.Latitude != 0 || click.Longitude != 0
	metrics.ClicksRecorded.WithLabelValues(strconv.FormatBool(precise)).Inc()
	refreshStoreGauges(ctx, s.store)

	s.logger.Debug("click recorded",
		zap.String("click_id", click.ID),
		zap.String("link_id", link.ID),
		zap.String("code", link.ShortCode),
		zap.String("ip", click.IPAddress),
		zap.Bool("precise", precise),
	)

	s.publish(ctx, recordedEvent(link, click))
	return click, nil
}

func (s *clickService) ListClicks(ctx context.Context, linkID string) ([]model.Click, error) {
	if linkID == "" {
		clicks, err := s.store.ListClicks(ctx)
		if err != nil {
			return nil, fmt.Errorf("list clicks: %w", err)
		}
		return clicks, nil
	}

	clicks, err := s.store.ListLinkClicks(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("list link clicks: %w", err)
	}
	return clicks, nil
}

func (s *clickService) GetClick(ctx context.Context, id string) (*model.Click, error) {
	click, err := s.store.GetClickByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get click: %w", err)
	}
	return click, nil
}

func (s *clickService) DeleteClick(ctx context.Context, id string) bool {
	click, err := s.store.GetClickByID(ctx, id)
	if err != nil {
		return false
	}
	if !s.store.DeleteClick(ctx, id) {
		// Lost a race with another delete.
		return false
	}

	metrics.ClicksDeleted.Inc()
	refreshStoreGauges(ctx, s.store)
	s.logger.Debug("click deleted", zap.String("click_id", id), zap.String("link_id", click.LinkID))

	s.publish(ctx, model.ClickEvent{
		Type:      model.ClickEventDeleted,
		ClickID:   click.ID,
		LinkID:    click.LinkID,
		Timestamp: time.Now().UTC(),
	})
	return true
}

func (s *clickService) publish(ctx context.Context, event model.ClickEvent) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, event); err != nil {
		metrics.ArchiveEvents.WithLabelValues("publish", "error").Inc()
		s.logger.Error("failed to publish click event",
			zap.String("type", event.Type),
			zap.String("click_id", event.ClickID),
			zap.Error(err),
		)
		return
	}
	metrics.ArchiveEvents.WithLabelValues("publish", "ok").Inc()
}

func recordedEvent(link *model.Link, click *model.Click) model.ClickEvent {
	return model.ClickEvent{
		Type:      model.ClickEventRecorded,
		ClickID:   click.ID,
		LinkID:    link.ID,
		ShortCode: link.ShortCode,
		Latitude:  click.Latitude,
		Longitude: click.Longitude,
		Accuracy:  click.AccuracyRadius,
		Country:   click.Country,
		City:      click.City,
		IP:        click.IPAddress,
		UserAgent: click.UserAgent,
		Timestamp: click.Timestamp,
	}
}
