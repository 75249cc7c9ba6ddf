package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/repository"
	metrics "github.com/sifan077/GeoLink/internal/infra/prometheus"
	"github.com/sifan077/GeoLink/internal/validation"
	"go.uber.org/zap"
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, id string) (*model.Link, error)
	ResolveShortCode(ctx context.Context, code string) (*model.Link, error)
	ListLinks(ctx context.Context) ([]model.Link, error)
	Analytics(ctx context.Context, id string) (*model.LinkAnalytics, error)
}

type linkService struct {
	store  repository.TrackingStore
	logger *zap.Logger
}

// NewLinkService returns a service implementation backed by the given store.
func NewLinkService(store repository.TrackingStore, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{store: store, logger: logger}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	URL         string
	Title       *string
	Description *string
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	url := strings.TrimSpace(input.URL)
	if err := validation.ValidateURL(url); err != nil {
		return nil, err
	}

	link, err := s.store.CreateLink(ctx, url, optionalText(input.Title), optionalText(input.Description))
	if err != nil {
		if errors.Is(err, repository.ErrCodeSpaceExhausted) {
			s.logger.Error("short code space exhausted; check generator configuration", zap.Error(err))
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	metrics.LinksCreated.Inc()
	refreshStoreGauges(ctx, s.store)

	s.logger.Debug("link created",
		zap.String("id", link.ID),
		zap.String("code", link.ShortCode),
		zap.String("url", link.OriginalURL),
	)
	return link, nil
}

func (s *linkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.store.GetLinkByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ResolveShortCode(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.store.GetLinkByShortCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve short code: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context) ([]model.Link, error) {
	links, err := s.store.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) Analytics(ctx context.Context, id string) (*model.LinkAnalytics, error) {
	link, err := s.store.GetLinkByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	analytics := Analyze(link)
	return &analytics, nil
}

// optionalText treats blank free text as absent.
func optionalText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func refreshStoreGauges(ctx context.Context, store repository.TrackingStore) {
	stats := store.Stats(ctx)
	metrics.StoreLinks.Set(float64(stats.Links))
	metrics.StoreClicks.Set(float64(stats.Clicks))
}
