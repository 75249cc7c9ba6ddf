package repository

import (
	"context"
	"errors"

	"github.com/sifan077/GeoLink/internal/app/model"
)

var (
	// ErrLinkNotFound signals that the requested link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrClickNotFound signals that no click with the given id exists.
	ErrClickNotFound = errors.New("click not found")
	// ErrCodeSpaceExhausted means no free short code could be found. Treat it as
	// a fatal configuration fault.
	ErrCodeSpaceExhausted = errors.New("short code space exhausted")
)

// TrackingStore is the authoritative registry of links and their clicks.
// Returned values are snapshots; mutating them does not affect the store.
type TrackingStore interface {
	CreateLink(ctx context.Context, originalURL string, title, description *string) (*model.Link, error)
	GetLinkByShortCode(ctx context.Context, code string) (*model.Link, error)
	GetLinkByID(ctx context.Context, id string) (*model.Link, error)
	ListLinks(ctx context.Context) ([]model.Link, error)

	AddClick(ctx context.Context, linkID string, input model.ClickInput) (*model.Click, error)
	DeleteClick(ctx context.Context, clickID string) bool
	GetClickByID(ctx context.Context, clickID string) (*model.Click, error)
	ListClicks(ctx context.Context) ([]model.Click, error)
	ListLinkClicks(ctx context.Context, linkID string) ([]model.Click, error)

	Stats(ctx context.Context) StoreStats
}

// StoreStats reports the current size of the store.
type StoreStats struct {
	Links  int
	Clicks int
}
