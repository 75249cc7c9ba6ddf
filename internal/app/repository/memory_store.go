package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/shortcode"
)

const (
	defaultBloomCapacity     = 1_000_000
	defaultBloomFalsePosRate = 0.001
	maxIDAttempts            = 8
)

// MemoryOptions configures a MemoryStore. Zero values fall back to defaults.
type MemoryOptions struct {
	Clock             func() time.Time
	NewID             func() string
	Generator         *shortcode.Generator
	BloomCapacity     uint
	BloomFalsePosRate float64
}

// MemoryStore keeps links and clicks in process memory.
//
// One RWMutex guards the link map and both secondary indexes. Writers hold it
// across check-then-act sequences (code generation + reservation, id
// assignment + append) so concurrent creates never share a code and
// concurrent appends are never lost.
type MemoryStore struct {
	mu sync.RWMutex

	links      map[string]*model.Link
	order      []string
	codes      map[string]string // short code -> link id
	clickOwner map[string]string // click id -> link id
	codeFilter *bloom.BloomFilter
	clicks     int

	gen   *shortcode.Generator
	now   func() time.Time
	newID func() string
}

var _ TrackingStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts MemoryOptions) *MemoryStore {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.Generator == nil {
		opts.Generator = shortcode.NewGenerator()
	}
	if opts.BloomCapacity == 0 {
		opts.BloomCapacity = defaultBloomCapacity
	}
	if opts.BloomFalsePosRate <= 0 || opts.BloomFalsePosRate >= 1 {
		opts.BloomFalsePosRate = defaultBloomFalsePosRate
	}

	return &MemoryStore{
		links:      make(map[string]*model.Link),
		codes:      make(map[string]string),
		clickOwner: make(map[string]string),
		codeFilter: bloom.NewWithEstimates(opts.BloomCapacity, opts.BloomFalsePosRate),
		gen:        opts.Generator,
		now:        opts.Clock,
		newID:      opts.NewID,
	}
}

func (s *MemoryStore) CreateLink(ctx context.Context, originalURL string, title, description *string) (*model.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.uniqueID(func(id string) bool {
		_, ok := s.links[id]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("assign link id: %w", err)
	}

	code, err := s.gen.Generate(s.codeTaken)
	if err != nil {
		if errors.Is(err, shortcode.ErrExhausted) {
			return nil, fmt.Errorf("%w: %v", ErrCodeSpaceExhausted, err)
		}
		return nil, fmt.Errorf("generate short code: %w", err)
	}

	link := &model.Link{
		ID:          id,
		ShortCode:   code,
		OriginalURL: originalURL,
		Title:       title,
		Description: description,
		CreatedAt:   s.now(),
		Clicks:      []model.Click{},
	}
	// Detach caller-owned pointers before storing.
	link = link.Clone()

	s.links[id] = link
	s.order = append(s.order, id)
	s.codes[code] = id
	s.codeFilter.AddString(code)

	return link.Clone(), nil
}

func (s *MemoryStore) GetLinkByShortCode(ctx context.Context, code string) (*model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return nil, ErrLinkNotFound
	}
	link, ok := s.links[id]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return link.Clone(), nil
}

func (s *MemoryStore) GetLinkByID(ctx context.Context, id string) (*model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return link.Clone(), nil
}

func (s *MemoryStore) ListLinks(ctx context.Context) ([]model.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Link, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, *s.links[id].Clone())
	}
	return result, nil
}

func (s *MemoryStore) AddClick(ctx context.Context, linkID string, input model.ClickInput) (*model.Click, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[linkID]
	if !ok {
		return nil, ErrLinkNotFound
	}

	id, err := s.uniqueID(func(id string) bool {
		_, ok := s.clickOwner[id]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("assign click id: %w", err)
	}

	click := model.Click{
		ID:             id,
		LinkID:         linkID,
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		Timestamp:      s.now(),
		UserAgent:      input.UserAgent,
		IPAddress:      input.IPAddress,
		Country:        input.Country,
		City:           input.City,
		AccuracyRadius: input.AccuracyRadius,
	}.Clone()

	link.Clicks = append(link.Clicks, click)
	s.clickOwner[id] = linkID
	s.clicks++

	out := click.Clone()
	return &out, nil
}

func (s *MemoryStore) DeleteClick(ctx context.Context, clickID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, idx := s.locateClick(clickID)
	if link == nil {
		return false
	}

	link.Clicks = append(link.Clicks[:idx], link.Clicks[idx+1:]...)
	delete(s.clickOwner, clickID)
	s.clicks--
	return true
}

func (s *MemoryStore) GetClickByID(ctx context.Context, clickID string) (*model.Click, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, idx := s.locateClick(clickID)
	if link == nil {
		return nil, ErrClickNotFound
	}
	out := link.Clicks[idx].Clone()
	return &out, nil
}

func (s *MemoryStore) ListClicks(ctx context.Context) ([]model.Click, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Click, 0, s.clicks)
	for _, id := range s.order {
		for _, c := range s.links[id].Clicks {
			result = append(result, c.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) ListLinkClicks(ctx context.Context, linkID string) ([]model.Click, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[linkID]
	if !ok {
		return nil, ErrLinkNotFound
	}
	result := make([]model.Click, len(link.Clicks))
	for i, c := range link.Clicks {
		result[i] = c.Clone()
	}
	return result, nil
}

func (s *MemoryStore) Stats(ctx context.Context) StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreStats{Links: len(s.links), Clicks: s.clicks}
}

// codeTaken must be called with s.mu held. A negative from the filter is
// definitive, so the map is only probed on a possible hit.
func (s *MemoryStore) codeTaken(code string) bool {
	if !s.codeFilter.TestString(code) {
		return false
	}
	_, ok := s.codes[code]
	return ok
}

// locateClick must be called with s.mu held.
func (s *MemoryStore) locateClick(clickID string) (*model.Link, int) {
	linkID, ok := s.clickOwner[clickID]
	if !ok {
		return nil, -1
	}
	link, ok := s.links[linkID]
	if !ok {
		return nil, -1
	}
	for i := range link.Clicks {
		if link.Clicks[i].ID == clickID {
			return link, i
		}
	}
	return nil, -1
}

func (s *MemoryStore) uniqueID(used func(string) bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if id != "" && !used(id) {
			return id, nil
		}
	}
	return "", errors.New("id source keeps returning used ids")
}
