package repository

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/shortcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestMemoryStore_CreateLink(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})

	link, err := store.CreateLink(ctx, "https://example.com", strPtr("Launch"), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, link.ID)
	assert.True(t, shortcode.Valid(link.ShortCode), "code %q", link.ShortCode)
	assert.Equal(t, "https://example.com", link.OriginalURL)
	require.NotNil(t, link.Title)
	assert.Equal(t, "Launch", *link.Title)
	assert.Nil(t, link.Description)
	assert.False(t, link.CreatedAt.IsZero())
	assert.NotNil(t, link.Clicks)
	assert.Empty(t, link.Clicks)

	byCode, err := store.GetLinkByShortCode(ctx, link.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, link, byCode)

	byID, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, link, byID)
	assert.Empty(t, byID.Clicks)
}

func TestMemoryStore_ShortCodesAreDistinct(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		link, err := store.CreateLink(ctx, fmt.Sprintf("https://example.com/%d", i), nil, nil)
		require.NoError(t, err)
		require.True(t, shortcode.Valid(link.ShortCode))
		_, dup := seen[link.ShortCode]
		require.False(t, dup, "duplicate code %s", link.ShortCode)
		seen[link.ShortCode] = struct{}{}
	}
}

func TestMemoryStore_CreateLink_RetriesTakenCode(t *testing.T) {
	ctx := context.Background()
	// Both links draw "AAAAAAAA" first; the second must move on to "BBBBBBBB".
	random := bytes.NewReader(append(
		append(make([]byte, shortcode.Length), make([]byte, shortcode.Length)...),
		bytes.Repeat([]byte{1}, shortcode.Length)...,
	))
	store := NewMemoryStore(MemoryOptions{
		Generator: shortcode.NewGenerator(shortcode.WithRandom(random)),
	})

	first, err := store.CreateLink(ctx, "https://a.example", nil, nil)
	require.NoError(t, err)
	second, err := store.CreateLink(ctx, "https://b.example", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "AAAAAAAA", first.ShortCode)
	assert.Equal(t, "BBBBBBBB", second.ShortCode)
}

func TestMemoryStore_CreateLink_Exhausted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{
		Generator: shortcode.NewGenerator(
			shortcode.WithRandom(bytes.NewReader(make([]byte, shortcode.Length*3))),
			shortcode.WithMaxAttempts(2),
		),
	})

	_, err := store.CreateLink(ctx, "https://a.example", nil, nil)
	require.NoError(t, err)

	_, err = store.CreateLink(ctx, "https://b.example", nil, nil)
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 1, store.Stats(ctx).Links)
}

func TestMemoryStore_GetLink_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})

	_, err := store.GetLinkByShortCode(ctx, "missing1")
	assert.ErrorIs(t, err, ErrLinkNotFound)
	_, err = store.GetLinkByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestMemoryStore_AddClick(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)

	before := time.Now()
	click, err := store.AddClick(ctx, link.ID, model.ClickInput{
		Latitude:       40.0,
		Longitude:      -74.0,
		UserAgent:      "Mozilla/5.0",
		IPAddress:      "203.0.113.7",
		Country:        strPtr("US"),
		AccuracyRadius: floatPtr(15),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, click.ID)
	assert.Equal(t, link.ID, click.LinkID)
	assert.False(t, click.Timestamp.Before(before))
	assert.Equal(t, 40.0, click.Latitude)
	assert.Equal(t, -74.0, click.Longitude)
	require.NotNil(t, click.AccuracyRadius)
	assert.Equal(t, 15.0, *click.AccuracyRadius)
	assert.Nil(t, click.City)

	stored, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, stored.Clicks, 1)
	assert.Equal(t, *click, stored.Clicks[0])
}

func TestMemoryStore_AddClick_UsesStoreClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(MemoryOptions{Clock: func() time.Time { return fixed }})
	link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)

	click, err := store.AddClick(ctx, link.ID, model.ClickInput{})
	require.NoError(t, err)
	assert.True(t, click.Timestamp.Equal(fixed))
	assert.True(t, link.CreatedAt.Equal(fixed))
}

func TestMemoryStore_AddClick_UnknownLink(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)

	click, err := store.AddClick(ctx, "nope", model.ClickInput{UserAgent: "x"})
	assert.ErrorIs(t, err, ErrLinkNotFound)
	assert.Nil(t, click)

	all, err := store.ListClicks(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	stored, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Clicks)
}

func TestMemoryStore_ClickIDsAreFresh(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	a, err := store.CreateLink(ctx, "https://a.example", nil, nil)
	require.NoError(t, err)
	b, err := store.CreateLink(ctx, "https://b.example", nil, nil)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		for _, id := range []string{a.ID, b.ID} {
			click, err := store.AddClick(ctx, id, model.ClickInput{})
			require.NoError(t, err)
			_, dup := seen[click.ID]
			require.False(t, dup)
			seen[click.ID] = struct{}{}
		}
	}
}

func TestMemoryStore_UniqueIDSkipsUsedIDs(t *testing.T) {
	ctx := context.Background()
	ids := []string{"dup", "dup", "dup", "fresh"}
	var n int
	store := NewMemoryStore(MemoryOptions{NewID: func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}})

	link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "dup", link.ID)

	click, err := store.AddClick(ctx, link.ID, model.ClickInput{})
	require.NoError(t, err)
	assert.Equal(t, "dup", click.ID)

	second, err := store.AddClick(ctx, link.ID, model.ClickInput{})
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.ID)
}

func TestMemoryStore_DeleteClick(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		click, err := store.AddClick(ctx, link.ID, model.ClickInput{UserAgent: fmt.Sprint(i)})
		require.NoError(t, err)
		ids = append(ids, click.ID)
	}

	assert.True(t, store.DeleteClick(ctx, ids[1]))
	assert.False(t, store.DeleteClick(ctx, ids[1]))
	assert.False(t, store.DeleteClick(ctx, "never-existed"))

	_, err = store.GetClickByID(ctx, ids[1])
	assert.ErrorIs(t, err, ErrClickNotFound)

	clicks, err := store.ListLinkClicks(ctx, link.ID)
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, ids[0], clicks[0].ID)
	assert.Equal(t, ids[2], clicks[1].ID)
	assert.Equal(t, 2, store.Stats(ctx).Clicks)
}

func TestMemoryStore_GetClickByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)
	click, err := store.AddClick(ctx, link.ID, model.ClickInput{City: strPtr("Paris")})
	require.NoError(t, err)

	got, err := store.GetClickByID(ctx, click.ID)
	require.NoError(t, err)
	assert.Equal(t, *click, *got)
}

func TestMemoryStore_ListClicks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	a, err := store.CreateLink(ctx, "https://a.example", nil, nil)
	require.NoError(t, err)
	b, err := store.CreateLink(ctx, "https://b.example", nil, nil)
	require.NoError(t, err)

	b1, _ := store.AddClick(ctx, b.ID, model.ClickInput{})
	a1, _ := store.AddClick(ctx, a.ID, model.ClickInput{})
	a2, _ := store.AddClick(ctx, a.ID, model.ClickInput{})

	all, err := store.ListClicks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{a1.ID, a2.ID, b1.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	_, err = store.ListLinkClicks(ctx, "missing")
	assert.ErrorIs(t, err, ErrLinkNotFound)

	links, err := store.ListLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, a.ID, links[0].ID)
	assert.Equal(t, b.ID, links[1].ID)
}

func TestMemoryStore_SnapshotsAreDetached(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	title := "original"
	link, err := store.CreateLink(ctx, "https://example.com", &title, nil)
	require.NoError(t, err)
	title = "changed by caller"

	_, err = store.AddClick(ctx, link.ID, model.ClickInput{Country: strPtr("FR")})
	require.NoError(t, err)

	snapshot, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	*snapshot.Title = "mutated"
	*snapshot.Clicks[0].Country = "DE"
	snapshot.Clicks = nil

	fresh, err := store.GetLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", *fresh.Title)
	require.Len(t, fresh.Clicks, 1)
	assert.Equal(t, "FR", *fresh.Clicks[0].Country)
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(MemoryOptions{})
	target, err := store.CreateLink(ctx, "https://example.com", nil, nil)
	require.NoError(t, err)

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	codes := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				link, err := store.CreateLink(ctx, "https://example.com", nil, nil)
				if err != nil {
					t.Error(err)
					return
				}
				codes <- link.ShortCode
				if _, err := store.AddClick(ctx, target.ID, model.ClickInput{}); err != nil {
					t.Error(err)
					return
				}
				if _, err := store.ListLinks(ctx); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]struct{})
	for code := range codes {
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s", code)
		seen[code] = struct{}{}
	}

	clicks, err := store.ListLinkClicks(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, clicks, workers*perWorker)
	assert.Equal(t, StoreStats{Links: workers*perWorker + 1, Clicks: workers * perWorker}, store.Stats(ctx))
}
