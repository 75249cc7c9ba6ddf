package model

import "time"

// Link is a trackable short link. It owns its clicks, kept in insertion order.
type Link struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Clicks      []Click   `json:"clicks"`
}

// Clone returns a deep copy so callers never share the click slice with the store.
func (l *Link) Clone() *Link {
	if l == nil {
		return nil
	}
	out := *l
	out.Title = cloneString(l.Title)
	out.Description = cloneString(l.Description)
	out.Clicks = make([]Click, len(l.Clicks))
	for i := range l.Clicks {
		out.Clicks[i] = l.Clicks[i].Clone()
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
