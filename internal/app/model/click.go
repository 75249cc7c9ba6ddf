package model

import "time"

// Click is a single visit recorded against a link.
//
// Latitude/Longitude of 0,0 doubles as "not provided"; a genuine fix at the
// equator/prime meridian is indistinguishable from a missing one.
type Click struct {
	ID             string    `json:"id"`
	LinkID         string    `json:"linkId"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
	UserAgent      string    `json:"userAgent"`
	IPAddress      string    `json:"ipAddress"`
	Country        *string   `json:"country,omitempty"`
	City           *string   `json:"city,omitempty"`
	AccuracyRadius *float64  `json:"accuracyRadius,omitempty"`
}

// Clone returns a copy with its optional fields detached.
func (c Click) Clone() Click {
	c.Country = cloneString(c.Country)
	c.City = cloneString(c.City)
	c.AccuracyRadius = cloneFloat(c.AccuracyRadius)
	return c
}

// ClickInput carries the caller-supplied fields of a click. There is no
// timestamp: the store stamps it.
type ClickInput struct {
	Latitude       float64
	Longitude      float64
	UserAgent      string
	IPAddress      string
	Country        *string
	City           *string
	AccuracyRadius *float64
}

// Location is a best-effort coarse position resolved from an IP address.
// The zero value means the location is unknown.
type Location struct {
	Country *string `json:"country,omitempty"`
	City    *string `json:"city,omitempty"`
}

// IsZero reports whether nothing was resolved.
func (l Location) IsZero() bool {
	return l.Country == nil && l.City == nil
}
