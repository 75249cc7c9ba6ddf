// Package geoip resolves a visitor IP to a coarse location. Every failure is
// absorbed here: callers always get a Location, possibly empty.
package geoip

import (
	"context"
	"strings"

	"github.com/sifan077/GeoLink/internal/app/model"
)

// Locator returns a best-effort location for ip. It never fails; an unknown
// location is the zero Location.
type Locator interface {
	Lookup(ctx context.Context, ip string) model.Location
}

const (
	LocalCountry = "Local"
	LocalCity    = "Development"
)

// IsLocal reports whether ip is loopback or in the private ranges that are
// answered without a network call.
func IsLocal(ip string) bool {
	switch {
	case ip == "127.0.0.1", ip == "::1":
		return true
	case strings.HasPrefix(ip, "192.168."), strings.HasPrefix(ip, "10."):
		return true
	}
	return false
}

// LocalLocation is the sentinel returned for local addresses.
func LocalLocation() model.Location {
	country, city := LocalCountry, LocalCity
	return model.Location{Country: &country, City: &city}
}

// Nop never resolves anything except local addresses.
type Nop struct{}

func (Nop) Lookup(_ context.Context, ip string) model.Location {
	if IsLocal(strings.TrimSpace(ip)) {
		return LocalLocation()
	}
	return model.Location{}
}
