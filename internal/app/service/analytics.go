package service

import (
	"sort"

	"github.com/sifan077/GeoLink/internal/app/model"
)

const (
	topLocationsLimit = 5
	recentClicksLimit = 10
)

// Analyze derives summary statistics from a link's click history. It is pure:
// the link and its clicks are left untouched.
func Analyze(link *model.Link) model.LinkAnalytics {
	result := model.LinkAnalytics{
		RecentClicks: []model.Click{},
		TopCountries: []model.CountryCount{},
		TopCities:    []model.CityCount{},
	}
	if link == nil {
		return result
	}

	clicks := link.Clicks
	countries := newTally()
	cities := newTally()
	var accuracySum float64
	var accuracyCount int

	for i := range clicks {
		c := &clicks[i]
		if c.Country != nil && *c.Country != "" {
			countries.add(*c.Country)
		}
		if c.City != nil && *c.City != "" {
			cities.add(*c.City)
		}
		if c.AccuracyRadius != nil {
			accuracySum += *c.AccuracyRadius
			accuracyCount++
		}
	}

	result.TotalClicks = len(clicks)
	result.UniqueCountries = len(countries.order)
	result.UniqueCities = len(cities.order)
	if accuracyCount > 0 {
		result.AverageAccuracy = accuracySum / float64(accuracyCount)
	}

	for _, e := range countries.top(topLocationsLimit) {
		result.TopCountries = append(result.TopCountries, model.CountryCount{Country: e.key, Count: e.count})
	}
	for _, e := range cities.top(topLocationsLimit) {
		result.TopCities = append(result.TopCities, model.CityCount{City: e.key, Count: e.count})
	}

	result.RecentClicks = recentClicks(clicks, recentClicksLimit)
	return result
}

// recentClicks returns up to n clicks, newest first. Equal timestamps keep
// insertion order.
func recentClicks(clicks []model.Click, n int) []model.Click {
	sorted := make([]model.Click, len(clicks))
	for i := range clicks {
		sorted[i] = clicks[i].Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type tallyEntry struct {
	key   string
	count int
}

// tally counts keys and remembers the order they were first seen in.
type tally struct {
	index map[string]int
	order []tallyEntry
}

func newTally() *tally {
	return &tally{index: make(map[string]int)}
}

func (t *tally) add(key string) {
	if i, ok := t.index[key]; ok {
		t.order[i].count++
		return
	}
	t.index[key] = len(t.order)
	t.order = append(t.order, tallyEntry{key: key, count: 1})
}

// top returns the n highest counts; ties keep first-seen order.
func (t *tally) top(n int) []tallyEntry {
	entries := make([]tallyEntry, len(t.order))
	copy(entries, t.order)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].count > entries[j].count
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
