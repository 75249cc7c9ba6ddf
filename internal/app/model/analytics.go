package model

// LinkAnalytics summarises the click history of one link.
type LinkAnalytics struct {
	TotalClicks     int            `json:"totalClicks"`
	UniqueCountries int            `json:"uniqueCountries"`
	UniqueCities    int            `json:"uniqueCities"`
	AverageAccuracy float64        `json:"averageAccuracy"`
	RecentClicks    []Click        `json:"recentClicks"`
	TopCountries    []CountryCount `json:"topCountries"`
	TopCities       []CityCount    `json:"topCities"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

type CityCount struct {
	City  string `json:"city"`
	Count int    `json:"count"`
}
