package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinksCreated = promauto.NewCounter(
		prom.CounterOpts{
			Name: "geolink_links_created_total",
			Help: "Total number of tracking links created",
		},
	)

	ClicksRecorded = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "geolink_clicks_recorded_total",
			Help: "Total number of clicks recorded, by whether the visitor shared coordinates",
		},
		[]string{"precise"}, // "true", "false"
	)

	ClicksDeleted = promauto.NewCounter(
		prom.CounterOpts{
			Name: "geolink_clicks_deleted_total",
			Help: "Total number of clicks deleted",
		},
	)

	StoreLinks = promauto.NewGauge(
		prom.GaugeOpts{
			Name: "geolink_store_links",
			Help: "Current number of links held in the tracking store",
		},
	)

	StoreClicks = promauto.NewGauge(
		prom.GaugeOpts{
			Name: "geolink_store_clicks",
			Help: "Current number of clicks held in the tracking store",
		},
	)

	GeoLookups = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "geolink_geoip_lookups_total",
			Help: "IP geolocation lookups by outcome",
		},
		[]string{"result"}, // local, cache_hit, success, rejected, failure, throttled, breaker_open
	)

	GeoLookupDuration = promauto.NewHistogram(
		prom.HistogramOpts{
			Name:    "geolink_geoip_lookup_duration_seconds",
			Help:    "Latency of outbound IP geolocation requests",
			Buckets: prom.DefBuckets,
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prom.GaugeOpts{
			Name: "geolink_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ArchiveEvents = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "geolink_archive_events_total",
			Help: "Click archive events by stage and outcome",
		},
		[]string{"stage", "result"}, // stage: publish, store; result: ok, error
	)
)
