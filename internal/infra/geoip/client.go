package geoip

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/sifan077/GeoLink/internal/app/model"
	metrics "github.com/sifan077/GeoLink/internal/infra/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultEndpoint = "http://ip-api.com"
	defaultTimeout  = 3 * time.Second
	breakerName     = "geoip"
)

var (
	// errUpstream marks transport and protocol failures; they count against the breaker.
	errUpstream = errors.New("geoip: upstream unavailable")
	// errRejected means the service answered but could not place the address.
	errRejected = errors.New("geoip: lookup rejected")
)

// ClientConfig configures the ip-api.com client.
type ClientConfig struct {
	Endpoint          string
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// Client queries an ip-api.com compatible endpoint. Lookups are bounded by a
// timeout, throttled client-side and guarded by a circuit breaker.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[model.Location]
	logger   *zap.Logger
}

var _ Locator = (*Client)(nil)

type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// NewClient builds a Client. RequestsPerMinute <= 0 disables throttling.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	metrics.BreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[model.Location](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// Opens when at least 60% of 10+ requests in the window failed.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("geoip circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		http:     httpClient,
		limiter:  limiter,
		breaker:  breaker,
		logger:   logger,
	}
}

// Lookup resolves ip. Local addresses short-circuit to the development
// sentinel; any upstream trouble yields an empty Location.
func (c *Client) Lookup(ctx context.Context, ip string) model.Location {
	ip = strings.TrimSpace(ip)
	if IsLocal(ip) {
		metrics.GeoLookups.WithLabelValues("local").Inc()
		return LocalLocation()
	}
	if ip == "" {
		return model.Location{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.GeoLookups.WithLabelValues("throttled").Inc()
			c.logger.Warn("geoip lookup throttled", zap.String("ip", ip), zap.Error(err))
			return model.Location{}
		}
	}

	start := time.Now()
	loc, err := c.breaker.Execute(func() (model.Location, error) {
		return c.fetch(ctx, ip)
	})
	metrics.GeoLookupDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		result := "failure"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			result = "breaker_open"
		case errors.Is(err, errRejected):
			result = "rejected"
		}
		metrics.GeoLookups.WithLabelValues(result).Inc()
		c.logger.Warn("geoip lookup failed", zap.String("ip", ip), zap.String("result", result), zap.Error(err))
		return model.Location{}
	}

	metrics.GeoLookups.WithLabelValues("success").Inc()
	return loc
}

func (c *Client) fetch(ctx context.Context, ip string) (model.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/json/"+url.PathEscape(ip), nil)
	if err != nil {
		return model.Location{}, fmt.Errorf("%w: build request: %v", errUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Location{}, fmt.Errorf("%w: %v", errUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Location{}, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Location{}, fmt.Errorf("%w: decode: %v", errUpstream, err)
	}
	if body.Status != "success" {
		return model.Location{}, fmt.Errorf("%w: %s", errRejected, body.Message)
	}

	return model.Location{
		Country: nonEmpty(body.Country),
		City:    nonEmpty(body.City),
	}, nil
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
