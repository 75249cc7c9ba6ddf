package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/repository"
	"github.com/sifan077/GeoLink/internal/app/service"
	httpUtil "github.com/sifan077/GeoLink/internal/http/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://geo.example"

type testEnv struct {
	app   *fiber.App
	store *repository.MemoryStore
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore(repository.MemoryOptions{})
	links := service.NewLinkService(store, nil)
	clicks := service.NewClickService(service.ClickDeps{Store: store})

	app := fiber.New(fiber.Config{
		Immutable:   true,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	NewHealthHandler(nil, nil).Register(app)
	NewAPIHandler(APIDeps{LinkService: links, ClickService: clicks, BaseURL: testBaseURL + "/"}).Register(app)
	NewTrackHandler(TrackDeps{LinkService: links, ClickService: clicks, Secret: []byte(secret)}).Register(app)

	return &testEnv{app: app, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = strings.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) createLink(t *testing.T, url string) CreateLinkResponse {
	t.Helper()
	resp, data := e.do(t, http.MethodPost, "/api/links", fiber.Map{"originalUrl": url}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))

	var out CreateLinkResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func decodeError(t *testing.T, data []byte) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	return body.Error
}

func TestCreateLink(t *testing.T) {
	env := newTestEnv(t, "")

	resp, data := env.do(t, http.MethodPost, "/api/links", fiber.Map{
		"originalUrl": "https://example.com/page",
		"title":       "Launch",
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))

	var out CreateLinkResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotNil(t, out.Link)
	assert.Len(t, out.Link.ShortCode, 8)
	assert.Equal(t, "https://example.com/page", out.Link.OriginalURL)
	require.NotNil(t, out.Link.Title)
	assert.Equal(t, "Launch", *out.Link.Title)
	assert.NotNil(t, out.Link.Clicks)
	assert.Empty(t, out.Link.Clicks)
	assert.Equal(t, testBaseURL+"/t/"+out.Link.ShortCode, out.TrackingURL)
}

func TestCreateLink_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    interface{}
		wantErr string
	}{
		{name: "missing url", body: fiber.Map{"title": "x"}, wantErr: "Original URL is required"},
		{name: "blank url", body: fiber.Map{"originalUrl": "   "}, wantErr: "Original URL is required"},
		{name: "not a url", body: fiber.Map{"originalUrl": "not-a-url"}, wantErr: "Invalid URL format"},
		{name: "no scheme", body: fiber.Map{"originalUrl": "example.com/path"}, wantErr: "Invalid URL format"},
		{name: "malformed json", body: "{", wantErr: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")

			resp, data := env.do(t, http.MethodPost, "/api/links", tt.body, nil)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantErr, decodeError(t, data))
			assert.Equal(t, 0, env.store.Stats(context.Background()).Links)
		})
	}
}

func TestLinkReads(t *testing.T) {
	env := newTestEnv(t, "")
	first := env.createLink(t, "https://a.example")
	env.createLink(t, "https://b.example")

	resp, data := env.do(t, http.MethodGet, "/api/links", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var list struct {
		Links []model.Link `json:"links"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Links, 2)
	assert.Equal(t, first.Link.ID, list.Links[0].ID)

	resp, data = env.do(t, http.MethodGet, "/api/links/"+first.Link.ID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var link model.Link
	require.NoError(t, json.Unmarshal(data, &link))
	assert.Equal(t, first.Link.ShortCode, link.ShortCode)

	resp, data = env.do(t, http.MethodGet, "/api/links/missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Link not found", decodeError(t, data))

	resp, _ = env.do(t, http.MethodGet, "/api/links/missing/analytics", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTrackingFlow(t *testing.T) {
	env := newTestEnv(t, "")
	created := env.createLink(t, "https://example.com/landing")
	code := created.Link.ShortCode

	resp, _ := env.do(t, http.MethodGet, "/api/track/"+code, nil, nil)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/t/"+code, resp.Header.Get(fiber.HeaderLocation))

	resp, page := env.do(t, http.MethodGet, "/t/"+code, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, string(page), `"/api/track/`+code+`"`)

	resp, data := env.do(t, http.MethodPost, "/api/track/"+code, fiber.Map{
		"latitude":       40.7128,
		"longitude":      -74.006,
		"accuracyRadius": 15,
	}, map[string]string{
		fiber.HeaderXForwardedFor: "127.0.0.1, 10.0.0.7",
		fiber.HeaderUserAgent:     "flow-test",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))

	var tracked TrackClickResponse
	require.NoError(t, json.Unmarshal(data, &tracked))
	assert.True(t, tracked.Success)
	assert.Equal(t, "https://example.com/landing", tracked.RedirectURL)
	assert.NotEmpty(t, tracked.Click.ID)
	assert.Equal(t, 40.7128, tracked.Click.Location.Latitude)
	require.NotNil(t, tracked.Click.Location.Country)
	assert.Equal(t, "Local", *tracked.Click.Location.Country)

	resp, data = env.do(t, http.MethodGet, "/api/clicks/"+tracked.Click.ID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var click model.Click
	require.NoError(t, json.Unmarshal(data, &click))
	assert.Equal(t, "127.0.0.1", click.IPAddress)
	assert.Equal(t, "flow-test", click.UserAgent)
	require.NotNil(t, click.City)
	assert.Equal(t, "Development", *click.City)

	resp, data = env.do(t, http.MethodGet, "/api/links/"+created.Link.ID+"/analytics", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var analytics model.LinkAnalytics
	require.NoError(t, json.Unmarshal(data, &analytics))
	assert.Equal(t, 1, analytics.TotalClicks)
	assert.Equal(t, 1, analytics.UniqueCountries)
	assert.Equal(t, []model.CountryCount{{Country: "Local", Count: 1}}, analytics.TopCountries)
	assert.Equal(t, 15.0, analytics.AverageAccuracy)
	require.Len(t, analytics.RecentClicks, 1)
	assert.Equal(t, tracked.Click.ID, analytics.RecentClicks[0].ID)
}

func TestRecordClick_DefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t, "")
	code := env.createLink(t, "https://example.com").Link.ShortCode

	resp, data := env.do(t, http.MethodPost, "/api/track/"+code, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	var tracked TrackClickResponse
	require.NoError(t, json.Unmarshal(data, &tracked))
	assert.Zero(t, tracked.Click.Location.Latitude)
	assert.Zero(t, tracked.Click.Location.Longitude)

	resp, data = env.do(t, http.MethodPost, "/api/track/"+code, fiber.Map{"latitude": 120.0}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, data), "latitude")
}

func TestUnknownShortCode(t *testing.T) {
	env := newTestEnv(t, "")

	resp, _ := env.do(t, http.MethodGet, "/api/track/Missing1", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, data := env.do(t, http.MethodPost, "/api/track/Missing1", fiber.Map{"latitude": 1.0}, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Link not found", decodeError(t, data))

	resp, _ = env.do(t, http.MethodGet, "/t/Missing1", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 0, env.store.Stats(context.Background()).Clicks)
}

func TestClickEndpoints(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.createLink(t, "https://a.example").Link
	b := env.createLink(t, "https://b.example").Link

	var ids []string
	for _, code := range []string{a.ShortCode, b.ShortCode, a.ShortCode} {
		resp, data := env.do(t, http.MethodPost, "/api/track/"+code, fiber.Map{}, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
		var tracked TrackClickResponse
		require.NoError(t, json.Unmarshal(data, &tracked))
		ids = append(ids, tracked.Click.ID)
	}

	type clickList struct {
		Clicks []model.Click `json:"clicks"`
	}

	resp, data := env.do(t, http.MethodGet, "/api/clicks", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var all clickList
	require.NoError(t, json.Unmarshal(data, &all))
	require.Len(t, all.Clicks, 3)
	assert.Equal(t, []string{ids[0], ids[2], ids[1]}, []string{all.Clicks[0].ID, all.Clicks[1].ID, all.Clicks[2].ID})

	resp, data = env.do(t, http.MethodGet, "/api/clicks?linkId="+b.ID, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var onB clickList
	require.NoError(t, json.Unmarshal(data, &onB))
	require.Len(t, onB.Clicks, 1)
	assert.Equal(t, ids[1], onB.Clicks[0].ID)

	resp, _ = env.do(t, http.MethodGet, "/api/clicks?linkId=missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, data = env.do(t, http.MethodDelete, "/api/clicks", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Click ID is required", decodeError(t, data))

	resp, data = env.do(t, http.MethodDelete, "/api/clicks?clickId="+ids[0], nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(data))

	resp, data = env.do(t, http.MethodDelete, "/api/clicks?clickId="+ids[0], nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Click not found", decodeError(t, data))

	resp, _ = env.do(t, http.MethodGet, "/api/clicks/"+ids[0], nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 2, env.store.Stats(context.Background()).Clicks)
}

func TestRecordClick_TokenRequiredWhenSecretSet(t *testing.T) {
	const secret = "s3cret"
	env := newTestEnv(t, secret)
	code := env.createLink(t, "https://example.com").Link.ShortCode

	resp, data := env.do(t, http.MethodPost, "/api/track/"+code, fiber.Map{"latitude": 1.0}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, httpUtil.ErrInvalidToken.Error(), decodeError(t, data))

	resp, data = env.do(t, http.MethodPost, "/api/track/"+code, fiber.Map{"token": "bogus.token"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, string(data))

	_, page := env.do(t, http.MethodGet, "/t/"+code, nil, nil)
	assert.NotContains(t, string(page), `const token = "";`)

	token, err := httpUtil.NewTokenSigner([]byte(secret), time.Minute).Issue(code)
	require.NoError(t, err)
	resp, data = env.do(t, http.MethodPost, "/api/track/"+code, fiber.Map{"token": token}, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, 1, env.store.Stats(context.Background()).Clicks)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	for _, path := range []string{"/", "/health"} {
		resp, data := env.do(t, http.MethodGet, path, nil, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, string(data), `"status":"ok"`)
	}
}

func TestHealth_DegradedCheck(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(nil, map[string]HealthCheck{
		"redis":    func(ctx context.Context) error { return nil },
		"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
	}).Register(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(bytes.NewReader(raw)).Decode(&body))

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "connection refused", body.Checks["postgres"])
}
