package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/repository"
	"github.com/sifan077/GeoLink/internal/app/service"
	httpUtil "github.com/sifan077/GeoLink/internal/http/util"
	"github.com/sifan077/GeoLink/internal/http/view"
	"github.com/sifan077/GeoLink/internal/validation"
	"go.uber.org/zap"
)

const tokenTTL = 10 * time.Minute

// TrackDeps groups dependencies required by tracking handlers.
type TrackDeps struct {
	Logger       *zap.Logger
	LinkService  service.LinkService
	ClickService service.ClickService
	// Secret signs capture-page tokens. Empty disables token checks.
	Secret []byte
	// RateLimit guards click recording when set.
	RateLimit fiber.Handler
}

// TrackHandler serves the capture page and records clicks.
type TrackHandler struct {
	logger       *zap.Logger
	linkService  service.LinkService
	clickService service.ClickService
	tokens       *httpUtil.TokenSigner
	rateLimit    fiber.Handler
}

// NewTrackHandler creates a tracking handler with the provided dependencies.
func NewTrackHandler(deps TrackDeps) *TrackHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackHandler{
		logger:       logger,
		linkService:  deps.LinkService,
		clickService: deps.ClickService,
		tokens:       httpUtil.NewTokenSigner(deps.Secret, tokenTTL),
		rateLimit:    deps.RateLimit,
	}
}

// Register wires tracking routes onto the provided router.
func (h *TrackHandler) Register(router fiber.Router) {
	router.Get("/t/:code", h.CapturePage)

	track := router.Group("/api/track")
	track.Get("/:code", h.Visit)
	if h.rateLimit != nil {
		track.Post("/:code", h.rateLimit, h.RecordClick)
	} else {
		track.Post("/:code", h.RecordClick)
	}
}

// Visit handles GET /api/track/:code by sending the visitor to the capture page.
func (h *TrackHandler) Visit(c *fiber.Ctx) error {
	code := c.Params("code")
	if _, err := h.linkService.ResolveShortCode(c.UserContext(), code); err != nil {
		return writeError(c, h.logger, err, "resolve short code")
	}
	return c.Redirect("/t/"+code, fiber.StatusFound)
}

// CapturePage handles GET /t/:code.
func (h *TrackHandler) CapturePage(c *fiber.Ctx) error {
	code := c.Params("code")
	link, err := h.linkService.ResolveShortCode(c.UserContext(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Link not found")
		}
		return writeError(c, h.logger, err, "resolve short code")
	}

	var token string
	if h.tokens.Enabled() {
		token, err = h.tokens.Issue(link.ShortCode)
		if err != nil {
			h.logger.Error("failed to issue tracking token", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to prepare tracking",
			})
		}
	}

	html, err := view.RenderTrackingPage(view.TrackingPageData{
		Code:     link.ShortCode,
		TrackURL: "/api/track/" + link.ShortCode,
		Token:    token,
	})
	if err != nil {
		h.logger.Error("failed to render tracking page", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render page",
		})
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.
		Type("html", "utf-8").
		SendString(html)
}

// TrackClickRequest is the payload posted by the capture page. Missing
// coordinates are recorded as 0.
type TrackClickRequest struct {
	Latitude       *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	AccuracyRadius *float64 `json:"accuracyRadius,omitempty" validate:"omitempty,gte=0"`
	Token          string   `json:"token,omitempty"`
}

// TrackClickResponse is returned after a click is recorded.
type TrackClickResponse struct {
	Success     bool         `json:"success"`
	RedirectURL string       `json:"redirectUrl"`
	Click       ClickSummary `json:"click"`
}

// ClickSummary is the compact click view returned to the capture page.
type ClickSummary struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Location  ClickedLocation `json:"location"`
}

// ClickedLocation reports the coordinates stored for a click.
type ClickedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   *string `json:"country,omitempty"`
	City      *string `json:"city,omitempty"`
}

// RecordClick handles POST /api/track/:code
func (h *TrackHandler) RecordClick(c *fiber.Ctx) error {
	code := c.Params("code")

	var req TrackClickRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
	}
	if err := validation.ValidateStruct(req); err != nil {
		return writeError(c, h.logger, err, "validate click request")
	}

	if h.tokens.Enabled() {
		if err := h.tokens.Validate(code, req.Token); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": httpUtil.ErrInvalidToken.Error(),
			})
		}
	}

	tracked, err := h.clickService.TrackShortCode(c.UserContext(), code, service.RecordClickInput{
		Latitude:       valueOrZero(req.Latitude),
		Longitude:      valueOrZero(req.Longitude),
		AccuracyRadius: req.AccuracyRadius,
		UserAgent:      c.Get(fiber.HeaderUserAgent),
		IPAddress:      httpUtil.ClientIP(c),
	})
	if err != nil {
		return writeError(c, h.logger, err, "record click")
	}

	return c.JSON(TrackClickResponse{
		Success:     true,
		RedirectURL: tracked.Link.OriginalURL,
		Click:       summarize(tracked.Click),
	})
}

func summarize(click *model.Click) ClickSummary {
	return ClickSummary{
		ID:        click.ID,
		Timestamp: click.Timestamp,
		Location: ClickedLocation{
			Latitude:  click.Latitude,
			Longitude: click.Longitude,
			Country:   click.Country,
			City:      click.City,
		},
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
