package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/GeoLink/internal/app/model"
	"github.com/sifan077/GeoLink/internal/app/service"
	"github.com/sifan077/GeoLink/internal/validation"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger       *zap.Logger
	LinkService  service.LinkService
	ClickService service.ClickService
	// BaseURL prefixes tracking URLs. Empty means the request origin.
	BaseURL string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger       *zap.Logger
	linkService  service.LinkService
	clickService service.ClickService
	baseURL      string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:       logger,
		linkService:  deps.LinkService,
		clickService: deps.ClickService,
		baseURL:      strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:id", h.GetLink)
			links.Get("/:id/analytics", h.GetAnalytics)
		}

		clicks := api.Group("/clicks")
		{
			clicks.Get("/", h.ListClicks)
			clicks.Delete("/", h.DeleteClick)
			clicks.Get("/:id", h.GetClick)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	OriginalURL string  `json:"originalUrl" validate:"required,absurl"`
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// CreateLinkResponse represents the response for creating a link.
type CreateLinkResponse struct {
	Link        *model.Link `json:"link"`
	TrackingURL string      `json:"trackingUrl"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.OriginalURL = strings.TrimSpace(req.OriginalURL)
	if req.OriginalURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Original URL is required",
		})
	}
	if err := validation.ValidateStruct(req); err != nil {
		return writeError(c, h.logger, err, "validate link request")
	}

	link, err := h.linkService.CreateLink(c.UserContext(), service.CreateLinkInput{
		URL:         req.OriginalURL,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return writeError(c, h.logger, err, "create link")
	}

	return c.Status(fiber.StatusCreated).JSON(CreateLinkResponse{
		Link:        link,
		TrackingURL: h.trackingURL(c, link.ShortCode),
	})
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.linkService.ListLinks(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, err, "list links")
	}
	return c.JSON(fiber.Map{"links": links})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, err := h.linkService.GetLink(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err, "get link")
	}
	return c.JSON(link)
}

// GetAnalytics handles GET /api/links/:id/analytics
func (h *APIHandler) GetAnalytics(c *fiber.Ctx) error {
	analytics, err := h.linkService.Analytics(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err, "compute analytics")
	}
	return c.JSON(analytics)
}

// ListClicks handles GET /api/clicks?linkId=
func (h *APIHandler) ListClicks(c *fiber.Ctx) error {
	clicks, err := h.clickService.ListClicks(c.UserContext(), strings.TrimSpace(c.Query("linkId")))
	if err != nil {
		return writeError(c, h.logger, err, "list clicks")
	}
	return c.JSON(fiber.Map{"clicks": clicks})
}

// GetClick handles GET /api/clicks/:id
func (h *APIHandler) GetClick(c *fiber.Ctx) error {
	click, err := h.clickService.GetClick(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, err, "get click")
	}
	return c.JSON(click)
}

// DeleteClick handles DELETE /api/clicks?clickId=
func (h *APIHandler) DeleteClick(c *fiber.Ctx) error {
	clickID := strings.TrimSpace(c.Query("clickId"))
	if clickID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Click ID is required",
		})
	}

	if !h.clickService.DeleteClick(c.UserContext(), clickID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Click not found",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *APIHandler) trackingURL(c *fiber.Ctx, code string) string {
	base := h.baseURL
	if base == "" {
		base = c.BaseURL()
	}
	return base + "/t/" + code
}
