package util

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const fallbackClientIP = "127.0.0.1"

// ClientIP returns the visitor address: the first X-Forwarded-For entry, then
// X-Real-IP, then the loopback address.
func ClientIP(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return fallbackClientIP
}
