package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxDocumentSize     int
	MaxBundleSize       int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware enforces content-type and payload-size limits on document intake
// and submission import before handlers parse the body.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 10 * 1024 * 1024
	}
	if cfg.MaxBundleSize == 0 {
		cfg.MaxBundleSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data", "text/plain"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if strings.Contains(path, "/api/v1/documents") && c.Method() == "POST" {
			if len(c.Body()) > cfg.MaxDocumentSize {
				cfg.Logger.Warn("Oversized document rejected",
					zap.String("ip", c.IP()),
					zap.Int("size", len(c.Body())),
				)
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document content exceeds maximum size",
				})
			}

			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			// HTML uploads may omit the name; the title is extracted instead.
			htmlContent, _ := req["html_content"].(string)
			name, _ := req["name"].(string)
			if htmlContent == "" && strings.TrimSpace(name) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Document name is required",
				})
			}
		}

		if strings.Contains(path, "/api/v1/reliability/import") && c.Method() == "POST" {
			if len(c.Body()) > cfg.MaxBundleSize {
				cfg.Logger.Warn("Oversized bundle rejected",
					zap.String("ip", c.IP()),
					zap.Int("size", len(c.Body())),
				)
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Bundle exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}
