package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/internal/storage/sqlite"
	"github.com/qda-agent/backend/pkg/logger"
)

type CategoryHandler struct {
	db *sqlite.Client
}

func NewCategoryHandler(db *sqlite.Client) *CategoryHandler {
	return &CategoryHandler{db: db}
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Properties  []string `json:"properties"`
		Dimension   string   `json:"dimension"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Category name is required",
		})
	}

	cat := &models.Category{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Origin:      models.OriginManual,
		Properties:  req.Properties,
		Dimension:   req.Dimension,
		CreatedAt:   time.Now(),
	}

	if err := h.db.InsertCategory(cat); err != nil {
		logger.Error("Failed to create category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create category",
		})
	}

	return c.JSON(fiber.Map{
		"id":     cat.ID,
		"name":   cat.Name,
		"origin": cat.Origin,
	})
}

func (h *CategoryHandler) ListCategories(c *fiber.Ctx) error {
	cats, err := h.db.ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list categories",
		})
	}

	out := make([]fiber.Map, 0, len(cats))
	for _, cat := range cats {
		out = append(out, fiber.Map{
			"id":          cat.ID,
			"name":        cat.Name,
			"description": cat.Description,
			"origin":      cat.Origin,
			"properties":  cat.Properties,
			"dimension":   cat.Dimension,
		})
	}

	return c.JSON(fiber.Map{
		"categories": out,
	})
}

// DeleteCategory leaves existing codings in place. They resolve to the
// unknown placeholder in later analyses.
func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	if err := h.db.DeleteCategory(c.Params("id")); err != nil {
		logger.Error("Failed to delete category", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete category",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Category deleted",
	})
}
