package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/vector"
	"github.com/qda-agent/backend/pkg/logger"
)

type SearchHandler struct {
	indexer *vector.Indexer
}

// NewSearchHandler accepts a nil indexer when the vector store is not
// configured.
func NewSearchHandler(indexer *vector.Indexer) *SearchHandler {
	return &SearchHandler{indexer: indexer}
}

// SimilarPassages finds coded passages semantically close to the query text.
func (h *SearchHandler) SimilarPassages(c *fiber.Ctx) error {
	if h.indexer == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Vector store is not configured",
		})
	}

	var req struct {
		Text     string `json:"text"`
		TopK     int    `json:"top_k"`
		Category string `json:"category"`
		Document string `json:"document"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	filters := map[string]string{}
	if req.Category != "" {
		filters["category"] = req.Category
	}
	if req.Document != "" {
		filters["document"] = req.Document
	}

	results, err := h.indexer.SearchSimilar(c.Context(), req.Text, req.TopK, filters)
	if err != nil {
		logger.Error("Similar passage search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	out := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		out = append(out, fiber.Map{
			"coding_id": r.CodingID,
			"passage":   r.Passage,
			"category":  r.Category,
			"document":  r.Document,
			"score":     r.Score,
		})
	}

	return c.JSON(fiber.Map{
		"results": out,
	})
}
