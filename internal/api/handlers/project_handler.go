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

// ProjectHandler covers the project-content endpoints that sit between
// document intake and the analysis surface: reviewing codings and recording
// the researcher's interpretation.
type ProjectHandler struct {
	db *sqlite.Client
}

func NewProjectHandler(db *sqlite.Client) *ProjectHandler {
	return &ProjectHandler{db: db}
}

func (h *ProjectHandler) ListCodings(c *fiber.Ctx) error {
	var (
		codings []models.Coding
		err     error
	)
	if documentID := c.Query("document_id"); documentID != "" {
		codings, err = h.db.ListCodingsByDocument(documentID)
	} else {
		codings, err = h.db.ListCodings()
	}
	if err != nil {
		logger.Error("Failed to list codings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list codings",
		})
	}

	categories, err := h.db.ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list codings",
		})
	}
	names := make(map[string]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	out := make([]fiber.Map, 0, len(codings))
	for _, coding := range codings {
		name, ok := names[coding.CategoryID]
		if !ok {
			name = models.UnknownCategory
		}
		out = append(out, fiber.Map{
			"id":              coding.ID,
			"document_id":     coding.DocumentID,
			"category_id":     coding.CategoryID,
			"category":        name,
			"passage":         coding.Passage,
			"rationale":       coding.Rationale,
			"source_document": coding.SourceDocument,
			"chunk_index":     coding.ChunkIndex,
		})
	}

	return c.JSON(fiber.Map{
		"codings": out,
		"total":   len(out),
	})
}

// DeleteCoding removes a single coding, typically after manual review of a
// machine-suggested passage.
func (h *ProjectHandler) DeleteCoding(c *fiber.Ctx) error {
	if err := h.db.DeleteCoding(c.Params("id")); err != nil {
		logger.Error("Failed to delete coding", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete coding",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Coding deleted",
	})
}

func (h *ProjectHandler) CreateInterpretation(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Interpretation text is required",
		})
	}

	it := &models.Interpretation{
		ID:        uuid.New().String(),
		Text:      req.Text,
		CreatedAt: time.Now(),
	}

	if err := h.db.InsertInterpretation(it); err != nil {
		logger.Error("Failed to store interpretation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store interpretation",
		})
	}

	return c.JSON(fiber.Map{
		"id": it.ID,
	})
}

func (h *ProjectHandler) ListInterpretations(c *fiber.Ctx) error {
	items, err := h.db.ListInterpretations()
	if err != nil {
		logger.Error("Failed to list interpretations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list interpretations",
		})
	}

	out := make([]fiber.Map, 0, len(items))
	for _, it := range items {
		out = append(out, fiber.Map{
			"id":         it.ID,
			"text":       it.Text,
			"created_at": it.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"interpretations": out,
	})
}

func (h *ProjectHandler) ListResearchQuestions(c *fiber.Ctx) error {
	questions, err := h.db.ListResearchQuestions()
	if err != nil {
		logger.Error("Failed to list research questions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list research questions",
		})
	}

	out := make([]fiber.Map, 0, len(questions))
	for _, q := range questions {
		out = append(out, fiber.Map{
			"id":       q.ID,
			"question": q.Question,
			"origin":   q.Origin,
		})
	}

	return c.JSON(fiber.Map{
		"questions": out,
	})
}

func (h *ProjectHandler) ListPatterns(c *fiber.Ctx) error {
	patterns, err := h.db.ListPatterns()
	if err != nil {
		logger.Error("Failed to list patterns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list patterns",
		})
	}

	out := make([]fiber.Map, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, fiber.Map{
			"id":          p.ID,
			"name":        p.Name,
			"description": p.Description,
			"categories":  p.Categories,
			"origin":      p.Origin,
		})
	}

	return c.JSON(fiber.Map{
		"patterns": out,
	})
}
