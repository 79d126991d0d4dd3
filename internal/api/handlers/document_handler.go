package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/ingestion"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/internal/storage/sqlite"
	"github.com/qda-agent/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		db:        db,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Text        string `json:"text"`
		HTMLContent string `json:"html_content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" && req.HTMLContent == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text or HTML content is required",
		})
	}

	var doc *models.Document
	var err error
	if req.HTMLContent != "" {
		doc, err = h.processor.IngestHTML(req.Name, req.HTMLContent)
	} else {
		doc, err = h.processor.IngestText(req.Name, req.Text)
	}
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	return c.JSON(fiber.Map{
		"id":         doc.ID,
		"name":       doc.Name,
		"word_count": doc.WordCount,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.db.ListDocuments()
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	out := make([]fiber.Map, 0, len(docs))
	for _, d := range docs {
		out = append(out, fiber.Map{
			"id":         d.ID,
			"name":       d.Name,
			"word_count": d.WordCount,
			"created_at": d.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"documents": out,
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.db.GetDocument(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":         doc.ID,
		"name":       doc.Name,
		"text":       doc.Text,
		"word_count": doc.WordCount,
		"created_at": doc.CreatedAt.Unix(),
	})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	if err := h.db.DeleteDocument(c.Params("id")); err != nil {
		logger.Error("Failed to delete document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Document deleted",
	})
}
