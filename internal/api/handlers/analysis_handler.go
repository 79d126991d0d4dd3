package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/coding"
	"github.com/qda-agent/backend/internal/llm"
	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/internal/storage/sqlite"
	"github.com/qda-agent/backend/pkg/logger"
)

// materialSampleLen bounds how much raw text is sent when asking the model
// to suggest categories or research questions.
const materialSampleLen = 4000

type AnalysisHandler struct {
	db       *sqlite.Client
	pipeline *coding.Pipeline
	llm      *llm.Client
	decoder  *coding.Decoder
}

func NewAnalysisHandler(db *sqlite.Client, pipeline *coding.Pipeline, llmClient *llm.Client, decoder *coding.Decoder) *AnalysisHandler {
	return &AnalysisHandler{
		db:       db,
		pipeline: pipeline,
		llm:      llmClient,
		decoder:  decoder,
	}
}

func (h *AnalysisHandler) AnalyzeDocument(c *fiber.Ctx) error {
	doc, err := h.db.GetDocument(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Document not found",
		})
	}

	categories, err := h.db.ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load categories",
		})
	}
	if len(categories) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "At least one category is required before analysis",
		})
	}

	start := time.Now()
	result, err := h.pipeline.AnalyzeDocument(c.Context(), doc, categories)
	if err != nil {
		logger.Error("Analysis run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Analysis run failed",
		})
	}
	metrics.AnalysisRunDuration.Observe(time.Since(start).Seconds())

	return c.JSON(fiber.Map{
		"document_id":     doc.ID,
		"chunks_analyzed": result.ChunksAnalyzed,
		"chunks_failed":   result.ChunksFailed,
		"codings_created": result.CodingsCreated,
	})
}

func (h *AnalysisHandler) AnalyzeProject(c *fiber.Ctx) error {
	docs, err := h.db.ListDocuments()
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load documents",
		})
	}
	if len(docs) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "No documents to analyze",
		})
	}

	categories, err := h.db.ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load categories",
		})
	}
	if len(categories) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "At least one category is required before analysis",
		})
	}

	start := time.Now()
	result := h.pipeline.AnalyzeProject(c.Context(), docs, categories)
	metrics.AnalysisRunDuration.Observe(time.Since(start).Seconds())

	return c.JSON(fiber.Map{
		"documents_processed": result.DocumentsProcessed,
		"chunks_analyzed":     result.ChunksAnalyzed,
		"chunks_failed":       result.ChunksFailed,
		"codings_created":     result.CodingsCreated,
	})
}

func (h *AnalysisHandler) SuggestCategories(c *fiber.Ctx) error {
	sample, err := h.materialSample()
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	response, err := h.llm.SuggestCategories(c.Context(), sample)
	if err != nil {
		logger.Warn("Category suggestion request failed, using fallback", zap.Error(err))
		response = ""
	}

	result := h.decoder.DecodeCategories(response)

	created := make([]fiber.Map, 0, len(result.Categories))
	for _, dc := range result.Categories {
		cat := &models.Category{
			ID:          uuid.New().String(),
			Name:        dc.Name,
			Description: dc.Description,
			Origin:      models.OriginGenerated,
			Properties:  dc.Properties,
			Dimension:   dc.Dimension,
			CreatedAt:   time.Now(),
		}
		if err := h.db.InsertCategory(cat); err != nil {
			logger.Error("Failed to store suggested category", zap.Error(err))
			continue
		}
		created = append(created, fiber.Map{
			"id":   cat.ID,
			"name": cat.Name,
		})
	}

	return c.JSON(fiber.Map{
		"origin":     result.Origin,
		"categories": created,
	})
}

func (h *AnalysisHandler) SuggestResearchQuestions(c *fiber.Ctx) error {
	sample, err := h.materialSample()
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	response, err := h.llm.SuggestResearchQuestions(c.Context(), sample)
	if err != nil {
		logger.Warn("Question suggestion request failed, using fallback", zap.Error(err))
		response = ""
	}

	result := h.decoder.DecodeQuestions(response)

	created := make([]fiber.Map, 0, len(result.Questions))
	for _, q := range result.Questions {
		rq := &models.ResearchQuestion{
			ID:        uuid.New().String(),
			Question:  q,
			Origin:    models.OriginGenerated,
			CreatedAt: time.Now(),
		}
		if err := h.db.InsertResearchQuestion(rq); err != nil {
			logger.Error("Failed to store research question", zap.Error(err))
			continue
		}
		created = append(created, fiber.Map{
			"id":       rq.ID,
			"question": rq.Question,
		})
	}

	return c.JSON(fiber.Map{
		"origin":    result.Origin,
		"questions": created,
	})
}

func (h *AnalysisHandler) SuggestPatterns(c *fiber.Ctx) error {
	snapshot, err := h.db.LoadSnapshot()
	if err != nil {
		logger.Error("Failed to load project", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load project",
		})
	}
	if len(snapshot.Codings) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "Patterns require existing codings",
		})
	}

	response, err := h.llm.SuggestPatterns(c.Context(), codingSummary(snapshot))
	if err != nil {
		logger.Warn("Pattern suggestion request failed, using fallback", zap.Error(err))
		response = ""
	}

	result := h.decoder.DecodePatterns(response)

	created := make([]fiber.Map, 0, len(result.Patterns))
	for _, dp := range result.Patterns {
		p := &models.Pattern{
			ID:          uuid.New().String(),
			Name:        dp.Name,
			Description: dp.Description,
			Categories:  dp.Categories,
			Origin:      models.OriginGenerated,
			CreatedAt:   time.Now(),
		}
		if err := h.db.InsertPattern(p); err != nil {
			logger.Error("Failed to store pattern", zap.Error(err))
			continue
		}
		created = append(created, fiber.Map{
			"id":   p.ID,
			"name": p.Name,
		})
	}

	return c.JSON(fiber.Map{
		"origin":   result.Origin,
		"patterns": created,
	})
}

func (h *AnalysisHandler) materialSample() (string, error) {
	docs, err := h.db.ListDocuments()
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", fiber.NewError(fiber.StatusUnprocessableEntity, "No documents available")
	}

	sample := ""
	for _, d := range docs {
		if len(sample) >= materialSampleLen {
			break
		}
		sample += d.Text + "\n\n"
	}
	if len(sample) > materialSampleLen {
		sample = sample[:materialSampleLen]
	}

	return sample, nil
}

// codingSummary condenses project codings into a per-category digest small
// enough to send as prompt context.
func codingSummary(snapshot *models.ProjectSnapshot) string {
	usage := make(map[string]int)
	examples := make(map[string]string)
	for _, k := range snapshot.Codings {
		name := snapshot.CategoryName(k.CategoryID)
		usage[name]++
		if _, ok := examples[name]; !ok {
			examples[name] = k.Passage
		}
	}

	summary := ""
	for name, count := range usage {
		summary += fmt.Sprintf("%s (%d codings), example: %s\n", name, count, examples[name])
	}
	return summary
}
