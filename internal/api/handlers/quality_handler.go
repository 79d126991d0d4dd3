package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/cooccurrence"
	"github.com/qda-agent/backend/internal/graph/neo4j"
	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/internal/quality"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/internal/storage/sqlite"
	"github.com/qda-agent/backend/pkg/logger"
)

type QualityHandler struct {
	db     *sqlite.Client
	engine *quality.Engine
	graph  *neo4j.Client
}

// NewQualityHandler accepts a nil graph client when the graph store is not
// configured.
func NewQualityHandler(db *sqlite.Client, engine *quality.Engine, graph *neo4j.Client) *QualityHandler {
	return &QualityHandler{
		db:     db,
		engine: engine,
		graph:  graph,
	}
}

func (h *QualityHandler) AssessQuality(c *fiber.Ctx) error {
	snapshot, err := h.db.LoadSnapshot()
	if err != nil {
		logger.Error("Failed to load project", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load project",
		})
	}

	report := h.engine.Assess(snapshot)

	if err := h.db.InsertQualityReport(report); err != nil {
		logger.Error("Failed to store quality report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store report",
		})
	}

	metrics.LatestQualityScore.Set(float64(report.OverallScore))

	return c.JSON(qualityReportJSON(report))
}

func (h *QualityHandler) LatestQualityReport(c *fiber.Ctx) error {
	report, err := h.db.LatestQualityReport()
	if err != nil {
		logger.Error("Failed to load quality report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report",
		})
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No quality report generated yet",
		})
	}

	return c.JSON(qualityReportJSON(report))
}

// Cooccurrence returns the category co-occurrence matrix. Pass mode=distinct
// for per-document deduplicated pair counts.
func (h *QualityHandler) Cooccurrence(c *fiber.Ctx) error {
	snapshot, err := h.db.LoadSnapshot()
	if err != nil {
		logger.Error("Failed to load project", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load project",
		})
	}

	var matrix cooccurrence.Matrix
	mode := c.Query("mode", "raw")
	if mode == "distinct" {
		matrix = cooccurrence.DistinctPairs(snapshot)
	} else {
		matrix = cooccurrence.Build(snapshot)
	}

	if h.graph != nil {
		if err := h.graph.SyncMatrix(c.Context(), matrix); err != nil {
			logger.Warn("Failed to sync co-occurrence graph", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"mode":       mode,
		"categories": matrix.Categories,
		"counts":     matrix.Counts,
	})
}

// CategoryNeighbors reads co-occurrence edges for one category back out of
// the graph store.
func (h *QualityHandler) CategoryNeighbors(c *fiber.Ctx) error {
	if h.graph == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Graph store is not configured",
		})
	}

	category := c.Params("name")
	minWeight := c.QueryInt("min_weight", 1)

	edges, err := h.graph.Neighbors(c.Context(), category, minWeight)
	if err != nil {
		logger.Error("Failed to query neighbors", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query neighbors",
		})
	}

	out := make([]fiber.Map, 0, len(edges))
	for _, e := range edges {
		out = append(out, fiber.Map{
			"category": e.To,
			"weight":   e.Weight,
		})
	}

	return c.JSON(fiber.Map{
		"category":  category,
		"neighbors": out,
	})
}

func qualityReportJSON(report *models.QualityReport) fiber.Map {
	recs := make([]fiber.Map, 0, len(report.Recommendations))
	for _, r := range report.Recommendations {
		recs = append(recs, fiber.Map{
			"severity": r.Severity,
			"category": r.Category,
			"message":  r.Message,
			"action":   r.Action,
		})
	}

	return fiber.Map{
		"id":              report.ID,
		"density":         metricJSON(report.Density),
		"saturation":      metricJSON(report.Saturation),
		"reliability":     metricJSON(report.Reliability),
		"completeness":    metricJSON(report.Completeness),
		"overall_score":   report.OverallScore,
		"grade":           report.Grade,
		"status":          report.Status,
		"recommendations": recs,
		"generated_at":    report.GeneratedAt.Unix(),
	}
}

func metricJSON(m models.MetricResult) fiber.Map {
	out := fiber.Map{
		"name":      m.Name,
		"value":     m.Value,
		"benchmark": m.Benchmark,
		"status":    m.Status,
	}
	if m.Evenness > 0 {
		out["evenness"] = m.Evenness
	}
	return out
}
