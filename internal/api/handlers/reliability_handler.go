package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/importer"
	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/internal/reliability"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/internal/storage/sqlite"
	"github.com/qda-agent/backend/pkg/logger"
)

type ReliabilityHandler struct {
	db       *sqlite.Client
	importer *importer.Importer
	engine   *reliability.Engine
}

func NewReliabilityHandler(db *sqlite.Client, imp *importer.Importer, engine *reliability.Engine) *ReliabilityHandler {
	return &ReliabilityHandler{
		db:       db,
		importer: imp,
		engine:   engine,
	}
}

func (h *ReliabilityHandler) ImportSubmission(c *fiber.Ctx) error {
	coderName := c.Query("coder_name")

	sub, err := h.importer.ImportSubmission(c.Body(), coderName)
	if err != nil {
		if errors.Is(err, importer.ErrEmptyBundle) || errors.Is(err, importer.ErrWrongExportType) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to import submission", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid submission bundle",
		})
	}

	if err := h.db.InsertSubmission(sub); err != nil {
		logger.Error("Failed to store submission", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store submission",
		})
	}

	metrics.SubmissionsImported.Inc()

	return c.JSON(fiber.Map{
		"id":             sub.ID,
		"coder_name":     sub.CoderName,
		"total_codings":  sub.TotalCodings,
		"document_count": sub.DocumentCount,
		"category_count": sub.CategoryCount,
	})
}

func (h *ReliabilityHandler) ListSubmissions(c *fiber.Ctx) error {
	subs, err := h.db.ListSubmissions()
	if err != nil {
		logger.Error("Failed to list submissions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list submissions",
		})
	}

	out := make([]fiber.Map, 0, len(subs))
	for _, s := range subs {
		out = append(out, fiber.Map{
			"id":             s.ID,
			"coder_name":     s.CoderName,
			"total_codings":  s.TotalCodings,
			"document_count": s.DocumentCount,
			"category_count": s.CategoryCount,
			"imported_at":    s.ImportedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"submissions": out,
	})
}

func (h *ReliabilityHandler) DeleteSubmission(c *fiber.Ctx) error {
	if err := h.db.DeleteSubmission(c.Params("id")); err != nil {
		logger.Error("Failed to delete submission", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete submission",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Submission deleted",
	})
}

func (h *ReliabilityHandler) ComputeReliability(c *fiber.Ctx) error {
	subs, err := h.db.ListSubmissions()
	if err != nil {
		logger.Error("Failed to list submissions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load submissions",
		})
	}

	report, err := h.engine.Compute(subs)
	if err != nil {
		if errors.Is(err, reliability.ErrNotEnoughCoders) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Reliability computation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Reliability computation failed",
		})
	}

	if err := h.db.InsertReliabilityReport(report); err != nil {
		logger.Error("Failed to store reliability report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store report",
		})
	}

	metrics.LatestKappa.Set(report.Kappa)

	return c.JSON(reliabilityReportJSON(report))
}

func (h *ReliabilityHandler) LatestReport(c *fiber.Ctx) error {
	report, err := h.db.LatestReliabilityReport()
	if err != nil {
		logger.Error("Failed to load reliability report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report",
		})
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No reliability report computed yet",
		})
	}

	return c.JSON(reliabilityReportJSON(report))
}

func (h *ReliabilityHandler) ExportBundle(c *fiber.Ctx) error {
	exportType := c.Query("type", importer.ExportTypeTeamCoding)
	projectName := c.Query("name", "project")

	snapshot, err := h.db.LoadSnapshot()
	if err != nil {
		logger.Error("Failed to load project", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load project",
		})
	}

	data, err := h.importer.Export(snapshot, projectName, exportType)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "application/json")
	c.Set("Content-Disposition", `attachment; filename="`+projectName+`-`+exportType+`.json"`)
	return c.Send(data)
}

func reliabilityReportJSON(report *models.ReliabilityReport) fiber.Map {
	disagreements := make([]fiber.Map, 0, len(report.Disagreements))
	for _, d := range report.Disagreements {
		disagreements = append(disagreements, fiber.Map{
			"passage":    d.Passage,
			"coder_a":    d.CoderA,
			"coder_b":    d.CoderB,
			"category_a": d.CategoryA,
			"category_b": d.CategoryB,
		})
	}

	return fiber.Map{
		"id":                 report.ID,
		"agreement":          report.Agreement,
		"kappa":              report.Kappa,
		"quality":            report.Quality,
		"total_comparisons":  report.TotalComparisons,
		"agreement_count":    report.AgreementCount,
		"disagreement_count": report.DisagreementCount,
		"disagreements":      disagreements,
		"coder_count":        report.CoderCount,
		"strategy":           report.Strategy,
		"created_at":         report.CreatedAt.Unix(),
	}
}
