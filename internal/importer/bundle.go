package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/storage/models"
)

const (
	// ExportTypeTeamCoding marks a bundle distributed for team coding:
	// categories and research questions present, codings intentionally empty.
	ExportTypeTeamCoding = "team_coding"
	// ExportTypeCompletedCoding marks a bundle returned by a coder with
	// codings populated; only this shape can become a CoderSubmission.
	ExportTypeCompletedCoding = "completed_coding"
)

var (
	ErrEmptyBundle     = errors.New("submission bundle contains no codings")
	ErrWrongExportType = errors.New("bundle is not a completed-coding export")
)

type codingRecord struct {
	DocumentID     string `json:"document_id"`
	CategoryID     string `json:"category_id"`
	Passage        string `json:"passage"`
	Rationale      string `json:"rationale"`
	SourceDocument string `json:"source_document"`
	ChunkIndex     int    `json:"chunk_index"`
}

type categoryRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Origin      string   `json:"origin"`
	Properties  []string `json:"properties"`
	Dimension   string   `json:"dimension"`
}

type documentRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// ProjectBundle is the export/import envelope exchanged between team
// members. ExportType discriminates distribution bundles from returned
// coding work.
type ProjectBundle struct {
	ExportType        string           `json:"export_type"`
	ProjectName       string           `json:"project_name"`
	CoderName         string           `json:"coder_name"`
	ExportedAt        time.Time        `json:"exported_at"`
	Documents         []documentRecord `json:"documents"`
	Categories        []categoryRecord `json:"categories"`
	Codings           []codingRecord   `json:"codings"`
	ResearchQuestions []string         `json:"research_questions"`
}

type Importer struct {
	logger *zap.Logger
}

func NewImporter(logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{logger: logger}
}

// ImportSubmission turns a completed-coding bundle into an immutable
// CoderSubmission with its own copy of the codings and categories.
func (im *Importer) ImportSubmission(data []byte, coderName string) (*models.CoderSubmission, error) {
	var bundle ProjectBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode submission bundle: %w", err)
	}

	if bundle.ExportType == ExportTypeTeamCoding {
		return nil, ErrWrongExportType
	}
	if len(bundle.Codings) == 0 {
		return nil, ErrEmptyBundle
	}

	if coderName == "" {
		coderName = bundle.CoderName
	}
	if coderName == "" {
		coderName = "unnamed coder"
	}

	now := time.Now()
	sub := &models.CoderSubmission{
		ID:         uuid.New().String(),
		CoderName:  coderName,
		ImportedAt: now,
	}

	documents := make(map[string]bool)
	categories := make(map[string]bool)
	for _, rec := range bundle.Codings {
		sub.Codings = append(sub.Codings, models.Coding{
			ID:             uuid.New().String(),
			DocumentID:     rec.DocumentID,
			CategoryID:     rec.CategoryID,
			Passage:        rec.Passage,
			Rationale:      rec.Rationale,
			SourceDocument: rec.SourceDocument,
			ChunkIndex:     rec.ChunkIndex,
			CreatedAt:      now,
		})
		documents[rec.DocumentID] = true
		categories[rec.CategoryID] = true
	}

	for _, rec := range bundle.Categories {
		sub.Categories = append(sub.Categories, models.Category{
			ID:          rec.ID,
			Name:        rec.Name,
			Description: rec.Description,
			Origin:      rec.Origin,
			Properties:  rec.Properties,
			Dimension:   rec.Dimension,
			CreatedAt:   now,
		})
	}

	sub.TotalCodings = len(sub.Codings)
	sub.DocumentCount = len(documents)
	sub.CategoryCount = len(categories)

	im.logger.Info("Coder submission imported",
		zap.String("coder", sub.CoderName),
		zap.Int("codings", sub.TotalCodings),
		zap.Int("documents", sub.DocumentCount),
		zap.Int("categories", sub.CategoryCount),
	)

	return sub, nil
}

// Export builds a project bundle. Team-coding exports strip codings so each
// coder starts from the shared category frame.
func (im *Importer) Export(state *models.ProjectSnapshot, projectName, exportType string) ([]byte, error) {
	if exportType != ExportTypeTeamCoding && exportType != ExportTypeCompletedCoding {
		return nil, fmt.Errorf("unknown export type %q", exportType)
	}

	bundle := ProjectBundle{
		ExportType:  exportType,
		ProjectName: projectName,
		ExportedAt:  time.Now(),
	}

	for _, d := range state.Documents {
		bundle.Documents = append(bundle.Documents, documentRecord{
			ID:        d.ID,
			Name:      d.Name,
			Text:      d.Text,
			WordCount: d.WordCount,
		})
	}
	for _, c := range state.Categories {
		bundle.Categories = append(bundle.Categories, categoryRecord{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Origin:      c.Origin,
			Properties:  c.Properties,
			Dimension:   c.Dimension,
		})
	}
	for _, q := range state.ResearchQuestions {
		bundle.ResearchQuestions = append(bundle.ResearchQuestions, q.Question)
	}

	if exportType == ExportTypeCompletedCoding {
		for _, k := range state.Codings {
			bundle.Codings = append(bundle.Codings, codingRecord{
				DocumentID:     k.DocumentID,
				CategoryID:     k.CategoryID,
				Passage:        k.Passage,
				Rationale:      k.Rationale,
				SourceDocument: k.SourceDocument,
				ChunkIndex:     k.ChunkIndex,
			})
		}
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle: %w", err)
	}

	im.logger.Info("Project exported",
		zap.String("type", exportType),
		zap.Int("documents", len(bundle.Documents)),
		zap.Int("codings", len(bundle.Codings)),
	)

	return data, nil
}
