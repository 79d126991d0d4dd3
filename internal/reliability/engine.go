package reliability

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/storage/models"
)

// ErrNotEnoughCoders is returned when fewer than two submissions are
// supplied; no partial report is produced.
var ErrNotEnoughCoders = errors.New("reliability analysis requires at least 2 coder submissions")

const (
	maxDisagreementSamples = 10
	passageExcerptLen      = 100
)

// comparison is one passage matched across two coders, with both resolved
// category names.
type comparison struct {
	passage   string
	coderA    string
	coderB    string
	categoryA string
	categoryB string
}

type Engine struct {
	strategy Strategy
	logger   *zap.Logger
}

func NewEngine(strategy Strategy, logger *zap.Logger) *Engine {
	if strategy == nil {
		strategy = SimpleAgreement{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{strategy: strategy, logger: logger}
}

// Compute builds a fresh reliability report over every unordered pair of
// submissions. Codings are matched by byte-identical passage text; matched
// passages with equal category names count as agreement.
func (e *Engine) Compute(submissions []models.CoderSubmission) (*models.ReliabilityReport, error) {
	if len(submissions) < 2 {
		return nil, ErrNotEnoughCoders
	}

	var comparisons []comparison
	for i := 0; i < len(submissions); i++ {
		for j := i + 1; j < len(submissions); j++ {
			comparisons = append(comparisons, matchPair(&submissions[i], &submissions[j])...)
		}
	}

	agreements := 0
	var samples []models.Disagreement
	for _, c := range comparisons {
		if c.categoryA == c.categoryB {
			agreements++
			continue
		}
		if len(samples) < maxDisagreementSamples {
			samples = append(samples, models.Disagreement{
				Passage:   truncate(c.passage, passageExcerptLen),
				CoderA:    c.coderA,
				CoderB:    c.coderB,
				CategoryA: c.categoryA,
				CategoryB: c.categoryB,
			})
		}
	}

	agreement := 0.0
	if len(comparisons) > 0 {
		agreement = float64(agreements) / float64(len(comparisons))
	}

	kappa := e.strategy.Kappa(agreement, comparisons)

	report := &models.ReliabilityReport{
		ID:                uuid.New().String(),
		Agreement:         agreement,
		Kappa:             kappa,
		Quality:           qualityBand(kappa),
		TotalComparisons:  len(comparisons),
		AgreementCount:    agreements,
		DisagreementCount: len(comparisons) - agreements,
		Disagreements:     samples,
		CoderCount:        len(submissions),
		Strategy:          e.strategy.Name(),
		CreatedAt:         time.Now(),
	}

	e.logger.Info("Reliability report computed",
		zap.Int("coders", report.CoderCount),
		zap.Int("comparisons", report.TotalComparisons),
		zap.Float64("kappa", report.Kappa),
		zap.String("quality", report.Quality),
	)

	return report, nil
}

// matchPair links two submissions' codings by exact passage equality and
// resolves both coders' category names against their own frozen category
// copies.
func matchPair(a, b *models.CoderSubmission) []comparison {
	byPassage := make(map[string]*models.Coding, len(b.Codings))
	for i := range b.Codings {
		byPassage[b.Codings[i].Passage] = &b.Codings[i]
	}

	var matched []comparison
	for i := range a.Codings {
		other, ok := byPassage[a.Codings[i].Passage]
		if !ok {
			continue
		}
		matched = append(matched, comparison{
			passage:   a.Codings[i].Passage,
			coderA:    a.CoderName,
			coderB:    b.CoderName,
			categoryA: a.CategoryName(a.Codings[i].CategoryID),
			categoryB: b.CategoryName(other.CategoryID),
		})
	}
	return matched
}

func qualityBand(kappa float64) string {
	switch {
	case kappa >= 0.80:
		return "excellent"
	case kappa >= 0.70:
		return "good"
	case kappa >= 0.60:
		return "moderate"
	default:
		return "low"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
