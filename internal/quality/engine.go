package quality

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/storage/models"
)

const completenessMilestones = 8

type Config struct {
	DensityBenchmark     float64
	SaturationBenchmark  float64
	ReliabilityBenchmark float64
	DensityWeight        float64
	SaturationWeight     float64
	ReliabilityWeight    float64
	CompletenessWeight   float64
}

func DefaultConfig() Config {
	return Config{
		DensityBenchmark:     2.5,
		SaturationBenchmark:  85,
		ReliabilityBenchmark: 0.70,
		DensityWeight:        0.20,
		SaturationWeight:     0.25,
		ReliabilityWeight:    0.30,
		CompletenessWeight:   0.25,
	}
}

type Engine struct {
	cfg    Config
	logger *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Assess regenerates the full quality report from a project snapshot. The
// snapshot is read only; prior reports are never merged.
func (e *Engine) Assess(state *models.ProjectSnapshot) *models.QualityReport {
	density := e.codingDensity(state)
	saturation := e.categorySaturation(state)
	reliability := e.reliabilityMetric(state)
	completeness := e.completeness(state)

	score := e.compositeScore(density, saturation, reliability, completeness)
	grade := letterGrade(score)

	report := &models.QualityReport{
		ID:              uuid.New().String(),
		Density:         density,
		Saturation:      saturation,
		Reliability:     reliability,
		Completeness:    completeness,
		OverallScore:    score,
		Grade:           grade,
		Status:          gradeStatus(score),
		Recommendations: recommendations(density, saturation, reliability, completeness),
		GeneratedAt:     time.Now(),
	}

	e.logger.Info("Quality report generated",
		zap.Int("score", report.OverallScore),
		zap.String("grade", report.Grade),
		zap.Int("recommendations", len(report.Recommendations)),
	)

	return report
}

// codingDensity measures codings per 100 words of collected material.
func (e *Engine) codingDensity(state *models.ProjectSnapshot) models.MetricResult {
	words := state.TotalWords()

	value := 0.0
	if words > 0 {
		value = float64(len(state.Codings)) / (float64(words) / 100.0)
	}

	status := models.MetricStatusLow
	switch {
	case value >= 2.0:
		status = models.MetricStatusExcellent
	case value >= 1.5:
		status = models.MetricStatusGood
	case value >= 1.0:
		status = models.MetricStatusAcceptable
	}

	return models.MetricResult{
		Name:      "density",
		Value:     value,
		Benchmark: e.cfg.DensityBenchmark,
		Status:    status,
	}
}

// categorySaturation measures the share of defined categories actually used,
// with an evenness sub-score over the usage distribution of used categories.
func (e *Engine) categorySaturation(state *models.ProjectSnapshot) models.MetricResult {
	usage := make(map[string]int)
	for _, c := range state.Codings {
		usage[c.CategoryID]++
	}

	value := 0.0
	if len(state.Categories) > 0 {
		used := 0
		for _, cat := range state.Categories {
			if usage[cat.ID] > 0 {
				used++
			}
		}
		value = float64(used) / float64(len(state.Categories)) * 100
	}

	status := models.MetricStatusNeedsImprovement
	switch {
	case value >= 80:
		status = models.MetricStatusExcellent
	case value >= 60:
		status = models.MetricStatusGood
	}

	return models.MetricResult{
		Name:      "saturation",
		Value:     value,
		Benchmark: e.cfg.SaturationBenchmark,
		Status:    status,
		Evenness:  evenness(usage),
	}
}

// evenness is max(0, 1 - stdev/mean) over the usage counts of used
// categories; 1 means perfectly balanced use.
func evenness(usage map[string]int) float64 {
	if len(usage) == 0 {
		return 0
	}

	sum := 0.0
	for _, n := range usage {
		sum += float64(n)
	}
	mean := sum / float64(len(usage))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, n := range usage {
		variance += (float64(n) - mean) * (float64(n) - mean)
	}
	stdev := math.Sqrt(variance / float64(len(usage)))

	return math.Max(0, 1-stdev/mean)
}

func (e *Engine) reliabilityMetric(state *models.ProjectSnapshot) models.MetricResult {
	if state.Reliability == nil {
		return models.MetricResult{
			Name:      "reliability",
			Benchmark: e.cfg.ReliabilityBenchmark,
			Status:    models.MetricStatusNotAvailable,
		}
	}

	kappa := state.Reliability.Kappa
	value := math.Min(100, kappa/e.cfg.ReliabilityBenchmark*100)

	status := models.MetricStatusLow
	switch {
	case kappa >= 0.80:
		status = models.MetricStatusExcellent
	case kappa >= 0.70:
		status = models.MetricStatusGood
	case kappa >= 0.60:
		status = models.MetricStatusAcceptable
	}

	return models.MetricResult{
		Name:      "reliability",
		Value:     value,
		Benchmark: e.cfg.ReliabilityBenchmark,
		Status:    status,
	}
}

func (e *Engine) completeness(state *models.ProjectSnapshot) models.MetricResult {
	satisfied := 0
	milestones := []bool{
		len(state.Documents) >= 1,
		len(state.Categories) >= 3,
		len(state.ResearchQuestions) >= 1,
		len(state.Codings) >= 1,
		len(state.Patterns) >= 1,
		len(state.Interpretations) >= 1,
		len(state.Submissions) >= 2,
		state.Reliability != nil,
	}
	for _, ok := range milestones {
		if ok {
			satisfied++
		}
	}

	value := float64(satisfied) / completenessMilestones * 100

	status := models.MetricStatusNeedsImprovement
	switch {
	case value >= 80:
		status = models.MetricStatusExcellent
	case value >= 60:
		status = models.MetricStatusGood
	}

	return models.MetricResult{
		Name:      "completeness",
		Value:     value,
		Benchmark: 100,
		Status:    status,
	}
}

// compositeScore combines the available metrics under renormalized weights.
// An unavailable reliability metric is excluded and its weight redistributed
// proportionally, so the composite always normalizes over the weight mass
// that is actually present.
func (e *Engine) compositeScore(density, saturation, reliability, completeness models.MetricResult) int {
	type weighted struct {
		score  float64
		weight float64
	}

	parts := []weighted{
		{normalizedScore(density), e.cfg.DensityWeight},
		{normalizedScore(saturation), e.cfg.SaturationWeight},
		{normalizedScore(completeness), e.cfg.CompletenessWeight},
	}
	if reliability.Status != models.MetricStatusNotAvailable {
		parts = append(parts, weighted{normalizedScore(reliability), e.cfg.ReliabilityWeight})
	}

	totalWeight := 0.0
	for _, p := range parts {
		totalWeight += p.weight
	}
	if totalWeight == 0 {
		return 0
	}

	sum := 0.0
	for _, p := range parts {
		sum += p.score * p.weight
	}

	score := int(math.Round(sum / totalWeight))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// normalizedScore maps a metric to a 0-100 score relative to its benchmark.
// Saturation and completeness are already percentages; density and
// reliability are scaled against their benchmarks and capped.
func normalizedScore(m models.MetricResult) float64 {
	switch m.Name {
	case "density":
		if m.Benchmark == 0 {
			return 0
		}
		return math.Min(100, m.Value/m.Benchmark*100)
	case "reliability":
		return math.Min(100, m.Value)
	default:
		return math.Min(100, m.Value)
	}
}

func letterGrade(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 80:
		return "A-"
	case score >= 75:
		return "B+"
	case score >= 70:
		return "B"
	case score >= 65:
		return "B-"
	default:
		return "D"
	}
}

func gradeStatus(score int) string {
	switch {
	case score >= 90:
		return models.MetricStatusExcellent
	case score >= 75:
		return models.MetricStatusGood
	case score >= 65:
		return models.MetricStatusAcceptable
	default:
		return models.MetricStatusNeedsImprovement
	}
}

// recommendations is a pure function of the four metric results. Advisory
// only; it never blocks report generation.
func recommendations(density, saturation, reliability, completeness models.MetricResult) []models.Recommendation {
	var recs []models.Recommendation

	if density.Status != models.MetricStatusExcellent && density.Status != models.MetricStatusGood {
		severity := "warning"
		if density.Status == models.MetricStatusLow {
			severity = "critical"
		}
		recs = append(recs, models.Recommendation{
			Severity: severity,
			Category: "density",
			Message:  fmt.Sprintf("Coding density is %.2f codings per 100 words (benchmark %.1f)", density.Value, density.Benchmark),
			Action:   "Code more passages per document or remove uncoded material from the corpus",
		})
	}

	if saturation.Status != models.MetricStatusExcellent && saturation.Status != models.MetricStatusGood {
		recs = append(recs, models.Recommendation{
			Severity: "warning",
			Category: "saturation",
			Message:  fmt.Sprintf("Only %.0f%% of defined categories are in use (benchmark %.0f%%)", saturation.Value, saturation.Benchmark),
			Action:   "Apply unused categories to the material or retire categories that do not fit",
		})
	}

	switch reliability.Status {
	case models.MetricStatusNotAvailable:
		recs = append(recs, models.Recommendation{
			Severity: "info",
			Category: "reliability",
			Message:  "No inter-coder reliability report exists yet",
			Action:   "Import at least two coder submissions and run a reliability analysis",
		})
	case models.MetricStatusLow, models.MetricStatusAcceptable:
		recs = append(recs, models.Recommendation{
			Severity: "critical",
			Category: "reliability",
			Message:  fmt.Sprintf("Inter-coder agreement is below the %.2f benchmark", reliability.Benchmark),
			Action:   "Hold a coder alignment session and refine category definitions before continuing",
		})
	}

	if completeness.Status != models.MetricStatusExcellent && completeness.Status != models.MetricStatusGood {
		recs = append(recs, models.Recommendation{
			Severity: "warning",
			Category: "completeness",
			Message:  fmt.Sprintf("Methodological completeness is at %.0f%%", completeness.Value),
			Action:   "Work through the missing milestones: questions, patterns, interpretation, team coding",
		})
	}

	return recs
}
