package quality

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qda-agent/backend/internal/storage/models"
)

func docWithWords(n int) models.Document {
	return models.Document{
		ID:        "doc",
		Name:      "transcript.txt",
		Text:      strings.Repeat("word ", n),
		WordCount: n,
	}
}

func codings(n int, categoryID string) []models.Coding {
	out := make([]models.Coding, n)
	for i := range out {
		out[i] = models.Coding{ID: string(rune('a' + i)), DocumentID: "doc", CategoryID: categoryID}
	}
	return out
}

func TestAssessEmptyProject(t *testing.T) {
	e := NewEngine(Config{}, nil)

	report := e.Assess(&models.ProjectSnapshot{})

	assert.GreaterOrEqual(t, report.OverallScore, 0)
	assert.LessOrEqual(t, report.OverallScore, 100)
	assert.Equal(t, models.MetricStatusLow, report.Density.Status)
	assert.Equal(t, models.MetricStatusNotAvailable, report.Reliability.Status)
	assert.Equal(t, "D", report.Grade)
	assert.NotEmpty(t, report.Recommendations)
}

func TestCodingDensityBands(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	tests := []struct {
		words   int
		codings int
		status  string
	}{
		{1000, 25, models.MetricStatusExcellent},  // 2.5 per 100 words
		{1000, 16, models.MetricStatusGood},       // 1.6
		{1000, 11, models.MetricStatusAcceptable}, // 1.1
		{1000, 5, models.MetricStatusLow},         // 0.5
	}

	for _, tt := range tests {
		state := &models.ProjectSnapshot{
			Documents: []models.Document{docWithWords(tt.words)},
			Codings:   codings(tt.codings, "c1"),
		}
		got := e.codingDensity(state)
		assert.Equal(t, tt.status, got.Status, "words=%d codings=%d", tt.words, tt.codings)
	}
}

func TestCategorySaturationAndEvenness(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	state := &models.ProjectSnapshot{
		Categories: []models.Category{
			{ID: "c1", Name: "A"}, {ID: "c2", Name: "B"},
			{ID: "c3", Name: "C"}, {ID: "c4", Name: "D"},
		},
		Codings: append(codings(3, "c1"), codings(3, "c2")...),
	}

	got := e.categorySaturation(state)
	assert.InDelta(t, 50.0, got.Value, 1e-9)
	assert.Equal(t, models.MetricStatusNeedsImprovement, got.Status)
	// Both used categories carry 3 codings each: perfectly even.
	assert.InDelta(t, 1.0, got.Evenness, 1e-9)
}

func TestEvennessSkewedUsage(t *testing.T) {
	usage := map[string]int{"c1": 9, "c2": 1}
	// mean 5, stdev 4 -> 1 - 0.8 = 0.2
	assert.InDelta(t, 0.2, evenness(usage), 1e-9)

	assert.Equal(t, 0.0, evenness(nil))
}

func TestReliabilityMetricFromReport(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	state := &models.ProjectSnapshot{Reliability: &models.ReliabilityReport{Kappa: 0.84}}
	got := e.reliabilityMetric(state)
	assert.Equal(t, models.MetricStatusExcellent, got.Status)
	assert.Equal(t, 100.0, got.Value, "capped at 100 above the benchmark")

	state.Reliability.Kappa = 0.35
	got = e.reliabilityMetric(state)
	assert.Equal(t, models.MetricStatusLow, got.Status)
	assert.InDelta(t, 50.0, got.Value, 1e-9)
}

func TestCompletenessMilestones(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	full := &models.ProjectSnapshot{
		Documents:         []models.Document{docWithWords(100)},
		Categories:        []models.Category{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		ResearchQuestions: []models.ResearchQuestion{{ID: "q1"}},
		Codings:           codings(1, "c1"),
		Patterns:          []models.Pattern{{ID: "p1"}},
		Interpretations:   []models.Interpretation{{ID: "i1"}},
		Submissions:       []models.CoderSubmission{{ID: "s1"}, {ID: "s2"}},
		Reliability:       &models.ReliabilityReport{},
	}
	assert.InDelta(t, 100.0, e.completeness(full).Value, 1e-9)

	half := &models.ProjectSnapshot{
		Documents:  []models.Document{docWithWords(100)},
		Categories: []models.Category{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		Codings:    codings(1, "c1"),
		Patterns:   []models.Pattern{{ID: "p1"}},
	}
	assert.InDelta(t, 50.0, e.completeness(half).Value, 1e-9)
}

func TestCompositeRenormalizesWithoutReliability(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	// 400 words, 8 codings -> density 2.0; 2 of 3 categories used -> 66.67;
	// 3 of 8 milestones -> 37.5. No reliability report.
	state := &models.ProjectSnapshot{
		Documents:  []models.Document{docWithWords(400)},
		Categories: []models.Category{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		Codings:    append(codings(4, "c1"), codings(4, "c2")...),
	}

	report := e.Assess(state)

	densityNorm := math.Min(100, 2.0/2.5*100) // 80
	expected := (densityNorm*20 + (200.0/3.0)*25 + 37.5*25) / 70.0
	assert.Equal(t, int(math.Round(expected)), report.OverallScore)
	assert.Equal(t, models.MetricStatusNotAvailable, report.Reliability.Status)
}

func TestCompositeWithAllMetrics(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	state := &models.ProjectSnapshot{
		Documents:         []models.Document{docWithWords(400)},
		Categories:        []models.Category{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}},
		ResearchQuestions: []models.ResearchQuestion{{ID: "q1"}},
		Codings:           append(codings(5, "c1"), codings(5, "c2")...),
		Patterns:          []models.Pattern{{ID: "p1"}},
		Interpretations:   []models.Interpretation{{ID: "i1"}},
		Submissions:       []models.CoderSubmission{{ID: "s1"}, {ID: "s2"}},
		Reliability:       &models.ReliabilityReport{Kappa: 0.9},
	}

	report := e.Assess(state)

	// density 2.5 -> 100, saturation 2/3 -> 66.67, reliability capped 100,
	// completeness 8/8 -> 100.
	expected := (100*0.20 + (200.0/3.0)*0.25 + 100*0.30 + 100*0.25)
	assert.Equal(t, int(math.Round(expected)), report.OverallScore)
	assert.Equal(t, "A+", report.Grade)
	assert.Equal(t, models.MetricStatusExcellent, report.Status)
}

func TestRecommendationSeverities(t *testing.T) {
	density := models.MetricResult{Name: "density", Value: 0.3, Benchmark: 2.5, Status: models.MetricStatusLow}
	saturation := models.MetricResult{Name: "saturation", Value: 40, Benchmark: 85, Status: models.MetricStatusNeedsImprovement}
	reliability := models.MetricResult{Name: "reliability", Benchmark: 0.70, Status: models.MetricStatusNotAvailable}
	completeness := models.MetricResult{Name: "completeness", Value: 25, Benchmark: 100, Status: models.MetricStatusNeedsImprovement}

	recs := recommendations(density, saturation, reliability, completeness)
	require.Len(t, recs, 4)

	bySeverity := map[string][]string{}
	for _, r := range recs {
		bySeverity[r.Severity] = append(bySeverity[r.Severity], r.Category)
	}
	assert.Contains(t, bySeverity["critical"], "density")
	assert.Contains(t, bySeverity["warning"], "saturation")
	assert.Contains(t, bySeverity["warning"], "completeness")
	assert.Contains(t, bySeverity["info"], "reliability")
}

func TestRecommendationLowReliabilityIsCritical(t *testing.T) {
	good := models.MetricResult{Name: "density", Value: 2.2, Benchmark: 2.5, Status: models.MetricStatusExcellent}
	saturation := models.MetricResult{Name: "saturation", Value: 90, Benchmark: 85, Status: models.MetricStatusExcellent}
	reliability := models.MetricResult{Name: "reliability", Value: 40, Benchmark: 0.70, Status: models.MetricStatusLow}
	completeness := models.MetricResult{Name: "completeness", Value: 100, Benchmark: 100, Status: models.MetricStatusExcellent}

	recs := recommendations(good, saturation, reliability, completeness)
	require.Len(t, recs, 1)
	assert.Equal(t, "critical", recs[0].Severity)
	assert.Equal(t, "reliability", recs[0].Category)
}
