package reliability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qda-agent/backend/internal/storage/models"
)

func submission(coder string, categories []models.Category, codings ...models.Coding) models.CoderSubmission {
	return models.CoderSubmission{
		ID:           coder,
		CoderName:    coder,
		Categories:   categories,
		Codings:      codings,
		TotalCodings: len(codings),
	}
}

var cats = []models.Category{
	{ID: "c1", Name: "Process"},
	{ID: "c2", Name: "Structure"},
}

func TestComputeRequiresTwoSubmissions(t *testing.T) {
	e := NewEngine(nil, nil)

	_, err := e.Compute(nil)
	assert.ErrorIs(t, err, ErrNotEnoughCoders)

	_, err = e.Compute([]models.CoderSubmission{submission("solo", cats)})
	assert.ErrorIs(t, err, ErrNotEnoughCoders)
}

func TestComputePerfectAgreement(t *testing.T) {
	e := NewEngine(nil, nil)

	passage := "The team reported delays."
	subs := []models.CoderSubmission{
		submission("alice", cats, models.Coding{Passage: passage, CategoryID: "c1"}),
		submission("bob", cats, models.Coding{Passage: passage, CategoryID: "c1"}),
	}

	report, err := e.Compute(subs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalComparisons)
	assert.Equal(t, 1, report.AgreementCount)
	assert.Equal(t, 1.0, report.Kappa)
	assert.Equal(t, "excellent", report.Quality)
	assert.Equal(t, 2, report.CoderCount)
	assert.Empty(t, report.Disagreements)
}

func TestComputeDisagreement(t *testing.T) {
	e := NewEngine(nil, nil)

	passage := "The team reported delays."
	subs := []models.CoderSubmission{
		submission("alice", cats, models.Coding{Passage: passage, CategoryID: "c1"}),
		submission("bob", cats, models.Coding{Passage: passage, CategoryID: "c2"}),
	}

	report, err := e.Compute(subs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalComparisons)
	assert.Equal(t, 0, report.AgreementCount)
	assert.Equal(t, 1, report.DisagreementCount)
	assert.Equal(t, 0.0, report.Kappa)
	assert.Equal(t, "low", report.Quality)

	require.Len(t, report.Disagreements, 1)
	d := report.Disagreements[0]
	assert.Equal(t, "alice", d.CoderA)
	assert.Equal(t, "bob", d.CoderB)
	assert.Equal(t, "Process", d.CategoryA)
	assert.Equal(t, "Structure", d.CategoryB)
}

func TestComputeNoSharedPassages(t *testing.T) {
	e := NewEngine(nil, nil)

	subs := []models.CoderSubmission{
		submission("alice", cats, models.Coding{Passage: "alpha passage text", CategoryID: "c1"}),
		submission("bob", cats, models.Coding{Passage: "omega passage text", CategoryID: "c1"}),
	}

	report, err := e.Compute(subs)
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalComparisons)
	assert.Equal(t, 0.0, report.Kappa)
	assert.Equal(t, "low", report.Quality)
}

func TestComputeDeletedCategoryResolvesUnknown(t *testing.T) {
	e := NewEngine(nil, nil)

	passage := "A passage coded against a category that was later removed."
	subs := []models.CoderSubmission{
		submission("alice", cats, models.Coding{Passage: passage, CategoryID: "gone"}),
		submission("bob", cats, models.Coding{Passage: passage, CategoryID: "c1"}),
	}

	report, err := e.Compute(subs)
	require.NoError(t, err)
	require.Len(t, report.Disagreements, 1)
	assert.Equal(t, models.UnknownCategory, report.Disagreements[0].CategoryA)
}

func TestComputeDisagreementSampleCapAndTruncation(t *testing.T) {
	e := NewEngine(nil, nil)

	longPassage := strings.Repeat("x", 150)
	var codingsA, codingsB []models.Coding
	for i := 0; i < 15; i++ {
		p := longPassage + string(rune('a'+i))
		codingsA = append(codingsA, models.Coding{Passage: p, CategoryID: "c1"})
		codingsB = append(codingsB, models.Coding{Passage: p, CategoryID: "c2"})
	}

	report, err := e.Compute([]models.CoderSubmission{
		submission("alice", cats, codingsA...),
		submission("bob", cats, codingsB...),
	})
	require.NoError(t, err)

	assert.Equal(t, 15, report.TotalComparisons)
	assert.Len(t, report.Disagreements, 10)
	for _, d := range report.Disagreements {
		assert.LessOrEqual(t, len(d.Passage), 100)
	}
}

func TestComputeThreeCodersPairwise(t *testing.T) {
	e := NewEngine(nil, nil)

	passage := "A passage seen by all three coders."
	subs := []models.CoderSubmission{
		submission("alice", cats, models.Coding{Passage: passage, CategoryID: "c1"}),
		submission("bob", cats, models.Coding{Passage: passage, CategoryID: "c1"}),
		submission("carol", cats, models.Coding{Passage: passage, CategoryID: "c2"}),
	}

	report, err := e.Compute(subs)
	require.NoError(t, err)

	// Three unordered pairs, one comparison each.
	assert.Equal(t, 3, report.TotalComparisons)
	assert.Equal(t, 1, report.AgreementCount)
	assert.Equal(t, 3, report.CoderCount)
	assert.InDelta(t, 1.0/3.0, report.Kappa, 1e-9)
}

func TestChanceCorrectedKappa(t *testing.T) {
	e := NewEngine(ChanceCorrectedKappa{}, nil)

	// Four shared passages: both coders split evenly between two categories
	// and agree on two of four, exactly what chance predicts.
	passages := []string{
		"first shared passage among coders",
		"second shared passage among coders",
		"third shared passage among coders",
		"fourth shared passage among coders",
	}
	codingsA := []models.Coding{
		{Passage: passages[0], CategoryID: "c1"},
		{Passage: passages[1], CategoryID: "c1"},
		{Passage: passages[2], CategoryID: "c2"},
		{Passage: passages[3], CategoryID: "c2"},
	}
	codingsB := []models.Coding{
		{Passage: passages[0], CategoryID: "c1"},
		{Passage: passages[1], CategoryID: "c2"},
		{Passage: passages[2], CategoryID: "c1"},
		{Passage: passages[3], CategoryID: "c2"},
	}

	report, err := e.Compute([]models.CoderSubmission{
		submission("alice", cats, codingsA...),
		submission("bob", cats, codingsB...),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, report.Agreement, 1e-9)
	assert.InDelta(t, 0.0, report.Kappa, 1e-9)
	assert.Equal(t, "cohens_kappa", report.Strategy)
}

func TestChanceCorrectedKappaSingleCategory(t *testing.T) {
	s := ChanceCorrectedKappa{}

	compared := []comparison{
		{categoryA: "Process", categoryB: "Process"},
		{categoryA: "Process", categoryB: "Process"},
	}
	assert.Equal(t, 1.0, s.Kappa(1.0, compared))
	assert.Equal(t, 0.0, s.Kappa(0.0, nil))
}
