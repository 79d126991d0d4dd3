package cooccurrence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qda-agent/backend/internal/storage/models"
)

func snapshot() *models.ProjectSnapshot {
	return &models.ProjectSnapshot{
		Documents: []models.Document{
			{ID: "d1", Name: "interview-1"},
			{ID: "d2", Name: "interview-2"},
		},
		Categories: []models.Category{
			{ID: "c1", Name: "Process"},
			{ID: "c2", Name: "Structure"},
			{ID: "c3", Name: "Culture"},
		},
	}
}

func TestBuildEmptyProject(t *testing.T) {
	m := Build(&models.ProjectSnapshot{})
	assert.Empty(t, m.Categories)

	m = Build(snapshot())
	for _, a := range m.Categories {
		for _, b := range m.Categories {
			assert.Zero(t, m.Value(a, b))
		}
	}
}

func TestBuildCountsOrderedPairsPerDocument(t *testing.T) {
	s := snapshot()
	// d1: two Process codings and one Structure coding.
	s.Codings = []models.Coding{
		{ID: "k1", DocumentID: "d1", CategoryID: "c1"},
		{ID: "k2", DocumentID: "d1", CategoryID: "c1"},
		{ID: "k3", DocumentID: "d1", CategoryID: "c2"},
		// d2: one coding only, no pairs.
		{ID: "k4", DocumentID: "d2", CategoryID: "c3"},
	}

	m := Build(s)

	// Two Process codings: 2 ordered pairs on the diagonal.
	assert.Equal(t, 2, m.Value("Process", "Process"))
	// Process x Structure: 2 codings x 1 coding in each direction.
	assert.Equal(t, 2, m.Value("Process", "Structure"))
	assert.Equal(t, 2, m.Value("Structure", "Process"))
	assert.Zero(t, m.Value("Structure", "Structure"))
	assert.Zero(t, m.Value("Culture", "Culture"))
	assert.Zero(t, m.Value("Process", "Culture"), "codings in different documents never pair")
}

func TestBuildSymmetry(t *testing.T) {
	s := snapshot()
	s.Codings = []models.Coding{
		{ID: "k1", DocumentID: "d1", CategoryID: "c1"},
		{ID: "k2", DocumentID: "d1", CategoryID: "c2"},
		{ID: "k3", DocumentID: "d1", CategoryID: "c3"},
		{ID: "k4", DocumentID: "d2", CategoryID: "c2"},
		{ID: "k5", DocumentID: "d2", CategoryID: "c3"},
	}

	m := Build(s)
	for _, a := range m.Categories {
		for _, b := range m.Categories {
			assert.Equal(t, m.Value(a, b), m.Value(b, a), "%s/%s", a, b)
		}
	}
}

func TestBuildDeletedCategoryCountsAsUnknown(t *testing.T) {
	s := snapshot()
	s.Codings = []models.Coding{
		{ID: "k1", DocumentID: "d1", CategoryID: "c1"},
		{ID: "k2", DocumentID: "d1", CategoryID: "deleted-cat"},
	}

	m := Build(s)
	assert.Contains(t, m.Categories, models.UnknownCategory)
	assert.Equal(t, 1, m.Value("Process", models.UnknownCategory))
}

func TestDistinctPairsDeduplicates(t *testing.T) {
	s := snapshot()
	s.Codings = []models.Coding{
		{ID: "k1", DocumentID: "d1", CategoryID: "c1"},
		{ID: "k2", DocumentID: "d1", CategoryID: "c1"},
		{ID: "k3", DocumentID: "d1", CategoryID: "c2"},
	}

	m := DistinctPairs(s)
	assert.Equal(t, 1, m.Value("Process", "Structure"))
	assert.Equal(t, 1, m.Value("Structure", "Process"))
	assert.Equal(t, 1, m.Value("Process", "Process"))
}
