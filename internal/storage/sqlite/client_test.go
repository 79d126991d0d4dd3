package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qda-agent/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDocumentRoundTrip(t *testing.T) {
	c := newTestClient(t)

	doc := &models.Document{
		ID:        "d1",
		Name:      "interview-1.txt",
		Text:      "The team reported delays.",
		WordCount: 4,
		CreatedAt: time.Now(),
	}
	require.NoError(t, c.InsertDocument(doc))

	got, err := c.GetDocument("d1")
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.Text, got.Text)
	assert.Equal(t, 4, got.WordCount)
}

func TestDeleteDocumentCascadesCodings(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertDocument(&models.Document{ID: "d1", Name: "a", Text: "x", CreatedAt: time.Now()}))
	require.NoError(t, c.InsertCoding(&models.Coding{
		ID: "cd1", DocumentID: "d1", CategoryID: "c1", Passage: "x", CreatedAt: time.Now(),
	}))

	require.NoError(t, c.DeleteDocument("d1"))

	codings, err := c.ListCodings()
	require.NoError(t, err)
	assert.Empty(t, codings)
}

func TestDeleteCategoryKeepsCodings(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertDocument(&models.Document{ID: "d1", Name: "a", Text: "x", CreatedAt: time.Now()}))
	require.NoError(t, c.InsertCategory(&models.Category{ID: "c1", Name: "Process", Origin: models.OriginManual, CreatedAt: time.Now()}))
	require.NoError(t, c.InsertCoding(&models.Coding{
		ID: "cd1", DocumentID: "d1", CategoryID: "c1", Passage: "x", CreatedAt: time.Now(),
	}))

	require.NoError(t, c.DeleteCategory("c1"))

	codings, err := c.ListCodings()
	require.NoError(t, err)
	require.Len(t, codings, 1)

	snapshot, err := c.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, models.UnknownCategory, snapshot.CategoryName("c1"))
}

func TestSubmissionRoundTrip(t *testing.T) {
	c := newTestClient(t)

	sub := &models.CoderSubmission{
		ID:        "s1",
		CoderName: "alex",
		Codings: []models.Coding{
			{ID: "cd1", DocumentID: "d1", CategoryID: "c1", Passage: "The team reported delays."},
		},
		Categories:    []models.Category{{ID: "c1", Name: "Process"}},
		TotalCodings:  1,
		DocumentCount: 1,
		CategoryCount: 1,
		ImportedAt:    time.Now(),
	}
	require.NoError(t, c.InsertSubmission(sub))

	subs, err := c.ListSubmissions()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "alex", subs[0].CoderName)
	require.Len(t, subs[0].Codings, 1)
	assert.Equal(t, "Process", subs[0].CategoryName("c1"))
}

func TestLatestReliabilityReport(t *testing.T) {
	c := newTestClient(t)

	got, err := c.LatestReliabilityReport()
	require.NoError(t, err)
	assert.Nil(t, got, "no report yet")

	old := &models.ReliabilityReport{ID: "r1", Kappa: 0.5, Quality: "low", Strategy: "simple_agreement", CreatedAt: time.Now().Add(-time.Hour)}
	latest := &models.ReliabilityReport{
		ID: "r2", Agreement: 1.0, Kappa: 1.0, Quality: "excellent",
		TotalComparisons: 2, AgreementCount: 2, Strategy: "simple_agreement",
		Disagreements: []models.Disagreement{},
		CreatedAt:     time.Now(),
	}
	require.NoError(t, c.InsertReliabilityReport(old))
	require.NoError(t, c.InsertReliabilityReport(latest))

	got, err = c.LatestReliabilityReport()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r2", got.ID)
	assert.Equal(t, 1.0, got.Kappa)
}

func TestLoadSnapshotAssemblesEverything(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertDocument(&models.Document{ID: "d1", Name: "a", Text: "one two three", WordCount: 3, CreatedAt: time.Now()}))
	require.NoError(t, c.InsertCategory(&models.Category{ID: "c1", Name: "Process", Origin: models.OriginGenerated, Properties: []string{"formal"}, CreatedAt: time.Now()}))
	require.NoError(t, c.InsertCoding(&models.Coding{ID: "cd1", DocumentID: "d1", CategoryID: "c1", Passage: "one two", CreatedAt: time.Now()}))
	require.NoError(t, c.InsertResearchQuestion(&models.ResearchQuestion{ID: "q1", Question: "How?", Origin: models.OriginGenerated, CreatedAt: time.Now()}))
	require.NoError(t, c.InsertPattern(&models.Pattern{ID: "p1", Name: "Cycle", Categories: []string{"Process"}, Origin: models.OriginGenerated, CreatedAt: time.Now()}))
	require.NoError(t, c.InsertInterpretation(&models.Interpretation{ID: "i1", Text: "note", CreatedAt: time.Now()}))

	snapshot, err := c.LoadSnapshot()
	require.NoError(t, err)

	assert.Len(t, snapshot.Documents, 1)
	assert.Len(t, snapshot.Categories, 1)
	assert.Equal(t, []string{"formal"}, snapshot.Categories[0].Properties)
	assert.Len(t, snapshot.Codings, 1)
	assert.Len(t, snapshot.ResearchQuestions, 1)
	assert.Len(t, snapshot.Patterns, 1)
	assert.Len(t, snapshot.Interpretations, 1)
	assert.Equal(t, 3, snapshot.TotalWords())
	assert.Nil(t, snapshot.Reliability)
}
