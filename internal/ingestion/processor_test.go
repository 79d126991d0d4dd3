package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qda-agent/backend/internal/storage/models"
)

type memoryStore struct {
	docs []*models.Document
}

func (m *memoryStore) InsertDocument(doc *models.Document) error {
	m.docs = append(m.docs, doc)
	return nil
}

func TestIngestTextCountsWords(t *testing.T) {
	store := &memoryStore{}
	p := NewProcessor(store)

	doc, err := p.IngestText("interview-1.txt", "  The team   reported delays.\n")
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "interview-1.txt", doc.Name)
	assert.Equal(t, "The team   reported delays.", doc.Text)
	assert.Equal(t, 4, doc.WordCount)
	require.Len(t, store.docs, 1)
}

func TestIngestTextRejectsEmpty(t *testing.T) {
	p := NewProcessor(&memoryStore{})

	_, err := p.IngestText("blank.txt", "   \n\t ")
	assert.Error(t, err)
}

func TestIngestHTMLStripsMarkup(t *testing.T) {
	store := &memoryStore{}
	p := NewProcessor(store)

	html := `<html><head><title>Focus Group 3</title><style>p{}</style></head>
		<body><nav>menu</nav><p>We lost   the weekly sync.</p><script>x()</script></body></html>`

	doc, err := p.IngestHTML("", html)
	require.NoError(t, err)

	assert.Equal(t, "Focus Group 3", doc.Name)
	assert.Equal(t, "We lost the weekly sync.", doc.Text)
	assert.NotContains(t, doc.Text, "menu")
	assert.NotContains(t, doc.Text, "x()")
}

func TestIngestHTMLExplicitNameWins(t *testing.T) {
	store := &memoryStore{}
	p := NewProcessor(store)

	doc, err := p.IngestHTML("session-a", `<html><head><title>ignored</title></head><body><p>words here</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "session-a", doc.Name)
}
