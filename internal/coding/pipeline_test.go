package coding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qda-agent/backend/internal/storage/models"
)

type fakeAnalyzer struct {
	mu        sync.Mutex
	calls     int
	responses []string
	errs      []error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", nil
}

type fakeStore struct {
	mu      sync.Mutex
	codings []*models.Coding
	fail    bool
}

func (f *fakeStore) InsertCoding(c *models.Coding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store down")
	}
	f.codings = append(f.codings, c)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	hits    int
}

func (m *memoryCache) GetAnalysis(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *memoryCache) SetAnalysis(_ context.Context, key, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string]string{}
	}
	m.entries[key] = response
	return nil
}

var pipelineCategories = []models.Category{
	{ID: "c1", Name: "Communication"},
	{ID: "c2", Name: "Challenges"},
}

const chunkResponse = `Passage: "The weekly sync stopped happening after the reorg."
Category: Communication
Rationale: Loss of an information channel.`

func testDoc(chunks int) *models.Document {
	// Each chunk worth of text is one 200-char run, chunk size below is 200.
	return &models.Document{
		ID:        "d1",
		Name:      "interview-1.txt",
		Text:      strings.Repeat(strings.Repeat("a", 199)+" ", chunks),
		WordCount: chunks,
	}
}

func newTestPipeline(a Analyzer, s CodingStore) *Pipeline {
	return NewPipeline(a, s, NewParser(ModeLenient, nil), stubPrompt, PipelineConfig{
		ChunkSize:       200,
		MinChunkContent: 100,
		MaxWorkers:      2,
	}, nil)
}

func stubPrompt(segment string, categories []string) string {
	return strings.Join(categories, ",") + "|" + segment
}

func TestAnalyzeDocumentStoresParsedCodings(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: []string{chunkResponse, chunkResponse}}
	store := &fakeStore{}
	p := newTestPipeline(analyzer, store)

	res, err := p.AnalyzeDocument(context.Background(), testDoc(2), pipelineCategories)
	require.NoError(t, err)

	assert.Equal(t, 2, res.ChunksAnalyzed)
	assert.Equal(t, 0, res.ChunksFailed)
	assert.Equal(t, 2, res.CodingsCreated)
	require.Len(t, store.codings, 2)

	first := store.codings[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "d1", first.DocumentID)
	assert.Equal(t, "c1", first.CategoryID)
	assert.Equal(t, "interview-1.txt", first.SourceDocument)
}

func TestAnalyzeDocumentSkipsFailedChunks(t *testing.T) {
	analyzer := &fakeAnalyzer{
		responses: []string{"", chunkResponse, ""},
		errs:      []error{errors.New("rate limited"), nil, errors.New("timeout")},
	}
	store := &fakeStore{}
	p := newTestPipeline(analyzer, store)

	res, err := p.AnalyzeDocument(context.Background(), testDoc(3), pipelineCategories)
	require.NoError(t, err, "per-chunk failures must not abort the run")

	assert.Equal(t, 1, res.ChunksAnalyzed)
	assert.Equal(t, 2, res.ChunksFailed)
	assert.Equal(t, 1, res.CodingsCreated)
}

func TestAnalyzeDocumentCancelledKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	analyzer := &fakeAnalyzer{responses: []string{chunkResponse, chunkResponse, chunkResponse}}
	store := &fakeStore{}
	p := newTestPipeline(analyzer, store)
	p.OnProgress = func(ProgressEvent) { cancel() }

	res, err := p.AnalyzeDocument(ctx, testDoc(3), pipelineCategories)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ChunksAnalyzed, "cancellation stops further chunk requests")
	assert.Len(t, store.codings, 1, "already-parsed codings remain")
}

func TestAnalyzeDocumentUsesCache(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: []string{chunkResponse}}
	store := &fakeStore{}
	cache := &memoryCache{}
	p := newTestPipeline(analyzer, store).WithCache(cache)

	doc := testDoc(1)
	_, err := p.AnalyzeDocument(context.Background(), doc, pipelineCategories)
	require.NoError(t, err)
	assert.Equal(t, 1, analyzer.calls)

	// Second run over the same text hits the cache, not the collaborator.
	_, err = p.AnalyzeDocument(context.Background(), doc, pipelineCategories)
	require.NoError(t, err)
	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, 1, cache.hits)
}

func TestAnalyzeDocumentStoreFailureDoesNotAbort(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: []string{chunkResponse}}
	store := &fakeStore{fail: true}
	p := newTestPipeline(analyzer, store)

	res, err := p.AnalyzeDocument(context.Background(), testDoc(1), pipelineCategories)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksAnalyzed)
	assert.Equal(t, 0, res.CodingsCreated)
}

func TestAnalyzeProjectBoundedWorkers(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: []string{chunkResponse, chunkResponse, chunkResponse, chunkResponse}}
	store := &fakeStore{}
	p := newTestPipeline(analyzer, store)

	docs := []models.Document{*testDoc(1), *testDoc(1), *testDoc(1), *testDoc(1)}
	for i := range docs {
		docs[i].ID = string(rune('w' + i))
	}

	total := p.AnalyzeProject(context.Background(), docs, pipelineCategories)

	assert.Equal(t, 4, total.DocumentsProcessed)
	assert.Equal(t, 4, total.ChunksAnalyzed)
	assert.Equal(t, 4, total.CodingsCreated)
}

func TestProgressEventsEmitted(t *testing.T) {
	analyzer := &fakeAnalyzer{responses: []string{chunkResponse, chunkResponse}}
	store := &fakeStore{}
	p := newTestPipeline(analyzer, store)

	var events []ProgressEvent
	p.OnProgress = func(e ProgressEvent) { events = append(events, e) }

	_, err := p.AnalyzeDocument(context.Background(), testDoc(2), pipelineCategories)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].ChunkIndex)
	assert.Equal(t, 1, events[1].ChunkIndex)
	assert.Equal(t, 2, events[1].ChunksDone)
}
