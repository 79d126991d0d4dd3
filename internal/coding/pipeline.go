package coding

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/chunker"
	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/pkg/utils"
)

// Analyzer is the text-generation collaborator: prompt in, raw text out.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// CodingStore persists emitted codings.
type CodingStore interface {
	InsertCoding(coding *models.Coding) error
}

// ResponseCache short-circuits repeat analysis of identical prompts.
type ResponseCache interface {
	GetAnalysis(ctx context.Context, key string) (string, bool, error)
	SetAnalysis(ctx context.Context, key, response string) error
}

// PassageIndexer receives emitted codings for similarity search. Indexing
// failures are logged and ignored; the index is a derived view.
type PassageIndexer interface {
	IndexCoding(ctx context.Context, coding *models.Coding) error
}

type PromptBuilder func(segment string, categories []string) string

type ProgressEvent struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
	ChunksDone   int    `json:"chunks_done"`
	Codings      int    `json:"codings"`
	Failed       bool   `json:"failed"`
}

type PipelineConfig struct {
	ChunkSize       int
	MinChunkContent int
	MaxTokens       int
	RequestDelay    time.Duration
	MaxWorkers      int
}

// RunResult summarizes one analysis run. Failed chunks are skipped, never
// fatal; whatever parsed before a failure stays stored.
type RunResult struct {
	DocumentsProcessed int
	ChunksAnalyzed     int
	ChunksFailed       int
	CodingsCreated     int
}

type Pipeline struct {
	analyzer Analyzer
	store    CodingStore
	cache    ResponseCache
	indexer  PassageIndexer
	parser   *Parser
	prompt   PromptBuilder
	cfg      PipelineConfig
	logger   *zap.Logger

	OnProgress func(ProgressEvent)
}

func NewPipeline(analyzer Analyzer, store CodingStore, parser *Parser, prompt PromptBuilder, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 2000
	}
	if cfg.MinChunkContent <= 0 {
		cfg.MinChunkContent = chunker.DefaultMinContent
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		analyzer: analyzer,
		store:    store,
		parser:   parser,
		prompt:   prompt,
		cfg:      cfg,
		logger:   logger,
	}
}

func (p *Pipeline) WithCache(cache ResponseCache) *Pipeline {
	p.cache = cache
	return p
}

func (p *Pipeline) WithIndexer(indexer PassageIndexer) *Pipeline {
	p.indexer = indexer
	return p
}

// AnalyzeDocument runs one document through chunking, analysis, and parsing.
// Chunks are submitted sequentially with a fixed inter-call delay to respect
// upstream rate limits. Cancelling the context stops further chunk requests;
// already-persisted codings remain valid.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, doc *models.Document, categories []models.Category) (*RunResult, error) {
	names := categoryNames(categories)
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}

	result := &RunResult{DocumentsProcessed: 1}

	p.logger.Info("Analyzing document",
		zap.String("document", doc.Name),
		zap.Int("words", doc.WordCount),
	)

	ch := chunker.NewWithFloor(doc.Text, p.cfg.ChunkSize, p.cfg.MinChunkContent)
	first := true
	for {
		chunk, ok := ch.Next()
		if !ok {
			break
		}

		if err := ctx.Err(); err != nil {
			p.logger.Warn("Analysis run cancelled, keeping partial results",
				zap.String("document", doc.Name),
				zap.Int("chunks_done", result.ChunksAnalyzed),
			)
			return result, nil
		}

		if !first && p.cfg.RequestDelay > 0 {
			select {
			case <-ctx.Done():
				return result, nil
			case <-time.After(p.cfg.RequestDelay):
			}
		}
		first = false

		response, err := p.analyzeChunk(ctx, chunk.Text, names)
		if err != nil {
			// Per-chunk failures never abort the run.
			result.ChunksFailed++
			metrics.ChunksFailed.Inc()
			p.logger.Warn("Chunk analysis failed, skipping",
				zap.String("document", doc.Name),
				zap.Int("chunk", chunk.Index),
				zap.Error(err),
			)
			p.emit(ProgressEvent{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				ChunkIndex:   chunk.Index,
				ChunksDone:   result.ChunksAnalyzed + result.ChunksFailed,
				Failed:       true,
			})
			continue
		}

		result.ChunksAnalyzed++
		metrics.ChunksAnalyzed.Inc()

		created := p.storeCandidates(ctx, doc, chunk.Index, byName, p.parser.ParseCodings(response, names))
		result.CodingsCreated += created

		p.emit(ProgressEvent{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			ChunkIndex:   chunk.Index,
			ChunksDone:   result.ChunksAnalyzed + result.ChunksFailed,
			Codings:      created,
		})
	}

	p.logger.Info("Document analysis finished",
		zap.String("document", doc.Name),
		zap.Int("chunks", result.ChunksAnalyzed),
		zap.Int("failed", result.ChunksFailed),
		zap.Int("codings", result.CodingsCreated),
	)

	return result, nil
}

// AnalyzeProject fans documents out over a bounded worker pool. Emitted
// coding order within a document does not matter; every coding carries its
// own id and source locator.
func (p *Pipeline) AnalyzeProject(ctx context.Context, docs []models.Document, categories []models.Category) *RunResult {
	total := &RunResult{}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.MaxWorkers)

	for i := range docs {
		doc := docs[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := p.AnalyzeDocument(ctx, &doc, categories)
			if err != nil {
				p.logger.Error("Document analysis failed", zap.String("document", doc.Name), zap.Error(err))
				return
			}

			mu.Lock()
			total.DocumentsProcessed += res.DocumentsProcessed
			total.ChunksAnalyzed += res.ChunksAnalyzed
			total.ChunksFailed += res.ChunksFailed
			total.CodingsCreated += res.CodingsCreated
			mu.Unlock()
		}()
	}

	wg.Wait()
	return total
}

func (p *Pipeline) analyzeChunk(ctx context.Context, segment string, categories []string) (string, error) {
	prompt := p.prompt(segment, categories)

	if p.cache != nil {
		key := utils.HashString(prompt)
		if cached, ok, err := p.cache.GetAnalysis(ctx, key); err == nil && ok {
			metrics.CacheHits.Inc()
			return cached, nil
		}
		metrics.CacheMisses.Inc()

		response, err := p.analyzer.Analyze(ctx, prompt, p.cfg.MaxTokens)
		if err != nil {
			return "", err
		}
		if err := p.cache.SetAnalysis(ctx, key, response); err != nil {
			p.logger.Warn("Failed to cache analysis response", zap.Error(err))
		}
		return response, nil
	}

	return p.analyzer.Analyze(ctx, prompt, p.cfg.MaxTokens)
}

func (p *Pipeline) storeCandidates(ctx context.Context, doc *models.Document, chunkIndex int, categoryIDs map[string]string, candidates []Candidate) int {
	created := 0
	for _, cand := range candidates {
		coding := &models.Coding{
			ID:             uuid.New().String(),
			DocumentID:     doc.ID,
			CategoryID:     categoryIDs[cand.CategoryName],
			Passage:        cand.Passage,
			Rationale:      cand.Rationale,
			SourceDocument: doc.Name,
			ChunkIndex:     chunkIndex,
			CreatedAt:      time.Now(),
		}

		if err := p.store.InsertCoding(coding); err != nil {
			p.logger.Error("Failed to store coding",
				zap.String("document", doc.Name),
				zap.Error(err),
			)
			continue
		}
		created++
		metrics.CodingsCreated.Inc()

		if p.indexer != nil {
			if err := p.indexer.IndexCoding(ctx, coding); err != nil {
				p.logger.Warn("Failed to index passage", zap.Error(err))
			}
		}
	}
	return created
}

func (p *Pipeline) emit(event ProgressEvent) {
	if p.OnProgress != nil {
		p.OnProgress(event)
	}
}

func categoryNames(categories []models.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
