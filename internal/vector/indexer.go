package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/llm"
	"github.com/qda-agent/backend/internal/storage/models"
	"github.com/qda-agent/backend/internal/vector/milvus"
	"github.com/qda-agent/backend/pkg/logger"
)

// CategorySource supplies the current category list for name resolution.
type CategorySource interface {
	ListCategories() ([]models.Category, error)
}

// Indexer embeds coded passages and writes them to the vector store so
// similar passages can be retrieved across documents.
type Indexer struct {
	llm   *llm.Client
	store *milvus.Client
	db    CategorySource

	mu    sync.Mutex
	names map[string]string
}

func NewIndexer(llmClient *llm.Client, store *milvus.Client, db CategorySource) *Indexer {
	return &Indexer{
		llm:   llmClient,
		store: store,
		db:    db,
		names: make(map[string]string),
	}
}

func (ix *Indexer) IndexCoding(ctx context.Context, coding *models.Coding) error {
	embedding, err := ix.llm.GenerateEmbedding(ctx, coding.Passage)
	if err != nil {
		return fmt.Errorf("failed to embed passage: %w", err)
	}

	record := milvus.PassageRecord{
		CodingID:   coding.ID,
		Embedding:  embedding,
		Passage:    coding.Passage,
		Category:   ix.categoryName(coding.CategoryID),
		Document:   coding.SourceDocument,
		ChunkIndex: coding.ChunkIndex,
		Timestamp:  time.Now(),
	}

	if err := ix.store.Insert(ctx, []milvus.PassageRecord{record}); err != nil {
		return fmt.Errorf("failed to index passage: %w", err)
	}

	logger.Debug("Passage indexed", zap.String("coding_id", coding.ID))
	return nil
}

// SearchSimilar embeds the query text and returns the nearest indexed
// passages.
func (ix *Indexer) SearchSimilar(ctx context.Context, text string, topK int, filters map[string]string) ([]milvus.SearchResult, error) {
	embedding, err := ix.llm.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return ix.store.SearchSimilar(ctx, embedding, topK, filters)
}

func (ix *Indexer) categoryName(categoryID string) string {
	ix.mu.Lock()
	if name, ok := ix.names[categoryID]; ok {
		ix.mu.Unlock()
		return name
	}
	ix.mu.Unlock()

	cats, err := ix.db.ListCategories()
	if err != nil {
		logger.Warn("Failed to resolve category name", zap.Error(err))
		return models.UnknownCategory
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range cats {
		ix.names[c.ID] = c.Name
	}

	if name, ok := ix.names[categoryID]; ok {
		return name
	}
	return models.UnknownCategory
}
