package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// PassageRecord is one coded passage with its embedding. Category and
// document are stored denormalized so search filters need no joins.
type PassageRecord struct {
	CodingID   string
	Embedding  []float32
	Passage    string
	Category   string
	Document   string
	ChunkIndex int
	Timestamp  time.Time
}

type SearchResult struct {
	CodingID string
	Passage  string
	Category string
	Document string
	Score    float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Coded passage embeddings",
		Fields: []*entity.Field{
			{
				Name:       "coding_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "passage",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "category",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "document",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, records []PassageRecord) error {
	if len(records) == 0 {
		return nil
	}

	codingIDs := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	passages := make([]string, len(records))
	categories := make([]string, len(records))
	documents := make([]string, len(records))
	chunkIndexes := make([]int64, len(records))
	timestamps := make([]int64, len(records))

	for i, r := range records {
		codingIDs[i] = r.CodingID
		embeddings[i] = r.Embedding
		passages[i] = r.Passage
		categories[i] = r.Category
		documents[i] = r.Document
		chunkIndexes[i] = int64(r.ChunkIndex)
		timestamps[i] = r.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("coding_id", codingIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("passage", passages),
		entity.NewColumnVarChar("category", categories),
		entity.NewColumnVarChar("document", documents),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnInt64("timestamp", timestamps),
	)

	if err != nil {
		return fmt.Errorf("failed to insert passages: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Passages inserted into vector DB", zap.Int("count", len(records)))

	return nil
}

// SearchSimilar finds the passages closest to the query embedding. Filters
// accept "category" and "document" to scope the search.
func (m *Client) SearchSimilar(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	expr := ""
	if category, ok := filters["category"]; ok && category != "" {
		expr = fmt.Sprintf(`category == "%s"`, category)
	}
	if document, ok := filters["document"]; ok && document != "" {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf(`document == "%s"`, document)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"coding_id", "passage", "category", "document"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			codingIDCol := sr.Fields.GetColumn("coding_id")
			passageCol := sr.Fields.GetColumn("passage")
			categoryCol := sr.Fields.GetColumn("category")
			documentCol := sr.Fields.GetColumn("document")

			codingID, _ := codingIDCol.Get(i)
			passage, _ := passageCol.Get(i)
			category, _ := categoryCol.Get(i)
			document, _ := documentCol.Get(i)

			results = append(results, SearchResult{
				CodingID: codingID.(string),
				Passage:  passage.(string),
				Category: category.(string),
				Document: document.(string),
				Score:    sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)

	return results, nil
}

// DeleteByDocument drops all indexed passages belonging to a document.
func (m *Client) DeleteByDocument(ctx context.Context, document string) error {
	expr := fmt.Sprintf(`document == "%s"`, document)

	err := m.client.Delete(ctx, m.collectionName, "", expr)
	if err != nil {
		return fmt.Errorf("failed to delete passages: %w", err)
	}

	return nil
}
