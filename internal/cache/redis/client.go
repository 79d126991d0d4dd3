package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/pkg/logger"
)

type Client struct {
	client      *redis.Client
	analysisTTL time.Duration
}

func NewClient(host string, port int, password string, db int, analysisTTL time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, analysisTTL: analysisTTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// GetAnalysis returns the cached model response for a prompt hash, if any.
// Implements the pipeline's ResponseCache.
func (c *Client) GetAnalysis(ctx context.Context, promptHash string) (string, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("analysis:%s", promptHash)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	logger.Debug("Analysis cache hit", zap.String("prompt_hash", promptHash))
	return data, true, nil
}

func (c *Client) SetAnalysis(ctx context.Context, promptHash, response string) error {
	err := c.client.Set(ctx, fmt.Sprintf("analysis:%s", promptHash), response, c.analysisTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	logger.Debug("Analysis cached", zap.String("prompt_hash", promptHash), zap.Duration("ttl", c.analysisTTL))
	return nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// SetReport caches a computed report (reliability, quality, co-occurrence)
// under its own key family so analysis invalidation can clear them together.
func (c *Client) SetReport(ctx context.Context, kind string, report interface{}, ttl time.Duration) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("report:%s", kind), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set report cache: %w", err)
	}

	return nil
}

func (c *Client) GetReport(ctx context.Context, kind string, report interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("report:%s", kind)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get report cache: %w", err)
	}

	err = json.Unmarshal(data, report)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	logger.Debug("Report cache hit", zap.String("kind", kind))
	return true, nil
}

// InvalidateReports drops cached reports after codings, categories, or
// submissions change.
func (c *Client) InvalidateReports(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "report:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Report cache invalidated")
	return nil
}
