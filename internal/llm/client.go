package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/metrics"
	"github.com/qda-agent/backend/pkg/circuitbreaker"
	"github.com/qda-agent/backend/pkg/logger"
	"github.com/qda-agent/backend/pkg/retry"
)

// Client wraps the text-generation collaborator. The pipeline only assumes
// text in, text out; no structural guarantee on responses.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// Analyze sends a prompt and returns the raw response text. Callers parse
// defensively; the response may be arbitrarily malformed.
func (c *Client) Analyze(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: codingSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

const codingSystemPrompt = `You are a qualitative research assistant performing open coding on interview and field-note material.

For every relevant excerpt in the text segment, produce a record in exactly this form:

Passage: "<verbatim excerpt from the segment>"
Category: <one category name from the provided list>
Rationale: <one sentence explaining why the excerpt fits the category>

Only quote text that appears verbatim in the segment. Skip material that fits no category.`

// CodingPrompt builds the per-segment analysis prompt from the project's
// category frame.
func CodingPrompt(segment string, categories []string) string {
	return fmt.Sprintf(`Categories: %s

Code the following text segment:

%s`, strings.Join(categories, ", "), segment)
}

func (c *Client) SuggestCategories(ctx context.Context, materialSample string) (string, error) {
	systemPrompt := `You are a qualitative research methodologist. Given a sample of study material, propose a category system for coding it.

Return JSON only:
{"categories": [{"name": "...", "description": "...", "properties": ["..."], "dimension": "..."}]}`

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Propose 4-8 categories for this material:\n\n%s", materialSample),
		Temperature:  0.4,
		MaxTokens:    1200,
	})
	if err != nil {
		return "", fmt.Errorf("failed to suggest categories: %w", err)
	}

	logger.Info("Category suggestions generated", zap.Int("response_length", len(resp.Content)))

	return resp.Content, nil
}

func (c *Client) SuggestResearchQuestions(ctx context.Context, materialSample string) (string, error) {
	systemPrompt := `You are a qualitative research methodologist. Given a sample of study material, propose research questions it could answer.

Return JSON only:
{"questions": ["..."]}`

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Propose 3-5 research questions for this material:\n\n%s", materialSample),
		Temperature:  0.4,
		MaxTokens:    600,
	})
	if err != nil {
		return "", fmt.Errorf("failed to suggest research questions: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) SuggestPatterns(ctx context.Context, codingSummary string) (string, error) {
	systemPrompt := `You are a qualitative research methodologist. Given a summary of coded material, identify cross-cutting patterns.

Return JSON only:
{"patterns": [{"name": "...", "description": "...", "categories": ["..."]}]}`

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf("Identify patterns in this coding summary:\n\n%s", codingSummary),
		Temperature:  0.3,
		MaxTokens:    1000,
	})
	if err != nil {
		return "", fmt.Errorf("failed to suggest patterns: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}
