package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = "You are an email security assistant."

// OpenAIClient is an implementation of the LLMClient interface using OpenAI
type OpenAIClient struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *OpenAIClient {
	return &OpenAIClient{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

// GenerateObject requests output constrained to req.Schema using strict structured outputs
func (c *OpenAIClient) GenerateObject(ctx context.Context, req *core.ObjectRequest) ([]byte, error) {
	chatReq := c.newRequest(req.Prompt)
	schema := req.Schema
	chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        req.Name,
			Description: req.Description,
			Schema:      &schema,
			Strict:      true,
		},
	}

	content, err := c.complete(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// GenerateText requests free text for prompt
func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, c.newRequest(prompt))
}

func (c *OpenAIClient) newRequest(prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("OpenAI API error",
				zap.Int("status_code", apiErr.HTTPStatusCode),
				zap.String("message", apiErr.Message))
		}
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("OpenAI refused the request: %s", msg.Refusal)
	}

	c.logger.Debug("OpenAI completion received",
		zap.String("model", resp.Model),
		zap.String("processing_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return strings.TrimSpace(msg.Content), nil
}
