package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

const anthropicVersion = "bedrock-2023-05-31"

// ErrStructuredUnsupported is returned when the configured model cannot do tool use
var ErrStructuredUnsupported = errors.New("structured output requires an Anthropic Claude model on Bedrock")

// ModelInvoker is the subset of the Bedrock runtime client used here
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient is an implementation of the LLMClient interface using Amazon Bedrock
type BedrockClient struct {
	client      ModelInvoker
	modelID     string
	maxTokens   int
	temperature float32
	topP        float32
	logger      *zap.Logger
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client ModelInvoker,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	logger *zap.Logger,
) *BedrockClient {
	return &BedrockClient{
		client:      client,
		modelID:     modelID,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		logger:      logger,
	}
}

type anthropicContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicRequest struct {
	AnthropicVersion string               `json:"anthropic_version"`
	MaxTokens        int                  `json:"max_tokens"`
	Temperature      float32              `json:"temperature"`
	TopP             float32              `json:"top_p"`
	Messages         []anthropicMessage   `json:"messages"`
	Tools            []anthropicTool      `json:"tools,omitempty"`
	ToolChoice       *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

// GenerateObject forces a single tool call whose input schema is req.Schema
// and returns the tool input as the structured result.
func (c *BedrockClient) GenerateObject(ctx context.Context, req *core.ObjectRequest) ([]byte, error) {
	if !c.isAnthropicModel() {
		return nil, ErrStructuredUnsupported
	}

	body := c.anthropicBody(req.Prompt)
	body.Tools = []anthropicTool{{
		Name:        req.Name,
		Description: req.Description,
		InputSchema: &req.Schema,
	}}
	body.ToolChoice = &anthropicToolChoice{Type: "tool", Name: req.Name}

	resp, err := c.invokeAnthropic(ctx, body)
	if err != nil {
		return nil, err
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == req.Name {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("no %s tool call in Bedrock response (stop reason %q)", req.Name, resp.StopReason)
}

// GenerateText requests free text for prompt
func (c *BedrockClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.isAmazonTitanModel() {
		return c.generateTitan(ctx, prompt)
	}

	resp, err := c.invokeAnthropic(ctx, c.anthropicBody(prompt))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty response from Bedrock model")
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *BedrockClient) anthropicBody(prompt string) *anthropicRequest {
	return &anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		TopP:             c.topP,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: prompt}},
		}},
	}
}

func (c *BedrockClient) invokeAnthropic(ctx context.Context, body *anthropicRequest) (*anthropicResponse, error) {
	raw, err := c.invoke(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Claude response: %w", err)
	}
	return &resp, nil
}

func (c *BedrockClient) generateTitan(ctx context.Context, prompt string) (string, error) {
	raw, err := c.invoke(ctx, map[string]interface{}{
		"inputText": prompt,
		"textGenerationConfig": map[string]interface{}{
			"maxTokenCount": c.maxTokens,
			"temperature":   c.temperature,
			"topP":          c.topP,
		},
	})
	if err != nil {
		return "", err
	}

	var titanResp struct {
		Results []struct {
			OutputText string `json:"outputText"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &titanResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
	}
	if len(titanResp.Results) == 0 {
		return "", fmt.Errorf("empty response from Titan model")
	}
	return strings.TrimSpace(titanResp.Results[0].OutputText), nil
}

func (c *BedrockClient) invoke(ctx context.Context, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	c.logger.Debug("Bedrock model invoked",
		zap.String("model", c.modelID),
		zap.Int("response_size", len(resp.Body)))

	return resp.Body, nil
}

// isAnthropicModel checks if the model is an Anthropic Claude model, including
// cross-region inference profiles such as us.anthropic.claude-*
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.Contains(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
