package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return NewOpenAIClient(openai.NewClientWithConfig(cfg), "gpt-4o-mini", 500, 0.1, 0.9, zaptest.NewLogger(t))
}

func chatResponse(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func TestGenerateObjectUsesStrictJSONSchema(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		chatResponse(w, map[string]any{
			"role":    "assistant",
			"content": `{"isSpam":true,"confidence":0.9,"reasoning":"r","references":["SPF fail"]}`,
		})
	})

	raw, err := client.GenerateObject(context.Background(), &core.ObjectRequest{
		Name:        "spam_detection",
		Description: "verdict",
		Prompt:      "classify this",
		Schema:      core.DetectionSchema,
	})
	require.NoError(t, err)

	result, err := core.DecodeDetectionResult(raw)
	require.NoError(t, err)
	assert.True(t, result.IsSpam)

	assert.Equal(t, "gpt-4o-mini", received["model"])
	format := received["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "spam_detection", schema["name"])
	assert.Equal(t, true, schema["strict"])
	assert.Contains(t, schema["schema"].(map[string]any)["properties"], "confidence")

	messages := received["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "classify this", messages[1].(map[string]any)["content"])
}

func TestGenerateTextHasNoResponseFormat(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		chatResponse(w, map[string]any{"role": "assistant", "content": "  This email is safe.  "})
	})

	text, err := client.GenerateText(context.Background(), "compose")
	require.NoError(t, err)
	assert.Equal(t, "This email is safe.", text)
	assert.NotContains(t, received, "response_format")
}

func TestGenerateTextErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limit","type":"requests"}}`))
		})

		_, err := client.GenerateText(context.Background(), "compose")
		var apiErr *openai.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatusCode)
	})

	t.Run("refusal", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			chatResponse(w, map[string]any{"role": "assistant", "content": "", "refusal": "cannot help"})
		})

		_, err := client.GenerateText(context.Background(), "compose")
		assert.ErrorContains(t, err, "cannot help")
	})

	t.Run("no choices", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
		})

		_, err := client.GenerateText(context.Background(), "compose")
		assert.ErrorContains(t, err, "empty response")
	})
}
