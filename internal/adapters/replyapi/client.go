package replyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a provider response is read
const maxResponseBytes = 1 << 20

// Client replies to received emails through the provider's HTTP API
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates a new reply API client
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger,
	}
}

type replyRequest struct {
	From string `json:"from"`
	HTML string `json:"html"`
	Text string `json:"text"`
}

// apiError accepts both {"error":"..."} and {"error":{"message":"..."}}
type apiError struct {
	Message string
}

func (e *apiError) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		e.Message = s
		return nil
	}
	var obj struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		e.Message = string(b)
		return nil
	}
	e.Message = strings.TrimSpace(strings.Join([]string{obj.Name, obj.Message}, " "))
	return nil
}

type replyResponse struct {
	Data *struct {
		ID        string `json:"id"`
		MessageID string `json:"messageId"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

// ProviderError carries the provider's error detail
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
}

// ReplyToMessage posts the reply to /emails/{id}/reply
func (c *Client) ReplyToMessage(ctx context.Context, emailID string, msg *core.ReplyMessage) (*core.SendResult, error) {
	body, err := json.Marshal(replyRequest{From: msg.From, HTML: msg.HTML, Text: msg.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply: %w", err)
	}

	endpoint := c.baseURL + "/emails/" + url.PathEscape(emailID) + "/reply"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call reply API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read reply API response: %w", err)
	}

	var decoded replyResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (decodeErr == nil && decoded.Error != nil) {
		perr := &ProviderError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		if decodeErr == nil && decoded.Error != nil {
			perr.Message = decoded.Error.Message
		}
		c.logger.Warn("Reply API rejected reply",
			zap.String("email_id", emailID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("error", perr.Message))
		return nil, perr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode reply API response: %w", decodeErr)
	}
	if decoded.Data == nil {
		return nil, fmt.Errorf("reply API response has no data")
	}

	return &core.SendResult{
		ID:        decoded.Data.ID,
		MessageID: decoded.Data.MessageID,
	}, nil
}
