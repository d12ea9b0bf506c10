package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/mikey/llm-spam-reply/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClassifier(t *testing.T, llm core.LLMClient) *core.LLMClassifier {
	logger := zaptest.NewLogger(t)
	return core.NewLLMClassifier(llm, utils.NewTextProcessor(logger), 4096, logger)
}

func TestClassifyReturnsValidatedVerdict(t *testing.T) {
	llm := &stubLLM{object: func(req *core.ObjectRequest) ([]byte, error) {
		return []byte(`{"isSpam":true,"confidence":0.92,"reasoning":"Credential phishing","references":["SPF fail","urgency language","mismatched reply-to"]}`), nil
	}}

	result, err := newClassifier(t, llm).Classify(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.True(t, result.IsSpam)
	assert.Len(t, result.References, 3)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "spam_detection", req.Name)
	assert.Equal(t, core.DetectionSchema.Required, req.Schema.Required)
	assert.Contains(t, req.Prompt, "Authentication-Results: spf=fail")
	assert.Contains(t, req.Prompt, "Reply-To: support@bank-secure.example")
	assert.Contains(t, req.Prompt, "Verify your account within 24 hours")
	assert.Contains(t, req.Prompt, "Subject: Fwd: Your account is locked")
}

func TestClassifyTruncatesLargeBodies(t *testing.T) {
	llm := &stubLLM{object: func(req *core.ObjectRequest) ([]byte, error) {
		return []byte(`{"isSpam":false,"confidence":0.5,"reasoning":"r","references":[]}`), nil
	}}
	payload := samplePayload()
	payload.TextBody = strings.Repeat("a", 10000)

	_, err := newClassifier(t, llm).Classify(context.Background(), payload)
	require.NoError(t, err)
	assert.Contains(t, llm.requests[0].Prompt, utils.TruncationMarker)
	assert.NotContains(t, llm.requests[0].Prompt, strings.Repeat("a", 5000))
}

func TestClassifyPropagatesModelErrors(t *testing.T) {
	boom := errors.New("rate limited")
	llm := &stubLLM{object: func(req *core.ObjectRequest) ([]byte, error) { return nil, boom }}

	result, err := newClassifier(t, llm).Classify(context.Background(), samplePayload())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
}

func TestClassifyRejectsOutOfRangeConfidence(t *testing.T) {
	llm := &stubLLM{object: func(req *core.ObjectRequest) ([]byte, error) {
		return []byte(`{"isSpam":true,"confidence":1.5,"reasoning":"r","references":[]}`), nil
	}}

	result, err := newClassifier(t, llm).Classify(context.Background(), samplePayload())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, core.ErrInvalidDetection)
}
