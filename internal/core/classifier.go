package core

import (
	"context"
	"fmt"

	"github.com/mikey/llm-spam-reply/internal/utils"
	"go.uber.org/zap"
)

const classifyPromptFormat = `You are an email security analyst. A user forwarded the email below and wants to know whether it is spam, phishing or otherwise malicious.

1. Inspect the authentication related headers (SPF, DKIM, DMARC, Authentication-Results, Received, Return-Path, Reply-To) for failures, mismatches or anomalies.
2. Inspect the body for phishing, social engineering, credential harvesting, suspicious links and urgency or pressure patterns.
3. Decide whether the email is spam or malicious.

Return isSpam, a confidence between 0 and 1, a short reasoning and a list of the specific indicators you relied on, most important first.

From: %s
To: %s
Subject: %s

Headers:
%s
HTML body:
%s

Text body:
%s

Raw source:
%s`

// LLMClassifier classifies inbound email with a schema-constrained model call
type LLMClassifier struct {
	llm           LLMClient
	textProcessor *utils.TextProcessor
	maxBodySize   int
	logger        *zap.Logger
}

// NewLLMClassifier creates a new classifier step
func NewLLMClassifier(
	llm LLMClient,
	textProcessor *utils.TextProcessor,
	maxBodySize int,
	logger *zap.Logger,
) *LLMClassifier {
	return &LLMClassifier{
		llm:           llm,
		textProcessor: textProcessor,
		maxBodySize:   maxBodySize,
		logger:        logger,
	}
}

// Classify asks the model for a verdict and validates it before returning
func (c *LLMClassifier) Classify(ctx context.Context, payload *InboundPayload) (*DetectionResult, error) {
	raw, err := c.llm.GenerateObject(ctx, &ObjectRequest{
		Name:        "spam_detection",
		Description: "Spam and phishing verdict for a forwarded email",
		Prompt:      c.buildPrompt(payload),
		Schema:      DetectionSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to classify email: %w", err)
	}

	result, err := DecodeDetectionResult(raw)
	if err != nil {
		c.logger.Warn("Rejected classifier output",
			zap.String("email_id", payload.EmailID),
			zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Email classified",
		zap.String("email_id", payload.EmailID),
		zap.Bool("is_spam", result.IsSpam),
		zap.Float64("confidence", result.Confidence),
		zap.Int("references", len(result.References)))

	return result, nil
}

func (c *LLMClassifier) buildPrompt(p *InboundPayload) string {
	return fmt.Sprintf(classifyPromptFormat,
		p.From,
		p.To,
		p.Subject,
		c.textProcessor.FormatHeaders(p.Headers, c.maxBodySize),
		c.textProcessor.ProcessText(p.HTMLBody, c.maxBodySize),
		c.textProcessor.ProcessText(p.TextBody, c.maxBodySize),
		c.textProcessor.ProcessText(p.RawSource, c.maxBodySize),
	)
}
