package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mikey/llm-spam-reply/internal/utils"
	"go.uber.org/zap"
)

// maxReplyReferences is how many indicators are offered to the reply model
const maxReplyReferences = 3

const composePromptFormat = `You are replying to someone who forwarded you an email and asked whether it is safe.

The analysis concluded:
Verdict: %s
Spam: %t
Confidence: %.2f
Reasoning: %s
Top indicators:
%s

Write a short reply of 3 to 5 sentences formatted as simple HTML:
- Start by stating clearly that the email is %s.
- Give a one to two sentence rationale based on the top indicators.
- End with one sentence of practical guidance on what to do next.
- Put <br><br> between sentences so the reply is easy to read.
- No headings, colours, fonts, tables, buttons or other styling. It must read like a plain personal email, not a marketing template.
- Return only the HTML, no code fences, no greeting line with a name.

Forwarded email, for context:
From: %s
Subject: %s
Content:
%s`

// LLMComposer drafts the verdict reply with a free-text model call
type LLMComposer struct {
	llm           LLMClient
	textProcessor *utils.TextProcessor
	footerHTML    string
	policy        *bluemonday.Policy
	maxBodySize   int
	logger        *zap.Logger
}

// NewLLMComposer creates a new composer step
func NewLLMComposer(
	llm LLMClient,
	textProcessor *utils.TextProcessor,
	footerHTML string,
	sanitize bool,
	maxBodySize int,
	logger *zap.Logger,
) *LLMComposer {
	var policy *bluemonday.Policy
	if sanitize {
		policy = bluemonday.UGCPolicy()
	}
	return &LLMComposer{
		llm:           llm,
		textProcessor: textProcessor,
		footerHTML:    footerHTML,
		policy:        policy,
		maxBodySize:   maxBodySize,
		logger:        logger,
	}
}

// Compose produces the reply HTML with the footer appended exactly once
func (c *LLMComposer) Compose(ctx context.Context, detection *DetectionResult, payload *InboundPayload) (*ReplyContent, error) {
	text, err := c.llm.GenerateText(ctx, c.buildPrompt(detection, payload))
	if err != nil {
		return nil, fmt.Errorf("failed to compose reply: %w", err)
	}

	html := stripCodeFence(strings.TrimSpace(text))
	if html == "" {
		return nil, ErrEmptyReply
	}
	if c.policy != nil {
		html = sanitizeDocument(c.policy, html)
	}

	c.logger.Debug("Reply composed",
		zap.String("email_id", payload.EmailID),
		zap.Int("reply_size", len(html)))

	return &ReplyContent{HTML: AppendFooter(html, c.footerHTML)}, nil
}

// sanitizeDocument runs the policy over the content of a full document and
// puts back a bare wrapper, which the policy would otherwise strip
func sanitizeDocument(policy *bluemonday.Policy, html string) string {
	if inner, ok := elementContent(html, "body"); ok {
		return "<html><body>" + policy.Sanitize(inner) + "</body></html>"
	}
	if inner, ok := elementContent(html, "html"); ok {
		return "<html>" + policy.Sanitize(inner) + "</html>"
	}
	return policy.Sanitize(html)
}

func (c *LLMComposer) buildPrompt(d *DetectionResult, p *InboundPayload) string {
	refs := d.References
	if len(refs) > maxReplyReferences {
		refs = refs[:maxReplyReferences]
	}
	var indicators strings.Builder
	for _, r := range refs {
		indicators.WriteString("- ")
		indicators.WriteString(r)
		indicators.WriteString("\n")
	}
	if indicators.Len() == 0 {
		indicators.WriteString("- none reported\n")
	}

	determination := "safe"
	if d.IsSpam {
		determination = "unsafe"
	}

	return fmt.Sprintf(composePromptFormat,
		d.Verdict(),
		d.IsSpam,
		d.Confidence,
		d.Reasoning,
		indicators.String(),
		determination,
		p.From,
		p.Subject,
		c.textProcessor.ProcessText(replyContext(p), c.maxBodySize),
	)
}

// replyContext picks the parsed body first and the cleaned content second
func replyContext(p *InboundPayload) string {
	for _, s := range []string{p.HTMLBody, p.TextBody, p.CleanedHTML, p.CleanedText} {
		if s != "" {
			return s
		}
	}
	return ""
}

// stripCodeFence removes a ```html ... ``` wrapper some models add anyway
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
