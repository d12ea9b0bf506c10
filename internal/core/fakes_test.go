package core_test

import (
	"context"
	"sync"

	"github.com/mikey/llm-spam-reply/internal/core"
)

// stubLLM answers object and text requests with canned functions and records the prompts it saw
type stubLLM struct {
	mu       sync.Mutex
	object   func(req *core.ObjectRequest) ([]byte, error)
	text     func(prompt string) (string, error)
	requests []*core.ObjectRequest
	prompts  []string
}

func (s *stubLLM) GenerateObject(ctx context.Context, req *core.ObjectRequest) ([]byte, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.object(req)
}

func (s *stubLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.text(prompt)
}

// stubSender records replies and returns a fixed receipt or error
type stubSender struct {
	mu      sync.Mutex
	sent    []*core.ReplyMessage
	ids     []string
	receipt *core.SendResult
	err     error
}

func (s *stubSender) ReplyToMessage(ctx context.Context, emailID string, msg *core.ReplyMessage) (*core.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, emailID)
	s.sent = append(s.sent, msg)
	if s.err != nil {
		return nil, s.err
	}
	return s.receipt, nil
}

// recorder collects the order in which steps run
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	r.calls = append(r.calls, step)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type classifierFunc func(ctx context.Context, p *core.InboundPayload) (*core.DetectionResult, error)

func (f classifierFunc) Classify(ctx context.Context, p *core.InboundPayload) (*core.DetectionResult, error) {
	return f(ctx, p)
}

type composerFunc func(ctx context.Context, d *core.DetectionResult, p *core.InboundPayload) (*core.ReplyContent, error)

func (f composerFunc) Compose(ctx context.Context, d *core.DetectionResult, p *core.InboundPayload) (*core.ReplyContent, error) {
	return f(ctx, d, p)
}

type delivererFunc func(ctx context.Context, emailID string, r *core.ReplyContent, p *core.InboundPayload) (*core.SendResult, error)

func (f delivererFunc) Deliver(ctx context.Context, emailID string, r *core.ReplyContent, p *core.InboundPayload) (*core.SendResult, error) {
	return f(ctx, emailID, r, p)
}

func samplePayload() *core.InboundPayload {
	return &core.InboundPayload{
		EventType: "email.received",
		EmailID:   "em_123",
		MessageID: "<orig-1@example.com>",
		From:      "Alice <alice@example.com>",
		To:        "check@spamreply.dev",
		Subject:   "Fwd: Your account is locked",
		Headers: map[string][]string{
			"Authentication-Results": {"spf=fail smtp.mailfrom=bank-secure.example"},
			"Reply-To":               {"support@bank-secure.example"},
		},
		HTMLBody: "<p>Verify your account within 24 hours or it will be closed.</p>",
		TextBody: "Verify your account within 24 hours or it will be closed.",
	}
}
