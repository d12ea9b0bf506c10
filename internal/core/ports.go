package core

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ObjectRequest describes a schema-constrained generation call
type ObjectRequest struct {
	Name        string
	Description string
	Prompt      string
	Schema      jsonschema.Definition
}

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// GenerateObject returns raw JSON produced under the request schema
	GenerateObject(ctx context.Context, req *ObjectRequest) ([]byte, error)

	// GenerateText returns free text for a prompt
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// EmailSender defines the interface for replying through an email provider
type EmailSender interface {
	// ReplyToMessage sends msg as a reply to the provider message emailID
	ReplyToMessage(ctx context.Context, emailID string, msg *ReplyMessage) (*SendResult, error)
}

// RunStore defines the durable log of workflow runs
type RunStore interface {
	// Create records a new run
	Create(ctx context.Context, run *Run) error

	// Save checkpoints the current state of a run
	Save(ctx context.Context, run *Run) error

	// Get loads a run by id
	Get(ctx context.Context, id string) (*Run, error)

	// ListIncomplete returns all runs that are not in a terminal state
	ListIncomplete(ctx context.Context) ([]*Run, error)

	// PurgeBefore removes terminal runs last updated before t
	PurgeBefore(ctx context.Context, t time.Time) (int64, error)

	// Close releases the store
	Close() error
}

// Classifier is the first workflow step
type Classifier interface {
	Classify(ctx context.Context, payload *InboundPayload) (*DetectionResult, error)
}

// Composer is the second workflow step
type Composer interface {
	Compose(ctx context.Context, detection *DetectionResult, payload *InboundPayload) (*ReplyContent, error)
}

// Deliverer is the third workflow step
type Deliverer interface {
	Deliver(ctx context.Context, emailID string, reply *ReplyContent, payload *InboundPayload) (*SendResult, error)
}
