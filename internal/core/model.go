package core

import (
	"fmt"
	"math"
	"time"
)

// InboundPayload represents one received email event as handed over by the webhook
type InboundPayload struct {
	EventType   string              `json:"event_type"`
	EmailID     string              `json:"email_id"`
	MessageID   string              `json:"message_id,omitempty"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	RawSource   string              `json:"raw_source,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`
	HTMLBody    string              `json:"html_body,omitempty"`
	TextBody    string              `json:"text_body,omitempty"`
	CleanedHTML string              `json:"cleaned_html,omitempty"`
	CleanedText string              `json:"cleaned_text,omitempty"`
}

// DetectionResult is the structured verdict produced by the classifier
type DetectionResult struct {
	IsSpam     bool     `json:"isSpam"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	References []string `json:"references"`
}

// Validate checks the invariants that the schema alone cannot express
func (d *DetectionResult) Validate() error {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0, 1]", ErrInvalidDetection, d.Confidence)
	}
	if d.References == nil {
		return fmt.Errorf("%w: missing references", ErrInvalidDetection)
	}
	return nil
}

// Verdict returns the human readable determination for the result
func (d *DetectionResult) Verdict() string {
	if d.IsSpam {
		return "UNSAFE"
	}
	return "SAFE"
}

// ReplyContent is the composed HTML reply, footer included
type ReplyContent struct {
	HTML string `json:"html"`
}

// SendResult is the receipt returned by the email provider
type SendResult struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// ReplyMessage is what the delivery step hands to an EmailSender
type ReplyMessage struct {
	From      string
	To        string
	Subject   string
	InReplyTo string
	HTML      string
	Text      string
}

// Result is the aggregate record returned by a completed workflow
type Result struct {
	Success         bool             `json:"success"`
	EmailID         string           `json:"emailId"`
	DetectionResult *DetectionResult `json:"detectionResult"`
	Reply           string           `json:"reply"`
	SendResult      *SendResult      `json:"sendResult"`
}

// RunState is the checkpointed position of a run in the workflow
type RunState string

const (
	StatePending    RunState = "PENDING"
	StateClassified RunState = "CLASSIFIED"
	StateComposed   RunState = "COMPOSED"
	StateSent       RunState = "SENT"
	StateDone       RunState = "DONE"
	StateFailed     RunState = "FAILED"
)

// Terminal reports whether no further step can run from this state
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Run is the durable record of one workflow invocation
type Run struct {
	ID        string
	EmailID   string
	State     RunState
	Payload   *InboundPayload
	Detection *DetectionResult
	Reply     *ReplyContent
	Send      *SendResult
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRun creates a pending run for a payload
func NewRun(id string, payload *InboundPayload) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        id,
		EmailID:   payload.EmailID,
		State:     StatePending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
