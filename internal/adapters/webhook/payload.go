package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	"github.com/mikey/llm-spam-reply/internal/core"
)

// ErrMissingEvent and ErrMissingEmail mark payloads rejected before scheduling
var (
	ErrMissingEvent = errors.New("missing event")
	ErrMissingEmail = errors.New("missing email")
)

// Payload is the inbound email webhook body
type Payload struct {
	Event string `json:"event"`
	Email *Email `json:"email"`
}

// Email is the email object of the webhook body
type Email struct {
	ID             string          `json:"id"`
	MessageID      string          `json:"messageId"`
	From           AddressField    `json:"from"`
	To             AddressField    `json:"to"`
	Recipient      string          `json:"recipient"`
	Subject        string          `json:"subject"`
	ParsedData     *ParsedData     `json:"parsedData"`
	CleanedContent *CleanedContent `json:"cleanedContent"`
}

// ParsedData holds the provider's parse of the raw message
type ParsedData struct {
	MessageID string    `json:"messageId"`
	TextBody  string    `json:"textBody"`
	HTMLBody  string    `json:"htmlBody"`
	Headers   HeaderMap `json:"headers"`
	Raw       string    `json:"raw"`
}

// CleanedContent holds quote and signature stripped bodies
type CleanedContent struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}

// Address is one mailbox of an address field
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// AddressField accepts a plain string or {"text": ..., "addresses": [...]}
type AddressField struct {
	Text      string    `json:"text"`
	Addresses []Address `json:"addresses"`
}

func (a *AddressField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.Text = s
		return nil
	}
	type plain AddressField
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("invalid address field: %w", err)
	}
	*a = AddressField(p)
	return nil
}

// First returns the first mailbox, falling back to the display text
func (a AddressField) First() string {
	for _, addr := range a.Addresses {
		if addr.Address != "" {
			if addr.Name != "" {
				return fmt.Sprintf("%s <%s>", addr.Name, addr.Address)
			}
			return addr.Address
		}
	}
	return strings.TrimSpace(a.Text)
}

// HeaderMap accepts header values given as a string, a string array or any
// other JSON value, which is kept in its compact encoding
type HeaderMap map[string][]string

func (h *HeaderMap) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("invalid headers: %w", err)
	}

	out := make(HeaderMap, len(raw))
	for key, value := range raw {
		name := textproto.CanonicalMIMEHeaderKey(key)
		out[name] = append(out[name], headerValues(value)...)
	}
	*h = out
	return nil
}

func headerValues(value json.RawMessage) []string {
	if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return []string{s}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err == nil {
		values := make([]string, 0, len(items))
		for _, item := range items {
			values = append(values, headerValues(item)...)
		}
		return values
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return []string{string(value)}
	}
	return []string{compact.String()}
}

// Validate checks the two required top-level fields
func (p *Payload) Validate() error {
	if strings.TrimSpace(p.Event) == "" {
		return ErrMissingEvent
	}
	if p.Email == nil {
		return ErrMissingEmail
	}
	return nil
}

// ToInbound converts the webhook body into the workflow input
func (p *Payload) ToInbound() *core.InboundPayload {
	e := p.Email
	in := &core.InboundPayload{
		EventType: p.Event,
		EmailID:   e.ID,
		MessageID: e.MessageID,
		From:      e.From.First(),
		To:        e.To.First(),
		Subject:   e.Subject,
	}
	if in.To == "" {
		in.To = e.Recipient
	}

	if pd := e.ParsedData; pd != nil {
		if in.MessageID == "" {
			in.MessageID = pd.MessageID
		}
		in.TextBody = pd.TextBody
		in.HTMLBody = pd.HTMLBody
		in.RawSource = pd.Raw
		if len(pd.Headers) > 0 {
			in.Headers = map[string][]string(pd.Headers)
		}
	}
	if cc := e.CleanedContent; cc != nil {
		in.CleanedHTML = cc.HTML
		in.CleanedText = cc.Text
	}

	return in
}
