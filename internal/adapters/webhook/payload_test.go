package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inboundBody = `{
	"event": "email.received",
	"timestamp": "2025-01-01T00:00:00Z",
	"email": {
		"id": "em_123",
		"messageId": "<orig-1@example.com>",
		"from": {"text": "Alice <alice@example.com>", "addresses": [{"name": "Alice", "address": "alice@example.com"}]},
		"to": {"text": "check@spamreply.dev", "addresses": [{"name": null, "address": "check@spamreply.dev"}]},
		"recipient": "check@spamreply.dev",
		"subject": "Fwd: Account locked",
		"parsedData": {
			"messageId": "<parsed@example.com>",
			"textBody": "Verify now",
			"htmlBody": "<p>Verify now</p>",
			"headers": {
				"received-spf": "fail",
				"Received": ["from a", "from b"],
				"x-priority": 1,
				"authentication-results": {"spf": "fail"},
				"empty": null
			},
			"raw": "From: alice@example.com\r\n\r\nVerify now"
		},
		"cleanedContent": {"html": "<p>Verify</p>", "text": "Verify"}
	}
}`

func TestPayloadToInbound(t *testing.T) {
	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(inboundBody), &payload))
	require.NoError(t, payload.Validate())

	in := payload.ToInbound()
	assert.Equal(t, "email.received", in.EventType)
	assert.Equal(t, "em_123", in.EmailID)
	assert.Equal(t, "<orig-1@example.com>", in.MessageID)
	assert.Equal(t, "Alice <alice@example.com>", in.From)
	assert.Equal(t, "check@spamreply.dev", in.To)
	assert.Equal(t, "Fwd: Account locked", in.Subject)
	assert.Equal(t, "Verify now", in.TextBody)
	assert.Equal(t, "<p>Verify now</p>", in.HTMLBody)
	assert.Equal(t, "<p>Verify</p>", in.CleanedHTML)
	assert.Equal(t, "Verify", in.CleanedText)
	assert.Contains(t, in.RawSource, "Verify now")

	assert.Equal(t, []string{"fail"}, in.Headers["Received-Spf"])
	assert.Equal(t, []string{"from a", "from b"}, in.Headers["Received"])
	assert.Equal(t, []string{"1"}, in.Headers["X-Priority"])
	assert.Equal(t, []string{`{"spf":"fail"}`}, in.Headers["Authentication-Results"])
	assert.Empty(t, in.Headers["Empty"])
}

func TestPayloadAddressVariants(t *testing.T) {
	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(`{
		"event": "email.received",
		"email": {"id": "em_1", "from": "bob@example.com", "to": {"text": ""}, "recipient": "check@spamreply.dev",
			"parsedData": {"messageId": "<parsed@example.com>"}}
	}`), &payload))

	in := payload.ToInbound()
	assert.Equal(t, "bob@example.com", in.From)
	assert.Equal(t, "check@spamreply.dev", in.To, "recipient is used when to is empty")
	assert.Equal(t, "<parsed@example.com>", in.MessageID, "parsed message id is the fallback")
	assert.Nil(t, in.Headers)
}

func TestPayloadValidate(t *testing.T) {
	assert.ErrorIs(t, (&Payload{Email: &Email{}}).Validate(), ErrMissingEvent)
	assert.ErrorIs(t, (&Payload{Event: "  "}).Validate(), ErrMissingEvent)
	assert.ErrorIs(t, (&Payload{Event: "email.received"}).Validate(), ErrMissingEmail)
}
