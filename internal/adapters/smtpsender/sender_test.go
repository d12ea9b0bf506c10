package smtpsender

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// relay is an in-process SMTP server that keeps every accepted message
type relay struct {
	mu       sync.Mutex
	from     string
	rcpts    []string
	data     []byte
	authUser string
}

func (b *relay) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &relaySession{relay: b}, nil
}

type relaySession struct {
	relay *relay
	from  string
	rcpts []string
}

func (s *relaySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *relaySession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != "bot" || password != "hunter2" {
			return errors.New("invalid credentials")
		}
		s.relay.mu.Lock()
		s.relay.authUser = username
		s.relay.mu.Unlock()
		return nil
	}), nil
}

func (s *relaySession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.rcpts = append(s.rcpts, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	s.relay.from = s.from
	s.relay.rcpts = s.rcpts
	s.relay.data = data
	return nil
}

func (s *relaySession) Reset() {
	s.from = ""
	s.rcpts = nil
}

func (s *relaySession) Logout() error {
	return nil
}

func startRelay(t *testing.T) (*relay, string, int) {
	backend := &relay{}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { server.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return backend, host, port
}

func replyMessage() *core.ReplyMessage {
	return &core.ReplyMessage{
		From:      "Spam Checker <checker@spamreply.dev>",
		To:        "Alice <alice@example.com>",
		Subject:   "Re: Account locked",
		InReplyTo: "<orig-1@example.com>",
		HTML:      "<p>This email is unsafe.</p>",
		Text:      "This email is unsafe.",
	}
}

func TestReplyToMessageOverSMTP(t *testing.T) {
	backend, host, port := startRelay(t)
	sender := NewSender(host, port, "bot", "hunter2", "test.local", false, 5*time.Second, zaptest.NewLogger(t))

	result, err := sender.ReplyToMessage(context.Background(), "em_1", replyMessage())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.ID, "@spamreply.dev"))
	assert.Equal(t, "<"+result.ID+">", result.MessageID)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, "bot", backend.authUser)
	assert.Equal(t, "checker@spamreply.dev", backend.from)
	assert.Equal(t, []string{"alice@example.com"}, backend.rcpts)

	mr, err := mail.CreateReader(bytes.NewReader(backend.data))
	require.NoError(t, err)
	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.Equal(t, result.ID, id)
}

func TestReplyToMessageRequiresTLS(t *testing.T) {
	backend, host, port := startRelay(t)
	sender := NewSender(host, port, "", "", "test.local", true, 5*time.Second, zaptest.NewLogger(t))

	_, err := sender.ReplyToMessage(context.Background(), "em_1", replyMessage())
	assert.ErrorContains(t, err, "STARTTLS")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Nil(t, backend.data, "nothing is sent in clear text")
}

func TestReplyToMessageRejectsBadCredentials(t *testing.T) {
	_, host, port := startRelay(t)
	sender := NewSender(host, port, "bot", "wrong", "test.local", false, 5*time.Second, zaptest.NewLogger(t))

	_, err := sender.ReplyToMessage(context.Background(), "em_1", replyMessage())
	assert.ErrorContains(t, err, "authentication failed")
}

func TestReplyToMessageInvalidAddresses(t *testing.T) {
	sender := NewSender("localhost", 25, "", "", "test.local", false, time.Second, zaptest.NewLogger(t))

	msg := replyMessage()
	msg.To = "not an address"
	_, err := sender.ReplyToMessage(context.Background(), "em_1", msg)
	assert.ErrorContains(t, err, "invalid recipient address")
}

func TestBuildMessage(t *testing.T) {
	from := &mail.Address{Name: "Spam Checker", Address: "checker@spamreply.dev"}
	to := &mail.Address{Address: "alice@example.com"}

	data, err := BuildMessage(from, to, "abc@spamreply.dev", replyMessage())
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(data))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Account locked", subject)

	inReplyTo, err := mr.Header.MsgIDList("In-Reply-To")
	require.NoError(t, err)
	assert.Equal(t, []string{"orig-1@example.com"}, inReplyTo)
	refs, err := mr.Header.MsgIDList("References")
	require.NoError(t, err)
	assert.Equal(t, []string{"orig-1@example.com"}, refs)

	mediaType, _, err := mr.Header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	bodies := map[string]string{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		h, ok := part.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, _, err := h.ContentType()
		require.NoError(t, err)
		body, err := io.ReadAll(part.Body)
		require.NoError(t, err)
		bodies[ct] = string(body)
	}

	assert.Equal(t, "This email is unsafe.", bodies["text/plain"])
	assert.Equal(t, "<p>This email is unsafe.</p>", bodies["text/html"])
}
