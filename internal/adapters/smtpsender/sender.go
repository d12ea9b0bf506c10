package smtpsender

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

// Sender delivers replies over SMTP as multipart/alternative messages
type Sender struct {
	address    string
	port       int
	username   string
	password   string
	helo       string
	requireTLS bool
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSender creates a new SMTP sender
func NewSender(
	address string,
	port int,
	username string,
	password string,
	helo string,
	requireTLS bool,
	timeout time.Duration,
	logger *zap.Logger,
) *Sender {
	if helo == "" {
		if hostname, err := os.Hostname(); err == nil {
			helo = hostname
		} else {
			helo = "localhost"
		}
	}
	return &Sender{
		address:    address,
		port:       port,
		username:   username,
		password:   password,
		helo:       helo,
		requireTLS: requireTLS,
		timeout:    timeout,
		logger:     logger,
	}
}

// ReplyToMessage builds the reply and submits it to the SMTP relay. emailID
// is only used for logging, threading relies on msg.InReplyTo.
func (s *Sender) ReplyToMessage(ctx context.Context, emailID string, msg *core.ReplyMessage) (*core.SendResult, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", msg.From, err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}

	messageID := uuid.New().String() + "@" + domainOf(from.Address)
	data, err := BuildMessage(from, to, messageID, msg)
	if err != nil {
		return nil, err
	}

	if err := s.submit(ctx, from.Address, to.Address, data); err != nil {
		return nil, err
	}

	s.logger.Info("Reply submitted over SMTP",
		zap.String("email_id", emailID),
		zap.String("message_id", messageID),
		zap.String("relay", s.relayAddr()))

	return &core.SendResult{
		ID:        messageID,
		MessageID: "<" + messageID + ">",
	}, nil
}

// BuildMessage renders the reply as a MIME message with text and HTML alternatives
func BuildMessage(from, to *mail.Address, messageID string, msg *core.ReplyMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)
	if id := strings.Trim(strings.TrimSpace(msg.InReplyTo), "<>"); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	tw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if err := writePart(tw, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/html", msg.HTML); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}

	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

func (s *Sender) relayAddr() string {
	return net.JoinHostPort(s.address, fmt.Sprintf("%d", s.port))
}

// submit runs one SMTP transaction against the relay
func (s *Sender) submit(ctx context.Context, sender, recipient string, data []byte) error {
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.relayAddr())
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(s.helo); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.address}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	} else if s.requireTLS {
		return fmt.Errorf("SMTP relay %s does not offer STARTTLS", s.relayAddr())
	}

	if s.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The relay accepted the message already
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
