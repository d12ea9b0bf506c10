package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ReplyDelivery sends the composed reply through the email provider
type ReplyDelivery struct {
	sender      EmailSender
	fromAddress string
	logger      *zap.Logger
}

// NewReplyDelivery creates a new delivery step. An empty fromAddress selects
// DefaultFromAddress.
func NewReplyDelivery(sender EmailSender, fromAddress string, logger *zap.Logger) *ReplyDelivery {
	if strings.TrimSpace(fromAddress) == "" {
		fromAddress = DefaultFromAddress
	}
	return &ReplyDelivery{
		sender:      sender,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// FromAddress returns the address replies are sent from
func (d *ReplyDelivery) FromAddress() string {
	return d.fromAddress
}

// Deliver sends the reply with an HTML part and a plain-text fallback
func (d *ReplyDelivery) Deliver(ctx context.Context, emailID string, reply *ReplyContent, payload *InboundPayload) (*SendResult, error) {
	msg := &ReplyMessage{
		From:      d.fromAddress,
		To:        payload.From,
		Subject:   replySubject(payload.Subject),
		InReplyTo: payload.MessageID,
		HTML:      reply.HTML,
		Text:      HTMLToText(reply.HTML),
	}

	result, err := d.sender.ReplyToMessage(ctx, emailID, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: provider returned no receipt", ErrDelivery)
	}

	d.logger.Debug("Reply delivered",
		zap.String("email_id", emailID),
		zap.String("reply_id", result.ID),
		zap.String("reply_message_id", result.MessageID))

	return result, nil
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "Re: your forwarded email"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
