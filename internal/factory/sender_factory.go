package factory

import (
	"fmt"

	"github.com/mikey/llm-spam-reply/internal/adapters/replyapi"
	"github.com/mikey/llm-spam-reply/internal/adapters/smtpsender"
	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

// SenderFactory creates email senders based on configuration
type SenderFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSenderFactory creates a new sender factory
func NewSenderFactory(cfg *config.Config, logger *zap.Logger) *SenderFactory {
	return &SenderFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateEmailSender creates an email sender for the configured transport
func (f *SenderFactory) CreateEmailSender() (core.EmailSender, error) {
	emailCfg := f.cfg.GetEmail()

	switch emailCfg.Transport {
	case "api":
		if emailCfg.APIKey == "" {
			return nil, fmt.Errorf("email API key is required")
		}
		return replyapi.NewClient(emailCfg.BaseURL, emailCfg.APIKey, emailCfg.Timeout, f.logger), nil
	case "smtp":
		smtpCfg := f.cfg.GetSMTP()
		return smtpsender.NewSender(
			smtpCfg.Address,
			smtpCfg.Port,
			smtpCfg.Username,
			smtpCfg.Password,
			smtpCfg.Helo,
			smtpCfg.RequireTLS,
			smtpCfg.Timeout,
			f.logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported email transport: %s", emailCfg.Transport)
	}
}
