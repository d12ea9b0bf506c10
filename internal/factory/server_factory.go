package factory

import (
	"github.com/mikey/llm-spam-reply/internal/adapters/webhook"
	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/ports"
	"go.uber.org/zap"
)

// ServerFactory creates the webhook server
type ServerFactory struct {
	cfg        *config.Config
	logger     *zap.Logger
	submitter  webhook.Submitter
	suppressor webhook.Suppressor
}

// NewServerFactory creates a new server factory
func NewServerFactory(cfg *config.Config, logger *zap.Logger, submitter webhook.Submitter, suppressor webhook.Suppressor) *ServerFactory {
	return &ServerFactory{
		cfg:        cfg,
		logger:     logger,
		submitter:  submitter,
		suppressor: suppressor,
	}
}

// CreateServer creates the webhook server from the configuration
func (f *ServerFactory) CreateServer() ports.Server {
	serverCfg := f.cfg.GetServer()

	handler := webhook.NewHandler(
		f.submitter,
		f.suppressor,
		serverCfg.WebhookSecret,
		serverCfg.MaxBodyBytes,
		f.logger,
	)

	return webhook.NewServer(
		serverCfg.ListenAddress,
		handler.Routes(serverCfg.WebhookPath),
		serverCfg.ReadTimeout,
		serverCfg.WriteTimeout,
		f.logger,
	)
}
