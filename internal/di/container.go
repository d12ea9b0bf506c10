package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/mikey/llm-spam-reply/internal/dispatch"
	"github.com/mikey/llm-spam-reply/internal/factory"
	"github.com/mikey/llm-spam-reply/internal/logging"
	"github.com/mikey/llm-spam-reply/internal/ports"
	"github.com/mikey/llm-spam-reply/internal/suppress"
	"github.com/mikey/llm-spam-reply/internal/utils"
)

// BuildContainer creates and configures the dependency injection container
// for the webhook service
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register run store
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (core.RunStore, error) {
		return f.CreateRunStore()
	}); err != nil {
		return nil, err
	}

	// Register email sender
	if err := container.Provide(func(f *factory.SenderFactory) (core.EmailSender, error) {
		return f.CreateEmailSender()
	}); err != nil {
		return nil, err
	}

	// Register delivery step
	if err := container.Provide(func(cfg *config.Config, sender core.EmailSender, logger *zap.Logger) core.Deliverer {
		return core.NewReplyDelivery(sender, cfg.GetReply().FromAddress, logger.Named("delivery"))
	}); err != nil {
		return nil, err
	}

	// Register workflow
	if err := container.Provide(func(
		classifier core.Classifier,
		composer core.Composer,
		deliverer core.Deliverer,
		store core.RunStore,
		logger *zap.Logger,
	) *core.Workflow {
		return core.NewWorkflow(classifier, composer, deliverer, store, logger.Named("workflow"))
	}); err != nil {
		return nil, err
	}

	// Register dispatcher
	if err := container.Provide(func(cfg *config.Config, wf *core.Workflow, store core.RunStore, logger *zap.Logger) *dispatch.Dispatcher {
		wfCfg := cfg.GetWorkflow()
		return dispatch.NewDispatcher(
			wf,
			store,
			logger.Named("dispatch"),
			wfCfg.MaxConcurrent,
			wfCfg.Retention,
			wfCfg.PurgeFrequency,
		)
	}); err != nil {
		return nil, err
	}

	// Register sender suppression
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *suppress.Checker {
		fromAddress := cfg.GetReply().FromAddress
		if fromAddress == "" {
			fromAddress = core.DefaultFromAddress
		}
		return suppress.NewChecker(cfg.GetServer().SuppressedDomains, fromAddress, logger)
	}); err != nil {
		return nil, err
	}

	// Register webhook server
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		d *dispatch.Dispatcher,
		checker *suppress.Checker,
	) *factory.ServerFactory {
		return factory.NewServerFactory(cfg, logger.Named("webhook"), d, checker)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.ServerFactory) ports.Server {
		return f.CreateServer()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the pieces shared by the service and the CLI: text
// processing, the LLM client and the classify and compose steps
func provideCore(container *dig.Container) error {
	if err := container.Provide(func(logger *zap.Logger) *utils.TextProcessor {
		return utils.NewTextProcessor(logger.Named("text"))
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewSenderFactory); err != nil {
		return err
	}

	if err := container.Provide(func(
		cfg *config.Config,
		llm core.LLMClient,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) core.Classifier {
		return core.NewLLMClassifier(llm, tp, cfg.GetLLM().MaxBodySize, logger.Named("classifier"))
	}); err != nil {
		return err
	}

	return container.Provide(func(
		cfg *config.Config,
		llm core.LLMClient,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) core.Composer {
		replyCfg := cfg.GetReply()
		return core.NewLLMComposer(
			llm,
			tp,
			replyCfg.FooterHTML,
			replyCfg.SanitizeHTML,
			cfg.GetLLM().MaxBodySize,
			logger.Named("composer"),
		)
	})
}
