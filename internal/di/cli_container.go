package di

import (
	"flag"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Delivery flags
	Send        bool
	FromAddress string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, nil)
}

// ParseFlagSet registers the CLI flags on fs and parses args. A nil args
// parses the process arguments.
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	fs.StringVar(&flags.Provider, "provider", "", "LLM provider (openai, gemini, bedrock)")
	fs.IntVar(&flags.MaxTokens, "max-tokens", 0, "Maximum tokens for LLM response")
	fs.Float64Var(&flags.Temperature, "temperature", -1, "Temperature for LLM generation")
	fs.Float64Var(&flags.TopP, "top-p", -1, "Top-p for LLM generation")
	fs.IntVar(&flags.MaxBodySize, "max-body-size", 0, "Maximum email body size to send to the LLM")

	// Bedrock flags
	fs.StringVar(&flags.BedrockRegion, "bedrock-region", "", "AWS region for Bedrock")
	fs.StringVar(&flags.BedrockModelID, "bedrock-model", "", "Bedrock model ID")

	// Gemini flags
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.GeminiModelName, "gemini-model", "", "Gemini model name")

	// OpenAI flags
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	fs.StringVar(&flags.OpenAIModelName, "openai-model", "", "OpenAI model name")

	// Delivery flags
	fs.BoolVar(&flags.Send, "send", false, "Deliver the composed reply to the original sender")
	fs.StringVar(&flags.FromAddress, "from", "", "From address of the reply")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Webhook JSON file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file, flags override its values")

	if args == nil {
		args = os.Args[1:]
	}
	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container
// for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		return ConfigFromFlags(flags, logger)
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	return container, nil
}

// ConfigFromFlags loads the config file if one is given and applies every
// flag that was set on top of it
func ConfigFromFlags(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if flags.ConfigFile != "" {
		loaded, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		cfg = loaded
	} else {
		cfg = config.NewFromViper(config.NewEmptyViper())
	}

	if flags.Provider != "" {
		cfg.Set("llm.provider", flags.Provider)
	}
	if flags.MaxBodySize > 0 {
		cfg.Set("llm.max_body_size", flags.MaxBodySize)
	}

	setIfNotEmpty(cfg, "bedrock.region", flags.BedrockRegion)
	setIfNotEmpty(cfg, "bedrock.model_id", flags.BedrockModelID)
	setIfNotEmpty(cfg, "gemini.api_key", flags.GeminiAPIKey)
	setIfNotEmpty(cfg, "gemini.model_name", flags.GeminiModelName)
	setIfNotEmpty(cfg, "openai.api_key", flags.OpenAIAPIKey)
	setIfNotEmpty(cfg, "openai.model_name", flags.OpenAIModelName)
	setIfNotEmpty(cfg, "reply.from_address", flags.FromAddress)

	// Generation settings apply to the selected provider
	provider := cfg.GetLLM().Provider
	if flags.MaxTokens > 0 {
		cfg.Set(provider+".max_tokens", flags.MaxTokens)
	}
	if flags.Temperature >= 0 {
		cfg.Set(provider+".temperature", flags.Temperature)
	}
	if flags.TopP >= 0 {
		cfg.Set(provider+".top_p", flags.TopP)
	}

	return cfg, nil
}

func setIfNotEmpty(cfg *config.Config, key, value string) {
	if value != "" {
		cfg.Set(key, value)
	}
}
