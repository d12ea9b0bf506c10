package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/llm-spam-reply/")
	v.AddConfigPath("$HOME/.llm-spam-reply")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit config file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and env bindings
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SPAM_REPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional names used by the provider SDKs and deployment docs
	_ = v.BindEnv("openai.api_key", "SPAM_REPLY_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini.api_key", "SPAM_REPLY_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("email.api_key", "SPAM_REPLY_EMAIL_API_KEY", "EMAIL_API_KEY")
	_ = v.BindEnv("reply.from_address", "SPAM_REPLY_REPLY_FROM_ADDRESS", "REPLY_FROM_ADDRESS")
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.max_body_size", 8192)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-5-sonnet-20240620-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Email provider defaults
	v.SetDefault("email.transport", "api")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.base_url", "https://inbound.new/api/v2")
	v.SetDefault("email.timeout", "30s")

	// SMTP defaults
	v.SetDefault("smtp.address", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.helo", "")
	v.SetDefault("smtp.require_tls", false)
	v.SetDefault("smtp.timeout", "30s")

	// Reply defaults
	v.SetDefault("reply.from_address", "")
	v.SetDefault("reply.footer_html", core.DefaultFooterHTML)
	v.SetDefault("reply.sanitize_html", true)

	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8080")
	v.SetDefault("server.webhook_path", "/webhook/inbound")
	v.SetDefault("server.webhook_secret", "")
	v.SetDefault("server.max_body_bytes", 10*1024*1024)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.suppressed_domains", []string{})

	// Run store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "/data/spam_reply.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/spam_reply")

	// Workflow defaults
	v.SetDefault("workflow.max_concurrent", 16)
	v.SetDefault("workflow.retention", "24h")
	v.SetDefault("workflow.purge_frequency", "1h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that the selected components are known and have their credentials
func (c *Config) Validate() error {
	switch p := c.GetString("llm.provider"); p {
	case "openai":
		if c.GetString("openai.api_key") == "" {
			return fmt.Errorf("openai.api_key is required for provider openai")
		}
	case "gemini":
		if c.GetString("gemini.api_key") == "" {
			return fmt.Errorf("gemini.api_key is required for provider gemini")
		}
	case "bedrock":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", p)
	}

	switch t := c.GetString("email.transport"); t {
	case "api":
		if c.GetString("email.api_key") == "" {
			return fmt.Errorf("email.api_key is required for transport api")
		}
	case "smtp":
	default:
		return fmt.Errorf("unsupported email transport: %s", t)
	}

	switch s := c.GetString("store.type"); s {
	case "memory", "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported store type: %s", s)
	}

	for _, key := range []string{"email.timeout", "smtp.timeout", "server.read_timeout", "server.write_timeout", "workflow.retention", "workflow.purge_frequency"} {
		if _, err := c.GetDuration(key); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	return nil
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
