package config

import "time"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider    string
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// EmailConfig represents the configuration for the email provider
type EmailConfig struct {
	Transport string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
}

// SMTPConfig represents the configuration for the SMTP transport
type SMTPConfig struct {
	Address    string
	Port       int
	Username   string
	Password   string
	Helo       string
	RequireTLS bool
	Timeout    time.Duration
}

// ReplyConfig holds the process-wide reply constants
type ReplyConfig struct {
	FromAddress  string
	FooterHTML   string
	SanitizeHTML bool
}

// ServerConfig represents the configuration for the webhook server
type ServerConfig struct {
	ListenAddress     string
	WebhookPath       string
	WebhookSecret     string
	MaxBodyBytes      int64
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	SuppressedDomains []string
}

// StoreConfig represents the configuration for the run store
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// WorkflowConfig represents the configuration for run scheduling
type WorkflowConfig struct {
	MaxConcurrent  int
	Retention      time.Duration
	PurgeFrequency time.Duration
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:    c.GetString("llm.provider"),
		MaxBodySize: c.GetInt("llm.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetEmail returns the email provider configuration
func (c *Config) GetEmail() EmailConfig {
	return EmailConfig{
		Transport: c.GetString("email.transport"),
		APIKey:    c.GetString("email.api_key"),
		BaseURL:   c.GetString("email.base_url"),
		Timeout:   c.durationOr("email.timeout", 30*time.Second),
	}
}

// GetSMTP returns the SMTP transport configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Address:    c.GetString("smtp.address"),
		Port:       c.GetInt("smtp.port"),
		Username:   c.GetString("smtp.username"),
		Password:   c.GetString("smtp.password"),
		Helo:       c.GetString("smtp.helo"),
		RequireTLS: c.GetBool("smtp.require_tls"),
		Timeout:    c.durationOr("smtp.timeout", 30*time.Second),
	}
}

// GetReply returns the reply configuration
func (c *Config) GetReply() ReplyConfig {
	return ReplyConfig{
		FromAddress:  c.GetString("reply.from_address"),
		FooterHTML:   c.GetString("reply.footer_html"),
		SanitizeHTML: c.GetBool("reply.sanitize_html"),
	}
}

// GetServer returns the webhook server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:     c.GetString("server.listen_address"),
		WebhookPath:       c.GetString("server.webhook_path"),
		WebhookSecret:     c.GetString("server.webhook_secret"),
		MaxBodyBytes:      int64(c.GetInt("server.max_body_bytes")),
		ReadTimeout:       c.durationOr("server.read_timeout", 15*time.Second),
		WriteTimeout:      c.durationOr("server.write_timeout", 30*time.Second),
		SuppressedDomains: c.GetStringSlice("server.suppressed_domains"),
	}
}

// GetStore returns the run store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetWorkflow returns the run scheduling configuration
func (c *Config) GetWorkflow() WorkflowConfig {
	return WorkflowConfig{
		MaxConcurrent:  c.GetInt("workflow.max_concurrent"),
		Retention:      c.durationOr("workflow.retention", 24*time.Hour),
		PurgeFrequency: c.durationOr("workflow.purge_frequency", time.Hour),
	}
}

// durationOr returns the parsed duration at key, or fallback if it does not parse.
// Validate reports unparsable durations at start-up.
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}
