package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewFromViper(NewEmptyViper())
	cfg.Set("openai.api_key", "sk-test")
	cfg.Set("email.api_key", "key-test")
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "openai", cfg.GetLLM().Provider)
	assert.Equal(t, "api", cfg.GetEmail().Transport)
	assert.Equal(t, 30*time.Second, cfg.GetEmail().Timeout)
	assert.Equal(t, "sqlite", cfg.GetStore().Type)
	assert.True(t, cfg.GetReply().SanitizeHTML)

	server := cfg.GetServer()
	assert.Equal(t, "/webhook/inbound", server.WebhookPath)
	assert.Equal(t, int64(10*1024*1024), server.MaxBodyBytes)
	assert.Equal(t, 15*time.Second, server.ReadTimeout)

	workflow := cfg.GetWorkflow()
	assert.Equal(t, 16, workflow.MaxConcurrent)
	assert.Equal(t, 24*time.Hour, workflow.Retention)
	assert.Equal(t, time.Hour, workflow.PurgeFrequency)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("REPLY_FROM_ADDRESS", "Support <support@example.com>")
	t.Setenv("SPAM_REPLY_LLM_PROVIDER", "gemini")
	t.Setenv("SPAM_REPLY_WORKFLOW_MAX_CONCURRENT", "4")
	t.Setenv("GEMINI_API_KEY", "gm-test")

	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "Support <support@example.com>", cfg.GetReply().FromAddress)
	assert.Equal(t, "gemini", cfg.GetLLM().Provider)
	assert.Equal(t, 4, cfg.GetWorkflow().MaxConcurrent)
	assert.Equal(t, "gm-test", cfg.GetGemini().APIKey)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  provider: bedrock
email:
  transport: smtp
smtp:
  address: relay.example.com
  port: 2525
  require_tls: true
  timeout: 5s
server:
  suppressed_domains:
    - example.org
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	smtp := cfg.GetSMTP()
	assert.Equal(t, "relay.example.com", smtp.Address)
	assert.Equal(t, 2525, smtp.Port)
	assert.True(t, smtp.RequireTLS)
	assert.Equal(t, 5*time.Second, smtp.Timeout)
	assert.Equal(t, []string{"example.org"}, cfg.GetServer().SuppressedDomains)
	assert.NoError(t, cfg.Validate())
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Set("llm.provider", "ollama") },
			wantErr: "unsupported LLM provider",
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.Set("openai.api_key", "") },
			wantErr: "openai.api_key",
		},
		{
			name: "gemini without key",
			mutate: func(c *Config) {
				c.Set("llm.provider", "gemini")
				c.Set("gemini.api_key", "")
			},
			wantErr: "gemini.api_key",
		},
		{
			name:    "api transport without key",
			mutate:  func(c *Config) { c.Set("email.api_key", "") },
			wantErr: "email.api_key",
		},
		{
			name: "smtp transport needs no key",
			mutate: func(c *Config) {
				c.Set("email.transport", "smtp")
				c.Set("email.api_key", "")
			},
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Set("email.transport", "pigeon") },
			wantErr: "unsupported email transport",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Set("store.type", "redis") },
			wantErr: "unsupported store type",
		},
		{
			name:    "bad duration",
			mutate:  func(c *Config) { c.Set("workflow.retention", "a day") },
			wantErr: "workflow.retention",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUnparsableDurationFallsBack(t *testing.T) {
	cfg := validConfig(t)
	cfg.Set("server.write_timeout", "soon")
	assert.Equal(t, 30*time.Second, cfg.GetServer().WriteTimeout)
}
