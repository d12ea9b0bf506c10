package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/mikey/llm-spam-reply/internal/di"
	"github.com/mikey/llm-spam-reply/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type downLLM struct{ err error }

func (d downLLM) GenerateObject(ctx context.Context, req *core.ObjectRequest) ([]byte, error) {
	return nil, d.err
}

func (d downLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return "", d.err
}

type failingComposer struct{ err error }

func (f failingComposer) Compose(ctx context.Context, d *core.DetectionResult, p *core.InboundPayload) (*core.ReplyContent, error) {
	return nil, f.err
}

type fixedClassifier struct{}

func (fixedClassifier) Classify(ctx context.Context, p *core.InboundPayload) (*core.DetectionResult, error) {
	return &core.DetectionResult{Confidence: 0.8, Reasoning: "fine", References: []string{}}, nil
}

func writePayload(t *testing.T) *di.CLIFlags {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbound.json")
	body := `{"event":"email.received","email":{"id":"em_1","from":"alice@example.com","subject":"Prize"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return &di.CLIFlags{InputFile: path}
}

func TestRunReportsStepErrorsOnce(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())

	t.Run("classify", func(t *testing.T) {
		boom := errors.New("model unavailable")
		logger := zaptest.NewLogger(t)
		classifier := core.NewLLMClassifier(downLLM{err: boom}, utils.NewTextProcessor(logger), 4096, logger)

		err := run(writePayload(t), cfg, logger, nil, classifier, nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, strings.Count(err.Error(), "failed to classify email"))
	})

	t.Run("compose", func(t *testing.T) {
		err := run(writePayload(t), cfg, zaptest.NewLogger(t), nil, fixedClassifier{}, failingComposer{err: core.ErrEmptyReply}, nil)
		assert.ErrorIs(t, err, core.ErrEmptyReply)
		assert.Equal(t, core.ErrEmptyReply.Error(), err.Error())
	})
}
