package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mikey/llm-spam-reply/internal/adapters/webhook"
	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/mikey/llm-spam-reply/internal/di"
	"github.com/mikey/llm-spam-reply/internal/factory"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// run classifies one webhook payload and drafts the reply, delivering it with -send
func run(
	flags *di.CLIFlags,
	cfg *config.Config,
	logger *zap.Logger,
	llmClient core.LLMClient,
	classifier core.Classifier,
	composer core.Composer,
	senderFactory *factory.SenderFactory,
) error {
	defer logger.Sync()
	defer func() {
		if closer, ok := llmClient.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close LLM client", zap.Error(err))
			}
		}
	}()

	payload, err := readPayload(flags.InputFile, logger)
	if err != nil {
		return err
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("Email ID: %s\n", payload.EmailID)
	fmt.Printf("From: %s\n", payload.From)
	fmt.Printf("To: %s\n", payload.To)
	fmt.Printf("Subject: %s\n", payload.Subject)
	fmt.Printf("Body length: %d bytes\n", len(payload.HTMLBody)+len(payload.TextBody))
	fmt.Printf("\n")

	ctx := context.Background()

	// Classify
	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetLLM().Provider)

	startTime := time.Now()
	detection, err := classifier.Classify(ctx, payload)
	if err != nil {
		return err
	}

	fmt.Printf("Verdict: %s\n", detection.Verdict())
	fmt.Printf("Is spam: %t\n", detection.IsSpam)
	fmt.Printf("Confidence: %.4f\n", detection.Confidence)
	fmt.Printf("Reasoning: %s\n", detection.Reasoning)
	for _, ref := range detection.References {
		fmt.Printf("  - %s\n", ref)
	}

	// Compose
	reply, err := composer.Compose(ctx, detection, payload)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Reply ===\n")
	fmt.Printf("%s\n", core.HTMLToText(reply.HTML))
	fmt.Printf("\nProcessing time: %v\n", time.Since(startTime))

	if !flags.Send {
		return nil
	}

	// Deliver
	sender, err := senderFactory.CreateEmailSender()
	if err != nil {
		return fmt.Errorf("failed to create email sender: %w", err)
	}
	delivery := core.NewReplyDelivery(sender, cfg.GetReply().FromAddress, logger)

	receipt, err := delivery.Deliver(ctx, payload.EmailID, reply, payload)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Delivery ===\n")
	fmt.Printf("From: %s\n", delivery.FromAddress())
	fmt.Printf("Reply ID: %s\n", receipt.ID)
	fmt.Printf("Message ID: %s\n", receipt.MessageID)
	return nil
}

// readPayload decodes a webhook body from path, or stdin if path is empty
func readPayload(path string, logger *zap.Logger) (*core.InboundPayload, error) {
	var reader io.Reader
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading webhook payload from file", zap.String("file", path))
	} else {
		reader = os.Stdin
		logger.Info("Reading webhook payload from stdin")
	}

	var payload webhook.Payload
	if err := json.NewDecoder(reader).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	return payload.ToInbound(), nil
}
