package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Workflow sequences classify, compose and deliver for one run, checkpointing
// the run after every step so an interrupted run resumes where it stopped.
type Workflow struct {
	classifier Classifier
	composer   Composer
	deliverer  Deliverer
	store      RunStore
	logger     *zap.Logger
}

// NewWorkflow creates a new workflow orchestrator
func NewWorkflow(
	classifier Classifier,
	composer Composer,
	deliverer Deliverer,
	store RunStore,
	logger *zap.Logger,
) *Workflow {
	return &Workflow{
		classifier: classifier,
		composer:   composer,
		deliverer:  deliverer,
		store:      store,
		logger:     logger,
	}
}

// Execute drives run from its recorded state to DONE. Steps already
// checkpointed are not re-run. A step error marks the run FAILED and is
// returned unchanged; a cancelled context leaves the run resumable.
func (w *Workflow) Execute(ctx context.Context, run *Run) (*Result, error) {
	log := w.logger.With(
		zap.String("run_id", run.ID),
		zap.String("email_id", run.EmailID))

	if run.State.Terminal() {
		return w.finish(run)
	}

	log.Info("Workflow started", zap.String("state", string(run.State)))
	startTime := time.Now()

	for !run.State.Terminal() {
		if err := w.step(ctx, log, run); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				log.Warn("Workflow interrupted",
					zap.String("state", string(run.State)),
					zap.Error(err))
				return nil, err
			}
			w.fail(log, run, err)
			return nil, err
		}
	}

	log.Info("Workflow completed",
		zap.Bool("is_spam", run.Detection.IsSpam),
		zap.String("reply_id", run.Send.ID),
		zap.Duration("duration", time.Since(startTime)))

	return w.finish(run)
}

// step runs the single step that follows the run's current state
func (w *Workflow) step(ctx context.Context, log *zap.Logger, run *Run) error {
	switch run.State {
	case StatePending:
		log.Info("Step started", zap.String("step", "classify"))
		detection, err := w.classifier.Classify(ctx, run.Payload)
		if err != nil {
			return err
		}
		run.Detection = detection
		if err := w.checkpoint(ctx, run, StateClassified); err != nil {
			return err
		}
		log.Info("Step completed",
			zap.String("step", "classify"),
			zap.Bool("is_spam", detection.IsSpam),
			zap.Float64("confidence", detection.Confidence))

	case StateClassified:
		log.Info("Step started", zap.String("step", "compose"))
		reply, err := w.composer.Compose(ctx, run.Detection, run.Payload)
		if err != nil {
			return err
		}
		run.Reply = reply
		if err := w.checkpoint(ctx, run, StateComposed); err != nil {
			return err
		}
		log.Info("Step completed", zap.String("step", "compose"))

	case StateComposed:
		log.Info("Step started", zap.String("step", "deliver"))
		send, err := w.deliverer.Deliver(ctx, run.EmailID, run.Reply, run.Payload)
		if err != nil {
			return err
		}
		run.Send = send
		if err := w.checkpoint(ctx, run, StateSent); err != nil {
			return err
		}
		log.Info("Step completed",
			zap.String("step", "deliver"),
			zap.String("reply_id", send.ID))

	case StateSent:
		return w.checkpoint(ctx, run, StateDone)

	default:
		return fmt.Errorf("unknown run state %q", run.State)
	}
	return nil
}

func (w *Workflow) checkpoint(ctx context.Context, run *Run, state RunState) error {
	prev := run.State
	run.State = state
	run.UpdatedAt = time.Now().UTC()
	if err := w.store.Save(ctx, run); err != nil {
		run.State = prev
		return fmt.Errorf("failed to checkpoint run in state %s: %w", state, err)
	}
	return nil
}

func (w *Workflow) fail(log *zap.Logger, run *Run, cause error) {
	failedAt := run.State
	run.State = StateFailed
	run.Error = cause.Error()
	run.UpdatedAt = time.Now().UTC()

	log.Error("Workflow failed",
		zap.String("failed_after", string(failedAt)),
		zap.Error(cause))

	// The caller's context may already be unusable, the failure still has to be recorded
	if err := w.store.Save(context.Background(), run); err != nil {
		log.Error("Failed to record run failure", zap.Error(err))
	}
}

func (w *Workflow) finish(run *Run) (*Result, error) {
	if run.State != StateDone {
		return nil, fmt.Errorf("run %s failed: %s", run.ID, run.Error)
	}
	return &Result{
		Success:         true,
		EmailID:         run.EmailID,
		DetectionResult: run.Detection,
		Reply:           run.Reply.HTML,
		SendResult:      run.Send,
	}, nil
}
