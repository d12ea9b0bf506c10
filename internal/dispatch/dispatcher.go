package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

// ErrStopped is returned by Submit once the dispatcher has been stopped
var ErrStopped = errors.New("dispatcher stopped")

// Executor drives one run to completion
type Executor interface {
	Execute(ctx context.Context, run *core.Run) (*core.Result, error)
}

// Dispatcher schedules workflow runs in the background, resumes runs left
// incomplete by a previous process and purges finished runs
type Dispatcher struct {
	executor  Executor
	store     core.RunStore
	logger    *zap.Logger
	sem       chan struct{}
	retention time.Duration
	purgeFreq time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active map[string]struct{}
}

// NewDispatcher creates a new dispatcher. maxConcurrent <= 0 means unbounded,
// a zero retention or purge frequency disables purging.
func NewDispatcher(
	executor Executor,
	store core.RunStore,
	logger *zap.Logger,
	maxConcurrent int,
	retention time.Duration,
	purgeFreq time.Duration,
) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		executor:  executor,
		store:     store,
		logger:    logger,
		retention: retention,
		purgeFreq: purgeFreq,
		ctx:       ctx,
		cancel:    cancel,
		active:    make(map[string]struct{}),
	}
	if maxConcurrent > 0 {
		d.sem = make(chan struct{}, maxConcurrent)
	}
	return d
}

// Submit records a PENDING run for payload and executes it asynchronously.
// It returns as soon as the run is recorded.
func (d *Dispatcher) Submit(ctx context.Context, payload *core.InboundPayload) (*core.Run, error) {
	if d.ctx.Err() != nil {
		return nil, ErrStopped
	}

	run := core.NewRun(uuid.NewString(), payload)
	if err := d.store.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	snapshot := *run
	d.launch(run)
	return &snapshot, nil
}

// Start resumes every incomplete run and starts the purge loop
func (d *Dispatcher) Start(ctx context.Context) error {
	runs, err := d.store.ListIncomplete(ctx)
	if err != nil {
		return fmt.Errorf("failed to list incomplete runs: %w", err)
	}

	resumed := 0
	for _, run := range runs {
		if d.launch(run) {
			resumed++
		}
	}
	if resumed > 0 {
		d.logger.Info("Resuming incomplete runs", zap.Int("count", resumed))
	}

	if d.retention > 0 && d.purgeFreq > 0 {
		d.wg.Add(1)
		go d.purgeLoop()
	}

	return nil
}

// Stop cancels in-flight runs, which stay resumable, and waits for them
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for runs: %w", ctx.Err())
	}
}

// Purge deletes finished runs older than the retention period
func (d *Dispatcher) Purge(ctx context.Context) (int64, error) {
	purged, err := d.store.PurgeBefore(ctx, time.Now().Add(-d.retention))
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	if purged > 0 {
		d.logger.Debug("Purged finished runs", zap.Int64("count", purged))
	}
	return purged, nil
}

// launch starts run unless it is already executing
func (d *Dispatcher) launch(run *core.Run) bool {
	d.mu.Lock()
	if _, ok := d.active[run.ID]; ok {
		d.mu.Unlock()
		return false
	}
	d.active[run.ID] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(run.ID)

		if d.sem != nil {
			select {
			case d.sem <- struct{}{}:
				defer func() { <-d.sem }()
			case <-d.ctx.Done():
				return
			}
		}

		if _, err := d.executor.Execute(d.ctx, run); err != nil {
			d.logger.Debug("Run ended without success",
				zap.String("run_id", run.ID),
				zap.String("state", string(run.State)),
				zap.Error(err))
		}
	}()
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

func (d *Dispatcher) purgeLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.purgeFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.Purge(d.ctx); err != nil && d.ctx.Err() == nil {
				d.logger.Error("Failed to purge runs", zap.Error(err))
			}
		case <-d.ctx.Done():
			return
		}
	}
}
