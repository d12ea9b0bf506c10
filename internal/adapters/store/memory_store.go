package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/llm-spam-reply/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the RunStore interface.
// Runs do not survive a restart.
type MemoryStore struct {
	runs   map[string]core.Run
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore creates a new in-memory run store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		runs:   make(map[string]core.Run),
		logger: logger,
	}
}

// Create records a new run
func (s *MemoryStore) Create(ctx context.Context, run *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return ErrDuplicateRun
	}
	s.runs[run.ID] = *run
	return nil
}

// Save checkpoints the current state of a run
func (s *MemoryStore) Save(ctx context.Context, run *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return core.ErrRunNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

// Get loads a run by id
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return &run, nil
}

// ListIncomplete returns all runs that are not in a terminal state, oldest first
func (s *MemoryStore) ListIncomplete(ctx context.Context) ([]*core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*core.Run
	for _, run := range s.runs {
		if !run.State.Terminal() {
			r := run
			runs = append(runs, &r)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// PurgeBefore removes terminal runs last updated before t
func (s *MemoryStore) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, run := range s.runs {
		if run.State.Terminal() && run.UpdatedAt.Before(t) {
			delete(s.runs, id)
			purged++
		}
	}

	s.logger.Debug("Purged finished runs", zap.Int64("purged_count", purged))
	return purged, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
