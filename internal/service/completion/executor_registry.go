package completion

import (
	"context"
	"sync"
	"time"
)

// ExecutorRegistry manages all active MessageExecutor instances.
//
// Design:
//   - One executor per streaming message (keyed by message id)
//   - Thread-safe access via RWMutex
//   - Background cleanup removes executors in a terminal state after a
//     retention window, so late reconnects can still fetch the final event
type ExecutorRegistry struct {
	executors map[string]*MessageExecutor // messageID -> executor
	mu        sync.RWMutex

	cleanupInterval time.Duration
	retentionPeriod time.Duration

	completionTimes map[string]time.Time // messageID -> terminal time
	timesMu         sync.RWMutex
}

// NewExecutorRegistry creates a new ExecutorRegistry
func NewExecutorRegistry(cleanupInterval, retentionPeriod time.Duration) *ExecutorRegistry {
	return &ExecutorRegistry{
		executors:       make(map[string]*MessageExecutor),
		cleanupInterval: cleanupInterval,
		retentionPeriod: retentionPeriod,
		completionTimes: make(map[string]time.Time),
	}
}

// Register registers an executor for a message.
// Returns false if one is already registered for that message.
func (r *ExecutorRegistry) Register(messageID string, executor *MessageExecutor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[messageID]; exists {
		return false
	}

	r.executors[messageID] = executor
	return true
}

// Get retrieves the executor for a message, nil if none exists
func (r *ExecutorRegistry) Get(messageID string) *MessageExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.executors[messageID]
}

// Remove removes an executor. Safe to call when none exists.
func (r *ExecutorRegistry) Remove(messageID string) {
	r.mu.Lock()
	delete(r.executors, messageID)
	r.mu.Unlock()

	r.timesMu.Lock()
	delete(r.completionTimes, messageID)
	r.timesMu.Unlock()
}

// MarkCompleted records when an executor reached a terminal state, starting
// its retention clock
func (r *ExecutorRegistry) MarkCompleted(messageID string) {
	r.timesMu.Lock()
	defer r.timesMu.Unlock()

	r.completionTimes[messageID] = time.Now()
}

// StartCleanup runs the background cleanup loop until ctx is cancelled
func (r *ExecutorRegistry) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

// cleanup removes terminal executors past their retention window
func (r *ExecutorRegistry) cleanup() {
	now := time.Now()

	var toRemove []string

	r.mu.RLock()
	for messageID, executor := range r.executors {
		switch executor.GetStatus() {
		case StatusComplete, StatusError, StatusCancelled:
			r.timesMu.RLock()
			completionTime, tracked := r.completionTimes[messageID]
			r.timesMu.RUnlock()

			if tracked && now.Sub(completionTime) > r.retentionPeriod {
				toRemove = append(toRemove, messageID)
			} else if !tracked {
				r.MarkCompleted(messageID)
			}
		}
	}
	r.mu.RUnlock()

	if len(toRemove) == 0 {
		return
	}

	r.mu.Lock()
	for _, messageID := range toRemove {
		delete(r.executors, messageID)
	}
	r.mu.Unlock()

	r.timesMu.Lock()
	for _, messageID := range toRemove {
		delete(r.completionTimes, messageID)
	}
	r.timesMu.Unlock()
}

// Count returns the number of registered executors
func (r *ExecutorRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.executors)
}
