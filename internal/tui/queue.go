package tui

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/google/uuid"
)

// Queue holds operations made while offline until the daemon has reconciled
// them. It is persisted to a JSON file after every change so queued work
// survives restarts.
type Queue struct {
	path string
	mu   sync.Mutex
	ops  []reconcile.Operation
}

// Resolution summarizes what a batch result did to the queue.
type Resolution struct {
	Applied  int
	Retrying int
	// Rejected operations are dropped from the queue. Those carrying a server
	// snapshot are the ones the client should adopt.
	Rejected []reconcile.Rejected
}

// DefaultQueuePath returns ~/.listsync/queue.json.
func DefaultQueuePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".listsync", "queue.json")
}

// OpenQueue loads the queue stored at path. An empty path keeps the queue in
// memory only.
func OpenQueue(path string) (*Queue, error) {
	q := &Queue{path: path, ops: []reconcile.Operation{}}
	if path == "" {
		return q, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if len(data) == 0 {
		return q, nil
	}
	if err := json.Unmarshal(data, &q.ops); err != nil {
		return nil, fmt.Errorf("decode queue %s: %w", path, err)
	}
	return q, nil
}

// Enqueue appends a new operation and persists the queue.
func (q *Queue) Enqueue(p reconcile.Payload, now time.Time) (reconcile.Operation, error) {
	op := reconcile.Operation{
		ID:        uuid.New().String(),
		Timestamp: now.UTC(),
		Payload:   p,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
	if err := q.saveLocked(); err != nil {
		q.ops = q.ops[:len(q.ops)-1]
		return reconcile.Operation{}, err
	}
	return op, nil
}

// Pending returns a copy of the queued operations in submission order.
func (q *Queue) Pending() []reconcile.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]reconcile.Operation(nil), q.ops...)
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Resolve removes operations the daemon accepted or rejected for good.
// Storage errors are transient: those operations stay queued with their retry
// count bumped. Operations the result does not mention stay queued untouched.
func (q *Queue) Resolve(result reconcile.BatchResult) (Resolution, error) {
	accepted := make(map[string]bool, len(result.Success))
	for _, a := range result.Success {
		accepted[a.ID] = true
	}
	failed := make(map[string]reconcile.Rejected, len(result.Failed))
	for _, f := range result.Failed {
		failed[f.ID] = f
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var res Resolution
	kept := q.ops[:0]
	for _, op := range q.ops {
		if accepted[op.ID] {
			res.Applied++
			continue
		}
		f, ok := failed[op.ID]
		if !ok {
			kept = append(kept, op)
			continue
		}
		if f.Reason == reconcile.ReasonStorageError {
			op.RetryCount++
			res.Retrying++
			kept = append(kept, op)
			continue
		}
		res.Rejected = append(res.Rejected, f)
	}
	q.ops = kept
	return res, q.saveLocked()
}

func (q *Queue) saveLocked() error {
	if q.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(q.ops, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(q.path), 0o700); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return os.Rename(tmp, q.path)
}
