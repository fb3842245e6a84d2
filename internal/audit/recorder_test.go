package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/fentz26/listsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var auditTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRecorder_WritesEntries(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer s.Close()

	clock := reconcile.NewFixedClock(auditTime)
	rec := NewRecorder(s, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	del := reconcile.Operation{ID: "op-1", Payload: reconcile.TaskDelete{ID: "t1", RelationID: "r1", LastModified: auditTime}}
	rec.Record(ctx, "u1", del, reconcile.Outcome{Accepted: true})
	clock.Advance(time.Second)
	rec.Record(ctx, "u1", del, reconcile.Outcome{Reason: reconcile.ReasonVersionConflict})

	entries, err := s.ListAudit(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	latest, first := entries[0], entries[1]
	assert.Equal(t, OutcomeRejected, latest.Outcome)
	assert.Equal(t, "version conflict", latest.Reason)
	assert.Equal(t, OutcomeAccepted, first.Outcome)
	assert.Equal(t, "task-delete", first.Kind)
	assert.Equal(t, "op-1", first.OperationID)
	assert.True(t, first.Timestamp.Equal(auditTime))

	// The same payload hashes identically.
	assert.Len(t, first.InputsHash, 64)
	assert.Equal(t, first.InputsHash, latest.InputsHash)
}

type failingWriter struct{ calls int }

func (w *failingWriter) WriteAudit(context.Context, models.AuditEntry) (*models.AuditEntry, error) {
	w.calls++
	return nil, errors.New("read-only database")
}

func TestRecorder_WriteFailureIsSwallowed(t *testing.T) {
	w := &failingWriter{}
	rec := NewRecorder(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), "u1", reconcile.Operation{ID: "op-1"}, reconcile.Outcome{Accepted: true})
	})
	assert.Equal(t, 1, w.calls)
}

func TestHashInputs(t *testing.T) {
	a := hashInputs(map[string]string{"id": "t1"})
	b := hashInputs(map[string]string{"id": "t2"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "hash_error", hashInputs(make(chan int)))
}
