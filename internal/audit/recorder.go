// Package audit records how every replayed operation was reconciled.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
)

// Outcome values stored in the audit trail.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Writer persists audit entries.
type Writer interface {
	WriteAudit(ctx context.Context, entry models.AuditEntry) (*models.AuditEntry, error)
}

// Recorder writes one audit entry per processed operation.
type Recorder struct {
	store  Writer
	clock  reconcile.Clock
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given writer.
func NewRecorder(w Writer, clock reconcile.Clock, logger *slog.Logger) *Recorder {
	if clock == nil {
		clock = reconcile.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: w, clock: clock, logger: logger.With("component", "audit")}
}

// Record stores the outcome of op. Write failures are logged; they never
// affect the batch.
func (r *Recorder) Record(ctx context.Context, userID string, op reconcile.Operation, out reconcile.Outcome) {
	entry := models.AuditEntry{
		UserID:      userID,
		OperationID: op.ID,
		Kind:        string(op.Kind()),
		InputsHash:  hashInputs(op.Payload),
		Outcome:     OutcomeAccepted,
		Timestamp:   r.clock.Now(),
	}
	if !out.Accepted {
		entry.Outcome = OutcomeRejected
		entry.Reason = string(out.Reason)
	}
	if _, err := r.store.WriteAudit(ctx, entry); err != nil {
		r.logger.Warn("write audit entry", "op_id", op.ID, "error", err)
	}
}

// hashInputs creates a SHA256 hash of the operation payload so replays of the
// same operation can be matched without storing user content.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

