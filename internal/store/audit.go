package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fentz26/listsync/internal/models"
	"github.com/google/uuid"
)

// --- Audit Operations ---

// WriteAudit appends a reconciliation audit record.
func (s *Store) WriteAudit(ctx context.Context, entry models.AuditEntry) (*models.AuditEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	var reason sql.NullString
	if entry.Reason != "" {
		reason = sql.NullString{String: entry.Reason, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO sync_audit (id, user_id, operation_id, kind, inputs_hash, outcome, reason, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.UserID, entry.OperationID, entry.Kind, entry.InputsHash, entry.Outcome, reason, entry.Timestamp.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return &entry, nil
}

// ListAudit returns the most recent audit records of a user, newest first.
func (s *Store) ListAudit(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, user_id, operation_id, kind, inputs_hash, outcome, reason, timestamp
		 FROM sync_audit WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.OperationID, &e.Kind, &e.InputsHash, &e.Outcome, &reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Reason = reason.String
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
