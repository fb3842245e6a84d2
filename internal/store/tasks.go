package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fentz26/listsync/internal/models"
)

const taskColumns = `id, task, task_relations_id, created_at, completed_at, completed_by, order_idx, last_modified`

func scanTask(row scanner) (*models.Task, error) {
	var task models.Task
	var completedAt sql.NullTime
	var completedBy sql.NullString
	if err := row.Scan(&task.ID, &task.Text, &task.RelationID, &task.CreatedAt, &completedAt, &completedBy, &task.OrderIdx, &task.LastModified); err != nil {
		return nil, err
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.LastModified = task.LastModified.UTC()
	task.CompletedAt = nullTimePtr(completedAt)
	task.CompletedBy = nullStringPtr(completedBy)
	return &task, nil
}

// GetTaskByID returns the task with the given id inside a relation.
func (s *Store) GetTaskByID(ctx context.Context, taskID, relationID string) (*models.Task, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND task_relations_id = ?`),
		taskID, relationID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasksByRelation returns the tasks of a relation in display order.
func (s *Store) ListTasksByRelation(ctx context.Context, relationID string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+taskColumns+` FROM tasks WHERE task_relations_id = ? ORDER BY order_idx ASC, created_at ASC`),
		relationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task with its caller-supplied id.
// A second insert with the same id returns ErrDuplicateID.
func (s *Store) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		task.ID, task.Text, task.RelationID, task.CreatedAt.UTC(), task.CompletedAt, task.CompletedBy, task.OrderIdx, task.LastModified.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateID
	}
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return &task, nil
}

// UpdateTask writes the mutable fields of a task.
func (s *Store) UpdateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE tasks SET task = ?, completed_at = ?, completed_by = ?, order_idx = ?, last_modified = ?
		 WHERE id = ? AND task_relations_id = ?`),
		task.Text, task.CompletedAt, task.CompletedBy, task.OrderIdx, task.LastModified.UTC(), task.ID, task.RelationID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return &task, nil
}

// DeleteTask removes a task and returns the removed row.
func (s *Store) DeleteTask(ctx context.Context, taskID string) (*models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	task, err := scanTask(tx.QueryRowContext(ctx, s.rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM tasks WHERE id = ?`), taskID); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

// ReorderTasks writes order_idx and last_modified for every task in one
// transaction. Tasks that vanished since they were read are skipped; the
// returned slice holds only the rows that were updated.
func (s *Store) ReorderTasks(ctx context.Context, tasks []models.Task) ([]models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`UPDATE tasks SET order_idx = ?, last_modified = ? WHERE id = ? AND task_relations_id = ?`)
	applied := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		res, err := tx.ExecContext(ctx, query, task.OrderIdx, task.LastModified.UTC(), task.ID, task.RelationID)
		if err != nil {
			return nil, fmt.Errorf("reorder task %s: %w", task.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("check rows affected: %w", err)
		}
		if n > 0 {
			applied = append(applied, task)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return applied, nil
}
