package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/listsync/internal/models"
	"github.com/google/uuid"
)

// --- User Operations ---

// CreateUser inserts a new user. A taken email returns ErrDuplicateID.
func (s *Store) CreateUser(ctx context.Context, email, name string) (*models.User, error) {
	user := &models.User{
		ID:    uuid.New().String(),
		Email: email,
		Name:  name,
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`),
		user.ID, user.Email, user.Name,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateID
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, email, name FROM users WHERE id = ?`), id).
		Scan(&user.ID, &user.Email, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, email, name FROM users WHERE email = ?`), email).
		Scan(&user.ID, &user.Email, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// --- Relation Operations ---

const relationColumns = `id, name, created_at, last_modified, relation_location`

func scanRelation(row scanner) (*models.Relation, error) {
	var rel models.Relation
	if err := row.Scan(&rel.ID, &rel.Name, &rel.CreatedAt, &rel.LastModified, &rel.Location); err != nil {
		return nil, err
	}
	rel.CreatedAt = rel.CreatedAt.UTC()
	rel.LastModified = rel.LastModified.UTC()
	return &rel, nil
}

// CreateRelation inserts a relation owned by ownerID together with its
// initial tasks, all in one transaction.
func (s *Store) CreateRelation(ctx context.Context, name, ownerID string, createdAt time.Time, tasks []models.Task) (*models.RelationWithTasks, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rel := models.Relation{
		ID:           uuid.New().String(),
		Name:         name,
		CreatedAt:    createdAt.UTC(),
		LastModified: createdAt.UTC(),
		Location:     models.LocationServer,
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO task_relations (`+relationColumns+`) VALUES (?, ?, ?, ?, ?)`),
		rel.ID, rel.Name, rel.CreatedAt, rel.LastModified, rel.Location,
	); err != nil {
		return nil, fmt.Errorf("insert relation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO task_permissions (task_relation_id, user_id, permission) VALUES (?, ?, ?)`),
		rel.ID, ownerID, models.PermissionOwner,
	); err != nil {
		return nil, fmt.Errorf("insert owner permission: %w", err)
	}

	insertTask := s.rebind(`INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	created := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		task.RelationID = rel.ID
		if _, err := tx.ExecContext(ctx, insertTask,
			task.ID, task.Text, task.RelationID, task.CreatedAt.UTC(), task.CompletedAt, task.CompletedBy, task.OrderIdx, task.LastModified.UTC(),
		); err != nil {
			if isUniqueViolation(err) {
				return nil, ErrDuplicateID
			}
			return nil, fmt.Errorf("insert task: %w", err)
		}
		created = append(created, task)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &models.RelationWithTasks{Relation: rel, Tasks: created}, nil
}

// GetRelationByID retrieves a relation by ID.
func (s *Store) GetRelationByID(ctx context.Context, id string) (*models.Relation, error) {
	rel, err := scanRelation(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+relationColumns+` FROM task_relations WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query relation: %w", err)
	}
	return rel, nil
}

// UpdateRelationName renames a relation and stamps its last_modified.
func (s *Store) UpdateRelationName(ctx context.Context, id, name string, lastModified time.Time) (*models.Relation, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE task_relations SET name = ?, last_modified = ? WHERE id = ?`),
		name, lastModified.UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update relation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetRelationByID(ctx, id)
}

// DeleteRelation removes a relation with its tasks and permissions.
func (s *Store) DeleteRelation(ctx context.Context, id string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Children go first so the delete does not depend on foreign key enforcement.
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM tasks WHERE task_relations_id = ?`), id); err != nil {
		return "", fmt.Errorf("delete relation tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM task_permissions WHERE task_relation_id = ?`), id); err != nil {
		return "", fmt.Errorf("delete relation permissions: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM task_relations WHERE id = ?`), id)
	if err != nil {
		return "", fmt.Errorf("delete relation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return "", ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// ListRelationsForUser returns every relation the user holds a permission on.
func (s *Store) ListRelationsForUser(ctx context.Context, userID string) ([]models.RelationSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT r.id, r.name, r.created_at, r.last_modified, r.relation_location, p.permission
		 FROM task_relations r JOIN task_permissions p ON p.task_relation_id = r.id
		 WHERE p.user_id = ? ORDER BY r.created_at ASC`),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}

	summaries := []models.RelationSummary{}
	for rows.Next() {
		var sum models.RelationSummary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.CreatedAt, &sum.LastModified, &sum.Location, &sum.Permission); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		sum.CreatedAt = sum.CreatedAt.UTC()
		sum.LastModified = sum.LastModified.UTC()
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Collaborators are resolved after the cursor is closed: SQLite runs on a
	// single connection.
	for i := range summaries {
		shared, err := s.GetCollaborators(ctx, userID, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].SharedWith = shared
	}
	return summaries, nil
}

// --- Permission Operations ---

// GetPermission returns the user's permission on a relation, or
// ErrUnauthorized when no row exists.
func (s *Store) GetPermission(ctx context.Context, userID, relationID string) (*models.Permission, error) {
	perm := &models.Permission{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT task_relation_id, user_id, permission FROM task_permissions WHERE user_id = ? AND task_relation_id = ?`),
		userID, relationID,
	).Scan(&perm.RelationID, &perm.UserID, &perm.Level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("query permission: %w", err)
	}
	return perm, nil
}

// AddPermission grants a user access to a relation. Granting twice returns
// ErrDuplicateID.
func (s *Store) AddPermission(ctx context.Context, relationID, userID string, level models.PermissionLevel) (*models.Permission, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO task_permissions (task_relation_id, user_id, permission) VALUES (?, ?, ?)`),
		relationID, userID, level,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateID
	}
	if err != nil {
		return nil, fmt.Errorf("insert permission: %w", err)
	}
	return &models.Permission{RelationID: relationID, UserID: userID, Level: level}, nil
}

// GetCollaborators returns every user other than userID holding a permission
// on the relation. The result is never nil.
func (s *Store) GetCollaborators(ctx context.Context, userID, relationID string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT u.id, u.email, u.name FROM users u
		 JOIN task_permissions p ON p.user_id = u.id
		 WHERE p.task_relation_id = ? AND u.id <> ? ORDER BY u.name ASC`),
		relationID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query collaborators: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
