package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fentz26/listsync/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRelation(t *testing.T, s *Store, owner string, tasks ...models.Task) *models.RelationWithTasks {
	t.Helper()
	rel, err := s.CreateRelation(context.Background(), "Groceries", owner, baseTime, tasks)
	require.NoError(t, err)
	return rel
}

func seedUser(t *testing.T, s *Store, name string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name+"@example.com", name)
	require.NoError(t, err)
	return u
}

func TestNew(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should be created")
	assert.Equal(t, "sqlite", s.Engine())
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{name: "memory", dsn: "memory://"},
		{name: "sqlite scheme", dsn: "sqlite://" + filepath.Join(t.TempDir(), "a.db")},
		{name: "bare path", dsn: filepath.Join(t.TempDir(), "b.db")},
		{name: "empty", dsn: "", wantErr: true},
		{name: "unknown scheme", dsn: "mysql://localhost/db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.dsn)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDSN)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: dialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{dialect: dialectSQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "alice")
	rel := seedRelation(t, s, owner.ID)

	task := models.Task{
		ID:           uuid.New().String(),
		RelationID:   rel.ID,
		Text:         "milk",
		CreatedAt:    baseTime,
		OrderIdx:     1,
		LastModified: baseTime,
	}

	// Create
	_, err := s.CreateTask(ctx, task)
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, task)
	assert.ErrorIs(t, err, ErrDuplicateID)

	// Get
	got, err := s.GetTaskByID(ctx, task.ID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, "milk", got.Text)
	assert.True(t, got.LastModified.Equal(baseTime))
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.CompletedBy)

	_, err = s.GetTaskByID(ctx, task.ID, uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)

	// Update
	done := baseTime.Add(time.Minute)
	by := owner.ID
	got.Text = "oat milk"
	got.CompletedAt = &done
	got.CompletedBy = &by
	got.LastModified = done
	_, err = s.UpdateTask(ctx, *got)
	require.NoError(t, err)

	got, err = s.GetTaskByID(ctx, task.ID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, "oat milk", got.Text)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))
	assert.Equal(t, owner.ID, *got.CompletedBy)
	assert.True(t, got.Completed())

	// Delete
	deleted, err := s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, deleted.ID)

	_, err = s.DeleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpdateTask(ctx, *got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasksByRelation_Order(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "alice")

	mk := func(text string, idx int) models.Task {
		return models.Task{ID: uuid.New().String(), Text: text, CreatedAt: baseTime, OrderIdx: idx, LastModified: baseTime}
	}
	rel := seedRelation(t, s, owner.ID, mk("c", 3), mk("a", 1), mk("b", 2))

	tasks, err := s.ListTasksByRelation(ctx, rel.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{tasks[0].Text, tasks[1].Text, tasks[2].Text})

	empty, err := s.ListTasksByRelation(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReorderTasks_SkipsVanishedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, s, "alice")

	a := models.Task{ID: uuid.New().String(), Text: "a", CreatedAt: baseTime, OrderIdx: 1, LastModified: baseTime}
	rel := seedRelation(t, s, owner.ID, a)

	later := baseTime.Add(time.Hour)
	applied, err := s.ReorderTasks(ctx, []models.Task{
		{ID: a.ID, RelationID: rel.ID, OrderIdx: 7, LastModified: later},
		{ID: uuid.New().String(), RelationID: rel.ID, OrderIdx: 8, LastModified: later},
	})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, a.ID, applied[0].ID)

	got, err := s.GetTaskByID(ctx, a.ID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.OrderIdx)
	assert.True(t, got.LastModified.Equal(later))
}

func TestRelationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	task := models.Task{ID: uuid.New().String(), Text: "bread", CreatedAt: baseTime, OrderIdx: 0, LastModified: baseTime}
	rel := seedRelation(t, s, alice.ID, task)
	assert.Equal(t, models.LocationServer, rel.Location)
	require.Len(t, rel.Tasks, 1)
	assert.Equal(t, rel.ID, rel.Tasks[0].RelationID)

	perm, err := s.GetPermission(ctx, alice.ID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PermissionOwner, perm.Level)

	_, err = s.GetPermission(ctx, bob.ID, rel.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	collaborators, err := s.GetCollaborators(ctx, alice.ID, rel.ID)
	require.NoError(t, err)
	assert.NotNil(t, collaborators)
	assert.Empty(t, collaborators)

	_, err = s.AddPermission(ctx, rel.ID, bob.ID, models.PermissionEdit)
	require.NoError(t, err)
	_, err = s.AddPermission(ctx, rel.ID, bob.ID, models.PermissionEdit)
	assert.ErrorIs(t, err, ErrDuplicateID)

	collaborators, err = s.GetCollaborators(ctx, alice.ID, rel.ID)
	require.NoError(t, err)
	require.Len(t, collaborators, 1)
	assert.Equal(t, bob.ID, collaborators[0].ID)

	list, err := s.ListRelationsForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PermissionEdit, list[0].Permission)
	require.Len(t, list[0].SharedWith, 1)
	assert.Equal(t, alice.ID, list[0].SharedWith[0].ID)

	renamed, err := s.UpdateRelationName(ctx, rel.ID, "Hardware", baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "Hardware", renamed.Name)
	assert.True(t, renamed.LastModified.Equal(baseTime.Add(time.Minute)))

	_, err = s.UpdateRelationName(ctx, uuid.New().String(), "x", baseTime)
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.DeleteRelation(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, rel.ID, id)

	_, err = s.GetRelationByID(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTaskByID(ctx, task.ID, rel.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPermission(ctx, bob.ID, rel.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = s.DeleteRelation(ctx, rel.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice")
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = s.CreateUser(ctx, "alice@example.com", "other")
	assert.ErrorIs(t, err, ErrDuplicateID)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, outcome := range []string{"accepted", "rejected"} {
		_, err := s.WriteAudit(ctx, models.AuditEntry{
			UserID:      "u1",
			OperationID: uuid.New().String(),
			Kind:        "task-edit",
			InputsHash:  "abc",
			Outcome:     outcome,
			Reason:      map[string]string{"rejected": "version conflict"}[outcome],
			Timestamp:   baseTime.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := s.ListAudit(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rejected", entries[0].Outcome)
	assert.Equal(t, "version conflict", entries[0].Reason)
	assert.Equal(t, "", entries[1].Reason)

	none, err := s.ListAudit(ctx, "u2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
