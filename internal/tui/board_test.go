package tui

import (
	"testing"
	"time"

	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard() *Board {
	return NewBoard(controlplane.RelationDetail{
		RelationWithTasks: models.RelationWithTasks{
			Relation: models.Relation{ID: "r1", Name: "Groceries", CreatedAt: base, LastModified: base},
			Tasks: []models.Task{
				{ID: "t2", RelationID: "r1", Text: "eggs", OrderIdx: 1, LastModified: base},
				{ID: "t1", RelationID: "r1", Text: "milk", OrderIdx: 0, LastModified: base},
			},
		},
		Permission: models.PermissionOwner,
	}, "alice")
}

func taskIDs(b *Board) []string {
	var ids []string
	for _, t := range b.Tasks() {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestBoard_SortsByOrder(t *testing.T) {
	b := newTestBoard()
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(b))
}

func TestBoard_AddTask(t *testing.T) {
	b := newTestBoard()
	now := base.Add(time.Minute)

	op := b.AddTask("  bread ", now)

	assert.Equal(t, "bread", op.Text)
	assert.Equal(t, "r1", op.RelationID)
	assert.Equal(t, 2, op.OrderIdx)
	assert.Equal(t, now, op.LastModified)
	assert.Nil(t, op.CompletedAt)
	require.Len(t, b.Tasks(), 3)
	assert.Equal(t, op.ID, b.Tasks()[2].ID)
}

func TestBoard_ToggleSetsCompletionPair(t *testing.T) {
	b := newTestBoard()
	now := base.Add(time.Minute)

	op, ok := b.Toggle(0, now)
	require.True(t, ok)
	require.NotNil(t, op.CompletedAt)
	require.NotNil(t, op.CompletedBy)
	assert.Equal(t, "alice", *op.CompletedBy)
	assert.True(t, b.Tasks()[0].Completed())

	op, ok = b.Toggle(0, now.Add(time.Second))
	require.True(t, ok)
	assert.Nil(t, op.CompletedAt)
	assert.Nil(t, op.CompletedBy)
	assert.False(t, b.Tasks()[0].Completed())

	_, ok = b.Toggle(9, now)
	assert.False(t, ok)
}

func TestBoard_EditAndDelete(t *testing.T) {
	b := newTestBoard()
	now := base.Add(time.Minute)

	edit, ok := b.Edit(1, "brown eggs", now)
	require.True(t, ok)
	assert.Equal(t, "t2", edit.ID)
	assert.Equal(t, "brown eggs", b.Tasks()[1].Text)

	del, ok := b.Delete(0, now)
	require.True(t, ok)
	assert.Equal(t, reconcile.TaskDelete{ID: "t1", RelationID: "r1", LastModified: now}, del)
	assert.Equal(t, []string{"t2"}, taskIDs(b))
}

func TestBoard_Move(t *testing.T) {
	b := newTestBoard()
	now := base.Add(time.Minute)

	op, idx, ok := b.Move(0, 1, now)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, []string{"t2", "t1"}, taskIDs(b))
	require.Len(t, op, 2)
	assert.Equal(t, reconcile.ReorderEntry{ID: "t1", OrderIdx: 1, RelationID: "r1", LastModified: now}, op[0])
	assert.Equal(t, reconcile.ReorderEntry{ID: "t2", OrderIdx: 0, RelationID: "r1", LastModified: now}, op[1])

	_, idx, ok = b.Move(0, -1, now)
	assert.False(t, ok)
	assert.Equal(t, 0, idx)
}

func TestBoard_MoveSplitsEqualOrder(t *testing.T) {
	b := NewBoard(controlplane.RelationDetail{
		RelationWithTasks: models.RelationWithTasks{
			Relation: models.Relation{ID: "r1"},
			Tasks: []models.Task{
				{ID: "a", RelationID: "r1", OrderIdx: 0},
				{ID: "b", RelationID: "r1", OrderIdx: 0},
			},
		},
	}, "alice")

	op, _, ok := b.Move(1, -1, base)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, taskIDs(b))
	assert.Less(t, b.Tasks()[0].OrderIdx, b.Tasks()[1].OrderIdx)
	assert.Len(t, op, 2)
}

func TestBoard_RenameAndDelete(t *testing.T) {
	b := newTestBoard()
	now := base.Add(time.Hour)

	edit := b.Rename(" Weekly shop ", now)
	assert.Equal(t, "Weekly shop", edit.Name)
	assert.Equal(t, now, edit.LastModified)
	require.NotNil(t, edit.CreatedAt)
	assert.Equal(t, base, *edit.CreatedAt)

	del := b.DeleteRelation(now)
	assert.Equal(t, "r1", del.ID)
	require.NotNil(t, del.LastModified)
}

func TestBoard_Adopt(t *testing.T) {
	b := newTestBoard()
	now := base.Add(time.Minute)
	edit, _ := b.Edit(0, "oat milk", now)
	del, _ := b.Edit(1, "free range eggs", now)

	pending := []reconcile.Operation{
		{ID: "op-edit", Payload: edit},
		{ID: "op-gone", Payload: del},
	}
	server := &models.Task{ID: "t1", RelationID: "r1", Text: "whole milk", OrderIdx: 0, LastModified: base.Add(time.Hour)}

	gone := b.Adopt([]reconcile.Rejected{
		{ID: "op-edit", Reason: reconcile.ReasonVersionConflict, Task: server},
		{ID: "op-gone", Reason: reconcile.ReasonTaskDeleted},
	}, pending)

	assert.False(t, gone)
	require.Len(t, b.Tasks(), 1)
	assert.Equal(t, "whole milk", b.Tasks()[0].Text)
}

func TestBoard_AdoptRelationGone(t *testing.T) {
	b := newTestBoard()
	op, _ := b.Toggle(0, base)

	gone := b.Adopt([]reconcile.Rejected{{ID: "op", Reason: reconcile.ReasonDeleted}},
		[]reconcile.Operation{{ID: "op", Payload: op}})
	assert.True(t, gone)
}

func TestBoard_AdoptRelationSnapshot(t *testing.T) {
	b := newTestBoard()
	op := b.Rename("mine", base)

	gone := b.Adopt([]reconcile.Rejected{{
		ID:       "op",
		Reason:   reconcile.ReasonVersionConflict,
		Relation: &models.Relation{ID: "r1", Name: "theirs"},
	}}, []reconcile.Operation{{ID: "op", Payload: op}})

	assert.False(t, gone)
	assert.Equal(t, "theirs", b.Relation.Name)
	assert.Equal(t, models.PermissionOwner, b.Relation.Permission)
}
