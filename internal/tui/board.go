package tui

import (
	"sort"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/google/uuid"
)

// Board is the local, optimistically updated copy of one list. Every mutation
// changes the copy at once and returns the operation to queue for the daemon.
type Board struct {
	Relation controlplane.RelationDetail
	userID   string
}

// NewBoard wraps a list fetched from the daemon.
func NewBoard(rel controlplane.RelationDetail, userID string) *Board {
	b := &Board{Relation: rel, userID: userID}
	if b.Relation.Tasks == nil {
		b.Relation.Tasks = []models.Task{}
	}
	b.sort()
	return b
}

// Tasks returns the tasks in display order.
func (b *Board) Tasks() []models.Task {
	return b.Relation.Tasks
}

func (b *Board) sort() {
	sort.SliceStable(b.Relation.Tasks, func(i, j int) bool {
		return b.Relation.Tasks[i].OrderIdx < b.Relation.Tasks[j].OrderIdx
	})
}

func (b *Board) valid(idx int) bool {
	return idx >= 0 && idx < len(b.Relation.Tasks)
}

// AddTask appends a task after the last one.
func (b *Board) AddTask(text string, now time.Time) reconcile.TaskCreate {
	order := 0
	if n := len(b.Relation.Tasks); n > 0 {
		order = b.Relation.Tasks[n-1].OrderIdx + 1
	}
	task := models.Task{
		ID:           uuid.New().String(),
		RelationID:   b.Relation.ID,
		Text:         strings.TrimSpace(text),
		CreatedAt:    now,
		OrderIdx:     order,
		LastModified: now,
	}
	b.Relation.Tasks = append(b.Relation.Tasks, task)
	return reconcile.TaskCreate{
		ID:           task.ID,
		Text:         task.Text,
		RelationID:   task.RelationID,
		OrderIdx:     task.OrderIdx,
		CreatedAt:    now,
		LastModified: now,
	}
}

// Toggle flips the completion state of the task at idx.
func (b *Board) Toggle(idx int, now time.Time) (reconcile.TaskToggle, bool) {
	if !b.valid(idx) {
		return reconcile.TaskToggle{}, false
	}
	task := &b.Relation.Tasks[idx]
	if task.Completed() {
		task.CompletedAt, task.CompletedBy = nil, nil
	} else {
		at, by := now, b.userID
		task.CompletedAt, task.CompletedBy = &at, &by
	}
	task.LastModified = now
	return reconcile.TaskToggle{
		ID:           task.ID,
		RelationID:   task.RelationID,
		LastModified: now,
		CompletedAt:  task.CompletedAt,
		CompletedBy:  task.CompletedBy,
	}, true
}

// Edit replaces the text of the task at idx.
func (b *Board) Edit(idx int, text string, now time.Time) (reconcile.TaskEdit, bool) {
	if !b.valid(idx) {
		return reconcile.TaskEdit{}, false
	}
	task := &b.Relation.Tasks[idx]
	task.Text = strings.TrimSpace(text)
	task.LastModified = now
	return reconcile.TaskEdit{
		ID:           task.ID,
		Text:         task.Text,
		RelationID:   task.RelationID,
		LastModified: now,
		CompletedAt:  task.CompletedAt,
		CompletedBy:  task.CompletedBy,
	}, true
}

// Delete removes the task at idx.
func (b *Board) Delete(idx int, now time.Time) (reconcile.TaskDelete, bool) {
	if !b.valid(idx) {
		return reconcile.TaskDelete{}, false
	}
	task := b.Relation.Tasks[idx]
	b.Relation.Tasks = append(b.Relation.Tasks[:idx], b.Relation.Tasks[idx+1:]...)
	return reconcile.TaskDelete{ID: task.ID, RelationID: task.RelationID, LastModified: now}, true
}

// Move swaps the task at idx with its neighbor delta places away and returns
// the new position. Equal order indexes are split so the swap is visible.
func (b *Board) Move(idx, delta int, now time.Time) (reconcile.TaskReorder, int, bool) {
	other := idx + delta
	if !b.valid(idx) || !b.valid(other) || delta == 0 {
		return nil, idx, false
	}
	a, c := &b.Relation.Tasks[idx], &b.Relation.Tasks[other]
	a.OrderIdx, c.OrderIdx = c.OrderIdx, a.OrderIdx
	if a.OrderIdx == c.OrderIdx {
		if delta < 0 {
			c.OrderIdx++
		} else {
			a.OrderIdx++
		}
	}
	a.LastModified, c.LastModified = now, now

	reorder := reconcile.TaskReorder{
		{ID: a.ID, OrderIdx: a.OrderIdx, RelationID: a.RelationID, LastModified: now},
		{ID: c.ID, OrderIdx: c.OrderIdx, RelationID: c.RelationID, LastModified: now},
	}
	b.Relation.Tasks[idx], b.Relation.Tasks[other] = b.Relation.Tasks[other], b.Relation.Tasks[idx]
	return reorder, other, true
}

// Rename changes the list's name.
func (b *Board) Rename(name string, now time.Time) reconcile.RelationEdit {
	b.Relation.Name = strings.TrimSpace(name)
	b.Relation.LastModified = now
	created := b.Relation.CreatedAt
	return reconcile.RelationEdit{
		ID:           b.Relation.ID,
		Name:         b.Relation.Name,
		Location:     b.Relation.Location,
		CreatedAt:    &created,
		LastModified: now,
	}
}

// DeleteRelation returns the operation deleting the whole list.
func (b *Board) DeleteRelation(now time.Time) reconcile.RelationDelete {
	return reconcile.RelationDelete{
		ID:           b.Relation.ID,
		Name:         b.Relation.Name,
		Location:     b.Relation.Location,
		LastModified: &now,
	}
}

// Adopt applies the server's verdict on rejected operations: snapshots
// returned with a version conflict replace the local copy, and tasks the
// server no longer has are dropped. It reports whether the list itself is
// gone.
func (b *Board) Adopt(rejected []reconcile.Rejected, pending []reconcile.Operation) (gone bool) {
	byOp := make(map[string]reconcile.Operation, len(pending))
	for _, op := range pending {
		byOp[op.ID] = op
	}

	for _, r := range rejected {
		switch {
		case r.Task != nil && r.Task.RelationID == b.Relation.ID:
			b.replaceTask(*r.Task)
		case r.Relation != nil && r.Relation.ID == b.Relation.ID:
			b.Relation.Relation = *r.Relation
		case r.Reason == reconcile.ReasonTaskDeleted:
			if id, rel := taskTarget(byOp[r.ID]); rel == b.Relation.ID {
				b.removeTask(id)
			}
		case r.Reason == reconcile.ReasonDeleted, r.Reason == reconcile.ReasonUnauthorized:
			if _, rel := taskTarget(byOp[r.ID]); rel == b.Relation.ID {
				gone = true
			}
		}
	}
	b.sort()
	return gone
}

func (b *Board) replaceTask(task models.Task) {
	for i := range b.Relation.Tasks {
		if b.Relation.Tasks[i].ID == task.ID {
			b.Relation.Tasks[i] = task
			return
		}
	}
	b.Relation.Tasks = append(b.Relation.Tasks, task)
}

func (b *Board) removeTask(id string) {
	for i := range b.Relation.Tasks {
		if b.Relation.Tasks[i].ID == id {
			b.Relation.Tasks = append(b.Relation.Tasks[:i], b.Relation.Tasks[i+1:]...)
			return
		}
	}
}

// taskTarget returns the task and relation an operation addressed.
func taskTarget(op reconcile.Operation) (taskID, relationID string) {
	switch p := op.Payload.(type) {
	case reconcile.TaskCreate:
		return p.ID, p.RelationID
	case reconcile.TaskEdit:
		return p.ID, p.RelationID
	case reconcile.TaskToggle:
		return p.ID, p.RelationID
	case reconcile.TaskDelete:
		return p.ID, p.RelationID
	case reconcile.TaskReorder:
		if len(p) > 0 {
			return p[0].ID, p[0].RelationID
		}
	case reconcile.RelationEdit:
		return "", p.ID
	case reconcile.RelationDelete:
		return "", p.ID
	}
	return "", ""
}
