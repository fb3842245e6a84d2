package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/store"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// normalizeText stores user text in NFC so visually equal strings compare equal.
func normalizeText(s string) string {
	return norm.NFC.String(s)
}

// validCompletion reports whether completed_at and completed_by are both set
// or both null.
func validCompletion(at *time.Time, by *string) bool {
	return (at == nil) == (by == nil)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// --- Task Handlers ---

func (e *Engine) createTask(ctx context.Context, userID string, p TaskCreate) Outcome {
	if _, out, ok := e.authorize(ctx, userID, p.RelationID); !ok {
		return out
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return rejected(ReasonInvalid)
	}
	if !validCompletion(p.CompletedAt, p.CompletedBy) {
		return rejected(ReasonInvalid)
	}

	created, err := e.store.CreateTask(ctx, models.Task{
		ID:           p.ID,
		RelationID:   p.RelationID,
		Text:         normalizeText(p.Text),
		CreatedAt:    p.CreatedAt.UTC(),
		CompletedAt:  utcPtr(p.CompletedAt),
		CompletedBy:  p.CompletedBy,
		OrderIdx:     p.OrderIdx,
		LastModified: e.clock.Now(),
	})
	if errors.Is(err, store.ErrDuplicateID) {
		return rejected(ReasonIDCollision)
	}
	if err != nil {
		return storageFailure(err)
	}

	e.notify(ctx, userID, p.RelationID, models.EventTaskCreate, map[string]any{"data": created})
	return accepted()
}

func (e *Engine) editTask(ctx context.Context, userID string, p TaskEdit) Outcome {
	if !validCompletion(p.CompletedAt, p.CompletedBy) {
		return e.rejectAfterGate(ctx, userID, p.RelationID, ReasonInvalid)
	}
	return e.modifyTask(ctx, userID, p.RelationID, p.ID, p.LastModified, func(t *models.Task) {
		t.Text = normalizeText(p.Text)
		t.CompletedAt = utcPtr(p.CompletedAt)
		t.CompletedBy = p.CompletedBy
	})
}

func (e *Engine) toggleTask(ctx context.Context, userID string, p TaskToggle) Outcome {
	if !validCompletion(p.CompletedAt, p.CompletedBy) {
		return e.rejectAfterGate(ctx, userID, p.RelationID, ReasonInvalid)
	}
	return e.modifyTask(ctx, userID, p.RelationID, p.ID, p.LastModified, func(t *models.Task) {
		t.CompletedAt = utcPtr(p.CompletedAt)
		t.CompletedBy = p.CompletedBy
	})
}

// rejectAfterGate reports a payload defect only to users the gate admits, so
// nothing about a relation leaks to users without access.
func (e *Engine) rejectAfterGate(ctx context.Context, userID, relationID string, r Reason) Outcome {
	if _, out, ok := e.authorize(ctx, userID, relationID); !ok {
		return out
	}
	return rejected(r)
}

// modifyTask is the shared path of edit and toggle: gate, lookup, LWW, then
// apply the delta and store it with the server commit time.
func (e *Engine) modifyTask(ctx context.Context, userID, relationID, taskID string, client time.Time, apply func(*models.Task)) Outcome {
	if _, out, ok := e.authorize(ctx, userID, relationID); !ok {
		return out
	}

	current, err := e.store.GetTaskByID(ctx, taskID, relationID)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonTaskDeleted)
	}
	if err != nil {
		return storageFailure(err)
	}

	verdict := Resolve(e.clock, client, current)
	if !verdict.Accepted {
		return taskConflict(verdict.Current)
	}

	next := *current
	apply(&next)
	next.LastModified = verdict.CommitTime

	updated, err := e.store.UpdateTask(ctx, next)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonTaskDeleted)
	}
	if err != nil {
		return storageFailure(err)
	}

	e.notify(ctx, userID, relationID, models.EventTaskEdit, map[string]any{"edited_task": updated})
	return accepted()
}

func (e *Engine) deleteTask(ctx context.Context, userID string, p TaskDelete) Outcome {
	if _, out, ok := e.authorize(ctx, userID, p.RelationID); !ok {
		return out
	}

	current, err := e.store.GetTaskByID(ctx, p.ID, p.RelationID)
	if errors.Is(err, store.ErrNotFound) {
		return accepted()
	}
	if err != nil {
		return storageFailure(err)
	}

	if verdict := Resolve(e.clock, p.LastModified, current); !verdict.Accepted {
		return taskConflict(verdict.Current)
	}

	removed, err := e.store.DeleteTask(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return accepted()
	}
	if err != nil {
		return storageFailure(err)
	}

	e.notify(ctx, userID, p.RelationID, models.EventTaskRemove, map[string]any{"remove_tasks": []models.Task{*removed}})
	return accepted()
}

// reorderTasks gates every relation named by the entries before touching
// storage, drops entries whose task is gone or newer on the server, and
// writes the survivors in one transaction.
func (e *Engine) reorderTasks(ctx context.Context, userID string, p TaskReorder) Outcome {
	if len(p) == 0 {
		return accepted()
	}

	var relationIDs []string
	byRelation := make(map[string][]ReorderEntry)
	for _, entry := range p {
		if _, seen := byRelation[entry.RelationID]; !seen {
			relationIDs = append(relationIDs, entry.RelationID)
		}
		byRelation[entry.RelationID] = append(byRelation[entry.RelationID], entry)
	}

	for _, relationID := range relationIDs {
		if _, out, ok := e.authorize(ctx, userID, relationID); !ok {
			return out
		}
	}

	var survivors []models.Task
	for _, relationID := range relationIDs {
		serverTasks, err := e.store.ListTasksByRelation(ctx, relationID)
		if err != nil {
			return storageFailure(err)
		}
		current := make(map[string]models.Task, len(serverTasks))
		for _, t := range serverTasks {
			current[t.ID] = t
		}

		for _, entry := range byRelation[relationID] {
			task, ok := current[entry.ID]
			if !ok {
				continue
			}
			verdict := Resolve(e.clock, entry.LastModified, task)
			if !verdict.Accepted {
				continue
			}
			task.OrderIdx = entry.OrderIdx
			task.LastModified = verdict.CommitTime
			current[entry.ID] = task
			survivors = append(survivors, task)
		}
	}

	if len(survivors) == 0 {
		return accepted()
	}

	applied, err := e.store.ReorderTasks(ctx, survivors)
	if err != nil {
		return storageFailure(err)
	}

	grouped := make(map[string][]models.Task)
	for _, t := range applied {
		grouped[t.RelationID] = append(grouped[t.RelationID], t)
	}
	for _, relationID := range relationIDs {
		if tasks := grouped[relationID]; len(tasks) > 0 {
			e.notify(ctx, userID, relationID, models.EventTaskReorder, map[string]any{"reordered_tasks": tasks})
		}
	}
	return accepted()
}

// --- Relation Handlers ---

func (e *Engine) editRelation(ctx context.Context, userID string, p RelationEdit) Outcome {
	if _, out, ok := e.authorize(ctx, userID, p.ID); !ok {
		return out
	}
	name := normalizeText(strings.TrimSpace(p.Name))
	if name == "" {
		return rejected(ReasonInvalid)
	}

	current, err := e.store.GetRelationByID(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonDeleted)
	}
	if err != nil {
		return storageFailure(err)
	}

	verdict := Resolve(e.clock, p.LastModified, current)
	if !verdict.Accepted {
		return relationConflict(verdict.Current)
	}

	updated, err := e.store.UpdateRelationName(ctx, p.ID, name, verdict.CommitTime)
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonDeleted)
	}
	if err != nil {
		return storageFailure(err)
	}

	e.notify(ctx, userID, p.ID, models.EventRelationChangeName, updated)
	return accepted()
}

// deleteRelation is idempotent: a relation that is already gone counts as
// deleted. Collaborators are read before the delete because their permission
// rows go with the relation.
func (e *Engine) deleteRelation(ctx context.Context, userID string, p RelationDelete) Outcome {
	access, err := e.gate.CheckAccess(ctx, userID, p.ID)
	if err != nil {
		return storageFailure(err)
	}
	switch access.Denial {
	case "":
	case ReasonDeleted:
		return accepted()
	default:
		return rejected(access.Denial)
	}

	collaborators, err := e.store.GetCollaborators(ctx, userID, p.ID)
	if err != nil {
		return storageFailure(err)
	}
	if collaborators == nil {
		collaborators = []models.User{}
	}

	if _, err := e.store.DeleteRelation(ctx, p.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return accepted()
		}
		return storageFailure(err)
	}

	e.notifier.Notify(ctx, models.Event{
		RelationID:      p.ID,
		ActorID:         userID,
		Kind:            models.EventRelationDelete,
		Payload:         []any{[]any{true, p.ID}},
		Recipients:      collaborators,
		FixedRecipients: true,
	})
	return accepted()
}
