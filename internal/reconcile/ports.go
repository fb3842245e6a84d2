package reconcile

import (
	"context"
	"time"

	"github.com/fentz26/listsync/internal/models"
)

// EntityStore is the persistence the engine reconciles against.
// Implementations report absence with store.ErrNotFound, a missing permission
// row with store.ErrUnauthorized and a taken task id with store.ErrDuplicateID.
type EntityStore interface {
	GetTaskByID(ctx context.Context, taskID, relationID string) (*models.Task, error)
	ListTasksByRelation(ctx context.Context, relationID string) ([]models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (*models.Task, error)
	UpdateTask(ctx context.Context, task models.Task) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID string) (*models.Task, error)
	ReorderTasks(ctx context.Context, tasks []models.Task) ([]models.Task, error)

	GetRelationByID(ctx context.Context, relationID string) (*models.Relation, error)
	UpdateRelationName(ctx context.Context, relationID, name string, lastModified time.Time) (*models.Relation, error)
	DeleteRelation(ctx context.Context, relationID string) (string, error)

	GetPermission(ctx context.Context, userID, relationID string) (*models.Permission, error)
	GetCollaborators(ctx context.Context, userID, relationID string) ([]models.User, error)
}

// Notifier delivers change events to online collaborators. Notify must not
// block on delivery.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event)
}

// Auditor records the outcome of every processed operation.
type Auditor interface {
	Record(ctx context.Context, userID string, op Operation, out Outcome)
}

// NopNotifier discards every event.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, models.Event) {}
