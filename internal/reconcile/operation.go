package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/listsync/internal/models"
)

// Kind is the discriminant of a queued client operation.
type Kind string

const (
	KindTaskCreate     Kind = "task-create"
	KindTaskEdit       Kind = "task-edit"
	KindTaskToggle     Kind = "task-toggle"
	KindTaskDelete     Kind = "task-delete"
	KindTaskReorder    Kind = "task-reorder"
	KindRelationEdit   Kind = "relation-edit"
	KindRelationDelete Kind = "relation-delete"
)

// Kinds lists every operation kind the engine understands.
var Kinds = []Kind{
	KindTaskCreate, KindTaskEdit, KindTaskToggle, KindTaskDelete,
	KindTaskReorder, KindRelationEdit, KindRelationDelete,
}

// ErrUnknownKind is returned when decoding an operation of an unrecognized type.
var ErrUnknownKind = errors.New("unknown operation type")

// Operation is one client-queued mutation. The ID correlates results only;
// it carries no idempotency meaning.
type Operation struct {
	ID         string
	Timestamp  time.Time
	RetryCount int
	Payload    Payload
}

// Kind returns the kind of the operation's payload, or "" when it has none.
func (op Operation) Kind() Kind {
	if op.Payload == nil {
		return ""
	}
	return op.Payload.kind()
}

// Payload is the closed set of operation bodies. Only types in this package
// implement it.
type Payload interface {
	kind() Kind
}

// TaskCreate inserts a task under a caller-chosen id.
type TaskCreate struct {
	ID           string     `json:"id"`
	Text         string     `json:"task"`
	RelationID   string     `json:"task_relations_id"`
	OrderIdx     int        `json:"order_idx"`
	CreatedAt    time.Time  `json:"created_at"`
	LastModified time.Time  `json:"last_modified"`
	CompletedAt  *time.Time `json:"completed_at"`
	CompletedBy  *string    `json:"completed_by"`
}

// TaskEdit changes the text and completion pair of a task.
type TaskEdit struct {
	ID           string     `json:"id"`
	Text         string     `json:"task"`
	RelationID   string     `json:"task_relations_id"`
	LastModified time.Time  `json:"last_modified"`
	CompletedAt  *time.Time `json:"completed_at"`
	CompletedBy  *string    `json:"completed_by"`
}

// TaskToggle changes only the completion pair of a task.
type TaskToggle struct {
	ID           string     `json:"id"`
	RelationID   string     `json:"task_relations_id"`
	LastModified time.Time  `json:"last_modified"`
	CompletedAt  *time.Time `json:"completed_at"`
	CompletedBy  *string    `json:"completed_by"`
}

// TaskDelete removes a task.
type TaskDelete struct {
	ID           string    `json:"id"`
	RelationID   string    `json:"task_relations_id"`
	LastModified time.Time `json:"last_modified"`
}

// ReorderEntry moves one task to a new order index.
type ReorderEntry struct {
	ID           string    `json:"id"`
	OrderIdx     int       `json:"order_idx"`
	RelationID   string    `json:"task_relations_id"`
	LastModified time.Time `json:"last_modified"`
}

// TaskReorder carries many per-task reorder requests as one operation.
type TaskReorder []ReorderEntry

// RelationEdit renames a relation. Permission and SharedWith are client-side
// view fields; they are decoded and ignored.
type RelationEdit struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Location     models.Location        `json:"relation_location,omitempty"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
	LastModified time.Time              `json:"last_modified"`
	Permission   models.PermissionLevel `json:"permission,omitempty"`
	SharedWith   []models.User          `json:"shared_with,omitempty"`
}

// RelationDelete removes a relation with its tasks and permissions.
type RelationDelete struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name,omitempty"`
	Location     models.Location        `json:"relation_location,omitempty"`
	CreatedAt    *time.Time             `json:"created_at,omitempty"`
	LastModified *time.Time             `json:"last_modified,omitempty"`
	Permission   models.PermissionLevel `json:"permission,omitempty"`
	SharedWith   []models.User          `json:"shared_with,omitempty"`
}

func (TaskCreate) kind() Kind     { return KindTaskCreate }
func (TaskEdit) kind() Kind       { return KindTaskEdit }
func (TaskToggle) kind() Kind     { return KindTaskToggle }
func (TaskDelete) kind() Kind     { return KindTaskDelete }
func (TaskReorder) kind() Kind    { return KindTaskReorder }
func (RelationEdit) kind() Kind   { return KindRelationEdit }
func (RelationDelete) kind() Kind { return KindRelationDelete }

type wireOperation struct {
	ID         string          `json:"id"`
	Type       Kind            `json:"type"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retryCount"`
}

// MarshalJSON encodes the operation in its tagged wire form.
func (op Operation) MarshalJSON() ([]byte, error) {
	if op.Payload == nil {
		return nil, fmt.Errorf("operation %s: no payload", op.ID)
	}
	data, err := json.Marshal(op.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", op.Payload.kind(), err)
	}
	return json.Marshal(wireOperation{
		ID:         op.ID,
		Type:       op.Payload.kind(),
		Data:       data,
		Timestamp:  op.Timestamp,
		RetryCount: op.RetryCount,
	})
}

// UnmarshalJSON decodes the tagged wire form into the matching payload type.
func (op *Operation) UnmarshalJSON(b []byte) error {
	var w wireOperation
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var payload Payload
	var err error
	switch w.Type {
	case KindTaskCreate:
		payload, err = decodePayload[TaskCreate](w.Data)
	case KindTaskEdit:
		payload, err = decodePayload[TaskEdit](w.Data)
	case KindTaskToggle:
		payload, err = decodePayload[TaskToggle](w.Data)
	case KindTaskDelete:
		payload, err = decodePayload[TaskDelete](w.Data)
	case KindTaskReorder:
		payload, err = decodePayload[TaskReorder](w.Data)
	case KindRelationEdit:
		payload, err = decodePayload[RelationEdit](w.Data)
	case KindRelationDelete:
		payload, err = decodePayload[RelationDelete](w.Data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}
	if err != nil {
		return fmt.Errorf("decode %s data: %w", w.Type, err)
	}

	*op = Operation{
		ID:         w.ID,
		Timestamp:  w.Timestamp,
		RetryCount: w.RetryCount,
		Payload:    payload,
	}
	return nil
}

func decodePayload[T Payload](data json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
