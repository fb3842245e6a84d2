// Package models defines the core domain types for listsync.
package models

import "time"

// PermissionLevel is the access a user holds on a relation.
type PermissionLevel string

const (
	PermissionOwner PermissionLevel = "owner"
	PermissionEdit  PermissionLevel = "edit"
)

// Valid reports whether the level is one of the known levels.
func (p PermissionLevel) Valid() bool {
	return p == PermissionOwner || p == PermissionEdit
}

// Location tags where a relation was created.
type Location string

const (
	LocationServer Location = "Server"
	LocationLocal  Location = "Local"
)

// Relation is a named, shared list of tasks.
type Relation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	Location     Location  `json:"relation_location"`
}

// LastModifiedAt returns the relation's LWW timestamp.
func (r Relation) LastModifiedAt() time.Time { return r.LastModified }

// Task is an orderable item belonging to exactly one relation.
type Task struct {
	ID           string     `json:"id"`
	RelationID   string     `json:"task_relations_id"`
	Text         string     `json:"task"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CompletedBy  *string    `json:"completed_by"`
	OrderIdx     int        `json:"order_idx"`
	LastModified time.Time  `json:"last_modified"`
}

// LastModifiedAt returns the task's LWW timestamp.
func (t Task) LastModifiedAt() time.Time { return t.LastModified }

// Completed reports whether the task carries completion metadata.
func (t Task) Completed() bool {
	return t.CompletedAt != nil && t.CompletedBy != nil
}

// Permission links a user to a relation.
type Permission struct {
	RelationID string          `json:"relation_id"`
	UserID     string          `json:"user_id"`
	Level      PermissionLevel `json:"permission"`
}

// User is an account that can hold permissions.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RelationSummary is a relation as seen by one user.
type RelationSummary struct {
	Relation
	Permission PermissionLevel `json:"permission"`
	SharedWith []User          `json:"shared_with"`
}

// RelationWithTasks is a relation together with its tasks in display order.
type RelationWithTasks struct {
	Relation
	Tasks []Task `json:"tasks"`
}

// EventKind names a real-time notification.
type EventKind string

const (
	EventTaskCreate         EventKind = "task:create"
	EventTaskEdit           EventKind = "task:edit"
	EventTaskRemove         EventKind = "task:remove"
	EventTaskReorder        EventKind = "task:reorder"
	EventRelationChangeName EventKind = "relations:change_name"
	EventRelationDelete     EventKind = "relations:delete"
	EventRelationShare      EventKind = "relations:share"
)

// Event is a change notification for the collaborators of a relation.
type Event struct {
	RelationID string    `json:"relation_id"`
	ActorID    string    `json:"-"`
	Kind       EventKind `json:"event"`
	Payload    any       `json:"data"`
	// Recipients, when FixedRecipients is set, replaces the collaborator lookup.
	// Used after a relation is deleted and its permission rows are gone.
	Recipients      []User `json:"-"`
	FixedRecipients bool   `json:"-"`
}

// AuditEntry records how one batch operation was reconciled.
type AuditEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	OperationID string    `json:"operation_id"`
	Kind        string    `json:"kind"`
	InputsHash  string    `json:"inputs_hash"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
