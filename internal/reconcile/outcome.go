package reconcile

import "github.com/fentz26/listsync/internal/models"

// Reason is the wire string explaining a rejected operation.
type Reason string

const (
	ReasonUnauthorized    Reason = "unauthorized"
	ReasonDeleted         Reason = "deleted"
	ReasonTaskDeleted     Reason = "task deleted"
	ReasonVersionConflict Reason = "version conflict"
	ReasonIDCollision     Reason = "id collision"
	ReasonStorageError    Reason = "storage error"
	ReasonInvalid         Reason = "invalid"
	ReasonUnsupported     Reason = "operation type not supported"
)

// Outcome is the terminal state of one operation: accepted, or rejected with
// a reason and, for version conflicts, the authoritative server entity.
type Outcome struct {
	Accepted bool
	Reason   Reason
	Task     *models.Task
	Relation *models.Relation

	// cause is the storage error behind ReasonStorageError. It is logged,
	// never sent to the client.
	cause error
}

func accepted() Outcome { return Outcome{Accepted: true} }

func rejected(r Reason) Outcome { return Outcome{Reason: r} }

func taskConflict(t *models.Task) Outcome {
	return Outcome{Reason: ReasonVersionConflict, Task: t}
}

func relationConflict(r *models.Relation) Outcome {
	return Outcome{Reason: ReasonVersionConflict, Relation: r}
}

func storageFailure(err error) Outcome {
	return Outcome{Reason: ReasonStorageError, cause: err}
}

// Accepted identifies an applied operation.
type Accepted struct {
	ID string `json:"id"`
}

// Rejected identifies a failed operation and why it failed.
type Rejected struct {
	ID       string           `json:"id"`
	Reason   Reason           `json:"reason"`
	Task     *models.Task     `json:"task,omitempty"`
	Relation *models.Relation `json:"relation,omitempty"`
}

// BatchResult partitions a batch into applied and failed operations.
// Both lists are always non-nil.
type BatchResult struct {
	Success []Accepted `json:"success"`
	Failed  []Rejected `json:"failed"`
}
