// Package reconcile replays batches of offline client operations against the
// server state.
//
// Each operation passes the authorization gate, is compared last-writer-wins
// against the stored entity, and is then applied and announced to the other
// collaborators of its relation. Operations run one after another in
// submission order, and a failed operation never stops the batch: every
// handler returns an Outcome value rather than an error.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/fentz26/listsync/internal/models"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Clock   Clock
	Auditor Auditor
	Logger  *slog.Logger
}

// Engine processes operation batches.
type Engine struct {
	store    EntityStore
	notifier Notifier
	gate     Gate
	clock    Clock
	auditor  Auditor
	logger   *slog.Logger
}

// NewEngine creates an engine over the given store and notifier.
func NewEngine(s EntityStore, n Notifier, opts Options) *Engine {
	if n == nil {
		n = NopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		store:    s,
		notifier: n,
		gate:     NewGate(s),
		clock:    opts.Clock,
		auditor:  opts.Auditor,
		logger:   opts.Logger.With("component", "reconcile"),
	}
}

// ProcessBatch applies ops in order on behalf of userID and reports the
// outcome of each. It does not stop early for ctx cancellation; the context is
// passed to storage calls only.
func (e *Engine) ProcessBatch(ctx context.Context, userID string, ops []Operation) BatchResult {
	result := BatchResult{Success: []Accepted{}, Failed: []Rejected{}}

	for _, op := range ops {
		out := e.dispatch(ctx, userID, op)
		if out.cause != nil {
			e.logger.Error("operation storage failure",
				"op_id", op.ID, "kind", op.Kind(), "user_id", userID, "error", out.cause)
		}

		if out.Accepted {
			result.Success = append(result.Success, Accepted{ID: op.ID})
		} else {
			result.Failed = append(result.Failed, Rejected{
				ID:       op.ID,
				Reason:   out.Reason,
				Task:     out.Task,
				Relation: out.Relation,
			})
		}

		if e.auditor != nil {
			e.auditor.Record(ctx, userID, op, out)
		}
	}

	e.logger.Debug("batch processed",
		"user_id", userID, "operations", len(ops),
		"accepted", len(result.Success), "rejected", len(result.Failed))
	return result
}

func (e *Engine) dispatch(ctx context.Context, userID string, op Operation) Outcome {
	switch p := op.Payload.(type) {
	case TaskCreate:
		return e.createTask(ctx, userID, p)
	case TaskEdit:
		return e.editTask(ctx, userID, p)
	case TaskToggle:
		return e.toggleTask(ctx, userID, p)
	case TaskDelete:
		return e.deleteTask(ctx, userID, p)
	case TaskReorder:
		return e.reorderTasks(ctx, userID, p)
	case RelationEdit:
		return e.editRelation(ctx, userID, p)
	case RelationDelete:
		return e.deleteRelation(ctx, userID, p)
	default:
		// Reached only by a payload type added without a handler.
		return rejected(ReasonUnsupported)
	}
}

// authorize runs the gate and converts a denial or storage failure into a
// terminal outcome. ok is false when the caller must stop.
func (e *Engine) authorize(ctx context.Context, userID, relationID string) (Access, Outcome, bool) {
	access, err := e.gate.CheckAccess(ctx, userID, relationID)
	if err != nil {
		return access, storageFailure(err), false
	}
	if !access.Granted() {
		return access, rejected(access.Denial), false
	}
	return access, Outcome{}, true
}

func (e *Engine) notify(ctx context.Context, userID, relationID string, kind models.EventKind, payload any) {
	e.notifier.Notify(ctx, models.Event{
		RelationID: relationID,
		ActorID:    userID,
		Kind:       kind,
		Payload:    payload,
	})
}
