package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fentz26/listsync/internal/models"
)

// CollaboratorSource resolves who else holds a permission on a relation.
type CollaboratorSource interface {
	GetCollaborators(ctx context.Context, userID, relationID string) ([]models.User, error)
}

// Sender delivers an encoded message to every connection of a user.
type Sender interface {
	SendTo(userID string, msg []byte) int
}

// Dispatcher queues events and fans them out on a worker pool.
type Dispatcher struct {
	source CollaboratorSource
	sender Sender
	config *Config
	logger *slog.Logger
	queue  chan models.Event

	dropped   atomic.Int64
	delivered atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before the first Notify.
func NewDispatcher(src CollaboratorSource, sender Sender, cfg *Config, logger *slog.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		source: src,
		sender: sender,
		config: cfg,
		logger: logger.With("component", "notify"),
		queue:  make(chan models.Event, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started", "workers", d.config.Workers)
}

// Stop delivers what is already queued and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped",
		"delivered", d.delivered.Load(), "dropped", d.dropped.Load())
}

// Notify enqueues ev without blocking. The caller's context is not retained:
// delivery outlives the request that produced the event. A full queue drops
// the event.
func (d *Dispatcher) Notify(_ context.Context, ev models.Event) {
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, dropping event",
			"relation_id", ev.RelationID, "event", ev.Kind)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver resolves recipients unless the event fixes them, then sends the
// event to each recipient other than the actor.
func (d *Dispatcher) deliver(ev models.Event) {
	recipients := ev.Recipients
	if !ev.FixedRecipients {
		// Stop cancels d.ctx, so lookups during shutdown use a fresh deadline.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(d.ctx), d.config.WriteTimeout)
		users, err := d.source.GetCollaborators(ctx, ev.ActorID, ev.RelationID)
		cancel()
		if err != nil {
			d.logger.Error("resolve collaborators", "relation_id", ev.RelationID, "event", ev.Kind, "error", err)
			return
		}
		recipients = users
	}
	if len(recipients) == 0 {
		return
	}

	msg, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("encode event", "relation_id", ev.RelationID, "event", ev.Kind, "error", err)
		return
	}

	for _, u := range recipients {
		if u.ID == ev.ActorID {
			continue
		}
		if n := d.sender.SendTo(u.ID, msg); n > 0 {
			d.delivered.Add(1)
		}
	}
}
