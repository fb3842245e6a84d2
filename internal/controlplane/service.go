// Package controlplane provides the HTTP API and service layer for listsync.
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/fentz26/listsync/internal/store"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Service provides the control plane business logic.
type Service struct {
	store    *store.Store
	engine   *reconcile.Engine
	gate     reconcile.Gate
	notifier reconcile.Notifier
	clock    reconcile.Clock
	logger   *slog.Logger
}

// NewService creates a new control plane service.
func NewService(s *store.Store, engine *reconcile.Engine, n reconcile.Notifier, clock reconcile.Clock, logger *slog.Logger) *Service {
	if n == nil {
		n = reconcile.NopNotifier{}
	}
	if clock == nil {
		clock = reconcile.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		engine:   engine,
		gate:     reconcile.NewGate(s),
		notifier: n,
		clock:    clock,
		logger:   logger,
	}
}

// Authenticate resolves the user a verified token was issued to.
func (s *Service) Authenticate(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// --- Sync ---

// SyncBatch reconciles a batch of offline operations for userID.
func (s *Service) SyncBatch(ctx context.Context, userID string, ops []reconcile.Operation) reconcile.BatchResult {
	return s.engine.ProcessBatch(ctx, userID, ops)
}

// ListAudit returns the user's most recent reconciliation records.
func (s *Service) ListAudit(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	return s.store.ListAudit(ctx, userID, limit)
}

// --- Relations ---

// NewTask is an initial task uploaded with a new relation.
type NewTask struct {
	ID          string     `json:"id"`
	Text        string     `json:"task"`
	OrderIdx    *int       `json:"order_idx,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

// CreateRelationRequest creates a relation, optionally with the tasks a
// client built while offline. Every task is stamped with the server time as
// its last_modified, as a replayed task-create would be.
type CreateRelationRequest struct {
	Name  string    `json:"name"`
	Tasks []NewTask `json:"tasks"`
}

// RelationDetail is a relation with its tasks as seen by one user.
type RelationDetail struct {
	models.RelationWithTasks
	Permission models.PermissionLevel `json:"permission"`
	SharedWith []models.User          `json:"shared_with"`
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// CreateRelation creates a relation owned by userID.
func (s *Service) CreateRelation(ctx context.Context, userID string, req CreateRelationRequest) (*models.RelationWithTasks, error) {
	name := normalize(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	now := s.clock.Now()
	tasks := make([]models.Task, 0, len(req.Tasks))
	seen := make(map[string]bool, len(req.Tasks))
	for i, nt := range req.Tasks {
		task, err := buildTask(nt, i, now)
		if err != nil {
			return nil, err
		}
		if seen[task.ID] {
			return nil, fmt.Errorf("%w: duplicate task id %s", ErrInvalidRequest, task.ID)
		}
		seen[task.ID] = true
		tasks = append(tasks, task)
	}

	rel, err := s.store.CreateRelation(ctx, name, userID, now, tasks)
	if errors.Is(err, store.ErrDuplicateID) {
		return nil, fmt.Errorf("%w: task id already exists", ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("relation created", "relation_id", rel.ID, "user_id", userID, "tasks", len(rel.Tasks))
	return rel, nil
}

func buildTask(nt NewTask, position int, now time.Time) (models.Task, error) {
	if _, err := uuid.Parse(nt.ID); err != nil {
		return models.Task{}, fmt.Errorf("%w: task id %q is not a uuid", ErrInvalidRequest, nt.ID)
	}
	if (nt.CompletedAt == nil) != (nt.CompletedBy == nil) {
		return models.Task{}, fmt.Errorf("%w: task %s has partial completion", ErrInvalidRequest, nt.ID)
	}

	task := models.Task{
		ID:           nt.ID,
		Text:         normalize(nt.Text),
		CreatedAt:    now,
		OrderIdx:     position,
		LastModified: now,
		CompletedBy:  nt.CompletedBy,
	}
	if nt.OrderIdx != nil {
		task.OrderIdx = *nt.OrderIdx
	}
	if nt.CreatedAt != nil {
		task.CreatedAt = nt.CreatedAt.UTC()
	}
	if nt.CompletedAt != nil {
		at := nt.CompletedAt.UTC()
		task.CompletedAt = &at
	}
	return task, nil
}

// ListRelations returns every relation userID holds a permission on.
func (s *Service) ListRelations(ctx context.Context, userID string) ([]models.RelationSummary, error) {
	return s.store.ListRelationsForUser(ctx, userID)
}

// GetRelation returns a relation with its ordered tasks.
func (s *Service) GetRelation(ctx context.Context, userID, relationID string) (*RelationDetail, error) {
	access, err := s.checkAccess(ctx, userID, relationID)
	if err != nil {
		return nil, err
	}

	rel, err := s.store.GetRelationByID(ctx, relationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksByRelation(ctx, relationID)
	if err != nil {
		return nil, err
	}
	shared, err := s.store.GetCollaborators(ctx, userID, relationID)
	if err != nil {
		return nil, err
	}
	return &RelationDetail{
		RelationWithTasks: models.RelationWithTasks{Relation: *rel, Tasks: tasks},
		Permission:        access.Level,
		SharedWith:        shared,
	}, nil
}

// ShareRequest names the user to share with, by email or by id.
type ShareRequest struct {
	Email  string `json:"email,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// ShareRelation grants edit access on a relation. Only owners may share.
func (s *Service) ShareRelation(ctx context.Context, userID, relationID string, req ShareRequest) (*models.Permission, error) {
	access, err := s.checkAccess(ctx, userID, relationID)
	if err != nil {
		return nil, err
	}
	if access.Level != models.PermissionOwner {
		return nil, fmt.Errorf("%w: only the owner can share", ErrForbidden)
	}

	target, err := s.resolveUser(ctx, req)
	if err != nil {
		return nil, err
	}
	if target.ID == userID {
		return nil, fmt.Errorf("%w: cannot share with yourself", ErrInvalidRequest)
	}

	perm, err := s.store.AddPermission(ctx, relationID, target.ID, models.PermissionEdit)
	if errors.Is(err, store.ErrDuplicateID) {
		return nil, ErrAlreadyShared
	}
	if err != nil {
		return nil, err
	}

	if rel, err := s.store.GetRelationByID(ctx, relationID); err == nil {
		s.notifier.Notify(ctx, models.Event{
			RelationID:      relationID,
			ActorID:         userID,
			Kind:            models.EventRelationShare,
			Payload:         models.RelationSummary{Relation: *rel, Permission: perm.Level},
			Recipients:      []models.User{*target},
			FixedRecipients: true,
		})
	}
	s.logger.Info("relation shared", "relation_id", relationID, "user_id", userID, "target", target.ID)
	return perm, nil
}

func (s *Service) resolveUser(ctx context.Context, req ShareRequest) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	switch {
	case strings.TrimSpace(req.Email) != "":
		user, err = s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	case req.UserID != "":
		user, err = s.store.GetUser(ctx, req.UserID)
	default:
		return nil, fmt.Errorf("%w: email or user_id is required", ErrInvalidRequest)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *Service) checkAccess(ctx context.Context, userID, relationID string) (reconcile.Access, error) {
	access, err := s.gate.CheckAccess(ctx, userID, relationID)
	if err != nil {
		return access, err
	}
	switch access.Denial {
	case reconcile.ReasonDeleted:
		return access, ErrNotFound
	case reconcile.ReasonUnauthorized:
		return access, ErrForbidden
	}
	return access, nil
}

// --- Health ---

// HealthResponse is the response body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// Health pings the database.
func (s *Service) Health(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    s.clock.Now().Format(time.RFC3339),
	}
	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = "error: " + err.Error()
	}
	return resp
}
