package reconcile

import (
	"context"
	"errors"

	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/store"
)

type accessReader interface {
	GetRelationByID(ctx context.Context, relationID string) (*models.Relation, error)
	GetPermission(ctx context.Context, userID, relationID string) (*models.Permission, error)
}

// Access is the result of an authorization check. A zero Denial means access
// was granted at Level.
type Access struct {
	Level  models.PermissionLevel
	Denial Reason
}

// Granted reports whether the check passed.
func (a Access) Granted() bool { return a.Denial == "" }

// Gate decides whether a user may act on a relation.
type Gate struct {
	store accessReader
}

// NewGate creates a gate over the given store.
func NewGate(s accessReader) Gate {
	return Gate{store: s}
}

// CheckAccess reports ReasonDeleted when the relation is gone and
// ReasonUnauthorized when it exists but the user holds no permission on it.
// Existence is checked first so a retried delete can be recognized as done.
// A non-nil error means storage failed and no decision was made.
func (g Gate) CheckAccess(ctx context.Context, userID, relationID string) (Access, error) {
	if _, err := g.store.GetRelationByID(ctx, relationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Access{Denial: ReasonDeleted}, nil
		}
		return Access{}, err
	}

	perm, err := g.store.GetPermission(ctx, userID, relationID)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorized) {
			return Access{Denial: ReasonUnauthorized}, nil
		}
		return Access{}, err
	}
	return Access{Level: perm.Level}, nil
}
