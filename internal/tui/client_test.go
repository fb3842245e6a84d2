package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDaemon answers the routes the TUI uses and records submitted batches.
type fakeDaemon struct {
	batches [][]reconcile.Operation
	result  func(ops []reconcile.Operation) reconcile.BatchResult
}

func (f *fakeDaemon) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(controlplane.HealthResponse{OK: true, DB: "ok"})
	})
	mux.HandleFunc("/relations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(controlplane.ErrorResponse{Code: "unauthorized", Message: "missing token"})
			return
		}
		_ = json.NewEncoder(w).Encode([]models.RelationSummary{
			{Relation: models.Relation{ID: "r1", Name: "Groceries"}, Permission: models.PermissionOwner},
		})
	})
	mux.HandleFunc("/relations/r1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(newTestBoard().Relation)
	})
	mux.HandleFunc("/sync/batch", func(w http.ResponseWriter, r *http.Request) {
		var ops []reconcile.Operation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ops))
		f.batches = append(f.batches, ops)
		res := reconcile.BatchResult{Success: []reconcile.Accepted{}, Failed: []reconcile.Rejected{}}
		if f.result != nil {
			res = f.result(ops)
		} else {
			for _, op := range ops {
				res.Success = append(res.Success, reconcile.Accepted{ID: op.ID})
			}
		}
		_ = json.NewEncoder(w).Encode(res)
	})
	return mux
}

func TestClient_ListAndGet(t *testing.T) {
	fake := &fakeDaemon{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")

	relations, err := c.ListRelations()
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "Groceries", relations[0].Name)

	rel, err := c.GetRelation("r1")
	require.NoError(t, err)
	assert.Len(t, rel.Tasks, 2)
	assert.Equal(t, models.PermissionOwner, rel.Permission)

	ok, err := c.CheckHealth()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_ErrorMessage(t *testing.T) {
	fake := &fakeDaemon{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := NewClient(srv.URL, "wrong").ListRelations()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token")
}

func TestClient_SubmitBatch(t *testing.T) {
	fake := &fakeDaemon{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	q, _ := OpenQueue("")
	op, err := q.Enqueue(deleteOp("t1"), base)
	require.NoError(t, err)

	result, err := NewClient(srv.URL, "tok").SubmitBatch(q.Pending())
	require.NoError(t, err)
	assert.Equal(t, []reconcile.Accepted{{ID: op.ID}}, result.Success)
	assert.Empty(t, result.Failed)

	require.Len(t, fake.batches, 1)
	assert.Equal(t, deleteOp("t1"), fake.batches[0][0].Payload)
}
