package tui

import (
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/listsync/internal/models"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, api string) *App {
	t.Helper()
	q, err := OpenQueue("")
	require.NoError(t, err)
	a := New(Options{API: api, Token: "tok", UserID: "alice", Email: "alice@example.com", Queue: q})
	a.now = func() time.Time { return base }
	return a
}

func openBoard(a *App) {
	a.Update(relationLoadedMsg{relation: &newTestBoard().Relation})
	a.mode = modeTasks
}

func TestApp_OfflineEditsQueue(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:0")
	openBoard(a)

	cmd := a.executeCommand("/add bread")
	assert.Nil(t, cmd)
	assert.Equal(t, 1, a.queue.Len())
	assert.Contains(t, a.message, "Queued offline")
	require.Len(t, a.board.Tasks(), 3)
	assert.Equal(t, 2, a.taskIdx)

	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Equal(t, 2, a.queue.Len())
	assert.Len(t, a.board.Tasks(), 2)

	kinds := []reconcile.Kind{}
	for _, op := range a.queue.Pending() {
		kinds = append(kinds, op.Kind())
	}
	assert.Equal(t, []reconcile.Kind{reconcile.KindTaskCreate, reconcile.KindTaskDelete}, kinds)
}

func TestApp_CommandsNeedOpenList(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:0")

	a.executeCommand("/add bread")
	assert.Equal(t, "Open a list first", a.message)
	assert.Equal(t, 0, a.queue.Len())

	a.executeCommand("/bogus")
	assert.Contains(t, a.message, "Unknown: bogus")
}

func TestApp_SyncAdoptsConflicts(t *testing.T) {
	fake := &fakeDaemon{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	a := newTestApp(t, srv.URL)
	openBoard(a)

	op, ok := a.board.Edit(0, "oat milk", base)
	require.True(t, ok)
	queued, err := a.queue.Enqueue(op, base)
	require.NoError(t, err)

	server := &models.Task{ID: "t1", RelationID: "r1", Text: "whole milk", LastModified: base}
	fake.result = func(ops []reconcile.Operation) reconcile.BatchResult {
		return reconcile.BatchResult{
			Success: []reconcile.Accepted{},
			Failed:  []reconcile.Rejected{{ID: queued.ID, Reason: reconcile.ReasonVersionConflict, Task: server}},
		}
	}

	cmd := a.syncQueue()
	require.NotNil(t, cmd)
	assert.Nil(t, a.syncQueue(), "a second sync waits for the first")

	msg := cmd()
	synced, ok := msg.(syncedMsg)
	require.True(t, ok, "got %T", msg)

	a.Update(synced)
	assert.False(t, a.syncing)
	assert.Equal(t, 0, a.queue.Len())
	assert.Equal(t, "whole milk", a.board.Tasks()[0].Text)
	assert.Contains(t, a.message, "1 rejected (version conflict)")
}

func TestApp_SyncFailureKeepsQueue(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	a := newTestApp(t, url)
	_, err := a.queue.Enqueue(deleteOp("t1"), base)
	require.NoError(t, err)

	cmd := a.syncQueue()
	require.NotNil(t, cmd)
	a.Update(cmd())

	assert.Equal(t, 1, a.queue.Len())
	assert.False(t, a.daemonOnline)
	assert.Contains(t, a.message, "Offline: 1 queued")
}
