package reconcile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBatch = `[
  {"id": "op-1", "type": "task-create", "timestamp": "2024-03-01T12:00:00.000Z", "retryCount": 0,
   "data": {"id": "7f1c7c4e-3c55-4a55-9a43-1c1f8f2b8f11", "task": "milk", "task_relations_id": "r1",
            "order_idx": 0, "created_at": "2024-03-01T12:00:00.000Z", "last_modified": "2024-03-01T12:00:00.000Z",
            "completed_at": null, "completed_by": null}},
  {"id": "op-2", "type": "task-edit", "timestamp": "2024-03-01T12:00:00Z", "retryCount": 1,
   "data": {"id": "t1", "task": "eggs", "task_relations_id": "r1", "last_modified": "2024-03-01T12:00:00Z",
            "completed_at": null, "completed_by": null}},
  {"id": "op-3", "type": "task-toggle", "timestamp": "2024-03-01T12:00:00Z", "retryCount": 0,
   "data": {"id": "t1", "task_relations_id": "r1", "last_modified": "2024-03-01T12:00:00Z",
            "completed_at": "2024-03-01T12:05:00Z", "completed_by": "u1"}},
  {"id": "op-4", "type": "task-delete", "timestamp": "2024-03-01T12:00:00Z", "retryCount": 0,
   "data": {"id": "t1", "task_relations_id": "r1", "last_modified": "2024-03-01T12:00:00Z"}},
  {"id": "op-5", "type": "task-reorder", "timestamp": "2024-03-01T12:00:00Z", "retryCount": 0,
   "data": [{"id": "t1", "order_idx": 3, "task_relations_id": "r1", "last_modified": "2024-03-01T12:00:00Z"}]},
  {"id": "op-6", "type": "relation-edit", "timestamp": "2024-03-01T12:00:00Z", "retryCount": 0,
   "data": {"id": "r1", "name": "Hardware", "relation_location": "Server", "created_at": "2024-03-01T12:00:00Z",
            "last_modified": "2024-03-01T12:00:00Z", "permission": "owner", "shared_with": []}},
  {"id": "op-7", "type": "relation-delete", "timestamp": "2024-03-01T12:00:00Z", "retryCount": 0,
   "data": {"id": "r1", "name": "Hardware", "relation_location": "Server", "created_at": "2024-03-01T12:00:00Z",
            "last_modified": "2024-03-01T12:00:00Z"}}
]`

func TestParseBatch_AllKinds(t *testing.T) {
	ops, err := ParseBatch([]byte(validBatch))
	require.NoError(t, err)
	require.Len(t, ops, 7)

	kinds := make([]Kind, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind()
	}
	assert.Equal(t, Kinds, kinds)

	create := ops[0].Payload.(TaskCreate)
	assert.Equal(t, "milk", create.Text)
	assert.Nil(t, create.CompletedAt)
	assert.True(t, create.LastModified.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, 1, ops[1].RetryCount)

	toggle := ops[2].Payload.(TaskToggle)
	require.NotNil(t, toggle.CompletedBy)
	assert.Equal(t, "u1", *toggle.CompletedBy)

	reorder := ops[4].Payload.(TaskReorder)
	require.Len(t, reorder, 1)
	assert.Equal(t, 3, reorder[0].OrderIdx)

	assert.Equal(t, "Hardware", ops[5].Payload.(RelationEdit).Name)
	assert.Equal(t, "r1", ops[6].Payload.(RelationDelete).ID)
}

func TestParseBatch_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{"id":`},
		{name: "not an array", body: `{"id": "op-1"}`},
		{name: "unknown type", body: `[{"id": "op-1", "type": "relation-reorder", "data": {}}]`},
		{name: "missing data field", body: `[{"id": "op-1", "type": "task-delete", "data": {"id": "t1", "task_relations_id": "r1"}}]`},
		{name: "reorder not a list", body: `[{"id": "op-1", "type": "task-reorder", "data": {"id": "t1"}}]`},
		{name: "bad timestamp", body: `[{"id": "op-1", "type": "task-delete", "data": {"id": "t1", "task_relations_id": "r1", "last_modified": "yesterday"}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBatch([]byte(tt.body))
			assert.ErrorIs(t, err, ErrMalformedBatch)
		})
	}
}

func TestParseBatch_Empty(t *testing.T) {
	ops, err := ParseBatch([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, ops)
	assert.Empty(t, ops)
}

func TestOperation_MarshalTagged(t *testing.T) {
	op := Operation{
		ID:        "op-1",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Payload:   TaskReorder{{ID: "t1", OrderIdx: 2, RelationID: "r1"}},
	}
	b, err := json.Marshal(op)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))
	assert.Equal(t, "task-reorder", wire["type"])
	assert.IsType(t, []any{}, wire["data"])

	_, err = json.Marshal(Operation{ID: "empty"})
	assert.Error(t, err)
}
