package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_OrgScopedBroadcast(t *testing.T) {
	b := NewBroker()
	orgA := uuid.New()
	orgB := uuid.New()

	chanA := make(chan Event, 4)
	chanB := make(chan Event, 4)
	b.Register(orgA, chanA)
	b.Register(orgB, chanB)

	b.Publish(orgA, TypeRunStarted, map[string]string{"run_id": "r1"})

	require.Len(t, chanA, 1)
	assert.Len(t, chanB, 0, "other orgs must not see the event")

	got := <-chanA
	assert.Equal(t, TypeRunStarted, got.Type)
	assert.Equal(t, orgA, got.OrgID)

	// Data arrives pre-marshaled so every client sees the same bytes.
	raw, ok := got.Data.(json.RawMessage)
	require.True(t, ok)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "r1", payload["run_id"])
}

func TestBroker_BroadcastToAll(t *testing.T) {
	b := NewBroker()
	orgA := uuid.New()
	orgB := uuid.New()

	chanA := make(chan Event, 4)
	chanB := make(chan Event, 4)
	b.Register(orgA, chanA)
	b.Register(orgB, chanB)

	b.PublishAll(TypeBatchFinished, map[string]int{"processed": 3})

	require.Len(t, chanA, 1)
	require.Len(t, chanB, 1)
	// Each client's copy is stamped with its own org.
	assert.Equal(t, orgA, (<-chanA).OrgID)
	assert.Equal(t, orgB, (<-chanB).OrgID)
}

func TestBroker_BlockedClientIsSkipped(t *testing.T) {
	b := NewBroker()
	org := uuid.New()

	full := make(chan Event) // unbuffered, nobody reading
	healthy := make(chan Event, 4)
	b.Register(org, full)
	b.Register(org, healthy)

	// Must not deadlock on the blocked channel.
	b.Publish(org, TypeRunFinished, nil)

	require.Len(t, healthy, 1)
	assert.Len(t, full, 0)
}

func TestBroker_UnregisterClosesChannelAndPrunesOrg(t *testing.T) {
	b := NewBroker()
	org := uuid.New()
	ch := make(chan Event, 1)

	b.Register(org, ch)
	require.Equal(t, 1, b.ClientCount(org))

	b.Unregister(org, ch)
	assert.Equal(t, 0, b.ClientCount(org))
	assert.Equal(t, 0, b.TotalClientCount())

	_, open := <-ch
	assert.False(t, open, "unregister must close the client channel")

	// Broadcasting to a fully pruned org is a no-op.
	b.Publish(org, TypeRunStarted, nil)
}

func TestBroker_Counts(t *testing.T) {
	b := NewBroker()
	orgA := uuid.New()
	orgB := uuid.New()

	b.Register(orgA, make(chan Event, 1))
	b.Register(orgA, make(chan Event, 1))
	b.Register(orgB, make(chan Event, 1))

	assert.Equal(t, 2, b.ClientCount(orgA))
	assert.Equal(t, 1, b.ClientCount(orgB))
	assert.Equal(t, 0, b.ClientCount(uuid.New()))
	assert.Equal(t, 3, b.TotalClientCount())
}
