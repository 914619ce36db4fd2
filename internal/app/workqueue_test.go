package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/pacer/internal/domain"
)

func ids(items []*domain.WorkItem[string]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestWorkQueue_OrdersByPriorityThenArrival(t *testing.T) {
	q := NewWorkQueue[string](0, domain.PriorityLow, nil)
	for _, it := range testItems(
		domain.WorkItem[string]{ID: "low-1", Priority: domain.PriorityLow},
		domain.WorkItem[string]{ID: "high-1", Priority: domain.PriorityHigh},
		domain.WorkItem[string]{ID: "low-2", Priority: domain.PriorityLow},
		domain.WorkItem[string]{ID: "high-2", Priority: domain.PriorityHigh},
		domain.WorkItem[string]{ID: "bg", Priority: domain.PriorityBackground},
	) {
		_, err := q.Enqueue(it)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"high-1", "high-2", "low-1", "low-2", "bg"}, ids(q.Items()))
}

func TestWorkQueue_DequeueMatching(t *testing.T) {
	events := &eventLog{}
	q := NewWorkQueue[string](0, domain.PriorityLow, events.OnEvent)
	for _, it := range testItems(
		domain.WorkItem[string]{ID: "a", OwnerID: "x", Priority: domain.PriorityMedium},
		domain.WorkItem[string]{ID: "b", OwnerID: "y", Priority: domain.PriorityMedium},
		domain.WorkItem[string]{ID: "c", OwnerID: "x", Priority: domain.PriorityMedium},
	) {
		_, err := q.Enqueue(it)
		require.NoError(t, err)
	}

	got := q.DequeueMatching(func(it *domain.WorkItem[string]) bool { return it.OwnerID == "x" })

	assert.Equal(t, []string{"a", "c"}, ids(got))
	assert.Equal(t, []string{"b"}, ids(q.Items()))
	assert.Len(t, events.Removed(domain.ReasonBatched), 2)
	assert.Len(t, events.Of(domain.EventItemQueued), 3)
}

func TestWorkQueue_RemoveIsNoOpForUnknownID(t *testing.T) {
	q := NewWorkQueue[string](0, domain.PriorityLow, nil)
	_, err := q.Enqueue(testItems(domain.WorkItem[string]{ID: "a", Priority: domain.PriorityLow})[0])
	require.NoError(t, err)

	_, ok := q.Remove("missing", domain.ReasonCancelled)
	assert.False(t, ok)
	it, ok := q.Remove("a", domain.ReasonCancelled)
	assert.True(t, ok)
	assert.Equal(t, "a", it.ID)
	assert.Equal(t, 0, q.Len())
}

func TestWorkQueue_NeverEvictsAboveCutoff(t *testing.T) {
	events := &eventLog{}
	q := NewWorkQueue[string](2, domain.PriorityLow, events.OnEvent)
	for _, it := range testItems(
		domain.WorkItem[string]{ID: "m1", Priority: domain.PriorityMedium},
		domain.WorkItem[string]{ID: "m2", Priority: domain.PriorityMedium},
	) {
		_, err := q.Enqueue(it)
		require.NoError(t, err)
	}

	evicted, err := q.Enqueue(&domain.WorkItem[string]{ID: "h", Priority: domain.PriorityHigh})
	assert.ErrorIs(t, err, domain.ErrQueueOverflow)
	assert.Nil(t, evicted)
	assert.Equal(t, []string{"m1", "m2"}, ids(q.Items()))

	overflow := events.Of(domain.EventOverflowHandled)
	require.Len(t, overflow, 1)
	assert.Equal(t, domain.ReasonRejected, overflow[0].Reason)
}
