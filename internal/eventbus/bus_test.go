package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
		return nil
	}
}

func TestBus_FanOut(t *testing.T) {
	b := New()
	id1, ch1 := b.Subscribe(4)
	_, ch2 := b.Subscribe(4)
	defer b.Unsubscribe(id1)

	b.PublishNew(TypeTaskAssigned, "t1", map[string]string{"assignee_id": "u1"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		ev := receive(t, ch)
		assert.Equal(t, TypeTaskAssigned, ev.Type)
		assert.Equal(t, "t1", ev.ResourceID)
		assert.Equal(t, "u1", ev.Metadata["assignee_id"])
		assert.Len(t, ev.ID, 26)
	}
}

func TestBus_DropsWhenBufferFull(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(1)

	b.PublishNew(TypeTaskUpdated, "t1", nil)
	b.PublishNew(TypeTaskUpdated, "t2", nil)

	assert.Equal(t, "t1", receive(t, ch).ResourceID)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.ResourceID)
	default:
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := New()
	id, ch := b.Subscribe(1)
	b.Unsubscribe(id)
	_, ok := <-ch
	require.False(t, ok)

	assert.NotPanics(t, func() { b.PublishNew(TypeAlertCreated, "n1", nil) })
	b.Unsubscribe(id)
}

func TestBus_SubscribeFiltersTypes(t *testing.T) {
	b := New()
	_, alerts := b.Subscribe(4, TypeAlertCreated)
	_, mutations := b.Subscribe(4, TaskMutations...)

	b.PublishNew(TypeTaskReassigned, "t1", nil)
	b.PublishNew(TypeAlertCreated, "n1", nil)

	assert.Equal(t, "n1", receive(t, alerts).ResourceID)
	assert.Equal(t, "t1", receive(t, mutations).ResourceID)
	assert.Empty(t, alerts)
	assert.Empty(t, mutations)
}
