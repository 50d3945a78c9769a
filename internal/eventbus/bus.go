package eventbus

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Type string

const (
	TypeTaskAssigned   Type = "task.assigned"
	TypeTaskReassigned Type = "task.reassigned"
	TypeTaskUpdated    Type = "task.updated"
	TypeAlertCreated   Type = "alert.created"
)

// TaskMutations are the events after which workload or due-date state may
// have changed.
var TaskMutations = []Type{TypeTaskAssigned, TypeTaskReassigned, TypeTaskUpdated}

type Event struct {
	ID         string
	Type       Type
	ResourceID string
	Metadata   map[string]string
	CreatedAt  time.Time
}

type subscription struct {
	ch    chan *Event
	types []Type
}

func (s *subscription) wants(t Type) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Bus fans engine events out to in-process subscribers such as the reactive
// alert loop and the push dispatcher.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

func New() *Bus {
	return &Bus{subs: make(map[string]*subscription)}
}

// Subscribe registers a buffered channel receiving events of the given
// types, or every event when none are given.
func (b *Bus) Subscribe(bufSize int, types ...Type) (string, <-chan *Event) {
	id := ulid.Make().String()
	sub := &subscription{ch: make(chan *Event, bufSize), types: types}
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return id, sub.ch
}

// Unsubscribe closes the subscription's channel. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			slog.Debug("event dropped", "subscriber", id, "type", event.Type, "resource_id", event.ResourceID)
		}
	}
}

func (b *Bus) PublishNew(eventType Type, resourceID string, metadata map[string]string) {
	b.Publish(&Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}
