package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Type names a schedule center change.
type Type string

const (
	TypeJobCreated        Type = "job_created"
	TypeJobUpdated        Type = "job_updated"
	TypeJobSwitched       Type = "job_switched"
	TypeJobDeleted        Type = "job_deleted"
	TypeGroupCreated      Type = "group_created"
	TypeGroupUpdated      Type = "group_updated"
	TypeGroupDeleted      Type = "group_deleted"
	TypePermissionUpdated Type = "permission_updated"
	TypeRunDispatched     Type = "run_dispatched"
	TypeRunCancelled      Type = "run_cancelled"
	TypeVersionGenerated  Type = "version_generated"
)

// Event represents a system event.
type Event struct {
	Type      Type            `json:"type"`
	JobID     uint            `json:"job_id,omitempty"`
	GroupID   uint            `json:"group_id,omitempty"`
	HistoryID uint            `json:"history_id,omitempty"`
	Actor     string          `json:"actor,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Filter defines criteria for receiving events.
type Filter struct {
	JobID   uint
	GroupID uint
	Types   []Type
}

// Bus defines the event bus interface.
type Bus interface {
	Publish(e Event)
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, error)
}

type bus struct {
	subscribers map[chan Event]Filter
	mu          sync.RWMutex
}

// New creates a new event bus.
func New() Bus {
	return &bus{
		subscribers: make(map[chan Event]Filter),
	}
}

func (b *bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, filter := range b.subscribers {
		if filter.matches(e) {
			select {
			case ch <- e:
			default:
				// slow subscriber, drop
			}
		}
	}
}

func (b *bus) Subscribe(ctx context.Context, filter Filter) (<-chan Event, error) {
	ch := make(chan Event, 100)

	b.mu.Lock()
	b.subscribers[ch] = filter
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

func (f Filter) matches(e Event) bool {
	if f.JobID != 0 && f.JobID != e.JobID {
		return false
	}
	if f.GroupID != 0 && f.GroupID != e.GroupID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}
