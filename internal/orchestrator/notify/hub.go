// Package notify fans stage-change events out to subscribers.
package notify

import (
	"time"

	"github.com/speaklarity/platform/internal/store"
	"github.com/speaklarity/platform/internal/syncx"
)

// Event announces that a conversation is about to enter Stage.
type Event struct {
	ConversationID string
	Stage          store.Stage
	At             time.Time
	Error          string
}

// Progress returns (actions done, total actions) for the event's stage.
func (e Event) Progress() (int, int) { return e.Stage.Progress() }

type subscriber struct {
	ch chan Event
}

// Hub delivers each event at most once to every current subscriber. A
// subscriber whose buffer is full misses the event.
type Hub struct {
	subs *syncx.RWGuard[map[*subscriber]struct{}]
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subs: syncx.NewGuard(make(map[*subscriber]struct{})),
		now:  time.Now,
	}
}

// Publish sends e to all subscribers without blocking.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = h.now()
	}
	h.subs.Read(func(subs map[*subscriber]struct{}) {
		for s := range subs {
			select {
			case s.ch <- e:
			default:
			}
		}
	})
}

// Subscribe registers a listener. The returned func unsubscribes and closes
// the channel; calling it more than once is safe.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	h.subs.Write(func(subs *map[*subscriber]struct{}) {
		(*subs)[s] = struct{}{}
	})

	return s.ch, func() {
		h.subs.Write(func(subs *map[*subscriber]struct{}) {
			if _, ok := (*subs)[s]; ok {
				delete(*subs, s)
				close(s.ch)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	return syncx.Query(h.subs, func(subs map[*subscriber]struct{}) int { return len(subs) })
}
