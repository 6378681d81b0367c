package main

import "sync"

// Event is the notification emitted after every successful mutating call:
// one event per mutation, carrying the affected entity and board type. The
// notification panel and other in-process observers subscribe to it.
type Event struct {
	Type    string    `json:"type"`
	Entity  string    `json:"entity,omitempty"`
	Board   BoardType `json:"board_type"`
	ID      int64     `json:"id,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// EventBus fans events out to subscribers per board type and keeps a change
// sequence per board. The sequence is the staleness signal for polling
// clients: it advances on every mutation and a client refetches the board
// projection when the value it last saw is behind.
type EventBus struct {
	mu   sync.RWMutex
	subs map[BoardType]map[chan Event]struct{}
	seq  map[BoardType]uint64
}

func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[BoardType]map[chan Event]struct{}),
		seq:  make(map[BoardType]uint64),
	}
}

func (b *EventBus) Subscribe(boardType BoardType) (ch chan Event, cancel func()) {
	ch = make(chan Event, 16)
	b.mu.Lock()
	if b.subs[boardType] == nil {
		b.subs[boardType] = make(map[chan Event]struct{})
	}
	b.subs[boardType][ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		if subs, ok := b.subs[boardType]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, boardType)
			}
		}
		b.mu.Unlock()
		close(ch)
	}
}

func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	b.seq[ev.Board]++
	subs := b.subs[ev.Board]
	for ch := range subs {
		select {
		case ch <- ev:
		default: // drop if slow
		}
	}
	b.mu.Unlock()
}

// Seq returns the board's current change sequence.
func (b *EventBus) Seq(boardType BoardType) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq[boardType]
}
