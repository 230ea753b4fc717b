package stream

import "sync"

// Broker fans change notifications out to SSE subscribers, keyed by board.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers a listener for the board's changes.
func (b *Broker) Subscribe(boardID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[boardID] == nil {
		b.subs[boardID] = make(map[chan struct{}]struct{})
	}
	b.subs[boardID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener.
func (b *Broker) Unsubscribe(boardID string, ch chan struct{}) {
	b.mu.Lock()
	if set, ok := b.subs[boardID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, boardID)
		}
	}
	b.mu.Unlock()
}

// Notify wakes every listener of the board. Slow listeners that already have
// a pending wakeup are skipped, not blocked on.
func (b *Broker) Notify(boardID string) {
	b.mu.Lock()
	for ch := range b.subs[boardID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}
