package rbac

import "sync"

// Broker fans session events out to subscribers. It replaces the
// original's ambient auth-state singleton with an explicit channel
// interface: the auth layer publishes, evaluators and observers
// subscribe.
type Broker struct {
	mu     sync.Mutex
	subs   []chan SessionEvent
	closed bool
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{}
}

// Subscribe registers a new subscriber channel. The channel is buffered;
// a subscriber that falls behind drops events rather than blocking the
// publisher.
func (b *Broker) Subscribe() <-chan SessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan SessionEvent, 16)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber.
func (b *Broker) Publish(ev SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
