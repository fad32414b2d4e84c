package bus

import (
	"sync"

	"github.com/boxworld/box/internal/message"
)

// Bus is a double-buffered message queue. Messages posted during a tick sit
// in the back buffer until Flush, which swaps buffers and delivers every
// message once, in posting order. Messages posted while a flush is running
// wait for the next flush.
type Bus struct {
	mu    sync.Mutex // Post may be called from systems running in parallel
	back  []message.Message
	front []message.Message
}

func New() *Bus {
	return &Bus{
		back:  make([]message.Message, 0, 64),
		front: make([]message.Message, 0, 64),
	}
}

// Post queues m for the next flush. It never blocks.
func (b *Bus) Post(m message.Message) {
	b.mu.Lock()
	b.back = append(b.back, m)
	b.mu.Unlock()
}

// Pending returns the number of messages waiting for the next flush.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.back)
}

// Flush delivers every queued message to deliver and returns the count.
func (b *Bus) Flush(deliver func(message.Message)) int {
	b.mu.Lock()
	b.front, b.back = b.back, b.front[:0]
	batch := b.front
	b.mu.Unlock()

	for _, m := range batch {
		deliver(m)
	}
	for i := range batch {
		batch[i] = nil
	}
	return len(batch)
}
