package runner

import (
	"sync"

	"github.com/atelierhq/critique/internal/model"
)

// subscriberBufferSize is the channel buffer for each feed subscriber.
// Outcomes are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Feed broadcasts terminal outcomes to subscribers as jobs finish.
// It is safe for concurrent use.
//
// Publishing never blocks a job goroutine: subscribers whose buffers are full
// miss outcomes instead of holding up delivery. Once closed, late subscribers
// receive an already-closed channel instead of blocking forever.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan model.Outcome
	nextID int
	closed bool
}

// NewFeed creates a new outcome feed.
func NewFeed() *Feed {
	return &Feed{
		subs: make(map[int]chan model.Outcome),
	}
}

// Subscribe returns a channel that receives terminal outcomes and an
// unsubscribe function. If the feed has already been closed, the returned
// channel is immediately closed.
func (f *Feed) Subscribe() (<-chan model.Outcome, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan model.Outcome, subscriberBufferSize)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// Publish sends an outcome to all subscribers. Outcomes are dropped for
// subscribers whose buffers are full.
func (f *Feed) Publish(out model.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	for _, ch := range f.subs {
		select {
		case ch <- out:
		default:
			// Drop for slow subscribers to avoid blocking job goroutines.
		}
	}
}

// SubscriberCount reports how many subscribers are currently attached.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close signals that no more outcomes will be published. All subscriber
// channels are closed and future Subscribe calls return a closed channel.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}
