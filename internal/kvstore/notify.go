package kvstore

import (
	"sync"

	"github.com/agentic-research/pathstore/internal/pathcodec"
)

// unboundedQueue decouples a fast writer (the commit path) from a slow
// consumer (a subscriber that hasn't drained its channel yet) without
// either blocking the writer or dropping events. Events accumulate in an
// in-memory slice and are forwarded to Events one at a time as the
// consumer reads.
type unboundedQueue struct {
	mu     sync.Mutex
	buf    []Event
	notify chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
}

func newUnboundedQueue() *unboundedQueue {
	q := &unboundedQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
	go q.pump()
	return q
}

func (q *unboundedQueue) push(e Event) {
	q.mu.Lock()
	q.buf = append(q.buf, e)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *unboundedQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.buf) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}
		e := q.buf[0]
		q.buf = q.buf[1:]
		q.mu.Unlock()

		select {
		case q.out <- e:
		case <-q.done:
			return
		}
	}
}

func (q *unboundedQueue) close() {
	q.once.Do(func() { close(q.done) })
}

// watchRegistry tracks all live prefix-watch subscriptions and publishes
// committed events to every subscription whose prefix matches.
type watchRegistry struct {
	mu   sync.Mutex
	subs map[*unboundedQueue][]byte // queue -> watched prefix
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{subs: make(map[*unboundedQueue][]byte)}
}

func (r *watchRegistry) watch(prefix []byte) *Subscription {
	q := newUnboundedQueue()

	r.mu.Lock()
	r.subs[q] = append([]byte(nil), prefix...)
	r.mu.Unlock()

	return &Subscription{
		Events: q.out,
		cancel: func() {
			r.mu.Lock()
			delete(r.subs, q)
			r.mu.Unlock()
			q.close()
		},
	}
}

// publish delivers events to every registered subscription whose prefix
// is a byte-prefix of the event's key. Callers must hold whatever lock
// serializes commits, so that events from one transaction are fully
// published, in order, before any event from a later transaction.
func (r *watchRegistry) publish(events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for q, prefix := range r.subs {
		for _, e := range events {
			if pathcodec.IsPrefix(prefix, e.Key) {
				q.push(e)
			}
		}
	}
}
