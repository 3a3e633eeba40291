// Package queue provides the byte-chunk FIFO shared by the relay and
// the terminal engine. Producers never block; consumers block only
// while the queue is empty.
package queue

import "sync"

// Queue is a FIFO of byte chunks guarded by a mutex and paired with a
// wake channel. Chunks are dequeued in the order enqueued and bytes
// within a chunk are never reordered or interleaved with another
// chunk's bytes.
type Queue struct {
	mu     sync.Mutex
	chunks [][]byte
	wake   chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends a copy of p as one chunk and wakes a waiting consumer.
// Empty pushes are ignored.
func (q *Queue) Push(p []byte) {
	if len(p) == 0 {
		return
	}
	chunk := append([]byte(nil), p...)
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()
	q.Wake()
}

// Drain removes all queued chunks and returns them concatenated into
// one buffer, preserving arrival order. Returns nil when empty.
func (q *Queue) Drain() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.chunks) == 0 {
		return nil
	}
	total := 0
	for _, c := range q.chunks {
		total += len(c)
	}
	buf := make([]byte, 0, total)
	for _, c := range q.chunks {
		buf = append(buf, c...)
	}
	q.chunks = nil
	return buf
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Wake nudges a blocked consumer without enqueueing data. Used by
// stop paths and by producers that feed the consumer through other
// state.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// WakeChan exposes the wake channel for consumers that need to select
// on it together with other events.
func (q *Queue) WakeChan() <-chan struct{} {
	return q.wake
}

// Wait blocks until the queue is non-empty or stop is closed. Returns
// true if data is available, false if the wait ended due to stop.
func (q *Queue) Wait(stop <-chan struct{}) bool {
	for {
		if q.Len() > 0 {
			return true
		}
		select {
		case <-q.wake:
		case <-stop:
			// Drain anything that raced in ahead of the stop.
			return q.Len() > 0
		}
	}
}
