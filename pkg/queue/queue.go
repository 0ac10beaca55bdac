// Package queue provides the message FIFOs of the host process together with the
// depth, limit, high-water mark and throughput readings published by the exporter.
package queue

import (
	"errors"
	"sync"

	"github.com/Borislavv/fd-metrics/pkg/buffer"
	"github.com/Borislavv/fd-metrics/pkg/peer"
)

const unboundedInitialSize = 64

var ErrFull = errors.New("queue is full")

// Queue is a FIFO of message ids. A zero limit means the queue grows without a ceiling.
type Queue struct {
	mu      sync.Mutex
	ring    *buffer.RingBuffer
	limit   int64
	highest int64
	total   int64
}

func New(limit int) *Queue {
	size := limit
	if limit <= 0 {
		limit, size = 0, unboundedInitialSize
	}
	return &Queue{
		ring:  buffer.NewRingBuffer(size),
		limit: int64(limit),
	}
}

// Post enqueues id, or returns ErrFull when the configured limit is reached.
func (q *Queue) Post(id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	depth := int64(q.ring.Len())
	if q.limit > 0 && depth >= q.limit {
		return ErrFull
	}
	if !q.ring.Push(id) {
		q.grow()
		q.ring.Push(id)
	}

	if depth+1 > q.highest {
		q.highest = depth + 1
	}
	return nil
}

// Take dequeues the oldest id and counts it as processed.
func (q *Queue) Take() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.ring.Pop()
	if ok {
		q.total++
	}
	return id, ok
}

// Drain dequeues up to max ids.
func (q *Queue) Drain(max int) []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := q.ring.Drain(max)
	q.total += int64(len(ids))
	return ids
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Len()
}

func (q *Queue) Stat() peer.QueueStat {
	q.mu.Lock()
	defer q.mu.Unlock()

	return peer.QueueStat{
		Current: int64(q.ring.Len()),
		Limit:   q.limit,
		Highest: q.highest,
		Total:   q.total,
	}
}

// grow doubles an unbounded ring, keeping FIFO order. Must be called under q.mu.
func (q *Queue) grow() {
	grown := buffer.NewRingBuffer(q.ring.Cap() * 2)
	for _, id := range q.ring.Drain(q.ring.Len()) {
		grown.Push(id)
	}
	q.ring = grown
}
