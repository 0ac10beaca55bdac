package buffer

import (
	"sync/atomic"
)

// RingBuffer is a fixed-size FIFO of uint64 values for one producer and one consumer.
type RingBuffer struct {
	buf      []uint64
	mask     uint64
	head     uint64 // atomic
	tail     uint64 // atomic
	capacity uint64
}

// NewRingBuffer rounds size up to the next power of two.
func NewRingBuffer(size int) *RingBuffer {
	size = nextPow2(size)
	r := &RingBuffer{
		buf:      make([]uint64, size),
		capacity: uint64(size),
		mask:     uint64(size - 1),
	}
	return r
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (r *RingBuffer) Push(key uint64) bool {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if head-tail >= r.capacity {
		return false // buffer full
	}
	idx := head & r.mask
	r.buf[idx] = key
	atomic.AddUint64(&r.head, 1)
	return true
}

func (r *RingBuffer) Pop() (uint64, bool) {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)
	if head == tail {
		return 0, false // buffer empty
	}
	val := r.buf[tail&r.mask]
	atomic.AddUint64(&r.tail, 1)
	return val, true
}

func (r *RingBuffer) Drain(max int) []uint64 {
	tail := atomic.LoadUint64(&r.tail)
	head := atomic.LoadUint64(&r.head)

	n := head - tail
	if n == 0 {
		return nil
	}
	if n > uint64(max) {
		n = uint64(max)
	}

	result := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		idx := (tail + i) & r.mask
		result = append(result, r.buf[idx])
	}
	atomic.AddUint64(&r.tail, n)
	return result
}

func (r *RingBuffer) Len() int {
	return int(atomic.LoadUint64(&r.head) - atomic.LoadUint64(&r.tail))
}

func (r *RingBuffer) Cap() int {
	return int(r.capacity)
}
