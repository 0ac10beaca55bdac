package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultTextCapacity is the starting capacity of a Text.
const DefaultTextCapacity = 4 * 1024

var ErrAllocFailed = errors.New("text buffer allocation failed")

// Allocator returns a zero-length slice with at least size bytes of capacity, or nil on failure.
type Allocator func(size int) []byte

func makeBytes(size int) []byte {
	return make([]byte, 0, size)
}

var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

// Text is an append-only byte accumulator used to build response bodies.
//
// Once an allocation fails the buffer is marked failed: it keeps what was written
// so far and ignores every further append. Text is not safe for concurrent use.
type Text struct {
	data   []byte
	limit  int
	alloc  Allocator
	free   func([]byte)
	failed bool
}

type TextOption func(t *Text, capacity *int)

// WithCapacity overrides the starting capacity.
func WithCapacity(n int) TextOption {
	return func(_ *Text, capacity *int) {
		if n > 0 {
			*capacity = n
		}
	}
}

// WithLimit caps the capacity; growing past it counts as an allocation failure.
func WithLimit(n int) TextOption {
	return func(t *Text, _ *int) { t.limit = n }
}

// WithAllocator replaces the backing allocator.
func WithAllocator(a Allocator) TextOption {
	return func(t *Text, _ *int) {
		if a != nil {
			t.alloc = a
		}
	}
}

// WithPool takes storage from p and gives it back on growth and on Release.
func WithPool(p *SizedPool) TextOption {
	return func(t *Text, _ *int) {
		if p != nil {
			t.alloc = p.Get
			t.free = p.Put
		}
	}
}

func NewText(opts ...TextOption) *Text {
	capacity := DefaultTextCapacity
	t := &Text{alloc: makeBytes}
	for _, opt := range opts {
		opt(t, &capacity)
	}
	if t.limit > 0 && capacity > t.limit {
		capacity = t.limit
	}
	if t.data = t.allocate(capacity); t.data == nil {
		t.failed = true
	}
	return t
}

// allocate keeps pooled storage within the limit.
func (t *Text) allocate(n int) []byte {
	b := t.alloc(n)
	if b != nil && t.limit > 0 && cap(b) > t.limit {
		b = b[:0:t.limit]
	}
	return b
}

// Appendf formats into a scratch slice to learn the fragment length, grows the
// storage when needed and copies the fragment to the end.
func (t *Text) Appendf(format string, args ...any) {
	if t.failed {
		return
	}

	sp := scratchPool.Get().(*[]byte)
	defer func() {
		*sp = (*sp)[:0]
		scratchPool.Put(sp)
	}()

	*sp = fmt.Appendf((*sp)[:0], format, args...)
	t.append(*sp)
}

// AppendString appends s as is.
func (t *Text) AppendString(s string) {
	if t.failed {
		return
	}
	if !t.reserve(len(s)) {
		return
	}
	t.data = append(t.data, s...)
}

// Write implements io.Writer so other encoders can render into the buffer.
func (t *Text) Write(p []byte) (int, error) {
	if t.failed || !t.append(p) {
		return 0, ErrAllocFailed
	}
	return len(p), nil
}

func (t *Text) append(p []byte) bool {
	if !t.reserve(len(p)) {
		return false
	}
	t.data = append(t.data, p...)
	return true
}

// reserve makes room for n more bytes plus a terminator slot,
// growing to max(2*cap, cap+n)+1.
func (t *Text) reserve(n int) bool {
	size, capacity := len(t.data), cap(t.data)
	if size+n+1 <= capacity {
		return true
	}

	newCap := max(2*capacity, capacity+n) + 1
	if t.limit > 0 && newCap > t.limit {
		if size+n+1 > t.limit {
			t.failed = true
			return false
		}
		newCap = t.limit
	}

	grown := t.allocate(newCap)
	if grown == nil {
		t.failed = true
		return false
	}
	old := t.data
	t.data = append(grown[:0], old...)
	if t.free != nil {
		t.free(old)
	}
	return true
}

// Bytes returns the content written so far. The slice is valid until the next append or Release.
func (t *Text) Bytes() []byte { return t.data }

func (t *Text) String() string { return string(t.data) }

func (t *Text) Len() int { return len(t.data) }

func (t *Text) Cap() int { return cap(t.data) }

// Failed reports whether an allocation failed and the content may be truncated.
func (t *Text) Failed() bool { return t.failed }

// Release drops the storage. It is safe on a failed or already released buffer.
func (t *Text) Release() {
	if t.free != nil && t.data != nil {
		t.free(t.data)
	}
	t.data = nil
	t.failed = true
}
