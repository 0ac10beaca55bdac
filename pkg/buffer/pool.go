package buffer

import (
	"sync"
)

// SizedPool manages one sync.Pool per size class. Requests above the biggest
// class are served by plain allocations and are never pooled.
type SizedPool struct {
	pools map[int]*sync.Pool
	sizes []int
}

// NewSizedPool initializes all size classes.
func NewSizedPool() *SizedPool {
	sizes := []int{
		4096, 8192, 16384, 32768, 65536,
		131072, 262144, 524288, 1048576,
		2097152, 4194304,
	}

	pools := make(map[int]*sync.Pool, len(sizes))
	for _, size := range sizes {
		sz := size // capture loop var
		pools[sz] = &sync.Pool{
			New: func() any {
				buf := make([]byte, 0, sz)
				return &buf
			},
		}
	}

	return &SizedPool{
		pools: pools,
		sizes: sizes,
	}
}

// Get returns an empty slice with capacity for at least size bytes. It implements Allocator.
func (s *SizedPool) Get(size int) []byte {
	class, ok := s.sizeClass(size)
	if !ok {
		return make([]byte, 0, size)
	}
	bufPtr := s.pools[class].Get().(*[]byte)
	return (*bufPtr)[:0]
}

// Put returns the buffer to its size class. Foreign capacities are dropped.
func (s *SizedPool) Put(buf []byte) {
	pool, ok := s.pools[cap(buf)]
	if !ok {
		return
	}
	buf = buf[:0]
	pool.Put(&buf)
}

// sizeClass finds the smallest size class >= size.
func (s *SizedPool) sizeClass(size int) (int, bool) {
	for _, class := range s.sizes {
		if size <= class {
			return class, true
		}
	}
	return 0, false
}
