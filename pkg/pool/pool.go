package pool

// sync.Pool is a mechanism to cache allocated but unused objects for later reuse,
// relieving pressure on the garbage collector. It is safe for concurrent use.
//
// Mechanics:
//   - Get(): Retrieves an arbitrary item from the Pool, removing it. If the Pool
//     is empty, it calls New (if defined) or returns nil. It prioritizes local
//     per-P caches to minimize lock contention.
//   - Put(): Adds an item to the Pool.
//   - GC: Items in the Pool are automatically removed during garbage collection.
//     Therefore, sync.Pool is suitable for short-lived objects (like buffers)
//     but not for persistent resources like database connections.

import "sync"

// FixedBufferPool hands out reusable byte slices of a single configured size.
// The compressor's copy loop grabs one buffer per archive entry, so pooling
// keeps a long export from reallocating the same slice thousands of times.
type FixedBufferPool struct {
	size int64
	pool sync.Pool
}

func NewFixedBuffer(size int64) *FixedBufferPool {
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, int(size))
				return &b
			},
		},
	}
}

func (fp *FixedBufferPool) Get() *[]byte {
	return fp.pool.Get().(*[]byte)
}

func (fp *FixedBufferPool) Put(b *[]byte) {
	// Only put it back if it's the right size.
	if b == nil || int64(cap(*b)) != fp.size {
		return
	}
	*b = (*b)[:fp.size]
	fp.pool.Put(b)
}
