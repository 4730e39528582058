package uart

import (
	"sync"

	"go.uber.org/atomic"
)

// MaxBufferSize caps a single Read request. 64KB matches typical OS serial
// buffer sizes.
const MaxBufferSize = 64 * 1024

// BufferPool manages reusable fixed-size byte buffers.
type BufferPool struct {
	pool sync.Pool
	size int

	gets    atomic.Int64
	puts    atomic.Int64
	creates atomic.Int64
}

// NewBufferPool creates a buffer pool with fixed-size buffers
func NewBufferPool(bufferSize int) *BufferPool {
	bp := &BufferPool{
		size: bufferSize,
	}
	bp.pool = sync.Pool{
		New: func() any {
			bp.creates.Inc()
			b := make([]byte, bufferSize)
			return &b
		},
	}
	return bp
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() []byte {
	bp.gets.Inc()
	return *bp.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool, cleared first.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:bp.size]
	bp.puts.Inc()

	clear(buf)
	bp.pool.Put(&buf)
}

// Stats returns pool usage statistics
func (bp *BufferPool) Stats() PoolStats {
	return PoolStats{
		Size:    bp.size,
		Gets:    bp.gets.Load(),
		Puts:    bp.puts.Load(),
		Creates: bp.creates.Load(),
	}
}

// PoolStats contains buffer pool usage statistics
type PoolStats struct {
	Size    int   // Buffer size managed by this pool
	Gets    int64 // Number of Get() calls
	Puts    int64 // Number of Put() calls
	Creates int64 // Number of new buffers created
}

// HitRatio returns the cache hit ratio (0.0 to 1.0)
func (ps PoolStats) HitRatio() float64 {
	if ps.Gets == 0 {
		return 0.0
	}
	return 1.0 - (float64(ps.Creates) / float64(ps.Gets))
}

// readBuffers hands out read buffers in three size classes; larger requests
// are allocated directly.
type readBuffers struct {
	small   *BufferPool // 256 bytes
	medium  *BufferPool // 1024 bytes
	large   *BufferPool // 4096 bytes
	metrics *Metrics
}

func newReadBuffers(m *Metrics) *readBuffers {
	return &readBuffers{
		small:   NewBufferPool(256),
		medium:  NewBufferPool(1024),
		large:   NewBufferPool(4096),
		metrics: m,
	}
}

// get returns a buffer of len size and its release func.
func (rb *readBuffers) get(size int) ([]byte, func()) {
	var pool *BufferPool
	switch {
	case size <= 256:
		pool = rb.small
	case size <= 1024:
		pool = rb.medium
	case size <= 4096:
		pool = rb.large
	}

	if pool == nil {
		if rb.metrics != nil {
			rb.metrics.BufferPoolMisses.Inc()
		}
		return make([]byte, size), func() {}
	}

	if rb.metrics != nil {
		rb.metrics.BufferPoolHits.Inc()
	}
	buf := pool.Get()[:size]
	return buf, func() { pool.Put(buf) }
}

func (rb *readBuffers) stats() []PoolStats {
	return []PoolStats{
		rb.small.Stats(),
		rb.medium.Stats(),
		rb.large.Stats(),
	}
}
