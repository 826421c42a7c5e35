// Package bufpool provides size-classed byte slice pools for frame I/O.
//
// Commands and status replies are tiny while READ replies can reach the
// configured file size limit, so buffers are pooled in three classes:
//   - Small (default 512B): auth tokens, commands, short replies
//   - Medium (default 64KB): directory listings and small files
//   - Large (default 1MB): bigger file contents
//
// Requests above the large class are allocated directly and never pooled.
//
//	buf := bufpool.Get(size)
//	defer bufpool.Put(buf)
package bufpool

import (
	"sync"
)

// Default buffer size classes.
const (
	DefaultSmallSize  = 512
	DefaultMediumSize = 64 << 10
	DefaultLargeSize  = 1 << 20
)

// Config holds the size classes of a Pool. Zero values fall back to the
// defaults.
type Config struct {
	SmallSize  int
	MediumSize int
	LargeSize  int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		SmallSize:  DefaultSmallSize,
		MediumSize: DefaultMediumSize,
		LargeSize:  DefaultLargeSize,
	}
}

type class struct {
	size int
	pool sync.Pool
}

// Pool hands out byte slices from the smallest class that fits.
type Pool struct {
	classes [3]*class
}

// NewPool creates a buffer pool. A nil config uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	p := &Pool{}
	for i, size := range []int{c.SmallSize, c.MediumSize, c.LargeSize} {
		cl := &class{size: size}
		cl.pool.New = func() any {
			buf := make([]byte, cl.size)
			return &buf
		}
		p.classes[i] = cl
	}
	return p
}

// Get returns a slice of length size. Callers must hand it back with Put
// once no reference to it remains.
func (p *Pool) Get(size int) []byte {
	for _, cl := range p.classes {
		if size <= cl.size {
			buf := *cl.pool.Get().(*[]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns a buffer obtained from Get. Slices whose capacity matches no
// class are left to the garbage collector.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	for _, cl := range p.classes {
		if cap(buf) == cl.size {
			full := buf[:cap(buf)]
			cl.pool.Put(&full)
			return
		}
	}
}

var globalPool = NewPool(nil)

// Get returns a slice of length size from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}

// GetUint32 is Get for length fields decoded off the wire.
func GetUint32(size uint32) []byte {
	return globalPool.Get(int(size))
}
