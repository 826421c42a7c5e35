package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Allocation Tests
// ============================================================================

func TestGetSizeClasses(t *testing.T) {
	p := NewPool(nil)

	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, DefaultSmallSize},
		{"Command", 4, DefaultSmallSize},
		{"SmallBoundary", DefaultSmallSize, DefaultSmallSize},
		{"JustAboveSmall", DefaultSmallSize + 1, DefaultMediumSize},
		{"MediumBoundary", DefaultMediumSize, DefaultMediumSize},
		{"JustAboveMedium", DefaultMediumSize + 1, DefaultLargeSize},
		{"LargeBoundary", DefaultLargeSize, DefaultLargeSize},
		{"Oversized", DefaultLargeSize + 1, DefaultLargeSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := p.Get(tt.size)
			assert.Len(t, buf, tt.size)
			assert.Equal(t, tt.wantCap, cap(buf))
			p.Put(buf)
		})
	}
}

func TestCustomPool(t *testing.T) {
	t.Run("CustomSizes", func(t *testing.T) {
		p := NewPool(&Config{SmallSize: 16, MediumSize: 32, LargeSize: 64})
		assert.Equal(t, 16, cap(p.Get(10)))
		assert.Equal(t, 32, cap(p.Get(20)))
		assert.Equal(t, 64, cap(p.Get(40)))
		assert.Equal(t, 100, cap(p.Get(100)))
	})

	t.Run("ZeroValuesUseDefaults", func(t *testing.T) {
		p := NewPool(&Config{SmallSize: 16})
		assert.Equal(t, DefaultMediumSize, cap(p.Get(DefaultMediumSize)))
	})
}

// ============================================================================
// Put Tests
// ============================================================================

func TestPut(t *testing.T) {
	t.Run("NilIsIgnored", func(t *testing.T) {
		require.NotPanics(t, func() { Put(nil) })
	})

	t.Run("ForeignSliceIsIgnored", func(t *testing.T) {
		require.NotPanics(t, func() { Put(make([]byte, 3)) })
	})

	t.Run("ReturnedBufferHasFullLengthAgain", func(t *testing.T) {
		p := NewPool(&Config{SmallSize: 8, MediumSize: 16, LargeSize: 32})
		buf := p.Get(2)
		p.Put(buf)

		again := p.Get(8)
		assert.Len(t, again, 8)
	})
}

func TestGetUint32(t *testing.T) {
	buf := GetUint32(100)
	assert.Len(t, buf, 100)
	Put(buf)
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				buf := Get((n*j)%(DefaultMediumSize*2) + 1)
				buf[0] = byte(n)
				Put(buf)
			}
		}(i)
	}
	wg.Wait()
}
