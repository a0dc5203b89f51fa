package watermark

import (
	"sync"
	"testing"

	"github.com/streamforge/microbatch/element"
	"github.com/stretchr/testify/assert"
)

func TestHolderInitializedToMinTimestamp(t *testing.T) {
	holder := NewHolder()
	assert.Equal(t, element.MinTimestamp, holder.Get())
}

func TestHolderAdvanceIsMonotone(t *testing.T) {
	holder := NewHolder()
	assert.True(t, holder.Advance(100))
	assert.False(t, holder.Advance(100))
	assert.False(t, holder.Advance(99))
	assert.Equal(t, element.Timestamp(100), holder.Get())
	assert.True(t, holder.Advance(101))
	assert.Equal(t, element.Timestamp(101), holder.Get())
}

func TestHolderConcurrentPublishersNeverRegress(t *testing.T) {
	holder := NewHolder()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for ts := 0; ts < 1000; ts++ {
				previous := holder.Get()
				holder.Advance(element.Timestamp(ts))
				assert.GreaterOrEqual(t, holder.Get(), previous)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, element.Timestamp(999), holder.Get())
}
