package watermark

import (
	"github.com/streamforge/microbatch/element"
	"go.uber.org/atomic"
)

// Holder is the process-wide global watermark cell, the only mutable
// resource shared across partitions. It holds an immutable snapshot value
// swapped by compare-and-swap, never a blind overwrite, so the value is
// monotonically non-decreasing for its whole lifecycle.
type Holder struct {
	value *atomic.Int64
}

func NewHolder() *Holder {
	return &Holder{value: atomic.NewInt64(int64(element.MinTimestamp))}
}

// Get returns a snapshot of the current global watermark.
func (h *Holder) Get() element.Timestamp {
	return element.Timestamp(h.value.Load())
}

// Advance publishes candidate only if it is strictly greater than the
// current value. Concurrent publishers race via CAS, the first successful
// writer of a higher value wins and the rest are no-ops.
func (h *Holder) Advance(candidate element.Timestamp) bool {
	for {
		current := h.value.Load()
		if int64(candidate) <= current {
			return false
		}
		if h.value.CAS(current, int64(candidate)) {
			return true
		}
	}
}

// BatchTime is the closed watermark interval one tick observes: Low is the
// value published before the tick, High the value published by the tick.
// High becomes readable by timers only from the following tick.
type BatchTime struct {
	Low  element.Timestamp
	High element.Timestamp
}
