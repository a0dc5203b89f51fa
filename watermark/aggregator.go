package watermark

import (
	"sync"

	"github.com/streamforge/microbatch/element"
)

// Metadata is what one partition reports for one tick: how many records it
// read and the maximum event timestamp it observed. Produced once per
// partition per tick, immutable, consumed exactly once by the Aggregator.
type Metadata struct {
	Partition  int
	NumRecords int64
	Watermark  element.Timestamp
}

// Summary is the reduction of one tick's metadata across all partitions.
type Summary struct {
	//NumRecords is the total read across partitions this tick
	NumRecords int64
	//Candidate is the computed minimum over per-partition observations
	Candidate element.Timestamp
	//Watermark is the published global value after the reduction
	Watermark element.Timestamp
	//Advanced reports whether this tick moved the global watermark
	Advanced bool
}

// Aggregator reduces all partitions' Metadata for a tick into the global
// watermark: the minimum over per-partition observations, since the global
// watermark cannot advance past the slowest partition.
//
// A partition reporting zero records does not lower the minimum, absence is
// unknown rather than stalled at time zero: its last real observation keeps
// counting. A partition that has never produced a record contributes the
// minimum representable timestamp until its first observation, pinning the
// global value down until every partition has reported once.
type Aggregator struct {
	mu         sync.Mutex
	holder     *Holder
	partitions int
	observed   map[int]element.Timestamp
}

func NewAggregator(holder *Holder, partitions int) *Aggregator {
	return &Aggregator{
		holder:     holder,
		partitions: partitions,
		observed:   map[int]element.Timestamp{},
	}
}

// Reduce must only be called after the tick's metadata has been fully
// collected from every partition (the caller's barrier) and after the
// tick's output has been committed, so that a replayed tick can never have
// fired timers against its own uncommitted watermark.
func (a *Aggregator) Reduce(batch []Metadata) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, metadata := range batch {
		total += metadata.NumRecords
		if metadata.NumRecords == 0 {
			continue
		}
		if current, ok := a.observed[metadata.Partition]; !ok || metadata.Watermark > current {
			a.observed[metadata.Partition] = metadata.Watermark
		}
	}
	candidate := element.MaxTimestamp
	for partition := 0; partition < a.partitions; partition++ {
		observation, ok := a.observed[partition]
		if !ok {
			observation = element.MinTimestamp
		}
		if observation < candidate {
			candidate = observation
		}
	}
	advanced := a.holder.Advance(candidate)
	return Summary{
		NumRecords: total,
		Candidate:  candidate,
		Watermark:  a.holder.Get(),
		Advanced:   advanced,
	}
}
