package driver

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/element"
	"github.com/streamforge/microbatch/log"
	"github.com/streamforge/microbatch/source"
	"github.com/streamforge/microbatch/watermark"
)

// Result is the outcome of one partition's tick: the decoded events, the
// partition's metadata for watermark aggregation, and a pending state
// mutation that becomes durable only on Commit.
type Result[T any] struct {
	Events   []element.Event[T]
	Metadata watermark.Metadata

	commit    func() error
	committed bool
}

// Commit persists the new checkpoint mark as the partition's durable state.
// It must be called only after the tick's output has been acknowledged
// downstream, persisting earlier would let a replay skip records. At most
// one commit per tick.
func (r *Result[T]) Commit() error {
	if r.committed {
		return errors.Errorf("partition %d state already advanced this tick", r.Metadata.Partition)
	}
	r.committed = true
	return r.commit()
}

// Driver is the stateful per-partition operation invoked once per tick. It
// opens a bounded reader seeded from the partition's stored mark, drains
// it, and hands back the records together with read metadata and the next
// mark.
type Driver[T any] struct {
	logger   log.Logger
	states   *StateStore
	upstream string
}

func NewDriver[T any](logger log.Logger, states *StateStore, upstream string) *Driver[T] {
	return &Driver[T]{logger: logger, states: states, upstream: upstream}
}

// RunTick reads one partition for one tick. low is the global watermark
// published before this tick, it backs the observed watermark when the
// partition reads nothing so the observation never regresses.
//
// A failed or canceled tick returns an error and leaves PartitionState
// untouched, the engine's retry re-opens from the same mark.
func (d *Driver[T]) RunTick(ctx context.Context, split source.Split[T], maxReadDuration time.Duration, low element.Timestamp) (*Result[T], error) {
	state, err := d.states.Get(split.ID)
	if err != nil {
		return nil, err
	}
	reader, err := split.Source.CreateReader(state.Mark)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create reader for partition %d", split.ID)
	}
	bounded := source.NewBoundedReader(reader, split.MaxRecords, maxReadDuration)

	var (
		events []element.Event[T]
		maxTs  = element.MinTimestamp
		meta   = element.Meta{Partition: split.ID, Upstream: d.upstream}
	)
	for ok, err := bounded.Start(ctx); ; ok, err = bounded.Advance(ctx) {
		if err != nil {
			_ = bounded.Close()
			return nil, errors.WithMessagef(err, "tick failed reading partition %d", split.ID)
		}
		if !ok {
			break
		}
		value, err := bounded.Current()
		if err != nil {
			_ = bounded.Close()
			return nil, errors.WithMessagef(err, "failed to get current record of partition %d", split.ID)
		}
		timestamp, err := bounded.CurrentTimestamp()
		if err != nil {
			_ = bounded.Close()
			return nil, errors.WithMessagef(err, "failed to get current timestamp of partition %d", split.ID)
		}
		events = append(events, element.Event[T]{Meta: meta, Value: value, Timestamp: timestamp})
		maxTs = element.MaxTimestampOf(maxTs, timestamp)
	}
	newMark := bounded.CheckpointMark()
	numRecords := bounded.NumRecordsRead()
	if err := bounded.Close(); err != nil {
		return nil, errors.WithMessagef(err, "failed to close reader of partition %d", split.ID)
	}

	observed := maxTs
	if numRecords == 0 {
		observed = low
	}
	d.logger.Debugw("partition tick drained",
		"partition", split.ID, "records", numRecords, "observedWatermark", observed)

	newState := PartitionState{
		PartitionID:      split.ID,
		Mark:             newMark,
		TotalRecordsRead: state.TotalRecordsRead + numRecords,
	}
	return &Result[T]{
		Events: events,
		Metadata: watermark.Metadata{
			Partition:  split.ID,
			NumRecords: numRecords,
			Watermark:  observed,
		},
		commit: func() error {
			return d.states.put(split.ID, newState)
		},
	}, nil
}
