package source

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/common/backoff"
	"github.com/streamforge/microbatch/element"
)

// BoundedReader adapts one partition of an unbounded source to the
// micro-batch model: it stops returning records once a wall-clock deadline
// or a record quota is reached, whichever comes first.
//
// When the source reports no data currently available the reader retries
// with exponential backoff, never sleeping past the remaining time budget of
// the tick. Reaching a bound finalizes the checkpoint mark exactly once
// before reporting end of input. A canceled context aborts the read without
// finalizing, so an abandoned tick leaves no durable trace.
type BoundedReader[T any] struct {
	reader        Reader[T]
	maxRecords    int64
	endTime       time.Time
	backoffPolicy backoff.Policy

	recordsRead int64
	finalized   bool
}

// NewBoundedReader bounds reader by maxRecords and maxReadDuration. A
// negative maxRecords means unbounded by count, a zero quota stops before
// the first record is read.
func NewBoundedReader[T any](reader Reader[T], maxRecords int64, maxReadDuration time.Duration) *BoundedReader[T] {
	return &BoundedReader[T]{
		reader:     reader,
		maxRecords: maxRecords,
		endTime:    time.Now().Add(maxReadDuration),
		backoffPolicy: backoff.Policy{
			InitialInterval: backoff.DefaultInitialInterval,
			MaxInterval:     maxReadDuration - time.Millisecond,
			MaxCumulative:   maxReadDuration - time.Millisecond,
		},
	}
}

func (b *BoundedReader[T]) Start(ctx context.Context) (bool, error) {
	if b.quotaReached() {
		return false, b.finalizeMark()
	}
	ok, err := b.reader.Start()
	if err != nil {
		return false, errors.WithMessage(err, "failed to start source reader")
	}
	if ok {
		b.recordsRead++
		return true, nil
	}
	return b.advanceWithBackoff(ctx)
}

func (b *BoundedReader[T]) Advance(ctx context.Context) (bool, error) {
	if b.quotaReached() {
		return false, b.finalizeMark()
	}
	return b.advanceWithBackoff(ctx)
}

func (b *BoundedReader[T]) quotaReached() bool {
	return b.maxRecords >= 0 && b.recordsRead >= b.maxRecords
}

func (b *BoundedReader[T]) advanceWithBackoff(ctx context.Context) (bool, error) {
	bo := b.backoffPolicy.New()
	for {
		pause, more := bo.Next()
		if !more {
			//cumulative backoff budget spent, treat as end of bound
			return false, b.finalizeMark()
		}
		if time.Now().After(b.endTime) {
			return false, b.finalizeMark()
		}
		ok, err := b.reader.Advance()
		if err != nil {
			return false, errors.WithMessage(err, "failed to advance source reader")
		}
		if ok {
			b.recordsRead++
			return true, nil
		}
		if err := backoff.Sleep(ctx, pause); err != nil {
			//canceled while waiting, the tick is abandoned and the mark
			//must not be finalized
			return false, errors.WithMessage(err, "bounded read canceled")
		}
	}
}

func (b *BoundedReader[T]) finalizeMark() error {
	if b.finalized {
		return nil
	}
	b.finalized = true
	if err := b.reader.CheckpointMark().Finalize(); err != nil {
		return errors.WithMessage(err, "failed to finalize checkpoint mark")
	}
	return nil
}

func (b *BoundedReader[T]) Current() (T, error) {
	return b.reader.Current()
}

func (b *BoundedReader[T]) CurrentTimestamp() (element.Timestamp, error) {
	return b.reader.CurrentTimestamp()
}

func (b *BoundedReader[T]) CheckpointMark() CheckpointMark {
	return b.reader.CheckpointMark()
}

func (b *BoundedReader[T]) NumRecordsRead() int64 {
	return b.recordsRead
}

func (b *BoundedReader[T]) Close() error {
	return b.reader.Close()
}
