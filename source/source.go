package source

import (
	"github.com/streamforge/microbatch/element"
)

// CheckpointMark is an opaque resumption token owned by the unbounded
// source. Finalize tells the source that everything up to the mark has been
// durably consumed and may be acknowledged or released.
//
// A mark handed to one reader must not be concurrently in use by another:
// at most one live reader per partition per tick. Marks that should survive
// process restarts must be gob encodable, sources register their concrete
// mark types with encoding/gob.
type CheckpointMark interface {
	Finalize() error
}

// Source is an unbounded data source, or one partition of it after an
// initial split.
type Source[T any] interface {
	Name() string
	//GenerateInitialSplits partitions the source into at most desiredSplits
	//stable partitions. Splits must not change between consecutive
	//executions.
	GenerateInitialSplits(desiredSplits int) ([]Source[T], error)
	//CreateReader opens a reader positioned at the given mark, a nil mark
	//means the source's default initial position.
	CreateReader(mark CheckpointMark) (Reader[T], error)
}

// Reader reads one partition of an unbounded source.
//
// Start and Advance return false with a nil error when no record is
// currently available, which is a transient condition, and a non-nil error
// on source I/O failure.
type Reader[T any] interface {
	Start() (bool, error)
	Advance() (bool, error)
	Current() (T, error)
	CurrentTimestamp() (element.Timestamp, error)
	CheckpointMark() CheckpointMark
	Close() error
}

// Split is one partition of an unbounded source together with the record
// quota assigned to it for a single tick.
type Split[T any] struct {
	ID         int
	Source     Source[T]
	MaxRecords int64
}
