package element

import (
	"math"
	"time"
)

// Timestamp is an event time in milliseconds since the unix epoch.
type Timestamp int64

const (
	MinTimestamp Timestamp = math.MinInt64
	MaxTimestamp Timestamp = math.MaxInt64
)

func (t Timestamp) Before(other Timestamp) bool {
	return t < other
}

func (t Timestamp) After(other Timestamp) bool {
	return t > other
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// MaxTimestampOf returns the later of the two timestamps.
func MaxTimestampOf(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}

type Meta struct {
	Partition int    `json:"partition"`
	Upstream  string `json:"upstream"`
}

// Event is one decoded record read from a source partition together
// with its event time.
type Event[T any] struct {
	Meta
	Value     T
	Timestamp Timestamp
}

func (e Event[T]) GetMeta() Meta {
	return e.Meta
}
