package config

import "time"

const (
	DefaultMaxReadDuration = 200 * time.Millisecond
	DefaultDesiredSplits   = 1
)

// Config carries the recognized read options of a micro-batched unbounded
// read. Zero values fall back to defaults at Normalize time.
type Config struct {
	//MaxRecordsPerBatch bounds one tick by record count, <=0 means
	//unbounded-by-count
	MaxRecordsPerBatch int64
	//MaxReadDurationPerBatch bounds one tick by wall-clock duration
	MaxReadDurationPerBatch time.Duration
	//CheckpointInterval is how often the whole pipeline state is durably
	//persisted, 0 disables periodic persistence
	CheckpointInterval time.Duration
	//DesiredSplits is the requested partition count for the initial split
	DesiredSplits int
}

func (c Config) WithMaxRecordsPerBatch(maxRecords int64) Config {
	c.MaxRecordsPerBatch = maxRecords
	return c
}

func (c Config) WithMaxReadDurationPerBatch(duration time.Duration) Config {
	c.MaxReadDurationPerBatch = duration
	return c
}

func (c Config) WithCheckpointInterval(interval time.Duration) Config {
	c.CheckpointInterval = interval
	return c
}

func (c Config) WithDesiredSplits(splits int) Config {
	c.DesiredSplits = splits
	return c
}

func (c Config) Normalize() Config {
	if c.MaxReadDurationPerBatch <= 0 {
		c.MaxReadDurationPerBatch = DefaultMaxReadDuration
	}
	if c.DesiredSplits <= 0 {
		c.DesiredSplits = DefaultDesiredSplits
	}
	return c
}

func Default() Config {
	return Config{}.Normalize()
}
