package progress

import (
	"time"

	"github.com/streamforge/microbatch/element"
	"github.com/streamforge/microbatch/log"
	"github.com/uber-go/tally/v4"
)

// Reporter forwards per-tick aggregate counts and the published watermark
// to the engine's rate-control and observability sink. It has no bearing on
// correctness.
type Reporter struct {
	logger     log.Logger
	sourceName string

	recordsRead  tally.Counter
	watermark    tally.Gauge
	tickDuration tally.Timer
}

func NewReporter(scope tally.Scope, logger log.Logger, sourceName string) *Reporter {
	tagged := scope.Tagged(map[string]string{"source": sourceName})
	return &Reporter{
		logger:       logger,
		sourceName:   sourceName,
		recordsRead:  tagged.Counter("records_read"),
		watermark:    tagged.Gauge("watermark"),
		tickDuration: tagged.Timer("tick_duration"),
	}
}

// Report surfaces one tick's totals: record count, published watermark and
// how long the tick took, plus a human-readable description.
func (r *Reporter) Report(tickId int64, numRecords int64, watermark element.Timestamp, took time.Duration) {
	r.recordsRead.Inc(numRecords)
	r.watermark.Update(float64(watermark))
	r.tickDuration.Record(took)
	r.logger.Infof("read %d records with observed watermark %d, from %s for tick: %d",
		numRecords, watermark, r.sourceName, tickId)
}
