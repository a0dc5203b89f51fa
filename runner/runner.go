package runner

import (
	_c "context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/common/executor"
	"github.com/streamforge/microbatch/common/safe"
	"github.com/streamforge/microbatch/common/status"
	"github.com/streamforge/microbatch/config"
	"github.com/streamforge/microbatch/driver"
	"github.com/streamforge/microbatch/element"
	"github.com/streamforge/microbatch/log"
	"github.com/streamforge/microbatch/progress"
	"github.com/streamforge/microbatch/source"
	"github.com/streamforge/microbatch/store"
	"github.com/streamforge/microbatch/watermark"
	"github.com/uber-go/tally/v4"
)

// Emit is the engine's output-commit hook: it must durably accept the
// tick's records before the runner advances any partition state.
type Emit[T any] func(tickId int64, events []element.Event[T]) error

// Runner drives one unbounded source through the micro-batch cycle: one
// driver task per partition per tick, a barrier on all partitions'
// metadata, output commit, then watermark aggregation and publication.
//
// The published watermark always belongs to a committed tick, so timers of
// the next tick never observe a value whose records could still be
// replayed.
type Runner[T any] struct {
	logger   log.Logger
	cfg      config.Config
	node     *snowflake.Node
	splits   []source.Split[T]
	driver   *driver.Driver[T]
	holder   *watermark.Holder
	agg      *watermark.Aggregator
	reporter *progress.Reporter
	manager  store.Manager
	emit     Emit[T]

	status      status.Status
	lastPersist time.Time
}

func NewRunner[T any](src source.Source[T], cfg config.Config, manager store.Manager, scope tally.Scope, emit Emit[T]) (*Runner[T], error) {
	cfg = cfg.Normalize()
	logger := log.Named("runner").Named(src.Name())
	splits, err := source.GenerateSplits(src, cfg.DesiredSplits, cfg.MaxRecordsPerBatch)
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(0)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create tick id node")
	}
	holder := watermark.NewHolder()
	states := driver.NewStateStore(manager.Controller("source." + src.Name()))
	return &Runner[T]{
		logger:   logger,
		cfg:      cfg,
		node:     node,
		splits:   splits,
		driver:   driver.NewDriver[T](logger, states, src.Name()),
		holder:   holder,
		agg:      watermark.NewAggregator(holder, len(splits)),
		reporter: progress.NewReporter(scope, logger, src.Name()),
		manager:  manager,
		emit:     emit,
		status:   status.Ready,
	}, nil
}

func (r *Runner[T]) Start() error {
	if !status.Transition(&r.status, status.Ready, status.Running) {
		return errors.New("runner is not ready")
	}
	r.lastPersist = time.Now()
	r.logger.Infof("runner started with %d splits", len(r.splits))
	return nil
}

// Holder exposes the broadcast watermark cell read by downstream ticks.
func (r *Runner[T]) Holder() *watermark.Holder {
	return r.holder
}

func (r *Runner[T]) NumSplits() int {
	return len(r.splits)
}

// RunTick executes one micro-batch across all partitions and returns the
// watermark interval the next tick's timers should observe. A failed or
// canceled tick returns an error and advances nothing.
func (r *Runner[T]) RunTick(ctx _c.Context) (watermark.BatchTime, error) {
	if !r.status.Running() {
		return watermark.BatchTime{}, errors.New("runner is not running")
	}
	started := time.Now()
	low := r.holder.Get()
	tickId := r.node.Generate().Int64()

	var (
		wg      sync.WaitGroup
		results = make([]*driver.Result[T], len(r.splits))
		errChan = make(chan error, len(r.splits))
	)
	for i, split := range r.splits {
		wg.Add(1)
		go func(i int, split source.Split[T]) {
			defer wg.Done()
			if err := safe.Run(func() error {
				result, err := r.driver.RunTick(ctx, split, r.cfg.MaxReadDurationPerBatch, low)
				if err != nil {
					return err
				}
				results[i] = result
				return nil
			}); err != nil {
				errChan <- errors.WithMessagef(err, "tick failed on partition %d", split.ID)
			}
		}(i, split)
	}
	//barrier: all partitions' metadata must be collected before reducing
	wg.Wait()
	select {
	case failed := <-errChan:
		return watermark.BatchTime{Low: low, High: low}, failed
	default:
	}

	var events []element.Event[T]
	metadata := make([]watermark.Metadata, 0, len(results))
	for _, result := range results {
		events = append(events, result.Events...)
		metadata = append(metadata, result.Metadata)
	}

	//commit point: output first, then partition state, never after cancel
	var commitErr error
	commit := executor.NewExecutor(func() {
		if err := r.emit(tickId, events); err != nil {
			commitErr = errors.WithMessage(err, "failed to commit tick output")
			return
		}
		for _, result := range results {
			if err := result.Commit(); err != nil {
				commitErr = errors.WithMessagef(err, "failed to advance state of partition %d", result.Metadata.Partition)
				return
			}
		}
	})
	select {
	case <-ctx.Done():
		commit.Cancel()
		return watermark.BatchTime{Low: low, High: low}, errors.WithMessage(ctx.Err(), "tick abandoned before commit")
	default:
		commit.Exec()
	}
	if commitErr != nil {
		return watermark.BatchTime{Low: low, High: low}, commitErr
	}

	//the watermark of a committed tick may now become visible
	summary := r.agg.Reduce(metadata)
	r.reporter.Report(tickId, summary.NumRecords, summary.Watermark, time.Since(started))

	if r.cfg.CheckpointInterval > 0 && time.Since(r.lastPersist) >= r.cfg.CheckpointInterval {
		if err := r.manager.Save(tickId); err != nil {
			return watermark.BatchTime{Low: low, High: r.holder.Get()}, err
		}
		if err := r.manager.Persist(tickId); err != nil {
			return watermark.BatchTime{Low: low, High: r.holder.Get()}, err
		}
		r.lastPersist = time.Now()
	}
	return watermark.BatchTime{Low: low, High: r.holder.Get()}, nil
}

func (r *Runner[T]) Close() error {
	if !status.Transition(&r.status, status.Running, status.Closed) {
		return errors.New("runner is not running")
	}
	r.logger.Infof("runner closed")
	return nil
}
