package runner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/config"
	"github.com/streamforge/microbatch/driver"
	"github.com/streamforge/microbatch/element"
	"github.com/streamforge/microbatch/runner"
	"github.com/streamforge/microbatch/source/mock"
	"github.com/streamforge/microbatch/store"
	"github.com/streamforge/microbatch/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
)

type collector struct {
	mu     sync.Mutex
	events []element.Event[mock.Record]
	err    error
}

func (c *collector) emit(_ int64, events []element.Event[mock.Record]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, events...)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func threePartitionSource() *mock.Source {
	src := mock.NewSource("events", 3)
	src.Partition(0).Append(
		mock.Record{Value: "p0-1", Timestamp: 70},
		mock.Record{Value: "p0-2", Timestamp: 80},
		mock.Record{Value: "p0-3", Timestamp: 99},
		mock.Record{Value: "p0-4", Timestamp: 100},
	)
	src.Partition(1).Append(
		mock.Record{Value: "p1-1", Timestamp: 60},
		mock.Record{Value: "p1-2", Timestamp: 85},
		mock.Record{Value: "p1-3", Timestamp: 90},
	)
	src.Partition(2).Append(
		mock.Record{Value: "p2-1", Timestamp: 75},
		mock.Record{Value: "p2-2", Timestamp: 88},
		mock.Record{Value: "p2-3", Timestamp: 95},
	)
	return src
}

func testConfig() config.Config {
	return config.Config{}.
		WithMaxRecordsPerBatch(10).
		WithMaxReadDurationPerBatch(50 * time.Millisecond).
		WithDesiredSplits(3)
}

func newTestRunner(t *testing.T, src *mock.Source, cfg config.Config, sink *collector) (*runner.Runner[mock.Record], store.Manager) {
	manager, err := store.NewManager("job", store.NewMemoryBackend())
	require.NoError(t, err)
	r, err := runner.NewRunner[mock.Record](src, cfg, manager, tally.NoopScope, sink.emit)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	return r, manager
}

func TestRunTickPublishesMinimumWatermark(t *testing.T) {
	sink := &collector{}
	r, _ := newTestRunner(t, threePartitionSource(), testConfig(), sink)
	require.Equal(t, 3, r.NumSplits())

	bt, err := r.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, element.MinTimestamp, bt.Low)
	assert.Equal(t, element.Timestamp(90), bt.High)
	assert.Equal(t, 10, sink.len())
	assert.Equal(t, element.Timestamp(90), r.Holder().Get())
}

func TestZeroRecordPartitionNeverRegressesWatermark(t *testing.T) {
	sink := &collector{}
	src := threePartitionSource()
	r, _ := newTestRunner(t, src, testConfig(), sink)

	_, err := r.RunTick(context.Background())
	require.NoError(t, err)

	//partition 1 reads nothing on the next tick, the others move ahead
	src.Partition(0).Append(mock.Record{Value: "p0-5", Timestamp: 120})
	src.Partition(2).Append(mock.Record{Value: "p2-4", Timestamp: 110})
	bt, err := r.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, element.Timestamp(90), bt.Low)
	assert.Equal(t, element.Timestamp(90), bt.High)
}

func TestTimersFireAgainstPreviousCommittedTick(t *testing.T) {
	sink := &collector{}
	r, _ := newTestRunner(t, threePartitionSource(), testConfig(), sink)

	bt, err := r.RunTick(context.Background())
	require.NoError(t, err)

	engine := timer.NewEngine(bt)
	engine.SetTimer(timer.TimerData{Key: "k", Timestamp: 85})
	engine.SetTimer(timer.TimerData{Key: "k", Namespace: "late", Timestamp: 90})
	//before the advance the engine still observes the low watermark
	assert.Empty(t, engine.TimersReadyToProcess())
	engine.AdvanceWatermark()
	fired := engine.TimersReadyToProcess()
	require.Len(t, fired, 1)
	assert.Equal(t, element.Timestamp(85), fired[0].Timestamp)
}

func TestFailedTickAdvancesNothing(t *testing.T) {
	sink := &collector{}
	src := threePartitionSource()
	r, manager := newTestRunner(t, src, testConfig(), sink)

	src.Partition(1).FailNextAdvance(errors.New("source unreachable"))
	_, err := r.RunTick(context.Background())
	require.Error(t, err)
	assert.Equal(t, element.MinTimestamp, r.Holder().Get())
	assert.Equal(t, 0, sink.len())

	states := driver.NewStateStore(manager.Controller("source.events"))
	state, err := states.Get(1)
	require.NoError(t, err)
	assert.Nil(t, state.Mark)

	//the engine's retry of the whole tick succeeds from the same marks
	bt, err := r.RunTick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, element.Timestamp(90), bt.High)
	assert.Equal(t, 10, sink.len())
}

func TestEmitFailureLeavesMarksUncommitted(t *testing.T) {
	sink := &collector{err: errors.New("downstream unavailable")}
	src := threePartitionSource()
	r, manager := newTestRunner(t, src, testConfig(), sink)

	_, err := r.RunTick(context.Background())
	require.Error(t, err)
	assert.Equal(t, element.MinTimestamp, r.Holder().Get())

	states := driver.NewStateStore(manager.Controller("source.events"))
	state, err := states.Get(0)
	require.NoError(t, err)
	assert.Nil(t, state.Mark)
}

func TestPeriodicCheckpointPersistsPartitionStates(t *testing.T) {
	sink := &collector{}
	backend := store.NewMemoryBackend()
	manager, err := store.NewManager("job", backend)
	require.NoError(t, err)
	cfg := testConfig().WithCheckpointInterval(time.Nanosecond)
	r, err := runner.NewRunner[mock.Record](threePartitionSource(), cfg, manager, tally.NoopScope, sink.emit)
	require.NoError(t, err)
	require.NoError(t, r.Start())

	_, err = r.RunTick(context.Background())
	require.NoError(t, err)

	//a manager restored from the backend sees the committed marks
	restored, err := store.NewManager("job", backend)
	require.NoError(t, err)
	states := driver.NewStateStore(restored.Controller("source.events"))
	state, err := states.Get(0)
	require.NoError(t, err)
	require.NotNil(t, state.Mark)
	assert.Equal(t, 4, state.Mark.(*mock.Mark).Position)
}

func TestRunnerLifecycle(t *testing.T) {
	sink := &collector{}
	manager, err := store.NewManager("job", store.NewMemoryBackend())
	require.NoError(t, err)
	r, err := runner.NewRunner[mock.Record](threePartitionSource(), testConfig(), manager, tally.NoopScope, sink.emit)
	require.NoError(t, err)

	_, err = r.RunTick(context.Background())
	assert.Error(t, err)

	require.NoError(t, r.Start())
	assert.Error(t, r.Start())
	require.NoError(t, r.Close())
	_, err = r.RunTick(context.Background())
	assert.Error(t, err)
}
