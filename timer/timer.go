package timer

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/element"
	"github.com/streamforge/microbatch/watermark"
)

// Domain tells which time domain a timer fires in.
type Domain int

const (
	EventTimeDomain Domain = iota
	ProcessingTimeDomain
	SynchronizedProcessingTimeDomain
)

// TimerData is one scheduled callback: a logical key, a namespace within
// the key, a target timestamp and a time domain. The identity of a timer is
// its key, namespace and domain, the timestamp is its current target time.
type TimerData struct {
	Key       string
	Namespace string
	Timestamp element.Timestamp
	Domain    Domain
}

type timerIdentity struct {
	key       string
	namespace string
	domain    Domain
}

func (t TimerData) identity() timerIdentity {
	return timerIdentity{key: t.Key, namespace: t.Namespace, domain: t.Domain}
}

var (
	//ErrSetByID and ErrDeleteByID mark a capability gap: addressing timers
	//by a logical id alone is not supported and is a programming error,
	//never a silent no-op.
	ErrSetByID    = errors.New("setting a timer by id is not supported")
	ErrDeleteByID = errors.New("deleting a timer by id is not supported")
)

// Engine is the per-key timer state machine driven by the published global
// watermark. A pending timer either fires, once the input watermark passes
// its target time, or is deleted, both terminal.
//
// The engine is owned by a single partition task and is not safe for
// concurrent use, matching the engine's one-task-per-partition scheduling.
type Engine struct {
	lowWatermark   element.Timestamp
	highWatermark  element.Timestamp
	inputWatermark element.Timestamp
	queue          *timerQueue
}

// NewEngine builds an engine over the watermark interval of the previous
// committed tick: the input watermark starts at Low and moves to High only
// on AdvanceWatermark.
func NewEngine(batchTime watermark.BatchTime) *Engine {
	return &Engine{
		lowWatermark:   batchTime.Low,
		highWatermark:  batchTime.High,
		inputWatermark: batchTime.Low,
		queue:          newTimerQueue(),
	}
}

// SetTimer adds the timer to the pending set, re-setting an existing timer
// replaces its target time.
func (e *Engine) SetTimer(timer TimerData) {
	e.queue.PushTimer(timer)
}

// SetTimerByID is not supported, see ErrSetByID.
func (e *Engine) SetTimerByID(namespace, id string, target element.Timestamp, domain Domain) error {
	return errors.WithStack(ErrSetByID)
}

// DeleteTimer removes the exact pending timer record without firing it.
func (e *Engine) DeleteTimer(timer TimerData) {
	e.queue.Remove(timer)
}

// DeleteTimerByID is not supported, see ErrDeleteByID.
func (e *Engine) DeleteTimerByID(namespace, id string) error {
	return errors.WithStack(ErrDeleteByID)
}

// AddTimers restores a batch of pending timers, typically from durable
// state.
func (e *Engine) AddTimers(timers []TimerData) {
	for _, timer := range timers {
		e.queue.PushTimer(timer)
	}
}

// Timers snapshots the pending set in deterministic order, typically for
// durable state.
func (e *Engine) Timers() []TimerData {
	snapshot := make([]TimerData, len(e.queue.items))
	copy(snapshot, e.queue.items)
	sort.Slice(snapshot, func(i, j int) bool {
		return less(snapshot[i], snapshot[j])
	})
	return snapshot
}

func (e *Engine) CurrentProcessingTime() element.Timestamp {
	return element.TimestampOf(time.Now())
}

func (e *Engine) CurrentInputWatermark() element.Timestamp {
	return e.inputWatermark
}

// CurrentHighWatermark is the tick's published global end-of-read watermark.
func (e *Engine) CurrentHighWatermark() element.Timestamp {
	return e.highWatermark
}

// AdvanceWatermark moves the input watermark to the published high
// watermark. It must be called before TimersReadyToProcess, calling the
// latter first under-fires timers for this tick, which is late but never
// wrong.
func (e *Engine) AdvanceWatermark() {
	e.inputWatermark = e.highWatermark
}

// TimersReadyToProcess removes and returns every pending timer whose target
// time is strictly before the current input watermark, in deterministic
// per-set order. Callers must not depend on firing order across distinct
// keys.
func (e *Engine) TimersReadyToProcess() []TimerData {
	var fired []TimerData
	for e.queue.Len() > 0 && e.queue.PeekTimer().Timestamp < e.inputWatermark {
		fired = append(fired, e.queue.PopTimer())
	}
	return fired
}
