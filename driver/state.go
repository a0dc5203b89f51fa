package driver

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/source"
	"github.com/streamforge/microbatch/store"
)

// PartitionState is the durable per-partition read position: the checkpoint
// mark returned by the last committed tick's reader plus read statistics.
// It is replaced, never mutated, exactly once per committed tick. A nil
// Mark means the source starts from its default initial position.
type PartitionState struct {
	PartitionID int
	Mark        source.CheckpointMark
	//TotalRecordsRead accumulates across committed ticks
	TotalRecordsRead int64
}

// StateStore is an explicit state store keyed by partition id. Passing it
// by handle into the per-tick function, instead of capturing state in
// closures, keeps the one-mutation-per-tick invariant checkable.
//
// Each partition's entry is exclusively owned by that partition's task
// chain, the engine never runs tasks of the same partition concurrently.
type StateStore struct {
	controller store.Controller
}

func NewStateStore(controller store.Controller) *StateStore {
	return &StateStore{controller: controller}
}

func partitionKey(partition int) string {
	return "partition-" + strconv.Itoa(partition)
}

func (s *StateStore) register(partition int) (store.StateController[PartitionState], error) {
	stateRefer, err := store.GobRegisterOrGet[PartitionState](s.controller, partitionKey(partition), func() PartitionState {
		return PartitionState{PartitionID: partition}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to register state of partition %d", partition)
	}
	return stateRefer, nil
}

// Get returns a copy of the partition's current state.
func (s *StateStore) Get(partition int) (PartitionState, error) {
	stateRefer, err := s.register(partition)
	if err != nil {
		return PartitionState{}, err
	}
	stateRefer.Locker().RLock()
	defer stateRefer.Locker().RUnlock()
	return *stateRefer.Pointer(), nil
}

// put replaces the partition's state, the commit point of a tick.
func (s *StateStore) put(partition int, state PartitionState) error {
	stateRefer, err := s.register(partition)
	if err != nil {
		return err
	}
	stateRefer.Locker().Lock()
	defer stateRefer.Locker().Unlock()
	*stateRefer.Pointer() = state
	return nil
}
