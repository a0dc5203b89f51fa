package store

import (
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/log"
	"github.com/xujiajun/nutsdb"
)

const (
	DefaultCheckpointsNumRetained = 3
	DefaultCheckpointsNumMerged   = 10
)

func formatCheckpointId(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseCheckpointId(idStr string) int64 {
	id, _ := strconv.ParseInt(idStr, 10, 64)
	return id
}

// memory keeps staged and persisted checkpoints in maps, it survives nothing
// but is enough for tests and for pipelines that opted out of durable
// checkpointing.
type memory struct {
	mu        sync.Mutex
	staged    map[int64]map[string][]byte
	persisted []int64
}

func (m *memory) Save(id int64, name string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staged[id] == nil {
		m.staged[id] = map[string][]byte{}
	}
	m.staged[id][name] = state
	return nil
}

func (m *memory) Persist(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.staged[id]; !ok {
		return errors.Errorf("checkpoint %d not found", id)
	}
	m.persisted = append(m.persisted, id)
	return nil
}

func (m *memory) Get(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.persisted) == 0 {
		return nil, nil
	}
	last := m.persisted[len(m.persisted)-1]
	return m.staged[last][name], nil
}

func (m *memory) Close() error { return nil }

func NewMemoryBackend() Backend {
	return &memory{staged: map[int64]map[string][]byte{}}
}

// fs persists checkpoints into a nutsdb file database, one bucket per
// checkpoint id, keeping the most recent checkpointsNumRetained buckets.
type fs struct {
	logger log.Logger
	db     *nutsdb.DB
	//storage stages checkpoint state before it is persisted
	storage *sync.Map
	//checkpoints are the currently persisted checkpoint ids, sorted
	checkpoints            []int64
	checkpointsTotalNum    int
	checkpointsNumMerged   int
	checkpointsNumRetained int
}

func (r *fs) init() error {
	return r.db.View(func(tx *nutsdb.Tx) error {
		if err := tx.IterateBuckets(nutsdb.DataStructureBPTree, "*", func(key string) bool {
			r.checkpoints = append(r.checkpoints, parseCheckpointId(key))
			return true
		}); err != nil {
			return errors.WithMessage(err, "unable to iterate checkpoints, the state maybe corrupted")
		}
		sort.Slice(r.checkpoints, func(i, j int) bool {
			return r.checkpoints[i] < r.checkpoints[j]
		})
		for _, checkpointId := range r.checkpoints {
			entries, err := tx.GetAll(formatCheckpointId(checkpointId))
			if err != nil {
				return errors.WithMessagef(err, "failed to get %d checkpoint state", checkpointId)
			}
			if len(entries) > 0 {
				checkpointState := &sync.Map{}
				for _, entry := range entries {
					checkpointState.Store(string(entry.Key), entry.Value)
				}
				r.storage.Store(checkpointId, checkpointState)
			}
		}
		return nil
	})
}

// Save stages state under the checkpoint id, creating it when absent.
func (r *fs) Save(checkpointId int64, name string, state []byte) error {
	var checkpointState *sync.Map
	if tmp, ok := r.storage.Load(checkpointId); !ok {
		checkpointState = &sync.Map{}
		r.storage.Store(checkpointId, checkpointState)
	} else {
		checkpointState = tmp.(*sync.Map)
	}
	checkpointState.Store(name, state)
	return nil
}

// Persist writes a staged checkpoint into the db file and prunes expired
// checkpoints past the retention count.
func (r *fs) Persist(checkpointId int64) error {
	m, ok := r.storage.Load(checkpointId)
	if !ok {
		return errors.Errorf("checkpoint %d not found", checkpointId)
	}
	r.checkpoints = append(r.checkpoints, checkpointId)

	if err := r.db.Update(func(tx *nutsdb.Tx) error {
		var err error
		m.(*sync.Map).Range(func(name, state any) bool {
			if err = tx.Put(
				formatCheckpointId(checkpointId), []byte(name.(string)), state.([]byte), 0); err != nil {
				return false
			}
			return true
		})
		return err
	}); err != nil {
		return errors.WithMessagef(err, "failed to persist %d checkpoint state", checkpointId)
	}
	r.checkpointsTotalNum += 1

	if r.checkpointsTotalNum%r.checkpointsNumRetained == 0 {
		if err := r.db.Update(func(tx *nutsdb.Tx) error {
			var deletedCheckpointIds []int64
			if len(r.checkpoints) > r.checkpointsNumRetained {
				deletedCheckpointIds = r.checkpoints[:len(r.checkpoints)-r.checkpointsNumRetained]
				r.checkpoints = r.checkpoints[len(r.checkpoints)-r.checkpointsNumRetained:]
			}
			for _, deletedCheckpointId := range deletedCheckpointIds {
				if err := tx.DeleteBucket(nutsdb.DataStructureBPTree, formatCheckpointId(deletedCheckpointId)); err != nil {
					return err
				}
			}
			for _, deletedCheckpointId := range deletedCheckpointIds {
				r.storage.Delete(deletedCheckpointId)
			}
			return nil
		}); err != nil {
			r.logger.Warnw("failed to clear up expired checkpoint data.", "error", err)
		}
	}
	if r.checkpointsTotalNum%r.checkpointsNumMerged == 0 {
		if err := r.db.Merge(); err != nil {
			r.logger.Warnw("failed to merge fs state.", "error", err)
		}
	}
	return nil
}

func (r *fs) Get(name string) ([]byte, error) {
	if len(r.checkpoints) == 0 {
		return nil, nil
	}
	last := r.checkpoints[len(r.checkpoints)-1]
	v, ok := r.storage.Load(last)
	if !ok {
		return nil, errors.Errorf("state backend for checkpoint %d not found", last)
	}
	checkpointM, ok := v.(*sync.Map)
	if !ok {
		return nil, errors.Errorf("invalid state stored for checkpoint %d", last)
	}
	stateI, ok := checkpointM.Load(name)
	if !ok {
		return nil, nil
	}
	state, ok := stateI.([]byte)
	if !ok {
		return nil, errors.Errorf("invalid state %v stored for %s: state type is not []byte", stateI, name)
	}
	return state, nil
}

func (r *fs) Close() error {
	return r.db.Close()
}

func NewFSBackend(logger log.Logger, checkpointsDir string, checkpointsNumRetained int, checkpointsNumMerged int) (Backend, error) {
	//both counters divide the persist counter, zero would blow up there
	if checkpointsNumRetained <= 0 {
		checkpointsNumRetained = DefaultCheckpointsNumRetained
	}
	if checkpointsNumMerged <= 0 {
		checkpointsNumMerged = DefaultCheckpointsNumMerged
	}
	opts := nutsdb.DefaultOptions
	opts.SegmentSize = 1 * nutsdb.GB
	opts.Dir = checkpointsDir
	db, err := nutsdb.Open(opts)
	if err != nil {
		return nil, err
	}
	backend := &fs{
		logger:                 logger,
		db:                     db,
		storage:                &sync.Map{},
		checkpoints:            []int64{},
		checkpointsNumRetained: checkpointsNumRetained,
		checkpointsNumMerged:   checkpointsNumMerged,
	}
	return backend, backend.init()
}
