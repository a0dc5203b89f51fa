package mock

import (
	"encoding/gob"
	"sync"

	"github.com/pkg/errors"
	"github.com/streamforge/microbatch/element"
	"github.com/streamforge/microbatch/source"
)

// Record is what the mock source emits.
type Record struct {
	Value     string
	Timestamp element.Timestamp
}

// Mark is the mock source's checkpoint mark: the index of the next record to
// read. The partition pointer is rebound on CreateReader and is nil for a
// mark restored from durable state, finalizing such a mark is a no-op.
type Mark struct {
	Position  int
	partition *Partition
}

func (m *Mark) Finalize() error {
	if m.partition == nil {
		return nil
	}
	return m.partition.finalize(m.Position)
}

func init() {
	gob.Register(&Mark{})
}

// Source is an in-memory unbounded source with a fixed set of partitions,
// records can be appended while reading to emulate an unbounded stream.
type Source struct {
	name       string
	partitions []*Partition
}

func NewSource(name string, numPartitions int) *Source {
	s := &Source{name: name}
	for i := 0; i < numPartitions; i++ {
		s.partitions = append(s.partitions, &Partition{name: name, index: i})
	}
	return s
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Partition(i int) *Partition {
	return s.partitions[i]
}

func (s *Source) GenerateInitialSplits(desiredSplits int) ([]source.Source[Record], error) {
	//partition layout is fixed at construction time, desiredSplits is only
	//an upper bound hint
	splits := make([]source.Source[Record], 0, len(s.partitions))
	for _, partition := range s.partitions {
		splits = append(splits, partition)
	}
	return splits, nil
}

func (s *Source) CreateReader(mark source.CheckpointMark) (source.Reader[Record], error) {
	return s.partitions[0].CreateReader(mark)
}

// Partition is one partition of the mock source.
type Partition struct {
	name  string
	index int

	mu          sync.Mutex
	records     []Record
	finalized   int
	advanceErr  error
	finalizeErr error
}

func (p *Partition) Name() string {
	return p.name
}

// Append makes records available to readers.
func (p *Partition) Append(records ...Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, records...)
}

// FailNextAdvance makes the next Advance call surface err.
func (p *Partition) FailNextAdvance(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advanceErr = err
}

// FailFinalize makes mark finalization surface err.
func (p *Partition) FailFinalize(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalizeErr = err
}

// FinalizedPosition reports up to where readers acknowledged consumption.
func (p *Partition) FinalizedPosition() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finalized
}

func (p *Partition) GenerateInitialSplits(int) ([]source.Source[Record], error) {
	return []source.Source[Record]{p}, nil
}

func (p *Partition) CreateReader(mark source.CheckpointMark) (source.Reader[Record], error) {
	position := 0
	if mark != nil {
		m, ok := mark.(*Mark)
		if !ok {
			return nil, errors.Errorf("unexpected checkpoint mark type %T for partition %s", mark, p.name)
		}
		position = m.Position
	}
	return &reader{partition: p, position: position}, nil
}

func (p *Partition) finalize(position int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalizeErr != nil {
		return p.finalizeErr
	}
	if position > p.finalized {
		p.finalized = position
	}
	return nil
}

func (p *Partition) read(position int) (Record, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.advanceErr != nil {
		err := p.advanceErr
		p.advanceErr = nil
		return Record{}, false, err
	}
	if position >= len(p.records) {
		return Record{}, false, nil
	}
	return p.records[position], true, nil
}

type reader struct {
	partition *Partition
	position  int
	current   *Record
}

func (r *reader) Start() (bool, error) {
	return r.Advance()
}

func (r *reader) Advance() (bool, error) {
	record, ok, err := r.partition.read(r.position)
	if err != nil || !ok {
		r.current = nil
		return false, err
	}
	r.position++
	r.current = &record
	return true, nil
}

func (r *reader) Current() (Record, error) {
	if r.current == nil {
		return Record{}, errors.New("no current record")
	}
	return *r.current, nil
}

func (r *reader) CurrentTimestamp() (element.Timestamp, error) {
	if r.current == nil {
		return element.MinTimestamp, errors.New("no current record")
	}
	return r.current.Timestamp, nil
}

func (r *reader) CheckpointMark() source.CheckpointMark {
	return &Mark{Position: r.position, partition: r.partition}
}

func (r *reader) Close() error {
	return nil
}
