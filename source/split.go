package source

import (
	"github.com/pkg/errors"
)

// SplitNumRecords divides total into numSplits parts that sum exactly to
// total, each part either floor(total/numSplits) or one more, the +1 parts
// assigned to the first total%numSplits splits. A total smaller than
// numSplits legitimately leaves trailing splits with a quota of zero. A
// non-positive total yields -1 for every split, the unbounded-by-count
// sentinel, kept distinct from a real zero quota.
func SplitNumRecords(total int64, numSplits int) []int64 {
	quotas := make([]int64, numSplits)
	if total <= 0 {
		for i := range quotas {
			quotas[i] = -1
		}
		return quotas
	}
	for i := range quotas {
		quotas[i] = total / int64(numSplits)
	}
	for i := int64(0); i < total%int64(numSplits); i++ {
		quotas[i]++
	}
	return quotas
}

// GenerateSplits asks the source for its initial partitions and assigns each
// a per-tick record quota by evenly dividing the tick-wide total.
func GenerateSplits[T any](src Source[T], desiredSplits int, maxRecordsPerBatch int64) ([]Split[T], error) {
	partitions, err := src.GenerateInitialSplits(desiredSplits)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to generate initial splits for source %s", src.Name())
	}
	if len(partitions) == 0 {
		return nil, errors.Errorf("source %s generated no splits", src.Name())
	}
	quotas := SplitNumRecords(maxRecordsPerBatch, len(partitions))
	splits := make([]Split[T], len(partitions))
	for i, partition := range partitions {
		splits[i] = Split[T]{ID: i, Source: partition, MaxRecords: quotas[i]}
	}
	return splits, nil
}
