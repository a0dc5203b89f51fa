package watermark

import (
	"testing"

	"github.com/streamforge/microbatch/element"
	"github.com/stretchr/testify/assert"
)

func TestAggregatorMinimumOverPartitions(t *testing.T) {
	holder := NewHolder()
	aggregator := NewAggregator(holder, 3)
	summary := aggregator.Reduce([]Metadata{
		{Partition: 0, NumRecords: 4, Watermark: 100},
		{Partition: 1, NumRecords: 3, Watermark: 90},
		{Partition: 2, NumRecords: 3, Watermark: 95},
	})
	assert.Equal(t, int64(10), summary.NumRecords)
	assert.Equal(t, element.Timestamp(90), summary.Candidate)
	assert.True(t, summary.Advanced)
	assert.Equal(t, element.Timestamp(90), holder.Get())
}

func TestAggregatorZeroRecordPartitionDoesNotRegress(t *testing.T) {
	holder := NewHolder()
	aggregator := NewAggregator(holder, 3)
	aggregator.Reduce([]Metadata{
		{Partition: 0, NumRecords: 4, Watermark: 100},
		{Partition: 1, NumRecords: 3, Watermark: 90},
		{Partition: 2, NumRecords: 3, Watermark: 95},
	})
	//next tick: partition 1 reads nothing, its last observation keeps
	//counting and the global value never regresses
	summary := aggregator.Reduce([]Metadata{
		{Partition: 0, NumRecords: 2, Watermark: 120},
		{Partition: 1, NumRecords: 0, Watermark: 90},
		{Partition: 2, NumRecords: 1, Watermark: 110},
	})
	assert.Equal(t, element.Timestamp(90), summary.Candidate)
	assert.False(t, summary.Advanced)
	assert.Equal(t, element.Timestamp(90), holder.Get())
}

func TestAggregatorUnreportedPartitionPinsMinimum(t *testing.T) {
	holder := NewHolder()
	aggregator := NewAggregator(holder, 2)
	summary := aggregator.Reduce([]Metadata{
		{Partition: 0, NumRecords: 5, Watermark: 50},
		{Partition: 1, NumRecords: 0, Watermark: element.MinTimestamp},
	})
	assert.Equal(t, element.MinTimestamp, summary.Candidate)
	assert.False(t, summary.Advanced)
	assert.Equal(t, element.MinTimestamp, holder.Get())

	//first real observation releases the pin
	summary = aggregator.Reduce([]Metadata{
		{Partition: 0, NumRecords: 0, Watermark: 50},
		{Partition: 1, NumRecords: 1, Watermark: 40},
	})
	assert.Equal(t, element.Timestamp(40), summary.Candidate)
	assert.True(t, summary.Advanced)
	assert.Equal(t, element.Timestamp(40), holder.Get())
}

func TestAggregatorWatermarkNonDecreasingAcrossTicks(t *testing.T) {
	holder := NewHolder()
	aggregator := NewAggregator(holder, 1)
	previous := holder.Get()
	for _, ts := range []element.Timestamp{10, 5, 20, 20, 15, 30} {
		aggregator.Reduce([]Metadata{{Partition: 0, NumRecords: 1, Watermark: ts}})
		assert.GreaterOrEqual(t, holder.Get(), previous)
		previous = holder.Get()
	}
	assert.Equal(t, element.Timestamp(30), holder.Get())
}
