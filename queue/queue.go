// Copyright 2017-2019, Square, Inc.

// Package queue implements the named FIFO queues that connect links.
package queue

import (
	"sync"

	"github.com/square/spinlink/proto"
)

// A Queue is a named, thread-safe FIFO of records. It is unbounded unless made
// with a capacity, and even then the capacity is only advisory: Push never
// blocks or fails, and Full tells producers to hold off.
type Queue struct {
	name     string
	capacity int // 0 = unbounded
	// --
	records     []proto.Record
	*sync.Mutex // guards records
}

// New returns an empty, unbounded Queue.
func New(name string) *Queue {
	return NewBounded(name, 0)
}

// NewBounded returns an empty Queue that reports Full at capacity records.
// A capacity <= 0 means unbounded.
func NewBounded(name string, capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		name:     name,
		capacity: capacity,
		Mutex:    &sync.Mutex{},
	}
}

// Name returns the name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Capacity returns the advisory capacity, or 0 if the queue is unbounded.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Push appends records to the tail of the queue, preserving their order.
func (q *Queue) Push(records ...proto.Record) {
	if len(records) == 0 {
		return
	}
	q.Lock()
	q.records = append(q.records, records...)
	q.Unlock()
}

// PopBatch removes and returns up to max records from the head of the queue.
// It returns fewer if the queue holds fewer, and an empty (non-nil) slice if the
// queue is empty or max <= 0.
func (q *Queue) PopBatch(max int) []proto.Record {
	q.Lock()
	defer q.Unlock()

	if max <= 0 || len(q.records) == 0 {
		return []proto.Record{}
	}
	if max > len(q.records) {
		max = len(q.records)
	}

	batch := make([]proto.Record, max)
	copy(batch, q.records[:max])

	// Clear popped slots so the backing array doesn't keep them alive.
	for i := 0; i < max; i++ {
		q.records[i] = nil
	}
	q.records = q.records[max:]
	if len(q.records) == 0 {
		q.records = nil
	}
	return batch
}

// Len returns the number of records in the queue. It is for introspection
// only: the value can change as soon as it's returned.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.records)
}

// Full returns true if the queue has a capacity and holds at least that many
// records.
func (q *Queue) Full() bool {
	if q.capacity == 0 {
		return false
	}
	return q.Len() >= q.capacity
}
