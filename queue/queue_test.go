// Copyright 2017, Square, Inc.

package queue_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/queue"
	"github.com/square/spinlink/test"
)

func TestPopBatchFIFO(t *testing.T) {
	q := queue.New("q1")
	records := test.InitRecords(5)
	q.Push(records...)

	got := q.PopBatch(2)
	if diff := deep.Equal(got, records[0:2]); diff != nil {
		t.Error(diff)
	}
	got = q.PopBatch(2)
	if diff := deep.Equal(got, records[2:4]); diff != nil {
		t.Error(diff)
	}
	if q.Len() != 1 {
		t.Errorf("len = %d, expected 1", q.Len())
	}
}

func TestPopBatchFewerThanMax(t *testing.T) {
	q := queue.New("q1")
	records := test.InitRecords(3)
	q.Push(records...)

	got := q.PopBatch(100)
	if diff := deep.Equal(got, records); diff != nil {
		t.Error(diff)
	}
	if q.Len() != 0 {
		t.Errorf("len = %d, expected 0", q.Len())
	}
}

func TestPopBatchEmpty(t *testing.T) {
	q := queue.New("q1")

	got := q.PopBatch(10)
	if got == nil {
		t.Error("got nil batch, expected empty slice")
	}
	if len(got) != 0 {
		t.Errorf("got %d records, expected 0", len(got))
	}

	q.Push(test.InitRecords(2)...)
	if got := q.PopBatch(0); len(got) != 0 {
		t.Errorf("PopBatch(0) returned %d records, expected 0", len(got))
	}
	if got := q.PopBatch(-1); len(got) != 0 {
		t.Errorf("PopBatch(-1) returned %d records, expected 0", len(got))
	}
	if q.Len() != 2 {
		t.Errorf("len = %d, expected 2", q.Len())
	}
}

func TestPushNothing(t *testing.T) {
	q := queue.New("q1")
	q.Push()
	q.Push([]proto.Record{}...)
	if q.Len() != 0 {
		t.Errorf("len = %d, expected 0", q.Len())
	}
}

func TestPushAfterDrain(t *testing.T) {
	q := queue.New("q1")
	q.Push(test.InitRecords(2)...)
	q.PopBatch(2)

	r := proto.Record{"idx": 99}
	q.Push(r)
	got := q.PopBatch(1)
	if diff := deep.Equal(got, []proto.Record{r}); diff != nil {
		t.Error(diff)
	}
}

func TestFull(t *testing.T) {
	q := queue.New("unbounded")
	q.Push(test.InitRecords(1000)...)
	if q.Full() {
		t.Error("unbounded queue is full, expected never full")
	}

	q = queue.NewBounded("bounded", 3)
	if q.Capacity() != 3 {
		t.Errorf("capacity = %d, expected 3", q.Capacity())
	}
	q.Push(test.InitRecords(2)...)
	if q.Full() {
		t.Error("queue full at 2 records, expected not full")
	}
	// Capacity is advisory: pushing past it still works.
	q.Push(test.InitRecords(2)...)
	if !q.Full() {
		t.Error("queue not full at 4 records, expected full")
	}
	if q.Len() != 4 {
		t.Errorf("len = %d, expected 4", q.Len())
	}
}

func TestConcurrentPushPop(t *testing.T) {
	q := queue.New("q1")
	producers := 4
	perProducer := 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(proto.Record{"id": fmt.Sprintf("%d-%d", p, i)})
			}
		}(p)
	}

	seen := map[string]int{}
	var seenMux sync.Mutex
	consumed := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	drain := func() {
		for _, r := range q.PopBatch(7) {
			seenMux.Lock()
			seen[r["id"].(string)]++
			consumed++
			seenMux.Unlock()
		}
	}
LOOP:
	for {
		select {
		case <-done:
			break LOOP
		default:
			drain()
		}
	}
	for q.Len() > 0 {
		drain()
	}

	if consumed != producers*perProducer {
		t.Errorf("consumed %d records, expected %d", consumed, producers*perProducer)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("record %s seen %d times, expected 1", id, n)
		}
	}
}

func TestPerProducerOrder(t *testing.T) {
	// Records pushed by one producer keep their relative order even when
	// other producers push at the same time.
	q := queue.New("q1")
	var wg sync.WaitGroup
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q.Push(proto.Record{"p": p, "i": i})
			}
		}(p)
	}
	wg.Wait()

	last := map[int]int{0: -1, 1: -1, 2: -1}
	for _, r := range q.PopBatch(q.Len()) {
		p := r["p"].(int)
		i := r["i"].(int)
		if i != last[p]+1 {
			t.Fatalf("producer %d: got record %d after %d", p, i, last[p])
		}
		last[p] = i
	}
}
