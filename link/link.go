// Copyright 2017-2019, Square, Inc.

// Package link implements one processing step of a linker graph: a batch
// function bound to an input queue, an output queue, and a batch size.
package link

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	serr "github.com/square/spinlink/errors"
	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/queue"
)

// A BatchFn processes one batch of records. It's given the records in queue
// order and the link's config, and it returns the records to push onto the
// link's output queue, in order. Returning no records is valid: an aggregator,
// for example, may be waiting for more input. An error fails the link and
// aborts the run.
//
// A BatchFn is never called with an empty batch, and never called again for
// the same link until the previous call has returned.
type BatchFn func(batch []proto.Record, cfg Config) ([]proto.Record, error)

// Result is what one Step did.
type Result struct {
	Consumed int  // records popped from the input queue
	Produced int  // records pushed onto the output queue
	Deferred bool // step skipped because the output queue is full
}

// Active returns true if the step consumed input. A step that consumes input
// but produces nothing is still active.
func (r Result) Active() bool {
	return r.Consumed > 0
}

// Stats are a link's lifetime counters.
type Stats struct {
	Invocations uint64
	RecordsIn   uint64
	RecordsOut  uint64
	Failures    uint64
	Active      bool // latest step was active
}

// A Link is a named processing node. Links are made by a linker; they are not
// useful by themselves.
type Link struct {
	name      string
	in        *queue.Queue
	out       *queue.Queue
	batchSize int
	fn        BatchFn
	cfg       Config
	logger    *log.Entry
	// --
	stepMux  *sync.Mutex   // one Step at a time
	statsMux *sync.RWMutex // guards stats
	stats    Stats
}

// New makes a Link. It returns a ConfigError if the link doesn't pass Validate
// or either queue is nil.
func New(name string, in, out *queue.Queue, batchSize int, fn BatchFn, cfg Config, logger *log.Entry) (*Link, error) {
	if err := Validate(name, batchSize, fn); err != nil {
		return nil, err
	}
	if in == nil || out == nil {
		return nil, serr.NewConfigError("link %s: input and output queues are required", name)
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Link{
		name:      name,
		in:        in,
		out:       out,
		batchSize: batchSize,
		fn:        fn,
		cfg:       cfg,
		logger:    logger.WithFields(log.Fields{"link": name}),
		stepMux:   &sync.Mutex{},
		statsMux:  &sync.RWMutex{},
	}, nil
}

// Validate returns a ConfigError if name is empty, batchSize < 1, or fn is nil.
func Validate(name string, batchSize int, fn BatchFn) error {
	if name == "" {
		return serr.NewConfigError("link name is empty")
	}
	if batchSize < 1 {
		return serr.NewConfigError("link %s: batch size %d, must be >= 1", name, batchSize)
	}
	if fn == nil {
		return serr.NewConfigError("link %s: nil batch function", name)
	}
	return nil
}

func (l *Link) Name() string         { return l.name }
func (l *Link) Input() *queue.Queue  { return l.in }
func (l *Link) Output() *queue.Queue { return l.out }
func (l *Link) BatchSize() int       { return l.batchSize }
func (l *Link) Config() Config       { return l.cfg }

// SetInputs pushes records onto the link's input queue.
func (l *Link) SetInputs(records []proto.Record) {
	l.in.Push(records...)
}

// GetOutputs pops up to max records from the link's output queue.
func (l *Link) GetOutputs(max int) []proto.Record {
	return l.out.PopBatch(max)
}

// Step pulls one batch of up to batch size records from the input queue,
// calls the batch function, and pushes its output onto the output queue. If
// the input queue is empty, the batch function is not called and the result
// is inactive. If the output queue is full, nothing is popped and the result
// is deferred.
//
// If the batch function fails, the batch is dropped and a ProcessingError is
// returned with the number of records consumed.
func (l *Link) Step() (Result, error) {
	l.stepMux.Lock()
	defer l.stepMux.Unlock()

	if l.out.Full() && l.in.Len() > 0 {
		l.setActive(false)
		return Result{Deferred: true}, nil
	}

	batch := l.in.PopBatch(l.batchSize)
	if len(batch) == 0 {
		l.setActive(false)
		return Result{}, nil
	}

	l.statsMux.Lock()
	l.stats.Invocations++
	n := l.stats.Invocations
	l.stats.RecordsIn += uint64(len(batch))
	l.stats.Active = true
	l.statsMux.Unlock()

	l.logger.WithFields(log.Fields{"invocation": n, "batch_size": len(batch)}).Debug("processing batch")

	res := Result{Consumed: len(batch)}
	out, err := l.invoke(batch)
	if err != nil {
		l.statsMux.Lock()
		l.stats.Failures++
		l.statsMux.Unlock()
		l.logger.WithFields(log.Fields{"invocation": n, "batch_size": len(batch)}).Errorf("batch failed: %s", err)
		return res, serr.ProcessingError{Link: l.name, BatchSize: len(batch), Err: err}
	}

	l.out.Push(out...)
	res.Produced = len(out)

	l.statsMux.Lock()
	l.stats.RecordsOut += uint64(len(out))
	l.statsMux.Unlock()

	return res, nil
}

// Stats returns a copy of the link's counters.
func (l *Link) Stats() Stats {
	l.statsMux.RLock()
	defer l.statsMux.RUnlock()
	return l.stats
}

// Status returns the link's proto status.
func (l *Link) Status() proto.LinkStatus {
	s := l.Stats()
	return proto.LinkStatus{
		Name:        l.name,
		Input:       l.in.Name(),
		Output:      l.out.Name(),
		BatchSize:   l.batchSize,
		Invocations: s.Invocations,
		RecordsIn:   s.RecordsIn,
		RecordsOut:  s.RecordsOut,
		Failures:    s.Failures,
		Active:      s.Active,
		Ready:       l.in.Len(),
	}
}

// -------------------------------------------------------------------------- //

// invoke calls the batch function. A panic or a nil output record is returned
// as an error.
func (l *Link) invoke(batch []proto.Record) (out []proto.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	out, err = l.fn(batch, l.cfg)
	if err != nil {
		return nil, err
	}
	for i, r := range out {
		if r == nil {
			return nil, fmt.Errorf("output record %d of %d is nil", i, len(out))
		}
	}
	return out, nil
}

func (l *Link) setActive(active bool) {
	l.statsMux.Lock()
	l.stats.Active = active
	l.statsMux.Unlock()
}
