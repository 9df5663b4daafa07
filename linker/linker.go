// Copyright 2017-2019, Square, Inc.

// Package linker implements the scheduler for a graph of links connected by
// named queues. Links are registered with the queue they read and the queue
// they write; two links that name the same queue are connected. A run steps
// every link once per round, in registration order, until a whole round goes
// by in which no link consumed anything. At that point no queue read by a link
// holds a record, and nothing is in flight, so the graph is quiescent.
//
// A Linker is restartable: after a run ends, seed more records and run again.
package linker

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"

	serr "github.com/square/spinlink/errors"
	"github.com/square/spinlink/link"
	"github.com/square/spinlink/proto"
	"github.com/square/spinlink/queue"
)

var (
	// Returned when a run is started while another run is in progress.
	ErrRunning = errors.New("linker is already running")

	// Returned (wrapped in a RunError) when a round has no activity but some
	// links deferred their step because their output queue was full.
	ErrStalled = errors.New("links are deferred on full queues and no other link is active")

	// Returned (wrapped in a RunError) when Options.MaxRounds is reached.
	ErrMaxRounds = errors.New("round limit reached before quiescence")
)

// Options configure a Linker. The zero value is valid: sequential rounds,
// unbounded queues, no round limit.
type Options struct {
	// Name identifies the linker in logs.
	Name string

	// Concurrent runs each link in its own goroutine. Rounds are still
	// synchronized: every link steps once per round.
	Concurrent bool

	// QueueCapacity, if > 0, is the advisory capacity of every queue. A link
	// whose output queue is full defers its step.
	QueueCapacity int

	// MaxRounds, if > 0, is the most rounds one run can take.
	MaxRounds uint

	// Logger is the base logger. Defaults to the logrus standard logger.
	Logger *log.Entry
}

// A Linker owns a set of named queues and links and drives them to
// quiescence. Multiple Linkers are independent.
type Linker struct {
	opts   Options
	logger *log.Entry
	queues queue.Repo
	// --
	mux     *sync.RWMutex // guards fields below
	links   []*link.Link  // registration order
	byName  map[string]*link.Link
	graph   *graph
	state   byte   // proto.STATE_ const
	runId   string // latest run
	rounds  uint   // rounds in latest run
	lastErr error  // why the latest run ended early
}

// New makes an idle Linker with no links.
func New(opts Options) *Linker {
	if opts.Name == "" {
		opts.Name = "linker"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Linker{
		opts:   opts,
		logger: logger.WithFields(log.Fields{"linker": opts.Name}),
		queues: queue.NewRepo(opts.QueueCapacity),
		mux:    &sync.RWMutex{},
		byName: map[string]*link.Link{},
		graph:  newGraph(),
		state:  proto.STATE_IDLE,
	}
}

// Link registers a link that reads batches of up to batchSize records from the
// input queue, processes them with fn, and writes the results to the output
// queue. Queues are created if they don't exist. cfg is given to every call
// of fn.
//
// It returns a ConfigError if name is already registered, batchSize < 1, fn
// is nil, a queue name is empty, the link would create a cycle, or a run is
// in progress.
func (lk *Linker) Link(name, input, output string, batchSize int, fn link.BatchFn, cfg link.Config) (*link.Link, error) {
	if err := link.Validate(name, batchSize, fn); err != nil {
		return nil, err
	}
	if input == "" || output == "" {
		return nil, serr.NewConfigError("link %s: input and output queue names are required", name)
	}

	lk.mux.Lock()
	defer lk.mux.Unlock()

	if lk.state == proto.STATE_SCHEDULING {
		return nil, serr.NewConfigError("link %s: cannot register links while running", name)
	}
	if _, ok := lk.byName[name]; ok {
		return nil, serr.NewConfigError("link %s already registered", name)
	}
	if !lk.graph.canAdd(input, output) {
		return nil, serr.NewConfigError("link %s: %s -> %s creates a cycle", name, input, output)
	}

	l, err := link.New(name, lk.queues.GetOrCreate(input), lk.queues.GetOrCreate(output), batchSize, fn, cfg, lk.logger)
	if err != nil {
		return nil, err
	}
	lk.links = append(lk.links, l)
	lk.byName[name] = l
	lk.graph.addLink(name, input, output)

	lk.logger.WithFields(log.Fields{"link": name, "input": input, "output": output, "batch_size": batchSize}).Debug("link registered")
	return l, nil
}

// AddQueue creates a queue that no link uses yet, for seeding or draining by
// name. It does nothing if the queue exists.
func (lk *Linker) AddQueue(name string) error {
	if name == "" {
		return serr.NewConfigError("queue name is empty")
	}
	lk.mux.Lock()
	defer lk.mux.Unlock()
	lk.queues.GetOrCreate(name)
	lk.graph.addQueue(name)
	return nil
}

// Queue returns the named queue, if it exists.
func (lk *Linker) Queue(name string) (*queue.Queue, bool) {
	return lk.queues.Get(name)
}

// Get returns the named link, if it's registered.
func (lk *Linker) Get(name string) (*link.Link, bool) {
	lk.mux.RLock()
	defer lk.mux.RUnlock()
	l, ok := lk.byName[name]
	return l, ok
}

// Links returns all links in registration order.
func (lk *Linker) Links() []*link.Link {
	lk.mux.RLock()
	defer lk.mux.RUnlock()
	links := make([]*link.Link, len(lk.links))
	copy(links, lk.links)
	return links
}

// Sinks returns the names of queues that links write but no link reads,
// sorted. Their records stay until drained.
func (lk *Linker) Sinks() []string {
	lk.mux.RLock()
	sinks := lk.graph.sinks()
	lk.mux.RUnlock()
	sort.Strings(sinks)
	return sinks
}

// SetInputs pushes records onto the input queue of the named link.
func (lk *Linker) SetInputs(linkName string, records []proto.Record) error {
	l, ok := lk.Get(linkName)
	if !ok {
		return serr.NameNotFound{Name: linkName}
	}
	l.SetInputs(records)
	return nil
}

// GetOutputs pops up to max records from the output queue of the named link.
func (lk *Linker) GetOutputs(linkName string, max int) ([]proto.Record, error) {
	l, ok := lk.Get(linkName)
	if !ok {
		return nil, serr.NameNotFound{Name: linkName}
	}
	return l.GetOutputs(max), nil
}

// Seed pushes records onto a queue. If name is a link, the records go to its
// input queue; else name must be a queue.
func (lk *Linker) Seed(name string, records []proto.Record) error {
	if l, ok := lk.Get(name); ok {
		l.SetInputs(records)
		return nil
	}
	q, ok := lk.queues.Get(name)
	if !ok {
		return serr.NameNotFound{Name: name}
	}
	q.Push(records...)
	return nil
}

// Drain pops up to max records from a queue. If name is a link, the records
// come from its output queue; else name must be a queue.
func (lk *Linker) Drain(name string, max int) ([]proto.Record, error) {
	if l, ok := lk.Get(name); ok {
		return l.GetOutputs(max), nil
	}
	q, ok := lk.queues.Get(name)
	if !ok {
		return nil, serr.NameNotFound{Name: name}
	}
	return q.PopBatch(max), nil
}

// Ready returns the number of records waiting on the input queue of the named
// link.
func (lk *Linker) Ready(linkName string) (int, error) {
	l, ok := lk.Get(linkName)
	if !ok {
		return 0, serr.NameNotFound{Name: linkName}
	}
	return l.Input().Len(), nil
}

// State returns the linker's proto.STATE_ const.
func (lk *Linker) State() byte {
	lk.mux.RLock()
	defer lk.mux.RUnlock()
	return lk.state
}

// RunUntilComplete runs rounds until one round has no activity. It returns
// nil when the graph is quiescent.
//
// If a link fails, the run stops at once and a RunError wrapping the link's
// ProcessingError is returned; records already pushed downstream stay in
// their queues. If ctx is done, the run stops between rounds, the linker goes
// back to idle, and ctx.Err() is returned; running again resumes where it
// stopped. It returns ErrRunning if another run is in progress.
func (lk *Linker) RunUntilComplete(ctx context.Context) error {
	links, runId, err := lk.start()
	if err != nil {
		return err
	}
	logger := lk.logger.WithFields(log.Fields{"runId": runId})
	logger.Infof("run started: %d links, concurrent=%t", len(links), lk.opts.Concurrent)

	sched := lk.makeScheduler(links)
	defer sched.stop()

	for round := uint(1); ; round++ {
		if err := ctx.Err(); err != nil {
			logger.Warnf("run interrupted after %d rounds: %s", round-1, err)
			lk.finish(proto.STATE_IDLE, err)
			return err
		}
		if lk.opts.MaxRounds > 0 && round > lk.opts.MaxRounds {
			runErr := serr.RunError{RunId: runId, Round: round - 1, Err: ErrMaxRounds}
			logger.Errorf("%s", runErr)
			lk.finish(proto.STATE_FAIL, runErr)
			return runErr
		}

		r, err := sched.round()
		lk.setRounds(round)
		if err != nil {
			runErr := serr.RunError{RunId: runId, Round: round, Err: err}
			logger.Errorf("%s", runErr)
			lk.finish(proto.STATE_FAIL, runErr)
			return runErr
		}
		if r.active {
			continue
		}

		if len(r.deferred) > 0 {
			runErr := serr.RunError{RunId: runId, Round: round, Err: ErrStalled}
			logger.WithFields(log.Fields{"deferred": r.deferred}).Errorf("%s", runErr)
			lk.finish(proto.STATE_STALLED, runErr)
			return runErr
		}

		logger.Infof("run quiescent after %d rounds", round)
		lk.finish(proto.STATE_QUIESCENT, nil)
		return nil
	}
}

// RunOnce runs one round and returns true if any link was active. The linker
// is quiescent after RunOnce returns false with no error.
func (lk *Linker) RunOnce() (bool, error) {
	links, runId, err := lk.start()
	if err != nil {
		return false, err
	}
	sched := lk.makeScheduler(links)
	defer sched.stop()

	r, err := sched.round()
	lk.setRounds(1)
	switch {
	case err != nil:
		runErr := serr.RunError{RunId: runId, Round: 1, Err: err}
		lk.logger.WithFields(log.Fields{"runId": runId}).Errorf("%s", runErr)
		lk.finish(proto.STATE_FAIL, runErr)
		return r.active, runErr
	case r.active:
		lk.finish(proto.STATE_IDLE, nil)
	case len(r.deferred) > 0:
		runErr := serr.RunError{RunId: runId, Round: 1, Err: ErrStalled}
		lk.finish(proto.STATE_STALLED, runErr)
		return false, runErr
	default:
		lk.finish(proto.STATE_QUIESCENT, nil)
	}
	return r.active, nil
}

// Status returns the state of the linker, its links, and its queues.
func (lk *Linker) Status() proto.LinkerStatus {
	lk.mux.RLock()
	defer lk.mux.RUnlock()

	status := proto.LinkerStatus{
		RunId:  lk.runId,
		State:  lk.state,
		Rounds: lk.rounds,
		Links:  make([]proto.LinkStatus, 0, len(lk.links)),
		Queues: []proto.QueueStatus{},
	}
	if lk.lastErr != nil {
		status.Error = lk.lastErr.Error()
	}
	for _, l := range lk.links {
		status.Links = append(status.Links, l.Status())
	}
	for _, name := range lk.queues.Names() {
		q, ok := lk.queues.Get(name)
		if !ok {
			continue
		}
		status.Queues = append(status.Queues, proto.QueueStatus{
			Name:    name,
			Depth:   q.Len(),
			Readers: copyNames(lk.graph.readers[name]),
			Writers: copyNames(lk.graph.writers[name]),
		})
	}
	return status
}

// -------------------------------------------------------------------------- //

// start moves the linker to SCHEDULING and returns the links to run and a new
// run id.
func (lk *Linker) start() ([]*link.Link, string, error) {
	lk.mux.Lock()
	defer lk.mux.Unlock()
	if lk.state == proto.STATE_SCHEDULING {
		return nil, "", ErrRunning
	}
	lk.state = proto.STATE_SCHEDULING
	lk.runId = xid.New().String()
	lk.rounds = 0
	lk.lastErr = nil

	links := make([]*link.Link, len(lk.links))
	copy(links, lk.links)
	return links, lk.runId, nil
}

func (lk *Linker) finish(state byte, err error) {
	lk.mux.Lock()
	lk.state = state
	lk.lastErr = err
	lk.mux.Unlock()
}

func (lk *Linker) setRounds(n uint) {
	lk.mux.Lock()
	lk.rounds = n
	lk.mux.Unlock()
}

func (lk *Linker) makeScheduler(links []*link.Link) scheduler {
	if lk.opts.Concurrent {
		return newWorkerPool(links)
	}
	return sequential{links: links}
}

func copyNames(names []string) []string {
	c := make([]string, len(names))
	copy(c, names)
	return c
}
