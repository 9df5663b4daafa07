// Copyright 2017-2019, Square, Inc.

package linker

import (
	"sync"

	"github.com/square/spinlink/link"
)

// roundResult is what one round did across all links.
type roundResult struct {
	active   bool     // at least one link consumed input
	deferred []string // links that skipped their step on a full output queue
}

// A scheduler runs rounds: every link steps exactly once per round.
type scheduler interface {
	// round steps every link once and returns when they're all done. It
	// returns the first error in link registration order, if any.
	round() (roundResult, error)

	// stop releases the scheduler. round must not be called after stop.
	stop()
}

// sequential steps links one after another, in registration order, on the
// caller's goroutine. A failing link ends the round immediately.
type sequential struct {
	links []*link.Link
}

func (s sequential) round() (roundResult, error) {
	var r roundResult
	for _, l := range s.links {
		res, err := l.Step()
		if err != nil {
			return r, err
		}
		if res.Active() {
			r.active = true
		}
		if res.Deferred {
			r.deferred = append(r.deferred, l.Name())
		}
	}
	return r, nil
}

func (s sequential) stop() {}

// workerPool runs one goroutine per link. Each round is a barrier: every
// worker is told to step once, and the round ends when all of them have
// reported back. Because a worker only steps when told, a link never has two
// steps in flight.
type workerPool struct {
	links     []*link.Link
	stepChans []chan struct{} // one per worker: step once
	doneChan  chan stepDone   // workers report steps here
	wg        *sync.WaitGroup
}

type stepDone struct {
	i   int // index into links
	res link.Result
	err error
}

func newWorkerPool(links []*link.Link) *workerPool {
	p := &workerPool{
		links:     links,
		stepChans: make([]chan struct{}, len(links)),
		doneChan:  make(chan stepDone, len(links)),
		wg:        &sync.WaitGroup{},
	}
	for i, l := range links {
		p.stepChans[i] = make(chan struct{})
		p.wg.Add(1)
		go p.work(i, l, p.stepChans[i])
	}
	return p
}

func (p *workerPool) work(i int, l *link.Link, stepChan chan struct{}) {
	defer p.wg.Done()
	for range stepChan {
		res, err := l.Step()
		p.doneChan <- stepDone{i: i, res: res, err: err}
	}
}

func (p *workerPool) round() (roundResult, error) {
	for _, c := range p.stepChans {
		c <- struct{}{}
	}

	results := make([]stepDone, len(p.links))
	for range p.links {
		d := <-p.doneChan
		results[d.i] = d
	}

	var r roundResult
	var firstErr error
	for i, d := range results {
		if d.err != nil && firstErr == nil {
			firstErr = d.err
		}
		if d.res.Active() {
			r.active = true
		}
		if d.res.Deferred {
			r.deferred = append(r.deferred, p.links[i].Name())
		}
	}
	return r, firstErr
}

func (p *workerPool) stop() {
	for _, c := range p.stepChans {
		close(c)
	}
	p.wg.Wait()
}
