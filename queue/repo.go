// Copyright 2017, Square, Inc.

package queue

import (
	"sort"

	"github.com/orcaman/concurrent-map"
)

// Repo is a small wrapper around a concurrent map that stores Queues by name.
type Repo interface {
	// Get returns the named queue, if it exists.
	Get(name string) (*Queue, bool)

	// GetOrCreate returns the named queue, creating it first if needed. Every
	// queue created by a Repo has the capacity the Repo was made with.
	GetOrCreate(name string) *Queue

	// Items returns a map of name => Queue with all the queues in the repo.
	Items() map[string]*Queue

	// Names returns the names of all queues in the repo, sorted.
	Names() []string
}

type repo struct {
	c        cmap.ConcurrentMap
	capacity int
}

// NewRepo makes a Repo whose queues report Full at capacity records. A
// capacity <= 0 makes unbounded queues.
func NewRepo(capacity int) Repo {
	return &repo{
		c:        cmap.New(),
		capacity: capacity,
	}
}

func (r *repo) Get(name string) (*Queue, bool) {
	val, ok := r.c.Get(name)
	if !ok {
		return nil, false
	}
	q, ok := val.(*Queue)
	return q, ok
}

func (r *repo) GetOrCreate(name string) *Queue {
	if q, ok := r.Get(name); ok {
		return q
	}
	// Another goroutine may create the same queue between Get and here, so
	// only the first one set wins and everyone returns that one.
	r.c.SetIfAbsent(name, NewBounded(name, r.capacity))
	q, _ := r.Get(name)
	return q
}

func (r *repo) Items() map[string]*Queue {
	queues := map[string]*Queue{}
	for name, val := range r.c.Items() {
		if q, ok := val.(*Queue); ok {
			queues[name] = q
		}
	}
	return queues
}

func (r *repo) Names() []string {
	names := r.c.Keys()
	sort.Strings(names)
	return names
}
