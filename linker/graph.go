// Copyright 2017-2019, Square, Inc.

package linker

// graph is the queue graph implied by link registrations: queues are nodes and
// each link is an edge from its input queue to its output queue. It is built
// once, as links are registered, so the scheduler never compares names.
type graph struct {
	readers map[string][]string // queue => names of links reading it
	writers map[string][]string // queue => names of links writing it
	next    map[string][]string // queue => downstream queues, one entry per link
}

func newGraph() *graph {
	return &graph{
		readers: map[string][]string{},
		writers: map[string][]string{},
		next:    map[string][]string{},
	}
}

// addQueue makes sure a queue is a node in the graph, even if no link uses it.
func (g *graph) addQueue(name string) {
	if _, ok := g.readers[name]; !ok {
		g.readers[name] = []string{}
	}
	if _, ok := g.writers[name]; !ok {
		g.writers[name] = []string{}
	}
}

// addLink adds the edge for a link. Call canAdd first.
func (g *graph) addLink(name, in, out string) {
	g.addQueue(in)
	g.addQueue(out)
	g.readers[in] = append(g.readers[in], name)
	g.writers[out] = append(g.writers[out], name)
	g.next[in] = append(g.next[in], out)
}

// canAdd returns false if an edge in => out would make the graph cyclic.
func (g *graph) canAdd(in, out string) bool {
	if in == out {
		return false
	}
	next := make(map[string][]string, len(g.next)+1)
	for q, adj := range g.next {
		next[q] = adj
	}
	next[in] = append(append([]string{}, g.next[in]...), out)
	return isAcyclic(g.nodes(in, out), next)
}

// nodes returns every queue in the graph plus extra.
func (g *graph) nodes(extra ...string) map[string]struct{} {
	nodes := map[string]struct{}{}
	for q := range g.readers {
		nodes[q] = struct{}{}
	}
	for _, q := range extra {
		nodes[q] = struct{}{}
	}
	return nodes
}

// sinks returns the queues that links write but no link reads. Records end up
// here and are only removed by draining.
func (g *graph) sinks() []string {
	sinks := []string{}
	for q, w := range g.writers {
		if len(w) > 0 && len(g.readers[q]) == 0 {
			sinks = append(sinks, q)
		}
	}
	return sinks
}

// isAcyclic returns whether or not a graph is acyclic. It works by removing
// nodes with indegree 0 until none are left. If there is a cycle, at least one
// node's indegree never reaches 0, so not every node is visited.
func isAcyclic(nodes map[string]struct{}, next map[string][]string) bool {
	indegree := make(map[string]int, len(nodes))
	for q := range nodes {
		indegree[q] = 0
	}
	for _, adj := range next {
		for _, q := range adj {
			indegree[q]++
		}
	}

	queue := []string{}
	for q, n := range indegree {
		if n == 0 {
			queue = append(queue, q)
		}
	}

	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, q := range next[cur] {
			indegree[q]--
			if indegree[q] == 0 {
				queue = append(queue, q)
			}
		}
	}

	return visited == len(indegree)
}
