// Package graph finds circular dependency groups in a module graph.
package graph

import "sort"

// Graph is a directed graph of module ids. Edges point from importer to
// imported module.
type Graph struct {
	nodes []string
	index map[string]int
	edges [][]int
}

func New() *Graph {
	return &Graph{index: map[string]int{}}
}

// AddNode registers id and returns its index. Adding a node twice is a no-op.
func (g *Graph) AddNode(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[id] = i
	g.nodes = append(g.nodes, id)
	g.edges = append(g.edges, nil)
	return i
}

// AddEdge adds an edge, registering unknown endpoints.
func (g *Graph) AddEdge(from, to string) {
	f := g.AddNode(from)
	t := g.AddNode(to)
	for _, existing := range g.edges[f] {
		if existing == t {
			return
		}
	}
	g.edges[f] = append(g.edges[f], t)
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// Cycles returns every strongly connected component with more than one
// member, plus single modules that require themselves. Members are sorted and
// groups are ordered by their first member.
func (g *Graph) Cycles() [][]string {
	t := tarjan{
		g:       g,
		index:   make([]int, len(g.nodes)),
		lowlink: make([]int, len(g.nodes)),
		onStack: make([]bool, len(g.nodes)),
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for i := range g.nodes {
		if t.index[i] < 0 {
			t.connect(i)
		}
	}

	groups := make([][]string, 0, len(t.components))
	for _, component := range t.components {
		if len(component) == 1 && !g.selfLoop(component[0]) {
			continue
		}
		group := make([]string, 0, len(component))
		for _, node := range component {
			group = append(group, g.nodes[node])
		}
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0] < groups[j][0]
	})
	return groups
}

// Members returns the set of ids that belong to any cycle.
func (g *Graph) Members() map[string]bool {
	members := map[string]bool{}
	for _, group := range g.Cycles() {
		for _, id := range group {
			members[id] = true
		}
	}
	return members
}

func (g *Graph) selfLoop(node int) bool {
	for _, to := range g.edges[node] {
		if to == node {
			return true
		}
	}
	return false
}

type tarjan struct {
	g          *Graph
	counter    int
	index      []int
	lowlink    []int
	onStack    []bool
	stack      []int
	components [][]int
}

// connect is the iterative form of Tarjan's strongconnect so deep require
// chains cannot exhaust the goroutine stack.
func (t *tarjan) connect(root int) {
	type step struct {
		node int
		next int
	}
	work := []step{{node: root}}
	t.visit(root)
	for len(work) > 0 {
		top := &work[len(work)-1]
		edges := t.g.edges[top.node]
		if top.next < len(edges) {
			to := edges[top.next]
			top.next++
			switch {
			case t.index[to] < 0:
				t.visit(to)
				work = append(work, step{node: to})
			case t.onStack[to]:
				t.lowlink[top.node] = min(t.lowlink[top.node], t.index[to])
			}
			continue
		}

		node := top.node
		work = work[:len(work)-1]
		if len(work) > 0 {
			parent := work[len(work)-1].node
			t.lowlink[parent] = min(t.lowlink[parent], t.lowlink[node])
		}
		if t.lowlink[node] != t.index[node] {
			continue
		}
		var component []int
		for {
			last := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[last] = false
			component = append(component, last)
			if last == node {
				break
			}
		}
		t.components = append(t.components, component)
	}
}

func (t *tarjan) visit(node int) {
	t.index[node] = t.counter
	t.lowlink[node] = t.counter
	t.counter++
	t.stack = append(t.stack, node)
	t.onStack[node] = true
}
