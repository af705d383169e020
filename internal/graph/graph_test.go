package graph

import (
	"fmt"
	"reflect"
	"testing"
)

func TestCyclesFindsComponents(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	g.AddEdge("c", "d")
	g.AddEdge("d", "e")
	g.AddEdge("e", "d")
	g.AddEdge("f", "f")
	g.AddNode("g")

	want := [][]string{{"a", "b", "c"}, {"d", "e"}, {"f"}}
	if got := g.Cycles(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Cycles() = %v, want %v", got, want)
	}
	members := g.Members()
	if !members["a"] || !members["f"] || members["g"] {
		t.Fatalf("unexpected members %v", members)
	}
}

func TestCyclesAcyclic(t *testing.T) {
	g := New()
	g.AddEdge("main", "a")
	g.AddEdge("main", "b")
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	if cycles := g.Cycles(); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
	if g.Len() != 3 {
		t.Fatalf("expected three nodes, got %d", g.Len())
	}
}

func TestCyclesDeepChain(t *testing.T) {
	g := New()
	const depth = 100000
	for i := 0; i < depth; i++ {
		g.AddEdge(fmt.Sprintf("m%06d", i), fmt.Sprintf("m%06d", i+1))
	}
	g.AddEdge(fmt.Sprintf("m%06d", depth), "m000000")
	cycles := g.Cycles()
	if len(cycles) != 1 || len(cycles[0]) != depth+1 {
		t.Fatalf("expected one cycle of %d members, got %d groups", depth+1, len(cycles))
	}
}
