package importgraph

import (
	"fmt"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

// randomDAG draws a graph whose edges all point from lower-numbered nodes
// to higher-numbered ones, which keeps it acyclic by construction.
func randomDAG(t *rapid.T) *Graph {
	n := rapid.IntRange(2, 12).Draw(t, "n")
	g := New()
	for i := 0; i < n; i++ {
		g.AddNode(key(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("edge_%d_%d", i, j)) {
				g.AddEdge(key(i), key(j))
			}
		}
	}
	return g
}

func key(i int) string {
	return fmt.Sprintf("n%02d", i)
}

func reachabilityMap(g *Graph) map[string][]string {
	out := make(map[string][]string)
	for _, k := range g.Nodes() {
		out[k] = g.Descendants(k)
	}
	return out
}

func TestReductionPreservesReachability(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := randomDAG(t)
		before := reachabilityMap(g)
		if err := g.TransitiveReduction(); err != nil {
			t.Fatalf("reduction failed on a DAG: %v", err)
		}
		after := reachabilityMap(g)
		if !reflect.DeepEqual(before, after) {
			t.Fatalf("reachability changed:\nbefore %v\nafter  %v", before, after)
		}
	})
}

func TestReductionIsMinimal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := randomDAG(t)
		if err := g.TransitiveReduction(); err != nil {
			t.Fatalf("reduction failed on a DAG: %v", err)
		}

		// Every surviving edge must be essential: removing it from a fresh
		// copy loses reachability from its tail to its head.
		edges := g.Edges()
		for _, drop := range edges {
			h := New()
			for _, e := range edges {
				if e != drop {
					h.AddEdge(e[0], e[1])
				}
			}
			h.AddNode(drop[0])
			h.AddNode(drop[1])
			if contains(h.Descendants(drop[0]), drop[1]) {
				t.Fatalf("edge %v is redundant after reduction", drop)
			}
		}
	})
}

func TestReductionIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := randomDAG(t)
		if err := g.TransitiveReduction(); err != nil {
			t.Fatal(err)
		}
		once := g.Edges()
		if err := g.TransitiveReduction(); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(once, g.Edges()) {
			t.Fatalf("second reduction changed edges: %v vs %v", once, g.Edges())
		}
	})
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
