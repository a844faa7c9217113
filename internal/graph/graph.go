// Package graph orders declared types by inheritance and ranks files by how
// much other files build on them.
package graph

import (
	"math"
	"sort"
)

// Graph is a directed graph over string nodes. An edge from a to b means a
// depends on b: a derives from b, or a file declaring a extends a type
// declared in b.
type Graph struct {
	nodes map[string]struct{}
	out   map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]struct{}),
		out:   make(map[string][]string),
	}
}

// AddNode adds n without edges.
func (g *Graph) AddNode(n string) {
	g.nodes[n] = struct{}{}
}

// AddEdge adds an edge from src to tgt. Repeated edges are kept: they weigh
// more when ranking.
func (g *Graph) AddEdge(src, tgt string) {
	g.AddNode(src)
	g.AddNode(tgt)
	g.out[src] = append(g.out[src], tgt)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Edge is a single edge of the graph.
type Edge struct {
	Source, Target string
}

// Order returns the nodes with every dependency before its dependents,
// plus the edges that had to be ignored to get there. Those back edges
// close cycles; removing them leaves the graph acyclic. Nodes and edges are
// visited in sorted order so the result is deterministic.
func (g *Graph) Order() (order []string, back []Edge) {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))

	var visit func(n string)
	visit = func(n string) {
		state[n] = active
		targets := append([]string(nil), g.out[n]...)
		sort.Strings(targets)
		for i, t := range targets {
			if i > 0 && targets[i-1] == t {
				continue
			}
			switch state[t] {
			case unvisited:
				visit(t)
			case active:
				back = append(back, Edge{Source: n, Target: t})
			}
		}
		state[n] = done
		order = append(order, n)
	}

	for _, n := range sortedKeys(g.nodes) {
		if state[n] == unvisited {
			visit(n)
		}
	}
	return order, back
}

// Rank computes PageRank over the graph. Nodes many others depend on rank
// higher. With no edges every node gets the same rank.
func (g *Graph) Rank() map[string]float64 {
	n := len(g.nodes)
	if n == 0 {
		return nil
	}
	outDegree := make(map[string]int, len(g.out))
	edges := 0
	for src, targets := range g.out {
		outDegree[src] = len(targets)
		edges += len(targets)
	}
	if edges == 0 {
		uniform := 1.0 / float64(n)
		ranks := make(map[string]float64, n)
		for node := range g.nodes {
			ranks[node] = uniform
		}
		return ranks
	}
	return pageRank(g.nodes, g.out, outDegree, 0.85, 100, 1e-6)
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)

		// Nodes without edges spread their rank evenly.
		var dangling float64
		for node := range nodes {
			if outDegree[node] == 0 {
				dangling += rank[node]
			}
		}
		base := teleport + alpha*dangling/float64(n)
		for node := range nodes {
			next[node] = base
		}

		for src, targets := range outEdges {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				next[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(next[node] - rank[node])
		}
		rank = next
		if diff < tol {
			break
		}
	}
	return rank
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
