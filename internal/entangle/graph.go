// Package entangle keeps the undirected, weighted entanglement graph between
// commits. Nodes and edges live in flat slices and are addressed by index, so
// cycles cost nothing and traversal never chases pointers between commits.
package entangle

import (
	"github.com/google/uuid"
)

// NodeIndex addresses a node in the arena
type NodeIndex int

// EdgeIndex addresses an edge in the arena
type EdgeIndex int

// Edge links two nodes. The graph is undirected; A is the node that was
// registered later.
type Edge struct {
	A      NodeIndex
	B      NodeIndex
	Weight float64
}

type Graph struct {
	nodes     []uuid.UUID
	byCommit  map[uuid.UUID]NodeIndex
	edges     []Edge
	adjacency [][]EdgeIndex
}

func NewGraph() *Graph {
	return &Graph{
		byCommit: make(map[uuid.UUID]NodeIndex),
	}
}

// AddNode appends a node for the commit, or returns the existing one
func (g *Graph) AddNode(id uuid.UUID) NodeIndex {
	if idx, ok := g.byCommit[id]; ok {
		return idx
	}
	idx := NodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, id)
	g.adjacency = append(g.adjacency, nil)
	g.byCommit[id] = idx
	return idx
}

// AddEdge always appends; parallel edges between the same pair are kept.
// Weight is clamped to [0, 1].
func (g *Graph) AddEdge(a, b NodeIndex, weight float64) EdgeIndex {
	weight = min(max(weight, 0), 1)
	idx := EdgeIndex(len(g.edges))
	g.edges = append(g.edges, Edge{A: a, B: b, Weight: weight})
	g.adjacency[a] = append(g.adjacency[a], idx)
	if a != b {
		g.adjacency[b] = append(g.adjacency[b], idx)
	}
	return idx
}

// Node finds the node for a commit
func (g *Graph) Node(id uuid.UUID) (NodeIndex, bool) {
	idx, ok := g.byCommit[id]
	return idx, ok
}

// Commit returns the commit id stored at a node
func (g *Graph) Commit(idx NodeIndex) uuid.UUID {
	return g.nodes[idx]
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Edges returns a copy of every edge in insertion order
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgesOf returns the edges touching a node, in insertion order
func (g *Graph) EdgesOf(idx NodeIndex) []Edge {
	out := make([]Edge, 0, len(g.adjacency[idx]))
	for _, e := range g.adjacency[idx] {
		out = append(out, g.edges[e])
	}
	return out
}

func (e Edge) other(from NodeIndex) NodeIndex {
	if e.A == from {
		return e.B
	}
	return e.A
}

// Reachable walks the graph breadth-first from start and returns every node
// reachable by any path, nearest first. start itself is not included.
func (g *Graph) Reachable(start NodeIndex) []NodeIndex {
	visited := make([]bool, len(g.nodes))
	visited[start] = true
	queue := []NodeIndex{start}
	var out []NodeIndex

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ei := range g.adjacency[cur] {
			next := g.edges[ei].other(cur)
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}
