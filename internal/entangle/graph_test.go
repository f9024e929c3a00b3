package entangle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode(t *testing.T) {
	g := NewGraph()
	id := uuid.New()

	a := g.AddNode(id)
	again := g.AddNode(id)

	assert.Equal(t, a, again)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, id, g.Commit(a))

	idx, ok := g.Node(id)
	require.True(t, ok)
	assert.Equal(t, a, idx)

	_, ok = g.Node(uuid.New())
	assert.False(t, ok)
}

func TestAddEdgeKeepsParallelEdges(t *testing.T) {
	g := NewGraph()
	a := g.AddNode(uuid.New())
	b := g.AddNode(uuid.New())

	g.AddEdge(b, a, 0.5)
	g.AddEdge(b, a, 0.25)

	assert.Equal(t, 2, g.EdgeCount())
	assert.Len(t, g.EdgesOf(a), 2)
	assert.Len(t, g.EdgesOf(b), 2)
	assert.Equal(t, []Edge{{A: b, B: a, Weight: 0.5}, {A: b, B: a, Weight: 0.25}}, g.Edges())
}

func TestAddEdgeClampsWeight(t *testing.T) {
	g := NewGraph()
	a := g.AddNode(uuid.New())
	b := g.AddNode(uuid.New())

	g.AddEdge(a, b, 3)
	g.AddEdge(a, b, -1)

	edges := g.Edges()
	assert.Equal(t, 1.0, edges[0].Weight)
	assert.Equal(t, 0.0, edges[1].Weight)
}

func TestReachable(t *testing.T) {
	g := NewGraph()
	n := make([]NodeIndex, 6)
	for i := range n {
		n[i] = g.AddNode(uuid.New())
	}
	// 0 - 1 - 2 - 0 (cycle), 2 - 3, 4 isolated, 5 - 5 self loop
	g.AddEdge(n[1], n[0], 0.1)
	g.AddEdge(n[2], n[1], 0.1)
	g.AddEdge(n[2], n[0], 0.1)
	g.AddEdge(n[3], n[2], 0)
	g.AddEdge(n[5], n[5], 1)

	t.Run("any distance, nearest first", func(t *testing.T) {
		got := g.Reachable(n[0])
		assert.Equal(t, []NodeIndex{n[1], n[2], n[3]}, got)
	})

	t.Run("undirected", func(t *testing.T) {
		assert.ElementsMatch(t, []NodeIndex{n[0], n[1], n[2]}, g.Reachable(n[3]))
	})

	t.Run("isolated", func(t *testing.T) {
		assert.Empty(t, g.Reachable(n[4]))
	})

	t.Run("self loop excluded", func(t *testing.T) {
		assert.Empty(t, g.Reachable(n[5]))
	})
}
