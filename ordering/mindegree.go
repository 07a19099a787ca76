package ordering

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// minDegreeOrder orders a small graph by eliminating, one at a time, a vertex
// of minimum degree in the elimination graph, lowest id first on ties. The
// neighbors of an eliminated vertex become a clique. order[k] is the vertex
// placed at position k.
func (g *sgraph) minDegreeOrder() (order []int) {
	eg := simple.NewUndirectedGraph()
	for v := 0; v < g.nvtxs; v++ {
		eg.AddNode(simple.Node(v))
	}
	for v := 0; v < g.nvtxs; v++ {
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			if u != v && !eg.HasEdgeBetween(int64(v), int64(u)) {
				eg.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(u)})
			}
		}
	}

	alive := make([]bool, g.nvtxs)
	for v := range alive {
		alive[v] = true
	}
	order = make([]int, 0, g.nvtxs)
	for len(order) < g.nvtxs {
		best, bestDeg := -1, 0
		for v, ok := range alive {
			if !ok {
				continue
			}
			if d := eg.From(int64(v)).Len(); best < 0 || d < bestDeg {
				best, bestDeg = v, d
			}
		}
		nbrs := graph.NodesOf(eg.From(int64(best)))
		sort.Slice(nbrs, func(i, j int) bool { return nbrs[i].ID() < nbrs[j].ID() })
		eg.RemoveNode(int64(best))
		alive[best] = false
		order = append(order, best)
		for i := range nbrs {
			for j := i + 1; j < len(nbrs); j++ {
				if !eg.HasEdgeBetween(nbrs[i].ID(), nbrs[j].ID()) {
					eg.SetEdge(simple.Edge{F: nbrs[i], T: nbrs[j]})
				}
			}
		}
	}
	return
}
