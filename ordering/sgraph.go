package ordering

import (
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/types"
)

// sgraph is the zero based working graph of the orderer. Edge weights play no
// part in a fill reducing order and are not kept.
type sgraph struct {
	nvtxs  int
	xadj   []int
	adjncy []int
	vwgt   []int
	label  []int // vertex id in the caller's graph
}

// fromCSR copies a normalized graph, dropping self loops. vwgt overrides the
// graph's own first constraint when given.
func fromCSR[T types.Idx](g *graph.CSR[T], vwgt []T) *sgraph {
	var (
		nv   = g.NumVertices()
		base = g.Base()
		sg   = &sgraph{
			nvtxs:  nv,
			xadj:   make([]int, nv+1),
			adjncy: make([]int, 0, g.NumEdges()),
			vwgt:   make([]int, nv),
			label:  make([]int, nv),
		}
	)
	for v := 0; v < nv; v++ {
		for _, u := range g.Neighbors(v) {
			if int(u)-base != v {
				sg.adjncy = append(sg.adjncy, int(u)-base)
			}
		}
		sg.xadj[v+1] = len(sg.adjncy)
		switch {
		case vwgt != nil:
			sg.vwgt[v] = int(vwgt[v])
		default:
			sg.vwgt[v] = int(g.VertexWeight(v, 0))
		}
		sg.label[v] = v
	}
	return sg
}

func (g *sgraph) nedges() int { return len(g.adjncy) }

func (g *sgraph) degree(v int) int { return g.xadj[v+1] - g.xadj[v] }

func (g *sgraph) totalWeight() (t int) {
	for _, w := range g.vwgt {
		t += w
	}
	return
}

// induce returns the subgraph on the vertices flagged in keep, in id order.
// Labels carry over.
func (g *sgraph) induce(keep []bool) *sgraph {
	var (
		rename = make([]int, g.nvtxs)
		n      int
	)
	for v := 0; v < g.nvtxs; v++ {
		rename[v] = -1
		if keep[v] {
			rename[v] = n
			n++
		}
	}
	sub := &sgraph{
		nvtxs: n,
		xadj:  make([]int, 1, n+1),
		vwgt:  make([]int, 0, n),
		label: make([]int, 0, n),
	}
	for v := 0; v < g.nvtxs; v++ {
		if !keep[v] {
			continue
		}
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			if rename[u] >= 0 {
				sub.adjncy = append(sub.adjncy, rename[u])
			}
		}
		sub.xadj = append(sub.xadj, len(sub.adjncy))
		sub.vwgt = append(sub.vwgt, g.vwgt[v])
		sub.label = append(sub.label, g.label[v])
	}
	return sub
}

// side returns the subgraph induced by the vertices labeled s.
func (g *sgraph) side(where []int, s int) *sgraph {
	keep := make([]bool, g.nvtxs)
	for v, w := range where {
		keep[v] = w == s
	}
	return g.induce(keep)
}

// components labels the connected components of g and returns their count.
func (g *sgraph) components() (comp []int, ncomp int) {
	comp = types.Fill(make([]int, g.nvtxs), -1)
	stack := make([]int, 0, g.nvtxs)
	for s := 0; s < g.nvtxs; s++ {
		if comp[s] >= 0 {
			continue
		}
		comp[s] = ncomp
		stack = append(stack[:0], s)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
				if comp[u] < 0 {
					comp[u] = ncomp
					stack = append(stack, u)
				}
			}
		}
		ncomp++
	}
	return
}
