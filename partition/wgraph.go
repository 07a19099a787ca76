package partition

import (
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/types"
)

// wgraph is the working graph of the multilevel engine. It is zero based and
// uses native ints whatever the caller's index width. Coarser graphs hang off
// their finer parent through cmap.
type wgraph struct {
	nvtxs, nedges, ncon int
	xadj, adjncy        []int
	adjwgt              []int
	vwgt                []int // nvtxs*ncon
	vsize               []int
	tvwgt               []int // total vertex weight per constraint
	label               []int // vertex id in the caller's graph

	cmap    []int // fine vertex to coarse vertex
	coarser *wgraph
	finer   *wgraph
}

// fromCSR copies a normalized caller graph into a working graph. Missing
// weights become unit weights and self loops are dropped.
func fromCSR[T types.Idx](g *graph.CSR[T]) *wgraph {
	var (
		nv   = g.NumVertices()
		ncon = g.NumConstraints()
		base = g.Base()
		wg   = &wgraph{
			nvtxs:  nv,
			ncon:   ncon,
			xadj:   make([]int, nv+1),
			adjncy: make([]int, 0, g.NumEdges()),
			adjwgt: make([]int, 0, g.NumEdges()),
			vwgt:   make([]int, nv*ncon),
			vsize:  make([]int, nv),
			label:  make([]int, nv),
		}
	)
	for v := 0; v < nv; v++ {
		wgts := g.EdgeWeights(v)
		for j, u := range g.Neighbors(v) {
			if int(u)-base == v {
				continue
			}
			w := 1
			if wgts != nil {
				w = int(wgts[j])
			}
			wg.adjncy = append(wg.adjncy, int(u)-base)
			wg.adjwgt = append(wg.adjwgt, w)
		}
		wg.xadj[v+1] = len(wg.adjncy)
		for c := 0; c < ncon; c++ {
			wg.vwgt[v*ncon+c] = int(g.VertexWeight(v, c))
		}
		wg.vsize[v] = 1
		if g.Vsize != nil {
			wg.vsize[v] = int(g.Vsize[v])
		}
		wg.label[v] = v
	}
	wg.nedges = len(wg.adjncy)
	wg.setTotals()
	return wg
}

func (g *wgraph) setTotals() {
	g.tvwgt = make([]int, g.ncon)
	for v := 0; v < g.nvtxs; v++ {
		for c := 0; c < g.ncon; c++ {
			g.tvwgt[c] += g.vwgt[v*g.ncon+c]
		}
	}
}

func (g *wgraph) degree(v int) int { return g.xadj[v+1] - g.xadj[v] }

// maxVertexWeight returns the heaviest vertex weight per constraint.
func (g *wgraph) maxVertexWeight() []int {
	mx := make([]int, g.ncon)
	for v := 0; v < g.nvtxs; v++ {
		for c := 0; c < g.ncon; c++ {
			mx[c] = max(mx[c], g.vwgt[v*g.ncon+c])
		}
	}
	return mx
}

// normWeight is the weight of v as a fraction of the total, averaged over the
// constraints.
func (g *wgraph) normWeight(v int) float64 {
	var s float64
	for c := 0; c < g.ncon; c++ {
		if g.tvwgt[c] > 0 {
			s += float64(g.vwgt[v*g.ncon+c]) / float64(g.tvwgt[c])
		}
	}
	return s / float64(g.ncon)
}

// split extracts the subgraphs induced by the two sides of a bisection. Cut
// edges are dropped and labels carry over.
func (g *wgraph) split(where []int) (sub [2]*wgraph) {
	var (
		rename = make([]int, g.nvtxs)
		counts [2]int
	)
	for v := 0; v < g.nvtxs; v++ {
		rename[v] = counts[where[v]]
		counts[where[v]]++
	}
	for s := 0; s < 2; s++ {
		sub[s] = &wgraph{
			nvtxs: counts[s],
			ncon:  g.ncon,
			xadj:  make([]int, 1, counts[s]+1),
			vwgt:  make([]int, 0, counts[s]*g.ncon),
			vsize: make([]int, 0, counts[s]),
			label: make([]int, 0, counts[s]),
		}
	}
	for v := 0; v < g.nvtxs; v++ {
		s := sub[where[v]]
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			if u := g.adjncy[k]; where[u] == where[v] {
				s.adjncy = append(s.adjncy, rename[u])
				s.adjwgt = append(s.adjwgt, g.adjwgt[k])
			}
		}
		s.xadj = append(s.xadj, len(s.adjncy))
		s.vwgt = append(s.vwgt, g.vwgt[v*g.ncon:(v+1)*g.ncon]...)
		s.vsize = append(s.vsize, g.vsize[v])
		s.label = append(s.label, g.label[v])
	}
	for _, s := range sub {
		s.nedges = len(s.adjncy)
		s.setTotals()
	}
	return
}

// induce returns the subgraph on the vertices flagged in keep, in id order.
func (g *wgraph) induce(keep []bool) *wgraph {
	where := make([]int, g.nvtxs)
	for v := range where {
		if !keep[v] {
			where[v] = 1
		}
	}
	return g.split(where)[0]
}

// edgeCut of a labeling, each cut edge counted once.
func (g *wgraph) edgeCut(where []int) (cut int) {
	for v := 0; v < g.nvtxs; v++ {
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			if where[g.adjncy[k]] != where[v] {
				cut += g.adjwgt[k]
			}
		}
	}
	return cut / 2
}

// commVolume is the total communication volume of a k-way labeling: every
// vertex sends vsize to each foreign part among its neighbors.
func (g *wgraph) commVolume(where []int, nparts int) (vol int) {
	marker := types.Fill(make([]int, nparts), -1)
	for v := 0; v < g.nvtxs; v++ {
		marker[where[v]] = v
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			if p := where[g.adjncy[k]]; marker[p] != v {
				marker[p] = v
				vol += g.vsize[v]
			}
		}
	}
	return
}

// partWeights sums vertex weights per part and constraint.
func (g *wgraph) partWeights(where []int, nparts int) []int {
	pwgts := make([]int, nparts*g.ncon)
	for v := 0; v < g.nvtxs; v++ {
		for c := 0; c < g.ncon; c++ {
			pwgts[where[v]*g.ncon+c] += g.vwgt[v*g.ncon+c]
		}
	}
	return pwgts
}

// maxPartWeights turns target fractions into per part weight bounds. The bound
// never drops below the target rounded up plus the heaviest vertex less one,
// which keeps small graphs partitionable.
func (g *wgraph) maxPartWeights(tpwgts []float64, ub []float64) []int {
	var (
		nparts = len(tpwgts) / g.ncon
		maxv   = g.maxVertexWeight()
		bound  = make([]int, len(tpwgts))
	)
	for p := 0; p < nparts; p++ {
		for c := 0; c < g.ncon; c++ {
			target := tpwgts[p*g.ncon+c] * float64(g.tvwgt[c])
			slack := ceil(target) + max(maxv[c]-1, 0)
			bound[p*g.ncon+c] = max(int(ub[c]*target), slack)
		}
	}
	return bound
}

func ceil(x float64) int {
	i := int(x)
	if float64(i) < x {
		i++
	}
	return i
}
