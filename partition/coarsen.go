package partition

import (
	"sort"

	"github.com/notargets/gopart/options"
)

// coarsen builds the coarsening hierarchy of g and returns the coarsest graph.
// It stops once the graph has at most coarsenTo vertices, has no edges left or
// a level fails to shrink the graph below minRatio of its size.
func (r *run) coarsen(g *wgraph, coarsenTo int) *wgraph {
	maxvwgt := make([]int, g.ncon)
	for c := range maxvwgt {
		maxvwgt[c] = max(1, int(1.5*float64(g.tvwgt[c])/float64(max(coarsenTo, 1))))
	}
	levels := 1
	for g.nvtxs > coarsenTo && g.nedges > 0 {
		match, nunmatched := r.match(g, maxvwgt)
		cmap, cnvtxs := coarseMap(match)
		cg := g.contract(match, cmap, cnvtxs)
		g.cmap, g.coarser, cg.finer = cmap, cg, g
		levels++
		if r.ctrl.DbgLvl.Has(options.DbgCoarsen) {
			r.log.Debug().Int("level", levels).Int("nvtxs", cg.nvtxs).Int("nedges", cg.nedges/2).
				Int("unmatched", nunmatched).Ints("tvwgt", cg.tvwgt).Msg("coarsen")
		}
		shrunk := float64(cnvtxs) < r.minRatio*float64(g.nvtxs)
		g = cg
		if !shrunk {
			break
		}
	}
	r.levels = max(r.levels, levels)
	return g
}

// fits reports whether v and u can be merged without exceeding maxvwgt.
func (g *wgraph) fits(v, u int, maxvwgt []int) bool {
	for c := 0; c < g.ncon; c++ {
		if g.vwgt[v*g.ncon+c]+g.vwgt[u*g.ncon+c] > maxvwgt[c] {
			return false
		}
	}
	return true
}

// match pairs vertices by random matching (RM) or sorted heavy-edge matching
// (SHEM). Vertices left alone may then be paired through a common neighbor
// unless NO2HOP is set. match[v] == v marks a vertex that stays single.
func (r *run) match(g *wgraph, maxvwgt []int) (match []int, nunmatched int) {
	var (
		n    = g.nvtxs
		perm = r.rng.Perm(n)
	)
	match = make([]int, n)
	for i := range match {
		match[i] = -1
	}
	if r.ctrl.CType == options.CTypeSHEM {
		// Low degree first, random order within a degree
		sort.SliceStable(perm, func(i, j int) bool { return g.degree(perm[i]) < g.degree(perm[j]) })
	}

	var isolated []int
	for _, v := range perm {
		if match[v] != -1 {
			continue
		}
		if g.degree(v) == 0 {
			isolated = append(isolated, v)
			continue
		}
		best, bestw := -1, -1
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			u := g.adjncy[k]
			if match[u] != -1 || !g.fits(v, u, maxvwgt) {
				continue
			}
			if r.ctrl.CType == options.CTypeRM {
				best = u
				break
			}
			if g.adjwgt[k] > bestw {
				best, bestw = u, g.adjwgt[k]
			}
		}
		if best >= 0 {
			match[v], match[best] = best, v
		}
	}

	// Isolated vertices pair among themselves
	for i := 0; i+1 < len(isolated); i += 2 {
		v, u := isolated[i], isolated[i+1]
		if g.fits(v, u, maxvwgt) {
			match[v], match[u] = u, v
		}
	}

	for _, v := range perm {
		if match[v] == -1 {
			nunmatched++
		}
	}
	if !r.ctrl.No2Hop && nunmatched > n/10 {
		nunmatched -= g.match2Hop(perm, match, maxvwgt)
	}
	for v := range match {
		if match[v] == -1 {
			match[v] = v
		}
	}
	return
}

// maxHubDegree bounds the neighbor lists scanned by 2-hop matching.
const maxHubDegree = 64

// match2Hop pairs unmatched vertices that share a neighbor.
func (g *wgraph) match2Hop(perm, match, maxvwgt []int) (paired int) {
	for _, v := range perm {
		if match[v] != -1 {
			continue
		}
	hubs:
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			hub := g.adjncy[k]
			if g.degree(hub) > maxHubDegree {
				continue
			}
			for j := g.xadj[hub]; j < g.xadj[hub+1]; j++ {
				if u := g.adjncy[j]; u != v && match[u] == -1 && g.fits(v, u, maxvwgt) {
					match[v], match[u] = u, v
					paired += 2
					break hubs
				}
			}
		}
	}
	return
}

// coarseMap numbers the coarse vertices in order of their lowest fine vertex.
func coarseMap(match []int) (cmap []int, cnvtxs int) {
	cmap = make([]int, len(match))
	for i := range cmap {
		cmap[i] = -1
	}
	for v, u := range match {
		if cmap[v] == -1 {
			cmap[v], cmap[u] = cnvtxs, cnvtxs
			cnvtxs++
		}
	}
	return
}

// contract collapses matched pairs into the coarse graph, summing vertex
// weights, sizes and the weights of parallel edges.
func (g *wgraph) contract(match, cmap []int, cnvtxs int) *wgraph {
	var (
		ncon = g.ncon
		cg   = &wgraph{
			nvtxs:  cnvtxs,
			ncon:   ncon,
			xadj:   make([]int, cnvtxs+1),
			adjncy: make([]int, 0, g.nedges),
			adjwgt: make([]int, 0, g.nedges),
			vwgt:   make([]int, cnvtxs*ncon),
			vsize:  make([]int, cnvtxs),
			tvwgt:  append([]int(nil), g.tvwgt...),
		}
		htable = make([]int, cnvtxs)
		rep    = make([]int, cnvtxs)
	)
	for i := range htable {
		htable[i] = -1
	}
	for v := g.nvtxs - 1; v >= 0; v-- {
		rep[cmap[v]] = v
	}
	for cv := 0; cv < cnvtxs; cv++ {
		start := len(cg.adjncy)
		v := rep[cv]
		pair := [2]int{v, match[v]}
		for i, fv := range pair {
			if i == 1 && fv == v {
				break
			}
			for c := 0; c < ncon; c++ {
				cg.vwgt[cv*ncon+c] += g.vwgt[fv*ncon+c]
			}
			cg.vsize[cv] += g.vsize[fv]
			for k := g.xadj[fv]; k < g.xadj[fv+1]; k++ {
				cu := cmap[g.adjncy[k]]
				if cu == cv {
					continue
				}
				if h := htable[cu]; h >= 0 {
					cg.adjwgt[h] += g.adjwgt[k]
				} else {
					htable[cu] = len(cg.adjncy)
					cg.adjncy = append(cg.adjncy, cu)
					cg.adjwgt = append(cg.adjwgt, g.adjwgt[k])
				}
			}
		}
		for _, cu := range cg.adjncy[start:] {
			htable[cu] = -1
		}
		cg.xadj[cv+1] = len(cg.adjncy)
	}
	cg.nedges = len(cg.adjncy)
	return cg
}

// project copies the labeling of the coarse graph onto its finer parent.
func (g *wgraph) project(cwhere []int) []int {
	where := make([]int, g.nvtxs)
	for v := range where {
		where[v] = cwhere[g.cmap[v]]
	}
	return where
}
