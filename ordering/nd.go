// Package ordering computes fill reducing orderings of sparse symmetric
// matrices by multilevel nested dissection, and the vertex separators that
// drive it.
package ordering

import (
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/partition"
	"github.com/notargets/gopart/types"
)

// Orderer runs ordering calls on top of a partitioning engine of the same
// index width.
type Orderer[T types.Idx] struct {
	e *partition.Engine[T]
}

func NewOrderer[T types.Idx](e *partition.Engine[T]) *Orderer[T] {
	return &Orderer[T]{e: e}
}

// request is a validated ordering call.
type request struct {
	r       *run
	sg      *sgraph
	outBase int
}

func (o *Orderer[T]) prepare(op string, g *graph.CSR[T], vwgt []T, opts *options.Options,
	bufs ...[]T) (*request, error) {
	if g == nil {
		return nil, types.NewError(op, types.KindInvalidGraph, nil, "no graph given")
	}
	ctrl, err := options.Resolve(op, options.OpOMETIS, opts)
	if err != nil {
		return nil, err
	}
	gn, err := g.Normalize(op, o.e.Logger())
	if err != nil {
		return nil, err
	}
	nv := gn.NumVertices()
	if vwgt != nil {
		if len(vwgt) < nv {
			return nil, types.NewError(op, types.KindPartitionInput, types.Args{"len(vwgt)": len(vwgt), "nv": nv},
				"vwgt holds %d weights, need %d", len(vwgt), nv)
		}
		for v, w := range vwgt[:nv] {
			if w < 0 {
				return nil, types.NewError(op, types.KindPartitionInput, types.Args{"vwgt": w, "index": v},
					"vwgt[%d]=%d is negative", v, w)
			}
		}
	}
	for _, buf := range bufs {
		if !types.BufferFits(buf, nv) {
			return nil, types.NewError(op, types.KindPartitionInput, types.Args{"len(buf)": len(buf), "nv": nv},
				"output buffer holds %d entries, need %d", len(buf), nv)
		}
	}
	if err = o.e.CheckMemory(op, nv, gn.NumEdges(), 1, 2); err != nil {
		return nil, err
	}
	req := &request{
		r:       &run{b: o.e.NewBisector(ctrl), leafSize: o.e.LeafSize()},
		sg:      fromCSR(gn, vwgt),
		outBase: gn.Base(),
	}
	if ctrl.Numbering >= 0 {
		req.outBase = ctrl.Numbering
	}
	return req, nil
}

// writeOrder converts a zero based inverse permutation into perm and iperm
// in the output base.
func writeOrder[T types.Idx](order []int, base int, perm, iperm []T) ([]T, []T) {
	n := len(order)
	perm, iperm = types.OutputBuffer(perm, n), types.OutputBuffer(iperm, n)
	for v, k := range order {
		iperm[v] = T(k + base)
		perm[k] = T(v + base)
	}
	return perm, iperm
}

// NodeND computes a fill reducing ordering of g. On return iperm[i] is the new
// position of vertex i and perm[k] is the vertex placed at position k, both in
// the numbering of g unless NUMBERING says otherwise. vwgt is optional.
func (o *Orderer[T]) NodeND(g *graph.CSR[T], vwgt []T, opts *options.Options,
	perm, iperm []T) (pout, ipout []T, err error) {
	const op = "NodeND"
	err = o.e.Call(types.Serial, op, types.Args{"opts": opts}, func() (int64, error) {
		req, err := o.prepare(op, g, vwgt, opts, perm, iperm)
		if err != nil {
			return 0, err
		}
		order := req.r.nodeND(req.sg)
		pout, ipout = writeOrder(order, req.outBase, perm, iperm)
		return 0, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return
}

// NodeNDP orders g for npes processors: the top log2(npes) levels of the
// dissection are recorded in sizes, which holds the npes subdomain sizes
// followed by the npes-1 separator sizes from the deepest level up to the top
// level separator. npes must be a power of two.
func (o *Orderer[T]) NodeNDP(g *graph.CSR[T], npes int, opts *options.Options,
	perm, iperm []T) (pout, ipout, sizes []T, err error) {
	const op = "NodeNDP"
	err = o.e.Call(types.Serial, op, types.Args{"npes": npes, "opts": opts}, func() (int64, error) {
		if npes < 1 || npes&(npes-1) != 0 {
			return 0, types.NewError(op, types.KindPartitionInput, types.Args{"npes": npes},
				"npes=%d is not a power of two", npes)
		}
		req, err := o.prepare(op, g, nil, opts, perm, iperm)
		if err != nil {
			return 0, err
		}
		order := make([]int, req.sg.nvtxs)
		szs := make([]int, 2*npes-1)
		req.r.dissectP(req.sg, 0, 0, log2(npes), 0, npes, order, szs)
		pout, ipout = writeOrder(order, req.outBase, perm, iperm)
		sizes = types.FromInts[T](szs, nil)
		return 0, nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return
}

// ComputeVertexSeparator splits g into two halves and a separator whose
// removal disconnects them. where holds 0 and 1 for the halves and 2 for the
// separator; sepsize is the separator's vertex weight.
func (o *Orderer[T]) ComputeVertexSeparator(g *graph.CSR[T], opts *options.Options,
	part []T) (sepsize T, where []T, err error) {
	const op = "ComputeVertexSeparator"
	err = o.e.Call(types.Serial, op, types.Args{"opts": opts}, func() (int64, error) {
		req, err := o.prepare(op, g, nil, opts, part)
		if err != nil {
			return 0, err
		}
		s := req.r.separator(req.sg)
		sepsize = T(s.sepWeight())
		where = types.OutputBuffer(part, req.sg.nvtxs)
		for v, w := range s.where {
			where[v] = T(w)
		}
		return int64(sepsize), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return
}

// NodeRefine improves a separator labeling of g in place with FM passes that
// keep both halves within ubfactor of an even split. vwgt is optional.
func (o *Orderer[T]) NodeRefine(g *graph.CSR[T], vwgt, where []T, ubfactor types.Real,
	opts *options.Options) (sepsize T, err error) {
	const op = "NodeRefine"
	err = o.e.Call(types.Serial, op, types.Args{"ubfactor": ubfactor, "opts": opts}, func() (int64, error) {
		req, err := o.prepare(op, g, vwgt, opts)
		if err != nil {
			return 0, err
		}
		if ubfactor < 1 {
			return 0, types.NewError(op, types.KindPartitionInput, types.Args{"ubfactor": ubfactor},
				"ubfactor=%g is below 1", ubfactor)
		}
		if err = CheckSeparator(g, where); err != nil {
			return 0, err
		}
		w := types.ToInts(where[:req.sg.nvtxs])
		s := newSepState(req.sg, w, float64(ubfactor))
		s.refine(req.r.b.Ctrl().NIter, req.r.b.Ctrl().RType == options.RTypeSep1Sided)
		for v, side := range s.where {
			where[v] = T(side)
		}
		sepsize = T(s.sepWeight())
		return int64(sepsize), nil
	})
	return
}

// CheckSeparator verifies that where is a separator labeling of g: every
// vertex is labeled 0, 1 or 2 and no edge joins a vertex labeled 0 to one
// labeled 1.
func CheckSeparator[T types.Idx](g *graph.CSR[T], where []T) error {
	const op = "CheckSeparator"
	nv, base := g.NumVertices(), g.Base()
	if len(where) < nv {
		return types.NewError(op, types.KindPartitionInput, types.Args{"len(where)": len(where), "nv": nv},
			"separator labeling shorter than the graph")
	}
	for v := 0; v < nv; v++ {
		if where[v] < 0 || where[v] > 2 {
			return types.NewError(op, types.KindPartitionInput, types.Args{"v": v, "where": where[v]},
				"where[%d]=%d is not 0, 1 or 2", v, where[v])
		}
	}
	for v := 0; v < nv; v++ {
		if where[v] == 2 {
			continue
		}
		for _, u := range g.Neighbors(v) {
			if w := where[int(u)-base]; w != 2 && w != where[v] {
				return types.NewError(op, types.KindPartitionInput, types.Args{"v": v, "u": int(u) - base},
					"edge %d-%d joins both halves", v, int(u)-base)
			}
		}
	}
	return nil
}

// run is the state of one ordering call.
type run struct {
	b        *partition.Bisector
	leafSize int
}

// nodeND returns the new position of every vertex of g: high degree vertices
// are pruned first and ordered last, the rest is compressed when that pays
// off and dissected.
func (r *run) nodeND(g *sgraph) []int {
	var (
		ctrl   = r.b.Ctrl()
		iperm  = make([]int, g.nvtxs)
		work   = g
		pruned []int
	)
	if ctrl.PFactor > 0 {
		keep, p := g.prune(ctrl.PFactor)
		if len(p) > 0 && len(p) < g.nvtxs {
			work, pruned = g.induce(keep), p
			l := r.b.Logger()
			l.Debug().Int("pruned", len(p)).Msg("dense vertices ordered last")
		}
	}

	if cg, members := work.compressed(ctrl.Compress); cg != nil {
		cperm := make([]int, cg.nvtxs)
		r.dissect(cg, 0, cperm)
		byPos := make([]int, cg.nvtxs)
		for s, k := range cperm {
			byPos[k] = s
		}
		pos := 0
		for _, s := range byPos {
			for _, v := range members[s] {
				iperm[work.label[v]] = pos
				pos++
			}
		}
	} else {
		r.dissect(work, 0, iperm)
	}

	for k, v := range pruned {
		iperm[g.label[v]] = work.nvtxs + k
	}
	return iperm
}

func (g *sgraph) compressed(enabled bool) (*sgraph, [][]int) {
	if !enabled || g.nvtxs == 0 {
		return nil, nil
	}
	return g.compress()
}

// dissect orders g into positions [first, first+g.nvtxs), one connected
// component at a time when CCORDER is set.
func (r *run) dissect(g *sgraph, first int, iperm []int) {
	if !r.b.Ctrl().CCOrder {
		r.order(g, first, iperm)
		return
	}
	comp, ncomp := g.components()
	if ncomp == 1 {
		r.order(g, first, iperm)
		return
	}
	keep := make([]bool, g.nvtxs)
	for c := 0; c < ncomp; c++ {
		for v := range keep {
			keep[v] = comp[v] == c
		}
		sub := g.induce(keep)
		r.order(sub, first, iperm)
		first += sub.nvtxs
	}
}

// order numbers g by nested dissection: the first half, then the second, then
// the separator. Small graphs are ordered by minimum degree.
func (r *run) order(g *sgraph, first int, iperm []int) {
	switch {
	case g.nvtxs == 0:
		return
	case g.nedges() == 0:
		for v, id := range g.label {
			iperm[id] = first + v
		}
		return
	case g.nvtxs <= max(r.leafSize, 2):
		r.leaf(g, first, iperm)
		return
	}
	s := r.separator(g)
	left, right := g.side(s.where, 0), g.side(s.where, 1)
	if left.nvtxs == g.nvtxs || right.nvtxs == g.nvtxs {
		r.leaf(g, first, iperm)
		return
	}
	r.order(left, first, iperm)
	r.order(right, first+left.nvtxs, iperm)
	r.numberSeparator(g, s.where, first+left.nvtxs+right.nvtxs, iperm)
}

func (r *run) leaf(g *sgraph, first int, iperm []int) {
	for k, v := range g.minDegreeOrder() {
		iperm[g.label[v]] = first + k
	}
}

func (r *run) numberSeparator(g *sgraph, where []int, first int, iperm []int) (n int) {
	for v, w := range where {
		if w == 2 {
			iperm[g.label[v]] = first + n
			n++
		}
	}
	return
}

// dissectP is the dissection of NodeNDP. Subtree idx of the given level is
// dissected further until level reaches nlevels, where it becomes subdomain
// idx. The separator of subtree idx at level l is recorded at sizes[npes +
// npes - 2^(l+1) + idx].
func (r *run) dissectP(g *sgraph, first, level, nlevels, idx, npes int, iperm, sizes []int) {
	if level == nlevels {
		sizes[idx] = g.nvtxs
		r.dissect(g, first, iperm)
		return
	}
	where := r.separator(g).where
	left, right := g.side(where, 0), g.side(where, 1)
	r.dissectP(left, first, level+1, nlevels, 2*idx, npes, iperm, sizes)
	r.dissectP(right, first+left.nvtxs, level+1, nlevels, 2*idx+1, npes, iperm, sizes)
	sizes[2*npes-(2<<level)+idx] = r.numberSeparator(g, where, first+left.nvtxs+right.nvtxs, iperm)
}

func log2(n int) (l int) {
	for n > 1 {
		n >>= 1
		l++
	}
	return
}
