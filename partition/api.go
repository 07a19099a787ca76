package partition

import (
	"math"

	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/mesh"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

// request is a validated partitioning call.
type request[T types.Idx] struct {
	ctrl    *options.Ctrl
	g       *graph.CSR[T]
	wg      *wgraph
	nparts  int
	tpwgts  []float64 // nparts*ncon
	ub      []float64 // ncon
	outBase int
}

// prepare validates every argument of a partitioning call before any work is
// done.
func (e *Engine[T]) prepare(op string, opType options.OpType, g *graph.CSR[T], nparts int,
	tpwgts, ubvec []types.Real, opts *options.Options, part []T) (*request[T], error) {
	if g == nil {
		return nil, types.NewError(op, types.KindInvalidGraph, nil, "no graph given")
	}
	ctrl, err := options.Resolve(op, opType, opts)
	if err != nil {
		return nil, err
	}
	gn, err := g.Normalize(op, e.log)
	if err != nil {
		return nil, err
	}
	var (
		nv   = gn.NumVertices()
		ncon = gn.NumConstraints()
		args = types.Args{"nv": nv, "ncon": ncon, "nparts": nparts}
	)
	if nparts < 1 {
		return nil, types.NewError(op, types.KindPartitionInput, args, "nparts=%d must be positive", nparts)
	}
	if !types.BufferFits(part, nv) {
		args["len(part)"] = len(part)
		return nil, types.NewError(op, types.KindPartitionInput, args,
			"part buffer holds %d entries, need %d", len(part), nv)
	}
	req := &request[T]{ctrl: ctrl, g: gn, nparts: nparts, outBase: gn.Base()}
	if ctrl.Numbering >= 0 {
		req.outBase = ctrl.Numbering
	}

	req.tpwgts = make([]float64, nparts*ncon)
	if tpwgts == nil {
		for i := range req.tpwgts {
			req.tpwgts[i] = 1 / float64(nparts)
		}
	} else {
		if len(tpwgts) < nparts*ncon {
			args["len(tpwgts)"] = len(tpwgts)
			return nil, types.NewError(op, types.KindPartitionInput, args,
				"tpwgts holds %d entries, need nparts*ncon=%d", len(tpwgts), nparts*ncon)
		}
		for c := 0; c < ncon; c++ {
			var sum float64
			for p := 0; p < nparts; p++ {
				w := float64(tpwgts[p*ncon+c])
				if w < 0 {
					return nil, types.NewError(op, types.KindPartitionInput, args,
						"tpwgts[%d]=%g is negative", p*ncon+c, w)
				}
				req.tpwgts[p*ncon+c] = w
				sum += w
			}
			if math.Abs(sum-1) > 1e-3 {
				return nil, types.NewError(op, types.KindPartitionInput, args,
					"target weights of constraint %d sum to %g, not 1", c, sum)
			}
		}
	}

	req.ub = make([]float64, ncon)
	if ubvec == nil {
		for c := range req.ub {
			req.ub[c] = float64(ctrl.UBFactor())
		}
	} else {
		if len(ubvec) < ncon {
			args["len(ubvec)"] = len(ubvec)
			return nil, types.NewError(op, types.KindPartitionInput, args,
				"ubvec holds %d entries, need ncon=%d", len(ubvec), ncon)
		}
		for c := range req.ub {
			if ubvec[c] < 1 {
				return nil, types.NewError(op, types.KindPartitionInput, args,
					"ubvec[%d]=%g is below 1", c, ubvec[c])
			}
			req.ub[c] = float64(ubvec[c])
		}
	}

	if err = e.CheckMemory(op, nv, gn.NumEdges(), ncon, nparts); err != nil {
		return nil, err
	}
	req.wg = fromCSR(gn)
	return req, nil
}

// writePart converts a zero based labeling into the output buffer.
func writePart[T types.Idx](where []int, base int, buf []T) []T {
	out := types.OutputBuffer(buf, len(where))
	for i, p := range where {
		out[i] = T(p + base)
	}
	return out
}

// partGraph is the body shared by the graph and mesh entry points.
func (e *Engine[T]) partGraph(op string, opType options.OpType, g *graph.CSR[T], nparts int,
	tpwgts, ubvec []types.Real, opts *options.Options, part []T) (int, []T, error) {
	req, err := e.prepare(op, opType, g, nparts, tpwgts, ubvec, opts, part)
	if err != nil {
		return 0, nil, err
	}
	var (
		r     = e.newRun(req.ctrl)
		wg    = req.wg
		where []int
		obj   int
	)
	switch {
	case nparts == 1:
		where = make([]int, wg.nvtxs)
	case opType == options.OpPMETIS:
		where = make([]int, wg.nvtxs)
		r.recursiveBisect(wg, nparts, req.tpwgts, req.ub, 0, where)
	default:
		where = r.kwayPartition(wg, nparts, req.tpwgts, req.ub)
	}
	if req.ctrl.ObjType == options.ObjTypeVol {
		obj = wg.commVolume(where, nparts)
	} else {
		obj = wg.edgeCut(where)
	}
	e.metrics.Levels(op, r.levels)
	if req.ctrl.DbgLvl.Has(options.DbgInfo) {
		e.log.Info().Str("op", op).Int("nvtxs", wg.nvtxs).Int("nparts", nparts).Int("objval", obj).
			Int("levels", r.levels).Ints("pwgts", wg.partWeights(where, nparts)).Msg("partitioned")
	}
	return obj, writePart(where, req.outBase, part), nil
}

// PartGraphRecursive partitions g into nparts by multilevel recursive
// bisection and returns the edge-cut. tpwgts (nparts*ncon fractions) and ubvec
// (ncon tolerances) are optional. When part is given and large enough it
// receives the result.
func (e *Engine[T]) PartGraphRecursive(g *graph.CSR[T], nparts int, tpwgts, ubvec []types.Real,
	opts *options.Options, part []T) (objval T, out []T, err error) {
	const op = "PartGraphRecursive"
	err = e.Call(types.Serial, op, types.Args{"nparts": nparts, "opts": opts}, func() (int64, error) {
		obj, p, err := e.partGraph(op, options.OpPMETIS, g, nparts, tpwgts, ubvec, opts, part)
		objval, out = T(obj), p
		return int64(obj), err
	})
	if err != nil {
		return 0, nil, err
	}
	return
}

// PartGraphKway partitions g into nparts with the multilevel k-way scheme and
// returns the edge-cut or the communication volume, following OBJTYPE.
func (e *Engine[T]) PartGraphKway(g *graph.CSR[T], nparts int, tpwgts, ubvec []types.Real,
	opts *options.Options, part []T) (objval T, out []T, err error) {
	const op = "PartGraphKway"
	err = e.Call(types.Serial, op, types.Args{"nparts": nparts, "opts": opts}, func() (int64, error) {
		obj, p, err := e.partGraph(op, options.OpKMETIS, g, nparts, tpwgts, ubvec, opts, part)
		objval, out = T(obj), p
		return int64(obj), err
	})
	if err != nil {
		return 0, nil, err
	}
	return
}

// meshScheme picks the graph partitioner of a mesh call from PTYPE and the
// numbering base of the outputs.
func meshScheme[T types.Idx](op string, m *mesh.Mesh[T], opts *options.Options) (*options.Ctrl, options.OpType, int, error) {
	ctrl, err := options.Resolve(op, options.OpKMETIS, opts)
	if err != nil {
		return nil, 0, 0, err
	}
	base := m.Base()
	if ctrl.Numbering >= 0 {
		base = ctrl.Numbering
	}
	if ctrl.PType == options.PTypeRB {
		return ctrl, options.OpPMETIS, base, nil
	}
	return ctrl, options.OpKMETIS, base, nil
}

// PartMeshDual partitions the elements of m through its dual graph and derives
// a node partition in which every node joins the part holding most of its
// elements. ncommon <= 0 falls back to the NCOMMON option.
func (e *Engine[T]) PartMeshDual(m *mesh.Mesh[T], nparts, ncommon int, vwgt, vsize []T,
	tpwgts []types.Real, opts *options.Options, epart, npart []T) (objval T, eout, nout []T, err error) {
	const op = "PartMeshDual"
	err = e.Call(types.Serial, op, types.Args{"nparts": nparts, "ncommon": ncommon, "opts": opts}, func() (int64, error) {
		if m == nil {
			return 0, types.NewError(op, types.KindInvalidMesh, nil, "no mesh given")
		}
		if !types.BufferFits(npart, m.Nv) {
			return 0, types.NewError(op, types.KindPartitionInput, types.Args{"len(npart)": len(npart), "nn": m.Nv},
				"npart buffer holds %d entries, need %d", len(npart), m.Nv)
		}
		ctrl, scheme, outBase, err := meshScheme(op, m, opts)
		if err != nil {
			return 0, err
		}
		if ncommon <= 0 {
			ncommon = ctrl.NCommon
		}
		dual, err := m.ToDual(ncommon)
		if err != nil {
			return 0, err
		}
		if vwgt == nil && m.Elmwgt != nil {
			vwgt = m.Elmwgt
		}
		dual.Vwgt, dual.Vsize = vwgt, vsize
		obj, ep, err := e.partGraph(op, scheme, dual, nparts, tpwgts, nil, opts, epart)
		if err != nil {
			return 0, err
		}
		objval, eout = T(obj), ep
		nout = nodesFromElements(m, ep, nparts, outBase, npart)
		return int64(obj), nil
	})
	if err != nil {
		return 0, nil, nil, err
	}
	return
}

// PartMeshNodal partitions the nodes of m through its nodal graph and gives
// every element the part holding most of its nodes.
func (e *Engine[T]) PartMeshNodal(m *mesh.Mesh[T], nparts int, vwgt, vsize []T,
	tpwgts []types.Real, opts *options.Options, epart, npart []T) (objval T, eout, nout []T, err error) {
	const op = "PartMeshNodal"
	err = e.Call(types.Serial, op, types.Args{"nparts": nparts, "opts": opts}, func() (int64, error) {
		if m == nil {
			return 0, types.NewError(op, types.KindInvalidMesh, nil, "no mesh given")
		}
		if !types.BufferFits(epart, m.NumElements()) {
			return 0, types.NewError(op, types.KindPartitionInput,
				types.Args{"len(epart)": len(epart), "ne": m.NumElements()},
				"epart buffer holds %d entries, need %d", len(epart), m.NumElements())
		}
		_, scheme, outBase, err := meshScheme(op, m, opts)
		if err != nil {
			return 0, err
		}
		nodal, err := m.ToNodal()
		if err != nil {
			return 0, err
		}
		nodal.Vwgt, nodal.Vsize = vwgt, vsize
		obj, np, err := e.partGraph(op, scheme, nodal, nparts, tpwgts, nil, opts, npart)
		if err != nil {
			return 0, err
		}
		objval, nout = T(obj), np
		eout = elementsFromNodes(m, np, nparts, outBase, epart)
		return int64(obj), nil
	})
	if err != nil {
		return 0, nil, nil, err
	}
	return
}

// nodesFromElements labels every node with the most frequent part among its
// elements, the lowest part on ties. Nodes in no element join the lowest part.
func nodesFromElements[T types.Idx](m *mesh.Mesh[T], epart []T, nparts, partBase int, buf []T) []T {
	var (
		base   = m.Base()
		pbase  = T(partBase)
		counts = make([]int32, m.Nv*nparts)
	)
	for e := 0; e < m.NumElements(); e++ {
		p := int(epart[e] - pbase)
		for _, n := range m.Element(e) {
			counts[(int(n)-base)*nparts+p]++
		}
	}
	out := types.OutputBuffer(buf, m.Nv)
	for n := 0; n < m.Nv; n++ {
		best := 0
		for p := 1; p < nparts; p++ {
			if counts[n*nparts+p] > counts[n*nparts+best] {
				best = p
			}
		}
		out[n] = T(best) + pbase
	}
	return out
}

// elementsFromNodes labels every element with the most frequent part among its
// nodes, the lowest part on ties.
func elementsFromNodes[T types.Idx](m *mesh.Mesh[T], npart []T, nparts, partBase int, buf []T) []T {
	var (
		base   = m.Base()
		pbase  = T(partBase)
		counts = make([]int, nparts)
		out    = types.OutputBuffer(buf, m.NumElements())
	)
	for e := range out {
		for p := range counts {
			counts[p] = 0
		}
		for _, n := range m.Element(e) {
			counts[int(npart[int(n)-base]-pbase)]++
		}
		best := 0
		for p := 1; p < nparts; p++ {
			if counts[p] > counts[best] {
				best = p
			}
		}
		out[e] = T(best) + pbase
	}
	return out
}
