package dist

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/notargets/gopart/types"
)

// Graph is one rank's share of a distributed graph. Xadj is local and starts
// at the numbering base; Adjncy holds global vertex ids in the same base.
// Which weights are read is decided by the wgtflag of the call.
type Graph[T types.Idx] struct {
	Xadj, Adjncy []T
	Vwgt         []T // ncon per local vertex
	Adjwgt       []T
	Vsize        []T
}

// dgraph is the working form of a rank's share: zero based global ids and
// native ints. Local vertex i is global vertex dist.First(rank)+i.
type dgraph struct {
	rank   int
	dist   *Distribution
	nvtxs  int
	ncon   int
	xadj   []int
	adjncy []int // global ids
	adjwgt []int
	vwgt   []int // nvtxs*ncon
	vsize  []int

	cmap    []int // local vertex to global coarse vertex
	coarser *dgraph
}

func (g *dgraph) first() int { return g.dist.First(g.rank) }

func (g *dgraph) local(u int) (int, bool) {
	l := u - g.first()
	return l, l >= 0 && l < g.nvtxs
}

// toWorking validates a rank's share against vtxdist and converts it. Errors
// are local to the rank; the caller agrees on them collectively.
func toWorking[T types.Idx](op string, rank int, dist *Distribution, base int, g *Graph[T],
	wgtflag, ncon int, logger zerolog.Logger) (*dgraph, error) {
	if g == nil {
		return nil, types.NewError(op, types.KindInvalidGraph, types.Args{"rank": rank}, "no graph given")
	}
	var (
		nv   = dist.Count(rank)
		args = types.Args{"rank": rank, "nlocal": nv, "len(xadj)": len(g.Xadj)}
	)
	if len(g.Xadj) != nv+1 {
		return nil, types.NewError(op, types.KindInvalidGraph, args,
			"xadj holds %d offsets, vtxdist assigns %d vertices", len(g.Xadj), nv)
	}
	if int(g.Xadj[0]) != base {
		args["xadj[0]"] = g.Xadj[0]
		return nil, types.NewError(op, types.KindInvalidGraph, args,
			"xadj starts at %d, vtxdist numbering is %d", g.Xadj[0], base)
	}
	for v := 0; v < nv; v++ {
		if g.Xadj[v+1] < g.Xadj[v] {
			args["v"] = v
			return nil, types.NewError(op, types.KindInvalidGraph, args, "xadj decreases at vertex %d", v)
		}
	}
	declared := int(g.Xadj[nv]) - base
	if len(g.Adjncy) < declared {
		args["declared"] = declared
		return nil, types.NewError(op, types.KindInvalidGraph, args,
			"adjncy holds %d entries, xadj declares %d", len(g.Adjncy), declared)
	}
	if len(g.Adjncy) > declared {
		logger.Warn().Str("op", op).Int("rank", rank).Int("declared", declared).Int("actual", len(g.Adjncy)).
			Msg("adjncy longer than declared by xadj, using the declared count")
	}
	if ncon < 1 {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"ncon": ncon},
			"ncon=%d, at least one balance constraint is required", ncon)
	}
	if wgtflag < 0 || wgtflag > 3 {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"wgtflag": wgtflag},
			"wgtflag=%d outside [0,3]", wgtflag)
	}
	useV, useE := wgtflag&2 != 0, wgtflag&1 != 0
	if useV && len(g.Vwgt) < nv*ncon {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"len(vwgt)": len(g.Vwgt)},
			"vwgt holds %d weights, need %d", len(g.Vwgt), nv*ncon)
	}
	if useE && len(g.Adjwgt) < declared {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"len(adjwgt)": len(g.Adjwgt)},
			"adjwgt holds %d weights, need %d", len(g.Adjwgt), declared)
	}
	if g.Vsize != nil && len(g.Vsize) < nv {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"len(vsize)": len(g.Vsize)},
			"vsize holds %d entries, need %d", len(g.Vsize), nv)
	}

	dg := &dgraph{
		rank:   rank,
		dist:   dist,
		nvtxs:  nv,
		ncon:   ncon,
		xadj:   make([]int, nv+1),
		adjncy: make([]int, 0, declared),
		adjwgt: make([]int, 0, declared),
		vwgt:   make([]int, nv*ncon),
		vsize:  make([]int, nv),
	}
	total := dist.Total()
	for v := 0; v < nv; v++ {
		gid := dist.First(rank) + v
		for j := int(g.Xadj[v]) - base; j < int(g.Xadj[v+1])-base; j++ {
			u := int(g.Adjncy[j]) - base
			if u < 0 || u >= total {
				return nil, types.NewError(op, types.KindInvalidGraph, types.Args{"rank": rank, "index": j},
					"adjncy[%d]=%d outside the global range", j, g.Adjncy[j])
			}
			if u == gid {
				continue
			}
			w := 1
			if useE {
				if w = int(g.Adjwgt[j]); w < 0 {
					return nil, types.NewError(op, types.KindPartitionInput, types.Args{"index": j},
						"adjwgt[%d]=%d is negative", j, w)
				}
			}
			dg.adjncy = append(dg.adjncy, u)
			dg.adjwgt = append(dg.adjwgt, w)
		}
		dg.xadj[v+1] = len(dg.adjncy)
		for c := 0; c < ncon; c++ {
			w := 1
			if useV {
				if w = int(g.Vwgt[v*ncon+c]); w < 0 {
					return nil, types.NewError(op, types.KindPartitionInput, types.Args{"index": v*ncon + c},
						"vwgt[%d]=%d is negative", v*ncon+c, w)
				}
			}
			dg.vwgt[v*ncon+c] = w
		}
		dg.vsize[v] = 1
		if g.Vsize != nil {
			dg.vsize[v] = int(g.Vsize[v])
		}
	}
	return dg, nil
}

// neighborRanks lists, per remote rank, the local vertices adjacent to a
// vertex it owns.
func (g *dgraph) neighborRanks() map[int][]int {
	out := make(map[int][]int)
	last := make(map[int]int)
	for v := 0; v < g.nvtxs; v++ {
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			if _, ok := g.local(u); ok {
				continue
			}
			q := g.dist.Owner(u)
			if l, seen := last[q]; seen && l == v {
				continue
			}
			last[q] = v
			out[q] = append(out[q], v)
		}
	}
	return out
}

// pair is a global id and a value attached to it.
type pair struct {
	ID, Val int
}

// pushGhosts sends vals of local boundary vertices to the ranks that see them
// as ghosts and returns the values of this rank's ghosts. Adjacency must be
// symmetric across ranks.
func (g *dgraph) pushGhosts(c Comm, vals []int) (map[int]int, error) {
	msgs := make(map[int][]pair)
	for q, vs := range g.neighborRanks() {
		for _, v := range vs {
			msgs[q] = append(msgs[q], pair{ID: g.first() + v, Val: vals[v]})
		}
	}
	in, err := Exchange(c, msgs)
	if err != nil {
		return nil, err
	}
	ghosts := make(map[int]int)
	for _, batch := range in {
		for _, p := range batch {
			ghosts[p.ID] = p.Val
		}
	}
	return ghosts, nil
}

// value returns vals of a local vertex or the ghost value of a remote one.
func (g *dgraph) value(u int, vals []int, ghosts map[int]int) int {
	if l, ok := g.local(u); ok {
		return vals[l]
	}
	return ghosts[u]
}

// totals returns the global vertex weight per constraint and the heaviest
// vertex weight.
func (g *dgraph) totals(c Comm) (tvwgt []int, maxv int, err error) {
	sums := make([]int64, g.ncon+1)
	for v := 0; v < g.nvtxs; v++ {
		for k := 0; k < g.ncon; k++ {
			sums[k] += int64(g.vwgt[v*g.ncon+k])
			sums[g.ncon] = max(sums[g.ncon], int64(g.vwgt[v*g.ncon+k]))
		}
	}
	tot, err := AllReduceInt64(c, sums[:g.ncon], OpSum)
	if err != nil {
		return nil, 0, err
	}
	mx, err := AllReduceInt64(c, sums[g.ncon:], OpMax)
	if err != nil {
		return nil, 0, err
	}
	tvwgt = make([]int, g.ncon)
	for k, t := range tot {
		tvwgt[k] = int(t)
	}
	return tvwgt, int(mx[0]), nil
}

// edgeCut is the global weight of the edges between parts.
func (g *dgraph) edgeCut(c Comm, where []int, ghosts map[int]int) (int, error) {
	var cut int64
	for v := 0; v < g.nvtxs; v++ {
		for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
			if g.value(g.adjncy[j], where, ghosts) != where[v] {
				cut += int64(g.adjwgt[j])
			}
		}
	}
	sum, err := AllReduceInt64(c, []int64{cut}, OpSum)
	if err != nil {
		return 0, err
	}
	return int(sum[0] / 2), nil
}

// partWeights is the global weight of every part, nparts*ncon values.
func (g *dgraph) partWeights(c Comm, where []int, nparts int) ([]int, error) {
	local := make([]int64, nparts*g.ncon)
	for v := 0; v < g.nvtxs; v++ {
		for k := 0; k < g.ncon; k++ {
			local[where[v]*g.ncon+k] += int64(g.vwgt[v*g.ncon+k])
		}
	}
	sum, err := AllReduceInt64(c, local, OpSum)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(sum))
	for i, s := range sum {
		out[i] = int(s)
	}
	return out, nil
}

// maxPartWeights is the per part weight bound, with the same slack for tiny
// targets as the serial engine.
func maxPartWeights(tvwgt []int, maxv int, tpwgts, ub []float64, nparts int) []int {
	ncon := len(tvwgt)
	out := make([]int, nparts*ncon)
	for p := 0; p < nparts; p++ {
		for k := 0; k < ncon; k++ {
			target := tpwgts[p*ncon+k] * float64(tvwgt[k])
			out[p*ncon+k] = max(int(ub[k]*target), int(math.Ceil(target))+maxv-1)
		}
	}
	return out
}
