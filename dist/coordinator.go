// Package dist partitions and orders graphs held by a group of ranks, each
// owning a contiguous block of vertices.
package dist

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog"

	"github.com/notargets/gopart/config"
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/ordering"
	"github.com/notargets/gopart/partition"
	"github.com/notargets/gopart/types"
)

// Coordinator runs the distributed operations. Every rank of a group calls
// the same method with its own share of the input; the coarsest problems are
// solved by the serial engine on rank 0.
type Coordinator[T types.Idx] struct {
	e         *partition.Engine[T]
	orderer   *ordering.Orderer[T]
	log       zerolog.Logger
	coarsenTo int
	minRatio  float64
	passes    int
	check     bool
}

// NewCoordinator copies the distributed settings out of cfg, nil meaning the
// defaults.
func NewCoordinator[T types.Idx](e *partition.Engine[T], cfg *config.Config) *Coordinator[T] {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Coordinator[T]{
		e:         e,
		orderer:   ordering.NewOrderer(e),
		log:       e.Logger().With().Str("component", "dist").Logger(),
		coarsenTo: max(cfg.CoarsenTo(), 2),
		minRatio:  cfg.MinCoarsenRatio(),
		passes:    max(cfg.RefinePasses(), 1),
		check:     cfg.CheckConsistency(),
	}
}

// call runs fn through the engine. A failure inside fn that the other ranks
// cannot know about tears the group down.
func (co *Coordinator[T]) call(c Comm, op string, args types.Args, fn func() (int64, error)) error {
	args["rank"] = c.Rank()
	err := co.e.Call(types.Distributed, op, args, fn)
	if kind, _ := types.KindOf(err); err != nil && kind == types.KindPartitionEngine {
		c.Abort(err)
	}
	return err
}

func (co *Coordinator[T]) newRun(c Comm, ctrl *options.ParCtrl) *drun {
	return &drun{
		c:         c,
		ctrl:      ctrl,
		rng:       rand.New(rand.NewPCG(uint64(ctrl.Seed), uint64(c.Rank())+1)),
		log:       co.log.With().Int("rank", c.Rank()).Logger(),
		coarsenTo: co.coarsenTo,
		minRatio:  co.minRatio,
		passes:    co.passes,
	}
}

// fingerprint is what every rank must agree on before a graph call.
type fingerprint struct {
	Base, WgtFlag, Ncon, Nparts int
	Vtxdist                     []int
}

// resolve reads the options and runs the consistency check when any rank asks
// for it.
func (co *Coordinator[T]) resolve(op string, c Comm, opts *options.ParOptions, fp fingerprint) (*options.ParCtrl, error) {
	ctrl, err := opts.Resolve(op)
	if err = agree(c, err); err != nil {
		return nil, err
	}
	want := int64(0)
	if co.check || ctrl.DbgLvl.Has(options.DbgCheck) {
		want = 1
	}
	votes, err := AllReduceInt64(c, []int64{want}, OpMax)
	if err != nil {
		return nil, err
	}
	if votes[0] == 1 {
		if err = checkConsistency(op, c, fp); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

// checkConsistency compares the scalar arguments of every rank with rank 0.
// All ranks reach the same verdict.
func checkConsistency(op string, c Comm, fp fingerprint) error {
	all, err := AllGather(c, fp)
	if err != nil {
		return err
	}
	ref := all[0]
	for p, f := range all[1:] {
		var field string
		switch {
		case f.Base != ref.Base:
			field = "numbering"
		case f.WgtFlag != ref.WgtFlag:
			field = "wgtflag"
		case f.Ncon != ref.Ncon:
			field = "ncon"
		case f.Nparts != ref.Nparts:
			field = "nparts"
		case !slices.Equal(f.Vtxdist, ref.Vtxdist):
			field = "vtxdist"
		default:
			continue
		}
		return types.NewError(op, types.KindGroupConsistency,
			types.Args{"rank": p + 1, "field": field, "rank0": ref, "got": f},
			"rank %d disagrees with rank 0 on %s", p+1, field)
	}
	return nil
}

func vtxdistInts[T types.Idx](vtxdist []T) []int {
	out := types.ToInts(vtxdist)
	if len(out) == 0 {
		return out
	}
	b := out[0]
	for i := range out {
		out[i] -= b
	}
	return out
}

func baseOf[T types.Idx](op string, vtxdist []T) (int, error) {
	if len(vtxdist) == 0 {
		return 0, types.NewError(op, types.KindPartitionInput, nil, "empty distribution array")
	}
	if base := types.Numbering(vtxdist[0]); !base.Valid() {
		return 0, types.NewError(op, types.KindPartitionInput, types.Args{"vtxdist[0]": vtxdist[0]},
			"distribution array starts at %d, numbering must be 0 or 1", vtxdist[0])
	}
	return int(vtxdist[0]), nil
}

// defaultUB is the load imbalance tolerance of a constraint when ubvec is nil.
const defaultUB = 1.05

// targets validates the target part weights and imbalance tolerances.
func targets(op string, nparts, ncon int, tpwgts, ubvec []types.Real) (tp, ub []float64, err error) {
	args := types.Args{"nparts": nparts, "ncon": ncon}
	if nparts < 1 {
		return nil, nil, types.NewError(op, types.KindPartitionInput, args, "nparts=%d must be positive", nparts)
	}
	tp = make([]float64, nparts*ncon)
	if tpwgts == nil {
		for i := range tp {
			tp[i] = 1 / float64(nparts)
		}
	} else {
		if len(tpwgts) < nparts*ncon {
			args["len(tpwgts)"] = len(tpwgts)
			return nil, nil, types.NewError(op, types.KindPartitionInput, args,
				"tpwgts holds %d entries, need nparts*ncon=%d", len(tpwgts), nparts*ncon)
		}
		for k := 0; k < ncon; k++ {
			var sum float64
			for p := 0; p < nparts; p++ {
				if tp[p*ncon+k] = float64(tpwgts[p*ncon+k]); tp[p*ncon+k] < 0 {
					return nil, nil, types.NewError(op, types.KindPartitionInput, args,
						"tpwgts[%d] is negative", p*ncon+k)
				}
				sum += tp[p*ncon+k]
			}
			if math.Abs(sum-1) > 1e-3 {
				return nil, nil, types.NewError(op, types.KindPartitionInput, args,
					"target weights of constraint %d sum to %g, not 1", k, sum)
			}
		}
	}
	ub = make([]float64, ncon)
	for k := range ub {
		ub[k] = defaultUB
		if ubvec == nil {
			continue
		}
		if len(ubvec) < ncon {
			args["len(ubvec)"] = len(ubvec)
			return nil, nil, types.NewError(op, types.KindPartitionInput, args,
				"ubvec holds %d entries, need ncon=%d", len(ubvec), ncon)
		}
		if ub[k] = float64(ubvec[k]); ub[k] < 1 {
			return nil, nil, types.NewError(op, types.KindPartitionInput, args, "ubvec[%d]=%g is below 1", k, ub[k])
		}
	}
	return tp, ub, nil
}

// job is a validated distributed graph call.
type job struct {
	r      *drun
	g      *dgraph
	base   int
	nparts int
	tpwgts []float64
	ub     []float64
}

// prepare validates a distributed graph call on every rank. Local failures
// are agreed on so every rank returns the same error.
func (co *Coordinator[T]) prepare(op string, c Comm, vtxdist []T, g *Graph[T], wgtflag, ncon, nparts int,
	tpwgts, ubvec []types.Real, opts *options.ParOptions, part []T) (*job, error) {
	base, berr := baseOf(op, vtxdist)
	fp := fingerprint{Base: base, WgtFlag: wgtflag, Ncon: ncon, Nparts: nparts, Vtxdist: vtxdistInts(vtxdist)}
	ctrl, err := co.resolve(op, c, opts, fp)
	if err != nil {
		return nil, err
	}
	j := &job{r: co.newRun(c, ctrl), base: base, nparts: nparts}
	err = func() error {
		if berr != nil {
			return berr
		}
		dist, err := NewDistribution(op, vtxdist, c.Size())
		if err != nil {
			return err
		}
		if j.tpwgts, j.ub, err = targets(op, nparts, max(ncon, 1), tpwgts, ubvec); err != nil {
			return err
		}
		if j.g, err = toWorking(op, c.Rank(), dist, base, g, wgtflag, ncon, co.log); err != nil {
			return err
		}
		if !types.BufferFits(part, j.g.nvtxs) {
			return types.NewError(op, types.KindPartitionInput, types.Args{"len(part)": len(part)},
				"part buffer holds %d entries, need %d", len(part), j.g.nvtxs)
		}
		return co.e.CheckMemory(op, j.g.nvtxs, len(j.g.adjncy), ncon, nparts)
	}()
	if err = agree(c, err); err != nil {
		return nil, err
	}
	return j, nil
}

// multilevel coarsens, partitions the coarsest level on rank 0 and refines
// while projecting back.
func (co *Coordinator[T]) multilevel(j *job) ([]int, error) {
	r := j.r
	coarsest, err := r.coarsen(j.g, j.nparts)
	if err != nil {
		return nil, err
	}
	where, err := co.initial(r, coarsest, j.nparts, j.tpwgts, j.ub)
	if err != nil {
		return nil, err
	}
	var hierarchy []*dgraph
	for g := j.g; g != coarsest; g = g.coarser {
		hierarchy = append(hierarchy, g)
	}
	if err = r.refine(coarsest, where, j.nparts, j.tpwgts, j.ub); err != nil {
		return nil, err
	}
	for i := len(hierarchy) - 1; i >= 0; i-- {
		if where, err = r.project(hierarchy[i], where); err != nil {
			return nil, err
		}
		if err = r.refine(hierarchy[i], where, j.nparts, j.tpwgts, j.ub); err != nil {
			return nil, err
		}
	}
	return where, nil
}

// share is one rank's part of a gathered graph.
type share struct {
	Xadj, Adjncy, Adjwgt, Vwgt, Vsize []int
}

func (g *dgraph) snapshot() share {
	return share{Xadj: g.xadj, Adjncy: g.adjncy, Adjwgt: g.adjwgt, Vwgt: g.vwgt, Vsize: g.vsize}
}

// gather assembles the whole graph, zero based, on every rank.
func gather[T types.Idx](c Comm, g *dgraph) (*graph.CSR[T], error) {
	shares, err := AllGather(c, g.snapshot())
	if err != nil {
		return nil, err
	}
	var (
		n   = g.dist.Total()
		out = &graph.CSR[T]{Xadj: make([]T, 1, n+1), Ncon: g.ncon}
	)
	for _, s := range shares {
		off := int(out.Xadj[len(out.Xadj)-1])
		for _, x := range s.Xadj[1:] {
			out.Xadj = append(out.Xadj, T(off+x))
		}
		out.Adjncy = append(out.Adjncy, types.FromInts[T](s.Adjncy, nil)...)
		out.Adjwgt = append(out.Adjwgt, types.FromInts[T](s.Adjwgt, nil)...)
		out.Vwgt = append(out.Vwgt, types.FromInts[T](s.Vwgt, nil)...)
		out.Vsize = append(out.Vsize, types.FromInts[T](s.Vsize, nil)...)
	}
	return out, nil
}

// serialResult is what rank 0 broadcasts after a serial step.
type serialResult struct {
	Where []int
	Sizes []int
	Err   error
}

// initial partitions the coarsest graph with the serial engine on rank 0 and
// hands every rank its share.
func (co *Coordinator[T]) initial(r *drun, g *dgraph, nparts int, tpwgts, ub []float64) ([]int, error) {
	whole, err := gather[T](r.c, g)
	if err != nil {
		return nil, err
	}
	var res serialResult
	if r.c.Rank() == 0 {
		opts := options.New().With(options.SEED, int(r.ctrl.Seed&math.MaxInt32))
		_, part, err := co.e.PartGraphKway(whole, nparts, toReals(tpwgts), toReals(ub), &opts, nil)
		res = serialResult{Where: types.ToInts(part), Err: err}
		if r.ctrl.DbgLvl.Has(options.DbgIPart) && err == nil {
			r.log.Debug().Int("nvtxs", whole.NumVertices()).Int("cut", int(partition.EdgeCut(whole, part))).
				Msg("initial partition")
		}
	}
	if res, err = Bcast(r.c, 0, res); err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	first := g.first()
	return slices.Clone(res.Where[first : first+g.nvtxs]), nil
}

func toReals(v []float64) []types.Real {
	out := make([]types.Real, len(v))
	for i, x := range v {
		out[i] = types.Real(x)
	}
	return out
}

func writePart[T types.Idx](where []int, base int, buf []T) []T {
	out := types.OutputBuffer(buf, len(where))
	for i, p := range where {
		out[i] = T(p + base)
	}
	return out
}

// PartKway partitions a distributed graph into nparts with the multilevel
// k-way scheme and returns the global edge-cut. Every rank receives the parts
// of its own vertices.
func (co *Coordinator[T]) PartKway(c Comm, vtxdist []T, g *Graph[T], wgtflag, ncon, nparts int,
	tpwgts, ubvec []types.Real, opts *options.ParOptions, part []T) (edgecut T, out []T, err error) {
	const op = "PartKway"
	err = co.call(c, op, types.Args{"nparts": nparts, "wgtflag": wgtflag}, func() (int64, error) {
		j, err := co.prepare(op, c, vtxdist, g, wgtflag, ncon, nparts, tpwgts, ubvec, opts, part)
		if err != nil {
			return 0, err
		}
		where, err := co.multilevel(j)
		if err != nil {
			return 0, err
		}
		cut, err := j.cut(where)
		if err != nil {
			return 0, err
		}
		edgecut, out = T(cut), writePart(where, j.base, part)
		co.report(j, op, cut)
		return int64(cut), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return
}

func (j *job) cut(where []int) (int, error) {
	ghosts, err := j.g.pushGhosts(j.r.c, where)
	if err != nil {
		return 0, err
	}
	return j.g.edgeCut(j.r.c, where, ghosts)
}

func (co *Coordinator[T]) report(j *job, op string, cut int) {
	co.e.Metrics().Levels(op, j.r.levels)
	if j.r.ctrl.DbgLvl.Has(options.DbgInfo) && j.r.c.Rank() == 0 {
		j.r.log.Info().Str("op", op).Int("nvtxs", j.g.dist.Total()).Int("nparts", j.nparts).
			Int("levels", j.r.levels).Int("edgecut", cut).Msg("partitioned")
	}
}

// labels reads a caller partition into zero based parts.
func labels[T types.Idx](op string, part []T, n, base, nparts int) ([]int, error) {
	if len(part) < n {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"len(part)": len(part)},
			"part holds %d entries, need %d", len(part), n)
	}
	where := make([]int, n)
	for v := range where {
		if where[v] = int(part[v]) - base; where[v] < 0 || where[v] >= nparts {
			return nil, types.NewError(op, types.KindPartitionInput, types.Args{"v": v, "part": part[v]},
				"part[%d]=%d outside [%d,%d)", v, part[v], base, base+nparts)
		}
	}
	return where, nil
}

// RefineKway improves an existing distributed partition held in part, which
// is overwritten with the result.
func (co *Coordinator[T]) RefineKway(c Comm, vtxdist []T, g *Graph[T], wgtflag, ncon, nparts int,
	tpwgts, ubvec []types.Real, opts *options.ParOptions, part []T) (edgecut T, out []T, err error) {
	const op = "RefineKway"
	err = co.call(c, op, types.Args{"nparts": nparts, "wgtflag": wgtflag}, func() (int64, error) {
		j, err := co.prepare(op, c, vtxdist, g, wgtflag, ncon, nparts, tpwgts, ubvec, opts, nil)
		if err != nil {
			return 0, err
		}
		where, err := labels(op, part, j.g.nvtxs, j.base, nparts)
		if err = agree(c, err); err != nil {
			return 0, err
		}
		if err = j.r.refine(j.g, where, nparts, j.tpwgts, j.ub); err != nil {
			return 0, err
		}
		cut, err := j.cut(where)
		if err != nil {
			return 0, err
		}
		edgecut, out = T(cut), writePart(where, j.base, part)
		co.report(j, op, cut)
		return int64(cut), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return
}

// AdaptiveRepart repartitions a graph whose current partition is in part. It
// compares refining the current partition with a fresh partition relabeled
// to overlap the current one, and keeps the one with the lower cost
// itr*edgecut + migrated vsize. part is overwritten with the result.
func (co *Coordinator[T]) AdaptiveRepart(c Comm, vtxdist []T, g *Graph[T], wgtflag, ncon, nparts int,
	tpwgts, ubvec []types.Real, itr types.Real, opts *options.ParOptions, part []T) (edgecut T, out []T, err error) {
	const op = "AdaptiveRepart"
	err = co.call(c, op, types.Args{"nparts": nparts, "itr": itr}, func() (int64, error) {
		j, err := co.prepare(op, c, vtxdist, g, wgtflag, ncon, nparts, tpwgts, ubvec, opts, nil)
		if err != nil {
			return 0, err
		}
		old, err := labels(op, part, j.g.nvtxs, j.base, nparts)
		if err == nil && itr <= 0 {
			err = types.NewError(op, types.KindPartitionInput, types.Args{"itr": itr}, "itr=%g must be positive", itr)
		}
		if err = agree(c, err); err != nil {
			return 0, err
		}

		refined := slices.Clone(old)
		if err = j.r.refine(j.g, refined, nparts, j.tpwgts, j.ub); err != nil {
			return 0, err
		}
		scratch, err := co.multilevel(j)
		if err != nil {
			return 0, err
		}
		if scratch, err = j.remap(old, scratch); err != nil {
			return 0, err
		}

		var (
			best, bestCut = refined, 0
			bestCost      = math.Inf(1)
			fresh         bool
		)
		for i, cand := range [][]int{refined, scratch} {
			cut, err := j.cut(cand)
			if err != nil {
				return 0, err
			}
			moved, err := j.migration(old, cand)
			if err != nil {
				return 0, err
			}
			if cost := float64(itr)*float64(cut) + float64(moved); cost < bestCost {
				best, bestCost, bestCut, fresh = cand, cost, cut, i == 1
			}
		}
		if j.r.ctrl.DbgLvl.Has(options.DbgInfo) && c.Rank() == 0 {
			j.r.log.Info().Str("op", op).Bool("scratch", fresh).Float64("cost", bestCost).
				Msg("repartitioned")
		}
		edgecut, out = T(bestCut), writePart(best, j.base, part)
		co.report(j, op, bestCut)
		return int64(bestCut), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return
}

// migration is the total vsize of vertices whose part changes.
func (j *job) migration(old, cur []int) (int, error) {
	var moved int64
	for v := range old {
		if old[v] != cur[v] {
			moved += int64(j.g.vsize[v])
		}
	}
	sum, err := AllReduceInt64(j.r.c, []int64{moved}, OpSum)
	if err != nil {
		return 0, err
	}
	return int(sum[0]), nil
}

// remap relabels the parts of cur so they overlap old as much as possible.
// Labels only swap between parts with the same target weights, so the
// balance of cur is kept.
func (j *job) remap(old, cur []int) ([]int, error) {
	np := j.nparts
	local := make([]int64, np*np)
	for v := range old {
		local[cur[v]*np+old[v]] += int64(j.g.vsize[v])
	}
	overlap, err := AllReduceInt64(j.r.c, local, OpSum)
	if err != nil {
		return nil, err
	}
	same := func(p, q int) bool {
		return slices.Equal(j.tpwgts[p*j.g.ncon:(p+1)*j.g.ncon], j.tpwgts[q*j.g.ncon:(q+1)*j.g.ncon])
	}
	cells := make([]int, np*np)
	for i := range cells {
		cells[i] = i
	}
	slices.SortStableFunc(cells, func(a, b int) int {
		switch {
		case overlap[a] > overlap[b]:
			return -1
		case overlap[a] < overlap[b]:
			return 1
		}
		return 0
	})
	var (
		to    = types.Fill(make([]int, np), -1)
		taken = make([]bool, np)
	)
	for _, cell := range cells {
		p, q := cell/np, cell%np
		if overlap[cell] == 0 {
			break
		}
		if to[p] == -1 && !taken[q] && same(p, q) {
			to[p], taken[q] = q, true
		}
	}
	for p := range to {
		for q := 0; to[p] == -1 && q < np; q++ {
			if !taken[q] && same(p, q) {
				to[p], taken[q] = q, true
			}
		}
	}
	out := make([]int, len(cur))
	for v, p := range cur {
		out[v] = to[p]
	}
	return out, nil
}

// NodeND computes a fill reducing ordering of a distributed graph. The graph
// is gathered and dissected on rank 0 with one subdomain per rank; every rank
// receives the new numbers of its vertices and all ranks receive sizes, the
// subdomain sizes followed by the separator sizes.
func (co *Coordinator[T]) NodeND(c Comm, vtxdist []T, g *Graph[T], opts *options.ParOptions,
	order []T) (out, sizes []T, err error) {
	const op = "NodeND"
	err = co.call(c, op, types.Args{"nranks": c.Size()}, func() (int64, error) {
		j, err := co.prepare(op, c, vtxdist, g, 0, 1, 2, nil, nil, opts, order)
		if err == nil && c.Size()&(c.Size()-1) != 0 {
			err = types.NewError(op, types.KindPartitionInput, types.Args{"nranks": c.Size()},
				"nested dissection needs a power of two number of ranks, got %d", c.Size())
		}
		if err != nil {
			return 0, err
		}
		whole, err := gather[T](c, j.g)
		if err != nil {
			return 0, err
		}
		var res serialResult
		if c.Rank() == 0 {
			whole.Vwgt, whole.Vsize, whole.Adjwgt = nil, nil, nil
			sopts := options.New().With(options.SEED, int(j.r.ctrl.Seed&math.MaxInt32))
			_, iperm, szs, err := co.orderer.NodeNDP(whole, c.Size(), &sopts, nil, nil)
			res = serialResult{Where: types.ToInts(iperm), Sizes: types.ToInts(szs), Err: err}
		}
		if res, err = Bcast(c, 0, res); err != nil {
			return 0, err
		}
		if res.Err != nil {
			return 0, res.Err
		}
		first := j.g.first()
		out = writePart(res.Where[first:first+j.g.nvtxs], j.base, order)
		sizes = types.FromInts[T](res.Sizes, nil)
		return 0, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return
}
