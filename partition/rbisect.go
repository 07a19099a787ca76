package partition

import (
	"math"

	"github.com/notargets/gopart/options"
)

// mlBisect bisects g through the full multilevel cycle, NCUTS times, and keeps
// the best result. tpwgts holds the target fraction of each side per
// constraint.
func (r *run) mlBisect(g *wgraph, tpwgts, ub []float64) (where []int, cut int) {
	if g.nvtxs == 0 {
		return nil, 0
	}
	var best *twoWay
	for i := 0; i < r.ctrl.NCuts; i++ {
		cg := r.coarsen(g, r.coarsenTo)
		b := r.initialBisection(cg, tpwgts, ub)
		for cg != g {
			fg := cg.finer
			b = newTwoWay(fg, fg.project(b.where), tpwgts, ub)
			b.balance()
			b.refineFM(r.ctrl.NIter)
			if r.ctrl.DbgLvl.Has(options.DbgRefine) {
				r.log.Debug().Int("nvtxs", fg.nvtxs).Int("cut", b.cut).Ints("pwgts", b.pwgts).Msg("refine 2-way")
			}
			cg = fg
		}
		g.coarser, g.cmap = nil, nil
		if best == nil || better(b, best) {
			best = b
		}
	}
	return best.where, best.cut
}

// levelTolerance spreads the tolerance over the bisection levels needed to
// reach nparts.
func levelTolerance(ub []float64, nparts int) []float64 {
	levels := math.Ceil(math.Log2(float64(nparts)))
	out := make([]float64, len(ub))
	for c, u := range ub {
		out[c] = u
		if levels > 1 {
			out[c] = math.Pow(u, 1/levels)
		}
	}
	return out
}

// recursiveBisect splits g into nparts with proportional target weights and
// writes part numbers starting at fpart into part, indexed by vertex label.
// tpwgts holds nparts*ncon fractions relative to g.
func (r *run) recursiveBisect(g *wgraph, nparts int, tpwgts, ub []float64, fpart int, part []int) (cut int) {
	if nparts == 1 || g.nvtxs == 0 {
		for _, l := range g.label {
			part[l] = fpart
		}
		return 0
	}
	var (
		ncon  = g.ncon
		n0    = nparts / 2
		sides = make([]float64, 2*ncon)
	)
	for p := 0; p < nparts; p++ {
		s := 0
		if p >= n0 {
			s = 1
		}
		for c := 0; c < ncon; c++ {
			sides[s*ncon+c] += tpwgts[p*ncon+c]
		}
	}
	for c := 0; c < ncon; c++ {
		if t := sides[c] + sides[ncon+c]; t > 0 {
			sides[c] /= t
			sides[ncon+c] /= t
		}
	}
	where, cut := r.mlBisect(g, sides, levelTolerance(ub, nparts))
	sub := g.split(where)

	rescale := func(tp []float64, s int) []float64 {
		out := make([]float64, len(tp))
		for i, v := range tp {
			if d := sides[s*ncon+i%ncon]; d > 0 {
				out[i] = v / d
			}
		}
		return out
	}
	cut += r.recursiveBisect(sub[0], n0, rescale(tpwgts[:n0*ncon], 0), ub, fpart, part)
	cut += r.recursiveBisect(sub[1], nparts-n0, rescale(tpwgts[n0*ncon:], 1), ub, fpart+n0, part)
	return cut
}
