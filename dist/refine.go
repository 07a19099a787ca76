package dist

import (
	"sort"

	"github.com/notargets/gopart/options"
)

// proposal is a move a rank would like to make. Nbrs are the global ids of
// the vertex's neighbors, which may not move in the same round.
type proposal struct {
	Gid, From, To, Gain int
	Vwgt                []int
	Nbrs                []int
}

// balance holds the part weights and their bounds during refinement.
type balance struct {
	ncon   int
	pwgts  []int
	maxp   []int
	tpwgts []float64
}

func (b *balance) fits(p int, w []int) bool {
	for k := 0; k < b.ncon; k++ {
		if b.pwgts[p*b.ncon+k]+w[k] > b.maxp[p*b.ncon+k] {
			return false
		}
	}
	return true
}

func (b *balance) over(p int) bool {
	for k := 0; k < b.ncon; k++ {
		if b.pwgts[p*b.ncon+k] > b.maxp[p*b.ncon+k] {
			return true
		}
	}
	return false
}

// load is the heaviest normalized weight of part p after adding w.
func (b *balance) load(p int, w []int, sign int) float64 {
	var worst float64
	for k := 0; k < b.ncon; k++ {
		t := max(b.tpwgts[p*b.ncon+k], 1e-9)
		worst = max(worst, float64(b.pwgts[p*b.ncon+k]+sign*w[k])/t)
	}
	return worst
}

func (b *balance) apply(pr proposal) {
	for k := 0; k < b.ncon; k++ {
		b.pwgts[pr.From*b.ncon+k] -= pr.Vwgt[k]
		b.pwgts[pr.To*b.ncon+k] += pr.Vwgt[k]
	}
}

// propose lists the moves of local vertices: positive gain moves, zero gain
// moves that even out the load and moves out of an overweight part.
func (r *drun) propose(g *dgraph, where []int, ghosts map[int]int, b *balance, nparts int) []proposal {
	var (
		out []proposal
		ed  = make([]int, nparts)
	)
	for v := 0; v < g.nvtxs; v++ {
		from := where[v]
		var touched []int
		for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
			p := g.value(g.adjncy[j], where, ghosts)
			if ed[p] == 0 {
				touched = append(touched, p)
			}
			ed[p] += g.adjwgt[j]
		}
		var (
			id       = ed[from]
			w        = g.weights(v)
			overFrom = b.over(from)
			to, gain = -1, 0
		)
		for _, p := range touched {
			if p == from || !b.fits(p, w) {
				continue
			}
			if gn := ed[p] - id; to == -1 || gn > gain || (gn == gain && b.load(p, w, 1) < b.load(to, w, 1)) {
				to, gain = p, gn
			}
		}
		if to == -1 && overFrom {
			for p := 0; p < nparts; p++ {
				if p != from && b.fits(p, w) && (to == -1 || b.load(p, w, 1) < b.load(to, w, 1)) {
					to, gain = p, ed[p]-id
				}
			}
		}
		for _, p := range touched {
			ed[p] = 0
		}
		if to == -1 {
			continue
		}
		evens := b.load(to, w, 1) < b.load(from, w, 0)
		if gain > 0 || (gain == 0 && evens && len(touched) > 1) || overFrom {
			nbrs := make([]int, g.xadj[v+1]-g.xadj[v])
			copy(nbrs, g.adjncy[g.xadj[v]:g.xadj[v+1]])
			out = append(out, proposal{Gid: g.first() + v, From: from, To: to, Gain: gain, Vwgt: w, Nbrs: nbrs})
		}
	}
	return out
}

// refine improves a distributed k-way labeling in place. Every rank sees the
// same proposals in the same order and accepts the same subset, so the part
// weights stay identical across ranks without another reduction.
func (r *drun) refine(g *dgraph, where []int, nparts int, tpwgts, ub []float64) error {
	tvwgt, maxv, err := g.totals(r.c)
	if err != nil {
		return err
	}
	pwgts, err := g.partWeights(r.c, where, nparts)
	if err != nil {
		return err
	}
	b := &balance{
		ncon:   g.ncon,
		pwgts:  pwgts,
		maxp:   maxPartWeights(tvwgt, maxv, tpwgts, ub, nparts),
		tpwgts: tpwgts,
	}
	for pass := 0; pass < r.passes; pass++ {
		ghosts, err := g.pushGhosts(r.c, where)
		if err != nil {
			return err
		}
		batches, err := AllGather(r.c, r.propose(g, where, ghosts, b, nparts))
		if err != nil {
			return err
		}
		var all []proposal
		for _, batch := range batches {
			all = append(all, batch...)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].Gain != all[j].Gain {
				return all[i].Gain > all[j].Gain
			}
			return all[i].Gid < all[j].Gid
		})
		var (
			blocked = make(map[int]bool)
			moved   int
		)
		for _, pr := range all {
			if blocked[pr.Gid] || !b.fits(pr.To, pr.Vwgt) {
				continue
			}
			if pr.Gain <= 0 && !b.over(pr.From) && b.load(pr.To, pr.Vwgt, 1) >= b.load(pr.From, pr.Vwgt, 0) {
				continue
			}
			b.apply(pr)
			blocked[pr.Gid] = true
			for _, u := range pr.Nbrs {
				blocked[u] = true
			}
			if l, ok := g.local(pr.Gid); ok {
				where[l] = pr.To
			}
			moved++
		}
		if r.ctrl.DbgLvl.Has(options.DbgRefine) && r.c.Rank() == 0 {
			r.log.Debug().Int("pass", pass).Int("proposed", len(all)).Int("moved", moved).
				Ints("pwgts", b.pwgts).Msg("refine")
		}
		if moved == 0 {
			break
		}
	}
	return nil
}
