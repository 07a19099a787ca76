package partition

import (
	"math"

	"github.com/notargets/gopart/options"
)

// twoWay is the state of a bisection of one graph: the side of each vertex,
// internal and external degrees, the boundary and the side weights.
type twoWay struct {
	g       *wgraph
	where   []int
	id, ed  []int
	pwgts   []int // 2*ncon
	bnd     []bool
	cut     int
	tpwgts  []float64 // target fraction per side and constraint
	maxpwgt []int
	target  []int // target weight per side and constraint
}

func newTwoWay(g *wgraph, where []int, tpwgts, ub []float64) *twoWay {
	b := &twoWay{
		g:       g,
		where:   where,
		tpwgts:  tpwgts,
		maxpwgt: g.maxPartWeights(tpwgts, ub),
		target:  make([]int, 2*g.ncon),
	}
	for i := range b.target {
		b.target[i] = int(tpwgts[i] * float64(g.tvwgt[i%g.ncon]))
	}
	b.computeParams()
	return b
}

func (b *twoWay) computeParams() {
	g := b.g
	b.id = make([]int, g.nvtxs)
	b.ed = make([]int, g.nvtxs)
	b.bnd = make([]bool, g.nvtxs)
	b.pwgts = g.partWeights(b.where, 2)
	b.cut = 0
	for v := 0; v < g.nvtxs; v++ {
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			if b.where[g.adjncy[k]] == b.where[v] {
				b.id[v] += g.adjwgt[k]
			} else {
				b.ed[v] += g.adjwgt[k]
			}
		}
		b.bnd[v] = b.ed[v] > 0
		b.cut += b.ed[v]
	}
	b.cut /= 2
}

// overweight reports whether side s exceeds its bound on any constraint.
func (b *twoWay) overweight(s int) bool {
	for c := 0; c < b.g.ncon; c++ {
		if b.pwgts[s*b.g.ncon+c] > b.maxpwgt[s*b.g.ncon+c] {
			return true
		}
	}
	return false
}

// accepts reports whether side s can take v without exceeding its bound.
func (b *twoWay) accepts(s, v int) bool {
	ncon := b.g.ncon
	for c := 0; c < ncon; c++ {
		if b.pwgts[s*ncon+c]+b.g.vwgt[v*ncon+c] > b.maxpwgt[s*ncon+c] {
			return false
		}
	}
	return true
}

// imbalance is the normalized distance of side 0 from its target, summed over
// the constraints.
func (b *twoWay) imbalance() float64 {
	var diff float64
	for c := 0; c < b.g.ncon; c++ {
		if t := b.g.tvwgt[c]; t > 0 {
			diff += math.Abs(float64(b.target[c]-b.pwgts[c])) / float64(t)
		}
	}
	return diff
}

// heavier returns the side further above its target.
func (b *twoWay) heavier() int {
	var excess [2]float64
	for s := 0; s < 2; s++ {
		for c := 0; c < b.g.ncon; c++ {
			if t := b.g.tvwgt[c]; t > 0 {
				excess[s] += float64(b.pwgts[s*b.g.ncon+c]-b.target[s*b.g.ncon+c]) / float64(t)
			}
		}
	}
	if excess[0] >= excess[1] {
		return 0
	}
	return 1
}

// move switches v to the other side and updates degrees and the boundary. Queued
// neighbors get their new gain through onGain.
func (b *twoWay) move(v int, onGain func(u, gain int)) {
	var (
		g    = b.g
		from = b.where[v]
		to   = 1 - from
		ncon = g.ncon
	)
	b.cut -= b.ed[v] - b.id[v]
	for c := 0; c < ncon; c++ {
		b.pwgts[from*ncon+c] -= g.vwgt[v*ncon+c]
		b.pwgts[to*ncon+c] += g.vwgt[v*ncon+c]
	}
	b.where[v] = to
	b.id[v], b.ed[v] = b.ed[v], b.id[v]
	b.bnd[v] = b.ed[v] > 0
	for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
		u, w := g.adjncy[k], g.adjwgt[k]
		if b.where[u] == to {
			b.id[u] += w
			b.ed[u] -= w
		} else {
			b.id[u] -= w
			b.ed[u] += w
		}
		b.bnd[u] = b.ed[u] > 0
		if onGain != nil {
			onGain(u, b.ed[u]-b.id[u])
		}
	}
}

// balance moves vertices off the side that exceeds its bound, best gain first,
// until that side is at most its target or nothing more fits.
func (b *twoWay) balance() {
	from := b.heavier()
	if !b.overweight(from) {
		return
	}
	var (
		g  = b.g
		to = 1 - from
		q  = newGainQueue(g.nvtxs)
	)
	// Boundary vertices first, then interior vertices with their negative gain
	for v := 0; v < g.nvtxs; v++ {
		if b.where[v] == from {
			gain := b.ed[v] - b.id[v]
			if !b.bnd[v] {
				gain -= 1 << 30
			}
			q.insert(v, gain)
		}
	}
	for b.overweight(from) {
		v := q.popMax()
		if v < 0 {
			break
		}
		if !b.accepts(to, v) {
			continue
		}
		b.move(v, func(u, gain int) {
			if q.contains(u) {
				q.update(u, gain)
			}
		})
	}
}

// refineFM runs Fiduccia-Mattheyses passes: boundary vertices move from the
// heavier side in gain order, each vertex at most once per pass, and the pass
// rolls back to the best cut seen. A move may never push a side past its bound.
func (b *twoWay) refineFM(niter int) {
	var (
		g      = b.g
		queues = [2]*gainQueue{newGainQueue(g.nvtxs), newGainQueue(g.nvtxs)}
		locked = make([]bool, g.nvtxs)
		swaps  = make([]int, 0, g.nvtxs)
		limit  = min(max(int(0.01*float64(g.nvtxs)), 15), 100)
	)
	for pass := 0; pass < niter; pass++ {
		queues[0].reset()
		queues[1].reset()
		for v := 0; v < g.nvtxs; v++ {
			locked[v] = false
			if b.bnd[v] {
				queues[b.where[v]].insert(v, b.ed[v]-b.id[v])
			}
		}
		var (
			initcut  = b.cut
			mincut   = b.cut
			mindiff  = b.imbalance()
			bestSwap = -1
		)
		swaps = swaps[:0]
		for {
			from := b.heavier()
			v := queues[from].popMax()
			if v < 0 {
				from = 1 - from
				if v = queues[from].popMax(); v < 0 {
					break
				}
			}
			locked[v] = true
			if !b.accepts(1-from, v) {
				continue
			}
			b.move(v, func(u, gain int) {
				switch {
				case locked[u]:
				case queues[b.where[u]].contains(u) && b.bnd[u]:
					queues[b.where[u]].update(u, gain)
				case queues[b.where[u]].contains(u):
					queues[b.where[u]].remove(u)
				case b.bnd[u]:
					queues[b.where[u]].insert(u, gain)
				}
			})
			swaps = append(swaps, v)
			diff := b.imbalance()
			if b.cut < mincut || (b.cut == mincut && diff < mindiff) {
				mincut, mindiff, bestSwap = b.cut, diff, len(swaps)-1
			} else if len(swaps)-1-bestSwap > limit {
				break
			}
		}
		// Roll back past the best prefix
		for i := len(swaps) - 1; i > bestSwap; i-- {
			b.move(swaps[i], nil)
		}
		if bestSwap < 0 || mincut == initcut && b.cut == initcut {
			break
		}
	}
}

// initialBisection partitions the coarsest graph with the configured scheme,
// keeping the best of several attempts.
func (r *run) initialBisection(g *wgraph, tpwgts, ub []float64) *twoWay {
	const trials = 5
	var best *twoWay
	for t := 0; t < trials; t++ {
		var where []int
		switch r.ctrl.IPType {
		case options.IPTypeRandom:
			where = r.randomBisection(g, tpwgts)
		case options.IPTypeEdge, options.IPTypeNode:
			where = r.gainBisection(g, tpwgts)
		default:
			where = r.growBisection(g, tpwgts)
		}
		b := newTwoWay(g, where, tpwgts, ub)
		b.balance()
		b.refineFM(max(r.ctrl.NIter, 4))
		if best == nil || better(b, best) {
			best = b
		}
	}
	if r.ctrl.DbgLvl.Has(options.DbgIPart) {
		r.log.Debug().Int("nvtxs", g.nvtxs).Int("cut", best.cut).Ints("pwgts", best.pwgts).Msg("initial bisection")
	}
	return best
}

// better prefers feasible bisections, then lower cuts, then better balance.
func better(a, b *twoWay) bool {
	fa := !a.overweight(0) && !a.overweight(1)
	fb := !b.overweight(0) && !b.overweight(1)
	if fa != fb {
		return fa
	}
	if a.cut != b.cut {
		return a.cut < b.cut
	}
	return a.imbalance() < b.imbalance()
}

// side0Target is the averaged target fraction of side 0.
func side0Target(g *wgraph, tpwgts []float64) (t float64) {
	for c := 0; c < g.ncon; c++ {
		t += tpwgts[c]
	}
	return t / float64(g.ncon)
}

// growBisection grows side 0 breadth first from a random vertex until it
// reaches its target share; every other vertex stays on side 1.
func (r *run) growBisection(g *wgraph, tpwgts []float64) []int {
	var (
		where   = make([]int, g.nvtxs)
		target  = side0Target(g, tpwgts)
		grown   float64
		visited = make([]bool, g.nvtxs)
		queue   = make([]int, 0, g.nvtxs)
		order   = r.rng.Perm(g.nvtxs)
		next    int
	)
	for v := range where {
		where[v] = 1
	}
	for grown < target {
		if len(queue) == 0 {
			// Restart in another component
			for next < len(order) && visited[order[next]] {
				next++
			}
			if next == len(order) {
				break
			}
			visited[order[next]] = true
			queue = append(queue, order[next])
		}
		v := queue[0]
		queue = queue[1:]
		w := g.normWeight(v)
		if grown > 0 && grown+w > target+w/2 {
			continue
		}
		where[v] = 0
		grown += w
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			if u := g.adjncy[k]; !visited[u] {
				visited[u] = true
				queue = append(queue, u)
			}
		}
	}
	return where
}

// randomBisection fills side 0 with vertices in random order.
func (r *run) randomBisection(g *wgraph, tpwgts []float64) []int {
	var (
		where  = make([]int, g.nvtxs)
		target = side0Target(g, tpwgts)
		grown  float64
	)
	for v := range where {
		where[v] = 1
	}
	for _, v := range r.rng.Perm(g.nvtxs) {
		if grown >= target {
			break
		}
		where[v] = 0
		grown += g.normWeight(v)
	}
	return where
}

// gainBisection grows side 0 greedily: starting from a random vertex it always
// absorbs the side 1 vertex whose move reduces the cut the most.
func (r *run) gainBisection(g *wgraph, tpwgts []float64) []int {
	var (
		where  = make([]int, g.nvtxs)
		target = side0Target(g, tpwgts)
		grown  float64
		q      = newGainQueue(g.nvtxs)
		order  = r.rng.Perm(g.nvtxs)
		next   int
		// conn is the edge weight from a side 1 vertex into side 0
		conn = make([]int, g.nvtxs)
		wdeg = make([]int, g.nvtxs)
	)
	for v := range where {
		where[v] = 1
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			wdeg[v] += g.adjwgt[k]
		}
	}
	for grown < target {
		v := q.popMax()
		if v < 0 {
			for next < len(order) && where[order[next]] == 0 {
				next++
			}
			if next == len(order) {
				break
			}
			v = order[next]
		}
		where[v] = 0
		grown += g.normWeight(v)
		for k := g.xadj[v]; k < g.xadj[v+1]; k++ {
			u := g.adjncy[k]
			if where[u] == 0 {
				continue
			}
			conn[u] += g.adjwgt[k]
			gain := 2*conn[u] - wdeg[u]
			if q.contains(u) {
				q.update(u, gain)
			} else {
				q.insert(u, gain)
			}
		}
	}
	return where
}
