package partition

import (
	"math"

	"github.com/notargets/gopart/options"
)

// kwayState is a k-way labeling of one graph with its part weights. When
// MINCONN is on it also tracks the edge weight between every pair of parts.
type kwayState struct {
	g       *wgraph
	nparts  int
	where   []int
	pwgts   []int
	maxpwgt []int
	tpwgts  []float64
	obj     options.ObjType

	conn    []int // scratch: edge weight from the current vertex to each part
	touched []int

	minconn bool
	pconn   []int // nparts*nparts
	nadj    []int // number of adjacent parts per part
}

func newKwayState(g *wgraph, where []int, nparts int, tpwgts, ub []float64, ctrl *options.Ctrl) *kwayState {
	k := &kwayState{
		g:       g,
		nparts:  nparts,
		where:   where,
		pwgts:   g.partWeights(where, nparts),
		maxpwgt: g.maxPartWeights(tpwgts, ub),
		tpwgts:  tpwgts,
		obj:     ctrl.ObjType,
		conn:    make([]int, nparts),
		minconn: ctrl.MinConn,
	}
	if k.minconn {
		k.pconn = make([]int, nparts*nparts)
		k.nadj = make([]int, nparts)
		for v := 0; v < g.nvtxs; v++ {
			for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
				if p, q := where[v], where[g.adjncy[j]]; p != q {
					k.pconn[p*nparts+q] += g.adjwgt[j]
				}
			}
		}
		for p := 0; p < nparts; p++ {
			k.countAdjacent(p)
		}
	}
	return k
}

func (k *kwayState) countAdjacent(p int) {
	k.nadj[p] = 0
	for q := 0; q < k.nparts; q++ {
		if q != p && k.pconn[p*k.nparts+q] > 0 {
			k.nadj[p]++
		}
	}
}

// gather fills conn with the connectivity of v and returns the touched parts.
func (k *kwayState) gather(v int) []int {
	g := k.g
	k.touched = k.touched[:0]
	for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
		p := k.where[g.adjncy[j]]
		if k.conn[p] == 0 {
			k.touched = append(k.touched, p)
		}
		k.conn[p] += g.adjwgt[j]
	}
	return k.touched
}

func (k *kwayState) release() {
	for _, p := range k.touched {
		k.conn[p] = 0
	}
	k.touched = k.touched[:0]
}

// fits reports whether part p can take v within its bound.
func (k *kwayState) fits(p, v int) bool {
	ncon := k.g.ncon
	for c := 0; c < ncon; c++ {
		if k.pwgts[p*ncon+c]+k.g.vwgt[v*ncon+c] > k.maxpwgt[p*ncon+c] {
			return false
		}
	}
	return true
}

func (k *kwayState) overweight(p int) bool {
	ncon := k.g.ncon
	for c := 0; c < ncon; c++ {
		if k.pwgts[p*ncon+c] > k.maxpwgt[p*ncon+c] {
			return true
		}
	}
	return false
}

// load is the weight of part p relative to its target, averaged over the
// constraints.
func (k *kwayState) load(p int) float64 {
	var (
		ncon = k.g.ncon
		l    float64
	)
	for c := 0; c < ncon; c++ {
		if t := k.tpwgts[p*ncon+c] * float64(k.g.tvwgt[c]); t > 0 {
			l += float64(k.pwgts[p*ncon+c]) / t
		}
	}
	return l / float64(ncon)
}

// gain of moving v from its part to part to under the objective. conn must hold
// the connectivity of v.
func (k *kwayState) gain(v, to int) int {
	from := k.where[v]
	if k.obj == options.ObjTypeVol {
		return k.volGain(v, from, to)
	}
	return k.conn[to] - k.conn[from]
}

// volGain is the reduction of total communication volume when v moves.
func (k *kwayState) volGain(v, from, to int) int {
	var (
		g     = k.g
		delta int
	)
	if k.conn[from] > 0 {
		delta += g.vsize[v]
	}
	if k.conn[to] > 0 {
		delta -= g.vsize[v]
	}
	for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
		u := g.adjncy[j]
		q := k.where[u]
		var nfrom int
		var hasTo bool
		for i := g.xadj[u]; i < g.xadj[u+1]; i++ {
			switch k.where[g.adjncy[i]] {
			case from:
				nfrom++
			case to:
				hasTo = true
			}
		}
		if q != from && nfrom == 1 {
			delta -= g.vsize[u]
		}
		if q != to && !hasTo {
			delta += g.vsize[u]
		}
	}
	return -delta
}

// connOK rejects a move that would give some part more adjacent parts than the
// current maximum.
func (k *kwayState) connOK(from, to int) bool {
	maxadj := 0
	for _, n := range k.nadj {
		maxadj = max(maxadj, n)
	}
	delta := func(a, q int) (d int) {
		if a == from {
			d -= k.conn[q]
		}
		if q == from {
			d -= k.conn[a]
		}
		if a == to {
			d += k.conn[q]
		}
		if q == to {
			d += k.conn[a]
		}
		return
	}
	affected := append([]int{from, to}, k.touched...)
	for _, a := range affected {
		var count int
		for q := 0; q < k.nparts; q++ {
			if q != a && k.pconn[a*k.nparts+q]+delta(a, q) > 0 {
				count++
			}
		}
		if count > maxadj && count > k.nadj[a] {
			return false
		}
	}
	return true
}

// move relabels v. conn must hold the connectivity of v.
func (k *kwayState) move(v, to int) {
	var (
		g    = k.g
		ncon = g.ncon
		from = k.where[v]
	)
	for c := 0; c < ncon; c++ {
		k.pwgts[from*ncon+c] -= g.vwgt[v*ncon+c]
		k.pwgts[to*ncon+c] += g.vwgt[v*ncon+c]
	}
	k.where[v] = to
	if !k.minconn {
		return
	}
	n := k.nparts
	for _, q := range k.touched {
		if q != from {
			k.pconn[from*n+q] -= k.conn[q]
			k.pconn[q*n+from] -= k.conn[q]
		}
		if q != to {
			k.pconn[to*n+q] += k.conn[q]
			k.pconn[q*n+to] += k.conn[q]
		}
	}
	k.countAdjacent(from)
	k.countAdjacent(to)
	for _, q := range k.touched {
		k.countAdjacent(q)
	}
}

// refine runs greedy boundary passes in random vertex order. A boundary vertex
// moves to the adjacent part of highest gain that has room, when the gain is
// positive or zero gain improves the balance.
func (r *run) refineKway(k *kwayState, niter int) {
	g := k.g
	for pass := 0; pass < niter; pass++ {
		var moves, gainSum int
		for _, v := range r.rng.Perm(g.nvtxs) {
			from := k.where[v]
			parts := k.gather(v)
			if len(parts) == 0 || (len(parts) == 1 && parts[0] == from) {
				k.release()
				continue
			}
			best, bestGain := -1, math.MinInt
			for _, p := range parts {
				if p == from || !k.fits(p, v) {
					continue
				}
				gn := k.gain(v, p)
				if gn > bestGain || (gn == bestGain && k.load(p) < k.load(best)) {
					best, bestGain = p, gn
				}
			}
			accept := best >= 0 &&
				(bestGain > 0 || (bestGain == 0 && k.load(best)+g.normWeight(v)*float64(k.nparts) < k.load(from))) &&
				(!k.minconn || k.connOK(from, best))
			if accept {
				k.move(v, best)
				moves++
				gainSum += bestGain
			}
			k.release()
		}
		if r.ctrl.DbgLvl.Has(options.DbgMoveInfo) {
			r.log.Debug().Int("pass", pass).Int("nvtxs", g.nvtxs).Int("moves", moves).Int("gain", gainSum).Msg("refine k-way")
		}
		if moves == 0 {
			break
		}
	}
}

// balanceKway moves vertices out of parts above their bound: to the adjacent
// part of best gain with room, otherwise to the lightest part with room.
func (r *run) balanceKway(k *kwayState, npasses int) {
	g := k.g
	for pass := 0; pass < npasses; pass++ {
		over := false
		for p := 0; p < k.nparts; p++ {
			over = over || k.overweight(p)
		}
		if !over {
			return
		}
		moved := false
		for _, v := range r.rng.Perm(g.nvtxs) {
			from := k.where[v]
			if !k.overweight(from) {
				continue
			}
			best, bestGain := -1, math.MinInt
			for _, p := range k.gather(v) {
				if p == from || !k.fits(p, v) {
					continue
				}
				if gn := k.gain(v, p); gn > bestGain {
					best, bestGain = p, gn
				}
			}
			if best < 0 {
				for p := 0; p < k.nparts; p++ {
					if p != from && k.fits(p, v) && (best < 0 || k.load(p) < k.load(best)) {
						best = p
					}
				}
			}
			if best >= 0 {
				k.move(v, best)
				moved = true
			}
			k.release()
		}
		if !moved {
			break
		}
	}
}

// eliminateComponents moves every piece of a part except its heaviest onto the
// neighboring part it is most connected to. Returns the number of moved
// vertices.
func (r *run) eliminateComponents(k *kwayState) (moved int) {
	var (
		g     = k.g
		comp  = make([]int, g.nvtxs)
		cwgt  []float64
		cpart []int
		queue []int
	)
	for v := range comp {
		comp[v] = -1
	}
	for s := 0; s < g.nvtxs; s++ {
		if comp[s] >= 0 {
			continue
		}
		id := len(cwgt)
		cwgt = append(cwgt, 0)
		cpart = append(cpart, k.where[s])
		comp[s] = id
		queue = append(queue[:0], s)
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			cwgt[id] += g.normWeight(v)
			for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
				if u := g.adjncy[j]; comp[u] < 0 && k.where[u] == k.where[v] {
					comp[u] = id
					queue = append(queue, u)
				}
			}
		}
	}
	// The heaviest piece of every part stays
	keep := make([]int, k.nparts)
	for p := range keep {
		keep[p] = -1
	}
	for id, p := range cpart {
		if keep[p] < 0 || cwgt[id] > cwgt[keep[p]] {
			keep[p] = id
		}
	}
	members := make([][]int, len(cwgt))
	for v, id := range comp {
		if id != keep[cpart[id]] {
			members[id] = append(members[id], v)
		}
	}
	for id, vs := range members {
		if len(vs) == 0 {
			continue
		}
		var (
			from  = cpart[id]
			links = make(map[int]int)
		)
		for _, v := range vs {
			for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
				if p := k.where[g.adjncy[j]]; p != from {
					links[p] += g.adjwgt[j]
				}
			}
		}
		to, best := -1, 0
		for p, w := range links {
			if w > best || (w == best && p < to) {
				to, best = p, w
			}
		}
		if to < 0 {
			continue
		}
		for _, v := range vs {
			k.gather(v)
			k.move(v, to)
			k.release()
			moved++
		}
	}
	if r.ctrl.DbgLvl.Has(options.DbgContigInfo) {
		r.log.Debug().Int("components", len(cwgt)).Int("moved", moved).Msg("contiguity")
	}
	return
}

// balanceContig moves boundary vertices out of parts above their bound into an
// adjacent part with room, skipping any vertex whose removal would split its
// part. Parts that are contiguous stay contiguous.
func (r *run) balanceContig(k *kwayState, npasses int) {
	var (
		g    = k.g
		seen = make([]int, g.nvtxs)
		mark int
	)
	for pass := 0; pass < npasses; pass++ {
		over := false
		for p := 0; p < k.nparts; p++ {
			over = over || k.overweight(p)
		}
		if !over {
			return
		}
		moved := 0
		for _, v := range r.rng.Perm(g.nvtxs) {
			from := k.where[v]
			if !k.overweight(from) {
				continue
			}
			best, bestGain := -1, math.MinInt
			for _, p := range k.gather(v) {
				if p == from || !k.fits(p, v) {
					continue
				}
				if gn := k.gain(v, p); gn > bestGain {
					best, bestGain = p, gn
				}
			}
			if best >= 0 && (!k.minconn || k.connOK(from, best)) {
				mark++
				if k.keepsPartConnected(v, seen, mark) {
					k.move(v, best)
					moved++
				}
			}
			k.release()
		}
		if r.ctrl.DbgLvl.Has(options.DbgContigInfo) {
			r.log.Debug().Int("pass", pass).Int("moved", moved).Msg("contiguous balance")
		}
		if moved == 0 {
			return
		}
	}
}

// keepsPartConnected reports whether the part of v stays connected without v,
// assuming it is connected now: every neighbor of v in the part must be
// reachable from the first one. A vertex alone in its part never qualifies.
func (k *kwayState) keepsPartConnected(v int, seen []int, mark int) bool {
	var (
		g       = k.g
		from    = k.where[v]
		pending int
		start   = -1
	)
	for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
		if u := g.adjncy[j]; k.where[u] == from && seen[u] != -mark {
			seen[u] = -mark
			pending++
			if start < 0 {
				start = u
			}
		}
	}
	if start < 0 {
		return false
	}
	seen[v] = mark
	seen[start] = mark
	pending--
	for stack := []int{start}; len(stack) > 0 && pending > 0; {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j := g.xadj[u]; j < g.xadj[u+1]; j++ {
			w := g.adjncy[j]
			if k.where[w] != from || seen[w] == mark {
				continue
			}
			if seen[w] == -mark {
				pending--
			}
			seen[w] = mark
			stack = append(stack, w)
		}
	}
	return pending == 0
}

// connected reports whether g has a single connected component.
func (g *wgraph) connected() bool {
	if g.nvtxs == 0 {
		return true
	}
	var (
		seen  = make([]bool, g.nvtxs)
		stack = []int{0}
		count = 1
	)
	seen[0] = true
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
			if u := g.adjncy[j]; !seen[u] {
				seen[u] = true
				count++
				stack = append(stack, u)
			}
		}
	}
	return count == g.nvtxs
}

func log2(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

// kwayPartition runs the multilevel k-way cycle: coarsen, split the coarsest
// graph by recursive bisection, then project and refine level by level.
func (r *run) kwayPartition(g *wgraph, nparts int, tpwgts, ub []float64) []int {
	if nparts == 1 || g.nvtxs == 0 {
		return make([]int, g.nvtxs)
	}
	coarsenTo := max(r.coarsenTo, 30*nparts, g.nvtxs/(20*max(log2(nparts), 1)))
	cg := r.coarsen(g, coarsenTo)

	cg.label = make([]int, cg.nvtxs)
	for v := range cg.label {
		cg.label[v] = v
	}
	cwhere := make([]int, cg.nvtxs)
	r.recursiveBisect(cg, nparts, tpwgts, ub, 0, cwhere)

	k := newKwayState(cg, cwhere, nparts, tpwgts, ub, r.ctrl)
	r.balanceKway(k, 4)
	r.refineKway(k, r.ctrl.NIter)
	for cg != g {
		fg := cg.finer
		k = newKwayState(fg, fg.project(k.where), nparts, tpwgts, ub, r.ctrl)
		r.balanceKway(k, 4)
		r.refineKway(k, r.ctrl.NIter)
		cg = fg
	}
	g.coarser, g.cmap = nil, nil

	if r.ctrl.Contig {
		if g.connected() {
			// Moving a piece can strand another one, so repeat until every part
			// is a single component
			for i := 0; i < 10 && r.eliminateComponents(k) > 0; i++ {
			}
			r.balanceContig(k, 8)
		} else {
			r.log.Warn().Msg("CONTIG ignored, the input graph is not connected")
		}
	}
	return k.where
}
