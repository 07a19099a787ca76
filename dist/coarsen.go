package dist

import (
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog"

	"github.com/notargets/gopart/options"
)

// maxLevels caps the distributed hierarchy.
const maxLevels = 40

// drun is the per rank state of one distributed call.
type drun struct {
	c         Comm
	ctrl      *options.ParCtrl
	rng       *rand.Rand
	log       zerolog.Logger
	coarsenTo int
	minRatio  float64
	passes    int
	levels    int
}

// matchRequest asks the owner of To to merge it with the requesting vertex.
type matchRequest struct {
	From, To, Wgt int
	Vwgt          []int
}

// migrant carries a fine vertex to the rank that owns its coarse vertex.
type migrant struct {
	Coarse int
	Vwgt   []int
	Vsize  int
	Adj    []int // coarse ids
	Wgt    []int
}

// coarsen builds the distributed hierarchy and returns the coarsest level.
func (r *drun) coarsen(g *dgraph, nparts int) (*dgraph, error) {
	tvwgt, _, err := g.totals(r.c)
	if err != nil {
		return nil, err
	}
	target := max(r.coarsenTo, 20*nparts)
	maxvwgt := make([]int, g.ncon)
	for k := range maxvwgt {
		maxvwgt[k] = max(1, int(1.5*float64(tvwgt[k])/float64(target)))
	}
	r.levels = 1
	for g.dist.Total() > target && r.levels < maxLevels {
		cg, err := r.contract(g, maxvwgt)
		if err != nil {
			return nil, err
		}
		r.levels++
		if r.ctrl.DbgLvl.Has(options.DbgCoarsen) && r.c.Rank() == 0 {
			r.log.Debug().Int("level", r.levels).Int("nvtxs", cg.dist.Total()).Msg("coarsen")
		}
		shrunk := float64(cg.dist.Total()) < r.minRatio*float64(g.dist.Total())
		g = cg
		if !shrunk {
			break
		}
	}
	return g, nil
}

// fits reports whether two vertices can merge without exceeding maxvwgt.
func fits(a, b, maxvwgt []int) bool {
	for k := range maxvwgt {
		if a[k]+b[k] > maxvwgt[k] {
			return false
		}
	}
	return true
}

func (g *dgraph) weights(v int) []int { return g.vwgt[v*g.ncon : (v+1)*g.ncon] }

// match pairs local vertices by heavy-edge matching and asks the owners of
// remote partners for a grant. Remote partners are only proposed towards
// higher global ids so two ranks never wait on each other. On return match
// holds the global id of every local vertex's partner, itself when single,
// and granted marks local vertices merged into a remote requester.
func (r *drun) match(g *dgraph, maxvwgt []int) (match []int, granted []bool, err error) {
	var (
		n       = g.nvtxs
		first   = g.first()
		pending = make([]bool, n)
		reqs    = make(map[int][]matchRequest)
	)
	match = make([]int, n)
	granted = make([]bool, n)
	for i := range match {
		match[i] = -1
	}
	for _, v := range r.rng.Perm(n) {
		if match[v] != -1 || pending[v] {
			continue
		}
		best, bestW := -1, -1
		for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
			u := g.adjncy[j]
			if l, ok := g.local(u); ok {
				if match[l] != -1 || pending[l] || !fits(g.weights(v), g.weights(l), maxvwgt) {
					continue
				}
			} else if u < first+v {
				continue
			}
			if g.adjwgt[j] > bestW {
				best, bestW = u, g.adjwgt[j]
			}
		}
		switch l, ok := g.local(best); {
		case best == -1:
			match[v] = first + v
		case ok:
			match[v], match[l] = best, first+v
		default:
			pending[v] = true
			q := g.dist.Owner(best)
			reqs[q] = append(reqs[q], matchRequest{From: first + v, To: best, Wgt: bestW, Vwgt: g.weights(v)})
		}
	}

	in, err := Exchange(r.c, reqs)
	if err != nil {
		return nil, nil, err
	}
	var all []matchRequest
	for _, from := range sortedKeys(in) {
		all = append(all, in[from]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Wgt != all[j].Wgt {
			return all[i].Wgt > all[j].Wgt
		}
		return all[i].From < all[j].From
	})
	grants := make(map[int][]pair)
	for _, req := range all {
		l, _ := g.local(req.To)
		if match[l] != -1 || pending[l] || !fits(req.Vwgt, g.weights(l), maxvwgt) {
			continue
		}
		match[l], granted[l] = req.From, true
		q := g.dist.Owner(req.From)
		grants[q] = append(grants[q], pair{ID: req.From, Val: req.To})
	}
	back, err := Exchange(r.c, grants)
	if err != nil {
		return nil, nil, err
	}
	for _, batch := range back {
		for _, gr := range batch {
			l, _ := g.local(gr.ID)
			match[l] = gr.Val
		}
	}
	for v := range match {
		if match[v] == -1 {
			match[v] = first + v
		}
	}
	return match, granted, nil
}

// contract builds the next coarser level of g.
func (r *drun) contract(g *dgraph, maxvwgt []int) (*dgraph, error) {
	match, granted, err := r.match(g, maxvwgt)
	if err != nil {
		return nil, err
	}
	var owned []int // local vertices that own a coarse vertex, in coarse order
	for v := 0; v < g.nvtxs; v++ {
		if granted[v] {
			continue
		}
		if l, ok := g.local(match[v]); ok && l < v {
			continue
		}
		owned = append(owned, v)
	}
	counts, err := AllGather(r.c, len(owned))
	if err != nil {
		return nil, err
	}
	cdist := &Distribution{Dist: make([]int, len(counts)+1)}
	for p, k := range counts {
		cdist.Dist[p+1] = cdist.Dist[p] + k
	}
	var (
		cfirst = cdist.First(r.c.Rank())
		cmap   = make([]int, g.nvtxs)
		notify = make(map[int][]pair)
	)
	for k, v := range owned {
		cmap[v] = cfirst + k
		if l, ok := g.local(match[v]); ok {
			cmap[l] = cfirst + k
		} else {
			q := g.dist.Owner(match[v])
			notify[q] = append(notify[q], pair{ID: match[v], Val: cfirst + k})
		}
	}
	in, err := Exchange(r.c, notify)
	if err != nil {
		return nil, err
	}
	for _, batch := range in {
		for _, p := range batch {
			l, _ := g.local(p.ID)
			cmap[l] = p.Val
		}
	}
	ghosts, err := g.pushGhosts(r.c, cmap)
	if err != nil {
		return nil, err
	}

	// Granted vertices travel to the owner of their coarse vertex
	out := make(map[int][]migrant)
	for v := 0; v < g.nvtxs; v++ {
		if !granted[v] {
			continue
		}
		m := migrant{Coarse: cmap[v], Vwgt: g.weights(v), Vsize: g.vsize[v]}
		for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
			m.Adj = append(m.Adj, g.value(g.adjncy[j], cmap, ghosts))
			m.Wgt = append(m.Wgt, g.adjwgt[j])
		}
		q := cdist.Owner(cmap[v])
		out[q] = append(out[q], m)
	}
	arrived, err := Exchange(r.c, out)
	if err != nil {
		return nil, err
	}
	remote := make(map[int]migrant)
	for _, batch := range arrived {
		for _, m := range batch {
			remote[m.Coarse] = m
		}
	}

	cn := len(owned)
	cg := &dgraph{
		rank:  r.c.Rank(),
		dist:  cdist,
		nvtxs: cn,
		ncon:  g.ncon,
		xadj:  make([]int, cn+1),
		vwgt:  make([]int, cn*g.ncon),
		vsize: make([]int, cn),
	}
	for k, v := range owned {
		var (
			cv   = cfirst + k
			acc  = make(map[int]int)
			addV = func(w []int, size int) {
				for c := range w {
					cg.vwgt[k*g.ncon+c] += w[c]
				}
				cg.vsize[k] += size
			}
			addE = func(u, w int) {
				if u != cv {
					acc[u] += w
				}
			}
		)
		addV(g.weights(v), g.vsize[v])
		for j := g.xadj[v]; j < g.xadj[v+1]; j++ {
			addE(g.value(g.adjncy[j], cmap, ghosts), g.adjwgt[j])
		}
		if l, ok := g.local(match[v]); ok && l != v {
			addV(g.weights(l), g.vsize[l])
			for j := g.xadj[l]; j < g.xadj[l+1]; j++ {
				addE(g.value(g.adjncy[j], cmap, ghosts), g.adjwgt[j])
			}
		} else if m, ok := remote[cv]; ok {
			addV(m.Vwgt, m.Vsize)
			for i, u := range m.Adj {
				addE(u, m.Wgt[i])
			}
		}
		nbrs := make([]int, 0, len(acc))
		for u := range acc {
			nbrs = append(nbrs, u)
		}
		sort.Ints(nbrs)
		for _, u := range nbrs {
			cg.adjncy = append(cg.adjncy, u)
			cg.adjwgt = append(cg.adjwgt, acc[u])
		}
		cg.xadj[k+1] = len(cg.adjncy)
	}
	g.cmap, g.coarser = cmap, cg
	return cg, nil
}

// project carries the labeling of g.coarser back to g.
func (r *drun) project(g *dgraph, cwhere []int) ([]int, error) {
	var (
		cg    = g.coarser
		where = make([]int, g.nvtxs)
		asks  = make(map[int][]pair)
	)
	for v, cv := range g.cmap {
		if l, ok := cg.local(cv); ok {
			where[v] = cwhere[l]
			continue
		}
		q := cg.dist.Owner(cv)
		asks[q] = append(asks[q], pair{ID: cv})
	}
	in, err := Exchange(r.c, asks)
	if err != nil {
		return nil, err
	}
	replies := make(map[int][]pair, len(in))
	for from, batch := range in {
		for _, p := range batch {
			l, _ := cg.local(p.ID)
			replies[from] = append(replies[from], pair{ID: p.ID, Val: cwhere[l]})
		}
	}
	back, err := Exchange(r.c, replies)
	if err != nil {
		return nil, err
	}
	labels := make(map[int]int)
	for _, batch := range back {
		for _, p := range batch {
			labels[p.ID] = p.Val
		}
	}
	for v, cv := range g.cmap {
		if _, ok := cg.local(cv); !ok {
			where[v] = labels[cv]
		}
	}
	return where, nil
}
