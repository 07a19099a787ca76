package ordering

import (
	"container/heap"
	"math"

	"github.com/notargets/gopart/options"
)

// sepState is a 3-way labeling of a graph: sides 0 and 1 and the separator 2.
// No edge joins side 0 to side 1.
type sepState struct {
	g       *sgraph
	where   []int
	pwgts   [3]int
	maxpwgt int
}

func newSepState(g *sgraph, where []int, ub float64) *sepState {
	s := &sepState{g: g, where: where}
	var maxv int
	for v, w := range where {
		s.pwgts[w] += g.vwgt[v]
		maxv = max(maxv, g.vwgt[v])
	}
	total := float64(g.totalWeight())
	s.maxpwgt = max(int(0.5*ub*total), int(math.Ceil(0.5*total))+maxv-1)
	return s
}

func (s *sepState) sepWeight() int { return s.pwgts[2] }

// gain of moving separator vertex v into side to: its own weight leaves the
// separator and its neighbors on the other side enter it.
func (s *sepState) gain(v, to int) int {
	gain := s.g.vwgt[v]
	for _, u := range s.g.adjncy[s.g.xadj[v]:s.g.xadj[v+1]] {
		if s.where[u] == 1-to {
			gain -= s.g.vwgt[u]
		}
	}
	return gain
}

type sepMove struct {
	v, to  int
	pulled []int
}

// move puts separator vertex v on side to and pulls its neighbors from the
// other side into the separator.
func (s *sepState) move(v, to int) sepMove {
	mv := sepMove{v: v, to: to}
	s.where[v] = to
	s.pwgts[2] -= s.g.vwgt[v]
	s.pwgts[to] += s.g.vwgt[v]
	for _, u := range s.g.adjncy[s.g.xadj[v]:s.g.xadj[v+1]] {
		if s.where[u] == 1-to {
			s.where[u] = 2
			s.pwgts[1-to] -= s.g.vwgt[u]
			s.pwgts[2] += s.g.vwgt[u]
			mv.pulled = append(mv.pulled, u)
		}
	}
	return mv
}

func (s *sepState) undo(mv sepMove) {
	for _, u := range mv.pulled {
		s.where[u] = 1 - mv.to
		s.pwgts[1-mv.to] += s.g.vwgt[u]
		s.pwgts[2] -= s.g.vwgt[u]
	}
	s.where[mv.v] = 2
	s.pwgts[mv.to] -= s.g.vwgt[mv.v]
	s.pwgts[2] += s.g.vwgt[mv.v]
}

func (s *sepState) imbalance() int {
	return max(s.pwgts[0], s.pwgts[1]) - min(s.pwgts[0], s.pwgts[1])
}

// refine runs FM passes over the separator. Two sided refinement moves
// vertices into whichever side gains most, one sided refinement moves only into
// the lighter side of each pass. Every pass keeps its best prefix of moves.
func (s *sepState) refine(niter int, oneSided bool) {
	for pass := 0; pass < max(niter, 1); pass++ {
		var (
			queues [2]*moveQueue
			locked = make([]bool, s.g.nvtxs)
			moves  []sepMove
			best   = s.sepWeight()
			bestIm = s.imbalance()
			bestAt int
			nsep   int
		)
		sides := []int{0, 1}
		if oneSided {
			sides = []int{0}
			if s.pwgts[1] < s.pwgts[0] {
				sides = []int{1}
			}
		}
		for _, to := range sides {
			queues[to] = &moveQueue{}
		}
		for v, w := range s.where {
			if w != 2 {
				continue
			}
			nsep++
			for _, to := range sides {
				queues[to].push(v, s.gain(v, to))
			}
		}
		limit := min(max(nsep/100, 15), 100)

		for nbad := 0; nbad <= limit; {
			v, to := s.selectMove(queues, sides, locked)
			if v < 0 {
				break
			}
			mv := s.move(v, to)
			locked[v] = true
			moves = append(moves, mv)

			// Gains change around the moved vertex and the pulled ones
			for _, u := range append([]int{v}, mv.pulled...) {
				for _, w := range s.g.adjncy[s.g.xadj[u]:s.g.xadj[u+1]] {
					if s.where[w] == 2 && !locked[w] {
						for _, t := range sides {
							queues[t].push(w, s.gain(w, t))
						}
					}
				}
			}
			for _, u := range mv.pulled {
				for _, t := range sides {
					queues[t].push(u, s.gain(u, t))
				}
			}

			if sw, im := s.sepWeight(), s.imbalance(); sw < best || (sw == best && im < bestIm) {
				best, bestIm, bestAt, nbad = sw, im, len(moves), 0
			} else {
				nbad++
			}
		}
		for i := len(moves) - 1; i >= bestAt; i-- {
			s.undo(moves[i])
		}
		if bestAt == 0 {
			return
		}
	}
}

// selectMove pops the best admissible move. Stale queue entries are refreshed
// on the way.
func (s *sepState) selectMove(queues [2]*moveQueue, sides []int, locked []bool) (v, to int) {
	var (
		cand [2]int
		gain [2]int
	)
	for _, t := range sides {
		cand[t] = -1
		q := queues[t]
		for q.Len() > 0 {
			e := q.peek()
			if s.where[e.v] != 2 || locked[e.v] || s.pwgts[t]+s.g.vwgt[e.v] > s.maxpwgt {
				heap.Pop(q)
				continue
			}
			if cur := s.gain(e.v, t); cur != e.gain {
				heap.Pop(q)
				q.push(e.v, cur)
				continue
			}
			cand[t], gain[t] = e.v, e.gain
			break
		}
	}
	switch {
	case len(sides) == 1:
		t := sides[0]
		if cand[t] >= 0 {
			heap.Pop(queues[t])
		}
		return cand[t], t
	case cand[0] < 0 && cand[1] < 0:
		return -1, 0
	case cand[1] < 0:
		to = 0
	case cand[0] < 0:
		to = 1
	case gain[0] != gain[1]:
		if gain[1] > gain[0] {
			to = 1
		}
	case s.pwgts[1] < s.pwgts[0]:
		to = 1
	}
	heap.Pop(queues[to])
	return cand[to], to
}

// sepEntry is a queued separator move.
type sepEntry struct {
	v, gain, seq int
}

// moveQueue is a max heap of moves with lazy deletion: entries are checked
// against the current state when they reach the top.
type moveQueue struct {
	items []sepEntry
	seq   int
}

func (q *moveQueue) Len() int { return len(q.items) }
func (q *moveQueue) Less(i, j int) bool {
	if q.items[i].gain != q.items[j].gain {
		return q.items[i].gain > q.items[j].gain
	}
	return q.items[i].seq < q.items[j].seq
}
func (q *moveQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *moveQueue) Push(x any)    { q.items = append(q.items, x.(sepEntry)) }
func (q *moveQueue) Pop() any {
	n := len(q.items) - 1
	e := q.items[n]
	q.items = q.items[:n]
	return e
}

func (q *moveQueue) push(v, gain int) {
	q.seq++
	heap.Push(q, sepEntry{v: v, gain: gain, seq: q.seq})
}

func (q *moveQueue) peek() sepEntry { return q.items[0] }

// separator computes a vertex separator of g: NSEPS multilevel edge
// bisections, each turned into a minimum cover of its cut and refined. The
// lightest separator wins.
func (r *run) separator(g *sgraph) *sepState {
	var (
		ctrl = r.b.Ctrl()
		ub   = float64(ctrl.UBFactor())
		best *sepState
	)
	if g.nvtxs < 3 || g.nedges() == 0 {
		return newSepState(g, make([]int, g.nvtxs), ub)
	}
	for trial := 0; trial < max(ctrl.NSeps, 1); trial++ {
		where, _ := r.b.Bisect(g.xadj, g.adjncy, g.vwgt, nil, 0.5, ub)
		s := newSepState(g, g.minCover(where), ub)
		s.refine(ctrl.NIter, ctrl.RType == options.RTypeSep1Sided)
		if best == nil || s.sepWeight() < best.sepWeight() ||
			(s.sepWeight() == best.sepWeight() && s.imbalance() < best.imbalance()) {
			best = s
		}
	}
	if ctrl.DbgLvl.Has(options.DbgSepInfo) {
		l := r.b.Logger()
		l.Debug().Int("nvtxs", g.nvtxs).Ints("pwgts", best.pwgts[:]).Msg("separator")
	}
	return best
}

