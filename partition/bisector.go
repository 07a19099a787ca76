package partition

import (
	"github.com/rs/zerolog"

	"github.com/notargets/gopart/options"
)

// Bisector exposes the multilevel edge bisection to other multilevel drivers,
// such as nested dissection, that keep their own zero based int graphs. A
// Bisector belongs to a single call and shares its random stream.
type Bisector struct {
	r *run
}

// NewBisector returns the bisection driver of one call resolved into ctrl.
func (e *Engine[T]) NewBisector(ctrl *options.Ctrl) *Bisector {
	return &Bisector{r: e.newRun(ctrl)}
}

// Bisect splits a zero based graph in two. Side 0 targets frac of the total
// vertex weight within the tolerance ub. Nil vwgt or adjwgt mean unit weights.
// The arrays are not modified.
func (b *Bisector) Bisect(xadj, adjncy, vwgt, adjwgt []int, frac, ub float64) (where []int, cut int) {
	nvtxs := len(xadj) - 1
	g := &wgraph{
		nvtxs:  nvtxs,
		nedges: len(adjncy),
		ncon:   1,
		xadj:   xadj,
		adjncy: adjncy,
		adjwgt: adjwgt,
		vwgt:   vwgt,
		vsize:  make([]int, nvtxs),
		label:  make([]int, nvtxs),
	}
	if g.vwgt == nil {
		g.vwgt = make([]int, nvtxs)
		for v := range g.vwgt {
			g.vwgt[v] = 1
		}
	}
	if g.adjwgt == nil {
		g.adjwgt = make([]int, len(adjncy))
		for i := range g.adjwgt {
			g.adjwgt[i] = 1
		}
	}
	for v := range g.label {
		g.vsize[v], g.label[v] = 1, v
	}
	g.setTotals()
	return b.r.mlBisect(g, []float64{frac, 1 - frac}, []float64{ub})
}

// Perm is a random permutation from the call's stream.
func (b *Bisector) Perm(n int) []int { return b.r.rng.Perm(n) }

// IntN is a random int in [0, n) from the call's stream.
func (b *Bisector) IntN(n int) int { return b.r.rng.IntN(n) }

func (b *Bisector) Ctrl() *options.Ctrl { return b.r.ctrl }

func (b *Bisector) Logger() zerolog.Logger { return b.r.log }

// Levels is the depth of the deepest coarsening hierarchy built so far.
func (b *Bisector) Levels() int { return b.r.levels }
