package graph

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/notargets/gopart/types"
)

// CSR is an undirected graph in compressed sparse row form. Vertex v (counted
// from zero) has neighbors Adjncy[Xadj[v]-Xadj[0] : Xadj[v+1]-Xadj[0]], all
// expressed in the numbering base Xadj[0]. Symmetry is the caller's
// responsibility and is never repaired.
type CSR[T types.Idx] struct {
	Xadj   []T
	Adjncy []T
	Vwgt   []T // Ncon weights per vertex, row-major; nil means unit weights
	Vsize  []T // communication size per vertex; nil means unit sizes
	Adjwgt []T // weight per adjacency entry; nil means unit weights
	Ncon   int // number of balance constraints; 0 is read as 1
}

// New validates a bare CSR pair.
func New[T types.Idx](xadj, adjncy []T) (*CSR[T], error) {
	g := &CSR[T]{Xadj: xadj, Adjncy: adjncy, Ncon: 1}
	return g.Normalize("graph.New", log.Logger)
}

// NewWeighted validates a CSR pair together with its optional weights.
func NewWeighted[T types.Idx](xadj, adjncy, vwgt []T, ncon int, vsize, adjwgt []T) (*CSR[T], error) {
	g := &CSR[T]{Xadj: xadj, Adjncy: adjncy, Vwgt: vwgt, Ncon: ncon, Vsize: vsize, Adjwgt: adjwgt}
	return g.Normalize("graph.NewWeighted", log.Logger)
}

// Base is the numbering base of the graph, Xadj[0].
func (g *CSR[T]) Base() int {
	if len(g.Xadj) == 0 {
		return 0
	}
	return int(g.Xadj[0])
}

func (g *CSR[T]) NumVertices() int {
	if len(g.Xadj) == 0 {
		return 0
	}
	return len(g.Xadj) - 1
}

// NumEdges is the declared number of adjacency entries, twice the number of
// undirected edges.
func (g *CSR[T]) NumEdges() int {
	nv := g.NumVertices()
	if nv == 0 {
		return 0
	}
	return int(g.Xadj[nv] - g.Xadj[0])
}

// NumConstraints returns Ncon, reading 0 as a single constraint.
func (g *CSR[T]) NumConstraints() int {
	if g.Ncon < 1 {
		return 1
	}
	return g.Ncon
}

// Neighbors returns the adjacency of zero-counted vertex v in the graph base.
func (g *CSR[T]) Neighbors(v int) []T {
	b := g.Xadj[0]
	return g.Adjncy[g.Xadj[v]-b : g.Xadj[v+1]-b]
}

// EdgeWeights returns the weights parallel to Neighbors(v), nil when unweighted.
func (g *CSR[T]) EdgeWeights(v int) []T {
	if g.Adjwgt == nil {
		return nil
	}
	b := g.Xadj[0]
	return g.Adjwgt[g.Xadj[v]-b : g.Xadj[v+1]-b]
}

// VertexWeight returns constraint c of zero-counted vertex v.
func (g *CSR[T]) VertexWeight(v, c int) T {
	if g.Vwgt == nil {
		return 1
	}
	return g.Vwgt[v*g.NumConstraints()+c]
}

// Normalize validates the graph and returns a view of it that uses exactly the
// declared number of adjacency entries. The receiver is never modified.
//
// Shape problems (numbering base, offsets, neighbor ids, short adjacency) are
// InvalidGraph errors. Weight problems (ncon, array sizes, negative values)
// are PartitionInput errors. An adjacency longer than declared is accepted with
// a warning since callers often over-allocate.
func (g *CSR[T]) Normalize(op string, logger zerolog.Logger) (*CSR[T], error) {
	if len(g.Xadj) == 0 {
		return nil, types.NewError(op, types.KindInvalidGraph, types.Args{"len(xadj)": 0},
			"xadj must hold at least one offset")
	}
	var (
		nv   = len(g.Xadj) - 1
		base = g.Xadj[0]
		args = types.Args{"nv": nv, "base": base, "len(adjncy)": len(g.Adjncy)}
	)
	if !types.Numbering(base).Valid() {
		return nil, types.NewError(op, types.KindInvalidGraph, args,
			"numbering base xadj[0]=%d is not 0 or 1", base)
	}
	for v := 0; v < nv; v++ {
		if g.Xadj[v+1] < g.Xadj[v] {
			args["v"] = v
			return nil, types.NewError(op, types.KindInvalidGraph, args,
				"xadj decreases at vertex %d (%d > %d)", v, g.Xadj[v], g.Xadj[v+1])
		}
	}
	declared := int(g.Xadj[nv] - base)
	out := *g
	switch {
	case len(g.Adjncy) < declared:
		args["declared"] = declared
		return nil, types.NewError(op, types.KindInvalidGraph, args,
			"adjncy holds %d entries, xadj declares %d", len(g.Adjncy), declared)
	case len(g.Adjncy) > declared:
		logger.Warn().Str("op", op).Int("declared", declared).Int("actual", len(g.Adjncy)).
			Msg("adjncy longer than declared by xadj, using the declared count")
		out.Adjncy = g.Adjncy[:declared]
	}
	hi := base + T(nv)
	for i, u := range out.Adjncy {
		if u < base || u >= hi {
			args["index"] = i
			return nil, types.NewError(op, types.KindInvalidGraph, args,
				"adjncy[%d]=%d outside [%d,%d)", i, u, base, hi)
		}
	}

	if out.Ncon == 0 && out.Vwgt == nil {
		out.Ncon = 1
	}
	if out.Ncon < 1 {
		return nil, types.NewError(op, types.KindPartitionInput, types.Args{"ncon": out.Ncon},
			"ncon=%d, at least one balance constraint is required", out.Ncon)
	}
	if out.Vwgt != nil && len(out.Vwgt) < nv*out.Ncon {
		return nil, types.NewError(op, types.KindPartitionInput,
			types.Args{"len(vwgt)": len(out.Vwgt), "nv": nv, "ncon": out.Ncon},
			"vwgt holds %d weights, need nv*ncon=%d", len(out.Vwgt), nv*out.Ncon)
	}
	if out.Vwgt != nil {
		out.Vwgt = out.Vwgt[:nv*out.Ncon]
	}
	if out.Vsize != nil && len(out.Vsize) < nv {
		return nil, types.NewError(op, types.KindPartitionInput,
			types.Args{"len(vsize)": len(out.Vsize), "nv": nv},
			"vsize holds %d entries, need %d", len(out.Vsize), nv)
	}
	if out.Vsize != nil {
		out.Vsize = out.Vsize[:nv]
	}
	if out.Adjwgt != nil && len(out.Adjwgt) < declared {
		return nil, types.NewError(op, types.KindPartitionInput,
			types.Args{"len(adjwgt)": len(out.Adjwgt), "declared": declared},
			"adjwgt holds %d entries, need %d", len(out.Adjwgt), declared)
	}
	if out.Adjwgt != nil {
		out.Adjwgt = out.Adjwgt[:declared]
	}
	for name, w := range map[string][]T{"vwgt": out.Vwgt, "vsize": out.Vsize, "adjwgt": out.Adjwgt} {
		for i, val := range w {
			if val < 0 {
				return nil, types.NewError(op, types.KindPartitionInput,
					types.Args{name: val, "index": i}, "%s[%d]=%d is negative", name, i, val)
			}
		}
	}
	return &out, nil
}

// Rebase returns a copy of the graph expressed in another numbering base.
func (g *CSR[T]) Rebase(base types.Numbering) *CSR[T] {
	delta := T(base) - T(g.Base())
	out := *g
	out.Xadj = types.Shifted(g.Xadj, delta)
	out.Adjncy = types.Shifted(g.Adjncy, delta)
	return &out
}

// CheckSymmetric verifies that every arc u->v has its reverse v->u with the same
// weight. The engine never calls it implicitly.
func (g *CSR[T]) CheckSymmetric(op string) error {
	var (
		nv   = g.NumVertices()
		base = g.Base()
		arcs = make(map[types.ArcKey]T, g.NumEdges())
	)
	for v := 0; v < nv; v++ {
		wgts := g.EdgeWeights(v)
		for j, u := range g.Neighbors(v) {
			w := T(1)
			if wgts != nil {
				w = wgts[j]
			}
			arcs[types.NewArcKey(v, int(u)-base)] = w
		}
	}
	for arc, w := range arcs {
		rw, ok := arcs[arc.Reverse()]
		from, to := arc.GetVertices()
		if !ok {
			return types.NewError(op, types.KindInvalidGraph, types.Args{"from": from + base, "to": to + base},
				"edge %d->%d has no reverse", from+base, to+base)
		}
		if rw != w {
			return types.NewError(op, types.KindInvalidGraph, types.Args{"from": from + base, "to": to + base},
				"edge %d->%d weight %d differs from reverse weight %d", from+base, to+base, w, rw)
		}
	}
	return nil
}
