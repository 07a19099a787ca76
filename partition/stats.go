package partition

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/types"
)

// PartStats holds statistics for a single part
type PartStats struct {
	ID          int
	NumVertices int
	Load        []int64     // vertex weight per constraint
	Neighbors   map[int]int // neighbor part -> cut edge weight
	Boundary    int         // vertices with a neighbor in another part
}

// Stats is the quality report of a partition vector.
type Stats struct {
	NParts       int
	EdgeCut      int64
	CommVolume   int64
	Imbalance    []float64 // heaviest part over the average, per constraint
	MinLoad      float64   // constraint 0
	MaxLoad      float64
	MeanLoad     float64
	StdDevLoad   float64
	MaxNeighbors int
	Parts        []PartStats
	Interfaces   map[[2]int]int // (p, q) with p < q -> number of cut edges
}

// checkPart validates a partition vector against g. Part ids are read in the
// numbering base of g.
func checkPart[T types.Idx](op string, g *graph.CSR[T], part []T, nparts int) error {
	args := types.Args{"nv": g.NumVertices(), "len(part)": len(part), "nparts": nparts}
	if nparts < 1 {
		return types.NewError(op, types.KindPartitionInput, args, "nparts=%d must be positive", nparts)
	}
	if len(part) < g.NumVertices() {
		return types.NewError(op, types.KindPartitionInput, args, "partition vector shorter than the graph")
	}
	base := T(g.Base())
	for v, p := range part[:g.NumVertices()] {
		if p < base || p >= base+T(nparts) {
			args["v"] = v
			return types.NewError(op, types.KindPartitionInput, args, "part[%d]=%d outside [%d,%d)", v, p, base, base+T(nparts))
		}
	}
	return nil
}

// labels converts a partition vector into zero based part numbers.
func labels[T types.Idx](g *graph.CSR[T], part []T) []int {
	where := make([]int, g.NumVertices())
	for v := range where {
		where[v] = int(part[v]) - g.Base()
	}
	return where
}

// EdgeCut returns the weight of the edges whose endpoints lie in different
// parts.
func EdgeCut[T types.Idx](g *graph.CSR[T], part []T) T {
	return T(fromCSR(g).edgeCut(labels(g, part)))
}

// CommVolume returns the total communication volume of a partition: each
// vertex counts its size once for every other part among its neighbors.
func CommVolume[T types.Idx](g *graph.CSR[T], part []T, nparts int) T {
	return T(fromCSR(g).commVolume(labels(g, part), nparts))
}

// PartWeights returns the vertex weight of every part, nparts*ncon values.
func PartWeights[T types.Idx](g *graph.CSR[T], part []T, nparts int) []T {
	pw := fromCSR(g).partWeights(labels(g, part), nparts)
	out := make([]T, len(pw))
	for i, w := range pw {
		out[i] = T(w)
	}
	return out
}

// Imbalance returns, per constraint, the weight of the heaviest part divided by
// the average part weight.
func Imbalance[T types.Idx](g *graph.CSR[T], part []T, nparts int) []float64 {
	var (
		wg   = fromCSR(g)
		pw   = wg.partWeights(labels(g, part), nparts)
		ncon = wg.ncon
		out  = make([]float64, ncon)
	)
	for c := 0; c < ncon; c++ {
		var heaviest int
		for p := 0; p < nparts; p++ {
			heaviest = max(heaviest, pw[p*ncon+c])
		}
		if wg.tvwgt[c] > 0 {
			out[c] = float64(heaviest) * float64(nparts) / float64(wg.tvwgt[c])
		}
	}
	return out
}

// Analyze computes the quality report of a partition of g into nparts.
func Analyze[T types.Idx](g *graph.CSR[T], part []T, nparts int) (*Stats, error) {
	const op = "Analyze"
	gn, err := g.Normalize(op, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	if err = checkPart(op, gn, part, nparts); err != nil {
		return nil, err
	}
	var (
		wg    = fromCSR(gn)
		where = labels(gn, part)
		ncon  = wg.ncon
		pw    = wg.partWeights(where, nparts)
		s     = &Stats{
			NParts:     nparts,
			EdgeCut:    int64(wg.edgeCut(where)),
			CommVolume: int64(wg.commVolume(where, nparts)),
			Imbalance:  make([]float64, ncon),
			Parts:      make([]PartStats, nparts),
			Interfaces: make(map[[2]int]int),
		}
	)
	for p := range s.Parts {
		s.Parts[p] = PartStats{ID: p, Load: make([]int64, ncon), Neighbors: make(map[int]int)}
		for c := 0; c < ncon; c++ {
			s.Parts[p].Load[c] = int64(pw[p*ncon+c])
		}
	}
	for v := 0; v < wg.nvtxs; v++ {
		ps := &s.Parts[where[v]]
		ps.NumVertices++
		onBoundary := false
		for j := wg.xadj[v]; j < wg.xadj[v+1]; j++ {
			q := where[wg.adjncy[j]]
			if q == where[v] {
				continue
			}
			onBoundary = true
			ps.Neighbors[q] += wg.adjwgt[j]
			if where[v] < q {
				s.Interfaces[[2]int{where[v], q}]++
			}
		}
		if onBoundary {
			ps.Boundary++
		}
	}

	loads := make([]float64, nparts)
	for c := 0; c < ncon; c++ {
		for p := range loads {
			loads[p] = float64(pw[p*ncon+c])
		}
		if mean := stat.Mean(loads, nil); mean > 0 {
			s.Imbalance[c] = floats.Max(loads) / mean
		}
		if c == 0 {
			s.MinLoad, s.MaxLoad = floats.Min(loads), floats.Max(loads)
			s.MeanLoad = stat.Mean(loads, nil)
			if nparts > 1 {
				s.StdDevLoad = stat.StdDev(loads, nil)
			}
		}
	}
	for _, ps := range s.Parts {
		s.MaxNeighbors = max(s.MaxNeighbors, len(ps.Neighbors))
	}
	return s, nil
}

// Log writes the report as structured events, one per part and interface.
func (s *Stats) Log(logger zerolog.Logger) {
	logger.Info().
		Int("nparts", s.NParts).
		Int64("edgecut", s.EdgeCut).
		Int64("volume", s.CommVolume).
		Floats64("imbalance", s.Imbalance).
		Float64("min_load", s.MinLoad).
		Float64("max_load", s.MaxLoad).
		Float64("mean_load", s.MeanLoad).
		Float64("stddev_load", s.StdDevLoad).
		Int("max_neighbors", s.MaxNeighbors).
		Msg("partition analysis")

	for _, ps := range s.Parts {
		logger.Debug().
			Int("part", ps.ID).
			Int("vertices", ps.NumVertices).
			Ints64("load", ps.Load).
			Int("boundary", ps.Boundary).
			Int("neighbors", len(ps.Neighbors)).
			Msg("part")
	}

	pairs := make([][2]int, 0, len(s.Interfaces))
	for pair := range s.Interfaces {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, pair := range pairs {
		logger.Debug().Int("from", pair[0]).Int("to", pair[1]).Int("edges", s.Interfaces[pair]).Msg("interface")
	}
}
