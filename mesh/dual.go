package mesh

import (
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/rs/zerolog/log"

	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/types"
)

// incidence returns the element-to-node matrix with a 1 for every distinct node
// of every element, and the distinct node count of each element.
func (m *Mesh[T]) incidence() (inc *sparse.CSR, sizes []int) {
	var (
		ne     = m.NumElements()
		base   = m.Base()
		indptr = make([]int, ne+1)
		ind    = make([]int, 0, len(m.Eind))
	)
	sizes = make([]int, ne)
	for e := 0; e < ne; e++ {
		start := len(ind)
		for _, n := range m.Element(e) {
			ind = append(ind, int(n)-base)
		}
		row := ind[start:]
		sort.Ints(row)
		// Degenerate elements can repeat a node
		w := 0
		for i, n := range row {
			if i == 0 || n != row[w-1] {
				row[w] = n
				w++
			}
		}
		ind = ind[:start+w]
		sizes[e] = w
		indptr[e+1] = len(ind)
	}
	data := make([]float64, len(ind))
	for i := range data {
		data[i] = 1
	}
	inc = sparse.NewCSR(ne, m.Nv, indptr, ind, data)
	return
}

// ToDual builds the element adjacency graph: two elements are neighbors when
// they share at least min(ncommon, |e1|-1, |e2|-1) nodes, never less than one.
// The shared node counts come from the product of the incidence matrix and its
// transpose. The graph keeps the mesh numbering base and sorted neighbor lists.
func (m *Mesh[T]) ToDual(ncommon int) (*graph.CSR[T], error) {
	if ncommon < 1 {
		return nil, types.NewError("MeshToDual", types.KindPartitionInput,
			types.Args{"ncommon": ncommon}, "ncommon must be positive")
	}
	ne := m.NumElements()
	if ne == 0 || m.Nv == 0 {
		return emptyGraph[T](ne, m.Base()), nil
	}
	var (
		inc, sizes = m.incidence()
		shared     = sparse.NewCSR(ne, ne, nil, nil, nil)
	)
	shared.Mul(inc, inc.T())

	threshold := func(e1, e2 int) float64 {
		t := min(ncommon, sizes[e1]-1, sizes[e2]-1)
		if t < 1 {
			t = 1
		}
		return float64(t)
	}
	g := fromProduct[T](shared, ne, m.Base(), func(i, j int, v float64) bool {
		return v >= threshold(i, j)
	})
	log.Debug().Int("ne", ne).Int("ncommon", ncommon).Int("nedges", g.NumEdges()/2).Msg("dual graph")
	return g, nil
}

// ToNodal builds the node adjacency graph: two nodes are neighbors when some
// element contains both.
func (m *Mesh[T]) ToNodal() (*graph.CSR[T], error) {
	if m.Nv == 0 || m.NumElements() == 0 {
		return emptyGraph[T](m.Nv, m.Base()), nil
	}
	var (
		inc, _ = m.incidence()
		shared = sparse.NewCSR(m.Nv, m.Nv, nil, nil, nil)
	)
	shared.Mul(inc.T(), inc)
	g := fromProduct[T](shared, m.Nv, m.Base(), func(i, j int, v float64) bool { return v > 0 })
	log.Debug().Int("nn", m.Nv).Int("nedges", g.NumEdges()/2).Msg("nodal graph")
	return g, nil
}

// fromProduct reads the off-diagonal pattern of a symmetric product into a CSR
// graph, keeping the entries accepted by keep.
func fromProduct[T types.Idx](p *sparse.CSR, n, base int,
	keep func(i, j int, v float64) bool) *graph.CSR[T] {
	var (
		raw    = p.RawMatrix()
		xadj   = make([]T, n+1)
		adjncy = make([]T, 0, len(raw.Ind))
	)
	xadj[0] = T(base)
	for i := 0; i < n; i++ {
		start := len(adjncy)
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			if j != i && keep(i, j, raw.Data[k]) {
				adjncy = append(adjncy, T(j+base))
			}
		}
		row := adjncy[start:]
		sort.Slice(row, func(a, b int) bool { return row[a] < row[b] })
		xadj[i+1] = T(len(adjncy) + base)
	}
	return &graph.CSR[T]{Xadj: xadj, Adjncy: adjncy, Ncon: 1}
}

func emptyGraph[T types.Idx](n, base int) *graph.CSR[T] {
	xadj := types.Fill(make([]T, n+1), T(base))
	return &graph.CSR[T]{Xadj: xadj, Adjncy: []T{}, Ncon: 1}
}
