package graph

import (
	"slices"

	"github.com/notargets/gopart/types"
)

// Grid builds the nx by ny grid graph with vertex j*nx+i at column i, row j.
// Neighbors are listed up, left, right, down, which reproduces the example graph
// of the METIS manual for Grid(5, 3).
func Grid[T types.Idx](nx, ny int) *CSR[T] {
	var (
		nv     = nx * ny
		xadj   = make([]T, nv+1)
		adjncy = make([]T, 0, 4*nv)
	)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v := j*nx + i
			if j > 0 {
				adjncy = append(adjncy, T(v-nx))
			}
			if i > 0 {
				adjncy = append(adjncy, T(v-1))
			}
			if i < nx-1 {
				adjncy = append(adjncy, T(v+1))
			}
			if j < ny-1 {
				adjncy = append(adjncy, T(v+nx))
			}
			xadj[v+1] = T(len(adjncy))
		}
	}
	return &CSR[T]{Xadj: xadj, Adjncy: adjncy, Ncon: 1}
}

// FromEdges builds a graph on nv vertices from undirected edges given as
// zero-based vertex pairs. Each edge is stored once in both directions with its
// neighbors sorted; repeated pairs merge and add their weights, self loops are
// dropped. weights, when non-nil, parallel the edge list.
func FromEdges[T types.Idx](nv int, edges [][2]int, weights []T) *CSR[T] {
	var (
		merged = make(map[types.EdgeKey]T, len(edges))
		keys   = make([]types.EdgeKey, 0, len(edges))
		deg    = make([]int, nv)
		xadj   = make([]T, nv+1)
	)
	for k, e := range edges {
		if e[0] == e[1] {
			continue
		}
		w := T(1)
		if weights != nil {
			w = weights[k]
		}
		key := types.NewEdgeKey(e)
		if _, ok := merged[key]; !ok {
			keys = append(keys, key)
			deg[e[0]]++
			deg[e[1]]++
			merged[key] = 0
		}
		merged[key] += w
	}
	slices.Sort(keys)
	for v := 0; v < nv; v++ {
		xadj[v+1] = xadj[v] + T(deg[v])
	}
	var (
		adjncy = make([]T, xadj[nv])
		fill   = make([]T, nv)
		adjwgt []T
	)
	copy(fill, xadj[:nv])
	if weights != nil {
		adjwgt = make([]T, xadj[nv])
	}
	// Keys ascend by (high, low), so every row fills in increasing order.
	for _, key := range keys {
		vs := key.GetVertices(false)
		for s := 0; s < 2; s++ {
			u, v := vs[s], vs[1-s]
			adjncy[fill[u]] = T(v)
			if adjwgt != nil {
				adjwgt[fill[u]] = merged[key]
			}
			fill[u]++
		}
	}
	return &CSR[T]{Xadj: xadj, Adjncy: adjncy, Adjwgt: adjwgt, Ncon: 1}
}
