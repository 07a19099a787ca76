package types

import (
	"fmt"
	"math"
)

/*
EdgeKey packs an undirected edge into one comparable word with the lower vertex
in the low 32 bits, so u-v and v-u hash to the same key. Sorting keys orders
edges by their higher vertex, then their lower one.
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) EdgeKey {
	for _, vert := range verts {
		if vert < 0 || vert > math.MaxUint32 {
			panic(fmt.Errorf("edge %d-%d does not fit in an EdgeKey", verts[0], verts[1]))
		}
	}
	lo, hi := verts[0], verts[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return EdgeKey(uint64(lo) | uint64(hi)<<32)
}

// GetVertices returns the ends in ascending order, or descending when rev is set.
func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	verts[0] = int(ek & math.MaxUint32)
	verts[1] = int(ek >> 32)
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

/*
ArcKey stores a directed edge, keeping the order of its vertices so that the
direction can be recovered. Used where u->v and v->u must be told apart, as in
symmetry checks.
*/
type ArcKey uint64

func NewArcKey(from, to int) ArcKey {
	if from < 0 || to < 0 || from > math.MaxUint32 || to > math.MaxUint32 {
		panic(fmt.Errorf("unable to pack arc %d->%d into a uint64", from, to))
	}
	return ArcKey(uint64(from)<<32 | uint64(to))
}

func (a ArcKey) Reverse() ArcKey {
	from, to := a.GetVertices()
	return NewArcKey(to, from)
}

func (a ArcKey) GetVertices() (from, to int) {
	return int(a >> 32), int(a & math.MaxUint32)
}
