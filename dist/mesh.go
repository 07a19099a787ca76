package dist

import (
	"sort"

	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

// incidence tells a node's owner that element Elem, with Size distinct nodes,
// contains Node.
type incidence struct {
	Node, Elem, Size int
}

// sharing tells the owner of element A that it shares a node with element B.
type sharing struct {
	A, B, SizeB int
}

// meshShare is a validated local mesh share with zero based global ids.
type meshShare struct {
	dist  *Distribution
	base  int
	elems [][]int // distinct nodes per local element
}

func readMeshShare[T types.Idx](op string, rank, nranks int, elmdist, eptr, eind []T) (*meshShare, error) {
	base, err := baseOf(op, elmdist)
	if err != nil {
		return nil, err
	}
	dist, err := NewDistribution(op, elmdist, nranks)
	if err != nil {
		return nil, err
	}
	ne := dist.Count(rank)
	args := types.Args{"rank": rank, "nelements": ne, "len(eptr)": len(eptr)}
	if len(eptr) != ne+1 {
		return nil, types.NewError(op, types.KindInvalidMesh, args,
			"eptr holds %d offsets, elmdist assigns %d elements", len(eptr), ne)
	}
	if int(eptr[0]) != base {
		return nil, types.NewError(op, types.KindInvalidMesh, args,
			"eptr starts at %d, elmdist numbering is %d", eptr[0], base)
	}
	ms := &meshShare{dist: dist, base: base, elems: make([][]int, ne)}
	for e := 0; e < ne; e++ {
		lo, hi := int(eptr[e])-base, int(eptr[e+1])-base
		if hi < lo || hi > len(eind) {
			args["element"] = e
			return nil, types.NewError(op, types.KindInvalidMesh, args,
				"element %d spans eind[%d:%d] of %d entries", e, lo, hi, len(eind))
		}
		nodes := make([]int, 0, hi-lo)
		for _, n := range eind[lo:hi] {
			if int(n) < base {
				args["node"] = n
				return nil, types.NewError(op, types.KindInvalidMesh, args,
					"node %d below numbering base %d", n, base)
			}
			nodes = append(nodes, int(n)-base)
		}
		sort.Ints(nodes)
		ms.elems[e] = compact(nodes)
	}
	return ms, nil
}

// compact drops repeated entries of a sorted slice.
func compact(s []int) []int {
	w := 0
	for i, x := range s {
		if i == 0 || x != s[w-1] {
			s[w] = x
			w++
		}
	}
	return s[:w]
}

// dual builds the local rows of the distributed dual graph, zero based.
// Nodes are spread over the ranks in blocks; each node's owner tells the
// owners of its elements which other elements share it.
func (ms *meshShare) dual(c Comm, ncommon int) (xadj, adjncy []int, err error) {
	var maxNode int64 = -1
	for _, nodes := range ms.elems {
		if len(nodes) > 0 {
			maxNode = max(maxNode, int64(nodes[len(nodes)-1]))
		}
	}
	mx, err := AllReduceInt64(c, []int64{maxNode}, OpMax)
	if err != nil {
		return nil, nil, err
	}
	var (
		nodeDist = Split1D(int(mx[0])+1, c.Size())
		first    = ms.dist.First(c.Rank())
		out      = make(map[int][]incidence)
	)
	for e, nodes := range ms.elems {
		for _, n := range nodes {
			q := nodeDist.Owner(n)
			out[q] = append(out[q], incidence{Node: n, Elem: first + e, Size: len(nodes)})
		}
	}
	in, err := Exchange(c, out)
	if err != nil {
		return nil, nil, err
	}
	byNode := make(map[int][]incidence)
	for _, from := range sortedKeys(in) {
		for _, inc := range in[from] {
			byNode[inc.Node] = append(byNode[inc.Node], inc)
		}
	}
	shares := make(map[int][]sharing)
	for _, incs := range byNode {
		for _, a := range incs {
			for _, b := range incs {
				if a.Elem != b.Elem {
					q := ms.dist.Owner(a.Elem)
					shares[q] = append(shares[q], sharing{A: a.Elem, B: b.Elem, SizeB: b.Size})
				}
			}
		}
	}
	back, err := Exchange(c, shares)
	if err != nil {
		return nil, nil, err
	}

	var (
		ne     = len(ms.elems)
		count  = make([]map[int]int, ne)
		sizeOf = make(map[int]int)
	)
	for _, batch := range back {
		for _, s := range batch {
			l := s.A - first
			if count[l] == nil {
				count[l] = make(map[int]int)
			}
			count[l][s.B]++
			sizeOf[s.B] = s.SizeB
		}
	}
	xadj = make([]int, ne+1)
	for e := 0; e < ne; e++ {
		var nbrs []int
		for b, shared := range count[e] {
			if shared >= max(1, min(ncommon, len(ms.elems[e])-1, sizeOf[b]-1)) {
				nbrs = append(nbrs, b)
			}
		}
		sort.Ints(nbrs)
		adjncy = append(adjncy, nbrs...)
		xadj[e+1] = len(adjncy)
	}
	return xadj, adjncy, nil
}

// Mesh2Dual builds the dual graph of a distributed mesh: local elements keep
// their global numbers and two elements are adjacent when they share at least
// min(ncommon, |e1|-1, |e2|-1) nodes, never less than one. eptr is local and
// starts at the numbering base of elmdist, eind holds global node ids. The
// returned xadj is local, adjncy holds global element ids.
func (co *Coordinator[T]) Mesh2Dual(c Comm, elmdist, eptr, eind []T, ncommon int) (xadj, adjncy []T, err error) {
	const op = "Mesh2Dual"
	err = co.call(c, op, types.Args{"ncommon": ncommon}, func() (int64, error) {
		x, a, base, err := co.dual(op, c, elmdist, eptr, eind, ncommon)
		if err != nil {
			return 0, err
		}
		xadj, adjncy = shiftOut[T](x, base), shiftOut[T](a, base)
		return int64(len(a)), nil
	})
	if err != nil {
		return nil, nil, err
	}
	return
}

func (co *Coordinator[T]) dual(op string, c Comm, elmdist, eptr, eind []T, ncommon int) (xadj, adjncy []int, base int, err error) {
	ms, err := readMeshShare(op, c.Rank(), c.Size(), elmdist, eptr, eind)
	if err == nil && ncommon < 1 {
		err = types.NewError(op, types.KindPartitionInput, types.Args{"ncommon": ncommon}, "ncommon must be positive")
	}
	if err = agree(c, err); err != nil {
		return nil, nil, 0, err
	}
	xadj, adjncy, err = ms.dual(c, ncommon)
	return xadj, adjncy, ms.base, err
}

func shiftOut[T types.Idx](in []int, base int) []T {
	out := make([]T, len(in))
	for i, x := range in {
		out[i] = T(x + base)
	}
	return out
}

// PartMeshKway partitions the elements of a distributed mesh by building its
// dual graph and partitioning that with PartKway. elmwgt is optional.
func (co *Coordinator[T]) PartMeshKway(c Comm, elmdist, eptr, eind, elmwgt []T, ncommon, ncon, nparts int,
	tpwgts, ubvec []types.Real, opts *options.ParOptions, part []T) (edgecut T, out []T, err error) {
	const op = "PartMeshKway"
	var (
		xadj, adjncy []int
		base         int
	)
	err = co.call(c, op, types.Args{"nparts": nparts, "ncommon": ncommon}, func() (int64, error) {
		var err error
		xadj, adjncy, base, err = co.dual(op, c, elmdist, eptr, eind, ncommon)
		return 0, err
	})
	if err != nil {
		return 0, nil, err
	}
	g := &Graph[T]{Xadj: shiftOut[T](xadj, base), Adjncy: shiftOut[T](adjncy, base), Vwgt: elmwgt}
	return co.PartKway(c, elmdist, g, WgtFlag[T](elmwgt, nil), ncon, nparts, tpwgts, ubvec, opts, part)
}
