package dist

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

// curvePoint is a vertex placed on the space filling curve.
type curvePoint struct {
	Key uint64
	Gid int
	Wgt int
}

// mortonKey interleaves the bits of quantized coordinates.
func mortonKey(q []uint64, bits int) (key uint64) {
	for b := bits - 1; b >= 0; b-- {
		for _, x := range q {
			key = key<<1 | (x>>uint(b))&1
		}
	}
	return
}

// curve orders the vertices of all ranks along a Morton curve over the global
// bounding box. The returned points are in curve order, ties broken by id.
func curve(op string, c Comm, first, n, ndims int, xyz []types.Real, vwgt func(v int) int) ([]curvePoint, error) {
	err := func() error {
		if ndims != 2 && ndims != 3 {
			return types.NewError(op, types.KindPartitionInput, types.Args{"ndims": ndims},
				"ndims=%d, points must be 2D or 3D", ndims)
		}
		if len(xyz) < n*ndims {
			return types.NewError(op, types.KindPartitionInput, types.Args{"len(xyz)": len(xyz)},
				"xyz holds %d coordinates, need %d", len(xyz), n*ndims)
		}
		return nil
	}()
	if err = agree(c, err); err != nil {
		return nil, err
	}

	box := make([]float64, 2*ndims)
	for d := 0; d < ndims; d++ {
		box[d], box[ndims+d] = math.Inf(1), math.Inf(-1)
		if n == 0 {
			continue
		}
		col := make([]float64, n)
		for v := range col {
			col[v] = float64(xyz[v*ndims+d])
		}
		box[d], box[ndims+d] = floats.Min(col), floats.Max(col)
	}
	boxes, err := AllGather(c, box)
	if err != nil {
		return nil, err
	}
	lo, hi := make([]float64, ndims), make([]float64, ndims)
	for d := range lo {
		lo[d], hi[d] = math.Inf(1), math.Inf(-1)
		for _, b := range boxes {
			lo[d], hi[d] = min(lo[d], b[d]), max(hi[d], b[ndims+d])
		}
	}

	var (
		bits  = min(32, 63/ndims)
		scale = float64(uint64(1)<<uint(bits) - 1)
		q     = make([]uint64, ndims)
		local = make([]curvePoint, n)
	)
	for v := 0; v < n; v++ {
		for d := range q {
			var t float64
			if span := hi[d] - lo[d]; span > 0 {
				t = (float64(xyz[v*ndims+d]) - lo[d]) / span
			}
			q[d] = uint64(t * scale)
		}
		local[v] = curvePoint{Key: mortonKey(q, bits), Gid: first + v, Wgt: vwgt(v)}
	}
	all, err := AllGather(c, local)
	if err != nil {
		return nil, err
	}
	var pts []curvePoint
	for _, batch := range all {
		pts = append(pts, batch...)
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Key != pts[j].Key {
			return pts[i].Key < pts[j].Key
		}
		return pts[i].Gid < pts[j].Gid
	})
	return pts, nil
}

// splitCurve cuts the curve into nparts consecutive pieces whose weights
// follow tpwgts and returns the part of every local vertex. A vertex goes to
// the part holding the midpoint of its weight.
func splitCurve(pts []curvePoint, first, n, nparts int, tpwgts []float64, ncon int) []int {
	var total float64
	for _, p := range pts {
		total += float64(p.Wgt)
	}
	where := make([]int, n)
	var (
		cum   float64
		part  int
		bound = tpwgts[0] * total
	)
	for _, p := range pts {
		mid := cum + float64(p.Wgt)/2
		for part < nparts-1 && mid >= bound {
			part++
			bound += tpwgts[part*ncon] * total
		}
		cum += float64(p.Wgt)
		if l := p.Gid - first; l >= 0 && l < n {
			where[l] = part
		}
	}
	return where
}

// PartGeom partitions the vertices into one part per rank by cutting a
// Morton space filling curve through their coordinates. xyz holds ndims
// coordinates per local vertex.
func (co *Coordinator[T]) PartGeom(c Comm, vtxdist []T, ndims int, xyz []types.Real, part []T) (out []T, err error) {
	const op = "PartGeom"
	err = co.call(c, op, types.Args{"ndims": ndims}, func() (int64, error) {
		base, err := baseOf(op, vtxdist)
		var dist *Distribution
		if err == nil {
			dist, err = NewDistribution(op, vtxdist, c.Size())
		}
		if err == nil && !types.BufferFits(part, dist.Count(c.Rank())) {
			err = types.NewError(op, types.KindPartitionInput, types.Args{"len(part)": len(part)},
				"part buffer holds %d entries, need %d", len(part), dist.Count(c.Rank()))
		}
		if err = agree(c, err); err != nil {
			return 0, err
		}
		var (
			first = dist.First(c.Rank())
			n     = dist.Count(c.Rank())
		)
		pts, err := curve(op, c, first, n, ndims, xyz, func(int) int { return 1 })
		if err != nil {
			return 0, err
		}
		np := c.Size()
		tp := make([]float64, np)
		for p := range tp {
			tp[p] = float64(Split1D(len(pts), np).Count(p)) / float64(max(len(pts), 1))
		}
		out = writePart(splitCurve(pts, first, n, np, tp, 1), base, part)
		return 0, nil
	})
	if err != nil {
		return nil, err
	}
	return
}

// PartGeomKway seeds a k-way partition by cutting the space filling curve
// through the vertex coordinates by weight, then refines it on the graph.
func (co *Coordinator[T]) PartGeomKway(c Comm, vtxdist []T, g *Graph[T], wgtflag, ncon, ndims int,
	xyz []types.Real, nparts int, tpwgts, ubvec []types.Real, opts *options.ParOptions,
	part []T) (edgecut T, out []T, err error) {
	const op = "PartGeomKway"
	err = co.call(c, op, types.Args{"nparts": nparts, "ndims": ndims}, func() (int64, error) {
		j, err := co.prepare(op, c, vtxdist, g, wgtflag, ncon, nparts, tpwgts, ubvec, opts, part)
		if err != nil {
			return 0, err
		}
		pts, err := curve(op, c, j.g.first(), j.g.nvtxs, ndims, xyz, func(v int) int { return j.g.vwgt[v*j.g.ncon] })
		if err != nil {
			return 0, err
		}
		where := splitCurve(pts, j.g.first(), j.g.nvtxs, nparts, j.tpwgts, j.g.ncon)
		if err = j.r.refine(j.g, where, nparts, j.tpwgts, j.ub); err != nil {
			return 0, err
		}
		cut, err := j.cut(where)
		if err != nil {
			return 0, err
		}
		edgecut, out = T(cut), writePart(where, j.base, part)
		co.report(j, op, cut)
		return int64(cut), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return
}
