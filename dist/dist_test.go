package dist

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopart/config"
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/mesh"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/partition"
	"github.com/notargets/gopart/types"
)

func newTestCoordinator() (*Coordinator[int32], *partition.Engine[int32]) {
	e := partition.NewEngine[int32](config.NewConfig(), zerolog.Nop(), nil)
	return NewCoordinator(e, nil), e
}

// split cuts a zero based graph into contiguous rank shares at the given
// vertex boundaries, numbered from base.
func split(g *graph.CSR[int32], base int32, bounds ...int) (vtxdist []int32, shares []*Graph[int32]) {
	for p := 0; p+1 < len(bounds); p++ {
		a, b := bounds[p], bounds[p+1]
		off := g.Xadj[a]
		s := &Graph[int32]{Xadj: make([]int32, 0, b-a+1)}
		for _, x := range g.Xadj[a : b+1] {
			s.Xadj = append(s.Xadj, x-off+base)
		}
		s.Adjncy = types.Shifted(g.Adjncy[g.Xadj[a]:g.Xadj[b]], base)
		if g.Vwgt != nil {
			s.Vwgt = g.Vwgt[a*g.NumConstraints() : b*g.NumConstraints()]
		}
		if g.Adjwgt != nil {
			s.Adjwgt = g.Adjwgt[g.Xadj[a]:g.Xadj[b]]
		}
		shares = append(shares, s)
	}
	for _, b := range bounds {
		vtxdist = append(vtxdist, int32(b)+base)
	}
	return
}

// runParts runs a partitioning call on every rank and merges the parts.
func runParts(t *testing.T, np int, fn func(c Comm) (int32, []int32, error)) (cut int32, merged []int32) {
	t.Helper()
	var (
		cuts  = make([]int32, np)
		parts = make([][]int32, np)
	)
	err := NewGroup(np, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		var err error
		cuts[c.Rank()], parts[c.Rank()], err = fn(c)
		return err
	})
	require.NoError(t, err)
	for r := 1; r < np; r++ {
		require.Equal(t, cuts[0], cuts[r], "ranks disagree on the edge-cut")
	}
	return cuts[0], slices.Concat(parts...)
}

func maxCount(part []int32, base int32, nparts int) int {
	c := make([]int, nparts)
	for _, p := range part {
		c[p-base]++
	}
	return slices.Max(c)
}

func checkLabels(t *testing.T, part []int32, nv, nparts int, base int32) {
	t.Helper()
	require.Len(t, part, nv)
	for v, p := range part {
		require.True(t, p >= base && p < base+int32(nparts), "part[%d]=%d", v, p)
	}
}

func TestPartKwayMatchesSerial(t *testing.T) {
	co, e := newTestCoordinator()
	g := graph.Grid[int32](5, 3)
	serialCut, _, err := e.PartGraphKway(g, 2, nil, nil, nil, nil)
	require.NoError(t, err)

	vtxdist, shares := split(g, 0, 0, 7, 15)
	cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		return co.PartKway(c, vtxdist, shares[c.Rank()], 0, 1, 2, nil, nil, nil, nil)
	})
	checkLabels(t, part, 15, 2, 0)
	assert.Equal(t, partition.EdgeCut(g, part), cut)
	assert.LessOrEqual(t, maxCount(part, 0, 2), 8)
	assert.LessOrEqual(t, cut, serialCut+2)
}

func TestPartKwayTrimsLongAdjncy(t *testing.T) {
	var buf bytes.Buffer
	e := partition.NewEngine[int32](config.NewConfig(), zerolog.New(zerolog.SyncWriter(&buf)), nil)
	co := NewCoordinator(e, nil)
	g := graph.Grid[int32](5, 3)
	vtxdist, shares := split(g, 0, 0, 7, 15)
	long := *shares[1]
	long.Adjncy = append(slices.Clone(long.Adjncy), 99, 99, 99)
	cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		share := shares[0]
		if c.Rank() == 1 {
			share = &long
		}
		return co.PartKway(c, vtxdist, share, 0, 1, 2, nil, nil, nil, nil)
	})
	checkLabels(t, part, 15, 2, 0)
	assert.Equal(t, partition.EdgeCut(g, part), cut)
	assert.Contains(t, buf.String(), "adjncy longer than declared")
}

func TestPartKwayCoarsens(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](20, 20)
	bound := maxPartWeights([]int{400}, 1, []float64{.25, .25, .25, .25}, []float64{defaultUB}, 4)[0]
	for _, bounds := range [][]int{{0, 200, 400}, {0, 130, 260, 400}, {0, 0, 250, 400}} {
		np := len(bounds) - 1
		vtxdist, shares := split(g, 1, bounds...)
		cut, part := runParts(t, np, func(c Comm) (int32, []int32, error) {
			return co.PartKway(c, vtxdist, shares[c.Rank()], 0, 1, 4, nil, nil, nil, nil)
		})
		checkLabels(t, part, 400, 4, 1)
		assert.Equal(t, partition.EdgeCut(g, part), cut, "ranks %v", bounds)
		assert.LessOrEqual(t, cut, int32(80), "ranks %v", bounds)
		assert.LessOrEqual(t, maxCount(part, 1, 4), bound, "ranks %v", bounds)
	}
}

func TestPartKwayDeterministic(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](16, 12)
	vtxdist, shares := split(g, 0, 0, 100, 192)
	opts := &options.ParOptions{1, 0, 7, 0}
	run := func() []int32 {
		_, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
			return co.PartKway(c, vtxdist, shares[c.Rank()], 0, 1, 3, nil, nil, opts, nil)
		})
		return part
	}
	assert.Equal(t, run(), run())
}

func TestPartKwayWeighted(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](12, 12)
	g.Vwgt = make([]int32, 144)
	g.Adjwgt = types.Fill(make([]int32, len(g.Adjncy)), 2)
	for v := range g.Vwgt {
		g.Vwgt[v] = int32(1 + v%3)
	}
	vtxdist, shares := split(g, 0, 0, 70, 144)
	cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		return co.PartKway(c, vtxdist, shares[c.Rank()], 3, 1, 2, []types.Real{0.25, 0.75}, []types.Real{1.1}, nil, nil)
	})
	checkLabels(t, part, 144, 2, 0)
	assert.Equal(t, partition.EdgeCut(g, part), cut)
	w := partition.PartWeights(g, part, 2)
	frac := float64(w[0]) / float64(w[0]+w[1])
	assert.GreaterOrEqual(t, frac, 0.17)
	assert.LessOrEqual(t, frac, 0.28)
}

func TestPartKwayInputErrors(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](5, 3)
	vtxdist, shares := split(g, 0, 0, 7, 15)
	short := &Graph[int32]{Xadj: shares[1].Xadj[:4], Adjncy: shares[1].Adjncy}
	cases := map[string]struct {
		vtxdist []int32
		share1  *Graph[int32]
		nparts  int
		wgtflag int
		is      error
	}{
		"short xadj on one rank": {vtxdist, short, 2, 0, types.ErrInvalidGraph},
		"zero parts":             {vtxdist, shares[1], 0, 0, types.ErrPartitionInput},
		"vertex weights missing": {vtxdist, shares[1], 2, 2, types.ErrPartitionInput},
		"bad numbering":          {[]int32{2, 9, 17}, shares[1], 2, 0, types.ErrPartitionInput},
		"vtxdist too short":      {vtxdist[:2], shares[1], 2, 0, types.ErrPartitionInput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			errs := make([]error, 2)
			err := NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
				share := shares[0]
				if c.Rank() == 1 {
					share = tc.share1
				}
				_, _, errs[c.Rank()] = co.PartKway(c, tc.vtxdist, share, tc.wgtflag, 1, tc.nparts, nil, nil, nil, nil)
				return errs[c.Rank()]
			})
			require.ErrorIs(t, err, tc.is)
			for _, e := range errs {
				assert.ErrorIs(t, e, tc.is)
				assert.Equal(t, types.StatusErrorInput, types.StatusOf(e))
			}
		})
	}
}

func TestConsistencyCheck(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](5, 3)
	vtxdist, shares := split(g, 0, 0, 7, 15)
	errs := make([]error, 2)
	err := NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		var (
			nparts = 2
			opts   *options.ParOptions
		)
		if c.Rank() == 0 {
			opts = &options.ParOptions{1, int(options.DbgCheck), 0, 0}
		} else {
			nparts = 3
		}
		_, _, errs[c.Rank()] = co.PartKway(c, vtxdist, shares[c.Rank()], 0, 1, nparts, nil, nil, opts, nil)
		return errs[c.Rank()]
	})
	require.ErrorIs(t, err, types.ErrGroupConsistency)
	for _, e := range errs {
		assert.ErrorIs(t, e, types.ErrGroupConsistency)
	}

	cfg := config.NewConfig()
	cfg.Set("dist.check_consistency", true)
	checked := NewCoordinator(partition.NewEngine[int32](cfg, zerolog.Nop(), nil), cfg)
	err = NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		_, _, err := checked.PartKway(c, vtxdist, shares[c.Rank()], c.Rank(), 1, 2, nil, nil, nil, nil)
		return err
	})
	assert.ErrorIs(t, err, types.ErrGroupConsistency)
}

func TestRefineKway(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](10, 10)
	start := make([]int32, 100)
	for v := range start {
		start[v] = int32((v%10 + v/10) % 2)
	}
	before := partition.EdgeCut(g, start)
	vtxdist, shares := split(g, 0, 0, 40, 100)
	cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		lo, hi := vtxdist[c.Rank()], vtxdist[c.Rank()+1]
		mine := slices.Clone(start[lo:hi])
		return co.RefineKway(c, vtxdist, shares[c.Rank()], 0, 1, 2, nil, nil, nil, mine)
	})
	checkLabels(t, part, 100, 2, 0)
	assert.Equal(t, partition.EdgeCut(g, part), cut)
	assert.Less(t, cut, before)
	assert.LessOrEqual(t, maxCount(part, 0, 2), 52)
}

func TestAdaptiveRepart(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](12, 12)
	vtxdist, shares := split(g, 0, 0, 72, 144)
	_, current := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		return co.PartKway(c, vtxdist, shares[c.Rank()], 0, 1, 3, nil, nil, nil, nil)
	})
	for _, itr := range []types.Real{0.001, 1000} {
		cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
			lo, hi := vtxdist[c.Rank()], vtxdist[c.Rank()+1]
			mine := slices.Clone(current[lo:hi])
			return co.AdaptiveRepart(c, vtxdist, shares[c.Rank()], 0, 1, 3, nil, nil, itr, nil, mine)
		})
		checkLabels(t, part, 144, 3, 0)
		assert.Equal(t, partition.EdgeCut(g, part), cut)
		if itr < 1 {
			// Migration dominates: a refined copy of a good partition barely moves
			var moved int
			for v := range part {
				if part[v] != current[v] {
					moved++
				}
			}
			assert.LessOrEqual(t, moved, 20)
		}
	}
}

func TestRemapFollowsOverlap(t *testing.T) {
	old := []int{0, 0, 0, 1, 1, 1, 2, 2}
	cur := []int{2, 2, 2, 0, 0, 1, 1, 1}
	var got []int
	require.NoError(t, NewGroup(1, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		j := &job{
			r:      &drun{c: c},
			g:      &dgraph{ncon: 1, vsize: types.Fill(make([]int, len(old)), 1)},
			nparts: 3,
			tpwgts: []float64{1. / 3, 1. / 3, 1. / 3},
		}
		var err error
		got, err = j.remap(old, cur)
		return err
	}))
	assert.Equal(t, []int{0, 0, 0, 1, 1, 2, 2, 2}, got)
}

func TestPartGeom(t *testing.T) {
	co, _ := newTestCoordinator()
	const nx, ny = 5, 3
	xyz := make([]types.Real, 0, 2*nx*ny)
	for v := 0; v < nx*ny; v++ {
		xyz = append(xyz, types.Real(v%nx), types.Real(v/nx))
	}
	vtxdist := []int32{0, 7, 15}
	_, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		lo, hi := vtxdist[c.Rank()], vtxdist[c.Rank()+1]
		p, err := co.PartGeom(c, vtxdist, 2, xyz[2*lo:2*hi], nil)
		return 0, p, err
	})
	checkLabels(t, part, 15, 2, 0)
	assert.Equal(t, int32(1), slices.Max(part))
	assert.Equal(t, 8, maxCount(part, 0, 2))
}

func TestPartGeomKway(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](16, 16)
	xyz := make([]types.Real, 0, 2*256)
	for v := 0; v < 256; v++ {
		xyz = append(xyz, types.Real(v%16), types.Real(v/16))
	}
	vtxdist, shares := split(g, 0, 0, 128, 256)
	cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		lo, hi := vtxdist[c.Rank()], vtxdist[c.Rank()+1]
		return co.PartGeomKway(c, vtxdist, shares[c.Rank()], 0, 1, 2, xyz[2*lo:2*hi], 4, nil, nil, nil, nil)
	})
	checkLabels(t, part, 256, 4, 0)
	assert.Equal(t, partition.EdgeCut(g, part), cut)
	// Morton quadrants of a square grid are the optimal 4-way cut
	assert.LessOrEqual(t, cut, int32(40))
	assert.LessOrEqual(t, maxCount(part, 0, 4), 67)
}

func TestPartGeomNeedsPlanarOrSpatialPoints(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](4, 2)
	vtxdist, shares := split(g, 0, 0, 4, 8)
	xs := []types.Real{0, 1, 2, 3, 0, 1, 2, 3}
	for _, ndims := range []int{0, 1, 4} {
		errs := make([]error, 2)
		err := NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
			lo, hi := vtxdist[c.Rank()], vtxdist[c.Rank()+1]
			if ndims == 1 {
				_, errs[c.Rank()] = co.PartGeom(c, vtxdist, ndims, xs[lo:hi], nil)
			} else {
				_, _, errs[c.Rank()] = co.PartGeomKway(c, vtxdist, shares[c.Rank()], 0, 1, ndims,
					xs, 2, nil, nil, nil, nil)
			}
			return errs[c.Rank()]
		})
		require.ErrorIs(t, err, types.ErrPartitionInput, "ndims=%d", ndims)
		for _, e := range errs {
			assert.ErrorIs(t, e, types.ErrPartitionInput)
		}
	}
}

// splitMesh cuts a mesh into contiguous element shares, each with a local
// eptr starting at the numbering base.
func splitMesh(m *mesh.Mesh[int32], bounds ...int) (elmdist []int32, eptrs, einds [][]int32) {
	base := m.Eptr[0]
	for p := 0; p+1 < len(bounds); p++ {
		a, b := bounds[p], bounds[p+1]
		off := m.Eptr[a]
		eptr := make([]int32, 0, b-a+1)
		for _, x := range m.Eptr[a : b+1] {
			eptr = append(eptr, x-off+base)
		}
		eptrs = append(eptrs, eptr)
		einds = append(einds, m.Eind[off-base:m.Eptr[b]-base])
	}
	for _, b := range bounds {
		elmdist = append(elmdist, int32(b)+base)
	}
	return
}

func TestMesh2Dual(t *testing.T) {
	co, _ := newTestCoordinator()
	m := mesh.StructuredTets[int32](2, 2, 2)
	ne := m.NumElements()
	for _, ncommon := range []int{1, 3} {
		want, err := m.ToDual(ncommon)
		require.NoError(t, err)
		elmdist, eptrs, einds := splitMesh(m, 0, 17, ne)
		var (
			xadjs   = make([][]int32, 2)
			adjncys = make([][]int32, 2)
		)
		require.NoError(t, NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
			var err error
			r := c.Rank()
			xadjs[r], adjncys[r], err = co.Mesh2Dual(c, elmdist, eptrs[r], einds[r], ncommon)
			return err
		}))
		assert.Len(t, xadjs[0], 18)
		assert.Equal(t, want.Adjncy, slices.Concat(adjncys...), "ncommon=%d", ncommon)
		assert.Equal(t, int(xadjs[1][len(xadjs[1])-1]), len(adjncys[1]))
	}
}

func TestMesh2DualFortran(t *testing.T) {
	co, _ := newTestCoordinator()
	m := mesh.StructuredTris[int32](3, 3)
	cells := make([][]int32, m.NumElements())
	for e := range cells {
		cells[e] = types.Shifted(m.Element(e), 1)
	}
	m1, err := mesh.FromCells(cells, m.Nv)
	require.NoError(t, err)
	require.Equal(t, 1, m1.Base())
	want, err := m1.ToDual(2)
	require.NoError(t, err)

	elmdist, eptrs, einds := splitMesh(m1, 0, 9, m1.NumElements())
	adjncys := make([][]int32, 2)
	require.NoError(t, NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		var err error
		_, adjncys[c.Rank()], err = co.Mesh2Dual(c, elmdist, eptrs[c.Rank()], einds[c.Rank()], 2)
		return err
	}))
	assert.Equal(t, want.Adjncy, slices.Concat(adjncys...))
}

func TestMesh2DualErrors(t *testing.T) {
	co, _ := newTestCoordinator()
	m := mesh.StructuredTets[int32](1, 1, 1)
	elmdist, eptrs, einds := splitMesh(m, 0, 3, 6)
	err := NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		eptr := eptrs[c.Rank()]
		if c.Rank() == 1 {
			eptr = eptr[:2]
		}
		_, _, err := co.Mesh2Dual(c, elmdist, eptr, einds[c.Rank()], 3)
		return err
	})
	assert.ErrorIs(t, err, types.ErrInvalidMesh)

	err = NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		_, _, err := co.Mesh2Dual(c, elmdist, eptrs[c.Rank()], einds[c.Rank()], 0)
		return err
	})
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestPartMeshKway(t *testing.T) {
	co, _ := newTestCoordinator()
	m := mesh.StructuredTets[int32](3, 3, 3)
	ne := m.NumElements()
	dual, err := m.ToDual(3)
	require.NoError(t, err)
	elmdist, eptrs, einds := splitMesh(m, 0, 80, ne)
	cut, part := runParts(t, 2, func(c Comm) (int32, []int32, error) {
		r := c.Rank()
		return co.PartMeshKway(c, elmdist, eptrs[r], einds[r], nil, 3, 1, 3, nil, nil, nil, nil)
	})
	checkLabels(t, part, ne, 3, 0)
	assert.Equal(t, partition.EdgeCut(dual, part), cut)
	assert.LessOrEqual(t, maxCount(part, 0, 3), 60)
}

func TestNodeND(t *testing.T) {
	co, _ := newTestCoordinator()
	g := graph.Grid[int32](8, 8)
	vtxdist, shares := split(g, 0, 0, 30, 64)
	var (
		orders = make([][]int32, 2)
		sizes  = make([][]int32, 2)
	)
	require.NoError(t, NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		var err error
		orders[c.Rank()], sizes[c.Rank()], err = co.NodeND(c, vtxdist, shares[c.Rank()], nil, nil)
		return err
	}))
	order := slices.Concat(orders...)
	sorted := slices.Clone(order)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for k, v := range sorted {
		require.Equal(t, int32(k), v)
	}
	assert.Equal(t, sizes[0], sizes[1])
	require.Len(t, sizes[0], 3)
	var total int32
	for _, s := range sizes[0] {
		total += s
	}
	assert.Equal(t, int32(64), total)

	vtxdist3, shares3 := split(g, 0, 0, 20, 40, 64)
	err := NewGroup(3, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		_, _, err := co.NodeND(c, vtxdist3, shares3[c.Rank()], nil, nil)
		return err
	})
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestBuildVtxdist(t *testing.T) {
	got := make([][]int32, 3)
	require.NoError(t, NewGroup(3, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		var err error
		got[c.Rank()], err = BuildVtxdist[int32](c, 2+c.Rank(), types.FortranNumbering)
		return err
	}))
	for _, v := range got {
		assert.Equal(t, []int32{1, 3, 6, 10}, v)
	}
}

func TestWgtFlag(t *testing.T) {
	w := []int32{1}
	assert.Equal(t, 0, WgtFlag[int32](nil, nil))
	assert.Equal(t, 1, WgtFlag(nil, w))
	assert.Equal(t, 2, WgtFlag(w, nil))
	assert.Equal(t, 3, WgtFlag(w, w))
}

func TestDistribution(t *testing.T) {
	d, err := NewDistribution("test", []int64{1, 4, 4, 9}, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, d.Total())
	assert.Equal(t, 0, d.Owner(2))
	assert.Equal(t, 2, d.Owner(3))
	assert.Equal(t, -1, d.Owner(8))
	l, o := d.Local(5)
	assert.Equal(t, []int{2, 2}, []int{l, o})

	_, err = NewDistribution("test", []int64{0, 5, 3}, 2)
	assert.ErrorIs(t, err, types.ErrPartitionInput)

	s := Split1D(10, 3)
	assert.Equal(t, []int{0, 4, 7, 10}, s.Dist)
}
