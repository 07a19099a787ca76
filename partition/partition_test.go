package partition

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopart/config"
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/mesh"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

func newTestEngine[T types.Idx]() *Engine[T] {
	return NewEngine[T](config.NewConfig(), zerolog.Nop(), nil)
}

func counts[T types.Idx](part []T, base T, nparts int) []int {
	c := make([]int, nparts)
	for _, p := range part {
		c[p-base]++
	}
	return c
}

func sum(vals []int) (s int) {
	for _, v := range vals {
		s += v
	}
	return
}

// checkCoverage verifies that every vertex has exactly one part in range.
func checkCoverage[T types.Idx](t *testing.T, part []T, nv, nparts int, base T) {
	t.Helper()
	require.Len(t, part, nv)
	for v, p := range part {
		require.True(t, p >= base && p < base+T(nparts), "part[%d]=%d outside [%d,%d)", v, p, base, base+T(nparts))
	}
	assert.Equal(t, nv, sum(counts(part, base, nparts)))
}

func TestManualExample(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](5, 3)

	objval, part, err := e.PartGraphKway(g, 4, nil, nil, nil, nil)
	require.NoError(t, err)
	checkCoverage(t, part, 15, 4, 0)
	assert.Equal(t, EdgeCut(g, part), objval)

	objval, part, err = e.PartGraphRecursive(g, 4, nil, nil, nil, nil)
	require.NoError(t, err)
	checkCoverage(t, part, 15, 4, 0)
	assert.Equal(t, EdgeCut(g, part), objval)
	for _, c := range counts(part, 0, 4) {
		assert.Positive(t, c)
	}
}

func TestNumberingRoundTrip(t *testing.T) {
	for _, nparts := range []int{2, 3, 4, 7} {
		e := newTestEngine[int64]()
		g0 := graph.Grid[int64](6, 5)
		g1 := g0.Rebase(types.FortranNumbering)

		cut0, part0, err := e.PartGraphKway(g0, nparts, nil, nil, nil, nil)
		require.NoError(t, err)
		cut1, part1, err := e.PartGraphKway(g1, nparts, nil, nil, nil, nil)
		require.NoError(t, err)

		checkCoverage(t, part0, 30, nparts, 0)
		checkCoverage(t, part1, 30, nparts, 1)
		assert.ElementsMatch(t, counts(part0, 0, nparts), counts(part1, 1, nparts))
		assert.Equal(t, cut0, cut1)

		// NUMBERING overrides the base of the input
		opts := options.New().With(options.NUMBERING, 0)
		_, part2, err := e.PartGraphRecursive(g1, nparts, nil, nil, &opts, nil)
		require.NoError(t, err)
		checkCoverage(t, part2, 30, nparts, 0)
	}
}

func TestImbalanceBound(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](20, 20)
	ubvec := []types.Real{1.05}

	for _, run := range []struct {
		name string
		fn   func() (int32, []int32, error)
	}{
		{"kway", func() (int32, []int32, error) { return e.PartGraphKway(g, 4, nil, ubvec, nil, nil) }},
		{"recursive", func() (int32, []int32, error) { return e.PartGraphRecursive(g, 4, nil, ubvec, nil, nil) }},
	} {
		t.Run(run.name, func(t *testing.T) {
			cut, part, err := run.fn()
			require.NoError(t, err)
			checkCoverage(t, part, 400, 4, 0)
			for _, w := range PartWeights(g, part, 4) {
				assert.LessOrEqual(t, w, int32(105))
			}
			assert.LessOrEqual(t, Imbalance(g, part, 4)[0], 1.05)
			assert.LessOrEqual(t, cut, int32(100))
		})
	}
}

func TestTargetWeights(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](10, 10)
	tpwgts := []types.Real{0.25, 0.75}
	_, part, err := e.PartGraphRecursive(g, 2, tpwgts, []types.Real{1.05}, nil, nil)
	require.NoError(t, err)
	c := counts(part, 0, 2)
	assert.InDelta(t, 25, c[0], 3)
	assert.InDelta(t, 75, c[1], 4)
}

func TestObjectives(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](12, 12)

	opts := options.New().With(options.OBJTYPE, int(options.ObjTypeVol))
	vol, part, err := e.PartGraphKway(g, 6, nil, nil, &opts, nil)
	require.NoError(t, err)
	checkCoverage(t, part, 144, 6, 0)
	assert.Equal(t, CommVolume(g, part, 6), vol)

	_, _, err = e.PartGraphRecursive(g, 6, nil, nil, &opts, nil)
	assert.ErrorIs(t, err, types.ErrPartitionInput, "recursive bisection has no volume objective")
}

func TestOptionVariants(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](16, 16)
	variants := map[string]options.Options{
		"random matching":  options.New().With(options.CTYPE, int(options.CTypeRM)),
		"no 2-hop":         options.New().With(options.NO2HOP, 1),
		"random initial":   options.New().With(options.IPTYPE, int(options.IPTypeRandom)),
		"edge initial":     options.New().With(options.IPTYPE, int(options.IPTypeEdge)),
		"several cuts":     options.New().With(options.NCUTS, 3),
		"min connectivity": options.New().With(options.MINCONN, 1),
		"seeded":           options.New().With(options.SEED, 7),
	}
	for name, opts := range variants {
		t.Run(name, func(t *testing.T) {
			_, part, err := e.PartGraphKway(g, 8, nil, nil, &opts, nil)
			require.NoError(t, err)
			checkCoverage(t, part, 256, 8, 0)
			_, part, err = e.PartGraphRecursive(g, 5, nil, nil, &opts, nil)
			require.NoError(t, err)
			checkCoverage(t, part, 256, 5, 0)
		})
	}
}

func TestContiguity(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](20, 20)
	opts := options.New().With(options.CONTIG, 1)
	_, part, err := e.PartGraphKway(g, 6, nil, nil, &opts, nil)
	require.NoError(t, err)
	checkCoverage(t, part, 400, 6, 0)

	// Every part must be a single connected piece
	for p := int32(0); p < 6; p++ {
		var (
			seen  = make([]bool, 400)
			start = -1
			size  int
		)
		for v, q := range part {
			if q == p {
				size++
				if start < 0 {
					start = v
				}
			}
		}
		require.GreaterOrEqual(t, start, 0)
		stack, reached := []int{start}, 1
		seen[start] = true
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, u := range g.Neighbors(v) {
				if part[u] == p && !seen[u] {
					seen[u] = true
					reached++
					stack = append(stack, int(u))
				}
			}
		}
		assert.Equal(t, size, reached, "part %d is not contiguous", p)
	}
}

func TestMultiConstraint(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](10, 10)
	g.Ncon = 2
	g.Vwgt = make([]int32, 200)
	for v := 0; v < 100; v++ {
		g.Vwgt[2*v] = 1
		g.Vwgt[2*v+1] = int32(v % 2)
	}
	_, part, err := e.PartGraphKway(g, 2, nil, []types.Real{1.1, 1.3}, nil, nil)
	require.NoError(t, err)
	checkCoverage(t, part, 100, 2, 0)
	pw := PartWeights(g, part, 2)
	require.Len(t, pw, 4)
	assert.Equal(t, int32(100), pw[0]+pw[2])
	assert.Equal(t, int32(50), pw[1]+pw[3])
}

func TestBufferReuse(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](5, 3)
	buf := types.Fill(make([]int32, 20), 99)

	_, part, err := e.PartGraphKway(g, 4, nil, nil, nil, buf)
	require.NoError(t, err)
	require.Len(t, part, 15)
	assert.Same(t, &buf[0], &part[0])
	assert.Equal(t, int32(99), buf[15])

	_, _, err = e.PartGraphKway(g, 4, nil, nil, nil, make([]int32, 10))
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestInputErrors(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](5, 3)
	bad := &graph.CSR[int32]{Xadj: types.Shifted(g.Xadj, 2), Adjncy: g.Adjncy}

	cases := []struct {
		name string
		err  error
		call func() error
	}{
		{"zero parts", types.ErrPartitionInput, func() error {
			_, _, err := e.PartGraphKway(g, 0, nil, nil, nil, nil)
			return err
		}},
		{"short tpwgts", types.ErrPartitionInput, func() error {
			_, _, err := e.PartGraphKway(g, 4, []types.Real{0.5, 0.5}, nil, nil, nil)
			return err
		}},
		{"tpwgts not normalized", types.ErrPartitionInput, func() error {
			_, _, err := e.PartGraphRecursive(g, 2, []types.Real{0.5, 0.6}, nil, nil, nil)
			return err
		}},
		{"tight ubvec", types.ErrPartitionInput, func() error {
			_, _, err := e.PartGraphKway(g, 4, nil, []types.Real{0.9}, nil, nil)
			return err
		}},
		{"bad base", types.ErrInvalidGraph, func() error {
			_, _, err := e.PartGraphKway(bad, 4, nil, nil, nil, nil)
			return err
		}},
		{"nil graph", types.ErrInvalidGraph, func() error {
			_, _, err := e.PartGraphRecursive(nil, 4, nil, nil, nil, nil)
			return err
		}},
		{"bad option", types.ErrPartitionInput, func() error {
			opts := options.New().With(options.CTYPE, 9)
			_, _, err := e.PartGraphKway(g, 4, nil, nil, &opts, nil)
			return err
		}},
		{"short vwgt", types.ErrPartitionInput, func() error {
			w := &graph.CSR[int32]{Xadj: g.Xadj, Adjncy: g.Adjncy, Vwgt: []int32{1, 2}, Ncon: 1}
			_, _, err := e.PartGraphKway(w, 4, nil, nil, nil, nil)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
			assert.Equal(t, types.StatusErrorInput, types.StatusOf(err))
			assert.False(t, types.Retriable(err))
		})
	}
}

func TestMemoryLimit(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Set("engine.max_working_set_bytes", 1024)
	e := NewEngine[int64](cfg, zerolog.Nop(), nil)

	_, _, err := e.PartGraphKway(graph.Grid[int64](30, 30), 4, nil, nil, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPartitionMemory)
	assert.Equal(t, types.StatusErrorMemory, types.StatusOf(err))
	assert.True(t, types.Retriable(err))

	// The same call fits once the limit is lifted
	cfg.Set("engine.max_working_set_bytes", 0)
	_, _, err = NewEngine[int64](cfg, zerolog.Nop(), nil).PartGraphKway(graph.Grid[int64](30, 30), 4, nil, nil, nil, nil)
	assert.NoError(t, err)
}

func TestEngineFailureIsRecovered(t *testing.T) {
	e := newTestEngine[int32]()
	err := e.Call(types.Serial, "Broken", types.Args{"nparts": 2}, func() (int64, error) {
		var s []int
		return int64(s[3]), nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPartitionEngine)
	assert.Equal(t, types.StatusError, types.StatusOf(err))
	assert.Contains(t, err.Error(), "Broken")
}

func TestDeterministicAndConcurrent(t *testing.T) {
	e := newTestEngine[int32]()
	g := graph.Grid[int32](15, 15)
	_, want, err := e.PartGraphKway(g, 5, nil, nil, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]int32, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i], _ = e.PartGraphKway(g, 5, nil, nil, nil, nil)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestPartMeshDual(t *testing.T) {
	e := newTestEngine[int32]()
	m := mesh.StructuredTets[int32](3, 3, 3)
	ne, nn := m.NumElements(), m.Nv
	epartBuf, npartBuf := make([]int32, ne), make([]int32, nn)

	objval, epart, npart, err := e.PartMeshDual(m, 4, 3, nil, nil, nil, nil, epartBuf, npartBuf)
	require.NoError(t, err)
	checkCoverage(t, epart, ne, 4, 0)
	checkCoverage(t, npart, nn, 4, 0)
	assert.Same(t, &epartBuf[0], &epart[0])
	assert.Same(t, &npartBuf[0], &npart[0])

	dual, err := m.ToDual(3)
	require.NoError(t, err)
	assert.Equal(t, EdgeCut(dual, epart), objval)

	// Every node sits in the part of at least one of its elements
	for el := 0; el < ne; el++ {
		for _, n := range m.Element(el) {
			found := false
			for e2 := 0; e2 < ne && !found; e2++ {
				if epart[e2] != npart[n] {
					continue
				}
				for _, n2 := range m.Element(e2) {
					found = found || n2 == n
				}
			}
			require.True(t, found, "node %d", n)
		}
	}

	_, _, _, err = e.PartMeshDual(m, 4, 3, nil, nil, nil, nil, nil, make([]int32, 3))
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestPartMeshFortran(t *testing.T) {
	e := newTestEngine[int64]()
	m, err := mesh.FromCells([][]int64{{1, 2, 3}, {2, 4, 3}, {3, 4, 5}, {4, 6, 5}}, 0)
	require.NoError(t, err)

	_, epart, npart, err := e.PartMeshDual(m, 2, 2, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	checkCoverage(t, epart, 4, 2, 1)
	checkCoverage(t, npart, 6, 2, 1)

	opts := options.New().With(options.PTYPE, int(options.PTypeRB))
	_, epart, npart, err = e.PartMeshNodal(m, 2, nil, nil, nil, &opts, nil, nil)
	require.NoError(t, err)
	checkCoverage(t, epart, 4, 2, 1)
	checkCoverage(t, npart, 6, 2, 1)
}

func TestPartMeshNodal(t *testing.T) {
	e := newTestEngine[int32]()
	m := mesh.StructuredTris[int32](8, 8)
	objval, epart, npart, err := e.PartMeshNodal(m, 3, nil, nil, nil, nil, nil, nil)
	require.NoError(t, err)
	checkCoverage(t, npart, 81, 3, 0)
	checkCoverage(t, epart, 128, 3, 0)

	nodal, err := m.ToNodal()
	require.NoError(t, err)
	assert.Equal(t, EdgeCut(nodal, npart), objval)

	_, _, _, err = e.PartMeshNodal(nil, 3, nil, nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidMesh)
}

func TestAnalyze(t *testing.T) {
	g := graph.Grid[int32](4, 2)
	part := []int32{0, 0, 1, 1, 0, 0, 1, 1}
	s, err := Analyze(g, part, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.EdgeCut)
	assert.Equal(t, int64(4), s.CommVolume)
	assert.Equal(t, []float64{1}, s.Imbalance)
	assert.Equal(t, 4.0, s.MeanLoad)
	assert.Equal(t, 0.0, s.StdDevLoad)
	assert.Equal(t, 1, s.MaxNeighbors)
	assert.Equal(t, 2, s.Interfaces[[2]int{0, 1}])
	assert.Equal(t, 2, s.Parts[0].Boundary)
	assert.Equal(t, 2, s.Parts[1].Neighbors[0])

	_, err = Analyze(g, []int32{0, 0, 1, 1, 0, 0, 1, 2}, 2)
	assert.ErrorIs(t, err, types.ErrPartitionInput)
	_, err = Analyze(g, part[:5], 2)
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestBisector(t *testing.T) {
	e := newTestEngine[int32]()
	ctrl, err := options.Resolve("test", options.OpOMETIS, nil)
	require.NoError(t, err)
	b := e.NewBisector(ctrl)

	g := fromCSR(graph.Grid[int32](10, 10))
	where, cut := b.Bisect(g.xadj, g.adjncy, nil, nil, 0.5, 1.05)
	require.Len(t, where, 100)
	assert.Equal(t, g.edgeCut(where), cut)
	side0 := 0
	for _, s := range where {
		side0 += 1 - s
	}
	assert.InDelta(t, 50, side0, 5)
	assert.LessOrEqual(t, cut, 20)
}

func TestContiguousBalance(t *testing.T) {
	e := newTestEngine[int32]()
	ctrl, err := options.Resolve("test", options.OpKMETIS, nil)
	require.NoError(t, err)
	r := e.newRun(ctrl)

	// A path whose left part holds 8 of 10 vertices
	g := fromCSR(graph.Grid[int32](10, 1))
	where := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}
	k := newKwayState(g, where, 2, []float64{0.5, 0.5}, []float64{1.05}, ctrl)
	require.True(t, k.overweight(0))
	r.balanceContig(k, 8)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, k.where)
	assert.Equal(t, []int{5, 5}, k.pwgts)

	// Taking the middle vertex out would split its part
	g = fromCSR(graph.Grid[int32](5, 1))
	where = []int{1, 0, 0, 0, 1}
	k = newKwayState(g, where, 2, []float64{0.5, 0.5}, []float64{1.05}, ctrl)
	seen := make([]int, 5)
	assert.False(t, k.keepsPartConnected(2, seen, 1))
	assert.True(t, k.keepsPartConnected(1, seen, 2))
	assert.False(t, k.keepsPartConnected(0, seen, 3), "a lone vertex would empty its part")
}
