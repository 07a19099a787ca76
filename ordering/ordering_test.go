package ordering

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/gopart/config"
	"github.com/notargets/gopart/graph"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/partition"
	"github.com/notargets/gopart/types"
)

func newTestOrderer[T types.Idx](leafSize int) *Orderer[T] {
	cfg := config.NewConfig()
	if leafSize > 0 {
		cfg.Set("engine.leaf_size", leafSize)
	}
	return NewOrderer(partition.NewEngine[T](cfg, zerolog.Nop(), nil))
}

func checkPermutation[T types.Idx](t *testing.T, perm, iperm []T, n int, base T) {
	t.Helper()
	require.Len(t, perm, n)
	require.Len(t, iperm, n)
	seen := make([]bool, n)
	for i := 0; i < n; i++ {
		k := iperm[i] - base
		require.True(t, k >= 0 && int(k) < n, "iperm[%d]=%d", i, iperm[i])
		require.False(t, seen[k], "position %d used twice", k)
		seen[k] = true
		assert.Equal(t, T(i)+base, perm[k])
	}
}

// checkDisconnects verifies with an independent graph library that removing
// the separator leaves no component touching both halves.
func checkDisconnects(t *testing.T, g *graph.CSR[int32], where []int32) {
	t.Helper()
	ug := simple.NewUndirectedGraph()
	for v := 0; v < g.NumVertices(); v++ {
		if where[v] != 2 {
			ug.AddNode(simple.Node(v))
		}
	}
	for v := 0; v < g.NumVertices(); v++ {
		if where[v] == 2 {
			continue
		}
		for _, u := range g.Neighbors(v) {
			if where[u] != 2 && int(u) > v {
				ug.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(u)})
			}
		}
	}
	for _, comp := range topo.ConnectedComponents(ug) {
		side := where[comp[0].ID()]
		for _, n := range comp {
			require.Equal(t, side, where[n.ID()], "component mixes both halves")
		}
	}
}

func TestNodeND(t *testing.T) {
	for _, leaf := range []int{0, 10} {
		o := newTestOrderer[int32](leaf)
		g := graph.Grid[int32](20, 20)
		perm, iperm, err := o.NodeND(g, nil, nil, nil, nil)
		require.NoError(t, err)
		checkPermutation(t, perm, iperm, 400, 0)

		perm, iperm, err = o.NodeND(g.Rebase(types.FortranNumbering), nil, nil, nil, nil)
		require.NoError(t, err)
		checkPermutation(t, perm, iperm, 400, 1)
	}
}

func TestNodeNDBuffers(t *testing.T) {
	o := newTestOrderer[int64](0)
	g := graph.Grid[int64](6, 6)
	perm, iperm := make([]int64, 40), make([]int64, 36)
	p, ip, err := o.NodeND(g, nil, nil, perm, iperm)
	require.NoError(t, err)
	assert.Same(t, &perm[0], &p[0])
	assert.Same(t, &iperm[0], &ip[0])
	checkPermutation(t, p, ip, 36, 0)

	_, _, err = o.NodeND(g, nil, nil, make([]int64, 10), nil)
	assert.ErrorIs(t, err, types.ErrPartitionInput)
	_, _, err = o.NodeND(nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidGraph)
	vwgt := types.Fill(make([]int64, 36), 1)
	vwgt[3] = -1
	_, _, err = o.NodeND(g, vwgt, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestComputeVertexSeparator(t *testing.T) {
	o := newTestOrderer[int32](0)
	g := graph.Grid[int32](20, 20)
	for _, rtype := range []options.RType{options.RTypeSep2Sided, options.RTypeSep1Sided} {
		opts := options.New().With(options.RTYPE, int(rtype)).With(options.NSEPS, 2)
		sepsize, where, err := o.ComputeVertexSeparator(g, &opts, nil)
		require.NoError(t, err)
		require.Len(t, where, 400)
		require.NoError(t, CheckSeparator(g, where))
		checkDisconnects(t, g, where)

		var counts [3]int32
		for _, w := range where {
			counts[w]++
		}
		assert.Equal(t, counts[2], sepsize)
		assert.Positive(t, counts[0])
		assert.Positive(t, counts[1])
		assert.Less(t, sepsize, int32(40))
		assert.LessOrEqual(t, max(counts[0], counts[1]), int32(240))
	}
}

func TestNodeRefine(t *testing.T) {
	o := newTestOrderer[int32](0)
	g := graph.Grid[int32](10, 10)
	where := make([]int32, 100)
	for v := range where {
		switch col := v % 10; {
		case col < 4:
			where[v] = 0
		case col < 6:
			where[v] = 2
		default:
			where[v] = 1
		}
	}
	sepsize, err := o.NodeRefine(g, nil, where, 1.2, nil)
	require.NoError(t, err)
	assert.Less(t, sepsize, int32(20))
	require.NoError(t, CheckSeparator(g, where))
	checkDisconnects(t, g, where)

	bad := make([]int32, 100)
	bad[1] = 1
	assert.ErrorIs(t, CheckSeparator(g, bad), types.ErrPartitionInput)
	_, err = o.NodeRefine(g, nil, bad, 1.2, nil)
	assert.ErrorIs(t, err, types.ErrPartitionInput)

	_, err = o.NodeRefine(g, nil, make([]int32, 100), 0.9, nil)
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestNodeNDP(t *testing.T) {
	o := newTestOrderer[int32](0)
	g := graph.Grid[int32](16, 16)
	perm, iperm, sizes, err := o.NodeNDP(g, 4, nil, nil, nil)
	require.NoError(t, err)
	checkPermutation(t, perm, iperm, 256, 0)
	require.Len(t, sizes, 7)

	var total int32
	for _, s := range sizes {
		total += s
	}
	assert.Equal(t, int32(256), total)
	assert.Positive(t, sizes[6], "top level separator")

	// Positions are the left subtree (subdomains 0 and 1 and their
	// separator), the right subtree, then the top level separator
	var (
		nleft  = sizes[0] + sizes[1] + sizes[4]
		nright = sizes[2] + sizes[3] + sizes[5]
		where  = make([]int32, 256)
	)
	require.Equal(t, int32(256), nleft+nright+sizes[6])
	for v, k := range iperm {
		switch {
		case k < nleft:
			where[v] = 0
		case k < nleft+nright:
			where[v] = 1
		default:
			where[v] = 2
		}
	}
	require.NoError(t, CheckSeparator(g, where))
	checkDisconnects(t, g, where)

	_, _, _, err = o.NodeNDP(g, 3, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrPartitionInput)
}

func TestMinDegreeStar(t *testing.T) {
	// Center is the last vertex: leaves go first, the center last
	edges := make([][2]int, 0, 7)
	for v := 0; v < 7; v++ {
		edges = append(edges, [2]int{v, 7})
	}
	sg := fromCSR(graph.FromEdges[int32](8, edges, nil), nil)
	order := sg.minDegreeOrder()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)

	// A path is eliminated from its ends
	path := fromCSR(graph.FromEdges[int32](4, [][2]int{{0, 1}, {1, 2}, {2, 3}}, nil), nil)
	assert.Equal(t, []int{0, 1, 2, 3}, path.minDegreeOrder())
}

// twinGrid doubles every vertex of an nx by ny grid into two vertices with the
// same closed neighborhood.
func twinGrid(nx, ny int) *graph.CSR[int32] {
	var (
		base  = graph.Grid[int32](nx, ny)
		edges [][2]int
	)
	for v := 0; v < base.NumVertices(); v++ {
		edges = append(edges, [2]int{2 * v, 2*v + 1})
		for _, u := range base.Neighbors(v) {
			if int(u) > v {
				for a := 0; a < 2; a++ {
					for b := 0; b < 2; b++ {
						edges = append(edges, [2]int{2*v + a, 2*int(u) + b})
					}
				}
			}
		}
	}
	return graph.FromEdges[int32](2*base.NumVertices(), edges, nil)
}

func TestCompress(t *testing.T) {
	g := twinGrid(6, 6)
	cg, members := fromCSR(g, nil).compress()
	require.NotNil(t, cg)
	assert.Equal(t, 36, cg.nvtxs)
	for s, mem := range members {
		assert.Len(t, mem, 2)
		assert.Equal(t, 2, cg.vwgt[s])
	}
	// The supernode graph is the grid again
	assert.Equal(t, graph.Grid[int32](6, 6).NumEdges(), cg.nedges())

	// Nothing merges in a plain grid
	cg, _ = fromCSR(graph.Grid[int32](6, 6), nil).compress()
	assert.Nil(t, cg)

	o := newTestOrderer[int32](8)
	perm, iperm, err := o.NodeND(g, nil, nil, nil, nil)
	require.NoError(t, err)
	checkPermutation(t, perm, iperm, 72, 0)
	for v := 0; v < 72; v += 2 {
		d := iperm[v] - iperm[v+1]
		assert.True(t, d == 1 || d == -1, "twins %d and %d are not adjacent in the order", v, v+1)
	}
}

func TestPruneDenseVertices(t *testing.T) {
	grid := graph.Grid[int32](10, 10)
	var edges [][2]int
	for v := 0; v < 100; v++ {
		for _, u := range grid.Neighbors(v) {
			if int(u) > v {
				edges = append(edges, [2]int{v, int(u)})
			}
		}
		edges = append(edges, [2]int{v, 100})
	}
	g := graph.FromEdges[int32](101, edges, nil)

	o := newTestOrderer[int32](0)
	opts := options.New().With(options.PFACTOR, 10)
	perm, iperm, err := o.NodeND(g, nil, &opts, nil, nil)
	require.NoError(t, err)
	checkPermutation(t, perm, iperm, 101, 0)
	assert.Equal(t, int32(100), iperm[100])
}

func TestComponentOrder(t *testing.T) {
	// Two disjoint 8 by 8 grids
	grid := graph.Grid[int32](8, 8)
	var edges [][2]int
	for v := 0; v < 64; v++ {
		for _, u := range grid.Neighbors(v) {
			if int(u) > v {
				edges = append(edges, [2]int{v, int(u)}, [2]int{v + 64, int(u) + 64})
			}
		}
	}
	g := graph.FromEdges[int32](128, edges, nil)

	o := newTestOrderer[int32](16)
	opts := options.New().With(options.CCORDER, 1)
	perm, iperm, err := o.NodeND(g, nil, &opts, nil, nil)
	require.NoError(t, err)
	checkPermutation(t, perm, iperm, 128, 0)
	for v := 0; v < 64; v++ {
		assert.Less(t, iperm[v], int32(64))
		assert.GreaterOrEqual(t, iperm[v+64], int32(64))
	}
}

func TestMinCover(t *testing.T) {
	// Cut edges of a 2 by 4 grid split into columns 0-1 and 2-3
	g := fromCSR(graph.Grid[int32](4, 2), nil)
	where := []int{0, 0, 1, 1, 0, 0, 1, 1}
	sep := g.minCover(where)
	var n int
	for v, w := range sep {
		if w == 2 {
			n++
			continue
		}
		for _, u := range g.adjncy[g.xadj[v]:g.xadj[v+1]] {
			assert.False(t, sep[u] != 2 && sep[u] != w, "edge %d-%d uncovered", v, u)
		}
	}
	assert.Equal(t, 2, n)
}
