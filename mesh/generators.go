package mesh

import (
	"github.com/notargets/gopart/types"
)

// StructuredTris triangulates the unit square with nx by ny cells, two
// triangles per cell sharing the lower-left to upper-right diagonal.
func StructuredTris[T types.Idx](nx, ny int) *Mesh[T] {
	var (
		node   = func(i, j int) T { return T(j*(nx+1) + i) }
		cells  = make([][]T, 0, 2*nx*ny)
		coords = make([][]float64, 0, (nx+1)*(ny+1))
	)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			coords = append(coords, []float64{float64(i) / float64(nx), float64(j) / float64(ny)})
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			cells = append(cells,
				[]T{node(i, j), node(i+1, j), node(i+1, j+1)},
				[]T{node(i, j), node(i+1, j+1), node(i, j+1)})
		}
	}
	return structured(cells, coords, Triangle)
}

// kuhn lists the six tetrahedra of the Kuhn subdivision of a cube whose corners
// are numbered by their (x, y, z) bits. Every tet runs along the 0-7 diagonal,
// so neighboring cubes produce conforming faces.
var kuhn = [6][4]int{
	{0, 1, 3, 7}, {0, 1, 5, 7}, {0, 2, 3, 7},
	{0, 2, 6, 7}, {0, 4, 5, 7}, {0, 4, 6, 7},
}

// StructuredTets fills the unit cube with nx by ny by nz cells of six
// tetrahedra each.
func StructuredTets[T types.Idx](nx, ny, nz int) *Mesh[T] {
	var (
		node = func(i, j, k int) T {
			return T((k*(ny+1)+j)*(nx+1) + i)
		}
		cells  = make([][]T, 0, 6*nx*ny*nz)
		coords = make([][]float64, 0, (nx+1)*(ny+1)*(nz+1))
	)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				coords = append(coords, []float64{
					float64(i) / float64(nx), float64(j) / float64(ny), float64(k) / float64(nz)})
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				var corner [8]T
				for c := range corner {
					corner[c] = node(i+c&1, j+(c>>1)&1, k+(c>>2)&1)
				}
				for _, tet := range kuhn {
					cells = append(cells, []T{corner[tet[0]], corner[tet[1]], corner[tet[2]], corner[tet[3]]})
				}
			}
		}
	}
	return structured(cells, coords, Tet)
}

func structured[T types.Idx](cells [][]T, coords [][]float64, etype ElementType) *Mesh[T] {
	m, err := buildEptr(cells, len(coords), types.CNumbering)
	if err != nil {
		panic(err)
	}
	m.Coords = coords
	m.Types = types.Fill(make([]ElementType, len(cells)), etype)
	return m
}
