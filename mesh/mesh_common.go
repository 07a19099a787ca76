package mesh

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/notargets/gopart/types"
)

// ElementType represents different element types
type ElementType int

const (
	Line ElementType = iota
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
	Unknown
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid", "Unknown"}[e]
}

// NumNodes is the node count of a linear element of this type.
func (e ElementType) NumNodes() int {
	return [...]int{2, 3, 4, 4, 8, 6, 5, 0}[e]
}

// Mesh is an element/node incidence structure in compressed form: element e
// holds nodes Eind[Eptr[e]-Eptr[0] : Eptr[e+1]-Eptr[0]], numbered from the base
// Eptr[0]. Coordinates and element types are only present when the mesh was
// read from a file or generated.
type Mesh[T types.Idx] struct {
	Eptr   []T
	Eind   []T
	Nv     int // number of nodes
	Elmwgt []T // optional element weights

	Coords [][]float64    // node coordinates [Nv][ndims]
	Types  []ElementType // element types, when known
}

func (m *Mesh[T]) NumElements() int {
	if len(m.Eptr) == 0 {
		return 0
	}
	return len(m.Eptr) - 1
}

func (m *Mesh[T]) Base() int {
	if len(m.Eptr) == 0 {
		return 0
	}
	return int(m.Eptr[0])
}

// Element returns the nodes of zero-counted element e in the mesh base.
func (m *Mesh[T]) Element(e int) []T {
	b := m.Eptr[0]
	return m.Eind[m.Eptr[e]-b : m.Eptr[e+1]-b]
}

// Dims returns the coordinate dimension, 0 when no geometry is attached.
func (m *Mesh[T]) Dims() int {
	if len(m.Coords) == 0 {
		return 0
	}
	return len(m.Coords[0])
}

// Centroids returns the element centroids as a flat [ne*ndims] array, the
// point layout used by geometric partitioning.
func (m *Mesh[T]) Centroids() ([]float64, int, error) {
	ndims := m.Dims()
	if ndims == 0 {
		return nil, 0, fmt.Errorf("mesh carries no node coordinates")
	}
	var (
		ne   = m.NumElements()
		base = m.Base()
		xyz  = make([]float64, ne*ndims)
	)
	for e := 0; e < ne; e++ {
		nodes := m.Element(e)
		for _, n := range nodes {
			for d := 0; d < ndims; d++ {
				xyz[e*ndims+d] += m.Coords[int(n)-base][d]
			}
		}
		for d := 0; d < ndims; d++ {
			xyz[e*ndims+d] /= float64(len(nodes))
		}
	}
	return xyz, ndims, nil
}

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile[T types.Idx](filename string) (*Mesh[T], error) {
	ext := strings.ToLower(filepath.Ext(filename))

	log.Debug().Str("file", filename).Str("format", ext).Msg("reading mesh")
	switch ext {
	case ".mesh":
		return ReadMetisMeshFile[T](filename)
	case ".su2":
		return ReadSU2[T](filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}
