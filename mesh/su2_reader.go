package mesh

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gopart/types"
)

// su2Types maps SU2 element ids to element types
var su2Types = map[int]ElementType{
	3:  Line,
	5:  Triangle,
	9:  Quad,
	10: Tet,
	12: Hex,
	13: Prism,
	14: Pyramid,
}

// ReadSU2 reads an SU2 native format file. Only elements of the mesh
// dimension are kept, so boundary lines in a 2D file and faces in a 3D file
// are skipped. SU2 numbers nodes from zero.
func ReadSU2[T types.Idx](filename string) (*Mesh[T], error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var (
		scanner = bufio.NewScanner(file)
		ndime   int
		cells   [][]T
		etypes  []ElementType
		coords  [][]float64
	)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments
		if strings.HasPrefix(line, "%") || line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "NDIME="):
			fmt.Sscanf(line, "NDIME=%d", &ndime)
			if ndime != 2 && ndime != 3 {
				return nil, fmt.Errorf("unsupported SU2 dimension NDIME=%d", ndime)
			}

		case strings.HasPrefix(line, "NELEM="):
			var nelem int
			fmt.Sscanf(line, "NELEM=%d", &nelem)
			cells = make([][]T, 0, nelem)
			etypes = make([]ElementType, 0, nelem)

			for i := 0; i < nelem; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("SU2 file ends after %d of %d elements", i, nelem)
				}
				fields := strings.Fields(scanner.Text())
				if len(fields) < 2 {
					continue
				}
				su2Type, _ := strconv.Atoi(fields[0])
				etype, ok := su2Types[su2Type]
				if !ok || elementDim(etype) != ndime {
					continue
				}
				numNodes := etype.NumNodes()
				if len(fields) < numNodes+1 {
					return nil, fmt.Errorf("SU2 element %d: %s needs %d nodes", i, etype, numNodes)
				}
				verts := make([]T, numNodes)
				for j := range verts {
					n, err := strconv.ParseInt(fields[1+j], 10, 64)
					if err != nil {
						return nil, fmt.Errorf("SU2 element %d: %w", i, err)
					}
					verts[j] = T(n)
				}
				cells = append(cells, verts)
				etypes = append(etypes, etype)
			}

		case strings.HasPrefix(line, "NPOIN="):
			var npoin int
			fmt.Sscanf(line, "NPOIN=%d", &npoin)
			coords = make([][]float64, npoin)

			for i := 0; i < npoin; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("SU2 file ends after %d of %d points", i, npoin)
				}
				fields := strings.Fields(scanner.Text())
				if len(fields) < ndime {
					continue
				}
				xyz := make([]float64, ndime)
				for j := range xyz {
					xyz[j], _ = strconv.ParseFloat(fields[j], 64)
				}
				// Point ID is the optional last field
				ptID := i
				if len(fields) > ndime {
					ptID, _ = strconv.Atoi(fields[len(fields)-1])
				}
				if ptID >= 0 && ptID < npoin {
					coords[ptID] = xyz
				}
			}

		case strings.HasPrefix(line, "NMARK="):
			// Boundary markers carry no partitioning information
			var nmark int
			fmt.Sscanf(line, "NMARK=%d", &nmark)
			for i := 0; i < nmark; i++ {
				scanner.Scan() // MARKER_TAG
				scanner.Scan()
				var nMarkerElems int
				fmt.Sscanf(strings.TrimSpace(scanner.Text()), "MARKER_ELEMS=%d", &nMarkerElems)
				for j := 0; j < nMarkerElems; j++ {
					scanner.Scan()
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	m, err := buildEptr(cells, len(coords), types.CNumbering)
	if err != nil {
		return nil, err
	}
	m.Coords = coords
	m.Types = etypes
	return m, nil
}

func elementDim(e ElementType) int {
	switch e {
	case Line:
		return 1
	case Triangle, Quad:
		return 2
	default:
		return 3
	}
}

// buildEptr compresses cells already known to use the given base.
func buildEptr[T types.Idx](cells [][]T, nv int, base types.Numbering) (*Mesh[T], error) {
	eptr := make([]T, len(cells)+1)
	eptr[0] = T(base)
	var eind []T
	for e, cell := range cells {
		eind = append(eind, cell...)
		eptr[e+1] = eptr[e] + T(len(cell))
	}
	return ProcessMesh(eptr, eind, nv)
}
