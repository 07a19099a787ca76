package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gopart/types"
)

// ReadMetisMeshFile reads a mesh in the METIS mesh file format.
func ReadMetisMeshFile[T types.Idx](filename string) (*Mesh[T], error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadMetisMesh[T](file)
}

// ReadMetisMesh parses the METIS mesh format: a header "ne [ncon]" followed by
// one line per element holding ncon weights and then the element's nodes,
// numbered from one. Lines starting with % are comments. The returned mesh
// keeps Fortran numbering.
func ReadMetisMesh[T types.Idx](r io.Reader) (*Mesh[T], error) {
	var (
		scanner = bufio.NewScanner(r)
		header  []int
		ne      int
		ncon    int
		cells   [][]T
		elmwgt  []T
		lineNo  int
	)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "%") || line == "" {
			continue
		}
		fields := strings.Fields(line)
		if header == nil {
			for _, f := range fields {
				v, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("mesh header line %d: %w", lineNo, err)
				}
				header = append(header, v)
			}
			if len(header) == 0 || len(header) > 2 {
				return nil, fmt.Errorf("mesh header must be \"ne [ncon]\", got %q", line)
			}
			ne = header[0]
			if len(header) == 2 {
				ncon = header[1]
			}
			cells = make([][]T, 0, ne)
			continue
		}
		if len(cells) == ne {
			return nil, fmt.Errorf("mesh line %d: more than %d elements", lineNo, ne)
		}
		if len(fields) < ncon+1 {
			return nil, fmt.Errorf("mesh line %d: element %d has no nodes", lineNo, len(cells)+1)
		}
		vals := make([]T, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("mesh line %d: %w", lineNo, err)
			}
			vals[i] = T(v)
		}
		elmwgt = append(elmwgt, vals[:ncon]...)
		cells = append(cells, vals[ncon:])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(cells) != ne {
		return nil, fmt.Errorf("mesh declares %d elements, found %d", ne, len(cells))
	}
	m, err := buildEptr(cells, 0, types.FortranNumbering)
	if err != nil {
		return nil, err
	}
	if ncon > 0 {
		m.Elmwgt = elmwgt
	}
	return m, nil
}

// WriteMetisMesh writes m in the METIS mesh format, converting to Fortran
// numbering.
func WriteMetisMesh[T types.Idx](w io.Writer, m *Mesh[T]) error {
	var (
		bw    = bufio.NewWriter(w)
		ne    = m.NumElements()
		shift = 1 - m.Base()
		ncon  int
	)
	if ne > 0 && m.Elmwgt != nil {
		ncon = len(m.Elmwgt) / ne
	}
	if ncon > 0 {
		fmt.Fprintf(bw, "%d %d\n", ne, ncon)
	} else {
		fmt.Fprintf(bw, "%d\n", ne)
	}
	for e := 0; e < ne; e++ {
		var sb strings.Builder
		for c := 0; c < ncon; c++ {
			fmt.Fprintf(&sb, "%d ", m.Elmwgt[e*ncon+c])
		}
		for i, n := range m.Element(e) {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatInt(int64(n)+int64(shift), 10))
		}
		sb.WriteByte('\n')
		bw.WriteString(sb.String())
	}
	return bw.Flush()
}
