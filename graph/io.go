package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gopart/types"
)

// ReadGraphFile reads a graph in the METIS text format: a header line
// "nv ne [fmt [ncon]]" followed by one line per vertex holding the optional
// vertex size, the optional ncon vertex weights and the 1-based neighbor list,
// each neighbor optionally followed by its edge weight. Lines starting with '%'
// are comments. The returned graph uses the requested numbering base.
func ReadGraphFile[T types.Idx](filename string, base types.Numbering) (*CSR[T], error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadGraph[T](file, base)
}

func ReadGraph[T types.Idx](r io.Reader, base types.Numbering) (*CSR[T], error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<16), 1<<26)
	nextLine := func() (fields []string, ok bool) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, "%") {
				continue
			}
			return strings.Fields(line), true
		}
		return nil, false
	}

	header, ok := nextLine()
	if !ok || len(header) < 2 {
		return nil, fmt.Errorf("missing graph header")
	}
	nv, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("bad vertex count %q: %w", header[0], err)
	}
	ne, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("bad edge count %q: %w", header[1], err)
	}
	var (
		hasVsize, hasVwgt, hasAdjwgt bool
		ncon                         = 1
	)
	if len(header) > 2 {
		format := header[2]
		if len(format) < 3 {
			format = strings.Repeat("0", 3-len(format)) + format
		}
		hasVsize, hasVwgt, hasAdjwgt = format[0] == '1', format[1] == '1', format[2] == '1'
	}
	if len(header) > 3 {
		if ncon, err = strconv.Atoi(header[3]); err != nil || ncon < 1 {
			return nil, fmt.Errorf("bad constraint count %q", header[3])
		}
	}

	g := &CSR[T]{
		Xadj:   make([]T, nv+1),
		Adjncy: make([]T, 0, 2*ne),
		Ncon:   ncon,
	}
	if hasVsize {
		g.Vsize = make([]T, nv)
	}
	if hasVwgt {
		g.Vwgt = make([]T, nv*ncon)
	}
	if hasAdjwgt {
		g.Adjwgt = make([]T, 0, 2*ne)
	}
	g.Xadj[0] = T(base)
	for v := 0; v < nv; v++ {
		fields, ok := nextLine()
		if !ok {
			return nil, fmt.Errorf("expected %d vertex lines, found %d", nv, v)
		}
		vals := make([]int, len(fields))
		for i, f := range fields {
			if vals[i], err = strconv.Atoi(f); err != nil {
				return nil, fmt.Errorf("vertex %d: %w", v+1, err)
			}
		}
		if hasVsize {
			if len(vals) < 1 {
				return nil, fmt.Errorf("vertex %d: missing size", v+1)
			}
			g.Vsize[v], vals = T(vals[0]), vals[1:]
		}
		if hasVwgt {
			if len(vals) < ncon {
				return nil, fmt.Errorf("vertex %d: missing weights", v+1)
			}
			for c := 0; c < ncon; c++ {
				g.Vwgt[v*ncon+c] = T(vals[c])
			}
			vals = vals[ncon:]
		}
		step := 1
		if hasAdjwgt {
			step = 2
			if len(vals)%2 != 0 {
				return nil, fmt.Errorf("vertex %d: neighbor without edge weight", v+1)
			}
		}
		for i := 0; i < len(vals); i += step {
			if vals[i] < 1 || vals[i] > nv {
				return nil, fmt.Errorf("vertex %d: neighbor %d outside [1,%d]", v+1, vals[i], nv)
			}
			g.Adjncy = append(g.Adjncy, T(vals[i]-1)+T(base))
			if hasAdjwgt {
				g.Adjwgt = append(g.Adjwgt, T(vals[i+1]))
			}
		}
		g.Xadj[v+1] = T(len(g.Adjncy)) + T(base)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if len(g.Adjncy) != 2*ne {
		return nil, fmt.Errorf("header declares %d edges, found %d adjacency entries", ne, len(g.Adjncy))
	}
	return g, nil
}

// WriteGraphFile writes g in the METIS text format.
func WriteGraphFile[T types.Idx](filename string, g *CSR[T]) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err = WriteGraph(w, g); err != nil {
		return err
	}
	return w.Flush()
}

func WriteGraph[T types.Idx](w io.Writer, g *CSR[T]) error {
	var (
		nv     = g.NumVertices()
		base   = g.Base()
		ncon   = g.NumConstraints()
		format = ""
	)
	if g.Vsize != nil || g.Vwgt != nil || g.Adjwgt != nil {
		format = fmt.Sprintf(" %d%d%d", b2i(g.Vsize != nil), b2i(g.Vwgt != nil), b2i(g.Adjwgt != nil))
		if ncon > 1 {
			format += fmt.Sprintf(" %d", ncon)
		}
	}
	if _, err := fmt.Fprintf(w, "%d %d%s\n", nv, g.NumEdges()/2, format); err != nil {
		return err
	}
	var sb strings.Builder
	for v := 0; v < nv; v++ {
		sb.Reset()
		if g.Vsize != nil {
			fmt.Fprintf(&sb, "%d ", g.Vsize[v])
		}
		if g.Vwgt != nil {
			for c := 0; c < ncon; c++ {
				fmt.Fprintf(&sb, "%d ", g.Vwgt[v*ncon+c])
			}
		}
		wgts := g.EdgeWeights(v)
		for j, u := range g.Neighbors(v) {
			fmt.Fprintf(&sb, "%d ", int(u)-base+1)
			if wgts != nil {
				fmt.Fprintf(&sb, "%d ", wgts[j])
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimSpace(sb.String())); err != nil {
			return err
		}
	}
	return nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
