package mesh

import (
	"github.com/rs/zerolog/log"

	"github.com/notargets/gopart/types"
)

// ProcessMesh validates an explicit (eptr, eind) pair. When nv is not positive
// the node count is derived as max(eind)+1-eptr[0], which costs a scan of eind;
// callers that know nv should pass it.
func ProcessMesh[T types.Idx](eptr, eind []T, nv int) (*Mesh[T], error) {
	const op = "ProcessMesh"
	if len(eptr) == 0 {
		return nil, types.NewError(op, types.KindInvalidMesh, types.Args{"len(eptr)": 0},
			"eptr must hold at least one offset")
	}
	var (
		ne   = len(eptr) - 1
		base = eptr[0]
		args = types.Args{"ne": ne, "base": base, "len(eind)": len(eind), "nv": nv}
	)
	if !types.Numbering(base).Valid() {
		return nil, types.NewError(op, types.KindInvalidMesh, args,
			"numbering base eptr[0]=%d is not 0 or 1", base)
	}
	for e := 0; e < ne; e++ {
		if eptr[e+1] < eptr[e] {
			return nil, types.NewError(op, types.KindInvalidMesh, args,
				"eptr decreases at element %d", e)
		}
	}
	declared := int(eptr[ne] - base)
	switch {
	case len(eind) < declared:
		return nil, types.NewError(op, types.KindInvalidMesh, args,
			"eind holds %d entries, eptr declares %d", len(eind), declared)
	case len(eind) > declared:
		log.Warn().Str("op", op).Int("declared", declared).Int("actual", len(eind)).
			Msg("eind longer than declared by eptr, using the declared count")
		eind = eind[:declared]
	}
	if declared > 0 {
		lo, hi := types.MinMax(eind)
		if lo < base {
			return nil, types.NewError(op, types.KindInvalidMesh, args,
				"node id %d below numbering base %d, node ids mix numbering bases", lo, base)
		}
		if nv <= 0 {
			nv = int(hi) + 1 - int(base)
		} else if int(hi) >= nv+int(base) {
			return nil, types.NewError(op, types.KindInvalidMesh, args,
				"node id %d outside [%d,%d)", hi, base, nv+int(base))
		}
	} else if nv < 0 {
		nv = 0
	}
	return &Mesh[T]{Eptr: eptr, Eind: eind, Nv: nv}, nil
}

// FromCells compresses a collection of variable-length cell node lists. The
// numbering base is detected from the smallest node id: 0 selects C numbering,
// anything positive selects Fortran numbering and eptr is shifted to match.
func FromCells[T types.Idx](cells [][]T, nv int) (*Mesh[T], error) {
	const op = "FromCells"
	var (
		ne     = len(cells)
		total  int
		minID  T
		seenID bool
	)
	for _, cell := range cells {
		total += len(cell)
		for _, n := range cell {
			if !seenID || n < minID {
				minID, seenID = n, true
			}
		}
	}
	if seenID && minID < 0 {
		return nil, types.NewError(op, types.KindInvalidMesh, types.Args{"min": minID},
			"negative node id %d", minID)
	}
	var base T
	if seenID && minID > 0 {
		base = 1
	}
	var (
		eptr = make([]T, ne+1)
		eind = make([]T, 0, total)
	)
	eptr[0] = base
	for e, cell := range cells {
		eind = append(eind, cell...)
		eptr[e+1] = eptr[e] + T(len(cell))
	}
	return ProcessMesh(eptr, eind, nv)
}

// FromUniform compresses cells of a fixed arity stored row-major in flat.
func FromUniform[T types.Idx](flat []T, arity, nv int) (*Mesh[T], error) {
	if arity <= 0 || len(flat)%arity != 0 {
		return nil, types.NewError("FromUniform", types.KindInvalidMesh,
			types.Args{"arity": arity, "len": len(flat)}, "flat cell array is not a multiple of the cell arity")
	}
	cells := make([][]T, len(flat)/arity)
	for e := range cells {
		cells[e] = flat[e*arity : (e+1)*arity]
	}
	return FromCells(cells, nv)
}

// Process dispatches on the shape of its arguments the way the scripting
// interface did: a single cell collection, or an explicit (eptr, eind) pair.
// Any other arity is an InvalidMesh error.
func Process[T types.Idx](nv int, args ...any) (*Mesh[T], error) {
	switch len(args) {
	case 1:
		if cells, ok := args[0].([][]T); ok {
			return FromCells(cells, nv)
		}
	case 2:
		eptr, ok1 := args[0].([]T)
		eind, ok2 := args[1].([]T)
		if ok1 && ok2 {
			return ProcessMesh(eptr, eind, nv)
		}
	}
	return nil, types.NewError("Process", types.KindInvalidMesh, types.Args{"nargs": len(args)},
		"expected (eptr, eind) or a cell list, got %d arguments", len(args))
}
