package types

// Idx is the index integer type of a graph, mesh or partition vector. Engines
// are instantiated once per width.
type Idx interface {
	~int32 | ~int64
}

// Real is the weight type used for target partition weights, imbalance
// tolerances and point coordinates.
type Real = float32

// Numbering identifies the index base of a structure, 0 (C style) or 1 (Fortran
// style).
type Numbering int

const (
	CNumbering       Numbering = 0
	FortranNumbering Numbering = 1
)

func (n Numbering) Valid() bool { return n == CNumbering || n == FortranNumbering }

func (n Numbering) String() string {
	switch n {
	case CNumbering:
		return "C"
	case FortranNumbering:
		return "Fortran"
	default:
		return "invalid"
	}
}

// ToInts converts an index slice to native ints for internal processing.
func ToInts[T Idx](in []T) (out []int) {
	out = make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return
}

// FromInts converts native ints into dst, allocating dst when it is too short.
func FromInts[T Idx](in []int, dst []T) []T {
	dst = OutputBuffer(dst, len(in))
	for i, v := range in {
		dst[i] = T(v)
	}
	return dst
}
