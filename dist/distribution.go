package dist

import (
	"sort"

	"github.com/notargets/gopart/types"
)

// Distribution maps global entity ids to the ranks owning them: rank p owns
// [Dist[p], Dist[p+1]). Ids are zero based here, the caller's base is
// removed on entry.
type Distribution struct {
	Dist []int
}

// NewDistribution reads a caller vtxdist or elmdist array.
func NewDistribution[T types.Idx](op string, vtxdist []T, nranks int) (*Distribution, error) {
	args := types.Args{"len(vtxdist)": len(vtxdist), "nranks": nranks}
	if len(vtxdist) != nranks+1 {
		return nil, types.NewError(op, types.KindPartitionInput, args,
			"distribution array has %d entries, need nranks+1=%d", len(vtxdist), nranks+1)
	}
	d := &Distribution{Dist: make([]int, nranks+1)}
	for p, v := range vtxdist {
		d.Dist[p] = int(v - vtxdist[0])
		if p > 0 && vtxdist[p] < vtxdist[p-1] {
			args["rank"] = p
			return nil, types.NewError(op, types.KindPartitionInput, args,
				"distribution array decreases at rank %d", p)
		}
	}
	return d, nil
}

// Split1D distributes n entities over nranks in contiguous blocks that differ
// by at most one, the remainder spread over the first blocks.
func Split1D(n, nranks int) *Distribution {
	d := &Distribution{Dist: make([]int, nranks+1)}
	var (
		npart     = n / nranks
		remainder = n % nranks
	)
	for p := 0; p < nranks; p++ {
		d.Dist[p+1] = d.Dist[p] + npart
		if p < remainder {
			d.Dist[p+1]++
		}
	}
	return d
}

func (d *Distribution) NumRanks() int   { return len(d.Dist) - 1 }
func (d *Distribution) Total() int      { return d.Dist[len(d.Dist)-1] }
func (d *Distribution) First(p int) int { return d.Dist[p] }
func (d *Distribution) Count(p int) int { return d.Dist[p+1] - d.Dist[p] }

// Owner returns the rank owning global id k, or -1 when k is out of range.
// Empty ranks never own anything.
func (d *Distribution) Owner(k int) int {
	if k < 0 || k >= d.Total() {
		return -1
	}
	// First rank whose end lies past k
	return sort.Search(d.NumRanks(), func(p int) bool { return d.Dist[p+1] > k })
}

// Local returns the position of global id k within its owner's range.
func (d *Distribution) Local(k int) (local, owner int) {
	owner = d.Owner(k)
	if owner < 0 {
		return -1, -1
	}
	return k - d.Dist[owner], owner
}

// BuildVtxdist gathers the local entity counts of all ranks into a
// distribution array in the given base.
func BuildVtxdist[T types.Idx](c Comm, nlocal int, base types.Numbering) ([]T, error) {
	counts, err := AllGather(c, nlocal)
	if err != nil {
		return nil, err
	}
	vtxdist := make([]T, len(counts)+1)
	vtxdist[0] = T(base)
	for p, n := range counts {
		vtxdist[p+1] = vtxdist[p] + T(n)
	}
	return vtxdist, nil
}

// WgtFlag encodes which weights are present: 0 none, 1 edge weights only, 2
// vertex weights only, 3 both.
func WgtFlag[T types.Idx](vwgt, adjwgt []T) int {
	var flag int
	if adjwgt != nil {
		flag |= 1
	}
	if vwgt != nil {
		flag |= 2
	}
	return flag
}
