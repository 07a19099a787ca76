package options

import (
	"fmt"

	"github.com/notargets/gopart/types"
)

// NParOptions is the length of the distributed options vector. Unlike the
// serial vector it is zero-initialized: options[0] == 0 means every other field
// is ignored and defaults apply.
const NParOptions = 4

const (
	ParUseOptions = iota
	ParDbgLvl
	ParSeed
	ParPSR
)

// Coupling between partitions and processes for the distributed engine.
const (
	PSRCoupled   = 1
	PSRUncoupled = 2
)

// DefaultParSeed is the seed of the distributed engine when none is given.
const DefaultParSeed = 15

type ParOptions [NParOptions]int

// ParCtrl is the resolved form of a distributed options vector.
type ParCtrl struct {
	DbgLvl  DbgLevel
	Seed    int64
	Coupled bool
}

func (p *ParOptions) Resolve(name string) (*ParCtrl, error) {
	ctrl := &ParCtrl{Seed: DefaultParSeed, Coupled: true}
	if p == nil || p[ParUseOptions] == 0 {
		return ctrl, nil
	}
	if p[ParDbgLvl] < 0 {
		return nil, types.NewError(name, types.KindPartitionInput,
			types.Args{"dbglvl": p[ParDbgLvl]}, "negative debug level")
	}
	ctrl.DbgLvl = DbgLevel(p[ParDbgLvl])
	ctrl.Seed = int64(p[ParSeed])
	switch p[ParPSR] {
	case 0, PSRCoupled:
	case PSRUncoupled:
		ctrl.Coupled = false
	default:
		return nil, types.NewError(name, types.KindPartitionInput,
			types.Args{"psr": p[ParPSR]}, "unknown process/subdomain relation %d", p[ParPSR])
	}
	return ctrl, nil
}

// ParFromSlice reads a caller integer array into a distributed options vector.
func ParFromSlice[T types.Idx](in []T) (opts ParOptions, err error) {
	if len(in) > NParOptions {
		err = fmt.Errorf("distributed options vector has %d fields, at most %d allowed",
			len(in), NParOptions)
		return
	}
	for i, v := range in {
		opts[i] = int(v)
	}
	return
}
