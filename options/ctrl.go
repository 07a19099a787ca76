package options

import (
	"github.com/notargets/gopart/types"
)

// DefaultSeed replaces an unset SEED so that default runs are reproducible.
const DefaultSeed = 4321

// Ctrl is the resolved, read-only form of an options vector for one call.
type Ctrl struct {
	Op        OpType
	PType     PType
	ObjType   ObjType
	CType     CType
	IPType    IPType
	RType     RType
	DbgLvl    DbgLevel
	NIter     int
	NCuts     int
	Seed      int64
	No2Hop    bool
	MinConn   bool
	Contig    bool
	Compress  bool
	CCOrder   bool
	PFactor   int
	NSeps     int
	UFactor   int
	Numbering int // -1 follows the numbering of the input
	NCommon   int
	GType     GType
}

// UBFactor is the per-constraint imbalance tolerance implied by UFACTOR.
func (c *Ctrl) UBFactor() float32 {
	return 1 + 0.001*float32(c.UFactor)
}

type field struct {
	opt      Option
	min, max int
}

// Resolve validates an options vector for the given operation kind and fills
// in the defaults of that operation.
func Resolve(name string, op OpType, opts *Options) (ctrl *Ctrl, err error) {
	ctrl = &Ctrl{
		Op:        op,
		CType:     CTypeSHEM,
		NIter:     10,
		NCuts:     1,
		Seed:      DefaultSeed,
		NSeps:     1,
		Numbering: -1,
		NCommon:   1,
	}
	switch op {
	case OpPMETIS:
		ctrl.PType, ctrl.IPType, ctrl.RType, ctrl.UFactor = PTypeRB, IPTypeGrow, RTypeFM, 1
	case OpKMETIS:
		ctrl.PType, ctrl.IPType, ctrl.RType, ctrl.UFactor = PTypeKway, IPTypeMetisRB, RTypeGreedy, 30
	case OpOMETIS:
		ctrl.IPType, ctrl.RType, ctrl.UFactor = IPTypeEdge, RTypeSep2Sided, 200
		ctrl.ObjType = ObjTypeNode
		ctrl.Compress = true
	}
	if opts == nil {
		return
	}

	ranges := []field{
		{PTYPE, 0, 1}, {OBJTYPE, 0, 2}, {CTYPE, 0, 1}, {IPTYPE, 0, 4}, {RTYPE, 0, 3},
		{DBGLVL, 0, 1 << 16}, {NITER, 0, 1 << 20}, {NCUTS, 1, 1 << 20}, {SEED, 0, 1<<31 - 1},
		{NO2HOP, 0, 1}, {MINCONN, 0, 1}, {CONTIG, 0, 1}, {COMPRESS, 0, 1}, {CCORDER, 0, 1},
		{PFACTOR, 0, 1 << 20}, {NSEPS, 1, 1 << 20}, {UFACTOR, 1, 1 << 20}, {NUMBERING, 0, 1},
		{NCOMMON, 1, 1 << 20}, {GTYPE, 0, 1},
	}
	for _, f := range ranges {
		v, set := opts.Get(f.opt)
		if set && (v < f.min || v > f.max) {
			return nil, types.NewError(name, types.KindPartitionInput,
				types.Args{"option": f.opt.String(), "value": v},
				"option %s=%d outside [%d,%d]", f.opt, v, f.min, f.max)
		}
	}

	if v, set := opts.Get(PTYPE); set {
		ctrl.PType = PType(v)
	}
	if v, set := opts.Get(OBJTYPE); set {
		ctrl.ObjType = ObjType(v)
	}
	if v, set := opts.Get(CTYPE); set {
		ctrl.CType = CType(v)
	}
	if v, set := opts.Get(IPTYPE); set {
		ctrl.IPType = IPType(v)
	}
	if v, set := opts.Get(RTYPE); set {
		ctrl.RType = RType(v)
	}
	if v, set := opts.Get(DBGLVL); set {
		ctrl.DbgLvl = DbgLevel(v)
	}
	if v, set := opts.Get(NITER); set {
		ctrl.NIter = v
	}
	if v, set := opts.Get(NCUTS); set {
		ctrl.NCuts = v
	}
	if v, set := opts.Get(SEED); set {
		ctrl.Seed = int64(v)
	}
	if v, set := opts.Get(NO2HOP); set {
		ctrl.No2Hop = v == 1
	}
	if v, set := opts.Get(MINCONN); set {
		ctrl.MinConn = v == 1
	}
	if v, set := opts.Get(CONTIG); set {
		ctrl.Contig = v == 1
	}
	if v, set := opts.Get(COMPRESS); set {
		ctrl.Compress = v == 1
	}
	if v, set := opts.Get(CCORDER); set {
		ctrl.CCOrder = v == 1
	}
	if v, set := opts.Get(PFACTOR); set {
		ctrl.PFactor = v
	}
	if v, set := opts.Get(NSEPS); set {
		ctrl.NSeps = v
	}
	if v, set := opts.Get(UFACTOR); set {
		ctrl.UFactor = v
	}
	if v, set := opts.Get(NUMBERING); set {
		ctrl.Numbering = v
	}
	if v, set := opts.Get(NCOMMON); set {
		ctrl.NCommon = v
	}
	if v, set := opts.Get(GTYPE); set {
		ctrl.GType = GType(v)
	}

	// Combinations that only make sense for one family of operations
	switch op {
	case OpPMETIS, OpKMETIS:
		if ctrl.ObjType == ObjTypeNode {
			return nil, types.NewError(name, types.KindPartitionInput,
				types.Args{"OBJTYPE": ctrl.ObjType}, "node separator objective is only valid for ordering")
		}
		if ctrl.RType == RTypeSep2Sided || ctrl.RType == RTypeSep1Sided {
			return nil, types.NewError(name, types.KindPartitionInput,
				types.Args{"RTYPE": ctrl.RType}, "separator refinement is only valid for ordering")
		}
		if op == OpPMETIS && ctrl.ObjType == ObjTypeVol {
			return nil, types.NewError(name, types.KindPartitionInput,
				types.Args{"OBJTYPE": ctrl.ObjType}, "recursive bisection only minimizes the edge-cut")
		}
	case OpOMETIS:
		if ctrl.RType == RTypeFM || ctrl.RType == RTypeGreedy {
			ctrl.RType = RTypeSep2Sided
		}
		if ctrl.IPType != IPTypeEdge && ctrl.IPType != IPTypeNode {
			ctrl.IPType = IPTypeEdge
		}
	}
	return ctrl, nil
}
