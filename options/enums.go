package options

// Option is an index into the serial options vector.
type Option int

const (
	PTYPE Option = iota
	OBJTYPE
	CTYPE
	IPTYPE
	RTYPE
	DBGLVL
	NITER
	NCUTS
	SEED
	NO2HOP
	MINCONN
	CONTIG
	COMPRESS
	CCORDER
	PFACTOR
	NSEPS
	UFACTOR
	NUMBERING
	HELP
	TPWGTS
	NCOMMON
	NOOUTPUT
	BALANCE
	GTYPE
	UBVEC
)

var optionNames = [...]string{"PTYPE", "OBJTYPE", "CTYPE", "IPTYPE", "RTYPE", "DBGLVL",
	"NITER", "NCUTS", "SEED", "NO2HOP", "MINCONN", "CONTIG", "COMPRESS", "CCORDER",
	"PFACTOR", "NSEPS", "UFACTOR", "NUMBERING", "HELP", "TPWGTS", "NCOMMON", "NOOUTPUT",
	"BALANCE", "GTYPE", "UBVEC"}

func (o Option) String() string {
	if o < 0 || int(o) >= len(optionNames) {
		return "UNUSED"
	}
	return optionNames[o]
}

// ParseOption looks up a field by its name.
func ParseOption(name string) (Option, bool) {
	for i, n := range optionNames {
		if n == name {
			return Option(i), true
		}
	}
	return 0, false
}

// OpType selects per-operation defaults.
type OpType int

const (
	OpPMETIS OpType = iota
	OpKMETIS
	OpOMETIS
)

// PType is the partitioning scheme.
type PType int

const (
	PTypeRB PType = iota
	PTypeKway
)

// GType is the graph built from a mesh.
type GType int

const (
	GTypeDual GType = iota
	GTypeNodal
)

// CType is the coarsening (matching) scheme.
type CType int

const (
	CTypeRM CType = iota
	CTypeSHEM
)

// IPType is the initial partitioning scheme.
type IPType int

const (
	IPTypeGrow IPType = iota
	IPTypeRandom
	IPTypeEdge
	IPTypeNode
	IPTypeMetisRB
)

// RType is the refinement scheme.
type RType int

const (
	RTypeFM RType = iota
	RTypeGreedy
	RTypeSep2Sided
	RTypeSep1Sided
)

// ObjType is the partitioning objective.
type ObjType int

const (
	ObjTypeCut ObjType = iota
	ObjTypeVol
	ObjTypeNode
)

// DbgLevel is the debug bitmask.
type DbgLevel int

const (
	DbgInfo       DbgLevel = 1
	DbgTime       DbgLevel = 2
	DbgCoarsen    DbgLevel = 4
	DbgRefine     DbgLevel = 8
	DbgIPart      DbgLevel = 16
	DbgMoveInfo   DbgLevel = 32
	DbgSepInfo    DbgLevel = 64
	DbgConnInfo   DbgLevel = 128
	DbgContigInfo DbgLevel = 256
	DbgMemory     DbgLevel = 2048
	// DbgCheck requests the collective consistency check of the distributed
	// coordinator before any work starts.
	DbgCheck DbgLevel = 4096
)

func (d DbgLevel) Has(flag DbgLevel) bool { return d&flag != 0 }
