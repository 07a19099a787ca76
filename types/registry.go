package types

import (
	"fmt"
	"sort"
	"sync"
)

// Family groups the operations by the engine that implements them.
type Family uint8

const (
	Serial Family = iota
	Distributed
)

func (f Family) String() string {
	if f == Distributed {
		return "ParMETIS"
	}
	return "METIS"
}

// Operation describes one exported engine entry point.
type Operation struct {
	Name   string
	Family Family
	// Arity is the native argument signature, "i*" for index arrays, "f*" for
	// real arrays, "i" for scalars.
	Arity []string
}

func (op Operation) String() string {
	return fmt.Sprintf("%s_%s", op.Family, op.Name)
}

// Registry is the static table of exported operations. It is filled once by
// Register calls and read-only afterwards.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

func (r *Registry) Register(ops ...Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range ops {
		if _, exists := r.ops[op.String()]; exists {
			panic(fmt.Errorf("operation %s registered twice", op))
		}
		r.ops[op.String()] = op
	}
}

func (r *Registry) Lookup(family Family, name string) (op Operation, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok = r.ops[Operation{Name: name, Family: family}.String()]
	return
}

// Names returns the registered operation names of a family in sorted order.
func (r *Registry) Names(family Family) (names []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, op := range r.ops {
		if op.Family == family {
			names = append(names, op.Name)
		}
	}
	sort.Strings(names)
	return
}

func rep(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func cat(parts ...[]string) (out []string) {
	for _, p := range parts {
		out = append(out, p...)
	}
	return
}

// Operations is the registry of every entry point implemented by this module.
var Operations = NewRegistry()

func init() {
	Operations.Register(
		Operation{"PartGraphRecursive", Serial, cat(rep("i*", 8), rep("f*", 2), rep("i*", 3))},
		Operation{"PartGraphKway", Serial, cat(rep("i*", 8), rep("f*", 2), rep("i*", 3))},
		Operation{"MeshToDual", Serial, cat(rep("i*", 6), rep("i**", 2))},
		Operation{"MeshToNodal", Serial, cat(rep("i*", 5), rep("i**", 2))},
		Operation{"PartMeshNodal", Serial, cat(rep("i*", 7), rep("f*", 1), rep("i*", 4))},
		Operation{"PartMeshDual", Serial, cat(rep("i*", 8), rep("f*", 1), rep("i*", 4))},
		Operation{"NodeND", Serial, rep("i*", 7)},
		Operation{"SetDefaultOptions", Serial, rep("i*", 1)},
		Operation{"NodeNDP", Serial, cat([]string{"i"}, rep("i*", 3), []string{"i"}, rep("i*", 4))},
		Operation{"ComputeVertexSeparator", Serial, rep("i*", 7)},
		Operation{"NodeRefine", Serial, cat([]string{"i"}, rep("i*", 5), []string{"f"})},
	)
	Operations.Register(
		Operation{"PartKway", Distributed, cat(rep("i*", 9), rep("f*", 2), rep("i*", 3))},
		Operation{"PartGeomKway", Distributed, cat(rep("i*", 8), rep("f*", 1), rep("i*", 2), rep("f*", 2), rep("i*", 3))},
		Operation{"PartGeom", Distributed, cat(rep("i*", 2), []string{"f*", "i*"})},
		Operation{"RefineKway", Distributed, cat(rep("i*", 9), rep("f*", 2), rep("i*", 3))},
		Operation{"AdaptiveRepart", Distributed, cat(rep("i*", 10), rep("f*", 3), rep("i*", 3))},
		Operation{"Mesh2Dual", Distributed, cat(rep("i*", 5), rep("i**", 2))},
		Operation{"PartMeshKway", Distributed, cat(rep("i*", 9), rep("f*", 2), rep("i*", 3))},
		Operation{"NodeND", Distributed, rep("i*", 7)},
	)
}
