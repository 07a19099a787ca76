package options

import (
	"fmt"

	"github.com/notargets/gopart/types"
)

// NOptions is the length of the serial options vector. Fields past UBVEC are
// reserved.
const NOptions = 40

// Default is the "use engine default" sentinel of the serial vector.
const Default = -1

// Options is the serial options vector. It is read-only input to every engine
// call.
type Options [NOptions]int

// New returns an options vector with every field set to the default sentinel.
func New() (opts Options) {
	SetDefaultOptions(&opts)
	return
}

// SetDefaultOptions resets every field to the default sentinel. This is the only
// operation that mutates an options vector.
func SetDefaultOptions(opts *Options) {
	for i := range opts {
		opts[i] = Default
	}
}

// Get returns a field and whether it was explicitly set.
func (o *Options) Get(opt Option) (val int, set bool) {
	if o == nil {
		return Default, false
	}
	val = o[opt]
	return val, val != Default
}

// With returns a copy with one field set.
func (o Options) With(opt Option, val int) Options {
	o[opt] = val
	return o
}

func (o Options) String() (s string) {
	for i := PTYPE; i <= UBVEC; i++ {
		if o[i] != Default {
			s += fmt.Sprintf("%s=%d ", i, o[i])
		}
	}
	if s == "" {
		return "defaults"
	}
	return s[:len(s)-1]
}

// FromSlice reads a caller integer array into an options vector. A nil slice
// means all defaults; a short slice leaves the remaining fields at default.
func FromSlice[T types.Idx](in []T) (opts Options, err error) {
	SetDefaultOptions(&opts)
	if len(in) > NOptions {
		err = fmt.Errorf("options vector has %d fields, at most %d allowed", len(in), NOptions)
		return
	}
	for i, v := range in {
		opts[i] = int(v)
	}
	return
}

// ToSlice writes the options vector into a caller integer array.
func ToSlice[T types.Idx](opts Options) []T {
	out := make([]T, NOptions)
	for i, v := range opts {
		out[i] = T(v)
	}
	return out
}
