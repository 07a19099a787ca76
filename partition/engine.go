// Package partition implements the serial multilevel partitioning engine:
// coarsening by matching, an initial partition of the coarsest graph and
// boundary refinement while the partition is projected back to the input.
package partition

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/notargets/gopart/config"
	"github.com/notargets/gopart/metrics"
	"github.com/notargets/gopart/options"
	"github.com/notargets/gopart/types"
)

// Engine runs partitioning calls for one index width. Its settings are fixed at
// construction and every call works on its own state, so an Engine may serve
// concurrent calls.
type Engine[T types.Idx] struct {
	log       zerolog.Logger
	coarsenTo int
	minRatio  float64
	maxBytes  int64
	leafSize  int
	metrics   *metrics.Recorder
}

// NewEngine copies the engine settings out of cfg. A nil cfg uses the
// defaults and a nil recorder disables metrics.
func NewEngine[T types.Idx](cfg *config.Config, logger zerolog.Logger, rec *metrics.Recorder) *Engine[T] {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Engine[T]{
		log:       logger.With().Str("component", "partition").Logger(),
		coarsenTo: max(cfg.CoarsenTo(), 2),
		minRatio:  cfg.MinCoarsenRatio(),
		maxBytes:  cfg.MaxWorkingSetBytes(),
		leafSize:  max(cfg.LeafSize(), 1),
		metrics:   rec,
	}
}

func (e *Engine[T]) Logger() zerolog.Logger     { return e.log }
func (e *Engine[T]) LeafSize() int              { return e.leafSize }
func (e *Engine[T]) Metrics() *metrics.Recorder { return e.metrics }

// run is the state of one call.
type run struct {
	ctrl      *options.Ctrl
	rng       *rand.Rand
	log       zerolog.Logger
	coarsenTo int
	minRatio  float64
	levels    int
}

func (e *Engine[T]) newRun(ctrl *options.Ctrl) *run {
	return &run{
		ctrl:      ctrl,
		rng:       rand.New(rand.NewPCG(uint64(ctrl.Seed), 0x9e3779b97f4a7c15)),
		log:       e.log,
		coarsenTo: e.coarsenTo,
		minRatio:  e.minRatio,
	}
}

// Call runs fn as the body of operation op of the given family: a panic inside
// becomes a PartitionEngine error and the outcome is recorded in the metrics.
func (e *Engine[T]) Call(family types.Family, op string, args types.Args, fn func() (objval int64, err error)) (err error) {
	var (
		start  = time.Now()
		objval int64
	)
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error().Str("op", op).Interface("panic", rec).Msg("engine failure")
			err = types.NewError(op, types.KindPartitionEngine, args, "internal failure: %v", rec)
		}
		e.metrics.Observe(family, op, start, objval, err)
	}()
	objval, err = fn()
	return
}

// CheckMemory estimates the working set of a multilevel run on a graph of the
// given size and fails with a PartitionMemory error when it exceeds the
// configured limit. The hierarchy of coarser graphs adds roughly the size of
// the input again.
func (e *Engine[T]) CheckMemory(op string, nvtxs, nedges, ncon, nparts int) error {
	if e.maxBytes <= 0 {
		return nil
	}
	words := 2*(int64(nvtxs)*int64(ncon+6)+2*int64(nedges)) + 4*int64(nvtxs) + 4*int64(nparts)*int64(ncon)
	if bytes := 8 * words; bytes > e.maxBytes {
		return types.NewError(op, types.KindPartitionMemory,
			types.Args{"nvtxs": nvtxs, "nedges": nedges, "nparts": nparts, "estimate": bytes, "limit": e.maxBytes},
			"estimated working set of %d bytes exceeds the limit of %d", bytes, e.maxBytes)
	}
	return nil
}
