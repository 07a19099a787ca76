package dist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrAborted is returned by collectives of a group that was torn down without
// a cause.
var ErrAborted = errors.New("process group aborted")

// Comm is one rank's handle on a process group. Every collective must be
// entered by all ranks in the same order. After Abort every pending and future
// collective of every rank fails with the abort error.
type Comm interface {
	Rank() int
	Size() int
	Context() context.Context
	Barrier() error
	Abort(err error)
	// AllGatherAny returns the contribution of every rank in rank order.
	AllGatherAny(v any) ([]any, error)
	// ExchangeAny delivers msgs[q] to rank q and returns what every rank sent
	// to this one, keyed by sender.
	ExchangeAny(msgs map[int][]any) (map[int][]any, error)
}

// Group runs a function on size ranks, one goroutine each, sharing an
// in-process transport. A Group runs one collective computation at a time.
type Group struct {
	size int
	log  zerolog.Logger

	mu         sync.Mutex
	cond       *sync.Cond
	generation int
	arrived    int
	slots      []any
	results    []any
	err        error
	cancel     context.CancelFunc
	ctx        context.Context

	mb *MailBox[any]
}

func NewGroup(size int, logger zerolog.Logger) *Group {
	g := &Group{
		size: max(size, 1),
		log:  logger.With().Str("component", "dist").Logger(),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *Group) Size() int { return g.size }

// Run calls fn on every rank and waits for all of them. The first rank to fail
// aborts the group so the others fail too, and its error is returned.
func (g *Group) Run(ctx context.Context, fn func(c Comm) error) error {
	eg, ectx := errgroup.WithContext(ctx)
	g.reset(ectx)
	var (
		done    = make(chan struct{})
		watched = make(chan struct{})
	)
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			g.Abort(ctx.Err())
		case <-done:
		}
	}()

	for r := 0; r < g.size; r++ {
		rank := r
		eg.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("rank %d: %v", rank, rec)
				}
				if err != nil {
					g.Abort(err)
				}
			}()
			return fn(&rankComm{g: g, rank: rank})
		})
	}
	err := eg.Wait()
	close(done)
	<-watched
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.err != nil:
		// Every rank saw the same cause
		return g.err
	case err == nil && ctx.Err() != nil:
		// A canceled call has no valid results even if every rank finished.
		return ctx.Err()
	}
	return err
}

func (g *Group) reset(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.generation, g.arrived, g.err = 0, 0, nil
	g.slots = make([]any, g.size)
	g.mb = NewMailBox[any](g.size)
}

// Abort tears the group down. The first cause wins.
func (g *Group) Abort(err error) {
	if err == nil {
		err = ErrAborted
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.abortLocked(err)
}

func (g *Group) abortLocked(err error) {
	if g.err == nil {
		g.err = err
		g.log.Error().Err(err).Msg("process group aborted")
		if g.cancel != nil {
			g.cancel()
		}
	}
	g.cond.Broadcast()
}

// await is a cyclic barrier that also gathers one value per rank.
func (g *Group) await(rank int, v any) ([]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil && g.ctx.Err() != nil {
		g.abortLocked(g.ctx.Err())
	}
	if g.err != nil {
		return nil, g.err
	}
	gen := g.generation
	g.slots[rank] = v
	g.arrived++
	if g.arrived == g.size {
		g.results, g.slots = g.slots, make([]any, g.size)
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
		return g.results, nil
	}
	for gen == g.generation && g.err == nil {
		g.cond.Wait()
	}
	if gen == g.generation {
		return nil, g.err
	}
	return g.results, nil
}

type rankComm struct {
	g    *Group
	rank int
}

func (c *rankComm) Rank() int                { return c.rank }
func (c *rankComm) Size() int                { return c.g.size }
func (c *rankComm) Context() context.Context { return c.g.ctx }
func (c *rankComm) Abort(err error)          { c.g.Abort(err) }

func (c *rankComm) Barrier() error {
	_, err := c.g.await(c.rank, nil)
	return err
}

func (c *rankComm) AllGatherAny(v any) ([]any, error) {
	return c.g.await(c.rank, v)
}

func (c *rankComm) ExchangeAny(msgs map[int][]any) (map[int][]any, error) {
	for to, batch := range msgs {
		if to < 0 || to >= c.g.size {
			return nil, fmt.Errorf("rank %d: message for rank %d out of range", c.rank, to)
		}
		c.g.mb.Post(c.rank, to, batch...)
	}
	c.g.mb.Deliver(c.rank)
	if err := c.Barrier(); err != nil {
		return nil, err
	}
	in := c.g.mb.Receive(c.rank)
	// Nobody may deliver the next round before everyone has drained this one
	if err := c.Barrier(); err != nil {
		return nil, err
	}
	return in, nil
}

// AllGather returns the value of every rank in rank order.
func AllGather[V any](c Comm, v V) ([]V, error) {
	all, err := c.AllGatherAny(v)
	if err != nil {
		return nil, err
	}
	out := make([]V, len(all))
	for i, a := range all {
		out[i], _ = a.(V)
	}
	return out, nil
}

// Bcast returns the value of rank root on every rank.
func Bcast[V any](c Comm, root int, v V) (V, error) {
	var zero V
	all, err := c.AllGatherAny(v)
	if err != nil {
		return zero, err
	}
	out, _ := all[root].(V)
	return out, nil
}

// ReduceOp combines two values of an all-reduce.
type ReduceOp int

const (
	OpSum ReduceOp = iota
	OpMax
	OpMin
)

// AllReduceInt64 combines the slices of all ranks elementwise. Every rank
// must pass the same length.
func AllReduceInt64(c Comm, v []int64, op ReduceOp) ([]int64, error) {
	all, err := AllGather(c, v)
	if err != nil {
		return nil, err
	}
	out := append([]int64(nil), all[0]...)
	for _, w := range all[1:] {
		if len(w) != len(out) {
			return nil, fmt.Errorf("all-reduce length mismatch: %d and %d", len(w), len(out))
		}
		for i, x := range w {
			switch op {
			case OpSum:
				out[i] += x
			case OpMax:
				out[i] = max(out[i], x)
			case OpMin:
				out[i] = min(out[i], x)
			}
		}
	}
	return out, nil
}

// Exchange is a sparse personalized all-to-all: msgs[q] goes to rank q. The
// result is keyed by sender, senders with nothing to say are absent.
func Exchange[V any](c Comm, msgs map[int][]V) (map[int][]V, error) {
	out := make(map[int][]any, len(msgs))
	for to, batch := range msgs {
		if len(batch) == 0 {
			continue
		}
		wrapped := make([]any, len(batch))
		for i, m := range batch {
			wrapped[i] = m
		}
		out[to] = wrapped
	}
	in, err := c.ExchangeAny(out)
	if err != nil {
		return nil, err
	}
	res := make(map[int][]V, len(in))
	for from, batch := range in {
		vs := make([]V, len(batch))
		for i, m := range batch {
			vs[i], _ = m.(V)
		}
		res[from] = vs
	}
	return res, nil
}

// agree is the collective handshake after a local step: when any rank failed,
// every rank returns the error of the lowest failing rank.
func agree(c Comm, err error) error {
	all, gerr := AllGather(c, err)
	if gerr != nil {
		return gerr
	}
	for _, e := range all {
		if e != nil {
			return e
		}
	}
	return nil
}

// sortedKeys returns the ranks of a message map in order.
func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
