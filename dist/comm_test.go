package dist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailBox(t *testing.T) {
	mb := NewMailBox[int](3)
	mb.Post(0, 1, 10, 11)
	mb.Post(0, 2, 20)
	mb.Deliver(0)
	mb.Post(2, 1, 5)
	mb.Deliver(2)
	assert.Equal(t, map[int][]int{0: {10, 11}, 2: {5}}, mb.Receive(1))
	assert.Equal(t, map[int][]int{0: {20}}, mb.Receive(2))
	assert.Empty(t, mb.Receive(0))
	assert.Empty(t, mb.Receive(1))
}

func TestCollectives(t *testing.T) {
	const np = 4
	var (
		gathered = make([][]int, np)
		reduced  = make([][]int64, np)
		bcast    = make([]string, np)
		received = make([]map[int][]int, np)
	)
	err := NewGroup(np, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		r := c.Rank()
		all, err := AllGather(c, r*r)
		if err != nil {
			return err
		}
		gathered[r] = all
		if reduced[r], err = AllReduceInt64(c, []int64{int64(r), int64(r)}, OpSum); err != nil {
			return err
		}
		msg := ""
		if r == 2 {
			msg = "from two"
		}
		if bcast[r], err = Bcast(c, 2, msg); err != nil {
			return err
		}
		// Ring: every rank sends its id to the next one
		received[r], err = Exchange(c, map[int][]int{(r + 1) % np: {r, r}})
		return err
	})
	require.NoError(t, err)
	for r := 0; r < np; r++ {
		assert.Equal(t, []int{0, 1, 4, 9}, gathered[r])
		assert.Equal(t, []int64{6, 6}, reduced[r])
		assert.Equal(t, "from two", bcast[r])
		from := (r + np - 1) % np
		assert.Equal(t, map[int][]int{from: {from, from}}, received[r])
	}
}

func TestReduceOps(t *testing.T) {
	var maxs, mins []int64
	err := NewGroup(3, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		mx, err := AllReduceInt64(c, []int64{int64(c.Rank())}, OpMax)
		if err != nil {
			return err
		}
		mn, err := AllReduceInt64(c, []int64{int64(c.Rank())}, OpMin)
		if c.Rank() == 0 {
			maxs, mins = mx, mn
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, maxs)
	assert.Equal(t, []int64{0}, mins)
}

func TestAbortReachesEveryRank(t *testing.T) {
	boom := errors.New("boom")
	seen := make([]error, 3)
	err := NewGroup(3, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		if c.Rank() == 1 {
			return boom
		}
		seen[c.Rank()] = c.Barrier()
		return seen[c.Rank()]
	})
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, seen[0], boom)
	assert.ErrorIs(t, seen[2], boom)
}

func TestPanicAbortsGroup(t *testing.T) {
	var waited atomic.Int32
	err := NewGroup(2, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		if c.Rank() == 0 {
			var s []int
			_ = s[3]
		}
		err := c.Barrier()
		if err != nil {
			waited.Add(1)
		}
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank 0")
	assert.Equal(t, int32(1), waited.Load())
}

func TestContextCancelAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := NewGroup(2, zerolog.Nop()).Run(ctx, func(c Comm) error {
		if c.Rank() == 0 {
			<-c.Context().Done()
		}
		return c.Barrier()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanceledRunNeverSucceeds(t *testing.T) {
	g := NewGroup(2, zerolog.Nop())
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(time.Millisecond)
			cancel()
		}()
		err := g.Run(ctx, func(c Comm) error {
			if c.Rank() == 0 {
				<-c.Context().Done()
			}
			return c.Barrier()
		})
		require.ErrorIs(t, err, context.Canceled, "run %d", i)
		cancel()
	}
}

func TestGroupIsReusable(t *testing.T) {
	g := NewGroup(2, zerolog.Nop())
	require.Error(t, g.Run(context.Background(), func(c Comm) error { return errors.New("first") }))
	var sum []int64
	require.NoError(t, g.Run(context.Background(), func(c Comm) error {
		s, err := AllReduceInt64(c, []int64{1}, OpSum)
		if c.Rank() == 0 {
			sum = s
		}
		return err
	}))
	assert.Equal(t, []int64{2}, sum)
}

func TestAgree(t *testing.T) {
	bad := errors.New("rank 1 input")
	got := make([]error, 3)
	require.ErrorIs(t, NewGroup(3, zerolog.Nop()).Run(context.Background(), func(c Comm) error {
		var err error
		if c.Rank() == 1 {
			err = bad
		}
		got[c.Rank()] = agree(c, err)
		return got[c.Rank()]
	}), bad)
	for _, err := range got {
		assert.ErrorIs(t, err, bad)
	}
}
