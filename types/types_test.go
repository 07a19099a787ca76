package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	{ // Test packed int for edge labeling
		en := NewEdgeKey([2]int{1, 0})
		assert.Equal(t, EdgeKey(1<<32), en)
		assert.Equal(t, [2]int{0, 1}, en.GetVertices(false))

		en = NewEdgeKey([2]int{100, 1})
		assert.Equal(t, EdgeKey(100*(1<<32)+1), en)
		assert.Equal(t, [2]int{1, 100}, en.GetVertices(false))
		assert.Equal(t, [2]int{100, 1}, en.GetVertices(true))

		en = NewEdgeKey([2]int{1<<32 - 1, 1<<32 - 1})
		assert.Equal(t, EdgeKey(1<<64-1), en)
		assert.Equal(t, [2]int{1<<32 - 1, 1<<32 - 1}, en.GetVertices(false))

		assert.Panics(t, func() { NewEdgeKey([2]int{-1, 2}) })
	}
	{ // Directed arcs keep their orientation
		a := NewArcKey(7, 3)
		from, to := a.GetVertices()
		assert.Equal(t, 7, from)
		assert.Equal(t, 3, to)
		assert.Equal(t, NewArcKey(3, 7), a.Reverse())
		assert.NotEqual(t, a, a.Reverse())
	}
}

func TestSlices(t *testing.T) {
	assert.Equal(t, []int32{2, 3, 4}, Shifted([]int32{1, 2, 3}, 1))
	assert.Nil(t, Shifted[int64](nil, 1))

	buf := make([]int64, 10)
	out := OutputBuffer(buf, 4)
	assert.Equal(t, 4, len(out))
	out[0] = 9
	assert.Equal(t, int64(9), buf[0], "supplied buffer is used in place")
	assert.Equal(t, 3, len(OutputBuffer[int32](nil, 3)))
	assert.True(t, BufferFits[int32](nil, 5))
	assert.False(t, BufferFits(make([]int32, 2), 5))

	lo, hi := MinMax([]int32{4, -1, 7, 0})
	assert.Equal(t, int32(-1), lo)
	assert.Equal(t, int32(7), hi)

	assert.Equal(t, []int64{3, 4}, FromInts([]int{3, 4}, []int64(nil)))
	assert.Equal(t, []int{3, 4}, ToInts([]int32{3, 4}))
}

func TestErrors(t *testing.T) {
	{ // Translation table is a pure lookup
		assert.NoError(t, FromStatus("PartGraphKway", StatusOK, nil))
		err := FromStatus("PartGraphKway", StatusErrorMemory, Args{"nparts": 4})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPartitionMemory))
		assert.True(t, Retriable(err))
		assert.Equal(t, StatusErrorMemory, StatusOf(err))

		err = FromStatus("NodeND", StatusErrorInput, nil)
		assert.True(t, errors.Is(err, ErrPartitionInput))
		assert.False(t, Retriable(err))

		err = FromStatus("NodeND", Status(-99), nil)
		assert.True(t, errors.Is(err, ErrPartitionEngine))
	}
	{ // Errors carry op, classification and argument snapshot
		err := NewError("PartGraphRecursive", KindInvalidGraph, Args{"nv": 3, "base": 2},
			"numbering base %d is not 0 or 1", 2)
		msg := err.Error()
		assert.Contains(t, msg, "PartGraphRecursive")
		assert.Contains(t, msg, "InvalidGraphError")
		assert.Contains(t, msg, "METIS_ERROR_INPUT")
		assert.Contains(t, msg, "base=2")
		assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), ErrInvalidGraph))
		kind, ok := KindOf(fmt.Errorf("wrapped: %w", err))
		assert.True(t, ok)
		assert.Equal(t, KindInvalidGraph, kind)
		_, ok = KindOf(errors.New("foreign"))
		assert.False(t, ok)
	}
}

func TestRegistry(t *testing.T) {
	op, ok := Operations.Lookup(Serial, "PartGraphKway")
	require.True(t, ok)
	assert.Equal(t, 13, len(op.Arity))
	assert.Equal(t, "METIS_PartGraphKway", op.String())
	_, ok = Operations.Lookup(Distributed, "PartGraphKway")
	assert.False(t, ok)
	assert.Contains(t, Operations.Names(Distributed), "PartGeomKway")
	assert.Equal(t, 11, len(Operations.Names(Serial)))
	assert.Panics(t, func() { Operations.Register(op) })
}
