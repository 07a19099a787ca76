package options

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopart/types"
)

func TestOptionsVector(t *testing.T) {
	opts := New()
	for i := range opts {
		assert.Equal(t, Default, opts[i])
	}
	assert.Equal(t, "defaults", opts.String())

	o2 := opts.With(OBJTYPE, int(ObjTypeVol))
	assert.Equal(t, Default, opts[OBJTYPE], "With must not mutate the receiver")
	assert.Equal(t, "OBJTYPE=1", o2.String())

	SetDefaultOptions(&o2)
	assert.Equal(t, opts, o2)

	opt, ok := ParseOption("NUMBERING")
	assert.True(t, ok)
	assert.Equal(t, NUMBERING, opt)
	assert.Equal(t, 24, int(UBVEC))

	in := []int32{1, 0}
	fromSlice, err := FromSlice(in)
	require.NoError(t, err)
	assert.Equal(t, 1, fromSlice[PTYPE])
	assert.Equal(t, 0, fromSlice[OBJTYPE])
	assert.Equal(t, Default, fromSlice[SEED])
	assert.Equal(t, NOptions, len(ToSlice[int64](fromSlice)))

	_, err = FromSlice(make([]int64, NOptions+1))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	{ // Per-operation defaults
		ctrl, err := Resolve("PartGraphRecursive", OpPMETIS, nil)
		require.NoError(t, err)
		assert.Equal(t, PTypeRB, ctrl.PType)
		assert.Equal(t, RTypeFM, ctrl.RType)
		assert.Equal(t, 1, ctrl.UFactor)
		assert.Equal(t, int64(DefaultSeed), ctrl.Seed)

		ctrl, err = Resolve("PartGraphKway", OpKMETIS, nil)
		require.NoError(t, err)
		assert.Equal(t, IPTypeMetisRB, ctrl.IPType)
		assert.Equal(t, RTypeGreedy, ctrl.RType)
		assert.InDelta(t, 1.03, ctrl.UBFactor(), 1e-6)

		ctrl, err = Resolve("NodeND", OpOMETIS, nil)
		require.NoError(t, err)
		assert.Equal(t, RTypeSep2Sided, ctrl.RType)
		assert.True(t, ctrl.Compress)
	}
	{ // Explicit fields override
		opts := New().With(SEED, 7).With(CONTIG, 1).With(NUMBERING, 1).With(OBJTYPE, int(ObjTypeVol))
		ctrl, err := Resolve("PartGraphKway", OpKMETIS, &opts)
		require.NoError(t, err)
		assert.Equal(t, int64(7), ctrl.Seed)
		assert.True(t, ctrl.Contig)
		assert.Equal(t, 1, ctrl.Numbering)
		assert.Equal(t, ObjTypeVol, ctrl.ObjType)
	}
	{ // Invalid requests are input errors
		bad := []Options{
			New().With(PTYPE, 3),
			New().With(NUMBERING, 2),
			New().With(NCUTS, 0),
			New().With(OBJTYPE, int(ObjTypeNode)),
			New().With(RTYPE, int(RTypeSep1Sided)),
		}
		for _, opts := range bad {
			_, err := Resolve("PartGraphKway", OpKMETIS, &opts)
			assert.True(t, errors.Is(err, types.ErrPartitionInput), "%v", opts)
		}
		vol := New().With(OBJTYPE, int(ObjTypeVol))
		_, err := Resolve("PartGraphRecursive", OpPMETIS, &vol)
		assert.True(t, errors.Is(err, types.ErrPartitionInput))
	}
}

func TestParOptions(t *testing.T) {
	var p ParOptions
	p[ParSeed] = 99
	ctrl, err := p.Resolve("PartKway")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultParSeed), ctrl.Seed, "fields ignored unless options[0] is set")

	p[ParUseOptions] = 1
	p[ParDbgLvl] = int(DbgCheck)
	ctrl, err = p.Resolve("PartKway")
	require.NoError(t, err)
	assert.Equal(t, int64(99), ctrl.Seed)
	assert.True(t, ctrl.DbgLvl.Has(DbgCheck))

	p[ParPSR] = 5
	_, err = p.Resolve("PartKway")
	assert.True(t, errors.Is(err, types.ErrPartitionInput))

	_, err = ParFromSlice([]int32{1, 2, 3, 4, 5})
	assert.Error(t, err)
}
