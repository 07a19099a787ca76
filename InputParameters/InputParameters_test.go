package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gopart/options"
)

func TestParse(t *testing.T) {
	fileInput := []byte(`
Title: Test Case
Operation: kway
Input: grid.graph
NParts: 4
TargetWeights: [0.1, 0.2, 0.3, 0.4]
Options:
  PTYPE: 1
  UFACTOR: 50
  NUMBERING: 1
`)
	var input RunParameters
	require.NoError(t, input.Parse(fileInput))
	assert.Equal(t, "kway", input.Operation)
	assert.Equal(t, 4, input.NParts)
	assert.Equal(t, 50, input.Options["UFACTOR"])
	assert.Len(t, input.TargetReals(), 4)
	assert.Nil(t, input.ImbalanceReals())
	input.Print()

	opts, err := input.ToOptions()
	require.NoError(t, err)
	v, set := opts.Get(options.UFACTOR)
	assert.True(t, set)
	assert.Equal(t, 50, v)
	_, set = opts.Get(options.SEED)
	assert.False(t, set)
}

func TestUnknownOption(t *testing.T) {
	var input RunParameters
	require.NoError(t, input.Parse([]byte("Options:\n  NOSUCH: 1\n")))
	_, err := input.ToOptions()
	assert.Error(t, err)
}
