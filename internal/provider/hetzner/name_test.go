package hetzner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomNodeNameHasPrefixAndLength(t *testing.T) {
	name, err := randomNodeName("node-autopilot-")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(name, "node-autopilot-"))
	suffix := strings.TrimPrefix(name, "node-autopilot-")
	assert.Len(t, suffix, nameSuffixLength)
	for _, r := range suffix {
		assert.Contains(t, nameSuffixAlphabet, string(r))
	}
}

func TestRandomNodeNameVariesBetweenCalls(t *testing.T) {
	first, err := randomNodeName("p-")
	require.NoError(t, err)
	second, err := randomNodeName("p-")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
