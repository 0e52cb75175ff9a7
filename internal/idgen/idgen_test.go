package idgen

import (
	"testing"

	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode(t *testing.T) {
	node, err := NewNode(config.Config{NodeID: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 3, node.Generate().Node())

	_, err = NewNode(config.Config{NodeID: 5000})
	assert.Error(t, err)
}
