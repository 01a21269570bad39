package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope(t *testing.T) {
	assert := assert.New(t)

	s := New(16384, DefaultTablespaceId)
	assert.Equal("16384_1663", s.String())
	assert.False(s.IsGlobal())

	assert.Equal(s, ForDatabase(16384))

	assert.True(Global.IsGlobal())
	assert.Equal("1664_1664", Global.String())

	// a user database in the global tablespace is not the global scope
	assert.False(New(16384, GlobalTablespaceId).IsGlobal())
}
