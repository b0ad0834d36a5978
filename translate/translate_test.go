package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(SetLanguage("en-US"))
	assert.Equal("line 3 'x'", From("line %d '%v'", 3, "x"))
	assert.Equal("1,024 bytes", From("%d bytes", 1024))

	assert.Error(SetLanguage("!!"))
}
