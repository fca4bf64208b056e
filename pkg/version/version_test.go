package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringNeverEmpty(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, String())
	assert.NotEmpty(t, Hash())
}
