package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDPrecedence(t *testing.T) {
	t.Setenv("TEEVO_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	assert.Equal(t, "local", GetID())

	t.Setenv("DYNO", "web.2")
	assert.Equal(t, "web.2", GetID())

	t.Setenv("TEEVO_INSTANCE_ID", "api-blue")
	assert.Equal(t, "api-blue", GetID())
}
