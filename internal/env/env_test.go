package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvironmentValid(t *testing.T) {
	assert.True(t, Local.Valid())
	assert.True(t, Production.Valid())
	assert.False(t, Environment("staging").Valid())
	assert.False(t, Environment("").Valid())
}

func TestOr(t *testing.T) {
	t.Setenv("GRAVCINE_TEST_VAR", "set")
	assert.Equal(t, "set", Or("GRAVCINE_TEST_VAR", "fallback"))

	t.Setenv("GRAVCINE_TEST_VAR", "")
	assert.Equal(t, "fallback", Or("GRAVCINE_TEST_VAR", "fallback"))
}
