package reexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandBuildsArgv(t *testing.T) {
	cmd := Command(ShimCmd, "web", "--", "sh", "-c", "true")
	assert.Equal(t, Self, cmd.Path)
	assert.Equal(t, []string{Self, ShimCmd, "web", "--", "sh", "-c", "true"}, cmd.Args)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(ShimCmd))
	assert.True(t, IsHidden(InitCmd))
	assert.True(t, IsHidden(ExecJoinCmd))
	assert.False(t, IsHidden("start"))
	assert.False(t, IsHidden(""))
}
