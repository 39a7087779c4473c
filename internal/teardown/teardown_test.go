//go:build linux

package teardown

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadmanzero/lwc/internal/layout"
)

func TestRemoveMissingConfig(t *testing.T) {
	l := layout.Layout{Base: t.TempDir()}
	err := Remove(l, "nope")
	require.Error(t, err)
}
