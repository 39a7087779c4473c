//go:build linux

package rootfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/testutil"
)

func TestParseVolumeSpec(t *testing.T) {
	v, err := ParseVolumeSpec("data:/var/data")
	require.NoError(t, err)
	assert.Equal(t, VolumeSpec{Name: "data", GuestPath: "/var/data"}, v)
}

func TestParseVolumeSpecInvalid(t *testing.T) {
	for _, s := range []string{"data", "data:", ":path", "a:b:c"} {
		_, err := ParseVolumeSpec(s)
		assert.Error(t, err, s)
	}
}

func TestAssembleRequiresRoot(t *testing.T) {
	testutil.RequireLinux(t)
	testutil.RequireRoot(t)

	base := t.TempDir()
	l := layout.Layout{Base: base}
	layer := t.TempDir()

	err := Assemble(l, "demo", []string{layer}, nil)
	require.NoError(t, err)
	assert.DirExists(t, l.RootfsDir("demo"))
}
