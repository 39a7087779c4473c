package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsWhenEnvUnset(t *testing.T) {
	t.Setenv(baseEnvVar, "")
	l := New()
	assert.Equal(t, DefaultBasePath, l.Base)
}

func TestNewHonorsEnv(t *testing.T) {
	t.Setenv(baseEnvVar, "/tmp/lwc-test-base")
	l := New()
	require.Equal(t, "/tmp/lwc-test-base", l.Base)
}

func TestPathHelpersJoinUnderBase(t *testing.T) {
	l := Layout{Base: "/opt/lwc"}

	assert.Equal(t, "/opt/lwc/image/alpine", l.ImageDir("alpine"))
	assert.Equal(t, "/opt/lwc/image/alpine/manifest.json", l.ImageManifestPath("alpine"))
	assert.Equal(t, "/opt/lwc/layers/abc.tar", l.LayerDir("abc.tar"))
	assert.Equal(t, "/opt/lwc/volumes/data", l.VolumeDir("data"))
	assert.Equal(t, "/opt/lwc/containers/web", l.ContainerDir("web"))
	assert.Equal(t, "/opt/lwc/containers/web/config.json", l.ConfigPath("web"))
	assert.Equal(t, "/opt/lwc/containers/web/shim.sock", l.SockPath("web"))
	assert.Equal(t, "/opt/lwc/containers/web/rootfs", l.RootfsDir("web"))
	assert.Equal(t, "/opt/lwc/containers/web/overlay-upper", l.OverlayUpperDir("web"))
	assert.Equal(t, "/opt/lwc/containers/web/overlay-work", l.OverlayWorkDir("web"))
}
