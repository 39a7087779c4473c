//go:build linux

package nsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespacePath(t *testing.T) {
	assert.Equal(t, "/proc/1234/ns/net", NamespacePath(1234, "net"))
}

func TestLookPathAbsolute(t *testing.T) {
	path, err := LookPath("/bin/sh", nil)
	if err != nil {
		t.Skip("no /bin/sh on this host")
	}
	assert.Equal(t, "/bin/sh", path)
}

func TestLookPathUsesEnvPath(t *testing.T) {
	// sh is on the fallback PATH; it must not be found when env's PATH
	// points elsewhere.
	_, err := LookPath("sh", []string{"PATH=/nonexistent"})
	assert.Error(t, err)
}
