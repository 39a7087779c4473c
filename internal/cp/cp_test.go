package cp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadmanzero/lwc/internal/layout"
)

func TestParseSpec(t *testing.T) {
	s := ParseSpec("web:/var/log/app.log")
	require.Equal(t, "web", s.Container)
	require.Equal(t, "/var/log/app.log", s.Path)

	s = ParseSpec("/home/user/file.txt")
	require.Equal(t, "", s.Container)
	require.Equal(t, "/home/user/file.txt", s.Path)
}

func TestCopyRejectsSameSidedEndpoints(t *testing.T) {
	err := Copy(layout.Layout{}, ParseSpec("a.txt"), ParseSpec("b.txt"))
	require.Error(t, err)

	err = Copy(layout.Layout{}, ParseSpec("web:/a"), ParseSpec("web:/b"))
	require.Error(t, err)
}

func TestCopyToContainerFile(t *testing.T) {
	base := t.TempDir()
	l := layout.Layout{Base: base}
	containerName := "web"

	require.NoError(t, os.MkdirAll(l.RootfsDir(containerName), 0o755))

	hostFile := filepath.Join(base, "source.txt")
	require.NoError(t, os.WriteFile(hostFile, []byte("hello"), 0o644))

	err := Copy(l, ParseSpec(hostFile), ParseSpec(containerName+":/etc/dest.txt"))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(l.RootfsDir(containerName), "etc", "dest.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestCopyFromContainerDir(t *testing.T) {
	base := t.TempDir()
	l := layout.Layout{Base: base}
	containerName := "web"

	srcDir := filepath.Join(l.RootfsDir(containerName), "var", "log")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.log"), []byte("log line"), 0o644))

	hostDest := filepath.Join(base, "out")

	err := Copy(l, ParseSpec(containerName+":/var/log"), ParseSpec(hostDest))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(hostDest, "a.log"))
	require.NoError(t, err)
	require.Equal(t, "log line", string(got))
}
