package image

import (
	"archive/tar"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadmanzero/lwc/internal/layout"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func TestResolveExtractsLayersBottomFirst(t *testing.T) {
	base := t.TempDir()
	l := layout.Layout{Base: base}

	imageDir := l.ImageDir("demo")
	require.NoError(t, os.MkdirAll(imageDir, 0o755))

	writeTar(t, filepath.Join(imageDir, "layer1.tar"), map[string]string{"base.txt": "base"})
	writeTar(t, filepath.Join(imageDir, "layer2.tar"), map[string]string{"top.txt": "top"})

	cfg := map[string]any{
		"config": map[string]any{
			"Env": []string{"PATH=/usr/bin", "FOO=bar"},
		},
	}
	cfgBytes, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "config.json"), cfgBytes, 0o644))

	manifest := []map[string]any{
		{
			"Config": "config.json",
			"Layers": []string{"layer1.tar", "layer2.tar"},
		},
	}
	manifestBytes, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.ImageManifestPath("demo"), manifestBytes, 0o644))

	resolved, err := Resolve(l, "demo", discardLogger())
	require.NoError(t, err)
	require.Len(t, resolved.LayerDirs, 2)
	require.Contains(t, resolved.LayerDirs[0], "layer2.tar")
	require.Contains(t, resolved.LayerDirs[1], "layer1.tar")
	require.Equal(t, []string{"PATH=/usr/bin", "FOO=bar"}, resolved.Config.Config.Env)

	require.FileExists(t, filepath.Join(resolved.LayerDirs[0], "top.txt"))
	require.FileExists(t, filepath.Join(resolved.LayerDirs[1], "base.txt"))
}

func TestResolveMissingManifest(t *testing.T) {
	l := layout.Layout{Base: t.TempDir()}
	_, err := Resolve(l, "nope", discardLogger())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSkipsMissingLayerTar(t *testing.T) {
	base := t.TempDir()
	l := layout.Layout{Base: base}
	imageDir := l.ImageDir("demo")
	require.NoError(t, os.MkdirAll(imageDir, 0o755))

	writeTar(t, filepath.Join(imageDir, "layer1.tar"), map[string]string{"base.txt": "base"})

	cfgBytes := []byte(`{"config":{"Env":[]}}`)
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "config.json"), cfgBytes, 0o644))

	manifest := []map[string]any{
		{"Config": "config.json", "Layers": []string{"layer1.tar", "missing.tar"}},
	}
	manifestBytes, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.ImageManifestPath("demo"), manifestBytes, 0o644))

	resolved, err := Resolve(l, "demo", discardLogger())
	require.NoError(t, err)
	require.Len(t, resolved.LayerDirs, 1)
}
