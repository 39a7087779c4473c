// Package image resolves a pre-staged image's manifest and materializes its
// layers into lwc's shared, memoized layer-extraction cache.
package image

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/klauspost/compress/gzip"
	digest "github.com/opencontainers/go-digest"

	"github.com/shadmanzero/lwc/internal/layout"
)

// ErrNotFound is returned when an image's manifest.json is missing.
var ErrNotFound = fmt.Errorf("image not found")

// manifestEntry is one element of the docker-save-shaped manifest.json
// array: {"Config": "<blob path>", "RepoTags": [...], "Layers": ["<tar
// path>", ...]}. This on-disk shape is bespoke to this spec (an exploded
// directory, not a single tar or an OCI index.json) so no third-party OCI
// image library reads it directly; see DESIGN.md.
type manifestEntry struct {
	Config string   `json:"Config"`
	Layers []string `json:"Layers"`
}

// Resolved is the result of resolving an image: its runtime config and the
// ordered (bottom-to-top) list of extracted layer directories ready to
// become an overlay lowerdir.
type Resolved struct {
	Config    v1.ConfigFile
	LayerDirs []string
}

// Resolve reads <base>/image/<name>/manifest.json, extracts each layer
// tarball exactly once (memoized by basename under <base>/layers/), and
// parses the image's runtime config blob.
func Resolve(l layout.Layout, name string, log *slog.Logger) (*Resolved, error) {
	imageDir := l.ImageDir(name)
	manifestPath := l.ImageManifestPath(name)

	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, manifestPath)
		}
		return nil, fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(manifestBytes, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest %s has no entries", manifestPath)
	}
	entry := entries[0]

	// Reverse so the first element becomes the lowest overlay layer:
	// overlay's lowerdir convention wants bottom-of-stack first.
	layerTars := make([]string, len(entry.Layers))
	for i, p := range entry.Layers {
		layerTars[len(entry.Layers)-1-i] = p
	}

	if err := os.MkdirAll(l.LayersDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create layers dir: %w", err)
	}

	var layerDirs []string
	for _, rel := range layerTars {
		tarPath := filepath.Join(imageDir, rel)
		if _, err := os.Stat(tarPath); err != nil {
			log.Warn("skipping missing layer", "path", tarPath, "error", err)
			continue
		}

		base := filepath.Base(tarPath)
		dir := l.LayerDir(base)
		if _, err := os.Stat(dir); err == nil {
			log.Debug("layer already extracted", "dir", dir)
			layerDirs = append(layerDirs, dir)
			continue
		}

		if err := extractLayer(tarPath, dir, log); err != nil {
			return nil, fmt.Errorf("extract layer %s: %w", tarPath, err)
		}
		layerDirs = append(layerDirs, dir)
	}

	configPath := filepath.Join(imageDir, entry.Config)
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read image config %s: %w", configPath, err)
	}
	var cfg v1.ConfigFile
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return nil, fmt.Errorf("parse image config %s: %w", configPath, err)
	}

	return &Resolved{Config: cfg, LayerDirs: layerDirs}, nil
}

// extractLayer extracts tarPath into dir, creating dir first. Extraction is
// not atomic: a future Resolve call treats dir as done as soon as it
// exists, so a partial extraction left behind by a failed extraction or
// left behind by a crash will simply be treated as complete (a known
// limitation carried over unchanged from spec.md's memoization contract).
func extractLayer(tarPath, dir string, log *slog.Logger) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	r, err := decompressingReader(f)
	if err != nil {
		return err
	}

	h := digest.SHA256.Hash()
	tee := io.TeeReader(r, h)

	if err := untar(tee, dir); err != nil {
		return err
	}

	dg := digest.NewDigest(digest.SHA256, h)
	log.Info("extracted layer", "tar", tarPath, "dir", dir, "digest", dg.String())
	if err := os.WriteFile(dir+".digest", []byte(dg.String()), 0o644); err != nil {
		// Best-effort provenance record; never fatal to extraction.
		log.Debug("could not write layer digest sidecar", "dir", dir, "error", err)
	}
	return nil
}

// gzipMagic is the two-byte gzip header lwc sniffs for before deciding
// whether to run the tar stream through klauspost/compress/gzip.
var gzipMagic = []byte{0x1f, 0x8b}

func decompressingReader(f *os.File) (io.Reader, error) {
	head := make([]byte, 2)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if n == 2 && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip layer: %w", err)
		}
		return gz, nil
	}
	return f, nil
}

// untar extracts a tar stream to dst, preserving permissions and handling
// the entry types layer tarballs actually contain: directories, regular
// files, hard links, symlinks, and character/block device nodes.
func untar(r io.Reader, dst string) error {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		path := filepath.Join(dst, h.Name)

		switch h.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, os.FileMode(h.Mode)); err != nil {
				return err
			}
			if err := os.Chmod(path, h.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(h.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			// OpenFile's mode is reduced by the umask and cannot carry
			// setuid/setgid/sticky bits; apply the header's mode in full.
			if err := os.Chmod(path, h.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeLink:
			target := filepath.Join(dst, h.Linkname)
			if err := os.Link(target, path); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.Symlink(h.Linkname, path); err != nil {
				return err
			}
		case tar.TypeChar, tar.TypeBlock:
			if err := mknodEntry(path, h); err != nil {
				return err
			}
		}
	}
}
