// Package layout centralizes the on-disk directory scheme lwc uses for
// images, extracted layers, named volumes, and per-container state.
package layout

import (
	"os"
	"path/filepath"
)

// DefaultBasePath is the compile-time default root of lwc's on-disk state.
// Overridable at runtime via the LWC_BASE_PATH environment variable.
const DefaultBasePath = "/opt/lwc"

const baseEnvVar = "LWC_BASE_PATH"

// Layout resolves every path lwc reads or writes under a single base
// directory.
type Layout struct {
	Base string
}

// New resolves the base path from LWC_BASE_PATH, falling back to
// DefaultBasePath.
func New() Layout {
	base := os.Getenv(baseEnvVar)
	if base == "" {
		base = DefaultBasePath
	}
	return Layout{Base: base}
}

// ImageDir is the pre-staged on-disk location of a named image.
func (l Layout) ImageDir(image string) string {
	return filepath.Join(l.Base, "image", image)
}

// ImageManifestPath is the manifest.json for a pre-staged image.
func (l Layout) ImageManifestPath(image string) string {
	return filepath.Join(l.ImageDir(image), "manifest.json")
}

// LayersDir holds every extracted layer, shared read-only across
// containers and memoized by tar basename.
func (l Layout) LayersDir() string {
	return filepath.Join(l.Base, "layers")
}

// LayerDir is the extraction target for a single layer tarball, derived
// from its basename so repeated extraction is a no-op.
func (l Layout) LayerDir(tarBasename string) string {
	return filepath.Join(l.LayersDir(), tarBasename)
}

// VolumesDir holds every named volume's host-side backing directory.
func (l Layout) VolumesDir() string {
	return filepath.Join(l.Base, "volumes")
}

// VolumeDir is a single named volume's host-side backing directory.
func (l Layout) VolumeDir(name string) string {
	return filepath.Join(l.VolumesDir(), name)
}

// ContainersDir holds every container's state directory.
func (l Layout) ContainersDir() string {
	return filepath.Join(l.Base, "containers")
}

// ContainerDir is a single container's state directory.
func (l Layout) ContainerDir(name string) string {
	return filepath.Join(l.ContainersDir(), name)
}

// ConfigPath is the Config document for a container.
func (l Layout) ConfigPath(name string) string {
	return filepath.Join(l.ContainerDir(name), "config.json")
}

// StdoutLogPath is the redirected stdout log for a container's init process.
func (l Layout) StdoutLogPath(name string) string {
	return filepath.Join(l.ContainerDir(name), "stdout.log")
}

// StderrLogPath is the redirected stderr log for a container's init process.
func (l Layout) StderrLogPath(name string) string {
	return filepath.Join(l.ContainerDir(name), "stderr.log")
}

// SockPath is the shim's control-protocol Unix socket for a container.
func (l Layout) SockPath(name string) string {
	return filepath.Join(l.ContainerDir(name), "shim.sock")
}

// OverlayUpperDir is the overlay filesystem's writable upper layer.
func (l Layout) OverlayUpperDir(name string) string {
	return filepath.Join(l.ContainerDir(name), "overlay-upper")
}

// OverlayWorkDir is the overlay filesystem's work directory.
func (l Layout) OverlayWorkDir(name string) string {
	return filepath.Join(l.ContainerDir(name), "overlay-work")
}

// RootfsDir is the container's merged overlay view, mounted as "/" inside
// the container.
func (l Layout) RootfsDir(name string) string {
	return filepath.Join(l.ContainerDir(name), "rootfs")
}
