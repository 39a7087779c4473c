// Package cp implements "cp": copying files between the host and a
// container's rootfs, in either direction, guarding every guest-side path
// against escaping the rootfs.
package cp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/shadmanzero/lwc/internal/layout"
)

// Spec is a parsed cp endpoint: either a bare host path, or
// "<container>:<path>" naming a path inside a container's rootfs.
type Spec struct {
	Container string // empty for a host-side endpoint
	Path      string
}

// ParseSpec parses one cp argument. A single colon splits a container
// name from an in-container path; an argument with no colon is a host
// path. This mirrors the direction inference lwc's CLI does: exactly one
// of the two cp arguments must name a container.
func ParseSpec(s string) Spec {
	if idx := strings.Index(s, ":"); idx >= 0 {
		return Spec{Container: s[:idx], Path: s[idx+1:]}
	}
	return Spec{Path: s}
}

// Copy copies src to dest. Exactly one of src/dest must have a non-empty
// Container; the other is a host path. Copying container-to-container or
// host-to-host is rejected, matching the CLI's own direction inference.
func Copy(l layout.Layout, src, dest Spec) error {
	switch {
	case src.Container != "" && dest.Container == "":
		return copyFromContainer(l, src.Container, src.Path, dest.Path)
	case src.Container == "" && dest.Container != "":
		return copyToContainer(l, src.Path, dest.Container, dest.Path)
	default:
		return fmt.Errorf("exactly one of src/dest must be a container path")
	}
}

func copyToContainer(l layout.Layout, hostSrc string, container, guestDest string) error {
	rootfsDir := l.RootfsDir(container)
	destPath, err := securejoin.SecureJoin(rootfsDir, guestDest)
	if err != nil {
		return fmt.Errorf("resolve guest dest %s: %w", guestDest, err)
	}
	return copyAny(hostSrc, destPath)
}

func copyFromContainer(l layout.Layout, container, guestSrc string, hostDest string) error {
	rootfsDir := l.RootfsDir(container)
	srcPath, err := securejoin.SecureJoin(rootfsDir, guestSrc)
	if err != nil {
		return fmt.Errorf("resolve guest src %s: %w", guestSrc, err)
	}
	return copyAny(srcPath, hostDest)
}

func copyAny(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if info.IsDir() {
		return copyDir(src, dest)
	}
	return copyFile(src, dest, info.Mode())
}

func copyDir(src, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dest, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", src, err)
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		destPath := filepath.Join(dest, e.Name())
		if e.IsDir() {
			if err := copyDir(srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", srcPath, err)
		}
		if err := copyFile(srcPath, destPath, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s -> %s: %w", src, dest, err)
	}
	return out.Close()
}
