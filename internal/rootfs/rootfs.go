//go:build linux

// Package rootfs assembles a container's merged root filesystem: the
// overlay mount over extracted layers, bind-mounted named volumes, and the
// /dev tmpfs + /dev/shm bind lwc sets up before the shim pivots into it.
package rootfs

import (
	"fmt"
	"os"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sys/unix"

	"github.com/shadmanzero/lwc/internal/layout"
)

// VolumeSpec is a parsed "<name>:<container-abs-path>" volume argument.
type VolumeSpec struct {
	Name      string
	GuestPath string
}

// ParseVolumeSpec parses "<name>:<guestpath>", failing unless it contains
// exactly one ':'.
func ParseVolumeSpec(s string) (VolumeSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return VolumeSpec{}, fmt.Errorf("invalid volume spec %q: want <name>:<container-path>", s)
	}
	return VolumeSpec{Name: parts[0], GuestPath: parts[1]}, nil
}

// Assemble creates <container>/rootfs as an overlay mount over layerDirs
// (already ordered bottom-to-top), wires the requested volumes, and sets
// up /dev and /dev/shm. It is idempotent: an existing rootfs is removed and
// recreated first.
func Assemble(l layout.Layout, container string, layerDirs []string, volumes []VolumeSpec) error {
	rootfsDir := l.RootfsDir(container)
	upperDir := l.OverlayUpperDir(container)
	workDir := l.OverlayWorkDir(container)

	if _, err := os.Stat(rootfsDir); err == nil {
		if err := os.RemoveAll(rootfsDir); err != nil {
			return fmt.Errorf("remove stale rootfs %s: %w", rootfsDir, err)
		}
	}
	for _, dir := range []string{upperDir, workDir, rootfsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if len(layerDirs) == 0 {
		return fmt.Errorf("no layers resolved for container %s", container)
	}
	lowerdir := strings.Join(layerDirs, ":")
	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lowerdir, upperDir, workDir)
	if err := unix.Mount("overlay", rootfsDir, "overlay", 0, opts); err != nil {
		return fmt.Errorf("mount overlay at %s: %w", rootfsDir, err)
	}
	// Private propagation so the later pivot_root inside the shim's
	// container-init doesn't leak back into the host mount namespace.
	if err := unix.Mount("", rootfsDir, "", unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make rootfs private %s: %w", rootfsDir, err)
	}

	for _, v := range volumes {
		if err := mountVolume(l, rootfsDir, v); err != nil {
			return fmt.Errorf("wire volume %s: %w", v.Name, err)
		}
	}

	if err := mountSharedMemory(rootfsDir); err != nil {
		return fmt.Errorf("wire shared memory: %w", err)
	}

	return nil
}

func mountVolume(l layout.Layout, rootfsDir string, v VolumeSpec) error {
	hostDir := l.VolumeDir(v.Name)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return fmt.Errorf("create host volume dir %s: %w", hostDir, err)
	}

	guestDir, err := securejoin.SecureJoin(rootfsDir, v.GuestPath)
	if err != nil {
		return fmt.Errorf("resolve guest path %s: %w", v.GuestPath, err)
	}
	if err := os.MkdirAll(guestDir, 0o755); err != nil {
		return fmt.Errorf("create guest volume dir %s: %w", guestDir, err)
	}

	if err := unix.Mount(hostDir, guestDir, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind mount %s -> %s: %w", hostDir, guestDir, err)
	}
	return nil
}

// mountSharedMemory mounts a tmpfs at rootfs/dev and bind-mounts the host's
// /dev/shm onto rootfs/dev/shm. /dev/null and /dev/zero are created later,
// after pivot_root, by the shim's container-init path.
func mountSharedMemory(rootfsDir string) error {
	devDir := rootfsDir + "/dev"
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", devDir, err)
	}
	if err := unix.Mount("tmpfs", devDir, "tmpfs", unix.MS_NOSUID|unix.MS_NOEXEC, ""); err != nil {
		return fmt.Errorf("mount tmpfs at %s: %w", devDir, err)
	}

	shmDir := devDir + "/shm"
	if err := os.MkdirAll(shmDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", shmDir, err)
	}
	if err := unix.Mount("/dev/shm", shmDir, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind mount /dev/shm at %s: %w", shmDir, err)
	}
	return nil
}
