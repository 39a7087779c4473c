//go:build linux

// Package teardown implements "remove": unwinding every mount Assemble and
// the running container laid down, then deleting the container directory.
package teardown

import (
	"fmt"
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sys/unix"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/rootfs"
	"github.com/shadmanzero/lwc/internal/state"
)

// Remove unmounts a container's volumes, /dev/shm, /dev and its overlay
// rootfs (forcing any of those that are busy), then deletes the container
// directory outright. It deliberately does not check whether the
// container's init process is still alive before tearing its mounts down:
// the reference implementation carries the same gap, and lwc's own
// contract is that "remove" is only valid against a container the caller
// already knows is stopped.
func Remove(l layout.Layout, name string) error {
	containerDir := l.ContainerDir(name)
	rootfsDir := l.RootfsDir(name)

	cfg, err := state.Load(l.ConfigPath(name))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	for _, raw := range cfg.Volumes {
		v, err := rootfs.ParseVolumeSpec(raw)
		if err != nil {
			continue
		}
		guestPath, err := securejoin.SecureJoin(rootfsDir, v.GuestPath)
		if err != nil {
			continue
		}
		if err := unix.Unmount(guestPath, unix.MNT_FORCE); err != nil && err != unix.EINVAL {
			return fmt.Errorf("unmount volume %s: %w", guestPath, err)
		}
	}

	if err := unix.Unmount(rootfsDir+"/dev/shm", unix.MNT_FORCE); err != nil && err != unix.EINVAL {
		return fmt.Errorf("unmount dev/shm: %w", err)
	}
	if err := unix.Unmount(rootfsDir+"/dev", unix.MNT_FORCE); err != nil && err != unix.EINVAL {
		return fmt.Errorf("unmount dev: %w", err)
	}
	if err := unix.Unmount(rootfsDir, unix.MNT_FORCE); err != nil && err != unix.EINVAL {
		return fmt.Errorf("unmount rootfs: %w", err)
	}

	if err := os.RemoveAll(containerDir); err != nil {
		return fmt.Errorf("remove container directory %s: %w", containerDir, err)
	}
	return nil
}
