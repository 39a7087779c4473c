//go:build linux

// Package nsutil holds the namespace and mount-syscall helpers shared by
// the shim's container-init path (internal/shim) and the exec namespace
// join path (internal/execattach): the pivot_root propagation dance,
// pseudo-filesystem mounts, device node creation, loopback bring-up, and
// fd hygiene before exec.
package nsutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// PivotRoot performs the mount-propagation dance pivot_root requires:
// chdir into newRoot, mark "/" rec+slave, mark "." private then slave,
// pivot_root(".", "."), then detach-unmount the old root now mounted at
// ".". Deviating from this exact flag sequence causes EINVAL on older
// kernels (spec.md §4.E invariants).
func PivotRoot(newRoot string) error {
	if err := unix.Chdir(newRoot); err != nil {
		return fmt.Errorf("chdir %s: %w", newRoot, err)
	}
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_SLAVE, ""); err != nil {
		return fmt.Errorf("mark / rslave: %w", err)
	}
	if err := unix.Mount("", ".", "", unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("mark . private: %w", err)
	}
	if err := unix.Mount("", ".", "", unix.MS_SLAVE, ""); err != nil {
		return fmt.Errorf("mark . slave: %w", err)
	}
	if err := unix.PivotRoot(".", "."); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := unix.Unmount(".", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detach old root: %w", err)
	}
	return nil
}

// MountProc mounts procfs at /proc inside the (already pivoted) rootfs.
func MountProc() error {
	if err := os.MkdirAll("/proc", 0o755); err != nil {
		return err
	}
	return unix.Mount("proc", "/proc", "proc", unix.MS_NOSUID|unix.MS_NOEXEC|unix.MS_NODEV, "")
}

// MountSysAndCgroup mounts sysfs at /sys and a unified cgroup2 hierarchy at
// /sys/fs/cgroup.
func MountSysAndCgroup() error {
	if err := os.MkdirAll("/sys", 0o755); err != nil {
		return err
	}
	if err := unix.Mount("sysfs", "/sys", "sysfs", unix.MS_NOSUID|unix.MS_NOEXEC|unix.MS_NODEV, ""); err != nil {
		return fmt.Errorf("mount sysfs: %w", err)
	}
	if err := os.MkdirAll("/sys/fs/cgroup", 0o755); err != nil {
		return err
	}
	if err := unix.Mount("cgroup2", "/sys/fs/cgroup", "cgroup2", unix.MS_NOSUID|unix.MS_NOEXEC|unix.MS_NODEV, ""); err != nil {
		return fmt.Errorf("mount cgroup2: %w", err)
	}
	return nil
}

// MakeDeviceNodes creates /dev/null (1:3) and /dev/zero (1:5), readable and
// writable by all, the way a privileged container runtime does once it
// owns /dev (CAP_MKNOD is required; rootless implementations must instead
// bind-mount these from the host, per spec.md §9).
func MakeDeviceNodes() error {
	const rw = 0o666
	if err := unix.Mknod("/dev/null", unix.S_IFCHR|rw, int(unix.Mkdev(1, 3))); err != nil {
		return fmt.Errorf("mknod /dev/null: %w", err)
	}
	if err := unix.Mknod("/dev/zero", unix.S_IFCHR|rw, int(unix.Mkdev(1, 5))); err != nil {
		return fmt.Errorf("mknod /dev/zero: %w", err)
	}
	// mknod applies the process umask, so set the mode explicitly.
	for _, p := range []string{"/dev/null", "/dev/zero"} {
		if err := os.Chmod(p, rw); err != nil {
			return fmt.Errorf("chmod %s: %w", p, err)
		}
	}
	return nil
}

// EnableLoopback brings the "lo" interface up inside the current (new)
// network namespace, natively via netlink rather than shelling out to the
// `ip` binary.
func EnableLoopback() error {
	link, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("lookup lo: %w", err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set lo up: %w", err)
	}
	return nil
}

// CloseExtraFDs marks every file descriptor numbered 3 and above
// close-on-exec, so they are closed by the next execve. Callers invoke this
// immediately before execve, after any fd meant to survive (e.g. a
// readiness pipe write end) has already been used.
func CloseExtraFDs() error {
	return unix.CloseRange(3, ^uint(0), unix.CLOSE_RANGE_CLOEXEC)
}

// NamespacePath returns /proc/<pid>/ns/<ns> for setns-based namespace
// joins.
func NamespacePath(pid int, ns string) string {
	return fmt.Sprintf("/proc/%d/ns/%s", pid, ns)
}

// LookPath resolves command against the PATH found in env, falling back
// to a conservative default PATH when env sets none. Both the
// container-init exec and the exec-attach join need this: at the point
// either calls it, the running process's own $PATH is irrelevant, since
// what matters is the target command's environment, not the caller's.
func LookPath(command string, env []string) (string, error) {
	if strings.Contains(command, "/") {
		if _, err := os.Stat(command); err != nil {
			return "", err
		}
		return command, nil
	}

	path := "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			path = strings.TrimPrefix(kv, "PATH=")
			break
		}
	}
	for _, dir := range filepath.SplitList(path) {
		candidate := filepath.Join(dir, command)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}
