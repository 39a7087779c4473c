//go:build linux

package shim

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/nsutil"
	"github.com/shadmanzero/lwc/internal/state"
)

// readyFD is the descriptor number of the readiness pipe's write end in a
// container-init process: fd 0-2 are stdio, fd 3 is the first (and only)
// entry in initCmd.ExtraFiles in Run.
const readyFD = 3

// RunInit is the container-init entrypoint, invoked by cmd/lwc when
// re-exec'd as reexec.InitCmd. By the time this runs, the kernel has
// already placed the process in new pid, net, uts and mount namespaces via
// the parent exec.Cmd's Cloneflags, so what remains is loopback bring-up,
// pivot_root into the assembled rootfs, mounting the pseudo-filesystems a
// container expects, and exec'ing the requested command.
func RunInit(l layout.Layout, name string, command []string) error {
	if err := nsutil.EnableLoopback(); err != nil {
		return fmt.Errorf("enable loopback: %w", err)
	}

	rootfsDir := l.RootfsDir(name)
	if err := nsutil.PivotRoot(rootfsDir); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}

	if err := nsutil.MountProc(); err != nil {
		return fmt.Errorf("mount procfs: %w", err)
	}
	if err := os.MkdirAll("/dev", 0o755); err != nil {
		return fmt.Errorf("create /dev: %w", err)
	}
	if err := nsutil.MakeDeviceNodes(); err != nil {
		return fmt.Errorf("create device nodes: %w", err)
	}
	if err := nsutil.MountSysAndCgroup(); err != nil {
		return fmt.Errorf("mount sysfs/cgroup2: %w", err)
	}

	cfg, err := state.Load(l.ConfigPath(name))
	if err != nil {
		return fmt.Errorf("load container config: %w", err)
	}

	readyFile := os.NewFile(uintptr(readyFD), "ready")
	if _, err := readyFile.WriteString("READY\n"); err != nil {
		return fmt.Errorf("signal readiness: %w", err)
	}
	readyFile.Close()

	if err := nsutil.CloseExtraFDs(); err != nil {
		return fmt.Errorf("close extra fds: %w", err)
	}

	if len(command) == 0 {
		return fmt.Errorf("no command to run")
	}
	bin, err := nsutil.LookPath(command[0], cfg.Env)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", command[0], err)
	}

	if err := unix.Exec(bin, command, cfg.Env); err != nil {
		return fmt.Errorf("exec %s: %w", bin, err)
	}
	return nil // unreachable on success
}
