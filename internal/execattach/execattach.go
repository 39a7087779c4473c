//go:build linux

// Package execattach implements "exec": running a new command inside an
// already-running container's namespaces without going through the shim.
package execattach

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/nsutil"
	"github.com/shadmanzero/lwc/internal/reexec"
	"github.com/shadmanzero/lwc/internal/state"
)

// extraEnvVar carries exec's -e additions across the re-exec boundary:
// the PID namespace join must happen before the fork that creates
// execJoinCmd, but the uts/net/mnt joins and the final exec only make
// sense after that fork, in the new child, so the -e additions are handed
// to the child via its own process environment rather than argv; the child
// (RunJoin) appends them to the container config's env.
const extraEnvVar = "LWC_EXEC_EXTRA_ENV"

// envSep separates entries packed into extraEnvVar. An environment entry
// cannot contain NUL (os/exec refuses to start such a process), so the
// ASCII unit separator is used; an -e value containing that byte is split
// at it.
const envSep = "\x1f"

// Run is the CLI-facing "exec" entrypoint. It joins the container's pid
// namespace for future children, then re-execs into reexec.ExecJoinCmd to
// actually fork into that namespace and join the remaining ones.
func Run(l layout.Layout, name string, command []string, envCLI []string, detach bool, log *slog.Logger) error {
	cfgPath := l.ConfigPath(name)
	cfg, err := state.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Running() {
		return fmt.Errorf("container %s is not running", name)
	}
	if len(command) == 0 {
		return fmt.Errorf("no command given")
	}

	pidNsPath := nsutil.NamespacePath(cfg.Pid, "pid")
	pidNsFD, err := unix.Open(pidNsPath, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", pidNsPath, err)
	}
	defer unix.Close(pidNsFD)

	detachFlag := "0"
	if detach {
		detachFlag = "1"
	}
	args := append([]string{name, strconv.Itoa(cfg.Pid), detachFlag, "--"}, command...)
	child := reexec.Command(reexec.ExecJoinCmd, args...)
	child.Env = append(os.Environ(), extraEnvVar+"="+strings.Join(envCLI, envSep))
	if detach {
		child.Stdin, child.Stdout, child.Stderr = nil, nil, nil
	} else {
		child.Stdin, child.Stdout, child.Stderr = os.Stdin, os.Stdout, os.Stderr
	}

	// setns(CLONE_NEWPID) only takes effect for children forked after the
	// call, on the thread that made it; lock this goroutine to its OS
	// thread so the runtime cannot migrate it between Setns and Start,
	// which both must run on that same thread.
	runtime.LockOSThread()
	if err := unix.Setns(pidNsFD, unix.CLONE_NEWPID); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("setns pid: %w", err)
	}
	startErr := child.Start()
	runtime.UnlockOSThread()
	if startErr != nil {
		return fmt.Errorf("start exec-join child: %w", startErr)
	}

	if detach {
		log.Info("exec started detached", "container", name, "pid", child.Process.Pid)
		return nil
	}

	if err := child.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("wait exec-join child: %w", err)
	}
	return nil
}

// RunJoin is invoked by cmd/lwc when re-exec'd as reexec.ExecJoinCmd. It is
// already running inside the container's pid namespace (inherited via its
// parent's setns+fork); it still must join uts, net and mnt before the
// final exec, exactly as the uts/net/mnt joins in the reference
// implementation happen only after the pid-namespace-creating fork.
func RunJoin(l layout.Layout, name string, hostPid int, detach bool, command []string) error {
	cfg, err := state.Load(l.ConfigPath(name))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if detach {
		if err := redirectDetachedStdio(l, name); err != nil {
			return fmt.Errorf("redirect stdio: %w", err)
		}
	}
	if err := nsutil.CloseExtraFDs(); err != nil {
		return fmt.Errorf("close extra fds: %w", err)
	}

	for _, ns := range []string{"uts", "net", "mnt"} {
		if err := joinNamespace(hostPid, ns); err != nil {
			return fmt.Errorf("join %s namespace: %w", ns, err)
		}
	}

	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}

	env := append([]string{}, cfg.Env...)
	if extra := os.Getenv(extraEnvVar); extra != "" {
		env = append(env, strings.Split(extra, envSep)...)
	}

	bin, err := nsutil.LookPath(command[0], env)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", command[0], err)
	}
	if err := unix.Exec(bin, command, env); err != nil {
		return fmt.Errorf("exec %s: %w", bin, err)
	}
	return nil
}

func joinNamespace(pid int, ns string) error {
	path := nsutil.NamespacePath(pid, ns)
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)
	return unix.Setns(fd, 0)
}

func redirectDetachedStdio(l layout.Layout, name string) error {
	outFile, err := os.OpenFile(l.StdoutLogPath(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer outFile.Close()
	errFile, err := os.OpenFile(l.StderrLogPath(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer errFile.Close()

	if err := unix.Dup2(int(outFile.Fd()), 1); err != nil {
		return err
	}
	if err := unix.Dup2(int(errFile.Fd()), 2); err != nil {
		return err
	}
	return unix.Close(0)
}
