//go:build linux

// Package shim is the container lifecycle engine: it owns the long-lived
// process that supervises a running container, persists its config
// transitions, and answers the Unix-socket control protocol that "stop"
// speaks to it. It also implements the container-init entrypoint the shim
// re-execs into (pivot_root, pseudo-filesystem mounts, final exec).
package shim

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/reexec"
	"github.com/shadmanzero/lwc/internal/state"
)

// stopEscalation is how long the shim waits after SIGTERM before promoting
// a stop request to SIGKILL.
const stopEscalation = 10 * time.Second

// pollInterval governs how often the control loop re-checks a pending
// escalation deadline; it has no effect on how quickly a "stop" request or
// a container exit is observed, both of which are event-driven.
const pollInterval = 200 * time.Millisecond

// Run is the shim process entrypoint, invoked by cmd/lwc's "start" verb
// after it has re-exec'd itself as reexec.ShimCmd. It binds the control
// socket, re-execs into the container-init path, flips the container's
// config to running once a pid exists, and then supervises the container
// until it exits, answering "stop" requests along the way.
func Run(l layout.Layout, name string, command []string, log *slog.Logger, readyToCaller *os.File) error {
	if err := redirectStdio(l, name); err != nil {
		return fmt.Errorf("redirect shim stdio: %w", err)
	}

	cfgPath := l.ConfigPath(name)
	cfg, err := state.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sockPath := l.SockPath(name)
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", sockPath, err)
	}
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("bind control socket %s: %w", sockPath, err)
	}
	defer listener.Close()

	initR, initW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create init readiness pipe: %w", err)
	}

	args := append([]string{name, "--"}, command...)
	initCmd := reexec.Command(reexec.InitCmd, args...)
	initCmd.Stdout = os.Stdout
	initCmd.Stderr = os.Stderr
	initCmd.Stdin = nil
	initCmd.ExtraFiles = []*os.File{initW}
	initCmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: unix.CLONE_NEWPID | unix.CLONE_NEWNET | unix.CLONE_NEWUTS | unix.CLONE_NEWNS,
	}

	if err := initCmd.Start(); err != nil {
		initW.Close()
		initR.Close()
		return fmt.Errorf("start container-init: %w", err)
	}
	initW.Close()
	containerPid := initCmd.Process.Pid

	cfg.Pid = containerPid
	cfg.State = state.StateRunning
	cfg.StartedAt = state.Now()
	if err := state.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("persist running config: %w", err)
	}

	if err := waitForReady(initR); err != nil {
		return fmt.Errorf("container-init failed to start: %w", err)
	}
	initR.Close()

	if err := signalReady(readyToCaller); err != nil {
		log.Warn("could not notify caller of readiness", "error", err)
	}

	log.Info("container running", "container", name, "pid", containerPid)
	return controlLoop(listener, containerPid, cfgPath, cfg, log)
}

func waitForReady(r *os.File) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != "READY" {
		return fmt.Errorf("unexpected readiness line %q", line)
	}
	return nil
}

func signalReady(w *os.File) error {
	if w == nil {
		return nil
	}
	defer w.Close()
	if _, err := w.WriteString("READY\n"); err != nil {
		return err
	}
	return nil
}

func redirectStdio(l layout.Layout, name string) error {
	outPath := l.StdoutLogPath(name)
	errPath := l.StderrLogPath(name)

	outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", outPath, err)
	}
	errFile, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		outFile.Close()
		return fmt.Errorf("open %s: %w", errPath, err)
	}

	if err := unix.Dup2(int(outFile.Fd()), 1); err != nil {
		return fmt.Errorf("dup2 stdout: %w", err)
	}
	if err := unix.Dup2(int(errFile.Fd()), 2); err != nil {
		return fmt.Errorf("dup2 stderr: %w", err)
	}
	outFile.Close()
	errFile.Close()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()
	return unix.Dup2(int(devNull.Fd()), 0)
}

// stopper tracks a single in-flight "stop" request: the connection it must
// answer once the container has exited, and when SIGTERM was sent so the
// control loop knows when to escalate to SIGKILL.
type stopper struct {
	conn       net.Conn
	termSentAt time.Time
}

type waitResult struct {
	status unix.WaitStatus
	err    error
}

// controlLoop is the shim's event loop for the lifetime of the container:
// it answers control-socket connections (only "stop" is recognized) and
// waits for the container process to exit, persisting the final state
// exactly once before returning.
func controlLoop(listener net.Listener, containerPid int, cfgPath string, cfg *state.Config, log *slog.Logger) error {
	accepted := make(chan net.Conn)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				close(accepted)
				return
			}
			accepted <- conn
		}
	}()

	exited := make(chan waitResult, 1)
	go func() {
		var ws unix.WaitStatus
		_, err := unix.Wait4(containerPid, &ws, 0, nil)
		exited <- waitResult{status: ws, err: err}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var st *stopper
	for {
		select {
		case conn, ok := <-accepted:
			if !ok {
				accepted = nil
				continue
			}
			handleControlConn(conn, containerPid, &st, log)

		case <-ticker.C:
			if st != nil && time.Since(st.termSentAt) > stopEscalation {
				log.Warn("stop escalating to SIGKILL", "pid", containerPid)
				unix.Kill(containerPid, unix.SIGKILL)
			}

		case res := <-exited:
			if res.err != nil {
				return fmt.Errorf("wait4 container: %w", res.err)
			}
			code := exitCodeFromStatus(res.status)
			cfg.ExitCode = &code
			cfg.State = state.StateExited
			cfg.FinishedAt = state.Now()
			if err := state.Save(cfgPath, cfg); err != nil {
				log.Error("persist exited config", "error", err)
			}
			log.Info("container exited", "pid", containerPid, "exitcode", code)
			if st != nil {
				st.conn.Write([]byte("OK\n"))
				st.conn.Close()
			}
			return nil
		}
	}
}

func handleControlConn(conn net.Conn, containerPid int, st **stopper, log *slog.Logger) {
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "stop" {
		conn.Close()
		return
	}
	if *st != nil {
		// A stop is already in flight; answer this duplicate once the
		// original completes by just holding the connection open is not
		// worth the complexity here, so treat it as a no-op ack target
		// and let the first stopper's OK go to the first caller only.
		conn.Close()
		return
	}
	if err := unix.Kill(containerPid, unix.SIGTERM); err != nil {
		log.Warn("sigterm failed", "pid", containerPid, "error", err)
	}
	*st = &stopper{conn: conn, termSentAt: time.Now()}
	log.Info("received stop, sent SIGTERM", "pid", containerPid)
}

func exitCodeFromStatus(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return -1
	default:
		return -1
	}
}
