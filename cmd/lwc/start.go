//go:build linux

package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/reexec"
	"github.com/shadmanzero/lwc/internal/state"
)

// runStart is the CLI-facing "start" entrypoint. It re-execs itself as
// reexec.ShimCmd, detached via Setsid, and blocks until that shim process
// reports the container is up (or has failed to start).
func runStart(l layout.Layout, args []string, log *slog.Logger) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lwc start <container> <command> [args...]")
	}
	containerName, command := args[0], args[1:]

	cfgPath := l.ConfigPath(containerName)
	cfg, err := state.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Running() {
		return fmt.Errorf("container %s is already running", containerName)
	}

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create readiness pipe: %w", err)
	}

	shimArgs := append([]string{containerName, "--"}, command...)
	shimCmd := reexec.Command(reexec.ShimCmd, shimArgs...)
	shimCmd.ExtraFiles = []*os.File{readyW}
	shimCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := shimCmd.Start(); err != nil {
		readyW.Close()
		readyR.Close()
		return fmt.Errorf("start shim: %w", err)
	}
	readyW.Close()

	line, err := bufio.NewReader(readyR).ReadString('\n')
	readyR.Close()
	if err != nil || strings.TrimSpace(line) != "READY" {
		return fmt.Errorf("container failed to start")
	}

	log.Info("container started", "container", containerName)
	return nil
}
