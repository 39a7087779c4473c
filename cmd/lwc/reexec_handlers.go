//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/shadmanzero/lwc/internal/execattach"
	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/shim"
)

// splitCommand splits args of the form "<container> -- <command...>" into
// the container name and the trailing command, the convention every
// re-exec subcommand here uses to pass a variadic command through argv.
func splitCommand(args []string) (container string, command []string, err error) {
	for i, a := range args {
		if a == "--" {
			return args[0], args[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("missing \"--\" command separator in %v", args)
}

func runShim(l layout.Layout, args []string, log *slog.Logger) error {
	containerName, command, err := splitCommand(args)
	if err != nil {
		return err
	}
	readyToCaller := os.NewFile(3, "ready-to-caller")
	return shim.Run(l, containerName, command, log, readyToCaller)
}

func runInit(l layout.Layout, args []string) error {
	containerName, command, err := splitCommand(args)
	if err != nil {
		return err
	}
	return shim.RunInit(l, containerName, command)
}

func runExecJoin(l layout.Layout, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: __execjoin <container> <hostpid> <detach> -- <command...>")
	}
	containerName := args[0]
	hostPid, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad hostpid %q: %w", args[1], err)
	}
	detach := args[2] == "1"

	_, command, err := splitCommand(args[2:])
	if err != nil {
		return err
	}
	return execattach.RunJoin(l, containerName, hostPid, detach, command)
}
