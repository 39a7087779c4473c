//go:build linux

package main

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/shadmanzero/lwc/internal/execattach"
	"github.com/shadmanzero/lwc/internal/layout"
)

func runExec(l layout.Layout, args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	detach := fs.Bool("d", false, "run detached")
	var envs stringSlice
	fs.Var(&envs, "e", "additional env var K=V, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: lwc exec [-d] [-e K=V]... <container> <command> [args...]")
	}
	containerName, command := rest[0], rest[1:]
	return execattach.Run(l, containerName, command, []string(envs), *detach, log)
}
