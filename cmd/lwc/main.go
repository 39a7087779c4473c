//go:build linux

// Command lwc is a minimal Linux container runtime: create, start, exec,
// stop, remove and cp, plus a handful of hidden re-exec-only subcommands
// that implement namespace setup (see internal/reexec).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/reexec"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	l := layout.New()
	verb := os.Args[1]
	args := os.Args[2:]

	var err error
	switch verb {
	case reexec.ShimCmd:
		err = runShim(l, args, log)
	case reexec.InitCmd:
		err = runInit(l, args)
	case reexec.ExecJoinCmd:
		err = runExecJoin(l, args)
	case "create":
		err = runCreate(l, args, log)
	case "start":
		err = runStart(l, args, log)
	case "exec":
		err = runExec(l, args, log)
	case "stop":
		err = runStop(l, args)
	case "remove":
		err = runRemove(l, args)
	case "cp":
		err = runCp(l, args)
	default:
		if reexec.IsHidden(verb) {
			// A hidden subcommand name that isn't in the switch above means
			// internal/reexec and this dispatch table have drifted apart.
			fmt.Fprintf(os.Stderr, "lwc: unhandled internal subcommand %q\n", verb)
			os.Exit(1)
		}
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "lwc: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: lwc <command> [args...]

commands:
  create <image> <container> [-v name:/path]... [-c cpuset]
  start  <container> <command> [args...]
  exec   [-d] [-e K=V]... <container> <command> [args...]
  stop   <container>
  remove <container>
  cp     <src> <dest>   (exactly one of src/dest is "<container>:<path>")`)
}
