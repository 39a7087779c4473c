//go:build linux

package main

import (
	"fmt"

	"github.com/shadmanzero/lwc/internal/cp"
	"github.com/shadmanzero/lwc/internal/layout"
)

func runCp(l layout.Layout, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: lwc cp <src> <dest>")
	}
	src := cp.ParseSpec(args[0])
	dest := cp.ParseSpec(args[1])
	return cp.Copy(l, src, dest)
}
