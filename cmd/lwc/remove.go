//go:build linux

package main

import (
	"fmt"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/teardown"
)

func runRemove(l layout.Layout, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lwc remove <container>")
	}
	return teardown.Remove(l, args[0])
}
