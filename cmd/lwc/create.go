//go:build linux

package main

import (
	"flag"
	"fmt"
	"log/slog"

	"github.com/shadmanzero/lwc/internal/image"
	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/rootfs"
	"github.com/shadmanzero/lwc/internal/state"
)

type stringSlice []string

func (s *stringSlice) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runCreate(l layout.Layout, args []string, log *slog.Logger) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var volumes stringSlice
	fs.Var(&volumes, "v", "volume spec <name>:<container-path>, repeatable")
	cpuset := fs.String("c", "", "cpuset to persist for this container")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: lwc create <image> <container> [-v name:/path]... [-c cpuset]")
	}
	imageName, containerName := rest[0], rest[1]

	resolved, err := image.Resolve(l, imageName, log)
	if err != nil {
		return fmt.Errorf("resolve image %s: %w", imageName, err)
	}

	var volSpecs []rootfs.VolumeSpec
	for _, v := range volumes {
		spec, err := rootfs.ParseVolumeSpec(v)
		if err != nil {
			return err
		}
		volSpecs = append(volSpecs, spec)
	}

	if err := rootfs.Assemble(l, containerName, resolved.LayerDirs, volSpecs); err != nil {
		return fmt.Errorf("assemble rootfs: %w", err)
	}

	cfg := &state.Config{
		State:     state.StateCreated,
		Env:       resolved.Config.Config.Env,
		Cpuset:    *cpuset,
		Volumes:   []string(volumes),
		CreatedAt: state.Now(),
	}
	if err := state.Save(l.ConfigPath(containerName), cfg); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}

	log.Info("container created", "container", containerName, "image", imageName)
	return nil
}
