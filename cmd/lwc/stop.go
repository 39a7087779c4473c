//go:build linux

package main

import (
	"bufio"
	"fmt"
	"net"
	"strings"

	"github.com/shadmanzero/lwc/internal/layout"
)

func runStop(l layout.Layout, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lwc stop <container>")
	}
	containerName := args[0]

	conn, err := net.Dial("unix", l.SockPath(containerName))
	if err != nil {
		return fmt.Errorf("connect to shim: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("stop\n")); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read shim response: %w", err)
	}
	if strings.TrimSpace(line) != "OK" {
		return fmt.Errorf("stop sent, but no OK received: %q", line)
	}
	return nil
}
