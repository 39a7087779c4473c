// Package testutil holds small skip helpers shared by package tests that
// need real mounts or namespaces and so can only run as root on Linux.
package testutil

import (
	"os"
	"runtime"
	"testing"
)

// RequireRoot skips the test unless running as root, since mount/pivot_root
// and namespace syscalls require CAP_SYS_ADMIN.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
}

// RequireLinux skips the test on non-Linux platforms.
func RequireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("requires linux")
	}
}
