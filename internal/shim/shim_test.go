//go:build linux

package shim

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shadmanzero/lwc/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestChild(t *testing.T, args ...string) int {
	t.Helper()
	cmd := exec.Command("/bin/sh", args...)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { cmd.Process.Kill() })
	return cmd.Process.Pid
}

func TestControlLoopPersistsExitCode(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "shim.sock")
	listener, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer listener.Close()

	cfgPath := filepath.Join(dir, "config.json")
	cfg := &state.Config{State: state.StateRunning}
	require.NoError(t, state.Save(cfgPath, cfg))

	pid := startTestChild(t, "-c", "exit 7")

	err = controlLoop(listener, pid, cfgPath, cfg, discardLogger())
	require.NoError(t, err)

	loaded, err := state.Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, state.StateExited, loaded.State)
	require.NotNil(t, loaded.ExitCode)
	require.Equal(t, 7, *loaded.ExitCode)
}

func TestControlLoopAnswersStop(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "shim.sock")
	listener, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	defer listener.Close()

	cfgPath := filepath.Join(dir, "config.json")
	cfg := &state.Config{State: state.StateRunning}
	require.NoError(t, state.Save(cfgPath, cfg))

	pid := startTestChild(t, "-c", "trap 'exit 0' TERM; sleep 30 & wait")

	done := make(chan error, 1)
	go func() { done <- controlLoop(listener, pid, cfgPath, cfg, discardLogger()) }()

	time.Sleep(100 * time.Millisecond)
	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	_, err = conn.Write([]byte("stop\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "OK\n", line)
	conn.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("control loop did not return after stop")
	}
}
