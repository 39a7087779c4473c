//go:build linux

package execattach

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shadmanzero/lwc/internal/layout"
	"github.com/shadmanzero/lwc/internal/state"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunRejectsNonRunningContainer(t *testing.T) {
	l := layout.Layout{Base: t.TempDir()}
	require.NoError(t, state.Save(l.ConfigPath("web"), &state.Config{State: state.StateCreated}))

	err := Run(l, "web", []string{"sh"}, nil, false, discardLogger())
	require.Error(t, err)
}

func TestRunRejectsEmptyCommand(t *testing.T) {
	l := layout.Layout{Base: t.TempDir()}
	require.NoError(t, state.Save(l.ConfigPath("web"), &state.Config{State: state.StateRunning, Pid: 1}))

	err := Run(l, "web", nil, nil, false, discardLogger())
	require.Error(t, err)
}
