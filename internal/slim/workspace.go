package slim

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/cruxslim/internal/paths"
)

// Run-scoped directory holding intermediate files.
//
//	<dir>/slim.tar         target container filesystem after reduction
//	<dir>/base.tar         base image filesystem
//	<dir>/guest.log        guest output
//	<dir>/build/rootfs.tar delta archive
//	<dir>/build/Dockerfile slimmed recipe
type workspace struct {
	dir string
}

// Creates the workspace for a run under parent.
func newWorkspace(parent, id string) (*workspace, error) {
	ws := &workspace{dir: filepath.Join(parent, id)}
	if err := os.MkdirAll(ws.build(), paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	return ws, nil
}

func (ws *workspace) slim() string     { return filepath.Join(ws.dir, "slim.tar") }
func (ws *workspace) base() string     { return filepath.Join(ws.dir, "base.tar") }
func (ws *workspace) guestLog() string { return filepath.Join(ws.dir, "guest.log") }
func (ws *workspace) build() string    { return filepath.Join(ws.dir, "build") }
func (ws *workspace) delta() string    { return filepath.Join(ws.build(), DeltaArchive) }
func (ws *workspace) recipe() string   { return filepath.Join(ws.build(), "Dockerfile") }

// Removes the workspace and everything in it.
func (ws *workspace) remove() {
	if err := os.RemoveAll(ws.dir); err != nil {
		slog.Warn("failed to remove workspace", "dir", ws.dir, "error", err)
	}
}

// Returns the size of a file in bytes, or 0 when it cannot be read.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
