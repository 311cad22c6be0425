// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tempdir manages ephemeral workspace directories for batch
// materialization: scoped creation with guaranteed cleanup, a process-wide
// registry swept at shutdown, and startup reclamation of orphans left by
// crashed runs. Cleanup on SIGKILL is a known gap; the startup sweep is
// the safety net for it.
package tempdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mdscan/internal/logging"
	"github.com/pdiddy/mdscan/pkg/types"
)

// Prefix marks workspace directories so the startup sweep can find them.
const Prefix = "_temp_"

// now is swapped out by tests.
var now = time.Now

// Manager owns workspace allocation and the registry of live workspaces.
// One Manager is built at the composition root and shared; its Shutdown
// method is called deterministically at process exit.
type Manager struct {
	baseDir string

	mu   sync.Mutex
	live map[string]struct{}
}

// NewManager builds a manager that allocates workspaces under cfg.BaseDir.
func NewManager(cfg types.WorkspaceConfig) *Manager {
	base := cfg.BaseDir
	if base == "" {
		base = "."
	}
	return &Manager{
		baseDir: base,
		live:    make(map[string]struct{}),
	}
}

// Workspace is one batch's exclusively-owned scratch directory.
type Workspace struct {
	path string
	mgr  *Manager
	keep bool
}

// Path returns the workspace directory.
func (w *Workspace) Path() string { return w.path }

// Keep opts out of cleanup; the directory survives Cleanup and Shutdown.
func (w *Workspace) Keep() {
	w.keep = true
	w.mgr.unregister(w.path)
}

// Cleanup removes the workspace recursively and deregisters it. Safe to
// call multiple times and from a defer on every exit path.
func (w *Workspace) Cleanup() {
	if w.keep {
		return
	}
	w.mgr.remove(w.path)
	w.mgr.unregister(w.path)
}

// Create allocates a uniquely-named workspace directory. The name embeds
// the identifier and a timestamp so concurrent batches never collide.
func (m *Manager) Create(identifier string) (*Workspace, error) {
	name := fmt.Sprintf("%s%s_%d", Prefix, identifier, now().UnixNano())
	if identifier == "" {
		name = fmt.Sprintf("%s%d", Prefix, now().UnixNano())
	}
	path := filepath.Join(m.baseDir, name)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace %s: %w", path, err)
	}

	m.mu.Lock()
	m.live[path] = struct{}{}
	m.mu.Unlock()

	logging.Debug("created workspace", zap.String("path", path))
	return &Workspace{path: path, mgr: m}, nil
}

// Shutdown removes every still-registered workspace. It covers workspaces
// whose owning call frame never ran its cleanup.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	paths := make([]string, 0, len(m.live))
	for p := range m.live {
		paths = append(paths, p)
	}
	m.live = make(map[string]struct{})
	m.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	logging.Info("removing leftover workspaces", zap.Int("count", len(paths)))
	for _, p := range paths {
		m.remove(p)
	}
}

// SweepOld removes orphaned workspace directories under the base dir older
// than maxAge. Called once at process startup; returns the removal count.
func (m *Manager) SweepOld(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return 0, fmt.Errorf("scanning %s for stale workspaces: %w", m.baseDir, err)
	}

	cutoff := now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logging.Warn("failed to remove stale workspace",
				zap.String("path", path), zap.Error(err))
			continue
		}
		logging.Info("removed stale workspace",
			zap.String("path", path),
			zap.Duration("age", now().Sub(info.ModTime())),
		)
		removed++
	}
	return removed, nil
}

func (m *Manager) remove(path string) {
	if err := os.RemoveAll(path); err != nil {
		logging.Warn("failed to remove workspace",
			zap.String("path", path), zap.Error(err))
		return
	}
	logging.Debug("removed workspace", zap.String("path", path))
}

func (m *Manager) unregister(path string) {
	m.mu.Lock()
	delete(m.live, path)
	m.mu.Unlock()
}
