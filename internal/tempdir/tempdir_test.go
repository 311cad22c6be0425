// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tempdir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mdscan/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	base := t.TempDir()
	return NewManager(types.WorkspaceConfig{BaseDir: base}), base
}

func TestCreateAndCleanup(t *testing.T) {
	m, base := newTestManager(t)

	ws, err := m.Create("converter")
	require.NoError(t, err)

	assert.DirExists(t, ws.Path())
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Path()), Prefix+"converter_"))
	assert.Equal(t, base, filepath.Dir(ws.Path()))

	// Contents are removed along with the directory.
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path(), "scratch.md"), []byte("x"), 0o644))

	ws.Cleanup()
	assert.NoDirExists(t, ws.Path())

	// Second cleanup is a no-op.
	ws.Cleanup()
}

func TestCreate_UniqueNames(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Create("batch")
	require.NoError(t, err)
	b, err := m.Create("batch")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestKeep_SkipsCleanup(t *testing.T) {
	m, _ := newTestManager(t)

	ws, err := m.Create("debug")
	require.NoError(t, err)
	ws.Keep()

	ws.Cleanup()
	assert.DirExists(t, ws.Path())

	m.Shutdown()
	assert.DirExists(t, ws.Path())
}

func TestShutdown_RemovesLiveWorkspaces(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Create("one")
	require.NoError(t, err)
	b, err := m.Create("two")
	require.NoError(t, err)

	// Neither owner ran Cleanup; shutdown covers both.
	m.Shutdown()

	assert.NoDirExists(t, a.Path())
	assert.NoDirExists(t, b.Path())
}

func TestSweepOld(t *testing.T) {
	m, base := newTestManager(t)

	stale := filepath.Join(base, Prefix+"crashed_1700000000")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(base, Prefix+"recent_1700000001")
	require.NoError(t, os.MkdirAll(fresh, 0o755))

	unrelated := filepath.Join(base, "keep-me")
	require.NoError(t, os.MkdirAll(unrelated, 0o755))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	removed, err := m.SweepOld(24 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.DirExists(t, unrelated)
}

func TestSweepOld_MissingBase(t *testing.T) {
	m := NewManager(types.WorkspaceConfig{BaseDir: filepath.Join(t.TempDir(), "nope")})
	_, err := m.SweepOld(time.Hour)
	assert.Error(t, err)
}
