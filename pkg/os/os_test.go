package os

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "bridge.lock")

	a, err := NewFileLock(path)
	require.NoError(t, err)
	assert.Equal(t, path, a.Path())
	require.NoError(t, a.TryLock())
	_, err = os.Stat(path)
	assert.NoError(t, err)

	b, err := NewFileLock(path)
	require.NoError(t, err)
	assert.ErrorIs(t, b.TryLock(), ErrLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.TryLock())
	require.NoError(t, b.Unlock())
}
