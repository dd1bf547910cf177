package memfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryFSWriteReadRoundTrip(t *testing.T) {
	fs := NewMemory()
	ctx := context.Background()

	require.NoError(t, fs.MkdirAll(ctx, "/repo", 0o755))
	require.NoError(t, fs.WriteFile(ctx, "/repo/file.txt", []byte("hello"), 0o644))

	data, err := fs.ReadFile(ctx, "/repo/file.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	entries, err := fs.ReadDir(ctx, "/repo")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, fs.Remove(ctx, "/repo/file.txt"))
	_, err = fs.Stat(ctx, "/repo/file.txt")
	require.Error(t, err)
}
