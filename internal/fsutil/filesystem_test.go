package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem(t *testing.T) {
	m := NewMemoryFileSystem()

	t.Run("write and read", func(t *testing.T) {
		require.NoError(t, m.WriteFile("/a/b/file.txt", []byte("hello"), 0644))

		data, err := m.ReadFile("/a/b/file.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)

		// Parents materialize as directories.
		st, err := m.Stat("/a/b")
		require.NoError(t, err)
		assert.True(t, st.IsDir())
	})

	t.Run("open reads sequentially", func(t *testing.T) {
		require.NoError(t, m.WriteFile("/seq.bin", []byte("0123456789"), 0644))
		f, err := m.Open("/seq.bin")
		require.NoError(t, err)
		defer f.Close()

		buf := make([]byte, 4)
		_, err = io.ReadFull(f, buf)
		require.NoError(t, err)
		assert.Equal(t, "0123", string(buf))

		rest, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "456789", string(rest))
	})

	t.Run("stat file", func(t *testing.T) {
		st, err := m.Stat("/a/b/file.txt")
		require.NoError(t, err)
		assert.Equal(t, "file.txt", st.Name())
		assert.Equal(t, int64(5), st.Size())
		assert.False(t, st.IsDir())
	})

	t.Run("missing paths", func(t *testing.T) {
		_, err := m.ReadFile("/nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)
		_, err = m.Stat("/nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)
		_, err = m.Open("/nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.False(t, m.Exists("/nope"))
	})

	t.Run("readdir", func(t *testing.T) {
		require.NoError(t, m.WriteFile("/dir/z.las", []byte("z"), 0644))
		require.NoError(t, m.WriteFile("/dir/a.las", []byte("a"), 0644))
		require.NoError(t, m.MkdirAll("/dir/sub", 0755))

		entries, err := m.ReadDir("/dir")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "a.las", entries[0].Name())
		assert.Equal(t, "sub", entries[1].Name())
		assert.True(t, entries[1].IsDir())
		assert.Equal(t, "z.las", entries[2].Name())

		_, err = m.ReadDir("/dir/z.las")
		assert.Error(t, err, "files are not listable")
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, m.WriteFile("/rm/file", []byte("x"), 0644))
		require.NoError(t, m.Remove("/rm/file"))
		assert.False(t, m.Exists("/rm/file"))
		assert.Error(t, m.Remove("/rm/file"))
	})

	t.Run("removeall", func(t *testing.T) {
		require.NoError(t, m.WriteFile("/tree/x/1", []byte("1"), 0644))
		require.NoError(t, m.WriteFile("/tree/x/2", []byte("2"), 0644))
		require.NoError(t, m.RemoveAll("/tree"))
		assert.False(t, m.Exists("/tree"))
		assert.False(t, m.Exists("/tree/x/1"))
	})
}

func TestOSFileSystem(t *testing.T) {
	osfs := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.txt")

	require.NoError(t, osfs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, osfs.WriteFile(path, []byte("content"), 0644))
	assert.True(t, osfs.Exists(path))

	data, err := osfs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	entries, err := osfs.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file.txt", entries[0].Name())

	st, err := osfs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Size())

	require.NoError(t, osfs.Remove(path))
	assert.False(t, osfs.Exists(path))
	_, err = osfs.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
