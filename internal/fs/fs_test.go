package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	fpath := filepath.Join(dir, "test.ann")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	require.NoError(t, f.Close())

	renamed := filepath.Join(dir, "renamed.ann")
	require.NoError(t, lfs.Rename(fpath, renamed))
	_, err = lfs.Stat(fpath)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, lfs.Remove(renamed))
	_, err = lfs.Stat(renamed)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.ann")

	n, err := WriteFileAtomic(nil, path, bytes.NewReader([]byte("forest")))
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "forest", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileAtomicFailures(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 1024)

	tests := []struct {
		name  string
		fault Fault
	}{
		{"Write", Fault{FailAfterBytes: 100}},
		{"Sync", Fault{FailAfterBytes: -1, FailOnSync: true}},
		{"Close", Fault{FailAfterBytes: -1, FailOnClose: true}},
		{"Rename", Fault{FailAfterBytes: -1, FailOnRename: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "index.ann")
			require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

			ffs := NewFaultyFS(nil)
			ffs.AddRule(".tmp", tt.fault)

			_, err := WriteFileAtomic(ffs, path, bytes.NewReader(payload))
			require.ErrorIs(t, err, ErrInjected)

			// Old content survives and the temporary file is gone.
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "previous", string(data))

			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFaultyFSGlobalLimit(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.SetLimit(10)

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "a"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, int64(8), ffs.Written())

	_, err = f.Write(make([]byte, 8))
	assert.ErrorIs(t, err, ErrInjected)

	ffs.SetLimit(-1)
	_, err = io.Copy(f, bytes.NewReader(make([]byte, 32)))
	assert.NoError(t, err)
}

func TestFaultyFSCustomError(t *testing.T) {
	custom := os.ErrPermission
	ffs := NewFaultyFS(nil)
	ffs.AddRule("blocked", Fault{FailAfterBytes: 0, Err: custom})

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "blocked.ann"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte{1})
	assert.ErrorIs(t, err, custom)
}
