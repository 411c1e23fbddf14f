package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlock(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "test.lock"))

	if err := lock.Lock(); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
}

func TestLockRunDirExclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := LockRunDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, RunLockName), first.Path())

	_, err = LockRunDir(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, first.Unlock())

	again, err := LockRunDir(dir)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestLockRunDirMissingDir(t *testing.T) {
	_, err := LockRunDir(filepath.Join(t.TempDir(), "does", "not", "exist"))
	assert.Error(t, err)
}

func TestAtomicWriteCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "nested", "combined_logs.yaml")

	require.NoError(t, AtomicWrite(path, []byte("samples: []\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "samples: []\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.html")

	require.NoError(t, AtomicWrite(path, []byte("one")))
	require.NoError(t, AtomicWrite(path, []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "artifact.html", entries[0].Name())

	data, _ := os.ReadFile(path)
	assert.Equal(t, "two", string(data))
}

func TestLockAndWriteConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counter.txt")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0644))

	const writers = 5
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if err := LockAndWrite(path, []byte(strconv.Itoa(i))); err != nil {
				t.Errorf("LockAndWrite: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	n, err := strconv.Atoi(string(data))
	require.NoError(t, err, "file must hold one complete write")
	assert.True(t, n >= 0 && n < writers)
}
