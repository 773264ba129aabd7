package crawler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/star-history-crawler/pkg/log"
)

func newTestStore(t *testing.T) *CheckpointStore {
	t.Helper()
	logger, _ := log.NewCslLogger()
	store, err := NewCheckpointStore(logger, t.TempDir())
	require.NoError(t, err)
	return store
}

func writeCheckpointFile(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func readCheckpointFile(t *testing.T, dir, file string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, file))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestCheckpointLoadFreshRun(t *testing.T) {
	store := newTestStore(t)

	queue, err := store.Load([]string{"a/one", "b/two", "c/three"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, queue)
	assert.Equal(t, 3, store.Remaining())
}

func TestCheckpointLoadResumesRemaining(t *testing.T) {
	store := newTestStore(t)
	writeCheckpointFile(t, store.Dir, remainingFile, "a/one\nb/two\n")
	writeCheckpointFile(t, store.Dir, completedFile, "c/three\n")

	queue, err := store.Load([]string{"a/one", "b/two", "c/three", "d/four"})
	require.NoError(t, err)

	// Repo đã completed không vào hàng đợi, repo mới xếp sau cùng
	assert.Equal(t, []string{"a/one", "b/two", "d/four"}, queue)
}

func TestCheckpointLoadRequeuesFailed(t *testing.T) {
	store := newTestStore(t)
	writeCheckpointFile(t, store.Dir, remainingFile, "a/one\n")
	writeCheckpointFile(t, store.Dir, failedFile, "b/two\n")

	queue, err := store.Load([]string{"a/one", "b/two"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one", "b/two"}, queue)

	// Log failed được xóa ngay khi nội dung đã vào lại hàng đợi
	assert.Empty(t, readCheckpointFile(t, store.Dir, failedFile))
}

func TestCheckpointLoadCorruptedLine(t *testing.T) {
	store := newTestStore(t)
	writeCheckpointFile(t, store.Dir, remainingFile, "a/one\nnot-a-full-name\n")

	_, err := store.Load(nil)
	require.Error(t, err)

	var corruption *CorruptionError
	require.True(t, errors.As(err, &corruption))
	assert.Equal(t, remainingFile, corruption.File)
	assert.Equal(t, 2, corruption.Line)
	assert.Equal(t, "not-a-full-name", corruption.Content)
}

func TestCheckpointMarkCompleted(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load([]string{"a/one", "b/two"})
	require.NoError(t, err)

	require.NoError(t, store.MarkCompleted("a/one"))
	assert.Equal(t, 1, store.Remaining())
	assert.Contains(t, readCheckpointFile(t, store.Dir, completedFile), "a/one")
	assert.NotContains(t, readCheckpointFile(t, store.Dir, remainingFile), "a/one")
}

func TestCheckpointMarkFailed(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load([]string{"a/one"})
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed("a/one"))
	assert.Equal(t, 0, store.Remaining())
	assert.Contains(t, readCheckpointFile(t, store.Dir, failedFile), "a/one")
}

func TestCheckpointMarkSkipped(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load([]string{"a/one", "b/two"})
	require.NoError(t, err)

	require.NoError(t, store.MarkSkipped("a/one"))
	assert.Equal(t, 1, store.Remaining())

	// Không xuất hiện ở completed lẫn failed
	assert.NotContains(t, readCheckpointFile(t, store.Dir, completedFile), "a/one")
	assert.NotContains(t, readCheckpointFile(t, store.Dir, failedFile), "a/one")
}

func TestCheckpointRemainingFileDeletedWhenEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load([]string{"a/one"})
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted("a/one"))

	_, statErr := os.Stat(filepath.Join(store.Dir, remainingFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckpointInterruptedRunResumes(t *testing.T) {
	dir := t.TempDir()
	logger, _ := log.NewCslLogger()

	names := []string{"a/one", "b/two", "c/three"}

	// Run thứ nhất xử lý được một repo rồi dừng
	first, err := NewCheckpointStore(logger, dir)
	require.NoError(t, err)
	_, err = first.Load(names)
	require.NoError(t, err)
	require.NoError(t, first.MarkCompleted("a/one"))
	require.NoError(t, first.Flush())

	// Run thứ hai tiếp tục từ chỗ dừng, không lặp lại repo đã xong
	second, err := NewCheckpointStore(logger, dir)
	require.NoError(t, err)
	queue, err := second.Load(names)
	require.NoError(t, err)
	assert.Equal(t, []string{"b/two", "c/three"}, queue)
}

func TestCheckpointAllCompletedYieldsEmptyQueue(t *testing.T) {
	dir := t.TempDir()
	logger, _ := log.NewCslLogger()

	names := []string{"a/one", "b/two"}

	first, err := NewCheckpointStore(logger, dir)
	require.NoError(t, err)
	_, err = first.Load(names)
	require.NoError(t, err)
	require.NoError(t, first.MarkCompleted("a/one"))
	require.NoError(t, first.MarkCompleted("b/two"))
	require.NoError(t, first.Flush())

	second, err := NewCheckpointStore(logger, dir)
	require.NoError(t, err)
	queue, err := second.Load(names)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestCheckpointReset(t *testing.T) {
	store := newTestStore(t)
	writeCheckpointFile(t, store.Dir, remainingFile, "a/one\n")
	writeCheckpointFile(t, store.Dir, completedFile, "b/two\n")
	writeCheckpointFile(t, store.Dir, failedFile, "c/three\n")

	require.NoError(t, store.Reset())

	for _, file := range []string{remainingFile, completedFile, failedFile} {
		_, err := os.Stat(filepath.Join(store.Dir, file))
		assert.True(t, os.IsNotExist(err))
	}
}
