package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "deepwrite-ai-api/pkg/errors"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.Save(t.Context(), "# 正文内容", "量子计算入门", "量子计算", "article")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "量子计算入门", entry.Title)
	assert.Equal(t, "量子计算", entry.QueryFolder)

	content, err := store.Load(t.Context(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "# 正文内容", content)

	// 文档以 markdown 文件落盘在查询子目录下
	_, err = os.Stat(filepath.Join(store.dataDir, entry.FilePath))
	assert.NoError(t, err)
}

func TestLoad_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(t.Context(), "missing-id")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeHistoryNotFound, appErr.Code)
}

func TestIndex_NewestFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Save(t.Context(), "第一篇", "标题一", "查询", "article")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := store.Save(t.Context(), "第二篇", "标题二", "查询", "article")
	require.NoError(t, err)

	entries, err := store.Index(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestIndex_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	entries, err := store.Index(t.Context())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClear(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.Save(t.Context(), "内容", "标题", "查询", "article")
	require.NoError(t, err)

	require.NoError(t, store.Clear(t.Context()))

	entries, err := store.Index(t.Context())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.Load(t.Context(), entry.ID)
	assert.Error(t, err)

	// 清空后目录仍然可写
	_, err = store.Save(t.Context(), "新内容", "新标题", "查询", "article")
	assert.NoError(t, err)
}

func TestSanitizeFolderName(t *testing.T) {
	assert.Equal(t, "量子计算", sanitizeFolderName("量子计算"))
	assert.Equal(t, "what-is-ai", sanitizeFolderName("what is ai?"))
	assert.Equal(t, "untitled", sanitizeFolderName("  ///  "))

	long := sanitizeFolderName(repeatRune('学', 80))
	assert.Len(t, []rune(long), 50)
}

func repeatRune(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
