package taskstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
)

// memKV 内存键值存储，走 JSON 序列化模拟真实存储的编解码往返
type memKV struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, collection, key string, v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[collection][key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (m *memKV) Set(_ context.Context, collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string][]byte)
	}
	m.data[collection][key] = raw
	return nil
}

func (m *memKV) Remove(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], key)
	return nil
}

func (m *memKV) Keys(_ context.Context, collection string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data[collection]))
	for k := range m.data[collection] {
		keys = append(keys, k)
	}
	return keys, nil
}

func newTask(topic string, status entity.TaskStatus, createdAt time.Time) *entity.Task {
	t := entity.NewTask(entity.GenerationRequest{Topic: topic})
	t.Status = status
	t.CreatedAt = createdAt
	return t
}

func TestSaveAndGetByID(t *testing.T) {
	repo := NewTaskRepository(newMemKV())

	task := entity.NewTask(entity.GenerationRequest{Topic: "量子计算"})
	require.NoError(t, repo.Save(t.Context(), task))

	got, err := repo.GetByID(t.Context(), task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "量子计算", got.Topic)
	assert.Equal(t, entity.TaskStatusCreated, got.Status)
}

func TestGetByID_Missing(t *testing.T) {
	repo := NewTaskRepository(newMemKV())
	got, err := repo.GetByID(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSave_Overwrites(t *testing.T) {
	repo := NewTaskRepository(newMemKV())

	task := entity.NewTask(entity.GenerationRequest{Topic: "主题"})
	require.NoError(t, repo.Save(t.Context(), task))

	task.Start()
	require.NoError(t, repo.Save(t.Context(), task))

	got, err := repo.GetByID(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestDelete(t *testing.T) {
	repo := NewTaskRepository(newMemKV())

	task := entity.NewTask(entity.GenerationRequest{Topic: "主题"})
	require.NoError(t, repo.Save(t.Context(), task))
	require.NoError(t, repo.Delete(t.Context(), task.ID))

	got, err := repo.GetByID(t.Context(), task.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 删除不存在的键视为成功
	assert.NoError(t, repo.Delete(t.Context(), task.ID))
}

func TestList_FilterSortPaginate(t *testing.T) {
	repo := NewTaskRepository(newMemKV())
	base := time.Now()

	var completedIDs []string
	for i := 0; i < 3; i++ {
		task := newTask("完成任务", entity.TaskStatusCompleted, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Save(t.Context(), task))
		completedIDs = append(completedIDs, task.ID)
	}
	failed := newTask("失败任务", entity.TaskStatusFailed, base.Add(time.Hour))
	require.NoError(t, repo.Save(t.Context(), failed))

	// 无过滤：按创建时间倒序
	all, err := repo.List(t.Context(), nil, repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Equal(t, failed.ID, all.Items[0].ID)

	// 状态过滤
	completed, err := repo.List(t.Context(), &repository.TaskFilter{Status: entity.TaskStatusCompleted}, repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(3), completed.Total)
	// 最新的完成任务排在最前
	assert.Equal(t, completedIDs[2], completed.Items[0].ID)

	// 分页
	page2, err := repo.List(t.Context(), &repository.TaskFilter{Status: entity.TaskStatusCompleted}, repository.NewPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page2.Total)
	assert.Len(t, page2.Items, 1)
	assert.Equal(t, 2, page2.TotalPages)
}

func TestList_Empty(t *testing.T) {
	repo := NewTaskRepository(newMemKV())
	result, err := repo.List(t.Context(), nil, repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)
	assert.Empty(t, result.Items)
}
