// Package taskstore 提供基于通用键值存储的任务仓储实现
package taskstore

import (
	"context"
	"sort"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
)

// collectionTasks 任务注册表所在的键值集合名
const collectionTasks = "tasks"

// TaskRepository 任务仓储。每次变更整体覆盖写入（写穿透），
// 任务注册表规模有界，列表查询在内存中过滤排序。
type TaskRepository struct {
	kv repository.KVStore
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository 创建任务仓储
func NewTaskRepository(kv repository.KVStore) *TaskRepository {
	return &TaskRepository{kv: kv}
}

// Save 写入任务
func (r *TaskRepository) Save(ctx context.Context, task *entity.Task) error {
	return r.kv.Set(ctx, collectionTasks, task.ID, task)
}

// GetByID 根据 ID 获取任务，不存在返回 nil
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	found, err := r.kv.Get(ctx, collectionTasks, id, &task)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &task, nil
}

// Delete 删除任务
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	return r.kv.Remove(ctx, collectionTasks, id)
}

// List 获取任务列表，按创建时间倒序
func (r *TaskRepository) List(ctx context.Context, filter *repository.TaskFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Task], error) {
	keys, err := r.kv.Keys(ctx, collectionTasks)
	if err != nil {
		return nil, err
	}

	tasks := make([]*entity.Task, 0, len(keys))
	for _, key := range keys {
		var task entity.Task
		found, err := r.kv.Get(ctx, collectionTasks, key, &task)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if filter != nil && filter.Status != "" && task.Status != filter.Status {
			continue
		}
		tasks = append(tasks, &task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	total := int64(len(tasks))
	start := pagination.Offset()
	if start > len(tasks) {
		start = len(tasks)
	}
	end := start + pagination.Limit()
	if end > len(tasks) {
		end = len(tasks)
	}

	return repository.NewPagedResult(tasks[start:end], total, pagination), nil
}
