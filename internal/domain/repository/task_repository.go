// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"deepwrite-ai-api/internal/domain/entity"
)

// TaskFilter 任务过滤条件
type TaskFilter struct {
	Status entity.TaskStatus
}

// TaskRepository 生成任务仓储接口
type TaskRepository interface {
	// Save 写入任务（创建或整体覆盖，写穿透）
	Save(ctx context.Context, task *entity.Task) error

	// GetByID 根据 ID 获取任务，不存在返回 nil
	GetByID(ctx context.Context, id string) (*entity.Task, error)

	// Delete 删除任务。删除仅由调用方显式触发。
	Delete(ctx context.Context, id string) error

	// List 获取任务列表，按创建时间倒序
	List(ctx context.Context, filter *TaskFilter, pagination Pagination) (*PagedResult[*entity.Task], error)
}
