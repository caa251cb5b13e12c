// Package task 提供任务生命周期管理
package task

import (
	"context"
	"strings"
	"sync"

	"deepwrite-ai-api/internal/application/generation"
	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/infrastructure/llm"
	apperrors "deepwrite-ai-api/pkg/errors"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"
)

// Manager 任务注册表。显式构造、依赖注入，不是进程级单例。
// 每次变更写穿到底层存储。
type Manager struct {
	repo   repository.TaskRepository
	client llm.Client
	orch   *generation.Orchestrator

	// mu 序列化 load-modify-save，并发阶段的进度上报会同时写同一任务
	mu sync.Mutex
}

// NewManager 创建任务管理器
func NewManager(repo repository.TaskRepository, client llm.Client, orch *generation.Orchestrator) *Manager {
	return &Manager{
		repo:   repo,
		client: client,
		orch:   orch,
	}
}

// CreateTask 创建一个待执行任务
func (m *Manager) CreateTask(ctx context.Context, req entity.GenerationRequest) (*entity.Task, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("topic is required")
	}

	t := entity.NewTask(req)
	if err := m.repo.Save(ctx, t); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "failed to save task")
	}
	logger.Info(ctx, "task created", "task_id", t.ID, "topic", t.Topic)
	return t, nil
}

// Run 创建并立即执行一个任务
func (m *Manager) Run(ctx context.Context, req entity.GenerationRequest) (*entity.GeneratedContent, error) {
	t, err := m.CreateTask(ctx, req)
	if err != nil {
		return nil, err
	}
	return m.RunTask(ctx, t.ID)
}

// RunTask 执行一个已创建的任务。
// created -> running -> completed/failed，终态任务不可再次执行。
// 运行期产生的审计记录 id 在 defer 中统一回写，失败路径也不遗漏。
func (m *Manager) RunTask(ctx context.Context, taskID string) (*entity.GeneratedContent, error) {
	t, err := m.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != entity.TaskStatusCreated {
		return nil, apperrors.ErrTaskNotRunnable.WithDetail("status is " + string(t.Status))
	}

	if _, err := m.UpdateTask(ctx, taskID, func(t *entity.Task) {
		t.Start()
	}); err != nil {
		return nil, err
	}

	ctx = logger.WithContext(ctx, logger.TaskIDKey, taskID)
	rc := generation.NewRunContext(taskID, m.client, nil, func(ctx context.Context, step entity.ProgressStep) {
		if perr := m.UpdateTaskProgress(ctx, taskID, step); perr != nil {
			logger.Warn(ctx, "failed to persist task progress", "error", perr.Error())
		}
	})

	var content *entity.GeneratedContent
	var runErr error

	// 终态与审计关联在 defer 中落盘，异常路径也不会遗漏
	defer func() {
		finalized, ferr := m.UpdateTask(ctx, taskID, func(t *entity.Task) {
			for _, id := range rc.RecordIDs() {
				t.AttachPromptRecord(id)
			}
			if runErr != nil {
				t.Fail(runErr.Error())
			} else {
				t.Complete(content)
			}
		})
		if ferr != nil {
			logger.Error(ctx, "failed to finalize task", ferr)
			return
		}

		metrics.TaskTotal.WithLabelValues(string(finalized.Status)).Inc()
		metrics.TaskDuration.WithLabelValues(string(finalized.Status)).Observe(finalized.Duration().Seconds())

		if runErr != nil {
			logger.Error(ctx, "task failed", runErr, "topic", t.Topic)
		} else {
			logger.Info(ctx, "task completed", "topic", t.Topic, "duration", finalized.Duration().String())
		}
	}()

	content, runErr = m.orch.Run(ctx, rc, t.Request)
	if runErr != nil {
		return nil, runErr
	}
	return content, nil
}

// GetTask 按 id 获取任务
func (m *Manager) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	t, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "failed to load task")
	}
	if t == nil {
		return nil, apperrors.ErrTaskNotFound.WithDetail(id)
	}
	return t, nil
}

// UpdateTask 在锁内加载、变更并写回任务。
// 未知 id 返回 not-found 错误。
func (m *Manager) UpdateTask(ctx context.Context, id string, mutate func(t *entity.Task)) (*entity.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(t)
	if err := m.repo.Save(ctx, t); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "failed to save task")
	}
	return t, nil
}

// UpdateTaskProgress 追加一条进度记录
func (m *Manager) UpdateTaskProgress(ctx context.Context, id string, step entity.ProgressStep) error {
	_, err := m.UpdateTask(ctx, id, func(t *entity.Task) {
		t.AppendStep(step)
	})
	return err
}

// ListTasks 任务列表，可按状态过滤
func (m *Manager) ListTasks(ctx context.Context, status entity.TaskStatus, pagination repository.Pagination) (*repository.PagedResult[*entity.Task], error) {
	var filter *repository.TaskFilter
	if status != "" {
		filter = &repository.TaskFilter{Status: status}
	}
	result, err := m.repo.List(ctx, filter, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStoreError, "failed to list tasks")
	}
	return result, nil
}

// DeleteTask 显式删除任务。任务不会被自动清理。
func (m *Manager) DeleteTask(ctx context.Context, id string) error {
	if _, err := m.GetTask(ctx, id); err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStoreError, "failed to delete task")
	}
	return nil
}
