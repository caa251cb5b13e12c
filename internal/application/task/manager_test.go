package task

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepwrite-ai-api/internal/application/generation"
	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/prompt"
)

// memTaskRepo 内存任务仓储
type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]entity.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]entity.Task)}
}

func (r *memTaskRepo) Save(_ context.Context, task *entity.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = *task
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memTaskRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) List(_ context.Context, filter *repository.TaskFilter, pagination repository.Pagination) (*repository.PagedResult[*entity.Task], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var tasks []*entity.Task
	for id := range r.tasks {
		t := r.tasks[id]
		if filter != nil && filter.Status != "" && t.Status != filter.Status {
			continue
		}
		tasks = append(tasks, &t)
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

// stubClient 固定脚本的测试客户端
type stubClient struct {
	fn func(prompt string) llm.Result
}

func (c *stubClient) Call(_ context.Context, prompt string, _ llm.CallOptions) llm.Result {
	return c.fn(prompt)
}

// scriptedResponse 让各阶段都能一次通过的响应脚本
func scriptedResponse(p string) llm.Result {
	ok := func(text string) llm.Result { return llm.Result{Text: text, Kind: llm.KindOK} }
	switch {
	case strings.Contains(p, "原始主题："):
		return ok(`{"prompt": "改写后的提示词", "title": "测试文章标题"}`)
	case strings.Contains(p, "搜索查询"):
		return ok(`["查询一", "查询二"]`)
	case strings.Contains(p, "查询词："):
		return ok(`[{"title": "结果", "snippet": "摘要内容", "source": "来源"}]`)
	default:
		return ok(strings.Repeat("这是一段足够长的生成正文。", 10))
	}
}

func newTestManager(client llm.Client) (*Manager, *memTaskRepo) {
	prompts := prompt.NewRegistry()
	orch := generation.NewOrchestrator(
		prompts,
		generation.NewSearcher(prompts, nil),
		generation.NewSectionProcessor(prompts, generation.NewLongFormWriter(prompts)),
		generation.NewTermPipeline(prompts),
		config.GenerationConfig{MinWordCount: 1000, DefaultWordCount: 1000},
		false,
	)
	repo := newMemTaskRepo()
	return NewManager(repo, client, orch), repo
}

func TestCreateTask(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})

	created, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "量子计算"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, entity.TaskStatusCreated, created.Status)

	got, err := m.GetTask(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateTask_EmptyTopic(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})
	_, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "  "})
	assert.Error(t, err)
}

func TestRunTask_CompletedLifecycle(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})

	created, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "量子计算", WordCount: 1000})
	require.NoError(t, err)

	content, err := m.RunTask(t.Context(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, content)
	assert.Equal(t, "测试文章标题", content.Title)
	assert.NotEmpty(t, content.MainContent)

	final, err := m.GetTask(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusCompleted, final.Status)
	require.NotNil(t, final.Content)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
	assert.Empty(t, final.ErrorMessage)

	// 进度快照写穿到任务，终点为满进度
	require.NotEmpty(t, final.Steps)
	last := final.Steps[len(final.Steps)-1]
	assert.Equal(t, last.Total, last.Current)
}

func TestRunTask_FailedLifecycle(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: func(string) llm.Result {
		panic("client exploded")
	}})

	created, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "量子计算"})
	require.NoError(t, err)

	_, err = m.RunTask(t.Context(), created.ID)
	require.Error(t, err)

	final, gerr := m.GetTask(t.Context(), created.ID)
	require.NoError(t, gerr)
	assert.Equal(t, entity.TaskStatusFailed, final.Status)
	assert.Nil(t, final.Content)
	assert.NotEmpty(t, final.ErrorMessage)
}

func TestRunTask_TerminalNotRunnable(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})

	created, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "量子计算"})
	require.NoError(t, err)

	_, err = m.RunTask(t.Context(), created.ID)
	require.NoError(t, err)

	// 终态任务不可重复执行
	_, err = m.RunTask(t.Context(), created.ID)
	assert.Error(t, err)
}

func TestRunTask_NotFound(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})
	_, err := m.RunTask(t.Context(), "no-such-task")
	assert.Error(t, err)
}

func TestUpdateTask_NotFound(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})
	_, err := m.UpdateTask(t.Context(), "no-such-task", func(t *entity.Task) {})
	assert.Error(t, err)
}

func TestListTasks_StatusFilter(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})

	first, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "主题一", WordCount: 1000})
	require.NoError(t, err)
	_, err = m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "主题二"})
	require.NoError(t, err)

	_, err = m.RunTask(t.Context(), first.ID)
	require.NoError(t, err)

	all, err := m.ListTasks(t.Context(), "", repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	completed, err := m.ListTasks(t.Context(), entity.TaskStatusCompleted, repository.NewPagination(1, 20))
	require.NoError(t, err)
	require.Equal(t, int64(1), completed.Total)
	assert.Equal(t, first.ID, completed.Items[0].ID)
}

func TestDeleteTask(t *testing.T) {
	m, _ := newTestManager(&stubClient{fn: scriptedResponse})

	created, err := m.CreateTask(t.Context(), entity.GenerationRequest{Topic: "量子计算"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteTask(t.Context(), created.ID))

	_, err = m.GetTask(t.Context(), created.ID)
	assert.Error(t, err)

	// 已删除任务再次删除返回 not-found
	assert.Error(t, m.DeleteTask(t.Context(), created.ID))
}
