// Package generation 实现多阶段内容生成工作流
package generation

import (
	"context"
	"sync"
	"time"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/infrastructure/llm"
)

// ProgressFunc 进度回调，由任务管理器注入用于写穿任务进度
type ProgressFunc func(ctx context.Context, step entity.ProgressStep)

// RunContext 一次编排运行的显式上下文。
// 所有模型调用经过它发出，任务关联、审计记录收集与进度上报
// 都挂在这个对象上，而不是进程级全局状态，多个运行可以安全并发。
type RunContext struct {
	TaskID  string
	client  llm.Client
	tracker *Tracker
	report  ProgressFunc

	mu        sync.Mutex
	recordIDs []string
	labels    []string
	log       []entity.ProgressStep
}

// NewRunContext 创建运行上下文
func NewRunContext(taskID string, client llm.Client, tracker *Tracker, report ProgressFunc) *RunContext {
	if tracker == nil {
		tracker = NewTracker(totalProgressBudget)
	}
	return &RunContext{
		TaskID:  taskID,
		client:  client,
		tracker: tracker,
		report:  report,
	}
}

// Call 发出一次模型调用并收集审计记录 id
func (rc *RunContext) Call(ctx context.Context, system, user string, opts llm.CallOptions) llm.Result {
	opts.System = system
	opts.TaskID = rc.TaskID
	res := rc.client.Call(ctx, user, opts)
	if res.RecordID != "" {
		rc.mu.Lock()
		rc.recordIDs = append(rc.recordIDs, res.RecordID)
		rc.mu.Unlock()
	}
	return res
}

// Advance 推进 delta 步并上报进度
func (rc *RunContext) Advance(ctx context.Context, step string, delta int, detail string) {
	rc.emit(ctx, step, rc.tracker.Advance(delta), detail)
}

// AdvanceTo 把进度抬升到 target 并上报（阶段边界的粗粒度里程碑）
func (rc *RunContext) AdvanceTo(ctx context.Context, step string, target int, detail string) {
	rc.emit(ctx, step, rc.tracker.AdvanceTo(target), detail)
}

func (rc *RunContext) emit(ctx context.Context, step string, current int, detail string) {
	status := entity.StepStatusRunning
	if current >= rc.tracker.Total() {
		status = entity.StepStatusDone
	}
	ps := entity.ProgressStep{
		Step:    step,
		Current: current,
		Total:   rc.tracker.Total(),
		Status:  status,
		Detail:  detail,
		At:      time.Now(),
	}

	rc.mu.Lock()
	rc.log = append(rc.log, ps)
	rc.mu.Unlock()

	if rc.report != nil {
		rc.report(ctx, ps)
	}
}

// StageDone 记录一条人类可读的阶段完成标签
func (rc *RunContext) StageDone(label string) {
	rc.mu.Lock()
	rc.labels = append(rc.labels, label)
	rc.mu.Unlock()
}

// RecordIDs 本次运行产生的全部审计记录 id
func (rc *RunContext) RecordIDs() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]string, len(rc.recordIDs))
	copy(out, rc.recordIDs)
	return out
}

// Labels 阶段完成标签（按完成顺序）
func (rc *RunContext) Labels() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]string, len(rc.labels))
	copy(out, rc.labels)
	return out
}

// ProgressLog 进度快照序列
func (rc *RunContext) ProgressLog() []entity.ProgressStep {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]entity.ProgressStep, len(rc.log))
	copy(out, rc.log)
	return out
}
