// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "created"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// GenerationRequest 一次生成任务的输入配置
type GenerationRequest struct {
	Topic           string  `json:"topic"`
	WordCount       int     `json:"word_count"`
	Style           string  `json:"style,omitempty"`
	Audience        string  `json:"audience,omitempty"`
	ExtractKeywords bool    `json:"extract_keywords"`
	ValidateContent bool    `json:"validate_content,omitempty"`
	Model           string  `json:"model,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

// Task 一次完整工作流的被跟踪执行单元
// 状态只会单调前进：created -> running -> completed/failed。
// Content 仅在 completed 时非空。
type Task struct {
	ID              string             `json:"id"`
	Topic           string             `json:"topic"`
	Request         GenerationRequest  `json:"request"`
	Status          TaskStatus         `json:"status"`
	Steps           []ProgressStep     `json:"steps,omitempty"`
	PromptRecordIDs []string           `json:"prompt_record_ids,omitempty"`
	Content         *GeneratedContent  `json:"content,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// NewTask 创建新任务
func NewTask(req GenerationRequest) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Topic:     req.Topic,
		Request:   req,
		Status:    TaskStatusCreated,
		CreatedAt: time.Now(),
	}
}

// Start 开始执行任务
func (t *Task) Start() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// Complete 完成任务并携带生成结果
func (t *Task) Complete(content *GeneratedContent) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.Content = content
	t.CompletedAt = &now
}

// Fail 任务失败。失败任务不保留部分结果。
func (t *Task) Fail(errMsg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.ErrorMessage = errMsg
	t.Content = nil
	t.CompletedAt = &now
}

// AppendStep 追加一条进度记录
func (t *Task) AppendStep(step ProgressStep) {
	t.Steps = append(t.Steps, step)
}

// AttachPromptRecord 关联一条提示词审计记录
func (t *Task) AttachPromptRecord(recordID string) {
	t.PromptRecordIDs = append(t.PromptRecordIDs, recordID)
}

// Duration 任务耗时，未结束返回 0
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}
