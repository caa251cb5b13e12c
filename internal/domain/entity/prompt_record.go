package entity

import (
	"time"

	"github.com/google/uuid"
)

// PromptStatus 提示词审计记录状态
type PromptStatus string

const (
	PromptStatusPending     PromptStatus = "pending"
	PromptStatusSuccess     PromptStatus = "success"
	PromptStatusError       PromptStatus = "error"
	PromptStatusTimeout     PromptStatus = "timeout"
	PromptStatusRateLimited PromptStatus = "rate_limited"
)

// PromptRecord 单次模型调用的审计记录。
// 记录以 pending 创建，最多被更新一次到终态。
type PromptRecord struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id,omitempty"`
	Prompt    string       `json:"prompt"`
	Model     string       `json:"model"`
	Response  string       `json:"response,omitempty"`
	Status    PromptStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewPromptRecord 创建待定状态的审计记录
func NewPromptRecord(taskID, prompt, model string) *PromptRecord {
	now := time.Now()
	return &PromptRecord{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Prompt:    prompt,
		Model:     model,
		Status:    PromptStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// auditResponseMaxRunes 审计记录中响应文本的保留上限
const auditResponseMaxRunes = 4000

// TruncateForAudit 截断过长的响应文本，避免审计日志无限膨胀
func TruncateForAudit(s string) string {
	n := 0
	for i := range s {
		if n == auditResponseMaxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// Finalize 写入终态。已处于终态的记录不再变更。
func (r *PromptRecord) Finalize(status PromptStatus, response string) {
	if r.Status != PromptStatusPending {
		return
	}
	r.Status = status
	r.Response = response
	r.UpdatedAt = time.Now()
}
