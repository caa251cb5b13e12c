package repository

import (
	"context"

	"deepwrite-ai-api/internal/domain/entity"
)

// PromptAuditLog 提示词审计日志接口。
// 只追加、按 id 更新一次到终态；容量有界，最旧的记录被淘汰。
type PromptAuditLog interface {
	// Append 追加一条 pending 记录
	Append(ctx context.Context, record *entity.PromptRecord) error

	// Update 将记录更新为终态
	Update(ctx context.Context, record *entity.PromptRecord) error

	// Recent 返回最近的 n 条记录，最新在前
	Recent(ctx context.Context, n int) ([]*entity.PromptRecord, error)
}
