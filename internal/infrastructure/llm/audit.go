package llm

import (
	"context"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/pkg/logger"
)

// RepoAuditSink 把审计记录写入 PromptAuditLog。
// 审计失败不能影响模型调用主流程，错误只记日志。
type RepoAuditSink struct {
	log repository.PromptAuditLog
}

var _ AuditSink = (*RepoAuditSink)(nil)

// NewRepoAuditSink 创建审计落库器
func NewRepoAuditSink(log repository.PromptAuditLog) *RepoAuditSink {
	return &RepoAuditSink{log: log}
}

// Begin 写入 pending 记录
func (s *RepoAuditSink) Begin(ctx context.Context, rec *entity.PromptRecord) {
	if err := s.log.Append(ctx, rec); err != nil {
		logger.Warn(ctx, "failed to append prompt audit record", "record_id", rec.ID, "error", err.Error())
	}
}

// End 覆盖写入终态记录
func (s *RepoAuditSink) End(ctx context.Context, rec *entity.PromptRecord) {
	if err := s.log.Update(ctx, rec); err != nil {
		logger.Warn(ctx, "failed to update prompt audit record", "record_id", rec.ID, "error", err.Error())
	}
}
