package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/interfaces/http/dto"
	"deepwrite-ai-api/pkg/logger"
)

// PromptHandler 提示词审计接口处理器
type PromptHandler struct {
	log repository.PromptAuditLog
}

// NewPromptHandler 创建审计处理器
func NewPromptHandler(log repository.PromptAuditLog) *PromptHandler {
	return &PromptHandler{log: log}
}

// Recent 最近的审计记录，最新在前
// @Summary 提示词审计记录
// @Tags Prompt
// @Produce json
// @Success 200 {object} dto.Response[[]entity.PromptRecord]
// @Router /v1/prompts [get]
func (h *PromptHandler) Recent(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.log.Recent(c.Request.Context(), n)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to read prompt audit log", err)
		dto.InternalError(c, "failed to read audit log")
		return
	}
	dto.Success(c, records)
}
