package handler

import (
	"bytes"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/sync/singleflight"

	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/interfaces/http/dto"
	"deepwrite-ai-api/pkg/logger"
)

// HistoryHandler 历史文档接口处理器
type HistoryHandler struct {
	store repository.HistoryStore
	md    goldmark.Markdown

	// sf 合并并发的索引读取，索引文件只读一次
	sf singleflight.Group
}

// NewHistoryHandler 创建历史文档处理器
func NewHistoryHandler(store repository.HistoryStore) *HistoryHandler {
	return &HistoryHandler{
		store: store,
		md: goldmark.New(
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Save 保存一篇文档
// @Summary 保存历史文档
// @Tags History
// @Accept json
// @Produce json
// @Success 201 {object} dto.Response[dto.HistoryEntryResponse]
// @Router /v1/history/save [post]
func (h *HistoryHandler) Save(c *gin.Context) {
	var req dto.SaveHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	entry, err := h.store.Save(c.Request.Context(), req.Content, req.Title, req.Query, req.Type)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to save history document", err)
		dto.InternalError(c, "failed to save document")
		return
	}
	dto.Created(c, dto.FromHistoryEntry(entry))
}

// Index 历史索引，按时间倒序
// @Summary 历史文档索引
// @Tags History
// @Produce json
// @Success 200 {object} dto.Response[[]dto.HistoryEntryResponse]
// @Router /v1/history/index [get]
func (h *HistoryHandler) Index(c *gin.Context) {
	v, err, _ := h.sf.Do("index", func() (any, error) {
		return h.store.Index(c.Request.Context())
	})
	if err != nil {
		logger.Error(c.Request.Context(), "failed to read history index", err)
		dto.InternalError(c, "failed to read index")
		return
	}
	dto.Success(c, dto.FromHistoryEntries(v.([]*repository.HistoryIndexEntry)))
}

// Load 按 id 读取文档内容
// @Summary 读取历史文档
// @Tags History
// @Produce json
// @Success 200 {object} dto.Response[dto.HistoryContentResponse]
// @Router /v1/history/load/{id} [get]
func (h *HistoryHandler) Load(c *gin.Context) {
	id := c.Param("id")
	content, err := h.store.Load(c.Request.Context(), id)
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, dto.HistoryContentResponse{ID: id, Content: content})
}

// Download 下载文档。format=html 时渲染为 HTML，默认原样 markdown。
// @Summary 下载历史文档
// @Tags History
// @Produce plain
// @Success 200
// @Router /v1/history/download/{id} [get]
func (h *HistoryHandler) Download(c *gin.Context) {
	id := c.Param("id")
	content, err := h.store.Load(c.Request.Context(), id)
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	if c.Query("format") == "html" {
		var buf bytes.Buffer
		if err := h.md.Convert([]byte(content), &buf); err != nil {
			logger.Error(c.Request.Context(), "failed to render markdown", err, "id", id)
			dto.InternalError(c, "failed to render document")
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.html", id))
		c.Data(200, "text/html; charset=utf-8", buf.Bytes())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.md", id))
	c.Data(200, "text/markdown; charset=utf-8", []byte(content))
}

// Clear 清空全部历史
// @Summary 清空历史
// @Tags History
// @Produce json
// @Success 204
// @Router /v1/history/clear [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		logger.Error(c.Request.Context(), "failed to clear history", err)
		dto.InternalError(c, "failed to clear history")
		return
	}
	dto.NoContent(c)
}
