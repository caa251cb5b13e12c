// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"deepwrite-ai-api/internal/application/task"
	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/infrastructure/messaging"
	"deepwrite-ai-api/internal/interfaces/http/dto"
	"deepwrite-ai-api/pkg/logger"
)

// TaskHandler 任务接口处理器
type TaskHandler struct {
	manager  *task.Manager
	producer *messaging.Producer
	features config.FeaturesConfig
}

// NewTaskHandler 创建任务处理器。producer 可为 nil（禁用异步入队）。
func NewTaskHandler(manager *task.Manager, producer *messaging.Producer, features config.FeaturesConfig) *TaskHandler {
	return &TaskHandler{
		manager:  manager,
		producer: producer,
		features: features,
	}
}

// Create 创建任务
// @Summary 创建生成任务
// @Tags Task
// @Accept json
// @Produce json
// @Success 201 {object} dto.Response[dto.TaskResponse]
// @Router /v1/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	t, err := h.manager.CreateTask(c.Request.Context(), req.ToEntity(h.features.KeywordExtraction.EnabledByDefault))
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Created(c, dto.FromTask(t))
}

// Run 同步执行任务。大字数任务耗时可观，生产路径建议走 Enqueue。
// @Summary 执行生成任务
// @Tags Task
// @Produce json
// @Success 200 {object} dto.Response[dto.ContentResponse]
// @Router /v1/tasks/{tid}/run [post]
func (h *TaskHandler) Run(c *gin.Context) {
	content, err := h.manager.RunTask(c.Request.Context(), c.Param("tid"))
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, dto.FromContent(content))
}

// Enqueue 创建任务并投递到后台 worker
// @Summary 异步提交生成任务
// @Tags Task
// @Accept json
// @Produce json
// @Success 202 {object} dto.Response[dto.EnqueueResponse]
// @Router /v1/generations [post]
func (h *TaskHandler) Enqueue(c *gin.Context) {
	if h.producer == nil {
		dto.Error(c, 503, "async generation is not configured")
		return
	}

	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	genReq := req.ToEntity(h.features.KeywordExtraction.EnabledByDefault)
	t, err := h.manager.CreateTask(c.Request.Context(), genReq)
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	msgID, err := h.producer.PublishGenerationTask(c.Request.Context(), t.ID, &genReq)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to enqueue generation task", err, "task_id", t.ID)
		dto.InternalError(c, "failed to enqueue task")
		return
	}

	dto.Accepted(c, dto.EnqueueResponse{TaskID: t.ID, MessageID: msgID})
}

// Get 查询任务
// @Summary 查询任务
// @Tags Task
// @Produce json
// @Success 200 {object} dto.Response[dto.TaskResponse]
// @Router /v1/tasks/{tid} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	t, err := h.manager.GetTask(c.Request.Context(), c.Param("tid"))
	if err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.Success(c, dto.FromTask(t))
}

// List 任务列表
// @Summary 任务列表
// @Tags Task
// @Produce json
// @Success 200 {object} dto.Response[[]dto.TaskResponse]
// @Router /v1/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := entity.TaskStatus(c.Query("status"))

	result, err := h.manager.ListTasks(c.Request.Context(), status, repository.NewPagination(page, pageSize))
	if err != nil {
		dto.FromAppError(c, err)
		return
	}

	dto.SuccessWithPage(c, dto.FromTasks(result.Items), &dto.PageMeta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	})
}

// Delete 删除任务
// @Summary 删除任务
// @Tags Task
// @Produce json
// @Success 204
// @Router /v1/tasks/{tid} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.manager.DeleteTask(c.Request.Context(), c.Param("tid")); err != nil {
		dto.FromAppError(c, err)
		return
	}
	dto.NoContent(c)
}
