package dto

import (
	"time"

	"deepwrite-ai-api/internal/domain/entity"
)

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Topic           string  `json:"topic" binding:"required,min=1,max=200"`
	WordCount       int     `json:"word_count" binding:"omitempty,min=0"`
	Style           string  `json:"style" binding:"omitempty,max=50"`
	Audience        string  `json:"audience" binding:"omitempty,max=50"`
	ExtractKeywords *bool   `json:"extract_keywords"`
	ValidateContent bool    `json:"validate_content"`
	Model           string  `json:"model" binding:"omitempty,max=64"`
	Temperature     float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
}

// ToEntity 转换为领域请求。extractDefault 为配置的关键词抽取默认值。
func (r *CreateTaskRequest) ToEntity(extractDefault bool) entity.GenerationRequest {
	extract := extractDefault
	if r.ExtractKeywords != nil {
		extract = *r.ExtractKeywords
	}
	return entity.GenerationRequest{
		Topic:           r.Topic,
		WordCount:       r.WordCount,
		Style:           r.Style,
		Audience:        r.Audience,
		ExtractKeywords: extract,
		ValidateContent: r.ValidateContent,
		Model:           r.Model,
		Temperature:     r.Temperature,
	}
}

// TaskResponse 任务响应
type TaskResponse struct {
	ID           string                `json:"id"`
	Topic        string                `json:"topic"`
	Status       string                `json:"status"`
	Progress     int                   `json:"progress"`
	Steps        []entity.ProgressStep `json:"steps,omitempty"`
	Content      *ContentResponse      `json:"content,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// ContentResponse 生成结果响应
type ContentResponse struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	MainContent     string                  `json:"main_content"`
	KnowledgeBase   []entity.KnowledgeEntry `json:"knowledge_base"`
	GenerationSteps []string                `json:"generation_steps,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// FromTask 由任务实体构建响应
func FromTask(t *entity.Task) *TaskResponse {
	resp := &TaskResponse{
		ID:           t.ID,
		Topic:        t.Topic,
		Status:       string(t.Status),
		Steps:        t.Steps,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		StartedAt:    t.StartedAt,
		CompletedAt:  t.CompletedAt,
	}
	if n := len(t.Steps); n > 0 {
		resp.Progress = t.Steps[n-1].Percent()
	}
	if t.Status == entity.TaskStatusCompleted {
		resp.Progress = 100
	}
	if t.Content != nil {
		resp.Content = FromContent(t.Content)
	}
	return resp
}

// FromTasks 批量转换
func FromTasks(tasks []*entity.Task) []*TaskResponse {
	out := make([]*TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = FromTask(t)
	}
	return out
}

// FromContent 由生成结果实体构建响应
func FromContent(c *entity.GeneratedContent) *ContentResponse {
	return &ContentResponse{
		ID:              c.ID,
		Title:           c.Title,
		MainContent:     c.MainContent,
		KnowledgeBase:   c.KnowledgeBase,
		GenerationSteps: c.GenerationSteps,
		CreatedAt:       c.CreatedAt,
	}
}

// EnqueueResponse 任务入队响应
type EnqueueResponse struct {
	TaskID    string `json:"task_id"`
	MessageID string `json:"message_id"`
}
