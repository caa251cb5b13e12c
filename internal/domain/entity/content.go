package entity

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedContent 一次工作流运行的最终产物。
// 返回给调用方后视为不可变。
type GeneratedContent struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	MainContent     string           `json:"main_content"`
	KnowledgeBase   []KnowledgeEntry `json:"knowledge_base"`
	GenerationSteps []string         `json:"generation_steps,omitempty"`
	ProgressLog     []ProgressStep   `json:"progress_log,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewGeneratedContent 创建生成结果
func NewGeneratedContent(title, mainContent string) *GeneratedContent {
	return &GeneratedContent{
		ID:          uuid.NewString(),
		Title:       title,
		MainContent: mainContent,
		CreatedAt:   time.Now(),
	}
}
