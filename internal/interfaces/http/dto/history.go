package dto

import (
	"time"

	"deepwrite-ai-api/internal/domain/repository"
)

// SaveHistoryRequest 保存历史文档请求
type SaveHistoryRequest struct {
	Content string `json:"content" binding:"required"`
	Title   string `json:"title" binding:"required,max=200"`
	Query   string `json:"query" binding:"required,max=200"`
	Type    string `json:"type" binding:"omitempty,max=50"`
}

// HistoryEntryResponse 历史索引条目响应
type HistoryEntryResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Query       string    `json:"query"`
	Type        string    `json:"type,omitempty"`
	FilePath    string    `json:"file_path"`
	QueryFolder string    `json:"query_folder"`
	Timestamp   time.Time `json:"timestamp"`
}

// FromHistoryEntry 由索引条目构建响应
func FromHistoryEntry(e *repository.HistoryIndexEntry) *HistoryEntryResponse {
	return &HistoryEntryResponse{
		ID:          e.ID,
		Title:       e.Title,
		Query:       e.Query,
		Type:        e.Type,
		FilePath:    e.FilePath,
		QueryFolder: e.QueryFolder,
		Timestamp:   e.Timestamp,
	}
}

// FromHistoryEntries 批量转换
func FromHistoryEntries(entries []*repository.HistoryIndexEntry) []*HistoryEntryResponse {
	out := make([]*HistoryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = FromHistoryEntry(e)
	}
	return out
}

// HistoryContentResponse 文档内容响应
type HistoryContentResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}
