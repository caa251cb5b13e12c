package repository

import (
	"context"
	"time"
)

// HistoryIndexEntry 历史文档索引条目
type HistoryIndexEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Query       string    `json:"query"`
	Type        string    `json:"type"`
	FilePath    string    `json:"file_path"`
	QueryFolder string    `json:"query_folder"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryStore 历史文档存储接口（文件系统实现）。
// 内容按生成 id 寻址；目录分组只是存储布局，不承载业务语义。
type HistoryStore interface {
	// Save 保存一篇文档，返回索引条目
	Save(ctx context.Context, content, title, query, docType string) (*HistoryIndexEntry, error)

	// Index 返回全部索引条目，按时间倒序
	Index(ctx context.Context) ([]*HistoryIndexEntry, error)

	// Load 按 id 读取文档内容
	Load(ctx context.Context, id string) (string, error)

	// Clear 清空全部历史
	Clear(ctx context.Context) error
}
