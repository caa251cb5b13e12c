// Package file 提供基于本地文件系统的历史文档存储
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"deepwrite-ai-api/internal/domain/repository"
	apperrors "deepwrite-ai-api/pkg/errors"
)

var tracer = otel.Tracer("file")

const indexFileName = "index.json"

// folderNamePattern 目录名只保留中英文、数字与连字符
var folderNamePattern = regexp.MustCompile(`[^\p{Han}\p{L}\p{N}-]+`)

// HistoryStore 历史文档的文件系统存储。
// 每个查询一个子目录，文档以 markdown 落盘，索引集中在根目录的 index.json。
type HistoryStore struct {
	dataDir string
	mu      sync.Mutex
}

var _ repository.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore 创建存储并确保数据目录存在
func NewHistoryStore(dataDir string) (*HistoryStore, error) {
	if dataDir == "" {
		dataDir = "data/history"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir %s: %w", dataDir, err)
	}
	return &HistoryStore{dataDir: dataDir}, nil
}

// Save 保存一篇文档并登记索引
func (s *HistoryStore) Save(ctx context.Context, content, title, query, docType string) (*repository.HistoryIndexEntry, error) {
	_, span := tracer.Start(ctx, "history.Save")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	folder := sanitizeFolderName(query)
	dir := filepath.Join(s.dataDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create query dir: %w", err)
	}

	id := uuid.New().String()
	fileName := id + ".md"
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	entry := &repository.HistoryIndexEntry{
		ID:          id,
		Title:       title,
		Query:       query,
		Type:        docType,
		FilePath:    filepath.Join(folder, fileName),
		QueryFolder: folder,
		Timestamp:   time.Now(),
	}

	entries, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	entries = append(entries, entry)
	if err := s.writeIndex(entries); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return entry, nil
}

// Index 返回全部索引条目，按时间倒序
func (s *HistoryStore) Index(ctx context.Context) ([]*repository.HistoryIndexEntry, error) {
	_, span := tracer.Start(ctx, "history.Index")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readIndex()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

// Load 按 id 读取文档内容
func (s *HistoryStore) Load(ctx context.Context, id string) (string, error) {
	_, span := tracer.Start(ctx, "history.Load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readIndex()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, e.FilePath))
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("failed to read document %s: %w", id, err)
		}
		return string(data), nil
	}
	return "", apperrors.ErrHistoryNotFound
}

// Clear 清空全部历史并重建空目录
func (s *HistoryStore) Clear(ctx context.Context) error {
	_, span := tracer.Start(ctx, "history.Clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dataDir); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return os.MkdirAll(s.dataDir, 0o755)
}

func (s *HistoryStore) readIndex() ([]*repository.HistoryIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	var entries []*repository.HistoryIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return entries, nil
}

func (s *HistoryStore) writeIndex(entries []*repository.HistoryIndexEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	tmp := filepath.Join(s.dataDir, indexFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.dataDir, indexFileName))
}

// sanitizeFolderName 将查询串转成安全的目录名，截断到 50 个字符
func sanitizeFolderName(query string) string {
	name := folderNamePattern.ReplaceAllString(strings.TrimSpace(query), "-")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "untitled"
	}
	runes := []rune(name)
	if len(runes) > 50 {
		name = string(runes[:50])
	}
	return name
}
