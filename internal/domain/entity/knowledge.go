package entity

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty 术语难度等级
type Difficulty string

const (
	DifficultyHigh   Difficulty = "high"
	DifficultyMedium Difficulty = "medium"
	DifficultyLow    Difficulty = "low"
)

// ParseDifficulty 解析难度等级，未知取 medium
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(s) {
	case DifficultyHigh, DifficultyMedium, DifficultyLow:
		return Difficulty(s)
	default:
		return DifficultyMedium
	}
}

// KnowledgeEntry 一条已解释的术语。
// 归属于产生它的 GeneratedContent，不会独立于内容存在。
type KnowledgeEntry struct {
	ID           string     `json:"id"`
	Term         string     `json:"term"`
	Definition   string     `json:"definition"`
	Context      string     `json:"context,omitempty"`
	RelatedTerms []string   `json:"related_terms,omitempty"`
	SourceTopic  string     `json:"source_topic"`
	Difficulty   Difficulty `json:"difficulty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewKnowledgeEntry 创建知识库条目
func NewKnowledgeEntry(term, definition, sourceTopic string, difficulty Difficulty) *KnowledgeEntry {
	return &KnowledgeEntry{
		ID:          uuid.NewString(),
		Term:        term,
		Definition:  definition,
		SourceTopic: sourceTopic,
		Difficulty:  difficulty,
		CreatedAt:   time.Now(),
	}
}
