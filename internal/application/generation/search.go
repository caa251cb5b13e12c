package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/node"
	"deepwrite-ai-api/internal/workflow/prompt"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"
)

const (
	// maxPlannedQueries 规划阶段采纳的查询数上限
	maxPlannedQueries = 10

	// searchSnippetRunes 拼装上下文时单条结果的截断长度
	searchSnippetRunes = 300

	// collectionSearchResults 搜索记录落盘的键值集合
	collectionSearchResults = "search_results"
)

// SearchHit 一条模拟搜索结果
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// SearchRecord 一次查询的执行记录。
// 查询失败不终止批次，错误以 Error 字段落在记录里。
type SearchRecord struct {
	ID    string      `json:"id"`
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits,omitempty"`
	Error string      `json:"error,omitempty"`
	At    time.Time   `json:"at"`
}

// Searcher 搜索规划与执行。
// 搜索本身也是模型调用（模拟检索），不接真实搜索引擎。
type Searcher struct {
	prompts *prompt.Registry
	store   repository.KVStore
	policy  RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSearcher 创建搜索器。store 可为 nil（不落盘）。
func NewSearcher(prompts *prompt.Registry, store repository.KVStore) *Searcher {
	return &Searcher{
		prompts: prompts,
		store:   store,
		policy:  DefaultPolicy(0),
		sleep:   waitCtx,
	}
}

// PlanQueries 规划 5-10 条搜索查询。
// 解析失败或重试耗尽时回落到基于主题的固定查询模板。
func (s *Searcher) PlanQueries(ctx context.Context, rc *RunContext, topic, rewrittenPrompt string, opts llm.CallOptions) []string {
	system, user, err := s.prompts.Render(prompt.PromptSearchPlanV1, map[string]any{
		"Topic":  topic,
		"Prompt": rewrittenPrompt,
	})
	if err == nil {
		attempts := s.policy.MaxAttempts
		for attempt := 1; attempt <= attempts; attempt++ {
			res := rc.Call(ctx, system, user, opts)
			if res.Usable() {
				if queries, derr := node.DecodeStringList(res.Text); derr == nil && len(queries) > 0 {
					if len(queries) > maxPlannedQueries {
						queries = queries[:maxPlannedQueries]
					}
					return queries
				}
			}
			if res.Skipped() {
				break
			}
			if attempt < attempts {
				if serr := s.sleep(ctx, s.policy.Delay(attempt)); serr != nil {
					break
				}
			}
		}
	}

	metrics.StageFallbackTotal.WithLabelValues("plan", "degraded_value").Inc()
	logger.Warn(ctx, "query planning failed, using template queries", "topic", topic)
	return fallbackQueries(topic)
}

// fallbackQueries 规划失败时的固定查询模板
func fallbackQueries(topic string) []string {
	return []string{
		topic + " 基本概念",
		topic + " 工作原理",
		topic + " 应用场景",
		topic + " 最新进展",
		topic + " 挑战与前景",
	}
}

// ExecuteSearches 并发执行全部查询。
// 单条查询失败转成带错误的记录而不是中止批次；
// 每条记录在完成时各自落盘。
func (s *Searcher) ExecuteSearches(ctx context.Context, rc *RunContext, topic string, queries []string, opts llm.CallOptions, progressDelta int) []SearchRecord {
	worker := func(ctx context.Context, i int) SearchRecord {
		rec := s.executeOne(ctx, rc, topic, queries[i], opts)
		s.persist(ctx, rec)
		rc.Advance(ctx, "search", progressDelta, rec.Query)
		return rec
	}

	records, err := fanOut(ctx, len(queries), worker)
	if err == nil {
		return records
	}

	metrics.StageFallbackTotal.WithLabelValues("search", "sequential").Inc()
	logger.Warn(ctx, "search batch failed, falling back to sequential execution", "error", err.Error())

	records = make([]SearchRecord, len(queries))
	for i := range queries {
		records[i] = worker(ctx, i)
	}
	return records
}

// executeOne 执行单条查询
func (s *Searcher) executeOne(ctx context.Context, rc *RunContext, topic, query string, opts llm.CallOptions) SearchRecord {
	rec := SearchRecord{
		ID:    uuid.NewString(),
		Query: query,
		At:    time.Now(),
	}

	system, user, err := s.prompts.Render(prompt.PromptSearchExecV1, map[string]any{
		"Topic": topic,
		"Query": query,
	})
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	res := rc.Call(ctx, system, user, opts)
	switch {
	case res.Failed():
		rec.Error = res.Text
	case res.Skipped():
		rec.Error = res.Text
		metrics.StageFallbackTotal.WithLabelValues("search", "degraded_value").Inc()
	default:
		var hits []SearchHit
		if derr := node.UnmarshalLenient(res.Text, &hits); derr != nil {
			// 结构化解析失败时整段文本降级为单条结果
			hits = []SearchHit{{Title: query, Snippet: node.TruncateByRunes(res.Text, searchSnippetRunes)}}
		}
		rec.Hits = hits
	}
	return rec
}

// persist 搜索记录落盘，失败只记日志
func (s *Searcher) persist(ctx context.Context, rec SearchRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.Set(ctx, collectionSearchResults, rec.ID, rec); err != nil {
		logger.Warn(ctx, "failed to persist search record", "record_id", rec.ID, "error", err.Error())
	}
}

// BuildSearchContext 把搜索记录拼装为摘要阶段的共享上下文，
// 每条结果按固定长度截断。
func BuildSearchContext(records []SearchRecord) string {
	var b strings.Builder
	for _, rec := range records {
		if rec.Error != "" {
			continue
		}
		fmt.Fprintf(&b, "查询: %s\n", rec.Query)
		for _, hit := range rec.Hits {
			snippet := node.TruncateByRunes(node.NormalizeWhitespace(hit.Snippet), searchSnippetRunes)
			if hit.Source != "" {
				fmt.Fprintf(&b, "- %s: %s (%s)\n", hit.Title, snippet, hit.Source)
			} else {
				fmt.Fprintf(&b, "- %s: %s\n", hit.Title, snippet)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
