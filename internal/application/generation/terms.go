package generation

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/node"
	"deepwrite-ai-api/internal/workflow/prompt"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"
)

const (
	// defaultMaxTerms 一次抽取的术语数上限
	defaultMaxTerms = 8

	// extractContentRunes 抽取提示词携带的正文截断长度
	extractContentRunes = 4000
)

// capitalizedPhrase 启发式术语抽取：正文中的大写多词短语
var capitalizedPhrase = regexp.MustCompile(`[A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)+`)

// ExtractedTerm 抽取阶段识别出的一个待解释术语
type ExtractedTerm struct {
	Term       string `json:"term"`
	Location   string `json:"location,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// TermPipeline 术语抽取与扩展。
// 抽取是一次结构化调用，扩展对每个术语并发独立调用，
// 失败隔离策略与章节生成一致。
type TermPipeline struct {
	prompts *prompt.Registry
	policy  RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
}

// NewTermPipeline 创建术语流水线
func NewTermPipeline(prompts *prompt.Registry) *TermPipeline {
	return &TermPipeline{
		prompts: prompts,
		policy:  DefaultPolicy(0),
		sleep:   waitCtx,
	}
}

// Extract 从生成内容中识别疑难术语。
// 结构化解析失败或重试耗尽时回落到正则启发式抽取。
func (t *TermPipeline) Extract(ctx context.Context, rc *RunContext, topic, content string, maxTerms int, opts llm.CallOptions) []ExtractedTerm {
	if maxTerms <= 0 {
		maxTerms = defaultMaxTerms
	}

	system, user, err := t.prompts.Render(prompt.PromptTermExtractV1, map[string]any{
		"Topic":    topic,
		"Content":  node.TruncateByRunes(content, extractContentRunes),
		"MaxTerms": maxTerms,
	})
	if err == nil {
		attempts := t.policy.MaxAttempts
		for attempt := 1; attempt <= attempts; attempt++ {
			res := rc.Call(ctx, system, user, opts)
			if res.Usable() {
				var terms []ExtractedTerm
				if derr := node.UnmarshalLenient(res.Text, &terms); derr == nil && len(terms) > 0 {
					if len(terms) > maxTerms {
						terms = terms[:maxTerms]
					}
					return terms
				}
			}
			if res.Skipped() {
				break
			}
			if attempt < attempts {
				if serr := t.sleep(ctx, t.policy.Delay(attempt)); serr != nil {
					break
				}
			}
		}
	}

	metrics.StageFallbackTotal.WithLabelValues("extract_terms", "degraded_value").Inc()
	logger.Warn(ctx, "term extraction failed, using heuristic", "topic", topic)
	return heuristicTerms(content, maxTerms)
}

// heuristicTerms 兜底抽取：取正文中的大写多词短语并去重
func heuristicTerms(content string, maxTerms int) []ExtractedTerm {
	seen := make(map[string]struct{})
	var terms []ExtractedTerm
	for _, match := range capitalizedPhrase.FindAllString(content, -1) {
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		terms = append(terms, ExtractedTerm{Term: match, Difficulty: string(entity.DifficultyMedium)})
		if len(terms) >= maxTerms {
			break
		}
	}
	return terms
}

// termExpansion 扩展调用的结构化响应
type termExpansion struct {
	Definition   string   `json:"definition"`
	Context      string   `json:"context"`
	RelatedTerms []string `json:"related_terms"`
}

// Expand 并发解释全部术语。
// 单术语重试耗尽给占位释义，限流降级的术语从产出中跳过；
// 进度随各并发调用完成增量推进，与到达顺序无关。
func (t *TermPipeline) Expand(ctx context.Context, rc *RunContext, topic, content string, terms []ExtractedTerm, opts llm.CallOptions, progressDelta int) []entity.KnowledgeEntry {
	if len(terms) == 0 {
		return nil
	}

	worker := func(ctx context.Context, i int) *entity.KnowledgeEntry {
		entry := t.expandOne(ctx, rc, topic, content, terms[i], opts)
		rc.Advance(ctx, "expand_terms", progressDelta, terms[i].Term)
		return entry
	}

	expanded, err := fanOut(ctx, len(terms), worker)
	if err != nil {
		metrics.StageFallbackTotal.WithLabelValues("expand_terms", "sequential").Inc()
		logger.Warn(ctx, "term expansion batch failed, falling back to sequential execution", "error", err.Error())

		expanded = make([]*entity.KnowledgeEntry, len(terms))
		for i := range terms {
			expanded[i] = worker(ctx, i)
		}
	}

	entries := make([]entity.KnowledgeEntry, 0, len(expanded))
	for _, e := range expanded {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	metrics.KnowledgeEntriesTotal.Add(float64(len(entries)))
	return entries
}

// expandOne 解释单个术语。限流跳过返回 nil。
func (t *TermPipeline) expandOne(ctx context.Context, rc *RunContext, topic, content string, term ExtractedTerm, opts llm.CallOptions) *entity.KnowledgeEntry {
	system, user, err := t.prompts.Render(prompt.PromptTermExpandV1, map[string]any{
		"Term":    term.Term,
		"Topic":   topic,
		"Context": node.TruncateByRunes(content, extractContentRunes),
	})
	if err != nil {
		logger.Error(ctx, "failed to render term expansion prompt", err, "term", term.Term)
		return placeholderEntry(term, topic)
	}

	res, ok := t.policy.Execute(ctx, t.sleep, func(ctx context.Context) llm.Result {
		return rc.Call(ctx, system, user, opts)
	})
	if res.Skipped() {
		metrics.StageFallbackTotal.WithLabelValues("expand_terms", "degraded_value").Inc()
		logger.Warn(ctx, "term expansion skipped due to rate limit", "term", term.Term)
		return nil
	}
	if !ok {
		metrics.StageFallbackTotal.WithLabelValues("expand_terms", "placeholder").Inc()
		logger.Warn(ctx, "term expansion exhausted retries, using placeholder", "term", term.Term)
		return placeholderEntry(term, topic)
	}

	entry := entity.NewKnowledgeEntry(term.Term, "", topic, entity.ParseDifficulty(term.Difficulty))
	var exp termExpansion
	if derr := node.UnmarshalLenient(res.Text, &exp); derr == nil && exp.Definition != "" {
		entry.Definition = exp.Definition
		entry.Context = exp.Context
		entry.RelatedTerms = exp.RelatedTerms
	} else {
		// 非结构化输出整体作为释义
		entry.Definition = res.Text
	}
	return entry
}

// placeholderEntry 扩展失败的占位条目
func placeholderEntry(term ExtractedTerm, topic string) *entity.KnowledgeEntry {
	entry := entity.NewKnowledgeEntry(
		term.Term,
		fmt.Sprintf("（术语「%s」的释义生成失败，暂无内容。）", term.Term),
		topic,
		entity.ParseDifficulty(term.Difficulty),
	)
	return entry
}
