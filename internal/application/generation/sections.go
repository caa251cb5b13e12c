package generation

import (
	"context"
	"fmt"
	"time"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/prompt"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"
)

// DefaultSectionTitles 文章章节目录。
// 每篇生成文章的结构都由这份固定目录决定。
var DefaultSectionTitles = []string{
	"概念定义",
	"工作原理",
	"关键技术",
	"应用场景",
	"优势与局限",
	"挑战与风险",
	"行业案例",
	"发展历程",
	"未来趋势",
	"总结展望",
}

// minSectionWords 单节内容的最小字数，低于视为截断
const minSectionWords = 50

// Section 一个生成完成的章节
type Section struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Fallback bool   `json:"fallback,omitempty"`
}

// SectionProcessor 章节并发生成器。
// 全部章节并发请求，单节独立重试与占位降级，批次整体异常时
// 退化为串行逐节生成。
type SectionProcessor struct {
	prompts *prompt.Registry
	writer  *LongFormWriter
	policy  RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSectionProcessor 创建章节生成器
func NewSectionProcessor(prompts *prompt.Registry, writer *LongFormWriter) *SectionProcessor {
	return &SectionProcessor{
		prompts: prompts,
		writer:  writer,
		policy:  DefaultPolicy(minSectionWords),
		sleep:   waitCtx,
	}
}

// GenerateSections 并发生成全部章节。
// 结果保证与 titles 顺序一致，与各并发调用的完成顺序无关。
// progressDelta 为每节完成时推进的进度步数。
func (p *SectionProcessor) GenerateSections(ctx context.Context, rc *RunContext, req entity.GenerationRequest, titles []string, sharedContext string, perSectionWords, progressDelta int) []Section {
	if len(titles) == 0 {
		titles = DefaultSectionTitles
	}

	worker := func(ctx context.Context, i int) Section {
		sec := p.generateOne(ctx, rc, req, titles, i, sharedContext, perSectionWords)
		rc.Advance(ctx, "generate_sections", progressDelta, sec.Title)
		return sec
	}

	sections, err := fanOut(ctx, len(titles), worker)
	if err == nil {
		return sections
	}

	// 并发批次整体异常：退化为串行逐节生成，策略不变
	metrics.StageFallbackTotal.WithLabelValues("generate_sections", "sequential").Inc()
	logger.Warn(ctx, "section batch failed, falling back to sequential generation", "error", err.Error())

	sections = make([]Section, len(titles))
	for i := range titles {
		sections[i] = worker(ctx, i)
	}
	return sections
}

// generateOne 生成单个章节，带独立重试与占位降级
func (p *SectionProcessor) generateOne(ctx context.Context, rc *RunContext, req entity.GenerationRequest, titles []string, index int, sharedContext string, perSectionWords int) Section {
	title := titles[index]
	prevTitle, nextTitle := "", ""
	if index > 0 {
		prevTitle = titles[index-1]
	}
	if index < len(titles)-1 {
		nextTitle = titles[index+1]
	}

	system, user, err := p.prompts.Render(prompt.PromptSectionGenV1, map[string]any{
		"Topic":        req.Topic,
		"SectionTitle": title,
		"PrevTitle":    prevTitle,
		"NextTitle":    nextTitle,
		"Style":        req.Style,
		"Audience":     req.Audience,
		"Context":      sharedContext,
	})
	if err != nil {
		logger.Error(ctx, "failed to render section prompt", err, "section", title)
		return placeholderSection(title)
	}

	opts := llm.CallOptions{Model: req.Model, Temperature: req.Temperature}
	text, ok := p.policy.ExecuteText(ctx, p.sleep, func(ctx context.Context) (string, error) {
		return p.writer.GenerateLong(ctx, rc, withSystem(system, user), perSectionWords, opts)
	})
	if !ok {
		metrics.StageFallbackTotal.WithLabelValues("generate_sections", "placeholder").Inc()
		logger.Warn(ctx, "section generation exhausted retries, using placeholder", "section", title)
		return placeholderSection(title)
	}

	return Section{Title: title, Content: text}
}

// placeholderSection 单节降级占位，失败隔离在本节内
func placeholderSection(title string) Section {
	return Section{
		Title:    title,
		Content:  fmt.Sprintf("（「%s」一节生成失败，内容暂缺，请稍后重试。）", title),
		Fallback: true,
	}
}

// withSystem 把 system 提示词并入基础提示词。
// 分块续写路径只接受单段基础提示词。
func withSystem(system, user string) string {
	if system == "" {
		return user
	}
	return system + "\n\n" + user
}
