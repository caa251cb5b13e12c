package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/node"
	"deepwrite-ai-api/internal/workflow/prompt"
	apperrors "deepwrite-ai-api/pkg/errors"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"
)

// 阶段边界的进度里程碑
const (
	progressRewrite   = 10
	progressPlan      = 20
	progressSearch    = 40
	progressSummarize = 50
	progressSections  = 80
	progressValidate  = 85
	progressExtract   = 88
	progressExpand    = 96
	progressDone      = totalProgressBudget
)

// rewriteDelay 重写阶段固定重试间隔
const rewriteDelay = 2 * time.Second

// Orchestrator 工作流编排器。
// 各阶段严格顺序执行（阶段内部可以并发），只有重写、规划、
// 摘要三个阶段有整体降级值，其余阶段按条目隔离失败。
type Orchestrator struct {
	prompts  *prompt.Registry
	searcher *Searcher
	sections *SectionProcessor
	terms    *TermPipeline

	gen        config.GenerationConfig
	validation bool

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator 创建编排器
func NewOrchestrator(prompts *prompt.Registry, searcher *Searcher, sections *SectionProcessor, terms *TermPipeline, gen config.GenerationConfig, validationEnabled bool) *Orchestrator {
	return &Orchestrator{
		prompts:    prompts,
		searcher:   searcher,
		sections:   sections,
		terms:      terms,
		gen:        gen,
		validation: validationEnabled,
		sleep:      waitCtx,
	}
}

// Run 执行一次完整工作流。
// 正常路径上所有可预见失败都在阶段内降级，返回 error 仅代表
// 逃出全部防护的意外异常，由任务管理器据此置任务为 failed。
func (o *Orchestrator) Run(ctx context.Context, rc *RunContext, req entity.GenerationRequest) (content *entity.GeneratedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Wrap(fmt.Errorf("%v", r), apperrors.CodeGenerationFailed, "workflow panicked")
		}
	}()

	if strings.TrimSpace(req.Topic) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("topic is required")
	}
	wordCount := o.normalizeWordCount(req.WordCount)
	opts := llm.CallOptions{Model: req.Model, Temperature: req.Temperature}
	ctx = logger.WithContext(ctx, logger.TopicKey, req.Topic)

	// 1. 重写
	rewritten, title := o.rewrite(ctx, rc, req, opts)
	rc.StageDone("重写主题并确定标题")
	rc.AdvanceTo(ctx, "rewrite", progressRewrite, title)

	// 2. 规划
	queries := o.planStage(ctx, rc, req.Topic, rewritten, opts)
	rc.StageDone(fmt.Sprintf("规划 %d 条搜索查询", len(queries)))
	rc.AdvanceTo(ctx, "plan", progressPlan, "")

	// 3. 搜索（并发，按条目推进进度）
	records := o.searchStage(ctx, rc, req.Topic, queries, opts)
	rc.StageDone(fmt.Sprintf("执行 %d 条模拟搜索", len(records)))
	rc.AdvanceTo(ctx, "search", progressSearch, "")

	// 4. 摘要
	summary := o.summarize(ctx, rc, req.Topic, BuildSearchContext(records), opts)
	rc.StageDone("汇总搜索结果")
	rc.AdvanceTo(ctx, "summarize", progressSummarize, "")

	// 5. 分节生成
	body := o.generateStage(ctx, rc, req, wordCount, summary)
	rc.StageDone("生成文章正文")
	rc.AdvanceTo(ctx, "generate_sections", progressSections, "")

	// 6. 校验（可选阶段，默认关闭；开启时也只记录问题，内容原样通过）
	o.validateStage(ctx, rc, req, body, opts)
	rc.AdvanceTo(ctx, "validate", progressValidate, "")

	// 7. 知识库（按请求开关）
	kb := o.knowledgeStage(ctx, rc, req, body, opts)
	rc.AdvanceTo(ctx, "expand_terms", progressExpand, "")

	// 8. 汇编
	main := assembleDocument(body, kb)
	if strings.TrimSpace(main) == "" {
		return nil, apperrors.ErrEmptyContent
	}

	content = entity.NewGeneratedContent(title, main)
	content.KnowledgeBase = kb
	rc.StageDone("汇编最终文档")
	rc.AdvanceTo(ctx, "assemble", progressDone, "")
	content.GenerationSteps = rc.Labels()
	content.ProgressLog = rc.ProgressLog()
	return content, nil
}

// rewrite 把原始主题重写为清晰提示词并派生标题。
// 三次尝试、固定间隔，全部失败时原样使用用户输入。
func (o *Orchestrator) rewrite(ctx context.Context, rc *RunContext, req entity.GenerationRequest, opts llm.CallOptions) (rewritten, title string) {
	defer observeStage("rewrite", time.Now())

	system, user, err := o.prompts.Render(prompt.PromptTopicRewriteV1, map[string]any{
		"Topic":    req.Topic,
		"Style":    req.Style,
		"Audience": req.Audience,
	})
	if err == nil {
		for attempt := 1; attempt <= 3; attempt++ {
			res := rc.Call(ctx, system, user, opts)
			if res.Usable() {
				var out struct {
					Prompt string `json:"prompt"`
					Title  string `json:"title"`
				}
				if derr := node.UnmarshalLenient(res.Text, &out); derr == nil && out.Prompt != "" && out.Title != "" {
					return out.Prompt, out.Title
				}
			}
			if res.Skipped() {
				break
			}
			if attempt < 3 {
				if serr := o.sleep(ctx, rewriteDelay); serr != nil {
					break
				}
			}
		}
	}

	metrics.StageFallbackTotal.WithLabelValues("rewrite", "degraded_value").Inc()
	logger.Warn(ctx, "topic rewrite failed, using raw input", "topic", req.Topic)
	return req.Topic, req.Topic
}

func (o *Orchestrator) planStage(ctx context.Context, rc *RunContext, topic, rewritten string, opts llm.CallOptions) []string {
	defer observeStage("plan", time.Now())
	return o.searcher.PlanQueries(ctx, rc, topic, rewritten, opts)
}

func (o *Orchestrator) searchStage(ctx context.Context, rc *RunContext, topic string, queries []string, opts llm.CallOptions) []SearchRecord {
	defer observeStage("search", time.Now())
	return o.searcher.ExecuteSearches(ctx, rc, topic, queries, opts, perItemDelta(progressSearch-progressPlan, len(queries)))
}

// summarize 汇总搜索结果。三次重试，耗尽后原文返回未摘要的上下文。
func (o *Orchestrator) summarize(ctx context.Context, rc *RunContext, topic, searchContext string, opts llm.CallOptions) string {
	defer observeStage("summarize", time.Now())

	if strings.TrimSpace(searchContext) == "" {
		return ""
	}

	system, user, err := o.prompts.Render(prompt.PromptSummaryV1, map[string]any{
		"Topic":   topic,
		"Context": searchContext,
	})
	if err == nil {
		policy := DefaultPolicy(0)
		res, ok := policy.Execute(ctx, o.sleep, func(ctx context.Context) llm.Result {
			return rc.Call(ctx, system, user, opts)
		})
		if ok {
			return res.Text
		}
	}

	metrics.StageFallbackTotal.WithLabelValues("summarize", "degraded_value").Inc()
	logger.Warn(ctx, "summarization failed, using raw search context", "topic", topic)
	return searchContext
}

func (o *Orchestrator) generateStage(ctx context.Context, rc *RunContext, req entity.GenerationRequest, wordCount int, summary string) string {
	defer observeStage("generate_sections", time.Now())

	titles := DefaultSectionTitles
	perSection := wordCount / len(titles)
	if perSection < minSectionWords {
		perSection = minSectionWords
	}
	sections := o.sections.GenerateSections(ctx, rc, req, titles, summary, perSection, perItemDelta(progressSections-progressSummarize, len(titles)))
	return assembleBody(sections)
}

// validateStage 内容校验。流程里保留但默认旁路：
// 未开启时直接跳过，开启时只记录发现的问题，内容原样通过。
func (o *Orchestrator) validateStage(ctx context.Context, rc *RunContext, req entity.GenerationRequest, body string, opts llm.CallOptions) {
	if !o.validation || !req.ValidateContent {
		return
	}
	defer observeStage("validate", time.Now())

	system, user, err := o.prompts.Render(prompt.PromptContentValidateV1, map[string]any{
		"Topic":   req.Topic,
		"Content": node.TruncateByRunes(body, extractContentRunes),
	})
	if err != nil {
		return
	}

	res := rc.Call(ctx, system, user, opts)
	if !res.Usable() {
		return
	}
	var out struct {
		Valid  bool     `json:"valid"`
		Issues []string `json:"issues"`
	}
	if derr := node.UnmarshalLenient(res.Text, &out); derr == nil && !out.Valid {
		logger.Warn(ctx, "content validation reported issues", "topic", req.Topic, "issues", strings.Join(out.Issues, "; "))
	}
	rc.StageDone("内容校验")
}

// knowledgeStage 术语抽取与扩展。请求未开启关键词抽取时整体跳过，
// 产出空知识库且不发生任何术语相关调用。
func (o *Orchestrator) knowledgeStage(ctx context.Context, rc *RunContext, req entity.GenerationRequest, body string, opts llm.CallOptions) []entity.KnowledgeEntry {
	if !req.ExtractKeywords {
		rc.StageDone("跳过知识库构建")
		return nil
	}
	defer observeStage("knowledge", time.Now())

	terms := o.terms.Extract(ctx, rc, req.Topic, body, defaultMaxTerms, opts)
	rc.StageDone(fmt.Sprintf("抽取 %d 个疑难术语", len(terms)))
	rc.AdvanceTo(ctx, "extract_terms", progressExtract, "")

	entries := o.terms.Expand(ctx, rc, req.Topic, body, terms, opts, perItemDelta(progressExpand-progressExtract, len(terms)))
	rc.StageDone(fmt.Sprintf("生成 %d 条术语释义", len(entries)))
	return entries
}

// normalizeWordCount 补默认值并套用下限
func (o *Orchestrator) normalizeWordCount(requested int) int {
	def := o.gen.DefaultWordCount
	if def <= 0 {
		def = 5000
	}
	min := o.gen.MinWordCount
	if min <= 0 {
		min = 1000
	}
	if requested <= 0 {
		return def
	}
	if requested < min {
		return min
	}
	return requested
}

// assembleBody 按目录顺序拼装正文
func assembleBody(sections []Section) string {
	var b strings.Builder
	for _, sec := range sections {
		content := strings.TrimSpace(sec.Content)
		if !strings.HasPrefix(content, "#") {
			fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// assembleDocument 把术语表追加到正文末尾
func assembleDocument(body string, kb []entity.KnowledgeEntry) string {
	if len(kb) == 0 {
		return body
	}

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\n## 术语表\n")
	for _, entry := range kb {
		fmt.Fprintf(&b, "\n### %s\n\n%s\n", entry.Term, strings.TrimSpace(entry.Definition))
		if len(entry.RelatedTerms) > 0 {
			fmt.Fprintf(&b, "\n相关术语：%s\n", strings.Join(entry.RelatedTerms, "、"))
		}
	}
	return b.String()
}

// perItemDelta 把一段进度预算均摊到 n 个条目
func perItemDelta(budget, n int) int {
	if n <= 0 {
		return budget
	}
	d := budget / n
	if d < 1 {
		d = 1
	}
	return d
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
