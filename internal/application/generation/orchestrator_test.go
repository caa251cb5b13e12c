package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/prompt"
)

func newTestOrchestrator(validation bool) *Orchestrator {
	prompts := prompt.NewRegistry()
	searcher := NewSearcher(prompts, nil)
	searcher.sleep = noSleep
	sections := newTestSections()
	terms := newTestTerms()

	o := NewOrchestrator(prompts, searcher, sections, terms, config.GenerationConfig{
		MinWordCount:     1000,
		DefaultWordCount: 1000,
	}, validation)
	o.sleep = noSleep
	return o
}

// pipelineScript 按提示词内容分发各阶段响应
func pipelineScript(p string, _ llm.CallOptions) llm.Result {
	switch {
	case strings.Contains(p, "原始主题："):
		return okResult(`{"prompt": "写一篇深入浅出的量子计算科普文章", "title": "量子计算入门"}`)
	case strings.Contains(p, "搜索查询"):
		return okResult(`["量子计算 基本概念", "量子计算 发展现状"]`)
	case strings.Contains(p, "查询词："):
		return okResult(`[{"title": "检索结果", "snippet": "量子计算利用量子叠加实现并行计算", "source": "示例来源"}]`)
	case strings.Contains(p, "检索结果："):
		return okResult("量子计算是一种利用量子力学原理的新型计算范式。")
	case strings.Contains(p, "当前章节："):
		for _, title := range DefaultSectionTitles {
			if strings.Contains(p, "当前章节："+title) {
				return okResult(sectionBody(title))
			}
		}
		return okResult(sectionBody("未知"))
	case strings.Contains(p, "难点术语"):
		return okResult(`[{"term": "量子比特", "difficulty": "high"}, {"term": "量子纠缠", "difficulty": "medium"}]`)
	case strings.HasPrefix(p, "术语："):
		return okResult(`{"definition": "该术语的详细解释。", "context": "主题中的核心概念", "related_terms": ["叠加态"]}`)
	default:
		return okResult("通用响应")
	}
}

func TestRun_FullPipeline(t *testing.T) {
	client := &scriptedClient{fn: pipelineScript}
	rc := NewRunContext("t1", client, nil, nil)
	o := newTestOrchestrator(false)

	req := entity.GenerationRequest{
		Topic:           "量子计算",
		WordCount:       1000,
		ExtractKeywords: true,
	}
	content, err := o.Run(t.Context(), rc, req)
	require.NoError(t, err)
	require.NotNil(t, content)

	assert.Equal(t, "量子计算入门", content.Title)
	assert.NotEmpty(t, content.MainContent)

	// 正文按固定目录组织
	for _, title := range DefaultSectionTitles {
		assert.Contains(t, content.MainContent, title)
	}

	// 知识库条目都出现在最终文档的术语表里
	require.Len(t, content.KnowledgeBase, 2)
	assert.Contains(t, content.MainContent, "## 术语表")
	for _, entry := range content.KnowledgeBase {
		assert.Contains(t, content.MainContent, entry.Term)
	}

	// 阶段标签与进度日志完整
	assert.NotEmpty(t, content.GenerationSteps)
	require.NotEmpty(t, content.ProgressLog)
	last := content.ProgressLog[len(content.ProgressLog)-1]
	assert.Equal(t, 100, last.Current)
	assert.Equal(t, entity.StepStatusDone, last.Status)
}

func TestRun_KeywordExtractionDisabled(t *testing.T) {
	client := &scriptedClient{fn: pipelineScript}
	rc := NewRunContext("t1", client, nil, nil)
	o := newTestOrchestrator(false)

	req := entity.GenerationRequest{Topic: "量子计算", WordCount: 1000}
	content, err := o.Run(t.Context(), rc, req)
	require.NoError(t, err)

	assert.Empty(t, content.KnowledgeBase)
	assert.NotContains(t, content.MainContent, "## 术语表")

	// 关闭抽取时不发生任何术语相关调用
	for _, p := range client.Prompts() {
		assert.NotContains(t, p, "难点术语")
		assert.False(t, strings.HasPrefix(p, "术语："))
	}
}

func TestRun_EmptyTopic(t *testing.T) {
	client := &scriptedClient{fn: pipelineScript}
	rc := NewRunContext("t1", client, nil, nil)
	o := newTestOrchestrator(false)

	_, err := o.Run(t.Context(), rc, entity.GenerationRequest{Topic: "   "})
	assert.Error(t, err)
	assert.Equal(t, 0, client.CallCount())
}

func TestRun_DegradedNonStructuredClient(t *testing.T) {
	// 模型永远返回非结构化长文本：重写、规划走降级值，流程仍然完成
	longText := strings.Repeat("这是模型返回的普通文本。", 12)
	client := &scriptedClient{fn: func(string, llm.CallOptions) llm.Result {
		return okResult(longText)
	}}
	rc := NewRunContext("t1", client, nil, nil)
	o := newTestOrchestrator(false)

	req := entity.GenerationRequest{Topic: "量子计算", WordCount: 1000}
	content, err := o.Run(t.Context(), rc, req)
	require.NoError(t, err)

	// 重写失败时标题回落为原始主题
	assert.Equal(t, "量子计算", content.Title)
	assert.NotEmpty(t, content.MainContent)
}

func TestRun_MockClientEndToEnd(t *testing.T) {
	// 无凭证 mock 客户端也能跑通整条流水线
	client := llm.NewOpenAIClient(&config.LLMConfig{Model: "deepseek-chat"}, nil)
	rc := NewRunContext("t1", client, nil, nil)
	o := newTestOrchestrator(false)

	req := entity.GenerationRequest{Topic: "量子计算", WordCount: 1000, ExtractKeywords: true}
	content, err := o.Run(t.Context(), rc, req)
	require.NoError(t, err)
	assert.NotEmpty(t, content.MainContent)
	assert.Contains(t, content.MainContent, "mock response")
}

func TestRun_RateLimitedSectionsDegradeToPlaceholders(t *testing.T) {
	client := &scriptedClient{}
	client.fn = func(p string, opts llm.CallOptions) llm.Result {
		if strings.Contains(p, "当前章节：") {
			return llm.Result{Text: llm.SentinelRateLimited, Kind: llm.KindRateLimited}
		}
		return pipelineScript(p, opts)
	}
	rc := NewRunContext("t1", client, nil, nil)
	o := newTestOrchestrator(false)

	content, err := o.Run(t.Context(), rc, entity.GenerationRequest{Topic: "量子计算", WordCount: 1000})
	require.NoError(t, err)

	// 全部章节限流时每节落占位，哨兵文本不进入正文
	assert.NotContains(t, content.MainContent, llm.SentinelRateLimited)
	assert.Contains(t, content.MainContent, "生成失败")
}

func TestNormalizeWordCount(t *testing.T) {
	o := newTestOrchestrator(false)
	assert.Equal(t, 1000, o.normalizeWordCount(0))
	assert.Equal(t, 1000, o.normalizeWordCount(300))
	assert.Equal(t, 5000, o.normalizeWordCount(5000))
}

func TestAssembleBody_SkipsDuplicateHeaders(t *testing.T) {
	body := assembleBody([]Section{
		{Title: "概念定义", Content: "## 概念定义\n\n正文一"},
		{Title: "工作原理", Content: "没有标题的正文二"},
	})
	// 已带标题的章节不重复加标题
	assert.Equal(t, 1, strings.Count(body, "## 概念定义"))
	assert.Contains(t, body, "## 工作原理")
}

func TestPerItemDelta(t *testing.T) {
	assert.Equal(t, 3, perItemDelta(30, 10))
	assert.Equal(t, 1, perItemDelta(5, 10))
	assert.Equal(t, 30, perItemDelta(30, 0))
}
