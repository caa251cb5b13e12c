package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/prompt"
)

func newTestTerms() *TermPipeline {
	p := NewTermPipeline(prompt.NewRegistry())
	p.sleep = noSleep
	return p
}

func TestHeuristicTerms_DedupAndCap(t *testing.T) {
	content := "本文介绍 Quantum Computing 与 Neural Network。Quantum Computing 正在快速发展，Large Language Model 也是。"

	terms := heuristicTerms(content, 10)
	require.Len(t, terms, 3)
	assert.Equal(t, "Quantum Computing", terms[0].Term)
	assert.Equal(t, "Neural Network", terms[1].Term)
	assert.Equal(t, "Large Language Model", terms[2].Term)

	capped := heuristicTerms(content, 2)
	assert.Len(t, capped, 2)
}

func TestExtract_StructuredResponse(t *testing.T) {
	client := &scriptedClient{fn: func(string, llm.CallOptions) llm.Result {
		return okResult(`[{"term": "量子比特", "difficulty": "high"}, {"term": "量子纠缠", "difficulty": "medium"}]`)
	}}
	rc := NewRunContext("t1", client, nil, nil)
	pipe := newTestTerms()

	terms := pipe.Extract(t.Context(), rc, "量子计算", "正文", 8, llm.CallOptions{})
	require.Len(t, terms, 2)
	assert.Equal(t, "量子比特", terms[0].Term)
	assert.Equal(t, 1, client.CallCount())
}

func TestExtract_CapsAtMaxTerms(t *testing.T) {
	client := &scriptedClient{fn: func(string, llm.CallOptions) llm.Result {
		return okResult(`[{"term": "甲"}, {"term": "乙"}, {"term": "丙"}]`)
	}}
	rc := NewRunContext("t1", client, nil, nil)
	pipe := newTestTerms()

	terms := pipe.Extract(t.Context(), rc, "主题", "正文", 2, llm.CallOptions{})
	assert.Len(t, terms, 2)
}

func TestExtract_FallsBackToHeuristic(t *testing.T) {
	client := &scriptedClient{fn: func(string, llm.CallOptions) llm.Result {
		return okResult("这不是结构化输出")
	}}
	rc := NewRunContext("t1", client, nil, nil)
	pipe := newTestTerms()

	content := "正文中提到了 Quantum Error Correction 技术。"
	terms := pipe.Extract(t.Context(), rc, "量子计算", content, 8, llm.CallOptions{})

	// 三次尝试耗尽后回落到启发式抽取
	assert.Equal(t, 3, client.CallCount())
	require.Len(t, terms, 1)
	assert.Equal(t, "Quantum Error Correction", terms[0].Term)
}

func TestExpand_PerTermIsolation(t *testing.T) {
	terms := []ExtractedTerm{
		{Term: "量子比特", Difficulty: "high"},
		{Term: "量子纠缠", Difficulty: "medium"},
		{Term: "量子退火", Difficulty: "low"},
	}

	client := &scriptedClient{}
	client.fn = func(p string, _ llm.CallOptions) llm.Result {
		switch {
		case strings.Contains(p, "术语：量子比特"):
			return okResult(`{"definition": "量子信息的基本单位", "context": "核心概念", "related_terms": ["叠加态"]}`)
		case strings.Contains(p, "术语：量子纠缠"):
			// 限流降级的术语从产出中跳过
			return llm.Result{Text: llm.SentinelRateLimited, Kind: llm.KindRateLimited}
		default:
			// 持续失败的术语给占位释义
			return llm.Result{Text: "网络错误", Kind: llm.KindError}
		}
	}
	rc := NewRunContext("t1", client, nil, nil)
	pipe := newTestTerms()

	entries := pipe.Expand(t.Context(), rc, "量子计算", "正文", terms, llm.CallOptions{}, 2)

	require.Len(t, entries, 2)
	byTerm := map[string]string{}
	for _, e := range entries {
		byTerm[e.Term] = e.Definition
	}
	assert.Equal(t, "量子信息的基本单位", byTerm["量子比特"])
	assert.Contains(t, byTerm["量子退火"], "生成失败")
	_, dropped := byTerm["量子纠缠"]
	assert.False(t, dropped)
}

func TestExpand_UnstructuredDefinition(t *testing.T) {
	client := &scriptedClient{fn: func(string, llm.CallOptions) llm.Result {
		return okResult("这个术语指的是一种量子现象。")
	}}
	rc := NewRunContext("t1", client, nil, nil)
	pipe := newTestTerms()

	entries := pipe.Expand(t.Context(), rc, "量子计算", "正文", []ExtractedTerm{{Term: "退相干"}}, llm.CallOptions{}, 2)
	require.Len(t, entries, 1)
	assert.Equal(t, "这个术语指的是一种量子现象。", entries[0].Definition)
}

func TestExpand_NoTerms(t *testing.T) {
	client := &scriptedClient{fn: func(string, llm.CallOptions) llm.Result {
		t.Fatal("no calls expected")
		return llm.Result{}
	}}
	rc := NewRunContext("t1", client, nil, nil)
	pipe := newTestTerms()

	entries := pipe.Expand(t.Context(), rc, "主题", "正文", nil, llm.CallOptions{}, 2)
	assert.Empty(t, entries)
}
