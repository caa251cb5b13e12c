package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_AllTemplates(t *testing.T) {
	r := NewRegistry()
	data := map[string]any{
		"Topic":        "量子计算",
		"Prompt":       "写一篇量子计算的科普文章",
		"Query":        "量子计算 工作原理",
		"Context":      "背景资料",
		"Content":      "正文内容",
		"SectionTitle": "概念定义",
		"PrevTitle":    "",
		"NextTitle":    "工作原理",
		"Style":        "科普",
		"Audience":     "大众读者",
		"Term":         "量子比特",
		"MaxTerms":     8,
		"BasePrompt":   "写作要求",
		"Tail":         "",
		"Index":        1,
		"Total":        2,
		"IsLast":       false,
	}

	ids := []PromptID{
		PromptTopicRewriteV1,
		PromptSearchPlanV1,
		PromptSearchExecV1,
		PromptSummaryV1,
		PromptSectionGenV1,
		PromptLongformChunkV1,
		PromptTermExtractV1,
		PromptTermExpandV1,
		PromptContentValidateV1,
	}
	for _, id := range ids {
		system, user, err := r.Render(id, data)
		require.NoError(t, err, "render %s", id)
		assert.NotEmpty(t, system, "system prompt %s", id)
		assert.NotEmpty(t, user, "user prompt %s", id)
	}
}

func TestRender_SectionGenCarriesTitle(t *testing.T) {
	r := NewRegistry()
	_, user, err := r.Render(PromptSectionGenV1, map[string]any{
		"Topic":        "量子计算",
		"SectionTitle": "关键技术",
	})
	require.NoError(t, err)
	assert.Contains(t, user, "关键技术")
	assert.Contains(t, user, "量子计算")
}

func TestRender_LongformChunkTail(t *testing.T) {
	r := NewRegistry()
	_, user, err := r.Render(PromptLongformChunkV1, map[string]any{
		"BasePrompt": "写作要求",
		"Tail":       "上一段的结尾",
		"Index":      2,
		"Total":      3,
		"IsLast":     false,
	})
	require.NoError(t, err)
	assert.Contains(t, user, "上一段的结尾")
	assert.Contains(t, user, "第 2 段")
}

func TestRender_UnknownID(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Render(PromptID("nonexistent_v9"), nil)
	assert.Error(t, err)
}

func TestRender_CachedPair(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		_, _, err := r.Render(PromptSummaryV1, map[string]any{"Topic": "t", "Context": "c"})
		require.NoError(t, err)
	}
}
