package generation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/prompt"
)

func newTestSections() *SectionProcessor {
	writer := newTestWriter()
	p := NewSectionProcessor(prompt.NewRegistry(), writer)
	p.sleep = noSleep
	return p
}

// sectionBody 足够通过最小字数门槛的章节正文
func sectionBody(title string) string {
	return "## " + title + "\n\n" + strings.Repeat("这一节的正文内容。", 10)
}

func TestGenerateSections_OrderMatchesTitles(t *testing.T) {
	titles := DefaultSectionTitles

	client := &scriptedClient{}
	client.fn = func(p string, _ llm.CallOptions) llm.Result {
		for i, title := range titles {
			if strings.Contains(p, "当前章节："+title) {
				// 前面的章节完成更晚，验证结果与完成顺序无关
				time.Sleep(time.Duration(len(titles)-i) * time.Millisecond)
				return okResult(sectionBody(title))
			}
		}
		return okResult(sectionBody("未知"))
	}
	rc := NewRunContext("t1", client, nil, nil)
	proc := newTestSections()

	req := entity.GenerationRequest{Topic: "量子计算"}
	sections := proc.GenerateSections(t.Context(), rc, req, titles, "背景", 100, 3)

	require.Len(t, sections, len(titles))
	for i, sec := range sections {
		assert.Equal(t, titles[i], sec.Title)
		assert.False(t, sec.Fallback, "section %s", sec.Title)
		assert.Contains(t, sec.Content, titles[i])
	}
}

func TestGenerateSections_FailureIsolatedToOneSection(t *testing.T) {
	titles := DefaultSectionTitles
	failing := "行业案例"

	client := &scriptedClient{}
	client.fn = func(p string, _ llm.CallOptions) llm.Result {
		if strings.Contains(p, "当前章节："+failing) {
			// 持续低于最小字数，触发占位降级
			return okResult("太短")
		}
		for _, title := range titles {
			if strings.Contains(p, "当前章节："+title) {
				return okResult(sectionBody(title))
			}
		}
		return okResult(sectionBody("未知"))
	}
	rc := NewRunContext("t1", client, nil, nil)
	proc := newTestSections()

	sections := proc.GenerateSections(t.Context(), rc, entity.GenerationRequest{Topic: "量子计算"}, titles, "", 100, 3)

	require.Len(t, sections, len(titles))
	fallbacks := 0
	for _, sec := range sections {
		if sec.Fallback {
			fallbacks++
			assert.Equal(t, failing, sec.Title)
			assert.Contains(t, sec.Content, failing)
			assert.Contains(t, sec.Content, "生成失败")
		}
	}
	assert.Equal(t, 1, fallbacks)
}

func TestGenerateSections_ShortResultRetried(t *testing.T) {
	title := "概念定义"

	client := &scriptedClient{}
	client.fn = func(p string, _ llm.CallOptions) llm.Result {
		// 第一次截断，第二次完整
		if client.CallCount() == 1 {
			return okResult("截断")
		}
		return okResult(sectionBody(title))
	}
	rc := NewRunContext("t1", client, nil, nil)
	proc := newTestSections()

	sections := proc.GenerateSections(t.Context(), rc, entity.GenerationRequest{Topic: "量子计算"}, []string{title}, "", 100, 10)

	require.Len(t, sections, 1)
	assert.False(t, sections[0].Fallback)
	assert.Equal(t, 2, client.CallCount())
}

func TestGenerateSections_ProgressAdvancesPerSection(t *testing.T) {
	titles := []string{"概念定义", "工作原理"}

	client := &scriptedClient{}
	client.fn = func(p string, _ llm.CallOptions) llm.Result {
		for _, title := range titles {
			if strings.Contains(p, "当前章节："+title) {
				return okResult(sectionBody(title))
			}
		}
		return okResult(sectionBody("未知"))
	}

	tracker := NewTracker(100)
	rc := NewRunContext("t1", client, tracker, nil)
	proc := newTestSections()

	proc.GenerateSections(t.Context(), rc, entity.GenerationRequest{Topic: "量子计算"}, titles, "", 100, 15)
	assert.Equal(t, 30, tracker.Current())
}
