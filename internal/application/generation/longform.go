package generation

import (
	"context"
	"strings"
	"time"

	apperrors "deepwrite-ai-api/pkg/errors"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"

	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/node"
	"deepwrite-ai-api/internal/workflow/prompt"
)

const (
	// perCallWordBudget 单次调用的产出字数预算，
	// 留了安全边际避免触达供应商的硬性输出上限。
	perCallWordBudget = 3000

	// continuationTailRunes 续写提示携带的上文尾部长度
	continuationTailRunes = 500

	// interChunkDelay 分块之间的节流间隔，避免突发打满供应商配额
	interChunkDelay = 1 * time.Second
)

// LongFormWriter 分块长文生成器。
// 目标字数超过单次调用预算时拆成多次顺序调用，
// 每次携带上一块的尾部保证行文衔接。
type LongFormWriter struct {
	prompts *prompt.Registry

	// sleep 可注入以便测试
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLongFormWriter 创建长文生成器
func NewLongFormWriter(prompts *prompt.Registry) *LongFormWriter {
	return &LongFormWriter{
		prompts: prompts,
		sleep:   waitCtx,
	}
}

// ChunkCount 目标字数对应的调用块数
func ChunkCount(desiredWords int) int {
	if desiredWords <= 0 {
		return 1
	}
	return (desiredWords + perCallWordBudget - 1) / perCallWordBudget
}

// GenerateLong 生成目标字数的长文。
// 块与块之间严格串行（后一块依赖前一块的尾部），任一块
// 网络/超时失败都会中止整次生成：长文不做部分拼装。
// 限流降级的块记日志后跳过，不混入正文。
func (w *LongFormWriter) GenerateLong(ctx context.Context, rc *RunContext, basePrompt string, desiredWords int, opts llm.CallOptions) (string, error) {
	chunks := ChunkCount(desiredWords)

	// 单块场景直接透传基础提示词，不包续写模板
	if chunks == 1 {
		res := rc.Call(ctx, "", basePrompt, opts)
		if res.Failed() {
			return "", apperrors.ErrLLMCallFailed.WithDetail(res.Text)
		}
		if res.Skipped() {
			metrics.StageFallbackTotal.WithLabelValues("longform", "degraded_value").Inc()
			logger.Warn(ctx, "longform chunk skipped due to rate limit")
			return "", apperrors.ErrEmptyContent.WithDetail(res.Text)
		}
		return res.Text, nil
	}

	var parts []string
	var tail string
	for i := 1; i <= chunks; i++ {
		system, user, err := w.prompts.Render(prompt.PromptLongformChunkV1, map[string]any{
			"BasePrompt": basePrompt,
			"Tail":       tail,
			"Index":      i,
			"Total":      chunks,
			"IsLast":     i == chunks,
		})
		if err != nil {
			return "", err
		}

		res := rc.Call(ctx, system, user, opts)
		if res.Failed() {
			return "", apperrors.ErrLLMCallFailed.WithDetail(res.Text)
		}
		if res.Skipped() {
			metrics.StageFallbackTotal.WithLabelValues("longform", "degraded_value").Inc()
			logger.Warn(ctx, "longform chunk skipped due to rate limit", "chunk", i, "total", chunks)
		} else {
			parts = append(parts, res.Text)
			tail = node.TailByRunes(res.Text, continuationTailRunes)
		}

		if i < chunks {
			if err := w.sleep(ctx, interChunkDelay); err != nil {
				return "", err
			}
		}
	}

	out := strings.Join(parts, " ")
	if strings.TrimSpace(out) == "" {
		return "", apperrors.ErrEmptyContent
	}
	return out, nil
}
