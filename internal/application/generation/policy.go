package generation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/workflow/node"
)

// totalProgressBudget 一次运行的总进度预算
const totalProgressBudget = 100

// RetryPolicy 阶段级重试与降级策略。
// 同一套 重试 -> 占位 -> 串行兜底 的三层模式在分段、搜索、
// 术语扩展阶段复用，策略参数集中在这里而不是散落的内联循环。
type RetryPolicy struct {
	// MaxAttempts 单个条目的最大尝试次数
	MaxAttempts int
	// Delay 第 attempt 次失败后的等待时间（attempt 从 1 开始）
	Delay func(attempt int) time.Duration
	// MinWords 结果的最小字数，低于视为截断并重试
	MinWords int
}

// DefaultPolicy 默认三次尝试、固定 2s 间隔
func DefaultPolicy(minWords int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       func(int) time.Duration { return 2 * time.Second },
		MinWords:    minWords,
	}
}

// Execute 按策略执行 fn 直到产出可用且达到长度门槛的结果。
// 返回最后一次结果与是否成功；限流降级结果视为最终态，不再重试。
func (p RetryPolicy) Execute(ctx context.Context, sleep func(ctx context.Context, d time.Duration) error, fn func(ctx context.Context) llm.Result) (llm.Result, bool) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last llm.Result
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn(ctx)
		if last.Skipped() {
			return last, false
		}
		if last.Usable() && (p.MinWords <= 0 || node.CountWords(last.Text) >= p.MinWords) {
			return last, true
		}
		if attempt < attempts && p.Delay != nil {
			if err := sleep(ctx, p.Delay(attempt)); err != nil {
				return last, false
			}
		}
	}
	return last, false
}

// ExecuteText 同 Execute，但针对返回文本的生成函数（如分块长文）。
// 错误与低于长度门槛都按失败尝试处理。
func (p RetryPolicy) ExecuteText(ctx context.Context, sleep func(ctx context.Context, d time.Duration) error, fn func(ctx context.Context) (string, error)) (string, bool) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var last string
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := fn(ctx)
		if err == nil && (p.MinWords <= 0 || node.CountWords(text) >= p.MinWords) {
			return text, true
		}
		if err == nil {
			last = text
		}
		if attempt < attempts && p.Delay != nil {
			if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
				return last, false
			}
		}
	}
	return last, false
}

type indexed[T any] struct {
	index int
	value T
}

// fanOut 并发执行 n 个子任务并收集全部结果。
// 完成顺序不确定，收集完成后按原始序号重排再返回，
// 保证最终文档顺序与并发完成顺序无关。
// 子任务 panic 被捕获并转为 error，调用方据此退化为串行执行。
func fanOut[T any](ctx context.Context, n int, worker func(ctx context.Context, i int) T) ([]T, error) {
	if n == 0 {
		return nil, nil
	}

	ch := make(chan indexed[T], n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker %d panicked: %v", i, r)
				}
			}()
			ch <- indexed[T]{index: i, value: worker(gctx, i)}
			return nil
		})
	}

	err := g.Wait()
	close(ch)

	collected := make([]indexed[T], 0, n)
	for item := range ch {
		collected = append(collected, item)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})
	out := make([]T, len(collected))
	for i, item := range collected {
		out[i] = item.value
	}
	return out, nil
}

// waitCtx 可被 context 取消的睡眠
func waitCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
