package generation

import (
	"context"
	"sync"
	"time"

	"deepwrite-ai-api/internal/infrastructure/llm"
)

// scriptedClient 按提示词内容分发响应的测试客户端
type scriptedClient struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string, opts llm.CallOptions) llm.Result
}

func (c *scriptedClient) Call(_ context.Context, prompt string, opts llm.CallOptions) llm.Result {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	return c.fn(prompt, opts)
}

// Prompts 已发出的提示词快照
func (c *scriptedClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}

// CallCount 总调用次数
func (c *scriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func okResult(text string) llm.Result {
	return llm.Result{Text: text, Kind: llm.KindOK}
}

func noSleep(context.Context, time.Duration) error { return nil }
