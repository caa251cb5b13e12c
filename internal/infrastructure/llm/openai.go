package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("llm")

// backoffBase 限流退避基数：第 n 次重试等待 2^n 秒
const backoffBase = 2 * time.Second

// OpenAIClient 基于 openai-go SDK 的聊天补全客户端。
// 未配置 api_key 时进入 mock 模式，所有调用返回确定性占位响应，
// 让整条流水线在无凭证环境下仍可端到端运行。
type OpenAIClient struct {
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	maxRetries  int
	limiter     *rate.Limiter
	audit       AuditSink
	reqOpts     []option.RequestOption
	mock        bool

	// sleep 与 complete 可注入以便测试
	sleep    func(ctx context.Context, d time.Duration) error
	complete func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// NewOpenAIClient 创建客户端
func NewOpenAIClient(cfg *config.LLMConfig, audit AuditSink) *OpenAIClient {
	if audit == nil {
		audit = NopAuditSink{}
	}

	c := &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		maxRetries:  cfg.MaxRetries,
		audit:       audit,
		mock:        cfg.APIKey == "",
		sleep:       sleepCtx,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Minute
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if cfg.CallsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.CallsPerMinute)), cfg.CallsPerMinute)
	}
	if !c.mock {
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		c.reqOpts = opts
	}
	c.complete = func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		client := openai.NewClient(c.reqOpts...)
		return client.Chat.Completions.New(ctx, params)
	}
	return c
}

// Call 执行一次模型调用。
// 限流错误按 2^n 秒指数退避重试，最多 maxRetries 次，
// 耗尽后返回降级哨兵值；其它错误不重试，错误描述作为文本返回。
func (c *OpenAIClient) Call(ctx context.Context, prompt string, opts CallOptions) Result {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	ctx, span := tracer.Start(ctx, "llm.Call",
		trace.WithAttributes(attribute.String("llm.model", model)))
	defer span.End()

	// 审计记录先行，无论调用成败都会落终态
	rec := entity.NewPromptRecord(opts.TaskID, auditPrompt(opts.System, prompt), model)
	c.audit.Begin(ctx, rec)

	start := time.Now()
	res := c.callWithRetry(ctx, prompt, model, opts)
	res.RecordID = rec.ID

	metrics.LLMCallTotal.WithLabelValues(model, string(res.Kind)).Inc()
	metrics.LLMCallDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if res.PromptTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(res.PromptTokens))
	}
	if res.CompletionTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(res.CompletionTokens))
	}
	span.SetAttributes(attribute.String("llm.result_kind", string(res.Kind)))

	rec.Finalize(promptStatus(res.Kind), entity.TruncateForAudit(res.Text))
	c.audit.End(ctx, rec)

	return res
}

func (c *OpenAIClient) callWithRetry(ctx context.Context, prompt, model string, opts CallOptions) Result {
	if c.mock {
		return mockResult(prompt)
	}

	for attempt := 0; ; attempt++ {
		res, rateLimited := c.callOnce(ctx, prompt, model, opts)
		if !rateLimited {
			return res
		}
		if attempt >= c.maxRetries {
			logger.Warn(ctx, "rate limit retries exhausted, skipping", "model", model, "attempts", attempt+1)
			return Result{Text: SentinelRateLimited, Kind: KindRateLimited}
		}

		delay := backoffBase << attempt // 2s, 4s, 8s
		metrics.LLMRetryTotal.WithLabelValues(model).Inc()
		logger.Warn(ctx, "rate limited, backing off", "model", model, "attempt", attempt+1, "delay", delay.String())
		if err := c.sleep(ctx, delay); err != nil {
			return Result{Text: fmt.Sprintf("调用被取消: %v", err), Kind: KindError}
		}
	}
}

// callOnce 单次网络调用。第二个返回值表示是否命中限流（需要重试）。
func (c *OpenAIClient) callOnce(ctx context.Context, prompt, model string, opts CallOptions) (Result, bool) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{Text: fmt.Sprintf("调用被取消: %v", err), Kind: KindError}, false
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if opts.System != "" {
		msgs = append(msgs, openai.SystemMessage(opts.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if t := pick(opts.Temperature, c.temperature); t > 0 {
		params.Temperature = openai.Float(t)
	}
	if n := pickInt(opts.MaxTokens, c.maxTokens); n > 0 {
		params.MaxTokens = openai.Int(int64(n))
	}

	resp, err := c.complete(callCtx, params)
	if err != nil {
		if isRateLimitErr(err) {
			return Result{}, true
		}
		if isTimeoutErr(err) {
			return Result{Text: fmt.Sprintf("模型调用超时（上限 %s）: %v", c.timeout, err), Kind: KindTimeout}, false
		}
		return Result{Text: fmt.Sprintf("模型调用失败: %v", err), Kind: KindError}, false
	}

	if len(resp.Choices) == 0 {
		return Result{Text: "模型返回了空响应（无 choices）", Kind: KindError}, false
	}

	res := Result{
		Text: resp.Choices[0].Message.Content,
		Kind: KindOK,
	}
	res.PromptTokens = int(resp.Usage.PromptTokens)
	res.CompletionTokens = int(resp.Usage.CompletionTokens)
	return res, false
}

// isRateLimitErr 识别 HTTP 429 与供应商限流错误码
func isRateLimitErr(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit")
}

// isTimeoutErr 超时与其它网络错误需要区分上报
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}

func promptStatus(kind ResultKind) entity.PromptStatus {
	switch kind {
	case KindOK, KindMock:
		return entity.PromptStatusSuccess
	case KindRateLimited:
		return entity.PromptStatusRateLimited
	case KindTimeout:
		return entity.PromptStatusTimeout
	default:
		return entity.PromptStatusError
	}
}

func auditPrompt(system, prompt string) string {
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}

func pick(override, def float64) float64 {
	if override > 0 {
		return override
	}
	return def
}

func pickInt(override, def int) int {
	if override > 0 {
		return override
	}
	return def
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
