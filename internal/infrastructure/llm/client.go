// Package llm 提供大模型调用客户端
package llm

import (
	"context"

	"deepwrite-ai-api/internal/domain/entity"
)

// ResultKind 调用结果分类。
// 调用方依据 Kind 分支，而不是嗅探文本内容。
type ResultKind string

const (
	KindOK          ResultKind = "ok"
	KindMock        ResultKind = "mock"
	KindRateLimited ResultKind = "rate_limited"
	KindError       ResultKind = "error"
	KindTimeout     ResultKind = "timeout"
)

// SentinelRateLimited 限流重试耗尽后的降级返回文本。
// 调用方把它当作有效（但降级）输出处理，而不是异常。
const SentinelRateLimited = "rate limit, skipping"

// Result 单次调用的带标签结果。
// Text 永远有值：成功时是模型输出，失败时是描述性错误文本。
type Result struct {
	Text             string
	Kind             ResultKind
	RecordID         string
	PromptTokens     int
	CompletionTokens int
}

// Failed 网络/超时类失败（不重试，文本即错误描述）
func (r Result) Failed() bool {
	return r.Kind == KindError || r.Kind == KindTimeout
}

// Usable 可作为正常内容使用
func (r Result) Usable() bool {
	return r.Kind == KindOK || r.Kind == KindMock
}

// Skipped 限流降级，条目从产出中跳过
func (r Result) Skipped() bool {
	return r.Kind == KindRateLimited
}

// CallOptions 单次调用选项
type CallOptions struct {
	// System 系统提示词，可为空
	System string
	// Model 覆盖默认模型，可为空
	Model string
	// Temperature 覆盖默认温度，0 表示使用默认
	Temperature float64
	// MaxTokens 覆盖默认输出上限，0 表示使用默认
	MaxTokens int
	// TaskID 审计记录关联的任务 id，可为空
	TaskID string
}

// Client 大模型客户端接口。
// Call 从不返回 error：失败被分类进 Result.Kind，
// 描述性文本作为内容返回，由下游自行降级。
type Client interface {
	Call(ctx context.Context, prompt string, opts CallOptions) Result
}

// AuditSink 审计落库接口。
// Begin 在发起网络调用前写入 pending 记录，End 写入终态；
// 二者都是无条件副作用，失败只记日志不阻断调用。
type AuditSink interface {
	Begin(ctx context.Context, rec *entity.PromptRecord)
	End(ctx context.Context, rec *entity.PromptRecord)
}

// NopAuditSink 空审计实现，用于测试
type NopAuditSink struct{}

func (NopAuditSink) Begin(context.Context, *entity.PromptRecord) {}
func (NopAuditSink) End(context.Context, *entity.PromptRecord)   {}
