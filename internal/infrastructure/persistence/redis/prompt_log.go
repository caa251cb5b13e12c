package redis

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deepwrite-ai-api/internal/domain/entity"
	"deepwrite-ai-api/internal/domain/repository"
)

const (
	promptIndexKey  = "deepwrite:prompts:index"
	promptRecordKey = "deepwrite:prompts:rec:"
	// promptRecordTTL 记录键的保底过期时间；索引被 LTRIM 截断后，
	// 脱离索引的记录键靠 TTL 回收。
	promptRecordTTL = 7 * 24 * time.Hour
)

// PromptLog 基于 Redis 的提示词审计日志。
// 索引用定长列表维护（最新在前），记录本体按 id 单独存储以支持就地更新。
type PromptLog struct {
	client *Client
	cap    int64
}

var _ repository.PromptAuditLog = (*PromptLog)(nil)

// NewPromptLog 创建审计日志，cap 为保留的记录条数上限
func NewPromptLog(client *Client, cap int) *PromptLog {
	if cap <= 0 {
		cap = 500
	}
	return &PromptLog{client: client, cap: int64(cap)}
}

// Append 追加一条 pending 记录并截断索引到容量上限
func (l *PromptLog) Append(ctx context.Context, record *entity.PromptRecord) error {
	ctx, span := tracer.Start(ctx, "promptlog.Append",
		trace.WithAttributes(attribute.String("prompt.id", record.ID)))
	defer span.End()

	data, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return err
	}

	pipe := l.client.rdb.Pipeline()
	pipe.Set(ctx, promptRecordKey+record.ID, data, promptRecordTTL)
	pipe.LPush(ctx, promptIndexKey, record.ID)
	pipe.LTrim(ctx, promptIndexKey, 0, l.cap-1)
	_, err = pipe.Exec(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Update 覆盖写入终态记录
func (l *PromptLog) Update(ctx context.Context, record *entity.PromptRecord) error {
	ctx, span := tracer.Start(ctx, "promptlog.Update",
		trace.WithAttributes(attribute.String("prompt.id", record.ID)))
	defer span.End()

	data, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		return err
	}
	err = l.client.rdb.Set(ctx, promptRecordKey+record.ID, data, promptRecordTTL).Err()
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Recent 返回最近 n 条记录，最新在前
func (l *PromptLog) Recent(ctx context.Context, n int) ([]*entity.PromptRecord, error) {
	ctx, span := tracer.Start(ctx, "promptlog.Recent")
	defer span.End()

	if n <= 0 || int64(n) > l.cap {
		n = int(l.cap)
	}

	ids, err := l.client.rdb.LRange(ctx, promptIndexKey, 0, int64(n)-1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = promptRecordKey + id
	}

	values, err := l.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records := make([]*entity.PromptRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// 索引里的 id 对应的记录键已过期，跳过
			continue
		}
		var rec entity.PromptRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}
