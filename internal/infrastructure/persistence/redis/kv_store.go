package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"deepwrite-ai-api/internal/domain/repository"
)

const kvPrefix = "deepwrite:kv"

// KVStore 基于 Redis 的通用键值存储。
// 值以 JSON 序列化，按逻辑集合名分前缀。
type KVStore struct {
	client *Client
}

var _ repository.KVStore = (*KVStore)(nil)

// NewKVStore 创建键值存储
func NewKVStore(client *Client) *KVStore {
	return &KVStore{client: client}
}

func kvKey(collection, key string) string {
	return fmt.Sprintf("%s:%s:%s", kvPrefix, collection, key)
}

// Get 读取并反序列化到 v
func (s *KVStore) Get(ctx context.Context, collection, key string, v any) (bool, error) {
	ctx, span := tracer.Start(ctx, "kv.Get",
		trace.WithAttributes(attribute.String("kv.collection", collection)))
	defer span.End()

	data, err := s.client.rdb.Get(ctx, kvKey(collection, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		span.RecordError(err)
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// Set 序列化并写入
func (s *KVStore) Set(ctx context.Context, collection, key string, v any) error {
	ctx, span := tracer.Start(ctx, "kv.Set",
		trace.WithAttributes(attribute.String("kv.collection", collection)))
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, key, err)
	}

	return s.client.rdb.Set(ctx, kvKey(collection, key), data, 0).Err()
}

// Remove 删除键
func (s *KVStore) Remove(ctx context.Context, collection, key string) error {
	ctx, span := tracer.Start(ctx, "kv.Remove",
		trace.WithAttributes(attribute.String("kv.collection", collection)))
	defer span.End()

	return s.client.rdb.Del(ctx, kvKey(collection, key)).Err()
}

// Keys 列出集合内全部键（SCAN 遍历，避免阻塞）
func (s *KVStore) Keys(ctx context.Context, collection string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "kv.Keys",
		trace.WithAttributes(attribute.String("kv.collection", collection)))
	defer span.End()

	prefix := fmt.Sprintf("%s:%s:", kvPrefix, collection)
	pattern := prefix + "*"

	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
