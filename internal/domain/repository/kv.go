package repository

import "context"

// KVStore 通用键值存储接口。
// 按逻辑集合名存取 JSON 序列化数据；不做 schema 迁移，
// 读到不兼容形状由调用方自行防御。
type KVStore interface {
	// Get 读取并反序列化到 v；键不存在返回 (false, nil)
	Get(ctx context.Context, collection, key string, v any) (bool, error)

	// Set 序列化并写入
	Set(ctx context.Context, collection, key string, v any) error

	// Remove 删除键，不存在视为成功
	Remove(ctx context.Context, collection, key string) error

	// Keys 列出集合内全部键
	Keys(ctx context.Context, collection string) ([]string, error)
}
