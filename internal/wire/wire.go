// Package wire 提供依赖注入装配
package wire

import (
	"context"

	"deepwrite-ai-api/internal/application/generation"
	"deepwrite-ai-api/internal/application/task"
	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/domain/repository"
	"deepwrite-ai-api/internal/infrastructure/llm"
	"deepwrite-ai-api/internal/infrastructure/messaging"
	"deepwrite-ai-api/internal/infrastructure/persistence/file"
	"deepwrite-ai-api/internal/infrastructure/persistence/redis"
	"deepwrite-ai-api/internal/infrastructure/persistence/taskstore"
	"deepwrite-ai-api/internal/interfaces/http/handler"
	"deepwrite-ai-api/internal/interfaces/http/middleware"
	"deepwrite-ai-api/internal/interfaces/http/router"
	"deepwrite-ai-api/internal/workflow/prompt"
)

// Core 两个服务共用的核心依赖
type Core struct {
	RedisClient *redis.Client
	KVStore     repository.KVStore
	PromptLog   repository.PromptAuditLog
	TaskRepo    repository.TaskRepository
	History     repository.HistoryStore
	LLMClient   llm.Client
	Manager     *task.Manager
	Producer    *messaging.Producer
}

// BuildCore 装配核心依赖
func BuildCore(ctx context.Context, cfg *config.Config) (*Core, func(), error) {
	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = redisClient.Close()
	}

	kv := redis.NewKVStore(redisClient)
	promptLog := redis.NewPromptLog(redisClient, cfg.Generation.AuditLogCap)
	taskRepo := taskstore.NewTaskRepository(kv)

	history, err := file.NewHistoryStore(cfg.History.DataDir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	client := llm.NewOpenAIClient(&cfg.LLM, llm.NewRepoAuditSink(promptLog))

	prompts := prompt.NewRegistry()
	writer := generation.NewLongFormWriter(prompts)
	searcher := generation.NewSearcher(prompts, kv)
	sections := generation.NewSectionProcessor(prompts, writer)
	terms := generation.NewTermPipeline(prompts)
	orch := generation.NewOrchestrator(prompts, searcher, sections, terms,
		cfg.Generation, cfg.Features.Validation.Enabled)

	manager := task.NewManager(taskRepo, client, orch)

	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))

	return &Core{
		RedisClient: redisClient,
		KVStore:     kv,
		PromptLog:   promptLog,
		TaskRepo:    taskRepo,
		History:     history,
		LLMClient:   client,
		Manager:     manager,
		Producer:    producer,
	}, cleanup, nil
}

// BuildRouter 装配 HTTP 路由器
func BuildRouter(cfg *config.Config, core *Core) *router.Router {
	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(core.RedisClient, cfg.App.Version),
		Task:      handler.NewTaskHandler(core.Manager, core.Producer, cfg.Features),
		History:   handler.NewHistoryHandler(core.History),
		Prompt:    handler.NewPromptHandler(core.PromptLog),
		RateLimit: middleware.NewRateLimitMiddleware(cfg.Security.RateLimit, core.RedisClient.Redis()),
	}
	return router.New(cfg, handlers)
}

// BuildConsumer 装配后台 worker 的消息消费者
func BuildConsumer(cfg *config.Config, core *Core, consumerName string) *messaging.Consumer {
	return messaging.NewConsumer(core.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamArticleGen,
		Group:        messaging.ConsumerGroupArticleWorker,
		ConsumerName: consumerName,
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})
}
