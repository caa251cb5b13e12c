// Package main 后台生成 worker 入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deepwrite-ai-api/internal/config"
	"deepwrite-ai-api/internal/infrastructure/messaging"
	"deepwrite-ai-api/internal/wire"
	"deepwrite-ai-api/pkg/logger"
	"deepwrite-ai-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.FromContext(ctx)
	log.Info("starting task-worker",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name + "-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error(ctx, "failed to shutdown tracer", err)
		}
	}()

	core, cleanup, err := wire.BuildCore(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	consumerName := workerName()
	consumer := wire.BuildConsumer(cfg, core, consumerName)

	consumer.RegisterHandler(messaging.MsgTypeArticleGen, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.GenerationTaskMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("invalid generation task payload: %w", err)
		}

		logger.Info(ctx, "generation task received", "task_id", payload.TaskID)
		if _, err := core.Manager.RunTask(ctx, payload.TaskID); err != nil {
			return fmt.Errorf("generation task %s failed: %w", payload.TaskID, err)
		}
		return nil
	})

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go consumer.MonitorDLQ(ctx, 100)

	log.Info("task-worker started", "consumer", consumerName)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	consumer.Stop()
	cancel()

	// 给正在执行的任务留出落盘时间
	time.Sleep(2 * time.Second)
	log.Info("worker exited")
}

// workerName 消费者名称，主机名加进程号保证组内唯一
func workerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
