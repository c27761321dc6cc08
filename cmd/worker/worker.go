package main

import (
	"context"
	"log"
	"time"

	"chatpdf-backend/internal/ai"
	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/logger"
	"chatpdf-backend/internal/queue"
	"chatpdf-backend/internal/store"
	"chatpdf-backend/internal/telemetry"
	"chatpdf-backend/internal/vector"
	"chatpdf-backend/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	st := store.New(mongoClient.Database(cfg.DBName))

	index, err := vector.New(cfg)
	if err != nil {
		log.Fatal("Failed to initialize vector index:", err)
	}

	embedder, err := ai.NewEmbedder(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
	}

	indexer := services.NewIndexer(st, embedder, index, metrics, cfg)
	processor := queue.NewTaskProcessor(indexer)

	// Watchdog fails documents abandoned mid-pipeline by a crashed worker
	watchdog, err := services.StartWatchdog(st, time.Duration(cfg.StuckAfter)*time.Second)
	if err != nil {
		log.Fatal("Failed to start watchdog:", err)
	}
	defer watchdog.Stop()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexDocument, processor.HandleIndexDocument)

	logger.Info("starting worker",
		"concurrency", 20,
		"redis", redisOpt.Addr,
		"vector_provider", cfg.VectorProvider)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
