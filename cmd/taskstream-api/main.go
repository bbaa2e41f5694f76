package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/taskstream-go/internal/adapters/broadcast"
	"github.com/andrescamacho/taskstream-go/internal/adapters/httpapi"
	"github.com/andrescamacho/taskstream-go/internal/adapters/persistence"
	"github.com/andrescamacho/taskstream-go/internal/adapters/queue"
	"github.com/andrescamacho/taskstream-go/internal/adapters/streams"
	"github.com/andrescamacho/taskstream-go/internal/application/tasks"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/config"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/database"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/logging"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "taskstream-api",
		Short: "Task execution service: HTTP gateway, event consumer and live broadcaster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&cfg.Logging)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	logger.Info("Database connected")

	log, err := streams.NewClient(&cfg.Streams)
	if err != nil {
		return err
	}
	defer log.Close()
	logger.Info("Event log connected")

	storage := persistence.NewGormTaskRepository(db)
	hub := broadcast.NewHub(logger)
	taskQueue := queue.NewStreamTaskQueue(log, queue.DefaultRoutes(), logger)
	service := tasks.NewTaskService(storage, taskQueue, logger)

	handler := tasks.NewTaskEventHandler(storage, hub, logger, tasks.TaskEventHandlerOptions{
		StatusDelta: cfg.Events.StatusDelta,
		ResultTTL:   time.Duration(cfg.Events.ResultTTLSeconds) * time.Second,
	})
	router := tasks.NewTaskEventRouter(handler)

	consumer := streams.NewConsumer(log, router, logger, streams.ConsumerOptions{
		Stream:         cfg.Streams.Stream,
		Group:          cfg.Streams.Group,
		Consumer:       cfg.Streams.Consumer,
		Count:          int64(cfg.Streams.Count),
		Block:          time.Duration(cfg.Streams.BlockMS) * time.Millisecond,
		ReclaimPending: cfg.Streams.ReclaimPending,
		ReclaimIdle:    time.Duration(cfg.Streams.ReclaimIdleMS) * time.Millisecond,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Stop()

	server := httpapi.NewServer(&cfg.Server, service, hub, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
