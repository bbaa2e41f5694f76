package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/taskstream-go/internal/adapters/streams"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/config"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/logging"
	"github.com/andrescamacho/taskstream-go/internal/worker"
	"github.com/andrescamacho/taskstream-go/internal/worker/tasks"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "taskstream-worker",
		Short: "Worker pool executing queued tasks and streaming their progress",
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

	log, err := streams.NewClient(&cfg.Streams)
	if err != nil {
		return err
	}
	defer log.Close()
	logger.Info("Event log connected")

	publisher := streams.NewPublisher(log, cfg.Streams.Stream, cfg.Streams.MaxLen)

	runner := worker.NewRunner(log, publisher, logger, worker.RunnerOptions{
		Queues:      splitQueues(cfg.Worker.Queues),
		Group:       cfg.Worker.Group,
		Concurrency: cfg.Worker.Concurrency,
		Count:       int64(cfg.Streams.Count),
		Block:       time.Duration(cfg.Streams.BlockMS) * time.Millisecond,
		ReclaimIdle: time.Duration(cfg.Streams.ReclaimIdleMS) * time.Millisecond,
	})

	runner.Register(task.TypeComputePi, tasks.ComputePi(cfg.Worker.PacingInterval))
	runner.Register(task.TypeDocumentAnalysis, tasks.DocumentAnalysis(cfg.Worker.DownloadDir, cfg.Worker.PacingInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	runner.Stop()
	return nil
}

func splitQueues(raw string) []string {
	var queues []string
	for _, q := range strings.Split(raw, ",") {
		if q = strings.TrimSpace(q); q != "" {
			queues = append(queues, q)
		}
	}
	return queues
}
