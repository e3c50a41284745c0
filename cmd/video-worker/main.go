// main package for the NATS video job worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/MatheusMDi/ia-video-generate/internal/app"
	"github.com/MatheusMDi/ia-video-generate/internal/config"
	"github.com/MatheusMDi/ia-video-generate/internal/objectstore"
	"github.com/MatheusMDi/ia-video-generate/internal/worker"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "video-worker.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	settingsPath := flag.String("settings", "config/settings.toml", "path to the settings file")
	channelsPath := flag.String("channels", "config/channels.json", "path to the channels file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	channels, err := config.LoadChannels(*channelsPath)
	if err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	application, err := app.Build(cfg, channels, log)
	if err != nil {
		log.Error("Failed to build pipeline: %v", err)

		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer application.Close()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.VideoObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection, cfg.NATS.JobSubject, store, application.Orchestrator, log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.System("Video worker started. Listening for jobs on subject: %s", cfg.NATS.JobSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "video-worker exited with error: %v\n", err)
		os.Exit(1)
	}
}
