// main package for the one-shot video factory CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"

	"github.com/MatheusMDi/ia-video-generate/internal/app"
	"github.com/MatheusMDi/ia-video-generate/internal/config"
)

var errPipelineFailed = errors.New("pipeline run failed")

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "video-factory.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	settingsPath := flag.String("settings", "config/settings.toml", "path to the settings file")
	channelsPath := flag.String("channels", "config/channels.json", "path to the channels file")
	channelName := flag.String("channel", "", "channel to generate a video for")
	topic := flag.String("topic", "", "topic of the generated video")
	flag.Parse()

	// A missing .env file is fine; secrets may come from the process
	// environment directly.
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

	result := application.Orchestrator.Run(context.Background(), *channelName, *topic)
	if !result.Succeeded() {
		log.Error(
			"Run %s failed at stage %s (%s): %s",
			result.RunID, result.Failure.Stage, result.Failure.Kind, result.Failure.Message,
		)

		return fmt.Errorf(
			"%w: stage %s, kind %s",
			errPipelineFailed, result.Failure.Stage, result.Failure.Kind,
		)
	}

	log.System("Run %s complete. Video saved at %s", result.RunID, result.VideoPath)
	fmt.Println(result.VideoPath)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "video-factory exited with error: %v\n", err)
		os.Exit(1)
	}
}
