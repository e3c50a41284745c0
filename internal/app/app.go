// Package app wires the pipeline orchestrator from loaded configuration. It
// is shared by the one-shot CLI and the NATS worker binary.
package app

import (
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/MatheusMDi/ia-video-generate/internal/assets"
	"github.com/MatheusMDi/ia-video-generate/internal/channel"
	"github.com/MatheusMDi/ia-video-generate/internal/config"
	"github.com/MatheusMDi/ia-video-generate/internal/core"
	"github.com/MatheusMDi/ia-video-generate/internal/pipeline"
	"github.com/MatheusMDi/ia-video-generate/internal/provider"
	"github.com/MatheusMDi/ia-video-generate/internal/script"
	"github.com/MatheusMDi/ia-video-generate/internal/tts"
	"github.com/MatheusMDi/ia-video-generate/internal/video"
)

// App bundles the orchestrator with the resources it owns.
type App struct {
	Orchestrator *pipeline.Orchestrator
	Manager      *assets.Manager

	pool *tts.Pool
}

// Build assembles the full pipeline from configuration. The blocking
// ElevenLabs variant is wired only when its API key is present; the
// cooperative Edge variant is always available.
func Build(cfg *config.Config, channels []channel.Config, log *logger.Logger) (*App, error) {
	registry, err := channel.NewRegistry(channels)
	if err != nil {
		return nil, fmt.Errorf("failed to build channel registry: %w", err)
	}

	selector, err := provider.NewSelector(registry, cfg.TTS.ActiveProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider selector: %w", err)
	}

	manager := assets.NewManager(cfg.Paths.AssetsDir, cfg.Paths.OutputDir, cfg.Paths.TempDir, log)

	err = manager.EnsureDirectories()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace directories: %w", err)
	}

	synthesizers, pool, err := buildSynthesizers(cfg, manager)
	if err != nil {
		return nil, err
	}

	generator, err := script.NewOpenAIGenerator(script.GeneratorConfig{
		APIKey:            cfg.Secrets.OpenAIAPIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		MaxPromptChars:    cfg.LLM.MaxPromptChars,
		CacheTTL:          time.Duration(cfg.LLM.CacheTTLSeconds) * time.Second,
		CachePath:         cfg.LLM.CachePath,
		RPMLimit:          cfg.LLM.RPMLimit,
		TPMLimit:          cfg.LLM.TPMLimit,
		DailyRequestLimit: cfg.LLM.DailyRequestLimit,
		ConcurrencyLimit:  cfg.LLM.ConcurrencyLimit,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build script generator: %w", err)
	}

	resolver, err := buildResolver(cfg, manager, log)
	if err != nil {
		return nil, err
	}

	composer, err := buildComposer(cfg, log)
	if err != nil {
		return nil, err
	}

	orchestrator, err := pipeline.NewOrchestrator(pipeline.Dependencies{
		Selector:     selector,
		Synthesizers: synthesizers,
		Scripts:      generator,
		Assets:       resolver,
		Composer:     composer,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BackoffBase: time.Duration(cfg.Retry.BackoffBaseMS) * time.Millisecond,
		},
		Log: log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	return &App{
		Orchestrator: orchestrator,
		Manager:      manager,
		pool:         pool,
	}, nil
}

// Close releases the worker pool reserved for blocking synthesis calls.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func buildSynthesizers(
	cfg *config.Config,
	manager *assets.Manager,
) (map[provider.ID]core.SpeechSynthesizer, *tts.Pool, error) {
	synthesizers := map[provider.ID]core.SpeechSynthesizer{
		provider.Edge: tts.NewEdge(cfg.TTS.Edge.Endpoint, manager.TempDir()),
	}

	if cfg.Secrets.ElevenLabsAPIKey == "" {
		return synthesizers, nil, nil
	}

	elevenLabs, err := tts.NewElevenLabs(
		cfg.TTS.ElevenLabs.BaseURL,
		cfg.Secrets.ElevenLabsAPIKey,
		cfg.TTS.ElevenLabs.ModelID,
		manager.TempDir(),
		time.Duration(cfg.TTS.ElevenLabs.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build elevenlabs synthesizer: %w", err)
	}

	pool := tts.NewPool(elevenLabs, cfg.TTS.WorkerPoolSize)
	synthesizers[provider.ElevenLabs] = pool

	return synthesizers, pool, nil
}

func buildResolver(
	cfg *config.Config,
	manager *assets.Manager,
	log *logger.Logger,
) (*assets.Resolver, error) {
	var pexelsClient *assets.PexelsClient

	if cfg.Assets.AutoGenerate && cfg.Secrets.PexelsAPIKey != "" {
		client, err := assets.NewPexelsClient("", cfg.Secrets.PexelsAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to build pexels client: %w", err)
		}

		pexelsClient = client
	}

	return assets.NewResolver(manager, pexelsClient, assets.ResolverConfig{
		AutoGenerate: cfg.Assets.AutoGenerate,
		Theme:        cfg.Assets.Theme,
		PerPage:      cfg.Assets.PexelsPerPage,
	}, log), nil
}

func buildComposer(cfg *config.Config, log *logger.Logger) (*video.FFmpegComposer, error) {
	width, height, err := config.ParseResolution(cfg.Video.Resolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse video resolution: %w", err)
	}

	return video.NewFFmpegComposer(video.ComposerConfig{
		Width:         width,
		Height:        height,
		FPS:           cfg.Video.FPS,
		ImageDuration: time.Duration(cfg.Video.ImageDurationSeconds) * time.Second,
	}, cfg.Paths.OutputDir, log), nil
}
