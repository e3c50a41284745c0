// Package config provides the configuration structures for the video
// factory: a TOML settings file, a JSON channels file, and secrets from the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/MatheusMDi/ia-video-generate/internal/channel"
)

// Environment variable names for secrets.
const (
	EnvElevenLabsAPIKey = "ELEVENLABS_API_KEY"
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvPexelsAPIKey     = "PEXELS_API_KEY"
)

// Configuration defaults.
const (
	defaultActiveProvider  = "edge"
	defaultPoolSize        = 4
	defaultRetryAttempts   = 3
	defaultBackoffBaseMS   = 500
	defaultTimeoutSeconds  = 120
	defaultResolution      = "1080p"
	defaultFPS             = 30
	defaultImageDuration   = 3
	defaultPexelsPerPage   = 6
	defaultMaxPromptChars  = 2000
	defaultCacheTTLSeconds = 3600
	defaultRPMLimit        = 3
	defaultTPMLimit        = 1000
	defaultLLMConcurrency  = 1
	defaultAssetsDir       = "./assets"
	defaultOutputDir       = "./output"
	defaultTempDir         = "./temp"
	defaultLogsDir         = "./logs"
	defaultNATSJobSubject  = "video.job.requested"
	defaultNATSVideoBucket = "RENDERED_VIDEOS"
)

// ErrUnsupportedResolution indicates a resolution value that is neither a
// known preset nor a WIDTHxHEIGHT pair.
var ErrUnsupportedResolution = errors.New("unsupported resolution")

// TTSConfig selects the active provider and configures both variants.
type TTSConfig struct {
	ActiveProvider string           `toml:"active_provider"`
	WorkerPoolSize int              `toml:"worker_pool_size"`
	Edge           EdgeConfig       `toml:"edge"`
	ElevenLabs     ElevenLabsConfig `toml:"elevenlabs"`
}

// EdgeConfig holds the cooperative provider settings.
type EdgeConfig struct {
	Endpoint string `toml:"endpoint"`
}

// ElevenLabsConfig holds the blocking provider settings.
type ElevenLabsConfig struct {
	BaseURL        string `toml:"base_url"`
	ModelID        string `toml:"model_id"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLMConfig holds the script generation settings. Temperature is a pointer
// so an explicit zero stays distinguishable from unset.
type LLMConfig struct {
	BaseURL           string   `toml:"base_url"`
	Model             string   `toml:"model"`
	Temperature       *float64 `toml:"temperature"`
	MaxPromptChars    int      `toml:"max_prompt_chars"`
	CacheTTLSeconds   int      `toml:"cache_ttl_seconds"`
	CachePath         string   `toml:"cache_path"`
	RPMLimit          int      `toml:"rpm_limit"`
	TPMLimit          int      `toml:"tpm_limit"`
	DailyRequestLimit int      `toml:"daily_request_limit"`
	ConcurrencyLimit  int      `toml:"concurrency_limit"`
}

// RetryConfig bounds the per-stage retry policy.
type RetryConfig struct {
	MaxAttempts   int `toml:"max_attempts"`
	BackoffBaseMS int `toml:"backoff_base_ms"`
}

// PathsConfig holds the workspace directories.
type PathsConfig struct {
	AssetsDir   string `toml:"assets_dir"`
	OutputDir   string `toml:"output_dir"`
	TempDir     string `toml:"temp_dir"`
	BaseLogsDir string `toml:"base_logs_dir"`
}

// VideoConfig holds the render parameters.
type VideoConfig struct {
	Resolution           string `toml:"resolution"`
	FPS                  int    `toml:"fps"`
	ImageDurationSeconds int    `toml:"image_duration_seconds"`
}

// AssetsConfig controls stock photo auto-generation.
type AssetsConfig struct {
	AutoGenerate  bool   `toml:"auto_generate"`
	Theme         string `toml:"theme"`
	PexelsPerPage int    `toml:"pexels_per_page"`
}

// NATSConfig holds the job worker settings.
type NATSConfig struct {
	URL                    string `toml:"url"`
	JobSubject             string `toml:"job_subject"`
	VideoObjectStoreBucket string `toml:"video_object_store_bucket"`
}

// Secrets holds keys loaded from the environment, never from the settings
// file.
type Secrets struct {
	ElevenLabsAPIKey string
	OpenAIAPIKey     string
	PexelsAPIKey     string
}

// Config is the root configuration structure.
type Config struct {
	TTS     TTSConfig    `toml:"tts"`
	LLM     LLMConfig    `toml:"llm"`
	Retry   RetryConfig  `toml:"retry"`
	Paths   PathsConfig  `toml:"paths"`
	Video   VideoConfig  `toml:"video"`
	Assets  AssetsConfig `toml:"assets"`
	NATS    NATSConfig   `toml:"nats"`
	Secrets Secrets      `toml:"-"`
}

// Load reads the TOML settings file, applies defaults, and pulls secrets from
// the environment.
func Load(settingsPath string) (*Config, error) {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %q: %w", settingsPath, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %q: %w", settingsPath, err)
	}

	cfg.applyDefaults()
	cfg.loadSecrets()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TTS.ActiveProvider == "" {
		c.TTS.ActiveProvider = defaultActiveProvider
	}

	if c.TTS.WorkerPoolSize < 1 {
		c.TTS.WorkerPoolSize = defaultPoolSize
	}

	if c.TTS.ElevenLabs.TimeoutSeconds < 1 {
		c.TTS.ElevenLabs.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.LLM.MaxPromptChars < 1 {
		c.LLM.MaxPromptChars = defaultMaxPromptChars
	}

	if c.LLM.CacheTTLSeconds < 1 {
		c.LLM.CacheTTLSeconds = defaultCacheTTLSeconds
	}

	if c.LLM.RPMLimit < 1 {
		c.LLM.RPMLimit = defaultRPMLimit
	}

	if c.LLM.TPMLimit < 1 {
		c.LLM.TPMLimit = defaultTPMLimit
	}

	if c.LLM.ConcurrencyLimit < 1 {
		c.LLM.ConcurrencyLimit = defaultLLMConcurrency
	}

	if c.LLM.DailyRequestLimit < 0 {
		c.LLM.DailyRequestLimit = 0
	}

	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = defaultRetryAttempts
	}

	if c.Retry.BackoffBaseMS < 1 {
		c.Retry.BackoffBaseMS = defaultBackoffBaseMS
	}

	if c.Paths.AssetsDir == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}

	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = defaultOutputDir
	}

	if c.Paths.TempDir == "" {
		c.Paths.TempDir = defaultTempDir
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = defaultLogsDir
	}

	if c.Video.Resolution == "" {
		c.Video.Resolution = defaultResolution
	}

	if c.Video.FPS < 1 {
		c.Video.FPS = defaultFPS
	}

	if c.Video.ImageDurationSeconds < 1 {
		c.Video.ImageDurationSeconds = defaultImageDuration
	}

	if c.Assets.PexelsPerPage < 1 {
		c.Assets.PexelsPerPage = defaultPexelsPerPage
	}

	if c.NATS.JobSubject == "" {
		c.NATS.JobSubject = defaultNATSJobSubject
	}

	if c.NATS.VideoObjectStoreBucket == "" {
		c.NATS.VideoObjectStoreBucket = defaultNATSVideoBucket
	}
}

func (c *Config) loadSecrets() {
	c.Secrets.ElevenLabsAPIKey = os.Getenv(EnvElevenLabsAPIKey)
	c.Secrets.OpenAIAPIKey = os.Getenv(EnvOpenAIAPIKey)
	c.Secrets.PexelsAPIKey = os.Getenv(EnvPexelsAPIKey)
}

// LoadChannels reads the JSON channels file: an array of channel entries with
// name, language, and a provider to voice id mapping.
func LoadChannels(channelsPath string) ([]channel.Config, error) {
	data, err := os.ReadFile(channelsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read channels file %q: %w", channelsPath, err)
	}

	var channels []channel.Config

	err = json.Unmarshal(data, &channels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channels file %q: %w", channelsPath, err)
	}

	return channels, nil
}

// ParseResolution converts a resolution value into pixel dimensions. Known
// presets are "1080p" and "720p"; any other value must be WIDTHxHEIGHT.
func ParseResolution(resolution string) (int, int, error) {
	switch strings.ToLower(resolution) {
	case "1080p":
		return 1920, 1080, nil
	case "720p":
		return 1280, 720, nil
	}

	width, height, found := strings.Cut(strings.ToLower(resolution), "x")
	if found {
		widthValue, widthErr := strconv.Atoi(width)
		heightValue, heightErr := strconv.Atoi(height)

		if widthErr == nil && heightErr == nil && widthValue > 0 && heightValue > 0 {
			return widthValue, heightValue, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: %q", ErrUnsupportedResolution, resolution)
}
