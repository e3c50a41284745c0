// Package script generates narration scripts through an OpenAI-compatible
// chat completion endpoint and splits them into ordered sections for asset
// alignment.
package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"
	openai "github.com/sashabaranov/go-openai"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// Defaults for the chat completion request.
const (
	defaultModel              = openai.GPT4oMini
	defaultTemperature        = 0.8
	defaultMaxPromptChars     = 2000
	defaultCacheTTL           = time.Hour
	maxScriptTokens           = 700
	promptCharsPerToken       = 4
	truncationMarker          = "\n...\n"
	systemPrompt              = "You write short, engaging narration scripts for social video. Respond only with the narration text, split into paragraphs, with no headings or stage directions."
	userPromptFormat          = "Crie um roteiro curto e envolvente sobre: %s. Escreva o roteiro no idioma %q."
	defaultLanguage           = "pt-BR"
	errFmtGenerationFailed    = "chat completion failed: %w"
	logFmtScriptGenerated     = "Generated script for topic %q: %d characters, %d sections"
	logFmtGenerationAttempted = "Requesting script for topic %q (language %s, model %s)"
	logFmtCacheHit            = "Reusing cached script for topic %q"
)

// Static errors.
var (
	ErrTopicEmpty     = errors.New("topic cannot be empty")
	ErrAPIKeyRequired = errors.New("llm api key is not configured")
	ErrEmptyScript    = errors.New("model returned an empty script")
)

// GeneratorConfig carries the connection settings and client-side budgets for
// the chat completion endpoint. BaseURL is overridable so tests can point at
// a local server.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	// Temperature is optional; nil selects the default. A pointer keeps an
	// explicit zero distinguishable from unset.
	Temperature *float64

	// MaxPromptChars caps the user prompt length before it is sent; longer
	// prompts keep their head and tail. Zero selects the default.
	MaxPromptChars int

	// CacheTTL is the completion cache entry lifetime; zero selects the
	// default. CachePath, when set, persists the cache across restarts.
	CacheTTL  time.Duration
	CachePath string

	// Per-minute request and token budgets, a daily request cap (zero
	// disables it), and a concurrency bound. Zero budgets fall back to
	// free-tier defaults.
	RPMLimit          int
	TPMLimit          int
	DailyRequestLimit int
	ConcurrencyLimit  int
}

// OpenAIGenerator implements core.ScriptGenerator against an
// OpenAI-compatible API, with a response cache and a client-side rate limiter
// in front of the endpoint.
type OpenAIGenerator struct {
	client         *openai.Client
	model          string
	temperature    float32
	maxPromptChars int
	cache          *ResponseCache
	limiter        *RateLimiter
	log            *logger.Logger
}

// NewOpenAIGenerator creates a script generator from the given configuration.
func NewOpenAIGenerator(cfg GeneratorConfig, log *logger.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	maxPromptChars := cfg.MaxPromptChars
	if maxPromptChars < 1 {
		maxPromptChars = defaultMaxPromptChars
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	return &OpenAIGenerator{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          model,
		temperature:    resolveTemperature(cfg.Temperature),
		maxPromptChars: maxPromptChars,
		cache:          NewResponseCache(cacheTTL, cfg.CachePath),
		limiter: NewRateLimiter(
			cfg.RPMLimit,
			cfg.TPMLimit,
			cfg.DailyRequestLimit,
			cfg.ConcurrencyLimit,
		),
		log: log,
	}, nil
}

// resolveTemperature maps the configured sampling temperature onto the wire
// type. The wire codec omits a zero temperature, which the API would read as
// its own default, so the smallest positive value stands in for an exact
// zero.
func resolveTemperature(configured *float64) float32 {
	if configured == nil {
		return defaultTemperature
	}

	temperature := float32(*configured)
	if temperature == 0 {
		return math.SmallestNonzeroFloat32
	}

	return temperature
}

// Generate produces a narration script for the topic in the given language.
// Identical requests within the cache TTL are served from the cache without
// spending budget. Failures are classified into the generation error kinds.
func (g *OpenAIGenerator) Generate(ctx context.Context, topic, language string) (*core.Script, error) {
	if topic == "" {
		return nil, core.NewStageError(core.KindInvalidPrompt, ErrTopicEmpty)
	}

	if language == "" {
		language = defaultLanguage
	}

	prompt := truncatePrompt(buildPrompt(topic, language), g.maxPromptChars)
	key := cacheKey(g.model, maxScriptTokens, float64(g.temperature), prompt)

	if cached, ok := g.cache.Get(key); ok {
		g.log.Info(logFmtCacheHit, topic)

		return &core.Script{
			Text:     cached,
			Sections: SplitSections(cached),
		}, nil
	}

	g.log.Info(logFmtGenerationAttempted, topic, language, g.model)

	err := g.limiter.Acquire(ctx, estimateTokens(prompt, maxScriptTokens))
	if err != nil {
		return nil, classifyLimiterError(err)
	}
	defer g.limiter.Release()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   maxScriptTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, classifyGenerationError(err)
	}

	text := completionText(resp)
	if text == "" {
		return nil, core.NewStageError(core.KindTransientFailure, ErrEmptyScript)
	}

	g.cache.Set(key, text)

	sections := SplitSections(text)
	g.log.Info(logFmtScriptGenerated, topic, len(text), len(sections))

	return &core.Script{
		Text:     text,
		Sections: sections,
	}, nil
}

func buildPrompt(topic, language string) string {
	return fmt.Sprintf(userPromptFormat, topic, language)
}

// truncatePrompt keeps the head and tail of an overlong prompt so both the
// instruction and the closing context survive.
func truncatePrompt(prompt string, limit int) string {
	runes := []rune(prompt)
	if limit < 1 || len(runes) <= limit {
		return prompt
	}

	half := limit / 2

	return string(runes[:half]) + truncationMarker + string(runes[len(runes)-half:])
}

// estimateTokens approximates the budget a request will consume: roughly four
// characters per prompt token, plus the full output allowance.
func estimateTokens(prompt string, maxOutputTokens int) int {
	promptTokens := len(prompt) / promptCharsPerToken
	if promptTokens < 1 {
		promptTokens = 1
	}

	return promptTokens + maxOutputTokens
}

func completionText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// classifyLimiterError maps local budget exhaustion to the same kinds the API
// would report: the daily cap is quota, an impossible token estimate is a
// prompt problem. Cancellation passes through unclassified.
func classifyLimiterError(err error) error {
	switch {
	case errors.Is(err, ErrDailyLimitExceeded):
		return core.NewStageError(core.KindQuotaExceeded, err)
	case errors.Is(err, ErrTokenBudgetTooLarge):
		return core.NewStageError(core.KindInvalidPrompt, err)
	default:
		return err
	}
}

// classifyGenerationError maps an API failure to a generation error kind:
// quota exhaustion and prompt rejection are fatal, everything else is
// treated as transient.
func classifyGenerationError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return core.NewStageError(
				core.KindQuotaExceeded,
				fmt.Errorf(errFmtGenerationFailed, err),
			)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return core.NewStageError(
				core.KindInvalidPrompt,
				fmt.Errorf(errFmtGenerationFailed, err),
			)
		}
	}

	return core.NewStageError(
		core.KindTransientFailure,
		fmt.Errorf(errFmtGenerationFailed, err),
	)
}
