package script_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
	"github.com/MatheusMDi/ia-video-generate/internal/script"
)

const testScriptText = "O Brasil tem mais de 200 milhões de habitantes.\n\n" +
	"A Amazônia cobre quase metade do território nacional."

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newGeneratorForTest(t *testing.T, baseURL string) *script.OpenAIGenerator {
	t.Helper()

	return newConfiguredGenerator(t, script.GeneratorConfig{
		APIKey:  "test-api-key",
		BaseURL: baseURL,
	})
}

func newConfiguredGenerator(t *testing.T, cfg script.GeneratorConfig) *script.OpenAIGenerator {
	t.Helper()

	generator, err := script.NewOpenAIGenerator(cfg, newTestLogger(t))
	require.NoError(t, err)

	return generator
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
}

func serveCompletion(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return server
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()

	server := serveCompletion(t, func(responseWriter http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "Bearer test-api-key", request.Header.Get("Authorization"))

		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}

		decodeErr := json.NewDecoder(request.Body).Decode(&payload)
		require.NoError(t, decodeErr)
		require.Len(t, payload.Messages, 2)
		assert.Contains(t, payload.Messages[1].Content, "Fatos sobre o Brasil")
		assert.Contains(t, payload.Messages[1].Content, "pt-BR")

		responseWriter.Header().Set("Content-Type", "application/json")

		encodeErr := json.NewEncoder(responseWriter).Encode(completionResponse(testScriptText))
		require.NoError(t, encodeErr)
	})

	generator := newGeneratorForTest(t, server.URL)

	result, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	assert.Equal(t, testScriptText, result.Text)
	require.Len(t, result.Sections, 2)
	assert.Equal(t, 0, result.Sections[0].Index)
	assert.Contains(t, result.Sections[0].Text, "200 milhões")
	assert.Equal(t, 1, result.Sections[1].Index)
}

func TestGenerate_ErrorClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		statusCode    int
		expectedKind  core.ErrorKind
		expectedRetry bool
	}{
		{"QuotaExceeded", http.StatusTooManyRequests, core.KindQuotaExceeded, false},
		{"InvalidPrompt", http.StatusBadRequest, core.KindInvalidPrompt, false},
		{"InvalidPromptUnprocessable", http.StatusUnprocessableEntity, core.KindInvalidPrompt, false},
		{"TransientServerError", http.StatusInternalServerError, core.KindTransientFailure, true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := serveCompletion(t, func(responseWriter http.ResponseWriter, _ *http.Request) {
				responseWriter.Header().Set("Content-Type", "application/json")
				responseWriter.WriteHeader(testCase.statusCode)

				_, _ = responseWriter.Write(
					[]byte(`{"error":{"message":"rejected","type":"test"}}`),
				)
			})

			generator := newGeneratorForTest(t, server.URL)

			_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
			require.Error(t, err)
			assert.Equal(t, testCase.expectedKind, core.KindOf(err))
			assert.Equal(t, testCase.expectedRetry, core.IsRetryable(err))
		})
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	t.Parallel()

	server := serveCompletion(t, func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.Header().Set("Content-Type", "application/json")

		encodeErr := json.NewEncoder(responseWriter).Encode(completionResponse("   "))
		require.NoError(t, encodeErr)
	})

	generator := newGeneratorForTest(t, server.URL)

	_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.Error(t, err)
	require.ErrorIs(t, err, script.ErrEmptyScript)
	assert.Equal(t, core.KindTransientFailure, core.KindOf(err))
}

func TestGenerate_EmptyTopic(t *testing.T) {
	t.Parallel()

	generator := newGeneratorForTest(t, "http://127.0.0.1:1")

	_, err := generator.Generate(context.Background(), "", "pt-BR")
	require.ErrorIs(t, err, script.ErrTopicEmpty)
	assert.Equal(t, core.KindInvalidPrompt, core.KindOf(err))
}

func TestGenerate_NetworkFailure(t *testing.T) {
	t.Parallel()

	generator := newGeneratorForTest(t, "http://127.0.0.1:1")

	_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.Error(t, err)
	assert.Equal(t, core.KindTransientFailure, core.KindOf(err))
	assert.True(t, core.IsRetryable(err))
}

func TestNewOpenAIGenerator_MissingAPIKey(t *testing.T) {
	t.Parallel()

	_, err := script.NewOpenAIGenerator(script.GeneratorConfig{}, newTestLogger(t))
	require.ErrorIs(t, err, script.ErrAPIKeyRequired)
}

func countingCompletionServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	return serveCompletion(t, func(responseWriter http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		responseWriter.Header().Set("Content-Type", "application/json")

		encodeErr := json.NewEncoder(responseWriter).Encode(completionResponse(testScriptText))
		require.NoError(t, encodeErr)
	})
}

func TestGenerate_CachesIdenticalRequests(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := countingCompletionServer(t, &calls)
	generator := newGeneratorForTest(t, server.URL)

	first, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	second, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Text, second.Text)
	assert.Len(t, second.Sections, len(first.Sections))
}

func TestGenerate_CachePersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := countingCompletionServer(t, &calls)
	cachePath := filepath.Join(t.TempDir(), "llm-cache.json")
	cfg := script.GeneratorConfig{
		APIKey:    "test-api-key",
		BaseURL:   server.URL,
		CachePath: cachePath,
	}

	first := newConfiguredGenerator(t, cfg)

	_, err := first.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	second := newConfiguredGenerator(t, cfg)

	result, err := second.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, testScriptText, result.Text)
}

func TestGenerate_DailyRequestLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := countingCompletionServer(t, &calls)
	generator := newConfiguredGenerator(t, script.GeneratorConfig{
		APIKey:            "test-api-key",
		BaseURL:           server.URL,
		RPMLimit:          60,
		TPMLimit:          10_000,
		DailyRequestLimit: 1,
	})

	_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	_, err = generator.Generate(context.Background(), "Curiosidades da Amazônia", "pt-BR")
	require.ErrorIs(t, err, script.ErrDailyLimitExceeded)
	assert.Equal(t, core.KindQuotaExceeded, core.KindOf(err))
	assert.False(t, core.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerate_TokenBudgetTooLarge(t *testing.T) {
	t.Parallel()

	server := serveCompletion(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request should reach the endpoint")
	})

	generator := newConfiguredGenerator(t, script.GeneratorConfig{
		APIKey:   "test-api-key",
		BaseURL:  server.URL,
		RPMLimit: 60,
		TPMLimit: 10,
	})

	_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.ErrorIs(t, err, script.ErrTokenBudgetTooLarge)
	assert.Equal(t, core.KindInvalidPrompt, core.KindOf(err))
}

func decodeTemperature(t *testing.T, request *http.Request) float64 {
	t.Helper()

	var payload struct {
		Temperature float64 `json:"temperature"`
	}

	decodeErr := json.NewDecoder(request.Body).Decode(&payload)
	require.NoError(t, decodeErr)

	return payload.Temperature
}

func TestGenerate_DefaultTemperature(t *testing.T) {
	t.Parallel()

	var sent atomic.Value

	server := serveCompletion(t, func(responseWriter http.ResponseWriter, request *http.Request) {
		sent.Store(decodeTemperature(t, request))
		responseWriter.Header().Set("Content-Type", "application/json")

		encodeErr := json.NewEncoder(responseWriter).Encode(completionResponse(testScriptText))
		require.NoError(t, encodeErr)
	})

	generator := newGeneratorForTest(t, server.URL)

	_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	temperature, ok := sent.Load().(float64)
	require.True(t, ok)
	assert.InDelta(t, 0.8, temperature, 0.0001)
}

func TestGenerate_ExplicitZeroTemperature(t *testing.T) {
	t.Parallel()

	var sent atomic.Value

	server := serveCompletion(t, func(responseWriter http.ResponseWriter, request *http.Request) {
		sent.Store(decodeTemperature(t, request))
		responseWriter.Header().Set("Content-Type", "application/json")

		encodeErr := json.NewEncoder(responseWriter).Encode(completionResponse(testScriptText))
		require.NoError(t, encodeErr)
	})

	zero := 0.0
	generator := newConfiguredGenerator(t, script.GeneratorConfig{
		APIKey:      "test-api-key",
		BaseURL:     server.URL,
		Temperature: &zero,
	})

	_, err := generator.Generate(context.Background(), "Fatos sobre o Brasil", "pt-BR")
	require.NoError(t, err)

	// An explicit zero reaches the wire as the smallest positive stand-in
	// instead of being dropped and replaced by the server default.
	temperature, ok := sent.Load().(float64)
	require.True(t, ok)
	assert.Positive(t, temperature)
	assert.Less(t, temperature, 1e-6)
}

func TestSplitSections_Paragraphs(t *testing.T) {
	t.Parallel()

	sections := script.SplitSections("Primeiro parágrafo.\n\nSegundo parágrafo.\n\n\nTerceiro.")

	require.Len(t, sections, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{
		sections[0].Index, sections[1].Index, sections[2].Index,
	})
	assert.Equal(t, "Primeiro parágrafo.", sections[0].Text)
	assert.Equal(t, "Terceiro.", sections[2].Text)
}

func TestSplitSections_SingleParagraphGroupsSentences(t *testing.T) {
	t.Parallel()

	text := "Uma frase. Outra frase! Uma terceira? Quarta frase."

	sections := script.SplitSections(text)

	require.Len(t, sections, 2)
	assert.Contains(t, sections[0].Text, "Uma frase.")
	assert.Contains(t, sections[0].Text, "Outra frase!")
	assert.Contains(t, sections[1].Text, "Uma terceira?")
	assert.Contains(t, sections[1].Text, "Quarta frase.")
}

func TestSplitSections_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, script.SplitSections("   "))
	assert.Empty(t, script.SplitSections(""))
}

func TestSplitSections_PreservesOrder(t *testing.T) {
	t.Parallel()

	paragraphs := []string{"Alpha.", "Bravo.", "Charlie.", "Delta."}

	sections := script.SplitSections(strings.Join(paragraphs, "\n\n"))

	require.Len(t, sections, len(paragraphs))

	for position, section := range sections {
		assert.Equal(t, position, section.Index)
		assert.Equal(t, paragraphs[position], section.Text)
	}
}
