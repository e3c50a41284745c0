// Package tts implements the speech synthesis capability: a cooperative
// streaming provider, a blocking HTTP provider, and the worker pool adapter
// that gives both the same call surface.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// API paths and headers for the ElevenLabs service.
const (
	defaultElevenBaseURL = "https://api.elevenlabs.io"
	elevenSpeechPath     = "/v1/text-to-speech/"
	headerAPIKey         = "xi-api-key"
	headerContentType    = "Content-Type"
	headerAccept         = "Accept"
	headerRetryAfter     = "Retry-After"
	contentTypeJSON      = "application/json"
	contentTypeMPEG      = "audio/mpeg"
)

// Defaults for the ElevenLabs request payload and duration estimation.
const (
	defaultElevenModelID = "eleven_multilingual_v2"
	// The default output format is 44.1kHz MP3 at 128kbps; duration is
	// estimated from the payload size at that bitrate.
	elevenSampleRate        = 44100
	elevenBitrateBitsPerSec = 128_000
)

// Static errors shared by the provider variants.
var (
	ErrTextEmpty     = errors.New("text cannot be empty")
	ErrVoiceIDEmpty  = errors.New("voice id cannot be empty")
	ErrAPIKeyMissing = errors.New("elevenlabs api key is not configured")
	ErrEmptyAudio    = errors.New("received empty audio data")
)

// ElevenLabsSynthesizer is the blocking provider variant. Synthesize performs
// one synchronous HTTP call with no internal suspension; it is meant to run
// behind the Pool adapter so it never stalls the caller's scheduling.
type ElevenLabsSynthesizer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelID    string
	workDir    string
}

// elevenRequest is the JSON payload for a synthesis request.
type elevenRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// elevenErrorResponse is the service's structured error body.
type elevenErrorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// NewElevenLabs creates the blocking provider variant. Generated audio files
// are written into workDir under a fresh UUID name. An empty baseURL selects
// the public API endpoint; tests point it at a local server.
func NewElevenLabs(baseURL, apiKey, modelID, workDir string, timeout time.Duration) (*ElevenLabsSynthesizer, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	if baseURL == "" {
		baseURL = defaultElevenBaseURL
	}

	if modelID == "" {
		modelID = defaultElevenModelID
	}

	return &ElevenLabsSynthesizer{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		modelID:    modelID,
		workDir:    workDir,
	}, nil
}

// Synthesize converts text to speech through one blocking HTTP call and
// returns the artifact for the written audio file. Failures are classified
// into the synthesis error kinds by HTTP status.
func (s *ElevenLabsSynthesizer) Synthesize(
	ctx context.Context,
	text, voiceID string,
) (*core.AudioArtifact, error) {
	if text == "" {
		return nil, core.NewStageError(core.KindUnexpectedResponse, ErrTextEmpty)
	}

	if voiceID == "" {
		return nil, core.NewStageError(core.KindInvalidVoiceID, ErrVoiceIDEmpty)
	}

	audioData, err := s.requestSpeech(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}

	outputPath := filepath.Join(s.workDir, uuid.NewString()+".mp3")

	writeErr := os.WriteFile(outputPath, audioData, filePermissions)
	if writeErr != nil {
		return nil, core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("failed to write audio file: %w", writeErr),
		)
	}

	return &core.AudioArtifact{
		Ref:        outputPath,
		MimeType:   contentTypeMPEG,
		Duration:   estimateMP3Duration(len(audioData), elevenBitrateBitsPerSec),
		SampleRate: elevenSampleRate,
	}, nil
}

func (s *ElevenLabsSynthesizer) requestSpeech(
	ctx context.Context,
	text, voiceID string,
) ([]byte, error) {
	requestBody, err := json.Marshal(elevenRequest{
		Text:    text,
		ModelID: s.modelID,
	})
	if err != nil {
		return nil, core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("failed to marshal request: %w", err),
		)
	}

	url := s.baseURL + elevenSpeechPath + voiceID

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("failed to create request: %w", err),
		)
	}

	httpReq.Header.Set(headerAPIKey, s.apiKey)
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewStageError(
			core.KindTransientNetwork,
			fmt.Errorf("failed to reach elevenlabs at %s: %w", s.baseURL, err),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.classifyErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, contentTypeMPEG) {
		return nil, core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("unexpected content type: expected %s, got %s", contentTypeMPEG, contentType),
		)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewStageError(
			core.KindTransientNetwork,
			fmt.Errorf("failed to read audio data: %w", err),
		)
	}

	if len(audioData) == 0 {
		return nil, core.NewStageError(core.KindUnexpectedResponse, ErrEmptyAudio)
	}

	return audioData, nil
}

// classifyErrorResponse maps a non-OK HTTP status to a synthesis error kind.
// The response body is folded into the error for diagnostics.
func (s *ElevenLabsSynthesizer) classifyErrorResponse(resp *http.Response) error {
	detail := readErrorDetail(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.NewStageError(
			core.KindAuthFailure,
			fmt.Errorf("elevenlabs rejected credentials (%s): %s", resp.Status, detail),
		)
	case resp.StatusCode == http.StatusNotFound:
		return core.NewStageError(
			core.KindInvalidVoiceID,
			fmt.Errorf("elevenlabs voice not found (%s): %s", resp.Status, detail),
		)
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.NewRateLimitedError(
			parseRetryAfter(resp.Header.Get(headerRetryAfter)),
			fmt.Errorf("elevenlabs rate limit (%s): %s", resp.Status, detail),
		)
	case resp.StatusCode >= http.StatusInternalServerError:
		return core.NewStageError(
			core.KindTransientNetwork,
			fmt.Errorf("elevenlabs server error (%s): %s", resp.Status, detail),
		)
	default:
		return core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("elevenlabs returned unexpected status %s: %s", resp.Status, detail),
		)
	}
}

// readErrorDetail extracts the structured error message, falling back to the
// raw body so diagnostic information is preserved.
func readErrorDetail(resp *http.Response) string {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	var errorResp elevenErrorResponse

	unmarshalErr := json.Unmarshal(body, &errorResp)
	if unmarshalErr == nil && errorResp.Detail.Message != "" {
		return errorResp.Detail.Message
	}

	return string(body)
}

func parseRetryAfter(headerValue string) time.Duration {
	if headerValue == "" {
		return 0
	}

	seconds, err := strconv.Atoi(headerValue)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

// estimateMP3Duration derives an approximate duration from the payload size
// at a constant bitrate. The provider does not report duration out of band.
func estimateMP3Duration(sizeBytes, bitrateBitsPerSec int) time.Duration {
	if sizeBytes <= 0 || bitrateBitsPerSec <= 0 {
		return 0
	}

	seconds := float64(sizeBytes*8) / float64(bitrateBitsPerSec)

	return time.Duration(seconds * float64(time.Second))
}
