package tts

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// Edge read-aloud websocket endpoint and protocol constants.
const (
	defaultEdgeEndpoint = "wss://speech.platform.bing.com/consumer/speech/synthesize/" +
		"readaloud/edge/v1"
	edgeTrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeOutputFormat       = "audio-24khz-48kbitrate-mono-mp3"
	edgeSampleRate         = 24000
	edgeBitrateBitsPerSec  = 48_000

	pathAudio         = "Path:audio"
	pathTurnEnd       = "Path:turn.end"
	pathAudioMetadata = "Path:audio.metadata"

	headerBodySeparator = "\r\n\r\n"
	// Binary audio frames carry a big-endian 16-bit header length prefix.
	binaryHeaderLenBytes = 2

	// Word boundary offsets arrive in 100-nanosecond ticks.
	ticksPerNanosecond = 100

	edgeHandshakeTimeout = 10 * time.Second
)

const filePermissions = 0o600

// Static errors for the cooperative variant.
var (
	ErrNoAudioReceived = errors.New("stream ended without audio data")
	ErrShortFrame      = errors.New("binary frame shorter than header prefix")
)

// EdgeSynthesizer is the cooperative provider variant. Synthesize streams
// audio over a websocket; reads park the goroutine at the network boundary
// and resume when frames arrive, so no worker thread is held for the wait.
type EdgeSynthesizer struct {
	dialer   *websocket.Dialer
	endpoint string
	workDir  string
}

// edgeSpeechConfig is the first frame of a synthesis turn, selecting the
// output format and metadata options.
type edgeSpeechConfig struct {
	Context struct {
		Synthesis struct {
			Audio struct {
				MetadataOptions struct {
					SentenceBoundaryEnabled string `json:"sentenceBoundaryEnabled"`
					WordBoundaryEnabled     string `json:"wordBoundaryEnabled"`
				} `json:"metadataoptions"`
				OutputFormat string `json:"outputFormat"`
			} `json:"audio"`
		} `json:"synthesis"`
	} `json:"context"`
}

// edgeMetadata is the payload of audio.metadata frames carrying word
// boundaries.
type edgeMetadata struct {
	Metadata []struct {
		Type string `json:"Type"`
		Data struct {
			Offset   int64 `json:"Offset"`
			Duration int64 `json:"Duration"`
		} `json:"Data"`
	} `json:"Metadata"`
}

// NewEdge creates the cooperative provider variant. Generated audio files are
// written into workDir under a fresh UUID name. An empty endpoint selects the
// public read-aloud endpoint; tests point it at a local server.
func NewEdge(endpoint, workDir string) *EdgeSynthesizer {
	if endpoint == "" {
		endpoint = defaultEdgeEndpoint
	}

	return &EdgeSynthesizer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: edgeHandshakeTimeout,
		},
		endpoint: endpoint,
		workDir:  workDir,
	}
}

// Synthesize streams speech for the text and returns the artifact for the
// written audio file. Duration comes from the final word boundary when the
// service reports one, otherwise from the payload size at the stream bitrate.
func (s *EdgeSynthesizer) Synthesize(
	ctx context.Context,
	text, voiceID string,
) (*core.AudioArtifact, error) {
	if text == "" {
		return nil, core.NewStageError(core.KindUnexpectedResponse, ErrTextEmpty)
	}

	if voiceID == "" {
		return nil, core.NewStageError(core.KindInvalidVoiceID, ErrVoiceIDEmpty)
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Closing the connection on cancellation wakes any blocked read, so
	// cancellation holds even for contexts without a deadline.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchdogDone:
		}
	}()

	sendErr := s.sendSynthesisTurn(conn, text, voiceID)
	if sendErr != nil {
		return nil, sendErr
	}

	audioData, duration, recvErr := s.receiveAudio(ctx, conn, voiceID)
	if recvErr != nil {
		return nil, recvErr
	}

	outputPath := filepath.Join(s.workDir, uuid.NewString()+".mp3")

	writeErr := os.WriteFile(outputPath, audioData, filePermissions)
	if writeErr != nil {
		return nil, core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("failed to write audio file: %w", writeErr),
		)
	}

	if duration == 0 {
		duration = estimateMP3Duration(len(audioData), edgeBitrateBitsPerSec)
	}

	return &core.AudioArtifact{
		Ref:        outputPath,
		MimeType:   contentTypeMPEG,
		Duration:   duration,
		SampleRate: edgeSampleRate,
	}, nil
}

func (s *EdgeSynthesizer) dial(ctx context.Context) (*websocket.Conn, error) {
	connectionID := requestID()
	url := fmt.Sprintf(
		"%s?TrustedClientToken=%s&ConnectionId=%s",
		s.endpoint, edgeTrustedClientToken, connectionID,
	)

	conn, resp, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized ||
			resp.StatusCode == http.StatusForbidden) {
			return nil, core.NewStageError(
				core.KindAuthFailure,
				fmt.Errorf("edge endpoint rejected handshake (%s): %w", resp.Status, err),
			)
		}

		return nil, core.NewStageError(
			core.KindTransientNetwork,
			fmt.Errorf("failed to dial edge endpoint: %w", err),
		)
	}

	return conn, nil
}

// sendSynthesisTurn writes the speech.config frame followed by the SSML frame
// that starts the turn.
func (s *EdgeSynthesizer) sendSynthesisTurn(conn *websocket.Conn, text, voiceID string) error {
	var speechConfig edgeSpeechConfig

	speechConfig.Context.Synthesis.Audio.MetadataOptions.SentenceBoundaryEnabled = "false"
	speechConfig.Context.Synthesis.Audio.MetadataOptions.WordBoundaryEnabled = "true"
	speechConfig.Context.Synthesis.Audio.OutputFormat = edgeOutputFormat

	configPayload, err := json.Marshal(speechConfig)
	if err != nil {
		return core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("failed to marshal speech config: %w", err),
		)
	}

	configFrame := fmt.Sprintf(
		"X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config%s%s",
		timestamp(), headerBodySeparator, configPayload,
	)

	writeErr := conn.WriteMessage(websocket.TextMessage, []byte(configFrame))
	if writeErr != nil {
		return core.NewStageError(
			core.KindTransientNetwork,
			fmt.Errorf("failed to send speech config: %w", writeErr),
		)
	}

	ssmlFrame := fmt.Sprintf(
		"X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml%s%s",
		requestID(), timestamp(), headerBodySeparator, buildSSML(text, voiceID),
	)

	writeErr = conn.WriteMessage(websocket.TextMessage, []byte(ssmlFrame))
	if writeErr != nil {
		return core.NewStageError(
			core.KindTransientNetwork,
			fmt.Errorf("failed to send ssml: %w", writeErr),
		)
	}

	return nil
}

// receiveAudio reads frames until turn.end, collecting binary audio payloads
// and the duration reported by word boundary metadata.
func (s *EdgeSynthesizer) receiveAudio(
	ctx context.Context,
	conn *websocket.Conn,
	voiceID string,
) ([]byte, time.Duration, error) {
	var (
		audioData []byte
		lastTick  int64
	)

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = conn.SetReadDeadline(deadline)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, fmt.Errorf("synthesis stream cancelled: %w", ctx.Err())
			}

			return nil, 0, classifyEdgeReadError(err, voiceID)
		}

		switch messageType {
		case websocket.BinaryMessage:
			payload, frameErr := audioFramePayload(message)
			if frameErr != nil {
				return nil, 0, frameErr
			}

			audioData = append(audioData, payload...)
		case websocket.TextMessage:
			frame := string(message)

			if strings.Contains(frame, pathAudioMetadata) {
				if tick, ok := finalBoundaryTick(frame); ok && tick > lastTick {
					lastTick = tick
				}

				continue
			}

			if strings.Contains(frame, pathTurnEnd) {
				if len(audioData) == 0 {
					return nil, 0, core.NewStageError(
						core.KindUnexpectedResponse, ErrNoAudioReceived,
					)
				}

				return audioData, time.Duration(lastTick * ticksPerNanosecond), nil
			}
		}
	}
}

// audioFramePayload strips the length-prefixed header from a binary frame and
// returns the audio bytes, or nil for non-audio binary frames.
func audioFramePayload(message []byte) ([]byte, error) {
	if len(message) < binaryHeaderLenBytes {
		return nil, core.NewStageError(core.KindUnexpectedResponse, ErrShortFrame)
	}

	headerLen := int(binary.BigEndian.Uint16(message[:binaryHeaderLenBytes]))
	if binaryHeaderLenBytes+headerLen > len(message) {
		return nil, core.NewStageError(
			core.KindUnexpectedResponse,
			fmt.Errorf("%w: declared header length %d exceeds frame", ErrShortFrame, headerLen),
		)
	}

	header := string(message[binaryHeaderLenBytes : binaryHeaderLenBytes+headerLen])
	if !strings.Contains(header, pathAudio) {
		return nil, nil
	}

	return message[binaryHeaderLenBytes+headerLen:], nil
}

// classifyEdgeReadError maps a websocket read failure to a synthesis error
// kind. The service closes the stream with a policy violation for voices it
// does not know.
func classifyEdgeReadError(err error, voiceID string) error {
	if websocket.IsCloseError(err, websocket.CloseInvalidFramePayloadData,
		websocket.ClosePolicyViolation) {
		return core.NewStageError(
			core.KindInvalidVoiceID,
			fmt.Errorf("edge rejected voice %q: %w", voiceID, err),
		)
	}

	return core.NewStageError(
		core.KindTransientNetwork,
		fmt.Errorf("edge stream read failed: %w", err),
	)
}

// finalBoundaryTick returns the end tick of the last word boundary in an
// audio.metadata frame.
func finalBoundaryTick(frame string) (int64, bool) {
	_, body, found := strings.Cut(frame, headerBodySeparator)
	if !found {
		return 0, false
	}

	var metadata edgeMetadata

	err := json.Unmarshal([]byte(body), &metadata)
	if err != nil {
		return 0, false
	}

	var lastTick int64

	for _, entry := range metadata.Metadata {
		if entry.Type != "WordBoundary" {
			continue
		}

		endTick := entry.Data.Offset + entry.Data.Duration
		if endTick > lastTick {
			lastTick = endTick
		}
	}

	return lastTick, lastTick > 0
}

// buildSSML wraps escaped text in the minimal SSML document the service
// expects.
func buildSSML(text, voiceID string) string {
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'>%s</voice></speak>",
		voiceID, escapeSSML(text),
	)
}

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func escapeSSML(text string) string {
	return ssmlEscaper.Replace(text)
}

func requestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC1123)
}
