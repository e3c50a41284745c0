package tts_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
	"github.com/MatheusMDi/ia-video-generate/internal/tts"
)

const edgeTestVoice = "pt-BR-AntonioNeural"

var testUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// edgeScript drives a scripted read-aloud endpoint for one synthesis turn.
type edgeScript struct {
	t            *testing.T
	audio        []byte
	sendAudio    bool
	boundaries   []map[string]any
	closeCode    int
	holdTurnOpen bool
}

func (s *edgeScript) handler(responseWriter http.ResponseWriter, request *http.Request) {
	s.t.Helper()

	if token := request.URL.Query().Get("TrustedClientToken"); token == "" {
		s.t.Error("Expected TrustedClientToken query parameter")
	}

	conn, err := testUpgrader.Upgrade(responseWriter, request, nil)
	if err != nil {
		s.t.Fatalf("Failed to upgrade connection: %v", err)
	}
	defer conn.Close()

	// speech.config frame
	_, configFrame, err := conn.ReadMessage()
	if err != nil {
		s.t.Fatalf("Failed to read speech config: %v", err)
	}

	if !strings.Contains(string(configFrame), "Path:speech.config") {
		s.t.Errorf("Expected speech.config frame, got: %s", configFrame)
	}

	// ssml frame
	_, ssmlFrame, err := conn.ReadMessage()
	if err != nil {
		s.t.Fatalf("Failed to read ssml: %v", err)
	}

	if !strings.Contains(string(ssmlFrame), "Path:ssml") {
		s.t.Errorf("Expected ssml frame, got: %s", ssmlFrame)
	}

	if !strings.Contains(string(ssmlFrame), "<voice name='"+edgeTestVoice+"'>") {
		s.t.Errorf("Expected voice element in ssml, got: %s", ssmlFrame)
	}

	if s.closeCode != 0 {
		closeFrame := websocket.FormatCloseMessage(s.closeCode, "")
		_ = conn.WriteMessage(websocket.CloseMessage, closeFrame)

		return
	}

	if s.sendAudio {
		header := []byte("X-RequestId:test\r\nContent-Type:audio/mpeg\r\nPath:audio\r\n")
		frame := make([]byte, 2+len(header)+len(s.audio))
		binary.BigEndian.PutUint16(frame[:2], uint16(len(header)))
		copy(frame[2:], header)
		copy(frame[2+len(header):], s.audio)

		writeErr := conn.WriteMessage(websocket.BinaryMessage, frame)
		if writeErr != nil {
			s.t.Fatalf("Failed to write audio frame: %v", writeErr)
		}
	}

	if len(s.boundaries) > 0 {
		metadata, marshalErr := json.Marshal(map[string]any{"Metadata": s.boundaries})
		if marshalErr != nil {
			s.t.Fatalf("Failed to marshal metadata: %v", marshalErr)
		}

		metadataFrame := "X-RequestId:test\r\nPath:audio.metadata\r\n\r\n" + string(metadata)

		writeErr := conn.WriteMessage(websocket.TextMessage, []byte(metadataFrame))
		if writeErr != nil {
			s.t.Fatalf("Failed to write metadata frame: %v", writeErr)
		}
	}

	if s.holdTurnOpen {
		// Keep the turn open without ever signalling turn.end; return once
		// the client drops the connection.
		for {
			_, _, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
		}
	}

	turnEnd := "X-RequestId:test\r\nPath:turn.end\r\n\r\n{}"

	writeErr := conn.WriteMessage(websocket.TextMessage, []byte(turnEnd))
	if writeErr != nil {
		s.t.Fatalf("Failed to write turn.end frame: %v", writeErr)
	}
}

func startEdgeServer(t *testing.T, script *edgeScript) string {
	t.Helper()

	script.t = t
	server := httptest.NewServer(http.HandlerFunc(script.handler))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestEdge_Synthesize_Success(t *testing.T) {
	t.Parallel()

	wordBoundary := map[string]any{
		"Type": "WordBoundary",
		// Ticks are 100ns units; 25_000_000 ticks = 2.5s.
		"Data": map[string]any{"Offset": 20_000_000, "Duration": 5_000_000},
	}
	endpoint := startEdgeServer(t, &edgeScript{
		audio:      []byte(testAudioData),
		sendAudio:  true,
		boundaries: []map[string]any{wordBoundary},
	})

	synthesizer := tts.NewEdge(endpoint, t.TempDir())

	artifact, err := synthesizer.Synthesize(context.Background(), "Olá mundo", edgeTestVoice)
	require.NoError(t, err)

	assert.Equal(t, "audio/mpeg", artifact.MimeType)
	assert.Equal(t, 24000, artifact.SampleRate)
	assert.Equal(t, 2500*time.Millisecond, artifact.Duration)

	written, err := os.ReadFile(artifact.Ref)
	require.NoError(t, err)
	assert.Equal(t, []byte(testAudioData), written)
}

func TestEdge_Synthesize_DurationFallbackWithoutBoundaries(t *testing.T) {
	t.Parallel()

	endpoint := startEdgeServer(t, &edgeScript{
		audio:     []byte(testAudioData),
		sendAudio: true,
	})

	synthesizer := tts.NewEdge(endpoint, t.TempDir())

	artifact, err := synthesizer.Synthesize(context.Background(), "Olá mundo", edgeTestVoice)
	require.NoError(t, err)
	assert.Positive(t, artifact.Duration)
}

func TestEdge_Synthesize_NoAudio(t *testing.T) {
	t.Parallel()

	endpoint := startEdgeServer(t, &edgeScript{sendAudio: false})

	synthesizer := tts.NewEdge(endpoint, t.TempDir())

	_, err := synthesizer.Synthesize(context.Background(), "Olá mundo", edgeTestVoice)
	require.Error(t, err)
	require.ErrorIs(t, err, tts.ErrNoAudioReceived)
	assert.Equal(t, core.KindUnexpectedResponse, core.KindOf(err))
}

func TestEdge_Synthesize_UnknownVoiceClose(t *testing.T) {
	t.Parallel()

	endpoint := startEdgeServer(t, &edgeScript{
		closeCode: websocket.CloseInvalidFramePayloadData,
	})

	synthesizer := tts.NewEdge(endpoint, t.TempDir())

	_, err := synthesizer.Synthesize(context.Background(), "Olá mundo", edgeTestVoice)
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidVoiceID, core.KindOf(err))
}

func TestEdge_Synthesize_AbnormalClose(t *testing.T) {
	t.Parallel()

	endpoint := startEdgeServer(t, &edgeScript{
		closeCode: websocket.CloseInternalServerErr,
	})

	synthesizer := tts.NewEdge(endpoint, t.TempDir())

	_, err := synthesizer.Synthesize(context.Background(), "Olá mundo", edgeTestVoice)
	require.Error(t, err)
	assert.Equal(t, core.KindTransientNetwork, core.KindOf(err))
	assert.True(t, core.IsRetryable(err))
}

func TestEdge_Synthesize_CancelWithoutDeadline(t *testing.T) {
	t.Parallel()

	endpoint := startEdgeServer(t, &edgeScript{
		audio:        []byte(testAudioData),
		sendAudio:    true,
		holdTurnOpen: true,
	})

	synthesizer := tts.NewEdge(endpoint, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	done := make(chan error, 1)

	go func() {
		_, err := synthesizer.Synthesize(ctx, "Olá mundo", edgeTestVoice)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("synthesis did not stop after cancellation")
	}
}

func TestEdge_Synthesize_DialFailure(t *testing.T) {
	t.Parallel()

	synthesizer := tts.NewEdge("ws://127.0.0.1:1", t.TempDir())

	_, err := synthesizer.Synthesize(context.Background(), "Olá mundo", edgeTestVoice)
	require.Error(t, err)
	assert.Equal(t, core.KindTransientNetwork, core.KindOf(err))
}

func TestEdge_Synthesize_EmptyInputs(t *testing.T) {
	t.Parallel()

	synthesizer := tts.NewEdge("ws://127.0.0.1:1", t.TempDir())

	_, err := synthesizer.Synthesize(context.Background(), "", edgeTestVoice)
	require.ErrorIs(t, err, tts.ErrTextEmpty)

	_, err = synthesizer.Synthesize(context.Background(), "Olá mundo", "")
	require.ErrorIs(t, err, tts.ErrVoiceIDEmpty)
}

// TestVariants_ContractEquivalence verifies that both provider variants
// expose the same observable artifact fields for the same input: the caller
// cannot tell the cooperative and the pooled blocking variant apart.
func TestVariants_ContractEquivalence(t *testing.T) {
	t.Parallel()

	edgeEndpoint := startEdgeServer(t, &edgeScript{
		audio:     []byte(testAudioData),
		sendAudio: true,
	})
	edgeVariant := tts.NewEdge(edgeEndpoint, t.TempDir())

	elevenServer := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			responseWriter.WriteHeader(http.StatusOK)

			_, _ = responseWriter.Write([]byte(testAudioData))
		},
	))
	defer elevenServer.Close()

	elevenInner, err := tts.NewElevenLabs(
		elevenServer.URL, "test-api-key", "", t.TempDir(), 5*time.Second,
	)
	require.NoError(t, err)

	pooledVariant := tts.NewPool(elevenInner, 2)
	defer pooledVariant.Close()

	variants := map[string]core.SpeechSynthesizer{
		"cooperative": edgeVariant,
		"pooled":      pooledVariant,
	}

	for name, variant := range variants {
		t.Run(name, func(t *testing.T) {
			artifact, synthErr := variant.Synthesize(
				context.Background(), "Olá mundo", edgeTestVoice,
			)
			require.NoError(t, synthErr)

			assert.NotEmpty(t, artifact.Ref)
			assert.Equal(t, "audio/mpeg", artifact.MimeType)
			assert.Positive(t, artifact.Duration)
			assert.Positive(t, artifact.SampleRate)

			written, readErr := os.ReadFile(artifact.Ref)
			require.NoError(t, readErr)
			assert.Equal(t, []byte(testAudioData), written)
		})
	}
}
