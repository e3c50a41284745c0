// Package video renders the final video from narration audio and an ordered
// asset sequence by driving ffmpeg.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

// Encoding parameters shared by every render.
const (
	ffmpegBinary  = "ffmpeg"
	videoCodec    = "libx264"
	audioCodec    = "aac"
	pixelFormat   = "yuv420p"
	minSlotLength = time.Second

	outputFileFormat = "video_%s.mp4"
)

// Static errors.
var (
	ErrNilAudio      = errors.New("audio artifact is required")
	ErrNoAssets      = errors.New("no assets available for rendering")
	ErrEmptyAudioRef = errors.New("audio artifact has no file reference")
)

// ComposerConfig carries the render parameters.
type ComposerConfig struct {
	Width         int
	Height        int
	FPS           int
	ImageDuration time.Duration
}

// FFmpegComposer implements core.VideoComposer by looping each image for its
// time slot, concatenating the slots, and muxing the narration audio.
type FFmpegComposer struct {
	cfg       ComposerConfig
	outputDir string
	log       *logger.Logger
}

// NewFFmpegComposer creates a composer writing rendered videos into
// outputDir.
func NewFFmpegComposer(cfg ComposerConfig, outputDir string, log *logger.Logger) *FFmpegComposer {
	return &FFmpegComposer{
		cfg:       cfg,
		outputDir: outputDir,
		log:       log,
	}
}

// Compose renders the video and returns its path. Input validation failures,
// a missing encoder binary, and encoder failures map to the distinct render
// error kinds.
func (c *FFmpegComposer) Compose(
	ctx context.Context,
	audio *core.AudioArtifact,
	assetItems []core.AssetItem,
) (string, error) {
	validationErr := validateInputs(audio, assetItems)
	if validationErr != nil {
		return "", core.NewStageError(core.KindInvalidInput, validationErr)
	}

	_, lookErr := exec.LookPath(ffmpegBinary)
	if lookErr != nil {
		return "", core.NewStageError(
			core.KindEncoderUnavailable,
			fmt.Errorf("encoder binary not found: %w", lookErr),
		)
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("composition cancelled: %w", ctx.Err())
	}

	outputPath := filepath.Join(c.outputDir, fmt.Sprintf(outputFileFormat, uuid.NewString()))
	slot := slotDuration(audio.Duration, len(assetItems), c.cfg.ImageDuration)

	c.log.Info(
		"Rendering %d assets at %.1fs per slot into %s",
		len(assetItems), slot.Seconds(), outputPath,
	)

	renderErr := c.render(audio, assetItems, slot, outputPath)
	if renderErr != nil {
		return "", renderErr
	}

	c.log.Info("Video saved at %s", outputPath)

	return outputPath, nil
}

func (c *FFmpegComposer) render(
	audio *core.AudioArtifact,
	assetItems []core.AssetItem,
	slot time.Duration,
	outputPath string,
) error {
	imageStreams := make([]*ffmpeg.Stream, 0, len(assetItems))

	for _, item := range assetItems {
		stream := ffmpeg.Input(item.Ref, ffmpeg.KwArgs{
			"loop":      1,
			"t":         slot.Seconds(),
			"framerate": c.cfg.FPS,
		}).Filter("scale", ffmpeg.Args{
			fmt.Sprintf("%d:%d:force_original_aspect_ratio=decrease", c.cfg.Width, c.cfg.Height),
		}).Filter("pad", ffmpeg.Args{
			fmt.Sprintf("%d:%d:(ow-iw)/2:(oh-ih)/2", c.cfg.Width, c.cfg.Height),
		})

		imageStreams = append(imageStreams, stream)
	}

	videoStream := ffmpeg.Concat(imageStreams)
	audioStream := ffmpeg.Input(audio.Ref)

	var errorOutput bytes.Buffer

	err := ffmpeg.Output(
		[]*ffmpeg.Stream{videoStream, audioStream},
		outputPath,
		ffmpeg.KwArgs{
			"c:v":      videoCodec,
			"c:a":      audioCodec,
			"pix_fmt":  pixelFormat,
			"r":        c.cfg.FPS,
			"shortest": "",
		},
	).OverWriteOutput().WithErrorOutput(&errorOutput).Run()
	if err != nil {
		return core.NewStageError(
			core.KindEncodingFailed,
			fmt.Errorf("ffmpeg failed: %w - output: %s", err, errorOutput.String()),
		)
	}

	return nil
}

func validateInputs(audio *core.AudioArtifact, assetItems []core.AssetItem) error {
	if audio == nil {
		return ErrNilAudio
	}

	if audio.Ref == "" {
		return ErrEmptyAudioRef
	}

	if len(assetItems) == 0 {
		return ErrNoAssets
	}

	return nil
}

// slotDuration divides the narration duration evenly across the assets,
// falling back to the configured per-image duration when the audio length is
// unknown. Slots never drop below one second.
func slotDuration(audioDuration time.Duration, assetCount int, imageDuration time.Duration) time.Duration {
	if audioDuration <= 0 {
		return imageDuration
	}

	slot := audioDuration / time.Duration(assetCount)
	if slot < minSlotLength {
		return minSlotLength
	}

	return slot
}
