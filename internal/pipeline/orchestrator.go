package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/MatheusMDi/ia-video-generate/internal/core"
	"github.com/MatheusMDi/ia-video-generate/internal/provider"
)

// Static construction errors.
var (
	ErrNilSelector      = errors.New("provider selector cannot be nil")
	ErrNoSynthesizers   = errors.New("at least one synthesizer must be wired")
	ErrNilScripts       = errors.New("script generator cannot be nil")
	ErrNilAssets        = errors.New("asset resolver cannot be nil")
	ErrNilComposer      = errors.New("video composer cannot be nil")
	ErrNilLogger        = errors.New("logger cannot be nil")
	ErrProviderNotWired = errors.New("no synthesizer wired for provider")
)

// Dependencies wires the orchestrator to its collaborators. Synthesizers maps
// each enumerated provider to its capability implementation; the blocking
// variant arrives already wrapped in its worker pool.
type Dependencies struct {
	Selector     *provider.Selector
	Synthesizers map[provider.ID]core.SpeechSynthesizer
	Scripts      core.ScriptGenerator
	Assets       core.AssetResolver
	Composer     core.VideoComposer
	Retry        RetryPolicy
	Log          *logger.Logger
}

// Orchestrator drives one pipeline run through its stages in order. Each
// instance may serve concurrent runs; all intermediate artifacts are
// run-scoped locals, never shared state.
type Orchestrator struct {
	deps Dependencies
}

// NewOrchestrator validates the wiring and creates an orchestrator.
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	err := validateDependencies(deps)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{deps: deps}, nil
}

func validateDependencies(deps Dependencies) error {
	switch {
	case deps.Selector == nil:
		return ErrNilSelector
	case len(deps.Synthesizers) == 0:
		return ErrNoSynthesizers
	case deps.Scripts == nil:
		return ErrNilScripts
	case deps.Assets == nil:
		return ErrNilAssets
	case deps.Composer == nil:
		return ErrNilComposer
	case deps.Log == nil:
		return ErrNilLogger
	default:
		return nil
	}
}

// Run executes one pipeline run for a channel and topic. It always returns a
// terminal result: either the final video path or the stage and error kind
// that halted the run. No stage starts before its predecessor's result is
// fully resolved, and once a stage fails no further stage executes.
func (o *Orchestrator) Run(ctx context.Context, channelName, topic string) Result {
	runID := uuid.NewString()
	log := o.deps.Log

	log.Info("Run %s: starting pipeline for channel %q, topic %q", runID, channelName, topic)

	selection, err := o.deps.Selector.Resolve(channelName)
	if err != nil {
		log.Error("Run %s: provider resolution failed: %v", runID, err)

		return failure(runID, channelName, topic, StagePreflight, err, nil, nil)
	}

	// The selector already rejected providers outside the enumeration, so a
	// missing synthesizer here means a known provider this deployment did not
	// wire, typically because its API key is absent.
	synthesizer, ok := o.deps.Synthesizers[selection.Provider]
	if !ok {
		err = core.NewStageError(
			core.KindProviderNotConfigured,
			fmt.Errorf("%w: %q", ErrProviderNotWired, selection.Provider),
		)
		log.Error("Run %s: %v", runID, err)

		return failure(runID, channelName, topic, StagePreflight, err, nil, nil)
	}

	// Failing fatally cancels any suspended operation still in flight for
	// this run.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	generatedScript, err := retry(runCtx, log, o.deps.Retry, "script generation",
		func(stageCtx context.Context) (*core.Script, error) {
			return o.deps.Scripts.Generate(stageCtx, topic, selection.Language)
		})
	if err != nil {
		log.Error("Run %s: script generation failed: %v", runID, err)

		return failure(runID, channelName, topic, StageScript, err, nil, nil)
	}

	log.Info("Run %s: script generated (%d sections)", runID, len(generatedScript.Sections))

	audio, err := retry(runCtx, log, o.deps.Retry, "speech synthesis",
		func(stageCtx context.Context) (*core.AudioArtifact, error) {
			return synthesizer.Synthesize(stageCtx, generatedScript.Text, selection.VoiceID)
		})
	if err != nil {
		log.Error("Run %s: synthesis failed: %v", runID, err)

		return failure(runID, channelName, topic, StageSynthesis, err, generatedScript, nil)
	}

	log.Info("Run %s: audio synthesized (%s, %s)", runID, audio.Ref, audio.Duration)

	assetItems, err := retry(runCtx, log, o.deps.Retry, "asset resolution",
		func(stageCtx context.Context) ([]core.AssetItem, error) {
			return o.deps.Assets.Resolve(stageCtx, generatedScript.Sections)
		})
	if err != nil {
		log.Error("Run %s: asset resolution failed: %v", runID, err)

		return failure(runID, channelName, topic, StageAssets, err, generatedScript, audio)
	}

	log.Info("Run %s: %d assets resolved", runID, len(assetItems))

	videoPath, err := retry(runCtx, log, o.deps.Retry, "video composition",
		func(stageCtx context.Context) (string, error) {
			return o.deps.Composer.Compose(stageCtx, audio, assetItems)
		})
	if err != nil {
		log.Error("Run %s: composition failed: %v", runID, err)

		return failure(runID, channelName, topic, StageCompose, err, generatedScript, audio)
	}

	log.Info("Run %s: pipeline complete, video at %s", runID, videoPath)

	return Result{
		RunID:     runID,
		Channel:   channelName,
		Topic:     topic,
		Status:    StatusSuccess,
		VideoPath: videoPath,
		Failure:   nil,
	}
}

// failure builds a terminal failure result, retaining partial artifacts
// produced before the failing stage.
func failure(
	runID, channelName, topic string,
	stage Stage,
	err error,
	partialScript *core.Script,
	partialAudio *core.AudioArtifact,
) Result {
	report := &Failure{
		Stage:      stage,
		Kind:       core.KindOf(err),
		Message:    err.Error(),
		ScriptText: "",
		AudioRef:   "",
	}

	if partialScript != nil {
		report.ScriptText = partialScript.Text
	}

	if partialAudio != nil {
		report.AudioRef = partialAudio.Ref
	}

	return Result{
		RunID:     runID,
		Channel:   channelName,
		Topic:     topic,
		Status:    StatusFailure,
		VideoPath: "",
		Failure:   report,
	}
}
