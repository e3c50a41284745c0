// Package pipeline sequences the four video generation stages with per-stage
// failure isolation and a single terminal result per run.
package pipeline

import "github.com/MatheusMDi/ia-video-generate/internal/core"

// Stage names one sequential phase of a pipeline run.
type Stage string

// Stages in execution order. StagePreflight covers configuration resolution,
// which happens before the state machine starts generating.
const (
	StagePreflight Stage = "Preflight"
	StageScript    Stage = "ScriptGenerating"
	StageSynthesis Stage = "Synthesizing"
	StageAssets    Stage = "AssetResolving"
	StageCompose   Stage = "Composing"
)

// Status is the terminal outcome tag of a run.
type Status string

const (
	// StatusSuccess marks a run that produced a final video artifact.
	StatusSuccess Status = "Success"
	// StatusFailure marks a run halted by a stage failure.
	StatusFailure Status = "Failure"
)

// Failure describes which stage failed and why. Partial artifacts already
// produced are retained for diagnostic replay but the run does not count as
// completed.
type Failure struct {
	Stage   Stage
	Kind    core.ErrorKind
	Message string
	// ScriptText is the generated script, when the run failed after
	// script generation.
	ScriptText string
	// AudioRef is the synthesized audio location, when the run failed
	// after synthesis.
	AudioRef string
}

// Result is the terminal outcome of one pipeline run. Exactly one of
// VideoPath and Failure is populated.
type Result struct {
	RunID     string
	Channel   string
	Topic     string
	Status    Status
	VideoPath string
	Failure   *Failure
}

// Succeeded reports whether the run produced a final video artifact.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}
