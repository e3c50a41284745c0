// Package core defines the domain types and interfaces shared by the video
// generation pipeline.
package core

import (
	"context"
	"time"
)

// ScriptGenerator produces a narration script for a topic in the given
// language.
type ScriptGenerator interface {
	Generate(ctx context.Context, topic, language string) (*Script, error)
}

// SpeechSynthesizer converts narration text into an audio artifact using a
// provider-specific voice. Both the cooperative and the blocking provider
// variants implement this contract; callers must not be able to tell them
// apart.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*AudioArtifact, error)
}

// AssetResolver maps ordered script sections to an ordered sequence of media
// assets. Rendering order equals sequence order.
type AssetResolver interface {
	Resolve(ctx context.Context, sections []Section) ([]AssetItem, error)
}

// VideoComposer renders the final video from the narration audio and the
// resolved assets, returning the path of the rendered file.
type VideoComposer interface {
	Compose(ctx context.Context, audio *AudioArtifact, assets []AssetItem) (string, error)
}

// ObjectStore defines the interface for interacting with a key-value blob
// store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Script is the output of the script generation stage. Sections are ordered
// and feed asset alignment.
type Script struct {
	Text     string
	Sections []Section
}

// Section is one ordered segment of a narration script.
type Section struct {
	Index int
	Text  string
}

// AudioArtifact is an opaque handle to synthesized speech.
type AudioArtifact struct {
	// Ref is the location of the audio data, a file path for both provider
	// variants.
	Ref        string
	MimeType   string
	Duration   time.Duration
	SampleRate int
}

// AssetItem references one media resource aligned to a script section.
type AssetItem struct {
	Ref     string
	Kind    string
	Section int
}
