package provider

import (
	"errors"
	"fmt"

	"github.com/MatheusMDi/ia-video-generate/internal/channel"
	"github.com/MatheusMDi/ia-video-generate/internal/core"
)

var (
	// ErrMissingVoiceID indicates that the active provider has no voice
	// entry for the channel. Resolution fails loudly instead of
	// substituting another provider.
	ErrMissingVoiceID = errors.New("no voice id configured for provider")
	// ErrNilRegistry indicates that the selector was built without a
	// channel registry.
	ErrNilRegistry = errors.New("channel registry cannot be nil")
)

// Selection is the resolved (provider, voice id) pair for a channel, together
// with the channel's language for downstream stages.
type Selection struct {
	Provider ID
	VoiceID  string
	Language string
}

// Selector resolves the active provider and the per-channel voice id. The
// active-provider value is explicit configuration captured at construction,
// not a process global, so concurrent runs with different configurations stay
// possible.
type Selector struct {
	registry *channel.Registry
	active   string
}

// NewSelector creates a selector bound to a registry and an active-provider
// configuration value. The value is validated on every Resolve call so an
// unknown provider surfaces as a resolution failure, not a construction
// panic.
func NewSelector(registry *channel.Registry, activeProvider string) (*Selector, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	return &Selector{
		registry: registry,
		active:   activeProvider,
	}, nil
}

// Resolve returns the provider selection for the named channel. It fails
// before any synthesis attempt when the channel is unknown, the active
// provider is not enumerated, or the provider has no voice entry for the
// channel.
func (s *Selector) Resolve(channelName string) (Selection, error) {
	activeID, err := Parse(s.active)
	if err != nil {
		return Selection{}, core.NewStageError(core.KindUnknownProvider, err)
	}

	cfg, err := s.registry.Lookup(channelName)
	if err != nil {
		return Selection{}, core.NewStageError(core.KindUnknownChannel, err)
	}

	voiceID, ok := cfg.VoiceID(string(activeID))
	if !ok {
		return Selection{}, core.NewStageError(
			core.KindMissingVoiceID,
			fmt.Errorf("%w: provider %q, channel %q", ErrMissingVoiceID, activeID, channelName),
		)
	}

	return Selection{
		Provider: activeID,
		VoiceID:  voiceID,
		Language: cfg.Language,
	}, nil
}
