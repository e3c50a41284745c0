// Package channel provides the read-only registry of configured channels.
package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that no channel with the requested name is
	// configured. This is a terminal configuration error, not retried.
	ErrNotFound = errors.New("channel not found")
	// ErrEmptyName indicates a channel entry without a name.
	ErrEmptyName = errors.New("channel name cannot be empty")
	// ErrDuplicateName indicates two channel entries sharing a name.
	ErrDuplicateName = errors.New("duplicate channel name")
)

// Config describes one configured channel. VoiceIDs maps a provider
// identifier to the voice identifier that provider uses for this channel;
// the mapping may be partial.
type Config struct {
	Name     string            `json:"name"`
	Language string            `json:"language"`
	VoiceIDs map[string]string `json:"voice_ids"`
}

// VoiceID returns the voice identifier configured for the given provider.
// A missing entry is reported explicitly, never substituted.
func (c Config) VoiceID(providerID string) (string, bool) {
	voiceID, ok := c.VoiceIDs[providerID]
	if !ok || voiceID == "" {
		return "", false
	}

	return voiceID, true
}

// Registry is an immutable mapping of channel name to channel configuration.
// It is loaded once at process start and safe for concurrent reads.
type Registry struct {
	byName map[string]Config
}

// NewRegistry builds a registry from the loaded channel configurations. The
// input slices and maps are copied so later mutation of the caller's data
// cannot reach the registry.
func NewRegistry(configs []Config) (*Registry, error) {
	byName := make(map[string]Config, len(configs))

	for _, cfg := range configs {
		if cfg.Name == "" {
			return nil, ErrEmptyName
		}

		if _, exists := byName[cfg.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, cfg.Name)
		}

		byName[cfg.Name] = cloneConfig(cfg)
	}

	return &Registry{byName: byName}, nil
}

// Lookup returns the configuration for the named channel. The returned value
// holds its own copy of the voice mapping, so callers cannot mutate registry
// state.
func (r *Registry) Lookup(name string) (Config, error) {
	cfg, ok := r.byName[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	return cloneConfig(cfg), nil
}

// Len returns the number of configured channels.
func (r *Registry) Len() int {
	return len(r.byName)
}

func cloneConfig(cfg Config) Config {
	voiceIDs := make(map[string]string, len(cfg.VoiceIDs))
	for providerID, voiceID := range cfg.VoiceIDs {
		voiceIDs[providerID] = voiceID
	}

	return Config{
		Name:     cfg.Name,
		Language: cfg.Language,
		VoiceIDs: voiceIDs,
	}
}
