// Package provider enumerates the speech synthesis providers and resolves,
// per channel, which provider and voice identifier a pipeline run uses.
package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ID identifies one of the fixed, enumerable speech synthesis providers.
type ID string

const (
	// Edge is the cooperative streaming provider.
	Edge ID = "edge"
	// ElevenLabs is the blocking HTTP provider.
	ElevenLabs ID = "elevenlabs"
)

// ErrUnknownProvider indicates that a provider value is not one of the
// enumerated providers.
var ErrUnknownProvider = errors.New("unknown provider")

// Parse converts a configuration value into a provider ID. Matching is
// case-insensitive.
func Parse(value string) (ID, error) {
	switch ID(strings.ToLower(strings.TrimSpace(value))) {
	case Edge:
		return Edge, nil
	case ElevenLabs:
		return ElevenLabs, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, value)
	}
}
